package mapping

import (
	"github.com/roboticsapi/robotics-api-sub003/internal/dataflow"
	"github.com/roboticsapi/robotics-api-sub003/internal/geom"
	"github.com/roboticsapi/robotics-api-sub003/internal/sensor"
)

// OperandTags returns the tags n's operator requires of its operands,
// derived from n's own tag. Operands the operator places no constraint on
// keep their own tag.
func OperandTags(n *sensor.Node) ([]dataflow.Tag, error) {
	ops := n.Operands()
	tags := make([]dataflow.Tag, len(ops))
	for i, op := range ops {
		tags[i] = op.Tag()
	}
	result := n.Tag()

	switch n.Kind() {
	case sensor.KindVectorAdd, sensor.KindTwistAdd, sensor.KindDirectionAdd,
		sensor.KindVectorInvert, sensor.KindRotationInvert,
		sensor.KindTransformationInvert, sensor.KindTwistInvert,
		sensor.KindSlidingAverage:
		for i := range tags {
			tags[i] = result
		}
	case sensor.KindVectorScale, sensor.KindHistoryAtAge:
		tags[0] = result
	case sensor.KindConditional:
		tags[1], tags[2] = result, result
	case sensor.KindPointDisplace:
		frame := result.ContextMap()[sensor.CtxFrame]
		tags[0] = result
		tags[1] = sensor.DirectionTag(geom.NewFrame(frame))
	case sensor.KindVelocityAdd:
		r, err := sensor.VelocityContextOf(result)
		if err != nil {
			return nil, err
		}
		a, err := sensor.VelocityContextOf(tags[0])
		if err != nil {
			return nil, err
		}
		b, err := sensor.VelocityContextOf(tags[1])
		if err != nil {
			return nil, err
		}
		// the chaining frame is the only part the result does not fix
		first, second := r, r
		first.Moving = b.Reference
		second.Reference = a.Moving
		tags[0], tags[1] = sensor.VelocityTag(first), sensor.VelocityTag(second)
	case sensor.KindVelocityInvert:
		r, err := sensor.VelocityContextOf(result)
		if err != nil {
			return nil, err
		}
		tags[0] = sensor.VelocityTag(r.Inverse())
	case sensor.KindVelocityChangeOrientation:
		r, err := sensor.VelocityContextOf(result)
		if err != nil {
			return nil, err
		}
		v, err := sensor.VelocityContextOf(tags[0])
		if err != nil {
			return nil, err
		}
		r.Orientation = v.Orientation
		tags[0] = sensor.VelocityTag(r)
	case sensor.KindVelocityChangePivot:
		r, err := sensor.VelocityContextOf(result)
		if err != nil {
			return nil, err
		}
		v, err := sensor.VelocityContextOf(tags[0])
		if err != nil {
			return nil, err
		}
		r.Pivot = v.Pivot
		tags[0] = sensor.VelocityTag(r)
		tags[1] = sensor.DirectionTag(r.Orientation)
	}
	return tags, nil
}
