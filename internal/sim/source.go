package sim

import (
	"context"
	"sync"

	"github.com/roboticsapi/robotics-api-sub003/internal/dataflow"
	"github.com/roboticsapi/robotics-api-sub003/internal/ir"
	"github.com/roboticsapi/robotics-api-sub003/internal/mapping"
	"github.com/roboticsapi/robotics-api-sub003/internal/sensor"
)

// KindSource is the node kind of simulated value sources.
const KindSource = "sim.source"

// SourcePrefix prefixes the source primitive of every value type.
const SourcePrefix = "Sim::Source"

// SourcePrimitive names the source primitive of t.
func SourcePrimitive(t dataflow.Type) string {
	return SourcePrefix + string(t)
}

var (
	catalogOnce sync.Once
	catalog     *dataflow.Catalog
)

// Catalog returns the default catalog extended with the source and live
// writable primitives.
func Catalog() *dataflow.Catalog {
	catalogOnce.Do(func() {
		prims := make([]dataflow.Primitive, 0, 2*len(dataflow.Types))
		for _, t := range dataflow.Types {
			for _, name := range []string{SourcePrimitive(t), WritablePrimitive(t)} {
				prims = append(prims, dataflow.Primitive{
					Name:    name,
					Outputs: []dataflow.PortSpec{{Name: mapping.ValueOutput, Type: t}},
					Params:  []dataflow.ParamSpec{{Name: "Name", Required: true}},
				})
			}
		}
		catalog = dataflow.DefaultCatalog().Extend(prims...)
	})
	return catalog
}

func translateSource(_ context.Context, p *mapping.Pass) (dataflow.Port, error) {
	n := p.Node()
	b, err := p.Block(SourcePrimitive(n.Tag().Type), map[string]string{"Name": n.Attr("name")})
	if err != nil {
		return dataflow.Port{}, err
	}
	return b.Out(mapping.ValueOutput)
}

// Source is a named value fed into the simulation from outside, standing in
// for a device reading. It has no value until the first Set.
type Source[T any] struct {
	sensor.Sensor[T]
	env  *Environment
	name string
}

// NewSource creates a source bound to e. ctx is the source's tag context,
// e.g. the frame a point is measured in.
func NewSource[T any](e *Environment, name string, ctx map[string]string) (*Source[T], error) {
	s, err := sensor.NewLeaf[T](e, KindSource, ctx, ir.IRObject{"name": ir.IRString(name)}, nil)
	if err != nil {
		return nil, err
	}
	return &Source[T]{Sensor: s, env: e, name: name}, nil
}

// Name returns the source name.
func (s *Source[T]) Name() string {
	return s.name
}

// Set replaces the value seen from the next cycle on.
func (s *Source[T]) Set(v T) {
	s.env.setSource(s.name, s.Node().ToRaw(v))
}
