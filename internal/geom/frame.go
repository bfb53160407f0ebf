package geom

import "fmt"

// Frame is a named coordinate frame. Frames are compared by name.
type Frame struct {
	Name string
}

// NewFrame returns the frame called name.
func NewFrame(name string) Frame {
	return Frame{Name: name}
}

// World is the root frame.
var World = NewFrame("world")

func (f Frame) IsZero() bool   { return f.Name == "" }
func (f Frame) String() string { return f.Name }

// Point is a position vector interpreted relative to Frame.
type Point struct {
	Frame  Frame
	Vector Vector
}

func (p Point) String() string {
	return fmt.Sprintf("%v@%s", p.Vector, p.Frame)
}

// ApproxEqual compares frames exactly and vectors within Epsilon.
func (p Point) ApproxEqual(o Point) bool {
	return p.Frame == o.Frame && p.Vector.ApproxEqual(o.Vector)
}

// Direction is a free vector whose components are expressed in Orientation.
type Direction struct {
	Orientation Frame
	Vector      Vector
}

func (d Direction) String() string {
	return fmt.Sprintf("%v in %s", d.Vector, d.Orientation)
}

func (d Direction) ApproxEqual(o Direction) bool {
	return d.Orientation == o.Orientation && d.Vector.ApproxEqual(o.Vector)
}

// VelocityContext describes how a Twist is to be read: the motion of Moving
// relative to Reference, measured at Pivot, with components in Orientation.
type VelocityContext struct {
	Moving      Frame
	Reference   Frame
	Pivot       Point
	Orientation Frame
}

// Inverse swaps moving and reference frames.
func (c VelocityContext) Inverse() VelocityContext {
	return VelocityContext{Moving: c.Reference, Reference: c.Moving, Pivot: c.Pivot, Orientation: c.Orientation}
}

func (c VelocityContext) String() string {
	return fmt.Sprintf("%s rel %s at %v in %s", c.Moving, c.Reference, c.Pivot, c.Orientation)
}

// Velocity is a Twist together with its interpretive context.
type Velocity struct {
	Context VelocityContext
	Twist   Twist
}

func (v Velocity) ApproxEqual(o Velocity) bool {
	return v.Context == o.Context && v.Twist.ApproxEqual(o.Twist)
}

func (v Velocity) String() string {
	return fmt.Sprintf("%v (%v)", v.Twist, v.Context)
}
