package geom

import (
	"fmt"
	"math"
)

// Epsilon is the tolerance used by the approximate equality helpers.
const Epsilon = 1e-9

// Axis selects one Cartesian component of a Vector.
type Axis string

const (
	AxisX Axis = "X"
	AxisY Axis = "Y"
	AxisZ Axis = "Z"
)

// Valid reports whether a is one of X, Y, Z.
func (a Axis) Valid() bool {
	return a == AxisX || a == AxisY || a == AxisZ
}

// Vector is a 3D Cartesian vector.
type Vector struct {
	X, Y, Z float64
}

// V is shorthand for Vector{x, y, z}.
func V(x, y, z float64) Vector {
	return Vector{X: x, Y: y, Z: z}
}

func (v Vector) Add(o Vector) Vector { return Vector{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vector) Sub(o Vector) Vector { return Vector{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vector) Scale(s float64) Vector {
	return Vector{v.X * s, v.Y * s, v.Z * s}
}
func (v Vector) Negate() Vector       { return Vector{-v.X, -v.Y, -v.Z} }
func (v Vector) Dot(o Vector) float64 { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }

// Cross returns v × o.
func (v Vector) Cross(o Vector) Vector {
	return Vector{
		v.Y*o.Z - v.Z*o.Y,
		v.Z*o.X - v.X*o.Z,
		v.X*o.Y - v.Y*o.X,
	}
}

// Norm returns the Euclidean length.
func (v Vector) Norm() float64 { return math.Sqrt(v.Dot(v)) }

// Component returns the value along axis a.
func (v Vector) Component(a Axis) (float64, error) {
	switch a {
	case AxisX:
		return v.X, nil
	case AxisY:
		return v.Y, nil
	case AxisZ:
		return v.Z, nil
	default:
		return 0, fmt.Errorf("invalid axis %q", a)
	}
}

// ApproxEqual compares component-wise within Epsilon.
func (v Vector) ApproxEqual(o Vector) bool {
	return approx(v.X, o.X) && approx(v.Y, o.Y) && approx(v.Z, o.Z)
}

func (v Vector) String() string {
	return fmt.Sprintf("(%g, %g, %g)", v.X, v.Y, v.Z)
}

// Rotation is a unit quaternion.
type Rotation struct {
	W, X, Y, Z float64
}

// Identity returns the rotation that leaves vectors unchanged.
func Identity() Rotation {
	return Rotation{W: 1}
}

// AxisAngle builds a rotation of angle radians around axis.
// A zero axis yields the identity.
func AxisAngle(axis Vector, angle float64) Rotation {
	n := axis.Norm()
	if n < Epsilon {
		return Identity()
	}
	s := math.Sin(angle/2) / n
	return Rotation{W: math.Cos(angle / 2), X: axis.X * s, Y: axis.Y * s, Z: axis.Z * s}
}

// ABC builds a rotation from intrinsic Z-Y-X Euler angles (a around Z, then
// b around the new Y, then c around the new X).
func ABC(a, b, c float64) Rotation {
	return AxisAngle(V(0, 0, 1), a).
		Multiply(AxisAngle(V(0, 1, 0), b)).
		Multiply(AxisAngle(V(1, 0, 0), c))
}

// Multiply returns r ∘ o: applying the result equals applying o first, then r.
func (r Rotation) Multiply(o Rotation) Rotation {
	return Rotation{
		W: r.W*o.W - r.X*o.X - r.Y*o.Y - r.Z*o.Z,
		X: r.W*o.X + r.X*o.W + r.Y*o.Z - r.Z*o.Y,
		Y: r.W*o.Y - r.X*o.Z + r.Y*o.W + r.Z*o.X,
		Z: r.W*o.Z + r.X*o.Y - r.Y*o.X + r.Z*o.W,
	}.normalize()
}

// Invert returns the inverse rotation.
func (r Rotation) Invert() Rotation {
	return Rotation{W: r.W, X: -r.X, Y: -r.Y, Z: -r.Z}
}

// Apply rotates v.
func (r Rotation) Apply(v Vector) Vector {
	q := Vector{r.X, r.Y, r.Z}
	t := q.Cross(v).Scale(2)
	return v.Add(t.Scale(r.W)).Add(q.Cross(t))
}

// ApproxEqual treats q and -q as the same rotation.
func (r Rotation) ApproxEqual(o Rotation) bool {
	same := approx(r.W, o.W) && approx(r.X, o.X) && approx(r.Y, o.Y) && approx(r.Z, o.Z)
	flipped := approx(r.W, -o.W) && approx(r.X, -o.X) && approx(r.Y, -o.Y) && approx(r.Z, -o.Z)
	return same || flipped
}

func (r Rotation) normalize() Rotation {
	n := math.Sqrt(r.W*r.W + r.X*r.X + r.Y*r.Y + r.Z*r.Z)
	if n < Epsilon {
		return Identity()
	}
	return Rotation{r.W / n, r.X / n, r.Y / n, r.Z / n}
}

func (r Rotation) String() string {
	return fmt.Sprintf("[%g, %g, %g, %g]", r.W, r.X, r.Y, r.Z)
}

// Transformation is a rigid body transformation: rotate, then translate.
type Transformation struct {
	Rotation    Rotation
	Translation Vector
}

// NewTransformation combines a translation and a rotation.
func NewTransformation(translation Vector, rotation Rotation) Transformation {
	return Transformation{Rotation: rotation, Translation: translation}
}

// IdentityTransformation returns the transformation that changes nothing.
func IdentityTransformation() Transformation {
	return Transformation{Rotation: Identity()}
}

// Multiply returns t ∘ o.
func (t Transformation) Multiply(o Transformation) Transformation {
	return Transformation{
		Rotation:    t.Rotation.Multiply(o.Rotation),
		Translation: t.Translation.Add(t.Rotation.Apply(o.Translation)),
	}
}

// Invert returns the inverse transformation.
func (t Transformation) Invert() Transformation {
	inv := t.Rotation.Invert()
	return Transformation{Rotation: inv, Translation: inv.Apply(t.Translation).Negate()}
}

// Apply transforms a vector interpreted as a point.
func (t Transformation) Apply(v Vector) Vector {
	return t.Rotation.Apply(v).Add(t.Translation)
}

func (t Transformation) ApproxEqual(o Transformation) bool {
	return t.Rotation.ApproxEqual(o.Rotation) && t.Translation.ApproxEqual(o.Translation)
}

func (t Transformation) String() string {
	return fmt.Sprintf("{%v %v}", t.Translation, t.Rotation)
}

// Twist is a spatial velocity: linear velocity of the pivot plus angular velocity.
type Twist struct {
	Linear  Vector
	Angular Vector
}

func (t Twist) Add(o Twist) Twist {
	return Twist{Linear: t.Linear.Add(o.Linear), Angular: t.Angular.Add(o.Angular)}
}

func (t Twist) Negate() Twist {
	return Twist{Linear: t.Linear.Negate(), Angular: t.Angular.Negate()}
}

// Rotate re-expresses the twist in an orientation rotated by r.
func (t Twist) Rotate(r Rotation) Twist {
	return Twist{Linear: r.Apply(t.Linear), Angular: r.Apply(t.Angular)}
}

// ChangePivot moves the reference point by offset (new pivot minus old pivot).
func (t Twist) ChangePivot(offset Vector) Twist {
	return Twist{Linear: t.Linear.Add(t.Angular.Cross(offset)), Angular: t.Angular}
}

func (t Twist) ApproxEqual(o Twist) bool {
	return t.Linear.ApproxEqual(o.Linear) && t.Angular.ApproxEqual(o.Angular)
}

func (t Twist) String() string {
	return fmt.Sprintf("{lin %v ang %v}", t.Linear, t.Angular)
}

func approx(a, b float64) bool {
	return math.Abs(a-b) <= Epsilon
}
