package sensor

// Scalar and boolean operator kinds.
const (
	KindDoubleAdd      = "double.add"
	KindDoubleMultiply = "double.multiply"
	KindDoubleNegate   = "double.negate"
	KindDoubleGreater  = "double.greater"
	KindBooleanAnd     = "boolean.and"
	KindBooleanOr      = "boolean.or"
	KindBooleanNot     = "boolean.not"
)

// AddDouble returns a + b.
func AddDouble(a, b DoubleSensor) (DoubleSensor, error) {
	if err := requireOperands(KindDoubleAdd, a.n, b.n); err != nil {
		return DoubleSensor{}, err
	}
	return derive[float64](KindDoubleAdd, plainOf[float64](), nil,
		binary(func(x, y float64) float64 { return x + y }), a.n, b.n)
}

// MultiplyDouble returns a * b.
func MultiplyDouble(a, b DoubleSensor) (DoubleSensor, error) {
	if err := requireOperands(KindDoubleMultiply, a.n, b.n); err != nil {
		return DoubleSensor{}, err
	}
	return derive[float64](KindDoubleMultiply, plainOf[float64](), nil,
		binary(func(x, y float64) float64 { return x * y }), a.n, b.n)
}

// NegateDouble returns -a.
func NegateDouble(a DoubleSensor) (DoubleSensor, error) {
	if err := requireOperands(KindDoubleNegate, a.n); err != nil {
		return DoubleSensor{}, err
	}
	return derive[float64](KindDoubleNegate, plainOf[float64](), nil,
		unary(func(x float64) float64 { return -x }), a.n)
}

// Greater returns a > b.
func Greater(a, b DoubleSensor) (BooleanSensor, error) {
	if err := requireOperands(KindDoubleGreater, a.n, b.n); err != nil {
		return BooleanSensor{}, err
	}
	return derive[bool](KindDoubleGreater, plainOf[bool](), nil,
		binary(func(x, y float64) bool { return x > y }), a.n, b.n)
}

// And returns a && b.
func And(a, b BooleanSensor) (BooleanSensor, error) {
	if err := requireOperands(KindBooleanAnd, a.n, b.n); err != nil {
		return BooleanSensor{}, err
	}
	return derive[bool](KindBooleanAnd, plainOf[bool](), nil,
		binary(func(x, y bool) bool { return x && y }), a.n, b.n)
}

// Or returns a || b.
func Or(a, b BooleanSensor) (BooleanSensor, error) {
	if err := requireOperands(KindBooleanOr, a.n, b.n); err != nil {
		return BooleanSensor{}, err
	}
	return derive[bool](KindBooleanOr, plainOf[bool](), nil,
		binary(func(x, y bool) bool { return x || y }), a.n, b.n)
}

// Not returns !a.
func Not(a BooleanSensor) (BooleanSensor, error) {
	if err := requireOperands(KindBooleanNot, a.n); err != nil {
		return BooleanSensor{}, err
	}
	return derive[bool](KindBooleanNot, plainOf[bool](), nil,
		unary(func(x bool) bool { return !x }), a.n)
}
