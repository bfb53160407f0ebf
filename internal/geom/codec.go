package geom

import (
	"fmt"
	"strconv"
	"strings"
)

// Primitive parameters travel as strings. Floats are written with the
// shortest representation that round-trips, components separated by commas.
// Negative zero is written as 0, so equal values encode identically.

func formatFloats(fs ...float64) string {
	parts := make([]string, len(fs))
	for i, f := range fs {
		if f == 0 {
			f = 0
		}
		parts[i] = strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}

func parseFloats(s string, n int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("expected %d components, got %d in %q", n, len(parts), s)
	}
	out := make([]float64, n)
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("component %d of %q: %w", i, s, err)
		}
		out[i] = f
	}
	return out, nil
}

// Format encodes a supported value as a primitive parameter string.
func Format(v any) (string, error) {
	switch val := v.(type) {
	case float64:
		return formatFloats(val), nil
	case bool:
		return strconv.FormatBool(val), nil
	case Vector:
		return formatFloats(val.X, val.Y, val.Z), nil
	case Rotation:
		return formatFloats(val.W, val.X, val.Y, val.Z), nil
	case Transformation:
		r, t := val.Rotation, val.Translation
		return formatFloats(r.W, r.X, r.Y, r.Z, t.X, t.Y, t.Z), nil
	case Twist:
		l, a := val.Linear, val.Angular
		return formatFloats(l.X, l.Y, l.Z, a.X, a.Y, a.Z), nil
	default:
		return "", fmt.Errorf("unsupported parameter value type %T", v)
	}
}

// MustFormat is like Format but panics on unsupported types.
func MustFormat(v any) string {
	s, err := Format(v)
	if err != nil {
		panic(err)
	}
	return s
}

func ParseDouble(s string) (float64, error) {
	fs, err := parseFloats(s, 1)
	if err != nil {
		return 0, err
	}
	return fs[0], nil
}

func ParseBool(s string) (bool, error) {
	return strconv.ParseBool(strings.TrimSpace(s))
}

func ParseVector(s string) (Vector, error) {
	fs, err := parseFloats(s, 3)
	if err != nil {
		return Vector{}, err
	}
	return V(fs[0], fs[1], fs[2]), nil
}

func ParseRotation(s string) (Rotation, error) {
	fs, err := parseFloats(s, 4)
	if err != nil {
		return Rotation{}, err
	}
	return Rotation{fs[0], fs[1], fs[2], fs[3]}.normalize(), nil
}

func ParseTransformation(s string) (Transformation, error) {
	fs, err := parseFloats(s, 7)
	if err != nil {
		return Transformation{}, err
	}
	return Transformation{
		Rotation:    Rotation{fs[0], fs[1], fs[2], fs[3]}.normalize(),
		Translation: V(fs[4], fs[5], fs[6]),
	}, nil
}

func ParseTwist(s string) (Twist, error) {
	fs, err := parseFloats(s, 6)
	if err != nil {
		return Twist{}, err
	}
	return Twist{Linear: V(fs[0], fs[1], fs[2]), Angular: V(fs[3], fs[4], fs[5])}, nil
}
