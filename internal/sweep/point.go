package sweep

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Param is one named parameter value of a configuration point.
type Param struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Point is an immutable, ordered set of parameters the simulator is run with.
type Point struct {
	params []Param
}

// NewPoint builds a Point, keeping declaration order. Later duplicates
// override earlier values in place.
func NewPoint(params ...Param) Point {
	out := make([]Param, 0, len(params))
	for _, p := range params {
		replaced := false
		for i := range out {
			if out[i].Name == p.Name {
				out[i].Value = p.Value
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, p)
		}
	}
	return Point{params: out}
}

// Params returns a copy of the parameters.
func (p Point) Params() []Param {
	return append([]Param(nil), p.params...)
}

// Names returns the parameter names in order.
func (p Point) Names() []string {
	names := make([]string, len(p.params))
	for i, prm := range p.params {
		names[i] = prm.Name
	}
	return names
}

// Get returns the value of name.
func (p Point) Get(name string) (string, bool) {
	for _, prm := range p.params {
		if prm.Name == name {
			return prm.Value, true
		}
	}
	return "", false
}

// Map returns the parameters as template data.
func (p Point) Map() map[string]string {
	m := make(map[string]string, len(p.params))
	for _, prm := range p.params {
		m[prm.Name] = prm.Value
	}
	return m
}

// With returns a copy of p with name set to value.
func (p Point) With(name, value string) Point {
	return NewPoint(append(p.Params(), Param{Name: name, Value: value})...)
}

// Len returns the number of parameters.
func (p Point) Len() int { return len(p.params) }

func (p Point) String() string {
	parts := make([]string, len(p.params))
	for i, prm := range p.params {
		parts[i] = prm.Name + "=" + prm.Value
	}
	return strings.Join(parts, ",")
}

func (p Point) MarshalJSON() ([]byte, error) {
	if p.params == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(p.params)
}

func (p *Point) UnmarshalJSON(b []byte) error {
	var params []Param
	if err := json.Unmarshal(b, &params); err != nil {
		return err
	}
	*p = NewPoint(params...)
	return nil
}

// GridMode selects how parameter axes are combined.
type GridMode string

const (
	// ModeProduct takes the cartesian product; the first axis varies slowest.
	ModeProduct GridMode = "product"
	// ModeZip pairs the i-th value of every axis; all axes must be equally long.
	ModeZip GridMode = "zip"
)

// Axis is one swept parameter.
type Axis struct {
	Name   string
	Values []string
}

// Grid describes a sweep declaratively.
type Grid struct {
	Mode   GridMode
	Axes   []Axis
	Fixed  []Param // added to every point unless the point sets them
	Points []Point // explicit points, run after the expanded axes
}

// Expand returns the configuration points of g in run order.
func (g Grid) Expand() ([]Point, error) {
	var points []Point
	if len(g.Axes) > 0 {
		for _, a := range g.Axes {
			if a.Name == "" {
				return nil, fmt.Errorf("sweep axis without name")
			}
			if len(a.Values) == 0 {
				return nil, fmt.Errorf("sweep axis %q has no values", a.Name)
			}
		}
		switch g.Mode {
		case ModeProduct, "":
			points = product(g.Axes)
		case ModeZip:
			n := len(g.Axes[0].Values)
			for _, a := range g.Axes[1:] {
				if len(a.Values) != n {
					return nil, fmt.Errorf("zip mode: axis %q has %d values, %q has %d", g.Axes[0].Name, n, a.Name, len(a.Values))
				}
			}
			for i := 0; i < n; i++ {
				params := make([]Param, len(g.Axes))
				for j, a := range g.Axes {
					params[j] = Param{Name: a.Name, Value: a.Values[i]}
				}
				points = append(points, NewPoint(params...))
			}
		default:
			return nil, fmt.Errorf("unknown sweep mode %q", g.Mode)
		}
	}
	points = append(points, g.Points...)
	if len(points) == 0 {
		if len(g.Fixed) == 0 {
			return nil, fmt.Errorf("sweep defines no points")
		}
		points = []Point{{}}
	}
	for i, p := range points {
		for _, f := range g.Fixed {
			if _, ok := p.Get(f.Name); !ok {
				p = p.With(f.Name, f.Value)
			}
		}
		points[i] = p
	}
	return points, nil
}

func product(axes []Axis) []Point {
	combos := [][]Param{nil}
	for _, a := range axes {
		next := make([][]Param, 0, len(combos)*len(a.Values))
		for _, c := range combos {
			for _, v := range a.Values {
				row := append(append([]Param(nil), c...), Param{Name: a.Name, Value: v})
				next = append(next, row)
			}
		}
		combos = next
	}
	points := make([]Point, len(combos))
	for i, c := range combos {
		points[i] = NewPoint(c...)
	}
	return points
}

// ParamNames returns the union of parameter names over points, in first-seen order.
func ParamNames(points []Point) []string {
	var names []string
	seen := map[string]bool{}
	for _, p := range points {
		for _, prm := range p.params {
			if !seen[prm.Name] {
				seen[prm.Name] = true
				names = append(names, prm.Name)
			}
		}
	}
	return names
}
