package testutil

import "github.com/roach88/splitq/internal/ir"

// Point assigns a value to every attribute an expression may reference.
type Point map[ir.Attribute]ir.Value

// Holds evaluates e at p. Attributes missing from p fail every comparison.
func Holds(e ir.Expression, p Point) bool {
	switch x := e.(type) {
	case ir.Literal:
		return bool(x)
	case ir.Relation:
		v, ok := p[x.Attribute()]
		if !ok {
			return false
		}
		holds, _ := x.Op().Satisfied(v, x.Value())
		return holds
	case ir.In:
		v, ok := p[x.Attribute()]
		return ok && x.Values().Contains(v)
	case ir.And:
		for _, c := range x.Clauses() {
			if !Holds(c, p) {
				return false
			}
		}
		return true
	case ir.Or:
		for _, c := range x.Clauses() {
			if Holds(c, p) {
				return true
			}
		}
		return false
	case ir.Not:
		return !Holds(x.Clause(), p)
	default:
		panic("testutil: cannot evaluate " + e.String())
	}
}

// Grid returns every point over attrs whose coordinates run from -1 to 5 in
// half steps. Whole numbers are Int and halves are Float, so open and closed
// bounds on the generator's values are told apart.
func Grid(attrs ...ir.Attribute) []Point {
	var axis []ir.Value
	for i := -2; i <= 10; i++ {
		if i%2 == 0 {
			axis = append(axis, ir.Int(i/2))
		} else {
			axis = append(axis, ir.Float(float64(i)/2))
		}
	}
	points := []Point{{}}
	for _, a := range attrs {
		var next []Point
		for _, p := range points {
			for _, v := range axis {
				q := make(Point, len(p)+1)
				for k, pv := range p {
					q[k] = pv
				}
				q[a] = v
				next = append(next, q)
			}
		}
		points = next
	}
	return points
}
