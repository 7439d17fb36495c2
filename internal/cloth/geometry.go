package cloth

import "cogentcore.org/core/math32"

// ColliderTriangle is a packed, world-space triangle of the body mesh.
// Normal is the averaged, re-normalized vertex normal of the source mesh
// (or the face normal when the average is ill-conditioned).
type ColliderTriangle struct {
	V0, V1, V2 math32.Vector3
	Normal     math32.Vector3
	Margin     float32
}

// AABB returns the triangle's axis-aligned bounding box.
func (t *ColliderTriangle) AABB() (min, max math32.Vector3) {
	min = t.V0.Min(t.V1).Min(t.V2)
	max = t.V0.Max(t.V1).Max(t.V2)
	return min, max
}

// ClosestPoint returns the closest point on the triangle to p and its
// barycentric coordinates (u,v,w), following Ericson's region tests.
func (t *ColliderTriangle) ClosestPoint(p math32.Vector3) (math32.Vector3, [3]float32) {
	ab := t.V1.Sub(t.V0)
	ac := t.V2.Sub(t.V0)
	ap := p.Sub(t.V0)

	d1 := ab.Dot(ap)
	d2 := ac.Dot(ap)
	if d1 <= 0 && d2 <= 0 {
		return t.V0, [3]float32{1, 0, 0}
	}

	bp := p.Sub(t.V1)
	d3 := ab.Dot(bp)
	d4 := ac.Dot(bp)
	if d3 >= 0 && d4 <= d3 {
		return t.V1, [3]float32{0, 1, 0}
	}

	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		v := d1 / (d1 - d3)
		return t.V0.Add(ab.MulScalar(v)), [3]float32{1 - v, v, 0}
	}

	cp := p.Sub(t.V2)
	d5 := ab.Dot(cp)
	d6 := ac.Dot(cp)
	if d6 >= 0 && d5 <= d6 {
		return t.V2, [3]float32{0, 0, 1}
	}

	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		w := d2 / (d2 - d6)
		return t.V0.Add(ac.MulScalar(w)), [3]float32{1 - w, 0, w}
	}

	va := d3*d6 - d5*d4
	if va <= 0 && (d4-d3) >= 0 && (d5-d6) >= 0 {
		w := (d4 - d3) / ((d4 - d3) + (d5 - d6))
		return t.V1.Add(t.V2.Sub(t.V1).MulScalar(w)), [3]float32{0, 1 - w, w}
	}

	denom := 1 / (va + vb + vc)
	v := vb * denom
	w := vc * denom
	u := 1 - v - w
	return t.V0.Add(ab.MulScalar(v)).Add(ac.MulScalar(w)), [3]float32{u, v, w}
}

// IntersectSegment runs Möller-Trumbore between p1->p2 and the triangle.
// On a hit it returns the intersection point, a normal oriented against
// the segment direction, the parametric time t in (0,1), and true.
func (t *ColliderTriangle) IntersectSegment(p1, p2 math32.Vector3) (math32.Vector3, math32.Vector3, float32, bool) {
	const epsilon = 1e-7

	edge1 := t.V1.Sub(t.V0)
	edge2 := t.V2.Sub(t.V0)
	ray := p2.Sub(p1)
	h := ray.Cross(edge2)
	a := edge1.Dot(h)

	if a > -epsilon && a < epsilon {
		return math32.Vector3{}, math32.Vector3{}, 0, false // parallel
	}

	f := 1 / a
	s := p1.Sub(t.V0)
	u := f * s.Dot(h)
	if u < 0 || u > 1 {
		return math32.Vector3{}, math32.Vector3{}, 0, false
	}

	q := s.Cross(edge1)
	v := f * ray.Dot(q)
	if v < 0 || u+v > 1 {
		return math32.Vector3{}, math32.Vector3{}, 0, false
	}

	tt := f * edge2.Dot(q)
	if tt <= epsilon || tt >= 1 {
		return math32.Vector3{}, math32.Vector3{}, 0, false
	}

	point := p1.Add(ray.MulScalar(tt))
	normal := edge1.Cross(edge2).Normal()
	if normal.Dot(ray) >= 0 {
		normal = normal.Negate()
	}
	return point, normal, tt, true
}
