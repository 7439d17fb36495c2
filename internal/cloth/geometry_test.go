package cloth

import (
	"testing"

	"cogentcore.org/core/math32"
)

func xzTriangle() ColliderTriangle {
	return ColliderTriangle{
		V0:     math32.Vec3(0, 0, 0),
		V1:     math32.Vec3(1, 0, 0),
		V2:     math32.Vec3(0, 0, 1),
		Normal: math32.Vec3(0, 1, 0),
	}
}

func TestClosestPointInterior(t *testing.T) {
	tri := xzTriangle()
	p := math32.Vec3(0.25, 1, 0.25)

	closest, bary := tri.ClosestPoint(p)
	if closest.DistanceTo(math32.Vec3(0.25, 0, 0.25)) > 1e-6 {
		t.Errorf("closest %v, want projection (0.25,0,0.25)", closest)
	}
	if math32.Abs(bary[0]+bary[1]+bary[2]-1) > 1e-5 {
		t.Errorf("barycentric %v does not sum to 1", bary)
	}
}

func TestClosestPointVertexRegions(t *testing.T) {
	tri := xzTriangle()

	cases := []struct {
		p    math32.Vector3
		want math32.Vector3
		bary [3]float32
	}{
		{math32.Vec3(-1, 0.5, -1), tri.V0, [3]float32{1, 0, 0}},
		{math32.Vec3(3, -0.5, -1), tri.V1, [3]float32{0, 1, 0}},
		{math32.Vec3(-1, 0.2, 3), tri.V2, [3]float32{0, 0, 1}},
	}
	for i, tc := range cases {
		closest, bary := tri.ClosestPoint(tc.p)
		if closest.DistanceTo(tc.want) > 1e-6 {
			t.Errorf("case %d: closest %v, want %v", i, closest, tc.want)
		}
		if bary != tc.bary {
			t.Errorf("case %d: barycentric %v, want %v", i, bary, tc.bary)
		}
	}
}

func TestClosestPointEdgeRegion(t *testing.T) {
	tri := xzTriangle()
	// Beyond the V0-V1 edge at its midpoint.
	closest, bary := tri.ClosestPoint(math32.Vec3(0.5, 0, -2))

	if closest.DistanceTo(math32.Vec3(0.5, 0, 0)) > 1e-6 {
		t.Errorf("closest %v, want edge midpoint (0.5,0,0)", closest)
	}
	if bary[2] != 0 {
		t.Errorf("edge point has nonzero third barycentric %v", bary)
	}
}

func TestIntersectSegmentHit(t *testing.T) {
	tri := xzTriangle()
	p1 := math32.Vec3(0.2, 1, 0.2)
	p2 := math32.Vec3(0.2, -1, 0.2)

	point, normal, tt, ok := tri.IntersectSegment(p1, p2)
	if !ok {
		t.Fatal("segment through the triangle reported no hit")
	}
	if math32.Abs(tt-0.5) > 1e-5 {
		t.Errorf("t %g, want 0.5", tt)
	}
	if point.DistanceTo(math32.Vec3(0.2, 0, 0.2)) > 1e-5 {
		t.Errorf("hit point %v, want (0.2,0,0.2)", point)
	}
	// Normal must oppose the segment direction (downward ray, +Y normal).
	if normal.Y < 0.999 {
		t.Errorf("hit normal %v, want +Y", normal)
	}
}

func TestIntersectSegmentOpposesDirection(t *testing.T) {
	tri := xzTriangle()
	// Upward through the triangle: the reported normal flips to -Y.
	_, normal, _, ok := tri.IntersectSegment(math32.Vec3(0.2, -1, 0.2), math32.Vec3(0.2, 1, 0.2))
	if !ok {
		t.Fatal("no hit")
	}
	if normal.Y > -0.999 {
		t.Errorf("normal %v, want -Y against an upward segment", normal)
	}
}

func TestIntersectSegmentMisses(t *testing.T) {
	tri := xzTriangle()

	// Outside the triangle.
	if _, _, _, ok := tri.IntersectSegment(math32.Vec3(2, 1, 2), math32.Vec3(2, -1, 2)); ok {
		t.Error("hit reported outside the triangle")
	}
	// Stops short of the plane.
	if _, _, _, ok := tri.IntersectSegment(math32.Vec3(0.2, 1, 0.2), math32.Vec3(0.2, 0.5, 0.2)); ok {
		t.Error("hit reported for a segment ending above the plane")
	}
	// Parallel to the plane.
	if _, _, _, ok := tri.IntersectSegment(math32.Vec3(0, 0.5, 0), math32.Vec3(1, 0.5, 0)); ok {
		t.Error("hit reported for a parallel segment")
	}
}

func TestAABB(t *testing.T) {
	tri := ColliderTriangle{
		V0: math32.Vec3(1, -2, 3),
		V1: math32.Vec3(-1, 4, 0),
		V2: math32.Vec3(0, 0, -3),
	}
	min, max := tri.AABB()
	if min != math32.Vec3(-1, -2, -3) || max != math32.Vec3(1, 4, 3) {
		t.Errorf("AABB (%v,%v)", min, max)
	}
}
