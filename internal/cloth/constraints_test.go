package cloth

import (
	"testing"

	"cogentcore.org/core/math32"
)

func TestDistanceConstraintCount(t *testing.T) {
	// 3x3 grid: 8 triangles, 16 unique edges
	// (12 axis-aligned + 4 diagonals).
	s := gridState(t, 3, 3, 1, 1, 0)
	c := GenerateDistanceConstraints(s, 0)

	if c.Len() != 16 {
		t.Errorf("got %d distance constraints, want 16", c.Len())
	}
}

func TestDistanceConstraintRestLengths(t *testing.T) {
	s := gridState(t, 3, 3, 1, 1, 0)
	c := GenerateDistanceConstraints(s, 0.5)

	for k := 0; k < c.Len(); k++ {
		i1, i2 := c.Parts[k*2], c.Parts[k*2+1]
		want := s.Positions[i1].DistanceTo(s.Positions[i2])
		if math32.Abs(c.RestLengths[k]-want) > 1e-6 {
			t.Errorf("constraint %d: rest %g, want %g", k, c.RestLengths[k], want)
		}
		if c.Compliances[k] != 0.5 {
			t.Errorf("constraint %d: compliance %g, want 0.5", k, c.Compliances[k])
		}
	}
}

func TestDistanceConstraintSkipsDegenerate(t *testing.T) {
	// Two coincident vertices sharing a triangle.
	positions := []float32{0, 0, 0, 0, 0, 0, 1, 0, 0}
	s, err := NewState(positions, []uint32{0, 1, 2}, nil)
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	c := GenerateDistanceConstraints(s, 0)

	for k := 0; k < c.Len(); k++ {
		if c.RestLengths[k] < 1e-6 {
			t.Errorf("constraint %d has degenerate rest length %g", k, c.RestLengths[k])
		}
	}
}

func TestBendingConstraintsInteriorEdgesOnly(t *testing.T) {
	// 2x2 grid: one quad, two triangles, one shared (interior) edge.
	s := gridState(t, 2, 2, 1, 1, 0)
	c := GenerateBendingConstraints(s, 1)

	if c.Len() != 1 {
		t.Fatalf("got %d bending constraints, want 1", c.Len())
	}
	// The shared diagonal's wings are the two off-diagonal corners.
	w0, w1 := c.Parts[0], c.Parts[1]
	if !(w0 == 0 && w1 == 3 || w0 == 3 && w1 == 0) {
		t.Errorf("wings (%d,%d), want corners 0 and 3", w0, w1)
	}
}

func TestBendingUVAlignedPairsStiffened(t *testing.T) {
	// One quad whose wing pair (vertices 0 and 3) runs straight along u.
	positions := []float32{
		0, 0, 0,
		1, 0, 0,
		0, 0, 1,
		1, 0, 1,
	}
	indices := []uint32{0, 2, 1, 1, 2, 3}
	uvs := []float32{
		0, 0.5,
		0.5, 0,
		0.5, 1,
		1, 0.5,
	}
	s, err := NewState(positions, indices, uvs)
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}

	c := GenerateBendingConstraints(s, 1)
	if c.Len() != 1 {
		t.Fatalf("got %d bending constraints, want 1", c.Len())
	}
	if c.Compliances[0] != 0.5 {
		t.Errorf("u-aligned wing pair compliance %g, want 0.5", c.Compliances[0])
	}

	// Without UVs the same mesh keeps the full compliance.
	s2, err := NewState(positions, indices, nil)
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	c2 := GenerateBendingConstraints(s2, 1)
	if c2.Compliances[0] != 1 {
		t.Errorf("no-UV wing pair compliance %g, want 1", c2.Compliances[0])
	}
}

func TestAreaConstraintCount(t *testing.T) {
	s := gridState(t, 3, 3, 1, 1, 0)
	c := GenerateAreaConstraints(s)

	if c.Len() != 8 {
		t.Errorf("got %d area constraints, want 8", c.Len())
	}
	// 0.5 m grid spacing, right triangles of half a quad each.
	want := float32(0.5 * 0.5 * 0.5)
	for k := 0; k < c.Len(); k++ {
		if math32.Abs(c.RestAreas[k]-want) > 1e-6 {
			t.Errorf("constraint %d: rest area %g, want %g", k, c.RestAreas[k], want)
		}
	}
}

func TestAreaConstraintSkipsDegenerate(t *testing.T) {
	// Second triangle is a zero-area sliver.
	positions := []float32{
		0, 0, 0,
		1, 0, 0,
		0, 0, 1,
		2, 0, 0,
	}
	indices := []uint32{0, 2, 1, 0, 1, 3}
	s, err := NewState(positions, indices, nil)
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	c := GenerateAreaConstraints(s)
	if c.Len() != 1 {
		t.Errorf("got %d area constraints, want 1 (sliver dropped)", c.Len())
	}
}
