package cloth

import (
	"testing"

	"cogentcore.org/core/math32"
)

func TestChebyshevOmegaRamp(t *testing.T) {
	const rho = 0.94

	omega := chebyshevOmega(0, rho, 1)
	if omega != 1 {
		t.Errorf("iteration 0: omega %g, want 1", omega)
	}

	omega = chebyshevOmega(1, rho, omega)
	want := float32(2 / (2 - rho*rho))
	if math32.Abs(omega-want) > 1e-6 {
		t.Errorf("iteration 1: omega %g, want %g", omega, want)
	}

	// The recurrence converges toward 2/(1+sqrt(1-rho^2)).
	for i := 2; i < 50; i++ {
		omega = chebyshevOmega(i, rho, omega)
	}
	limit := 2 / (1 + math32.Sqrt(1-rho*rho))
	if math32.Abs(omega-limit) > 1e-3 {
		t.Errorf("omega %g did not converge to %g", omega, limit)
	}
}

func TestChebyshevOmegaDisabled(t *testing.T) {
	for i := 0; i < 5; i++ {
		if omega := chebyshevOmega(i, 0, 1); omega != 1 {
			t.Errorf("iteration %d: rho 0 gave omega %g, want 1", i, omega)
		}
	}
}

func TestSolvePairPinnedConvergence(t *testing.T) {
	// Pinned particle at origin, free particle stretched to 2x rest.
	s, err := NewState([]float32{0, 0, 0, 2, 0, 0}, nil, nil)
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	s.Pin(0)

	c := &PairConstraints{
		Parts:       []int32{0, 1},
		RestLengths: []float32{1},
		Compliances: []float32{0},
		Offsets:     []int{0, 1},
	}

	solvePairs(s, c, 1, 1.0/60, false)

	got := s.Positions[0].DistanceTo(s.Positions[1])
	if math32.Abs(got-1) > 1e-5 {
		t.Errorf("distance %g after projection, want 1", got)
	}
	if s.Positions[0] != (math32.Vector3{}) {
		t.Errorf("pinned particle moved to %v", s.Positions[0])
	}
}

func TestSolvePairCentroidConserved(t *testing.T) {
	s, err := NewState([]float32{0, 0, 0, 3, 0, 0}, nil, nil)
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	c := &PairConstraints{
		Parts:       []int32{0, 1},
		RestLengths: []float32{1},
		Compliances: []float32{0},
		Offsets:     []int{0, 1},
	}

	before := s.Positions[0].Add(s.Positions[1]).MulScalar(0.5)
	solvePairs(s, c, 1, 1.0/60, false)
	after := s.Positions[0].Add(s.Positions[1]).MulScalar(0.5)

	if before.DistanceTo(after) > 1e-5 {
		t.Errorf("centroid moved from %v to %v", before, after)
	}
	if got := s.Positions[0].DistanceTo(s.Positions[1]); math32.Abs(got-1) > 1e-5 {
		t.Errorf("distance %g, want 1", got)
	}
}

func TestSolvePairRestStateIdempotent(t *testing.T) {
	s := gridState(t, 6, 6, 1, 1, 0)
	c := GenerateDistanceConstraints(s, 0)

	before := append([]math32.Vector3(nil), s.Positions...)
	for i := 0; i < 10; i++ {
		solvePairs(s, c, 1, 1.0/60, false)
	}
	for i := range before {
		if before[i].DistanceTo(s.Positions[i]) > 1e-6 {
			t.Fatalf("particle %d drifted at rest: %v -> %v", i, before[i], s.Positions[i])
		}
	}
}

func TestSolvePairUnilateral(t *testing.T) {
	c := &PairConstraints{
		Parts:       []int32{0, 1},
		RestLengths: []float32{1},
		Compliances: []float32{0},
		Offsets:     []int{0, 1},
	}

	// Compressed below rest: a unilateral (tether) pass must not touch it.
	s, err := NewState([]float32{0, 0, 0, 0.5, 0, 0}, nil, nil)
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	solvePairs(s, c, 1, 1.0/60, true)
	if got := s.Positions[1].X; got != 0.5 {
		t.Errorf("compressed tether moved particle to x=%g", got)
	}

	// Stretched past rest: it must pull back.
	s2, err := NewState([]float32{0, 0, 0, 1.5, 0, 0}, nil, nil)
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	solvePairs(s2, c, 1, 1.0/60, true)
	if got := s2.Positions[0].DistanceTo(s2.Positions[1]); math32.Abs(got-1) > 1e-5 {
		t.Errorf("stretched tether distance %g, want 1", got)
	}
}

func TestSolvePairCompliance(t *testing.T) {
	// Nonzero compliance softens the projection: one pass removes only
	// wSum/(wSum+alpha) of the error.
	s, err := NewState([]float32{0, 0, 0, 2, 0, 0}, nil, nil)
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	s.Pin(0)

	const compliance = 1e-3
	const dt = float32(1.0 / 60)
	c := &PairConstraints{
		Parts:       []int32{0, 1},
		RestLengths: []float32{1},
		Compliances: []float32{compliance},
		Offsets:     []int{0, 1},
	}
	solvePairs(s, c, 1, dt, false)

	alpha := compliance / (dt * dt)
	wantErr := 1 - 1/(1+alpha) // remaining stretch after one pass, w=1
	got := s.Positions[0].DistanceTo(s.Positions[1]) - 1
	if math32.Abs(got-wantErr) > 1e-4 {
		t.Errorf("remaining error %g, want %g", got, wantErr)
	}
}

func TestSolveAreaRestoresArea(t *testing.T) {
	// Unit right triangle scaled up 1.5x in the plane.
	s, err := NewState([]float32{
		0, 0, 0,
		1.5, 0, 0,
		0, 0, 1.5,
	}, []uint32{0, 1, 2}, nil)
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	c := &TriConstraints{
		Parts:     []int32{0, 1, 2},
		RestAreas: []float32{0.5},
		Offsets:   []int{0, 1},
	}

	for i := 0; i < 50; i++ {
		solveAreas(s, c, 0, 1, 1.0/60)
	}

	cross := s.Positions[1].Sub(s.Positions[0]).Cross(s.Positions[2].Sub(s.Positions[0]))
	area := 0.5 * cross.Length()
	if math32.Abs(area-0.5) > 1e-3 {
		t.Errorf("area %g after projection, want 0.5", area)
	}
}

func TestSolveAreaSinglePassDescends(t *testing.T) {
	// One projection must move the area toward rest, never past the
	// starting error in either direction. A sign flip in the gradient
	// shows up here immediately: the first pass then grows the area.
	s, err := NewState([]float32{
		0, 0, 0,
		1.5, 0, 0,
		0, 0, 1.5,
	}, []uint32{0, 1, 2}, nil)
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	c := &TriConstraints{
		Parts:     []int32{0, 1, 2},
		RestAreas: []float32{0.5},
		Offsets:   []int{0, 1},
	}
	const startArea = float32(1.125)

	solveAreas(s, c, 0, 1, 1.0/60)

	cross := s.Positions[1].Sub(s.Positions[0]).Cross(s.Positions[2].Sub(s.Positions[0]))
	area := 0.5 * cross.Length()
	if area >= startArea {
		t.Fatalf("area grew from %g to %g in one pass", startArea, area)
	}
	if math32.Abs(area-0.5) > 0.5*(startArea-0.5) {
		t.Errorf("area %g after one pass, error did not at least halve from %g", area, startArea)
	}
}

func TestSolveAllPinnedIsNoop(t *testing.T) {
	s, err := NewState([]float32{0, 0, 0, 2, 0, 0}, nil, nil)
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	s.Pin(0)
	s.Pin(1)

	c := &PairConstraints{
		Parts:       []int32{0, 1},
		RestLengths: []float32{1},
		Compliances: []float32{0},
		Offsets:     []int{0, 1},
	}
	solvePairs(s, c, 1, 1.0/60, false)

	if s.Positions[1].X != 2 {
		t.Errorf("pinned particle moved to x=%g", s.Positions[1].X)
	}
}
