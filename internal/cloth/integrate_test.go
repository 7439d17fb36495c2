package cloth

import (
	"testing"

	"cogentcore.org/core/math32"
)

func TestIntegrateGravityStep(t *testing.T) {
	s := singleParticleState(t, 0, 1, 0)
	gravity := math32.Vec3(0, -9.81, 0)
	const dt = float32(1.0 / 60)

	// At rest, one step falls exactly g*dt^2 (no damping loss on zero
	// velocity).
	integrate(s, gravity, 1, 0, nil, dt)

	want := 1 - 9.81*dt*dt
	if math32.Abs(s.Positions[0].Y-want) > 1e-6 {
		t.Errorf("y %g after one step, want %g", s.Positions[0].Y, want)
	}
	if s.PrevPos[0].Y != 1 {
		t.Errorf("prev y %g, want 1 (snapshot before move)", s.PrevPos[0].Y)
	}
}

func TestIntegratePinnedParticleUnmoved(t *testing.T) {
	s := singleParticleState(t, 0, 1, 0)
	s.Pin(0)

	integrate(s, math32.Vec3(0, -9.81, 0), 1, 0, nil, 1.0/60)

	if s.Positions[0].Y != 1 {
		t.Errorf("pinned particle fell to y=%g", s.Positions[0].Y)
	}
}

func TestIntegrateDampingScalesVelocity(t *testing.T) {
	s := singleParticleState(t, 0, 0, 0)
	// Implied velocity of +1 m/s in x over dt.
	const dt = float32(1.0 / 60)
	s.PrevPos[0] = math32.Vec3(-1*dt, 0, 0)

	const damping = 0.5
	integrate(s, math32.Vector3{}, damping, 0, nil, dt)

	want := float32(1 * dt * damping)
	if math32.Abs(s.Positions[0].X-want) > 1e-6 {
		t.Errorf("x %g after damped step, want %g", s.Positions[0].X, want)
	}
}

func TestIntegrateExternalForceUsesInvMass(t *testing.T) {
	s, err := NewState([]float32{0, 0, 0, 1, 0, 0}, nil, nil)
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	s.InvMass[1] = 2 // half mass

	const dt = float32(1.0 / 60)
	forces := []math32.Vector3{{X: 1}, {X: 1}}
	integrate(s, math32.Vector3{}, 1, 0, forces, dt)

	dx0 := s.Positions[0].X
	dx1 := s.Positions[1].X - 1
	if math32.Abs(dx1-2*dx0) > 1e-7 {
		t.Errorf("half-mass particle moved %g, want twice %g", dx1, dx0)
	}
}

func TestAerodynamicsZeroCoefficientsSkip(t *testing.T) {
	s := gridState(t, 3, 3, 1, 1, 0)
	a := aerodynamics{}
	if forces := a.apply(s, 1.0/60); forces != nil {
		t.Error("zero-coefficient aerodynamics allocated a force buffer")
	}
}

func TestAerodynamicsDragOpposesMotion(t *testing.T) {
	s := gridState(t, 3, 3, 1, 1, 0)
	const dt = float32(1.0 / 60)

	// Give the whole cloth an upward implied velocity.
	for i := range s.PrevPos {
		s.PrevPos[i] = s.Positions[i].Sub(math32.Vec3(0, 1*dt, 0))
	}

	a := aerodynamics{DragCoeff: 2.0}
	forces := a.apply(s, dt)
	if forces == nil {
		t.Fatal("no forces returned")
	}

	// The cloth normal is +Y and motion is +Y, so drag must push down on
	// every interior particle.
	for i, f := range forces {
		if f.Y > 0 {
			t.Errorf("particle %d: drag force %v points with the motion", i, f)
		}
	}
}
