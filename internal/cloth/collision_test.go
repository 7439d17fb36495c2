package cloth

import (
	"testing"

	"cogentcore.org/core/math32"
)

const collisionDt = float32(1.0 / 60.0)

// runPhases drives one broad+narrow pass against a floor collider.
func runPhases(s *State, c *MeshCollider, margin float32) *collisionResolver {
	r := newCollisionResolver(s.Count)
	r.broadPhase(s, c)
	r.narrowPhase(s, c, margin, collisionDt)
	return r
}

func TestDiscreteContactProjectsToMargin(t *testing.T) {
	const margin = 0.01
	c := floorCollider(t, 0, margin)
	s := singleParticleState(t, 0.1, 0.005, 0.1)

	r := runPhases(s, c, margin)
	if len(r.contacts) != 1 {
		t.Fatalf("got %d contacts, want 1", len(r.contacts))
	}
	r.resolveContacts(s, margin, 1.0, 0.5, 0.3)

	if got := s.Positions[0].Y; math32.Abs(got-margin) > 1e-5 {
		t.Errorf("resolved height %g, want %g", got, margin)
	}
}

func TestContinuousContactCatchesTunneling(t *testing.T) {
	const margin = 0.01
	c := floorCollider(t, 0, margin)
	s := singleParticleState(t, 0.2, -0.05, 0)
	s.PrevPos[0] = math32.Vec3(0.2, 0.05, 0)

	r := runPhases(s, c, margin)
	if len(r.contacts) != 1 {
		t.Fatalf("got %d contacts, want 1", len(r.contacts))
	}
	if r.contacts[0].normal.Y <= 0 {
		t.Errorf("contact normal %v, want upward", r.contacts[0].normal)
	}
	if r.contacts[0].surface.Y != 0 {
		t.Errorf("contact surface at y=%g, want 0", r.contacts[0].surface.Y)
	}

	r.resolveContacts(s, margin, 0.2, 0.5, 0.3)
	// Behind the surface the projection runs at full stiffness no matter
	// what is configured, so the particle comes all the way back out.
	if got := s.Positions[0].Y; math32.Abs(got-margin) > 1e-5 {
		t.Errorf("resolved height %g, want %g", got, margin)
	}
}

func TestNarrowPhaseClampsApproachVelocity(t *testing.T) {
	const margin = 0.01
	c := floorCollider(t, 0, margin)
	s := singleParticleState(t, 0, 0.03, 0)
	s.PrevPos[0] = math32.Vec3(0, 0.2, 0)

	runPhases(s, c, margin)

	maxV := margin * 0.9 / collisionDt
	implied := (s.Positions[0].Y - s.PrevPos[0].Y) / collisionDt
	if math32.Abs(implied+maxV) > 1e-4 {
		t.Errorf("implied normal velocity %g after clamp, want %g", implied, -maxV)
	}
}

func TestContactAboveMarginNotResolved(t *testing.T) {
	const margin = 0.01
	c := floorCollider(t, 0, margin)
	s := singleParticleState(t, 0, 0.03, 0)

	r := runPhases(s, c, margin)
	if len(r.contacts) != 1 {
		t.Fatalf("got %d contacts, want 1", len(r.contacts))
	}
	r.resolveContacts(s, margin, 1.0, 0.5, 0.3)

	if got := s.Positions[0].Y; got != 0.03 {
		t.Errorf("particle moved to y=%g, want untouched at 0.03", got)
	}
}

func TestStaticFrictionSticks(t *testing.T) {
	const margin = 0.01
	c := floorCollider(t, 0, margin)
	s := singleParticleState(t, 0.0005, 0.005, 0)
	s.PrevPos[0] = math32.Vec3(0, 0.005, 0)

	r := runPhases(s, c, margin)
	r.resolveContacts(s, margin, 1.0, 10.0, 2.0)

	// Tangential speed below the static threshold: implied velocity
	// along the surface drops to zero.
	if dx := s.Positions[0].X - s.PrevPos[0].X; math32.Abs(dx) > 1e-6 {
		t.Errorf("tangential velocity %g after stick, want 0", dx)
	}
}

func TestDynamicFrictionSlows(t *testing.T) {
	const margin = 0.01
	c := floorCollider(t, 0, margin)
	s := singleParticleState(t, 0.1, 0.005, 0)
	s.PrevPos[0] = math32.Vec3(0, 0.005, 0)

	r := runPhases(s, c, margin)
	r.resolveContacts(s, margin, 1.0, 0.5, 0.3)

	dx := s.Positions[0].X - s.PrevPos[0].X
	if dx <= 0 || dx >= 0.1 {
		t.Errorf("tangential velocity %g, want slowed but still sliding", dx)
	}
}

func TestBroadPhaseSkipsDistantParticles(t *testing.T) {
	c := floorCollider(t, 0, 0.01)
	s := singleParticleState(t, 0, 0.5, 0)

	r := runPhases(s, c, 0.01)
	if len(r.contacts) != 0 {
		t.Errorf("got %d contacts for a particle far above the grid, want 0", len(r.contacts))
	}
}

func TestBroadPhaseSkipsPinned(t *testing.T) {
	c := floorCollider(t, 0, 0.01)
	s := singleParticleState(t, 0, 0.005, 0)
	s.Pin(0)

	r := runPhases(s, c, 0.01)
	if len(r.contacts) != 0 {
		t.Errorf("got %d contacts for a pinned particle, want 0", len(r.contacts))
	}
}
