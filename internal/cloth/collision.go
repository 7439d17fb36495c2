package cloth

import "cogentcore.org/core/math32"

// Collision resolver: broad phase over the static grid, hybrid
// continuous + discrete narrow phase, and a contact projection pass with
// Coulomb friction that runs inside the solver iteration loop.

// contact is one particle-surface interaction found by the narrow phase.
type contact struct {
	particle int
	normal   math32.Vector3
	surface  math32.Vector3
}

type collisionResolver struct {
	contacts []contact

	// Broad-phase candidate table, packed (offset, count) per particle.
	candidates    []uint32
	candOffsets   []int
	candCounts    []int
	queryBuf      []uint32
	querySeen     map[uint32]struct{}
	candCapacity  int

	// discreteRadius bounds the closest-point search around a particle.
	discreteRadius float32
}

func newCollisionResolver(particleCount int) *collisionResolver {
	return &collisionResolver{
		contacts:       make([]contact, 0, 3000),
		candidates:     make([]uint32, 0, 10000),
		candOffsets:    make([]int, particleCount),
		candCounts:     make([]int, particleCount),
		queryBuf:       make([]uint32, 0, 64),
		querySeen:      make(map[uint32]struct{}, 64),
		candCapacity:   10000,
		discreteRadius: 0.05,
	}
}

// broadPhase refreshes the candidate triangle lists. Runs once per frame:
// the collider is static, so candidates only change as far as the cloth
// travels, and the query radius already covers one frame of motion.
func (r *collisionResolver) broadPhase(s *State, collider *MeshCollider) {
	r.candidates = r.candidates[:0]

	for i := 0; i < s.Count; i++ {
		if s.InvMass[i] < pinnedEpsilon {
			r.candCounts[i] = 0
			continue
		}

		pos := s.Positions[i]
		prev := s.PrevPos[i]
		radius := 0.02 + pos.DistanceTo(prev)

		if !collider.Grid.Contains(pos) && !collider.Grid.Contains(prev) {
			r.candCounts[i] = 0
			continue
		}

		r.queryBuf = collider.Grid.Query(pos, radius, r.queryBuf[:0], r.querySeen)

		start := len(r.candidates)
		if start+len(r.queryBuf) > r.candCapacity {
			// Capacity guard: drop this particle's candidates rather than
			// grow without bound on a pathological frame.
			r.candCounts[i] = 0
			continue
		}
		r.candidates = append(r.candidates, r.queryBuf...)
		r.candOffsets[i] = start
		r.candCounts[i] = len(r.queryBuf)
	}
}

// narrowPhase tests each particle against its candidate triangles and
// records the winning contact. Continuous (segment) hits take priority
// with earliest time winning; otherwise the closest discrete surface
// point within the detection radius wins, carrying the smooth
// barycentric-interpolated normal. Deep-penetration classification flips
// the discrete normal when the particle sits behind the surface, so the
// resolve pass always pushes outward.
//
// The inward normal velocity is clamped here ("airbag"): a particle may
// approach the surface no faster than 90% of the margin per substep.
func (r *collisionResolver) narrowPhase(s *State, collider *MeshCollider, margin, dt float32) {
	r.contacts = r.contacts[:0]

	maxV := margin * 0.9 / dt

	for i := 0; i < s.Count; i++ {
		count := r.candCounts[i]
		if count == 0 {
			continue
		}
		offset := r.candOffsets[i]

		pos := s.Positions[i]
		prev := s.PrevPos[i]

		var bestPoint, bestNormal math32.Vector3
		minMetric := float32(math32.Inf(1))
		found := false
		continuous := false

		for j := 0; j < count; j++ {
			triIdx := int(r.candidates[offset+j])
			tri := &collider.Triangles[triIdx]

			// 1. Continuous: did the segment prev->pos cross the triangle?
			if hitPoint, hitNormal, t, ok := tri.IntersectSegment(prev, pos); ok {
				// First crossing supersedes any discrete hit; among
				// crossings the earliest impact time wins.
				if !continuous || t < minMetric {
					bestPoint = hitPoint
					bestNormal = hitNormal
					minMetric = t
					continuous = true
					found = true
				}
				continue
			}

			// 2. Discrete: closest surface point within the radius.
			if continuous {
				continue // a real crossing beats any proximity hit
			}
			closest, bary := tri.ClosestPoint(pos)
			distSq := closest.DistanceToSquared(pos)
			if distSq >= r.discreteRadius*r.discreteRadius || distSq >= minMetric {
				continue
			}

			normal := collider.SmoothNormal(triIdx, bary)
			// Inside/outside via the plane normal: if the particle is
			// behind the surface, push along the outward triangle normal
			// regardless of how deep it sits.
			if pos.Sub(closest).Dot(tri.Normal) < 0 {
				normal = tri.Normal
			}

			bestPoint = closest
			bestNormal = normal
			minMetric = distSq
			found = true
		}

		if !found {
			continue
		}

		velocity := pos.Sub(prev).DivScalar(dt)
		vNormal := velocity.Dot(bestNormal)
		if vNormal < -maxV {
			vTangent := velocity.Sub(bestNormal.MulScalar(vNormal))
			clamped := vTangent.Add(bestNormal.MulScalar(-maxV))
			s.PrevPos[i] = pos.Sub(clamped.MulScalar(dt))
		}

		r.contacts = append(r.contacts, contact{
			particle: i,
			normal:   bestNormal,
			surface:  bestPoint,
		})
	}
}

// resolveContacts projects particles out of their recorded contacts.
// Runs every solver iteration, after the internal constraint types.
// The correction is never Chebyshev-accelerated.
func (r *collisionResolver) resolveContacts(s *State, margin, stiffness, staticFriction, dynamicFriction float32) {
	for _, ct := range r.contacts {
		i := ct.particle
		pos := s.Positions[i]

		projection := pos.Sub(ct.surface).Dot(ct.normal)
		if projection >= margin {
			continue
		}

		// 1. Position correction toward surface + margin. Full stiffness
		// when the particle is behind the surface (tunneling), configured
		// stiffness for soft surface contact.
		penetration := margin - projection
		k := stiffness
		if projection < 0 {
			k = 1.0
		}
		pos = pos.Add(ct.normal.MulScalar(penetration * k))
		s.Positions[i] = pos

		// 2. Coulomb friction on the implied velocity: full stick below
		// the static threshold, proportional slip above it.
		velocity := pos.Sub(s.PrevPos[i])
		vnMag := velocity.Dot(ct.normal)
		vn := ct.normal.MulScalar(vnMag)
		vt := velocity.Sub(vn)
		vtLen := vt.Length()

		frictionFactor := float32(0)
		if vtLen > 1e-9 {
			if vtLen < penetration*staticFriction {
				frictionFactor = 1.0
			} else {
				frictionFactor = penetration * dynamicFriction / vtLen
				if frictionFactor > 1 {
					frictionFactor = 1
				}
			}
		}
		newVt := vt.MulScalar(1 - frictionFactor)

		// 3. Inelastic normal response: inward normal velocity is zeroed.
		newVn := vn
		if vnMag < 0 {
			newVn = math32.Vector3{}
		}

		// Rewrite prev so the implied velocity matches the correction.
		s.PrevPos[i] = pos.Sub(newVn.Add(newVt))
	}
}
