package cloth

import "cogentcore.org/core/math32"

const pinnedEpsilon = 1e-9

// integrate advances every mobile particle one substep of Verlet
// integration. The implied velocity is scaled by damping and drag, then
// gravity plus any accumulated external force is applied over dt².
// prevPos is snapshotted before pos is overwritten; pinned particles
// (inverse mass below epsilon) are untouched.
func integrate(s *State, gravity math32.Vector3, damping, drag float32, forces []math32.Vector3, dt float32) {
	dtSq := dt * dt
	velScale := damping * (1 - drag)

	for i := 0; i < s.Count; i++ {
		w := s.InvMass[i]
		if w < pinnedEpsilon {
			continue
		}

		pos := s.Positions[i]
		velocity := pos.Sub(s.PrevPos[i]).MulScalar(velScale)

		accel := gravity
		if forces != nil {
			accel = accel.Add(forces[i].MulScalar(w))
		}

		s.PrevPos[i] = pos
		s.Positions[i] = pos.Add(velocity).Add(accel.MulScalar(dtSq))
	}
}

// aerodynamics accumulates per-triangle wind drag and lift forces into a
// per-particle force buffer. Drag opposes the velocity component normal
// to the surface, lift (skin friction) the tangential one; each scales
// with triangle area and is split evenly across the three vertices.
type aerodynamics struct {
	DragCoeff float32
	LiftCoeff float32
	Wind      math32.Vector3

	forces []math32.Vector3
}

func (a *aerodynamics) apply(s *State, dt float32) []math32.Vector3 {
	if a.DragCoeff == 0 && a.LiftCoeff == 0 && a.Wind.LengthSquared() == 0 {
		return nil
	}

	if len(a.forces) != s.Count {
		a.forces = make([]math32.Vector3, s.Count)
	} else {
		for i := range a.forces {
			a.forces[i] = math32.Vector3{}
		}
	}

	for t := 0; t < len(s.Indices); t += 3 {
		i0 := s.Indices[t]
		i1 := s.Indices[t+1]
		i2 := s.Indices[t+2]

		p0 := s.Positions[i0]
		p1 := s.Positions[i1]
		p2 := s.Positions[i2]

		v0 := p0.Sub(s.PrevPos[i0])
		v1 := p1.Sub(s.PrevPos[i1])
		v2 := p2.Sub(s.PrevPos[i2])
		triVel := v0.Add(v1).Add(v2).DivScalar(3 * dt)

		relVel := triVel.Sub(a.Wind)
		if relVel.LengthSquared() < 1e-6 {
			continue
		}

		cross := p1.Sub(p0).Cross(p2.Sub(p0))
		areaX2 := cross.Length()
		if areaX2 < 1e-6 {
			continue
		}
		area := areaX2 * 0.5
		normal := cross.DivScalar(areaX2)

		vDotN := relVel.Dot(normal)
		vNormal := normal.MulScalar(vDotN)
		vTangent := relVel.Sub(vNormal)

		fDrag := vNormal.MulScalar(-0.5 * a.DragCoeff * area * vNormal.Length())
		fLift := vTangent.MulScalar(-0.5 * a.LiftCoeff * area * vTangent.Length())

		perVert := fDrag.Add(fLift).DivScalar(3)
		a.forces[i0] = a.forces[i0].Add(perVert)
		a.forces[i1] = a.forces[i1].Add(perVert)
		a.forces[i2] = a.forces[i2].Add(perVert)
	}

	return a.forces
}
