package cloth

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// XPBD constraint projection kernels.
//
// Within one color batch no two constraints share a particle, so a batch
// can be split across goroutines (or GPU invocations) with plain
// position writes. Batches of different types, and successive batches of
// the same type, are sequential dependencies and run in order.
//
// Chebyshev acceleration: corrections of internal constraints are scaled
// by omega, ramped per iteration from the configured spectral radius.
// Collision projection is never omega-scaled; overshooting a contact
// reintroduces penetration.

// chebyshevOmega returns the omega for solver iteration i (0-based).
func chebyshevOmega(i int, rho, prev float32) float32 {
	switch {
	case rho == 0:
		return 1
	case i == 0:
		return 1
	case i == 1:
		return 2 / (2 - rho*rho)
	default:
		return 4 / (4 - rho*rho*prev)
	}
}

// parallelThreshold is the batch size below which the goroutine fan-out
// costs more than it saves.
const parallelThreshold = 2048

// forBatch runs fn over [start,end) either inline or chunked across
// GOMAXPROCS goroutines. Coloring guarantees the chunks write disjoint
// particles.
func forBatch(start, end int, fn func(from, to int)) {
	count := end - start
	if count < parallelThreshold {
		fn(start, end)
		return
	}

	workers := runtime.GOMAXPROCS(0)
	chunk := (count + workers - 1) / workers

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		from := start + w*chunk
		if from >= end {
			break
		}
		to := from + chunk
		if to > end {
			to = end
		}
		g.Go(func() error {
			fn(from, to)
			return nil
		})
	}
	_ = g.Wait() // workers never return errors
}

// solvePairs projects one full pass of a pair-constraint set. When
// unilateral is true the constraint only acts while stretched past its
// rest length (tethers).
func solvePairs(s *State, c *PairConstraints, omega, dt float32, unilateral bool) {
	dtSqInv := 1 / (dt * dt)

	for b := 0; b < c.NumBatches(); b++ {
		forBatch(c.Offsets[b], c.Offsets[b+1], func(from, to int) {
			for k := from; k < to; k++ {
				solvePair(s, c, k, dtSqInv, omega, unilateral)
			}
		})
	}
}

func solvePair(s *State, c *PairConstraints, k int, dtSqInv, omega float32, unilateral bool) {
	i1 := c.Parts[k*2]
	i2 := c.Parts[k*2+1]
	w1 := s.InvMass[i1]
	w2 := s.InvMass[i2]
	wSum := w1 + w2
	if wSum == 0 {
		return
	}

	delta := s.Positions[i1].Sub(s.Positions[i2])
	length := delta.Length()
	if length < 1e-6 {
		return // coincident particles, no usable gradient this iteration
	}

	rest := c.RestLengths[k]
	if unilateral && length <= rest {
		return
	}

	cErr := length - rest
	alpha := c.Compliances[k] * dtSqInv
	denom := wSum + alpha
	if denom < 1e-8 {
		return
	}
	deltaLambda := -cErr / denom

	correction := delta.DivScalar(length).MulScalar(deltaLambda * omega)
	if w1 > 0 {
		s.Positions[i1] = s.Positions[i1].Add(correction.MulScalar(w1))
	}
	if w2 > 0 {
		s.Positions[i2] = s.Positions[i2].Sub(correction.MulScalar(w2))
	}
}

// solveAreas projects one pass of the triangle area constraints.
// The gradient of the area with respect to each vertex is half the cross
// product of the unit normal with the opposite edge.
func solveAreas(s *State, c *TriConstraints, compliance, omega, dt float32) {
	alpha := compliance / (dt * dt)

	for b := 0; b < c.NumBatches(); b++ {
		forBatch(c.Offsets[b], c.Offsets[b+1], func(from, to int) {
			for k := from; k < to; k++ {
				solveArea(s, c, k, alpha, omega)
			}
		})
	}
}

func solveArea(s *State, c *TriConstraints, k int, alpha, omega float32) {
	i0 := c.Parts[k*3]
	i1 := c.Parts[k*3+1]
	i2 := c.Parts[k*3+2]

	w0 := s.InvMass[i0]
	w1 := s.InvMass[i1]
	w2 := s.InvMass[i2]
	if w0+w1+w2 == 0 {
		return
	}

	p0 := s.Positions[i0]
	p1 := s.Positions[i1]
	p2 := s.Positions[i2]

	cross := p1.Sub(p0).Cross(p2.Sub(p0))
	area := 0.5 * cross.Length()

	cErr := area - c.RestAreas[k]
	if cErr > -1e-6 && cErr < 1e-6 {
		return
	}
	if area < 1e-9 {
		return
	}

	n := cross.DivScalar(2 * area)

	grad0 := n.Cross(p2.Sub(p1)).MulScalar(0.5)
	grad1 := n.Cross(p0.Sub(p2)).MulScalar(0.5)
	grad2 := n.Cross(p1.Sub(p0)).MulScalar(0.5)

	denom := w0*grad0.LengthSquared() + w1*grad1.LengthSquared() + w2*grad2.LengthSquared()
	if denom < 1e-9 {
		return
	}

	deltaLambda := -cErr / (denom + alpha) * omega

	if w0 > 0 {
		s.Positions[i0] = p0.Add(grad0.MulScalar(deltaLambda * w0))
	}
	if w1 > 0 {
		s.Positions[i1] = p1.Add(grad1.MulScalar(deltaLambda * w1))
	}
	if w2 > 0 {
		s.Positions[i2] = p2.Add(grad2.MulScalar(deltaLambda * w2))
	}
}
