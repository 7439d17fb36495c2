package cloth

import (
	"cogentcore.org/core/math32"

	"drapesim/internal/logger"
)

// PairConstraints is a batched set of two-particle constraints
// (distance, bending proxy, tether). Index layout is flat: constraint k
// uses particles Parts[2k] and Parts[2k+1]. Built once from the rest
// pose, read-only afterwards.
type PairConstraints struct {
	Parts       []int32
	RestLengths []float32
	Compliances []float32
	Offsets     []int // batch boundaries into the arrays above
}

// TriConstraints is a batched set of triangle area constraints.
type TriConstraints struct {
	Parts     []int32
	RestAreas []float32
	Offsets   []int
}

// NumBatches returns the number of color classes.
func (c *PairConstraints) NumBatches() int { return len(c.Offsets) - 1 }

// Len returns the constraint count.
func (c *PairConstraints) Len() int { return len(c.RestLengths) }

// NumBatches returns the number of color classes.
func (c *TriConstraints) NumBatches() int { return len(c.Offsets) - 1 }

// Len returns the constraint count.
func (c *TriConstraints) Len() int { return len(c.RestAreas) }

func edgeKey(a, b int32) uint64 {
	if a > b {
		a, b = b, a
	}
	return uint64(a)<<32 | uint64(uint32(b))
}

// GenerateDistanceConstraints builds one constraint per unique mesh edge.
// Edges are deduped by sorted-pair key but kept in first-encounter order
// so the resulting batches are reproducible.
func GenerateDistanceConstraints(s *State, compliance float32) *PairConstraints {
	var parts []int32
	var rests []float32
	var compliances []float32

	seen := make(map[uint64]struct{}, len(s.Indices))
	skipped := 0

	addEdge := func(a, b int32) {
		key := edgeKey(a, b)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}

		dist := s.Positions[a].DistanceTo(s.Positions[b])
		if a == b || dist < 1e-6 {
			skipped++
			return
		}
		parts = append(parts, a, b)
		rests = append(rests, dist)
		compliances = append(compliances, compliance)
	}

	for t := 0; t < len(s.Indices); t += 3 {
		i0 := int32(s.Indices[t])
		i1 := int32(s.Indices[t+1])
		i2 := int32(s.Indices[t+2])
		addEdge(i0, i1)
		addEdge(i1, i2)
		addEdge(i2, i0)
	}

	if skipped > 0 {
		logger.Sugar.Debugw("skipped degenerate edges", "count", skipped)
	}

	return reorderPairs(parts, rests, compliances, s.Count)
}

// GenerateBendingConstraints connects the two wing vertices of every
// interior edge (an edge shared by exactly two triangles) with a
// distance constraint at their rest separation. This is a cross-edge
// proxy for dihedral bending: it resists folding across the edge without
// tracking the angle itself. Boundary edges produce nothing.
//
// When UVs are present, pairs whose UV delta is strongly axis-aligned get
// half the compliance, stiffening warp/weft directions relative to bias.
func GenerateBendingConstraints(s *State, complianceFactor float32) *PairConstraints {
	type edgeWings struct {
		wings [2]int32
		count int
	}

	// Deterministic edge registry: slice in encounter order, map for lookup.
	edgeIdx := make(map[uint64]int, len(s.Indices))
	var edges []edgeWings

	register := func(a, b, wing int32) {
		key := edgeKey(a, b)
		idx, ok := edgeIdx[key]
		if !ok {
			idx = len(edges)
			edgeIdx[key] = idx
			edges = append(edges, edgeWings{})
		}
		e := &edges[idx]
		if e.count < 2 {
			e.wings[e.count] = wing
		}
		e.count++
	}

	for t := 0; t < len(s.Indices); t += 3 {
		i0 := int32(s.Indices[t])
		i1 := int32(s.Indices[t+1])
		i2 := int32(s.Indices[t+2])
		register(i0, i1, i2)
		register(i1, i2, i0)
		register(i2, i0, i1)
	}

	var parts []int32
	var rests []float32
	var compliances []float32
	nonManifold := 0

	for _, e := range edges {
		if e.count != 2 {
			if e.count > 2 {
				nonManifold++
			}
			continue // boundary edge, no bending partner
		}
		w0, w1 := e.wings[0], e.wings[1]
		if w0 == w1 {
			continue
		}
		dist := s.Positions[w0].DistanceTo(s.Positions[w1])
		if dist < 1e-6 {
			continue
		}

		compliance := complianceFactor
		if s.UVs != nil {
			du := math32.Abs(s.UVs[w0].X - s.UVs[w1].X)
			dv := math32.Abs(s.UVs[w0].Y - s.UVs[w1].Y)
			if du > 2*dv || dv > 2*du {
				compliance = 0.5 * complianceFactor
			}
		}

		parts = append(parts, w0, w1)
		rests = append(rests, dist)
		compliances = append(compliances, compliance)
	}

	if nonManifold > 0 {
		logger.Sugar.Debugw("non-manifold edges in garment mesh", "count", nonManifold)
	}

	return reorderPairs(parts, rests, compliances, s.Count)
}

// GenerateAreaConstraints stores the rest area of every non-degenerate
// triangle. Degenerate triangles (area <= 1e-6) are excluded.
func GenerateAreaConstraints(s *State) *TriConstraints {
	var parts []int32
	var areas []float32
	skipped := 0

	for t := 0; t < len(s.Indices); t += 3 {
		i0 := int32(s.Indices[t])
		i1 := int32(s.Indices[t+1])
		i2 := int32(s.Indices[t+2])

		p0 := s.Positions[i0]
		u := s.Positions[i1].Sub(p0)
		v := s.Positions[i2].Sub(p0)
		area := u.Cross(v).Length() * 0.5

		if area <= 1e-6 {
			skipped++
			continue
		}
		parts = append(parts, i0, i1, i2)
		areas = append(areas, area)
	}

	if skipped > 0 {
		logger.Sugar.Debugw("skipped degenerate triangles", "count", skipped)
	}

	layout := colorConstraints(parts, 3, s.Count)
	out := &TriConstraints{
		Parts:     make([]int32, 0, len(parts)),
		RestAreas: make([]float32, 0, len(areas)),
		Offsets:   layout.offsets,
	}
	for _, idx := range layout.order {
		out.Parts = append(out.Parts, parts[idx*3], parts[idx*3+1], parts[idx*3+2])
		out.RestAreas = append(out.RestAreas, areas[idx])
	}
	return out
}

// reorderPairs colors raw pair constraints and packs them batch by batch.
func reorderPairs(parts []int32, rests, compliances []float32, particleCount int) *PairConstraints {
	layout := colorConstraints(parts, 2, particleCount)
	out := &PairConstraints{
		Parts:       make([]int32, 0, len(parts)),
		RestLengths: make([]float32, 0, len(rests)),
		Compliances: make([]float32, 0, len(compliances)),
		Offsets:     layout.offsets,
	}
	for _, idx := range layout.order {
		out.Parts = append(out.Parts, parts[idx*2], parts[idx*2+1])
		out.RestLengths = append(out.RestLengths, rests[idx])
		out.Compliances = append(out.Compliances, compliances[idx])
	}
	return out
}
