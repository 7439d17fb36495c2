package cloth

import (
	"sort"

	"cogentcore.org/core/math32"
)

// Tether generation. Tethers are one-sided distance constraints that stop
// the garment stretching past its rest silhouette: a vertical pass keeps
// the hem from sagging, a horizontal pass keeps shoulders and torso from
// spreading. Both record the rest-pose separation as the maximum length.
const (
	tetherColumnCell    = 0.03 // (x,z) column bucket size for the vertical pass
	tetherMinVertical   = 0.10 // minimum rest span for a vertical tether
	tetherRowCell       = 0.04 // z-row bucket size for the horizontal pass
	tetherMinHorizontal = 0.15 // minimum rest span for a horizontal tether
	tetherShoulderBand  = 0.15 // horizontal pass only looks this far below max Y
)

// GenerateTetherConstraints runs both passes and colors the merged set.
func GenerateTetherConstraints(s *State) *PairConstraints {
	parts, rests := generateVerticalTethers(s)
	hParts, hRests := generateHorizontalTethers(s)
	parts = append(parts, hParts...)
	rests = append(rests, hRests...)

	compliances := make([]float32, len(rests)) // rigid once taut

	return reorderPairs(parts, rests, compliances, s.Count)
}

// generateVerticalTethers buckets particles into (x,z) columns, and in
// each column connects the topmost particle to the lowest one whose rest
// normal agrees with it (dot > 0.8) and whose separation exceeds the
// minimum span. One tether per column.
func generateVerticalTethers(s *State) ([]int32, []float32) {
	var parts []int32
	var rests []float32

	type colKey struct{ x, z int32 }
	columns := make(map[colKey][]int)
	var keys []colKey

	for i := 0; i < s.Count; i++ {
		p := s.Positions[i]
		key := colKey{
			x: int32(math32.Floor(p.X / tetherColumnCell)),
			z: int32(math32.Floor(p.Z / tetherColumnCell)),
		}
		if _, ok := columns[key]; !ok {
			keys = append(keys, key)
		}
		columns[key] = append(columns[key], i)
	}

	// Iterate columns in sorted key order, not map order.
	sort.Slice(keys, func(a, b int) bool {
		if keys[a].x != keys[b].x {
			return keys[a].x < keys[b].x
		}
		return keys[a].z < keys[b].z
	})

	for _, key := range keys {
		indices := columns[key]
		if len(indices) < 2 {
			continue
		}

		sorted := append([]int(nil), indices...)
		sort.SliceStable(sorted, func(a, b int) bool {
			return s.Positions[sorted[a]].Y > s.Positions[sorted[b]].Y
		})

		top := sorted[0]
		topN := s.Normals[top]

		// Walk up from the bottom: first aligned particle far enough away wins.
		for k := len(sorted) - 1; k > 0; k-- {
			bottom := sorted[k]
			if topN.Dot(s.Normals[bottom]) <= 0.8 {
				continue
			}
			dist := s.Positions[top].DistanceTo(s.Positions[bottom])
			if dist > tetherMinVertical {
				parts = append(parts, int32(top), int32(bottom))
				rests = append(rests, dist)
				break
			}
		}
	}

	return parts, rests
}

// generateHorizontalTethers buckets particles near the top of the garment
// into z-rows, sorts each row by x and pairs them outside-in
// (leftmost with rightmost, then inward). Pairs must be far enough apart
// and have loosely aligned normals (dot > 0.5).
func generateHorizontalTethers(s *State) ([]int32, []float32) {
	var parts []int32
	var rests []float32

	maxY := float32(math32.Inf(-1))
	for i := 0; i < s.Count; i++ {
		if s.Positions[i].Y > maxY {
			maxY = s.Positions[i].Y
		}
	}
	threshold := maxY - tetherShoulderBand

	rows := make(map[int32][]int)
	var keys []int32
	for i := 0; i < s.Count; i++ {
		p := s.Positions[i]
		if p.Y < threshold {
			continue
		}
		key := int32(math32.Floor(p.Z / tetherRowCell))
		if _, ok := rows[key]; !ok {
			keys = append(keys, key)
		}
		rows[key] = append(rows[key], i)
	}
	sort.Slice(keys, func(a, b int) bool { return keys[a] < keys[b] })

	for _, key := range keys {
		indices := rows[key]
		if len(indices) < 2 {
			continue
		}

		sorted := append([]int(nil), indices...)
		sort.SliceStable(sorted, func(a, b int) bool {
			return s.Positions[sorted[a]].X < s.Positions[sorted[b]].X
		})

		count := len(sorted)
		for i := 0; i < count/2; i++ {
			left := sorted[i]
			right := sorted[count-1-i]

			dist := s.Positions[left].DistanceTo(s.Positions[right])
			if dist <= tetherMinHorizontal {
				continue
			}
			if s.Normals[left].Dot(s.Normals[right]) <= 0.5 {
				continue
			}
			parts = append(parts, int32(left), int32(right))
			rests = append(rests, dist)
		}
	}

	return parts, rests
}
