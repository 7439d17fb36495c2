package cloth

import "math/bits"

// Greedy graph coloring over a constraint-particle graph.
//
// Two constraints conflict if they share a particle. Constraints of one
// color form a batch whose position updates touch disjoint particles, so
// a batch can be dispatched as a single data-parallel pass with no
// atomics. Coloring runs once at build time on the rest pose.
//
// The traversal is strictly generation order over slices, never map
// iteration, so the same mesh always yields the same batches.

// batchLayout is the flattened result of coloring one constraint set:
// order[i] is the original index of the i-th constraint after grouping
// by color, offsets[c]..offsets[c+1] spans color c.
type batchLayout struct {
	order   []int
	offsets []int
}

// numBatches returns the number of color classes.
func (b *batchLayout) numBatches() int {
	if len(b.offsets) == 0 {
		return 0
	}
	return len(b.offsets) - 1
}

// batch returns the half-open range of batch c within order.
func (b *batchLayout) batch(c int) (start, end int) {
	return b.offsets[c], b.offsets[c+1]
}

// colorConstraints colors a constraint set given as a flat particle-index
// array with fixed arity (2 for edges and tethers, 3 for triangles).
// Adjacency is built in CSR form: for each particle, the constraints that
// touch it.
func colorConstraints(parts []int32, arity, particleCount int) batchLayout {
	n := len(parts) / arity
	if n == 0 {
		return batchLayout{offsets: []int{0}}
	}

	// 1. CSR adjacency: particle -> incident constraint indices.
	degree := make([]int32, particleCount)
	for _, p := range parts {
		degree[p]++
	}
	offset := make([]int32, particleCount+1)
	for i := 0; i < particleCount; i++ {
		offset[i+1] = offset[i] + degree[i]
	}
	adj := make([]int32, offset[particleCount])
	cursor := make([]int32, particleCount)
	copy(cursor, offset[:particleCount])
	for i := 0; i < n; i++ {
		for k := 0; k < arity; k++ {
			p := parts[i*arity+k]
			adj[cursor[p]] = int32(i)
			cursor[p]++
		}
	}

	// 2. Greedy coloring: smallest color unused by any already-colored
	// neighbor. A u64 bitmask covers the common case; meshes whose
	// vertex degree exceeds 64 spill to a linear scan.
	colors := make([]int, n)
	for i := range colors {
		colors[i] = -1
	}
	var batches [][]int

	var spill []bool
	for i := 0; i < n; i++ {
		var used uint64
		spillNeeded := false
		for k := 0; k < arity; k++ {
			p := parts[i*arity+k]
			for _, ci := range adj[offset[p]:offset[p+1]] {
				c := colors[ci]
				if c < 0 {
					continue
				}
				if c < 64 {
					used |= 1 << uint(c)
				} else {
					spillNeeded = true
				}
			}
		}

		color := -1
		if !spillNeeded {
			color = bits.TrailingZeros64(^used)
		}
		if color < 0 || color >= 64 {
			// Rare path: rebuild the neighbor color set exactly.
			if cap(spill) < len(batches)+1 {
				spill = make([]bool, len(batches)+1)
			}
			spill = spill[:len(batches)+1]
			for j := range spill {
				spill[j] = false
			}
			for k := 0; k < arity; k++ {
				p := parts[i*arity+k]
				for _, ci := range adj[offset[p]:offset[p+1]] {
					if c := colors[ci]; c >= 0 {
						spill[c] = true
					}
				}
			}
			color = len(spill)
			for j, taken := range spill {
				if !taken {
					color = j
					break
				}
			}
		}

		colors[i] = color
		for color >= len(batches) {
			batches = append(batches, nil)
		}
		batches[color] = append(batches[color], i)
	}

	// 3. Flatten to (order, offsets).
	layout := batchLayout{
		order:   make([]int, 0, n),
		offsets: make([]int, 0, len(batches)+1),
	}
	for _, b := range batches {
		layout.offsets = append(layout.offsets, len(layout.order))
		layout.order = append(layout.order, b...)
	}
	layout.offsets = append(layout.offsets, len(layout.order))
	return layout
}
