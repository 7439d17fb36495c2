package cloth

import (
	"cogentcore.org/core/math32"

	"drapesim/internal/logger"
)

// StaticGrid is a uniform spatial grid over the static body mesh, used as
// the broad phase for body collision. A triangle index is stored in every
// cell its AABB overlaps (conservative). Built once, read-only afterwards.
//
// Cells are flattened to a contiguous (offset, count) table over a single
// reference array, the exact layout the GPU collision kernel consumes.
type StaticGrid struct {
	CellSize   float32
	Min, Max   math32.Vector3
	Nx, Ny, Nz int

	// CellOffsets[c] / CellCounts[c] span the cell's triangles in Refs.
	CellOffsets []uint32
	CellCounts  []uint32
	Refs        []uint32
}

const (
	gridMaxDim    = 1000
	gridWarnCells = 2_000_000
)

// NewStaticGrid builds the grid for the given triangles. Bounds are the
// mesh AABB padded by two cells; dimensions are clamped to [1,1000] per
// axis to guard against pathological meshes.
func NewStaticGrid(triangles []ColliderTriangle, cellSize float32) *StaticGrid {
	if cellSize <= 0 {
		cellSize = 0.05
	}

	bounds := math32.B3Empty()
	for i := range triangles {
		tmin, tmax := triangles[i].AABB()
		bounds.ExpandByPoint(tmin)
		bounds.ExpandByPoint(tmax)
	}
	if bounds.IsEmpty() {
		bounds = math32.B3(0, 0, 0, 0, 0, 0)
	}

	pad := math32.Vec3(cellSize*2, cellSize*2, cellSize*2)
	min := bounds.Min.Sub(pad)
	max := bounds.Max.Add(pad)
	size := max.Sub(min)

	clampDim := func(v float32) int {
		n := int(math32.Ceil(v / cellSize))
		if n < 1 {
			n = 1
		}
		if n > gridMaxDim {
			n = gridMaxDim
		}
		return n
	}
	nx := clampDim(size.X)
	ny := clampDim(size.Y)
	nz := clampDim(size.Z)

	total := nx * ny * nz
	if total > gridWarnCells {
		logger.Sugar.Warnw("spatial grid is very large",
			"cells", total, "nx", nx, "ny", ny, "nz", nz, "cellSize", cellSize)
	}

	g := &StaticGrid{
		CellSize:    cellSize,
		Min:         min,
		Max:         max,
		Nx:          nx,
		Ny:          ny,
		Nz:          nz,
		CellOffsets: make([]uint32, total),
		CellCounts:  make([]uint32, total),
	}

	// Two passes: count, then fill the flat reference array.
	for i := range triangles {
		tmin, tmax := triangles[i].AABB()
		g.forEachOverlappedCell(tmin, tmax, func(cell int) {
			g.CellCounts[cell]++
		})
	}

	var offset uint32
	for c := 0; c < total; c++ {
		g.CellOffsets[c] = offset
		offset += g.CellCounts[c]
	}
	g.Refs = make([]uint32, offset)

	cursor := make([]uint32, total)
	copy(cursor, g.CellOffsets)
	for i := range triangles {
		tmin, tmax := triangles[i].AABB()
		g.forEachOverlappedCell(tmin, tmax, func(cell int) {
			g.Refs[cursor[cell]] = uint32(i)
			cursor[cell]++
		})
	}

	return g
}

// cellCoord maps a world position to clamped cell coordinates.
func (g *StaticGrid) cellCoord(p math32.Vector3) (int, int, int) {
	local := p.Sub(g.Min)
	clamp := func(v float32, n int) int {
		c := int(v / g.CellSize)
		if c < 0 {
			c = 0
		}
		if c >= n {
			c = n - 1
		}
		return c
	}
	return clamp(local.X, g.Nx), clamp(local.Y, g.Ny), clamp(local.Z, g.Nz)
}

func (g *StaticGrid) cellIndex(x, y, z int) int {
	return x + y*g.Nx + z*g.Nx*g.Ny
}

func (g *StaticGrid) forEachOverlappedCell(min, max math32.Vector3, fn func(cell int)) {
	x0, y0, z0 := g.cellCoord(min)
	x1, y1, z1 := g.cellCoord(max)
	for z := z0; z <= z1; z++ {
		for y := y0; y <= y1; y++ {
			for x := x0; x <= x1; x++ {
				fn(g.cellIndex(x, y, z))
			}
		}
	}
}

// Contains reports whether p lies inside the padded grid bounds.
func (g *StaticGrid) Contains(p math32.Vector3) bool {
	return p.X >= g.Min.X && p.X <= g.Max.X &&
		p.Y >= g.Min.Y && p.Y <= g.Max.Y &&
		p.Z >= g.Min.Z && p.Z <= g.Max.Z
}

// Query appends to buf the deduplicated triangle indices in all cells
// overlapping the cube of the given radius around p, and returns buf.
func (g *StaticGrid) Query(p math32.Vector3, radius float32, buf []uint32, seen map[uint32]struct{}) []uint32 {
	r := math32.Vec3(radius, radius, radius)
	min := p.Sub(r)
	max := p.Add(r)

	if max.X < g.Min.X || min.X > g.Max.X ||
		max.Y < g.Min.Y || min.Y > g.Max.Y ||
		max.Z < g.Min.Z || min.Z > g.Max.Z {
		return buf
	}

	for k := range seen {
		delete(seen, k)
	}

	g.forEachOverlappedCell(min, max, func(cell int) {
		off := g.CellOffsets[cell]
		for _, ref := range g.Refs[off : off+g.CellCounts[cell]] {
			if _, dup := seen[ref]; dup {
				continue
			}
			seen[ref] = struct{}{}
			buf = append(buf, ref)
		}
	})
	return buf
}
