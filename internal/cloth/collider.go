package cloth

import (
	"fmt"

	"cogentcore.org/core/math32"

	"drapesim/internal/logger"
)

// MeshCollider converts the static body mesh into packed triangles plus a
// uniform grid for broad-phase queries. The body is assumed static for
// the lifetime of the simulation; everything here is built once.
type MeshCollider struct {
	Vertices  []math32.Vector3
	Normals   []math32.Vector3
	Indices   []uint32
	Triangles []ColliderTriangle
	Grid      *StaticGrid

	// TriIndices[k] maps packed triangle k back to its source triangle,
	// needed for smooth-normal interpolation in the narrow phase.
	TriIndices []uint32

	Margin float32
}

// ColliderOptions controls body mesh preprocessing.
type ColliderOptions struct {
	// SmoothingIterations of Laplacian smoothing (lambda 0.5) applied to
	// the raw scan mesh before collision geometry is derived.
	SmoothingIterations int
	// Inflation pushes vertices outward along their normals, giving the
	// body a little extra volume under the cloth.
	Inflation float32
	// Margin is the contact thickness kept between cloth and surface.
	Margin float32
	// GridCellSize for the broad-phase grid.
	GridCellSize float32
}

// NewMeshCollider builds collision geometry from flat body buffers.
// The supplied normals are ignored; normals are recomputed after
// smoothing so they match the geometry actually collided against.
func NewMeshCollider(positions []float32, indices []uint32, opts ColliderOptions) (*MeshCollider, error) {
	if len(positions)%3 != 0 {
		return nil, fmt.Errorf("collider vertex buffer length %d is not a multiple of 3", len(positions))
	}
	if len(indices)%3 != 0 {
		return nil, fmt.Errorf("collider index buffer length %d is not a multiple of 3", len(indices))
	}

	numVerts := len(positions) / 3
	vertices := make([]math32.Vector3, numVerts)
	for i := 0; i < numVerts; i++ {
		vertices[i] = math32.Vec3(positions[i*3], positions[i*3+1], positions[i*3+2])
	}
	for t := 0; t < len(indices); t += 3 {
		for k := 0; k < 3; k++ {
			if int(indices[t+k]) >= numVerts {
				return nil, fmt.Errorf("collider triangle %d references vertex %d, mesh has %d",
					t/3, indices[t+k], numVerts)
			}
		}
	}

	// 1. Vertex adjacency for smoothing.
	adj := buildVertexAdjacency(numVerts, indices)

	// 2. Laplacian smoothing irons out scan noise that would otherwise
	// snag the cloth.
	const lambda = 0.5
	for iter := 0; iter < opts.SmoothingIterations; iter++ {
		old := append([]math32.Vector3(nil), vertices...)
		for i := 0; i < numVerts; i++ {
			neighbors := adj[i]
			if len(neighbors) == 0 {
				continue
			}
			sum := math32.Vector3{}
			for _, n := range neighbors {
				sum = sum.Add(old[n])
			}
			avg := sum.DivScalar(float32(len(neighbors)))
			vertices[i] = old[i].Lerp(avg, lambda)
		}
	}

	// 3. Area-weighted vertex normals on the smoothed geometry.
	normals := make([]math32.Vector3, numVerts)
	for t := 0; t < len(indices); t += 3 {
		i0, i1, i2 := indices[t], indices[t+1], indices[t+2]
		e1 := vertices[i1].Sub(vertices[i0])
		e2 := vertices[i2].Sub(vertices[i0])
		face := e1.Cross(e2)
		normals[i0] = normals[i0].Add(face)
		normals[i1] = normals[i1].Add(face)
		normals[i2] = normals[i2].Add(face)
	}
	for i := range normals {
		if normals[i].LengthSquared() > 1e-12 {
			normals[i] = normals[i].Normal()
		}
	}

	// 4. Optional inflation along the smoothed normals.
	if opts.Inflation != 0 {
		for i := range vertices {
			vertices[i] = vertices[i].Add(normals[i].MulScalar(opts.Inflation))
		}
	}

	// 5. Pack triangles, dropping degenerates.
	triangles := make([]ColliderTriangle, 0, len(indices)/3)
	triIndices := make([]uint32, 0, len(indices)/3)
	skipped := 0

	for t := 0; t < len(indices); t += 3 {
		i0, i1, i2 := indices[t], indices[t+1], indices[t+2]
		v0, v1, v2 := vertices[i0], vertices[i1], vertices[i2]

		cross := v1.Sub(v0).Cross(v2.Sub(v0))
		if cross.LengthSquared() < 1e-12 {
			skipped++
			continue
		}

		// Averaged vertex normal; fall back to the face normal when the
		// average nearly cancels.
		avg := normals[i0].Add(normals[i1]).Add(normals[i2])
		var n math32.Vector3
		if avg.LengthSquared() > 1e-12 {
			n = avg.Normal()
		} else {
			n = cross.Normal()
		}

		triangles = append(triangles, ColliderTriangle{
			V0:     v0,
			V1:     v1,
			V2:     v2,
			Normal: n,
			Margin: opts.Margin,
		})
		triIndices = append(triIndices, uint32(t/3))
	}

	if skipped > 0 {
		logger.Sugar.Debugw("skipped zero-area collider triangles", "count", skipped)
	}

	grid := NewStaticGrid(triangles, opts.GridCellSize)
	logger.Sugar.Debugw("collider built",
		"vertices", numVerts,
		"triangles", len(triangles),
		"gridDims", []int{grid.Nx, grid.Ny, grid.Nz})

	return &MeshCollider{
		Vertices:   vertices,
		Normals:    normals,
		Indices:    indices,
		Triangles:  triangles,
		TriIndices: triIndices,
		Grid:       grid,
		Margin:     opts.Margin,
	}, nil
}

// SmoothNormal interpolates the vertex normals of packed triangle k at
// barycentric coordinates bary.
func (c *MeshCollider) SmoothNormal(k int, bary [3]float32) math32.Vector3 {
	src := c.TriIndices[k] * 3
	n0 := c.Normals[c.Indices[src]]
	n1 := c.Normals[c.Indices[src+1]]
	n2 := c.Normals[c.Indices[src+2]]
	n := n0.MulScalar(bary[0]).Add(n1.MulScalar(bary[1])).Add(n2.MulScalar(bary[2]))
	if n.LengthSquared() < 1e-12 {
		return c.Triangles[k].Normal
	}
	return n.Normal()
}

func buildVertexAdjacency(numVerts int, indices []uint32) [][]uint32 {
	adj := make([][]uint32, numVerts)
	addNeighbor := func(a, b uint32) {
		for _, n := range adj[a] {
			if n == b {
				return
			}
		}
		adj[a] = append(adj[a], b)
	}
	for t := 0; t < len(indices); t += 3 {
		i0, i1, i2 := indices[t], indices[t+1], indices[t+2]
		addNeighbor(i0, i1)
		addNeighbor(i1, i0)
		addNeighbor(i0, i2)
		addNeighbor(i2, i0)
		addNeighbor(i1, i2)
		addNeighbor(i2, i1)
	}
	return adj
}
