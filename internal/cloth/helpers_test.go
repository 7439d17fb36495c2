package cloth

import "testing"

// gridMesh builds a flat nx by nz cloth grid in the XZ plane at height y,
// returning the engine's flat buffer layout.
func gridMesh(nx, nz int, width, depth, y float32) (positions []float32, indices []uint32, uvs []float32) {
	for iz := 0; iz < nz; iz++ {
		for ix := 0; ix < nx; ix++ {
			u := float32(ix) / float32(nx-1)
			v := float32(iz) / float32(nz-1)
			positions = append(positions, (u-0.5)*width, y, (v-0.5)*depth)
			uvs = append(uvs, u, v)
		}
	}
	for iz := 0; iz < nz-1; iz++ {
		for ix := 0; ix < nx-1; ix++ {
			a := uint32(iz*nx + ix)
			b := a + 1
			c := a + uint32(nx)
			d := c + 1
			indices = append(indices, a, c, b, b, c, d)
		}
	}
	return positions, indices, uvs
}

func gridState(t *testing.T, nx, nz int, width, depth, y float32) *State {
	t.Helper()
	positions, indices, uvs := gridMesh(nx, nz, width, depth, y)
	s, err := NewState(positions, indices, uvs)
	if err != nil {
		t.Fatalf("NewState failed: %v", err)
	}
	return s
}

// floorQuad is a 2x2 m floor at the given height, normals up.
func floorQuad(y float32) (positions []float32, indices []uint32) {
	positions = []float32{
		-1, y, -1,
		1, y, -1,
		1, y, 1,
		-1, y, 1,
	}
	indices = []uint32{0, 2, 1, 0, 3, 2}
	return positions, indices
}

func floorCollider(t *testing.T, y, margin float32) *MeshCollider {
	t.Helper()
	positions, indices := floorQuad(y)
	c, err := NewMeshCollider(positions, indices, ColliderOptions{
		Margin:       margin,
		GridCellSize: 0.25,
	})
	if err != nil {
		t.Fatalf("NewMeshCollider failed: %v", err)
	}
	return c
}

// singleParticleState builds a one-particle state at the given position.
func singleParticleState(t *testing.T, x, y, z float32) *State {
	t.Helper()
	s, err := NewState([]float32{x, y, z}, nil, nil)
	if err != nil {
		t.Fatalf("NewState failed: %v", err)
	}
	return s
}
