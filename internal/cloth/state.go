// Package cloth implements an XPBD cloth solver: constraint generation
// with graph-colored batching, a uniform-grid body collider, and the
// per-frame integrate/solve/collide/normals pipeline, with both a CPU
// reference backend and a WebGPU compute backend.
package cloth

import (
	"fmt"

	"cogentcore.org/core/math32"
)

// State holds the per-particle simulation data plus the static topology
// it was built from. Positions and normals are exposed to callers as
// stride-4 float arrays (vec4 padded) to match device memory alignment.
type State struct {
	Count     int
	Positions []math32.Vector3
	PrevPos   []math32.Vector3
	Normals   []math32.Vector3
	InvMass   []float32 // 0 = pinned
	Indices   []uint32
	UVs       []math32.Vector2 // rendering-only, used for bending stiffness hints
}

// NewState builds particle state from flat garment buffers.
// positions is xyz-interleaved; uvs may be empty.
func NewState(positions []float32, indices []uint32, uvs []float32) (*State, error) {
	if len(positions)%3 != 0 {
		return nil, fmt.Errorf("vertex buffer length %d is not a multiple of 3", len(positions))
	}
	if len(indices)%3 != 0 {
		return nil, fmt.Errorf("index buffer length %d is not a multiple of 3", len(indices))
	}

	count := len(positions) / 3
	s := &State{
		Count:     count,
		Positions: make([]math32.Vector3, count),
		PrevPos:   make([]math32.Vector3, count),
		Normals:   make([]math32.Vector3, count),
		InvMass:   make([]float32, count),
		Indices:   indices,
	}

	for i := 0; i < count; i++ {
		v := math32.Vec3(positions[i*3], positions[i*3+1], positions[i*3+2])
		s.Positions[i] = v
		s.PrevPos[i] = v
		s.Normals[i] = math32.Vec3(0, 1, 0)
		s.InvMass[i] = 1.0
	}

	if len(uvs) >= count*2 {
		s.UVs = make([]math32.Vector2, count)
		for i := 0; i < count; i++ {
			s.UVs[i] = math32.Vec2(uvs[i*2], uvs[i*2+1])
		}
	}

	for t := 0; t < len(indices); t += 3 {
		for k := 0; k < 3; k++ {
			if int(indices[t+k]) >= count {
				return nil, fmt.Errorf("triangle %d references vertex %d, mesh has %d", t/3, indices[t+k], count)
			}
		}
	}

	// Rest-pose vertex normals seed the tether generator's alignment checks.
	computeVertexNormals(s.Positions, s.Indices, s.Normals)

	return s, nil
}

// Pin sets a particle immovable. Out-of-range indices are ignored.
func (s *State) Pin(i int) {
	if i >= 0 && i < s.Count {
		s.InvMass[i] = 0
	}
}

// Velocity returns the implied velocity of particle i over dt.
func (s *State) Velocity(i int, dt float32) math32.Vector3 {
	return s.Positions[i].Sub(s.PrevPos[i]).DivScalar(dt)
}

// PackVec4 writes vs into out as stride-4 floats (w = 0), growing out as
// needed. Only the first 3 components of each slot are meaningful; the
// padding keeps the layout identical to the device-side buffers.
func PackVec4(vs []math32.Vector3, out []float32) []float32 {
	need := len(vs) * 4
	if cap(out) < need {
		out = make([]float32, need)
	}
	out = out[:need]
	for i, v := range vs {
		out[i*4] = v.X
		out[i*4+1] = v.Y
		out[i*4+2] = v.Z
		out[i*4+3] = 0
	}
	return out
}
