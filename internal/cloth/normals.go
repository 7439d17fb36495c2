package cloth

import "cogentcore.org/core/math32"

// computeVertexNormals recomputes area-weighted vertex normals in place:
// zero, accumulate unnormalized face normals (cross products, so larger
// triangles weigh more), then normalize. Degenerate vertices fall back
// to +Y so downstream shading never sees a zero normal.
func computeVertexNormals(positions []math32.Vector3, indices []uint32, normals []math32.Vector3) {
	count := len(normals)
	for i := range normals {
		normals[i] = math32.Vector3{}
	}

	for t := 0; t < len(indices); t += 3 {
		i0 := int(indices[t])
		i1 := int(indices[t+1])
		i2 := int(indices[t+2])
		if i0 >= count || i1 >= count || i2 >= count {
			continue
		}

		e1 := positions[i1].Sub(positions[i0])
		e2 := positions[i2].Sub(positions[i0])
		face := e1.Cross(e2)

		normals[i0] = normals[i0].Add(face)
		normals[i1] = normals[i1].Add(face)
		normals[i2] = normals[i2].Add(face)
	}

	for i := range normals {
		lenSq := normals[i].LengthSquared()
		if lenSq > 1e-12 {
			normals[i] = normals[i].DivScalar(math32.Sqrt(lenSq))
		} else {
			normals[i] = math32.Vec3(0, 1, 0)
		}
	}
}

// vertexTriangleAdjacency precomputes, for each vertex, the triangles
// that touch it, flattened CSR-style. The GPU normal pass fans over this
// table so each invocation owns exactly one vertex and needs no atomics.
func vertexTriangleAdjacency(count int, indices []uint32) (offsets, refs []uint32) {
	counts := make([]uint32, count)
	for _, idx := range indices {
		counts[idx]++
	}

	offsets = make([]uint32, count+1)
	for i := 0; i < count; i++ {
		offsets[i+1] = offsets[i] + counts[i]
	}

	refs = make([]uint32, offsets[count])
	cursor := make([]uint32, count)
	copy(cursor, offsets[:count])
	for t := 0; t < len(indices); t += 3 {
		tri := uint32(t / 3)
		for k := 0; k < 3; k++ {
			v := indices[t+k]
			refs[cursor[v]] = tri
			cursor[v]++
		}
	}
	return offsets, refs
}
