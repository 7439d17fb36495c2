// Package scene builds garment and body meshes for the simulator:
// procedural test geometry and a small Wavefront OBJ reader. All output
// uses the flat buffer layout the engine consumes (xyz positions, uv
// texture coordinates, triangle index lists).
package scene

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"cogentcore.org/core/math32"

	"drapesim/internal/cloth"
)

// ClothGrid builds a regular nx by nz particle grid in the XZ plane at
// height y, centered on the origin, with UVs spanning [0,1]. Triangles
// wind counter-clockwise seen from +Y so rest normals point up.
func ClothGrid(nx, nz int, width, depth, y float32) cloth.MeshData {
	if nx < 2 {
		nx = 2
	}
	if nz < 2 {
		nz = 2
	}

	positions := make([]float32, 0, nx*nz*3)
	uvs := make([]float32, 0, nx*nz*2)
	for iz := 0; iz < nz; iz++ {
		for ix := 0; ix < nx; ix++ {
			u := float32(ix) / float32(nx-1)
			v := float32(iz) / float32(nz-1)
			positions = append(positions, (u-0.5)*width, y, (v-0.5)*depth)
			uvs = append(uvs, u, v)
		}
	}

	indices := make([]uint32, 0, (nx-1)*(nz-1)*6)
	for iz := 0; iz < nz-1; iz++ {
		for ix := 0; ix < nx-1; ix++ {
			a := uint32(iz*nx + ix)
			b := a + 1
			c := a + uint32(nx)
			d := c + 1
			indices = append(indices, a, c, b, b, c, d)
		}
	}

	return cloth.MeshData{Positions: positions, Indices: indices, UVs: uvs}
}

// latLongShell appends one ring of a latitude/longitude shell.
func latLongShell(positions []float32, center math32.Vector3, radius, phi, yOffset float32, segments int) []float32 {
	for s := 0; s <= segments; s++ {
		theta := 2 * math32.Pi * float32(s) / float32(segments)
		positions = append(positions,
			center.X+radius*math32.Sin(phi)*math32.Cos(theta),
			center.Y+radius*math32.Cos(phi)+yOffset,
			center.Z+radius*math32.Sin(phi)*math32.Sin(theta))
	}
	return positions
}

// stitchRows triangulates consecutive vertex rows of a lat/long shell.
// Pole rows (first and last) collapse one triangle of each quad.
func stitchRows(rows, segments int) []uint32 {
	var indices []uint32
	stride := uint32(segments + 1)
	for r := 0; r < rows-1; r++ {
		for s := 0; s < segments; s++ {
			a := uint32(r)*stride + uint32(s)
			b := a + stride
			if r != 0 {
				indices = append(indices, a, a+1, b)
			}
			if r != rows-2 {
				indices = append(indices, a+1, b+1, b)
			}
		}
	}
	return indices
}

// UVSphere builds a latitude/longitude sphere collider.
func UVSphere(center math32.Vector3, radius float32, rings, segments int) cloth.BodyData {
	if rings < 3 {
		rings = 3
	}
	if segments < 3 {
		segments = 3
	}

	var positions []float32
	for r := 0; r <= rings; r++ {
		phi := math32.Pi * float32(r) / float32(rings)
		positions = latLongShell(positions, center, radius, phi, 0, segments)
	}

	return cloth.BodyData{
		Positions: positions,
		Indices:   stitchRows(rings+1, segments),
	}
}

// Capsule builds a Y-axis capsule: hemisphere caps joined by a cylinder
// of the given half height. A stand-in torso for draping tests.
func Capsule(center math32.Vector3, radius, halfHeight float32, rings, segments int) cloth.BodyData {
	if rings < 4 {
		rings = 4
	}
	if rings%2 != 0 {
		rings++
	}
	if segments < 3 {
		segments = 3
	}

	var positions []float32
	half := rings / 2
	for r := 0; r <= rings+1; r++ {
		// Rows up to the equator form the top hemisphere; the equator row
		// is doubled, the copies offset by the cylinder half height.
		hemiRow := r
		offset := halfHeight
		if r > half {
			hemiRow = r - 1
			offset = -halfHeight
		}
		phi := math32.Pi * float32(hemiRow) / float32(rings)
		positions = latLongShell(positions, center, radius, phi, offset, segments)
	}

	return cloth.BodyData{
		Positions: positions,
		Indices:   stitchRows(rings+2, segments),
	}
}

// Plane builds a subdivided horizontal quad used as a floor collider.
func Plane(center math32.Vector3, size float32, divisions int) cloth.BodyData {
	grid := ClothGrid(divisions+1, divisions+1, size, size, 0)
	positions := make([]float32, len(grid.Positions))
	for i := 0; i < len(grid.Positions); i += 3 {
		positions[i] = grid.Positions[i] + center.X
		positions[i+1] = grid.Positions[i+1] + center.Y
		positions[i+2] = grid.Positions[i+2] + center.Z
	}
	return cloth.BodyData{Positions: positions, Indices: grid.Indices}
}

// LoadOBJ reads positions, texture coordinates and triangle faces from a
// Wavefront OBJ file. Faces with more than three corners are fanned into
// triangles; normals and materials are skipped since the simulator
// recomputes normals from topology. UVs are re-indexed per vertex (last
// corner wins), which is exact for the seamless garment meshes we feed it.
func LoadOBJ(path string) (cloth.MeshData, error) {
	f, err := os.Open(path)
	if err != nil {
		return cloth.MeshData{}, fmt.Errorf("open obj: %w", err)
	}
	defer f.Close()

	var positions []float32
	var texcoords []float32
	var indices []uint32
	uvByVertex := map[int][2]float32{}

	parseFloat := func(s string) (float32, error) {
		v, err := strconv.ParseFloat(s, 32)
		return float32(v), err
	}

	vertexCount := func() int { return len(positions) / 3 }

	// OBJ face corner: v, v/vt, v/vt/vn or v//vn. Indices are 1-based;
	// negative indices count back from the end.
	resolveCorner := func(corner string) (int, error) {
		parts := strings.Split(corner, "/")
		vi, err := strconv.Atoi(parts[0])
		if err != nil {
			return 0, err
		}
		if vi < 0 {
			vi = vertexCount() + 1 + vi
		}
		vi--
		if vi < 0 || vi >= vertexCount() {
			return 0, fmt.Errorf("vertex index %d out of range", vi+1)
		}
		if len(parts) > 1 && parts[1] != "" {
			ti, err := strconv.Atoi(parts[1])
			if err != nil {
				return 0, err
			}
			if ti < 0 {
				ti = len(texcoords)/2 + 1 + ti
			}
			ti--
			if ti >= 0 && ti*2+1 < len(texcoords) {
				uvByVertex[vi] = [2]float32{texcoords[ti*2], texcoords[ti*2+1]}
			}
		}
		return vi, nil
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "v":
			if len(fields) < 4 {
				return cloth.MeshData{}, fmt.Errorf("line %d: short vertex", line)
			}
			x, err1 := parseFloat(fields[1])
			y, err2 := parseFloat(fields[2])
			z, err3 := parseFloat(fields[3])
			if err1 != nil || err2 != nil || err3 != nil {
				return cloth.MeshData{}, fmt.Errorf("line %d: bad vertex", line)
			}
			positions = append(positions, x, y, z)
		case "vt":
			if len(fields) < 3 {
				return cloth.MeshData{}, fmt.Errorf("line %d: short texcoord", line)
			}
			u, err1 := parseFloat(fields[1])
			v, err2 := parseFloat(fields[2])
			if err1 != nil || err2 != nil {
				return cloth.MeshData{}, fmt.Errorf("line %d: bad texcoord", line)
			}
			texcoords = append(texcoords, u, v)
		case "f":
			if len(fields) < 4 {
				return cloth.MeshData{}, fmt.Errorf("line %d: face needs 3+ corners", line)
			}
			corners := make([]int, 0, len(fields)-1)
			for _, c := range fields[1:] {
				vi, err := resolveCorner(c)
				if err != nil {
					return cloth.MeshData{}, fmt.Errorf("line %d: %w", line, err)
				}
				corners = append(corners, vi)
			}
			for i := 1; i+1 < len(corners); i++ {
				indices = append(indices,
					uint32(corners[0]), uint32(corners[i]), uint32(corners[i+1]))
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return cloth.MeshData{}, fmt.Errorf("read obj: %w", err)
	}
	if len(positions) == 0 || len(indices) == 0 {
		return cloth.MeshData{}, fmt.Errorf("obj %s has no triangles", path)
	}

	mesh := cloth.MeshData{Positions: positions, Indices: indices}
	if len(uvByVertex) > 0 {
		mesh.UVs = make([]float32, vertexCount()*2)
		for vi, uv := range uvByVertex {
			mesh.UVs[vi*2] = uv[0]
			mesh.UVs[vi*2+1] = uv[1]
		}
	}
	return mesh, nil
}

// SaveOBJ writes positions (stride 4, as returned by the engine) and
// triangle indices as a Wavefront OBJ file.
func SaveOBJ(path string, positions []float32, indices []uint32) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create obj: %w", err)
	}
	w := bufio.NewWriter(f)
	for i := 0; i+3 < len(positions); i += 4 {
		fmt.Fprintf(w, "v %g %g %g\n", positions[i], positions[i+1], positions[i+2])
	}
	for i := 0; i+2 < len(indices); i += 3 {
		fmt.Fprintf(w, "f %d %d %d\n", indices[i]+1, indices[i+1]+1, indices[i+2]+1)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("write obj: %w", err)
	}
	return f.Close()
}

// LoadOBJBody reads an OBJ as collider geometry (positions and faces only).
func LoadOBJBody(path string) (cloth.BodyData, error) {
	mesh, err := LoadOBJ(path)
	if err != nil {
		return cloth.BodyData{}, err
	}
	return cloth.BodyData{Positions: mesh.Positions, Indices: mesh.Indices}, nil
}
