package scene

import (
	"os"
	"path/filepath"
	"testing"

	"cogentcore.org/core/math32"
)

// checkIndices fails if any triangle index falls outside the vertex range.
func checkIndices(t *testing.T, positions []float32, indices []uint32) {
	t.Helper()
	if len(indices)%3 != 0 {
		t.Fatalf("index count %d not a multiple of 3", len(indices))
	}
	numVerts := uint32(len(positions) / 3)
	for k, idx := range indices {
		if idx >= numVerts {
			t.Fatalf("index %d at %d out of range (%d vertices)", idx, k, numVerts)
		}
	}
}

func TestClothGrid(t *testing.T) {
	mesh := ClothGrid(4, 5, 1.0, 2.0, 0.3)

	if got := len(mesh.Positions); got != 4*5*3 {
		t.Fatalf("position floats %d, want %d", got, 4*5*3)
	}
	if got := len(mesh.Indices); got != 3*4*2*3 {
		t.Fatalf("index count %d, want %d", got, 3*4*2*3)
	}
	if got := len(mesh.UVs); got != 4*5*2 {
		t.Fatalf("uv floats %d, want %d", got, 4*5*2)
	}
	checkIndices(t, mesh.Positions, mesh.Indices)

	for i := 0; i < len(mesh.Positions); i += 3 {
		if mesh.Positions[i+1] != 0.3 {
			t.Errorf("vertex %d at height %g, want 0.3", i/3, mesh.Positions[i+1])
		}
		if x := mesh.Positions[i]; x < -0.5 || x > 0.5 {
			t.Errorf("vertex %d x=%g outside half width", i/3, x)
		}
		if z := mesh.Positions[i+2]; z < -1.0 || z > 1.0 {
			t.Errorf("vertex %d z=%g outside half depth", i/3, z)
		}
	}
	for i := 0; i < len(mesh.UVs); i++ {
		if mesh.UVs[i] < 0 || mesh.UVs[i] > 1 {
			t.Errorf("uv %d = %g outside [0,1]", i, mesh.UVs[i])
		}
	}
}

func TestClothGridClampsToMinimumSize(t *testing.T) {
	mesh := ClothGrid(1, 0, 1, 1, 0)
	if got := len(mesh.Positions); got != 2*2*3 {
		t.Errorf("position floats %d, want a 2x2 grid", got)
	}
	if got := len(mesh.Indices); got != 6 {
		t.Errorf("index count %d, want 2 triangles", got)
	}
}

func TestUVSphereVerticesOnRadius(t *testing.T) {
	center := math32.Vec3(0.5, -0.2, 1.0)
	body := UVSphere(center, 0.3, 8, 12)
	checkIndices(t, body.Positions, body.Indices)

	for i := 0; i < len(body.Positions); i += 3 {
		p := math32.Vec3(body.Positions[i], body.Positions[i+1], body.Positions[i+2])
		if d := p.DistanceTo(center); math32.Abs(d-0.3) > 1e-5 {
			t.Errorf("vertex %d at distance %g from center, want 0.3", i/3, d)
		}
	}
}

func TestCapsuleExtents(t *testing.T) {
	const radius, halfHeight = 0.25, 0.4
	body := Capsule(math32.Vec3(0, 0, 0), radius, halfHeight, 8, 12)
	checkIndices(t, body.Positions, body.Indices)

	minY := float32(math32.Inf(1))
	maxY := float32(math32.Inf(-1))
	for i := 0; i < len(body.Positions); i += 3 {
		y := body.Positions[i+1]
		if y < minY {
			minY = y
		}
		if y > maxY {
			maxY = y
		}
		// Every vertex lies within radius of the core segment.
		cy := y
		if cy > halfHeight {
			cy = halfHeight
		}
		if cy < -halfHeight {
			cy = -halfHeight
		}
		p := math32.Vec3(body.Positions[i], y, body.Positions[i+2])
		if d := p.DistanceTo(math32.Vec3(0, cy, 0)); d > radius+1e-5 {
			t.Errorf("vertex %d at distance %g from the core segment", i/3, d)
		}
	}
	if math32.Abs(maxY-(halfHeight+radius)) > 1e-5 {
		t.Errorf("top pole at %g, want %g", maxY, halfHeight+radius)
	}
	if math32.Abs(minY-(-halfHeight-radius)) > 1e-5 {
		t.Errorf("bottom pole at %g, want %g", minY, -halfHeight-radius)
	}
}

func TestPlaneCentered(t *testing.T) {
	body := Plane(math32.Vec3(1, 2, 3), 2.0, 4)
	checkIndices(t, body.Positions, body.Indices)

	for i := 0; i < len(body.Positions); i += 3 {
		if body.Positions[i+1] != 2 {
			t.Errorf("vertex %d at height %g, want 2", i/3, body.Positions[i+1])
		}
		if x := body.Positions[i]; x < 0 || x > 2 {
			t.Errorf("vertex %d x=%g outside the shifted extent", i/3, x)
		}
	}
}

func TestLoadOBJ(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quad.obj")
	data := `# quad with uvs and a negative-index face
v 0 0 0
v 1 0 0
v 1 0 1
v 0 0 1
vt 0 0
vt 1 0
vt 1 1
vt 0 1
f 1/1 2/2 3/3
f -4/-4 -2/-2 -1/-1
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	mesh, err := LoadOBJ(path)
	if err != nil {
		t.Fatalf("LoadOBJ: %v", err)
	}
	if got := len(mesh.Positions); got != 12 {
		t.Fatalf("position floats %d, want 12", got)
	}
	if got := len(mesh.Indices); got != 6 {
		t.Fatalf("index count %d, want 6", got)
	}
	want := []uint32{0, 1, 2, 0, 2, 3}
	for k := range want {
		if mesh.Indices[k] != want[k] {
			t.Fatalf("indices %v, want %v", mesh.Indices, want)
		}
	}
	if len(mesh.UVs) != 8 {
		t.Fatalf("uv floats %d, want 8", len(mesh.UVs))
	}
	if mesh.UVs[2*2] != 1 || mesh.UVs[2*2+1] != 1 {
		t.Errorf("vertex 2 uv (%g,%g), want (1,1)", mesh.UVs[4], mesh.UVs[5])
	}
}

func TestLoadOBJFansPolygons(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pent.obj")
	data := `v 0 0 0
v 1 0 0
v 1.5 0 1
v 0.5 0 2
v -0.5 0 1
f 1 2 3 4 5
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	mesh, err := LoadOBJ(path)
	if err != nil {
		t.Fatalf("LoadOBJ: %v", err)
	}
	if got := len(mesh.Indices); got != 9 {
		t.Fatalf("index count %d, want 3 fan triangles", got)
	}
	for k := 0; k < len(mesh.Indices); k += 3 {
		if mesh.Indices[k] != 0 {
			t.Errorf("fan triangle %d does not start at the first corner", k/3)
		}
	}
}

func TestLoadOBJErrors(t *testing.T) {
	cases := map[string]string{
		"missing vertex":    "f 1 2 3\n",
		"short vertex":      "v 1 2\n",
		"bad float":         "v a b c\n",
		"out of range face": "v 0 0 0\nv 1 0 0\nv 0 0 1\nf 1 2 9\n",
		"no faces":          "v 0 0 0\n",
	}
	for name, data := range cases {
		path := filepath.Join(t.TempDir(), "bad.obj")
		if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadOBJ(path); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
	if _, err := LoadOBJ(filepath.Join(t.TempDir(), "absent.obj")); err == nil {
		t.Error("missing file: expected error")
	}
}

func TestSaveLoadRoundtrip(t *testing.T) {
	// Engine output layout: stride-4 positions.
	positions := []float32{
		0, 0, 0, 0,
		1, 0, 0, 0,
		1, 0, 1, 0,
		0, 0, 1, 0,
	}
	indices := []uint32{0, 2, 1, 0, 3, 2}

	path := filepath.Join(t.TempDir(), "out.obj")
	if err := SaveOBJ(path, positions, indices); err != nil {
		t.Fatalf("SaveOBJ: %v", err)
	}

	mesh, err := LoadOBJ(path)
	if err != nil {
		t.Fatalf("LoadOBJ: %v", err)
	}
	if got := len(mesh.Positions); got != 12 {
		t.Fatalf("position floats %d, want 12", got)
	}
	for i := 0; i < 4; i++ {
		for k := 0; k < 3; k++ {
			if mesh.Positions[i*3+k] != positions[i*4+k] {
				t.Errorf("vertex %d component %d: got %g, want %g",
					i, k, mesh.Positions[i*3+k], positions[i*4+k])
			}
		}
	}
	for k := range indices {
		if mesh.Indices[k] != indices[k] {
			t.Fatalf("indices %v, want %v", mesh.Indices, indices)
		}
	}
}
