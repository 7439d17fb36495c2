// Interactive viewer: drapes a garment over a body and lets you grab
// particles with the mouse. Rendering is wireframe; the point is to see
// the solver behave, not to shade cloth.
package main

import (
	"flag"
	"fmt"
	"os"

	"cogentcore.org/core/math32"
	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"

	"drapesim/internal/camera"
	"drapesim/internal/cloth"
	"drapesim/internal/config"
	"drapesim/internal/logger"
	"drapesim/internal/scene"
)

const (
	screenWidth  = 1280
	screenHeight = 720
	grabRadius   = 0.05 // world-space pick distance from the mouse ray
)

type viewer struct {
	cfg     *config.Config
	garment cloth.MeshData
	body    cloth.BodyData
	engine  *cloth.Engine

	edges     [][2]uint32 // unique garment edges for wireframe drawing
	bodyEdges [][2]uint32

	paused    bool
	timeScale float32
	grabbed   int
	grabDepth float32
}

func main() {
	configPath := flag.String("config", "drapesim.yaml", "config file")
	garmentPath := flag.String("garment", "", "garment OBJ (procedural grid if empty)")
	bodyPath := flag.String("body", "", "body OBJ (procedural capsule if empty)")
	resolution := flag.Int("res", 48, "procedural cloth resolution per side")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	v := &viewer{cfg: cfg, timeScale: 1, grabbed: -1}
	if err := v.setup(*garmentPath, *bodyPath, *resolution); err != nil {
		logger.Sugar.Fatalw("scene setup failed", "error", err)
	}
	defer v.engine.Dispose()

	rl.InitWindow(screenWidth, screenHeight, "drapeview")
	defer rl.CloseWindow()
	rl.SetTargetFPS(60)

	orbit := camera.New(rl.NewVector3(0, 0.4, 0), 2.2)

	for !rl.WindowShouldClose() {
		orbit.Update()
		cam := orbit.GetRaylibCamera()
		v.update(&cam)
		v.draw(&cam)
	}
}

func (v *viewer) setup(garmentPath, bodyPath string, resolution int) error {
	var err error
	if garmentPath != "" {
		v.garment, err = scene.LoadOBJ(garmentPath)
		if err != nil {
			return fmt.Errorf("garment: %w", err)
		}
	} else {
		v.garment = scene.ClothGrid(resolution, resolution, 1.2, 1.2, 0.85)
	}
	if bodyPath != "" {
		v.body, err = scene.LoadOBJBody(bodyPath)
		if err != nil {
			return fmt.Errorf("body: %w", err)
		}
	} else {
		v.body = scene.Capsule(math32.Vec3(0, 0.3, 0), 0.25, 0.25, 16, 24)
	}

	v.edges = uniqueEdges(v.garment.Indices)
	v.bodyEdges = uniqueEdges(v.body.Indices)
	return v.rebuild()
}

func (v *viewer) rebuild() error {
	if v.engine != nil {
		v.engine.Dispose()
	}
	engine, err := cloth.NewEngine(v.garment, v.body, v.cfg, 1, nil)
	if err != nil {
		return err
	}
	v.engine = engine
	v.grabbed = -1
	return nil
}

func (v *viewer) update(camera *rl.Camera3D) {
	v.updateGrab(camera)

	if !v.paused {
		dt := rl.GetFrameTime() * v.timeScale
		if err := v.engine.Step(dt); err != nil {
			logger.Sugar.Errorw("step failed", "error", err)
		}
	}
}

// updateGrab picks the particle nearest the mouse ray on press, then
// drags it on the plane at its original viewing depth.
func (v *viewer) updateGrab(camera *rl.Camera3D) {
	ray := rl.GetScreenToWorldRay(rl.GetMousePosition(), *camera)
	origin := math32.Vec3(ray.Position.X, ray.Position.Y, ray.Position.Z)
	dir := math32.Vec3(ray.Direction.X, ray.Direction.Y, ray.Direction.Z).Normal()

	switch {
	case rl.IsMouseButtonPressed(rl.MouseLeftButton):
		st := v.engine.State()
		best, bestDist := -1, float32(grabRadius)
		var bestDepth float32
		for i := 0; i < st.Count; i++ {
			toP := st.Positions[i].Sub(origin)
			depth := toP.Dot(dir)
			if depth <= 0 {
				continue
			}
			perp := toP.Sub(dir.MulScalar(depth)).Length()
			if perp < bestDist {
				best, bestDist, bestDepth = i, perp, depth
			}
		}
		if best >= 0 {
			v.grabbed = best
			v.grabDepth = bestDepth
			target := origin.Add(dir.MulScalar(bestDepth))
			v.engine.StartInteraction(best, target.X, target.Y, target.Z)
		}
	case rl.IsMouseButtonDown(rl.MouseLeftButton) && v.grabbed >= 0:
		target := origin.Add(dir.MulScalar(v.grabDepth))
		v.engine.UpdateInteraction(target.X, target.Y, target.Z)
	case rl.IsMouseButtonReleased(rl.MouseLeftButton) && v.grabbed >= 0:
		v.engine.EndInteraction()
		v.grabbed = -1
	}
}

func (v *viewer) draw(camera *rl.Camera3D) {
	rl.BeginDrawing()
	rl.ClearBackground(rl.NewColor(18, 18, 24, 255))

	rl.BeginMode3D(*camera)
	rl.DrawGrid(10, 0.2)

	positions, err := v.engine.Positions()
	if err == nil {
		drawWireframe(positions, v.edges, rl.SkyBlue)
	}
	drawBodyWireframe(v.body.Positions, v.bodyEdges, rl.NewColor(90, 90, 100, 255))

	if v.grabbed >= 0 {
		p := v.engine.State().Positions[v.grabbed]
		rl.DrawSphere(rl.NewVector3(p.X, p.Y, p.Z), 0.015, rl.Orange)
	}
	rl.EndMode3D()

	v.drawPanel()
	rl.DrawFPS(screenWidth-90, 10)
	rl.EndDrawing()
}

func (v *viewer) drawPanel() {
	panel := rl.NewRectangle(10, 10, 220, 110)
	gui.Panel(panel, "simulation")

	v.paused = gui.CheckBox(rl.NewRectangle(20, 42, 16, 16), "pause", v.paused)
	v.timeScale = gui.Slider(rl.NewRectangle(70, 66, 120, 16), "speed", "", v.timeScale, 0.1, 2)
	if gui.Button(rl.NewRectangle(20, 90, 80, 22), "reset") {
		if err := v.rebuild(); err != nil {
			logger.Sugar.Errorw("reset failed", "error", err)
		}
	}

	d, b, t, a := v.engine.ConstraintCounts()
	rl.DrawText(fmt.Sprintf("%d particles, %d constraints",
		v.engine.State().Count, d+b+t+a), 10, 130, 10, rl.Gray)
}

// uniqueEdges dedupes triangle edges for wireframe rendering.
func uniqueEdges(indices []uint32) [][2]uint32 {
	seen := make(map[uint64]struct{}, len(indices))
	var edges [][2]uint32
	add := func(a, b uint32) {
		if a > b {
			a, b = b, a
		}
		key := uint64(a)<<32 | uint64(b)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		edges = append(edges, [2]uint32{a, b})
	}
	for i := 0; i+2 < len(indices); i += 3 {
		add(indices[i], indices[i+1])
		add(indices[i+1], indices[i+2])
		add(indices[i+2], indices[i])
	}
	return edges
}

// drawWireframe draws stride-4 positions as line segments.
func drawWireframe(positions []float32, edges [][2]uint32, color rl.Color) {
	for _, e := range edges {
		a, b := e[0]*4, e[1]*4
		rl.DrawLine3D(
			rl.NewVector3(positions[a], positions[a+1], positions[a+2]),
			rl.NewVector3(positions[b], positions[b+1], positions[b+2]),
			color)
	}
}

// drawBodyWireframe draws stride-3 positions as line segments.
func drawBodyWireframe(positions []float32, edges [][2]uint32, color rl.Color) {
	for _, e := range edges {
		a, b := e[0]*3, e[1]*3
		rl.DrawLine3D(
			rl.NewVector3(positions[a], positions[a+1], positions[a+2]),
			rl.NewVector3(positions[b], positions[b+1], positions[b+2]),
			color)
	}
}
