// Headless draping run: build or load a garment and body, simulate a
// fixed number of frames and report settle metrics. The workhorse for
// tuning material parameters without a window.
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"cogentcore.org/core/math32"

	"drapesim/internal/cloth"
	"drapesim/internal/compute"
	"drapesim/internal/config"
	"drapesim/internal/logger"
	"drapesim/internal/scene"
)

func main() {
	configPath := flag.String("config", "drapesim.yaml", "config file (defaults used if missing)")
	garmentPath := flag.String("garment", "", "garment OBJ (procedural cloth grid if empty)")
	bodyPath := flag.String("body", "", "body OBJ (procedural capsule if empty)")
	outPath := flag.String("out", "", "write draped garment OBJ here")
	frames := flag.Int("frames", 300, "frames to simulate")
	resolution := flag.Int("res", 64, "procedural cloth resolution per side")
	scale := flag.Float64("scale", 1.0, "garment world scale")
	useGPU := flag.Bool("gpu", false, "run the solver on the GPU")
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

	garment, body, err := buildScene(*garmentPath, *bodyPath, *resolution)
	if err != nil {
		logger.Sugar.Fatalw("scene setup failed", "error", err)
	}

	var gctx *compute.Context
	if *useGPU {
		gctx, err = compute.NewContext()
		if err != nil {
			logger.Sugar.Fatalw("gpu init failed", "error", err)
		}
		defer gctx.Release()
		info := gctx.Info()
		logger.Sugar.Infow("gpu backend", "name", info.Name, "backend", info.Backend, "type", info.DeviceType)
	}

	engine, err := cloth.NewEngine(garment, body, cfg, float32(*scale), gctx)
	if err != nil {
		logger.Sugar.Fatalw("engine setup failed", "error", err)
	}
	defer engine.Dispose()

	const dt = float32(1.0 / 60.0)
	start := time.Now()
	for frame := 0; frame < *frames; frame++ {
		if err := engine.Step(dt); err != nil {
			logger.Sugar.Fatalw("step failed", "frame", frame, "error", err)
		}
		if frame%60 == 59 {
			positions, err := engine.Positions()
			if err != nil {
				logger.Sugar.Fatalw("readback failed", "frame", frame, "error", err)
			}
			lo, hi, avg := heightStats(positions)
			logger.Sugar.Infow("frame", "n", frame+1, "minY", lo, "maxY", hi, "avgY", avg)
		}
	}
	elapsed := time.Since(start)

	positions, err := engine.Positions()
	if err != nil {
		logger.Sugar.Fatalw("final readback failed", "error", err)
	}
	lo, hi, avg := heightStats(positions)

	fmt.Printf("%d frames in %v (%.2f ms/frame)\n",
		*frames, elapsed.Round(time.Millisecond),
		float64(elapsed.Milliseconds())/float64(*frames))
	fmt.Printf("drape: minY=%.4f maxY=%.4f avgY=%.4f\n", lo, hi, avg)

	stats := engine.ProfilerStats()
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		st := stats[name]
		fmt.Printf("%-14s avg %9v  max %9v  (%d samples)\n",
			name, st.Avg.Round(time.Microsecond), st.Max.Round(time.Microsecond), st.Count)
	}

	if *outPath != "" {
		if err := scene.SaveOBJ(*outPath, positions, garment.Indices); err != nil {
			logger.Sugar.Fatalw("obj write failed", "path", *outPath, "error", err)
		}
		logger.Sugar.Infow("wrote draped mesh", "path", *outPath)
	}
}

func buildScene(garmentPath, bodyPath string, resolution int) (cloth.MeshData, cloth.BodyData, error) {
	var garment cloth.MeshData
	var body cloth.BodyData
	var err error

	if garmentPath != "" {
		garment, err = scene.LoadOBJ(garmentPath)
		if err != nil {
			return garment, body, fmt.Errorf("garment: %w", err)
		}
	} else {
		garment = scene.ClothGrid(resolution, resolution, 1.2, 1.2, 0.85)
	}

	if bodyPath != "" {
		body, err = scene.LoadOBJBody(bodyPath)
		if err != nil {
			return garment, body, fmt.Errorf("body: %w", err)
		}
	} else {
		body = scene.Capsule(math32.Vec3(0, 0.3, 0), 0.25, 0.25, 16, 24)
	}

	return garment, body, nil
}

func heightStats(positions []float32) (lo, hi, avg float32) {
	n := len(positions) / 4
	if n == 0 {
		return
	}
	lo, hi = positions[1], positions[1]
	var sum float32
	for i := 0; i < n; i++ {
		y := positions[i*4+1]
		if y < lo {
			lo = y
		}
		if y > hi {
			hi = y
		}
		sum += y
	}
	return lo, hi, sum / float32(n)
}
