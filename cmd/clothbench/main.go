// Benchmarks the CPU solver across cloth resolutions: frame time mean
// and spread, plus constraint counts, so regressions show up as numbers
// rather than visual judgement.
package main

import (
	"flag"
	"fmt"
	"time"

	m32 "cogentcore.org/core/math32"
	"github.com/chewxy/math32"

	"drapesim/internal/cloth"
	"drapesim/internal/config"
	"drapesim/internal/logger"
	"drapesim/internal/scene"
)

func main() {
	frames := flag.Int("frames", 60, "frames to time per resolution")
	flag.Parse()

	if err := logger.Init("warn", ""); err != nil {
		panic(err)
	}
	defer logger.Sync()

	resolutions := []int{16, 32, 48, 64, 96, 128}
	cfg := config.Default()

	fmt.Printf("%6s %10s %12s %12s %12s %12s\n",
		"res", "particles", "constraints", "mean/frame", "stddev", "worst")
	for _, res := range resolutions {
		benchResolution(res, *frames, cfg)
	}
}

func benchResolution(res, frames int, cfg *config.Config) {
	garment := scene.ClothGrid(res, res, 1.0, 1.0, 0.6)
	body := scene.UVSphere(m32.Vec3(0, 0.2, 0), 0.25, 16, 24)

	engine, err := cloth.NewEngine(garment, body, cfg, 1, nil)
	if err != nil {
		fmt.Printf("%6d setup error: %v\n", res, err)
		return
	}
	defer engine.Dispose()

	const dt = float32(1.0 / 60.0)

	// Warm up: lets the cloth reach contact so timed frames include
	// collision work, and stabilizes allocator behavior.
	for i := 0; i < 10; i++ {
		engine.Step(dt)
	}

	samples := make([]float32, frames)
	for i := range samples {
		start := time.Now()
		engine.Step(dt)
		samples[i] = float32(time.Since(start).Microseconds()) / 1000.0
	}

	var sum, worst float32
	for _, s := range samples {
		sum += s
		if s > worst {
			worst = s
		}
	}
	mean := sum / float32(len(samples))

	var variance float32
	for _, s := range samples {
		d := s - mean
		variance += d * d
	}
	stddev := math32.Sqrt(variance / float32(len(samples)))

	st := engine.State()
	d, b, t, a := engine.ConstraintCounts()

	fmt.Printf("%6d %10d %12d %9.2f ms %9.2f ms %9.2f ms\n",
		res, st.Count, d+b+t+a, mean, stddev, worst)
}
