package cloth

import (
	"fmt"

	"cogentcore.org/core/math32"
	"github.com/cogentcore/webgpu/wgpu"

	"drapesim/internal/compute"
)

// gpuBackend runs the full substep pipeline as compute dispatches.
// Particle state lives on the device; Positions/Normals readback goes
// through a staging copy. The CPU kernels are the behavioral reference;
// this backend must match them.
//
// Dispatch ordering is the correctness contract: dispatches are encoded
// and submitted in pipeline order, so each pass sees the previous pass's
// writes. Within one batched constraint dispatch no two invocations
// share a particle (graph coloring), which is what makes the plain,
// atomic-free position writes in the shaders sound.
type gpuBackend struct {
	ctx *compute.Context
	eng *Engine

	aero        *compute.Pipeline
	integrate   *compute.Pipeline
	pairs       *compute.Pipeline
	areas       *compute.Pipeline
	collide     *compute.Pipeline
	interaction *compute.Pipeline
	normals     *compute.Pipeline

	// Particle state.
	positionsBuf *compute.Buffer
	prevBuf      *compute.Buffer
	normalsBuf   *compute.Buffer
	invMassBuf   *compute.Buffer
	indicesBuf   *compute.Buffer
	forcesBuf    *compute.Buffer

	// Immutable constraint and topology buffers.
	distanceBuf *compute.Buffer
	bendingBuf  *compute.Buffer
	tetherBuf   *compute.Buffer
	areaBuf     *compute.Buffer
	adjOffBuf   *compute.Buffer
	adjRefBuf   *compute.Buffer

	// Collider broad-phase structure.
	cellOffBuf *compute.Buffer
	cellCntBuf *compute.Buffer
	refsBuf    *compute.Buffer
	trisBuf    *compute.Buffer
	gridBuf    *compute.Buffer

	// Uniforms rewritten during the step.
	simBuf   *compute.Buffer
	batchBuf *compute.Buffer
	grabBuf  *compute.Buffer

	buffers []*compute.Buffer // everything above, for release

	released bool
}

// gpuSimParams mirrors SimParams in shaders.go (std140-compatible).
type gpuSimParams struct {
	Gravity         [4]float32
	Wind            [4]float32
	Dt              float32
	VelScale        float32
	Omega           float32
	Margin          float32
	Stiffness       float32
	StaticFriction  float32
	DynamicFriction float32
	DragCoeff       float32
	LiftCoeff       float32
	ParticleCount   uint32
	Pad0            float32
	Pad1            float32
}

// gpuBatchParams mirrors BatchParams in shaders.go.
type gpuBatchParams struct {
	Start              uint32
	Count              uint32
	Unilateral         uint32
	ComplianceOverride float32
}

// gpuPairConstraint mirrors PairConstraint in shaders.go.
type gpuPairConstraint struct {
	I1, I2           uint32
	Rest, Compliance float32
}

// gpuAreaConstraint mirrors AreaConstraint in shaders.go.
type gpuAreaConstraint struct {
	I0, I1, I2 uint32
	RestArea   float32
}

// gpuTriangle mirrors Tri in shaders.go; Normal.w carries the margin.
type gpuTriangle struct {
	V0, V1, V2, Normal [4]float32
}

// gpuGridParams mirrors GridParams in shaders.go.
type gpuGridParams struct {
	GridMin    [4]float32
	Dims       [4]uint32
	CellSize   float32
	TriCount   uint32
	Pad0, Pad1 float32
}

// gpuGrabParams mirrors InteractionParams in shaders.go.
type gpuGrabParams struct {
	Target     [4]float32
	Index      uint32
	Active     uint32
	Pad0, Pad1 uint32
}

const (
	storageUsage  = wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst
	readableUsage = wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc
	uniformUsage  = wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst
)

func newGPUBackend(ctx *compute.Context, eng *Engine) (*gpuBackend, error) {
	g := &gpuBackend{ctx: ctx, eng: eng}

	var err error
	track := func(label string, data []byte, usage wgpu.BufferUsage) *compute.Buffer {
		if err != nil {
			return nil
		}
		var buf *compute.Buffer
		buf, err = ctx.CreateBufferWithData(label, data, usage)
		if err == nil {
			g.buffers = append(g.buffers, buf)
		}
		return buf
	}

	// Pipelines. A compile failure here is fatal for the whole engine.
	if g.aero, err = ctx.CreatePipeline("cloth_aero", aeroShader, "main"); err != nil {
		return nil, err
	}
	if g.integrate, err = ctx.CreatePipeline("cloth_integrate", integrateShader, "main"); err != nil {
		return nil, err
	}
	if g.pairs, err = ctx.CreatePipeline("cloth_solve_pairs", pairShader, "main"); err != nil {
		return nil, err
	}
	if g.areas, err = ctx.CreatePipeline("cloth_solve_areas", areaShader, "main"); err != nil {
		return nil, err
	}
	if g.collide, err = ctx.CreatePipeline("cloth_collide", collideShader, "main"); err != nil {
		return nil, err
	}
	if g.interaction, err = ctx.CreatePipeline("cloth_interaction", interactionShader, "main"); err != nil {
		return nil, err
	}
	if g.normals, err = ctx.CreatePipeline("cloth_normals", normalsShader, "main"); err != nil {
		return nil, err
	}

	s := eng.state

	// Particle state, vec4 padded.
	g.positionsBuf = track("positions", compute.ToBytes(PackVec4(s.Positions, nil)), readableUsage)
	g.prevBuf = track("prev_positions", compute.ToBytes(PackVec4(s.PrevPos, nil)), storageUsage)
	g.normalsBuf = track("normals", compute.ToBytes(PackVec4(s.Normals, nil)), readableUsage)
	g.invMassBuf = track("inv_mass", compute.ToBytes(s.InvMass), storageUsage)
	g.indicesBuf = track("indices", compute.ToBytes(s.Indices), storageUsage)
	g.forcesBuf = track("aero_forces", compute.ToBytes(make([]float32, s.Count*4)), storageUsage)

	// Constraints, batch order preserved.
	g.distanceBuf = track("distance_constraints", compute.ToBytes(packPairs(eng.distance)), storageUsage)
	g.bendingBuf = track("bending_constraints", compute.ToBytes(packPairs(eng.bending)), storageUsage)
	g.tetherBuf = track("tether_constraints", compute.ToBytes(packPairs(eng.tethers)), storageUsage)
	g.areaBuf = track("area_constraints", compute.ToBytes(packAreas(eng.areas)), storageUsage)

	adjOff, adjRefs := vertexTriangleAdjacency(s.Count, s.Indices)
	g.adjOffBuf = track("adjacency_offsets", compute.ToBytes(adjOff), storageUsage)
	g.adjRefBuf = track("adjacency_refs", compute.ToBytes(adjRefs), storageUsage)

	// Collider grid, flattened exactly as built.
	grid := eng.collider.Grid
	g.cellOffBuf = track("cell_offsets", compute.ToBytes(grid.CellOffsets), storageUsage)
	g.cellCntBuf = track("cell_counts", compute.ToBytes(grid.CellCounts), storageUsage)
	g.refsBuf = track("triangle_refs", compute.ToBytes(grid.Refs), storageUsage)

	tris := make([]gpuTriangle, len(eng.collider.Triangles))
	for i, t := range eng.collider.Triangles {
		tris[i] = gpuTriangle{
			V0:     [4]float32{t.V0.X, t.V0.Y, t.V0.Z, 0},
			V1:     [4]float32{t.V1.X, t.V1.Y, t.V1.Z, 0},
			V2:     [4]float32{t.V2.X, t.V2.Y, t.V2.Z, 0},
			Normal: [4]float32{t.Normal.X, t.Normal.Y, t.Normal.Z, t.Margin},
		}
	}
	g.trisBuf = track("collider_triangles", compute.ToBytes(tris), storageUsage)

	gridParams := gpuGridParams{
		GridMin:  [4]float32{grid.Min.X, grid.Min.Y, grid.Min.Z, 0},
		Dims:     [4]uint32{uint32(grid.Nx), uint32(grid.Ny), uint32(grid.Nz), uint32(grid.Nx * grid.Ny * grid.Nz)},
		CellSize: grid.CellSize,
		TriCount: uint32(len(tris)),
	}
	g.gridBuf = track("grid_params", compute.ToBytes([]gpuGridParams{gridParams}), uniformUsage)

	g.simBuf = track("sim_params", compute.ToBytes([]gpuSimParams{{}}), uniformUsage)
	g.batchBuf = track("batch_params", compute.ToBytes([]gpuBatchParams{{}}), uniformUsage)
	g.grabBuf = track("grab_params", compute.ToBytes([]gpuGrabParams{{}}), uniformUsage)

	if err != nil {
		g.release()
		return nil, fmt.Errorf("buffer allocation: %w", err)
	}

	return g, nil
}

func packPairs(c *PairConstraints) []gpuPairConstraint {
	out := make([]gpuPairConstraint, c.Len())
	for k := range out {
		out[k] = gpuPairConstraint{
			I1:         uint32(c.Parts[k*2]),
			I2:         uint32(c.Parts[k*2+1]),
			Rest:       c.RestLengths[k],
			Compliance: c.Compliances[k],
		}
	}
	if len(out) == 0 {
		out = make([]gpuPairConstraint, 1) // keep the binding non-empty
	}
	return out
}

func packAreas(c *TriConstraints) []gpuAreaConstraint {
	out := make([]gpuAreaConstraint, c.Len())
	for k := range out {
		out[k] = gpuAreaConstraint{
			I0:       uint32(c.Parts[k*3]),
			I1:       uint32(c.Parts[k*3+1]),
			I2:       uint32(c.Parts[k*3+2]),
			RestArea: c.RestAreas[k],
		}
	}
	if len(out) == 0 {
		out = make([]gpuAreaConstraint, 1)
	}
	return out
}

func (g *gpuBackend) writeSim(p gpuSimParams) {
	g.ctx.WriteBuffer(g.simBuf, 0, compute.ToBytes([]gpuSimParams{p}))
}

func (g *gpuBackend) writeBatch(p gpuBatchParams) {
	g.ctx.WriteBuffer(g.batchBuf, 0, compute.ToBytes([]gpuBatchParams{p}))
}

func (g *gpuBackend) setInteraction(active bool, index int32, target math32.Vector3) {
	p := gpuGrabParams{
		Target: [4]float32{target.X, target.Y, target.Z, 0},
	}
	if active && index >= 0 {
		p.Index = uint32(index)
		p.Active = 1
	}
	g.ctx.WriteBuffer(g.grabBuf, 0, compute.ToBytes([]gpuGrabParams{p}))
}

// step runs the fixed pipeline: per substep aero, integrate,
// interaction, then the solver iterations over every constraint batch in
// type order plus a collision pass; after all substeps, one normals
// pass. Queue submission order provides the inter-pass barrier.
func (g *gpuBackend) step(dt float32) error {
	cfg := g.eng.cfg
	substeps := cfg.Simulation.Substeps
	if substeps < 1 {
		substeps = 1
	}
	sdt := dt / float32(substeps)
	rho := cfg.Simulation.SpectralRadius

	sim := gpuSimParams{
		Gravity:         [4]float32{cfg.Simulation.Gravity[0], cfg.Simulation.Gravity[1], cfg.Simulation.Gravity[2], 0},
		Wind:            [4]float32{cfg.Simulation.Wind[0], cfg.Simulation.Wind[1], cfg.Simulation.Wind[2], 0},
		Dt:              sdt,
		VelScale:        cfg.Material.Damping * (1 - cfg.Material.Drag),
		Omega:           1,
		Margin:          cfg.Collision.ContactThickness,
		Stiffness:       cfg.Collision.CollisionStiffness,
		StaticFriction:  cfg.Collision.StaticFriction,
		DynamicFriction: cfg.Collision.DynamicFriction,
		DragCoeff:       cfg.Material.DragCoeff,
		LiftCoeff:       cfg.Material.LiftCoeff,
		ParticleCount:   uint32(g.eng.state.Count),
	}

	particleGroups := compute.Workgroups(uint32(g.eng.state.Count), 256)

	for sub := 0; sub < substeps; sub++ {
		g.writeSim(sim)

		// Aero reads neighbor state, so it runs as its own pass: forces
		// are complete before integration touches any position.
		if err := g.ctx.Dispatch(compute.DispatchParams{
			Pipeline: g.aero,
			Bindings: []*compute.Buffer{
				g.positionsBuf,
				g.prevBuf,
				g.indicesBuf,
				g.adjOffBuf,
				g.adjRefBuf,
				g.forcesBuf,
				g.simBuf,
			},
			WorkgroupsX: particleGroups,
		}); err != nil {
			return err
		}

		if err := g.ctx.Dispatch(compute.DispatchParams{
			Pipeline: g.integrate,
			Bindings: []*compute.Buffer{
				g.positionsBuf,
				g.prevBuf,
				g.invMassBuf,
				g.forcesBuf,
				g.simBuf,
			},
			WorkgroupsX: particleGroups,
		}); err != nil {
			return err
		}

		if err := g.ctx.Dispatch(compute.DispatchParams{
			Pipeline: g.interaction,
			Bindings: []*compute.Buffer{
				g.positionsBuf,
				g.invMassBuf,
				g.grabBuf,
			},
			WorkgroupsX: 1,
		}); err != nil {
			return err
		}

		omega := float32(1)
		for it := 0; it < cfg.Simulation.SolverIterations; it++ {
			omega = chebyshevOmega(it, rho, omega)
			sim.Omega = omega
			g.writeSim(sim)

			if err := g.solvePairSet(g.distanceBuf, g.eng.distance, false); err != nil {
				return err
			}
			if err := g.solvePairSet(g.bendingBuf, g.eng.bending, false); err != nil {
				return err
			}
			if err := g.solveAreaSet(g.areaBuf, g.eng.areas, cfg.Material.AreaCompliance); err != nil {
				return err
			}
			if err := g.solvePairSet(g.tetherBuf, g.eng.tethers, true); err != nil {
				return err
			}

			if err := g.ctx.Dispatch(compute.DispatchParams{
				Pipeline: g.collide,
				Bindings: []*compute.Buffer{
					g.positionsBuf,
					g.prevBuf,
					g.invMassBuf,
					g.cellOffBuf,
					g.cellCntBuf,
					g.refsBuf,
					g.trisBuf,
					g.simBuf,
					g.gridBuf,
				},
				WorkgroupsX: particleGroups,
			}); err != nil {
				return err
			}
		}
	}

	return g.ctx.Dispatch(compute.DispatchParams{
		Pipeline: g.normals,
		Bindings: []*compute.Buffer{
			g.positionsBuf,
			g.indicesBuf,
			g.adjOffBuf,
			g.adjRefBuf,
			g.normalsBuf,
			g.simBuf,
		},
		WorkgroupsX: particleGroups,
	})
}

// solvePairSet dispatches one pass over every color batch of a pair
// constraint set, in batch order. Different batches of the same type are
// sequential dependencies; only constraints within one batch run
// concurrently.
func (g *gpuBackend) solvePairSet(buf *compute.Buffer, c *PairConstraints, unilateral bool) error {
	for b := 0; b < c.NumBatches(); b++ {
		start, end := c.Offsets[b], c.Offsets[b+1]
		if start == end {
			continue
		}
		bp := gpuBatchParams{
			Start:              uint32(start),
			Count:              uint32(end - start),
			ComplianceOverride: -1,
		}
		if unilateral {
			bp.Unilateral = 1
		}
		g.writeBatch(bp)

		if err := g.ctx.Dispatch(compute.DispatchParams{
			Pipeline:    g.pairs,
			Bindings:    []*compute.Buffer{g.positionsBuf, g.invMassBuf, buf, g.simBuf, g.batchBuf},
			WorkgroupsX: compute.Workgroups(bp.Count, 256),
		}); err != nil {
			return err
		}
	}
	return nil
}

func (g *gpuBackend) solveAreaSet(buf *compute.Buffer, c *TriConstraints, compliance float32) error {
	for b := 0; b < c.NumBatches(); b++ {
		start, end := c.Offsets[b], c.Offsets[b+1]
		if start == end {
			continue
		}
		g.writeBatch(gpuBatchParams{
			Start:              uint32(start),
			Count:              uint32(end - start),
			ComplianceOverride: compliance,
		})

		if err := g.ctx.Dispatch(compute.DispatchParams{
			Pipeline:    g.areas,
			Bindings:    []*compute.Buffer{g.positionsBuf, g.invMassBuf, buf, g.simBuf, g.batchBuf},
			WorkgroupsX: compute.Workgroups(uint32(end-start), 256),
		}); err != nil {
			return err
		}
	}
	return nil
}

func (g *gpuBackend) readPositions() ([]float32, error) {
	return g.ctx.ReadBufferFloat32(g.positionsBuf)
}

func (g *gpuBackend) readNormals() ([]float32, error) {
	return g.ctx.ReadBufferFloat32(g.normalsBuf)
}

// release frees every device buffer. Idempotent; the context itself is
// owned by the caller and released separately.
func (g *gpuBackend) release() {
	if g.released {
		return
	}
	g.released = true
	for _, buf := range g.buffers {
		if buf != nil {
			buf.Release()
		}
	}
	g.buffers = nil
}
