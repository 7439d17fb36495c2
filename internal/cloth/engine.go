package cloth

import (
	"errors"
	"fmt"

	"cogentcore.org/core/math32"

	"drapesim/internal/compute"
	"drapesim/internal/config"
	"drapesim/internal/logger"
)

// ErrDisposed is returned when an engine is used after Dispose.
var ErrDisposed = errors.New("cloth: engine is disposed")

// MeshData is the pre-processed garment mesh handed in by the asset
// pipeline: flat xyz positions, triangle indices and optional UVs
// (rendering-only; the solver uses them solely as bending hints).
type MeshData struct {
	Positions []float32
	Normals   []float32
	Indices   []uint32
	UVs       []float32
}

// BodyData is the static collider mesh. Normals are accepted for
// interface symmetry but recomputed after smoothing.
type BodyData struct {
	Positions []float32
	Normals   []float32
	Indices   []uint32
}

// Engine owns one cloth simulation: particle state, immutable constraint
// batches, the body collider and all device-side resources. One engine
// per garment; nothing is shared between instances.
type Engine struct {
	cfg *config.Config

	state    *State
	collider *MeshCollider

	distance *PairConstraints
	bending  *PairConstraints
	tethers  *PairConstraints
	areas    *TriConstraints

	resolver *collisionResolver
	aero     aerodynamics
	prof     profiler

	interactionActive bool
	interactionIndex  int
	interactionTarget math32.Vector3

	gpu *gpuBackend // nil = CPU backend

	positionsOut []float32
	normalsOut   []float32

	disposed bool
}

// NewEngine builds the full simulation from pre-processed buffers.
// scaleFactor is the garment's world scale; bending compliance grows
// with its square so stiffness is resolution-independent. Pass a compute
// context to run on the GPU, or nil for the CPU backend.
func NewEngine(garment MeshData, body BodyData, cfg *config.Config, scaleFactor float32, gctx *compute.Context) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if scaleFactor <= 0 {
		scaleFactor = 1
	}

	state, err := NewState(garment.Positions, garment.Indices, garment.UVs)
	if err != nil {
		return nil, fmt.Errorf("garment mesh: %w", err)
	}

	collider, err := NewMeshCollider(body.Positions, body.Indices, ColliderOptions{
		SmoothingIterations: cfg.Collision.SmoothingIterations,
		Inflation:           cfg.Collision.Inflation,
		Margin:              cfg.Collision.ContactThickness,
		GridCellSize:        cfg.Collision.GridCellSize,
	})
	if err != nil {
		return nil, fmt.Errorf("body mesh: %w", err)
	}

	e := &Engine{
		cfg:      cfg,
		state:    state,
		collider: collider,
		distance: GenerateDistanceConstraints(state, cfg.Material.DistanceCompliance),
		bending:  GenerateBendingConstraints(state, cfg.Material.BendingCompliance*scaleFactor*scaleFactor),
		tethers:  GenerateTetherConstraints(state),
		areas:    GenerateAreaConstraints(state),
		resolver: newCollisionResolver(state.Count),
		aero: aerodynamics{
			DragCoeff: cfg.Material.DragCoeff,
			LiftCoeff: cfg.Material.LiftCoeff,
			Wind:      math32.Vec3(cfg.Simulation.Wind[0], cfg.Simulation.Wind[1], cfg.Simulation.Wind[2]),
		},
		interactionIndex: -1,
	}

	logger.Sugar.Infow("cloth engine initialized",
		"particles", state.Count,
		"distance", e.distance.Len(),
		"bending", e.bending.Len(),
		"tethers", e.tethers.Len(),
		"areas", e.areas.Len(),
		"distanceBatches", e.distance.NumBatches(),
		"backend", map[bool]string{true: "gpu", false: "cpu"}[gctx != nil])

	if gctx != nil {
		gpu, err := newGPUBackend(gctx, e)
		if err != nil {
			return nil, fmt.Errorf("gpu backend: %w", err)
		}
		e.gpu = gpu
	}

	return e, nil
}

// State exposes the particle state for tests and the viewer.
func (e *Engine) State() *State { return e.state }

// Collider exposes the built body collider.
func (e *Engine) Collider() *MeshCollider { return e.collider }

// ConstraintCounts reports how many constraints of each kind were
// generated from the garment mesh.
func (e *Engine) ConstraintCounts() (distance, bending, tethers, areas int) {
	return e.distance.Len(), e.bending.Len(), e.tethers.Len(), e.areas.Len()
}

// ProfilerStats returns per-phase timing statistics.
func (e *Engine) ProfilerStats() map[string]TimingStats { return e.prof.Stats() }

// Step advances the simulation by dt seconds. dt is capped so a resumed
// or backgrounded frame cannot blow the solver up; within a step the
// pass sequence is fixed and non-preemptible.
func (e *Engine) Step(dt float32) error {
	if e.disposed {
		return ErrDisposed
	}
	if dt <= 0 {
		return nil
	}
	if max := e.cfg.Simulation.MaxDt; max > 0 && dt > max {
		dt = max
	}

	if e.gpu != nil {
		return e.gpu.step(dt)
	}
	e.stepCPU(dt)
	return nil
}

func (e *Engine) stepCPU(dt float32) {
	cfg := e.cfg
	substeps := cfg.Simulation.Substeps
	if substeps < 1 {
		substeps = 1
	}
	sdt := dt / float32(substeps)
	gravity := math32.Vec3(cfg.Simulation.Gravity[0], cfg.Simulation.Gravity[1], cfg.Simulation.Gravity[2])

	// Broad phase once per frame; the query radius covers the motion.
	e.prof.start(catBroadPhase)
	e.resolver.broadPhase(e.state, e.collider)
	e.prof.end(catBroadPhase)

	for sub := 0; sub < substeps; sub++ {
		e.prof.start(catAerodynamics)
		forces := e.aero.apply(e.state, sdt)
		e.prof.end(catAerodynamics)

		e.prof.start(catIntegration)
		integrate(e.state, gravity, cfg.Material.Damping, cfg.Material.Drag, forces, sdt)
		e.prof.end(catIntegration)

		e.prof.start(catInteraction)
		e.solveInteraction()
		e.prof.end(catInteraction)

		e.prof.start(catNarrowPhase)
		e.resolver.narrowPhase(e.state, e.collider, cfg.Collision.ContactThickness, sdt)
		e.prof.end(catNarrowPhase)

		e.prof.start(catConstraints)
		e.solveConstraints(sdt)
		e.prof.end(catConstraints)
	}

	e.prof.start(catNormals)
	computeVertexNormals(e.state.Positions, e.state.Indices, e.state.Normals)
	e.prof.end(catNormals)
}

// solveConstraints runs the solver iterations for one substep. Type
// order is fixed: distance, bending, area, tether, then contact
// resolution. Contact projection is excluded from Chebyshev
// acceleration.
func (e *Engine) solveConstraints(sdt float32) {
	cfg := e.cfg
	rho := cfg.Simulation.SpectralRadius

	omega := float32(1)
	for it := 0; it < cfg.Simulation.SolverIterations; it++ {
		omega = chebyshevOmega(it, rho, omega)

		solvePairs(e.state, e.distance, omega, sdt, false)
		solvePairs(e.state, e.bending, omega, sdt, false)
		solveAreas(e.state, e.areas, cfg.Material.AreaCompliance, omega, sdt)
		solvePairs(e.state, e.tethers, omega, sdt, true)

		e.resolver.resolveContacts(e.state,
			cfg.Collision.ContactThickness,
			cfg.Collision.CollisionStiffness,
			cfg.Collision.StaticFriction,
			cfg.Collision.DynamicFriction)
	}
}

// solveInteraction pins the grabbed particle to its drag target.
// Compliance zero makes the XPBD multiplier w/(w+alpha) collapse to 1:
// the particle follows the target exactly while mobile.
func (e *Engine) solveInteraction() {
	if !e.interactionActive {
		return
	}
	idx := e.interactionIndex
	if idx < 0 || idx >= e.state.Count {
		return
	}
	if e.state.InvMass[idx] < pinnedEpsilon {
		return
	}
	diff := e.interactionTarget.Sub(e.state.Positions[idx])
	e.state.Positions[idx] = e.state.Positions[idx].Add(diff)
}

// StartInteraction grabs a particle and pins it to the given target.
func (e *Engine) StartInteraction(index int, x, y, z float32) error {
	if e.disposed {
		return ErrDisposed
	}
	if index < 0 || index >= e.state.Count {
		return fmt.Errorf("interaction index %d out of range [0,%d)", index, e.state.Count)
	}
	e.interactionActive = true
	e.interactionIndex = index
	e.interactionTarget = math32.Vec3(x, y, z)
	e.syncInteraction()
	return nil
}

// UpdateInteraction moves the drag target.
func (e *Engine) UpdateInteraction(x, y, z float32) error {
	if e.disposed {
		return ErrDisposed
	}
	if !e.interactionActive {
		return nil
	}
	e.interactionTarget = math32.Vec3(x, y, z)
	e.syncInteraction()
	return nil
}

// EndInteraction releases the grabbed particle.
func (e *Engine) EndInteraction() error {
	if e.disposed {
		return ErrDisposed
	}
	e.interactionActive = false
	e.interactionIndex = -1
	e.syncInteraction()
	return nil
}

func (e *Engine) syncInteraction() {
	if e.gpu != nil {
		e.gpu.setInteraction(e.interactionActive, int32(e.interactionIndex), e.interactionTarget)
	}
}

// Positions returns the particle positions as stride-4 floats
// (x,y,z,pad per particle), matching the device buffer layout.
func (e *Engine) Positions() ([]float32, error) {
	if e.disposed {
		return nil, ErrDisposed
	}
	if e.gpu != nil {
		return e.gpu.readPositions()
	}
	e.positionsOut = PackVec4(e.state.Positions, e.positionsOut)
	return e.positionsOut, nil
}

// Normals returns the vertex normals as stride-4 floats.
func (e *Engine) Normals() ([]float32, error) {
	if e.disposed {
		return nil, ErrDisposed
	}
	if e.gpu != nil {
		return e.gpu.readNormals()
	}
	e.normalsOut = PackVec4(e.state.Normals, e.normalsOut)
	return e.normalsOut, nil
}

// Dispose releases all device-side resources. Idempotent; any further
// use of the engine returns ErrDisposed.
func (e *Engine) Dispose() {
	if e.disposed {
		return
	}
	e.disposed = true
	if e.gpu != nil {
		e.gpu.release()
		e.gpu = nil
	}
}
