// Package config handles simulation configuration loading and management.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all simulation settings.
type Config struct {
	Simulation SimulationConfig `yaml:"simulation"`
	Material   MaterialConfig   `yaml:"material"`
	Collision  CollisionConfig  `yaml:"collision"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// SimulationConfig holds time stepping and solver quality settings.
type SimulationConfig struct {
	// MaxDt caps the per-frame time step so a backgrounded or resumed
	// frame cannot destabilize the solver.
	MaxDt            float32    `yaml:"max_dt"`
	Substeps         int        `yaml:"substeps"`
	SolverIterations int        `yaml:"solver_iterations"`
	Gravity          [3]float32 `yaml:"gravity"`
	Wind             [3]float32 `yaml:"wind"`
	// SpectralRadius tunes Chebyshev acceleration of the constraint
	// iterations. 0 disables acceleration.
	SpectralRadius float32 `yaml:"spectral_radius"`
}

// MaterialConfig holds cloth material properties.
type MaterialConfig struct {
	Damping float32 `yaml:"damping"`
	Drag    float32 `yaml:"drag"`
	// Aerodynamic coefficients: DragCoeff acts on velocity perpendicular
	// to the cloth surface, LiftCoeff on the tangential component.
	DragCoeff float32 `yaml:"drag_coeff"`
	LiftCoeff float32 `yaml:"lift_coeff"`
	// Compliance is inverse stiffness; 0 means perfectly rigid.
	DistanceCompliance float32 `yaml:"distance_compliance"`
	BendingCompliance  float32 `yaml:"bending_compliance"`
	AreaCompliance     float32 `yaml:"area_compliance"`
}

// CollisionConfig holds body collision response settings.
type CollisionConfig struct {
	// ContactThickness is the margin kept between cloth and body surface.
	ContactThickness float32 `yaml:"contact_thickness"`
	StaticFriction   float32 `yaml:"static_friction"`
	DynamicFriction  float32 `yaml:"dynamic_friction"`
	// CollisionStiffness scales the push-out per iteration, 0 to 1.
	CollisionStiffness float32 `yaml:"collision_stiffness"`
	// Collider preprocessing.
	SmoothingIterations int     `yaml:"smoothing_iterations"`
	Inflation           float32 `yaml:"inflation"`
	GridCellSize        float32 `yaml:"grid_cell_size"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with cotton-like material defaults.
func Default() *Config {
	return &Config{
		Simulation: SimulationConfig{
			MaxDt:            1.0 / 30.0,
			Substeps:         8,
			SolverIterations: 25,
			Gravity:          [3]float32{0, -9.81, 0},
			Wind:             [3]float32{0, 0, 0},
			SpectralRadius:   0.94,
		},
		Material: MaterialConfig{
			Damping:            0.995,
			Drag:               0.0,
			DragCoeff:          2.0,
			LiftCoeff:          0.05,
			DistanceCompliance: 0.0,
			BendingCompliance:  1.0,
			// 1e-6 is effectively rigid but avoids blow-ups when the
			// rest mesh starts slightly degenerate.
			AreaCompliance: 1e-6,
		},
		Collision: CollisionConfig{
			ContactThickness:    0.005,
			StaticFriction:      0.3,
			DynamicFriction:     0.2,
			CollisionStiffness:  0.9,
			SmoothingIterations: 3,
			Inflation:           0.0,
			GridCellSize:        0.05,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Load reads configuration from a YAML file. Missing file returns defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}
