package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/episim/internal/calibrate"
	"github.com/san-kum/episim/internal/epidemic"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Population != 1000 {
		t.Errorf("expected population 1000, got %g", cfg.Population)
	}
	if cfg.Days != 50 {
		t.Errorf("expected 50 days, got %d", cfg.Days)
	}
	if cfg.Integrator != "rk45" {
		t.Errorf("expected rk45, got %s", cfg.Integrator)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestInitialStateDefaultsToOneInfected(t *testing.T) {
	cfg := DefaultConfig()
	got := cfg.InitialState()
	want := epidemic.Compartments{S: 999, I: 1}
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}

	cfg.Initial = epidemic.Compartments{S: 990, I: 5, R: 5}
	if cfg.InitialState() != cfg.Initial {
		t.Error("explicit initial state should win")
	}
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("baseline")
	if cfg == nil {
		t.Fatal("expected preset, got nil")
	}
	if cfg.Params.BetaK != 0.4 {
		t.Errorf("expected beta_k 0.4, got %f", cfg.Params.BetaK)
	}
	if cfg.Integrator != DefaultIntegrator {
		t.Errorf("preset should inherit defaults, got integrator %q", cfg.Integrator)
	}

	cfg.Params.BetaK = 9
	if Presets["baseline"].Params.BetaK != 0.4 {
		t.Error("GetPreset must return a copy")
	}
}

func TestGetPreset_NotFound(t *testing.T) {
	if cfg := GetPreset("nonexistent"); cfg != nil {
		t.Error("expected nil for nonexistent preset")
	}
}

func TestPresetsValidate(t *testing.T) {
	for _, name := range ListPresets() {
		if err := GetPreset(name).Validate(); err != nil {
			t.Errorf("preset %s: %v", name, err)
		}
	}
}

func TestListPresets(t *testing.T) {
	names := ListPresets()
	want := []string{"baseline", "lockdown", "slow-burn"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("expected %v, got %v", want, names)
		}
	}
}

func TestLoadAndSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.yaml")

	cfg := GetPreset("lockdown")
	cfg.Form = "balanced"
	cfg.Intervention.Objective = "curve"
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Params != cfg.Params {
		t.Errorf("params changed on round trip: %+v vs %+v", loaded.Params, cfg.Params)
	}
	if f, _ := loaded.ParsedForm(); f != epidemic.FormBalanced {
		t.Errorf("expected balanced form, got %v", f)
	}
	if o, _ := loaded.ParsedObjective(); o != calibrate.ObjectiveCurve {
		t.Errorf("expected curve objective, got %v", o)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	data := []byte("days: 30\nparams:\n  beta_k: 0.7\n  gamma: 0.2\n  rho: 0.05\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Days != 30 || cfg.Params.BetaK != 0.7 {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Population != DefaultPopulation || cfg.Solver != DefaultSolver {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero population", func(c *Config) { c.Population = 0 }},
		{"zero days", func(c *Config) { c.Days = 0 }},
		{"initial mismatch", func(c *Config) { c.Initial = epidemic.Compartments{S: 10, I: 1} }},
		{"observed length", func(c *Config) { c.Observed = []float64{1, 2, 3} }},
		{"observed twice", func(c *Config) {
			c.Observed = make([]float64, c.Days)
			c.ObservedFile = "deaths.csv"
		}},
		{"unknown form", func(c *Config) { c.Form = "sideways" }},
		{"unknown objective", func(c *Config) { c.Intervention.Objective = "mean" }},
		{"negative noise", func(c *Config) { c.Synth.Noise = -1 }},
		{"unknown grid", func(c *Config) { c.Grid = "hourly" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestTimeGrid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Days = 5

	daily, err := cfg.TimeGrid()
	if err != nil {
		t.Fatal(err)
	}
	if daily.Len() != 5 || daily.At(4) != 4 {
		t.Errorf("daily grid: got %v", daily.Points())
	}

	cfg.Grid = GridLinspace
	spread, err := cfg.TimeGrid()
	if err != nil {
		t.Fatal(err)
	}
	if spread.Len() != 5 || spread.At(0) != 0 || spread.At(4) != 5 {
		t.Errorf("linspace grid should span [0, days], got %v", spread.Points())
	}

	cfg.Grid = "hourly"
	if _, err := cfg.TimeGrid(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}
