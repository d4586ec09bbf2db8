package config

import (
	"sort"

	"github.com/san-kum/episim/internal/epidemic"
)

var Presets = map[string]*Config{
	"baseline": {
		Population: 1000, Days: 50,
		Initial: epidemic.Compartments{S: 999, I: 1},
		Params:  epidemic.Params{BetaK: 0.4, Gamma: 0.1, Rho: 0.02},
	},
	"lockdown": {
		Population: 10000, Days: 120,
		Initial: epidemic.Compartments{S: 9990, I: 10},
		Params: epidemic.Params{
			BetaA: -1, BetaB: 0.02, BetaK: 0.9, Slipthrough: 0.05,
			LockdownA: -2, LockdownB: 0.05, Gamma: 0.12, Rho: 0.01,
		},
	},
	"slow-burn": {
		Population: 100000, Days: 200,
		Initial: epidemic.Compartments{S: 99995, I: 5},
		Params: epidemic.Params{
			BetaK: 0.5, Slipthrough: 0.1, LockdownA: 0.5, LockdownB: 0.01,
			Gamma: 0.07, Rho: 0.005,
		},
	},
}

// GetPreset returns a copy of the named preset layered over the defaults,
// or nil.
func GetPreset(name string) *Config {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	cfg.Population = p.Population
	cfg.Days = p.Days
	cfg.Initial = p.Initial
	cfg.Params = p.Params
	return cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
