package epidemic

import (
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/episim/internal/dynamo"
)

const (
	NameBetaA       = "beta_a"
	NameBetaB       = "beta_b"
	NameBetaK       = "beta_k"
	NameSlipthrough = "slipthrough"
	NameLockdownA   = "lockdown_a"
	NameLockdownB   = "lockdown_b"
	NameGamma       = "gamma"
	NameRho         = "rho"
)

// Positions of each parameter in Params.Vector. The derivative reads its
// arguments by these indices.
const (
	IdxBetaA = iota
	IdxBetaB
	IdxBetaK
	IdxSlipthrough
	IdxLockdownA
	IdxLockdownB
	IdxGamma
	IdxRho
	NumParams
)

var paramNames = [NumParams]string{
	NameBetaA, NameBetaB, NameBetaK, NameSlipthrough,
	NameLockdownA, NameLockdownB, NameGamma, NameRho,
}

// Names returns the parameter names in vector order.
func Names() []string {
	names := make([]string, NumParams)
	copy(names, paramNames[:])
	return names
}

// Index returns the vector position of a named parameter.
func Index(name string) (int, bool) {
	for i, n := range paramNames {
		if n == name {
			return i, true
		}
	}
	return -1, false
}

// Params is the full parameter set of the SIRD model. It is a value type:
// calibration returns new Params rather than mutating shared state.
type Params struct {
	BetaA       float64 `yaml:"beta_a" json:"beta_a"`
	BetaB       float64 `yaml:"beta_b" json:"beta_b"`
	BetaK       float64 `yaml:"beta_k" json:"beta_k"`
	Slipthrough float64 `yaml:"slipthrough" json:"slipthrough"`
	LockdownA   float64 `yaml:"lockdown_a" json:"lockdown_a"`
	LockdownB   float64 `yaml:"lockdown_b" json:"lockdown_b"`
	Gamma       float64 `yaml:"gamma" json:"gamma"`
	Rho         float64 `yaml:"rho" json:"rho"`
}

func (p Params) Vector() []float64 {
	return []float64{
		p.BetaA, p.BetaB, p.BetaK, p.Slipthrough,
		p.LockdownA, p.LockdownB, p.Gamma, p.Rho,
	}
}

func ParamsFromVector(v []float64) (Params, error) {
	if len(v) != NumParams {
		return Params{}, fmt.Errorf("%w: expected %d parameters, got %d", dynamo.ErrDimensionMismatch, NumParams, len(v))
	}
	return Params{
		BetaA:       v[IdxBetaA],
		BetaB:       v[IdxBetaB],
		BetaK:       v[IdxBetaK],
		Slipthrough: v[IdxSlipthrough],
		LockdownA:   v[IdxLockdownA],
		LockdownB:   v[IdxLockdownB],
		Gamma:       v[IdxGamma],
		Rho:         v[IdxRho],
	}, nil
}

func (p Params) Map() map[string]float64 {
	v := p.Vector()
	m := make(map[string]float64, NumParams)
	for i, name := range paramNames {
		m[name] = v[i]
	}
	return m
}

// ParamsFromMap requires exactly the eight model parameters.
func ParamsFromMap(m map[string]float64) (Params, error) {
	v := make([]float64, NumParams)
	for i, name := range paramNames {
		val, ok := m[name]
		if !ok {
			return Params{}, fmt.Errorf("missing parameter %q", name)
		}
		v[i] = val
	}
	if len(m) != NumParams {
		var unknown []string
		for k := range m {
			if _, ok := Index(k); !ok {
				unknown = append(unknown, k)
			}
		}
		sort.Strings(unknown)
		return Params{}, fmt.Errorf("unknown parameters %v", unknown)
	}
	return ParamsFromVector(v)
}

func (p Params) Get(name string) (float64, error) {
	i, ok := Index(name)
	if !ok {
		return 0, fmt.Errorf("unknown param: %s", name)
	}
	return p.Vector()[i], nil
}

// With returns a copy of p with one parameter replaced.
func (p Params) With(name string, value float64) (Params, error) {
	i, ok := Index(name)
	if !ok {
		return p, fmt.Errorf("unknown param: %s", name)
	}
	v := p.Vector()
	v[i] = value
	return ParamsFromVector(v)
}

// Validate reports parameters outside their physically meaningful domain:
// non-finite values, negative rates, and fractions outside [0, 1].
func (p Params) Validate() error {
	v := p.Vector()
	for i, val := range v {
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return fmt.Errorf("%w: %s is not finite", dynamo.ErrParameterBounds, paramNames[i])
		}
	}
	if p.BetaK < 0 {
		return fmt.Errorf("%w: beta_k must be non-negative, got %g", dynamo.ErrParameterBounds, p.BetaK)
	}
	if p.Gamma < 0 {
		return fmt.Errorf("%w: gamma must be non-negative, got %g", dynamo.ErrParameterBounds, p.Gamma)
	}
	if p.Rho < 0 || p.Rho > 1 {
		return fmt.Errorf("%w: rho must be in [0, 1], got %g", dynamo.ErrParameterBounds, p.Rho)
	}
	if p.Slipthrough < 0 || p.Slipthrough > 1 {
		return fmt.Errorf("%w: slipthrough must be in [0, 1], got %g", dynamo.ErrParameterBounds, p.Slipthrough)
	}
	return nil
}

// Clamp projects p onto the domain Validate accepts. Non-finite values are
// left alone.
func (p Params) Clamp() Params {
	p.BetaK = math.Max(p.BetaK, 0)
	p.Gamma = math.Max(p.Gamma, 0)
	p.Rho = clamp01(p.Rho)
	p.Slipthrough = clamp01(p.Slipthrough)
	return p
}

func clamp01(v float64) float64 {
	return math.Min(math.Max(v, 0), 1)
}
