package sim

import (
	"context"

	"github.com/san-kum/episim/internal/epidemic"
)

// Model pairs a Simulator with the parameter set currently held for it.
// Calibration never touches the held set; callers decide when to Commit.
type Model struct {
	sim    *Simulator
	params epidemic.Params
}

func NewModel(s *Simulator, initial epidemic.Params) *Model {
	return &Model{sim: s, params: initial}
}

func (m *Model) Simulator() *Simulator { return m.sim }

func (m *Model) Params() epidemic.Params { return m.params }

func (m *Model) Commit(p epidemic.Params) { m.params = p }

// Predict simulates under the held parameters.
func (m *Model) Predict(ctx context.Context) (*epidemic.Trajectory, error) {
	return m.sim.Simulate(ctx, m.params)
}
