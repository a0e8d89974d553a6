package gateway

import (
	"fmt"
)

type Stage int

const (
	StageNew Stage = iota
	StageProgress
	StageTerminal
)

type StatusTableConfig struct {
	New       int
	Completed int
	Stages    map[int]Stage
	Names     map[int]string
	// Progress lists the StageProgress statuses in forward order.
	Progress []int
	// Provider maps the provider's status vocabulary onto the adapter's constants.
	Provider map[string]int
	// Resolutions lists the only edges allowed out of a terminal status.
	Resolutions map[int][]int
}

// StatusTable is an adapter's own status set. Values are never shared across adapters.
type StatusTable struct {
	cfg  StatusTableConfig
	rank map[int]int
}

func NewStatusTable(cfg StatusTableConfig) (*StatusTable, error) {
	if _, ok := cfg.Stages[cfg.New]; !ok || cfg.Stages[cfg.New] != StageNew {
		return nil, fmt.Errorf("new status %d must be declared with StageNew", cfg.New)
	}
	if cfg.Stages[cfg.Completed] != StageTerminal {
		return nil, fmt.Errorf("completed status %d must be terminal", cfg.Completed)
	}
	if len(cfg.Resolutions[cfg.Completed]) > 0 {
		return nil, fmt.Errorf("completed status %d cannot have resolutions", cfg.Completed)
	}
	for v, stage := range cfg.Stages {
		if v <= 0 {
			return nil, fmt.Errorf("status %d must be positive", v)
		}
		if stage == StageNew && v != cfg.New {
			return nil, fmt.Errorf("status %d: only one new status allowed", v)
		}
	}
	rank := make(map[int]int, len(cfg.Progress))
	for i, v := range cfg.Progress {
		if cfg.Stages[v] != StageProgress {
			return nil, fmt.Errorf("progress status %d must be declared with StageProgress", v)
		}
		if _, dup := rank[v]; dup {
			return nil, fmt.Errorf("progress status %d listed twice", v)
		}
		rank[v] = i
	}
	for v, stage := range cfg.Stages {
		if _, ranked := rank[v]; stage == StageProgress && !ranked {
			return nil, fmt.Errorf("progress status %d missing from Progress", v)
		}
	}
	for name, v := range cfg.Provider {
		if _, ok := cfg.Stages[v]; !ok {
			return nil, fmt.Errorf("provider status %q maps to undeclared status %d", name, v)
		}
	}
	for from, tos := range cfg.Resolutions {
		if cfg.Stages[from] != StageTerminal {
			return nil, fmt.Errorf("resolution source %d must be terminal", from)
		}
		for _, to := range tos {
			if _, ok := cfg.Stages[to]; !ok {
				return nil, fmt.Errorf("resolution target %d undeclared", to)
			}
		}
	}
	return &StatusTable{cfg: cfg, rank: rank}, nil
}

func MustStatusTable(cfg StatusTableConfig) *StatusTable {
	t, err := NewStatusTable(cfg)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *StatusTable) New() int { return t.cfg.New }

func (t *StatusTable) Completed() int { return t.cfg.Completed }

func (t *StatusTable) Name(status int) string {
	if n, ok := t.cfg.Names[status]; ok {
		return n
	}
	return fmt.Sprintf("status_%d", status)
}

// Map translates a provider status; an unknown one is an error, never a guess.
func (t *StatusTable) Map(providerStatus string) (int, error) {
	v, ok := t.cfg.Provider[providerStatus]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnmappedStatus, providerStatus)
	}
	return v, nil
}

func (t *StatusTable) IsTerminal(status int) bool {
	return t.cfg.Stages[status] == StageTerminal
}

// CanTransition reports whether moving from -> to is forward progress.
// Re-applying the current status is not a transition, and progress statuses
// only move to a later entry of Progress.
func (t *StatusTable) CanTransition(from, to int) bool {
	if from == to {
		return false
	}
	toStage, ok := t.cfg.Stages[to]
	if !ok {
		return false
	}
	fromStage, ok := t.cfg.Stages[from]
	if !ok {
		// unset or foreign value: only the adapter's statuses may follow
		return true
	}
	if fromStage == StageTerminal {
		for _, r := range t.cfg.Resolutions[from] {
			if r == to {
				return true
			}
		}
		return false
	}
	if fromStage == StageProgress && toStage == StageProgress {
		return t.rank[to] > t.rank[from]
	}
	return toStage > fromStage
}
