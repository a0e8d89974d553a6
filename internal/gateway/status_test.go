package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	tNew = iota + 1
	tPending
	tDone
	tFailed
	tDelayed
	tResolved
	tAuthorized
)

func testTable(t *testing.T) *StatusTable {
	t.Helper()
	table, err := NewStatusTable(StatusTableConfig{
		New:       tNew,
		Completed: tDone,
		Stages: map[int]Stage{
			tNew:        StageNew,
			tPending:    StageProgress,
			tAuthorized: StageProgress,
			tDone:       StageTerminal,
			tFailed:     StageTerminal,
			tDelayed:    StageTerminal,
			tResolved:   StageTerminal,
		},
		Progress:    []int{tPending, tAuthorized},
		Names:       map[int]string{tNew: "new", tDone: "done"},
		Provider:    map[string]int{"created": tNew, "pending": tPending, "done": tDone, "failed": tFailed},
		Resolutions: map[int][]int{tFailed: {tDelayed}, tDelayed: {tResolved}},
	})
	require.NoError(t, err)
	return table
}

func TestCanTransition(t *testing.T) {
	table := testTable(t)
	tests := []struct {
		name     string
		from, to int
		want     bool
	}{
		{"unset to new", 0, tNew, true},
		{"unset to done", 0, tDone, true},
		{"new to pending", tNew, tPending, true},
		{"pending to done", tPending, tDone, true},
		{"same status", tPending, tPending, false},
		{"pending back to new", tPending, tNew, false},
		{"pending to authorized", tPending, tAuthorized, true},
		{"authorized back to pending", tAuthorized, tPending, false},
		{"authorized back to new", tAuthorized, tNew, false},
		{"authorized to done", tAuthorized, tDone, true},
		{"done to pending", tDone, tPending, false},
		{"done to failed", tDone, tFailed, false},
		{"failed to delayed", tFailed, tDelayed, true},
		{"delayed to resolved", tDelayed, tResolved, true},
		{"failed to resolved", tFailed, tResolved, false},
		{"undeclared target", tNew, 99, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, table.CanTransition(tt.from, tt.to))
		})
	}
}

func TestMapRejectsUnknownStatus(t *testing.T) {
	table := testTable(t)

	v, err := table.Map("done")
	require.NoError(t, err)
	assert.Equal(t, tDone, v)

	_, err = table.Map("DONE")
	require.ErrorIs(t, err, ErrUnmappedStatus)
}

func TestNames(t *testing.T) {
	table := testTable(t)
	assert.Equal(t, "done", table.Name(tDone))
	assert.Equal(t, "status_2", table.Name(tPending))
	assert.True(t, table.IsTerminal(tFailed))
	assert.False(t, table.IsTerminal(tPending))
}

func TestNewStatusTableValidation(t *testing.T) {
	base := func() StatusTableConfig {
		return StatusTableConfig{
			New:       1,
			Completed: 2,
			Stages:    map[int]Stage{1: StageNew, 2: StageTerminal},
		}
	}

	tests := []struct {
		name   string
		mutate func(*StatusTableConfig)
	}{
		{"new not declared", func(c *StatusTableConfig) { c.New = 5 }},
		{"completed not terminal", func(c *StatusTableConfig) { c.Stages[2] = StageProgress }},
		{"zero status", func(c *StatusTableConfig) { c.Stages[0] = StageProgress }},
		{"two new statuses", func(c *StatusTableConfig) { c.Stages[3] = StageNew }},
		{"provider to undeclared", func(c *StatusTableConfig) { c.Provider = map[string]int{"x": 9} }},
		{"resolution from progress", func(c *StatusTableConfig) {
			c.Stages[3] = StageProgress
			c.Progress = []int{3}
			c.Resolutions = map[int][]int{3: {2}}
		}},
		{"progress status not ranked", func(c *StatusTableConfig) { c.Stages[3] = StageProgress }},
		{"ranked status not progress", func(c *StatusTableConfig) {
			c.Stages[3] = StageTerminal
			c.Progress = []int{3}
		}},
		{"progress listed twice", func(c *StatusTableConfig) {
			c.Stages[3] = StageProgress
			c.Progress = []int{3, 3}
		}},
		{"completed has resolution", func(c *StatusTableConfig) {
			c.Stages[3] = StageTerminal
			c.Resolutions = map[int][]int{2: {3}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			_, err := NewStatusTable(cfg)
			assert.Error(t, err)
		})
	}

	_, err := NewStatusTable(base())
	assert.NoError(t, err)
}
