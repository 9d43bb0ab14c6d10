package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func states(p Progress) []StageState {
	out := make([]StageState, 0, len(p.Stages))
	for _, s := range p.Stages {
		out = append(out, s.State)
	}
	return out
}

func TestComputeProgress_MidPipeline(t *testing.T) {
	p := ComputeProgress("COLLECTED")
	require.Equal(t, Collected, p.Current)
	require.False(t, p.Cancelled)
	require.Len(t, p.Stages, 11)
	require.InDelta(t, 30.0, p.Percent, 1e-9)

	st := states(p)
	require.Equal(t, []StageState{StateCompleted, StateCompleted, StateCompleted}, st[:3])
	require.Equal(t, StateCurrent, st[3])
	for _, s := range st[4:] {
		require.Equal(t, StatePending, s)
	}
}

func TestComputeProgress_LegacyToken(t *testing.T) {
	p := ComputeProgress("EN_RUTA")
	require.Equal(t, OnSitePickup, p.Current)
	require.InDelta(t, 20.0, p.Percent, 1e-9)
}

func TestComputeProgress_InitialAndTerminal(t *testing.T) {
	p := ComputeProgress("SCHEDULED")
	require.Zero(t, p.Percent)
	require.Equal(t, StateCurrent, p.Stages[0].State)

	p = ComputeProgress("CERTIFIED")
	require.InDelta(t, 100.0, p.Percent, 1e-9)
	require.Equal(t, StateCurrent, p.Stages[10].State)
}

func TestComputeProgress_UnknownIsJustStarted(t *testing.T) {
	p := ComputeProgress("garbage")
	require.Equal(t, Scheduled, p.Current)
	require.Zero(t, p.Percent)
	require.Equal(t, StateCurrent, p.Stages[0].State)
}

func TestComputeProgress_Idempotent(t *testing.T) {
	for _, raw := range []string{"", "PESADA", "processed", "CANCELLED", "CERTIFIED"} {
		require.Equal(t, ComputeProgress(raw), ComputeProgress(raw))
	}
}

func TestComputeProgress_PercentMonotonicAndBounded(t *testing.T) {
	prev := -1.0
	for _, s := range Stages() {
		p := ComputeProgress(string(s.Key))
		require.GreaterOrEqual(t, p.Percent, prev)
		require.GreaterOrEqual(t, p.Percent, 0.0)
		require.LessOrEqual(t, p.Percent, 100.0)
		prev = p.Percent
	}
}

func TestComputeProgress_CancelledWithoutHaltPoint(t *testing.T) {
	p := ComputeProgress("cancelled")
	require.True(t, p.Cancelled)
	require.Equal(t, Cancelled, p.Current)
	require.Zero(t, p.Percent)
	for _, s := range p.Stages {
		require.Equal(t, StatePending, s.State)
	}
}

func TestComputeProgressFrom_CancelledFreezesAtHalt(t *testing.T) {
	p := ComputeProgressFrom("CANCELADA", AtDepot)
	require.True(t, p.Cancelled)
	require.InDelta(t, 50.0, p.Percent, 1e-9)

	st := states(p)
	for i := 0; i < 5; i++ {
		require.Equal(t, StateCompleted, st[i])
	}
	require.Equal(t, StateHalted, st[5])
	for _, s := range st[6:] {
		require.Equal(t, StatePending, s)
	}
}

func TestComputeProgressFrom_IgnoresHaltForOpenOrders(t *testing.T) {
	require.Equal(t, ComputeProgress("WEIGHED"), ComputeProgressFrom("WEIGHED", Collected))
}
