package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStages_OrdinalsContiguous(t *testing.T) {
	st := Stages()
	require.Len(t, st, 11)
	for i, s := range st {
		require.Equal(t, i, s.Ordinal)
		require.Equal(t, s.Ordinal, StageIndex(s.Key))
	}
	require.Equal(t, Scheduled, Initial().Key)
	require.Equal(t, Certified, Terminal().Key)
}

func TestStages_ReturnsCopy(t *testing.T) {
	st := Stages()
	st[0].Key = "MUTATED"
	require.Equal(t, Scheduled, Stages()[0].Key)
}

func TestStageIndex_CancelledAndUnknown(t *testing.T) {
	require.Equal(t, -1, StageIndex(Cancelled))
	require.Equal(t, -1, StageIndex("NOPE"))
	require.Equal(t, -1, StageIndex(""))
}

func TestLookup(t *testing.T) {
	s, ok := Lookup(Cancelled)
	require.True(t, ok)
	require.Equal(t, -1, s.Ordinal)

	s, ok = Lookup(Weighed)
	require.True(t, ok)
	require.Equal(t, 6, s.Ordinal)

	_, ok = Lookup("weighed")
	require.False(t, ok)
}

func TestIsClosed(t *testing.T) {
	require.True(t, IsClosed(Certified))
	require.True(t, IsClosed(Cancelled))
	for _, s := range Stages()[:LinearCount()-1] {
		require.False(t, IsClosed(s.Key), s.Key)
	}
}
