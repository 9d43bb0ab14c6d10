package rediscache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestNotifier_PublishSubscribe(t *testing.T) {
	mr := miniredis.RunT(t)
	n := NewNotifier(NewClient(mr.Addr()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	hints, stop, err := n.Subscribe(ctx, "o1")
	require.NoError(t, err)
	defer stop()

	require.NoError(t, n.Notify(ctx, "o2", "stage"))
	require.NoError(t, n.Notify(ctx, "o1", "evidence"))

	select {
	case h := <-hints:
		require.Equal(t, "o1", h.OrderID)
		require.Equal(t, "evidence", h.Kind)
		require.False(t, h.At.IsZero())
	case <-ctx.Done():
		t.Fatal("no hint received")
	}
}

func TestNotifier_StopClosesStream(t *testing.T) {
	mr := miniredis.RunT(t)
	n := NewNotifier(NewClient(mr.Addr()))

	hints, stop, err := n.Subscribe(context.Background(), "o1")
	require.NoError(t, err)
	stop()
	stop()

	select {
	case _, ok := <-hints:
		require.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("stream not closed")
	}
}

func TestChangesChannel(t *testing.T) {
	require.Equal(t, "orders:abc:changes", ChangesChannel("abc"))
}
