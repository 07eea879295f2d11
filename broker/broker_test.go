package broker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyBroker struct {
	Broker
	failures int
	calls    int
}

var errRefused = errors.New("connection refused")

func (f *flakyBroker) Connect(ctx context.Context) error {
	f.calls++
	if f.calls <= f.failures {
		return errRefused
	}
	return nil
}

func TestConnectRetries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		failures  int
		attempts  int
		wantCalls int
		wantErr   bool
	}{
		{"first_try", 0, 3, 1, false},
		{"recovers", 2, 3, 3, false},
		{"exhausted", 5, 3, 3, true},
		{"at_least_once", 0, 0, 1, false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b := &flakyBroker{failures: tt.failures}
			err := Connect(context.Background(), b, tt.attempts, time.Millisecond)
			assert.Equal(t, tt.wantCalls, b.calls)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrConnect)
			assert.ErrorIs(t, err, errRefused)
		})
	}
}

func TestConnectHonoursContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	b := &flakyBroker{failures: 10}

	done := make(chan error, 1)
	go func() { done <- Connect(ctx, b, 10, time.Hour) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Connect did not return after cancel")
	}
}

var _ Broker = (*flakyBroker)(nil)
