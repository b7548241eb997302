package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPublishRunsAllHandlersDespiteErrors(t *testing.T) {
	d := NewInMemoryDispatcher(zap.NewNop())

	var calls []string
	d.Subscribe(EventDeletionCancelled, func(context.Context, Event) error {
		calls = append(calls, "first")
		return errors.New("boom")
	})
	d.Subscribe(EventDeletionCancelled, func(_ context.Context, e Event) error {
		calls = append(calls, "second")
		payload, ok := e.Payload.(DeletionCancelledPayload)
		require.True(t, ok)
		assert.True(t, payload.Forced)
		return nil
	})
	d.Subscribe(EventDeletionCompleted, func(context.Context, Event) error {
		calls = append(calls, "other")
		return nil
	})

	err := d.Publish(context.Background(), Event{
		Type:    EventDeletionCancelled,
		UserID:  "u1",
		Payload: DeletionCancelledPayload{Forced: true},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, calls)
}
