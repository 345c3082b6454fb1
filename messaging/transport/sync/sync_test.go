package sync

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"allocation/messaging"
)

func TestSyncTransport_PublishFlow(t *testing.T) {
	tpt := NewSyncTransport()
	require.NoError(t, tpt.Start(context.Background()))
	defer tpt.Close()

	var got []string
	require.NoError(t, tpt.Subscribe("line_allocated", messaging.MessageHandlerFunc(func(ctx context.Context, m *messaging.Message) error {
		got = append(got, m.ID+"@"+messaging.CorrelationID(ctx))
		return nil
	})))
	require.NoError(t, tpt.Subscribe(messaging.Wildcard, messaging.MessageHandlerFunc(func(ctx context.Context, m *messaging.Message) error {
		got = append(got, "any")
		return nil
	})))

	msg, err := messaging.NewMessage("line_allocated", map[string]string{"orderid": "o1"})
	require.NoError(t, err)
	msg.SetMetadata(messaging.MetaCorrelationID, "c-1")
	require.NoError(t, tpt.Publish(context.Background(), msg))
	assert.Equal(t, []string{msg.ID + "@c-1", "any"}, got)

	stats := tpt.Stats()
	assert.True(t, stats.Running)
	assert.Equal(t, 2, stats.HandlerCount)
	assert.Equal(t, []string{"line_allocated"}, stats.Channels)
}

func TestSyncTransport_HandlerErrorsJoined(t *testing.T) {
	tpt := NewSyncTransport()
	require.NoError(t, tpt.Start(context.Background()))
	boom := errors.New("boom")
	require.NoError(t, tpt.Subscribe("allocate", messaging.MessageHandlerFunc(func(context.Context, *messaging.Message) error { return boom })))

	err := tpt.Publish(context.Background(), &messaging.Message{ID: "1", Type: "allocate"})
	assert.ErrorIs(t, err, boom)
}

func TestSyncTransport_NotRunning(t *testing.T) {
	tpt := NewSyncTransport()
	err := tpt.Publish(context.Background(), &messaging.Message{ID: "x", Type: "T"})
	assert.ErrorIs(t, err, messaging.ErrTransportStopped)
	assert.Error(t, tpt.Close())
}
