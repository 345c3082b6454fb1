package natsjetstream

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"allocation/messaging"
)

func TestDecodeEnvelope(t *testing.T) {
	msg, err := messaging.NewMessage("line_allocated", map[string]any{"orderid": "o1", "qty": 3})
	require.NoError(t, err)
	msg.SetMetadata(messaging.MetaCorrelationID, "c-1")
	data, err := json.Marshal(msg)
	require.NoError(t, err)

	decoded, err := decode(data, "ignored")
	require.NoError(t, err)
	assert.Equal(t, msg.ID, decoded.ID)
	assert.Equal(t, "line_allocated", decoded.Type)
	assert.Equal(t, msg.Timestamp.UnixNano(), decoded.Timestamp.UnixNano())
	assert.JSONEq(t, `{"orderid":"o1","qty":3}`, string(decoded.Payload))
	assert.Equal(t, "c-1", decoded.Metadata[messaging.MetaCorrelationID])
}

func TestDecodeDefaultsChannel(t *testing.T) {
	decoded, err := decode([]byte(`{"id":"x","payload":{}}`), "allocate")
	require.NoError(t, err)
	assert.Equal(t, "allocate", decoded.Type)
	assert.NotNil(t, decoded.Metadata)

	_, err = decode([]byte(`not json`), "allocate")
	assert.Error(t, err)
}

func TestStreamConfig(t *testing.T) {
	cfg := Config{Retention: "limits", Replicas: 3}
	cfg.applyDefaults()
	sc := streamConfig(cfg)
	assert.Equal(t, "ALLOCATION", sc.Name)
	assert.Equal(t, []string{"allocation.>"}, sc.Subjects)
	assert.Equal(t, nats.LimitsPolicy, sc.Retention)
	assert.Equal(t, 3, sc.Replicas)
}

func TestPublishRequiresStart(t *testing.T) {
	tpt := NewTransport(Config{})
	err := tpt.Publish(context.Background(), &messaging.Message{ID: "1", Type: "allocate"})
	assert.ErrorIs(t, err, messaging.ErrTransportStopped)
	assert.False(t, tpt.Stats().Running)
}
