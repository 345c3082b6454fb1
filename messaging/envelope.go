// Package messaging 提供领域消息总线，以及与外部通道交互所用的消息信封与传输层抽象
package messaging

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// 元数据键
const (
	MetaCorrelationID = "correlation_id"
	MetaMessageName   = "message_name"
)

// Message 外部通道上传输的消息信封，Type 为通道名
type Message struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Payload   json.RawMessage   `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// NewMessage 以 JSON 编码 payload 创建信封
func NewMessage(channel string, payload any) (*Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload for %s: %w", channel, err)
	}
	return &Message{
		ID:        uuid.NewString(),
		Type:      channel,
		Timestamp: time.Now().UTC(),
		Payload:   raw,
		Metadata:  make(map[string]string),
	}, nil
}

// Decode 将 payload 解码到 v
func (m *Message) Decode(v any) error {
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", m.Type, err)
	}
	return nil
}

// SetMetadata 设置元数据
func (m *Message) SetMetadata(key, value string) {
	if m.Metadata == nil {
		m.Metadata = make(map[string]string)
	}
	m.Metadata[key] = value
}
