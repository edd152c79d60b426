package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Action 表示回复处理器给出的处理结论。
type Action string

const (
	ActionRespond Action = "RESPOND"
	ActionIgnore  Action = "IGNORE"
)

// InteractionEvent 描述一次提及被处理后的结果，供下游审计或分析消费。
type InteractionEvent struct {
	MentionID  string    `json:"mention_id"`
	Username   string    `json:"username"`
	Qualified  bool      `json:"qualified"`
	Action     Action    `json:"action"`
	Reply      string    `json:"reply,omitempty"`
	Error      string    `json:"error,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher 负责投递交互事件。
type Publisher interface {
	Publish(ctx context.Context, event InteractionEvent) error
	Close() error
}

// NopPublisher 丢弃所有事件。
type NopPublisher struct{}

// Publish 实现 Publisher 接口。
func (NopPublisher) Publish(context.Context, InteractionEvent) error { return nil }

// Close 实现 Publisher 接口。
func (NopPublisher) Close() error { return nil }

func encode(event InteractionEvent) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("序列化交互事件失败: %w", err)
	}
	return payload, nil
}
