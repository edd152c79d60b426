package actions

import (
	"context"
	"strings"

	"NeoX-Agent/internal/observability/metrics"
	"NeoX-Agent/pkg/logger"
)

// Content 是消息或响应的载荷。
type Content struct {
	Text   string `json:"text"`
	Action string `json:"action,omitempty"`
}

// Message 是发往某个动作的请求。
type Message struct {
	UserID  string  `json:"user_id,omitempty"`
	RoomID  string  `json:"room_id,omitempty"`
	Content Content `json:"content"`
}

// Options 携带补充消息文本的结构化参数。
type Options map[string]any

// String 返回去除空白后的参数值，缺失时返回 ""。
func (o Options) String(key string) string {
	if o == nil {
		return ""
	}
	value, ok := o[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(value)
}

// Callback 接收处理函数产生的响应。
type Callback func(Content)

// Example 是示例对话中的一轮。
type Example struct {
	User    string  `json:"user"`
	Content Content `json:"content"`
}

// Handler 处理消息并通过回调报告结果。
// 失败以回调文本的形式报告，不会作为返回值。
type Handler func(ctx context.Context, msg Message, opts Options, cb Callback)

// Action 描述智能体可调用的具名能力。
type Action struct {
	Name        string
	Similes     []string
	Description string
	Examples    [][]Example
	Validate    func(ctx context.Context, msg Message) bool
	Handler     Handler
}

// Matches 判断 name 是否直接或通过别名指向该动作。
func (a *Action) Matches(name string) bool {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == a.Name {
		return true
	}
	for _, simile := range a.Similes {
		if name == simile {
			return true
		}
	}
	return false
}

// Plugin 将相关动作归为一组。
type Plugin struct {
	Name        string
	Description string
	Actions     []*Action
}

// Find 按名称或别名查找已注册的动作。
func (p *Plugin) Find(name string) (*Action, bool) {
	if p == nil {
		return nil, false
	}
	for _, action := range p.Actions {
		if action.Matches(name) {
			return action, true
		}
	}
	return nil, false
}

// Invoke 校验 msg 后执行动作的处理函数。
// 每条响应在交给 cb 之前都会写入审计日志。
func (p *Plugin) Invoke(ctx context.Context, action *Action, msg Message, opts Options, cb Callback) bool {
	if action.Validate != nil && !action.Validate(ctx, msg) {
		return false
	}
	metrics.ObserveAction(action.Name)
	logger.Named("actions").Debug("执行动作", "action", action.Name, "room_id", msg.RoomID)

	if cb == nil {
		action.Handler(ctx, msg, opts, nil)
		return true
	}
	action.Handler(ctx, msg, opts, func(content Content) {
		logger.Audit().Info("action_response",
			"action", action.Name,
			"user_id", msg.UserID,
			"room_id", msg.RoomID,
			"text", content.Text,
		)
		cb(content)
	})
	return true
}
