package llm

import "context"

// Role 表示对话消息的角色。
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message 是发送给文本生成服务的一条对话消息。
type Message struct {
	Role    Role
	Content string
}

// Request 描述一次文本生成请求。
type Request struct {
	Messages  []Message
	MaxTokens int
}

// Client 定义了调用文本生成服务的统一接口。返回值可能为空字符串。
type Client interface {
	GenerateText(ctx context.Context, req Request) (string, error)
}
