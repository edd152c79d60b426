package agent

import (
	"context"
	stdErrors "errors"
	"strings"
	"time"

	xerrors "NeoX-Agent/internal/errors"
	"NeoX-Agent/internal/llm"
)

// Settings 提供按键读取配置项的能力。
type Settings interface {
	GetSetting(key string) (string, bool)
}

// MapSettings 是基于 map 的 Settings 实现，主要用于测试。
type MapSettings map[string]string

// GetSetting 实现 Settings 接口。
func (m MapSettings) GetSetting(key string) (string, bool) {
	value, ok := m[key]
	return value, ok && strings.TrimSpace(value) != ""
}

// Agent 描述了智能体的身份、配置与文本生成能力。
type Agent struct {
	id         string
	name       string
	llmClient  llm.Client
	settings   Settings
	llmTimeout time.Duration
	maxTokens  int
}

// Option 定义可选的 Agent 配置。
type Option func(*Agent)

// WithName 设置智能体的展示名称。
func WithName(name string) Option {
	return func(a *Agent) {
		a.name = strings.TrimSpace(name)
	}
}

// WithLLMTimeout 设置调用大模型的超时时间。
func WithLLMTimeout(timeout time.Duration) Option {
	return func(a *Agent) {
		if timeout <= 0 {
			a.llmTimeout = 0
			return
		}
		a.llmTimeout = timeout
	}
}

// WithMaxTokens 限制单次生成的 token 数量。
func WithMaxTokens(tokens int) Option {
	return func(a *Agent) {
		if tokens > 0 {
			a.maxTokens = tokens
		}
	}
}

// New 创建一个 Agent。
func New(id string, llmClient llm.Client, settings Settings, opts ...Option) *Agent {
	ag := &Agent{
		id:        strings.TrimSpace(id),
		llmClient: llmClient,
		settings:  settings,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(ag)
		}
	}
	if ag.name == "" {
		ag.name = ag.id
	}
	return ag
}

// ID 返回智能体标识。
func (a *Agent) ID() string {
	return a.id
}

// Name 返回智能体名称。
func (a *Agent) Name() string {
	return a.name
}

// GetSetting 读取运行时配置项。
func (a *Agent) GetSetting(key string) (string, bool) {
	if a.settings == nil {
		return "", false
	}
	return a.settings.GetSetting(key)
}

// GenerateText 以给定消息调用大模型，返回生成的文本（可能为空）。
func (a *Agent) GenerateText(ctx context.Context, messages []llm.Message) (string, error) {
	if a.llmClient == nil {
		return "", xerrors.New(xerrors.CodeInitializationFailure, "未配置大模型客户端")
	}
	if len(messages) == 0 {
		return "", xerrors.New(xerrors.CodeInvalidArgument, "生成请求缺少消息")
	}

	llmCtx := ctx
	if a.llmTimeout > 0 {
		var cancel context.CancelFunc
		llmCtx, cancel = context.WithTimeout(ctx, a.llmTimeout)
		defer cancel()
	}

	text, err := a.llmClient.GenerateText(llmCtx, llm.Request{Messages: messages, MaxTokens: a.maxTokens})
	if err != nil {
		if stdErrors.Is(err, context.DeadlineExceeded) {
			return "", xerrors.Wrap(xerrors.CodeTimeout, err, "大模型推理超时")
		}
		return "", xerrors.Wrap(xerrors.CodeGenerationFailure, err, "大模型推理失败")
	}
	return strings.TrimSpace(text), nil
}
