package interaction

import (
	"context"
	"strings"

	"NeoX-Agent/internal/events"
	"NeoX-Agent/internal/llm"
	"NeoX-Agent/internal/memory"
	"NeoX-Agent/internal/observability/metrics"
	"NeoX-Agent/internal/social"
	"NeoX-Agent/pkg/logger"
)

// TextGenerator 生成单轮回复文本，由 agent.Agent 实现。
type TextGenerator interface {
	GenerateText(ctx context.Context, messages []llm.Message) (string, error)
}

// ReplyResult 是回复处理的抽象结论。
type ReplyResult struct {
	Text   string
	Action events.Action
	Err    error
}

// ReplyHandler 为单条合格的提及生成并发送回复，本身不保存状态。
type ReplyHandler struct {
	platform  social.Client
	generator TextGenerator
}

// NewReplyHandler 创建回复处理器。
func NewReplyHandler(platform social.Client, generator TextGenerator) *ReplyHandler {
	return &ReplyHandler{platform: platform, generator: generator}
}

// Handle 处理单条提及。生成或发送失败只记录日志，不会向调用方返回错误。
func (h *ReplyHandler) Handle(ctx context.Context, handle string, mention social.Mention, mem memory.ConversationMemory) ReplyResult {
	log := logger.Named("reply")

	if mention.UserID != "" && mention.UserID == h.platform.Profile().ID {
		return ReplyResult{Action: events.ActionIgnore}
	}
	text := mem.Content.Text
	if strings.TrimSpace(text) == "" {
		return ReplyResult{Action: events.ActionIgnore}
	}
	if !mentionsHandle(text, handle) {
		return ReplyResult{Action: events.ActionIgnore}
	}

	reply, err := h.generator.GenerateText(ctx, []llm.Message{{Role: llm.RoleUser, Content: text}})
	if err != nil {
		metrics.ObserveInteractionError(metrics.StageGenerate)
		logFailure(ctx, log, "生成回复失败", err, "mention_id", mention.ID)
		return ReplyResult{Action: events.ActionRespond, Err: err}
	}
	if reply == "" {
		log.Warn("生成的回复为空", "mention_id", mention.ID)
		return ReplyResult{Action: events.ActionRespond}
	}

	if err := h.platform.ReplyToTweet(ctx, mention.ID, reply); err != nil {
		metrics.ObserveInteractionError(metrics.StageReply)
		logFailure(ctx, log, "发送回复失败", err, "mention_id", mention.ID)
		return ReplyResult{Text: reply, Action: events.ActionRespond, Err: err}
	}

	metrics.ObserveReplySent()
	log.Info("已回复提及", "mention_id", mention.ID, "username", mention.Username)
	logger.Audit().Info("reply_sent",
		"mention_id", mention.ID,
		"username", mention.Username,
		"room_id", mem.RoomID,
		"reply", reply,
	)
	return ReplyResult{Text: reply, Action: events.ActionRespond}
}

// mentionsHandle 判断文本是否包含 @handle，大小写不敏感。
func mentionsHandle(text, handle string) bool {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return false
	}
	return strings.Contains(strings.ToLower(text), "@"+strings.ToLower(handle))
}
