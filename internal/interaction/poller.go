package interaction

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"NeoX-Agent/internal/config"
	xerrors "NeoX-Agent/internal/errors"
	"NeoX-Agent/internal/events"
	"NeoX-Agent/internal/memory"
	"NeoX-Agent/internal/observability/metrics"
	"NeoX-Agent/internal/social"
	"NeoX-Agent/pkg/logger"
)

// Runtime 是轮询器依赖的智能体能力，由 agent.Agent 实现。
type Runtime interface {
	TextGenerator
	ID() string
	GetSetting(key string) (string, bool)
}

// MemoryStore 持久化会话记忆。
type MemoryStore interface {
	Save(ctx context.Context, mem memory.ConversationMemory) error
}

// WaitFunc 在两次轮询之间等待，ctx 取消时返回错误。
type WaitFunc func(ctx context.Context, d time.Duration) error

// State 是轮询循环持有的全部可变状态，由驱动方创建并传入每一次 tick。
type State struct {
	LastPollTime time.Time
	PollInterval time.Duration
	Processed    ProcessedSet
}

// NewState 创建带有内存去重集合的初始状态。
func NewState(interval time.Duration, processed ProcessedSet) *State {
	if interval <= 0 {
		interval = config.DefaultPollInterval
	}
	if processed == nil {
		processed = NewMemorySet()
	}
	return &State{PollInterval: interval, Processed: processed}
}

// TickReport 汇总一次 tick 的处理结果。
type TickReport struct {
	Fetched   int
	Skipped   int
	Processed int
	Replied   int
	Failed    int
}

// Poller 定期拉取提及并交给 ReplyHandler 处理。
type Poller struct {
	platform social.Client
	runtime  Runtime
	handler  *ReplyHandler
	store    MemoryStore
	events   events.Publisher
	wait     WaitFunc
	now      func() time.Time
}

// Option 定义 Poller 的可选配置。
type Option func(*Poller)

// WithMemoryStore 设置会话记忆的存储。
func WithMemoryStore(store MemoryStore) Option {
	return func(p *Poller) {
		p.store = store
	}
}

// WithEventPublisher 设置交互事件的发布器。
func WithEventPublisher(pub events.Publisher) Option {
	return func(p *Poller) {
		if pub != nil {
			p.events = pub
		}
	}
}

// WithWait 替换两次 tick 之间的等待函数。
func WithWait(wait WaitFunc) Option {
	return func(p *Poller) {
		if wait != nil {
			p.wait = wait
		}
	}
}

// WithClock 替换时间来源。
func WithClock(now func() time.Time) Option {
	return func(p *Poller) {
		if now != nil {
			p.now = now
		}
	}
}

// NewPoller 创建轮询器。
func NewPoller(platform social.Client, runtime Runtime, opts ...Option) *Poller {
	p := &Poller{
		platform: platform,
		runtime:  runtime,
		handler:  NewReplyHandler(platform, runtime),
		events:   events.NopPublisher{},
		wait:     sleep,
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Start 初始化平台客户端后进入轮询循环，直到 ctx 被取消。
// 初始化失败或未配置账号名时立即返回错误。
func (p *Poller) Start(ctx context.Context, state *State) error {
	if state == nil {
		return xerrors.New(xerrors.CodeInvalidArgument, "轮询状态不能为空")
	}
	if err := p.platform.Init(ctx); err != nil {
		return xerrors.Wrap(xerrors.CodeInitializationFailure, err, "初始化社交平台客户端失败")
	}
	handle := p.handle()
	if handle == "" {
		return xerrors.New(xerrors.CodeInitializationFailure, "未配置 "+config.SettingTwitterUsername)
	}

	log := logger.Named("poller")
	log.Info("开始轮询提及", "handle", handle, "interval", state.PollInterval.String())
	for {
		report := p.CheckInteractions(ctx, state)
		log.Debug("轮询完成",
			"fetched", report.Fetched,
			"skipped", report.Skipped,
			"processed", report.Processed,
			"replied", report.Replied,
			"failed", report.Failed,
		)
		if err := p.wait(ctx, state.PollInterval); err != nil {
			log.Info("停止轮询提及", "reason", err)
			return err
		}
	}
}

// CheckInteractions 执行一次 tick。错误只记录日志，不会跨越 tick 边界。
func (p *Poller) CheckInteractions(ctx context.Context, state *State) TickReport {
	log := logger.Named("poller")
	var report TickReport
	defer func() {
		state.LastPollTime = p.now()
		metrics.ObservePollTick()
	}()

	mentions, err := p.platform.GetMentions(ctx)
	if err != nil {
		metrics.ObserveInteractionError(metrics.StageFetch)
		logFailure(ctx, log, "获取提及失败", err)
		return report
	}
	report.Fetched = len(mentions)
	metrics.ObserveMentionsFetched(len(mentions))

	handle := p.handle()
	for _, mention := range mentions {
		if ctx.Err() != nil {
			return report
		}

		done, err := state.Processed.Has(ctx, mention.ID)
		if err != nil {
			metrics.ObserveInteractionError(metrics.StageDedup)
			logFailure(ctx, log, "查询已处理集合失败", err, "mention_id", mention.ID)
			report.Failed++
			continue
		}
		if done {
			report.Skipped++
			continue
		}

		thread, err := p.platform.GetConversationThread(ctx, mention.ID)
		if err != nil {
			metrics.ObserveInteractionError(metrics.StageThread)
			logFailure(ctx, log, "获取会话失败", err, "mention_id", mention.ID)
			report.Failed++
			continue
		}

		mem := memory.Build(p.runtime.ID(), mention, thread)
		p.saveMemory(ctx, mem)

		qualified := mentionsHandle(mention.Text, handle)
		result := ReplyResult{Action: events.ActionIgnore}
		if qualified {
			result = p.handler.Handle(ctx, handle, mention, mem)
			if result.Action == events.ActionRespond && result.Err == nil && result.Text != "" {
				report.Replied++
			}
		}

		if err := state.Processed.Add(ctx, mention.ID); err != nil {
			metrics.ObserveInteractionError(metrics.StageDedup)
			logFailure(ctx, log, "标记提及失败", err, "mention_id", mention.ID)
			report.Failed++
			continue
		}
		report.Processed++
		metrics.ObserveMentionProcessed(qualified)

		p.publish(ctx, mention, qualified, result)
	}
	return report
}

func (p *Poller) handle() string {
	if p.runtime == nil {
		return ""
	}
	value, ok := p.runtime.GetSetting(config.SettingTwitterUsername)
	if !ok {
		return ""
	}
	return strings.TrimPrefix(strings.TrimSpace(value), "@")
}

func (p *Poller) saveMemory(ctx context.Context, mem memory.ConversationMemory) {
	if p.store == nil {
		return
	}
	if err := p.store.Save(ctx, mem); err != nil {
		metrics.ObserveInteractionError(metrics.StageMemory)
		logFailure(ctx, logger.Named("poller"), "保存会话记忆失败", err, "mention_id", mem.Metadata.MentionID)
	}
}

func (p *Poller) publish(ctx context.Context, mention social.Mention, qualified bool, result ReplyResult) {
	event := events.InteractionEvent{
		MentionID:  mention.ID,
		Username:   mention.Username,
		Qualified:  qualified,
		Action:     result.Action,
		Reply:      result.Text,
		OccurredAt: p.now().UTC(),
	}
	if result.Err != nil {
		event.Error = result.Err.Error()
	}
	if err := p.events.Publish(ctx, event); err != nil {
		metrics.ObserveInteractionError(metrics.StageEvent)
		logFailure(ctx, logger.Named("poller"), "发布交互事件失败", err, "mention_id", mention.ID)
	}
}

// logFailure 按错误的严重程度选择日志级别，并附带错误码与可重试性。
func logFailure(ctx context.Context, log *slog.Logger, msg string, err error, args ...any) {
	args = append(args,
		"error", err,
		"code", string(xerrors.CodeOf(err)),
		"retryable", xerrors.RetryableError(err),
	)
	log.Log(ctx, xerrors.LogLevel(err), msg, args...)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
