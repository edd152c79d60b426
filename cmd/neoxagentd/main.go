package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"golang.org/x/sync/errgroup"

	"NeoX-Agent/internal/actions"
	"NeoX-Agent/internal/agent"
	"NeoX-Agent/internal/api"
	"NeoX-Agent/internal/auth"
	"NeoX-Agent/internal/config"
	"NeoX-Agent/internal/events"
	"NeoX-Agent/internal/explorer"
	"NeoX-Agent/internal/interaction"
	"NeoX-Agent/internal/llm"
	"NeoX-Agent/internal/llm/openai"
	"NeoX-Agent/internal/observability/metrics"
	"NeoX-Agent/internal/social/twitter"
	"NeoX-Agent/internal/storage/mysql"
	"NeoX-Agent/pkg/logger"
)

// Options 是命令行参数。
type Options struct {
	Config   string `short:"c" long:"config" env:"NEOX_CONFIG" default:"configs/neox.json" description:"配置文件路径"`
	LogLevel string `long:"log-level" env:"NEOX_LOG_LEVEL" description:"覆盖配置中的日志级别"`
	NoPoll   bool   `long:"no-poll" description:"只启动 API 服务，不轮询提及"`
}

// main 是 NeoX 智能体守护进程的入口。
func main() {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "neoxagentd 运行失败: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return err
	}

	level := cfg.Logging.Level
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	if err := logger.Init(logger.Config{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: cfg.Logging.OutputPaths,
		Audit: logger.AuditConfig{
			Enabled: cfg.Logging.AuditPath != "",
			Path:    cfg.Logging.AuditPath,
		},
	}); err != nil {
		return err
	}
	defer logger.Sync()
	log := logger.Named("daemon")

	if err := os.MkdirAll(cfg.Runtime.DataDir, 0o755); err != nil {
		return err
	}

	registry, err := explorer.NewRegistry(explorer.RegistryConfig{
		NetworksFile:   cfg.Explorer.NetworksFile,
		APIURL:         cfg.Explorer.APIURL,
		DefaultNetwork: cfg.Explorer.DefaultNetwork,
		Timeout:        cfg.Explorer.Timeout(),
	})
	if err != nil {
		return err
	}
	plugin := actions.NewNeoPlugin(registry)

	memories, err := createMemoryRepository(ctx, cfg)
	if err != nil {
		return err
	}
	if memories != nil {
		defer memories.Close()
	}

	var (
		poller *interaction.Poller
		state  *interaction.State
	)
	if !opts.NoPoll {
		var cleanup func()
		poller, state, cleanup, err = createPoller(ctx, cfg, memories)
		if err != nil {
			return err
		}
		defer cleanup()
	}

	group, groupCtx := errgroup.WithContext(ctx)

	if cfg.Server.IsEnabled() {
		serverOpts := []api.Option{api.WithAuth(auth.NewService(cfg.Server.APIKeys))}
		if memories != nil {
			serverOpts = append(serverOpts, api.WithMemories(memories))
		}
		server := api.NewServer(cfg.Server.Address, plugin, serverOpts...)
		group.Go(func() error {
			return server.Start(groupCtx)
		})
	}
	if cfg.Metrics.Address != "" {
		group.Go(func() error {
			return metrics.StartServer(groupCtx, cfg.Metrics.Address)
		})
	}
	if poller != nil {
		group.Go(func() error {
			return poller.Start(groupCtx, state)
		})
	}

	log.Info("neoxagentd 已启动", "agent", cfg.Agent.ID, "networks", registry.Networks())
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("neoxagentd 已退出")
	return nil
}

func createPoller(ctx context.Context, cfg *config.Config, memories mysql.MemoryRepository) (*interaction.Poller, *interaction.State, func(), error) {
	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.Named("daemon").Warn("释放资源失败", "error", err)
			}
		}
	}

	platform, err := twitter.NewClient(twitter.Config{
		BaseURL:     cfg.Twitter.BaseURL,
		AccessToken: cfg.Twitter.AccessToken,
		MaxResults:  cfg.Twitter.MaxResults,
		ThreadDepth: cfg.Twitter.ThreadDepth,
		Timeout:     cfg.Twitter.Timeout(),
	})
	if err != nil {
		return nil, nil, nil, err
	}

	llmClient, err := createLLMClient(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	ag := agent.New(cfg.Agent.ID, llmClient, cfg,
		agent.WithName(cfg.Agent.Name),
		agent.WithLLMTimeout(cfg.LLM.Timeout()),
		agent.WithMaxTokens(cfg.LLM.MaxTokens),
	)

	processed, err := createProcessedSet(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	if closer, ok := processed.(interface{ Close() error }); ok {
		closers = append(closers, closer.Close)
	}

	publisher, err := createPublisher(ctx, cfg)
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	closers = append(closers, publisher.Close)

	pollerOpts := []interaction.Option{interaction.WithEventPublisher(publisher)}
	if memories != nil {
		pollerOpts = append(pollerOpts, interaction.WithMemoryStore(memories))
	}
	poller := interaction.NewPoller(platform, ag, pollerOpts...)
	state := interaction.NewState(cfg.Twitter.PollInterval(), processed)
	return poller, state, cleanup, nil
}

func createLLMClient(cfg *config.Config) (llm.Client, error) {
	switch strings.ToLower(cfg.LLM.Provider) {
	case "", "openai":
		if strings.TrimSpace(cfg.LLM.APIKey) == "" {
			return nil, fmt.Errorf("OpenAI provider 需要配置 api_key 或环境变量 %s", cfg.LLM.APIKeyEnv)
		}
		return openai.NewClient(openai.Config{
			APIKey:    cfg.LLM.APIKey,
			BaseURL:   cfg.LLM.BaseURL,
			Model:     cfg.LLM.Model,
			MaxTokens: cfg.LLM.MaxTokens,
			Timeout:   cfg.LLM.Timeout(),
		})
	default:
		return nil, fmt.Errorf("未知的大模型 provider: %s", cfg.LLM.Provider)
	}
}

func createProcessedSet(ctx context.Context, cfg *config.Config) (interaction.ProcessedSet, error) {
	store := cfg.Storage.Processed
	switch store.Driver {
	case "", "memory":
		return interaction.NewMemorySet(), nil
	case "redis":
		return interaction.NewRedisSet(ctx, interaction.RedisSetConfig{
			Address:  store.Redis.Address,
			Password: store.Redis.Password,
			DB:       store.Redis.DB,
			Key:      store.Redis.Key,
		})
	default:
		return nil, fmt.Errorf("未知的已处理集合驱动: %s", store.Driver)
	}
}

func createMemoryRepository(ctx context.Context, cfg *config.Config) (mysql.MemoryRepository, error) {
	store := cfg.Storage.Memory
	switch store.Driver {
	case "", "none":
		return nil, nil
	case "file":
		return mysql.NewFileMemoryRepository(cfg.Runtime.DataDir)
	case "mysql":
		return mysql.NewSQLMemoryRepository(ctx, mysql.Config{
			DSN:             store.DSN,
			MaxOpenConns:    store.MaxOpenConns,
			MaxIdleConns:    store.MaxIdleConns,
			ConnMaxLifetime: time.Duration(store.ConnMaxLifetimeSeconds) * time.Second,
		})
	default:
		return nil, fmt.Errorf("未知的会话记忆驱动: %s", store.Driver)
	}
}

func createPublisher(ctx context.Context, cfg *config.Config) (events.Publisher, error) {
	switch cfg.Events.Driver {
	case "", "none":
		return events.NopPublisher{}, nil
	case "log":
		return logPublisher{log: logger.Named("events")}, nil
	case "redis":
		return events.NewRedisPublisher(ctx, events.RedisConfig{
			Address:  cfg.Events.Redis.Address,
			Password: cfg.Events.Redis.Password,
			DB:       cfg.Events.Redis.DB,
			Key:      cfg.Events.Redis.Key,
		})
	case "rabbitmq":
		return events.NewRabbitMQPublisher(events.RabbitMQConfig{
			URL:     cfg.Events.RabbitMQ.URL,
			Queue:   cfg.Events.RabbitMQ.Queue,
			Durable: cfg.Events.RabbitMQ.Durable,
		})
	default:
		return nil, fmt.Errorf("未知的事件驱动: %s", cfg.Events.Driver)
	}
}

// logPublisher 将交互事件写入日志。
type logPublisher struct {
	log *slog.Logger
}

func (p logPublisher) Publish(_ context.Context, event events.InteractionEvent) error {
	p.log.Info("interaction",
		"mention_id", event.MentionID,
		"username", event.Username,
		"qualified", event.Qualified,
		"action", string(event.Action),
		"error", event.Error,
	)
	return nil
}

func (logPublisher) Close() error { return nil }
