package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "neox"

// Stage 标签标识交互失败的环节。
const (
	StageFetch    = "fetch_mentions"
	StageThread   = "thread"
	StageDedup    = "dedup"
	StageGenerate = "generate"
	StageReply    = "reply"
	StageMemory   = "memory"
	StageEvent    = "event"
)

var (
	registry = prometheus.NewRegistry()

	pollTicks = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "poll_ticks_total",
		Help:      "Number of completed mention poll ticks.",
	})
	mentionsFetched = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mentions_fetched_total",
		Help:      "Number of mentions returned by the platform.",
	})
	mentionsProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mentions_processed_total",
		Help:      "Number of mentions marked processed, by qualification.",
	}, []string{"qualified"})
	repliesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "replies_sent_total",
		Help:      "Number of replies posted to the platform.",
	})
	interactionErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "interaction_errors_total",
		Help:      "Number of interaction failures by stage.",
	}, []string{"stage"})
	actionCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "action_invocations_total",
		Help:      "Number of explorer action invocations.",
	}, []string{"action"})
	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests processed.",
	}, []string{"handler", "method", "code"})
	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"handler", "method"})
)

func init() {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		pollTicks,
		mentionsFetched,
		mentionsProcessed,
		repliesSent,
		interactionErrors,
		actionCalls,
		httpRequests,
		httpDuration,
	)
}

// Registry 返回进程内使用的指标注册表。
func Registry() *prometheus.Registry {
	return registry
}

// ObservePollTick 记录一次完成的轮询。
func ObservePollTick() {
	pollTicks.Inc()
}

// ObserveMentionsFetched 记录拉取到的提及数量。
func ObserveMentionsFetched(n int) {
	mentionsFetched.Add(float64(n))
}

// ObserveMentionProcessed 记录一条提及被标记为已处理。
func ObserveMentionProcessed(qualified bool) {
	mentionsProcessed.WithLabelValues(strconv.FormatBool(qualified)).Inc()
}

// ObserveReplySent 记录一条已发送到平台的回复。
func ObserveReplySent() {
	repliesSent.Inc()
}

// ObserveInteractionError 记录指定环节的失败。
func ObserveInteractionError(stage string) {
	interactionErrors.WithLabelValues(stage).Inc()
}

// ObserveAction 记录一次浏览器动作调用。
func ObserveAction(name string) {
	actionCalls.WithLabelValues(name).Inc()
}

// ObserveHTTPRequest 记录 HTTP 请求的生命周期指标。
func ObserveHTTPRequest(handler, method string, status int, duration time.Duration) {
	httpRequests.WithLabelValues(handler, method, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(handler, method).Observe(duration.Seconds())
}

// Handler 以 Prometheus 文本格式暴露指标。
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
}

// StartServer 启动独立的 HTTP 服务暴露 /metrics 端点。
func StartServer(ctx context.Context, addr string) error {
	if addr == "" {
		return errors.New("metrics address is empty")
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{Addr: addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return err
	}
}
