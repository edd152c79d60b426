package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"NeoX-Agent/internal/actions"
	"NeoX-Agent/internal/auth"
	xerrors "NeoX-Agent/internal/errors"
	"NeoX-Agent/internal/memory"
	"NeoX-Agent/internal/observability/metrics"
	"NeoX-Agent/pkg/logger"
)

// MemoryLister 列出最近的会话记忆。
type MemoryLister interface {
	ListLatest(ctx context.Context, limit int) ([]memory.ConversationMemory, error)
}

// Server 负责暴露 REST 接口，供外部调用浏览器查询动作。
type Server struct {
	addr     string
	plugin   *actions.Plugin
	memories MemoryLister
	auth     *auth.Service
}

// Option 定义 Server 的可选配置。
type Option func(*Server)

// WithMemories 开启 /api/v1/memories 接口。
func WithMemories(lister MemoryLister) Option {
	return func(s *Server) {
		s.memories = lister
	}
}

// WithAuth 为 /api/v1 下的接口启用 API Key 认证。
func WithAuth(svc *auth.Service) Option {
	return func(s *Server) {
		s.auth = svc
	}
}

// NewServer 构造 API 服务实例。
func NewServer(addr string, plugin *actions.Plugin, opts ...Option) *Server {
	s := &Server{addr: addr, plugin: plugin}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Handler 返回完整的路由。
func (s *Server) Handler() http.Handler {
	guard := func(event string, h http.Handler) http.Handler {
		if !s.auth.Enabled() {
			return h
		}
		return s.auth.Middleware(auth.MiddlewareConfig{AuditEvent: event})(h)
	}

	mux := http.NewServeMux()
	mux.Handle("/api/v1/actions", guard("actions.list", instrument("/api/v1/actions", s.handleListActions)))
	mux.Handle("/api/v1/actions/", guard("actions.invoke", instrument("/api/v1/actions/{name}", s.handleInvokeAction)))
	mux.Handle("/api/v1/memories", guard("memories.list", instrument("/api/v1/memories", s.handleListMemories)))
	mux.Handle("/healthz", instrument("/healthz", s.handleHealth))
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, s.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logger.Named("api").Info("API 服务已启动", "address", s.addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

type actionInfo struct {
	Name        string              `json:"name"`
	Similes     []string            `json:"similes"`
	Description string              `json:"description"`
	Examples    [][]actions.Example `json:"examples"`
}

type pluginInfo struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Actions     []actionInfo `json:"actions"`
}

func (s *Server) handleListActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	if s.plugin == nil {
		http.Error(w, "动作插件未初始化", http.StatusServiceUnavailable)
		return
	}

	info := pluginInfo{Name: s.plugin.Name, Description: s.plugin.Description}
	for _, action := range s.plugin.Actions {
		info.Actions = append(info.Actions, actionInfo{
			Name:        action.Name,
			Similes:     action.Similes,
			Description: action.Description,
			Examples:    action.Examples,
		})
	}
	writeJSON(w, http.StatusOK, info)
}

type invokeRequest struct {
	Text    string          `json:"text"`
	UserID  string          `json:"user_id"`
	RoomID  string          `json:"room_id"`
	Options actions.Options `json:"options"`
}

type invokeResponse struct {
	Action    string            `json:"action"`
	Responses []actions.Content `json:"responses"`
}

func (s *Server) handleInvokeAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "仅支持 POST", http.StatusMethodNotAllowed)
		return
	}
	if s.plugin == nil {
		http.Error(w, "动作插件未初始化", http.StatusServiceUnavailable)
		return
	}

	name := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/actions/"), "/")
	if name == "" {
		writeError(w, xerrors.New(xerrors.CodeInvalidArgument, "缺少动作名称"))
		return
	}
	action, ok := s.plugin.Find(name)
	if !ok {
		writeError(w, xerrors.New(xerrors.CodeNotFound, "未找到动作 "+name))
		return
	}

	var req invokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "请求体解析失败"))
		return
	}

	// 认证后的调用方以 API Key 摘要作为默认用户标识，便于审计日志关联。
	if subject, ok := auth.SubjectFromContext(r.Context()); ok {
		if req.UserID == "" {
			req.UserID = "api-key:" + subject.KeyID
		}
		logger.Named("api").Info("调用动作", "action", action.Name, "key_id", subject.KeyID)
	}

	msg := actions.Message{UserID: req.UserID, RoomID: req.RoomID, Content: actions.Content{Text: req.Text}}
	resp := invokeResponse{Action: action.Name, Responses: []actions.Content{}}
	if !s.plugin.Invoke(r.Context(), action, msg, req.Options, func(c actions.Content) {
		resp.Responses = append(resp.Responses, c)
	}) {
		http.Error(w, "请求未通过动作校验", http.StatusUnprocessableEntity)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListMemories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	if s.memories == nil {
		http.Error(w, "未启用会话记忆存储", http.StatusServiceUnavailable)
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	results, err := s.memories.ListLatest(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	for i := range results {
		results[i].Embedding = nil
	}
	if results == nil {
		results = []memory.ConversationMemory{}
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor 将错误码映射为 HTTP 状态码。
func statusFor(err error) int {
	switch xerrors.CodeOf(err) {
	case xerrors.CodeInvalidArgument:
		return http.StatusBadRequest
	case xerrors.CodeNotFound:
		return http.StatusNotFound
	case xerrors.CodeExplorerFailure, xerrors.CodePlatformFailure, xerrors.CodeGenerationFailure:
		return http.StatusBadGateway
	case xerrors.CodeTimeout:
		return http.StatusGatewayTimeout
	case xerrors.CodeInitializationFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Named("api").Log(context.Background(), xerrors.LogLevel(err), "请求处理失败", "error", err, "status", status)
	}
	writeJSON(w, status, errorResponse{Code: string(xerrors.CodeOf(err)), Message: err.Error()})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// instrument 记录每个请求的状态码与耗时。
func instrument(route string, handler http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		handler(rec, r)
		metrics.ObserveHTTPRequest(route, r.Method, rec.status, time.Since(start))
	})
}

// withContext 确保请求处理能够感知根上下文取消。
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			http.Error(w, "服务已关闭", http.StatusServiceUnavailable)
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}
