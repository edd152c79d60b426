package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	xerrors "NeoX-Agent/internal/errors"
	"NeoX-Agent/internal/social"
)

const (
	defaultBaseURL     = "https://api.twitter.com"
	defaultTimeout     = 30 * time.Second
	defaultMaxResults  = 20
	defaultThreadDepth = 10
	tweetFields        = "author_id,conversation_id,created_at,referenced_tweets"
)

// Config 描述了调用 Twitter API v2 所需的信息。
type Config struct {
	BaseURL string
	// AccessToken 是 OAuth 2.0 用户上下文令牌，读取账号资料与发推都需要它。
	AccessToken string
	MaxResults  int
	ThreadDepth int
	Timeout     time.Duration
}

// Client 通过 HTTP 调用 Twitter API v2，实现 social.Client。
type Client struct {
	baseURL     string
	token       string
	maxResults  int
	threadDepth int
	httpClient  *http.Client

	mu      sync.RWMutex
	profile social.Profile
}

// NewClient 根据配置创建 Twitter 客户端。
func NewClient(cfg Config) (*Client, error) {
	token := strings.TrimSpace(cfg.AccessToken)
	if token == "" {
		return nil, errors.New("未提供 Twitter 用户访问令牌 (TWITTER_ACCESS_TOKEN)")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	maxResults := cfg.MaxResults
	if maxResults < 5 || maxResults > 100 {
		maxResults = defaultMaxResults
	}
	depth := cfg.ThreadDepth
	if depth <= 0 {
		depth = defaultThreadDepth
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL:     baseURL,
		token:       token,
		maxResults:  maxResults,
		threadDepth: depth,
		httpClient:  &http.Client{Timeout: timeout},
	}, nil
}

type apiUser struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

type apiTweet struct {
	ID               string `json:"id"`
	Text             string `json:"text"`
	AuthorID         string `json:"author_id"`
	ConversationID   string `json:"conversation_id"`
	CreatedAt        string `json:"created_at"`
	ReferencedTweets []struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	} `json:"referenced_tweets"`
}

type apiIncludes struct {
	Users []apiUser `json:"users"`
}

type apiError struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// Init 加载当前认证账号的资料。
func (c *Client) Init(ctx context.Context) error {
	var decoded struct {
		Data   *apiUser   `json:"data"`
		Errors []apiError `json:"errors"`
	}
	if err := c.get(ctx, "/2/users/me", url.Values{"user.fields": {"username,name"}}, &decoded); err != nil {
		return xerrors.Wrap(xerrors.CodeInitializationFailure, err, "加载 Twitter 账号资料失败")
	}
	if decoded.Data == nil || decoded.Data.ID == "" {
		return xerrors.New(xerrors.CodeInitializationFailure, "Twitter 账号资料为空"+describeErrors(decoded.Errors))
	}

	c.mu.Lock()
	c.profile = social.Profile{ID: decoded.Data.ID, Username: decoded.Data.Username, Name: decoded.Data.Name}
	c.mu.Unlock()
	return nil
}

// Profile 返回 Init 加载的账号资料。
func (c *Client) Profile() social.Profile {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.profile
}

// GetMentions 返回最近提及当前账号的推文，顺序与平台返回一致。
func (c *Client) GetMentions(ctx context.Context) ([]social.Mention, error) {
	profile := c.Profile()
	if profile.ID == "" {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "Twitter 客户端尚未初始化")
	}

	query := url.Values{
		"max_results":  {strconv.Itoa(c.maxResults)},
		"expansions":   {"author_id"},
		"tweet.fields": {tweetFields},
		"user.fields":  {"username"},
	}
	var decoded struct {
		Data     []apiTweet  `json:"data"`
		Includes apiIncludes `json:"includes"`
	}
	if err := c.get(ctx, "/2/users/"+url.PathEscape(profile.ID)+"/mentions", query, &decoded); err != nil {
		return nil, xerrors.Wrap(xerrors.CodePlatformFailure, err, "获取提及列表失败")
	}

	users := indexUsers(decoded.Includes.Users)
	mentions := make([]social.Mention, 0, len(decoded.Data))
	for _, tweet := range decoded.Data {
		mentions = append(mentions, toMention(tweet, users))
	}
	return mentions, nil
}

// GetConversationThread 沿着 replied_to 引用向上追溯，返回从最早到当前推文的回复链。
func (c *Client) GetConversationThread(ctx context.Context, id string) ([]social.Mention, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "推文 ID 不能为空")
	}

	var chain []social.Mention
	seen := make(map[string]struct{})
	next := id
	for depth := 0; next != "" && depth < c.threadDepth; depth++ {
		if _, ok := seen[next]; ok {
			break
		}
		seen[next] = struct{}{}

		tweet, users, err := c.lookupTweet(ctx, next)
		if err != nil {
			return nil, xerrors.Wrap(xerrors.CodePlatformFailure, err, fmt.Sprintf("获取推文 %s 的会话失败", id))
		}
		if tweet == nil {
			if depth == 0 {
				return nil, xerrors.New(xerrors.CodeNotFound, fmt.Sprintf("推文 %s 不存在", id))
			}
			// 上游推文已删除或不可见时，截断回复链。
			break
		}
		chain = append(chain, toMention(*tweet, users))
		next = repliedTo(*tweet)
	}

	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// ReplyToTweet 以当前账号回复指定推文。
func (c *Client) ReplyToTweet(ctx context.Context, id, text string) error {
	if strings.TrimSpace(id) == "" || strings.TrimSpace(text) == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "回复的推文 ID 与内容不能为空")
	}
	payload, err := json.Marshal(map[string]any{
		"text":  text,
		"reply": map[string]string{"in_reply_to_tweet_id": id},
	})
	if err != nil {
		return fmt.Errorf("序列化回复请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/2/tweets", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("构建回复请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if err := c.do(req, nil); err != nil {
		return xerrors.Wrap(xerrors.CodePlatformFailure, err, fmt.Sprintf("回复推文 %s 失败", id))
	}
	return nil
}

func (c *Client) lookupTweet(ctx context.Context, id string) (*apiTweet, map[string]apiUser, error) {
	query := url.Values{
		"expansions":   {"author_id"},
		"tweet.fields": {tweetFields},
		"user.fields":  {"username"},
	}
	var decoded struct {
		Data     *apiTweet   `json:"data"`
		Includes apiIncludes `json:"includes"`
	}
	if err := c.get(ctx, "/2/tweets/"+url.PathEscape(id), query, &decoded); err != nil {
		return nil, nil, err
	}
	return decoded.Data, indexUsers(decoded.Includes.Users), nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("构建 Twitter 请求失败: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("请求 Twitter 失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return statusError(resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("解析 Twitter 响应失败: %w", err)
	}
	return nil
}

// statusError 按状态码区分错误：认证失败不可重试且需要人工处理，限流与 5xx 可重试。
func statusError(status int, body string) error {
	msg := fmt.Sprintf("Twitter 返回错误状态 %d: %s", status, body)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return xerrors.New(xerrors.CodePlatformFailure, msg+"（需要 OAuth 2.0 用户访问令牌）",
			xerrors.WithRetryable(false), xerrors.WithSeverity(xerrors.SeverityCritical))
	case status == http.StatusTooManyRequests || status >= http.StatusInternalServerError:
		return xerrors.New(xerrors.CodePlatformFailure, msg)
	default:
		return xerrors.New(xerrors.CodePlatformFailure, msg, xerrors.WithRetryable(false))
	}
}

func indexUsers(users []apiUser) map[string]apiUser {
	index := make(map[string]apiUser, len(users))
	for _, user := range users {
		index[user.ID] = user
	}
	return index
}

func toMention(tweet apiTweet, users map[string]apiUser) social.Mention {
	return social.Mention{
		ID:             tweet.ID,
		Text:           tweet.Text,
		Username:       users[tweet.AuthorID].Username,
		UserID:         tweet.AuthorID,
		ConversationID: tweet.ConversationID,
		InReplyToID:    repliedTo(tweet),
		CreatedAt:      tweet.CreatedAt,
	}
}

func repliedTo(tweet apiTweet) string {
	for _, ref := range tweet.ReferencedTweets {
		if ref.Type == "replied_to" {
			return ref.ID
		}
	}
	return ""
}

func describeErrors(list []apiError) string {
	if len(list) == 0 {
		return ""
	}
	parts := make([]string, 0, len(list))
	for _, e := range list {
		parts = append(parts, strings.TrimSpace(e.Title+" "+e.Detail))
	}
	return ": " + strings.Join(parts, "; ")
}

var _ social.Client = (*Client)(nil)
