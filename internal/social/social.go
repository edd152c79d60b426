package social

import "context"

// Mention 是平台上提及智能体账号的帖子。
type Mention struct {
	ID             string `json:"id"`
	Text           string `json:"text"`
	Username       string `json:"username"`
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id,omitempty"`
	InReplyToID    string `json:"in_reply_to_id,omitempty"`
	CreatedAt      string `json:"created_at,omitempty"`
}

// Profile 描述已认证的账号。
type Profile struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

// Client 是交互循环使用的平台接口。
type Client interface {
	// Init 完成认证并加载账号资料。
	Init(ctx context.Context) error
	// Profile 返回 Init 加载的账号资料。
	Profile() Profile
	GetMentions(ctx context.Context) ([]Mention, error)
	// GetConversationThread 返回以 id 结尾的回复链，按时间从早到晚排列。
	GetConversationThread(ctx context.Context, id string) ([]Mention, error)
	ReplyToTweet(ctx context.Context, id, text string) error
}
