// Package memory 根据提及及其回复线程构建会话记忆记录。
package memory

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"NeoX-Agent/internal/social"
)

// EmbeddingDimension 是每条记录附带的占位向量长度。
const EmbeddingDimension = 1536

// Content 是记忆的消息正文。
type Content struct {
	Text   string `json:"text"`
	Action string `json:"action"`
}

// Metadata 将记忆关联回生成它的提及。
type Metadata struct {
	MentionID       string `json:"mention_id"`
	Username        string `json:"username"`
	FormattedThread string `json:"formatted_thread"`
}

// ConversationMemory 在轮询器检查每条提及时重新构建。
type ConversationMemory struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	AgentID   string    `json:"agent_id"`
	RoomID    string    `json:"room_id"`
	Content   Content   `json:"content"`
	Embedding []float32 `json:"embedding,omitempty"`
	Metadata  Metadata  `json:"metadata"`
	CreatedAt int64     `json:"created_at"`
}

// Build 为提及生成记忆记录。房间 ID 即提及 ID，线程渲染时排除提及本身。
func Build(agentID string, mention social.Mention, thread []social.Mention) ConversationMemory {
	return ConversationMemory{
		ID:        uuid.NewString(),
		UserID:    agentID,
		AgentID:   agentID,
		RoomID:    mention.ID,
		Content:   Content{Text: mention.Text},
		Embedding: ZeroEmbedding(),
		Metadata: Metadata{
			MentionID:       mention.ID,
			Username:        mention.Username,
			FormattedThread: FormatThread(mention.ID, thread),
		},
		CreatedAt: time.Now().Unix(),
	}
}

// FormatThread 将线程渲染为 "@username: text" 行，跳过 currentID。
func FormatThread(currentID string, thread []social.Mention) string {
	lines := make([]string, 0, len(thread))
	for _, m := range thread {
		if m.ID == currentID {
			continue
		}
		lines = append(lines, "@"+m.Username+": "+m.Text)
	}
	return strings.Join(lines, "\n")
}

// ZeroEmbedding 返回长度为 EmbeddingDimension 的零向量。
func ZeroEmbedding() []float32 {
	return make([]float32, EmbeddingDimension)
}
