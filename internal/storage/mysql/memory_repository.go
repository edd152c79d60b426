package mysql

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	xerrors "NeoX-Agent/internal/errors"
	"NeoX-Agent/internal/memory"
)

// maxCachedMemories 限制文件仓库在内存中保留的最近记录数。
const maxCachedMemories = 512

// MemoryRepository 抽象会话记忆的持久化接口。
type MemoryRepository interface {
	Save(ctx context.Context, mem memory.ConversationMemory) error
	ListLatest(ctx context.Context, limit int) ([]memory.ConversationMemory, error)
	Close() error
}

// FileMemoryRepository 以 JSON Lines 形式追加写入本地文件，适合本地调试。
type FileMemoryRepository struct {
	mu       sync.RWMutex
	dataFile string
	records  []memory.ConversationMemory
}

// NewFileMemoryRepository 在 dataDir 下创建或恢复 memories.log。
func NewFileMemoryRepository(dataDir string) (*FileMemoryRepository, error) {
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("创建数据目录失败: %w", err)
	}
	repo := &FileMemoryRepository{dataFile: filepath.Join(dataDir, "memories.log")}
	if err := repo.loadFromDisk(); err != nil {
		return nil, err
	}
	return repo, nil
}

// Save 追加写入一条会话记忆。嵌入向量不落盘。
func (m *FileMemoryRepository) Save(_ context.Context, mem memory.ConversationMemory) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	file, err := os.OpenFile(m.dataFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("打开会话记忆日志失败: %w", err)
	}
	defer file.Close()

	mem.Embedding = nil
	encoded, err := json.Marshal(mem)
	if err != nil {
		return fmt.Errorf("序列化会话记忆失败: %w", err)
	}
	if _, err := file.Write(append(encoded, '\n')); err != nil {
		return fmt.Errorf("写入会话记忆日志失败: %w", err)
	}

	m.records = append([]memory.ConversationMemory{mem}, m.records...)
	if len(m.records) > maxCachedMemories {
		m.records = m.records[:maxCachedMemories]
	}
	return nil
}

// ListLatest 返回最近的会话记忆，按写入时间倒序排列。
func (m *FileMemoryRepository) ListLatest(_ context.Context, limit int) ([]memory.ConversationMemory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || limit > len(m.records) {
		limit = len(m.records)
	}
	results := make([]memory.ConversationMemory, limit)
	copy(results, m.records[:limit])
	return results, nil
}

// Close 实现 MemoryRepository 接口。
func (m *FileMemoryRepository) Close() error { return nil }

func (m *FileMemoryRepository) loadFromDisk() error {
	file, err := os.OpenFile(m.dataFile, os.O_RDONLY|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("读取会话记忆日志失败: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	var restored []memory.ConversationMemory
	for scanner.Scan() {
		var mem memory.ConversationMemory
		if err := json.Unmarshal(scanner.Bytes(), &mem); err != nil {
			continue
		}
		restored = append([]memory.ConversationMemory{mem}, restored...)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("解析会话记忆日志失败: %w", err)
	}
	if len(restored) > maxCachedMemories {
		restored = restored[:maxCachedMemories]
	}
	m.records = restored
	return nil
}

// SQLMemoryRepository 将会话记忆写入 MySQL 的 conversation_memories 表。
type SQLMemoryRepository struct {
	db *sql.DB
}

// NewSQLMemoryRepository 连接 MySQL 并执行尚未应用的迁移。
func NewSQLMemoryRepository(ctx context.Context, cfg Config) (*SQLMemoryRepository, error) {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	repo := &SQLMemoryRepository{db: db}
	if err := repo.runMigrations(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

const insertMemorySQL = `INSERT INTO conversation_memories
    (id, agent_id, user_id, room_id, mention_id, username, content_text, action, formatted_thread, embedding, created_at)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const selectLatestMemoriesSQL = `SELECT id, agent_id, user_id, room_id, mention_id, username, content_text, action, formatted_thread, embedding, created_at
    FROM conversation_memories ORDER BY created_at DESC, id DESC LIMIT ?`

// Save 写入一条会话记忆。
func (s *SQLMemoryRepository) Save(ctx context.Context, mem memory.ConversationMemory) error {
	embedding, err := json.Marshal(mem.Embedding)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "序列化嵌入向量失败")
	}
	if _, err := s.db.ExecContext(ctx, insertMemorySQL,
		mem.ID,
		mem.AgentID,
		mem.UserID,
		mem.RoomID,
		mem.Metadata.MentionID,
		mem.Metadata.Username,
		mem.Content.Text,
		mem.Content.Action,
		mem.Metadata.FormattedThread,
		string(embedding),
		mem.CreatedAt,
	); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "写入会话记忆失败")
	}
	return nil
}

// ListLatest 返回最近的会话记忆。
func (s *SQLMemoryRepository) ListLatest(ctx context.Context, limit int) ([]memory.ConversationMemory, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, selectLatestMemoriesSQL, limit)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询会话记忆失败")
	}
	defer rows.Close()

	var results []memory.ConversationMemory
	for rows.Next() {
		var (
			mem       memory.ConversationMemory
			embedding string
		)
		if err := rows.Scan(
			&mem.ID,
			&mem.AgentID,
			&mem.UserID,
			&mem.RoomID,
			&mem.Metadata.MentionID,
			&mem.Metadata.Username,
			&mem.Content.Text,
			&mem.Content.Action,
			&mem.Metadata.FormattedThread,
			&embedding,
			&mem.CreatedAt,
		); err != nil {
			return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析会话记忆失败")
		}
		if embedding != "" && embedding != "null" {
			if err := json.Unmarshal([]byte(embedding), &mem.Embedding); err != nil {
				return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析嵌入向量失败")
			}
		}
		results = append(results, mem)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "遍历会话记忆失败")
	}
	return results, nil
}

// Close 关闭数据库连接。
func (s *SQLMemoryRepository) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

var (
	_ MemoryRepository = (*FileMemoryRepository)(nil)
	_ MemoryRepository = (*SQLMemoryRepository)(nil)
)
