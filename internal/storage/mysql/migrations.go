package mysql

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"NeoX-Agent/deploy/migrations"
	xerrors "NeoX-Agent/internal/errors"
	"NeoX-Agent/pkg/logger"
)

const (
	createMigrationsTableSQL = `CREATE TABLE IF NOT EXISTS schema_migrations (
        version VARCHAR(32) NOT NULL PRIMARY KEY,
        checksum CHAR(64) NOT NULL,
        applied_at BIGINT NOT NULL
)`
	selectAppliedMigrationsSQL = `SELECT version, checksum FROM schema_migrations`
	insertAppliedMigrationSQL  = `INSERT INTO schema_migrations (version, checksum, applied_at) VALUES (?, ?, ?)`
)

var embeddedMigrations fs.ReadFileFS = migrations.Files

// migrationFile 是一个待执行的迁移脚本，checksum 为脚本内容的 SHA-256。
type migrationFile struct {
	version    string
	name       string
	checksum   string
	statements []string
}

// runMigrations 按版本顺序执行尚未应用的迁移。
// 已应用版本的脚本内容被改动时拒绝启动，避免库表结构与代码不一致。
func (s *SQLMemoryRepository) runMigrations(ctx context.Context) error {
	log := logger.Named("migrations")
	if _, err := s.db.ExecContext(ctx, createMigrationsTableSQL); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "创建 schema_migrations 表失败")
	}

	applied, err := s.loadAppliedChecksums(ctx)
	if err != nil {
		return err
	}

	files, err := loadMigrationFiles()
	if err != nil {
		return err
	}

	for _, migration := range files {
		if checksum, ok := applied[migration.version]; ok {
			if checksum != migration.checksum {
				return xerrors.New(xerrors.CodeStorageFailure,
					fmt.Sprintf("迁移 %s 已应用但内容被修改 (库中 %s, 文件 %s)", migration.name, short(checksum), short(migration.checksum)))
			}
			continue
		}
		if err := s.applyMigration(ctx, migration); err != nil {
			return err
		}
		log.Info("已应用数据库迁移", "version", migration.version, "file", migration.name, "checksum", short(migration.checksum))
	}
	return nil
}

func (s *SQLMemoryRepository) loadAppliedChecksums(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, selectAppliedMigrationsSQL)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询 schema_migrations 失败")
	}
	defer rows.Close()

	applied := make(map[string]string)
	for rows.Next() {
		var version, checksum string
		if err := rows.Scan(&version, &checksum); err != nil {
			return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析 schema_migrations 失败")
		}
		applied[version] = checksum
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "遍历 schema_migrations 失败")
	}
	return applied, nil
}

func (s *SQLMemoryRepository) applyMigration(ctx context.Context, migration migrationFile) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "开启迁移事务失败")
	}

	for _, stmt := range migration.statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return xerrors.Wrap(xerrors.CodeStorageFailure, err, "执行迁移 "+migration.name+" 失败")
		}
	}

	if _, err := tx.ExecContext(ctx, insertAppliedMigrationSQL, migration.version, migration.checksum, time.Now().Unix()); err != nil {
		_ = tx.Rollback()
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "记录迁移版本失败")
	}

	if err := tx.Commit(); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "提交迁移事务失败")
	}
	return nil
}

func loadMigrationFiles() ([]migrationFile, error) {
	entries, err := fs.ReadDir(embeddedMigrations, ".")
	if err != nil {
		return nil, fmt.Errorf("读取迁移目录失败: %w", err)
	}

	var files []migrationFile
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		name := entry.Name()
		content, err := embeddedMigrations.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("读取迁移文件 %s 失败: %w", name, err)
		}
		statements := splitSQLStatements(string(content))
		if len(statements) == 0 {
			continue
		}

		sum := sha256.Sum256(content)
		files = append(files, migrationFile{
			version:    parseMigrationVersion(name),
			name:       name,
			checksum:   hex.EncodeToString(sum[:]),
			statements: statements,
		})
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].version == files[j].version {
			return files[i].name < files[j].name
		}
		return files[i].version < files[j].version
	})
	return files, nil
}

// splitSQLStatements 按分号拆分脚本，忽略空语句与整行 -- 注释。
func splitSQLStatements(content string) []string {
	var statements []string
	for _, stmt := range strings.Split(content, ";") {
		var lines []string
		for _, line := range strings.Split(stmt, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "--") {
				continue
			}
			lines = append(lines, line)
		}
		trimmed := strings.TrimSpace(strings.Join(lines, "\n"))
		if trimmed == "" {
			continue
		}
		statements = append(statements, trimmed)
	}
	return statements
}

func parseMigrationVersion(name string) string {
	if idx := strings.IndexRune(name, '_'); idx > 0 {
		return name[:idx]
	}
	return strings.TrimSuffix(name, ".sql")
}

func short(checksum string) string {
	if len(checksum) > 12 {
		return checksum[:12]
	}
	return checksum
}
