package mysql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"testing"

	xerrors "NeoX-Agent/internal/errors"
	"NeoX-Agent/internal/memory"
)

func sampleMemory(id, mentionID string, createdAt int64) memory.ConversationMemory {
	return memory.ConversationMemory{
		ID:        id,
		UserID:    "neox-agent",
		AgentID:   "neox-agent",
		RoomID:    mentionID,
		Content:   memory.Content{Text: "@bot hi"},
		Embedding: []float32{0, 0},
		Metadata:  memory.Metadata{MentionID: mentionID, Username: "alice", FormattedThread: "@carol: root"},
		CreatedAt: createdAt,
	}
}

func TestFileMemoryRepositoryPersists(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	repo, err := NewFileMemoryRepository(dir)
	if err != nil {
		t.Fatalf("failed to create file repo: %v", err)
	}

	ctx := context.Background()
	if err := repo.Save(ctx, sampleMemory("a", "1", 10)); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := repo.Save(ctx, sampleMemory("b", "2", 20)); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	list, err := repo.ListLatest(ctx, 1)
	if err != nil {
		t.Fatalf("list latest failed: %v", err)
	}
	if len(list) != 1 || list[0].ID != "b" {
		t.Fatalf("unexpected list: %+v", list)
	}

	reopened, err := NewFileMemoryRepository(dir)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	all, _ := reopened.ListLatest(ctx, 0)
	if len(all) != 2 || all[0].ID != "b" || all[1].RoomID != "1" {
		t.Fatalf("records not restored in order: %+v", all)
	}
	if all[0].Embedding != nil {
		t.Fatalf("embedding should not be written to the log")
	}
}

func TestSQLMemoryRepositorySave(t *testing.T) {
	t.Parallel()

	db, driver := newMockDB(t, []mockOperation{
		execOp(insertMemorySQL, mockResult{rowsAffected: 1}),
	})
	defer driver.assertConsumed(t)
	defer db.Close()

	repo := &SQLMemoryRepository{db: db}
	if err := repo.Save(context.Background(), sampleMemory("a", "1", 10)); err != nil {
		t.Fatalf("save failed: %v", err)
	}
}

func TestSQLMemoryRepositoryListLatest(t *testing.T) {
	t.Parallel()

	rows := mockRowsData{
		columns: []string{"id", "agent_id", "user_id", "room_id", "mention_id", "username", "content_text", "action", "formatted_thread", "embedding", "created_at"},
		values: [][]driver.Value{
			{"b", "neox-agent", "neox-agent", "2", "2", "bob", "@bot two", "", "", "[0,0]", int64(20)},
			{"a", "neox-agent", "neox-agent", "1", "1", "alice", "@bot one", "", "@carol: root", "null", int64(10)},
		},
	}
	db, driver := newMockDB(t, []mockOperation{
		queryOp(selectLatestMemoriesSQL, rows),
	})
	defer driver.assertConsumed(t)
	defer db.Close()

	repo := &SQLMemoryRepository{db: db}
	list, err := repo.ListLatest(context.Background(), 2)
	if err != nil {
		t.Fatalf("list latest failed: %v", err)
	}
	if len(list) != 2 || list[0].ID != "b" || len(list[0].Embedding) != 2 {
		t.Fatalf("unexpected list: %+v", list)
	}
	if list[1].Metadata.FormattedThread != "@carol: root" || list[1].Embedding != nil {
		t.Fatalf("unexpected second record: %+v", list[1])
	}
}

func TestSQLMemoryRepositoryRunMigrations(t *testing.T) {
	t.Parallel()

	ops := []mockOperation{
		execOp(createMigrationsTableSQL, mockResult{}),
		queryOp(selectAppliedMigrationsSQL, mockRowsData{columns: []string{"version", "checksum"}}),
		beginOp(),
		execOp(readMigrationStatement(), mockResult{rowsAffected: 0}),
		execOp(insertAppliedMigrationSQL, mockResult{rowsAffected: 1}),
		commitOp(),
	}
	db, driver := newMockDB(t, ops)
	defer driver.assertConsumed(t)
	defer db.Close()

	repo := &SQLMemoryRepository{db: db}
	if err := repo.runMigrations(context.Background()); err != nil {
		t.Fatalf("run migrations failed: %v", err)
	}
}

func TestSQLMemoryRepositorySkipsAppliedMigrations(t *testing.T) {
	t.Parallel()

	ops := []mockOperation{
		execOp(createMigrationsTableSQL, mockResult{}),
		queryOp(selectAppliedMigrationsSQL, mockRowsData{
			columns: []string{"version", "checksum"},
			values:  [][]driver.Value{{"0001", migrationChecksum(t)}},
		}),
	}
	db, driver := newMockDB(t, ops)
	defer driver.assertConsumed(t)
	defer db.Close()

	repo := &SQLMemoryRepository{db: db}
	if err := repo.runMigrations(context.Background()); err != nil {
		t.Fatalf("run migrations failed: %v", err)
	}
}

func TestSQLMemoryRepositoryRejectsModifiedMigration(t *testing.T) {
	t.Parallel()

	ops := []mockOperation{
		execOp(createMigrationsTableSQL, mockResult{}),
		queryOp(selectAppliedMigrationsSQL, mockRowsData{
			columns: []string{"version", "checksum"},
			values:  [][]driver.Value{{"0001", strings.Repeat("0", 64)}},
		}),
	}
	db, driver := newMockDB(t, ops)
	defer driver.assertConsumed(t)
	defer db.Close()

	repo := &SQLMemoryRepository{db: db}
	err := repo.runMigrations(context.Background())
	if xerrors.CodeOf(err) != xerrors.CodeStorageFailure || !strings.Contains(err.Error(), "0001_create_conversation_memories.sql") {
		t.Fatalf("expected checksum mismatch, got %v", err)
	}
}

func TestSplitSQLStatementsSkipsComments(t *testing.T) {
	got := splitSQLStatements("-- header\nCREATE TABLE a (id INT);\n\n-- trailing\n;INSERT INTO a VALUES (1)")
	if len(got) != 2 || got[0] != "CREATE TABLE a (id INT)" || got[1] != "INSERT INTO a VALUES (1)" {
		t.Fatalf("unexpected statements: %q", got)
	}
	if parseMigrationVersion("0002_add_index.sql") != "0002" || parseMigrationVersion("seed.sql") != "seed" {
		t.Fatalf("unexpected versions")
	}
}

func TestSQLMemoryRepositoryMigrationRollsBack(t *testing.T) {
	t.Parallel()

	failing := execOp(readMigrationStatement(), mockResult{})
	failing.err = fmt.Errorf("syntax error")
	ops := []mockOperation{
		execOp(createMigrationsTableSQL, mockResult{}),
		queryOp(selectAppliedMigrationsSQL, mockRowsData{columns: []string{"version", "checksum"}}),
		beginOp(),
		failing,
		rollbackOp(),
	}
	db, driver := newMockDB(t, ops)
	defer driver.assertConsumed(t)
	defer db.Close()

	repo := &SQLMemoryRepository{db: db}
	err := repo.runMigrations(context.Background())
	if err == nil || !strings.Contains(err.Error(), "0001_create_conversation_memories.sql") {
		t.Fatalf("expected migration failure, got %v", err)
	}
}

func TestOpenDatabaseRequiresDSN(t *testing.T) {
	if _, err := openDatabase(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error for empty dsn")
	}
}

func migrationChecksum(t *testing.T) string {
	t.Helper()
	files, err := loadMigrationFiles()
	if err != nil || len(files) == 0 {
		t.Fatalf("load migrations: %v", err)
	}
	return files[0].checksum
}

func readMigrationStatement() string {
	content, err := embeddedMigrations.ReadFile("0001_create_conversation_memories.sql")
	if err != nil {
		panic(fmt.Sprintf("failed to read migration: %v", err))
	}
	statements := splitSQLStatements(string(content))
	if len(statements) == 0 {
		panic("no statements in migration")
	}
	return statements[0]
}

type operationType int

const (
	opExec operationType = iota
	opQuery
	opBegin
	opCommit
	opRollback
)

type mockOperation struct {
	typ    operationType
	query  string
	result mockResult
	rows   mockRowsData
	err    error
}

type mockResult struct {
	lastInsertID int64
	rowsAffected int64
}

func (r mockResult) LastInsertId() (int64, error) { return r.lastInsertID, nil }
func (r mockResult) RowsAffected() (int64, error) { return r.rowsAffected, nil }

type mockRowsData struct {
	columns []string
	values  [][]driver.Value
}

type queueDriver struct {
	ops []mockOperation
	idx int32
}

var driverSeq atomic.Int32

func newMockDB(t *testing.T, ops []mockOperation) (*sql.DB, *queueDriver) {
	t.Helper()

	drv := &queueDriver{ops: ops}
	name := fmt.Sprintf("mock-mysql-%d", driverSeq.Add(1))
	sql.Register(name, drv)

	db, err := sql.Open(name, "")
	if err != nil {
		t.Fatalf("open mock db failed: %v", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return db, drv
}

func execOp(query string, result mockResult) mockOperation {
	return mockOperation{typ: opExec, query: query, result: result}
}

func queryOp(query string, rows mockRowsData) mockOperation {
	return mockOperation{typ: opQuery, query: query, rows: rows}
}

func beginOp() mockOperation { return mockOperation{typ: opBegin} }

func commitOp() mockOperation { return mockOperation{typ: opCommit} }

func rollbackOp() mockOperation { return mockOperation{typ: opRollback} }

func (d *queueDriver) assertConsumed(t *testing.T) {
	t.Helper()

	if int(atomic.LoadInt32(&d.idx)) != len(d.ops) {
		t.Fatalf("not all operations consumed: %d/%d", atomic.LoadInt32(&d.idx), len(d.ops))
	}
}

func (d *queueDriver) Open(name string) (driver.Conn, error) {
	return &mockConn{driver: d}, nil
}

type mockConn struct {
	driver *queueDriver
}

func (c *mockConn) Prepare(query string) (driver.Stmt, error) {
	return nil, fmt.Errorf("prepare not supported: %s", query)
}

func (c *mockConn) Close() error { return nil }

func (c *mockConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *mockConn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	op, err := c.next(opBegin, "")
	if err != nil {
		return nil, err
	}
	if op.err != nil {
		return nil, op.err
	}
	return &mockTx{driver: c.driver}, nil
}

func (c *mockConn) Exec(query string, args []driver.Value) (driver.Result, error) {
	return c.ExecContext(context.Background(), query, named(args))
}

func (c *mockConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	op, err := c.next(opExec, query)
	if err != nil {
		return nil, err
	}
	if op.err != nil {
		return nil, op.err
	}
	return op.result, nil
}

func (c *mockConn) Query(query string, args []driver.Value) (driver.Rows, error) {
	return c.QueryContext(context.Background(), query, named(args))
}

func (c *mockConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	op, err := c.next(opQuery, query)
	if err != nil {
		return nil, err
	}
	if op.err != nil {
		return nil, op.err
	}
	return &mockRows{columns: op.rows.columns, values: op.rows.values}, nil
}

func (c *mockConn) Ping(ctx context.Context) error { return nil }

func (c *mockConn) next(expected operationType, query string) (*mockOperation, error) {
	idx := int(atomic.LoadInt32(&c.driver.idx))
	if idx >= len(c.driver.ops) {
		return nil, fmt.Errorf("unexpected operation: %v", expected)
	}
	op := &c.driver.ops[idx]
	if op.typ != expected {
		return nil, fmt.Errorf("expected operation %v, got %v", expected, op.typ)
	}
	atomic.AddInt32(&c.driver.idx, 1)
	if op.query != "" {
		expectedSQL := normalizeSQL(op.query)
		actualSQL := normalizeSQL(query)
		if expectedSQL != actualSQL {
			return nil, fmt.Errorf("unexpected query. want %q got %q", expectedSQL, actualSQL)
		}
	}
	return op, nil
}

type mockTx struct {
	driver *queueDriver
}

func (t *mockTx) Commit() error {
	op, err := t.next(opCommit)
	if err != nil {
		return err
	}
	return op.err
}

func (t *mockTx) Rollback() error {
	op, err := t.next(opRollback)
	if err != nil {
		return err
	}
	return op.err
}

func (t *mockTx) next(expected operationType) (*mockOperation, error) {
	idx := int(atomic.LoadInt32(&t.driver.idx))
	if idx >= len(t.driver.ops) {
		return nil, fmt.Errorf("unexpected operation: %v", expected)
	}
	op := &t.driver.ops[idx]
	if op.typ != expected {
		return nil, fmt.Errorf("expected operation %v, got %v", expected, op.typ)
	}
	atomic.AddInt32(&t.driver.idx, 1)
	return op, nil
}

type mockRows struct {
	columns []string
	values  [][]driver.Value
	idx     int
}

func (r *mockRows) Columns() []string { return r.columns }
func (r *mockRows) Close() error      { return nil }

func (r *mockRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.values) {
		return io.EOF
	}
	copy(dest, r.values[r.idx])
	r.idx++
	return nil
}

func named(args []driver.Value) []driver.NamedValue {
	namedArgs := make([]driver.NamedValue, len(args))
	for i, arg := range args {
		namedArgs[i] = driver.NamedValue{Ordinal: i + 1, Value: arg}
	}
	return namedArgs
}

func normalizeSQL(query string) string {
	fields := strings.Fields(query)
	return strings.Join(fields, " ")
}
