package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// DefaultAttachmentsPrefix is how chat.db records attachment locations.
const DefaultAttachmentsPrefix = "~/Library/Messages/Attachments"

const (
	idleConns   = 2
	idleTimeout = time.Minute
)

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Options configures Open.
type Options struct {
	// AttachmentsRoot replaces DefaultAttachmentsPrefix when resolving local
	// attachment paths, for chat.db copies taken off the original machine.
	AttachmentsRoot string
	Logger          *zap.Logger
}

// DB is a read-only handle on a Messages chat.db. It is safe for concurrent
// use; every method allocates its results per call.
type DB struct {
	conn   *sql.DB
	q      querier
	path   string
	home   string
	opts   Options
	logger *zap.Logger

	hasEmojiColumn bool
}

// Open opens chat.db at path read-only and probes its schema.
func Open(ctx context.Context, path string, opts Options) (*DB, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, err := os.Stat(path); err != nil {
		return nil, unavailable("open", err)
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro&_query_only=1&_busy_timeout=5000", path))
	if err != nil {
		return nil, unavailable("open", err)
	}
	conn.SetMaxIdleConns(idleConns)
	conn.SetConnMaxIdleTime(idleTimeout)
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, unavailable("ping", err)
	}

	home, _ := os.UserHomeDir()
	db := &DB{conn: conn, q: conn, path: path, home: home, opts: opts, logger: logger}
	if db.hasEmojiColumn, err = db.hasColumn(ctx, "message", "associated_message_emoji"); err != nil {
		_ = conn.Close()
		return nil, err
	}
	logger.Info("chat.db opened",
		zap.String("path", path),
		zap.Bool("custom_emoji_reactions", db.hasEmojiColumn),
	)
	return db, nil
}

// Close releases the handle.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Path returns the chat.db location.
func (db *DB) Path() string {
	return db.path
}

// Ping checks the file is still reachable.
func (db *DB) Ping(ctx context.Context) error {
	if _, err := os.Stat(db.path); err != nil {
		return unavailable("ping", err)
	}
	if err := db.conn.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// Refresh closes idle pooled connections, which keep the file they were
// opened on, so later queries read the chat.db now at Path. Call it after
// chat.db has been replaced on disk.
func (db *DB) Refresh(ctx context.Context) error {
	db.conn.SetMaxIdleConns(0)
	db.conn.SetMaxIdleConns(idleConns)
	if err := db.Ping(ctx); err != nil {
		return err
	}
	db.logger.Info("chat.db connections refreshed", zap.String("path", db.path))
	return nil
}

func (db *DB) hasColumn(ctx context.Context, table, column string) (bool, error) {
	var n int
	err := db.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, table, column).Scan(&n)
	if err != nil {
		return false, db.fail(ctx, "probe schema", err)
	}
	return n > 0, nil
}

// Stats holds row counts for status output.
type Stats struct {
	Conversations int64 `json:"conversations"`
	Messages      int64 `json:"messages"`
	Handles       int64 `json:"handles"`
	Attachments   int64 `json:"attachments"`
}

// Stats returns table row counts.
func (db *DB) Stats(ctx context.Context) (*Stats, error) {
	var s Stats
	err := db.q.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM chat),
			(SELECT COUNT(*) FROM message WHERE COALESCE(associated_message_type, 0) < 2000),
			(SELECT COUNT(*) FROM handle),
			(SELECT COUNT(*) FROM attachment)`).
		Scan(&s.Conversations, &s.Messages, &s.Handles, &s.Attachments)
	if err != nil {
		return nil, db.fail(ctx, "stats", err)
	}
	return &s, nil
}

// localPath expands a chat.db attachment filename to a filesystem path.
func (db *DB) localPath(filename sql.NullString) *string {
	if !filename.Valid || filename.String == "" {
		return nil
	}
	p := filename.String
	switch {
	case db.opts.AttachmentsRoot != "" && strings.HasPrefix(p, DefaultAttachmentsPrefix):
		p = filepath.Join(db.opts.AttachmentsRoot, strings.TrimPrefix(p, DefaultAttachmentsPrefix))
	case strings.HasPrefix(p, "~/") && db.home != "":
		p = filepath.Join(db.home, p[2:])
	}
	return &p
}
