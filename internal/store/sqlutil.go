package store

import (
	"context"
	"database/sql"
	"slices"
	"strings"
)

// eligible filters out reaction carrier rows.
const eligible = `COALESCE(m.associated_message_type, 0) < 2000`

func placeholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimRight(strings.Repeat("?,", count), ",")
}

// batchSize bounds the bound parameters of one IN list, well below
// SQLite's variable limit.
const batchSize = 500

func toAny[T any](values []T) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}

// queryBatches runs query once per batchSize values. build receives the
// placeholder list for the batch; scan is called for every row of every
// batch.
func queryBatches[T any](ctx context.Context, db *DB, op string, values []T, build func(in string) string, scan func(*sql.Rows) error) error {
	for part := range slices.Chunk(values, batchSize) {
		if err := db.queryRows(ctx, op, build(placeholders(len(part))), toAny(part), scan); err != nil {
			return err
		}
	}
	return nil
}

func (db *DB) queryRows(ctx context.Context, op, query string, args []any, scan func(*sql.Rows) error) error {
	rows, err := db.q.QueryContext(ctx, query, args...)
	if err != nil {
		return db.fail(ctx, op, err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return db.fail(ctx, op, err)
		}
	}
	if err := rows.Err(); err != nil {
		return db.fail(ctx, op, err)
	}
	return nil
}

func uniqueStrings(values []string) []string {
	seen := map[string]struct{}{}
	unique := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		unique = append(unique, v)
	}
	return unique
}

func uniqueIDs(values []int64) []int64 {
	seen := map[int64]struct{}{}
	unique := make([]int64, 0, len(values))
	for _, v := range values {
		if v <= 0 {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		unique = append(unique, v)
	}
	return unique
}

func likePattern(query string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.TrimSpace(query)) + "%"
}
