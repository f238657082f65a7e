package store

import (
	"context"
	"database/sql"
	"strings"

	"github.com/matheus3301/imv/internal/types"
)

// GetParticipants returns the handles in a conversation, in join order.
func (db *DB) GetParticipants(ctx context.Context, chatID int64) ([]types.Handle, error) {
	batch, err := db.GetParticipantsBatch(ctx, []int64{chatID})
	if err != nil {
		return nil, err
	}
	if hs, ok := batch[chatID]; ok {
		return hs, nil
	}
	return []types.Handle{}, nil
}

// GetParticipantsBatch returns participants for many conversations, one
// query per batch of ids. Conversations without participants are absent
// from the map.
func (db *DB) GetParticipantsBatch(ctx context.Context, chatIDs []int64) (map[int64][]types.Handle, error) {
	out := make(map[int64][]types.Handle)
	ids := uniqueIDs(chatIDs)
	if len(ids) == 0 {
		return out, nil
	}

	seen := make(map[[2]int64]struct{})
	err := queryBatches(ctx, db, "participants", ids, func(in string) string {
		return `
		SELECT chj.chat_id, h.ROWID, h.id, COALESCE(h.service, '')
		FROM chat_handle_join chj
		JOIN handle h ON h.ROWID = chj.handle_id
		WHERE chj.chat_id IN (` + in + `)
		ORDER BY chj.chat_id, chj.ROWID`
	}, func(rows *sql.Rows) error {
		var chatID int64
		var h types.Handle
		if err := rows.Scan(&chatID, &h.ID, &h.Identifier, &h.Service); err != nil {
			return err
		}
		key := [2]int64{chatID, h.ID}
		if _, dup := seen[key]; dup {
			return nil
		}
		seen[key] = struct{}{}
		out[chatID] = append(out[chatID], h)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListHandles returns handles whose identifier contains query. An empty
// query lists all handles.
func (db *DB) ListHandles(ctx context.Context, query string, limit int) ([]types.Handle, error) {
	if limit <= 0 {
		limit = DefaultAutocompleteLimit
	}
	rows, err := db.q.QueryContext(ctx, `
		SELECT h.ROWID, h.id, COALESCE(h.service, '')
		FROM handle h
		WHERE ? = '' OR h.id LIKE ? ESCAPE '\'
		ORDER BY h.id, h.ROWID
		LIMIT ?`, strings.TrimSpace(query), likePattern(query), limit)
	if err != nil {
		return nil, db.fail(ctx, "list handles", err)
	}
	defer func() { _ = rows.Close() }()

	handles := []types.Handle{}
	for rows.Next() {
		var h types.Handle
		if err := rows.Scan(&h.ID, &h.Identifier, &h.Service); err != nil {
			return nil, db.fail(ctx, "list handles", err)
		}
		handles = append(handles, h)
	}
	if err := rows.Err(); err != nil {
		return nil, db.fail(ctx, "list handles", err)
	}
	return handles, nil
}
