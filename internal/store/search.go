package store

import (
	"context"
	"database/sql"
	"strings"

	"github.com/matheus3301/imv/internal/types"
)

// ListConversationsForFilter returns conversation summaries whose display
// name or identifier contains query, most recently active first.
func (db *DB) ListConversationsForFilter(ctx context.Context, query string, limit int) ([]types.ConversationSummary, error) {
	if limit <= 0 {
		limit = DefaultAutocompleteLimit
	}
	pattern := likePattern(query)
	rows, err := db.q.QueryContext(ctx, `
		SELECT c.ROWID, c.guid, COALESCE(c.chat_identifier, ''), c.display_name, COALESCE(c.style, 0)
		FROM chat c
		LEFT JOIN chat_message_join cmj ON cmj.chat_id = c.ROWID
		WHERE ? = ''
			OR c.display_name LIKE ? ESCAPE '\'
			OR c.chat_identifier LIKE ? ESCAPE '\'
		GROUP BY c.ROWID
		ORDER BY MAX(cmj.message_date) IS NULL, MAX(cmj.message_date) DESC, c.ROWID DESC
		LIMIT ?`, strings.TrimSpace(query), pattern, pattern, limit)
	if err != nil {
		return nil, db.fail(ctx, "filter conversations", err)
	}
	defer func() { _ = rows.Close() }()

	out := []types.ConversationSummary{}
	for rows.Next() {
		var (
			s     types.ConversationSummary
			name  sql.NullString
			style int
		)
		if err := rows.Scan(&s.ID, &s.GUID, &s.ChatIdentifier, &name, &style); err != nil {
			return nil, db.fail(ctx, "filter conversations", err)
		}
		if name.Valid && name.String != "" {
			n := name.String
			s.DisplayName = &n
		}
		s.IsGroup = style == types.GroupStyle
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, db.fail(ctx, "filter conversations", err)
	}
	return out, nil
}
