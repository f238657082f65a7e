package store

import (
	"context"
	"database/sql"

	"golang.org/x/sync/errgroup"

	"github.com/matheus3301/imv/internal/epoch"
	"github.com/matheus3301/imv/internal/tapback"
	"github.com/matheus3301/imv/internal/types"
)

const messageSelect = `
	SELECT m.ROWID, m.guid, m.text, m.attributedBody,
		COALESCE(m.handle_id, 0), h.id, h.service,
		COALESCE(m.date, 0), COALESCE(m.is_from_me, 0), COALESCE(m.service, ''),
		COALESCE(m.cache_has_attachments, 0)
	FROM chat_message_join cmj
	JOIN message m ON m.ROWID = cmj.message_id
	LEFT JOIN handle h ON h.ROWID = m.handle_id`

type messageRow struct {
	msg            types.Message
	hasAttachments bool
}

func (db *DB) queryMessages(ctx context.Context, op, query string, args ...any) ([]messageRow, error) {
	rows, err := db.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, db.fail(ctx, op, err)
	}
	defer func() { _ = rows.Close() }()

	var out []messageRow
	for rows.Next() {
		var (
			r         messageRow
			text      sql.NullString
			body      []byte
			handleID  int64
			handle    sql.NullString
			service   sql.NullString
			date      int64
			hasAttach int
		)
		if err := rows.Scan(&r.msg.ID, &r.msg.GUID, &text, &body,
			&handleID, &handle, &service,
			&date, &r.msg.IsFromMe, &r.msg.Service, &hasAttach); err != nil {
			return nil, db.fail(ctx, op, err)
		}
		switch {
		case text.Valid && text.String != "":
			t := text.String
			r.msg.Text = &t
		case len(body) > 0:
			if t := decodeAttributedBody(body); t != "" {
				r.msg.Text = &t
			}
		}
		if !r.msg.IsFromMe && handleID > 0 && handle.Valid {
			r.msg.Sender = &types.Handle{ID: handleID, Identifier: handle.String, Service: service.String}
		}
		r.msg.Date = epoch.ToDisplay(date)
		r.msg.Reactions = []types.Reaction{}
		r.msg.Attachments = []types.Attachment{}
		r.hasAttachments = hasAttach != 0
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, db.fail(ctx, op, err)
	}
	return out, nil
}

// ListMessages returns up to limit messages older than beforeDate (all
// messages when nil), in chronological order. Reaction rows are not messages
// and never appear; their effect is folded into each message's Reactions.
func (db *DB) ListMessages(ctx context.Context, chatID int64, limit int, beforeDate *int64) (*MessagePage, error) {
	if limit <= 0 {
		limit = DefaultMessageLimit
	}
	query := messageSelect + `
		WHERE cmj.chat_id = ? AND ` + eligible
	args := []any{chatID}
	if beforeDate != nil {
		query += ` AND m.date < ?`
		args = append(args, epoch.ToStore(*beforeDate))
	}
	query += `
		ORDER BY m.date DESC, m.ROWID DESC
		LIMIT ?`
	args = append(args, limit+1)

	rows, err := db.queryMessages(ctx, "list messages", query, args...)
	if err != nil {
		return nil, err
	}
	hasMore := len(rows) > limit
	if hasMore {
		rows = rows[:limit]
	}
	reverse(rows)

	msgs, err := db.hydrate(ctx, rows)
	if err != nil {
		return nil, err
	}
	return &MessagePage{Messages: msgs, HasMore: hasMore}, nil
}

// ListMessagesAroundDate returns up to contextCount+1 messages at or before
// targetDate and up to contextCount after it, chronologically. TargetIndex
// points at the message closest to targetDate; the earlier one wins a tie.
func (db *DB) ListMessagesAroundDate(ctx context.Context, chatID, targetDate int64, contextCount int) (*AroundPage, error) {
	if contextCount <= 0 {
		contextCount = DefaultContextCount
	}
	// Comparing against the start of the next millisecond keeps every store
	// value that displays as targetDate on the "at or before" side.
	pivot := epoch.ToStore(targetDate + 1)

	before, err := db.queryMessages(ctx, "messages around date", messageSelect+`
		WHERE cmj.chat_id = ? AND `+eligible+` AND m.date < ?
		ORDER BY m.date DESC, m.ROWID DESC
		LIMIT ?`, chatID, pivot, contextCount+1)
	if err != nil {
		return nil, err
	}
	after, err := db.queryMessages(ctx, "messages around date", messageSelect+`
		WHERE cmj.chat_id = ? AND `+eligible+` AND m.date >= ?
		ORDER BY m.date ASC, m.ROWID ASC
		LIMIT ?`, chatID, pivot, contextCount)
	if err != nil {
		return nil, err
	}

	reverse(before)
	rows := append(before, after...)
	msgs, err := db.hydrate(ctx, rows)
	if err != nil {
		return nil, err
	}
	return &AroundPage{Messages: msgs, TargetIndex: closestIndex(msgs, targetDate)}, nil
}

func closestIndex(msgs []types.Message, target int64) int {
	best := -1
	var bestDist int64
	for i, m := range msgs {
		d := m.Date - target
		if d < 0 {
			d = -d
		}
		if best < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// GetLastMessageTextBatch returns the text of the most recent message in each
// conversation. Conversations whose last message has no text are absent.
func (db *DB) GetLastMessageTextBatch(ctx context.Context, chatIDs []int64) (map[int64]string, error) {
	out := make(map[int64]string)
	ids := uniqueIDs(chatIDs)
	if len(ids) == 0 {
		return out, nil
	}

	err := queryBatches(ctx, db, "last message text", ids, func(in string) string {
		return `
		SELECT chat_id, text, attributedBody FROM (
			SELECT cmj.chat_id, m.text, m.attributedBody,
				ROW_NUMBER() OVER (PARTITION BY cmj.chat_id ORDER BY m.date DESC, m.ROWID DESC) AS rn
			FROM chat_message_join cmj
			JOIN message m ON m.ROWID = cmj.message_id
			WHERE cmj.chat_id IN (` + in + `) AND ` + eligible + `
		)
		WHERE rn = 1`
	}, func(rows *sql.Rows) error {
		var (
			chatID int64
			text   sql.NullString
			body   []byte
		)
		if err := rows.Scan(&chatID, &text, &body); err != nil {
			return err
		}
		switch {
		case text.Valid && text.String != "":
			out[chatID] = text.String
		case len(body) > 0:
			if t := decodeAttributedBody(body); t != "" {
				out[chatID] = t
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// hydrate attaches active reactions and attachments to rows, one query each.
func (db *DB) hydrate(ctx context.Context, rows []messageRow) ([]types.Message, error) {
	msgs := make([]types.Message, len(rows))
	guids := make([]string, 0, len(rows))
	var withAttachments []int64
	for i, r := range rows {
		msgs[i] = r.msg
		guids = append(guids, r.msg.GUID)
		if r.hasAttachments {
			withAttachments = append(withAttachments, r.msg.ID)
		}
	}
	if len(msgs) == 0 {
		return msgs, nil
	}

	var (
		events      []tapback.Event
		attachments map[int64][]types.Attachment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		events, err = db.GetReactionsForMessages(gctx, guids)
		return err
	})
	g.Go(func() error {
		var err error
		attachments, err = db.GetAttachmentsForMessages(gctx, withAttachments)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	reactions := tapback.Reconcile(events)
	for i := range msgs {
		if rs, ok := reactions[msgs[i].GUID]; ok {
			msgs[i].Reactions = rs
		}
		if as, ok := attachments[msgs[i].ID]; ok {
			msgs[i].Attachments = as
		}
	}
	return msgs, nil
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
