package store

import (
	"context"
	"database/sql"

	"golang.org/x/sync/errgroup"

	"github.com/matheus3301/imv/internal/epoch"
	"github.com/matheus3301/imv/internal/types"
)

const conversationColumns = `
	c.ROWID, c.guid, COALESCE(c.chat_identifier, ''), c.display_name,
	COALESCE(c.style, 0), COALESCE(c.service_name, ''),
	(SELECT MAX(m.date)
		FROM chat_message_join cmj
		JOIN message m ON m.ROWID = cmj.message_id
		WHERE cmj.chat_id = c.ROWID) AS last_date`

type conversationRow struct {
	id          int64
	guid        string
	identifier  string
	displayName sql.NullString
	style       int
	service     string
	lastDate    sql.NullInt64
}

func (r *conversationRow) scan(rows interface{ Scan(...any) error }) error {
	return rows.Scan(&r.id, &r.guid, &r.identifier, &r.displayName, &r.style, &r.service, &r.lastDate)
}

func (r *conversationRow) conversation() types.Conversation {
	c := types.Conversation{
		ID:              r.id,
		GUID:            r.guid,
		ChatIdentifier:  r.identifier,
		Style:           r.style,
		IsGroup:         r.style == types.GroupStyle,
		Service:         r.service,
		LastMessageDate: epoch.ToDisplay(r.lastDate.Int64),
		Participants:    []types.Handle{},
	}
	if r.displayName.Valid && r.displayName.String != "" {
		name := r.displayName.String
		c.DisplayName = &name
	}
	return c
}

// ListConversations returns conversations by most recent activity, with
// participants and last message text resolved in one batch each.
func (db *DB) ListConversations(ctx context.Context, limit, offset int) (*ConversationPage, error) {
	if limit <= 0 {
		limit = DefaultConversationLimit
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := db.q.QueryContext(ctx, `
		SELECT `+conversationColumns+`
		FROM chat c
		ORDER BY last_date IS NULL, last_date DESC, c.ROWID DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, db.fail(ctx, "list conversations", err)
	}
	defer func() { _ = rows.Close() }()

	seen := make(map[int64]struct{})
	var convs []types.Conversation
	for rows.Next() {
		var r conversationRow
		if err := r.scan(rows); err != nil {
			return nil, db.fail(ctx, "list conversations", err)
		}
		if _, dup := seen[r.id]; dup {
			continue
		}
		seen[r.id] = struct{}{}
		convs = append(convs, r.conversation())
	}
	if err := rows.Err(); err != nil {
		return nil, db.fail(ctx, "list conversations", err)
	}

	var total int
	if err := db.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM chat`).Scan(&total); err != nil {
		return nil, db.fail(ctx, "count conversations", err)
	}

	if err := db.decorate(ctx, convs); err != nil {
		return nil, err
	}
	if convs == nil {
		convs = []types.Conversation{}
	}
	return &ConversationPage{Conversations: convs, Total: total}, nil
}

// GetConversation returns a single conversation, or nil if it does not exist.
func (db *DB) GetConversation(ctx context.Context, id int64) (*types.Conversation, error) {
	var r conversationRow
	err := r.scan(db.q.QueryRowContext(ctx, `
		SELECT `+conversationColumns+`
		FROM chat c
		WHERE c.ROWID = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, db.fail(ctx, "get conversation", err)
	}
	convs := []types.Conversation{r.conversation()}
	if err := db.decorate(ctx, convs); err != nil {
		return nil, err
	}
	return &convs[0], nil
}

// decorate fills participants and last message text for convs in place.
func (db *DB) decorate(ctx context.Context, convs []types.Conversation) error {
	if len(convs) == 0 {
		return nil
	}
	ids := make([]int64, len(convs))
	for i, c := range convs {
		ids[i] = c.ID
	}

	var (
		participants map[int64][]types.Handle
		lastText     map[int64]string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		participants, err = db.GetParticipantsBatch(gctx, ids)
		return err
	})
	g.Go(func() error {
		var err error
		lastText, err = db.GetLastMessageTextBatch(gctx, ids)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	for i := range convs {
		if hs, ok := participants[convs[i].ID]; ok {
			convs[i].Participants = hs
		}
		if text, ok := lastText[convs[i].ID]; ok {
			convs[i].LastMessageText = &text
		}
	}
	return nil
}
