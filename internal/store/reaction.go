package store

import (
	"cmp"
	"context"
	"database/sql"
	"slices"

	"github.com/matheus3301/imv/internal/epoch"
	"github.com/matheus3301/imv/internal/tapback"
)

// targetGUID strips the "p:N/" or "bp:" prefix from associated_message_guid.
const targetGUID = `CASE
		WHEN instr(m.associated_message_guid, '/') > 0
			THEN substr(m.associated_message_guid, instr(m.associated_message_guid, '/') + 1)
		WHEN m.associated_message_guid LIKE 'bp:%'
			THEN substr(m.associated_message_guid, 4)
		ELSE m.associated_message_guid
	END`

// GetReactionsForMessages returns every reaction add and remove event that
// targets one of guids, ascending by date. Pass the result to
// tapback.Reconcile to get the reactions in effect.
func (db *DB) GetReactionsForMessages(ctx context.Context, guids []string) ([]tapback.Event, error) {
	targets := uniqueStrings(guids)
	if len(targets) == 0 {
		return []tapback.Event{}, nil
	}

	emoji := `NULL`
	if db.hasEmojiColumn {
		emoji = `m.associated_message_emoji`
	}

	type stored struct {
		event tapback.Event
		date  int64
	}
	var found []stored
	err := queryBatches(ctx, db, "reactions", targets, func(in string) string {
		return `
		SELECT m.ROWID, m.guid, m.associated_message_type, ` + emoji + `,
			COALESCE(m.is_from_me, 0), COALESCE(m.date, 0),
			COALESCE(m.handle_id, 0), COALESCE(h.id, ''),
			m.associated_message_guid
		FROM message m
		LEFT JOIN handle h ON h.ROWID = m.handle_id
		WHERE m.associated_message_type >= 2000
			AND m.associated_message_guid IS NOT NULL
			AND ` + targetGUID + ` IN (` + in + `)
		ORDER BY m.date ASC, m.ROWID ASC`
	}, func(rows *sql.Rows) error {
		var (
			e           tapback.Event
			customEmoji sql.NullString
			date        int64
			associated  string
		)
		if err := rows.Scan(&e.ID, &e.GUID, &e.Type, &customEmoji,
			&e.IsFromMe, &date, &e.ReactorID, &e.Reactor, &associated); err != nil {
			return err
		}
		if customEmoji.Valid && customEmoji.String != "" {
			s := customEmoji.String
			e.CustomEmoji = &s
		}
		e.Date = epoch.ToDisplay(date)
		_, e.Target = tapback.ParseTarget(associated)
		found = append(found, stored{event: e, date: date})
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Each batch is ordered; batches are merged back into arrival order.
	slices.SortStableFunc(found, func(a, b stored) int {
		return cmp.Or(cmp.Compare(a.date, b.date), cmp.Compare(a.event.ID, b.event.ID))
	})
	events := make([]tapback.Event, len(found))
	for i, f := range found {
		events[i] = f.event
	}
	return events, nil
}
