package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/matheus3301/imv/internal/epoch"
	"github.com/matheus3301/imv/internal/types"
)

// monthKey buckets chat.db dates by UTC calendar month.
const monthKey = `strftime('%Y-%m', m.date / 1000000000 + 978307200, 'unixepoch')`

// GetDateIndex returns the months that have messages (or media) in a
// conversation, oldest first.
func (db *DB) GetDateIndex(ctx context.Context, chatID int64, source types.DateIndexSource) ([]types.DateIndexEntry, error) {
	var from string
	switch source {
	case types.SourceMessages, "":
		from = `
		FROM chat_message_join cmj
		JOIN message m ON m.ROWID = cmj.message_id
		WHERE cmj.chat_id = ? AND ` + eligible
	case types.SourceMedia:
		from = `
		FROM chat_message_join cmj
		JOIN message m ON m.ROWID = cmj.message_id
		JOIN message_attachment_join maj ON maj.message_id = m.ROWID
		JOIN attachment a ON a.ROWID = maj.attachment_id
		WHERE cmj.chat_id = ? AND ` + eligible + ` AND ` + mediaFilter
	default:
		return nil, fmt.Errorf("unknown date index source %q", source)
	}

	rows, err := db.q.QueryContext(ctx, `
		SELECT `+monthKey+` AS month_key, MIN(m.date), COUNT(*)`+from+`
			AND m.date > 0
		GROUP BY month_key
		ORDER BY month_key`, chatID)
	if err != nil {
		return nil, db.fail(ctx, "date index", err)
	}
	defer func() { _ = rows.Close() }()

	entries := []types.DateIndexEntry{}
	for rows.Next() {
		var (
			e     types.DateIndexEntry
			first int64
		)
		if err := rows.Scan(&e.MonthKey, &first, &e.Count); err != nil {
			return nil, db.fail(ctx, "date index", err)
		}
		e.Year, e.Month = parseMonthKey(e.MonthKey)
		e.FirstDate = epoch.ToDisplay(first)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, db.fail(ctx, "date index", err)
	}
	return entries, nil
}

func parseMonthKey(key string) (year, month int) {
	y, m, ok := strings.Cut(key, "-")
	if !ok {
		return 0, 0
	}
	year, _ = strconv.Atoi(y)
	month, _ = strconv.Atoi(m)
	return year, month
}
