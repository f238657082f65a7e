package store

import (
	"context"
	"database/sql"

	"github.com/matheus3301/imv/internal/attachment"
	"github.com/matheus3301/imv/internal/epoch"
	"github.com/matheus3301/imv/internal/types"
)

const attachmentColumns = `
	a.ROWID, a.guid, a.filename, a.mime_type, a.uti, a.transfer_name,
	COALESCE(a.total_bytes, 0), COALESCE(a.is_sticker, 0), COALESCE(m.is_audio_message, 0)`

// mediaFilter approximates the image/video categories in SQL so paging
// stays in the database.
const mediaFilter = `COALESCE(a.is_sticker, 0) = 0
	AND COALESCE(m.is_audio_message, 0) = 0
	AND COALESCE(a.hide_attachment, 0) = 0
	AND (lower(a.mime_type) LIKE 'image/%' OR lower(a.mime_type) LIKE 'video/%')`

func (db *DB) scanAttachment(rows *sql.Rows, extra ...any) (types.Attachment, error) {
	var (
		a                  types.Attachment
		filename, mimeType sql.NullString
		uti, transferName  sql.NullString
	)
	dest := append([]any{
		&a.ID, &a.GUID, &filename, &mimeType, &uti, &transferName,
		&a.TotalBytes, &a.IsSticker, &a.IsAudioMessage,
	}, extra...)
	if err := rows.Scan(dest...); err != nil {
		return a, err
	}
	a.Filename = nullable(filename)
	a.MimeType = nullable(mimeType)
	a.UTI = nullable(uti)
	a.TransferName = nullable(transferName)
	a.LocalPath = db.localPath(filename)
	a.Type = attachment.Classify(mimeType.String, uti.String, a.IsSticker, a.IsAudioMessage)
	return a, nil
}

// GetAttachmentsForMessages returns the attachments of each message, in
// attachment order.
func (db *DB) GetAttachmentsForMessages(ctx context.Context, messageIDs []int64) (map[int64][]types.Attachment, error) {
	out := make(map[int64][]types.Attachment)
	ids := uniqueIDs(messageIDs)
	if len(ids) == 0 {
		return out, nil
	}

	err := queryBatches(ctx, db, "attachments", ids, func(in string) string {
		return `
		SELECT ` + attachmentColumns + `, maj.message_id
		FROM message_attachment_join maj
		JOIN attachment a ON a.ROWID = maj.attachment_id
		JOIN message m ON m.ROWID = maj.message_id
		WHERE maj.message_id IN (` + in + `)
			AND COALESCE(a.hide_attachment, 0) = 0
		ORDER BY maj.message_id, a.ROWID`
	}, func(rows *sql.Rows) error {
		var messageID int64
		a, err := db.scanAttachment(rows, &messageID)
		if err != nil {
			return err
		}
		a.MessageID = messageID
		out[messageID] = append(out[messageID], a)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListMedia pages through a conversation's images and videos, newest page
// first, each page in chronological order.
func (db *DB) ListMedia(ctx context.Context, chatID int64, limit int, beforeDate *int64) (*MediaPage, error) {
	if limit <= 0 {
		limit = DefaultMediaLimit
	}
	query := `
		SELECT ` + attachmentColumns + `, m.ROWID, m.guid, COALESCE(m.date, 0), COALESCE(m.is_from_me, 0)
		FROM chat_message_join cmj
		JOIN message m ON m.ROWID = cmj.message_id
		JOIN message_attachment_join maj ON maj.message_id = m.ROWID
		JOIN attachment a ON a.ROWID = maj.attachment_id
		WHERE cmj.chat_id = ? AND ` + eligible + ` AND ` + mediaFilter
	args := []any{chatID}
	if beforeDate != nil {
		query += ` AND m.date < ?`
		args = append(args, epoch.ToStore(*beforeDate))
	}
	query += `
		ORDER BY m.date DESC, a.ROWID DESC
		LIMIT ?`
	args = append(args, limit+1)

	rows, err := db.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, db.fail(ctx, "list media", err)
	}
	defer func() { _ = rows.Close() }()

	items := []types.MediaItem{}
	for rows.Next() {
		var (
			item      types.MediaItem
			messageID int64
			date      int64
		)
		a, err := db.scanAttachment(rows, &messageID, &item.MessageGUID, &date, &item.IsFromMe)
		if err != nil {
			return nil, db.fail(ctx, "list media", err)
		}
		a.MessageID = messageID
		item.Attachment = a
		item.Date = epoch.ToDisplay(date)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, db.fail(ctx, "list media", err)
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}
	reverse(items)
	return &MediaPage{Items: items, HasMore: hasMore}, nil
}

func nullable(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
