package views

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gdamore/tcell/v2"

	"github.com/matheus3301/imv/internal/types"
)

func colorHex(c tcell.Color) string {
	return fmt.Sprintf("#%06x", c.Hex())
}

func formatTimestamp(ms int64) string {
	return formatTimestampAt(ms, time.Now())
}

func formatTimestampAt(ms int64, now time.Time) string {
	if ms == 0 {
		return ""
	}
	t := time.UnixMilli(ms).In(now.Location())
	switch {
	case t.Year() == now.Year() && t.YearDay() == now.YearDay():
		return t.Format("15:04")
	case t.Year() == now.Year():
		return t.Format("Jan 02")
	default:
		return t.Format("2006-01-02")
	}
}

func senderName(m types.Message) string {
	switch {
	case m.IsFromMe:
		return "You"
	case m.Sender != nil:
		return m.Sender.Identifier
	default:
		return "Unknown"
	}
}

func attachmentLabel(a types.Attachment) string {
	size := ""
	if a.TotalBytes > 0 {
		size = ", " + humanize.Bytes(uint64(a.TotalBytes))
	}
	return "[" + string(a.Type) + ": " + a.Name() + size + "]"
}
