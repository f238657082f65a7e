package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/matheus3301/imv/internal/types"
)

func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
}

func formatDate(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04")
}

func relDate(ms int64) string {
	if ms == 0 {
		return "never"
	}
	return humanize.Time(time.UnixMilli(ms))
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}

func sender(m types.Message) string {
	switch {
	case m.IsFromMe:
		return "me"
	case m.Sender != nil:
		return m.Sender.Identifier
	default:
		return "?"
	}
}

func writeMessage(w io.Writer, m types.Message, marker string) {
	text := types.Deref(m.Text)
	for _, a := range m.Attachments {
		text += fmt.Sprintf(" [%s %s %s]", a.Type, a.Name(), humanize.Bytes(uint64(max(a.TotalBytes, 0))))
	}
	fmt.Fprintf(w, "%s%s\t%s\t%s", marker, formatDate(m.Date), sender(m), truncate(text, 80))
	if len(m.Reactions) > 0 {
		var rs []string
		for _, r := range m.Reactions {
			who := r.Reactor
			if r.IsFromMe {
				who = "me"
			}
			rs = append(rs, r.Emoji+" "+who)
		}
		fmt.Fprintf(w, "\t(%s)", strings.Join(rs, ", "))
	}
	fmt.Fprintln(w)
}
