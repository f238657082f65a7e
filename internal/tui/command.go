package tui

import (
	"fmt"
	"strings"
	"time"
)

// Command represents a parsed command.
type Command struct {
	Name string
	Args string
}

// ParseCommand parses a command string (without the leading ':').
func ParseCommand(input string) Command {
	input = strings.TrimSpace(input)
	parts := strings.SplitN(input, " ", 2)
	cmd := Command{Name: strings.ToLower(parts[0])}
	if len(parts) > 1 {
		cmd.Args = strings.TrimSpace(parts[1])
	}
	return cmd
}

var dateLayouts = []string{"2006-01-02", "2006-01", "2006"}

// ParseDate reads a day, month or year in loc and returns the Unix
// milliseconds of its start.
func ParseDate(s string, loc *time.Location) (int64, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.UnixMilli(), nil
		}
	}
	return 0, fmt.Errorf("invalid date %q (want YYYY-MM-DD, YYYY-MM or YYYY)", s)
}
