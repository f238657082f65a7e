// Package tapback reduces the raw stream of reaction rows in chat.db to the
// set of reactions currently in effect on each message.
//
// chat.db never deletes a reaction. Adding one inserts a row whose
// associated_message_type is in the 2000 range; removing it inserts another
// row with the same kind offset by 1000. The current state is whatever the
// latest row for a (reactor, kind) slot says.
package tapback

import (
	"sort"
	"strconv"

	"github.com/matheus3301/imv/internal/types"
)

// Reaction type codes.
const (
	AddBase      = 2000
	RemoveBase   = 3000
	RemoveOffset = RemoveBase - AddBase

	Love      = 2000
	Like      = 2001
	Dislike   = 2002
	Laugh     = 2003
	Emphasize = 2004
	Question  = 2005
	Emoji     = 2006
	Sticker   = 2007
)

// Event is one raw reaction row, add or remove.
type Event struct {
	ID          int64
	GUID        string
	Type        int
	CustomEmoji *string
	IsFromMe    bool
	Date        int64
	ReactorID   int64
	Reactor     string
	Target      string
}

// IsReaction reports whether code is any reaction carrier code.
func IsReaction(code int) bool {
	return code >= AddBase
}

// IsRemoval reports whether the event retracts an earlier reaction.
func (e Event) IsRemoval() bool {
	return e.Type >= RemoveBase
}

// EffectiveType is the add-form kind of the event.
func (e Event) EffectiveType() int {
	if e.IsRemoval() {
		return e.Type - RemoveOffset
	}
	return e.Type
}

// SlotKey identifies the reaction slot the event writes to. A person holds
// at most one reaction of each kind on a message.
func (e Event) SlotKey() string {
	t := strconv.Itoa(e.EffectiveType())
	if e.IsFromMe {
		return "me:" + t
	}
	return strconv.FormatInt(e.ReactorID, 10) + ":" + t
}

// DefaultEmoji returns the glyph shown for a reaction kind.
func DefaultEmoji(kind int) string {
	switch kind {
	case Love:
		return "❤️"
	case Like:
		return "👍"
	case Dislike:
		return "👎"
	case Laugh:
		return "😂"
	case Emphasize:
		return "‼️"
	case Question:
		return "❓"
	case Sticker:
		return "🏷️"
	default:
		return "👍"
	}
}

type slot struct {
	event   Event
	removed bool
}

// Reconcile folds events, in the order given, into the active reactions per
// target message GUID. Callers pass events ascending by date; the later of
// two events on the same slot always wins. Messages without any active
// reaction are absent from the result.
func Reconcile(events []Event) map[string][]types.Reaction {
	byTarget := make(map[string]map[string]*slot)
	for _, e := range events {
		if !IsReaction(e.Type) || e.Target == "" {
			continue
		}
		slots, ok := byTarget[e.Target]
		if !ok {
			slots = make(map[string]*slot)
			byTarget[e.Target] = slots
		}
		key := e.SlotKey()
		if e.IsRemoval() {
			if s, ok := slots[key]; ok {
				s.removed = true
			}
			continue
		}
		slots[key] = &slot{event: e}
	}

	out := make(map[string][]types.Reaction, len(byTarget))
	for target, slots := range byTarget {
		var active []types.Reaction
		for _, s := range slots {
			if s.removed {
				continue
			}
			active = append(active, toReaction(s.event))
		}
		if len(active) == 0 {
			continue
		}
		sort.Slice(active, func(i, j int) bool {
			if active[i].Date != active[j].Date {
				return active[i].Date < active[j].Date
			}
			return active[i].ID < active[j].ID
		})
		out[target] = active
	}
	return out
}

func toReaction(e Event) types.Reaction {
	kind := e.EffectiveType()
	emoji := DefaultEmoji(kind)
	if e.CustomEmoji != nil && *e.CustomEmoji != "" {
		emoji = *e.CustomEmoji
	}
	reactor := e.Reactor
	if e.IsFromMe {
		reactor = ""
	}
	return types.Reaction{
		ID:       e.ID,
		GUID:     e.GUID,
		Type:     kind,
		Emoji:    emoji,
		IsFromMe: e.IsFromMe,
		Date:     e.Date,
		Reactor:  reactor,
	}
}
