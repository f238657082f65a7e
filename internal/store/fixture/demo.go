package fixture

import (
	"fmt"
	"time"

	"github.com/matheus3301/imv/internal/tapback"
)

var demoLines = []string{
	"are we still on for saturday?",
	"yes! 10am at the usual place",
	"can you bring the charger",
	"running 5 min late",
	"that was hilarious",
	"sending the photos now",
	"did you see the game last night",
	"happy birthday!!",
	"ok sounds good",
	"call me when you land",
}

// SeedDemo fills f with a few conversations spanning the months before now.
// It returns the number of messages written.
func SeedDemo(f *Fixture, now time.Time) (int, error) {
	alice, err := f.Handle("+15550100", "iMessage")
	if err != nil {
		return 0, err
	}
	bob, err := f.Handle("bob@example.com", "iMessage")
	if err != nil {
		return 0, err
	}
	carol, err := f.Handle("+15550199", "SMS")
	if err != nil {
		return 0, err
	}

	chats := []struct {
		chat    Chat
		members []int64
		months  int
	}{
		{Chat{GUID: "iMessage;-;+15550100", ChatIdentifier: "+15550100", Handles: []int64{alice}}, []int64{alice}, 14},
		{Chat{GUID: "iMessage;-;bob@example.com", ChatIdentifier: "bob@example.com", Handles: []int64{bob}}, []int64{bob}, 3},
		{Chat{GUID: "iMessage;+;chat100200300", ChatIdentifier: "chat100200300", DisplayName: "Weekend Crew", Style: 43, Handles: []int64{alice, bob, carol}}, []int64{alice, bob, carol}, 6},
	}

	total := 0
	for ci, c := range chats {
		chatID, err := f.Chat(c.chat)
		if err != nil {
			return total, err
		}
		start := now.AddDate(0, -c.months, 0)
		var prevGUID string
		for day := 0; ; day += 3 {
			at := start.AddDate(0, 0, day).Add(time.Duration(ci) * time.Hour)
			if !at.Before(now) {
				break
			}
			fromMe := day%2 == 0
			sender := c.members[(day/3)%len(c.members)]
			if fromMe {
				sender = 0
			}
			guid := fmt.Sprintf("DEMO-%d-%d", ci, day)
			msgID, err := f.Message(chatID, Message{
				GUID:     guid,
				Text:     demoLines[(day/3+ci)%len(demoLines)],
				HandleID: sender,
				FromMe:   fromMe,
				Date:     at.UnixMilli(),
			})
			if err != nil {
				return total, err
			}
			total++

			switch {
			case day%15 == 0 && prevGUID != "":
				_, err = f.Message(chatID, Message{
					GUID:           guid + "-R",
					HandleID:       c.members[0],
					Date:           at.Add(time.Minute).UnixMilli(),
					AssociatedGUID: tapback.FormatTarget(0, prevGUID),
					AssociatedType: tapback.Love,
				})
			case day%21 == 0:
				_, err = f.Attachment(msgID, Attachment{
					GUID:         guid + "-A",
					Filename:     fmt.Sprintf("~/Library/Messages/Attachments/%02d/%02d/%s/IMG_%04d.jpeg", day%100, ci, guid, day),
					MimeType:     "image/jpeg",
					UTI:          "public.jpeg",
					TransferName: fmt.Sprintf("IMG_%04d.jpeg", day),
					TotalBytes:   int64(180_000 + day*1_000),
				})
			}
			if err != nil {
				return total, err
			}
			prevGUID = guid
		}
	}
	return total, nil
}
