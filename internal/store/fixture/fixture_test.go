package fixture

import (
	"path/filepath"
	"testing"
	"time"
)

func TestCreateAppliesLatestSchema(t *testing.T) {
	f, err := Create(filepath.Join(t.TempDir(), "chat.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()

	result, err := f.Migrate(VersionLatest)
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != VersionLatest {
		t.Errorf("version = %d, want %d", result.Version, VersionLatest)
	}

	var n int
	if err := f.DB.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('message') WHERE name = 'associated_message_emoji'`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Error("associated_message_emoji column missing")
	}
}

func TestCreateVersionBase(t *testing.T) {
	f, err := CreateVersion(filepath.Join(t.TempDir(), "chat.db"), VersionBase)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()

	var n int
	if err := f.DB.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('message') WHERE name = 'associated_message_emoji'`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Error("base schema should not have associated_message_emoji")
	}
}

func TestInsertHelpers(t *testing.T) {
	f, err := Create(filepath.Join(t.TempDir(), "chat.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()

	h, err := f.Handle("+15550001", "")
	if err != nil {
		t.Fatal(err)
	}
	chatID, err := f.Chat(Chat{GUID: "c1", ChatIdentifier: "+15550001", Handles: []int64{h}})
	if err != nil {
		t.Fatal(err)
	}
	msgID, err := f.Message(chatID, Message{GUID: "m1", Text: "hi", HandleID: h, Date: 1_700_000_000_000})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Attachment(msgID, Attachment{GUID: "a1", MimeType: "image/png"}); err != nil {
		t.Fatal(err)
	}

	var flagged int
	if err := f.DB.QueryRow(`SELECT cache_has_attachments FROM message WHERE ROWID = ?`, msgID).Scan(&flagged); err != nil {
		t.Fatal(err)
	}
	if flagged != 1 {
		t.Errorf("cache_has_attachments = %d, want 1", flagged)
	}
}

func TestSeedDemo(t *testing.T) {
	f, err := Create(filepath.Join(t.TempDir(), "chat.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()

	n, err := SeedDemo(f, time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if n == 0 {
		t.Fatal("SeedDemo wrote no messages")
	}
	var chats int
	if err := f.DB.QueryRow(`SELECT COUNT(*) FROM chat`).Scan(&chats); err != nil {
		t.Fatal(err)
	}
	if chats != 3 {
		t.Errorf("chats = %d, want 3", chats)
	}
}
