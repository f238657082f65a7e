// Package fixture writes SQLite files with the chat.db schema. It backs the
// store tests and the `imvctl demo` command.
package fixture

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/matheus3301/imv/internal/epoch"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Schema versions.
const (
	// VersionBase is the schema before reactions carried custom emoji.
	VersionBase uint = 1
	// VersionLatest adds message.associated_message_emoji.
	VersionLatest uint = 2
)

// MigrateResult describes what happened during migration.
type MigrateResult struct {
	Version uint
	Dirty   bool
	Changed bool
}

// Fixture is a writable chat.db-shaped database.
type Fixture struct {
	DB   *sql.DB
	Path string
}

// Create creates a fixture at path with the latest schema.
func Create(path string) (*Fixture, error) {
	return CreateVersion(path, VersionLatest)
}

// CreateVersion creates a fixture at path migrated to the given version.
func CreateVersion(path string, version uint) (*Fixture, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open fixture: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping fixture: %w", err)
	}
	f := &Fixture{DB: db, Path: path}
	if _, err := f.Migrate(version); err != nil {
		_ = db.Close()
		return nil, err
	}
	return f, nil
}

// Migrate brings the schema to version.
func (f *Fixture) Migrate(version uint) (*MigrateResult, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(f.DB, &sqlite3.Config{})
	if err != nil {
		return nil, fmt.Errorf("migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return nil, fmt.Errorf("migration instance: %w", err)
	}

	err = m.Migrate(version)
	changed := true
	if errors.Is(err, migrate.ErrNoChange) {
		changed = false
		err = nil
	}
	if err != nil {
		return nil, fmt.Errorf("migrate to %d: %w", version, err)
	}

	v, dirty, _ := m.Version()
	return &MigrateResult{Version: v, Dirty: dirty, Changed: changed}, nil
}

// Close closes the underlying database.
func (f *Fixture) Close() error {
	return f.DB.Close()
}

// Handle inserts a handle and returns its ROWID.
func (f *Fixture) Handle(identifier, service string) (int64, error) {
	if service == "" {
		service = "iMessage"
	}
	res, err := f.DB.Exec(`INSERT INTO handle (id, service) VALUES (?, ?)`, identifier, service)
	if err != nil {
		return 0, fmt.Errorf("insert handle: %w", err)
	}
	return res.LastInsertId()
}

// Chat describes a chat row.
type Chat struct {
	// ID, when set, is used as the ROWID.
	ID             int64
	GUID           string
	ChatIdentifier string
	DisplayName    string
	Style          int
	Service        string
	Handles        []int64
}

// Chat inserts a chat and its participants and returns its ROWID.
func (f *Fixture) Chat(c Chat) (int64, error) {
	if c.Service == "" {
		c.Service = "iMessage"
	}
	if c.Style == 0 {
		c.Style = 45
	}
	var rowID any
	if c.ID > 0 {
		rowID = c.ID
	}
	res, err := f.DB.Exec(`
		INSERT INTO chat (ROWID, guid, style, chat_identifier, service_name, display_name)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rowID, c.GUID, c.Style, c.ChatIdentifier, c.Service, nullString(c.DisplayName))
	if err != nil {
		return 0, fmt.Errorf("insert chat: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	for _, h := range c.Handles {
		if _, err := f.DB.Exec(`INSERT INTO chat_handle_join (chat_id, handle_id) VALUES (?, ?)`, id, h); err != nil {
			return 0, fmt.Errorf("insert chat_handle_join: %w", err)
		}
	}
	return id, nil
}

// Message describes a message row. Date is in Unix milliseconds; DateNanos,
// when set, overrides it with a raw store value.
type Message struct {
	GUID            string
	Text            string
	AttributedBody  []byte
	HandleID        int64
	FromMe          bool
	Date            int64
	DateNanos       int64
	Service         string
	IsAudioMessage  bool
	AssociatedGUID  string
	AssociatedType  int
	AssociatedEmoji string
}

// Message inserts a message linked to chatID and returns its ROWID.
func (f *Fixture) Message(chatID int64, m Message) (int64, error) {
	if m.Service == "" {
		m.Service = "iMessage"
	}
	date := m.DateNanos
	if date == 0 && m.Date != 0 {
		date = epoch.ToStore(m.Date)
	}

	cols := `guid, text, attributedBody, handle_id, is_from_me, date, service, is_audio_message, associated_message_guid, associated_message_type`
	vals := `?, ?, ?, ?, ?, ?, ?, ?, ?, ?`
	args := []any{
		m.GUID, nullString(m.Text), nullBytes(m.AttributedBody), m.HandleID, m.FromMe, date, m.Service,
		m.IsAudioMessage, nullString(m.AssociatedGUID), m.AssociatedType,
	}
	if m.AssociatedEmoji != "" {
		cols += `, associated_message_emoji`
		vals += `, ?`
		args = append(args, m.AssociatedEmoji)
	}

	res, err := f.DB.Exec(`INSERT INTO message (`+cols+`) VALUES (`+vals+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if _, err := f.DB.Exec(`INSERT INTO chat_message_join (chat_id, message_id, message_date) VALUES (?, ?, ?)`, chatID, id, date); err != nil {
		return 0, fmt.Errorf("insert chat_message_join: %w", err)
	}
	return id, nil
}

// Attachment describes an attachment row.
type Attachment struct {
	GUID         string
	Filename     string
	MimeType     string
	UTI          string
	TransferName string
	TotalBytes   int64
	IsSticker    bool
}

// Attachment inserts an attachment linked to messageID and returns its ROWID.
func (f *Fixture) Attachment(messageID int64, a Attachment) (int64, error) {
	res, err := f.DB.Exec(`
		INSERT INTO attachment (guid, filename, mime_type, uti, transfer_name, total_bytes, is_sticker)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.GUID, nullString(a.Filename), nullString(a.MimeType), nullString(a.UTI),
		nullString(a.TransferName), a.TotalBytes, a.IsSticker)
	if err != nil {
		return 0, fmt.Errorf("insert attachment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if _, err := f.DB.Exec(`UPDATE message SET cache_has_attachments = 1 WHERE ROWID = ?`, messageID); err != nil {
		return 0, fmt.Errorf("flag message attachments: %w", err)
	}
	if _, err := f.DB.Exec(`INSERT INTO message_attachment_join (message_id, attachment_id) VALUES (?, ?)`, messageID, id); err != nil {
		return 0, fmt.Errorf("insert message_attachment_join: %w", err)
	}
	return id, nil
}

// AttributedBody builds a minimal typedstream blob carrying text, the way
// Messages stores bodies when the text column is NULL.
func AttributedBody(text string) []byte {
	b := []byte("\x04\x0bstreamtyped\x81\xe8\x03\x84\x01@\x84\x84\x84\x12NSAttributedString\x00\x84\x84\x08NSObject\x00\x85\x92\x84\x84\x84\x08NSString")
	b = append(b, 0x01, 0x94, 0x84, 0x01, '+')
	n := len(text)
	if n < 0x80 {
		b = append(b, byte(n))
	} else {
		b = append(b, 0x81, byte(n), byte(n>>8))
	}
	b = append(b, text...)
	b = append(b, 0x86, 0x84, 0x02, 'i', 'I')
	return b
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
