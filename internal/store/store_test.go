package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matheus3301/imv/internal/epoch"
	"github.com/matheus3301/imv/internal/store/fixture"
	"github.com/matheus3301/imv/internal/tapback"
	"github.com/matheus3301/imv/internal/types"
)

const base int64 = 1_700_000_000_000

type seeder struct {
	t *testing.T
	*fixture.Fixture
}

func testFixture(t *testing.T) *seeder {
	t.Helper()
	f, err := fixture.Create(filepath.Join(t.TempDir(), "chat.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = f.Close() })
	return &seeder{t: t, Fixture: f}
}

func openStore(t *testing.T, f *seeder, opts Options) *DB {
	t.Helper()
	db, err := Open(context.Background(), f.Path, opts)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func (s *seeder) check(id int64, err error) int64 {
	s.t.Helper()
	if err != nil {
		s.t.Fatal(err)
	}
	return id
}

func (s *seeder) handle(identifier, service string) int64 {
	s.t.Helper()
	return s.check(s.Handle(identifier, service))
}

func (s *seeder) chat(c fixture.Chat) int64 {
	s.t.Helper()
	return s.check(s.Chat(c))
}

func (s *seeder) message(chatID int64, m fixture.Message) int64 {
	s.t.Helper()
	return s.check(s.Message(chatID, m))
}

func (s *seeder) attachment(messageID int64, a fixture.Attachment) int64 {
	s.t.Helper()
	return s.check(s.Attachment(messageID, a))
}

type countingQuerier struct {
	inner querier
	n     atomic.Int64
}

func (c *countingQuerier) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	c.n.Add(1)
	return c.inner.QueryContext(ctx, query, args...)
}

func (c *countingQuerier) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	c.n.Add(1)
	return c.inner.QueryRowContext(ctx, query, args...)
}

func countQueries(db *DB) *countingQuerier {
	c := &countingQuerier{inner: db.q}
	db.q = c
	return c
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(context.Background(), filepath.Join(t.TempDir(), "nope.db"), Options{})
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("err = %v, want ErrStoreUnavailable", err)
	}
	var ue *UnavailableError
	if !errors.As(err, &ue) || ue.Op != "open" {
		t.Errorf("err = %#v, want UnavailableError{Op: open}", err)
	}
}

func TestClosedStoreIsUnavailable(t *testing.T) {
	f := testFixture(t)
	db := openStore(t, f, Options{})
	_ = db.Close()

	_, err := db.ListConversations(context.Background(), 10, 0)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("err = %v, want ErrStoreUnavailable", err)
	}
}

func TestRefreshReadsReplacedFile(t *testing.T) {
	f := testFixture(t)
	f.chat(fixture.Chat{GUID: "before", ChatIdentifier: "before"})
	db := openStore(t, f, Options{})
	ctx := context.Background()

	page, err := db.ListConversations(ctx, 10, 0)
	if err != nil || page.Total != 1 {
		t.Fatalf("before replace: %+v, %v", page, err)
	}

	_ = f.Close()
	for _, suffix := range []string{"", "-wal", "-shm"} {
		_ = os.Remove(f.Path + suffix)
	}
	replaced, err := fixture.Create(f.Path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = replaced.Close() }()
	for _, guid := range []string{"after-1", "after-2"} {
		if _, err := replaced.Chat(fixture.Chat{GUID: guid, ChatIdentifier: guid}); err != nil {
			t.Fatal(err)
		}
	}

	if err := db.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	page, err = db.ListConversations(ctx, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 2 {
		t.Errorf("after refresh total = %d, want 2 from the replaced file", page.Total)
	}
}

func TestRefreshMissingFile(t *testing.T) {
	f := testFixture(t)
	db := openStore(t, f, Options{})
	_ = f.Close()
	if err := os.Remove(f.Path); err != nil {
		t.Fatal(err)
	}
	if err := db.Refresh(context.Background()); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("err = %v, want ErrStoreUnavailable", err)
	}
}

func TestCancelledContextIsNotUnavailable(t *testing.T) {
	f := testFixture(t)
	db := openStore(t, f, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := db.ListConversations(ctx, 10, 0)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if errors.Is(err, ErrStoreUnavailable) {
		t.Error("cancellation must not be reported as unavailable")
	}
}

func TestListConversationsOrdersByActivity(t *testing.T) {
	f := testFixture(t)
	alice := f.handle("+15550001", "")
	bob := f.handle("bob@example.com", "")

	old := f.chat(fixture.Chat{GUID: "c-old", ChatIdentifier: "+15550001", Handles: []int64{alice}})
	group := f.chat(fixture.Chat{GUID: "c-group", ChatIdentifier: "chat42", DisplayName: "Crew", Style: types.GroupStyle, Handles: []int64{alice, bob}})
	empty := f.chat(fixture.Chat{GUID: "c-empty", ChatIdentifier: "nobody"})

	f.message(old, fixture.Message{GUID: "o1", Text: "old one", HandleID: alice, Date: base})
	f.message(group, fixture.Message{GUID: "g1", Text: "first", HandleID: bob, Date: base + 1000})
	f.message(group, fixture.Message{GUID: "g2", Text: "latest", FromMe: true, Date: base + 5000})
	f.message(group, fixture.Message{GUID: "g3", Text: "middle", HandleID: alice, Date: base + 3000})

	db := openStore(t, f, Options{})
	page, err := db.ListConversations(context.Background(), 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 3 {
		t.Errorf("total = %d, want 3", page.Total)
	}
	if len(page.Conversations) != 3 {
		t.Fatalf("conversations = %d, want 3", len(page.Conversations))
	}

	got := []int64{page.Conversations[0].ID, page.Conversations[1].ID, page.Conversations[2].ID}
	want := []int64{group, old, empty}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}

	g := page.Conversations[0]
	if !g.IsGroup || types.Deref(g.DisplayName) != "Crew" {
		t.Errorf("group = %+v", g)
	}
	if g.LastMessageDate != base+5000 {
		t.Errorf("lastMessageDate = %d, want %d", g.LastMessageDate, base+5000)
	}
	if types.Deref(g.LastMessageText) != "latest" {
		t.Errorf("lastMessageText = %q, want latest", types.Deref(g.LastMessageText))
	}
	if len(g.Participants) != 2 || g.Participants[0].ID != alice || g.Participants[1].ID != bob {
		t.Errorf("participants = %+v, want alice, bob", g.Participants)
	}

	e := page.Conversations[2]
	if e.LastMessageDate != 0 || e.LastMessageText != nil || len(e.Participants) != 0 {
		t.Errorf("empty conversation = %+v", e)
	}
}

func TestListConversationsOffset(t *testing.T) {
	f := testFixture(t)
	for i := 0; i < 5; i++ {
		id := f.chat(fixture.Chat{GUID: "c" + string(rune('a'+i))})
		f.message(id, fixture.Message{GUID: "m" + string(rune('a'+i)), Text: "x", Date: base + int64(i)*1000})
	}
	db := openStore(t, f, Options{})

	seen := map[int64]bool{}
	for offset := 0; offset < 5; offset += 2 {
		page, err := db.ListConversations(context.Background(), 2, offset)
		if err != nil {
			t.Fatal(err)
		}
		if page.Total != 5 {
			t.Errorf("total = %d, want 5", page.Total)
		}
		for _, c := range page.Conversations {
			if seen[c.ID] {
				t.Errorf("conversation %d returned twice", c.ID)
			}
			seen[c.ID] = true
		}
	}
	if len(seen) != 5 {
		t.Errorf("saw %d conversations, want 5", len(seen))
	}
}

func TestListConversationsQueryCountIsConstant(t *testing.T) {
	for _, n := range []int{1, 5, 25} {
		f := testFixture(t)
		h := f.handle("+15550001", "")
		for i := 0; i < n; i++ {
			id := f.chat(fixture.Chat{GUID: "c" + strconv.Itoa(i), Handles: []int64{h}})
			f.message(id, fixture.Message{GUID: "m" + strconv.Itoa(i), Text: "hi", Date: base + int64(i)})
		}
		db := openStore(t, f, Options{})
		counter := countQueries(db)

		page, err := db.ListConversations(context.Background(), 50, 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(page.Conversations) != n {
			t.Fatalf("conversations = %d, want %d", len(page.Conversations), n)
		}
		// page + count + participants batch + last text batch
		if got := counter.n.Load(); got != 4 {
			t.Errorf("n=%d: queries = %d, want 4", n, got)
		}
	}
}

func TestGetConversation(t *testing.T) {
	f := testFixture(t)
	h := f.handle("+15550001", "")
	id := f.chat(fixture.Chat{GUID: "c1", ChatIdentifier: "+15550001", Handles: []int64{h}})
	f.message(id, fixture.Message{GUID: "m1", Text: "hello", HandleID: h, Date: base})
	db := openStore(t, f, Options{})

	c, err := db.GetConversation(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if c == nil || c.GUID != "c1" || types.Deref(c.LastMessageText) != "hello" || len(c.Participants) != 1 {
		t.Errorf("conversation = %+v", c)
	}

	missing, err := db.GetConversation(context.Background(), 9999)
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Errorf("missing conversation = %+v, want nil", missing)
	}
}

func TestLastMessageTextSkipsReactions(t *testing.T) {
	f := testFixture(t)
	h := f.handle("+15550001", "")
	id := f.chat(fixture.Chat{GUID: "c1", Handles: []int64{h}})
	f.message(id, fixture.Message{GUID: "m1", Text: "real message", Date: base})
	f.message(id, fixture.Message{GUID: "r1", Text: "Loved “real message”", HandleID: h, Date: base + 1000,
		AssociatedGUID: "p:0/m1", AssociatedType: tapback.Love})
	db := openStore(t, f, Options{})

	texts, err := db.GetLastMessageTextBatch(context.Background(), []int64{id})
	if err != nil {
		t.Fatal(err)
	}
	if texts[id] != "real message" {
		t.Errorf("last text = %q, want real message", texts[id])
	}
}

func TestBatchHelpersShortCircuit(t *testing.T) {
	f := testFixture(t)
	db := openStore(t, f, Options{})
	counter := countQueries(db)
	ctx := context.Background()

	if got, err := db.GetParticipantsBatch(ctx, nil); err != nil || len(got) != 0 {
		t.Errorf("participants = %v, %v", got, err)
	}
	if got, err := db.GetLastMessageTextBatch(ctx, []int64{0, -1}); err != nil || len(got) != 0 {
		t.Errorf("last text = %v, %v", got, err)
	}
	if got, err := db.GetReactionsForMessages(ctx, []string{}); err != nil || len(got) != 0 {
		t.Errorf("reactions = %v, %v", got, err)
	}
	if got, err := db.GetAttachmentsForMessages(ctx, nil); err != nil || len(got) != 0 {
		t.Errorf("attachments = %v, %v", got, err)
	}
	if n := counter.n.Load(); n != 0 {
		t.Errorf("queries = %d, want 0", n)
	}
}

func TestBatchHelpersSplitLargeInputs(t *testing.T) {
	f := testFixture(t)
	chatID, h := seedThread(t, f, 2)
	msgID := f.message(chatID, fixture.Message{GUID: "with-file", Text: "see attached", HandleID: h, Date: base + 5000})
	f.attachment(msgID, fixture.Attachment{GUID: "att", Filename: "/tmp/a.jpg", MimeType: "image/jpeg"})
	// Later reaction on m0, earlier on m1; m0 sits in the first batch.
	f.message(chatID, fixture.Message{GUID: "r-late", HandleID: h, Date: base + 200,
		AssociatedGUID: "p:0/m0", AssociatedType: tapback.Like})
	f.message(chatID, fixture.Message{GUID: "r-early", HandleID: h, Date: base + 100,
		AssociatedGUID: "p:0/m1", AssociatedType: tapback.Love})
	db := openStore(t, f, Options{})
	ctx := context.Background()

	const n = 40_000
	ids := make([]int64, 0, n)
	ids = append(ids, chatID)
	guids := []string{"m0"}
	for i := int64(1); len(ids) < n; i++ {
		ids = append(ids, chatID+1000+i)
		guids = append(guids, "missing-"+strconv.FormatInt(i, 10))
	}
	ids = append(ids, msgID)
	guids = append(guids, "m1")

	counter := countQueries(db)
	participants, err := db.GetParticipantsBatch(ctx, ids)
	if err != nil {
		t.Fatalf("participants: %v", err)
	}
	if len(participants[chatID]) != 1 {
		t.Errorf("participants = %v", participants[chatID])
	}
	wantQueries := int64((len(ids) + batchSize - 1) / batchSize)
	if got := counter.n.Load(); got != wantQueries {
		t.Errorf("queries = %d, want %d", got, wantQueries)
	}

	texts, err := db.GetLastMessageTextBatch(ctx, ids)
	if err != nil {
		t.Fatalf("last text: %v", err)
	}
	if _, ok := texts[chatID]; !ok {
		t.Error("last text missing")
	}

	attachments, err := db.GetAttachmentsForMessages(ctx, ids)
	if err != nil {
		t.Fatalf("attachments: %v", err)
	}
	if len(attachments[msgID]) != 1 {
		t.Errorf("attachments = %v", attachments)
	}

	events, err := db.GetReactionsForMessages(ctx, guids)
	if err != nil {
		t.Fatalf("reactions: %v", err)
	}
	if len(events) != 2 || events[0].GUID != "r-early" || events[1].GUID != "r-late" {
		t.Errorf("events = %+v, want r-early then r-late", events)
	}
}

func seedThread(t *testing.T, f *seeder, n int) (chatID, handle int64) {
	t.Helper()
	handle = f.handle("+15550001", "")
	chatID = f.chat(fixture.Chat{GUID: "thread", Handles: []int64{handle}})
	for i := 0; i < n; i++ {
		f.message(chatID, fixture.Message{
			GUID:     "m" + string(rune('0'+i)),
			Text:     "message " + string(rune('0'+i)),
			HandleID: handle,
			FromMe:   i%2 == 1,
			Date:     base + int64(i)*1000,
		})
	}
	return chatID, handle
}

func TestListMessagesPagination(t *testing.T) {
	f := testFixture(t)
	chatID, h := seedThread(t, f, 5)
	f.message(chatID, fixture.Message{GUID: "r-add", HandleID: h, Date: base + 4500,
		AssociatedGUID: "p:0/m4", AssociatedType: tapback.Like})
	f.message(chatID, fixture.Message{GUID: "r-rm", HandleID: h, Date: base + 4600,
		AssociatedGUID: "p:0/m4", AssociatedType: tapback.Like + tapback.RemoveOffset})
	db := openStore(t, f, Options{})
	ctx := context.Background()

	var all []string
	var before *int64
	pages := 0
	for {
		page, err := db.ListMessages(ctx, chatID, 2, before)
		if err != nil {
			t.Fatal(err)
		}
		pages++
		for i := 1; i < len(page.Messages); i++ {
			if page.Messages[i-1].Date > page.Messages[i].Date {
				t.Errorf("page %d not ascending", pages)
			}
		}
		var guids []string
		for _, m := range page.Messages {
			guids = append(guids, m.GUID)
		}
		all = append(guids, all...)
		if !page.HasMore {
			break
		}
		oldest := page.Messages[0].Date
		before = &oldest
		if pages > 10 {
			t.Fatal("pagination did not terminate")
		}
	}

	want := []string{"m0", "m1", "m2", "m3", "m4"}
	if len(all) != len(want) {
		t.Fatalf("messages = %v, want %v", all, want)
	}
	for i := range want {
		if all[i] != want[i] {
			t.Fatalf("messages = %v, want %v", all, want)
		}
	}
	if pages != 3 {
		t.Errorf("pages = %d, want 3", pages)
	}
}

func TestListMessagesHasMore(t *testing.T) {
	type page struct {
		count   int
		hasMore bool
	}
	tests := []struct {
		name  string
		rows  int
		limit int
		want  []page
	}{
		{"exactly limit left", 4, 2, []page{{2, true}, {2, false}}},
		{"single full page", 3, 3, []page{{3, false}}},
		{"limit plus one", 3, 2, []page{{2, true}, {1, false}}},
		{"short tail", 4, 3, []page{{3, true}, {1, false}}},
		{"empty", 0, 2, []page{{0, false}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := testFixture(t)
			chatID, _ := seedThread(t, f, tt.rows)
			db := openStore(t, f, Options{})

			var got []page
			var before *int64
			for range len(tt.want) {
				p, err := db.ListMessages(context.Background(), chatID, tt.limit, before)
				if err != nil {
					t.Fatal(err)
				}
				got = append(got, page{len(p.Messages), p.HasMore})
				if !p.HasMore {
					break
				}
				oldest := p.Messages[0].Date
				before = &oldest
			}
			if len(got) != len(tt.want) {
				t.Fatalf("pages = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("page %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestListMessagesCursorScenario(t *testing.T) {
	f := testFixture(t)
	h := f.handle("+15550042", "")
	chatID := f.chat(fixture.Chat{ID: 42, GUID: "chat-42", Handles: []int64{h}})
	if chatID != 42 {
		t.Fatalf("chat id = %d, want 42", chatID)
	}
	at := func(ms int64) int64 { return epoch.ReferenceMillis + ms }
	for _, ms := range []int64{1000, 2000, 3000} {
		f.message(chatID, fixture.Message{GUID: "m" + strconv.FormatInt(ms, 10), HandleID: h, Text: "x", Date: at(ms)})
	}
	db := openStore(t, f, Options{})
	ctx := context.Background()

	first, err := db.ListMessages(ctx, 42, 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(first.Messages) != 2 || first.Messages[0].Date != at(2000) || first.Messages[1].Date != at(3000) || !first.HasMore {
		t.Fatalf("first page = %+v", first)
	}

	cursor := at(2000)
	second, err := db.ListMessages(ctx, 42, 2, &cursor)
	if err != nil {
		t.Fatal(err)
	}
	if len(second.Messages) != 1 || second.Messages[0].Date != at(1000) || second.HasMore {
		t.Errorf("second page = %+v", second)
	}
}

func TestListMessagesEmptyChat(t *testing.T) {
	f := testFixture(t)
	id := f.chat(fixture.Chat{GUID: "empty"})
	db := openStore(t, f, Options{})

	page, err := db.ListMessages(context.Background(), id, 50, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Messages) != 0 || page.HasMore {
		t.Errorf("page = %+v, want empty", page)
	}
}

func TestListMessagesSender(t *testing.T) {
	f := testFixture(t)
	chatID, h := seedThread(t, f, 2)
	db := openStore(t, f, Options{})

	page, err := db.ListMessages(context.Background(), chatID, 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if page.Messages[0].Sender == nil || page.Messages[0].Sender.ID != h {
		t.Errorf("sender = %+v, want handle %d", page.Messages[0].Sender, h)
	}
	if types.Deref(page.Messages[0].Text) != "message 0" {
		t.Errorf("text = %q", types.Deref(page.Messages[0].Text))
	}
}

func TestListMessagesReconcilesReactions(t *testing.T) {
	f := testFixture(t)
	chatID, alice := seedThread(t, f, 1)
	bob := f.handle("bob@example.com", "")
	react := func(guid string, handle int64, fromMe bool, offset int64, typ int, emoji string) {
		f.message(chatID, fixture.Message{GUID: guid, HandleID: handle, FromMe: fromMe, Date: base + offset,
			AssociatedGUID: "p:0/m0", AssociatedType: typ, AssociatedEmoji: emoji})
	}
	react("a-love", alice, false, 100, tapback.Love, "")
	react("a-unlove", alice, false, 200, tapback.Love+tapback.RemoveOffset, "")
	react("b-laugh", bob, false, 300, tapback.Laugh, "")
	react("me-emoji", 0, true, 400, tapback.Emoji, "🔥")
	react("a-love-again", alice, false, 500, tapback.Love, "")
	db := openStore(t, f, Options{})

	page, err := db.ListMessages(context.Background(), chatID, 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Messages) != 1 {
		t.Fatalf("messages = %d, want 1 (reactions are not messages)", len(page.Messages))
	}
	rs := page.Messages[0].Reactions
	if len(rs) != 3 {
		t.Fatalf("reactions = %+v, want 3", rs)
	}
	if rs[0].GUID != "b-laugh" || rs[1].GUID != "me-emoji" || rs[2].GUID != "a-love-again" {
		t.Errorf("reaction order = %s, %s, %s", rs[0].GUID, rs[1].GUID, rs[2].GUID)
	}
	if rs[1].Emoji != "🔥" || !rs[1].IsFromMe {
		t.Errorf("custom emoji reaction = %+v", rs[1])
	}
	if rs[0].Reactor != "bob@example.com" {
		t.Errorf("reactor = %q, want bob@example.com", rs[0].Reactor)
	}
}

func TestReactionsOnBaseSchema(t *testing.T) {
	legacy, err := fixture.CreateVersion(filepath.Join(t.TempDir(), "chat.db"), fixture.VersionBase)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = legacy.Close() })
	f := &seeder{t: t, Fixture: legacy}
	chatID, h := seedThread(t, f, 1)
	f.message(chatID, fixture.Message{GUID: "r", HandleID: h, Date: base + 10,
		AssociatedGUID: "bp:m0", AssociatedType: tapback.Question})
	db := openStore(t, f, Options{})

	events, err := db.GetReactionsForMessages(context.Background(), []string{"m0"})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Target != "m0" || events[0].CustomEmoji != nil {
		t.Errorf("events = %+v", events)
	}
}

func TestListMessagesAroundDate(t *testing.T) {
	f := testFixture(t)
	chatID, _ := seedThread(t, f, 5)
	emptyID := f.chat(fixture.Chat{GUID: "empty"})
	db := openStore(t, f, Options{})
	ctx := context.Background()

	tests := []struct {
		name      string
		chat      int64
		target    int64
		context   int
		wantGUIDs []string
		wantIndex int
	}{
		{"exact hit", chatID, base + 2000, 1, []string{"m1", "m2", "m3"}, 1},
		{"tie takes earlier", chatID, base + 2500, 1, []string{"m1", "m2", "m3"}, 1},
		{"before everything", chatID, base - 5000, 1, []string{"m0"}, 0},
		{"after everything", chatID, base + 90000, 1, []string{"m3", "m4"}, 1},
		{"wide context", chatID, base + 2000, 10, []string{"m0", "m1", "m2", "m3", "m4"}, 2},
		{"empty chat", emptyID, base, 5, nil, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := db.ListMessagesAroundDate(ctx, tt.chat, tt.target, tt.context)
			if err != nil {
				t.Fatal(err)
			}
			if len(page.Messages) != len(tt.wantGUIDs) {
				t.Fatalf("messages = %d, want %d", len(page.Messages), len(tt.wantGUIDs))
			}
			for i, g := range tt.wantGUIDs {
				if page.Messages[i].GUID != g {
					t.Errorf("messages[%d] = %s, want %s", i, page.Messages[i].GUID, g)
				}
			}
			if page.TargetIndex != tt.wantIndex {
				t.Errorf("targetIndex = %d, want %d", page.TargetIndex, tt.wantIndex)
			}
		})
	}
}

func TestSubMillisecondDates(t *testing.T) {
	f := testFixture(t)
	id := f.chat(fixture.Chat{GUID: "c"})
	// Two messages inside the same displayed millisecond.
	f.message(id, fixture.Message{GUID: "a", Text: "a", DateNanos: 1_000_000_100})
	f.message(id, fixture.Message{GUID: "b", Text: "b", DateNanos: 1_000_000_900})
	db := openStore(t, f, Options{})

	page, err := db.ListMessagesAroundDate(context.Background(), id, 978_307_201_000, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(page.Messages))
	}
	for _, m := range page.Messages {
		if m.Date != 978_307_201_000 {
			t.Errorf("date = %d, want floored millisecond", m.Date)
		}
	}
}

func TestAttributedBodyFallback(t *testing.T) {
	f := testFixture(t)
	id := f.chat(fixture.Chat{GUID: "c"})
	f.message(id, fixture.Message{GUID: "m", AttributedBody: fixture.AttributedBody("from the blob"), Date: base})
	f.message(id, fixture.Message{GUID: "n", Date: base + 1})
	db := openStore(t, f, Options{})

	page, err := db.ListMessages(context.Background(), id, 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := types.Deref(page.Messages[0].Text); got != "from the blob" {
		t.Errorf("text = %q, want decoded body", got)
	}
	if page.Messages[1].Text != nil {
		t.Errorf("text = %q, want nil", *page.Messages[1].Text)
	}
}

func TestAttachments(t *testing.T) {
	f := testFixture(t)
	id := f.chat(fixture.Chat{GUID: "c"})
	photo := f.message(id, fixture.Message{GUID: "photo", Date: base})
	memo := f.message(id, fixture.Message{GUID: "memo", Date: base + 1000, IsAudioMessage: true})
	f.attachment(photo, fixture.Attachment{GUID: "a1", Filename: "~/Library/Messages/Attachments/ab/01/IMG_1.heic", MimeType: "image/heic", TransferName: "IMG_1.heic", TotalBytes: 2048})
	f.attachment(memo, fixture.Attachment{GUID: "a2", Filename: "~/Library/Messages/Attachments/cd/02/Audio.caf", MimeType: "audio/x-caf"})
	db := openStore(t, f, Options{AttachmentsRoot: "/backup/Attachments"})

	page, err := db.ListMessages(context.Background(), id, 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(page.Messages))
	}
	img := page.Messages[0]
	if img.Text != nil {
		t.Errorf("attachment-only message text = %q, want nil", *img.Text)
	}
	if len(img.Attachments) != 1 || img.Attachments[0].Type != types.AttachmentImage {
		t.Fatalf("attachments = %+v", img.Attachments)
	}
	if got := types.Deref(img.Attachments[0].LocalPath); got != "/backup/Attachments/ab/01/IMG_1.heic" {
		t.Errorf("localPath = %q", got)
	}
	if got := page.Messages[1].Attachments; len(got) != 1 || got[0].Type != types.AttachmentVoiceMemo {
		t.Errorf("voice memo attachments = %+v", got)
	}
}

func TestListMedia(t *testing.T) {
	f := testFixture(t)
	id := f.chat(fixture.Chat{GUID: "c"})
	for i := 0; i < 3; i++ {
		m := f.message(id, fixture.Message{GUID: "p" + string(rune('0'+i)), Date: base + int64(i)*1000})
		f.attachment(m, fixture.Attachment{GUID: "img" + string(rune('0'+i)), MimeType: "image/jpeg"})
	}
	doc := f.message(id, fixture.Message{GUID: "doc", Date: base + 5000})
	f.attachment(doc, fixture.Attachment{GUID: "pdf", MimeType: "application/pdf"})
	sticker := f.message(id, fixture.Message{GUID: "st", Date: base + 6000})
	f.attachment(sticker, fixture.Attachment{GUID: "sticker", MimeType: "image/png", IsSticker: true})
	db := openStore(t, f, Options{})

	page, err := db.ListMedia(context.Background(), id, 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Items) != 2 || !page.HasMore {
		t.Fatalf("page = %+v, want 2 items with more", page)
	}
	if page.Items[0].MessageGUID != "p1" || page.Items[1].MessageGUID != "p2" {
		t.Errorf("items = %s, %s, want p1, p2", page.Items[0].MessageGUID, page.Items[1].MessageGUID)
	}

	before := page.Items[0].Date
	next, err := db.ListMedia(context.Background(), id, 2, &before)
	if err != nil {
		t.Fatal(err)
	}
	if len(next.Items) != 1 || next.HasMore || next.Items[0].MessageGUID != "p0" {
		t.Errorf("next page = %+v", next)
	}
}

func TestGetDateIndex(t *testing.T) {
	f := testFixture(t)
	id := f.chat(fixture.Chat{GUID: "c"})
	dates := []time.Time{
		time.Date(2023, time.December, 30, 10, 0, 0, 0, time.UTC),
		time.Date(2023, time.December, 31, 10, 0, 0, 0, time.UTC),
		time.Date(2024, time.January, 2, 10, 0, 0, 0, time.UTC),
		time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC),
	}
	var last int64
	for i, d := range dates {
		last = f.message(id, fixture.Message{GUID: "m" + string(rune('0'+i)), Text: "x", Date: d.UnixMilli()})
	}
	f.attachment(last, fixture.Attachment{GUID: "a", MimeType: "video/mp4"})
	f.message(id, fixture.Message{GUID: "r", Date: dates[3].Add(time.Hour).UnixMilli(),
		AssociatedGUID: "p:0/m3", AssociatedType: tapback.Love})
	db := openStore(t, f, Options{})
	ctx := context.Background()

	entries, err := db.GetDateIndex(ctx, id, types.SourceMessages)
	if err != nil {
		t.Fatal(err)
	}
	want := []types.DateIndexEntry{
		{MonthKey: "2023-12", Year: 2023, Month: 12, FirstDate: dates[0].UnixMilli(), Count: 2},
		{MonthKey: "2024-01", Year: 2024, Month: 1, FirstDate: dates[2].UnixMilli(), Count: 1},
		{MonthKey: "2024-03", Year: 2024, Month: 3, FirstDate: dates[3].UnixMilli(), Count: 1},
	}
	if len(entries) != len(want) {
		t.Fatalf("entries = %+v, want %+v", entries, want)
	}
	for i := range want {
		if entries[i] != want[i] {
			t.Errorf("entries[%d] = %+v, want %+v", i, entries[i], want[i])
		}
	}

	media, err := db.GetDateIndex(ctx, id, types.SourceMedia)
	if err != nil {
		t.Fatal(err)
	}
	if len(media) != 1 || media[0].MonthKey != "2024-03" {
		t.Errorf("media index = %+v", media)
	}

	if _, err := db.GetDateIndex(ctx, id, "bogus"); err == nil {
		t.Error("expected error for unknown source")
	}
}

func TestListHandles(t *testing.T) {
	f := testFixture(t)
	f.handle("+15550001", "")
	f.handle("+15550002", "SMS")
	f.handle("bob@example.com", "")
	f.handle("100%_real@example.com", "")
	db := openStore(t, f, Options{})
	ctx := context.Background()

	tests := []struct {
		query string
		limit int
		want  int
	}{
		{"", 0, 4},
		{"555", 0, 2},
		{"EXAMPLE", 0, 2},
		{"%", 0, 1},
		{"_", 0, 1},
		{"", 1, 1},
		{"nobody", 0, 0},
	}
	for _, tt := range tests {
		got, err := db.ListHandles(ctx, tt.query, tt.limit)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != tt.want {
			t.Errorf("ListHandles(%q, %d) = %d handles, want %d", tt.query, tt.limit, len(got), tt.want)
		}
	}
}

func TestListConversationsForFilter(t *testing.T) {
	f := testFixture(t)
	f.chat(fixture.Chat{GUID: "c1", ChatIdentifier: "+15550001"})
	f.chat(fixture.Chat{GUID: "c2", ChatIdentifier: "chat99", DisplayName: "Book Club", Style: types.GroupStyle})
	db := openStore(t, f, Options{})

	got, err := db.ListConversationsForFilter(context.Background(), "book", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].GUID != "c2" || !got[0].IsGroup || types.Deref(got[0].DisplayName) != "Book Club" {
		t.Errorf("filter = %+v", got)
	}

	all, err := db.ListConversationsForFilter(context.Background(), "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("all = %d, want 2", len(all))
	}
}

func TestStats(t *testing.T) {
	f := testFixture(t)
	chatID, h := seedThread(t, f, 3)
	f.message(chatID, fixture.Message{GUID: "r", HandleID: h, Date: base + 10,
		AssociatedGUID: "p:0/m0", AssociatedType: tapback.Love})
	db := openStore(t, f, Options{})

	s, err := db.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if s.Conversations != 1 || s.Messages != 3 || s.Handles != 1 {
		t.Errorf("stats = %+v", s)
	}
}

func TestDecodeAttributedBody(t *testing.T) {
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'a'
	}
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"short", fixture.AttributedBody("hi there"), "hi there"},
		{"long length prefix", fixture.AttributedBody(string(long)), string(long)},
		{"no marker", []byte("garbage"), ""},
		{"truncated", fixture.AttributedBody("hello")[:60], ""},
		{"empty", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := decodeAttributedBody(tt.data); got != tt.want {
				t.Errorf("decodeAttributedBody = %q, want %q", got, tt.want)
			}
		})
	}
}
