package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/niblr/concierge/internal/agent"
)

// fakeAgent scripts the remote runtime. Each StreamQuery drains the
// configured events.
type fakeAgent struct {
	nextSessionID int
	events        []map[string]any
	streamErr     error

	sessionInfo *agent.SessionInfo
	getErr      error
	deleteErr   error

	created []string
	deleted []string
	queries []string
}

func (f *fakeAgent) CreateSession(ctx context.Context, userID string) (string, error) {
	f.nextSessionID++
	id := fmt.Sprintf("remote-%d", f.nextSessionID)
	f.created = append(f.created, id)
	return id, nil
}

func (f *fakeAgent) StreamQuery(ctx context.Context, userID, sessionID, message string) (<-chan json.RawMessage, <-chan error) {
	f.queries = append(f.queries, message)

	events := make(chan json.RawMessage, len(f.events))
	errs := make(chan error, 1)
	for _, ev := range f.events {
		b, _ := json.Marshal(ev)
		events <- json.RawMessage(b)
	}
	if f.streamErr != nil {
		errs <- f.streamErr
	}
	close(events)
	close(errs)
	return events, errs
}

func (f *fakeAgent) GetSession(ctx context.Context, userID, sessionID string) (*agent.SessionInfo, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.sessionInfo, nil
}

func (f *fakeAgent) DeleteSession(ctx context.Context, userID, sessionID string) error {
	f.deleted = append(f.deleted, sessionID)
	return f.deleteErr
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Session{}, &Job{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func textEvent(text string) map[string]any {
	return map[string]any{
		"author": "concierge",
		"content": map[string]any{
			"role":  "model",
			"parts": []any{map[string]any{"text": text}},
		},
	}
}

func TestChat_CreatesSessionWhenNoneGiven(t *testing.T) {
	db := openTestDB(t)
	fake := &fakeAgent{events: []map[string]any{
		textEvent("Here is a substantive answer that clears every length filter easily."),
	}}
	svc := NewService(NewRepo(db), fake)

	messages, sessionID, err := svc.Chat(context.Background(), 1, "", "Find apartments in Chicago please")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if sessionID != "remote-1" {
		t.Fatalf("unexpected session id: %q", sessionID)
	}
	if len(messages) != 1 || !strings.Contains(messages[0].Content, "substantive answer") {
		t.Fatalf("unexpected messages: %+v", messages)
	}

	sess, err := NewRepo(db).GetSessionByAgentID(context.Background(), 1, "remote-1")
	if err != nil {
		t.Fatalf("expected local session row: %v", err)
	}
	if sess.Title == nil || *sess.Title != "Find apartments in Chicago please" {
		t.Fatalf("unexpected title: %v", sess.Title)
	}
}

func TestChat_UnknownSessionIDFallsThroughToNew(t *testing.T) {
	db := openTestDB(t)
	fake := &fakeAgent{events: []map[string]any{
		textEvent("A reply long enough to survive the aggregation length filters."),
	}}
	svc := NewService(NewRepo(db), fake)

	// forged/stale id: must not fail, must not reuse it
	_, sessionID, err := svc.Chat(context.Background(), 1, "someone-elses-session", "hello there friend")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if sessionID != "remote-1" {
		t.Fatalf("expected a fresh session, got %q", sessionID)
	}
}

func TestChat_ReusesExistingSession(t *testing.T) {
	db := openTestDB(t)
	fake := &fakeAgent{events: []map[string]any{
		textEvent("Another reply long enough to survive the aggregation length filters."),
	}}
	svc := NewService(NewRepo(db), fake)

	_, first, err := svc.Chat(context.Background(), 7, "", "first message here")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	_, second, err := svc.Chat(context.Background(), 7, first, "second message here")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if first != second {
		t.Fatalf("expected session reuse, got %q then %q", first, second)
	}
	if len(fake.created) != 1 {
		t.Fatalf("expected exactly one remote session, got %d", len(fake.created))
	}
}

func TestChat_SessionIsolationBetweenUsers(t *testing.T) {
	db := openTestDB(t)
	fake := &fakeAgent{events: []map[string]any{
		textEvent("Either user gets an answer that clears the length filter fine."),
	}}
	svc := NewService(NewRepo(db), fake)

	_, sid, err := svc.Chat(context.Background(), 1, "", "user one's conversation")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}

	// user 2 presenting user 1's session id gets a fresh session
	_, other, err := svc.Chat(context.Background(), 2, sid, "user two's attempt")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if other == sid {
		t.Fatalf("session leaked across users")
	}
}

func TestChat_StreamErrorPropagates(t *testing.T) {
	db := openTestDB(t)
	fake := &fakeAgent{streamErr: errors.New("runtime unavailable")}
	svc := NewService(NewRepo(db), fake)

	_, _, err := svc.Chat(context.Background(), 1, "", "hello")
	if err == nil || !strings.Contains(err.Error(), "runtime unavailable") {
		t.Fatalf("expected stream error, got %v", err)
	}
}

func TestDeleteSession_RemoteFailureStillDeletesLocal(t *testing.T) {
	db := openTestDB(t)
	fake := &fakeAgent{
		events:    []map[string]any{textEvent("An answer that is long enough to pass filtering rules.")},
		deleteErr: errors.New("remote down"),
	}
	svc := NewService(NewRepo(db), fake)

	_, sid, err := svc.Chat(context.Background(), 3, "", "set up a session")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}

	if err := svc.DeleteSession(context.Background(), 3, sid); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(fake.deleted) != 1 {
		t.Fatalf("expected remote delete attempt")
	}
	if _, err := NewRepo(db).GetSessionByAgentID(context.Background(), 3, sid); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected local row gone, got %v", err)
	}
}

func TestDeleteSession_UnknownIDIsNotFound(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(NewRepo(db), &fakeAgent{})

	err := svc.DeleteSession(context.Background(), 3, "nope")
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestHistory_RemoteFailureDegradesToSystemMessage(t *testing.T) {
	db := openTestDB(t)
	fake := &fakeAgent{
		events: []map[string]any{textEvent("An answer that is long enough to pass filtering rules.")},
	}
	svc := NewService(NewRepo(db), fake)

	_, sid, err := svc.Chat(context.Background(), 4, "", "seed a session")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}

	fake.getErr = errors.New("remote fetch failed")
	history, _, err := svc.History(context.Background(), 4, sid)
	if err != nil {
		t.Fatalf("history should not fail on remote error: %v", err)
	}
	if len(history) != 1 || history[0].Role != "system" ||
		!strings.Contains(history[0].Content, "Error retrieving history") {
		t.Fatalf("unexpected degraded history: %+v", history)
	}
}

func TestHistory_EmptyLogYieldsPlaceholder(t *testing.T) {
	db := openTestDB(t)
	fake := &fakeAgent{
		events: []map[string]any{textEvent("An answer that is long enough to pass filtering rules.")},
	}
	svc := NewService(NewRepo(db), fake)

	_, sid, err := svc.Chat(context.Background(), 5, "", "seed a session")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}

	fake.sessionInfo = &agent.SessionInfo{ID: sid}
	history, _, err := svc.History(context.Background(), 5, sid)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || !strings.Contains(history[0].Content, "No conversation history") {
		t.Fatalf("unexpected placeholder: %+v", history)
	}
}

func TestRunJob_RecordsResult(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	fake := &fakeAgent{events: []map[string]any{
		textEvent("The async answer, also long enough to clear the length filters."),
	}}
	svc := NewService(repo, fake)

	job := &Job{ID: "01JOBIDTEST000000000000000", UserID: 9, Prompt: "do it async", Status: JobQueued}
	if err := repo.CreateJob(context.Background(), job); err != nil {
		t.Fatalf("create job: %v", err)
	}

	if err := svc.RunJob(context.Background(), job.ID); err != nil {
		t.Fatalf("run job: %v", err)
	}

	got, err := repo.GetJobByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if got.Status != JobSucceeded {
		t.Fatalf("expected succeeded, got %s (err=%v)", got.Status, got.Error)
	}
	if got.ResultSessionID == nil || *got.ResultSessionID != "remote-1" {
		t.Fatalf("unexpected result session: %v", got.ResultSessionID)
	}
	if got.ResultMessages == nil || !strings.Contains(*got.ResultMessages, "async answer") {
		t.Fatalf("unexpected result messages: %v", got.ResultMessages)
	}
}

func TestRunJob_MarksFailure(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	fake := &fakeAgent{streamErr: errors.New("boom")}
	svc := NewService(repo, fake)

	job := &Job{ID: "01JOBIDTEST000000000000001", UserID: 9, Prompt: "doomed", Status: JobQueued}
	if err := repo.CreateJob(context.Background(), job); err != nil {
		t.Fatalf("create job: %v", err)
	}

	if err := svc.RunJob(context.Background(), job.ID); err == nil {
		t.Fatalf("expected error")
	}

	got, _ := repo.GetJobByID(context.Background(), job.ID)
	if got.Status != JobFailed || got.Error == nil || !strings.Contains(*got.Error, "boom") {
		t.Fatalf("unexpected job state: %+v", got)
	}
}

func TestCreateJobOrGetExisting_Idempotent(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)

	key := "client-key-1"
	first := &Job{ID: "01JOBIDTEST000000000000002", UserID: 1, Prompt: "p", IdempotencyKey: &key, Status: JobQueued}
	j1, created, err := repo.CreateJobOrGetExisting(context.Background(), first)
	if err != nil || !created {
		t.Fatalf("first create: created=%v err=%v", created, err)
	}

	dup := &Job{ID: "01JOBIDTEST000000000000003", UserID: 1, Prompt: "p", IdempotencyKey: &key, Status: JobQueued}
	j2, created, err := repo.CreateJobOrGetExisting(context.Background(), dup)
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if created {
		t.Fatalf("expected existing job to be returned")
	}
	if j2.ID != j1.ID {
		t.Fatalf("expected same job, got %s and %s", j1.ID, j2.ID)
	}
}

func TestDeriveTitle(t *testing.T) {
	long := strings.Repeat("x", 60)

	cases := []struct {
		in   string
		want string
	}{
		{"Find me a home", "Find me a home"},
		{"Short sentence. And then a long tail that keeps going well past fifty characters", "Short sentence."},
		{long, strings.Repeat("x", 50) + "..."},
		{"   ", ""},
	}
	for _, tc := range cases {
		got := deriveTitle(tc.in)
		if tc.want == "" {
			if got != nil {
				t.Fatalf("deriveTitle(%q) = %q, want nil", tc.in, *got)
			}
			continue
		}
		if got == nil || *got != tc.want {
			t.Fatalf("deriveTitle(%q) = %v, want %q", tc.in, got, tc.want)
		}
	}
}
