package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strconv"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/niblr/concierge/internal/agent"
	"github.com/niblr/concierge/internal/stream"
)

const titleMaxLen = 50

// Frame is one unit of the SSE chat stream.
type Frame struct {
	Type      string         `json:"type"` // "text" | "tool_call" | "error" | "complete"
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
}

// Service reconciles local session records with the remote agent runtime
// and runs chat turns through the event pipeline.
type Service struct {
	repo  *Repo
	agent agent.Client
}

func NewService(repo *Repo, client agent.Client) *Service {
	return &Service{repo: repo, agent: client}
}

// ResolveSession maps a caller-supplied session id to an owned local record.
// An empty, stale or forged id resolves to nil without error: the caller
// falls through to session creation instead of failing the chat flow.
func (s *Service) ResolveSession(ctx context.Context, userID uint64, agentSessionID string) (*Session, error) {
	if strings.TrimSpace(agentSessionID) == "" {
		return nil, nil
	}
	sess, err := s.repo.GetSessionByAgentID(ctx, userID, agentSessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	_ = s.repo.TouchLastActivity(ctx, sess.ID)
	return sess, nil
}

// EnsureSession resolves the caller's session id, creating a new remote
// session and local record on a miss. The local row is persisted as soon as
// the remote session exists so the conversation is resumable even if this
// turn is never delivered.
func (s *Service) EnsureSession(ctx context.Context, userID uint64, agentSessionID, firstMessage string) (*Session, bool, error) {
	sess, err := s.ResolveSession(ctx, userID, agentSessionID)
	if err != nil {
		return nil, false, err
	}
	if sess != nil {
		return sess, false, nil
	}

	remoteID, err := s.agent.CreateSession(ctx, formatUserID(userID))
	if err != nil {
		return nil, false, err
	}

	sess = &Session{
		UserID:         userID,
		AgentSessionID: remoteID,
		Title:          deriveTitle(firstMessage),
	}
	if err := s.repo.CreateSession(ctx, sess); err != nil {
		return nil, false, err
	}
	return sess, true, nil
}

// CreateSession creates a session explicitly (POST /api/sessions).
func (s *Service) CreateSession(ctx context.Context, userID uint64, title *string, metadata map[string]any) (*Session, error) {
	remoteID, err := s.agent.CreateSession(ctx, formatUserID(userID))
	if err != nil {
		return nil, err
	}

	sess := &Session{
		UserID:         userID,
		AgentSessionID: remoteID,
		Title:          title,
	}
	if metadata != nil {
		b, err := json.Marshal(metadata)
		if err != nil {
			return nil, err
		}
		encoded := string(b)
		sess.Metadata = &encoded
	}
	if err := s.repo.CreateSession(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Chat runs one synchronous chat turn: resolve or create the session,
// drain the remote event stream through the pipeline, and return the
// filtered transcript plus the session id the caller should resume with.
func (s *Service) Chat(ctx context.Context, userID uint64, agentSessionID, message string) ([]stream.Message, string, error) {
	sess, _, err := s.EnsureSession(ctx, userID, agentSessionID, message)
	if err != nil {
		return nil, "", err
	}

	events, errs := s.agent.StreamQuery(ctx, formatUserID(userID), sess.AgentSessionID, message)

	collector := stream.NewCollector()
	for raw := range events {
		collector.AddEvent(stream.Normalize(raw))
	}
	if err := <-errs; err != nil {
		return nil, "", err
	}

	_ = s.repo.TouchLastActivity(ctx, sess.ID)
	return collector.Finalize(), sess.AgentSessionID, nil
}

// ChatStream runs one chat turn, emitting a frame per intermediate message
// as events arrive, terminated by a complete frame carrying the resolved
// session id. Both channels close when the turn ends.
func (s *Service) ChatStream(ctx context.Context, userID uint64, agentSessionID, message string) (<-chan Frame, <-chan error) {
	frames := make(chan Frame, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(frames)
		defer close(errs)

		sess, _, err := s.EnsureSession(ctx, userID, agentSessionID, message)
		if err != nil {
			errs <- err
			return
		}

		events, streamErrs := s.agent.StreamQuery(ctx, formatUserID(userID), sess.AgentSessionID, message)
		for raw := range events {
			for _, msg := range stream.ProcessEvent(stream.Normalize(raw)) {
				frameType := "text"
				if stream.IsAnnouncement(msg) {
					frameType = "tool_call"
				}
				select {
				case frames <- Frame{Type: frameType, Content: msg.Content, Metadata: msg.Metadata}:
				case <-ctx.Done():
					return
				}
			}
		}
		if err := <-streamErrs; err != nil {
			errs <- err
			return
		}

		_ = s.repo.TouchLastActivity(ctx, sess.ID)
		frames <- Frame{Type: "complete", SessionID: sess.AgentSessionID}
	}()

	return frames, errs
}

// History replays a session's stored remote event log into the same message
// shape a live turn produces. A remote fetch failure degrades to a system
// message rather than failing the request; the local record is the source
// of truth for session existence.
func (s *Service) History(ctx context.Context, userID uint64, agentSessionID string) ([]stream.Message, stream.HistoryMeta, error) {
	sess, err := s.repo.GetSessionByAgentID(ctx, userID, agentSessionID)
	if err != nil {
		return nil, stream.HistoryMeta{}, err
	}

	info, err := s.agent.GetSession(ctx, formatUserID(userID), sess.AgentSessionID)
	if err != nil {
		return []stream.Message{{
			Role:     stream.RoleSystem,
			Content:  "Error retrieving history: " + err.Error(),
			Metadata: map[string]any{"error": err.Error()},
		}}, stream.HistoryMeta{}, nil
	}

	events := make([]stream.Event, 0, len(info.Events))
	for _, raw := range info.Events {
		events = append(events, stream.Normalize(raw))
	}

	history, meta := stream.ReconstructHistory(events)
	if len(history) == 0 {
		history = []stream.Message{{
			Role:    stream.RoleSystem,
			Content: "No conversation history available for this session.",
		}}
	}
	return history, meta, nil
}

func (s *Service) GetSession(ctx context.Context, userID uint64, agentSessionID string) (*Session, error) {
	return s.repo.GetSessionByAgentID(ctx, userID, agentSessionID)
}

func (s *Service) ListSessions(ctx context.Context, userID uint64, skip, limit int) ([]Session, error) {
	return s.repo.ListSessions(ctx, userID, skip, limit)
}

func (s *Service) UpdateSession(ctx context.Context, userID uint64, agentSessionID string, title *string, metadata map[string]any) (*Session, error) {
	sess, err := s.repo.GetSessionByAgentID(ctx, userID, agentSessionID)
	if err != nil {
		return nil, err
	}
	if title != nil {
		sess.Title = title
	}
	if metadata != nil {
		b, err := json.Marshal(metadata)
		if err != nil {
			return nil, err
		}
		encoded := string(b)
		sess.Metadata = &encoded
	}
	if err := s.repo.UpdateSession(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// SaveSession bumps last-activity (POST /api/sessions/:id/save).
func (s *Service) SaveSession(ctx context.Context, userID uint64, agentSessionID string) (*Session, error) {
	sess, err := s.repo.GetSessionByAgentID(ctx, userID, agentSessionID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.TouchLastActivity(ctx, sess.ID); err != nil {
		return nil, err
	}
	return s.repo.GetSessionByAgentID(ctx, userID, agentSessionID)
}

// DeleteSession removes the session locally after a best-effort remote
// delete. Remote failure is non-fatal: the local record must go away so the
// local store never references a session it considers deleted.
func (s *Service) DeleteSession(ctx context.Context, userID uint64, agentSessionID string) error {
	sess, err := s.repo.GetSessionByAgentID(ctx, userID, agentSessionID)
	if err != nil {
		return err
	}

	if err := s.agent.DeleteSession(ctx, formatUserID(userID), sess.AgentSessionID); err != nil {
		log.Printf("chat: remote session delete failed session=%s err=%v", sess.AgentSessionID, err)
	}

	return s.repo.DeleteSession(ctx, sess.ID)
}

// Job passthroughs for the async path.
func (s *Service) CreateJobOrGetExisting(ctx context.Context, job *Job) (*Job, bool, error) {
	return s.repo.CreateJobOrGetExisting(ctx, job)
}

func (s *Service) GetJob(ctx context.Context, jobID string) (*Job, error) {
	return s.repo.GetJobByID(ctx, jobID)
}

// RunJob executes one queued chat turn and records the outcome on the job
// row. Used by the worker.
func (s *Service) RunJob(ctx context.Context, jobID string) error {
	_ = s.repo.UpdateJobStatusRunning(ctx, jobID)

	job, err := s.repo.GetJobByID(ctx, jobID)
	if err != nil {
		return err
	}

	messages, sessionID, err := s.Chat(ctx, job.UserID, job.AgentSessionID, job.Prompt)
	if err != nil {
		_ = s.repo.MarkJobFailed(ctx, jobID, err.Error())
		return err
	}

	encoded, err := json.Marshal(messages)
	if err != nil {
		_ = s.repo.MarkJobFailed(ctx, jobID, err.Error())
		return err
	}
	return s.repo.MarkJobSucceeded(ctx, jobID, string(encoded), sessionID)
}

func formatUserID(userID uint64) string {
	return strconv.FormatUint(userID, 10)
}

// deriveTitle builds a short session title from the first user message:
// the whole message when it fits, else the first sentence when it ends
// within the limit, else a truncated prefix with an ellipsis.
func deriveTitle(message string) *string {
	msg := strings.TrimSpace(message)
	if msg == "" {
		return nil
	}
	if utf8.RuneCountInString(msg) <= titleMaxLen {
		return &msg
	}
	if idx := strings.IndexByte(msg, '.'); idx > 0 && utf8.RuneCountInString(msg[:idx]) <= titleMaxLen {
		title := msg[:idx+1]
		return &title
	}
	runes := []rune(msg)
	title := strings.TrimRight(string(runes[:titleMaxLen]), " \t\n") + "..."
	return &title
}
