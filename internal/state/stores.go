package state

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Yates-Labs/narraitor/internal/engine"
	"github.com/Yates-Labs/narraitor/internal/kv"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// WorldStore keeps the worlds a player has created.
type WorldStore struct {
	c   *collection[engine.World]
	now func() time.Time
}

func NewWorldStore(ctx context.Context, store kv.Store, log zerolog.Logger) *WorldStore {
	return &WorldStore{
		c:   newCollection(ctx, "world", func(w engine.World) string { return w.ID }, store, log),
		now: time.Now,
	}
}

func (s *WorldStore) CreateWorld(ctx context.Context, w engine.World) (engine.World, error) {
	if strings.TrimSpace(w.Name) == "" {
		return engine.World{}, fmt.Errorf("%w: world name is required", engine.ErrValidation)
	}
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	w.CreatedAt = s.now()
	w.UpdatedAt = w.CreatedAt
	s.c.put(ctx, w)
	return w, nil
}

func (s *WorldStore) GetWorld(id string) (engine.World, bool) { return s.c.get(id) }

func (s *WorldStore) ListWorlds() []engine.World {
	return s.c.list(nil, func(a, b engine.World) bool { return a.CreatedAt.Before(b.CreatedAt) })
}

func (s *WorldStore) UpdateWorld(ctx context.Context, w engine.World) error {
	old, ok := s.c.get(w.ID)
	if ok {
		w.CreatedAt = old.CreatedAt
	}
	w.UpdatedAt = s.now()
	return s.c.replace(ctx, w)
}

func (s *WorldStore) DeleteWorld(ctx context.Context, id string) error { return s.c.remove(ctx, id) }

// CharacterStore keeps player characters.
type CharacterStore struct {
	c   *collection[engine.Character]
	now func() time.Time
}

func NewCharacterStore(ctx context.Context, store kv.Store, log zerolog.Logger) *CharacterStore {
	return &CharacterStore{
		c:   newCollection(ctx, "character", func(c engine.Character) string { return c.ID }, store, log),
		now: time.Now,
	}
}

func (s *CharacterStore) CreateCharacter(ctx context.Context, c engine.Character) (engine.Character, error) {
	if strings.TrimSpace(c.Name) == "" {
		return engine.Character{}, fmt.Errorf("%w: character name is required", engine.ErrValidation)
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = s.now()
	c.UpdatedAt = c.CreatedAt
	s.c.put(ctx, c)
	return c, nil
}

func (s *CharacterStore) GetCharacter(id string) (engine.Character, bool) { return s.c.get(id) }

// ListCharacters returns the characters of a world, or all when worldID is empty.
func (s *CharacterStore) ListCharacters(worldID string) []engine.Character {
	return s.c.list(
		func(c engine.Character) bool { return worldID == "" || c.WorldID == worldID },
		func(a, b engine.Character) bool { return a.CreatedAt.Before(b.CreatedAt) },
	)
}

func (s *CharacterStore) UpdateCharacter(ctx context.Context, c engine.Character) error {
	if old, ok := s.c.get(c.ID); ok {
		c.CreatedAt = old.CreatedAt
	}
	c.UpdatedAt = s.now()
	return s.c.replace(ctx, c)
}

func (s *CharacterStore) DeleteCharacter(ctx context.Context, id string) error {
	return s.c.remove(ctx, id)
}

// JournalStore records notable events per session.
type JournalStore struct {
	c   *collection[engine.JournalEntry]
	now func() time.Time
}

func NewJournalStore(ctx context.Context, store kv.Store, log zerolog.Logger) *JournalStore {
	return &JournalStore{
		c:   newCollection(ctx, "journal", func(e engine.JournalEntry) string { return e.ID }, store, log),
		now: time.Now,
	}
}

func (s *JournalStore) AddEntry(ctx context.Context, e engine.JournalEntry) (engine.JournalEntry, error) {
	if e.SessionID == "" {
		return engine.JournalEntry{}, fmt.Errorf("%w: journal sessionId is required", engine.ErrValidation)
	}
	if strings.TrimSpace(e.Content) == "" {
		return engine.JournalEntry{}, fmt.Errorf("%w: journal content is required", engine.ErrValidation)
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Significance == "" {
		e.Significance = engine.SignificanceMinor
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	s.c.put(ctx, e)
	return e, nil
}

// EntriesForSession returns a session's entries, oldest first.
func (s *JournalStore) EntriesForSession(sessionID string) []engine.JournalEntry {
	return s.c.list(
		func(e engine.JournalEntry) bool { return e.SessionID == sessionID },
		func(a, b engine.JournalEntry) bool { return a.CreatedAt.Before(b.CreatedAt) },
	)
}

func (s *JournalStore) MarkRead(ctx context.Context, id string) error {
	e, ok := s.c.get(id)
	if !ok {
		return fmt.Errorf("journal %s not found: %w", id, engine.ErrNotFound)
	}
	e.IsRead = true
	return s.c.replace(ctx, e)
}

func (s *JournalStore) DeleteEntry(ctx context.Context, id string) error { return s.c.remove(ctx, id) }

// SessionStore keeps resumable session records.
type SessionStore struct {
	c   *collection[engine.SavedSession]
	now func() time.Time
}

func NewSessionStore(ctx context.Context, store kv.Store, log zerolog.Logger) *SessionStore {
	return &SessionStore{
		c:   newCollection(ctx, "session", func(s engine.SavedSession) string { return s.ID }, store, log),
		now: time.Now,
	}
}

// SaveSession creates or replaces a session record.
func (s *SessionStore) SaveSession(ctx context.Context, sess engine.SavedSession) (engine.SavedSession, error) {
	if sess.WorldID == "" || sess.CharacterID == "" {
		return engine.SavedSession{}, fmt.Errorf("%w: session worldId and characterId are required", engine.ErrValidation)
	}
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	now := s.now()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	if sess.LastPlayed.IsZero() {
		sess.LastPlayed = now
	}
	if sess.Status == "" {
		sess.Status = engine.SessionActive
	}
	s.c.put(ctx, sess)
	return sess, nil
}

func (s *SessionStore) GetSession(id string) (engine.SavedSession, bool) { return s.c.get(id) }

// ListSessions returns sessions, most recently played first.
func (s *SessionStore) ListSessions() []engine.SavedSession {
	return s.c.list(nil, func(a, b engine.SavedSession) bool { return a.LastPlayed.After(b.LastPlayed) })
}

// SetStatus changes a session's status without touching lastPlayed.
func (s *SessionStore) SetStatus(ctx context.Context, id string, status engine.SessionStatus) error {
	sess, ok := s.c.get(id)
	if !ok {
		return fmt.Errorf("session %s not found: %w", id, engine.ErrNotFound)
	}
	sess.Status = status
	return s.c.replace(ctx, sess)
}

func (s *SessionStore) DeleteSession(ctx context.Context, id string) error {
	return s.c.remove(ctx, id)
}
