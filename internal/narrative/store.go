package narrative

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Yates-Labs/narraitor/internal/engine"
	"github.com/Yates-Labs/narraitor/internal/kv"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

// StorageKey is the key the store snapshot is persisted under.
const StorageKey = kv.KeyPrefix + "narrative"

// ErrSessionEnded is the sentinel wrapped by SessionEndedError.
var ErrSessionEnded = errors.New("session ended")

// SessionEndedError is returned when a segment is added to an ended session.
type SessionEndedError struct {
	SessionID string
}

func (e *SessionEndedError) Error() string {
	return "Cannot add segments to an ended session"
}

func (e *SessionEndedError) Unwrap() error { return ErrSessionEnded }

// SessionState is the lifecycle state of a session's narrative.
type SessionState string

const (
	SessionStateActive SessionState = "active"
	SessionStateEnded  SessionState = "ended"
)

type sessionTrack struct {
	State      SessionState `json:"state"`
	segmentIDs []string
}

// EndingService produces an ending for a request.
type EndingService interface {
	Generate(ctx context.Context, req engine.EndingRequest) (*engine.EndingGenerationResult, error)
}

// EndingParams identifies the session an ending is generated for.
type EndingParams struct {
	SessionID    string
	CharacterID  string
	WorldID      string
	DesiredTone  engine.EndingTone
	CustomPrompt string
}

// SegmentPatch holds the fields UpdateSegment may change. Nil fields are kept.
type SegmentPatch struct {
	Content  *string
	Type     *engine.SegmentType
	Metadata *engine.SegmentMetadata
}

// Store owns narrative segments, the ending lifecycle and the per-session
// ended lock.
type Store struct {
	mu            sync.RWMutex
	persistMu     sync.Mutex
	segments      map[string]engine.NarrativeSegment
	order         []string
	sessions      map[string]*sessionTrack
	currentEnding *engine.StoryEnding
	endingError   string

	generating atomic.Bool
	generator  EndingService

	kv  kv.Store
	log zerolog.Logger
	now func() time.Time
}

// NewStore creates a narrative store and loads any persisted snapshot.
func NewStore(ctx context.Context, kvStore kv.Store, log zerolog.Logger) *Store {
	s := &Store{
		segments: make(map[string]engine.NarrativeSegment),
		sessions: make(map[string]*sessionTrack),
		kv:       kvStore,
		log:      log.With().Str("component", "narrative_store").Logger(),
		now:      time.Now,
	}
	s.load(ctx)
	return s
}

// SetGenerator wires the service GenerateEnding delegates to.
func (s *Store) SetGenerator(g EndingService) {
	s.mu.Lock()
	s.generator = g
	s.mu.Unlock()
}

func (s *Store) track(sessionID string) *sessionTrack {
	t, ok := s.sessions[sessionID]
	if !ok {
		t = &sessionTrack{State: SessionStateActive}
		s.sessions[sessionID] = t
	}
	return t
}

// AddSegment appends a segment to an active session. Ended sessions are
// refused with *SessionEndedError and left untouched. A caller-supplied id
// must not already be in use.
func (s *Store) AddSegment(ctx context.Context, sessionID string, segment engine.NarrativeSegment) (engine.NarrativeSegment, error) {
	if strings.TrimSpace(segment.Content) == "" {
		return engine.NarrativeSegment{}, fmt.Errorf("%w: segment content is required", engine.ErrValidation)
	}
	if !segment.Type.Valid() {
		return engine.NarrativeSegment{}, fmt.Errorf("%w: unknown segment type %q", engine.ErrValidation, segment.Type)
	}

	s.mu.Lock()
	if t, ok := s.sessions[sessionID]; ok && t.State == SessionStateEnded {
		s.mu.Unlock()
		return engine.NarrativeSegment{}, &SessionEndedError{SessionID: sessionID}
	}
	if _, exists := s.segments[segment.ID]; segment.ID != "" && exists {
		s.mu.Unlock()
		return engine.NarrativeSegment{}, fmt.Errorf("%w: segment id %s already exists", engine.ErrValidation, segment.ID)
	}
	stored := s.insertLocked(sessionID, segment)
	s.mu.Unlock()

	s.persist(ctx)
	return stored, nil
}

func (s *Store) insertLocked(sessionID string, segment engine.NarrativeSegment) engine.NarrativeSegment {
	now := s.now()
	if segment.ID == "" {
		segment.ID = uuid.NewString()
	}
	segment.SessionID = sessionID
	if segment.Timestamp.IsZero() {
		segment.Timestamp = now
	}
	segment.CreatedAt = now
	segment.UpdatedAt = now

	s.segments[segment.ID] = segment
	s.order = append(s.order, segment.ID)
	t := s.track(sessionID)
	t.segmentIDs = append(t.segmentIDs, segment.ID)
	return segment
}

// UpdateSegment applies patch to the segment with id. Content must stay
// non-blank, and the ending type can be neither added nor removed.
func (s *Store) UpdateSegment(ctx context.Context, id string, patch SegmentPatch) (engine.NarrativeSegment, error) {
	if patch.Content != nil && strings.TrimSpace(*patch.Content) == "" {
		return engine.NarrativeSegment{}, fmt.Errorf("%w: segment content is required", engine.ErrValidation)
	}
	if patch.Type != nil && !patch.Type.Valid() {
		return engine.NarrativeSegment{}, fmt.Errorf("%w: unknown segment type %q", engine.ErrValidation, *patch.Type)
	}

	s.mu.Lock()
	seg, ok := s.segments[id]
	if !ok {
		s.mu.Unlock()
		return engine.NarrativeSegment{}, fmt.Errorf("segment %s not found: %w", id, engine.ErrNotFound)
	}
	if patch.Type != nil && (*patch.Type == engine.SegmentEnding) != (seg.Type == engine.SegmentEnding) {
		s.mu.Unlock()
		return engine.NarrativeSegment{}, fmt.Errorf("%w: cannot change type between %s and %s", engine.ErrValidation, seg.Type, *patch.Type)
	}
	if patch.Content != nil {
		seg.Content = *patch.Content
	}
	if patch.Type != nil {
		seg.Type = *patch.Type
	}
	if patch.Metadata != nil {
		seg.Metadata = *patch.Metadata
	}
	seg.UpdatedAt = s.now()
	s.segments[id] = seg
	s.mu.Unlock()

	s.persist(ctx)
	return seg, nil
}

// DeleteSegment removes a segment.
func (s *Store) DeleteSegment(ctx context.Context, id string) error {
	s.mu.Lock()
	seg, ok := s.segments[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("segment %s not found: %w", id, engine.ErrNotFound)
	}
	delete(s.segments, id)
	s.order = removeID(s.order, id)
	if t, ok := s.sessions[seg.SessionID]; ok {
		t.segmentIDs = removeID(t.segmentIDs, id)
	}
	s.mu.Unlock()

	s.persist(ctx)
	return nil
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func (s *Store) GetSegment(id string) (engine.NarrativeSegment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seg, ok := s.segments[id]
	return seg, ok
}

// GetSessionSegments returns a session's segments in append order.
func (s *Store) GetSessionSegments(sessionID string) []engine.NarrativeSegment {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.sessions[sessionID]
	if !ok {
		return []engine.NarrativeSegment{}
	}
	out := make([]engine.NarrativeSegment, 0, len(t.segmentIDs))
	for _, id := range t.segmentIDs {
		out = append(out, s.segments[id])
	}
	return out
}

// AllSegments returns every segment in append order.
func (s *Store) AllSegments() []engine.NarrativeSegment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]engine.NarrativeSegment, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.segments[id])
	}
	return out
}

// ClearSessionSegments drops every segment of a session. The ended lock is kept.
func (s *Store) ClearSessionSegments(ctx context.Context, sessionID string) {
	s.mu.Lock()
	t, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		return
	}
	for _, id := range t.segmentIDs {
		delete(s.segments, id)
	}
	kept := s.order[:0]
	for _, id := range s.order {
		if _, ok := s.segments[id]; ok {
			kept = append(kept, id)
		}
	}
	s.order = kept
	t.segmentIDs = nil
	s.mu.Unlock()

	s.persist(ctx)
}

// GenerateEnding runs the ending generator for a session. On success the
// new ending becomes current and the session is marked ended. On failure the
// error message is recorded and any current ending is left in place.
func (s *Store) GenerateEnding(ctx context.Context, endingType engine.EndingType, params EndingParams) (*engine.StoryEnding, error) {
	s.mu.Lock()
	s.endingError = ""
	gen := s.generator
	s.mu.Unlock()
	s.generating.Store(true)

	if gen == nil {
		return nil, s.failEnding(fmt.Errorf("%w: no ending generator configured", ErrGenerationFailed))
	}

	result, err := gen.Generate(ctx, engine.EndingRequest{
		SessionID:    params.SessionID,
		CharacterID:  params.CharacterID,
		WorldID:      params.WorldID,
		EndingType:   endingType,
		DesiredTone:  params.DesiredTone,
		CustomPrompt: params.CustomPrompt,
	})
	if err != nil {
		return nil, s.failEnding(err)
	}

	now := s.now()
	ending := &engine.StoryEnding{
		ID:              uuid.NewString(),
		SessionID:       params.SessionID,
		CharacterID:     params.CharacterID,
		WorldID:         params.WorldID,
		Type:            endingType,
		Tone:            result.Tone,
		Epilogue:        result.Epilogue,
		CharacterLegacy: result.CharacterLegacy,
		WorldImpact:     result.WorldImpact,
		Timestamp:       now,
		CreatedAt:       now,
		UpdatedAt:       now,
		Achievements:    result.Achievements,
		PlayTime:        result.PlayTime,
		TokenUsage:      result.TokenUsage,
	}
	if ending.Achievements == nil {
		ending.Achievements = []string{}
	}

	s.mu.Lock()
	s.currentEnding = ending
	s.endingError = ""
	s.track(params.SessionID).State = SessionStateEnded
	s.mu.Unlock()
	s.generating.Store(false)

	s.log.Info().Str("session_id", params.SessionID).Str("ending_id", ending.ID).Msg("session ended")
	s.persist(ctx)

	out := *ending
	return &out, nil
}

func (s *Store) failEnding(err error) error {
	s.mu.Lock()
	s.endingError = err.Error()
	s.mu.Unlock()
	s.generating.Store(false)
	s.log.Error().Err(err).Msg("ending generation failed")
	return err
}

// ClearEnding resets the current ending and error. Ended sessions stay ended.
func (s *Store) ClearEnding(ctx context.Context) {
	s.mu.Lock()
	s.currentEnding = nil
	s.endingError = ""
	s.mu.Unlock()
	s.persist(ctx)
}

// SaveEndingToHistory mirrors the current ending into its session as an
// ending segment. It ignores the ended lock and does nothing when there is
// no current ending or it is already mirrored.
func (s *Store) SaveEndingToHistory(ctx context.Context) (engine.NarrativeSegment, bool) {
	s.mu.Lock()
	ending := s.currentEnding
	if ending == nil {
		s.mu.Unlock()
		return engine.NarrativeSegment{}, false
	}
	if t, ok := s.sessions[ending.SessionID]; ok {
		for _, id := range t.segmentIDs {
			if seg := s.segments[id]; seg.Metadata.EndingID == ending.ID {
				s.mu.Unlock()
				return seg, true
			}
		}
	}

	data := *ending
	seg := s.insertLocked(ending.SessionID, engine.NarrativeSegment{
		WorldID: ending.WorldID,
		Content: ending.Epilogue,
		Type:    engine.SegmentEnding,
		Metadata: engine.SegmentMetadata{
			Tone:       string(ending.Tone),
			Tags:       []string{"ending", string(ending.Type)},
			EndingID:   ending.ID,
			EndingData: &data,
		},
		Timestamp: ending.Timestamp,
	})
	s.mu.Unlock()

	s.persist(ctx)
	return seg, true
}

// HasActiveEnding reports whether a current ending is set.
func (s *Store) HasActiveEnding() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentEnding != nil
}

// GetEndingForSession checks the current ending first, then mirrored ending
// segments, newest first.
func (s *Store) GetEndingForSession(sessionID string) (*engine.StoryEnding, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.currentEnding != nil && s.currentEnding.SessionID == sessionID {
		out := *s.currentEnding
		return &out, true
	}

	t, ok := s.sessions[sessionID]
	if !ok {
		return nil, false
	}
	for i := len(t.segmentIDs) - 1; i >= 0; i-- {
		seg := s.segments[t.segmentIDs[i]]
		if seg.Type == engine.SegmentEnding && seg.Metadata.EndingData != nil {
			out := *seg.Metadata.EndingData
			return &out, true
		}
	}
	return nil, false
}

func (s *Store) IsSessionEnded(sessionID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.sessions[sessionID]
	return ok && t.State == SessionStateEnded
}

// MarkSessionEnded locks a session against new segments. The lock never clears.
func (s *Store) MarkSessionEnded(ctx context.Context, sessionID string) {
	s.mu.Lock()
	s.track(sessionID).State = SessionStateEnded
	s.mu.Unlock()
	s.persist(ctx)
}

func (s *Store) IsGeneratingEnding() bool {
	return s.generating.Load()
}

// EndingError returns the message of the last failed generation, if any.
func (s *Store) EndingError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.endingError
}

func (s *Store) CurrentEnding() *engine.StoryEnding {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.currentEnding == nil {
		return nil
	}
	out := *s.currentEnding
	return &out
}

type storeSnapshot struct {
	Version       string                    `json:"version"`
	Segments      []engine.NarrativeSegment `json:"segments"`
	Sessions      map[string]SessionState   `json:"sessions"`
	CurrentEnding *engine.StoryEnding       `json:"currentEnding,omitempty"`
}

// persist writes a snapshot of the store. Snapshot and write happen under
// persistMu so a stale snapshot is never written after a newer one.
func (s *Store) persist(ctx context.Context) {
	if s.kv == nil {
		return
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.RLock()
	snap := storeSnapshot{
		Version:       engine.SchemaVersion,
		Segments:      make([]engine.NarrativeSegment, 0, len(s.order)),
		Sessions:      make(map[string]SessionState, len(s.sessions)),
		CurrentEnding: s.currentEnding,
	}
	for _, id := range s.order {
		snap.Segments = append(snap.Segments, s.segments[id])
	}
	for id, t := range s.sessions {
		snap.Sessions[id] = t.State
	}
	s.mu.RUnlock()

	kv.SaveJSON(ctx, s.kv, s.log, StorageKey, snap)
}

func (s *Store) load(ctx context.Context) {
	var snap storeSnapshot
	if !kv.LoadJSON(ctx, s.kv, s.log, StorageKey, &snap) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, state := range snap.Sessions {
		s.track(id).State = state
	}
	for _, seg := range snap.Segments {
		s.segments[seg.ID] = seg
		s.order = append(s.order, seg.ID)
		t := s.track(seg.SessionID)
		t.segmentIDs = append(t.segmentIDs, seg.ID)
	}
	s.currentEnding = snap.CurrentEnding
	s.log.Debug().Int("segments", len(snap.Segments)).Msg("narrative snapshot loaded")
}
