package lore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Yates-Labs/narraitor/internal/engine"
	"github.com/Yates-Labs/narraitor/internal/kv"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

// StorageKey is the key the fact map is persisted under.
const StorageKey = kv.KeyPrefix + "lore"

// Store is the fact repository. Missing ids on update and delete are
// logged no-ops.
type Store struct {
	mu        sync.RWMutex
	persistMu sync.Mutex
	facts     map[string]Fact
	extractor FactExtractor
	loading   atomic.Bool
	lastError atomic.String

	kv  kv.Store
	log zerolog.Logger
	now func() time.Time
}

type Option func(*Store)

// WithExtractor replaces the default regex extractor.
func WithExtractor(e FactExtractor) Option {
	return func(s *Store) {
		if e != nil {
			s.extractor = e
		}
	}
}

// WithClock replaces time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a lore store and loads any persisted facts.
func NewStore(ctx context.Context, kvStore kv.Store, log zerolog.Logger, opts ...Option) *Store {
	s := &Store{
		facts:     make(map[string]Fact),
		extractor: NewRegexExtractor(),
		kv:        kvStore,
		log:       log.With().Str("component", "lore_store").Logger(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.load(ctx)
	return s
}

// CreateFact stores a new fact with a generated id.
func (s *Store) CreateFact(ctx context.Context, f Fact) (Fact, error) {
	if strings.TrimSpace(f.Title) == "" {
		return Fact{}, fmt.Errorf("%w: fact title is required", engine.ErrValidation)
	}
	if strings.TrimSpace(f.WorldID) == "" {
		return Fact{}, fmt.Errorf("%w: fact worldId is required", engine.ErrValidation)
	}
	if !f.Category.Valid() {
		return Fact{}, fmt.Errorf("%w: unknown category %q", engine.ErrValidation, f.Category)
	}
	if f.Source == "" {
		f.Source = SourceManual
	}
	if !f.Source.Valid() {
		return Fact{}, fmt.Errorf("%w: unknown source %q", engine.ErrValidation, f.Source)
	}

	s.mu.Lock()
	f = s.insertLocked(f)
	s.mu.Unlock()

	s.persist(ctx)
	return f, nil
}

func (s *Store) insertLocked(f Fact) Fact {
	now := s.now()
	f.ID = uuid.NewString()
	f.CreatedAt = now
	f.UpdatedAt = now
	if f.Tags == nil {
		f.Tags = []string{}
	}
	if f.RelatedFacts == nil {
		f.RelatedFacts = []string{}
	}
	s.facts[f.ID] = f
	return f
}

// UpdateFact applies patch and bumps updatedAt. It reports false when id is
// unknown; an invalid patch returns engine.ErrValidation and changes nothing.
func (s *Store) UpdateFact(ctx context.Context, id string, patch FactPatch) (Fact, bool, error) {
	if err := patch.Validate(); err != nil {
		return Fact{}, false, err
	}

	s.mu.Lock()
	f, ok := s.facts[id]
	if !ok {
		s.mu.Unlock()
		s.log.Warn().Str("fact_id", id).Msg("update of unknown fact ignored")
		return Fact{}, false, nil
	}
	if patch.Category != nil {
		f.Category = *patch.Category
	}
	if patch.Title != nil {
		f.Title = *patch.Title
	}
	if patch.Content != nil {
		f.Content = *patch.Content
	}
	if patch.Source != nil {
		f.Source = *patch.Source
	}
	if patch.Tags != nil {
		f.Tags = append([]string(nil), patch.Tags...)
	}
	if patch.IsCanonical != nil {
		f.IsCanonical = *patch.IsCanonical
	}
	if patch.RelatedFacts != nil {
		f.RelatedFacts = append([]string(nil), patch.RelatedFacts...)
	}
	f.UpdatedAt = s.now()
	s.facts[id] = f
	s.mu.Unlock()

	s.persist(ctx)
	return f, true, nil
}

// DeleteFact removes a fact and strips its id from every other fact's
// relatedFacts. It reports false when id is unknown.
func (s *Store) DeleteFact(ctx context.Context, id string) bool {
	s.mu.Lock()
	if _, ok := s.facts[id]; !ok {
		s.mu.Unlock()
		s.log.Warn().Str("fact_id", id).Msg("delete of unknown fact ignored")
		return false
	}
	delete(s.facts, id)
	for fid, f := range s.facts {
		if !containsString(f.RelatedFacts, id) {
			continue
		}
		kept := make([]string, 0, len(f.RelatedFacts)-1)
		for _, r := range f.RelatedFacts {
			if r != id {
				kept = append(kept, r)
			}
		}
		f.RelatedFacts = kept
		s.facts[fid] = f
	}
	s.mu.Unlock()

	s.persist(ctx)
	return true
}

// ClearAllFacts removes every fact.
func (s *Store) ClearAllFacts(ctx context.Context) {
	s.mu.Lock()
	s.facts = make(map[string]Fact)
	s.mu.Unlock()
	s.persist(ctx)
}

func (s *Store) GetFact(id string) (Fact, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.facts[id]
	return f, ok
}

// GetFactsByWorld returns a world's facts, most recently updated first.
func (s *Store) GetFactsByWorld(worldID string) []Fact {
	return s.SearchFacts(SearchOptions{WorldID: worldID})
}

func (s *Store) GetFactsByCategory(worldID string, category Category) []Fact {
	return s.SearchFacts(SearchOptions{WorldID: worldID, Category: category})
}

// SearchFacts returns the facts matching every provided filter, most
// recently updated first. Tags match when any tag is shared; SearchTerm is
// a case-insensitive substring of the title, content or a tag.
func (s *Store) SearchFacts(opts SearchOptions) []Fact {
	term := strings.ToLower(strings.TrimSpace(opts.SearchTerm))

	s.mu.RLock()
	out := make([]Fact, 0)
	for _, f := range s.facts {
		if opts.WorldID != "" && f.WorldID != opts.WorldID {
			continue
		}
		if opts.Category != "" && f.Category != opts.Category {
			continue
		}
		if opts.Source != "" && f.Source != opts.Source {
			continue
		}
		if opts.IsCanonical != nil && f.IsCanonical != *opts.IsCanonical {
			continue
		}
		if len(opts.Tags) > 0 && !anyTag(f, opts.Tags) {
			continue
		}
		if term != "" && !matchesTerm(f, term) {
			continue
		}
		out = append(out, f)
	}
	s.mu.RUnlock()

	sortByUpdatedDesc(out)
	return out
}

// GetRelatedFacts resolves a fact's relatedFacts, skipping ids that no longer exist.
func (s *Store) GetRelatedFacts(id string) []Fact {
	s.mu.RLock()
	f, ok := s.facts[id]
	out := make([]Fact, 0)
	if ok {
		for _, rid := range f.RelatedFacts {
			if rf, ok := s.facts[rid]; ok {
				out = append(out, rf)
			}
		}
	}
	s.mu.RUnlock()

	sortByUpdatedDesc(out)
	return out
}

// ExtractFactsFromText runs the extractor and stores new candidates as
// non-canonical facts. Titles already known for the world are skipped.
// Failures are recorded in Error and an empty slice is returned.
func (s *Store) ExtractFactsFromText(ctx context.Context, text, worldID string, source Source) []Fact {
	s.loading.Store(true)
	s.lastError.Store("")
	defer s.loading.Store(false)

	if !source.Valid() {
		source = SourceNarrative
	}

	candidates, err := s.extractor.Extract(ctx, text, worldID, source)
	if err != nil {
		s.lastError.Store(err.Error())
		s.log.Warn().Err(err).Str("world_id", worldID).Msg("fact extraction failed")
		return []Fact{}
	}

	s.mu.Lock()
	known := make(map[string]bool)
	for _, f := range s.facts {
		if f.WorldID == worldID {
			known[strings.ToLower(f.Title)] = true
		}
	}
	created := make([]Fact, 0, len(candidates))
	for _, c := range candidates {
		key := strings.ToLower(strings.TrimSpace(c.Title))
		if key == "" || known[key] || !c.Category.Valid() {
			continue
		}
		known[key] = true

		c.WorldID = worldID
		c.Source = source
		c.IsCanonical = false
		if !containsString(c.Tags, ExtractedTag) {
			c.Tags = append(c.Tags, ExtractedTag)
		}
		created = append(created, s.insertLocked(c))
	}
	s.mu.Unlock()

	if len(created) > 0 {
		s.persist(ctx)
	}
	s.log.Debug().Str("world_id", worldID).Int("candidates", len(candidates)).Int("created", len(created)).Msg("facts extracted")
	return created
}

func (s *Store) Loading() bool { return s.loading.Load() }

// Error returns the message of the last failed extraction.
func (s *Store) Error() string { return s.lastError.Load() }

func (s *Store) ClearError() { s.lastError.Store("") }

// All returns every stored fact, most recently updated first.
func (s *Store) All() []Fact {
	return s.SearchFacts(SearchOptions{})
}

type snapshot struct {
	Version string          `json:"version"`
	Facts   map[string]Fact `json:"facts"`
}

// persist snapshots and writes under persistMu so writes land in snapshot order.
func (s *Store) persist(ctx context.Context) {
	if s.kv == nil {
		return
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.RLock()
	snap := snapshot{Version: engine.SchemaVersion, Facts: make(map[string]Fact, len(s.facts))}
	for id, f := range s.facts {
		snap.Facts[id] = f
	}
	s.mu.RUnlock()

	kv.SaveJSON(ctx, s.kv, s.log, StorageKey, snap)
}

func (s *Store) load(ctx context.Context) {
	var snap snapshot
	if !kv.LoadJSON(ctx, s.kv, s.log, StorageKey, &snap) {
		return
	}
	s.mu.Lock()
	for id, f := range snap.Facts {
		s.facts[id] = f
	}
	s.mu.Unlock()
	s.log.Debug().Int("facts", len(snap.Facts)).Msg("lore snapshot loaded")
}

func sortByUpdatedDesc(facts []Fact) {
	sort.SliceStable(facts, func(i, j int) bool {
		if !facts[i].UpdatedAt.Equal(facts[j].UpdatedAt) {
			return facts[i].UpdatedAt.After(facts[j].UpdatedAt)
		}
		return facts[i].ID < facts[j].ID
	})
}

func anyTag(f Fact, tags []string) bool {
	for _, t := range tags {
		if f.HasTag(t) {
			return true
		}
	}
	return false
}

func matchesTerm(f Fact, term string) bool {
	if strings.Contains(strings.ToLower(f.Title), term) || strings.Contains(strings.ToLower(f.Content), term) {
		return true
	}
	for _, t := range f.Tags {
		if strings.Contains(strings.ToLower(t), term) {
			return true
		}
	}
	return false
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
