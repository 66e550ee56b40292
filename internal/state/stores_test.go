package state

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Yates-Labs/narraitor/internal/engine"
	"github.com/Yates-Labs/narraitor/internal/kv"
	"github.com/Yates-Labs/narraitor/internal/narrative"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// the stores are the collaborators of ending context assembly
var (
	_ narrative.WorldSource     = (*WorldStore)(nil)
	_ narrative.CharacterSource = (*CharacterStore)(nil)
	_ narrative.JournalSource   = (*JournalStore)(nil)
	_ narrative.SessionSource   = (*SessionStore)(nil)
)

func TestWorldStore_CRUD(t *testing.T) {
	ctx := context.Background()
	s := NewWorldStore(ctx, kv.NewMemoryStore(), zerolog.Nop())

	_, err := s.CreateWorld(ctx, engine.World{})
	assert.ErrorIs(t, err, engine.ErrValidation)

	w, err := s.CreateWorld(ctx, engine.World{Name: "Eldoria", Theme: "fantasy"})
	require.NoError(t, err)
	assert.NotEmpty(t, w.ID)

	got, ok := s.GetWorld(w.ID)
	require.True(t, ok)
	assert.Equal(t, "Eldoria", got.Name)

	w.Description = "Old magic"
	require.NoError(t, s.UpdateWorld(ctx, w))
	got, _ = s.GetWorld(w.ID)
	assert.Equal(t, "Old magic", got.Description)

	assert.ErrorIs(t, s.UpdateWorld(ctx, engine.World{ID: "missing"}), engine.ErrNotFound)
	assert.Len(t, s.ListWorlds(), 1)

	require.NoError(t, s.DeleteWorld(ctx, w.ID))
	_, ok = s.GetWorld(w.ID)
	assert.False(t, ok)
	assert.ErrorIs(t, s.DeleteWorld(ctx, w.ID), engine.ErrNotFound)
}

func TestCharacterStore_ListByWorld(t *testing.T) {
	ctx := context.Background()
	s := NewCharacterStore(ctx, nil, zerolog.Nop())

	_, err := s.CreateCharacter(ctx, engine.Character{Name: "Aria", WorldID: "w1"})
	require.NoError(t, err)
	_, err = s.CreateCharacter(ctx, engine.Character{Name: "Bram", WorldID: "w2"})
	require.NoError(t, err)

	assert.Len(t, s.ListCharacters("w1"), 1)
	assert.Len(t, s.ListCharacters(""), 2)
}

func TestJournalStore_EntriesForSession(t *testing.T) {
	ctx := context.Background()
	s := NewJournalStore(ctx, nil, zerolog.Nop())
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := s.AddEntry(ctx, engine.JournalEntry{SessionID: "s1", Content: "second", CreatedAt: base.Add(time.Minute)})
	require.NoError(t, err)
	first, err := s.AddEntry(ctx, engine.JournalEntry{SessionID: "s1", Content: "first", CreatedAt: base})
	require.NoError(t, err)
	_, err = s.AddEntry(ctx, engine.JournalEntry{SessionID: "s2", Content: "other"})
	require.NoError(t, err)

	entries := s.EntriesForSession("s1")
	require.Len(t, entries, 2)
	assert.Equal(t, "first", entries[0].Content)
	assert.Equal(t, engine.SignificanceMinor, entries[0].Significance)

	require.NoError(t, s.MarkRead(ctx, first.ID))
	assert.True(t, s.EntriesForSession("s1")[0].IsRead)

	_, err = s.AddEntry(ctx, engine.JournalEntry{Content: "orphan"})
	assert.ErrorIs(t, err, engine.ErrValidation)
}

func TestSessionStore_PersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemoryStore()
	s := NewSessionStore(ctx, mem, zerolog.Nop())

	sess, err := s.SaveSession(ctx, engine.SavedSession{WorldID: "w1", CharacterID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, engine.SessionActive, sess.Status)
	assert.False(t, sess.LastPlayed.IsZero())

	require.NoError(t, s.SetStatus(ctx, sess.ID, engine.SessionCompleted))

	restored := NewSessionStore(ctx, mem, zerolog.Nop())
	got, ok := restored.GetSession(sess.ID)
	require.True(t, ok)
	assert.Equal(t, engine.SessionCompleted, got.Status)
	assert.True(t, got.LastPlayed.Equal(sess.LastPlayed))

	_, err = s.SaveSession(ctx, engine.SavedSession{WorldID: "w1"})
	assert.ErrorIs(t, err, engine.ErrValidation)
}

// slowKV holds the first write that lacks marker until release is closed.
type slowKV struct {
	*kv.MemoryStore
	marker  string
	once    sync.Once
	held    chan struct{}
	release chan struct{}
}

func (s *slowKV) SetItem(ctx context.Context, key, value string) {
	if !strings.Contains(value, s.marker) {
		hold := false
		s.once.Do(func() { hold = true })
		if hold {
			close(s.held)
			<-s.release
		}
	}
	s.MemoryStore.SetItem(ctx, key, value)
}

func TestCollection_LastWriteIsNewestSnapshot(t *testing.T) {
	ctx := context.Background()
	mem := &slowKV{MemoryStore: kv.NewMemoryStore(), marker: "Westreach", held: make(chan struct{}), release: make(chan struct{})}
	s := NewWorldStore(ctx, mem, zerolog.Nop())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := s.CreateWorld(ctx, engine.World{Name: "Eldoria"})
		assert.NoError(t, err)
	}()
	<-mem.held

	go func() {
		defer wg.Done()
		_, err := s.CreateWorld(ctx, engine.World{Name: "Westreach"})
		assert.NoError(t, err)
	}()
	require.Eventually(t, func() bool { return len(s.ListWorlds()) == 2 }, 2*time.Second, time.Millisecond)
	close(mem.release)
	wg.Wait()

	restored := NewWorldStore(ctx, mem, zerolog.Nop())
	assert.Len(t, restored.ListWorlds(), 2)
}
