package orchestrator

import (
	"context"
	"fmt"

	"github.com/Yates-Labs/narraitor/internal/ingest/git"
	"github.com/Yates-Labs/narraitor/internal/lore"
)

// ImportResult summarises a lore import from a repository.
type ImportResult struct {
	Source    string      `json:"source"`
	Commit    string      `json:"commit"`
	Documents int         `json:"documents"`
	Skipped   int         `json:"skipped"`
	Created   []lore.Fact `json:"created"`
	Indexed   int         `json:"indexed"`
}

// ImportLore reads markdown notes from a local repository path or clone URL
// and stores them as canonical facts of worldID. When recall is enabled the
// world is re-indexed afterwards; indexing failures are logged only.
func (o *Orchestrator) ImportLore(ctx context.Context, source, worldID string) (*ImportResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if worldID == "" {
		return nil, fmt.Errorf("worldId is required for a lore import")
	}

	repo, err := git.LoadRepository(source)
	if err != nil {
		return nil, err
	}
	snap, err := git.ReadDocuments(repo, git.DefaultReadOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to read lore repository: %w", err)
	}

	res := &ImportResult{Source: source, Commit: snap.ShortHash(), Documents: len(snap.Documents)}
	facts := make([]lore.Fact, 0, len(snap.Documents))
	for _, doc := range snap.Documents {
		f, ok := lore.ParseDocument(doc.Path, doc.Content, worldID)
		if !ok {
			res.Skipped++
			continue
		}
		facts = append(facts, f)
	}
	res.Created = o.Lore.ImportFacts(ctx, facts)
	res.Skipped += len(facts) - len(res.Created)

	o.Log.Info().
		Str("source", source).
		Str("commit", res.Commit).
		Str("world_id", worldID).
		Int("documents", res.Documents).
		Int("created", len(res.Created)).
		Msg("lore imported")

	if o.LoreIndex != nil && len(res.Created) > 0 {
		n, err := o.LoreIndex.IndexWorld(ctx, worldID, false)
		if err != nil {
			o.Log.Warn().Err(err).Str("world_id", worldID).Msg("failed to index imported lore")
		}
		res.Indexed = n
	}
	return res, nil
}
