package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Yates-Labs/narraitor/internal/config"
	"github.com/Yates-Labs/narraitor/internal/lore"
	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing/object"
	"github.com/rs/zerolog"
)

func writeLoreRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatal(err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	for name, content := range files {
		full := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := wt.Add(name); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := wt.Commit("lore", &git.CommitOptions{
		Author: &object.Signature{Name: "Loremaster", Email: "lore@example.com", When: time.Now()},
	}); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestImportLore(t *testing.T) {
	ctx := context.Background()
	o, err := New(ctx, config.NewForTesting(), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer o.Close()

	dir := writeLoreRepo(t, map[string]string{
		"locations/tower.md":   "# Tower of Dawn\n\nA spire of white stone.",
		"characters/aldric.md": "# Sir Aldric\n\nKnight of the gate.",
		"README.md":            "# My world",
	})

	res, err := o.ImportLore(ctx, dir, "w1")
	if err != nil {
		t.Fatalf("ImportLore failed: %v", err)
	}
	if res.Documents != 3 || len(res.Created) != 2 || res.Skipped != 1 {
		t.Errorf("unexpected result: %+v", res)
	}

	lc := o.Lore.GetLoreContext("w1", nil, 0)
	if lc.FactCount != 2 {
		t.Errorf("imported facts should be canonical, got %d in context", lc.FactCount)
	}

	// Re-importing the same commit creates nothing new.
	res, err = o.ImportLore(ctx, dir, "w1")
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Created) != 0 || res.Skipped != 3 {
		t.Errorf("expected idempotent import, got %+v", res)
	}
	if got := o.Lore.SearchFacts(lore.SearchOptions{WorldID: "w1", Source: lore.SourceImported}); len(got) != 2 {
		t.Errorf("expected 2 imported facts, got %d", len(got))
	}
}

func TestImportLore_Errors(t *testing.T) {
	ctx := context.Background()
	o, err := New(ctx, config.NewForTesting(), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer o.Close()

	if _, err := o.ImportLore(ctx, t.TempDir(), ""); err == nil {
		t.Error("expected error without a world id")
	}
	if _, err := o.ImportLore(ctx, t.TempDir(), "w1"); err == nil {
		t.Error("expected error for a directory that is not a repository")
	}
}
