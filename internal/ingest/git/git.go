// Package git reads worldbuilding documents out of Git repositories.
package git

import (
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing/object"
	"github.com/go-git/go-git/v6/storage/memory"
)

// OpenRepository opens a Git repository from a local path
func OpenRepository(path string) (*git.Repository, error) {
	return git.PlainOpen(path)
}

// CloneRepository clones a Git repository to memory
func CloneRepository(url string) (*git.Repository, error) {
	return git.Clone(memory.NewStorage(), nil, &git.CloneOptions{
		URL:   url,
		Depth: 1,
	})
}

// LoadRepository opens source when it is an existing local directory and
// clones it otherwise.
func LoadRepository(source string) (*git.Repository, error) {
	if info, err := os.Stat(source); err == nil && info.IsDir() {
		repo, err := OpenRepository(source)
		if err != nil {
			return nil, fmt.Errorf("failed to open repository %s: %w", source, err)
		}
		return repo, nil
	}
	repo, err := CloneRepository(source)
	if err != nil {
		return nil, fmt.Errorf("failed to clone repository %s: %w", source, err)
	}
	return repo, nil
}

// ParseAuthor converts go-git Signature to Author
func ParseAuthor(sig object.Signature) Author {
	return Author{
		Name:  sig.Name,
		Email: sig.Email,
		When:  sig.When,
	}
}

// ReadDocuments returns the text files of the HEAD tree that match opts,
// ordered by path. Binary files are skipped.
func ReadDocuments(repo *git.Repository, opts ReadOptions) (*Snapshot, error) {
	ref, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to get HEAD: %w", err)
	}
	commit, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to get HEAD commit: %w", err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to get tree: %w", err)
	}

	snap := &Snapshot{
		Source:     GetRemoteURL(repo, "origin"),
		HeadHash:   ref.Hash().String(),
		HeadBranch: ref.Name().Short(),
		Author:     ParseAuthor(commit.Author),
		Documents:  []Document{},
	}

	err = tree.Files().ForEach(func(file *object.File) error {
		if !hasExtension(file.Name, opts.Extensions) {
			return nil
		}
		if opts.MaxBytes > 0 && file.Size > opts.MaxBytes {
			return nil
		}
		if isBinary, _ := file.IsBinary(); isBinary {
			return nil
		}
		content, err := file.Contents()
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", file.Name, err)
		}
		snap.Documents = append(snap.Documents, Document{Path: file.Name, Content: content})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate files: %w", err)
	}

	sort.Slice(snap.Documents, func(i, j int) bool {
		return snap.Documents[i].Path < snap.Documents[j].Path
	})
	return snap, nil
}

func hasExtension(name string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	ext := strings.ToLower(path.Ext(name))
	for _, e := range exts {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}

// GetRemoteURL returns the URL for a given remote name (e.g., "origin")
// Returns empty string if remote doesn't exist
func GetRemoteURL(repo *git.Repository, remoteName string) string {
	remote, err := repo.Remote(remoteName)
	if err != nil {
		return ""
	}

	config := remote.Config()
	if len(config.URLs) == 0 {
		return ""
	}

	return config.URLs[0]
}
