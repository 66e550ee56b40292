package git

import "time"

// Author represents Git author/committer information
type Author struct {
	Name  string    `json:"name"`
	Email string    `json:"email"`
	When  time.Time `json:"when"`
}

// Document is a text file read from a repository tree.
type Document struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Snapshot is the set of documents at a repository's HEAD commit.
type Snapshot struct {
	Source     string     `json:"source"`
	HeadHash   string     `json:"head_hash"`
	HeadBranch string     `json:"head_branch"`
	Author     Author     `json:"author"`
	Documents  []Document `json:"documents"`
}

// ShortHash returns the first 8 characters of the HEAD hash for display.
func (s *Snapshot) ShortHash() string {
	if len(s.HeadHash) > 8 {
		return s.HeadHash[:8]
	}
	return s.HeadHash
}

// ReadOptions controls which files ReadDocuments returns.
type ReadOptions struct {
	// Extensions to include, with the leading dot. Matched case-insensitively.
	Extensions []string
	// Files larger than MaxBytes are skipped. Zero means no limit.
	MaxBytes int64
}

// DefaultReadOptions reads markdown and plain-text notes up to 256 KiB.
func DefaultReadOptions() ReadOptions {
	return ReadOptions{
		Extensions: []string{".md", ".markdown", ".txt"},
		MaxBytes:   256 << 10,
	}
}
