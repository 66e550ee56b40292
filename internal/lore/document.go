package lore

import (
	"context"
	"path"
	"strings"
)

// ImportedTag marks facts read from external documents.
const ImportedTag = "imported"

// ParseDocument turns a markdown note into a canonical fact. The category is
// taken from the first directory in docPath naming one (plural or singular),
// the title from the first "# " heading or else the file name. A "Tags:" line
// supplies tags. It reports false when no category can be determined.
func ParseDocument(docPath, content, worldID string) (Fact, bool) {
	category, ok := categoryFromPath(docPath)
	if !ok {
		return Fact{}, false
	}

	f := Fact{
		Category:    category,
		Source:      SourceImported,
		IsCanonical: true,
		WorldID:     worldID,
		Tags:        []string{ImportedTag},
	}

	var body []string
	for _, line := range strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case f.Title == "" && strings.HasPrefix(trimmed, "# "):
			f.Title = strings.TrimSpace(strings.TrimPrefix(trimmed, "# "))
		case strings.HasPrefix(strings.ToLower(trimmed), "tags:"):
			for _, t := range strings.Split(trimmed[len("tags:"):], ",") {
				if t = strings.ToLower(strings.TrimSpace(t)); t != "" && !containsString(f.Tags, t) {
					f.Tags = append(f.Tags, t)
				}
			}
		default:
			body = append(body, trimmed)
		}
	}
	if f.Title == "" {
		f.Title = titleFromFile(docPath)
	}
	f.Content = collapseBlankLines(body)
	return f, f.Title != ""
}

func categoryFromPath(docPath string) (Category, bool) {
	dirs := strings.Split(path.Dir(docPath), "/")
	for _, d := range dirs {
		d = strings.ToLower(d)
		for _, c := range Categories {
			if d == string(c) || d == c.Singular() {
				return c, true
			}
		}
	}
	return "", false
}

func titleFromFile(docPath string) string {
	base := path.Base(docPath)
	base = strings.TrimSuffix(base, path.Ext(base))
	return strings.TrimSpace(strings.NewReplacer("-", " ", "_", " ").Replace(base))
}

func collapseBlankLines(lines []string) string {
	var out []string
	blank := false
	for _, l := range lines {
		if l == "" {
			blank = len(out) > 0
			continue
		}
		if blank {
			out = append(out, "")
			blank = false
		}
		out = append(out, l)
	}
	return strings.Join(out, "\n")
}

// ImportFacts stores parsed facts, skipping titles already known for their
// world. It returns the facts that were created.
func (s *Store) ImportFacts(ctx context.Context, facts []Fact) []Fact {
	s.mu.Lock()
	known := make(map[string]bool)
	for _, f := range s.facts {
		known[f.WorldID+"\x00"+strings.ToLower(f.Title)] = true
	}
	created := make([]Fact, 0, len(facts))
	for _, f := range facts {
		key := f.WorldID + "\x00" + strings.ToLower(strings.TrimSpace(f.Title))
		if f.WorldID == "" || strings.TrimSpace(f.Title) == "" || known[key] || !f.Category.Valid() {
			continue
		}
		known[key] = true
		if !f.Source.Valid() {
			f.Source = SourceImported
		}
		created = append(created, s.insertLocked(f))
	}
	s.mu.Unlock()

	if len(created) > 0 {
		s.persist(ctx)
	}
	s.log.Debug().Int("candidates", len(facts)).Int("created", len(created)).Msg("facts imported")
	return created
}
