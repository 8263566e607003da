package memory

import (
	"sort"
	"strings"

	"github.com/hupe1980/toolmesh/core"
)

// mergeSeparator joins the contents of two records during Merge. The sink
// record's id is interpolated so provenance survives in the text itself.
const mergeSeparator = "\n\n--- merged from %s ---\n\n"

// NormalizeTag canonicalizes a tag: lowercase, with spaces and dashes
// collapsed to underscores.
func NormalizeTag(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	tag = strings.ReplaceAll(tag, " ", "_")
	tag = strings.ReplaceAll(tag, "-", "_")
	return tag
}

// NormalizeTags canonicalizes and dedups a tag list, preserving first
// occurrence order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		n := NormalizeTag(t)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// unionStrings appends the elements of b not already present in a,
// preserving order.
func unionStrings(a, b []string) []string {
	out := append([]string(nil), a...)
	seen := make(map[string]struct{}, len(a))
	for _, s := range a {
		seen[s] = struct{}{}
	}
	for _, s := range b {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// score is the deterministic relevance of a record against a query: tag
// overlap is the primary key, text-match count the secondary.
type score struct {
	tagOverlap  int
	textMatches int
}

func relevance(rec core.MemoryRecord, query string, tags []string) score {
	var s score
	for _, want := range tags {
		if containsString(rec.Tags, want) {
			s.tagOverlap++
		}
	}
	if query != "" {
		q := strings.ToLower(query)
		s.textMatches = strings.Count(strings.ToLower(rec.Title), q) +
			strings.Count(strings.ToLower(rec.Content), q)
		// The query text itself counts as a tag: searching "preferences"
		// must find a record tagged preferences even when no explicit
		// tags are given. Skip it if the explicit tags already scored it.
		qTag := NormalizeTag(query)
		if !containsString(tags, qTag) && containsString(rec.Tags, qTag) {
			s.tagOverlap++
		}
	}
	return s
}

func containsString(ss []string, want string) bool {
	for _, s := range ss {
		if s == want {
			return true
		}
	}
	return false
}

// rank sorts matched records by relevance, most relevant first, ties broken
// by most-recent-update-first and finally by id for full determinism.
func rank(records []core.MemoryRecord, scores map[string]score) {
	sort.SliceStable(records, func(i, j int) bool {
		si, sj := scores[records[i].ID], scores[records[j].ID]
		if si.tagOverlap != sj.tagOverlap {
			return si.tagOverlap > sj.tagOverlap
		}
		if si.textMatches != sj.textMatches {
			return si.textMatches > sj.textMatches
		}
		if !records[i].UpdatedAt.Equal(records[j].UpdatedAt) {
			return records[i].UpdatedAt.After(records[j].UpdatedAt)
		}
		return records[i].ID < records[j].ID
	})
}

// matches reports whether a record belongs in a result set at all. An empty
// query with no tags matches everything.
func matches(s score, query string, tags []string) bool {
	if query == "" && len(tags) == 0 {
		return true
	}
	return s.tagOverlap > 0 || s.textMatches > 0
}

func cloneRecord(rec core.MemoryRecord) core.MemoryRecord {
	out := rec
	out.Tags = append([]string(nil), rec.Tags...)
	out.CorpusNames = append([]string(nil), rec.CorpusNames...)
	return out
}

// applyPatch merges the non-nil fields of a patch into a record.
func applyPatch(rec *core.MemoryRecord, patch core.MemoryPatch) {
	if patch.Title != nil {
		rec.Title = *patch.Title
	}
	if patch.Content != nil {
		rec.Content = *patch.Content
	}
	if patch.Tags != nil {
		rec.Tags = NormalizeTags(patch.Tags)
	}
	if patch.CorpusNames != nil {
		rec.CorpusNames = append([]string(nil), patch.CorpusNames...)
	}
	if patch.UserTriggered != nil {
		rec.UserTriggered = *patch.UserTriggered
	}
}
