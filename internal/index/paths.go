package index

import (
	"sort"
	"strings"

	"github.com/agext/levenshtein"
)

// ResolvePath returns the URIs of indexed documents whose path ends with
// path, compared without case and with either slash. Results are cached
// until the next change to the index.
func (x *Index) ResolvePath(path string) []string {
	key := normalizePath(path)
	if key == "" {
		return nil
	}
	if uris, ok := x.paths.Get(key); ok {
		return append([]string(nil), uris...)
	}
	var uris []string
	for _, uri := range x.order {
		u := normalizePath(uri)
		if u == key || strings.HasSuffix(u, "/"+key) {
			uris = append(uris, uri)
		}
	}
	x.paths.Add(key, uris)
	return append([]string(nil), uris...)
}

func normalizePath(p string) string {
	p = strings.ToLower(strings.ReplaceAll(p, "\\", "/"))
	p = strings.TrimPrefix(p, "./")
	return strings.TrimLeft(p, "/")
}

// Suggest returns up to limit defined names close to name, nearest first.
// Exact matches are not suggestions. A limit of zero or less returns all
// candidates.
func (x *Index) Suggest(name string, limit int) []string {
	q := strings.ToLower(name)
	if q == "" {
		return nil
	}
	maxDist := max(2, len(q)/3)

	type candidate struct {
		name string
		dist int
	}
	var cands []candidate
	for key := range x.definitions {
		target := key
		// "scor" should find "level.score"
		if !strings.Contains(q, ".") {
			if i := strings.IndexByte(key, '.'); i >= 0 {
				target = key[i+1:]
			}
		}
		d := levenshtein.Distance(q, target, nil)
		if d == 0 && target == key {
			continue
		}
		if d <= maxDist {
			cands = append(cands, candidate{key, d})
		}
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].dist != cands[j].dist {
			return cands[i].dist < cands[j].dist
		}
		return cands[i].name < cands[j].name
	})
	if limit > 0 && len(cands) > limit {
		cands = cands[:limit]
	}
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.name
	}
	return out
}
