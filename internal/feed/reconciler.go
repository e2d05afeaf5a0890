package feed

import (
	"slices"

	"github.com/anonto42/nano-feed/backend/internal/models"
	"github.com/anonto42/nano-feed/backend/internal/store"
)

// Policy decides where a new article enters a list.
type Policy int

const (
	Append Policy = iota
	Prepend
)

// Upsert returns list with a merged in. An entry with the same id is merged in
// place and keeps its position; otherwise a is added at the end chosen by p.
// The input slice is not modified.
func Upsert(list []models.Article, a models.Article, p Policy) []models.Article {
	if i := slices.IndexFunc(list, func(e models.Article) bool { return e.ID == a.ID }); i >= 0 {
		out := slices.Clone(list)
		out[i] = out[i].Merge(a)
		return out
	}
	out := make([]models.Article, 0, len(list)+1)
	if p == Prepend {
		out = append(out, a)
		return append(out, list...)
	}
	out = append(out, list...)
	return append(out, a)
}

// Remove drops the entry with id, if any.
func Remove(list []models.Article, id string) []models.Article {
	i := slices.IndexFunc(list, func(e models.Article) bool { return e.ID == id })
	if i < 0 {
		return list
	}
	return slices.Delete(slices.Clone(list), i, i+1)
}

// ApplySnapshot upserts every child of snap in delivery order. Null children
// and records the materializer rejects are skipped.
func ApplySnapshot(list []models.Article, snap store.Snapshot, m *Materializer, layout models.Layout, p Policy) []models.Article {
	for _, child := range snap.Children() {
		if !child.Exists() {
			continue
		}
		a, ok := m.Materialize(child, layout)
		if !ok {
			continue
		}
		list = Upsert(list, a, p)
	}
	return list
}
