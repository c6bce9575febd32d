package enrich

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/codegraphhq/codegraph/internal/graph"
	"github.com/codegraphhq/codegraph/internal/logging"
)

const (
	vocabularyTTL        = time.Hour
	vocabularyMaxEntries = 100
)

// TypeVocabulary caches the per-repository set of defined entity FQNs used
// for heuristic candidate generation. Entries expire after an hour and the
// cache holds at most 100 repositories; when it is full, every entry is
// flushed at once rather than evicting the least recently used one.
type TypeVocabulary struct {
	cache *gocache.Cache
	store graph.Store
}

// NewTypeVocabulary creates the vocabulary cache over a store.
func NewTypeVocabulary(store graph.Store) *TypeVocabulary {
	return &TypeVocabulary{
		cache: gocache.New(vocabularyTTL, 10*time.Minute),
		store: store,
	}
}

// FQNs returns all entity FQNs defined in a repository, cached per repo.
func (v *TypeVocabulary) FQNs(ctx context.Context, repoSlug string) ([]string, error) {
	if cached, found := v.cache.Get(repoSlug); found {
		return cached.([]string), nil
	}

	nodes, err := v.store.FindNodes(ctx, map[string]any{"repo_id_str": repoSlug}, 0)
	if err != nil {
		return nil, err
	}
	var fqns []string
	for _, n := range nodes {
		if fqn, ok := n.Attributes["fqn"].(string); ok && fqn != "" {
			fqns = append(fqns, fqn)
		}
	}

	if v.cache.ItemCount() >= vocabularyMaxEntries {
		// Bounded: drop everything rather than tracking recency per entry.
		logging.Component("vocabulary").Debug("vocabulary cache full, flushing")
		v.cache.Flush()
	}
	v.cache.Set(repoSlug, fqns, gocache.DefaultExpiration)
	return fqns, nil
}

// Invalidate drops a repository's cached vocabulary, used after ingestion
// writes new entities.
func (v *TypeVocabulary) Invalidate(repoSlug string) {
	v.cache.Delete(repoSlug)
}
