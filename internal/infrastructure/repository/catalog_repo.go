package repository

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/waste3d/training-portal/internal/domain"
	"github.com/waste3d/training-portal/internal/infrastructure/cache"
	"github.com/waste3d/training-portal/internal/infrastructure/docstore"
)

const (
	fieldActive = "is_active"
	fieldOrder  = "order_index"
)

// Listing is an ordered catalog page plus the query path that produced it.
type Listing[T any] struct {
	Items    []T                    `json:"items"`
	Strategy domain.CatalogStrategy `json:"strategy"`
}

type CatalogRepository struct {
	store docstore.Store
	cache cache.Cache
}

func NewCatalogRepository(store docstore.Store, c cache.Cache) *CatalogRepository {
	return &CatalogRepository{store: store, cache: c}
}

// === Модули ===

func (r *CatalogRepository) ListActiveModules(ctx context.Context) (Listing[domain.TrainingModule], error) {
	return readThrough(ctx, r.cache, cache.ModulesKey(), func() (Listing[domain.TrainingModule], error) {
		return listActive[domain.TrainingModule](ctx, r.store, docstore.TrainingModules, 0)
	})
}

func (r *CatalogRepository) GetModule(ctx context.Context, id string) (*domain.TrainingModule, error) {
	return readThrough(ctx, r.cache, cache.ModuleKey(id), func() (*domain.TrainingModule, error) {
		doc, err := r.store.Get(ctx, docstore.TrainingModules, id)
		if err != nil {
			return nil, fmt.Errorf("get module %s: %w", id, err)
		}
		var m domain.TrainingModule
		if err := doc.Decode(&m); err != nil {
			return nil, fmt.Errorf("decode module %s: %w", id, err)
		}
		return &m, nil
	})
}

// === Видео ===

// ListActiveVideos returns active videos in order; limit <= 0 means all.
func (r *CatalogRepository) ListActiveVideos(ctx context.Context, limit int) (Listing[domain.AIBasicsVideo], error) {
	return readThrough(ctx, r.cache, cache.VideosKey(limit), func() (Listing[domain.AIBasicsVideo], error) {
		return listActive[domain.AIBasicsVideo](ctx, r.store, docstore.AIBasicsVideos, limit)
	})
}

func listActive[T any](ctx context.Context, store docstore.Store, collection string, limit int) (Listing[T], error) {
	docs, strategy, err := runChain(ctx, activeStrategies(store, collection))
	if err != nil {
		return Listing[T]{}, fmt.Errorf("list %s: %w", collection, err)
	}
	if strategy.Degraded() {
		log.Printf("catalog: %s served by degraded path %q (%d docs)", collection, strategy, len(docs))
	}

	// limit only after filtering and ordering are settled
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}

	items := make([]T, 0, len(docs))
	for _, d := range docs {
		var item T
		if err := d.Decode(&item); err != nil {
			return Listing[T]{}, fmt.Errorf("decode %s/%s: %w", collection, d.ID, err)
		}
		items = append(items, item)
	}
	return Listing[T]{Items: items, Strategy: strategy}, nil
}

// queryStrategy is one way of reading the active catalog. next decides
// whether a failure may be answered by the following strategy.
type queryStrategy struct {
	name domain.CatalogStrategy
	run  func(ctx context.Context) ([]docstore.Document, error)
	next func(err error) bool
}

func runChain(ctx context.Context, chain []queryStrategy) ([]docstore.Document, domain.CatalogStrategy, error) {
	var lastErr error
	for i, s := range chain {
		docs, err := s.run(ctx)
		if err == nil {
			return docs, s.name, nil
		}
		lastErr = err
		if i == len(chain)-1 || !s.next(err) {
			break
		}
		log.Printf("catalog: strategy %q failed, falling back: %v", s.name, err)
	}
	return nil, "", lastErr
}

func activeStrategies(store docstore.Store, collection string) []queryStrategy {
	active := []docstore.Filter{docstore.Eq(fieldActive, true)}
	return []queryStrategy{
		{
			name: domain.StrategyOrdered,
			run: func(ctx context.Context) ([]docstore.Document, error) {
				return store.Query(ctx, collection, docstore.Query{Filters: active, OrderBy: fieldOrder})
			},
			next: func(err error) bool { return errors.Is(err, docstore.ErrQueryCapability) },
		},
		{
			name: domain.StrategyFilteredClientSort,
			run: func(ctx context.Context) ([]docstore.Document, error) {
				docs, err := store.Query(ctx, collection, docstore.Query{Filters: active})
				if err != nil {
					return nil, err
				}
				sortByOrder(docs)
				return docs, nil
			},
			next: func(error) bool { return true },
		},
		{
			name: domain.StrategyFullScan,
			run: func(ctx context.Context) ([]docstore.Document, error) {
				docs, err := store.Query(ctx, collection, docstore.Query{})
				if err != nil {
					return nil, err
				}
				kept := docs[:0]
				for _, d := range docs {
					// a missing flag counts as active
					if v, ok := d.Fields[fieldActive].(bool); ok && !v {
						continue
					}
					kept = append(kept, d)
				}
				sortByOrder(kept)
				return kept, nil
			},
		},
	}
}

func sortByOrder(docs []docstore.Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		return docstore.Less(docs[i].Fields[fieldOrder], docs[j].Fields[fieldOrder])
	})
}

// === Диагностика ===

type CollectionReport struct {
	Total   int      `json:"total_documents"`
	Active  *int     `json:"active_documents,omitempty"`
	Ordered *int     `json:"ordered_documents,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

// Diagnose probes each catalog collection with every query shape, bypassing
// the cache. Failures are reported, not returned.
func (r *CatalogRepository) Diagnose(ctx context.Context) map[string]CollectionReport {
	out := make(map[string]CollectionReport, 2)
	for _, collection := range []string{docstore.TrainingModules, docstore.AIBasicsVideos} {
		var rep CollectionReport

		all, err := r.store.Query(ctx, collection, docstore.Query{})
		if err != nil {
			rep.Errors = append(rep.Errors, "collection: "+err.Error())
			out[collection] = rep
			continue
		}
		rep.Total = len(all)

		active := []docstore.Filter{docstore.Eq(fieldActive, true)}
		if docs, err := r.store.Query(ctx, collection, docstore.Query{Filters: active}); err != nil {
			rep.Errors = append(rep.Errors, "active query: "+err.Error())
		} else {
			n := len(docs)
			rep.Active = &n
		}
		if docs, err := r.store.Query(ctx, collection, docstore.Query{Filters: active, OrderBy: fieldOrder}); err != nil {
			rep.Errors = append(rep.Errors, "ordered query: "+err.Error())
		} else {
			n := len(docs)
			rep.Ordered = &n
		}
		out[collection] = rep
	}
	return out
}
