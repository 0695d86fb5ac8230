package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/waste3d/training-portal/internal/domain"
	"github.com/waste3d/training-portal/internal/infrastructure/cache"
	"github.com/waste3d/training-portal/internal/infrastructure/docstore"
)

type ProgressRepository struct {
	store docstore.Store
	cache cache.Cache
}

func NewProgressRepository(store docstore.Store, c cache.Cache) *ProgressRepository {
	return &ProgressRepository{store: store, cache: c}
}

func (r *ProgressRepository) GetUserProgress(ctx context.Context, userID string) ([]domain.UserProgress, error) {
	return readThrough(ctx, r.cache, cache.UserProgressKey(userID), func() ([]domain.UserProgress, error) {
		docs, err := r.store.Query(ctx, docstore.UserProgress, docstore.Query{
			Filters: []docstore.Filter{docstore.Eq("user_id", userID)},
		})
		if err != nil {
			return nil, fmt.Errorf("query progress of %s: %w", userID, err)
		}
		out := make([]domain.UserProgress, 0, len(docs))
		for _, d := range docs {
			var p domain.UserProgress
			if err := d.Decode(&p); err != nil {
				return nil, fmt.Errorf("decode progress %s: %w", d.ID, err)
			}
			out = append(out, p)
		}
		return out, nil
	})
}

// GetModuleProgress returns nil without error when the user never touched the module.
func (r *ProgressRepository) GetModuleProgress(ctx context.Context, userID, moduleID string) (*domain.UserProgress, error) {
	key := cache.ModuleProgressKey(userID, moduleID)

	var cached domain.UserProgress
	if ok, err := r.cache.Get(ctx, key, &cached); err == nil && ok {
		return &cached, nil
	}

	p, err := r.find(ctx, userID, moduleID)
	if err != nil || p == nil {
		return nil, err
	}
	remember(ctx, r.cache, key, p)
	return p, nil
}

// Upsert applies upd to the (user, module) record, creating it with zeroed
// counters if needed, and evicts the user's cached progress before returning
// the stored record. Relative changes are resolved by the store inside the
// write.
func (r *ProgressRepository) Upsert(ctx context.Context, userID, moduleID string, upd domain.ProgressUpdate) (*domain.UserProgress, error) {
	patch := map[string]any{"updated_at": docstore.ServerTimestamp}
	if upd.ProgressPercentage != nil {
		patch["progress_percentage"] = *upd.ProgressPercentage
	}
	if upd.TimeSpentMinutes != nil {
		patch["time_spent_minutes"] = *upd.TimeSpentMinutes
	}
	if upd.CompletedAt != nil {
		patch["completed_at"] = upd.CompletedAt.UTC()
	}
	if upd.RaisePercentageTo != nil {
		patch["progress_percentage"] = docstore.Greatest(*upd.RaisePercentageTo)
	}
	if upd.AddMinutes > 0 {
		patch["time_spent_minutes"] = docstore.Increment(float64(upd.AddMinutes))
	}

	existing, err := r.find(ctx, userID, moduleID)
	if err != nil {
		return nil, err
	}

	var id string
	if existing != nil {
		id = existing.ID
		if err := r.store.Update(ctx, docstore.UserProgress, id, patch); err != nil {
			return nil, fmt.Errorf("update progress %s: %w", id, err)
		}
	} else {
		id, err = r.create(ctx, userID, moduleID, patch)
		if err != nil {
			return nil, err
		}
	}

	forget(ctx, r.cache, cache.UserProgressKey(userID), cache.ModuleProgressKey(userID, moduleID))

	doc, err := r.store.Get(ctx, docstore.UserProgress, id)
	if err != nil {
		return nil, fmt.Errorf("reload progress %s: %w", id, err)
	}
	var p domain.UserProgress
	if err := doc.Decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProgressRepository) create(ctx context.Context, userID, moduleID string, patch map[string]any) (string, error) {
	fields := map[string]any{
		"user_id":             userID,
		"module_id":           moduleID,
		"progress_percentage": 0,
		"time_spent_minutes":  0,
		"completed_at":        nil,
		"created_at":          docstore.ServerTimestamp,
	}
	for k, v := range patch {
		fields[k] = v
	}

	id, err := r.store.CreateUnique(ctx, docstore.UserProgress, progressKey(userID, moduleID), fields)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, docstore.ErrConflict) {
		return "", fmt.Errorf("create progress %s/%s: %w", userID, moduleID, err)
	}

	// Another request created the record first, merge into it instead.
	existing, ferr := r.find(ctx, userID, moduleID)
	if ferr != nil {
		return "", ferr
	}
	if existing == nil {
		return "", fmt.Errorf("progress %s/%s: %w", userID, moduleID, err)
	}
	if err := r.store.Update(ctx, docstore.UserProgress, existing.ID, patch); err != nil {
		return "", fmt.Errorf("update progress %s: %w", existing.ID, err)
	}
	return existing.ID, nil
}

func (r *ProgressRepository) find(ctx context.Context, userID, moduleID string) (*domain.UserProgress, error) {
	docs, err := r.store.Query(ctx, docstore.UserProgress, docstore.Query{
		Filters: []docstore.Filter{
			docstore.Eq("user_id", userID),
			docstore.Eq("module_id", moduleID),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("find progress %s/%s: %w", userID, moduleID, err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	var p domain.UserProgress
	if err := docs[0].Decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

func progressKey(userID, moduleID string) string {
	return userID + ":" + moduleID
}
