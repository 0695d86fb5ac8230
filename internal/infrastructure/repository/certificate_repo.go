package repository

import (
	"context"
	"fmt"

	"github.com/waste3d/training-portal/internal/domain"
	"github.com/waste3d/training-portal/internal/infrastructure/cache"
	"github.com/waste3d/training-portal/internal/infrastructure/docstore"
)

type CertificateRepository struct {
	store docstore.Store
	cache cache.Cache
}

func NewCertificateRepository(store docstore.Store, c cache.Cache) *CertificateRepository {
	return &CertificateRepository{store: store, cache: c}
}

// GetByUser returns the user's certificate, or nil when none was issued yet.
func (r *CertificateRepository) GetByUser(ctx context.Context, userID string) (*domain.Certificate, error) {
	key := cache.CertificateKey(userID)

	var cached domain.Certificate
	if ok, err := r.cache.Get(ctx, key, &cached); err == nil && ok {
		return &cached, nil
	}

	c, err := r.findByUser(ctx, userID)
	if err != nil || c == nil {
		return nil, err
	}
	remember(ctx, r.cache, key, c)
	return c, nil
}

// Create stores the certificate under a unique user key. A second certificate
// for the same user fails with domain.ErrConflict.
func (r *CertificateRepository) Create(ctx context.Context, c *domain.Certificate) (*domain.Certificate, error) {
	fields, err := docstore.Fields(c)
	if err != nil {
		return nil, err
	}
	fields["issued_at"] = docstore.ServerTimestamp
	fields["is_valid"] = true

	id, err := r.store.CreateUnique(ctx, docstore.Certificates, c.UserID, fields)
	if err != nil {
		return nil, fmt.Errorf("create certificate for %s: %w", c.UserID, err)
	}
	forget(ctx, r.cache, cache.CertificateKey(c.UserID))

	doc, err := r.store.Get(ctx, docstore.Certificates, id)
	if err != nil {
		return nil, fmt.Errorf("reload certificate %s: %w", id, err)
	}
	var stored domain.Certificate
	if err := doc.Decode(&stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *CertificateRepository) findByUser(ctx context.Context, userID string) (*domain.Certificate, error) {
	docs, err := r.store.Query(ctx, docstore.Certificates, docstore.Query{
		Filters: []docstore.Filter{docstore.Eq("user_id", userID)},
	})
	if err != nil {
		return nil, fmt.Errorf("find certificate of %s: %w", userID, err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	var c domain.Certificate
	if err := docs[0].Decode(&c); err != nil {
		return nil, err
	}
	return &c, nil
}
