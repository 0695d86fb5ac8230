package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/waste3d/training-portal/internal/domain"
	"github.com/waste3d/training-portal/internal/infrastructure/repository"
)

const completePercentage = 100

type ProgressUseCase struct {
	catalog  *repository.CatalogRepository
	progress *repository.ProgressRepository
	issuer   *CertificateIssuer
	validate *validator.Validate
	now      func() time.Time
}

func NewProgressUseCase(cr *repository.CatalogRepository, pr *repository.ProgressRepository, issuer *CertificateIssuer) *ProgressUseCase {
	return &ProgressUseCase{
		catalog:  cr,
		progress: pr,
		issuer:   issuer,
		validate: validator.New(),
		now:      time.Now,
	}
}

func (uc *ProgressUseCase) WithClock(now func() time.Time) *ProgressUseCase {
	uc.now = now
	return uc
}

func (uc *ProgressUseCase) GetUserProgress(ctx context.Context, userID string) ([]domain.UserProgress, error) {
	return uc.progress.GetUserProgress(ctx, userID)
}

func (uc *ProgressUseCase) GetModuleProgress(ctx context.Context, userID, moduleID string) (*domain.UserProgress, error) {
	return uc.progress.GetModuleProgress(ctx, userID, moduleID)
}

// UpdateUserProgress merges upd into the (user, module) record. When the
// update marks the module complete, the certificate check runs after the
// write and its result is returned alongside the record.
func (uc *ProgressUseCase) UpdateUserProgress(ctx context.Context, userID, moduleID string, upd domain.ProgressUpdate) (*domain.UserProgress, *domain.IssueResult, error) {
	if userID == "" || moduleID == "" {
		return nil, nil, fmt.Errorf("%w: user and module are required", domain.ErrInvalidInput)
	}
	if err := uc.validate.Struct(upd); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	p, err := uc.progress.Upsert(ctx, userID, moduleID, upd)
	if err != nil {
		return nil, nil, err
	}
	if !upd.Completes() {
		return p, nil, nil
	}

	res, err := uc.issuer.CheckAndIssue(ctx, userID)
	if err != nil {
		return p, nil, fmt.Errorf("check certificate for %s: %w", userID, err)
	}
	return p, &res, nil
}

// Advance records an interaction with a module: the percentage never moves
// backwards and minutes are added to the time already spent.
func (uc *ProgressUseCase) Advance(ctx context.Context, userID, moduleID string, percent float64, minutes int) (domain.ReconcileResult, error) {
	if percent < 0 || percent > completePercentage || minutes < 0 {
		return domain.ReconcileResult{}, fmt.Errorf("%w: percent %v, minutes %d", domain.ErrInvalidInput, percent, minutes)
	}
	if _, err := uc.current(ctx, userID, moduleID); err != nil {
		return domain.ReconcileResult{}, err
	}

	p, _, err := uc.UpdateUserProgress(ctx, userID, moduleID, domain.ProgressUpdate{
		RaisePercentageTo: &percent,
		AddMinutes:        minutes,
	})
	if err != nil {
		return domain.ReconcileResult{}, err
	}
	return domain.ReconcileResult{Outcome: domain.OutcomeAdvanced, Progress: p}, nil
}

// Complete marks the module done and runs the certificate check. Completing
// an already completed module keeps the first completion time and still
// reports where the certificate stands.
func (uc *ProgressUseCase) Complete(ctx context.Context, userID, moduleID string, minutes int) (domain.ReconcileResult, error) {
	if minutes < 0 {
		return domain.ReconcileResult{}, fmt.Errorf("%w: minutes %d", domain.ErrInvalidInput, minutes)
	}
	current, err := uc.current(ctx, userID, moduleID)
	if err != nil {
		return domain.ReconcileResult{}, err
	}

	completedAt := uc.now().UTC()
	if current != nil && current.CompletedAt != nil {
		completedAt = *current.CompletedAt
	}
	pct := float64(completePercentage)

	p, res, err := uc.UpdateUserProgress(ctx, userID, moduleID, domain.ProgressUpdate{
		ProgressPercentage: &pct,
		AddMinutes:         minutes,
		CompletedAt:        &completedAt,
	})
	if err != nil {
		return domain.ReconcileResult{Progress: p}, err
	}

	out := domain.ReconcileResult{Progress: p, Certificate: res.Certificate, Remaining: res.Remaining}
	switch res.Status {
	case domain.IssueIssued:
		out.Outcome = domain.OutcomeCertificateIssued
	case domain.IssueAlreadyIssued:
		out.Outcome = domain.OutcomeCertificateExists
	default:
		out.Outcome = domain.OutcomeModulesRemaining
	}
	return out, nil
}

// current loads the existing record after checking the module exists.
func (uc *ProgressUseCase) current(ctx context.Context, userID, moduleID string) (*domain.UserProgress, error) {
	if userID == "" || moduleID == "" {
		return nil, fmt.Errorf("%w: user and module are required", domain.ErrInvalidInput)
	}
	if _, err := uc.catalog.GetModule(ctx, moduleID); err != nil {
		return nil, err
	}
	return uc.progress.GetModuleProgress(ctx, userID, moduleID)
}
