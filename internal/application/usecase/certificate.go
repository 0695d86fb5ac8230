package usecase

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/waste3d/training-portal/internal/domain"
	"github.com/waste3d/training-portal/internal/infrastructure/repository"
)

const notifyTimeout = 30 * time.Second

// CertificateNotifier delivers the "certificate issued" message.
type CertificateNotifier interface {
	SendCertificateEmail(ctx context.Context, toEmail string, cert *domain.Certificate) error
}

type CertificateIssuer struct {
	catalog  *repository.CatalogRepository
	progress *repository.ProgressRepository
	certs    *repository.CertificateRepository
	profiles *repository.ProfileRepository
	notifier CertificateNotifier
	now      func() time.Time
}

func NewCertificateIssuer(
	cr *repository.CatalogRepository,
	pr *repository.ProgressRepository,
	cer *repository.CertificateRepository,
	prof *repository.ProfileRepository,
	n CertificateNotifier,
) *CertificateIssuer {
	return &CertificateIssuer{
		catalog:  cr,
		progress: pr,
		certs:    cer,
		profiles: prof,
		notifier: n,
		now:      time.Now,
	}
}

func (i *CertificateIssuer) WithClock(now func() time.Time) *CertificateIssuer {
	i.now = now
	return i
}

func (i *CertificateIssuer) GetUserCertificate(ctx context.Context, userID string) (*domain.Certificate, error) {
	return i.certs.GetByUser(ctx, userID)
}

// tally is the user's standing against the active catalog.
type tally struct {
	modules      []domain.TrainingModule
	completedAt  map[string]*time.Time
	completed    int
	totalMinutes int
}

func (t tally) remaining() int { return len(t.modules) - t.completed }

func (t tally) eligible() bool { return len(t.modules) > 0 && t.completed >= len(t.modules) }

func (i *CertificateIssuer) tally(ctx context.Context, userID string) (tally, error) {
	listing, err := i.catalog.ListActiveModules(ctx)
	if err != nil {
		return tally{}, err
	}
	records, err := i.progress.GetUserProgress(ctx, userID)
	if err != nil {
		return tally{}, err
	}

	t := tally{modules: listing.Items, completedAt: make(map[string]*time.Time, len(records))}
	for _, p := range records {
		t.totalMinutes += p.TimeSpentMinutes
		if p.Completed() {
			t.completedAt[p.ModuleID] = p.CompletedAt
		}
	}
	// only modules still in the active catalog count
	for _, m := range t.modules {
		if _, ok := t.completedAt[m.ID]; ok {
			t.completed++
		}
	}
	return t, nil
}

// Remaining reports how many active modules the user still has to complete,
// without issuing anything.
func (i *CertificateIssuer) Remaining(ctx context.Context, userID string) (int, error) {
	t, err := i.tally(ctx, userID)
	if err != nil {
		return 0, err
	}
	return t.remaining(), nil
}

// Eligibility reports whether the user may be issued a certificate now and how
// many active modules are left. An empty catalog is never eligible.
func (i *CertificateIssuer) Eligibility(ctx context.Context, userID string) (bool, int, error) {
	t, err := i.tally(ctx, userID)
	if err != nil {
		return false, 0, err
	}
	return t.eligible(), t.remaining(), nil
}

// CheckAndIssue issues the user's certificate once every active module is
// completed. It is safe to call repeatedly and concurrently: at most one
// certificate per user is ever stored.
func (i *CertificateIssuer) CheckAndIssue(ctx context.Context, userID string) (domain.IssueResult, error) {
	existing, err := i.certs.GetByUser(ctx, userID)
	if err != nil {
		return domain.IssueResult{}, err
	}
	if existing != nil {
		return domain.IssueResult{Status: domain.IssueAlreadyIssued, Certificate: existing}, nil
	}

	t, err := i.tally(ctx, userID)
	if err != nil {
		return domain.IssueResult{}, err
	}
	if !t.eligible() {
		return domain.IssueResult{Status: domain.IssuePending, Remaining: t.remaining()}, nil
	}

	profile, err := i.profiles.GetByID(ctx, userID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return domain.IssueResult{}, err
	}

	stored, err := i.certs.Create(ctx, i.build(userID, profile, t))
	if errors.Is(err, domain.ErrConflict) {
		// lost the race to a concurrent completion
		winner, gerr := i.certs.GetByUser(ctx, userID)
		if gerr != nil {
			return domain.IssueResult{}, gerr
		}
		return domain.IssueResult{Status: domain.IssueAlreadyIssued, Certificate: winner}, nil
	}
	if err != nil {
		return domain.IssueResult{}, err
	}

	log.Printf("certificate %s issued to %s", stored.CertificateNumber, userID)
	if profile != nil && profile.Email != "" {
		i.notify(profile.Email, stored)
	}
	return domain.IssueResult{Status: domain.IssueIssued, Certificate: stored}, nil
}

func (i *CertificateIssuer) build(userID string, profile *domain.UserProfile, t tally) *domain.Certificate {
	now := i.now().UTC()

	list := make([]domain.CertificateModule, 0, len(t.modules))
	for _, m := range t.modules {
		list = append(list, domain.CertificateModule{
			Title:           m.Title,
			DurationMinutes: m.DurationMinutes,
			CompletedDate:   t.completedAt[m.ID],
		})
	}
	company := ""
	if profile != nil {
		company = profile.Company
	}

	return &domain.Certificate{
		UserID:            userID,
		CertificateNumber: domain.CertificateNumber(now, userID),
		Data: domain.CertificateData{
			UserName:         profile.CertificateName(),
			Company:          company,
			CompletionDate:   now,
			ModulesCompleted: len(t.modules),
			TotalHours:       domain.TrainingHours(t.totalMinutes),
			ModulesList:      list,
		},
		ExpiresAt: now.Add(domain.CertificateValidity),
		IsValid:   true,
	}
}

func (i *CertificateIssuer) notify(to string, cert *domain.Certificate) {
	if i.notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := i.notifier.SendCertificateEmail(ctx, to, cert); err != nil {
			log.Printf("certificate %s: send email to %s: %v", cert.CertificateNumber, to, err)
		}
	}()
}
