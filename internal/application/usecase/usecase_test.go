package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waste3d/training-portal/internal/domain"
	"github.com/waste3d/training-portal/internal/infrastructure/cache"
	"github.com/waste3d/training-portal/internal/infrastructure/docstore"
	"github.com/waste3d/training-portal/internal/infrastructure/repository"
)

const userID = "user-1234-abcd"

var fixedNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type fakeNotifier struct {
	sent chan string
}

func (n *fakeNotifier) SendCertificateEmail(ctx context.Context, to string, cert *domain.Certificate) error {
	n.sent <- to + " " + cert.CertificateNumber
	return nil
}

type fixture struct {
	store    *docstore.Memory
	cache    *cache.Memory
	progress *repository.ProgressRepository
	profiles *repository.ProfileRepository
	issuer   *CertificateIssuer
	uc       *ProgressUseCase
	notifier *fakeNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := docstore.NewMemory()
	c := cache.NewMemory(cache.DefaultTTL, nil)

	catalog := repository.NewCatalogRepository(store, c)
	progress := repository.NewProgressRepository(store, c)
	certs := repository.NewCertificateRepository(store, c)
	profiles := repository.NewProfileRepository(store, c)
	notifier := &fakeNotifier{sent: make(chan string, 4)}

	issuer := NewCertificateIssuer(catalog, progress, certs, profiles, notifier).
		WithClock(func() time.Time { return fixedNow })
	uc := NewProgressUseCase(catalog, progress, issuer).
		WithClock(func() time.Time { return fixedNow })

	return &fixture{
		store:    store,
		cache:    c,
		progress: progress,
		profiles: profiles,
		issuer:   issuer,
		uc:       uc,
		notifier: notifier,
	}
}

// seedModules stores n active modules m1..mn with order_index 1..n.
func (f *fixture) seedModules(t *testing.T, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		require.NoError(t, f.store.Set(context.Background(), docstore.TrainingModules, fmt.Sprintf("m%d", i), map[string]any{
			"title":            fmt.Sprintf("Module %d", i),
			"order_index":      i,
			"duration_minutes": 30,
			"is_active":        true,
		}))
	}
}

func (f *fixture) markCompleted(t *testing.T, moduleID string, minutes int) {
	t.Helper()
	at := fixedNow.Add(-time.Hour)
	pct := 100.0
	_, err := f.progress.Upsert(context.Background(), userID, moduleID, domain.ProgressUpdate{
		ProgressPercentage: &pct,
		TimeSpentMinutes:   &minutes,
		CompletedAt:        &at,
	})
	require.NoError(t, err)
}

func (f *fixture) certificateCount(t *testing.T) int {
	t.Helper()
	docs, err := f.store.Query(context.Background(), docstore.Certificates, docstore.Query{})
	require.NoError(t, err)
	return len(docs)
}

func ptr[T any](v T) *T { return &v }

// === Выдача сертификата ===

func TestCheckAndIssue_EveryModuleCompleted(t *testing.T) {
	for _, n := range []int{1, 3, 5} {
		t.Run(fmt.Sprintf("%d modules", n), func(t *testing.T) {
			f := newFixture(t)
			f.seedModules(t, n)
			for i := 1; i <= n; i++ {
				f.markCompleted(t, fmt.Sprintf("m%d", i), 30)
			}

			res, err := f.issuer.CheckAndIssue(context.Background(), userID)
			require.NoError(t, err)
			require.Equal(t, domain.IssueIssued, res.Status)
			require.NotNil(t, res.Certificate)
			assert.Equal(t, n, res.Certificate.Data.ModulesCompleted)
			assert.Len(t, res.Certificate.Data.ModulesList, n)
			assert.Equal(t, 1, f.certificateCount(t))
		})
	}
}

func TestCheckAndIssue_EmptyCatalogNeverIssues(t *testing.T) {
	f := newFixture(t)
	f.markCompleted(t, "orphan", 30)

	res, err := f.issuer.CheckAndIssue(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, domain.IssuePending, res.Status)
	assert.Equal(t, 0, res.Remaining)
	assert.Nil(t, res.Certificate)
	assert.Equal(t, 0, f.certificateCount(t))
}

func TestCheckAndIssue_Snapshot(t *testing.T) {
	f := newFixture(t)
	f.seedModules(t, 2)
	f.markCompleted(t, "m1", 50)
	f.markCompleted(t, "m2", 45)
	require.NoError(t, f.profiles.Create(context.Background(), &domain.UserProfile{
		ID:          userID,
		Email:       "ada@example.com",
		DisplayName: "Ada",
		Company:     "Analytical Engines",
	}))

	res, err := f.issuer.CheckAndIssue(context.Background(), userID)
	require.NoError(t, err)
	require.Equal(t, domain.IssueIssued, res.Status)

	cert := res.Certificate
	assert.NotEmpty(t, cert.ID)
	assert.Equal(t, userID, cert.UserID)
	assert.Equal(t, fmt.Sprintf("ACA-%d-USER-123", fixedNow.UnixMilli()), cert.CertificateNumber)
	assert.Equal(t, "Ada", cert.Data.UserName)
	assert.Equal(t, "Analytical Engines", cert.Data.Company)
	assert.Equal(t, 1.6, cert.Data.TotalHours)
	assert.True(t, cert.ExpiresAt.Equal(fixedNow.Add(365*24*time.Hour)))
	assert.True(t, cert.IsValid)
	require.NotNil(t, cert.IssuedAt)

	require.Len(t, cert.Data.ModulesList, 2)
	assert.Equal(t, "Module 1", cert.Data.ModulesList[0].Title)
	assert.Equal(t, 30, cert.Data.ModulesList[0].DurationMinutes)
	require.NotNil(t, cert.Data.ModulesList[0].CompletedDate)
	assert.True(t, cert.Data.ModulesList[0].CompletedDate.Equal(fixedNow.Add(-time.Hour)))

	select {
	case msg := <-f.notifier.sent:
		assert.Equal(t, "ada@example.com "+cert.CertificateNumber, msg)
	case <-time.After(time.Second):
		t.Fatal("certificate e-mail was not sent")
	}
}

func TestCheckAndIssue_DefaultName(t *testing.T) {
	f := newFixture(t)
	f.seedModules(t, 1)
	f.markCompleted(t, "m1", 10)

	res, err := f.issuer.CheckAndIssue(context.Background(), userID)
	require.NoError(t, err)
	require.Equal(t, domain.IssueIssued, res.Status)
	assert.Equal(t, domain.DefaultCertificateName, res.Certificate.Data.UserName)
	assert.Empty(t, res.Certificate.Data.Company)
}

func TestCheckAndIssue_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.seedModules(t, 2)
	f.markCompleted(t, "m1", 10)
	f.markCompleted(t, "m2", 10)

	first, err := f.issuer.CheckAndIssue(context.Background(), userID)
	require.NoError(t, err)
	require.Equal(t, domain.IssueIssued, first.Status)

	second, err := f.issuer.CheckAndIssue(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, domain.IssueAlreadyIssued, second.Status)
	require.NotNil(t, second.Certificate)
	assert.Equal(t, first.Certificate.ID, second.Certificate.ID)
	assert.Equal(t, first.Certificate.CertificateNumber, second.Certificate.CertificateNumber)
	assert.Equal(t, 1, f.certificateCount(t))
}

func TestCheckAndIssue_ConcurrentCompletions(t *testing.T) {
	f := newFixture(t)
	f.seedModules(t, 3)
	for i := 1; i <= 3; i++ {
		f.markCompleted(t, fmt.Sprintf("m%d", i), 10)
	}

	const callers = 8
	results := make([]domain.IssueResult, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.issuer.CheckAndIssue(context.Background(), userID)
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	issued := 0
	for _, r := range results {
		if r.Status == domain.IssueIssued {
			issued++
			continue
		}
		assert.Equal(t, domain.IssueAlreadyIssued, r.Status)
	}
	assert.Equal(t, 1, issued)
	assert.Equal(t, 1, f.certificateCount(t))
}

func TestCheckAndIssue_InactiveModulesDoNotCount(t *testing.T) {
	f := newFixture(t)
	f.seedModules(t, 2)
	require.NoError(t, f.store.Set(context.Background(), docstore.TrainingModules, "retired", map[string]any{
		"title":       "Retired",
		"order_index": 3,
		"is_active":   false,
	}))
	f.markCompleted(t, "m1", 10)
	f.markCompleted(t, "retired", 10)

	res, err := f.issuer.CheckAndIssue(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, domain.IssuePending, res.Status)
	assert.Equal(t, 1, res.Remaining)

	remaining, err := f.issuer.Remaining(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)
}

func TestEligibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	eligible, remaining, err := f.issuer.Eligibility(ctx, userID)
	require.NoError(t, err)
	assert.False(t, eligible, "empty catalog")
	assert.Equal(t, 0, remaining)

	f.seedModules(t, 2)
	require.NoError(t, f.cache.Delete(ctx, cache.ModulesKey()))
	f.markCompleted(t, "m1", 10)
	eligible, remaining, err = f.issuer.Eligibility(ctx, userID)
	require.NoError(t, err)
	assert.False(t, eligible)
	assert.Equal(t, 1, remaining)

	f.markCompleted(t, "m2", 10)
	eligible, remaining, err = f.issuer.Eligibility(ctx, userID)
	require.NoError(t, err)
	assert.True(t, eligible)
	assert.Equal(t, 0, remaining)
	assert.Equal(t, 0, f.certificateCount(t), "eligibility never issues")
}

func TestCheckAndIssue_StoreFailurePropagates(t *testing.T) {
	f := newFixture(t)
	f.seedModules(t, 1)
	f.store.SetFault(docstore.Certificates, fmt.Errorf("unavailable"))

	_, err := f.issuer.CheckAndIssue(context.Background(), userID)
	assert.Error(t, err)
}

// === Прогресс ===

func TestFiveModuleScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedModules(t, 5)
	for i := 1; i <= 4; i++ {
		f.markCompleted(t, fmt.Sprintf("m%d", i), 20)
	}
	_, err := f.uc.Advance(ctx, userID, "m5", 50, 5)
	require.NoError(t, err)

	res, err := f.issuer.CheckAndIssue(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, domain.IssuePending, res.Status)
	assert.Equal(t, 1, res.Remaining)

	done, err := f.uc.Complete(ctx, userID, "m5", 5)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeCertificateIssued, done.Outcome)
	require.NotNil(t, done.Certificate)
	assert.Equal(t, 5, done.Certificate.Data.ModulesCompleted)
	assert.Equal(t, 1.5, done.Certificate.Data.TotalHours)

	retry, err := f.uc.Complete(ctx, userID, "m5", 0)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeCertificateExists, retry.Outcome)
	assert.Equal(t, done.Certificate.ID, retry.Certificate.ID)
	assert.Equal(t, 1, f.certificateCount(t))
}

func TestComplete_ModulesRemaining(t *testing.T) {
	f := newFixture(t)
	f.seedModules(t, 3)

	res, err := f.uc.Complete(context.Background(), userID, "m2", 15)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeModulesRemaining, res.Outcome)
	assert.Equal(t, 2, res.Remaining)
	assert.Nil(t, res.Certificate)
	require.NotNil(t, res.Progress)
	assert.Equal(t, 100.0, res.Progress.ProgressPercentage)
	assert.Equal(t, 15, res.Progress.TimeSpentMinutes)
	assert.True(t, res.Progress.Completed())
}

func TestComplete_KeepsFirstCompletionTime(t *testing.T) {
	f := newFixture(t)
	f.seedModules(t, 2)
	ctx := context.Background()

	first, err := f.uc.Complete(ctx, userID, "m1", 5)
	require.NoError(t, err)

	f.uc.WithClock(func() time.Time { return fixedNow.Add(24 * time.Hour) })
	second, err := f.uc.Complete(ctx, userID, "m1", 5)
	require.NoError(t, err)

	require.NotNil(t, second.Progress.CompletedAt)
	assert.True(t, second.Progress.CompletedAt.Equal(*first.Progress.CompletedAt))
	assert.True(t, second.Progress.CompletedAt.Equal(fixedNow))
	assert.Equal(t, 10, second.Progress.TimeSpentMinutes)
}

func TestAdvance(t *testing.T) {
	f := newFixture(t)
	f.seedModules(t, 1)
	ctx := context.Background()

	res, err := f.uc.Advance(ctx, userID, "m1", 10, 5)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeAdvanced, res.Outcome)
	assert.Equal(t, 10.0, res.Progress.ProgressPercentage)
	assert.Equal(t, 5, res.Progress.TimeSpentMinutes)
	assert.Nil(t, res.Progress.CompletedAt)
	assert.NotNil(t, res.Progress.CreatedAt)

	res, err = f.uc.Advance(ctx, userID, "m1", 60, 5)
	require.NoError(t, err)
	assert.Equal(t, 60.0, res.Progress.ProgressPercentage)
	assert.Equal(t, 10, res.Progress.TimeSpentMinutes)

	// percentage never moves backwards
	res, err = f.uc.Advance(ctx, userID, "m1", 20, 5)
	require.NoError(t, err)
	assert.Equal(t, 60.0, res.Progress.ProgressPercentage)
	assert.Equal(t, 15, res.Progress.TimeSpentMinutes)

	all, err := f.uc.GetUserProgress(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, all, 1, "one record per user and module")
	assert.Equal(t, 0, f.certificateCount(t))
}

func TestAdvance_ConcurrentInteractions(t *testing.T) {
	f := newFixture(t)
	f.seedModules(t, 1)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 1; i <= 10; i++ {
		wg.Add(1)
		go func(pct float64) {
			defer wg.Done()
			_, err := f.uc.Advance(ctx, userID, "m1", pct, 3)
			assert.NoError(t, err)
		}(float64(i * 5))
	}
	wg.Wait()

	p, err := f.uc.GetModuleProgress(ctx, userID, "m1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 30, p.TimeSpentMinutes, "no minutes lost")
	assert.Equal(t, 50.0, p.ProgressPercentage)

	all, err := f.uc.GetUserProgress(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestAdvance_Rejects(t *testing.T) {
	f := newFixture(t)
	f.seedModules(t, 1)
	ctx := context.Background()

	_, err := f.uc.Advance(ctx, userID, "missing", 10, 5)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.uc.Advance(ctx, userID, "m1", 120, 5)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.uc.Advance(ctx, userID, "m1", 10, -1)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.uc.Complete(ctx, "", "m1", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestUpdateUserProgress_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.uc.UpdateUserProgress(ctx, userID, "m1", domain.ProgressUpdate{ProgressPercentage: ptr(101.0)})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, _, err = f.uc.UpdateUserProgress(ctx, userID, "m1", domain.ProgressUpdate{TimeSpentMinutes: ptr(-5)})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, _, err = f.uc.UpdateUserProgress(ctx, userID, "", domain.ProgressUpdate{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestUpdateUserProgress_Merge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	done := fixedNow.Add(-time.Hour)

	_, res, err := f.uc.UpdateUserProgress(ctx, userID, "m1", domain.ProgressUpdate{
		ProgressPercentage: ptr(100.0),
		TimeSpentMinutes:   ptr(20),
		CompletedAt:        &done,
	})
	require.NoError(t, err)
	require.NotNil(t, res, "completion runs the certificate check")
	assert.Equal(t, domain.IssuePending, res.Status)

	p, res, err := f.uc.UpdateUserProgress(ctx, userID, "m1", domain.ProgressUpdate{TimeSpentMinutes: ptr(35)})
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, 35, p.TimeSpentMinutes)
	assert.Equal(t, 100.0, p.ProgressPercentage)
	require.NotNil(t, p.CompletedAt)
	assert.True(t, p.CompletedAt.Equal(done))
}

func TestUpdateUserProgress_CreatesWithDefaults(t *testing.T) {
	f := newFixture(t)

	p, _, err := f.uc.UpdateUserProgress(context.Background(), userID, "m1", domain.ProgressUpdate{TimeSpentMinutes: ptr(5)})
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, userID, p.UserID)
	assert.Equal(t, "m1", p.ModuleID)
	assert.Equal(t, 0.0, p.ProgressPercentage)
	assert.Equal(t, 5, p.TimeSpentMinutes)
	assert.Nil(t, p.CompletedAt)
	assert.NotNil(t, p.CreatedAt)
	assert.NotNil(t, p.UpdatedAt)
}

func TestModuleProgress_FreshAfterWrite(t *testing.T) {
	f := newFixture(t)
	f.seedModules(t, 1)
	ctx := context.Background()

	p, err := f.uc.GetModuleProgress(ctx, userID, "m1")
	require.NoError(t, err)
	assert.Nil(t, p, "never touched module")

	_, err = f.uc.Advance(ctx, userID, "m1", 10, 5)
	require.NoError(t, err)
	p, err = f.uc.GetModuleProgress(ctx, userID, "m1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 10.0, p.ProgressPercentage)

	// now cached; the next write must evict it
	_, err = f.uc.Advance(ctx, userID, "m1", 40, 5)
	require.NoError(t, err)
	p, err = f.uc.GetModuleProgress(ctx, userID, "m1")
	require.NoError(t, err)
	assert.Equal(t, 40.0, p.ProgressPercentage)

	all, err := f.uc.GetUserProgress(ctx, userID)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 40.0, all[0].ProgressPercentage)
}
