package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"fundingportal/internal/draftqueue"
	"fundingportal/internal/metrics"
	"fundingportal/internal/repository"
	"fundingportal/internal/storage"
	"fundingportal/internal/testutil"
	"fundingportal/internal/validation"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// testClock starts at a fixed instant and ticks one millisecond per read.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type sentEvent struct {
	UserID string
	Event  Event
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []sentEvent
}

func (n *recordingNotifier) NotifyUser(userID string, message []byte) {
	var ev Event
	_ = json.Unmarshal(message, &ev)
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, sentEvent{UserID: userID, Event: ev})
}

func (n *recordingNotifier) all() []sentEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentEvent(nil), n.events...)
}

type testEnv struct {
	db       *gorm.DB
	clock    *testClock
	notifier *recordingNotifier
	metrics  *metrics.Metrics
	fs       afero.Fs

	tx    repository.TransactionManager
	users repository.UserRepository
	apps  repository.ApplicationRepository
	docs  repository.DocumentRepository
	audit repository.AuditRepository

	validator *validation.Validator
	queue     *draftqueue.Queue
	opts      Options

	auth      AuthService
	configs   ConfigService
	wizard    ApplicationService
	documents DocumentService
	dashboard DashboardService
	review    ReviewService
	profiles  ProfileService
}

const testAdminPhone = "+33700000001"

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.OpenTestDB(t)

	e := &testEnv{
		db:       db,
		clock:    newTestClock(),
		notifier: &recordingNotifier{},
		metrics:  metrics.New(),
		fs:       afero.NewMemMapFs(),
		tx:       repository.NewTransactionManager(db),
		users:    repository.NewUserRepository(db),
		apps:     repository.NewApplicationRepository(db),
		docs:     repository.NewDocumentRepository(db),
		audit:    repository.NewAuditRepository(db),
		queue:    draftqueue.New(),
	}
	e.validator = validation.New(validation.WithClock(e.clock.Now))
	e.opts = Options{Logger: zerolog.Nop(), Metrics: e.metrics, Notifier: e.notifier, Now: e.clock.Now}

	e.configs = NewConfigService(repository.NewConfigRepository(db), validation.DefaultMaxUploadSize)
	e.auth = NewAuthService(e.tx, e.users, repository.NewSessionRepository(db), e.apps, e.audit, e.validator, AuthConfig{
		Secret:            []byte("test-secret"),
		SessionTTL:        time.Hour,
		PINMaxAge:         90 * 24 * time.Hour,
		MaxFailedAttempts: 3,
		AdminPhones:       []string{testAdminPhone},
		BcryptCost:        bcrypt.MinCost,
	}, e.opts)
	e.wizard = NewApplicationService(e.tx, e.apps, e.audit, e.configs, e.queue, e.validator, e.opts)
	e.documents = NewDocumentService(e.tx, e.apps, e.docs, e.audit, storage.NewFSStore(e.fs), e.validator, validation.DefaultMaxUploadSize, e.opts)
	e.dashboard = NewDashboardService(e.apps, e.docs, e.configs, e.opts)
	e.review = NewReviewService(e.tx, e.apps, e.audit, e.queue, e.opts)
	e.profiles = NewProfileService(e.tx, e.users, e.audit, e.validator, e.opts)
	return e
}

// register creates a user and returns its id.
func (e *testEnv) register(t *testing.T, phone string) uuid.UUID {
	t.Helper()
	resp, err := e.auth.Register(context.Background(), RegisterRequest{PhoneNumber: phone})
	require.NoError(t, err)
	return resp.UserID
}

func validPersonalInfo() validation.PersonalInfo {
	return validation.PersonalInfo{
		FirstName:   "Jean",
		LastName:    "Dupont",
		DateOfBirth: "1990-03-10",
		Gender:      "male",
	}
}

func validFinancialDetails() validation.FinancialDetails {
	income := decimal.NewFromInt(3500)
	return validation.FinancialDetails{
		Email:              "Jean.Dupont@Example.com",
		ResidentialAddress: "12 rue de la Paix, Paris",
		CountryOfResidence: "France",
		FundingType:        "business_creation",
		FundingReason:      "Open a bakery in my neighbourhood",
		Profession:         "Baker",
		MonthlyIncome:      &income,
	}
}

// submitted walks a fresh user through steps 0 to 2.
func (e *testEnv) submitted(t *testing.T, userID uuid.UUID) *ApplicationResponse {
	t.Helper()
	ctx := context.Background()
	created, err := e.wizard.StartDraft(ctx, userID, CreateApplicationRequest{FundingAmount: decimal.NewFromInt(5000)})
	require.NoError(t, err)
	_, err = e.wizard.SavePersonalInfo(ctx, userID, created.Application.ID, validPersonalInfo())
	require.NoError(t, err)
	res, err := e.wizard.Submit(ctx, userID, created.Application.ID, validFinancialDetails())
	require.NoError(t, err)
	return res.Application
}
