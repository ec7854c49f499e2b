package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/nakama/internal/activity"
	"github.com/hitoshi/nakama/internal/mail"
	"github.com/hitoshi/nakama/internal/metrics"
	"github.com/hitoshi/nakama/internal/model"
	"github.com/hitoshi/nakama/internal/repository"
	"github.com/hitoshi/nakama/internal/security"
)

// --- モック定義 ---

type mockAccountRepo struct {
	mu       sync.Mutex
	accounts map[string]*model.Account

	createFn func(ctx context.Context, a *model.Account) error
}

func newMockAccountRepo() *mockAccountRepo {
	return &mockAccountRepo{accounts: map[string]*model.Account{}}
}

func (m *mockAccountRepo) Create(ctx context.Context, a *model.Account) error {
	if m.createFn != nil {
		return m.createFn(ctx, a)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.accounts {
		if existing.Email == a.Email {
			return repository.ErrDuplicateEmail
		}
	}
	cp := *a
	m.accounts[a.ID] = &cp
	return nil
}

func (m *mockAccountRepo) FindByID(_ context.Context, id string) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.accounts[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, nil
}

func (m *mockAccountRepo) FindByEmail(_ context.Context, email string) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Email == email {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockAccountRepo) UpdatePassword(_ context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return errors.New("account not found")
	}
	a.PasswordHash = hash
	return nil
}

func (m *mockAccountRepo) DeleteByID(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.accounts, id)
	return nil
}

type mockProfileRepo struct {
	setFn    func(ctx context.Context, p *model.Profile) error
	profiles map[string]*model.Profile
}

func (m *mockProfileRepo) FindByID(_ context.Context, id string) (*model.Profile, error) {
	return m.profiles[id], nil
}

func (m *mockProfileRepo) Set(ctx context.Context, p *model.Profile) error {
	if m.setFn != nil {
		return m.setFn(ctx, p)
	}
	if m.profiles == nil {
		m.profiles = map[string]*model.Profile{}
	}
	m.profiles[p.ID] = p
	return nil
}

func (m *mockProfileRepo) Update(context.Context, string, model.ProfileUpdate) (bool, error) {
	return false, nil
}

func (m *mockProfileRepo) AddCommunity(context.Context, string, string) (bool, error) {
	return false, nil
}

func (m *mockProfileRepo) RemoveCommunity(context.Context, string, string) (bool, error) {
	return false, nil
}

type mockSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*model.Session

	deletedUsers []string
}

func newMockSessionRepo() *mockSessionRepo {
	return &mockSessionRepo{sessions: map[string]*model.Session{}}
}

func (m *mockSessionRepo) Create(_ context.Context, s *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

func (m *mockSessionRepo) FindByID(_ context.Context, id string) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id], nil
}

func (m *mockSessionRepo) DeleteByID(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *mockSessionRepo) DeleteByUserID(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletedUsers = append(m.deletedUsers, userID)
	for id, s := range m.sessions {
		if s.UserID == userID {
			delete(m.sessions, id)
		}
	}
	return nil
}

type mockSender struct {
	sent []mail.Message
	err  error
}

func (m *mockSender) Send(_ context.Context, msg mail.Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type recordedActivity struct {
	userID, action string
}

type mockRecorder struct {
	records []recordedActivity
}

func (m *mockRecorder) Record(_ context.Context, userID, action string, _ map[string]string) {
	m.records = append(m.records, recordedActivity{userID: userID, action: action})
}

// --- compile-time interface checks ---
var (
	_ repository.AccountRepository = (*mockAccountRepo)(nil)
	_ repository.ProfileRepository = (*mockProfileRepo)(nil)
	_ repository.SessionRepository = (*mockSessionRepo)(nil)
	_ mail.Sender                  = (*mockSender)(nil)
	_ activity.Recorder            = (*mockRecorder)(nil)
)

type testEnv struct {
	svc      *Service
	accounts *mockAccountRepo
	profiles *mockProfileRepo
	sessions *mockSessionRepo
	mailer   *mockSender
	recorder *mockRecorder
}

const testSecret = "test-session-secret-32bytes-long!"

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		accounts: newMockAccountRepo(),
		profiles: &mockProfileRepo{},
		sessions: newMockSessionRepo(),
		mailer:   &mockSender{},
		recorder: &mockRecorder{},
	}
	env.svc = NewService(
		env.accounts, env.profiles, env.sessions, env.mailer, security.NewTextSanitizer(), env.recorder,
		metrics.NewCollector(prometheus.NewRegistry()),
		ServiceConfig{
			SessionMaxAge: 3600,
			ResetTokenTTL: time.Hour,
			ResetSecret:   []byte(testSecret),
			BaseURL:       "http://localhost:8080/",
			BcryptCost:    bcrypt.MinCost,
		},
	)
	return env
}

func assertAPIErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError with code %s, got %v", code, err)
	}
	if apiErr.Code != code {
		t.Fatalf("error code = %s, want %s", apiErr.Code, code)
	}
}
