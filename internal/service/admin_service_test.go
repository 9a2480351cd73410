package service_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smallbiznis/valora-admin/internal/config"
	"github.com/smallbiznis/valora-admin/internal/domain"
	"github.com/smallbiznis/valora-admin/internal/jwt"
	"github.com/smallbiznis/valora-admin/internal/service"
)

func newTestService(t *testing.T) (*service.AdminService, *memoryAdminRepo, *memoryCodeStore, *captureMailer, *memoryFileStore, *jwt.Generator) {
	t.Helper()
	repo := newMemoryAdminRepo()
	codes := newMemoryCodeStore()
	mailer := &captureMailer{}
	files := newMemoryFileStore()
	tokens := jwt.NewGenerator([]byte("test-secret-test-secret-test-sec"), "valora-admin", time.Minute, time.Hour)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	cfg := config.Config{
		OTPTTL:          2 * time.Minute,
		MailTimeout:     time.Second,
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
	}
	svc := service.NewAdminService(repo, codes, mailer, files, tokens, node, cfg, zap.NewNop())
	return svc, repo, codes, mailer, files, tokens
}

func seedAdmin(t *testing.T, svc *service.AdminService, email, pw string) domain.Admin {
	t.Helper()
	admin, err := svc.Create(context.Background(), email, pw, nil)
	require.NoError(t, err)
	return admin
}

func requireServiceError(t *testing.T, err error, status int) *service.Error {
	t.Helper()
	var svcErr *service.Error
	require.ErrorAs(t, err, &svcErr)
	require.Equal(t, status, svcErr.Status)
	return svcErr
}

func TestCreateWithoutFilesReturnsAdmin(t *testing.T) {
	svc, repo, _, _, _, _ := newTestService(t)

	admin, err := svc.Create(context.Background(), "A@X.com", "password123", nil)
	require.NoError(t, err)
	require.NotZero(t, admin.ID)
	require.Equal(t, "a@x.com", admin.Email)
	require.Equal(t, domain.RoleAdmin, admin.Role)
	require.True(t, admin.IsActive)
	require.Empty(t, admin.Images)
	require.Len(t, repo.all(), 1)
}

func TestCreateWithFilesPersistsImages(t *testing.T) {
	svc, repo, _, _, files, _ := newTestService(t)

	uploads := []service.FileUpload{
		{Filename: "one.png", Content: bytes.NewReader([]byte("one"))},
		{Filename: "two.jpg", Content: bytes.NewReader([]byte("two"))},
	}
	admin, err := svc.Create(context.Background(), "a@x.com", "password123", uploads)
	require.NoError(t, err)
	require.Len(t, admin.Images, 2)
	require.Len(t, files.stored(), 2)
	require.Len(t, repo.all()[0].Images, 2)
}

func TestCreateDuplicateEmailConflict(t *testing.T) {
	svc, repo, _, _, files, _ := newTestService(t)
	seedAdmin(t, svc, "a@x.com", "password123")

	_, err := svc.Create(context.Background(), "a@x.com", "password456",
		[]service.FileUpload{{Filename: "p.png", Content: bytes.NewReader([]byte("p"))}})
	requireServiceError(t, err, http.StatusConflict)

	require.Len(t, repo.all(), 1)
	require.Empty(t, repo.all()[0].Images)
	require.Empty(t, files.stored())
}

func TestCreateRollsBackFilesOnStorageFailure(t *testing.T) {
	svc, repo, _, _, files, _ := newTestService(t)
	files.failAfter = 1

	uploads := []service.FileUpload{
		{Filename: "one.png", Content: bytes.NewReader([]byte("one"))},
		{Filename: "two.png", Content: bytes.NewReader([]byte("two"))},
	}
	_, err := svc.Create(context.Background(), "a@x.com", "password123", uploads)
	require.Error(t, err)

	require.Empty(t, repo.all(), "no account row may survive a partial upload")
	require.Empty(t, files.stored(), "the stored file must be discarded again")
}

func TestCreateRollsBackFilesOnRepoFailure(t *testing.T) {
	svc, repo, _, _, files, _ := newTestService(t)
	repo.createErr = errors.New("insert failed")

	uploads := []service.FileUpload{{Filename: "one.png", Content: bytes.NewReader([]byte("one"))}}
	_, err := svc.Create(context.Background(), "a@x.com", "password123", uploads)
	require.Error(t, err)
	require.Empty(t, repo.all())
	require.Empty(t, files.stored())
}

func TestSignInSendsAndCachesOTP(t *testing.T) {
	svc, _, codes, mailer, _, _ := newTestService(t)
	seedAdmin(t, svc, "a@x.com", "password123")

	require.NoError(t, svc.SignIn(context.Background(), "a@x.com", "password123"))

	require.Equal(t, "a@x.com", mailer.lastEmail)
	require.Len(t, mailer.lastCode, 6)
	cached, ok, err := codes.Get(context.Background(), "a@x.com")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, mailer.lastCode, cached)
}

func TestSignInUnknownEmailAndWrongPasswordLookIdentical(t *testing.T) {
	svc, _, _, _, _, _ := newTestService(t)
	seedAdmin(t, svc, "a@x.com", "password123")

	errUnknown := svc.SignIn(context.Background(), "nobody@x.com", "password123")
	errWrongPw := svc.SignIn(context.Background(), "a@x.com", "not-the-password")

	first := requireServiceError(t, errUnknown, http.StatusBadRequest)
	second := requireServiceError(t, errWrongPw, http.StatusBadRequest)
	require.Equal(t, first.Message, second.Message)
}

func TestSignInDeactivatedAccountRejected(t *testing.T) {
	svc, _, _, _, _, _ := newTestService(t)
	admin := seedAdmin(t, svc, "a@x.com", "password123")
	_, err := svc.UpdateStatus(context.Background(), admin.ID, false)
	require.NoError(t, err)

	err = svc.SignIn(context.Background(), "a@x.com", "password123")
	requireServiceError(t, err, http.StatusForbidden)
}

func TestSignInMailFailureAbortsFlow(t *testing.T) {
	svc, _, codes, mailer, _, _ := newTestService(t)
	seedAdmin(t, svc, "a@x.com", "password123")
	mailer.err = errors.New("smtp timeout")

	err := svc.SignIn(context.Background(), "a@x.com", "password123")
	require.Error(t, err)

	_, ok, getErr := codes.Get(context.Background(), "a@x.com")
	require.NoError(t, getErr)
	require.False(t, ok, "no OTP may be cached when delivery failed")
}

func TestConfirmSignInRoundTrip(t *testing.T) {
	svc, _, _, mailer, _, tokens := newTestService(t)
	admin := seedAdmin(t, svc, "a@x.com", "password123")

	require.NoError(t, svc.SignIn(context.Background(), "a@x.com", "password123"))

	pair, err := svc.ConfirmSignIn(context.Background(), "a@x.com", mailer.lastCode)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	claims, err := tokens.VerifyAccessToken(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, admin.ID, claims.AdminID)
	require.Equal(t, domain.RoleAdmin, claims.Role)
}

func TestConfirmSignInWrongOTP(t *testing.T) {
	svc, _, _, mailer, _, _ := newTestService(t)
	seedAdmin(t, svc, "a@x.com", "password123")
	require.NoError(t, svc.SignIn(context.Background(), "a@x.com", "password123"))

	wrong := "000000"
	if mailer.lastCode == wrong {
		wrong = "000001"
	}
	_, err := svc.ConfirmSignIn(context.Background(), "a@x.com", wrong)
	requireServiceError(t, err, http.StatusBadRequest)
}

func TestConfirmSignInExpiredOTP(t *testing.T) {
	svc, _, codes, mailer, _, _ := newTestService(t)
	seedAdmin(t, svc, "a@x.com", "password123")
	require.NoError(t, svc.SignIn(context.Background(), "a@x.com", "password123"))

	codes.expire("a@x.com")

	_, err := svc.ConfirmSignIn(context.Background(), "a@x.com", mailer.lastCode)
	requireServiceError(t, err, http.StatusBadRequest)
}

func TestSecondOTPInvalidatesFirst(t *testing.T) {
	svc, _, _, mailer, _, _ := newTestService(t)
	seedAdmin(t, svc, "a@x.com", "password123")

	require.NoError(t, svc.SignIn(context.Background(), "a@x.com", "password123"))
	first := mailer.lastCode
	require.NoError(t, svc.SignIn(context.Background(), "a@x.com", "password123"))
	second := mailer.lastCode

	if first != second {
		_, err := svc.ConfirmSignIn(context.Background(), "a@x.com", first)
		requireServiceError(t, err, http.StatusBadRequest)
	}
	_, err := svc.ConfirmSignIn(context.Background(), "a@x.com", second)
	require.NoError(t, err)
}

func TestConfirmedOTPIsSingleUse(t *testing.T) {
	svc, _, _, mailer, _, _ := newTestService(t)
	seedAdmin(t, svc, "a@x.com", "password123")
	require.NoError(t, svc.SignIn(context.Background(), "a@x.com", "password123"))

	_, err := svc.ConfirmSignIn(context.Background(), "a@x.com", mailer.lastCode)
	require.NoError(t, err)

	_, err = svc.ConfirmSignIn(context.Background(), "a@x.com", mailer.lastCode)
	requireServiceError(t, err, http.StatusBadRequest)
}

func TestRefreshTokenIssuesNewAccessToken(t *testing.T) {
	svc, _, _, mailer, _, tokens := newTestService(t)
	admin := seedAdmin(t, svc, "a@x.com", "password123")
	require.NoError(t, svc.SignIn(context.Background(), "a@x.com", "password123"))
	pair, err := svc.ConfirmSignIn(context.Background(), "a@x.com", mailer.lastCode)
	require.NoError(t, err)

	access, err := svc.RefreshToken(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	claims, err := tokens.VerifyAccessToken(access)
	require.NoError(t, err)
	require.Equal(t, admin.ID, claims.AdminID)
}

func TestRefreshTokenRejectsGarbage(t *testing.T) {
	svc, _, _, _, _, _ := newTestService(t)

	_, err := svc.RefreshToken(context.Background(), "not-a-token")
	requireServiceError(t, err, http.StatusUnauthorized)
}

func TestSignOutValidatesToken(t *testing.T) {
	svc, _, _, mailer, _, _ := newTestService(t)
	seedAdmin(t, svc, "a@x.com", "password123")
	require.NoError(t, svc.SignIn(context.Background(), "a@x.com", "password123"))
	pair, err := svc.ConfirmSignIn(context.Background(), "a@x.com", mailer.lastCode)
	require.NoError(t, err)

	require.NoError(t, svc.SignOut(context.Background(), pair.RefreshToken))

	err = svc.SignOut(context.Background(), "tampered")
	requireServiceError(t, err, http.StatusUnauthorized)
}

func TestGetByIDNotFound(t *testing.T) {
	svc, _, _, _, _, _ := newTestService(t)

	_, err := svc.GetByID(context.Background(), 12345)
	requireServiceError(t, err, http.StatusNotFound)
}

func TestUpdateEmailConflict(t *testing.T) {
	svc, _, _, _, _, _ := newTestService(t)
	seedAdmin(t, svc, "a@x.com", "password123")
	other := seedAdmin(t, svc, "b@x.com", "password123")

	taken := "a@x.com"
	_, err := svc.Update(context.Background(), other.ID, service.UpdateParams{Email: &taken}, nil)
	requireServiceError(t, err, http.StatusConflict)
}

func TestUpdateKeepingOwnEmailIsNotAConflict(t *testing.T) {
	svc, _, _, _, _, _ := newTestService(t)
	admin := seedAdmin(t, svc, "a@x.com", "password123")

	same := "a@x.com"
	updated, err := svc.Update(context.Background(), admin.ID, service.UpdateParams{Email: &same}, nil)
	require.NoError(t, err)
	require.Equal(t, "a@x.com", updated.Email)
}

func TestUpdateReplacesStoredImage(t *testing.T) {
	svc, _, _, _, files, _ := newTestService(t)
	admin, err := svc.Create(context.Background(), "a@x.com", "password123",
		[]service.FileUpload{{Filename: "old.png", Content: bytes.NewReader([]byte("old"))}})
	require.NoError(t, err)
	oldURL := admin.Images[0].ImageURL

	updated, err := svc.Update(context.Background(), admin.ID, service.UpdateParams{},
		&service.FileUpload{Filename: "new.png", Content: bytes.NewReader([]byte("new"))})
	require.NoError(t, err)
	require.Len(t, updated.Images, 1)
	require.NotEqual(t, oldURL, updated.Images[0].ImageURL)

	stored := files.stored()
	require.Len(t, stored, 1)
	require.Equal(t, updated.Images[0].ImageURL, stored[0])
}

func TestUpdateStatusNotFound(t *testing.T) {
	svc, _, _, _, _, _ := newTestService(t)

	_, err := svc.UpdateStatus(context.Background(), 4242, false)
	requireServiceError(t, err, http.StatusNotFound)
}

func TestDeleteRemovesAccountImagesAndFiles(t *testing.T) {
	svc, repo, _, _, files, _ := newTestService(t)
	admin, err := svc.Create(context.Background(), "a@x.com", "password123",
		[]service.FileUpload{
			{Filename: "one.png", Content: bytes.NewReader([]byte("one"))},
			{Filename: "two.png", Content: bytes.NewReader([]byte("two"))},
		})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), admin.ID))

	require.Empty(t, repo.all())
	require.Empty(t, files.stored())

	err = svc.Delete(context.Background(), admin.ID)
	requireServiceError(t, err, http.StatusNotFound)
}

// --- fakes ---

type memoryAdminRepo struct {
	mu        sync.Mutex
	admins    map[int64]domain.Admin
	createErr error
}

func newMemoryAdminRepo() *memoryAdminRepo {
	return &memoryAdminRepo{admins: make(map[int64]domain.Admin)}
}

func (m *memoryAdminRepo) all() []domain.Admin {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Admin, 0, len(m.admins))
	for _, a := range m.admins {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memoryAdminRepo) GetByEmail(ctx context.Context, email string) (domain.Admin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.admins {
		if a.Email == email {
			return a, nil
		}
	}
	return domain.Admin{}, pgx.ErrNoRows
}

func (m *memoryAdminRepo) GetByID(ctx context.Context, id int64) (domain.Admin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.admins[id]
	if !ok {
		return domain.Admin{}, pgx.ErrNoRows
	}
	return a, nil
}

func (m *memoryAdminRepo) List(ctx context.Context) ([]domain.Admin, error) {
	return m.all(), nil
}

func (m *memoryAdminRepo) ExistsByRole(ctx context.Context, role domain.Role) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.admins {
		if a.Role == role {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryAdminRepo) EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.admins {
		if a.Email == email && a.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryAdminRepo) Create(ctx context.Context, admin domain.Admin) (domain.Admin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return domain.Admin{}, m.createErr
	}
	for _, a := range m.admins {
		if a.Email == admin.Email {
			return domain.Admin{}, &pgconn.PgError{Code: "23505"}
		}
	}
	admin.CreatedAt = time.Now()
	admin.UpdatedAt = admin.CreatedAt
	m.admins[admin.ID] = admin
	return admin, nil
}

func (m *memoryAdminRepo) Update(ctx context.Context, admin domain.Admin) (domain.Admin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.admins[admin.ID]
	if !ok {
		return domain.Admin{}, pgx.ErrNoRows
	}
	existing.Email = admin.Email
	existing.PasswordHash = admin.PasswordHash
	existing.Role = admin.Role
	existing.UpdatedAt = time.Now()
	m.admins[admin.ID] = existing
	return existing, nil
}

func (m *memoryAdminRepo) ReplaceImages(ctx context.Context, adminID int64, images []domain.AdminImage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.admins[adminID]
	if !ok {
		return pgx.ErrNoRows
	}
	a.Images = images
	m.admins[adminID] = a
	return nil
}

func (m *memoryAdminRepo) UpdateStatus(ctx context.Context, id int64, active bool) (domain.Admin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.admins[id]
	if !ok {
		return domain.Admin{}, pgx.ErrNoRows
	}
	a.IsActive = active
	a.UpdatedAt = time.Now()
	m.admins[id] = a
	return a, nil
}

func (m *memoryAdminRepo) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.admins[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.admins, id)
	return nil
}

type codeEntry struct {
	code      string
	expiresAt time.Time
}

type memoryCodeStore struct {
	mu    sync.Mutex
	codes map[string]codeEntry
}

func newMemoryCodeStore() *memoryCodeStore {
	return &memoryCodeStore{codes: make(map[string]codeEntry)}
}

func (m *memoryCodeStore) Set(ctx context.Context, email, code string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[email] = codeEntry{code: code, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (m *memoryCodeStore) Get(ctx context.Context, email string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.codes[email]
	if !ok || time.Now().After(entry.expiresAt) {
		return "", false, nil
	}
	return entry.code, true, nil
}

func (m *memoryCodeStore) Del(ctx context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.codes, email)
	return nil
}

func (m *memoryCodeStore) expire(email string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry, ok := m.codes[email]; ok {
		entry.expiresAt = time.Now().Add(-time.Second)
		m.codes[email] = entry
	}
}

type captureMailer struct {
	mu        sync.Mutex
	lastEmail string
	lastCode  string
	err       error
}

func (m *captureMailer) SendOTP(ctx context.Context, email, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.lastEmail = email
	m.lastCode = code
	return nil
}

type memoryFileStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	saves     int
	failAfter int // fail the (failAfter+1)-th save when > 0
}

func newMemoryFileStore() *memoryFileStore {
	return &memoryFileStore{objects: make(map[string][]byte)}
}

func (m *memoryFileStore) stored() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m *memoryFileStore) Save(ctx context.Context, filename string, content io.Reader) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAfter > 0 && m.saves >= m.failAfter {
		return "", errors.New("storage full")
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return "", err
	}
	m.saves++
	key := fmt.Sprintf("admins/%d/%s", m.saves, filename)
	m.objects[key] = data
	return key, nil
}

func (m *memoryFileStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memoryFileStore) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok, nil
}
