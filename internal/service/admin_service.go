package service

import (
	"context"
	"crypto/subtle"
	"fmt"
	"io"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/smallbiznis/valora-admin/internal/config"
	"github.com/smallbiznis/valora-admin/internal/domain"
	"github.com/smallbiznis/valora-admin/internal/jwt"
	"github.com/smallbiznis/valora-admin/internal/otp"
	"github.com/smallbiznis/valora-admin/internal/password"
	"github.com/smallbiznis/valora-admin/internal/repository"
)

// FileUpload is one validated multipart file handed down from the transport.
type FileUpload struct {
	Filename string
	Content  io.Reader
}

// UpdateParams carries the mutable account fields; nil means keep.
type UpdateParams struct {
	Email    *string
	Password *string
}

// TokenPair is the result of a confirmed sign-in.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// AdminService orchestrates account management and the two-step sign-in flow.
type AdminService struct {
	admins repository.AdminRepository
	codes  repository.CodeStore
	mailer repository.Mailer
	files  repository.FileStore
	tokens *jwt.Generator
	node   *snowflake.Node
	cfg    config.Config
	logger *zap.Logger
	tracer trace.Tracer
}

// NewAdminService wires dependencies.
func NewAdminService(admins repository.AdminRepository, codes repository.CodeStore, mailer repository.Mailer, files repository.FileStore, tokens *jwt.Generator, node *snowflake.Node, cfg config.Config, logger *zap.Logger) *AdminService {
	return &AdminService{
		admins: admins,
		codes:  codes,
		mailer: mailer,
		files:  files,
		tokens: tokens,
		node:   node,
		cfg:    cfg,
		logger: logger,
		tracer: otel.Tracer("github.com/smallbiznis/valora-admin/internal/service"),
	}
}

// Create hashes the password and persists the account together with any
// uploaded images. Files are stored first; if anything after that fails the
// stored objects are removed again, so no partial account is ever visible.
func (s *AdminService) Create(ctx context.Context, email, plaintext string, files []FileUpload) (domain.Admin, error) {
	ctx, span := s.startSpan(ctx, "AdminService.Create")
	defer span.End()

	normalized := normalizeEmail(email)
	taken, err := s.admins.EmailTaken(ctx, normalized, 0)
	if err != nil {
		span.RecordError(err)
		return domain.Admin{}, fmt.Errorf("check email: %w", err)
	}
	if taken {
		return domain.Admin{}, conflict("Email address already exists")
	}

	hashed, err := password.Hash(plaintext)
	if err != nil {
		span.RecordError(err)
		return domain.Admin{}, fmt.Errorf("hash password: %w", err)
	}

	urls, err := s.storeFiles(ctx, files)
	if err != nil {
		span.RecordError(err)
		return domain.Admin{}, err
	}

	admin := domain.Admin{
		ID:           s.node.Generate().Int64(),
		Email:        normalized,
		PasswordHash: hashed,
		IsActive:     true,
		Role:         domain.RoleAdmin,
	}
	for _, url := range urls {
		admin.Images = append(admin.Images, domain.AdminImage{
			ID:       s.node.Generate().Int64(),
			AdminID:  admin.ID,
			ImageURL: url,
		})
	}

	created, err := s.admins.Create(ctx, admin)
	if err != nil {
		span.RecordError(err)
		s.discardFiles(ctx, urls)
		if repository.IsUniqueViolation(err) {
			return domain.Admin{}, conflict("Email address already exists")
		}
		return domain.Admin{}, fmt.Errorf("create admin: %w", err)
	}

	s.audit("admin.create.success", "admin_id", created.ID, "images", len(created.Images))
	return created, nil
}

// SignIn is step one of the two-step flow: verify the password, email an OTP,
// and cache it under the admin's email for the configured TTL.
func (s *AdminService) SignIn(ctx context.Context, email, plaintext string) error {
	ctx, span := s.startSpan(ctx, "AdminService.SignIn")
	defer span.End()

	admin, err := s.admins.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if repository.IsNotFound(err) {
			return badRequest("Email address or password incorrect")
		}
		span.RecordError(err)
		return fmt.Errorf("load admin: %w", err)
	}

	// A malformed stored hash counts as a mismatch, same as a wrong password.
	match, _ := password.Verify(plaintext, admin.PasswordHash)
	if !match {
		return badRequest("Email address or password incorrect")
	}
	if !admin.IsActive {
		return forbidden("Account is deactivated")
	}

	code, err := otp.Generate()
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("generate otp: %w", err)
	}

	mailCtx, cancel := context.WithTimeout(ctx, s.cfg.MailTimeout)
	defer cancel()
	if err := s.mailer.SendOTP(mailCtx, admin.Email, code); err != nil {
		span.RecordError(err)
		return fmt.Errorf("send otp: %w", err)
	}

	if err := s.codes.Set(ctx, admin.Email, code, s.cfg.OTPTTL); err != nil {
		span.RecordError(err)
		return fmt.Errorf("cache otp: %w", err)
	}

	s.audit("admin.signin.otp_sent", "admin_id", admin.ID)
	return nil
}

// ConfirmSignIn is step two: check the cached OTP and issue the session
// tokens. A confirmed code is removed, so it cannot be replayed.
func (s *AdminService) ConfirmSignIn(ctx context.Context, email, code string) (TokenPair, error) {
	ctx, span := s.startSpan(ctx, "AdminService.ConfirmSignIn")
	defer span.End()

	admin, err := s.admins.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if repository.IsNotFound(err) {
			return TokenPair{}, badRequest("Wrong email address")
		}
		span.RecordError(err)
		return TokenPair{}, fmt.Errorf("load admin: %w", err)
	}

	cached, ok, err := s.codes.Get(ctx, admin.Email)
	if err != nil {
		span.RecordError(err)
		return TokenPair{}, fmt.Errorf("load otp: %w", err)
	}
	if !ok || subtle.ConstantTimeCompare([]byte(cached), []byte(code)) != 1 {
		return TokenPair{}, badRequest("OTP expired")
	}
	if err := s.codes.Del(ctx, admin.Email); err != nil {
		span.RecordError(err)
	}

	access, err := s.tokens.GenerateAccessToken(admin)
	if err != nil {
		span.RecordError(err)
		return TokenPair{}, fmt.Errorf("generate access token: %w", err)
	}
	refresh, err := s.tokens.GenerateRefreshToken(admin)
	if err != nil {
		span.RecordError(err)
		return TokenPair{}, fmt.Errorf("generate refresh token: %w", err)
	}

	s.audit("admin.signin.success", "admin_id", admin.ID)
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// RefreshToken mints a new access token from a valid refresh token. The
// refresh token itself is not rotated.
func (s *AdminService) RefreshToken(ctx context.Context, refreshToken string) (string, error) {
	ctx, span := s.startSpan(ctx, "AdminService.RefreshToken")
	defer span.End()

	claims, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return "", unauthorized("Refresh token expired")
	}

	admin, err := s.findByID(ctx, claims.AdminID)
	if err != nil {
		return "", err
	}

	access, err := s.tokens.GenerateAccessToken(admin)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("generate access token: %w", err)
	}

	s.audit("admin.token.refreshed", "admin_id", admin.ID)
	return access, nil
}

// SignOut validates the refresh token; clearing the cookie is the transport's
// side of the contract.
func (s *AdminService) SignOut(ctx context.Context, refreshToken string) error {
	ctx, span := s.startSpan(ctx, "AdminService.SignOut")
	defer span.End()

	claims, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return unauthorized("Refresh token expired")
	}
	if _, err := s.findByID(ctx, claims.AdminID); err != nil {
		return err
	}

	s.audit("admin.signout.success", "admin_id", claims.AdminID)
	return nil
}

// List returns every account with its images.
func (s *AdminService) List(ctx context.Context) ([]domain.Admin, error) {
	ctx, span := s.startSpan(ctx, "AdminService.List")
	defer span.End()

	admins, err := s.admins.List(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("list admins: %w", err)
	}
	return admins, nil
}

// GetByID returns one account or NotFound.
func (s *AdminService) GetByID(ctx context.Context, id int64) (domain.Admin, error) {
	ctx, span := s.startSpan(ctx, "AdminService.GetByID")
	defer span.End()

	return s.findByID(ctx, id)
}

// Update applies mutable fields. A new email colliding with another account
// is a conflict; a new file replaces the stored images.
func (s *AdminService) Update(ctx context.Context, id int64, params UpdateParams, file *FileUpload) (domain.Admin, error) {
	ctx, span := s.startSpan(ctx, "AdminService.Update")
	defer span.End()

	admin, err := s.findByID(ctx, id)
	if err != nil {
		return domain.Admin{}, err
	}

	if params.Email != nil {
		normalized := normalizeEmail(*params.Email)
		taken, err := s.admins.EmailTaken(ctx, normalized, id)
		if err != nil {
			span.RecordError(err)
			return domain.Admin{}, fmt.Errorf("check email: %w", err)
		}
		if taken {
			return domain.Admin{}, conflict("Email address already exists")
		}
		admin.Email = normalized
	}

	if params.Password != nil {
		hashed, err := password.Hash(*params.Password)
		if err != nil {
			span.RecordError(err)
			return domain.Admin{}, fmt.Errorf("hash password: %w", err)
		}
		admin.PasswordHash = hashed
	}

	if file != nil {
		for _, img := range admin.Images {
			exists, err := s.files.Exists(ctx, img.ImageURL)
			if err != nil {
				span.RecordError(err)
				return domain.Admin{}, fmt.Errorf("check stored file: %w", err)
			}
			if exists {
				if err := s.files.Delete(ctx, img.ImageURL); err != nil {
					span.RecordError(err)
					return domain.Admin{}, fmt.Errorf("delete stored file: %w", err)
				}
			}
		}

		url, err := s.files.Save(ctx, file.Filename, file.Content)
		if err != nil {
			span.RecordError(err)
			return domain.Admin{}, fmt.Errorf("store file: %w", err)
		}
		images := []domain.AdminImage{{
			ID:       s.node.Generate().Int64(),
			AdminID:  id,
			ImageURL: url,
		}}
		if err := s.admins.ReplaceImages(ctx, id, images); err != nil {
			span.RecordError(err)
			s.discardFiles(ctx, []string{url})
			return domain.Admin{}, fmt.Errorf("replace images: %w", err)
		}
		admin.Images = images
	}

	updated, err := s.admins.Update(ctx, admin)
	if err != nil {
		span.RecordError(err)
		if repository.IsUniqueViolation(err) {
			return domain.Admin{}, conflict("Email address already exists")
		}
		return domain.Admin{}, fmt.Errorf("update admin: %w", err)
	}
	updated.Images = admin.Images

	s.audit("admin.update.success", "admin_id", id)
	return updated, nil
}

// UpdateStatus toggles the active flag.
func (s *AdminService) UpdateStatus(ctx context.Context, id int64, active bool) (domain.Admin, error) {
	ctx, span := s.startSpan(ctx, "AdminService.UpdateStatus")
	defer span.End()

	updated, err := s.admins.UpdateStatus(ctx, id, active)
	if err != nil {
		if repository.IsNotFound(err) {
			return domain.Admin{}, notFound(fmt.Sprintf("Admin not found by ID %d", id))
		}
		span.RecordError(err)
		return domain.Admin{}, fmt.Errorf("update status: %w", err)
	}

	s.audit("admin.status.updated", "admin_id", id, "is_active", active)
	return updated, nil
}

// Delete removes stored files and the account row; image rows cascade.
func (s *AdminService) Delete(ctx context.Context, id int64) error {
	ctx, span := s.startSpan(ctx, "AdminService.Delete")
	defer span.End()

	admin, err := s.findByID(ctx, id)
	if err != nil {
		return err
	}

	for _, img := range admin.Images {
		exists, err := s.files.Exists(ctx, img.ImageURL)
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("check stored file: %w", err)
		}
		if exists {
			if err := s.files.Delete(ctx, img.ImageURL); err != nil {
				span.RecordError(err)
				return fmt.Errorf("delete stored file: %w", err)
			}
		}
	}

	if err := s.admins.Delete(ctx, id); err != nil {
		if repository.IsNotFound(err) {
			return notFound(fmt.Sprintf("Admin not found by ID %d", id))
		}
		span.RecordError(err)
		return fmt.Errorf("delete admin: %w", err)
	}

	s.audit("admin.delete.success", "admin_id", id)
	return nil
}

func (s *AdminService) findByID(ctx context.Context, id int64) (domain.Admin, error) {
	admin, err := s.admins.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return domain.Admin{}, notFound(fmt.Sprintf("Admin not found by ID %d", id))
		}
		return domain.Admin{}, fmt.Errorf("load admin: %w", err)
	}
	return admin, nil
}

func (s *AdminService) storeFiles(ctx context.Context, files []FileUpload) ([]string, error) {
	urls := make([]string, 0, len(files))
	for _, f := range files {
		url, err := s.files.Save(ctx, f.Filename, f.Content)
		if err != nil {
			s.discardFiles(ctx, urls)
			return nil, fmt.Errorf("store file %q: %w", f.Filename, err)
		}
		urls = append(urls, url)
	}
	return urls, nil
}

func (s *AdminService) discardFiles(ctx context.Context, urls []string) {
	for _, url := range urls {
		if err := s.files.Delete(ctx, url); err != nil {
			s.logger.Warn("orphaned stored file", zap.String("url", url), zap.Error(err))
		}
	}
}

func (s *AdminService) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name)
}

func (s *AdminService) audit(event string, kv ...any) {
	if s.logger == nil {
		return
	}
	fields := make([]zap.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, _ := kv[i].(string)
		fields = append(fields, zap.Any(key, kv[i+1]))
	}
	s.logger.Info(event, fields...)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
