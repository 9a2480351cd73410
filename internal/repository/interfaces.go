package repository

import (
	"context"
	"io"
	"time"

	"github.com/smallbiznis/valora-admin/internal/domain"
)

// AdminRepository exposes persistence for admin accounts and their images.
type AdminRepository interface {
	GetByEmail(ctx context.Context, email string) (domain.Admin, error)
	// GetByID returns the admin with images preloaded.
	GetByID(ctx context.Context, id int64) (domain.Admin, error)
	List(ctx context.Context) ([]domain.Admin, error)
	ExistsByRole(ctx context.Context, role domain.Role) (bool, error)
	// EmailTaken reports whether email belongs to an admin other than excludeID.
	EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error)
	// Create inserts the admin row and all image rows in one transaction.
	Create(ctx context.Context, admin domain.Admin) (domain.Admin, error)
	Update(ctx context.Context, admin domain.Admin) (domain.Admin, error)
	ReplaceImages(ctx context.Context, adminID int64, images []domain.AdminImage) error
	UpdateStatus(ctx context.Context, id int64, active bool) (domain.Admin, error)
	// Delete removes the admin row; image rows cascade via the schema.
	Delete(ctx context.Context, id int64) error
}

// CodeStore bridges the two-step sign-in: one live OTP per email with a TTL.
// Entries expire on their own whether or not Get is ever called; setting a
// key again before expiry replaces the earlier code.
type CodeStore interface {
	Set(ctx context.Context, email, code string, ttl time.Duration) error
	Get(ctx context.Context, email string) (string, bool, error)
	Del(ctx context.Context, email string) error
}

// Mailer delivers one-time codes to admins.
type Mailer interface {
	SendOTP(ctx context.Context, email, code string) error
}

// FileStore persists uploaded profile images and returns a stable key/URL.
type FileStore interface {
	Save(ctx context.Context, filename string, content io.Reader) (string, error)
	Delete(ctx context.Context, url string) error
	Exists(ctx context.Context, url string) (bool, error)
}
