package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smallbiznis/valora-admin/internal/domain"
)

var _ AdminRepository = (*PostgresAdminRepo)(nil)

const adminColumns = `id, email, hashed_password, is_active, role, created_at, updated_at`

// PostgresAdminRepo implements AdminRepository on a pgx pool.
type PostgresAdminRepo struct {
	db *pgxpool.Pool
}

func NewPostgresAdminRepo(db *pgxpool.Pool) *PostgresAdminRepo {
	return &PostgresAdminRepo{db: db}
}

// IsNotFound reports whether err means the row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// IsUniqueViolation reports whether err is a Postgres unique constraint error.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *PostgresAdminRepo) GetByEmail(ctx context.Context, email string) (domain.Admin, error) {
	row := r.db.QueryRow(ctx, `SELECT `+adminColumns+` FROM admins WHERE email = $1`, email)
	admin, err := scanAdmin(row)
	if err != nil {
		return domain.Admin{}, fmt.Errorf("get admin by email: %w", err)
	}
	return admin, nil
}

func (r *PostgresAdminRepo) GetByID(ctx context.Context, id int64) (domain.Admin, error) {
	row := r.db.QueryRow(ctx, `SELECT `+adminColumns+` FROM admins WHERE id = $1`, id)
	admin, err := scanAdmin(row)
	if err != nil {
		return domain.Admin{}, fmt.Errorf("get admin by id: %w", err)
	}

	images, err := r.imagesOf(ctx, id)
	if err != nil {
		return domain.Admin{}, err
	}
	admin.Images = images
	return admin, nil
}

func (r *PostgresAdminRepo) List(ctx context.Context) ([]domain.Admin, error) {
	rows, err := r.db.Query(ctx, `SELECT `+adminColumns+` FROM admins ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	defer rows.Close()

	admins := make([]domain.Admin, 0)
	index := make(map[int64]int)
	for rows.Next() {
		admin, err := scanAdmin(rows)
		if err != nil {
			return nil, fmt.Errorf("list admins: %w", err)
		}
		index[admin.ID] = len(admins)
		admins = append(admins, admin)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}

	imgRows, err := r.db.Query(ctx,
		`SELECT id, admin_id, image_url, created_at FROM images_of_admin ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list admin images: %w", err)
	}
	defer imgRows.Close()
	for imgRows.Next() {
		var img domain.AdminImage
		if err := imgRows.Scan(&img.ID, &img.AdminID, &img.ImageURL, &img.CreatedAt); err != nil {
			return nil, fmt.Errorf("list admin images: %w", err)
		}
		if i, ok := index[img.AdminID]; ok {
			admins[i].Images = append(admins[i].Images, img)
		}
	}
	if err := imgRows.Err(); err != nil {
		return nil, fmt.Errorf("list admin images: %w", err)
	}

	return admins, nil
}

func (r *PostgresAdminRepo) ExistsByRole(ctx context.Context, role domain.Role) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM admins WHERE role = $1)`, role).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("exists by role: %w", err)
	}
	return exists, nil
}

func (r *PostgresAdminRepo) EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error) {
	var taken bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM admins WHERE email = $1 AND id <> $2)`, email, excludeID).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("email taken: %w", err)
	}
	return taken, nil
}

func (r *PostgresAdminRepo) Create(ctx context.Context, admin domain.Admin) (domain.Admin, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Admin{}, fmt.Errorf("begin create admin: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`INSERT INTO admins (id, email, hashed_password, is_active, role)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+adminColumns,
		admin.ID, admin.Email, admin.PasswordHash, admin.IsActive, admin.Role)
	created, err := scanAdmin(row)
	if err != nil {
		return domain.Admin{}, fmt.Errorf("insert admin: %w", err)
	}

	for _, img := range admin.Images {
		var stored domain.AdminImage
		err := tx.QueryRow(ctx,
			`INSERT INTO images_of_admin (id, admin_id, image_url)
			 VALUES ($1, $2, $3)
			 RETURNING id, admin_id, image_url, created_at`,
			img.ID, created.ID, img.ImageURL).
			Scan(&stored.ID, &stored.AdminID, &stored.ImageURL, &stored.CreatedAt)
		if err != nil {
			return domain.Admin{}, fmt.Errorf("insert admin image: %w", err)
		}
		created.Images = append(created.Images, stored)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Admin{}, fmt.Errorf("commit create admin: %w", err)
	}
	return created, nil
}

func (r *PostgresAdminRepo) Update(ctx context.Context, admin domain.Admin) (domain.Admin, error) {
	row := r.db.QueryRow(ctx,
		`UPDATE admins
		 SET email = $2, hashed_password = $3, role = $4, updated_at = now()
		 WHERE id = $1
		 RETURNING `+adminColumns,
		admin.ID, admin.Email, admin.PasswordHash, admin.Role)
	updated, err := scanAdmin(row)
	if err != nil {
		return domain.Admin{}, fmt.Errorf("update admin: %w", err)
	}
	return updated, nil
}

func (r *PostgresAdminRepo) ReplaceImages(ctx context.Context, adminID int64, images []domain.AdminImage) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin replace images: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM images_of_admin WHERE admin_id = $1`, adminID); err != nil {
		return fmt.Errorf("delete admin images: %w", err)
	}
	for _, img := range images {
		_, err := tx.Exec(ctx,
			`INSERT INTO images_of_admin (id, admin_id, image_url) VALUES ($1, $2, $3)`,
			img.ID, adminID, img.ImageURL)
		if err != nil {
			return fmt.Errorf("insert admin image: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit replace images: %w", err)
	}
	return nil
}

func (r *PostgresAdminRepo) UpdateStatus(ctx context.Context, id int64, active bool) (domain.Admin, error) {
	row := r.db.QueryRow(ctx,
		`UPDATE admins SET is_active = $2, updated_at = now() WHERE id = $1 RETURNING `+adminColumns,
		id, active)
	updated, err := scanAdmin(row)
	if err != nil {
		return domain.Admin{}, fmt.Errorf("update admin status: %w", err)
	}
	return updated, nil
}

func (r *PostgresAdminRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM admins WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete admin: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PostgresAdminRepo) imagesOf(ctx context.Context, adminID int64) ([]domain.AdminImage, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, admin_id, image_url, created_at FROM images_of_admin WHERE admin_id = $1 ORDER BY created_at`,
		adminID)
	if err != nil {
		return nil, fmt.Errorf("get admin images: %w", err)
	}
	defer rows.Close()

	var images []domain.AdminImage
	for rows.Next() {
		var img domain.AdminImage
		if err := rows.Scan(&img.ID, &img.AdminID, &img.ImageURL, &img.CreatedAt); err != nil {
			return nil, fmt.Errorf("get admin images: %w", err)
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get admin images: %w", err)
	}
	return images, nil
}

func scanAdmin(row pgx.Row) (domain.Admin, error) {
	var admin domain.Admin
	err := row.Scan(&admin.ID, &admin.Email, &admin.PasswordHash, &admin.IsActive,
		&admin.Role, &admin.CreatedAt, &admin.UpdatedAt)
	if err != nil {
		return domain.Admin{}, err
	}
	return admin, nil
}
