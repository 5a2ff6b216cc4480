package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"noisewatch/internal/models"
	"noisewatch/internal/observability"
	contextutils "noisewatch/internal/utils"
)

const userSelectFields = `id, username, email, password_hash, user_type, profile_photo,
	is_verified, verified_at, created_at, updated_at`

// PostgresUserRepository implements UserRepository on PostgreSQL
type PostgresUserRepository struct {
	db     *sql.DB
	logger *observability.Logger
}

var _ UserRepository = (*PostgresUserRepository)(nil)

// NewPostgresUserRepository creates a new PostgreSQL user repository
func NewPostgresUserRepository(db *sql.DB, logger *observability.Logger) *PostgresUserRepository {
	return &PostgresUserRepository{db: db, logger: logger}
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u          models.User
		verifiedAt sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.UserType, &u.ProfilePhoto,
		&u.IsVerified, &verifiedAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if verifiedAt.Valid {
		u.VerifiedAt = &verifiedAt.Time
	}
	return &u, nil
}

// Create inserts a new user. A taken email yields ErrRecordExists.
func (r *PostgresUserRepository) Create(ctx context.Context, user *models.User) (err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "create_user", observability.AttributeUserID(user.ID))
	defer observability.FinishSpan(span, &err)

	_, err = r.db.ExecContext(ctx, `INSERT INTO users (id, username, email, password_hash, user_type,
		profile_photo, is_verified, verified_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		user.ID, user.Username, user.Email, user.PasswordHash, user.UserType,
		user.ProfilePhoto, user.IsVerified, user.VerifiedAt, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return contextutils.WrapErrorf(contextutils.ErrRecordExists, "email %s is already registered", user.Email)
		}
		return contextutils.WrapError(err, "failed to insert user")
	}
	return nil
}

func (r *PostgresUserRepository) getOne(ctx context.Context, where string, arg interface{}, what string) (*models.User, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE %s", userSelectFields, where)
	user, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "user %s not found", what)
	}
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get user")
	}
	return user, nil
}

// GetByID returns a user by id
func (r *PostgresUserRepository) GetByID(ctx context.Context, id string) (result *models.User, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "get_user_by_id", observability.AttributeUserID(id))
	defer observability.FinishSpan(span, &err)

	if !isUUID(id) {
		return nil, contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "user %s not found", id)
	}
	return r.getOne(ctx, "id = $1", id, id)
}

// GetByEmail returns a user by lower-cased email
func (r *PostgresUserRepository) GetByEmail(ctx context.Context, email string) (result *models.User, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "get_user_by_email")
	defer observability.FinishSpan(span, &err)

	email = strings.ToLower(strings.TrimSpace(email))
	return r.getOne(ctx, "email = $1", email, email)
}

// List returns users newest first
func (r *PostgresUserRepository) List(ctx context.Context, since *time.Time, limit int) (result []models.User, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "list_users", observability.AttributeLimit(limit))
	defer observability.FinishSpan(span, &err)

	query := fmt.Sprintf("SELECT %s FROM users", userSelectFields)
	var args []interface{}
	if since != nil {
		args = append(args, *since)
		query += " WHERE created_at >= $1"
	}
	query += " ORDER BY created_at DESC, id"
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to list users")
	}
	defer func() { _ = rows.Close() }()

	users := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, contextutils.WrapError(err, "failed to scan user")
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// MarkVerified sets is_verified once
func (r *PostgresUserRepository) MarkVerified(ctx context.Context, id string, at time.Time) (changed bool, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "mark_user_verified", observability.AttributeUserID(id))
	defer observability.FinishSpan(span, &err)

	if !isUUID(id) {
		return false, contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "user %s not found", id)
	}

	res, err := r.db.ExecContext(ctx, `UPDATE users SET is_verified = TRUE, verified_at = $2, updated_at = $2
		WHERE id = $1 AND is_verified = FALSE`, id, at)
	if err != nil {
		return false, contextutils.WrapError(err, "failed to verify user")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, contextutils.WrapError(err, "failed to get rows affected")
	}
	if n > 0 {
		return true, nil
	}

	// Nothing changed: either already verified or no such user
	if _, err := r.getOne(ctx, "id = $1", id, id); err != nil {
		return false, err
	}
	return false, nil
}

func (r *PostgresUserRepository) updateOne(ctx context.Context, id, query string, args ...interface{}) error {
	if !isUUID(id) {
		return contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "user %s not found", id)
	}
	res, err := r.db.ExecContext(ctx, query, append([]interface{}{id}, args...)...)
	if err != nil {
		return contextutils.WrapError(err, "failed to update user")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return contextutils.WrapError(err, "failed to get rows affected")
	}
	if n == 0 {
		return contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "user %s not found", id)
	}
	return nil
}

// UpdatePassword replaces the password hash
func (r *PostgresUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string, at time.Time) (err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "update_user_password", observability.AttributeUserID(id))
	defer observability.FinishSpan(span, &err)

	return r.updateOne(ctx, id, `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`, passwordHash, at)
}

// UpdateProfilePhoto replaces the profile photo URL
func (r *PostgresUserRepository) UpdateProfilePhoto(ctx context.Context, id, url string, at time.Time) (err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "update_user_profile_photo", observability.AttributeUserID(id))
	defer observability.FinishSpan(span, &err)

	return r.updateOne(ctx, id, `UPDATE users SET profile_photo = $2, updated_at = $3 WHERE id = $1`, url, at)
}

// SetUserType changes the role of a user
func (r *PostgresUserRepository) SetUserType(ctx context.Context, id string, userType models.UserType, at time.Time) (err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "set_user_type", observability.AttributeUserID(id))
	defer observability.FinishSpan(span, &err)

	return r.updateOne(ctx, id, `UPDATE users SET user_type = $2, updated_at = $3 WHERE id = $1`, string(userType), at)
}

// Delete removes a user. The noise_reports foreign key clears user_id on their reports.
func (r *PostgresUserRepository) Delete(ctx context.Context, id string) (err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "delete_user", observability.AttributeUserID(id))
	defer observability.FinishSpan(span, &err)

	return r.updateOne(ctx, id, `DELETE FROM users WHERE id = $1`)
}

// Counts returns total and verified user counts
func (r *PostgresUserRepository) Counts(ctx context.Context) (total, verified int, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "count_users")
	defer observability.FinishSpan(span, &err)

	err = r.db.QueryRowContext(ctx, `SELECT COUNT(*), COUNT(*) FILTER (WHERE is_verified) FROM users`).Scan(&total, &verified)
	if err != nil {
		return 0, 0, contextutils.WrapError(err, "failed to count users")
	}
	return total, verified, nil
}
