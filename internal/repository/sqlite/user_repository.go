package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"storytime/internal/domain"
	"storytime/internal/repository"
)

var createUserTables = []string{`
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	first_name TEXT NOT NULL,
	last_name TEXT NOT NULL,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	verified INTEGER NOT NULL DEFAULT 0,
	verify_token TEXT NOT NULL DEFAULT '',
	verify_token_expires INTEGER NOT NULL DEFAULT 0,
	reset_password_token TEXT NOT NULL DEFAULT '',
	reset_password_expires INTEGER NOT NULL DEFAULT 0,
	token TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);`,
	`CREATE INDEX IF NOT EXISTS idx_users_verify_token ON users(verify_token);`,
	`CREATE INDEX IF NOT EXISTS idx_users_reset_token ON users(reset_password_token);`,
	`
CREATE TABLE IF NOT EXISTS user_languages (
	user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	language_id INTEGER NOT NULL,
	PRIMARY KEY (user_id, position)
);`,
	`
CREATE TABLE IF NOT EXISTS saved_stories (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	story_id TEXT NOT NULL,
	UNIQUE (user_id, story_id)
);`,
}

const selectUser = `
SELECT id, first_name, last_name, email, password_hash, verified,
	verify_token, verify_token_expires, reset_password_token, reset_password_expires,
	token, created_at, updated_at
FROM users`

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) repository.UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Init(ctx context.Context) error {
	for _, stmt := range createUserTables {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create user tables: %w", err)
		}
	}
	return nil
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (int64, error) {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	res, err := r.db.ExecContext(ctx, `
INSERT INTO users (first_name, last_name, email, password_hash, verified,
	verify_token, verify_token_expires, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.FirstName,
		user.LastName,
		user.Email,
		user.PasswordHash,
		user.Verified,
		user.VerifyToken,
		toMillis(user.VerifyTokenExpires),
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("insert user %q: %w", user.Email, repository.ErrDuplicate)
		}
		return 0, fmt.Errorf("insert user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("user last insert id: %w", err)
	}
	user.ID = id
	return id, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.getOne(ctx, selectUser+` WHERE id = ?`, id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, selectUser+` WHERE email = ?`, email)
}

func (r *UserRepository) GetByVerifyToken(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, fmt.Errorf("user by verify token: %w", repository.ErrNotFound)
	}
	return r.getOne(ctx, selectUser+` WHERE verify_token = ?`, token)
}

func (r *UserRepository) MarkVerified(ctx context.Context, id int64, token string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE users SET verified = 1, updated_at = ?
WHERE id = ? AND verify_token = ? AND verified = 0`,
		time.Now().UTC(), id, token,
	)
	if err != nil {
		return false, fmt.Errorf("mark user verified: %w", err)
	}
	return affected(res)
}

func (r *UserRepository) DeleteUnverified(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ? AND verified = 0`, id)
	if err != nil {
		return false, fmt.Errorf("delete unverified user: %w", err)
	}
	return affected(res)
}

func (r *UserRepository) SetSessionToken(ctx context.Context, id int64, token string) error {
	return r.updateRow(ctx, "set session token", `UPDATE users SET token = ?, updated_at = ? WHERE id = ?`,
		token, time.Now().UTC(), id)
}

func (r *UserRepository) SetResetToken(ctx context.Context, id int64, token string, expires time.Time) error {
	return r.updateRow(ctx, "set reset token", `
UPDATE users SET reset_password_token = ?, reset_password_expires = ?, updated_at = ?
WHERE id = ?`,
		token, toMillis(expires), time.Now().UTC(), id)
}

func (r *UserRepository) ClearResetToken(ctx context.Context, id int64, token string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE users SET reset_password_token = '', reset_password_expires = 0, updated_at = ?
WHERE id = ? AND reset_password_token = ?`,
		time.Now().UTC(), id, token,
	)
	if err != nil {
		return false, fmt.Errorf("clear reset token: %w", err)
	}
	return affected(res)
}

func (r *UserRepository) ConsumeResetToken(ctx context.Context, token, passwordHash string, now time.Time) (bool, error) {
	if token == "" {
		return false, nil
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE users SET password_hash = ?, reset_password_token = '', reset_password_expires = 0, updated_at = ?
WHERE reset_password_token = ? AND reset_password_expires > ?`,
		passwordHash, time.Now().UTC(), token, toMillis(now),
	)
	if err != nil {
		return false, fmt.Errorf("consume reset token: %w", err)
	}
	return affected(res)
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	return r.updateRow(ctx, "update password", `UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		passwordHash, time.Now().UTC(), id)
}

func (r *UserRepository) UpdateProfile(ctx context.Context, id int64, update domain.ProfileUpdate) error {
	if update.Empty() {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return nil
	}

	var (
		sets []string
		args []any
	)
	if update.FirstName != nil {
		sets = append(sets, "first_name = ?")
		args = append(args, *update.FirstName)
	}
	if update.LastName != nil {
		sets = append(sets, "last_name = ?")
		args = append(args, *update.LastName)
	}
	if update.Email != nil {
		sets = append(sets, "email = ?")
		args = append(args, *update.Email)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC(), id)

	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = ?`, strings.Join(sets, ", "))
	err := r.updateRow(ctx, "update profile", query, args...)
	if err != nil && isUniqueViolation(err) {
		return fmt.Errorf("update profile: %w", repository.ErrDuplicate)
	}
	return err
}

func (r *UserRepository) ReplaceLanguages(ctx context.Context, id int64, languageIDs []int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace languages: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ?`, id).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("user %d: %w", id, repository.ErrNotFound)
		}
		return fmt.Errorf("check user: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM user_languages WHERE user_id = ?`, id); err != nil {
		return fmt.Errorf("clear languages: %w", err)
	}
	for pos, langID := range languageIDs {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO user_languages (user_id, position, language_id) VALUES (?, ?, ?)`,
			id, pos, langID,
		); err != nil {
			return fmt.Errorf("insert language: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `UPDATE users SET updated_at = ? WHERE id = ?`, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("touch user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit languages: %w", err)
	}
	return nil
}

func (r *UserRepository) AddSavedStory(ctx context.Context, id int64, storyID string) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO saved_stories (user_id, story_id) VALUES (?, ?)`, id, storyID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("save story %q: %w", storyID, repository.ErrDuplicate)
		}
		if strings.Contains(strings.ToLower(err.Error()), "foreign key") {
			return fmt.Errorf("user %d: %w", id, repository.ErrNotFound)
		}
		return fmt.Errorf("save story: %w", err)
	}
	return nil
}

func (r *UserRepository) RemoveSavedStory(ctx context.Context, id int64, storyID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM saved_stories WHERE user_id = ? AND story_id = ?`, id, storyID)
	if err != nil {
		return fmt.Errorf("remove story: %w", err)
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("story %q: %w", storyID, repository.ErrNotFound)
	}
	return nil
}

func (r *UserRepository) ListSavedStories(ctx context.Context, id int64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT story_id FROM saved_stories WHERE user_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("list stories: %w", err)
	}
	defer rows.Close()

	stories := []string{}
	for rows.Next() {
		var storyID string
		if err := rows.Scan(&storyID); err != nil {
			return nil, fmt.Errorf("scan story: %w", err)
		}
		stories = append(stories, storyID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stories: %w", err)
	}
	return stories, nil
}

func (r *UserRepository) listLanguages(ctx context.Context, id int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT language_id FROM user_languages WHERE user_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("list user languages: %w", err)
	}
	defer rows.Close()

	langs := []int64{}
	for rows.Next() {
		var langID int64
		if err := rows.Scan(&langID); err != nil {
			return nil, fmt.Errorf("scan user language: %w", err)
		}
		langs = append(langs, langID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user languages: %w", err)
	}
	return langs, nil
}

func (r *UserRepository) getOne(ctx context.Context, query string, args ...any) (*domain.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, err
	}
	if user.Languages, err = r.listLanguages(ctx, user.ID); err != nil {
		return nil, err
	}
	if user.SavedStories, err = r.ListSavedStories(ctx, user.ID); err != nil {
		return nil, err
	}
	return user, nil
}

func (r *UserRepository) updateRow(ctx context.Context, op, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}
	return nil
}

func scanUser(row interface {
	Scan(dest ...any) error
}) (*domain.User, error) {
	var (
		user          domain.User
		verifyExpires int64
		resetExpires  int64
	)
	if err := row.Scan(
		&user.ID,
		&user.FirstName,
		&user.LastName,
		&user.Email,
		&user.PasswordHash,
		&user.Verified,
		&user.VerifyToken,
		&verifyExpires,
		&user.ResetPasswordToken,
		&resetExpires,
		&user.Token,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user: %w", repository.ErrNotFound)
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	user.VerifyTokenExpires = fromMillis(verifyExpires)
	user.ResetPasswordExpires = fromMillis(resetExpires)
	return &user, nil
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "unique")
}

// Expiries are stored as unix milliseconds so range predicates compare numerically.
func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
