package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ovaphlow/pitchfork/service-blog-identity-go/internal/account/entity"
	"github.com/ovaphlow/pitchfork/service-blog-identity-go/pkg/utilities"
)

// ErrDuplicateOpenid is returned by Create when the openid unique index
// rejects the row. Callers should re-fetch by openid instead of retrying.
var ErrDuplicateOpenid = errors.New("openid already exists")

const uniqueViolation = "23505"

const accountCols = `id, username, password, email, openid, display_name, avatar_url,
	role, login_enabled, login_error_count, last_login_at, created_at, updated_at`

// AccountRepo provides data access for the accounts table using sqlx.
// Password hashing lives here: callers hand over plaintext and the repo
// stores and compares bcrypt hashes, so lookups keyed by password are
// fetch-by-key plus a constant-time compare.
type AccountRepo struct {
	db     *sqlx.DB
	hasher PasswordHasher
}

func NewAccountRepo(db *sqlx.DB, hasher PasswordHasher) *AccountRepo {
	if hasher == nil {
		hasher = BcryptHasher{}
	}
	return &AccountRepo{db: db, hasher: hasher}
}

// EnsureTable creates the accounts table if not exists (idempotent).
// Prefer migrations in production; this keeps early development simple.
func (r *AccountRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS accounts (
  id BIGINT PRIMARY KEY,
  username TEXT NOT NULL DEFAULT '',
  password TEXT NOT NULL DEFAULT '',
  email TEXT NOT NULL DEFAULT '',
  openid TEXT,
  display_name TEXT NOT NULL DEFAULT '',
  avatar_url TEXT NOT NULL DEFAULT '',
  role INT NOT NULL DEFAULT 0,
  login_enabled BOOLEAN NOT NULL DEFAULT true,
  login_error_count INT NOT NULL DEFAULT 0,
  last_login_at TIMESTAMPTZ,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_accounts_openid ON accounts (openid) WHERE openid IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_accounts_role ON accounts (role);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// Create inserts a new account row. The ID is assigned here (snowflake) when
// unset; a plaintext password is hashed before insert. Returns the new ID.
func (r *AccountRepo) Create(ctx context.Context, a *entity.Account) (int64, error) {
	if a.ID == 0 {
		a.ID = utilities.NewSnowflakeInt64()
	}
	if a.Password != "" {
		hash, err := r.hasher.Hash(a.Password)
		if err != nil {
			return 0, fmt.Errorf("hash password: %w", err)
		}
		a.Password = hash
	}
	const q = `INSERT INTO accounts
		(id, username, password, email, openid, display_name, avatar_url, role, login_enabled, login_error_count, last_login_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.db.ExecContext(ctx, q,
		a.ID, a.Username, a.Password, a.Email, a.Openid, a.DisplayName,
		a.AvatarURL, a.Role, a.LoginEnabled, a.LoginErrorCount, a.LastLoginAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return 0, ErrDuplicateOpenid
		}
		return 0, err
	}
	return a.ID, nil
}

func (r *AccountRepo) getOne(ctx context.Context, q string, args ...any) (*entity.Account, error) {
	var row entity.Account
	if err := r.db.GetContext(ctx, &row, q, args...); err != nil {
		return nil, err
	}
	return &row, nil
}

// FindByUsernameAndPassword returns the account matching both values or
// sql.ErrNoRows. Only credentialed rows are considered so member nicknames
// can never shadow the operator login.
func (r *AccountRepo) FindByUsernameAndPassword(ctx context.Context, username, password string) (*entity.Account, error) {
	q := `SELECT ` + accountCols + ` FROM accounts WHERE username=$1 AND password <> '' ORDER BY id LIMIT 1`
	row, err := r.getOne(ctx, q, username)
	if err != nil {
		return nil, err
	}
	if !r.hasher.Verify(row.Password, password) {
		return nil, sql.ErrNoRows
	}
	return row, nil
}

// FindByEmailAndPassword is the email-keyed variant of the credential lookup.
func (r *AccountRepo) FindByEmailAndPassword(ctx context.Context, email, password string) (*entity.Account, error) {
	q := `SELECT ` + accountCols + ` FROM accounts WHERE email=$1 AND password <> '' ORDER BY id LIMIT 1`
	row, err := r.getOne(ctx, q, email)
	if err != nil {
		return nil, err
	}
	if !r.hasher.Verify(row.Password, password) {
		return nil, sql.ErrNoRows
	}
	return row, nil
}

// FindByIDAndPassword re-confirms identity before a sensitive change.
func (r *AccountRepo) FindByIDAndPassword(ctx context.Context, id int64, password string) (*entity.Account, error) {
	q := `SELECT ` + accountCols + ` FROM accounts WHERE id=$1`
	row, err := r.getOne(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if row.Password == "" || !r.hasher.Verify(row.Password, password) {
		return nil, sql.ErrNoRows
	}
	return row, nil
}

// FindPrimary returns the designated operator account: the lowest-id
// admin-role row. sql.ErrNoRows when no admin account exists yet.
func (r *AccountRepo) FindPrimary(ctx context.Context) (*entity.Account, error) {
	q := `SELECT ` + accountCols + ` FROM accounts WHERE role=$1 ORDER BY id LIMIT 1`
	return r.getOne(ctx, q, entity.RoleAdmin)
}

// FindByOpenid fetches by external identity or sql.ErrNoRows.
func (r *AccountRepo) FindByOpenid(ctx context.Context, openid string) (*entity.Account, error) {
	q := `SELECT ` + accountCols + ` FROM accounts WHERE openid=$1`
	return r.getOne(ctx, q, openid)
}

// SetLoginEnabled toggles session eligibility for the given account.
func (r *AccountRepo) SetLoginEnabled(ctx context.Context, id int64, enabled bool) error {
	const q = `UPDATE accounts SET login_enabled=$2, updated_at=NOW() WHERE id=$1`
	_, err := r.db.ExecContext(ctx, q, id, enabled)
	return err
}

// TouchLastLogin records a successful login timestamp.
func (r *AccountRepo) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	const q = `UPDATE accounts SET last_login_at=$2, updated_at=NOW() WHERE id=$1`
	_, err := r.db.ExecContext(ctx, q, id, at)
	return err
}

// IncrementLoginError bumps the failure counter in a single statement and
// returns the new value. COALESCE keeps rows migrated with a NULL counter
// behaving as zero.
func (r *AccountRepo) IncrementLoginError(ctx context.Context, id int64) (int, error) {
	const q = `UPDATE accounts SET login_error_count = COALESCE(login_error_count, 0) + 1, updated_at=NOW()
		WHERE id=$1 RETURNING login_error_count`
	var v int
	if err := r.db.GetContext(ctx, &v, q, id); err != nil {
		return 0, err
	}
	return v, nil
}

// ResetToNormal re-enables login, zeroes the failure counter and refreshes
// the last-login timestamp atomically, returning the updated row.
func (r *AccountRepo) ResetToNormal(ctx context.Context, id int64, at time.Time) (*entity.Account, error) {
	q := `UPDATE accounts SET login_enabled=true, login_error_count=0, last_login_at=$2, updated_at=NOW()
		WHERE id=$1 RETURNING ` + accountCols
	return r.getOne(ctx, q, id, at)
}

// UpdatePassword hashes and stores a new password.
func (r *AccountRepo) UpdatePassword(ctx context.Context, id int64, password string) error {
	hash, err := r.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	const q = `UPDATE accounts SET password=$2, updated_at=NOW() WHERE id=$1`
	_, err = r.db.ExecContext(ctx, q, id, hash)
	return err
}

// UpdateProfile saves the mutable display attributes of an account.
func (r *AccountRepo) UpdateProfile(ctx context.Context, a *entity.Account) error {
	const q = `UPDATE accounts SET username=$2, email=$3, display_name=$4, avatar_url=$5, updated_at=NOW() WHERE id=$1`
	_, err := r.db.ExecContext(ctx, q, a.ID, a.Username, a.Email, a.DisplayName, a.AvatarURL)
	return err
}
