package auth

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"sanastro.app/internal/ids"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

const userColumns = `id, auth_id, email, full_name, avatar_url, approval_status, approved_by, approved_at,
	rejection_reason, email_verified, last_login_at, login_count, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*UserLogin, error) {
	var u UserLogin
	err := row.Scan(&u.ID, &u.AuthID, &u.Email, &u.FullName, &u.AvatarURL, &u.ApprovalStatus,
		&u.ApprovedBy, &u.ApprovedAt, &u.RejectionReason, &u.EmailVerified, &u.LastLoginAt,
		&u.LoginCount, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// Admin directory ----------------------------------------------------------

func (s *PGStore) FindAdminByAuthID(ctx context.Context, authID string) (*AdminLogin, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, auth_id, email, full_name, avatar_url, is_super_admin, last_login_at, created_at
		from admin_logins where auth_id=$1`, authID)
	var a AdminLogin
	if err := row.Scan(&a.ID, &a.AuthID, &a.Email, &a.FullName, &a.AvatarURL, &a.IsSuperUser,
		&a.LastLoginAt, &a.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find admin by auth id: %w", err)
	}
	return &a, nil
}

// User directory -----------------------------------------------------------

func (s *PGStore) FindUserByAuthID(ctx context.Context, authID string) (*UserLogin, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		`select `+userColumns+` from user_logins where auth_id=$1`, authID))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("find user by auth id: %w", err)
	}
	return u, err
}

func (s *PGStore) FindUser(ctx context.Context, id string) (*UserLogin, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		`select `+userColumns+` from user_logins where id=$1`, id))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return u, err
}

func (s *PGStore) CreateUser(ctx context.Context, u *UserLogin) error {
	if u.ApprovalStatus == "" {
		u.ApprovalStatus = StatusPending
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	u.UpdatedAt = u.CreatedAt
	res, err := s.db.ExecContext(ctx,
		`insert into user_logins(id, auth_id, email, full_name, avatar_url, approval_status, email_verified, created_at, updated_at)
		values($1,$2,$3,$4,$5,$6,$7,$8,$9)
		on conflict (auth_id) do nothing`,
		u.ID, u.AuthID, u.Email, u.FullName, u.AvatarURL, string(u.ApprovalStatus), u.EmailVerified,
		u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	if n == 0 {
		return ErrAlreadyExists
	}
	return nil
}

func (s *PGStore) ListUsers(ctx context.Context, filter UserFilter) ([]UserLogin, int, error) {
	status := string(filter.Status)

	var total int
	if err := s.db.QueryRowContext(ctx,
		`select count(*) from user_logins where ($1 = '' or approval_status = $1)`, status,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`select `+userColumns+` from user_logins
		where ($1 = '' or approval_status = $1)
		order by created_at desc
		limit $2 offset $3`, status, filter.Limit, filter.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]UserLogin, 0, filter.Limit)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	return users, total, nil
}

func (s *PGStore) SetApproval(ctx context.Context, change ApprovalChange) (*UserLogin, error) {
	if !change.Action.Valid() || change.Action == StatusPending {
		return nil, fmt.Errorf("%w: unsupported approval action %q", ErrInvalidInput, change.Action)
	}
	if change.At.IsZero() {
		change.At = time.Now().UTC()
	}
	if change.LogID == "" {
		change.LogID = ids.New()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin approval tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var row *sql.Row
	if change.Action == StatusApproved {
		row = tx.QueryRowContext(ctx,
			`update user_logins
			set approval_status=$2, approved_by=$3, approved_at=$4, rejection_reason=null, updated_at=$4
			where id=$1
			returning `+userColumns,
			change.UserID, string(change.Action), change.AdminID, change.At)
	} else {
		row = tx.QueryRowContext(ctx,
			`update user_logins
			set approval_status=$2, rejection_reason=$3, approved_by=null, approved_at=null, updated_at=$4
			where id=$1
			returning `+userColumns,
			change.UserID, string(change.Action), nullString(change.Reason), change.At)
	}
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update approval status: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`insert into approval_logs(id, user_id, admin_id, action, reason, created_at) values($1,$2,$3,$4,$5,$6)`,
		change.LogID, change.UserID, change.AdminID, string(change.Action), nullString(change.Reason), change.At,
	); err != nil {
		return nil, fmt.Errorf("insert approval log: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit approval tx: %w", err)
	}
	return user, nil
}

// Email verification -------------------------------------------------------

func (s *PGStore) CreateVerification(ctx context.Context, v *EmailVerification) error {
	if v.ID == "" {
		v.ID = ids.New()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into email_verifications(id, user_id, token_hash, expires_at, created_at) values($1,$2,$3,$4,$5)`,
		v.ID, v.UserID, hashToken(v.Token), v.ExpiresAt, v.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create verification: %w", err)
	}
	return nil
}

func (s *PGStore) FindVerification(ctx context.Context, token string) (*EmailVerification, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, user_id, expires_at, used_at, created_at from email_verifications where token_hash=$1`,
		hashToken(token))
	var v EmailVerification
	if err := row.Scan(&v.ID, &v.UserID, &v.ExpiresAt, &v.UsedAt, &v.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find verification: %w", err)
	}
	v.Token = token
	return &v, nil
}

// MarkVerified consumes the token and flips the user's email_verified flag.
// A token consumed concurrently yields ErrGone.
func (s *PGStore) MarkVerified(ctx context.Context, v *EmailVerification, at time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin verification tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`update email_verifications set used_at=$2 where id=$1 and used_at is null`, v.ID, at)
	if err != nil {
		return fmt.Errorf("consume verification: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("consume verification: %w", err)
	}
	if n == 0 {
		return ErrGone
	}
	if _, err := tx.ExecContext(ctx,
		`update user_logins set email_verified=true, updated_at=$2 where id=$1`, v.UserID, at,
	); err != nil {
		return fmt.Errorf("mark email verified: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit verification tx: %w", err)
	}
	v.UsedAt = &at
	return nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
