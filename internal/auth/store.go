package auth

import (
	"context"
	"time"
)

// AdminStore looks up privileged operators.
type AdminStore interface {
	FindAdminByAuthID(ctx context.Context, authID string) (*AdminLogin, error)
}

// UserStore manages application user records and their approval state.
type UserStore interface {
	FindUserByAuthID(ctx context.Context, authID string) (*UserLogin, error)
	FindUser(ctx context.Context, id string) (*UserLogin, error)
	CreateUser(ctx context.Context, u *UserLogin) error
	ListUsers(ctx context.Context, filter UserFilter) ([]UserLogin, int, error)
	// SetApproval updates the user and appends one approval log row atomically.
	SetApproval(ctx context.Context, change ApprovalChange) (*UserLogin, error)
}

// VerificationStore manages email verification tokens.
type VerificationStore interface {
	CreateVerification(ctx context.Context, v *EmailVerification) error
	FindVerification(ctx context.Context, token string) (*EmailVerification, error)
	MarkVerified(ctx context.Context, v *EmailVerification, at time.Time) error
}

// Store describes persistence operations required by the service.
type Store interface {
	AdminStore
	UserStore
	VerificationStore
}
