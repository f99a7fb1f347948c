// Package accounts implements the signup and admin approval workflow.
package accounts

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"

	"sanastro.app/internal/audit"
	"sanastro.app/internal/auth"
	"sanastro.app/internal/ids"
	"sanastro.app/internal/obs"
)

const (
	DefaultPage        = 1
	DefaultLimit       = 20
	MaxLimit           = 100
	MaxPage            = math.MaxInt32
	VerificationTTL    = 24 * time.Hour
	maxReasonLength    = 1000
	maxFullNameLength  = 200
	verifyTokenEntropy = 32
)

// Store is the persistence the workflow needs.
type Store interface {
	auth.UserStore
	auth.VerificationStore
}

// Mailer sends the workflow notifications.
type Mailer interface {
	Welcome(ctx context.Context, email, name string) error
	Approved(ctx context.Context, email, name string) error
	Rejected(ctx context.Context, email, name, reason string) error
	AdminNewUser(ctx context.Context, email, name string) error
	Verify(ctx context.Context, email, name, token string) error
}

// Service coordinates store writes, audit events and notifications.
type Service struct {
	store Store
	mail  Mailer
	now   func() time.Time
	token func() (string, error)
}

func NewService(store Store, mail Mailer) *Service {
	return &Service{
		store: store,
		mail:  mail,
		now:   func() time.Time { return time.Now().UTC() },
		token: newVerificationToken,
	}
}

// ListQuery selects one page of users.
type ListQuery struct {
	Filter string
	Page   int
	Limit  int
}

func (q ListQuery) withDefaults() ListQuery {
	if q.Filter == "" {
		q.Filter = "all"
	}
	if q.Page == 0 {
		q.Page = DefaultPage
	}
	if q.Limit == 0 {
		q.Limit = DefaultLimit
	}
	return q
}

// Validate checks filter and paging bounds.
func (q ListQuery) Validate() error {
	return validation.ValidateStruct(&q,
		validation.Field(&q.Filter, validation.Required, validation.In("all", "pending", "approved", "rejected")),
		validation.Field(&q.Page, validation.Required, validation.Min(1), validation.Max(MaxPage)),
		validation.Field(&q.Limit, validation.Required, validation.Min(1), validation.Max(MaxLimit)),
	)
}

// Pagination describes the returned page.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// Page is one page of users, newest first.
type Page struct {
	Users      []auth.UserLogin `json:"users"`
	Pagination Pagination       `json:"pagination"`
}

// List returns users matching q.
func (s *Service) List(ctx context.Context, q ListQuery) (*Page, error) {
	q = q.withDefaults()
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", auth.ErrInvalidInput, err)
	}
	filter := auth.UserFilter{Limit: q.Limit, Offset: (q.Page - 1) * q.Limit}
	if q.Filter != "all" {
		filter.Status = auth.ApprovalStatus(q.Filter)
	}
	users, total, err := s.store.ListUsers(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	if users == nil {
		users = []auth.UserLogin{}
	}
	return &Page{
		Users: users,
		Pagination: Pagination{
			Page:       q.Page,
			Limit:      q.Limit,
			Total:      total,
			TotalPages: int(math.Ceil(float64(total) / float64(q.Limit))),
		},
	}, nil
}

func validateUserID(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: User ID is required", auth.ErrInvalidInput)
	}
	if err := validation.Validate(userID, is.UUID); err != nil {
		return fmt.Errorf("%w: invalid user id", auth.ErrInvalidInput)
	}
	return nil
}

// Approve grants access to userID. The status change and its log row are
// written together; the notification is best effort.
func (s *Service) Approve(ctx context.Context, admin auth.AdminLogin, userID string) (*auth.UserLogin, error) {
	userID = strings.TrimSpace(userID)
	if err := validateUserID(userID); err != nil {
		return nil, err
	}
	user, err := s.store.SetApproval(ctx, auth.ApprovalChange{
		UserID:  userID,
		AdminID: admin.ID,
		Action:  auth.StatusApproved,
		At:      s.now(),
		LogID:   ids.New(),
	})
	if err != nil {
		obs.ObserveApproval(string(auth.StatusApproved), resultLabel(err))
		return nil, err
	}
	obs.ObserveApproval(string(auth.StatusApproved), "ok")
	_ = audit.LogEvent(ctx, audit.EventUserApproved, map[string]any{
		"user_id":  user.ID,
		"admin_id": admin.ID,
	})

	if user.Email != "" {
		if err := s.mail.Approved(ctx, user.Email, user.DisplayName()); err != nil {
			obs.Logger().Warn("accounts: approval email not sent", "user_id", user.ID, "error", err)
		}
	}
	return user, nil
}

// Reject denies access to userID with an optional reason.
func (s *Service) Reject(ctx context.Context, admin auth.AdminLogin, userID, reason string) (*auth.UserLogin, error) {
	userID = strings.TrimSpace(userID)
	reason = strings.TrimSpace(reason)
	if err := validateUserID(userID); err != nil {
		return nil, err
	}
	if err := validation.Validate(reason, validation.Length(0, maxReasonLength)); err != nil {
		return nil, fmt.Errorf("%w: reason %v", auth.ErrInvalidInput, err)
	}
	user, err := s.store.SetApproval(ctx, auth.ApprovalChange{
		UserID:  userID,
		AdminID: admin.ID,
		Action:  auth.StatusRejected,
		Reason:  reason,
		At:      s.now(),
		LogID:   ids.New(),
	})
	if err != nil {
		obs.ObserveApproval(string(auth.StatusRejected), resultLabel(err))
		return nil, err
	}
	obs.ObserveApproval(string(auth.StatusRejected), "ok")
	_ = audit.LogEvent(ctx, audit.EventUserRejected, map[string]any{
		"user_id":  user.ID,
		"admin_id": admin.ID,
		"reason":   reason,
	})

	if user.Email != "" {
		if err := s.mail.Rejected(ctx, user.Email, user.DisplayName(), reason); err != nil {
			obs.Logger().Warn("accounts: rejection email not sent", "user_id", user.ID, "error", err)
		}
	}
	return user, nil
}

// Registration is the input of Register.
type Registration struct {
	FullName string
}

func (r Registration) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FullName, validation.Length(0, maxFullNameLength)),
	)
}

// Register creates the pending application record of a freshly signed-up
// identity. It reports false when the record already existed.
func (s *Service) Register(ctx context.Context, identity auth.Identity, reg Registration) (*auth.UserLogin, bool, error) {
	reg.FullName = strings.TrimSpace(reg.FullName)
	if err := reg.Validate(); err != nil {
		return nil, false, fmt.Errorf("%w: %v", auth.ErrInvalidInput, err)
	}
	if err := validation.Validate(identity.Email, validation.Required, is.Email); err != nil {
		return nil, false, fmt.Errorf("%w: account email %v", auth.ErrInvalidInput, err)
	}

	existing, err := s.store.FindUserByAuthID(ctx, identity.ID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, auth.ErrNotFound) {
		return nil, false, err
	}

	user := &auth.UserLogin{
		ID:             uuid.NewString(),
		AuthID:         identity.ID,
		Email:          identity.Email,
		ApprovalStatus: auth.StatusPending,
		CreatedAt:      s.now(),
	}
	if reg.FullName != "" {
		name := reg.FullName
		user.FullName = &name
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, auth.ErrAlreadyExists) {
			existing, ferr := s.store.FindUserByAuthID(ctx, identity.ID)
			if ferr != nil {
				return nil, false, ferr
			}
			return existing, false, nil
		}
		return nil, false, err
	}

	token, err := s.token()
	if err != nil {
		return nil, false, fmt.Errorf("generate verification token: %w", err)
	}
	if err := s.store.CreateVerification(ctx, &auth.EmailVerification{
		UserID:    user.ID,
		Token:     token,
		ExpiresAt: s.now().Add(VerificationTTL),
	}); err != nil {
		return nil, false, err
	}

	_ = audit.LogEvent(ctx, audit.EventUserSignedUp, map[string]any{"user_id": user.ID})

	name := user.DisplayName()
	if err := s.mail.Welcome(ctx, user.Email, name); err != nil {
		obs.Logger().Warn("accounts: welcome email not sent", "user_id", user.ID, "error", err)
	}
	if err := s.mail.Verify(ctx, user.Email, name, token); err != nil {
		obs.Logger().Warn("accounts: verification email not sent", "user_id", user.ID, "error", err)
	}
	if err := s.mail.AdminNewUser(ctx, user.Email, name); err != nil {
		obs.Logger().Warn("accounts: admin notification not sent", "user_id", user.ID, "error", err)
	}
	return user, true, nil
}

// VerifyEmail consumes a verification token.
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("%w: token is required", auth.ErrInvalidInput)
	}
	v, err := s.store.FindVerification(ctx, token)
	if err != nil {
		return err
	}
	now := s.now()
	if v.UsedAt != nil || now.After(v.ExpiresAt) {
		return auth.ErrGone
	}
	if err := s.store.MarkVerified(ctx, v, now); err != nil {
		return err
	}
	_ = audit.LogEvent(ctx, audit.EventEmailVerified, map[string]any{"user_id": v.UserID})
	return nil
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, auth.ErrNotFound):
		return "not_found"
	case errors.Is(err, auth.ErrInvalidInput):
		return "invalid"
	default:
		return "error"
	}
}

func newVerificationToken() (string, error) {
	buf := make([]byte, verifyTokenEntropy)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
