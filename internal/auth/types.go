package auth

import "time"

// ApprovalStatus gates access for non-admin identities.
type ApprovalStatus string

const (
	StatusPending  ApprovalStatus = "pending"
	StatusApproved ApprovalStatus = "approved"
	StatusRejected ApprovalStatus = "rejected"
)

// Valid reports whether s is one of the three known statuses.
func (s ApprovalStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Identity is the authenticated principal of a request as reported by the auth platform.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// AdminLogin marks an identity as a privileged operator.
type AdminLogin struct {
	ID          string     `json:"id"`
	AuthID      string     `json:"auth_id"`
	Email       string     `json:"email"`
	FullName    *string    `json:"full_name"`
	AvatarURL   *string    `json:"avatar_url"`
	IsSuperUser bool       `json:"is_super_admin"`
	LastLoginAt *time.Time `json:"last_login_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

// UserLogin is the application record of a signed-up user.
type UserLogin struct {
	ID              string         `json:"id"`
	AuthID          string         `json:"auth_id"`
	Email           string         `json:"email"`
	FullName        *string        `json:"full_name"`
	AvatarURL       *string        `json:"avatar_url"`
	ApprovalStatus  ApprovalStatus `json:"approval_status"`
	ApprovedBy      *string        `json:"approved_by"`
	ApprovedAt      *time.Time     `json:"approved_at"`
	RejectionReason *string        `json:"rejection_reason"`
	EmailVerified   bool           `json:"email_verified"`
	LastLoginAt     *time.Time     `json:"last_login_at"`
	LoginCount      int            `json:"login_count"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// DisplayName returns the full name when present.
func (u UserLogin) DisplayName() string {
	if u.FullName == nil {
		return ""
	}
	return *u.FullName
}

// ApprovalLog is an append-only record of an approve/reject decision.
type ApprovalLog struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	AdminID   string         `json:"admin_id"`
	Action    ApprovalStatus `json:"action"`
	Reason    *string        `json:"reason"`
	CreatedAt time.Time      `json:"created_at"`
}

// ApprovalChange describes one approve/reject mutation and its log row.
type ApprovalChange struct {
	UserID  string
	AdminID string
	Action  ApprovalStatus
	Reason  string
	At      time.Time
	LogID   string
}

// EmailVerification is a single-use token proving mailbox ownership.
type EmailVerification struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Token     string     `json:"-"`
	ExpiresAt time.Time  `json:"expires_at"`
	UsedAt    *time.Time `json:"used_at"`
	CreatedAt time.Time  `json:"created_at"`
}

// UserFilter narrows ListUsers. Empty Status means all.
type UserFilter struct {
	Status ApprovalStatus
	Limit  int
	Offset int
}
