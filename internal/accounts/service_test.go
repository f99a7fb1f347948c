package accounts

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sanastro.app/internal/auth"
)

const (
	userA = "8f14e45f-ceea-4e7a-9f3b-3a1b2c4d5e6f"
	userB = "c9f0f895-fb98-4b91-8c3d-1e2f3a4b5c6d"
)

type memStore struct {
	users         map[string]*auth.UserLogin
	logs          []auth.ApprovalChange
	verifications map[string]*auth.EmailVerification
	listFilter    auth.UserFilter
	failWith      error
}

func newMemStore() *memStore {
	return &memStore{
		users:         map[string]*auth.UserLogin{},
		verifications: map[string]*auth.EmailVerification{},
	}
}

func (m *memStore) FindUserByAuthID(_ context.Context, authID string) (*auth.UserLogin, error) {
	for _, u := range m.users {
		if u.AuthID == authID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (m *memStore) FindUser(_ context.Context, id string) (*auth.UserLogin, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) CreateUser(_ context.Context, u *auth.UserLogin) error {
	for _, existing := range m.users {
		if existing.AuthID == u.AuthID {
			return auth.ErrAlreadyExists
		}
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memStore) ListUsers(_ context.Context, filter auth.UserFilter) ([]auth.UserLogin, int, error) {
	m.listFilter = filter
	if m.failWith != nil {
		return nil, 0, m.failWith
	}
	var out []auth.UserLogin
	for _, u := range m.users {
		if filter.Status == "" || u.ApprovalStatus == filter.Status {
			out = append(out, *u)
		}
	}
	return out, len(out), nil
}

func (m *memStore) SetApproval(_ context.Context, change auth.ApprovalChange) (*auth.UserLogin, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	u, ok := m.users[change.UserID]
	if !ok {
		return nil, auth.ErrNotFound
	}
	u.ApprovalStatus = change.Action
	if change.Action == auth.StatusApproved {
		adminID, at := change.AdminID, change.At
		u.ApprovedBy, u.ApprovedAt, u.RejectionReason = &adminID, &at, nil
	} else {
		u.ApprovedBy, u.ApprovedAt = nil, nil
		u.RejectionReason = nil
		if change.Reason != "" {
			reason := change.Reason
			u.RejectionReason = &reason
		}
	}
	m.logs = append(m.logs, change)
	cp := *u
	return &cp, nil
}

func (m *memStore) CreateVerification(_ context.Context, v *auth.EmailVerification) error {
	cp := *v
	m.verifications[v.Token] = &cp
	return nil
}

func (m *memStore) FindVerification(_ context.Context, token string) (*auth.EmailVerification, error) {
	v, ok := m.verifications[token]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (m *memStore) MarkVerified(_ context.Context, v *auth.EmailVerification, at time.Time) error {
	stored := m.verifications[v.Token]
	if stored.UsedAt != nil {
		return auth.ErrGone
	}
	stored.UsedAt = &at
	m.users[v.UserID].EmailVerified = true
	return nil
}

type recordingMailer struct {
	sent []string
	err  error
}

func (r *recordingMailer) record(kind string) error {
	r.sent = append(r.sent, kind)
	return r.err
}

func (r *recordingMailer) Welcome(context.Context, string, string) error { return r.record("welcome") }
func (r *recordingMailer) Approved(context.Context, string, string) error {
	return r.record("approved")
}
func (r *recordingMailer) Rejected(context.Context, string, string, string) error {
	return r.record("rejected")
}
func (r *recordingMailer) AdminNewUser(context.Context, string, string) error {
	return r.record("admin_new_user")
}
func (r *recordingMailer) Verify(context.Context, string, string, string) error {
	return r.record("verify")
}

var testAdmin = auth.AdminLogin{ID: "admin-1", AuthID: "auth-admin"}

func newTestService() (*Service, *memStore, *recordingMailer) {
	store := newMemStore()
	mail := &recordingMailer{}
	svc := NewService(store, mail)
	svc.now = func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) }
	svc.token = func() (string, error) { return "fixed-token", nil }
	return svc, store, mail
}

func seedUser(store *memStore, id string, status auth.ApprovalStatus) {
	store.users[id] = &auth.UserLogin{ID: id, AuthID: "auth-" + id, Email: id + "@sanastro.app", ApprovalStatus: status}
}

func TestListDefaultsAndPagination(t *testing.T) {
	svc, store, _ := newTestService()
	seedUser(store, userA, auth.StatusPending)
	seedUser(store, userB, auth.StatusApproved)

	page, err := svc.List(context.Background(), ListQuery{})
	require.NoError(t, err)
	assert.Len(t, page.Users, 2)
	assert.Equal(t, Pagination{Page: 1, Limit: 20, Total: 2, TotalPages: 1}, page.Pagination)
	assert.Equal(t, auth.UserFilter{Limit: 20, Offset: 0}, store.listFilter)

	page, err = svc.List(context.Background(), ListQuery{Filter: "pending", Page: 3, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, auth.UserFilter{Status: auth.StatusPending, Limit: 1, Offset: 2}, store.listFilter)
	assert.Equal(t, 1, page.Pagination.TotalPages)
}

func TestListEmptyReturnsEmptySlice(t *testing.T) {
	svc, _, _ := newTestService()
	page, err := svc.List(context.Background(), ListQuery{Filter: "rejected"})
	require.NoError(t, err)
	assert.NotNil(t, page.Users)
	assert.Equal(t, 0, page.Pagination.TotalPages)
}

func TestListRejectsBadQuery(t *testing.T) {
	svc, store, _ := newTestService()
	for _, q := range []ListQuery{
		{Filter: "banned"},
		{Page: -1},
		{Page: MaxPage + 1},
		{Page: math.MaxInt64, Limit: 20},
		{Limit: MaxLimit + 1},
		{Limit: -5},
	} {
		_, err := svc.List(context.Background(), q)
		assert.ErrorIs(t, err, auth.ErrInvalidInput, "%+v", q)
	}
	assert.Equal(t, auth.UserFilter{}, store.listFilter)
}

func TestListLastPageOffsetFits(t *testing.T) {
	svc, store, _ := newTestService()
	_, err := svc.List(context.Background(), ListQuery{Page: MaxPage, Limit: MaxLimit})
	require.NoError(t, err)
	assert.Equal(t, (MaxPage-1)*MaxLimit, store.listFilter.Offset)
	assert.Positive(t, store.listFilter.Offset)
}

func TestApproveUpdatesStatusLogsAndEmails(t *testing.T) {
	svc, store, mail := newTestService()
	seedUser(store, userA, auth.StatusRejected)
	reason := "old"
	store.users[userA].RejectionReason = &reason

	user, err := svc.Approve(context.Background(), testAdmin, userA)
	require.NoError(t, err)
	assert.Equal(t, auth.StatusApproved, user.ApprovalStatus)
	assert.Nil(t, user.RejectionReason)
	require.NotNil(t, user.ApprovedBy)
	assert.Equal(t, testAdmin.ID, *user.ApprovedBy)
	require.Len(t, store.logs, 1)
	assert.Equal(t, testAdmin.ID, store.logs[0].AdminID)
	assert.NotEmpty(t, store.logs[0].LogID)
	assert.Equal(t, []string{"approved"}, mail.sent)
}

func TestApproveTwiceAddsOneLogPerCall(t *testing.T) {
	svc, store, _ := newTestService()
	seedUser(store, userA, auth.StatusPending)

	for i := 0; i < 2; i++ {
		user, err := svc.Approve(context.Background(), testAdmin, userA)
		require.NoError(t, err)
		assert.Equal(t, auth.StatusApproved, user.ApprovalStatus)
		assert.Nil(t, user.RejectionReason)
	}
	assert.Len(t, store.logs, 2)
}

func TestApproveValidation(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.Approve(context.Background(), testAdmin, "")
	require.ErrorIs(t, err, auth.ErrInvalidInput)
	assert.Contains(t, err.Error(), "User ID is required")

	_, err = svc.Approve(context.Background(), testAdmin, "not-a-uuid")
	assert.ErrorIs(t, err, auth.ErrInvalidInput)
}

func TestApproveUnknownUser(t *testing.T) {
	svc, _, mail := newTestService()
	_, err := svc.Approve(context.Background(), testAdmin, userB)
	assert.ErrorIs(t, err, auth.ErrNotFound)
	assert.Empty(t, mail.sent)
}

func TestApproveEmailFailureDoesNotFail(t *testing.T) {
	svc, store, mail := newTestService()
	seedUser(store, userA, auth.StatusPending)
	mail.err = errors.New("provider down")

	user, err := svc.Approve(context.Background(), testAdmin, userA)
	require.NoError(t, err)
	assert.Equal(t, auth.StatusApproved, user.ApprovalStatus)
	assert.Equal(t, auth.StatusApproved, store.users[userA].ApprovalStatus)
}

func TestRejectStoresReasonAndClearsApproval(t *testing.T) {
	svc, store, mail := newTestService()
	seedUser(store, userA, auth.StatusPending)
	_, err := svc.Approve(context.Background(), testAdmin, userA)
	require.NoError(t, err)

	user, err := svc.Reject(context.Background(), testAdmin, userA, "  duplicate account ")
	require.NoError(t, err)
	assert.Equal(t, auth.StatusRejected, user.ApprovalStatus)
	require.NotNil(t, user.RejectionReason)
	assert.Equal(t, "duplicate account", *user.RejectionReason)
	assert.Nil(t, user.ApprovedBy)
	assert.Nil(t, user.ApprovedAt)
	assert.Equal(t, []string{"approved", "rejected"}, mail.sent)
	assert.Len(t, store.logs, 2)
}

func TestRejectWithoutReason(t *testing.T) {
	svc, store, _ := newTestService()
	seedUser(store, userA, auth.StatusPending)
	user, err := svc.Reject(context.Background(), testAdmin, userA, "")
	require.NoError(t, err)
	assert.Nil(t, user.RejectionReason)
}

func TestStoreFailureSurfaces(t *testing.T) {
	svc, store, _ := newTestService()
	seedUser(store, userA, auth.StatusPending)
	store.failWith = errors.New("connection reset")
	_, err := svc.Reject(context.Background(), testAdmin, userA, "")
	require.Error(t, err)
	assert.NotErrorIs(t, err, auth.ErrNotFound)
}

func TestRegisterCreatesPendingUserAndSendsEmails(t *testing.T) {
	svc, store, mail := newTestService()
	identity := auth.Identity{ID: "auth-new", Email: "new@sanastro.app"}

	user, created, err := svc.Register(context.Background(), identity, Registration{FullName: " Asha Rao "})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, auth.StatusPending, user.ApprovalStatus)
	require.NotNil(t, user.FullName)
	assert.Equal(t, "Asha Rao", *user.FullName)
	assert.Equal(t, []string{"welcome", "verify", "admin_new_user"}, mail.sent)

	v, ok := store.verifications["fixed-token"]
	require.True(t, ok)
	assert.Equal(t, user.ID, v.UserID)
	assert.Equal(t, svc.now().Add(24*time.Hour), v.ExpiresAt)
}

func TestRegisterIsIdempotent(t *testing.T) {
	svc, _, mail := newTestService()
	identity := auth.Identity{ID: "auth-new", Email: "new@sanastro.app"}

	first, _, err := svc.Register(context.Background(), identity, Registration{})
	require.NoError(t, err)
	second, created, err := svc.Register(context.Background(), identity, Registration{})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, mail.sent, 3)
}

func TestRegisterRequiresEmail(t *testing.T) {
	svc, _, _ := newTestService()
	_, _, err := svc.Register(context.Background(), auth.Identity{ID: "auth-x"}, Registration{})
	assert.ErrorIs(t, err, auth.ErrInvalidInput)
}

func TestVerifyEmail(t *testing.T) {
	svc, store, _ := newTestService()
	_, _, err := svc.Register(context.Background(), auth.Identity{ID: "auth-v", Email: "v@sanastro.app"}, Registration{})
	require.NoError(t, err)

	require.NoError(t, svc.VerifyEmail(context.Background(), "fixed-token"))
	user, err := store.FindUserByAuthID(context.Background(), "auth-v")
	require.NoError(t, err)
	assert.True(t, user.EmailVerified)

	assert.ErrorIs(t, svc.VerifyEmail(context.Background(), "fixed-token"), auth.ErrGone)
	assert.ErrorIs(t, svc.VerifyEmail(context.Background(), "unknown"), auth.ErrNotFound)
	assert.ErrorIs(t, svc.VerifyEmail(context.Background(), " "), auth.ErrInvalidInput)
}

func TestVerifyEmailExpired(t *testing.T) {
	svc, store, _ := newTestService()
	store.verifications["old"] = &auth.EmailVerification{
		ID: "ver", UserID: userA, Token: "old", ExpiresAt: svc.now().Add(-time.Minute),
	}
	assert.ErrorIs(t, svc.VerifyEmail(context.Background(), "old"), auth.ErrGone)
}
