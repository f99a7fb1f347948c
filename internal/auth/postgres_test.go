package auth

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

var userRowColumns = []string{
	"id", "auth_id", "email", "full_name", "avatar_url", "approval_status", "approved_by", "approved_at",
	"rejection_reason", "email_verified", "last_login_at", "login_count", "created_at", "updated_at",
}

func newMockStore(t *testing.T) (*PGStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewPGStore(db), mock
}

func TestFindAdminByAuthIDNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("from admin_logins where auth_id").WithArgs("auth-1").WillReturnError(sql.ErrNoRows)

	_, err := store.FindAdminByAuthID(context.Background(), "auth-1")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestFindAdminByAuthIDFound(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()
	mock.ExpectQuery("from admin_logins where auth_id").WithArgs("auth-1").WillReturnRows(
		sqlmock.NewRows([]string{"id", "auth_id", "email", "full_name", "avatar_url", "is_super_admin", "last_login_at", "created_at"}).
			AddRow("admin-1", "auth-1", "root@sanastro.app", "Root", nil, true, nil, now))

	admin, err := store.FindAdminByAuthID(context.Background(), "auth-1")
	if err != nil {
		t.Fatalf("FindAdminByAuthID: %v", err)
	}
	if admin.ID != "admin-1" || !admin.IsSuperUser {
		t.Fatalf("unexpected admin: %+v", admin)
	}
	if admin.FullName == nil || *admin.FullName != "Root" {
		t.Fatalf("unexpected full name: %v", admin.FullName)
	}
}

func TestFindUserByAuthIDScansNullableColumns(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()
	mock.ExpectQuery("from user_logins where auth_id").WithArgs("auth-2").WillReturnRows(
		sqlmock.NewRows(userRowColumns).
			AddRow("user-2", "auth-2", "u@sanastro.app", nil, nil, "pending", nil, nil, nil, false, nil, 0, now, now))

	user, err := store.FindUserByAuthID(context.Background(), "auth-2")
	if err != nil {
		t.Fatalf("FindUserByAuthID: %v", err)
	}
	if user.ApprovalStatus != StatusPending {
		t.Fatalf("unexpected status: %s", user.ApprovalStatus)
	}
	if user.FullName != nil || user.ApprovedAt != nil {
		t.Fatalf("expected nil nullable columns, got %+v", user)
	}
}

func TestListUsersAppliesFilterAndPaging(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()
	mock.ExpectQuery("select count\\(\\*\\) from user_logins").WithArgs("pending").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(41))
	mock.ExpectQuery("order by created_at desc").WithArgs("pending", 20, 40).
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow("user-41", "auth-41", "a@sanastro.app", "A", nil, "pending", nil, nil, nil, true, nil, 3, now, now))

	users, total, err := store.ListUsers(context.Background(), UserFilter{Status: StatusPending, Limit: 20, Offset: 40})
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if total != 41 || len(users) != 1 || users[0].ID != "user-41" {
		t.Fatalf("unexpected result total=%d users=%+v", total, users)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSetApprovalApproveWritesLogInSameTransaction(t *testing.T) {
	store, mock := newMockStore(t)
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("update user_logins").
		WithArgs("user-1", "approved", "admin-1", at).
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow("user-1", "auth-1", "u@sanastro.app", nil, nil, "approved", "admin-1", at, nil, true, nil, 1, at, at))
	mock.ExpectExec("insert into approval_logs").
		WithArgs("log-1", "user-1", "admin-1", "approved", nil, at).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	user, err := store.SetApproval(context.Background(), ApprovalChange{
		UserID: "user-1", AdminID: "admin-1", Action: StatusApproved, At: at, LogID: "log-1",
	})
	if err != nil {
		t.Fatalf("SetApproval: %v", err)
	}
	if user.ApprovalStatus != StatusApproved || user.RejectionReason != nil {
		t.Fatalf("unexpected user: %+v", user)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSetApprovalRejectStoresReason(t *testing.T) {
	store, mock := newMockStore(t)
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("update user_logins").
		WithArgs("user-1", "rejected", "incomplete birth data", at).
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow("user-1", "auth-1", "u@sanastro.app", nil, nil, "rejected", nil, nil, "incomplete birth data", false, nil, 0, at, at))
	mock.ExpectExec("insert into approval_logs").
		WithArgs("log-2", "user-1", "admin-1", "rejected", "incomplete birth data", at).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	user, err := store.SetApproval(context.Background(), ApprovalChange{
		UserID: "user-1", AdminID: "admin-1", Action: StatusRejected, Reason: "incomplete birth data", At: at, LogID: "log-2",
	})
	if err != nil {
		t.Fatalf("SetApproval: %v", err)
	}
	if user.RejectionReason == nil || *user.RejectionReason != "incomplete birth data" {
		t.Fatalf("unexpected reason: %v", user.RejectionReason)
	}
}

func TestSetApprovalUnknownUserRollsBack(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("update user_logins").WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := store.SetApproval(context.Background(), ApprovalChange{
		UserID: "missing", AdminID: "admin-1", Action: StatusApproved,
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSetApprovalRejectsPendingAction(t *testing.T) {
	store, _ := newMockStore(t)
	_, err := store.SetApproval(context.Background(), ApprovalChange{UserID: "u", AdminID: "a", Action: StatusPending})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestCreateUserConflict(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("insert into user_logins").WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.CreateUser(context.Background(), &UserLogin{ID: "u", AuthID: "auth", Email: "e@sanastro.app"})
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestVerificationTokenIsStoredHashed(t *testing.T) {
	store, mock := newMockStore(t)
	expires := time.Now().Add(24 * time.Hour).UTC()
	mock.ExpectExec("insert into email_verifications").
		WithArgs("ver-1", "user-1", hashToken("raw-token"), expires, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.CreateVerification(context.Background(), &EmailVerification{
		ID: "ver-1", UserID: "user-1", Token: "raw-token", ExpiresAt: expires,
	})
	if err != nil {
		t.Fatalf("CreateVerification: %v", err)
	}
	if hashToken("raw-token") == "raw-token" {
		t.Fatal("token hash must differ from token")
	}
}

func TestMarkVerifiedAlreadyUsed(t *testing.T) {
	store, mock := newMockStore(t)
	at := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec("update email_verifications set used_at").WithArgs("ver-1", at).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.MarkVerified(context.Background(), &EmailVerification{ID: "ver-1", UserID: "user-1"}, at)
	if !errors.Is(err, ErrGone) {
		t.Fatalf("expected ErrGone, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMarkVerifiedFlipsUserFlag(t *testing.T) {
	store, mock := newMockStore(t)
	at := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec("update email_verifications set used_at").WithArgs("ver-1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("update user_logins set email_verified=true").WithArgs("user-1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	v := &EmailVerification{ID: "ver-1", UserID: "user-1"}
	if err := store.MarkVerified(context.Background(), v, at); err != nil {
		t.Fatalf("MarkVerified: %v", err)
	}
	if v.UsedAt == nil || !v.UsedAt.Equal(at) {
		t.Fatalf("expected used_at set, got %v", v.UsedAt)
	}
}
