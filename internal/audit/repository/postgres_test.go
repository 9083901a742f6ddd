package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"authguard/internal/audit/domain"
)

func newMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepository(db), mock
}

func TestAppend(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	e := &domain.Entry{ID: "a1", Action: "login", UserID: "u1", Details: map[string]any{"k": "v"},
		IPAddress: "1.2.3.4", UserAgent: "ua", Success: true, CreatedAt: now}
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs")).
		WithArgs("a1", "login", "u1", nil, nil, []byte(`{"k":"v"}`), "1.2.3.4", "ua", true, nil, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Append(context.Background(), e); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestList_DefaultLimitAndDecode(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now().UTC()
	cols := []string{"id", "action", "user_id", "resource", "resource_id", "details", "ip_address",
		"user_agent", "success", "error_message", "created_at"}
	mock.ExpectQuery(regexp.QuoteMeta("FROM audit_logs")).
		WithArgs("", "failed_login", DefaultListLimit).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("a2", "failed_login", nil, nil, nil, []byte(`{"email":"x@y.io"}`), "1.1.1.1", "ua", false, "invalid credentials", now).
			AddRow("a1", "failed_login", "u1", nil, nil, nil, "1.1.1.1", "ua", false, nil, now))

	list, err := repo.List(context.Background(), ListFilter{Action: "failed_login"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
	if list[0].Details["email"] != "x@y.io" || list[0].ErrorMessage != "invalid credentials" || list[0].UserID != "" {
		t.Errorf("first = %+v", list[0])
	}
	if list[1].UserID != "u1" || list[1].Details != nil {
		t.Errorf("second = %+v", list[1])
	}
}

func TestListFilter_Limit(t *testing.T) {
	tests := []struct{ in, want int }{{0, DefaultListLimit}, {-3, DefaultListLimit}, {10, 10}, {10000, MaxListLimit}}
	for _, tt := range tests {
		if got := (ListFilter{Limit: tt.in}).limit(); got != tt.want {
			t.Errorf("limit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
