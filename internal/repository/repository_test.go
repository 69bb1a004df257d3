package repository

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/commandgrid/pmt/internal/model"
)

func TestCursorRoundTrip(t *testing.T) {
	in := &PaginationCursor{ID: "01HZX", CreatedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}

	out, err := decodeCursor(encodeCursor(in))
	if err != nil {
		t.Fatalf("decode cursor: %v", err)
	}
	if out.ID != in.ID || !out.CreatedAt.Equal(in.CreatedAt) {
		t.Fatalf("cursor mismatch: got %+v want %+v", out, in)
	}
}

func TestDecodeCursor_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not base64", "%%%"},
		{"not json", "bm90LWpzb24"},
		{"missing id", encodeCursor(&PaginationCursor{CreatedAt: time.Now()})},
		{"missing time", encodeCursor(&PaginationCursor{ID: "x"})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := decodeCursor(tt.input); err == nil {
				t.Fatalf("expected error for %q", tt.input)
			}
		})
	}
}

func TestClampLimit(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, 20},
		{-5, 20},
		{1, 1},
		{100, 100},
		{101, 100},
	}

	for _, tt := range tests {
		if got := clampLimit(tt.in, 20, 100); got != tt.want {
			t.Errorf("clampLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestPgErrorHelpers(t *testing.T) {
	unique := fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "23505", ConstraintName: "users_email_unique"})
	fk := &pgconn.PgError{Code: "23503"}

	if !isUniqueViolation(unique) {
		t.Error("expected unique violation")
	}
	if isUniqueViolation(fk) {
		t.Error("foreign key error is not a unique violation")
	}
	if !isForeignKeyViolation(fk) {
		t.Error("expected foreign key violation")
	}
	if got := constraintName(unique); got != "users_email_unique" {
		t.Errorf("constraintName = %q", got)
	}
	if constraintName(errors.New("plain")) != "" {
		t.Error("expected empty constraint for non-pg error")
	}
}

func TestUTCDay(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*3600)
	in := time.Date(2025, 6, 2, 3, 30, 0, 0, loc) // 2025-06-01 20:30 UTC

	got := utcDay(in)
	want := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("utcDay = %s, want %s", got, want)
	}
}

func TestUniqueActivityDays(t *testing.T) {
	day1 := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	logs := []*model.ActivityLog{
		{CompanyID: "c1", Action: "task.created", OccurredAt: day1},
		{CompanyID: "c1", Action: "task.created", OccurredAt: day1.Add(2 * time.Hour)},
		{CompanyID: "c1", Action: "task.updated", OccurredAt: day1},
		{CompanyID: "c2", Action: "task.created", OccurredAt: day1.Add(24 * time.Hour)},
	}

	keys := uniqueActivityDays(logs)
	if len(keys) != 3 {
		t.Fatalf("expected 3 keys, got %d", len(keys))
	}
	if keys[0].companyID != "c1" || keys[0].action != "task.created" {
		t.Errorf("unexpected first key: %+v", keys[0])
	}
	if keys[2].companyID != "c2" || !keys[2].day.Equal(time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected last key: %+v", keys[2])
	}
}
