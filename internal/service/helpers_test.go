package service

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/commandgrid/pmt/internal/model"
	"github.com/commandgrid/pmt/internal/repository"
)

func TestParseDateFilter(t *testing.T) {
	day := time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		value   string
		want    *repository.DateFilter
		wantErr error
	}{
		{"empty", "", nil, nil},
		{"exact", "2024-05-17", &repository.DateFilter{Op: repository.DateOpEqual, Day: day}, nil},
		{"gte", "gte.2024-05-17", &repository.DateFilter{Op: repository.DateOpGreaterOrEq, Day: day}, nil},
		{"lt", "lt.2024-05-17", &repository.DateFilter{Op: repository.DateOpLess, Day: day}, nil},
		{"unknown_operator", "gt.2024-05-17", nil, ErrInvalidDateFilter},
		{"bad_date", "gte.2024-13-01", nil, ErrInvalidDateFilter},
		{"garbage", "tomorrow", nil, ErrInvalidDateFilter},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := ParseDateFilter(test.value)
			if !errors.Is(err, test.wantErr) {
				t.Fatalf("expected %v, got %v", test.wantErr, err)
			}
			if !reflect.DeepEqual(got, test.want) {
				t.Fatalf("expected %+v, got %+v", test.want, got)
			}
		})
	}
}

func TestScheduleTime(t *testing.T) {
	now := time.Date(2024, 5, 17, 9, 42, 33, 0, time.UTC)

	tests := []struct {
		name    string
		date    string
		clock   string
		want    time.Time
		wantErr error
	}{
		{"defaults_to_now", "", "", time.Date(2024, 5, 17, 9, 42, 0, 0, time.UTC), nil},
		{"date_only", "2024-06-01", "", time.Date(2024, 6, 1, 9, 42, 0, 0, time.UTC), nil},
		{"time_only", "", "14:30", time.Date(2024, 5, 17, 14, 30, 0, 0, time.UTC), nil},
		{"both", "2024-06-01", "08:05", time.Date(2024, 6, 1, 8, 5, 0, 0, time.UTC), nil},
		{"bad_date", "01/06/2024", "", time.Time{}, ErrInvalidDateTime},
		{"bad_time", "", "25:00", time.Time{}, ErrInvalidDateTime},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := scheduleTime(test.date, test.clock, now)
			if !errors.Is(err, test.wantErr) {
				t.Fatalf("expected %v, got %v", test.wantErr, err)
			}
			if !got.Equal(test.want) {
				t.Fatalf("expected %v, got %v", test.want, got)
			}
		})
	}
}

func TestReminderKind(t *testing.T) {
	now := time.Date(2024, 5, 17, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		due  time.Time
		want string
	}{
		{"overdue", now.Add(-time.Hour), ReminderOverdue},
		{"later_today", now.Add(6 * time.Hour), ReminderToday},
		{"tomorrow", now.Add(18 * time.Hour), ReminderUpcoming},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := reminderKind(test.due, now); got != test.want {
				t.Fatalf("expected %s, got %s", test.want, got)
			}
		})
	}
}

func TestApplyCompletion(t *testing.T) {
	now := time.Now().UTC()
	earlier := now.Add(-time.Hour)

	task := &model.Task{Status: model.TaskDone}
	applyCompletion(task, model.TaskInProgress, now)
	if task.CompletedAt == nil || !task.CompletedAt.Equal(now) {
		t.Fatalf("expected completedAt to be stamped, got %v", task.CompletedAt)
	}

	task = &model.Task{Status: model.TaskDone, CompletedAt: &earlier}
	applyCompletion(task, model.TaskDone, now)
	if !task.CompletedAt.Equal(earlier) {
		t.Fatalf("expected completedAt to be kept, got %v", task.CompletedAt)
	}

	task = &model.Task{Status: model.TaskReview, CompletedAt: &earlier}
	applyCompletion(task, model.TaskDone, now)
	if task.CompletedAt != nil {
		t.Fatalf("expected completedAt to be cleared, got %v", task.CompletedAt)
	}
}

func TestNormalizeTags(t *testing.T) {
	got := normalizeTags([]string{" Feature", "ui", "feature", "", "   ", "UI "})
	want := []string{"feature", "ui"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestInvalidIDs(t *testing.T) {
	got := invalidIDs([]string{"a", "b", "c", "d"}, []string{"c", "a"})
	want := []string{"b", "d"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if got := invalidIDs([]string{"a"}, []string{"a"}); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestNormalizePage(t *testing.T) {
	tests := []struct {
		name              string
		page, limit       int
		wantPage, wantLim int
	}{
		{"defaults", 0, 0, 1, 20},
		{"negative", -3, -1, 1, 20},
		{"clamped", 2, 500, 2, 100},
		{"passthrough", 4, 25, 4, 25},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			page, limit := normalizePage(test.page, test.limit)
			if page != test.wantPage || limit != test.wantLim {
				t.Fatalf("expected (%d, %d), got (%d, %d)", test.wantPage, test.wantLim, page, limit)
			}
		})
	}
}

func TestNewPagination(t *testing.T) {
	if p := newPagination(1, 20, 0); p.TotalPages != 0 {
		t.Fatalf("expected 0 pages, got %d", p.TotalPages)
	}
	if p := newPagination(1, 20, 41); p.TotalPages != 3 {
		t.Fatalf("expected 3 pages, got %d", p.TotalPages)
	}
	if p := newPagination(2, 10, 10); p.TotalPages != 1 || p.Total != 10 || p.Page != 2 {
		t.Fatalf("unexpected pagination: %+v", p)
	}
}

func TestBuildThreats(t *testing.T) {
	failed := []repository.KeyCount{{Key: "10.0.0.1", Count: 12}, {Key: "10.0.0.2", Count: 5}, {Key: "10.0.0.3", Count: 4}}
	impersonations := []repository.KeyCount{{Key: "admin-1", Count: 3}, {Key: "admin-2", Count: 2}}

	threats := buildThreats(failed, impersonations)
	if len(threats) != 3 {
		t.Fatalf("expected 3 threats, got %d", len(threats))
	}

	want := []struct {
		kind, severity, subject string
	}{
		{ThreatBruteForce, SeverityHigh, "10.0.0.1"},
		{ThreatBruteForce, SeverityMedium, "10.0.0.2"},
		{ThreatImpersonationSpike, SeverityMedium, "admin-1"},
	}
	for i, w := range want {
		got := threats[i]
		if got.Type != w.kind || got.Severity != w.severity || got.Subject != w.subject {
			t.Fatalf("threat %d: expected %+v, got %+v", i, w, got)
		}
	}
}

func TestCompletion(t *testing.T) {
	tests := []struct {
		done, total int
		want        float64
	}{
		{0, 0, 0},
		{1, 3, 33.33},
		{2, 3, 66.67},
		{4, 4, 100},
	}
	for _, test := range tests {
		if got := completion(test.done, test.total); got != test.want {
			t.Fatalf("completion(%d, %d): expected %v, got %v", test.done, test.total, test.want, got)
		}
	}
}

func TestReportRange(t *testing.T) {
	from, to, err := reportRange("2024-05-01", "2024-05-31")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !from.Equal(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)) || !to.Equal(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected range %v - %v", from, to)
	}

	from, to, err = reportRange("2024-05-01T08:00:00Z", "2024-05-01T10:00:00Z")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if to.Sub(from) != 2*time.Hour {
		t.Fatalf("expected a two hour range, got %v", to.Sub(from))
	}

	for _, input := range [][2]string{{"", "2024-05-01"}, {"2024-05-02", ""}, {"2024-05-10", "2024-05-01"}, {"May 1", "2024-05-02"}} {
		if _, _, err := reportRange(input[0], input[1]); !errors.Is(err, ErrInvalidDateRange) {
			t.Fatalf("%v: expected ErrInvalidDateRange, got %v", input, err)
		}
	}
}

func TestRenderCSVReport(t *testing.T) {
	rows := []model.ChatReportRow{
		{
			CreatedAt:   time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC),
			SenderName:  "Ada",
			RoomName:    "General Chat",
			ProjectName: "",
			Message:     "hello, \"team\"",
		},
	}

	report, err := renderCSVReport(rows)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if report.ContentType != "text/csv" || report.Filename != "chat-report.csv" {
		t.Fatalf("unexpected attachment metadata: %+v", report)
	}

	records, err := csv.NewReader(bytes.NewReader(report.Body)).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected header and one row, got %d records", len(records))
	}
	if strings.Join(records[0], ",") != "created_at,sender_name,room_name,project_name,message" {
		t.Fatalf("unexpected header: %v", records[0])
	}
	if records[1][0] != "2024-05-02T10:00:00Z" || records[1][4] != "hello, \"team\"" {
		t.Fatalf("unexpected row: %v", records[1])
	}
}

func TestRenderPDFReport(t *testing.T) {
	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	rows := []model.ChatReportRow{{CreatedAt: from.Add(time.Hour), SenderName: "Ada", RoomName: "Dev", ProjectName: "Apollo", Message: "ship it"}}

	report, err := renderPDFReport(rows, from, from.AddDate(0, 0, 1), from)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if report.ContentType != "application/pdf" || report.Filename != "chat-report.pdf" {
		t.Fatalf("unexpected attachment metadata: %+v", report)
	}
	if !bytes.HasPrefix(report.Body, []byte("%PDF-")) {
		t.Fatalf("expected a PDF document")
	}
}

func TestDefaultSettings(t *testing.T) {
	doc := DefaultSettings("pmt-assistant-1")
	if len(doc) != len(SettingsSections) {
		t.Fatalf("expected %d sections, got %d", len(SettingsSections), len(doc))
	}

	var ai struct {
		Enabled bool   `json:"enabled"`
		Model   string `json:"model"`
	}
	if err := json.Unmarshal(doc["ai"], &ai); err != nil {
		t.Fatalf("decode ai section: %v", err)
	}
	if !ai.Enabled || ai.Model != "pmt-assistant-1" {
		t.Fatalf("unexpected ai defaults: %+v", ai)
	}

	var sound struct {
		Volume int `json:"volume"`
	}
	if err := json.Unmarshal(doc["sound"], &sound); err != nil || sound.Volume != 70 {
		t.Fatalf("unexpected sound defaults: %+v (%v)", sound, err)
	}
}

func TestValidateSettings(t *testing.T) {
	tests := []struct {
		name    string
		doc     Settings
		wantErr error
	}{
		{"valid", Settings{"sound": json.RawMessage(`{"enabled":false}`)}, nil},
		{"empty", Settings{}, ErrInvalidSettings},
		{"unknown_section", Settings{"colors": json.RawMessage(`{}`)}, ErrInvalidSettings},
		{"not_object", Settings{"sound": json.RawMessage(`true`)}, ErrInvalidSettings},
		{"null_section", Settings{"sound": json.RawMessage(`null`)}, ErrInvalidSettings},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if err := ValidateSettings(test.doc); !errors.Is(err, test.wantErr) {
				t.Fatalf("expected %v, got %v", test.wantErr, err)
			}
		})
	}
}

func TestCanManageTeam(t *testing.T) {
	lead := "lead-1"
	team := &model.Team{LeadID: &lead}

	tests := []struct {
		name string
		ac   *model.AuthContext
		want bool
	}{
		{"admin", &model.AuthContext{UserID: "u1", Role: model.RoleAdmin}, true},
		{"manager", &model.AuthContext{UserID: "u1", Role: model.RoleManager}, true},
		{"lead", &model.AuthContext{UserID: lead, Role: model.RoleMember}, true},
		{"member", &model.AuthContext{UserID: "u1", Role: model.RoleMember}, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := canManageTeam(test.ac, team); got != test.want {
				t.Fatalf("expected %v, got %v", test.want, got)
			}
		})
	}
}
