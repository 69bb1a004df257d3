//go:build integration

package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/commandgrid/pmt/internal/model"
	"github.com/commandgrid/pmt/internal/testutil"
)

func TestIntegrationRepository_UserLifecycle(t *testing.T) {
	ctx, repo, company := newTestRepository(t)

	user := testutil.NewTestUser(t, company.ID)
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("create user: %v", err)
	}

	dup := testutil.NewTestUser(t, company.ID)
	dup.Email = user.Email
	if err := repo.CreateUser(ctx, dup); !errors.Is(err, ErrEmailExists) {
		t.Fatalf("expected ErrEmailExists, got %v", err)
	}

	dup = testutil.NewTestUser(t, company.ID)
	dup.Username = user.Username
	if err := repo.CreateUser(ctx, dup); !errors.Is(err, ErrUsernameExists) {
		t.Fatalf("expected ErrUsernameExists, got %v", err)
	}

	byEmail, err := repo.GetUserByEmail(ctx, user.Email)
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if byEmail.ID != user.ID {
		t.Fatalf("expected %s, got %s", user.ID, byEmail.ID)
	}

	if err := repo.RecordLogin(ctx, user.ID, "refresh-1", time.Now()); err != nil {
		t.Fatalf("record login: %v", err)
	}
	got, err := repo.GetUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.RefreshToken == nil || *got.RefreshToken != "refresh-1" || got.LastLoginAt == nil {
		t.Fatalf("login not recorded: %+v", got)
	}

	if _, err := repo.GetCompanyUser(ctx, "other-company", user.ID); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound across tenants, got %v", err)
	}
}

func TestIntegrationRepository_ProjectAndTasks(t *testing.T) {
	ctx, repo, company := newTestRepository(t)
	owner := createUser(t, ctx, repo, company.ID)

	project := testutil.NewTestProject(t, company.ID, owner.ID)
	err := repo.WithTx(ctx, func(tx *Repository) error {
		if err := tx.CreateProject(ctx, project); err != nil {
			return err
		}
		return tx.AddProjectMember(ctx, project.ID, owner.ID, model.ProjectRoleOwner)
	})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}

	if err := repo.AddProjectMember(ctx, project.ID, owner.ID, model.ProjectRoleMember); !errors.Is(err, ErrAlreadyMember) {
		t.Fatalf("expected ErrAlreadyMember, got %v", err)
	}

	task := testutil.NewTestTask(t, project.ID, owner.ID)
	task.Tags = []string{model.FeatureTag}
	if err := repo.CreateTask(ctx, task); err != nil {
		t.Fatalf("create task: %v", err)
	}

	features, err := repo.ListTasks(ctx, TaskFilter{CompanyID: company.ID, Tag: model.FeatureTag})
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(features) != 1 || features[0].ID != task.ID {
		t.Fatalf("expected the feature task, got %d tasks", len(features))
	}

	counts, err := repo.CountTasksByStatus(ctx, project.ID)
	if err != nil {
		t.Fatalf("count tasks: %v", err)
	}
	if counts[model.TaskTodo] != 1 || counts[model.TaskDone] != 0 {
		t.Fatalf("unexpected counts: %v", counts)
	}

	if _, err := repo.GetTask(ctx, "other-company", task.ID); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound across tenants, got %v", err)
	}
}

func TestIntegrationRepository_Meetings(t *testing.T) {
	ctx, repo, company := newTestRepository(t)
	host := createUser(t, ctx, repo, company.ID)
	guest := createUser(t, ctx, repo, company.ID)

	now := time.Now().UTC()
	meeting := &model.Meeting{
		ID:              ulid.Make().String(),
		CompanyID:       company.ID,
		Title:           "Standup",
		HostID:          host.ID,
		StartsAt:        now.Add(time.Hour),
		DurationMinutes: 15,
		Context:         model.MeetingContextCompany,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	meeting.ChannelName = "pmt-" + meeting.ID
	if err := repo.CreateMeeting(ctx, meeting); err != nil {
		t.Fatalf("create meeting: %v", err)
	}
	if _, err := repo.AddMeetingParticipant(ctx, meeting.ID, host.ID, model.ParticipantHost); err != nil {
		t.Fatalf("add host: %v", err)
	}

	inserted, err := repo.AddMeetingParticipant(ctx, meeting.ID, guest.ID, model.ParticipantUser)
	if err != nil || !inserted {
		t.Fatalf("expected first join to insert, got %v %v", inserted, err)
	}
	inserted, err = repo.AddMeetingParticipant(ctx, meeting.ID, guest.ID, model.ParticipantUser)
	if err != nil || inserted {
		t.Fatalf("expected second join to be a no-op, got %v %v", inserted, err)
	}

	got, err := repo.GetMeeting(ctx, company.ID, meeting.ID)
	if err != nil {
		t.Fatalf("get meeting: %v", err)
	}
	if got.ParticipantCount != 2 {
		t.Fatalf("expected 2 participants, got %d", got.ParticipantCount)
	}

	n, err := repo.CountMeetingsForUser(ctx, company.ID, guest.ID, &DateFilter{Op: DateOpGreaterOrEq, Day: now})
	if err != nil {
		t.Fatalf("count meetings: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 upcoming meeting, got %d", n)
	}
}

func TestIntegrationRepository_NotificationsAndSettings(t *testing.T) {
	ctx, repo, company := newTestRepository(t)
	user := createUser(t, ctx, repo, company.ID)

	if _, err := repo.GetNotificationPreferences(ctx, user.ID); !errors.Is(err, ErrPreferencesNotFound) {
		t.Fatalf("expected ErrPreferencesNotFound, got %v", err)
	}
	prefs := model.DefaultNotificationPreferences(user.ID)
	prefs.MutedTypes = []string{model.NotificationGeneric}
	if err := repo.UpsertNotificationPreferences(ctx, prefs); err != nil {
		t.Fatalf("upsert prefs: %v", err)
	}
	stored, err := repo.GetNotificationPreferences(ctx, user.ID)
	if err != nil {
		t.Fatalf("get prefs: %v", err)
	}
	if len(stored.MutedTypes) != 1 || stored.MutedTypes[0] != model.NotificationGeneric {
		t.Fatalf("unexpected muted types: %v", stored.MutedTypes)
	}

	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		n := &model.Notification{
			ID: ulid.Make().String(), UserID: user.ID, Type: model.NotificationGeneric, Title: "hi",
			Priority: model.PriorityLevelDefault, Channel: model.ChannelInApp, DeliveryStatus: model.DeliverySkipped,
			MaxAttempts: 5, NextAttemptAt: now, CreatedAt: now,
		}
		if err := repo.CreateNotification(ctx, n); err != nil {
			t.Fatalf("create notification: %v", err)
		}
	}
	changed, err := repo.MarkAllNotificationsRead(ctx, user.ID)
	if err != nil || changed != 3 {
		t.Fatalf("expected 3 marked read, got %d %v", changed, err)
	}

	if _, err := repo.GetSettings(ctx, user.ID); !errors.Is(err, ErrSettingsNotFound) {
		t.Fatalf("expected ErrSettingsNotFound, got %v", err)
	}
	if err := repo.UpsertSettings(ctx, user.ID, model.RawJSON(`{"sound":{"enabled":false}}`)); err != nil {
		t.Fatalf("upsert settings: %v", err)
	}
	if _, err := repo.GetSettings(ctx, user.ID); err != nil {
		t.Fatalf("get settings: %v", err)
	}
}

func TestIntegrationRepository_DefaultRoom(t *testing.T) {
	ctx, repo, company := newTestRepository(t)
	user := createUser(t, ctx, repo, company.ID)
	now := time.Now().UTC()

	// A private room with the default name is not the default room.
	decoy := &model.ChatRoom{
		ID: ulid.Make().String(), CompanyID: company.ID, Name: model.DefaultRoomName,
		Type: model.RoomGeneral, IsPrivate: true, CreatedBy: user.ID, CreatedAt: now.Add(-time.Hour),
	}
	if err := repo.CreateRoom(ctx, decoy); err != nil {
		t.Fatalf("create room: %v", err)
	}
	if _, err := repo.DefaultRoom(ctx, company.ID); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}

	candidate := func() *model.ChatRoom {
		return &model.ChatRoom{
			ID: ulid.Make().String(), CompanyID: company.ID, Name: model.DefaultRoomName,
			Type: model.RoomGeneral, IsDefault: true, CreatedBy: user.ID, CreatedAt: now,
		}
	}
	first, created, err := repo.EnsureDefaultRoom(ctx, candidate())
	if err != nil || !created {
		t.Fatalf("expected default room to be created, got created=%v err=%v", created, err)
	}
	if first.ID == decoy.ID || !first.IsDefault || first.IsPrivate {
		t.Fatalf("unexpected default room: %+v", first)
	}

	second, created, err := repo.EnsureDefaultRoom(ctx, candidate())
	if err != nil {
		t.Fatalf("ensure default room: %v", err)
	}
	if created || second.ID != first.ID {
		t.Fatalf("expected existing room %s, got %s (created=%v)", first.ID, second.ID, created)
	}
}

func TestIntegrationRepository_FailedLoginsByIP(t *testing.T) {
	ctx, repo, company := newTestRepository(t)
	now := time.Now().UTC()

	failure := func(companyID *string, ip string) {
		t.Helper()
		row := &model.AuditLog{
			ID: ulid.Make().String(), CompanyID: companyID, Action: model.AuditLoginFailed,
			IPAddress: &ip, CreatedAt: now,
		}
		if err := repo.CreateAuditLog(ctx, row); err != nil {
			t.Fatalf("create audit log: %v", err)
		}
	}

	// 10.0.0.1 hits one known account and four unknown emails.
	failure(&company.ID, "10.0.0.1")
	for i := 0; i < 4; i++ {
		failure(nil, "10.0.0.1")
	}
	// 10.0.0.2 never touched this company.
	for i := 0; i < 6; i++ {
		failure(nil, "10.0.0.2")
	}

	got, err := repo.FailedLoginsByIP(ctx, company.ID, now.Add(-time.Hour), 5)
	if err != nil {
		t.Fatalf("failed logins by ip: %v", err)
	}
	if len(got) != 1 || got[0].Key != "10.0.0.1" || got[0].Count != 5 {
		t.Fatalf("expected [10.0.0.1:5], got %+v", got)
	}
}

func TestIntegrationRepository_CalendarEvents(t *testing.T) {
	ctx, repo, company := newTestRepository(t)
	owner := createUser(t, ctx, repo, company.ID)
	guest := createUser(t, ctx, repo, company.ID)
	day := time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)
	rule := "FREQ=WEEKLY"

	event := func(title string, start time.Time, rule *string) *model.CalendarEvent {
		return &model.CalendarEvent{
			ID: ulid.Make().String(), CompanyID: company.ID, Title: title,
			StartsAt: start, EndsAt: start.Add(time.Hour), RecurrenceRule: rule,
			ReminderMinutes: []int32{10}, CreatedBy: owner.ID, CreatedAt: day,
		}
	}
	inside := event("review", day.Add(10*time.Hour), nil)
	outside := event("later", day.AddDate(0, 1, 0), nil)
	series := event("standup", day.AddDate(0, -2, 0), &rule)
	for _, e := range []*model.CalendarEvent{inside, outside, series} {
		if err := repo.CreateEvent(ctx, e); err != nil {
			t.Fatalf("create event: %v", err)
		}
	}
	if err := repo.AddEventAttendee(ctx, inside.ID, guest.ID); err != nil {
		t.Fatalf("add attendee: %v", err)
	}
	if err := repo.AddEventAttendee(ctx, inside.ID, guest.ID); err != nil {
		t.Fatalf("re-adding an attendee should be ignored: %v", err)
	}

	listed, err := repo.ListEvents(ctx, EventFilter{CompanyID: company.ID, From: day, To: day.AddDate(0, 0, 7)})
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(listed) != 2 || listed[0].ID != series.ID || listed[1].ID != inside.ID {
		t.Fatalf("expected series then review, got %+v", listed)
	}
	if len(listed[1].Attendees) != 1 || listed[1].Attendees[0].Status != model.AttendeePending {
		t.Fatalf("unexpected attendees: %+v", listed[1].Attendees)
	}
	if len(listed[1].ReminderMinutes) != 1 || listed[1].ReminderMinutes[0] != 10 {
		t.Fatalf("unexpected reminders: %v", listed[1].ReminderMinutes)
	}

	plain, err := repo.ListEvents(ctx, EventFilter{CompanyID: company.ID, From: day, To: day.AddDate(0, 0, 7), SkipRecurring: true})
	if err != nil || len(plain) != 1 {
		t.Fatalf("expected only the one-off event, got %d %v", len(plain), err)
	}

	if _, err := repo.GetEvent(ctx, "other-company", inside.ID); !errors.Is(err, ErrEventNotFound) {
		t.Fatalf("expected ErrEventNotFound across tenants, got %v", err)
	}
	if err := repo.DeleteEvent(ctx, company.ID, inside.ID); err != nil {
		t.Fatalf("delete event: %v", err)
	}
	if err := repo.DeleteEvent(ctx, company.ID, inside.ID); !errors.Is(err, ErrEventNotFound) {
		t.Fatalf("expected ErrEventNotFound, got %v", err)
	}
}

func createUser(t *testing.T, ctx context.Context, repo *Repository, companyID string) *model.User {
	t.Helper()
	user := testutil.NewTestUser(t, companyID)
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func newTestRepository(t *testing.T) (context.Context, *Repository, *model.Company) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	ctx := context.Background()
	dbURL := testutil.RequireEnv(t, "DATABASE_URL")
	repo, err := New(ctx, dbURL)
	if err != nil {
		t.Fatalf("create repository: %v", err)
	}
	t.Cleanup(repo.Close)

	unlock, err := testutil.AcquireDBLock(ctx, repo.Pool())
	if err != nil {
		t.Fatalf("acquire db lock: %v", err)
	}
	t.Cleanup(func() {
		_ = unlock()
	})

	if err := testutil.ResetSchema(ctx, repo.Pool()); err != nil {
		t.Fatalf("reset schema: %v", err)
	}

	company := testutil.NewTestCompany(t)
	if err := repo.CreateCompany(ctx, company); err != nil {
		t.Fatalf("create company: %v", err)
	}
	return ctx, repo, company
}
