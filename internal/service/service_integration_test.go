//go:build integration

package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/commandgrid/pmt/internal/assistant"
	"github.com/commandgrid/pmt/internal/auth"
	"github.com/commandgrid/pmt/internal/cache"
	"github.com/commandgrid/pmt/internal/model"
	"github.com/commandgrid/pmt/internal/repository"
	"github.com/commandgrid/pmt/internal/testutil"
)

const testPassword = "correct-horse-battery"

var testMeta = RequestMeta{IP: "203.0.113.7", UserAgent: "integration-test"}

func TestIntegrationAuth_LoginFailureIsAudited(t *testing.T) {
	env := newServiceTestEnv(t)
	user := env.createUser(t, model.RoleMember)
	svc := env.authService()

	if _, err := svc.Login(env.ctx, user.Email, "wrong-password", testMeta); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Login(env.ctx, "nobody@example.com", "whatever", testMeta); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}

	logs, total, err := env.repo.ListAuditLogs(env.ctx, repository.AuditFilter{
		CompanyID: env.company.ID, Action: model.AuditLoginFailed, Page: 1, Limit: 10,
	})
	if err != nil {
		t.Fatalf("list audit logs: %v", err)
	}
	if total != 1 || len(logs) != 1 {
		t.Fatalf("expected one company login_failed row, got %d", total)
	}
	if logs[0].IPAddress == nil || *logs[0].IPAddress != testMeta.IP {
		t.Fatalf("expected client ip on audit row, got %+v", logs[0].IPAddress)
	}

	result, err := svc.Login(env.ctx, user.Email, testPassword, testMeta)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.AuthToken == "" || result.RefreshToken == "" || result.User.ID != user.ID {
		t.Fatalf("unexpected login result: %+v", result)
	}
}

func TestIntegrationAuth_Register(t *testing.T) {
	env := newServiceTestEnv(t)
	svc := env.authService()

	input := RegisterInput{
		Name: "Ann", Email: "Ann@Example.com", Username: testutil.UniqueID("ann"), Password: testPassword,
	}
	user, err := svc.Register(env.ctx, input, testMeta)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.CompanyID != nil {
		t.Fatalf("self-registered user must not join a company, got %v", *user.CompanyID)
	}
	if user.Role != model.RoleMember || user.HasAdminRights() {
		t.Fatalf("expected plain member, got role=%s admin=%v", user.Role, user.IsAdmin)
	}

	dup := input
	dup.Username = testutil.UniqueID("other")
	if _, err := svc.Register(env.ctx, dup, testMeta); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	dup = input
	dup.Email = "someone-else@example.com"
	if _, err := svc.Register(env.ctx, dup, testMeta); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}

	for _, role := range []string{model.RoleAdmin, model.RoleTeamLeader, "Overlord"} {
		attempt := RegisterInput{
			Name: "Eve", Email: testutil.UniqueID("eve") + "@example.com", Username: testutil.UniqueID("eve"),
			Password: testPassword, Role: role,
		}
		if _, err := svc.Register(env.ctx, attempt, testMeta); !errors.Is(err, ErrInvalidRole) {
			t.Fatalf("role %q: expected ErrInvalidRole, got %v", role, err)
		}
	}
}

func TestIntegrationAuth_RefreshRotation(t *testing.T) {
	env := newServiceTestEnv(t)
	user := env.createUser(t, model.RoleMember)
	svc := env.authService()

	login, err := svc.Login(env.ctx, user.Email, testPassword, testMeta)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	rotated, err := svc.Refresh(env.ctx, login.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if rotated.RefreshToken == login.RefreshToken {
		t.Fatal("expected a new refresh token")
	}

	if _, err := svc.Refresh(env.ctx, login.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for superseded refresh token, got %v", err)
	}
	if _, err := svc.Refresh(env.ctx, rotated.AuthToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for an access token, got %v", err)
	}
	if _, err := svc.Refresh(env.ctx, rotated.RefreshToken); err != nil {
		t.Fatalf("current refresh token should rotate: %v", err)
	}
}

func TestIntegrationAuth_LogoutRevokes(t *testing.T) {
	env := newServiceTestEnv(t)
	user := env.createUser(t, model.RoleMember)
	svc := env.authService()

	login, err := svc.Login(env.ctx, user.Email, testPassword, testMeta)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	claims, err := env.tokens.ParseAccess(login.AuthToken)
	if err != nil {
		t.Fatalf("parse access: %v", err)
	}
	ac := claims.AuthContext()

	if err := svc.Logout(env.ctx, ac, login.RefreshToken, testMeta); err != nil {
		t.Fatalf("logout: %v", err)
	}

	revoked, err := env.cache.IsTokenRevoked(env.ctx, ac.TokenID)
	if err != nil || !revoked {
		t.Fatalf("expected access token to be revoked, got %v %v", revoked, err)
	}
	if _, err := svc.Refresh(env.ctx, login.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken after logout, got %v", err)
	}
}

func TestIntegrationAdmin_ImpersonateAndEnd(t *testing.T) {
	env := newServiceTestEnv(t)
	admin := env.createUser(t, model.RoleAdmin)
	target := env.createUser(t, model.RoleDeveloper)
	svc := NewAdminService(env.repo, env.cache, env.tokens, nil, env.logger)
	adminCtx := env.authContext(admin)

	if _, err := svc.Impersonate(env.ctx, adminCtx, admin.ID, testMeta); !errors.Is(err, ErrSelfAction) {
		t.Fatalf("expected ErrSelfAction, got %v", err)
	}

	started, err := svc.Impersonate(env.ctx, adminCtx, target.ID, testMeta)
	if err != nil {
		t.Fatalf("impersonate: %v", err)
	}
	claims, err := env.tokens.ParseAccess(started.AuthToken)
	if err != nil {
		t.Fatalf("parse impersonation token: %v", err)
	}
	if claims.UserID != target.ID || claims.ImpersonatedBy != admin.ID {
		t.Fatalf("unexpected impersonation claims: %+v", claims)
	}
	impersonating := claims.AuthContext()

	if _, err := svc.Impersonate(env.ctx, impersonating, admin.ID, testMeta); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected nested impersonation to be forbidden, got %v", err)
	}

	ended, err := svc.EndImpersonation(env.ctx, impersonating, testMeta)
	if err != nil {
		t.Fatalf("end impersonation: %v", err)
	}
	if ended.User.ID != admin.ID {
		t.Fatalf("expected admin session, got %s", ended.User.ID)
	}
	revoked, err := env.cache.IsTokenRevoked(env.ctx, impersonating.TokenID)
	if err != nil || !revoked {
		t.Fatalf("expected impersonation token to be revoked, got %v %v", revoked, err)
	}
	if _, err := svc.EndImpersonation(env.ctx, env.authContext(admin), testMeta); !errors.Is(err, ErrNotImpersonating) {
		t.Fatalf("expected ErrNotImpersonating, got %v", err)
	}

	for _, action := range []string{model.AuditImpersonationStart, model.AuditImpersonationEnd} {
		_, total, err := env.repo.ListAuditLogs(env.ctx, repository.AuditFilter{
			CompanyID: env.company.ID, Action: action, Page: 1, Limit: 10,
		})
		if err != nil || total != 1 {
			t.Fatalf("expected one %s audit row, got %d %v", action, total, err)
		}
	}
}

func TestIntegrationMeeting_UpdateRequiresParticipant(t *testing.T) {
	env := newServiceTestEnv(t)
	host := env.createUser(t, model.RoleMember)
	guest := env.createUser(t, model.RoleMember)
	outsider := env.createUser(t, model.RoleMember)
	svc := NewMeetingService(env.repo, nil, nil, nil, nil, env.logger)

	meeting, err := svc.Create(env.ctx, env.authContext(host), CreateMeetingInput{
		Title: "Planning", ParticipantIDs: []string{guest.ID},
	})
	if err != nil {
		t.Fatalf("create meeting: %v", err)
	}

	title := "Renamed"
	if _, err := svc.Update(env.ctx, env.authContext(outsider), meeting.ID, UpdateMeetingInput{Title: &title}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for outsider, got %v", err)
	}
	updated, err := svc.Update(env.ctx, env.authContext(guest), meeting.ID, UpdateMeetingInput{Title: &title})
	if err != nil {
		t.Fatalf("participant update: %v", err)
	}
	if updated.Title != title {
		t.Fatalf("expected %q, got %q", title, updated.Title)
	}
	if err := svc.Leave(env.ctx, env.authContext(host), meeting.ID); !errors.Is(err, ErrHostCannotLeave) {
		t.Fatalf("expected ErrHostCannotLeave, got %v", err)
	}
}

func TestIntegrationChat_DefaultRoomCreatedOnce(t *testing.T) {
	env := newServiceTestEnv(t)
	first := env.createUser(t, model.RoleMember)
	second := env.createUser(t, model.RoleMember)
	svc := NewChatService(env.repo, nil, nil, env.logger)

	// A private room named like the default one must not be picked up.
	if _, err := svc.CreateRoom(env.ctx, env.authContext(first), CreateRoomInput{
		Name: model.DefaultRoomName, Type: model.RoomGeneral, IsPrivate: true,
	}); err != nil {
		t.Fatalf("create private room: %v", err)
	}

	if _, err := svc.SendMessage(env.ctx, env.authContext(first), model.DefaultRoomID, "hello"); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound before first visit, got %v", err)
	}

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		ids   = map[string]bool{}
		errs  []error
		users = []*model.User{first, second, first, second}
	)
	for _, u := range users {
		wg.Add(1)
		go func(u *model.User) {
			defer wg.Done()
			view, err := svc.Room(env.ctx, env.authContext(u), model.DefaultRoomID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			ids[view.Room.ID] = true
		}(u)
	}
	wg.Wait()

	if len(errs) > 0 {
		t.Fatalf("room: %v", errs[0])
	}
	if len(ids) != 1 {
		t.Fatalf("expected concurrent visits to share one default room, got %d", len(ids))
	}

	view, err := svc.Room(env.ctx, env.authContext(second), model.DefaultRoomID)
	if err != nil {
		t.Fatalf("room: %v", err)
	}
	if view.Room.IsPrivate || !view.Room.IsDefault || !view.Room.HasMember(first.ID) || !view.Room.HasMember(second.ID) {
		t.Fatalf("unexpected default room: %+v", view.Room)
	}
	if _, err := svc.SendMessage(env.ctx, env.authContext(first), model.DefaultRoomID, "hello"); err != nil {
		t.Fatalf("send to default room: %v", err)
	}
}

func TestIntegrationAI_RateAndTokenLimits(t *testing.T) {
	env := newServiceTestEnv(t)
	user := env.createUser(t, model.RoleMember)
	responder, err := assistant.NewResponder()
	if err != nil {
		t.Fatalf("load responder: %v", err)
	}
	svc := NewAIService(env.repo, responder, "test-model", nil, env.logger)

	limit := assistant.LimitsFor(model.TierFree).RequestsPerMinute
	for i := 0; i < limit; i++ {
		if _, err := svc.CreateSession(env.ctx, user.ID, "general", "How do I plan a sprint?"); err != nil {
			t.Fatalf("session %d: %v", i, err)
		}
	}

	_, err = svc.CreateSession(env.ctx, user.ID, "general", "One more")
	var rateErr *RateLimitError
	if !errors.As(err, &rateErr) {
		t.Fatalf("expected RateLimitError, got %v", err)
	}
	if rateErr.Result.Limit != limit || rateErr.Result.Current != limit {
		t.Fatalf("unexpected rate result: %+v", rateErr.Result)
	}
	if rateErr.Result.ResetInSeconds < 1 || rateErr.Result.ResetInSeconds > 60 {
		t.Fatalf("resetInSeconds out of range: %d", rateErr.Result.ResetInSeconds)
	}

	// A minute later the request window is clear but the day's budget is spent.
	svc.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	budget := assistant.LimitsFor(model.TierFree).TokensPerDay
	if err := env.repo.AddAIUsage(env.ctx, user.ID, svc.now(), budget, 1, 0); err != nil {
		t.Fatalf("add usage: %v", err)
	}
	if _, err := svc.Complete(env.ctx, user.ID, "Summarize my week"); !errors.Is(err, ErrTokenLimit) {
		t.Fatalf("expected ErrTokenLimit, got %v", err)
	}
}

func TestIntegrationTask_DeadlineRemindersAreSentOnce(t *testing.T) {
	env := newServiceTestEnv(t)
	owner := env.createUser(t, model.RoleMember)
	project := env.createProject(t, owner)
	notifier := &countingNotifier{}
	svc := NewTaskService(env.repo, notifier, nil, env.cache, nil, env.logger)

	now := time.Now().UTC()
	due := now.Add(6 * time.Hour)
	task := testutil.NewTestTask(t, project.ID, owner.ID)
	task.AssigneeID = &owner.ID
	task.DueDate = &due
	if err := env.repo.CreateTask(env.ctx, task); err != nil {
		t.Fatalf("create task: %v", err)
	}

	sent, err := svc.SendDeadlineReminders(env.ctx, now)
	if err != nil || sent != 1 {
		t.Fatalf("expected one reminder, got %d %v", sent, err)
	}
	sent, err = svc.SendDeadlineReminders(env.ctx, now)
	if err != nil || sent != 0 {
		t.Fatalf("expected the reminder to be deduplicated, got %d %v", sent, err)
	}
	if notifier.reminders() != 1 {
		t.Fatalf("expected one notification, got %d", notifier.reminders())
	}
}

func TestIntegrationTask_StatusAndReplayedUpdates(t *testing.T) {
	env := newServiceTestEnv(t)
	owner := env.createUser(t, model.RoleMember)
	project := env.createProject(t, owner)
	svc := NewTaskService(env.repo, nil, nil, nil, nil, env.logger)
	ac := env.authContext(owner)

	task := testutil.NewTestTask(t, project.ID, owner.ID)
	if err := env.repo.CreateTask(env.ctx, task); err != nil {
		t.Fatalf("create task: %v", err)
	}

	done, err := svc.ChangeStatus(env.ctx, ac, task.ID, model.TaskDone)
	if err != nil {
		t.Fatalf("change status: %v", err)
	}
	if done.CompletedAt == nil {
		t.Fatal("expected completedAt once done")
	}
	reopened, err := svc.ChangeStatus(env.ctx, ac, task.ID, model.TaskInProgress)
	if err != nil {
		t.Fatalf("change status: %v", err)
	}
	if reopened.CompletedAt != nil {
		t.Fatalf("expected completedAt cleared, got %v", reopened.CompletedAt)
	}

	title := "Ship the sync client"
	tags := []string{"feature", " "}
	update := UpdateTaskInput{Title: &title, Tags: &tags}
	first, err := svc.Update(env.ctx, ac, task.ID, update)
	if err != nil {
		t.Fatalf("first update: %v", err)
	}
	if len(first.Tags) != 1 || first.Tags[0] != "feature" {
		t.Fatalf("unexpected tags: %v", first.Tags)
	}

	activity, err := svc.Activity(env.ctx, ac, task.ID)
	if err != nil {
		t.Fatalf("activity: %v", err)
	}
	before := len(activity)

	// Replaying the same change succeeds without writing anything.
	replayed, err := svc.Update(env.ctx, ac, task.ID, update)
	if err != nil {
		t.Fatalf("replayed update: %v", err)
	}
	if replayed.Title != title || len(replayed.Tags) != 1 {
		t.Fatalf("replay should leave the task unchanged: %+v", replayed)
	}
	activity, err = svc.Activity(env.ctx, ac, task.ID)
	if err != nil {
		t.Fatalf("activity: %v", err)
	}
	if len(activity) != before {
		t.Fatalf("replay recorded activity: %d -> %d", before, len(activity))
	}

	if _, err := svc.Update(env.ctx, ac, task.ID, UpdateTaskInput{}); !errors.Is(err, ErrNothingToUpdate) {
		t.Fatalf("expected ErrNothingToUpdate, got %v", err)
	}
}

func TestIntegrationCalendar_ListExpandsSeriesInOrder(t *testing.T) {
	env := newServiceTestEnv(t)
	admin := env.createUser(t, model.RoleAdmin)
	svc := NewCalendarService(env.repo, nil, "https://pmt.example.com", env.logger)
	ac := env.authContext(admin)

	day := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	series, err := svc.Create(env.ctx, ac, CreateEventInput{
		Title: "Standup", StartsAt: day.Add(9 * time.Hour), EndsAt: day.Add(9*time.Hour + 15*time.Minute),
		RecurrenceRule: "RRULE:FREQ=DAILY;COUNT=3", Reminders: []int{10},
	})
	if err != nil {
		t.Fatalf("create series: %v", err)
	}
	if series.RecurrenceRule == nil || *series.RecurrenceRule != "FREQ=DAILY;COUNT=3" {
		t.Fatalf("expected canonical rule, got %v", series.RecurrenceRule)
	}
	if _, err := svc.Create(env.ctx, ac, CreateEventInput{
		Title: "Review", StartsAt: day.Add(24*time.Hour + 8*time.Hour),
	}); err != nil {
		t.Fatalf("create event: %v", err)
	}

	events, err := svc.List(env.ctx, ac, CalendarFilter{Start: day, End: day.AddDate(0, 0, 7), ShowRecurring: true})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	titles := make([]string, 0, len(events))
	for i, e := range events {
		titles = append(titles, e.Title)
		if i > 0 && e.StartsAt.Before(events[i-1].StartsAt) {
			t.Fatalf("events out of order at %d: %v", i, titles)
		}
	}
	want := []string{"Standup", "Review", "Standup", "Standup"}
	if len(titles) != len(want) {
		t.Fatalf("expected %v, got %v", want, titles)
	}
	for i := range want {
		if titles[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, titles)
		}
	}

	oneOff, err := svc.List(env.ctx, ac, CalendarFilter{Start: day, End: day.AddDate(0, 0, 7)})
	if err != nil {
		t.Fatalf("list without series: %v", err)
	}
	if len(oneOff) != 1 || oneOff[0].Title != "Review" {
		t.Fatalf("expected only the one-off event, got %d", len(oneOff))
	}

	if err := svc.Delete(env.ctx, ac, series.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(env.ctx, ac, series.ID); !errors.Is(err, ErrEventNotFound) {
		t.Fatalf("expected ErrEventNotFound, got %v", err)
	}
}

// countingNotifier counts deadline reminders and drops everything else.
type countingNotifier struct {
	discardNotifier
	mu   sync.Mutex
	sent int
}

func (n *countingNotifier) DeadlineReminder(context.Context, *model.Task, string, string) {
	n.mu.Lock()
	n.sent++
	n.mu.Unlock()
}

func (n *countingNotifier) reminders() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sent
}

type serviceTestEnv struct {
	ctx     context.Context
	repo    *repository.Repository
	cache   *cache.Cache
	tokens  *auth.TokenManager
	hasher  *auth.Hasher
	company *model.Company
	logger  *slog.Logger
}

func newServiceTestEnv(t *testing.T) *serviceTestEnv {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	ctx := context.Background()
	dbURL := testutil.RequireEnv(t, "DATABASE_URL")
	redisURL := testutil.RequireEnv(t, "REDIS_URL")

	repo, err := repository.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("connect db: %v", err)
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

	cacheClient, err := cache.New(ctx, redisURL)
	if err != nil {
		t.Fatalf("connect redis: %v", err)
	}
	t.Cleanup(func() {
		_ = cacheClient.Close()
	})

	if err := testutil.FlushRedis(ctx, cacheClient.Client()); err != nil {
		t.Fatalf("flush redis: %v", err)
	}

	company := testutil.NewTestCompany(t)
	if err := repo.CreateCompany(ctx, company); err != nil {
		t.Fatalf("create company: %v", err)
	}

	return &serviceTestEnv{
		ctx:   ctx,
		repo:  repo,
		cache: cacheClient,
		tokens: auth.NewTokenManager(auth.TokenConfig{
			AccessSecret:     "access-secret-for-tests",
			RefreshSecret:    "refresh-secret-for-tests",
			Issuer:           "pmt",
			AccessTTL:        15 * time.Minute,
			RefreshTTL:       time.Hour,
			ImpersonationTTL: time.Hour,
		}),
		hasher:  auth.NewHasher(4),
		company: company,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func (e *serviceTestEnv) authService() *AuthService {
	return NewAuthService(e.repo, e.cache, e.tokens, e.hasher, nil, nil, e.logger)
}

// createUser stores a company user whose password is testPassword.
func (e *serviceTestEnv) createUser(t *testing.T, role string) *model.User {
	t.Helper()
	user := testutil.NewTestUser(t, e.company.ID)
	user.Role = role
	user.IsAdmin = role == model.RoleAdmin
	hash, err := e.hasher.Hash(testPassword)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user.PasswordHash = hash
	if err := e.repo.CreateUser(e.ctx, user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func (e *serviceTestEnv) createProject(t *testing.T, owner *model.User) *model.Project {
	t.Helper()
	project := testutil.NewTestProject(t, e.company.ID, owner.ID)
	err := e.repo.WithTx(e.ctx, func(tx *repository.Repository) error {
		if err := tx.CreateProject(e.ctx, project); err != nil {
			return err
		}
		return tx.AddProjectMember(e.ctx, project.ID, owner.ID, model.ProjectRoleOwner)
	})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	return project
}

// authContext builds the principal an access token for user would carry.
func (e *serviceTestEnv) authContext(user *model.User) *model.AuthContext {
	return &model.AuthContext{
		UserID:    user.ID,
		CompanyID: user.CompanyIDValue(),
		Role:      user.Role,
		IsAdmin:   user.HasAdminRights(),
	}
}
