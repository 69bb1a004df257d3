package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commandgrid/pmt/internal/model"
)

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer("https://app.pmt.test/")
	require.NoError(t, err)
	r.now = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }
	return r
}

func TestRender_TaskAssignmentPriorityColors(t *testing.T) {
	r := newTestRenderer(t)

	tests := []struct {
		priority string
		color    string
		label    string
	}{
		{"high", "#f44336", "High Priority"},
		{"medium", "#ff9800", "Medium Priority"},
		{"low", "#4caf50", "Low Priority"},
	}

	for _, tt := range tests {
		t.Run(tt.priority, func(t *testing.T) {
			n := &model.Notification{
				Type:     model.NotificationTaskAssignment,
				Title:    "Ship release",
				Priority: 2,
				Metadata: model.MustJSON(map[string]any{
					"taskId":       "T1",
					"taskTitle":    "Ship release",
					"taskPriority": tt.priority,
					"assignerName": "Dana",
				}),
			}
			subject, html, err := r.Render(n, "Sam")
			require.NoError(t, err)
			assert.Equal(t, "New task assigned: Ship release", subject)
			assert.Contains(t, html, tt.color)
			assert.Contains(t, html, tt.label)
			assert.Contains(t, html, "Hi Sam,")
			assert.Contains(t, html, "https://app.pmt.test/tasks/T1")
			assert.Contains(t, html, "&copy; 2026 PMT")
		})
	}
}

func TestRender_TaskAssignmentFallsBackToLevel(t *testing.T) {
	r := newTestRenderer(t)
	n := &model.Notification{Type: model.NotificationTaskAssignment, Title: "Fix bug", Priority: 4}

	_, html, err := r.Render(n, "")
	require.NoError(t, err)
	assert.Contains(t, html, "#f44336")
	assert.NotContains(t, html, "Hi ,")
}

func TestRender_DeadlineReminderStyles(t *testing.T) {
	r := newTestRenderer(t)

	tests := []struct {
		kind    string
		color   string
		subject string
	}{
		{"upcoming", "#ff9800", "Upcoming deadline: Report"},
		{"today", "#2196f3", "Task due today: Report"},
		{"overdue", "#f44336", "Task overdue: Report"},
		{"bogus", "#ff9800", "Upcoming deadline: Report"},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			n := &model.Notification{
				Type:  model.NotificationDeadlineReminder,
				Title: "Report",
				Metadata: model.MustJSON(map[string]any{
					"reminderType": tt.kind,
					"dueDate":      "2026-03-02",
				}),
			}
			subject, html, err := r.Render(n, "Sam")
			require.NoError(t, err)
			assert.Equal(t, tt.subject, subject)
			assert.Contains(t, html, tt.color)
			assert.Contains(t, html, "2026-03-02")
		})
	}
}

func TestRender_EscapesUserContent(t *testing.T) {
	r := newTestRenderer(t)
	n := &model.Notification{
		Type:    model.NotificationGeneric,
		Title:   "Hello",
		Message: `<script>alert("x")</script>`,
	}

	_, html, err := r.Render(n, "<b>Eve</b>")
	require.NoError(t, err)
	assert.NotContains(t, html, "<script>")
	assert.Contains(t, html, "&lt;script&gt;")
	assert.NotContains(t, html, "<b>Eve</b>")
}

func TestRender_UnknownTypeUsesGeneric(t *testing.T) {
	r := newTestRenderer(t)
	n := &model.Notification{Type: "project_update", Title: "Project moved", Message: "Now on hold"}

	subject, html, err := r.Render(n, "")
	require.NoError(t, err)
	assert.Equal(t, "Project moved", subject)
	assert.Contains(t, html, "Now on hold")
}

func TestRender_WelcomeAndMeeting(t *testing.T) {
	r := newTestRenderer(t)

	subject, html, err := r.Render(&model.Notification{Type: model.NotificationWelcome}, "Sam")
	require.NoError(t, err)
	assert.Equal(t, "Welcome to PMT", subject)
	assert.Contains(t, html, "Get started")

	subject, html, err = r.Render(&model.Notification{
		Type:     model.NotificationMeetingInvitation,
		Title:    "Standup",
		Metadata: model.MustJSON(map[string]any{"meetingId": "M1", "hostName": "Dana", "startsAt": "2026-03-02 09:00 UTC"}),
	}, "Sam")
	require.NoError(t, err)
	assert.Equal(t, "Meeting invitation: Standup", subject)
	assert.Contains(t, html, "https://app.pmt.test/meetings/M1")
	assert.Contains(t, html, "Dana")
}

func TestMetadataStrings(t *testing.T) {
	got := metadataStrings(model.RawJSON(`{"a":"x","b":2.5,"c":null,"d":true}`))
	assert.Equal(t, map[string]string{"a": "x", "b": "2.5", "d": "true"}, got)
	assert.Empty(t, metadataStrings(model.RawJSON(`not json`)))
	assert.Empty(t, metadataStrings(nil))
}
