package notify

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/commandgrid/pmt/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

// Header and badge colors.
var (
	priorityColors = map[string]template.CSS{
		"high":   "#f44336",
		"medium": "#ff9800",
		"low":    "#4caf50",
	}
	reminderColors = map[string]template.CSS{
		"upcoming": "#ff9800",
		"overdue":  "#f44336",
		"today":    "#2196f3",
	}
	defaultHeaderColor template.CSS = "#2196f3"
	meetingHeaderColor template.CSS = "#673ab7"
)

var templateNames = []string{
	model.NotificationWelcome,
	model.NotificationTaskAssignment,
	model.NotificationDeadlineReminder,
	model.NotificationMeetingInvitation,
	model.NotificationGeneric,
}

type templateData struct {
	Title         string
	HeaderColor   template.CSS
	RecipientName string
	Message       string
	ActionURL     string
	ActionText    string
	Year          int

	TaskTitle      string
	ProjectName    string
	Description    string
	DueDate        string
	AssignerName   string
	EstimatedHours string
	PriorityLabel  string
	PriorityColor  template.CSS

	ReminderType  string
	ReminderLabel string
	ReminderColor template.CSS

	MeetingTitle string
	StartsAt     string
	HostName     string
}

// Renderer turns notifications into HTML email.
type Renderer struct {
	baseURL   string
	templates map[string]*template.Template
	now       func() time.Time
}

// NewRenderer parses the embedded templates. baseURL is used for action links.
func NewRenderer(baseURL string) (*Renderer, error) {
	layout, err := template.ParseFS(templateFS, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}

	templates := make(map[string]*template.Template, len(templateNames))
	for _, name := range templateNames {
		t, err := layout.Clone()
		if err != nil {
			return nil, fmt.Errorf("clone layout: %w", err)
		}
		if _, err := t.ParseFS(templateFS, "templates/"+name+".html"); err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		templates[name] = t
	}

	return &Renderer{
		baseURL:   strings.TrimRight(baseURL, "/"),
		templates: templates,
		now:       time.Now,
	}, nil
}

// Render returns the subject and HTML body for n. Unknown types use the generic template.
func (r *Renderer) Render(n *model.Notification, recipientName string) (string, string, error) {
	meta := metadataStrings(n.Metadata)
	data := templateData{
		Title:         n.Title,
		HeaderColor:   defaultHeaderColor,
		RecipientName: recipientName,
		Message:       n.Message,
		ActionURL:     meta["actionUrl"],
		ActionText:    firstNonEmpty(meta["actionText"], "Open PMT"),
		Year:          r.now().Year(),
	}

	name := n.Type
	if _, ok := r.templates[name]; !ok {
		name = model.NotificationGeneric
	}

	var subject string
	switch name {
	case model.NotificationWelcome:
		subject = "Welcome to PMT"
		data.Title = firstNonEmpty(n.Title, subject)
		data.ActionURL = firstNonEmpty(data.ActionURL, r.link(""))
		data.ActionText = firstNonEmpty(meta["actionText"], "Get started")

	case model.NotificationTaskAssignment:
		fillTask(&data, meta, n)
		data.HeaderColor = data.PriorityColor
		subject = "New task assigned: " + data.TaskTitle
		data.Title = "New Task Assignment"
		data.ActionURL = firstNonEmpty(data.ActionURL, r.link("/tasks/"+meta["taskId"]))
		data.ActionText = firstNonEmpty(meta["actionText"], "View Task")

	case model.NotificationDeadlineReminder:
		fillTask(&data, meta, n)
		data.ReminderType = meta["reminderType"]
		if _, ok := reminderColors[data.ReminderType]; !ok {
			data.ReminderType = "upcoming"
		}
		data.ReminderColor = reminderColors[data.ReminderType]
		data.HeaderColor = data.ReminderColor
		switch data.ReminderType {
		case "overdue":
			data.ReminderLabel = "Task Overdue"
			subject = "Task overdue: " + data.TaskTitle
		case "today":
			data.ReminderLabel = "Due Today"
			subject = "Task due today: " + data.TaskTitle
		default:
			data.ReminderLabel = "Upcoming Deadline"
			subject = "Upcoming deadline: " + data.TaskTitle
		}
		data.Title = data.ReminderLabel
		data.ActionURL = firstNonEmpty(data.ActionURL, r.link("/tasks/"+meta["taskId"]))
		data.ActionText = firstNonEmpty(meta["actionText"], "View Task")

	case model.NotificationMeetingInvitation:
		data.MeetingTitle = firstNonEmpty(meta["meetingTitle"], n.Title)
		data.StartsAt = meta["startsAt"]
		data.HostName = meta["hostName"]
		data.HeaderColor = meetingHeaderColor
		data.Title = "Meeting Invitation"
		subject = "Meeting invitation: " + data.MeetingTitle
		data.ActionURL = firstNonEmpty(data.ActionURL, r.link("/meetings/"+meta["meetingId"]))
		data.ActionText = firstNonEmpty(meta["actionText"], "Join Meeting")

	default:
		subject = firstNonEmpty(n.Title, "Notification from PMT")
	}

	var buf bytes.Buffer
	if err := r.templates[name].ExecuteTemplate(&buf, "layout", data); err != nil {
		return "", "", fmt.Errorf("render %s: %w", name, err)
	}
	return subject, buf.String(), nil
}

func (r *Renderer) link(path string) string {
	if r.baseURL == "" {
		return ""
	}
	if strings.HasSuffix(path, "/") {
		path = ""
	}
	return r.baseURL + path
}

func fillTask(data *templateData, meta map[string]string, n *model.Notification) {
	data.TaskTitle = firstNonEmpty(meta["taskTitle"], n.Title)
	data.ProjectName = meta["projectName"]
	data.Description = meta["description"]
	data.DueDate = meta["dueDate"]
	data.AssignerName = meta["assignerName"]
	data.EstimatedHours = meta["estimatedHours"]

	priority := strings.ToLower(meta["taskPriority"])
	if _, ok := priorityColors[priority]; !ok {
		priority = priorityFromLevel(n.Priority)
	}
	data.PriorityColor = priorityColors[priority]
	data.PriorityLabel = strings.ToUpper(priority[:1]) + priority[1:]
}

// priorityFromLevel maps the 1..4 notification priority onto task priority names.
func priorityFromLevel(level int) string {
	switch {
	case level >= 3:
		return "high"
	case level <= 1:
		return "low"
	default:
		return "medium"
	}
}

// metadataStrings flattens the top level of a metadata document into strings.
func metadataStrings(raw model.RawJSON) map[string]string {
	out := map[string]string{}
	if len(raw) == 0 {
		return out
	}
	var values map[string]any
	if err := json.Unmarshal(raw, &values); err != nil {
		return out
	}
	for k, v := range values {
		switch val := v.(type) {
		case nil:
		case string:
			out[k] = val
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
