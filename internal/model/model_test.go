package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestAuthContext_HasRole(t *testing.T) {
	tests := []struct {
		name  string
		ctx   AuthContext
		roles []string
		want  bool
	}{
		{"admin flag satisfies anything", AuthContext{IsAdmin: true, Role: RoleMember}, []string{RoleManager}, true},
		{"admin role satisfies anything", AuthContext{Role: RoleAdmin}, []string{RoleManager}, true},
		{"matching role", AuthContext{Role: RoleManager}, []string{RoleManager, RoleProjectManager}, true},
		{"non matching role", AuthContext{Role: RoleMember}, []string{RoleManager}, false},
		{"no roles given", AuthContext{Role: RoleMember}, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ctx.HasRole(tt.roles...); got != tt.want {
				t.Errorf("HasRole(%v) = %v, want %v", tt.roles, got, tt.want)
			}
		})
	}
}

func TestIsAssignableRole(t *testing.T) {
	for _, role := range AssignableRoles {
		if !IsAssignableRole(role) {
			t.Errorf("expected %q to be assignable", role)
		}
	}
	if IsAssignableRole(RoleTeamLeader) {
		t.Error("Team Leader is derived and must not be assignable")
	}
}

func TestIsSelfAssignableRole(t *testing.T) {
	tests := []struct {
		role string
		want bool
	}{
		{RoleMember, true},
		{RoleDeveloper, true},
		{RoleProjectManager, true},
		{RoleManager, true},
		{RoleAdmin, false},
		{RoleTeamLeader, false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsSelfAssignableRole(tt.role); got != tt.want {
			t.Errorf("IsSelfAssignableRole(%q) = %v, want %v", tt.role, got, tt.want)
		}
	}
}

func TestNotificationPreferences_AllowsEmail(t *testing.T) {
	prefs := DefaultNotificationPreferences("u1")

	if !prefs.AllowsEmail(NotificationGeneric, 2) {
		t.Error("default preferences should allow priority 2")
	}
	if prefs.AllowsEmail(NotificationGeneric, 1) {
		t.Error("priority below minimum should be blocked")
	}

	prefs.MutedTypes = []string{NotificationDeadlineReminder}
	if prefs.AllowsEmail(NotificationDeadlineReminder, 4) {
		t.Error("muted type should be blocked")
	}

	prefs.EnableEmail = false
	if prefs.AllowsEmail(NotificationGeneric, 4) {
		t.Error("disabled email should block everything")
	}
}

func TestTask_IsOverdue(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	if !(&Task{Status: TaskTodo, DueDate: &past}).IsOverdue(now) {
		t.Error("past due todo should be overdue")
	}
	if (&Task{Status: TaskDone, DueDate: &past}).IsOverdue(now) {
		t.Error("done task is never overdue")
	}
	if (&Task{Status: TaskTodo, DueDate: &future}).IsOverdue(now) {
		t.Error("future due date is not overdue")
	}
	if (&Task{Status: TaskTodo}).IsOverdue(now) {
		t.Error("task without due date is not overdue")
	}
}

func TestRawJSON_Marshal(t *testing.T) {
	type wrapper struct {
		Details RawJSON `json:"details"`
	}

	out, err := json.Marshal(wrapper{})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"details":{}}` {
		t.Errorf("empty RawJSON = %s", out)
	}

	var w wrapper
	if err := json.Unmarshal([]byte(`{"details":{"a":1}}`), &w); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if w.Details.String() != `{"a":1}` {
		t.Errorf("round trip = %s", w.Details.String())
	}
}

func TestChatRoom_MemberRole(t *testing.T) {
	room := &ChatRoom{Members: []ChatRoomMember{{UserID: "a", Role: RoomRoleAdmin}, {UserID: "b", Role: RoomRoleMember}}}
	if room.MemberRole("a") != RoomRoleAdmin || !room.HasMember("b") || room.HasMember("c") {
		t.Error("unexpected membership lookups")
	}
}
