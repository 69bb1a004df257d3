package assistant

import (
	"math"
	"time"
	"unicode/utf8"

	"github.com/commandgrid/pmt/internal/model"
)

// TaskAnalysis is a heuristic assessment of a task.
type TaskAnalysis struct {
	TaskID          string   `json:"taskId"`
	Complexity      int      `json:"complexity"`
	EstimatedHours  float64  `json:"estimatedHours"`
	RiskFactors     []string `json:"riskFactors"`
	Recommendations []string `json:"recommendations"`
}

// Risk factor and recommendation texts.
const (
	riskHighPriority    = "High priority task with elevated delivery pressure"
	riskOverdue         = "Task is past its due date"
	riskDueSoon         = "Due date is within the next 3 days"
	riskNoDueDate       = "No due date has been set"
	riskUnassigned      = "Task has no assignee"
	riskVague           = "Description is too short to estimate reliably"
	riskDiscussion      = "Extensive discussion suggests unclear requirements"
	recSplit            = "Break the task into smaller subtasks"
	recClarify          = "Add acceptance criteria to the description"
	recAssign           = "Assign an owner so progress can be tracked"
	recSetDueDate       = "Set a due date to help prioritization"
	recEscalate         = "Escalate or renegotiate the deadline with stakeholders"
	recReviewCheckpoint = "Schedule a mid-point review with the team"
)

// AnalyzeTask scores a task from its description length, priority, due date and
// discussion volume. The result depends only on its inputs.
func AnalyzeTask(t *model.Task, commentCount int, now time.Time) TaskAnalysis {
	descLen := utf8.RuneCountInString(t.Description)

	score := 10.0
	score += math.Min(float64(descLen)/20, 40)
	switch t.Priority {
	case model.PriorityHigh:
		score += 20
	case model.PriorityMedium:
		score += 10
	}
	score += math.Min(float64(commentCount)*3, 15)
	if len(t.Tags) > 2 {
		score += 5
	}

	var risks, recs []string
	if t.Priority == model.PriorityHigh {
		risks = append(risks, riskHighPriority)
	}

	switch {
	case t.DueDate == nil:
		risks = append(risks, riskNoDueDate)
		recs = append(recs, recSetDueDate)
	case t.IsOverdue(now):
		score += 10
		risks = append(risks, riskOverdue)
		recs = append(recs, recEscalate)
	case t.Status != model.TaskDone && t.DueDate.Sub(now) < 72*time.Hour:
		score += 5
		risks = append(risks, riskDueSoon)
	}

	if t.AssigneeID == nil {
		risks = append(risks, riskUnassigned)
		recs = append(recs, recAssign)
	}
	if descLen < 50 {
		risks = append(risks, riskVague)
		recs = append(recs, recClarify)
	}
	if commentCount >= 10 {
		risks = append(risks, riskDiscussion)
	}

	complexity := int(math.Min(math.Round(score), 100))
	if complexity >= 60 {
		recs = append(recs, recSplit)
	}
	if complexity >= 40 {
		recs = append(recs, recReviewCheckpoint)
	}

	hours := math.Round(float64(complexity)/10*2*2) / 2
	if t.EstimatedHours != nil && *t.EstimatedHours > 0 {
		hours = math.Round((hours+*t.EstimatedHours)/2*2) / 2
	}
	if hours < 1 {
		hours = 1
	}

	if risks == nil {
		risks = []string{}
	}
	if recs == nil {
		recs = []string{}
	}
	return TaskAnalysis{
		TaskID:          t.ID,
		Complexity:      complexity,
		EstimatedHours:  hours,
		RiskFactors:     risks,
		Recommendations: recs,
	}
}
