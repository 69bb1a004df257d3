package dto

// TeamRequest is the body of POST /api/teams and PUT /api/teams/{id}.
type TeamRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description"`
	LeadID      string `json:"leadId"`
}
