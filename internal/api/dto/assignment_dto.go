package dto

// AssignTicketRequest is the admin manual-assignment payload.
type AssignTicketRequest struct {
	AssignToUserID string  `json:"assign_to_user_id"`
	Notes          *string `json:"notes"`
}

// AssignOutcomeResponse reports what an assignment attempt did,
// including whether the best-effort side effects landed.
type AssignOutcomeResponse struct {
	Assigned     bool                `json:"assigned"`
	Assignment   *AssignmentResponse `json:"assignment,omitempty"`
	SLAMinutes   int                 `json:"sla_minutes,omitempty"`
	TimerStarted bool                `json:"timer_started"`
	Notified     bool                `json:"notified"`
}
