package dto

// TeamMemberResponse pairs a direct report with their workload.
type TeamMemberResponse struct {
	User               UserResponse `json:"user"`
	ActiveTickets      int          `json:"active_tickets"`
	Capacity           int          `json:"capacity"`
	IsAcceptingTickets bool         `json:"is_accepting_tickets"`
}
