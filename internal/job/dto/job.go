package dto

// CreateJobRequest is the body of a manual job entry
type CreateJobRequest struct {
	Company     string `json:"company" binding:"required"`
	Role        string `json:"role" binding:"required"`
	AppliedDate string `json:"applied_date"` // YYYY-MM-DD, defaults to today
	Status      string `json:"status"`
	Notes       string `json:"notes"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}
