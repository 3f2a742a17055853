package api

type BookAppointmentRequest struct {
	ProviderID  string `json:"provider_id" validate:"required"`
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	SlotLabel   string `json:"slot_label" validate:"required"`
	PatientID   string `json:"patient_id" validate:"required"`
	PatientName string `json:"patient_name" validate:"required"`
}

type JoinQueueRequest struct {
	DepartmentID string `json:"department_id" validate:"required"`
	Date         string `json:"date" validate:"required,datetime=2006-01-02"`
	PatientID    string `json:"patient_id" validate:"required"`
	PatientName  string `json:"patient_name" validate:"required"`
	MemoID       string `json:"memo_id,omitempty" validate:"omitempty,uuid"`
}

type AdvanceQueueRequest struct {
	Status string `json:"status" validate:"required,oneof=in_progress completed cancelled"`
}

type CreateMemoRequest struct {
	PatientID   string   `json:"patient_id" validate:"required"`
	PatientName string   `json:"patient_name" validate:"required"`
	Departments []string `json:"departments" validate:"required,min=1,dive,required"`
}

type AttachMemoRequest struct {
	MemoID  string `json:"memo_id" validate:"required,uuid"`
	VisitID string `json:"visit_id" validate:"required,uuid"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
