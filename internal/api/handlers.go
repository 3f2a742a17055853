package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clinicore/slotqueue/internal/engine"
	"github.com/clinicore/slotqueue/internal/memo"
	"github.com/clinicore/slotqueue/internal/queue"
	"github.com/clinicore/slotqueue/internal/slot"
)

type Handler struct {
	engine   *engine.Engine
	validate *RequestValidator
}

func NewHandler(eng *engine.Engine) *Handler {
	return &Handler{
		engine:   eng,
		validate: NewRequestValidator(),
	}
}

func (h *Handler) ListProviders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.ListProviders())
}

func (h *Handler) ListDepartments(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.ListDepartments())
}

func (h *Handler) GetSlotDay(w http.ResponseWriter, r *http.Request) {
	providerID := chi.URLParam(r, "id")
	date := chi.URLParam(r, "date")

	view, err := h.engine.GetSlotDay(r.Context(), providerID, date)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) GetQueueSnapshot(w http.ResponseWriter, r *http.Request) {
	departmentID := chi.URLParam(r, "id")
	date := chi.URLParam(r, "date")
	includeHistory := r.URL.Query().Get("history") == "1"

	view, err := h.engine.GetQueueSnapshot(r.Context(), departmentID, date, includeHistory)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) BookAppointment(w http.ResponseWriter, r *http.Request) {
	var req BookAppointmentRequest
	if !h.decode(w, r, &req) {
		return
	}

	booking, err := h.engine.BookAppointment(r.Context(), engine.BookingRequest{
		ProviderID:  req.ProviderID,
		Date:        req.Date,
		SlotLabel:   req.SlotLabel,
		PatientID:   req.PatientID,
		PatientName: req.PatientName,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

func (h *Handler) CancelAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}

	booking, err := h.engine.CancelAppointment(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (h *Handler) ListPatientAppointments(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "id")
	writeJSON(w, http.StatusOK, h.engine.ListBookingsByPatient(patientID))
}

func (h *Handler) JoinQueue(w http.ResponseWriter, r *http.Request) {
	var req JoinQueueRequest
	if !h.decode(w, r, &req) {
		return
	}

	engReq := engine.JoinQueueRequest{
		DepartmentID: req.DepartmentID,
		Date:         req.Date,
		PatientID:    req.PatientID,
		PatientName:  req.PatientName,
	}
	if req.MemoID != "" {
		memoID, err := uuid.Parse(req.MemoID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_memo_id", "memo_id must be a valid UUID")
			return
		}
		engReq.MemoID = &memoID
	}

	entry, view, err := h.engine.JoinDepartmentQueue(r.Context(), engReq)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		Entry queue.Entry `json:"entry"`
		Queue queue.View  `json:"queue"`
	}{Entry: entry, Queue: view})
}

func (h *Handler) AdvanceQueueEntry(w http.ResponseWriter, r *http.Request) {
	visitID, ok := parseUUIDParam(w, r, "visitId")
	if !ok {
		return
	}

	var req AdvanceQueueRequest
	if !h.decode(w, r, &req) {
		return
	}

	entry, err := h.engine.AdvanceQueueEntry(r.Context(), visitID, queue.EntryStatus(req.Status))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) CreateMemo(w http.ResponseWriter, r *http.Request) {
	var req CreateMemoRequest
	if !h.decode(w, r, &req) {
		return
	}

	m, err := h.engine.CreateVisitMemo(r.Context(), req.PatientID, req.PatientName, req.Departments)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *Handler) AttachMemoEntry(w http.ResponseWriter, r *http.Request) {
	var req AttachMemoRequest
	if !h.decode(w, r, &req) {
		return
	}

	memoID, err := uuid.Parse(req.MemoID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_memo_id", "memo_id must be a valid UUID")
		return
	}
	visitID, err := uuid.Parse(req.VisitID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_visit_id", "visit_id must be a valid UUID")
		return
	}

	m, err := h.engine.AttachQueueEntryToMemo(r.Context(), memoID, visitID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *Handler) MarkMemoRead(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}

	m, err := h.engine.MarkMemoRead(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *Handler) ListPatientMemos(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "id")
	writeJSON(w, http.StatusOK, h.engine.ListMemosByPatient(patientID))
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}
	if err := h.validate.Validate(req); err != nil {
		var fieldErrs ValidationErrors
		if errors.As(err, &fieldErrs) {
			writeError(w, http.StatusBadRequest, "validation_failed", fieldErrs.Error())
		} else {
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		}
		return false
	}
	return true
}

func parseUUIDParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, slot.ErrSlotConflict):
		writeError(w, http.StatusConflict, "slot_conflict", err.Error())
	case errors.Is(err, slot.ErrUnknownSlot):
		writeError(w, http.StatusBadRequest, "unknown_slot", err.Error())
	case errors.Is(err, slot.ErrUnknownProvider):
		writeError(w, http.StatusNotFound, "provider_not_found", err.Error())
	case errors.Is(err, slot.ErrBookingNotFound):
		writeError(w, http.StatusNotFound, "booking_not_found", err.Error())
	case errors.Is(err, queue.ErrAlreadyQueued):
		writeError(w, http.StatusConflict, "already_queued", err.Error())
	case errors.Is(err, queue.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, queue.ErrVisitNotFound):
		writeError(w, http.StatusNotFound, "visit_not_found", err.Error())
	case errors.Is(err, memo.ErrMemoNotFound):
		writeError(w, http.StatusNotFound, "memo_not_found", err.Error())
	case errors.Is(err, memo.ErrDepartmentNotOnMemo):
		writeError(w, http.StatusBadRequest, "department_not_on_memo", err.Error())
	case errors.Is(err, engine.ErrInvalidDate):
		writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
	case errors.Is(err, engine.ErrMissingIdentity):
		writeError(w, http.StatusBadRequest, "missing_identity", err.Error())
	case errors.Is(err, engine.ErrUnknownDepartment):
		writeError(w, http.StatusNotFound, "department_not_found", err.Error())
	case errors.Is(err, engine.ErrNoDepartments):
		writeError(w, http.StatusBadRequest, "no_departments", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
