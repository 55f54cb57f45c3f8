package v1

import (
	"time"

	"github.com/dmehra2102/prod-golang-projects/appointly/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/appointly/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type AppointmentHandler struct {
	svc *service.AppointmentService
}

func NewAppointmentHandler(svc *service.AppointmentService) *AppointmentHandler {
	return &AppointmentHandler{svc: svc}
}

type bookAppointmentRequest struct {
	ProviderID string     `json:"provider_id" binding:"required,uuid"`
	Service    string     `json:"service" binding:"required,max=255"`
	Start      *time.Time `json:"start" binding:"required"`
	End        *time.Time `json:"end"`
	Notes      string     `json:"notes" binding:"max=500"`
}

type updateAppointmentRequest struct {
	Start  *time.Time `json:"start"`
	End    *time.Time `json:"end"`
	Status *string    `json:"status" binding:"omitempty,oneof=booked rescheduled canceled completed"`
	Notes  *string    `json:"notes" binding:"omitempty,max=500"`
}

type cancelAppointmentRequest struct {
	Reason *string `json:"reason" binding:"omitempty,max=500"`
}

func (h *AppointmentHandler) Book(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req bookAppointmentRequest
	if !bindJSON(c, &req) {
		return
	}

	a, err := h.svc.Book(c.Request.Context(), p, &appointment.BookCommand{
		ProviderID: uuid.MustParse(req.ProviderID),
		Start:      *req.Start,
		End:        req.End,
		Service:    req.Service,
		Notes:      req.Notes,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, a)
}

func (h *AppointmentHandler) Update(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req updateAppointmentRequest
	if !bindJSON(c, &req) {
		return
	}

	cmd := &appointment.UpdateCommand{Start: req.Start, End: req.End, Notes: req.Notes}
	if req.Status != nil {
		st := appointment.Status(*req.Status)
		cmd.Status = &st
	}
	if cmd.Empty() {
		respondValidation(c, []string{"body: at least one of start, end, status, notes is required"})
		return
	}

	a, err := h.svc.Update(c.Request.Context(), p, id, cmd)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, a)
}

// Cancel accepts an optional {"reason": "..."} body.
func (h *AppointmentHandler) Cancel(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req cancelAppointmentRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	a, err := h.svc.Cancel(c.Request.Context(), p, id, req.Reason)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, a)
}

func (h *AppointmentHandler) Delete(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	a, err := h.svc.Delete(c.Request.Context(), p, id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondMessage(c, a, "appointment deleted")
}

func (h *AppointmentHandler) ListMine(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	list, err := h.svc.ListMine(c.Request.Context(), p)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, list)
}

func (h *AppointmentHandler) ListForProvider(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	list, err := h.svc.ListForProvider(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, list)
}

func (h *AppointmentHandler) ListAll(c *gin.Context) {
	list, err := h.svc.ListAll(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, list)
}
