package v1

import (
	"time"

	"github.com/dmehra2102/prod-golang-projects/appointly/internal/domain/provider"
	"github.com/dmehra2102/prod-golang-projects/appointly/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ProviderHandler struct {
	svc *service.ProviderService
}

func NewProviderHandler(svc *service.ProviderService) *ProviderHandler {
	return &ProviderHandler{svc: svc}
}

type slotRequest struct {
	Start *time.Time `json:"start" binding:"required"`
	End   *time.Time `json:"end" binding:"required"`
}

func toSlots(in []slotRequest) provider.Slots {
	if in == nil {
		return nil
	}
	out := make(provider.Slots, 0, len(in))
	for _, s := range in {
		out = append(out, provider.Slot{Start: *s.Start, End: *s.End})
	}
	return out
}

type createProviderRequest struct {
	// UserID defaults to the caller.
	UserID       string        `json:"user_id" binding:"omitempty,uuid"`
	Specialty    string        `json:"specialty" binding:"required,max=255"`
	Availability []slotRequest `json:"availability" binding:"omitempty,dive"`
}

type updateProviderRequest struct {
	Specialty    *string       `json:"specialty" binding:"omitempty,max=255"`
	Availability []slotRequest `json:"availability" binding:"omitempty,dive"`
}

type setAvailabilityRequest struct {
	Slots []slotRequest `json:"slots" binding:"required,dive"`
}

func (h *ProviderHandler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, list)
}

func (h *ProviderHandler) Get(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	pr, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, pr)
}

func (h *ProviderHandler) Create(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req createProviderRequest
	if !bindJSON(c, &req) {
		return
	}

	cmd := &provider.CreateProviderCommand{
		Specialty:    req.Specialty,
		Availability: toSlots(req.Availability),
	}
	if req.UserID != "" {
		cmd.UserID = uuid.MustParse(req.UserID)
	}

	pr, err := h.svc.Create(c.Request.Context(), p, cmd)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, pr)
}

func (h *ProviderHandler) Update(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req updateProviderRequest
	if !bindJSON(c, &req) {
		return
	}

	cmd := &provider.UpdateProviderCommand{Specialty: req.Specialty}
	if req.Availability != nil {
		slots := toSlots(req.Availability)
		cmd.Availability = &slots
	}
	if cmd.Specialty == nil && cmd.Availability == nil {
		respondValidation(c, []string{"body: at least one of specialty, availability is required"})
		return
	}

	pr, err := h.svc.Update(c.Request.Context(), p, id, cmd)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, pr)
}

func (h *ProviderHandler) SetAvailability(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req setAvailabilityRequest
	if !bindJSON(c, &req) {
		return
	}

	pr, err := h.svc.SetAvailability(c.Request.Context(), p, id, toSlots(req.Slots))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, pr)
}

func (h *ProviderHandler) Delete(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), p, id); err != nil {
		respondServiceError(c, err)
		return
	}
	respondMessage(c, gin.H{"id": id}, "provider deleted")
}
