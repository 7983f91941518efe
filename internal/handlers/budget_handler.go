package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"family-fund-backend/internal/identity"
	"family-fund-backend/internal/models"
	"family-fund-backend/internal/repository"
	"family-fund-backend/internal/services/budget"
)

type BudgetHandler struct {
	service *budget.Service
	log     zerolog.Logger
}

func NewBudgetHandler(s *budget.Service, log zerolog.Logger) *BudgetHandler {
	return &BudgetHandler{service: s, log: log}
}

type itemPayload struct {
	Name      string `json:"name"`
	UnitPrice string `json:"unit_price"`
	Quantity  int64  `json:"quantity"`
}

type reasonPayload struct {
	Reason string `json:"reason"`
}

func (h *BudgetHandler) items(c *gin.Context, in []itemPayload) ([]budget.ItemInput, bool) {
	out := make([]budget.ItemInput, 0, len(in))
	for _, it := range in {
		price, ok := parseAmount(c, "unit_price", it.UnitPrice)
		if !ok {
			return nil, false
		}
		out = append(out, budget.ItemInput{Name: it.Name, UnitPrice: price, Quantity: it.Quantity})
	}
	return out, true
}

func (h *BudgetHandler) Create(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	var payload struct {
		Title       string        `json:"title"`
		Description string        `json:"description"`
		Priority    string        `json:"priority"`
		Items       []itemPayload `json:"items"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	items, ok := h.items(c, payload.Items)
	if !ok {
		return
	}

	b, err := h.service.Create(c.Request.Context(), who, budget.CreateRequest{
		Title:       payload.Title,
		Description: payload.Description,
		Priority:    models.Priority(strings.ToUpper(payload.Priority)),
		Items:       items,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "budget created", "budget": b})
}

func (h *BudgetHandler) List(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	filter := repository.BudgetFilter{
		Query: c.Query("q"),
		Limit: queryInt(c, "limit", 100),
	}
	if raw := c.Query("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			filter.Statuses = append(filter.Statuses, models.BudgetStatus(strings.ToUpper(strings.TrimSpace(s))))
		}
	}

	budgets, err := h.service.List(c.Request.Context(), who, filter)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": budgets})
}

func (h *BudgetHandler) Get(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	b, err := h.service.Get(c.Request.Context(), who, id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"budget": b, "allowed_transitions": budget.Allowed(b.Status)})
}

func (h *BudgetHandler) Revisions(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	revs, err := h.service.Revisions(c.Request.Context(), who, id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": revs})
}

func (h *BudgetHandler) Stats(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	if err := who.RequireAdmin(); err != nil {
		respondError(c, h.log, err)
		return
	}
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *BudgetHandler) Funding(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	funding, err := h.service.Funding(c.Request.Context(), who, id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, funding)
}

func (h *BudgetHandler) Activity(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	activity, err := h.service.Activity(c.Request.Context(), who, id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, activity)
}

func (h *BudgetHandler) UpdateItems(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var payload struct {
		Items []itemPayload `json:"items"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	items, ok := h.items(c, payload.Items)
	if !ok {
		return
	}

	b, err := h.service.UpdateItems(c.Request.Context(), who, id, items)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "budget items updated", "budget": b})
}

func (h *BudgetHandler) Approve(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var payload struct {
		AllocatedAmount  string `json:"allocated_amount"`
		DisbursementType string `json:"disbursement_type"`
		BatchCount       int    `json:"batch_count"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	req := budget.ApproveRequest{
		DisbursementType: models.DisbursementType(strings.ToUpper(payload.DisbursementType)),
		BatchCount:       payload.BatchCount,
	}
	if payload.AllocatedAmount != "" {
		allocated, ok := parseAmount(c, "allocated_amount", payload.AllocatedAmount)
		if !ok {
			return
		}
		req.AllocatedAmount = &allocated
	}

	b, err := h.service.Approve(c.Request.Context(), who, id, req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "budget approved", "budget": b})
}

func (h *BudgetHandler) Reject(c *gin.Context) {
	h.withReason(c, "budget rejected", h.service.Reject)
}

func (h *BudgetHandler) RequestRevision(c *gin.Context) {
	h.withReason(c, "revision requested", h.service.RequestRevision)
}

func (h *BudgetHandler) Revoke(c *gin.Context) {
	h.withReason(c, "budget revoked", h.service.Revoke)
}

func (h *BudgetHandler) withReason(c *gin.Context, message string, op func(context.Context, identity.Caller, uuid.UUID, string) (*models.Budget, error)) {
	who, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var payload reasonPayload
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	b, err := op(c.Request.Context(), who, id, payload.Reason)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": message, "budget": b})
}

func (h *BudgetHandler) Resubmit(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var payload struct {
		Items []itemPayload `json:"items"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.BindJSON(&payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
			return
		}
	}
	items, ok := h.items(c, payload.Items)
	if !ok {
		return
	}

	b, err := h.service.Resubmit(c.Request.Context(), who, id, items)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "budget resubmitted", "budget": b})
}

func (h *BudgetHandler) ConfigureDisbursement(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var payload struct {
		DisbursementType string `json:"disbursement_type"`
		BatchCount       int    `json:"batch_count"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	b, err := h.service.ConfigureDisbursement(c.Request.Context(), who, id, models.DisbursementType(strings.ToUpper(payload.DisbursementType)), payload.BatchCount)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "disbursement configured", "budget": b})
}

func (h *BudgetHandler) Disburse(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var payload struct {
		Amount    string `json:"amount"`
		Method    string `json:"method"`
		Reference string `json:"reference"`
		Outcome   string `json:"outcome"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	amount, ok := parseAmount(c, "amount", payload.Amount)
	if !ok {
		return
	}

	res, err := h.service.Disburse(c.Request.Context(), who, id, budget.DisburseRequest{
		Amount:    amount,
		Method:    payload.Method,
		Reference: payload.Reference,
		Outcome:   payload.Outcome,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "disbursement recorded", "result": res})
}

func (h *BudgetHandler) DisburseBatch(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var payload struct {
		Method    string `json:"method"`
		Reference string `json:"reference"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.BindJSON(&payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
			return
		}
	}

	res, err := h.service.DisburseBatch(c.Request.Context(), who, id, payload.Method, payload.Reference)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "batch disbursed", "result": res})
}
