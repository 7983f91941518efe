package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"family-fund-backend/internal/services/supplementary"
)

type SupplementaryHandler struct {
	service *supplementary.Service
	log     zerolog.Logger
}

func NewSupplementaryHandler(s *supplementary.Service, log zerolog.Logger) *SupplementaryHandler {
	return &SupplementaryHandler{service: s, log: log}
}

func (h *SupplementaryHandler) Create(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	budgetID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var payload struct {
		Amount string `json:"amount"`
		Reason string `json:"reason"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	amount, ok := parseAmount(c, "amount", payload.Amount)
	if !ok {
		return
	}

	sr, err := h.service.Create(c.Request.Context(), who, supplementary.CreateRequest{
		BudgetID: budgetID,
		Amount:   amount,
		Reason:   payload.Reason,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "supplementary request created", "request": sr})
}

func (h *SupplementaryHandler) ListForBudget(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	budgetID, ok := pathID(c, "id")
	if !ok {
		return
	}
	list, err := h.service.ForBudget(c.Request.Context(), who, budgetID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list})
}

func (h *SupplementaryHandler) Get(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	sr, err := h.service.Get(c.Request.Context(), who, id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, sr)
}

func (h *SupplementaryHandler) Approve(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	sr, err := h.service.Approve(c.Request.Context(), who, id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "supplementary request approved", "request": sr})
}

func (h *SupplementaryHandler) Reject(c *gin.Context) {
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
	sr, err := h.service.Reject(c.Request.Context(), who, id, payload.Reason)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "supplementary request rejected", "request": sr})
}
