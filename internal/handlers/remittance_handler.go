package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"family-fund-backend/internal/models"
	"family-fund-backend/internal/services/remittance"
)

type RemittanceHandler struct {
	service *remittance.Service
	log     zerolog.Logger
}

func NewRemittanceHandler(s *remittance.Service, log zerolog.Logger) *RemittanceHandler {
	return &RemittanceHandler{service: s, log: log}
}

func (h *RemittanceHandler) Submit(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	var payload struct {
		Amount string `json:"amount"`
		Note   string `json:"note"`
		Proof  string `json:"proof"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	amount, ok := parseAmount(c, "amount", payload.Amount)
	if !ok {
		return
	}

	r, err := h.service.Submit(c.Request.Context(), who, remittance.SubmitRequest{
		Amount: amount,
		Note:   payload.Note,
		Proof:  payload.Proof,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "remittance submitted", "remittance": r})
}

func (h *RemittanceHandler) List(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	status := models.RemittanceStatus(strings.ToUpper(c.Query("status")))
	list, err := h.service.List(c.Request.Context(), who, status)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list})
}

func (h *RemittanceHandler) Get(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	r, err := h.service.Get(c.Request.Context(), who, id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *RemittanceHandler) Verify(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	r, err := h.service.Verify(c.Request.Context(), who, id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "remittance verified", "remittance": r})
}

func (h *RemittanceHandler) Reject(c *gin.Context) {
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
	r, err := h.service.Reject(c.Request.Context(), who, id, payload.Reason)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "remittance rejected", "remittance": r})
}
