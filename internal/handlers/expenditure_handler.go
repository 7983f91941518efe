package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"family-fund-backend/internal/services/expenditure"
)

type ExpenditureHandler struct {
	service *expenditure.Service
	log     zerolog.Logger
}

func NewExpenditureHandler(s *expenditure.Service, log zerolog.Logger) *ExpenditureHandler {
	return &ExpenditureHandler{service: s, log: log}
}

// Create records spending for the budget in the path. Line amounts are
// decimal strings; an overage only becomes a supplementary request when
// request_supplementary is set.
func (h *ExpenditureHandler) Create(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	budgetID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var payload struct {
		Title  string `json:"title"`
		Amount string `json:"amount"`
		Items  []struct {
			BudgetItemID string `json:"budget_item_id"`
			Amount       string `json:"amount"`
			ReceiptRef   string `json:"receipt_ref"`
		} `json:"items"`
		RequestSupplementary bool `json:"request_supplementary"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	req := expenditure.CreateRequest{
		BudgetID:             budgetID,
		Title:                payload.Title,
		RequestSupplementary: payload.RequestSupplementary,
	}
	for _, it := range payload.Items {
		itemID, err := uuid.Parse(it.BudgetItemID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid budget_item_id"})
			return
		}
		amount, ok := parseAmount(c, "amount", it.Amount)
		if !ok {
			return
		}
		req.Items = append(req.Items, expenditure.LineInput{BudgetItemID: itemID, Amount: amount, ReceiptRef: it.ReceiptRef})
	}
	if payload.Amount != "" {
		amount, ok := parseAmount(c, "amount", payload.Amount)
		if !ok {
			return
		}
		req.Amount = &amount
	}

	res, err := h.service.Create(c.Request.Context(), who, req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "expenditure recorded", "result": res})
}

func (h *ExpenditureHandler) ListForBudget(c *gin.Context) {
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

func (h *ExpenditureHandler) Get(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	e, err := h.service.Get(c.Request.Context(), who, id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (h *ExpenditureHandler) Approve(c *gin.Context) { h.review(c, true) }

func (h *ExpenditureHandler) Reject(c *gin.Context) { h.review(c, false) }

func (h *ExpenditureHandler) review(c *gin.Context, approve bool) {
	who, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var payload struct {
		Note string `json:"note"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.BindJSON(&payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
			return
		}
	}

	e, err := h.service.Review(c.Request.Context(), who, id, approve, payload.Note)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "expenditure reviewed", "expenditure": e})
}
