package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"family-fund-backend/internal/money"
	"family-fund-backend/internal/services/ledger"
)

type LedgerHandler struct {
	ledger *ledger.Store
	log    zerolog.Logger
}

func NewLedgerHandler(s *ledger.Store, log zerolog.Logger) *LedgerHandler {
	return &LedgerHandler{ledger: s, log: log}
}

func (h *LedgerHandler) Balance(c *gin.Context) {
	balance, err := h.ledger.Balance(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"key":       ledger.BalanceKey,
		"balance":   balance,
		"formatted": money.Format(balance),
	})
}

// History is admin only: the trail names every actor that moved money.
func (h *LedgerHandler) History(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	if err := who.RequireAdmin(); err != nil {
		respondError(c, h.log, err)
		return
	}

	entries, err := h.ledger.History(c.Request.Context(), queryInt(c, "limit", 50))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entries})
}
