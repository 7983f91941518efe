package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"family-fund-backend/internal/notify"
)

type NotificationHandler struct {
	store *notify.Store
	log   zerolog.Logger
}

func NewNotificationHandler(s *notify.Store, log zerolog.Logger) *NotificationHandler {
	return &NotificationHandler{store: s, log: log}
}

func (h *NotificationHandler) ListUnread(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	list, err := h.store.ListUnread(c.Request.Context(), who.ID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list})
}
