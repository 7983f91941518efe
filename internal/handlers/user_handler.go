package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"family-fund-backend/internal/services/users"
)

type UserHandler struct {
	coordinator *users.Coordinator
	log         zerolog.Logger
}

func NewUserHandler(c *users.Coordinator, log zerolog.Logger) *UserHandler {
	return &UserHandler{coordinator: c, log: log}
}

func (h *UserHandler) Dependents(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	if err := who.RequireAdmin(); err != nil {
		respondError(c, h.log, err)
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	counts, err := h.coordinator.Dependents(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	var total int64
	for _, n := range counts {
		total += n
	}
	c.JSON(http.StatusOK, gin.H{"user_id": id, "counts": counts, "total": total})
}

// Delete refuses a user with dependents unless ?force=true.
func (h *UserHandler) Delete(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	force, _ := strconv.ParseBool(c.DefaultQuery("force", "false"))

	res, err := h.coordinator.Delete(c.Request.Context(), who, id, force)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user deleted", "result": res})
}
