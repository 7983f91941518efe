package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"family-fund-backend/internal/apperrors"
	"family-fund-backend/internal/identity"
	"family-fund-backend/internal/middleware"
	"family-fund-backend/internal/money"
)

// respondError maps the typed service errors to a status code and a body
// carrying their detail.
func respondError(c *gin.Context, log zerolog.Logger, err error) {
	var (
		insufficient *apperrors.InsufficientFundsError
		transition   *apperrors.InvalidStateTransitionError
		exceeds      *apperrors.ExceedsAllocationError
		lineItem     *apperrors.InvalidLineItemError
		processed    *apperrors.AlreadyProcessedError
		dependents   *apperrors.HasDependentsError
		notFound     *apperrors.NotFoundError
		forbidden    *apperrors.ForbiddenError
		invalid      *apperrors.ValidationError
	)

	switch {
	case errors.As(err, &insufficient):
		c.JSON(http.StatusPaymentRequired, gin.H{
			"error":     err.Error(),
			"balance":   money.Format(insufficient.Balance),
			"requested": money.Format(insufficient.Requested),
		})
	case errors.As(err, &transition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "from": transition.From, "to": transition.To, "allowed": transition.Allowed})
	case errors.As(err, &processed):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "status": processed.Status})
	case errors.As(err, &dependents):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "counts": dependents.Counts, "total": dependents.Total()})
	case errors.As(err, &exceeds):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "remaining": money.Format(exceeds.Remaining)})
	case errors.As(err, &lineItem):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "item_id": lineItem.ItemID})
	case errors.As(err, &invalid):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "field": invalid.Field})
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &forbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func caller(c *gin.Context) (identity.Caller, bool) {
	who, ok := middleware.Caller(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing caller identity"})
	}
	return who, ok
}

func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

// parseAmount reads a major-unit decimal string such as "1500.50".
func parseAmount(c *gin.Context, field, raw string) (int64, bool) {
	minor, err := money.ParseMinor(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + field, "detail": err.Error()})
		return 0, false
	}
	return minor, true
}

func queryInt(c *gin.Context, key string, def int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil || n <= 0 {
		return def
	}
	return n
}
