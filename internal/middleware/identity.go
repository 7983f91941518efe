package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"family-fund-backend/internal/identity"
	"family-fund-backend/internal/models"
	"family-fund-backend/internal/repository"
)

const (
	HeaderUserID    = "X-User-ID"
	HeaderUserEmail = "X-User-Email"
	HeaderUserName  = "X-User-Name"

	callerKey = "caller"
)

// Identity trusts the user headers set by the upstream gateway, resolves the
// caller's role from the email claim and provisions the user row on first
// sight.
func Identity(db *gorm.DB, resolver *identity.Resolver, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		rawID := strings.TrimSpace(c.GetHeader(HeaderUserID))
		email := strings.TrimSpace(c.GetHeader(HeaderUserEmail))
		if rawID == "" || email == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing caller identity"})
			return
		}
		id, err := uuid.Parse(rawID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid caller id"})
			return
		}

		name := strings.TrimSpace(c.GetHeader(HeaderUserName))
		if name == "" {
			name = strings.SplitN(email, "@", 2)[0]
		}
		u := &models.User{ID: id, Name: name, Email: strings.ToLower(email)}
		err = repository.NewUserRepository(db.WithContext(c.Request.Context())).Ensure(u)
		switch {
		case errors.Is(err, repository.ErrEmailTaken):
			log.Warn().Str("user_id", id.String()).Msg("Caller email is held by another user")
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		case errors.Is(err, repository.ErrUserDeleted):
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		case err != nil:
			log.Error().Err(err).Str("user_id", id.String()).Msg("Failed to provision user")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		c.Set(callerKey, resolver.Resolve(id, email))
		c.Next()
	}
}

// Caller returns the identity stored by Identity.
func Caller(c *gin.Context) (identity.Caller, bool) {
	v, ok := c.Get(callerKey)
	if !ok {
		return identity.Caller{}, false
	}
	caller, ok := v.(identity.Caller)
	return caller, ok
}
