// Package identity derives the caller's role from the trusted identity claim
// on every request. Roles are never persisted.
package identity

import (
	"strings"

	"github.com/google/uuid"

	"family-fund-backend/internal/apperrors"
)

type Role string

const (
	RoleMember Role = "MEMBER"
	RoleAdmin  Role = "ADMIN"
)

type Caller struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Role  Role      `json:"role"`
}

func (c Caller) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// RequireAdmin fails with ForbiddenError for non-admin callers.
func (c Caller) RequireAdmin() error {
	if !c.IsAdmin() {
		return apperrors.Forbidden("admin role required")
	}
	return nil
}

// Owns reports whether the caller is the given owner.
func (c Caller) Owns(owner uuid.UUID) bool {
	return c.ID == owner
}

type Resolver struct {
	admins map[string]struct{}
}

func NewResolver(adminEmails []string) *Resolver {
	admins := make(map[string]struct{}, len(adminEmails))
	for _, e := range adminEmails {
		if e = normalize(e); e != "" {
			admins[e] = struct{}{}
		}
	}
	return &Resolver{admins: admins}
}

// Resolve builds the caller for this request.
func (r *Resolver) Resolve(id uuid.UUID, email string) Caller {
	role := RoleMember
	if _, ok := r.admins[normalize(email)]; ok {
		role = RoleAdmin
	}
	return Caller{ID: id, Email: email, Role: role}
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
