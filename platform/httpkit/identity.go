// Package httpkit provides HTTP utilities including identity abstraction.
package httpkit

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Identity represents the authenticated subject's identity.
// This interface abstracts identity extraction from the web framework,
// allowing handlers to access caller information without depending on Gin.
type Identity interface {
	// ContractorID returns the authenticated contractor's ID.
	// For admin tokens this is the admin credential row ID.
	ContractorID() uuid.UUID
	// Roles returns the subject's assigned roles.
	Roles() []string
	// HasRole checks if the subject has a specific role.
	HasRole(role string) bool
	// IsAuthenticated returns true if the subject is authenticated.
	IsAuthenticated() bool
}

type identity struct {
	contractorID  uuid.UUID
	roles         []string
	authenticated bool
}

func (i *identity) ContractorID() uuid.UUID {
	return i.contractorID
}

func (i *identity) Roles() []string {
	return i.roles
}

func (i *identity) HasRole(role string) bool {
	for _, r := range i.roles {
		if r == role {
			return true
		}
	}
	return false
}

func (i *identity) IsAuthenticated() bool {
	return i.authenticated
}

// GetIdentity extracts the Identity from a Gin context.
// Returns an unauthenticated identity if caller info is not present.
func GetIdentity(c *gin.Context) Identity {
	contractorID, idOK := c.Get(ContextContractorIDKey)
	roles, rolesOK := c.Get(ContextRolesKey)

	if !idOK {
		return &identity{authenticated: false}
	}

	cid, ok := contractorID.(uuid.UUID)
	if !ok {
		return &identity{authenticated: false}
	}

	var roleList []string
	if rolesOK {
		roleList, _ = roles.([]string)
	}

	return &identity{
		contractorID:  cid,
		roles:         roleList,
		authenticated: true,
	}
}

// MustGetIdentity extracts the Identity from a Gin context.
// If the caller is not authenticated, it aborts with 401 Unauthorized and returns nil.
func MustGetIdentity(c *gin.Context) Identity {
	id := GetIdentity(c)
	if !id.IsAuthenticated() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil
	}
	return id
}
