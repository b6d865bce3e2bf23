package domain

import "time"

const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

// roleHierarchy lists the roles implied by holding a role.
var roleHierarchy = map[string][]string{
	RoleAdmin: {RoleAdmin, RoleUser},
	RoleUser:  {RoleUser},
}

type User struct {
	ID         int64     `json:"id"`
	ExternalID string    `json:"externalId"`
	Email      string    `json:"email"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Principal is the authenticated caller of an operation.
type Principal struct {
	UserID     int64
	ExternalID string
	Email      string
	Roles      []string
}

func (p *Principal) HasRole(role string) bool {
	if p == nil {
		return false
	}
	for _, held := range p.Roles {
		for _, implied := range roleHierarchy[held] {
			if implied == role {
				return true
			}
		}
	}
	return false
}

func (p *Principal) IsAdmin() bool {
	return p.HasRole(RoleAdmin)
}
