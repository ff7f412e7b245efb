// internal/models/project.go
package models

import "time"

// Project is the read-only collaborator owning documents and elements.
// The pipeline never mutates projects; it only checks access and reads the
// document set to scope retrieval.
type Project struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"ownerId"`
	TenantType    string    `json:"tenantType"`
	DocumentIDs   []string  `json:"documentIds"`
	SharedUserIDs []string  `json:"sharedUserIds,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// IsAccessibleBy reports whether the user owns the project or appears in its
// share list.
func (p *Project) IsAccessibleBy(userID string) bool {
	if p.OwnerID == userID {
		return true
	}
	for _, id := range p.SharedUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}
