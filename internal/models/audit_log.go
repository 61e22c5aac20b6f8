package models

// AuditLog records administrative operations (issuances, compliance
// transitions, dividend declarations) for audit purposes.
type AuditLog struct {
	Base
	Actor        string `gorm:"not null;index" json:"actor"`
	Action       string `gorm:"not null" json:"action"`
	ResourceType string `gorm:"not null" json:"resource_type"`
	ResourceID   string `json:"resource_id"`
	IPAddress    string `json:"ip_address"`
	Details      string `json:"details,omitempty"`
}
