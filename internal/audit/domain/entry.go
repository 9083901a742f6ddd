package domain

import "time"

// Entry is one append-only audit record. Optional fields are empty strings when absent.
type Entry struct {
	ID           string         `json:"id"`
	Action       string         `json:"action"`
	UserID       string         `json:"userId,omitempty"`
	Resource     string         `json:"resource,omitempty"`
	ResourceID   string         `json:"resourceId,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
	IPAddress    string         `json:"ipAddress"`
	UserAgent    string         `json:"userAgent"`
	Success      bool           `json:"success"`
	ErrorMessage string         `json:"errorMessage,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}
