package dto

// MigrateRequest represents a migration request
type MigrateRequest struct {
	Command     string `json:"command" binding:"required"` // "<version>|latest"[,"rerun"]
	RequestedBy string `json:"requested_by"`               // Optional
}

// MigrateResponse represents a migration response
type MigrateResponse struct {
	Queued  bool   `json:"queued"`
	JobID   string `json:"job_id,omitempty"`
	Version int64  `json:"version"`
}

// VersionResponse reports the current control record version
type VersionResponse struct {
	Version int64 `json:"version"`
}

// MigrationInfo describes one registered migration
type MigrationInfo struct {
	Version int64  `json:"version"`
	Name    string `json:"name"`
	Applied bool   `json:"applied"`
	Current bool   `json:"current"`
}

// MigrationListResponse lists the registered migrations
type MigrationListResponse struct {
	Items   []MigrationInfo `json:"items"`
	Total   int             `json:"total"`
	Version int64           `json:"version"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}
