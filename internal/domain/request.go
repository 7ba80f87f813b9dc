package domain

// ─── Inbound Requests ───────────────────────────────────────────────────────
// Wire payloads for the two submission endpoints. Headers (Idempotency-Key,
// Tenant-ID) travel separately and are merged in by the API layer.

// TaskRequest is the POST /tasks body.
type TaskRequest struct {
	Type        string   `json:"type"`
	Priority    string   `json:"priority"`
	Description string   `json:"description"`
	Tenant      string   `json:"tenant"`
	Platforms   []string `json:"platforms"`

	// Set from headers by the API layer.
	IdempotencyKey string `json:"-"`
}

// CompetitionRequest is the POST /self-compete body.
type CompetitionRequest struct {
	Content     string   `json:"content"`
	Platforms   []string `json:"platforms"`
	Priority    string   `json:"priority"`
	Competitors []string `json:"competitors,omitempty"`
	Tenant      string   `json:"tenant"`

	IdempotencyKey string `json:"-"`
}
