package models

// StreamRequest is the payload for POST /api/v1/leads/stream.
type StreamRequest struct {
	// Prompt is a free-form description of the campaign. Required.
	Prompt string `json:"prompt" binding:"required"`
}

// CampaignRequest is the payload for POST /api/v1/campaigns.
type CampaignRequest struct {
	Campaign Campaign `json:"campaign"`

	// Prompt is used instead of Campaign when Campaign.Services is empty.
	Prompt string `json:"prompt,omitempty"`

	// Dorks skips strategy generation when provided.
	Dorks []string `json:"dorks,omitempty" binding:"omitempty,max=50"`

	WebhookURL    string `json:"webhook_url,omitempty" binding:"omitempty,url"`
	WebhookSecret string `json:"webhook_secret,omitempty"`
}

// CampaignResponse is the immediate response for POST /api/v1/campaigns.
type CampaignResponse struct {
	ID     string       `json:"id"`
	Status string       `json:"status"`
	Error  *ErrorDetail `json:"error,omitempty"`
}

// CampaignStatusResponse is the response for GET /api/v1/campaigns/:id.
type CampaignStatusResponse struct {
	ID       string       `json:"id"`
	Status   string       `json:"status"`
	Progress Progress     `json:"progress"`
	Report   *RunReport   `json:"report,omitempty"`
	Error    *ErrorDetail `json:"error,omitempty"`
}

// CampaignJob tracks an in-progress campaign.
type CampaignJob struct {
	ID            string
	Status        string // "queued", "processing", "completed", "failed"
	Progress      Progress
	Report        *RunReport
	Error         *ErrorDetail
	CreatedAt     int64 // unix timestamp
	WebhookURL    string
	WebhookSecret string
}

// StreamLead is the flattened lead shape sent over the SSE stream.
type StreamLead struct {
	Name     string `json:"name"`
	Website  string `json:"website"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Location string `json:"location"`
	Services string `json:"services"`
	Category string `json:"category"`
	Priority string `json:"priority"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status       string       `json:"status"` // "healthy", "degraded" or "rate_limited"
	Uptime       string       `json:"uptime"`
	PoolStats    PoolStats    `json:"pool_stats"`
	SessionStats SessionStats `json:"session_stats"`
	Version      string       `json:"version"`
}

// PoolStats reports the state of the execution slot pool.
type PoolStats struct {
	Capacity int         `json:"capacity"`
	InUse    int         `json:"in_use"`
	Slots    []SlotStats `json:"slots"`
}

// SlotStats reports usage of one execution slot.
type SlotStats struct {
	ID       int  `json:"id"`
	Busy     bool `json:"busy"`
	Uses     int  `json:"uses"`
	Failures int  `json:"failures"`
}

// SessionStats reports the standing of the shared browser session.
type SessionStats struct {
	RateLimitStrikes int    `json:"rate_limit_strikes"`
	CoolingDown      bool   `json:"cooling_down"`
	CooldownLeft     string `json:"cooldown_left,omitempty"`
}

// ErrorResponse is the body of every failed API request.
type ErrorResponse struct {
	Success bool         `json:"success"`
	Error   *ErrorDetail `json:"error"`
}
