package model

// Override is an admin-curated canonical answer for a question.
type Override struct {
	ID        string    `json:"id,omitempty"`
	MongoID   string    `json:"_id,omitempty"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Sources   []string  `json:"sources,omitempty"`
	Force     bool      `json:"force"`
	Enabled   bool      `json:"enabled"`
	CreatedAt Timestamp `json:"createdAt"`
	UpdatedAt Timestamp `json:"updatedAt"`
}

// Key returns the backend identifier, whichever field carried it.
func (o Override) Key() string {
	if o.ID != "" {
		return o.ID
	}
	return o.MongoID
}

type OverridePatch struct {
	Question *string  `json:"question,omitempty"`
	Answer   *string  `json:"answer,omitempty"`
	Sources  []string `json:"sources,omitempty"`
	Force    *bool    `json:"force,omitempty"`
	Enabled  *bool    `json:"enabled,omitempty"`
}

// ModelResult is one column of a model comparison.
type ModelResult struct {
	Model     string   `json:"model"`
	Answer    string   `json:"answer"`
	Sources   []string `json:"sources,omitempty"`
	Error     string   `json:"error,omitempty"`
	LatencyMs int64    `json:"latencyMs,omitempty"`
}
