package model

import "time"

// Deal is a CRM deal with foreign keys already resolved where metadata was
// available. Amount defaults to 0 when the CRM property is absent;
// StageLabel falls back to the raw stage id when pipeline metadata is
// missing.
type Deal struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Amount     float64   `json:"amount"`
	StageID    string    `json:"stage_id"`
	StageLabel string    `json:"stage_label"`
	PipelineID string    `json:"pipeline_id"`
	OwnerID    string    `json:"owner_id"`
	OwnerName  string    `json:"owner_name"`
	CreatedAt  time.Time `json:"created_at"`
	ClosedAt   time.Time `json:"closed_at,omitzero"`
	UpdatedAt  time.Time `json:"updated_at,omitzero"`
}

// Pipeline is CRM deal-pipeline metadata used for stage enrichment.
type Pipeline struct {
	ID     string          `json:"id"`
	Label  string          `json:"label"`
	Stages []PipelineStage `json:"stages"`
}

// PipelineStage is one stage within a deal pipeline.
type PipelineStage struct {
	ID          string  `json:"id"`
	Label       string  `json:"label"`
	Probability float64 `json:"probability"`
}

// Owner is a CRM user that deals and contacts can be assigned to.
type Owner struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// Name returns the owner's display name, falling back to email.
func (o Owner) Name() string {
	switch {
	case o.FirstName != "" && o.LastName != "":
		return o.FirstName + " " + o.LastName
	case o.FirstName != "":
		return o.FirstName
	case o.LastName != "":
		return o.LastName
	default:
		return o.Email
	}
}
