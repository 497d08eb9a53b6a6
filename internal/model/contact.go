package model

import "time"

// Contact is a CRM contact. Became holds the raw "entered this stage at"
// property value per lifecycle stage, exactly as the CRM returned it (epoch
// millis or date string). An empty, "0", or missing value means the contact
// never reached that stage and must not be counted.
type Contact struct {
	ID             string                    `json:"id"`
	FirstName      string                    `json:"first_name"`
	LastName       string                    `json:"last_name"`
	Email          string                    `json:"email"`
	Company        string                    `json:"company"`
	OwnerID        string                    `json:"owner_id"`
	LifecycleStage LifecycleStage            `json:"lifecycle_stage"`
	Became         map[LifecycleStage]string `json:"became"`
	CreatedAt      time.Time                 `json:"created_at"`
}

// BecameValue returns the raw became-stage timestamp for a stage, or "".
func (c Contact) BecameValue(s LifecycleStage) string {
	if c.Became == nil {
		return ""
	}
	return c.Became[s]
}
