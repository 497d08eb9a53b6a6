package model

import "time"

// Company is a CRM company record.
type Company struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Domain         string         `json:"domain"`
	Industry       string         `json:"industry"`
	Employees      int            `json:"employees"`
	AnnualRevenue  float64        `json:"annual_revenue"`
	LifecycleStage LifecycleStage `json:"lifecycle_stage"`
	CreatedAt      time.Time      `json:"created_at"`
}
