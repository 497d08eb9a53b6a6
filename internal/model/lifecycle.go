package model

// LifecycleStage is a CRM-defined contact classification. The zero value is
// not meaningful; unknown raw values map to StageOther.
type LifecycleStage string

const (
	StageSubscriber             LifecycleStage = "subscriber"
	StageLead                   LifecycleStage = "lead"
	StageMarketingQualifiedLead LifecycleStage = "marketingqualifiedlead"
	StageSalesQualifiedLead     LifecycleStage = "salesqualifiedlead"
	StageOpportunity            LifecycleStage = "opportunity"
	StageCustomer               LifecycleStage = "customer"
	StageEvangelist             LifecycleStage = "evangelist"
	StageOther                  LifecycleStage = "other"
)

// LifecycleStages lists all defined stages in funnel order. Iteration over
// lifecycle metrics always uses this order so report rows are deterministic.
func LifecycleStages() []LifecycleStage {
	return []LifecycleStage{
		StageSubscriber,
		StageLead,
		StageMarketingQualifiedLead,
		StageSalesQualifiedLead,
		StageOpportunity,
		StageCustomer,
		StageEvangelist,
		StageOther,
	}
}

var stageLabels = map[LifecycleStage]string{
	StageSubscriber:             "Subscriber",
	StageLead:                   "Lead",
	StageMarketingQualifiedLead: "Marketing Qualified Lead",
	StageSalesQualifiedLead:     "Sales Qualified Lead",
	StageOpportunity:            "Opportunity",
	StageCustomer:               "Customer",
	StageEvangelist:             "Evangelist",
	StageOther:                  "Other",
}

// Label returns the display label for a stage, falling back to the raw value.
func (s LifecycleStage) Label() string {
	if l, ok := stageLabels[s]; ok {
		return l
	}
	return string(s)
}

// BecameProperty returns the CRM contact property that records when a
// contact first entered this stage.
func (s LifecycleStage) BecameProperty() string {
	return "hs_lifecyclestage_" + string(s) + "_date"
}

// NormalizeStage maps a raw CRM lifecyclestage value onto a defined stage.
func NormalizeStage(raw string) LifecycleStage {
	s := LifecycleStage(raw)
	if _, ok := stageLabels[s]; ok {
		return s
	}
	return StageOther
}
