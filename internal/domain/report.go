package domain

// Risks groups the verdicts of every assessed hazard.
type Risks struct {
	Flood HazardVerdict `json:"flood"`
	Heat  HazardVerdict `json:"heat"`
	Storm HazardVerdict `json:"storm"`
}

// RiskReport is the terminal output of one risk computation.
type RiskReport struct {
	Risks    Risks         `json:"risks"`
	Alert    AlertSignal   `json:"alert"`
	Features FeatureVector `json:"features"`
	Insight  string        `json:"ai_insight"`
}
