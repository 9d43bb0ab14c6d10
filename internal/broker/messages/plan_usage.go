package messages

import "time"

// PlanUsageThreshold is published once per cycle when usage crosses a threshold.
type PlanUsageThreshold struct {
	PlanID     string    `json:"plan_id"`
	CustomerID string    `json:"customer_id"`
	Threshold  int       `json:"threshold"`
	Consumed   float64   `json:"consumed_kg"`
	Limit      float64   `json:"limit_kg"`
	Percent    float64   `json:"percent"`
	CycleStart time.Time `json:"cycle_start"`
	CycleEnd   time.Time `json:"cycle_end"`
	CheckedAt  time.Time `json:"checked_at"`
}
