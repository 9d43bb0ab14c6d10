package models

import "time"

type Plan struct {
	ID         string
	CustomerID string
	Name       string
	LimitKg    float64
	StartDate  time.Time
	Active     bool

	// Поля воркера: когда пересчитать и какой порог уже отправлен в текущем цикле.
	NextCheckAt        time.Time
	LastCheckedAt      *time.Time
	NotifiedThreshold  int
	NotifiedCycleStart *time.Time
	CheckFailCount     int
	LastError          *string
}

// Usage: потребление тарифа за текущий цикл. NoPlan=true, если активного тарифа нет.
type Usage struct {
	CustomerID string
	PlanID     string
	Consumed   float64
	Limit      float64
	Percent    float64
	CycleStart time.Time
	CycleEnd   time.Time
	NoPlan     bool
}
