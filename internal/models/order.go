package models

import "time"

type Order struct {
	ID            string
	CustomerID    string
	OperatorID    *string
	RawStatus     string
	Quantity      float64
	Unit          string
	CreatedAt     time.Time
	ScheduledDate *time.Time
	UpdatedAt     time.Time
}

type OrderCreateInput struct {
	CustomerID    string
	Quantity      float64
	Unit          string
	ScheduledDate *time.Time
}

// OrderFilter: выборка заказов; пустые поля не фильтруют.
type OrderFilter struct {
	CustomerID    string
	OperatorID    string
	CreatedFrom   *time.Time
	CreatedBefore *time.Time
	Limit         int
	Offset        int
}
