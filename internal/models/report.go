package models

// CategoryTotal aggregates spending for one category.
type CategoryTotal struct {
	Category   Category `json:"category"`
	Total      float64  `json:"total"`
	Count      int      `json:"count"`
	Percentage float64  `json:"percentage"`
}

// MonthlyTotal aggregates spending for one calendar month.
type MonthlyTotal struct {
	Month int     `json:"month"`
	Total float64 `json:"total"`
	Count int     `json:"count"`
}
