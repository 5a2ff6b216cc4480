package models

import "time"

// ReasonCount is the number of reports filed for one reason
type ReasonCount struct {
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}

// DailyCount is the number of reports filed on one calendar day
type DailyCount struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

// AnalyticsSummary feeds the admin dashboard charts
type AnalyticsSummary struct {
	TotalReports  int            `json:"totalReports"`
	OpenReports   int            `json:"openReports"`
	ByStatus      map[string]int `json:"byStatus"`
	ByNoiseLevel  map[string]int `json:"byNoiseLevel"`
	TopReasons    []ReasonCount  `json:"topReasons"`
	Daily         []DailyCount   `json:"daily"`
	TotalUsers    int            `json:"totalUsers"`
	VerifiedUsers int            `json:"verifiedUsers"`
	GeneratedAt   time.Time      `json:"generatedAt"`
}
