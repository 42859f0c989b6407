package models

// Series is a labelled one-dimensional statistic block.
type Series struct {
	Labels []string  `json:"labels"`
	Data   []float64 `json:"data"`
}

// CountSeries is a labelled block of raw counts.
type CountSeries struct {
	Labels []string `json:"labels"`
	Values []int    `json:"values"`
}

// LabelSplit reports per-category counts split by connection label.
type LabelSplit struct {
	Labels   []string `json:"labels"`
	Normal   []int    `json:"normal"`
	Abnormal []int    `json:"abnormal"`
}

// StackedSeries is a per-category split rendered as one dataset per label.
type StackedSeries struct {
	Labels   []string       `json:"labels"`
	Datasets []LabelDataset `json:"datasets"`
}

// LabelDataset is one label's counts across the categories of a StackedSeries.
type LabelDataset struct {
	Label string `json:"label"`
	Data  []int  `json:"data"`
}

// DashboardStats bundles every statistic block served to the dashboard.
type DashboardStats struct {
	AttackTypes    Series        `json:"attack_type_stats"`
	FailedLogins   Series        `json:"failed_login_stats"`
	Durations      Series        `json:"duration_stats"`
	ServiceCounts  CountSeries   `json:"service_counts"`
	ServiceByLabel LabelSplit    `json:"service_stats"`
	Protocols      StackedSeries `json:"protocol_stats"`
}

// TrafficPoint is one connection plotted by transferred bytes.
type TrafficPoint struct {
	SrcBytes float64 `json:"x"`
	DstBytes float64 `json:"y"`
	Label    Label   `json:"binary_attack"`
}

// TrafficScatter lists source/destination byte pairs for connections that moved data both ways.
type TrafficScatter struct {
	Label  string         `json:"label"`
	Points []TrafficPoint `json:"data"`
}
