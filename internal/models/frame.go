package models

import "time"

// AxisRange is the rendered y-axis span of a chart.
type AxisRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// ChartSpec is a render description of one series: everything the frontend
// needs to draw a line-plus-area chart without touching live series state.
type ChartSpec struct {
	Metric    string    `json:"metric"`
	Title     string    `json:"title"`
	YLabel    string    `json:"y_label"`
	LineColor string    `json:"line_color"`
	FillColor string    `json:"fill_color"`
	Height    int       `json:"height"`
	X         []int64   `json:"x"` // unix milliseconds
	Y         []float64 `json:"y"`
	YRange    AxisRange `json:"y_range"`
}

// SummaryCard is the latest value of one metric, formatted for display.
type SummaryCard struct {
	Metric string `json:"metric"`
	Label  string `json:"label"`
	Value  string `json:"value"`
	Unit   string `json:"unit"`
}

// InfoRow is one line of the static host-information block.
type InfoRow struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// DashboardFrame is the full per-tick payload pushed to the render surface:
// three charts, three summary cards and the one-time host info block.
type DashboardFrame struct {
	GeneratedAt time.Time     `json:"generated_at"`
	Charts      []ChartSpec   `json:"charts"`
	Cards       []SummaryCard `json:"cards"`
	Info        []InfoRow     `json:"info"`
}
