package render

import (
	"fmt"
	"strconv"
	"time"

	"sysdash/internal/models"
)

const chartHeight = 300

// metricStyle fixes the presentation of one tracked metric.
type metricStyle struct {
	title  string
	yLabel string
	color  string
	label  string
	unit   string
}

var styles = map[string]metricStyle{
	models.MetricCPU: {
		title:  "CPU Utilization",
		yLabel: "Usage (%)",
		color:  "#FF6B6B",
		label:  "CPU Usage",
		unit:   "%",
	},
	models.MetricProcesses: {
		title:  "Process Count",
		yLabel: "Count",
		color:  "#4ECDC4",
		label:  "Processes",
		unit:   "active",
	},
	models.MetricMemory: {
		title:  "Memory Usage",
		yLabel: "Usage (MB)",
		color:  "#45B7D1",
		label:  "RAM Usage",
		unit:   "",
	},
}

// Renderer turns series snapshots into dashboard frames. It is stateless
// apart from the immutable static host info captured at startup.
type Renderer struct {
	info models.StaticInfo
}

// NewRenderer builds a renderer around the one-time static host info.
func NewRenderer(info models.StaticInfo) *Renderer {
	return &Renderer{info: info}
}

// Frame assembles the full per-tick payload: one chart and one summary card
// per tracked metric plus the static info block. Pure with respect to the
// snapshots; never mutates them.
func (r *Renderer) Frame(snapshots map[string][]models.Sample, at time.Time) (models.DashboardFrame, error) {
	frame := models.DashboardFrame{
		GeneratedAt: at,
		Charts:      make([]models.ChartSpec, 0, len(models.MetricNames)),
		Cards:       make([]models.SummaryCard, 0, len(models.MetricNames)),
		Info:        StaticInfoRows(r.info),
	}
	for _, name := range models.MetricNames {
		chart, err := Chart(name, snapshots[name])
		if err != nil {
			return models.DashboardFrame{}, err
		}
		frame.Charts = append(frame.Charts, chart)
		card, err := Card(name, snapshots[name])
		if err != nil {
			return models.DashboardFrame{}, err
		}
		frame.Cards = append(frame.Cards, card)
	}
	return frame, nil
}

// Chart produces the render description of one series: line plus translucent
// area fill, y-axis auto-scaled with headroom.
func Chart(name string, samples []models.Sample) (models.ChartSpec, error) {
	style, ok := styles[name]
	if !ok {
		return models.ChartSpec{}, fmt.Errorf("unknown metric %q", name)
	}
	spec := models.ChartSpec{
		Metric:    name,
		Title:     style.title,
		YLabel:    style.yLabel,
		LineColor: style.color,
		FillColor: fillColor(style.color),
		Height:    chartHeight,
		X:         make([]int64, 0, len(samples)),
		Y:         make([]float64, 0, len(samples)),
		YRange:    YAxisRange(samples),
	}
	for _, s := range samples {
		spec.X = append(spec.X, s.Timestamp.UnixMilli())
		spec.Y = append(spec.Y, s.Value)
	}
	return spec, nil
}

// Card formats the latest value of one series for its summary card.
func Card(name string, samples []models.Sample) (models.SummaryCard, error) {
	style, ok := styles[name]
	if !ok {
		return models.SummaryCard{}, fmt.Errorf("unknown metric %q", name)
	}
	card := models.SummaryCard{
		Metric: name,
		Label:  style.label,
		Unit:   style.unit,
		Value:  "—",
	}
	if len(samples) == 0 {
		return card, nil
	}
	latest := samples[len(samples)-1].Value
	switch name {
	case models.MetricProcesses:
		card.Value = strconv.Itoa(int(latest))
	case models.MetricCPU:
		card.Value = fmt.Sprintf("%.1f", latest)
	case models.MetricMemory:
		card.Value = FormatBytes(latest)
	}
	return card, nil
}

// YAxisRange computes the y-axis span with 10% headroom on each side, never
// dipping below zero. A flat series gets a fixed ±1 band so the axis never
// collapses to zero height.
func YAxisRange(samples []models.Sample) models.AxisRange {
	if len(samples) == 0 {
		return models.AxisRange{Min: 0, Max: 1}
	}
	min, max := samples[0].Value, samples[0].Value
	for _, s := range samples[1:] {
		if s.Value < min {
			min = s.Value
		}
		if s.Value > max {
			max = s.Value
		}
	}
	padding := (max - min) * 0.1
	if padding == 0 {
		return models.AxisRange{Min: min - 1, Max: max + 1}
	}
	lower := min - padding
	if lower < 0 {
		lower = 0
	}
	return models.AxisRange{Min: lower, Max: max + padding}
}

// FormatBytes renders a megabyte quantity with unit scaling: MB → GB → TB,
// dividing by 1024 at each step, one decimal place.
func FormatBytes(mb float64) string {
	for _, unit := range []string{"MB", "GB"} {
		if mb < 1024 {
			return fmt.Sprintf("%.1f %s", mb, unit)
		}
		mb /= 1024
	}
	return fmt.Sprintf("%.1f TB", mb)
}

// StaticInfoRows formats the one-time host facts block.
func StaticInfoRows(info models.StaticInfo) []models.InfoRow {
	return []models.InfoRow{
		{Label: "Operating System", Value: info.OSName},
		{Label: "CPU Cores", Value: strconv.Itoa(info.CoreCount)},
		{Label: "Total RAM", Value: FormatBytes(float64(info.TotalRAMMB))},
		{Label: "Boot Time", Value: info.BootTime.Format("02/01/2006 15:04:05")},
	}
}

// fillColor converts a #RRGGBB line color into the translucent area fill
// used under the line.
func fillColor(hex string) string {
	if len(hex) != 7 || hex[0] != '#' {
		return "rgba(128, 128, 128, 0.1)"
	}
	r, errR := strconv.ParseUint(hex[1:3], 16, 8)
	g, errG := strconv.ParseUint(hex[3:5], 16, 8)
	b, errB := strconv.ParseUint(hex[5:7], 16, 8)
	if errR != nil || errG != nil || errB != nil {
		return "rgba(128, 128, 128, 0.1)"
	}
	return fmt.Sprintf("rgba(%d, %d, %d, 0.1)", r, g, b)
}
