package chartjs

const ColorYellow = "#ffc107d4"
const ColorRed = "#f44336d4"

// NewChart builds a line chart with one point per label and two
// datasets (gross total and raw energy price) sharing the left axis.
func NewChart(title string, labels []string) Chart {
	n := len(labels)

	chart := Chart{
		Type: "line",
		Data: ChartData{
			Labels: labels,
			Datasets: []ChartDataset{
				{
					Label:       "Total (EUR/kWh)",
					Data:        make([]*float64, n),
					BorderWidth: 1,
					Tension:     0.4,
					Fill:        true,
					BorderColor: ColorRed,
					YAxisID:     "YAxis1",
				},
				{
					Label:       "Energy (EUR/kWh)",
					Data:        make([]*float64, n),
					BorderWidth: 1,
					Tension:     0.4,
					Fill:        false,
					BorderColor: ColorYellow,
					YAxisID:     "YAxis1",
				},
			},
		},
		Options: ChartOptions{
			Responsive: true,
			Plugins: ChartPlugins{
				Legend: ChartLegend{Display: true},
				Title:  ChartTitle{Display: false},
			},
			Scales: map[string]ChartScale{
				"YAxis1": {
					Type:     "linear",
					Display:  true,
					Position: "left",
					Title:    ChartScaleTitle{Display: true, Text: "", Color: ColorRed}},
			},
		},
	}

	if title != "" {
		chart.Options.Plugins.Title = ChartTitle{Display: true, Text: title}
	}

	return chart
}

func (cs ChartScale) WithTitle(title string) ChartScale {
	cs.Title.Text = title
	return cs
}

func (cs ChartScale) WithMinAndMax(min, max float64) ChartScale {
	cs.Min = &min
	cs.Max = &max
	return cs
}

// FixedFloat64 returns a pointer suitable for a dataset slot.
func FixedFloat64(v float64) *float64 {
	return &v
}
