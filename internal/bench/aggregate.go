package bench

import "math"

// Metric selects the chart value.
type Metric string

const (
	MetricTotal      Metric = "total"
	MetricPerPackage Metric = "perPackage"

	// ScenarioAverage charts the cross-scenario averages.
	ScenarioAverage = "average"

	failureReasons   = 2
	failureReasonLen = 80
)

type ScenarioStat struct {
	DurationMs       float64 `json:"durationMs"`
	PerPackageTimeMs float64 `json:"perPackageTimeMs"`
	PackageCount     int     `json:"packageCount"`
}

// AggregatedResult summarizes one tool over its successful runs.
type AggregatedResult struct {
	Tool                string                  `json:"tool"`
	AvgDurationMs       float64                 `json:"avgDurationMs"`
	AvgPerPackageTimeMs float64                 `json:"avgPerPackageTimeMs"`
	AvgPackageCount     int                     `json:"avgPackageCount"`
	Runs                int                     `json:"runs"`
	PerScenario         map[string]ScenarioStat `json:"perScenario"`
}

type ChartPoint struct {
	Tool         string  `json:"tool"`
	DisplayValue float64 `json:"displayValue"`
	PackageCount int     `json:"packageCount"`
}

type ToolFailures struct {
	Tool    string   `json:"tool"`
	Reasons []string `json:"reasons"`
}

type accum struct {
	n                          int
	duration, perPkg, packages float64
}

func (a *accum) add(r TestResult) {
	a.n++
	a.duration += float64(r.DurationMs)
	a.perPkg += r.PerPackageTimeMs
	a.packages += float64(r.PackageCount)
}

func (a *accum) mean(v float64) float64 {
	if a.n == 0 {
		return 0
	}
	return v / float64(a.n)
}

// Aggregate averages the successful results per tool, in first-seen tool
// order. Tools without a single success are omitted.
func Aggregate(results []TestResult) []AggregatedResult {
	var order []string
	tools := map[string]*accum{}
	scenarios := map[string]map[string]*accum{}
	scenarioOrder := map[string][]string{}

	for _, r := range results {
		if !r.Success {
			continue
		}
		a, ok := tools[r.Tool]
		if !ok {
			a = &accum{}
			tools[r.Tool] = a
			scenarios[r.Tool] = map[string]*accum{}
			order = append(order, r.Tool)
		}
		a.add(r)

		sa, ok := scenarios[r.Tool][r.Scenario]
		if !ok {
			sa = &accum{}
			scenarios[r.Tool][r.Scenario] = sa
			scenarioOrder[r.Tool] = append(scenarioOrder[r.Tool], r.Scenario)
		}
		sa.add(r)
	}

	out := make([]AggregatedResult, 0, len(order))
	for _, tool := range order {
		a := tools[tool]
		per := make(map[string]ScenarioStat, len(scenarioOrder[tool]))
		for _, sc := range scenarioOrder[tool] {
			sa := scenarios[tool][sc]
			per[sc] = ScenarioStat{
				DurationMs:       sa.mean(sa.duration),
				PerPackageTimeMs: sa.mean(sa.perPkg),
				PackageCount:     int(math.Round(sa.mean(sa.packages))),
			}
		}
		out = append(out, AggregatedResult{
			Tool:                tool,
			AvgDurationMs:       a.mean(a.duration),
			AvgPerPackageTimeMs: a.mean(a.perPkg),
			AvgPackageCount:     int(math.Round(a.mean(a.packages))),
			Runs:                a.n,
			PerScenario:         per,
		})
	}
	return out
}

// Chart returns one point per tool for scenario, or for the cross-scenario
// averages when scenario is ScenarioAverage. Tools without a successful run
// in the scenario are left out.
func Chart(results []TestResult, scenario string, metric Metric) []ChartPoint {
	var points []ChartPoint
	for _, a := range Aggregate(results) {
		if scenario == ScenarioAverage {
			v := a.AvgDurationMs
			if metric == MetricPerPackage {
				v = a.AvgPerPackageTimeMs
			}
			points = append(points, ChartPoint{Tool: a.Tool, DisplayValue: v, PackageCount: a.AvgPackageCount})
			continue
		}
		st, ok := a.PerScenario[scenario]
		if !ok {
			continue
		}
		v := st.DurationMs
		if metric == MetricPerPackage {
			v = st.PerPackageTimeMs
		}
		points = append(points, ChartPoint{Tool: a.Tool, DisplayValue: v, PackageCount: st.PackageCount})
	}
	return points
}

// FailureSummary lists tools with no successful run and their first failure
// reasons, truncated.
func FailureSummary(results []TestResult) []ToolFailures {
	var order []string
	succeeded := map[string]bool{}
	reasons := map[string][]string{}
	for _, r := range results {
		if _, seen := reasons[r.Tool]; !seen {
			order = append(order, r.Tool)
			reasons[r.Tool] = nil
		}
		if r.Success {
			succeeded[r.Tool] = true
			continue
		}
		if len(reasons[r.Tool]) < failureReasons {
			reasons[r.Tool] = append(reasons[r.Tool], Truncate(r.Error, failureReasonLen))
		}
	}

	var out []ToolFailures
	for _, tool := range order {
		if succeeded[tool] {
			continue
		}
		out = append(out, ToolFailures{Tool: tool, Reasons: reasons[tool]})
	}
	return out
}
