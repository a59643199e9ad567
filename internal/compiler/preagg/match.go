// Package preagg implements the pre-aggregation matcher (spec.md §4.6):
// deciding whether a materialized rollup can answer a request instead of
// the base tables, and explaining that decision per candidate.
package preagg

import (
	"fmt"

	"github.com/accented-ai/semcompile/internal/model"
)

// DimensionRequest is one requested dimension, with the granularity the
// request asked for (the dimension's base granularity if no `__grain`
// suffix was given).
type DimensionRequest struct {
	Name        string
	Granularity model.Granularity
}

// Request is the subset of a compiled request the matcher needs: it is
// evaluated against a single owning model, so Models is only consulted for
// the single-model eligibility check (rule 1).
type Request struct {
	Models        []string // distinct model names the overall compile touches
	Dimensions    []DimensionRequest
	Metrics       []string // requested metric names, expected to be base aggregates owned by the model being matched
	FilterColumns []string // bare column names referenced anywhere in the request's filters
}

// CheckName identifies one of the five eligibility checks spec.md §4.6 runs.
type CheckName string

const (
	CheckSingleModel  CheckName = "single_model"
	CheckDimensions   CheckName = "dimensions"
	CheckGranularity  CheckName = "granularity"
	CheckMeasures     CheckName = "measures"
	CheckFilterColumn CheckName = "filters"
)

// CheckResult is the outcome of one eligibility check, with a short
// human-readable detail for the structured explain() output.
type CheckResult struct {
	Name   CheckName
	Passed bool
	Detail string
}

// CandidateReport is one rollup's full eligibility verdict (spec.md §4.6
// "explain(request, model) -> list of CandidateReport").
type CandidateReport struct {
	Rollup   string
	Eligible bool
	Checks   []CheckResult
}

// Explain evaluates every pre-aggregation declared on m against req and
// returns one CandidateReport per rollup, in declaration order.
func Explain(m *model.Model, req Request) []CandidateReport {
	reports := make([]CandidateReport, 0, len(m.PreAggregations))

	for i := range m.PreAggregations {
		reports = append(reports, evaluate(m, &m.PreAggregations[i], req))
	}

	return reports
}

// Match returns the best eligible rollup for req, or ok == false if none is
// eligible. Scoring prefers (a) an exact granularity match, (b) fewer extra
// dimensions carried by the rollup, (c) declaration order (spec.md §4.6).
func Match(m *model.Model, req Request) (*model.PreAggregation, CandidateReport, bool) {
	type scored struct {
		pa     *model.PreAggregation
		report CandidateReport
		index  int
	}

	var best *scored

	for i := range m.PreAggregations {
		pa := &m.PreAggregations[i]
		report := evaluate(m, pa, req)

		if !report.Eligible {
			continue
		}

		candidate := &scored{pa: pa, report: report, index: i}

		if best == nil || betterCandidate(candidate.pa, candidate.index, req, best.pa, best.index) {
			best = candidate
		}
	}

	if best == nil {
		return nil, CandidateReport{}, false
	}

	return best.pa, best.report, true
}

func betterCandidate(a *model.PreAggregation, aIdx int, req Request, b *model.PreAggregation, bIdx int) bool {
	aExact, bExact := exactGranularityMatch(a, req), exactGranularityMatch(b, req)
	if aExact != bExact {
		return aExact
	}

	aExtra, bExtra := len(a.Dimensions), len(b.Dimensions)
	if aExtra != bExtra {
		return aExtra < bExtra
	}

	return aIdx < bIdx
}

func exactGranularityMatch(pa *model.PreAggregation, req Request) bool {
	for _, d := range req.Dimensions {
		if d.Name == pa.TimeDimension {
			return d.Granularity == pa.Granularity
		}
	}

	return pa.Granularity == ""
}

func evaluate(m *model.Model, pa *model.PreAggregation, req Request) CandidateReport { //nolint:cyclop
	checks := []CheckResult{
		checkSingleModel(m, req),
		checkDimensions(pa, req),
		checkGranularity(pa, req),
		checkMeasures(m, pa, req),
		checkFilterColumns(pa, req),
	}

	eligible := true

	for _, c := range checks {
		if !c.Passed {
			eligible = false
			break
		}
	}

	return CandidateReport{Rollup: pa.Name, Eligible: eligible, Checks: checks}
}

func checkSingleModel(m *model.Model, req Request) CheckResult {
	if len(req.Models) == 1 && req.Models[0] == m.Name {
		return CheckResult{Name: CheckSingleModel, Passed: true, Detail: "request touches only " + m.Name}
	}

	return CheckResult{
		Name:   CheckSingleModel,
		Passed: false,
		Detail: fmt.Sprintf("request touches %d model(s), rollup requires exactly one", len(req.Models)),
	}
}

func checkDimensions(pa *model.PreAggregation, req Request) CheckResult {
	for _, d := range req.Dimensions {
		if d.Name == pa.TimeDimension {
			continue
		}

		if !pa.HasDimension(d.Name) {
			return CheckResult{
				Name:   CheckDimensions,
				Passed: false,
				Detail: fmt.Sprintf("dimension %q is not retained by rollup %q", d.Name, pa.Name),
			}
		}
	}

	return CheckResult{Name: CheckDimensions, Passed: true, Detail: "all requested dimensions are retained"}
}

func checkGranularity(pa *model.PreAggregation, req Request) CheckResult {
	for _, d := range req.Dimensions {
		if d.Name != pa.TimeDimension {
			continue
		}

		if !model.CoarserOrEqual(d.Granularity, pa.Granularity) {
			return CheckResult{
				Name:   CheckGranularity,
				Passed: false,
				Detail: fmt.Sprintf("requested granularity %q is finer than rollup granularity %q", d.Granularity, pa.Granularity),
			}
		}

		return CheckResult{
			Name:   CheckGranularity,
			Passed: true,
			Detail: fmt.Sprintf("requested granularity %q derivable from rollup granularity %q", d.Granularity, pa.Granularity),
		}
	}

	return CheckResult{Name: CheckGranularity, Passed: true, Detail: "no time dimension requested"}
}

func checkMeasures(m *model.Model, pa *model.PreAggregation, req Request) CheckResult {
	for _, name := range req.Metrics {
		if ok, detail := measureDerivable(m, pa, name); !ok {
			return CheckResult{Name: CheckMeasures, Passed: false, Detail: detail}
		}
	}

	return CheckResult{Name: CheckMeasures, Passed: true, Detail: "all requested metrics are derivable from materialised measures"}
}

func measureDerivable(m *model.Model, pa *model.PreAggregation, metricName string) (bool, string) {
	mt, ok := m.Metric(metricName)
	if !ok {
		return false, fmt.Sprintf("metric %q is not declared on %q", metricName, m.Name)
	}

	switch mt.Agg {
	case model.Sum, model.Min, model.Max, model.Count:
		if pa.HasMeasure(metricName) {
			return true, fmt.Sprintf("%q is directly materialised", metricName)
		}

		return false, fmt.Sprintf("%q is not materialised by rollup %q", metricName, pa.Name)

	case model.Avg:
		sumName, hasSum := siblingSum(m, mt.SQL)
		countName, hasCount := siblingCount(m)

		if hasSum && pa.HasMeasure(sumName) && hasCount && pa.HasMeasure(countName) {
			return true, fmt.Sprintf("%q derivable as SUM(%s)/SUM(%s)", metricName, sumName, countName)
		}

		return false, fmt.Sprintf("%q requires both a materialised sum and count measure", metricName)

	case model.CountDistinct:
		if pa.HasMeasure(metricName) {
			return true, fmt.Sprintf("%q is explicitly materialised as a distinct count", metricName)
		}

		return false, fmt.Sprintf("%q (count_distinct) is never derivable from a non-distinct rollup", metricName)

	default:
		if pa.HasMeasure(metricName) {
			return true, fmt.Sprintf("%q is directly materialised", metricName)
		}

		return false, fmt.Sprintf("%q (%s) requires an exact materialised measure", metricName, mt.Agg)
	}
}

// siblingSum finds a sum metric on m aggregating the same inner expression
// as sql, the underlying column an avg metric needs (spec.md §4.6 rule 4).
func siblingSum(m *model.Model, sql string) (string, bool) {
	for i := range m.Metrics {
		if m.Metrics[i].Agg == model.Sum && m.Metrics[i].SQL == sql {
			return m.Metrics[i].Name, true
		}
	}

	return "", false
}

// siblingCount finds any row-count metric on m (spec.md §4.6 rule 4: "or a
// count metric").
func siblingCount(m *model.Model) (string, bool) {
	for i := range m.Metrics {
		if m.Metrics[i].Agg == model.Count {
			return m.Metrics[i].Name, true
		}
	}

	return "", false
}

func checkFilterColumns(pa *model.PreAggregation, req Request) CheckResult {
	for _, col := range req.FilterColumns {
		if col == pa.TimeDimension || pa.HasDimension(col) {
			continue
		}

		return CheckResult{
			Name:   CheckFilterColumn,
			Passed: false,
			Detail: fmt.Sprintf("filter column %q is not present in rollup %q", col, pa.Name),
		}
	}

	return CheckResult{Name: CheckFilterColumn, Passed: true, Detail: "all filter columns are present in the rollup"}
}
