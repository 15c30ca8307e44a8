// Package verdict synthesizes the per-checker results into a single scored
// verdict. Everything here is pure and CPU-bound; no I/O.
package verdict

import (
	"math"

	"github.com/agrotrace/agrocheck/internal/model"
)

// Evaluation is the synthesized outcome of a result set.
type Evaluation struct {
	Verdict      model.Verdict
	Score        int
	Summary      model.Summary
	CacheHitRate float64
}

// Evaluate computes the severity-weighted score, the verdict, and the status
// summary for the given results.
//
// ERROR and NOT_APPLICABLE results are excluded from scoring (they neither
// raise nor lower the score) but counted separately in the summary.
func Evaluate(results []model.SourceResult) Evaluation {
	var (
		summary    model.Summary
		weightSum  float64
		scoreSum   float64
		applicable int
		cacheHits  int
		anyFail    bool
		anyWarning bool
	)

	summary.Total = len(results)

	for _, r := range results {
		switch r.Status {
		case model.StatusPass:
			summary.Passed++
		case model.StatusFail:
			summary.Failed++
		case model.StatusWarning:
			summary.Warnings++
		case model.StatusError:
			summary.Errors++
		case model.StatusNotApplicable:
			summary.NotApplicable++
		}

		if !r.Status.Applicable() {
			continue
		}
		applicable++
		if r.Cached {
			cacheHits++
		}

		// Non-FAIL results carry full weight; FAIL weight scales with
		// severity so a CRITICAL drags the score harder than a LOW.
		weight := 1.0
		if r.Status == model.StatusFail {
			weight = r.Severity.Weight()
		}
		weightSum += weight

		switch r.Status {
		case model.StatusPass:
			scoreSum += 100 * weight
		case model.StatusWarning:
			scoreSum += 50 * weight
			anyWarning = true
		case model.StatusFail:
			anyFail = true
		}
	}

	eval := Evaluation{Summary: summary}

	if applicable == 0 {
		eval.Verdict = model.VerdictUnknown
		return eval
	}

	if weightSum > 0 {
		eval.Score = int(math.Round(scoreSum / weightSum))
	}
	eval.CacheHitRate = float64(cacheHits) / float64(applicable)

	switch {
	case anyFail:
		eval.Verdict = model.VerdictNonCompliant
	case anyWarning || summary.Passed < applicable:
		eval.Verdict = model.VerdictPartial
	default:
		eval.Verdict = model.VerdictCompliant
	}

	return eval
}
