package confidence

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/kailas-cloud/knowledgeops/internal/domain/search/result"
)

// Weights are the tunable constants of the confidence formula.
type Weights struct {
	Base            float64
	RetrievalWeight float64
	LengthBonus     float64
	LengthThreshold int
	HedgePenalty    float64
	HedgePhrases    []string
}

// DefaultWeights returns the production-tuned constants.
func DefaultWeights() Weights {
	return Weights{
		Base:            0.5,
		RetrievalWeight: 0.3,
		LengthBonus:     0.1,
		LengthThreshold: 100,
		HedgePenalty:    0.2,
		HedgePhrases:    []string{"i'm not sure", "i don't know", "unclear", "cannot determine"},
	}
}

// Assessment is the outcome of scoring one answer.
type Assessment struct {
	Confidence    float64
	NeedsApproval bool
}

// Estimator computes a deterministic, explainable confidence score.
type Estimator struct {
	w       Weights
	phrases []string
}

// NewEstimator creates an Estimator. Hedge phrases are matched case-insensitively.
func NewEstimator(w Weights) *Estimator {
	phrases := make([]string, 0, len(w.HedgePhrases))
	for _, p := range w.HedgePhrases {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			phrases = append(phrases, p)
		}
	}
	return &Estimator{w: w, phrases: phrases}
}

// Score rates answer given the retrieval evidence and decides on escalation:
// needs approval iff confidence < threshold.
func (e *Estimator) Score(answer string, results []result.Result, threshold float64) Assessment {
	c := e.w.Base

	best := 0.0
	for i := range results {
		best = max(best, results[i].Score())
	}
	c += e.w.RetrievalWeight * best

	if utf8.RuneCountInString(answer) > e.w.LengthThreshold {
		c += e.w.LengthBonus
	}

	if e.hedges(answer) {
		c -= e.w.HedgePenalty
	}

	c = math.Round(min(1, max(0, c))*1000) / 1000

	return Assessment{Confidence: c, NeedsApproval: c < threshold}
}

func (e *Estimator) hedges(answer string) bool {
	lower := strings.ToLower(answer)
	for _, p := range e.phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
