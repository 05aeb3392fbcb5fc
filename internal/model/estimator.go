package model

import (
	"fmt"

	"github.com/couchcryptid/climate-risk-engine/internal/domain"
)

// Method tags reported on the flood verdict.
const (
	MethodFallback = "fallback-rule"
	MethodModel    = "ML-XGBoost"
)

// Probability bands, inclusive on the lower bound.
const (
	highThreshold   = 0.75
	mediumThreshold = 0.40
)

// Estimator produces the flood verdict from a feature vector.
type Estimator struct {
	artifact *Artifact
}

// NewEstimator creates an Estimator. A nil artifact selects the fixed fallback rule.
func NewEstimator(artifact *Artifact) *Estimator {
	return &Estimator{artifact: artifact}
}

// ModelLoaded reports whether a classifier is in use.
func (e *Estimator) ModelLoaded() bool {
	return e.artifact != nil
}

// Estimate returns the flood probability verdict. It fails with
// *domain.MissingFeatureError when the artifact declares a feature absent from f.
func (e *Estimator) Estimate(f domain.FeatureVector) (domain.HazardVerdict, error) {
	if e.artifact == nil {
		return domain.HazardVerdict{Score: 0.2, Level: domain.LevelLow, Method: MethodFallback}, nil
	}

	x := make([]float64, len(e.artifact.FeatureNames))
	for i, name := range e.artifact.FeatureNames {
		v, ok := f[name]
		if !ok {
			return domain.HazardVerdict{}, &domain.MissingFeatureError{Name: name}
		}
		x[i] = v
	}

	p, err := e.artifact.Classifier.PredictProba(x)
	if err != nil {
		return domain.HazardVerdict{}, fmt.Errorf("flood model inference: %w", err)
	}

	return domain.HazardVerdict{
		Score:  domain.RoundScore(p, 3),
		Level:  LevelForProbability(p),
		Method: MethodModel,
	}, nil
}

// LevelForProbability maps a flood probability onto its risk band.
func LevelForProbability(p float64) domain.Level {
	switch {
	case p >= highThreshold:
		return domain.LevelHigh
	case p >= mediumThreshold:
		return domain.LevelMedium
	default:
		return domain.LevelLow
	}
}
