package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/exoplanet-explorer/backend/api/domain"
)

// Model types the classifier endpoints accept.
const (
	ModelRandomForest  = "random_forest"
	ModelNeuralNetwork = "neural_network"
)

var supportedModels = map[string]bool{
	ModelRandomForest:  true,
	ModelNeuralNetwork: true,
}

func SupportedModel(modelType string) bool {
	return supportedModels[modelType]
}

// Classifier is the mock exoplanet disposition model: a rule over orbital
// period and radius plus a feature-hash-derived confidence, deterministic
// for a given feature set.
type Classifier struct{}

func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify labels a candidate from its features.
//
// The rule mirrors known dispositions: very long periods or giant radii are
// false positives, compact short-period planets confirm, everything else
// stays a candidate.
func (c *Classifier) Classify(ctx context.Context, modelType string, features map[string]float64) (*domain.Classification, error) {
	if !SupportedModel(modelType) {
		return nil, fmt.Errorf("unsupported model type: %s", modelType)
	}

	base := 0.75 + float64(featureHash(features)%100)/400

	period := features["period"]
	radius := features["radius"]

	var prediction string
	var confidence float64
	switch {
	case period > 300 || radius > 10:
		prediction = domain.LabelFalsePositive
		confidence = base - 0.1
		if confidence < 0.6 {
			confidence = 0.6
		}
	case period > 1 && period < 50 && radius > 0.5 && radius < 4:
		prediction = domain.LabelConfirmed
		confidence = base
	default:
		prediction = domain.LabelCandidate
		confidence = base - 0.2
	}

	probabilities := map[string]float64{
		domain.LabelConfirmed:     (1 - confidence) / 2,
		domain.LabelCandidate:     (1 - confidence) / 2,
		domain.LabelFalsePositive: (1 - confidence) / 2,
	}
	probabilities[prediction] = confidence

	var total float64
	for _, p := range probabilities {
		total += p
	}
	for k := range probabilities {
		probabilities[k] /= total
	}

	return &domain.Classification{
		Prediction:    prediction,
		Confidence:    confidence,
		Probabilities: probabilities,
		ModelUsed:     modelType,
	}, nil
}

// featureHash digests the feature map in key order so equal inputs always
// hash equally.
func featureHash(features map[string]float64) uint64 {
	keys := make([]string, 0, len(features))
	for k := range features {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s=%g;", k, features[k])
	}

	var h uint64 = 14695981039346656037
	s := sb.String()
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= 1099511628211
	}
	return h
}
