package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exoplanet-explorer/backend/api/domain"
)

func TestClassifyRules(t *testing.T) {
	c := NewClassifier()
	ctx := context.Background()

	tests := []struct {
		name     string
		features map[string]float64
		want     string
	}{
		{"long period is a false positive", map[string]float64{"period": 400, "radius": 2}, domain.LabelFalsePositive},
		{"giant radius is a false positive", map[string]float64{"period": 10, "radius": 15}, domain.LabelFalsePositive},
		{"compact short-period confirms", map[string]float64{"period": 12, "radius": 1.8}, domain.LabelConfirmed},
		{"everything else stays candidate", map[string]float64{"period": 120, "radius": 6}, domain.LabelCandidate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := c.Classify(ctx, ModelRandomForest, tt.features)
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.Prediction)
			assert.Equal(t, ModelRandomForest, result.ModelUsed)

			var total float64
			for _, p := range result.Probabilities {
				total += p
			}
			assert.InDelta(t, 1.0, total, 1e-9)
			assert.GreaterOrEqual(t, result.Probabilities[tt.want], result.Probabilities[domain.LabelCandidate])
		})
	}
}

func TestClassifyConfidenceBounds(t *testing.T) {
	c := NewClassifier()

	result, err := c.Classify(context.Background(), ModelNeuralNetwork, map[string]float64{"period": 500, "radius": 20})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, result.Confidence, 0.6)
	assert.LessOrEqual(t, result.Confidence, 1.0)
}

func TestClassifyDeterministic(t *testing.T) {
	c := NewClassifier()
	features := map[string]float64{"period": 12, "radius": 1.8, "depth": 0.002}

	first, err := c.Classify(context.Background(), ModelRandomForest, features)
	require.NoError(t, err)
	second, err := c.Classify(context.Background(), ModelRandomForest, features)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestClassifyRejectsUnknownModel(t *testing.T) {
	c := NewClassifier()

	_, err := c.Classify(context.Background(), "svm", map[string]float64{"period": 10})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported model type")

	assert.True(t, SupportedModel(ModelRandomForest))
	assert.True(t, SupportedModel(ModelNeuralNetwork))
	assert.False(t, SupportedModel("svm"))
}
