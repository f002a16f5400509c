package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPredictionLog_FeatureValue(t *testing.T) {
	log := PredictionLog{
		ModelID: "m-1",
		Score:   0.73,
		Features: map[string]any{
			"amount":  152.5,
			"age":     42,
			"country": "DE",
			"encoded": "17.25",
			"active":  true,
		},
	}

	tests := []struct {
		name    string
		feature string
		want    float64
		wantOK  bool
	}{
		{"float feature", "amount", 152.5, true},
		{"int feature", "age", 42, true},
		{"numeric string coerces", "encoded", 17.25, true},
		{"bool coerces", "active", 1, true},
		{"categorical skipped", "country", 0, false},
		{"missing feature", "nope", 0, false},
		{"prediction resolves to score", PredictionFeature, 0.73, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := log.FeatureValue(tt.feature)
			assert.Equal(t, tt.wantOK, ok)
			if ok {
				assert.InDelta(t, tt.want, got, 1e-9)
			}
		})
	}
}

func TestPredictionLog_GroupValue(t *testing.T) {
	log := PredictionLog{
		Features: map[string]any{
			"gender": "Female",
			"tier":   3,
		},
	}

	v, ok := log.GroupValue("gender")
	assert.True(t, ok)
	assert.Equal(t, "Female", v)

	v, ok = log.GroupValue("tier")
	assert.True(t, ok)
	assert.Equal(t, "3", v)

	_, ok = log.GroupValue("missing")
	assert.False(t, ok)
}

func TestPolicy_Validate(t *testing.T) {
	valid := Policy{
		Name:                     "default",
		MaxAllowedMRI:            80,
		MaxAllowedDisparity:      0.15,
		ApprovalRequiredAboveMRI: 60,
	}
	assert.NoError(t, valid.Validate())

	noName := valid
	noName.Name = ""
	assert.Error(t, noName.Validate())

	badMRI := valid
	badMRI.MaxAllowedMRI = 120
	assert.Error(t, badMRI.Validate())

	badDisparity := valid
	badDisparity.MaxAllowedDisparity = 1.5
	assert.Error(t, badDisparity.Validate())

	inverted := valid
	inverted.ApprovalRequiredAboveMRI = 90
	assert.Error(t, inverted.Validate())
}
