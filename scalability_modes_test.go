package mediasoupclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseScalabilityMode(t *testing.T) {
	tests := []struct {
		input    string
		expected ScalabilityMode
	}{
		{"L1T3", ScalabilityMode{SpatialLayers: 1, TemporalLayers: 3}},
		{"L3T2_KEY", ScalabilityMode{SpatialLayers: 3, TemporalLayers: 2, Ksvc: true}},
		{"S2T3", ScalabilityMode{SpatialLayers: 2, TemporalLayers: 3}},
		{"foo", ScalabilityMode{SpatialLayers: 1, TemporalLayers: 1}},
		{"", ScalabilityMode{SpatialLayers: 1, TemporalLayers: 1}},
		{"S0T3", ScalabilityMode{SpatialLayers: 1, TemporalLayers: 1}},
		{"S1T0", ScalabilityMode{SpatialLayers: 1, TemporalLayers: 1}},
		{"L20T3", ScalabilityMode{SpatialLayers: 20, TemporalLayers: 3}},
		{"S200T3", ScalabilityMode{SpatialLayers: 1, TemporalLayers: 1}},
		{"L4T7_KEY_SHIFT", ScalabilityMode{SpatialLayers: 4, TemporalLayers: 7, Ksvc: true}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, ParseScalabilityMode(tt.input), tt.input)
	}
}
