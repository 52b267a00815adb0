package mediasoupclient

import (
	"regexp"
	"strconv"
)

var scalabilityModeRegex = regexp.MustCompile(`^[LS]([1-9]\d{0,1})T([1-9]\d{0,1})(_KEY)?`)

// ScalabilityMode is the parsed form of a webrtc-svc scalability mode such as
// "L3T3_KEY".
type ScalabilityMode struct {
	SpatialLayers  int  `json:"spatialLayers,omitempty"`
	TemporalLayers int  `json:"temporalLayers,omitempty"`
	Ksvc           bool `json:"ksvc,omitempty"`
}

// parseScalabilityMode returns one spatial and one temporal layer for an
// empty or malformed mode.
func parseScalabilityMode(scalabilityMode string) ScalabilityMode {
	match := scalabilityModeRegex.FindStringSubmatch(scalabilityMode)
	if len(match) != 4 {
		return ScalabilityMode{SpatialLayers: 1, TemporalLayers: 1}
	}
	spatialLayers, _ := strconv.Atoi(match[1])
	temporalLayers, _ := strconv.Atoi(match[2])

	return ScalabilityMode{
		SpatialLayers:  spatialLayers,
		TemporalLayers: temporalLayers,
		Ksvc:           len(match[3]) > 0,
	}
}

// ParseScalabilityMode parses a scalability mode string.
func ParseScalabilityMode(scalabilityMode string) ScalabilityMode {
	return parseScalabilityMode(scalabilityMode)
}
