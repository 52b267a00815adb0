package mediasoupclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/jiyeyuran/mediasoup-client-go/h264"
)

// RtpCodecSpecificParameters is the Codec-specific parameters available for
// signaling. The parameters this package understands have typed fields; any
// other key is kept verbatim in Extra.
//
// H.264: PacketizationMode, ProfileLevelId, LevelAsymmetryAllowed.
// VP9: ProfileId.
// RTX: Apt.
// OPUS: SpropStereo, Stereo, Useinbandfec, Usedtx, Maxplaybackrate,
// Maxaveragebitrate, Ptime, Minptime.
// libwebrtc: XGoogleStartBitrate, XGoogleMaxBitrate, XGoogleMinBitrate.
type RtpCodecSpecificParameters struct {
	PacketizationMode     uint8
	ProfileLevelId        string
	LevelAsymmetryAllowed uint8
	ProfileId             uint8
	Apt                   uint8
	SpropStereo           uint8
	Stereo                uint8
	Useinbandfec          uint8
	Usedtx                uint8
	Maxplaybackrate       uint32
	Maxaveragebitrate     uint32
	Ptime                 uint32
	Minptime              uint32
	XGoogleStartBitrate   uint32
	XGoogleMaxBitrate     uint32
	XGoogleMinBitrate     uint32

	// Extra holds unknown parameters.
	Extra map[string]interface{}
}

type codecParameterField struct {
	name string
	bits int
	get  func(p *RtpCodecSpecificParameters) uint64
	set  func(p *RtpCodecSpecificParameters, v uint64)
}

var numericCodecParameters = []codecParameterField{
	{"packetization-mode", 8,
		func(p *RtpCodecSpecificParameters) uint64 { return uint64(p.PacketizationMode) },
		func(p *RtpCodecSpecificParameters, v uint64) { p.PacketizationMode = uint8(v) }},
	{"level-asymmetry-allowed", 8,
		func(p *RtpCodecSpecificParameters) uint64 { return uint64(p.LevelAsymmetryAllowed) },
		func(p *RtpCodecSpecificParameters, v uint64) { p.LevelAsymmetryAllowed = uint8(v) }},
	{"profile-id", 8,
		func(p *RtpCodecSpecificParameters) uint64 { return uint64(p.ProfileId) },
		func(p *RtpCodecSpecificParameters, v uint64) { p.ProfileId = uint8(v) }},
	{"apt", 8,
		func(p *RtpCodecSpecificParameters) uint64 { return uint64(p.Apt) },
		func(p *RtpCodecSpecificParameters, v uint64) { p.Apt = uint8(v) }},
	{"sprop-stereo", 8,
		func(p *RtpCodecSpecificParameters) uint64 { return uint64(p.SpropStereo) },
		func(p *RtpCodecSpecificParameters, v uint64) { p.SpropStereo = uint8(v) }},
	{"stereo", 8,
		func(p *RtpCodecSpecificParameters) uint64 { return uint64(p.Stereo) },
		func(p *RtpCodecSpecificParameters, v uint64) { p.Stereo = uint8(v) }},
	{"useinbandfec", 8,
		func(p *RtpCodecSpecificParameters) uint64 { return uint64(p.Useinbandfec) },
		func(p *RtpCodecSpecificParameters, v uint64) { p.Useinbandfec = uint8(v) }},
	{"usedtx", 8,
		func(p *RtpCodecSpecificParameters) uint64 { return uint64(p.Usedtx) },
		func(p *RtpCodecSpecificParameters, v uint64) { p.Usedtx = uint8(v) }},
	{"maxplaybackrate", 32,
		func(p *RtpCodecSpecificParameters) uint64 { return uint64(p.Maxplaybackrate) },
		func(p *RtpCodecSpecificParameters, v uint64) { p.Maxplaybackrate = uint32(v) }},
	{"maxaveragebitrate", 32,
		func(p *RtpCodecSpecificParameters) uint64 { return uint64(p.Maxaveragebitrate) },
		func(p *RtpCodecSpecificParameters, v uint64) { p.Maxaveragebitrate = uint32(v) }},
	{"ptime", 32,
		func(p *RtpCodecSpecificParameters) uint64 { return uint64(p.Ptime) },
		func(p *RtpCodecSpecificParameters, v uint64) { p.Ptime = uint32(v) }},
	{"minptime", 32,
		func(p *RtpCodecSpecificParameters) uint64 { return uint64(p.Minptime) },
		func(p *RtpCodecSpecificParameters, v uint64) { p.Minptime = uint32(v) }},
	{"x-google-start-bitrate", 32,
		func(p *RtpCodecSpecificParameters) uint64 { return uint64(p.XGoogleStartBitrate) },
		func(p *RtpCodecSpecificParameters, v uint64) { p.XGoogleStartBitrate = uint32(v) }},
	{"x-google-max-bitrate", 32,
		func(p *RtpCodecSpecificParameters) uint64 { return uint64(p.XGoogleMaxBitrate) },
		func(p *RtpCodecSpecificParameters, v uint64) { p.XGoogleMaxBitrate = uint32(v) }},
	{"x-google-min-bitrate", 32,
		func(p *RtpCodecSpecificParameters) uint64 { return uint64(p.XGoogleMinBitrate) },
		func(p *RtpCodecSpecificParameters, v uint64) { p.XGoogleMinBitrate = uint32(v) }},
}

const profileLevelIdKey = "profile-level-id"

// ToMap returns the parameters as a map keyed by their SDP names. Zero values
// are omitted.
func (p RtpCodecSpecificParameters) ToMap() map[string]interface{} {
	m := make(map[string]interface{}, len(p.Extra)+4)

	for k, v := range p.Extra {
		m[k] = v
	}
	for _, field := range numericCodecParameters {
		if v := field.get(&p); v != 0 {
			m[field.name] = v
		}
	}
	if len(p.ProfileLevelId) > 0 {
		m[profileLevelIdKey] = p.ProfileLevelId
	}

	return m
}

// ParseCodecParameters builds parameters from a map keyed by SDP names.
// Numeric parameters accept numbers and numeric strings.
func ParseCodecParameters(m map[string]interface{}) (p RtpCodecSpecificParameters, err error) {
	err = p.setAll(m)
	return
}

func (p *RtpCodecSpecificParameters) setAll(m map[string]interface{}) error {
	*p = RtpCodecSpecificParameters{}

	for key, value := range m {
		if err := p.set(key, value); err != nil {
			return err
		}
	}
	return nil
}

func (p *RtpCodecSpecificParameters) set(key string, value interface{}) error {
	if key == profileLevelIdKey {
		switch v := value.(type) {
		case string:
			p.ProfileLevelId = v
		case json.Number:
			p.ProfileLevelId = v.String()
		default:
			p.ProfileLevelId = fmt.Sprint(v)
		}
		return nil
	}

	for _, field := range numericCodecParameters {
		if field.name != key {
			continue
		}
		v, err := parseUint(value, field.bits)
		if err != nil {
			return NewTypeError("invalid codec parameter %q: %v", key, err)
		}
		field.set(p, v)
		return nil
	}

	if p.Extra == nil {
		p.Extra = make(map[string]interface{})
	}
	p.Extra[key] = value

	return nil
}

func parseUint(value interface{}, bits int) (uint64, error) {
	var str string

	switch v := value.(type) {
	case json.Number:
		str = v.String()
	case string:
		str = strings.TrimSpace(v)
	case float64:
		if v < 0 || v != float64(uint64(v)) {
			return 0, fmt.Errorf("%v is not an unsigned integer", v)
		}
		str = strconv.FormatUint(uint64(v), 10)
	case int:
		str = strconv.Itoa(v)
	case int64:
		str = strconv.FormatInt(v, 10)
	case uint8:
		return uint64(v), nil
	case uint32:
		return uint64(v), nil
	case uint64:
		str = strconv.FormatUint(v, 10)
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("unexpected type %T", value)
	}

	return strconv.ParseUint(str, 10, bits)
}

func (p RtpCodecSpecificParameters) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.ToMap())
}

func (p *RtpCodecSpecificParameters) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*p = RtpCodecSpecificParameters{}
		return nil
	}
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var m map[string]interface{}
	if err := decoder.Decode(&m); err != nil {
		return err
	}

	return p.setAll(m)
}

// IsEmpty reports whether no parameter is set.
func (p RtpCodecSpecificParameters) IsEmpty() bool {
	return len(p.ToMap()) == 0
}

// Clone returns a deep copy of p.
func (p RtpCodecSpecificParameters) Clone() RtpCodecSpecificParameters {
	c := p
	if p.Extra != nil {
		c.Extra = make(map[string]interface{}, len(p.Extra))
		for k, v := range p.Extra {
			c.Extra[k] = v
		}
	}
	return c
}

func (p RtpCodecSpecificParameters) h264() h264.Parameters {
	return h264.Parameters{
		PacketizationMode:     p.PacketizationMode,
		ProfileLevelId:        p.ProfileLevelId,
		LevelAsymmetryAllowed: p.LevelAsymmetryAllowed,
	}
}

// Validate checks the known parameters of a codec with the given mime type.
func (p RtpCodecSpecificParameters) Validate(mimeType string) error {
	mimeType = strings.ToLower(mimeType)

	switch {
	case mimeType == "video/h264" || mimeType == "video/h265":
		if p.PacketizationMode > 1 {
			return NewTypeError("invalid packetization-mode %d", p.PacketizationMode)
		}
		if p.LevelAsymmetryAllowed > 1 {
			return NewTypeError("invalid level-asymmetry-allowed %d", p.LevelAsymmetryAllowed)
		}
		if mimeType == "video/h264" && len(p.ProfileLevelId) > 0 && h264.ParseProfileLevelId(p.ProfileLevelId) == nil {
			return NewTypeError("invalid profile-level-id %q", p.ProfileLevelId)
		}

	case isRtxMimeType(mimeType):
		if p.Apt == 0 {
			return NewTypeError("missing apt in RTX codec")
		}

	case mimeType == "audio/opus" || mimeType == "audio/multiopus":
		for name, flag := range map[string]uint8{
			"sprop-stereo": p.SpropStereo,
			"stereo":       p.Stereo,
			"useinbandfec": p.Useinbandfec,
			"usedtx":       p.Usedtx,
		} {
			if flag > 1 {
				return NewTypeError("invalid %s %d", name, flag)
			}
		}
	}

	return nil
}

// FmtpString renders the parameters as the value of an SDP a=fmtp line. Keys
// are sorted so the output is deterministic.
func (p RtpCodecSpecificParameters) FmtpString() string {
	m := p.ToMap()
	keys := make([]string, 0, len(m))

	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, m[k]))
	}

	return strings.Join(parts, ";")
}

// ParseFmtp parses the value of an SDP a=fmtp line. Integer values of
// unknown keys are kept as int64, the others as strings.
func ParseFmtp(config string) (RtpCodecSpecificParameters, error) {
	m := make(map[string]interface{})

	for _, part := range strings.Split(config, ";") {
		part = strings.TrimSpace(part)
		if len(part) == 0 {
			continue
		}
		key, value, found := strings.Cut(part, "=")
		key = strings.TrimSpace(key)
		if !found || len(key) == 0 {
			continue
		}
		value = strings.TrimSpace(value)

		if n, err := strconv.ParseInt(value, 10, 64); err == nil && key != profileLevelIdKey {
			m[key] = n
		} else {
			m[key] = value
		}
	}

	return ParseCodecParameters(m)
}
