// Package h264 implements the profile-level-id rules of RFC 6184 that are
// needed to match and answer H264 codecs during RTP capability negotiation.
package h264

import (
	"errors"
	"fmt"
	"strconv"
)

// Profile is an H264 profile.
type Profile uint8

const (
	ProfileConstrainedBaseline Profile = iota + 1
	ProfileBaseline
	ProfileMain
	ProfileConstrainedHigh
	ProfileHigh
	ProfilePredictiveHigh444
)

// Level is an H264 level. All values are ten times the level number, except
// level 1b which is special.
type Level uint8

const (
	Level1b  Level = 0
	Level1   Level = 10
	Level1_1 Level = 11
	Level1_2 Level = 12
	Level1_3 Level = 13
	Level2   Level = 20
	Level2_1 Level = 21
	Level2_2 Level = 22
	Level3   Level = 30
	Level3_1 Level = 31
	Level3_2 Level = 32
	Level4   Level = 40
	Level4_1 Level = 41
	Level4_2 Level = 42
	Level5   Level = 50
	Level5_1 Level = 51
	Level5_2 Level = 52
)

var (
	ErrInvalidLocalProfileLevelId  = errors.New("invalid local profile-level-id")
	ErrInvalidRemoteProfileLevelId = errors.New("invalid remote profile-level-id")
	ErrProfileMismatch             = errors.New("H264 profile mismatch")
)

// For level_idc=11 and profile_idc=0x42, 0x4D, or 0x58, the constraint set3
// flag specifies if level 1b or level 1.1 is used.
const constraintSet3Flag uint8 = 0x10

// DefaultProfileLevelId is used when a codec carries no profile-level-id.
// RFC 6184 says Baseline level 1, libwebrtc uses ConstrainedBaseline 3.1 for
// compatibility with old endpoints, and so do we.
var DefaultProfileLevelId = ProfileLevelId{
	Profile: ProfileConstrainedBaseline,
	Level:   Level3_1,
}

// profilePattern matches profile_idc and the profile_iop byte. Bits set in
// ignore may take any value.
type profilePattern struct {
	idc     uint8
	ignore  uint8
	value   uint8
	profile Profile
}

func (p profilePattern) match(idc, iop uint8) bool {
	return p.idc == idc && iop&^p.ignore == p.value
}

// https://tools.ietf.org/html/rfc6184#section-8.1
var profilePatterns = []profilePattern{
	{idc: 0x42, ignore: 0b10110000, value: 0b01000000, profile: ProfileConstrainedBaseline}, // x1xx0000
	{idc: 0x4d, ignore: 0b01110000, value: 0b10000000, profile: ProfileConstrainedBaseline}, // 1xxx0000
	{idc: 0x58, ignore: 0b00110000, value: 0b11000000, profile: ProfileConstrainedBaseline}, // 11xx0000
	{idc: 0x42, ignore: 0b10110000, value: 0b00000000, profile: ProfileBaseline},            // x0xx0000
	{idc: 0x58, ignore: 0b00110000, value: 0b10000000, profile: ProfileBaseline},            // 10xx0000
	{idc: 0x4d, ignore: 0b01010000, value: 0b00000000, profile: ProfileMain},                // 0x0x0000
	{idc: 0x64, ignore: 0b00000000, value: 0b00000000, profile: ProfileHigh},                // 00000000
	{idc: 0x64, ignore: 0b00000000, value: 0b00001100, profile: ProfileConstrainedHigh},     // 00001100
	{idc: 0xf4, ignore: 0b00000000, value: 0b00000000, profile: ProfilePredictiveHigh444},   // 00000000
}

var profilePrefixes = map[Profile]string{
	ProfileConstrainedBaseline: "42e0",
	ProfileBaseline:            "4200",
	ProfileMain:                "4d00",
	ProfileConstrainedHigh:     "640c",
	ProfileHigh:                "6400",
	ProfilePredictiveHigh444:   "f400",
}

var level1bStrings = map[Profile]string{
	ProfileConstrainedBaseline: "42f00b",
	ProfileBaseline:            "42100b",
	ProfileMain:                "4d100b",
}

// ProfileLevelId is a parsed profile-level-id.
type ProfileLevelId struct {
	Profile Profile
	Level   Level
}

// NewProfileLevelId returns a ProfileLevelId with the given profile and level.
func NewProfileLevelId(profile Profile, level Level) ProfileLevelId {
	return ProfileLevelId{Profile: profile, Level: level}
}

// String returns the canonical representation as three lowercase hex bytes,
// or an empty string if the combination cannot be represented.
func (p ProfileLevelId) String() string {
	if p.Level == Level1b {
		return level1bStrings[p.Profile]
	}
	prefix, ok := profilePrefixes[p.Profile]
	if !ok {
		return ""
	}
	return fmt.Sprintf("%s%02x", prefix, uint8(p.Level))
}

func validLevel(level uint8) bool {
	switch Level(level) {
	case Level1, Level1_1, Level1_2, Level1_3, Level2, Level2_1, Level2_2,
		Level3, Level3_1, Level3_2, Level4, Level4_1, Level4_2,
		Level5, Level5_1, Level5_2:
		return true
	}
	return false
}

// ParseProfileLevelId parses a profile-level-id given as a string of three
// hex bytes. It returns nil if the string is not a recognized H264 profile
// level id.
func ParseProfileLevelId(str string) *ProfileLevelId {
	if len(str) != 6 {
		return nil
	}
	numeric, err := strconv.ParseUint(str, 16, 32)
	if err != nil || numeric == 0 {
		return nil
	}
	levelIdc := uint8(numeric)
	profileIop := uint8(numeric >> 8)
	profileIdc := uint8(numeric >> 16)

	if !validLevel(levelIdc) {
		return nil
	}
	level := Level(levelIdc)
	if level == Level1_1 && profileIop&constraintSet3Flag != 0 {
		level = Level1b
	}

	for _, pattern := range profilePatterns {
		if pattern.match(profileIdc, profileIop) {
			return &ProfileLevelId{Profile: pattern.profile, Level: level}
		}
	}

	return nil
}

// ParseSdpProfileLevelId is like ParseProfileLevelId but returns the default
// profile level id for an empty string.
func ParseSdpProfileLevelId(str string) *ProfileLevelId {
	if len(str) == 0 {
		def := DefaultProfileLevelId
		return &def
	}
	return ParseProfileLevelId(str)
}

// IsSameProfile reports whether both values describe the same H264 profile.
func IsSameProfile(a, b string) bool {
	pa, pb := ParseSdpProfileLevelId(a), ParseSdpProfileLevelId(b)

	return pa != nil && pb != nil && pa.Profile == pb.Profile
}

// Parameters holds the H264 codec parameters relevant for negotiation.
type Parameters struct {
	PacketizationMode     uint8
	ProfileLevelId        string
	LevelAsymmetryAllowed uint8
}

// GenerateProfileLevelIdForAnswer returns the profile-level-id to put in an
// SDP answer given the local supported parameters and the remote offered
// ones. Both sides must have the same profile; only the level and
// level-asymmetry-allowed are negotiated. An empty string is returned when
// neither side carries a profile-level-id.
func GenerateProfileLevelIdForAnswer(local, remote Parameters) (string, error) {
	if len(local.ProfileLevelId) == 0 && len(remote.ProfileLevelId) == 0 {
		return "", nil
	}

	localId := ParseSdpProfileLevelId(local.ProfileLevelId)
	if localId == nil {
		return "", ErrInvalidLocalProfileLevelId
	}
	remoteId := ParseSdpProfileLevelId(remote.ProfileLevelId)
	if remoteId == nil {
		return "", ErrInvalidRemoteProfileLevelId
	}
	if localId.Profile != remoteId.Profile {
		return "", ErrProfileMismatch
	}

	// Without level asymmetry the answer must not upgrade the offered level.
	answerLevel := minLevel(localId.Level, remoteId.Level)
	if local.LevelAsymmetryAllowed == 1 && remote.LevelAsymmetryAllowed == 1 {
		answerLevel = localId.Level
	}

	return ProfileLevelId{Profile: localId.Profile, Level: answerLevel}.String(), nil
}

// isLessLevel compares levels taking level 1b into account.
func isLessLevel(a, b Level) bool {
	switch {
	case a == Level1b:
		return b != Level1 && b != Level1b
	case b == Level1b:
		return a != Level1
	default:
		return a < b
	}
}

func minLevel(a, b Level) Level {
	if isLessLevel(a, b) {
		return a
	}
	return b
}
