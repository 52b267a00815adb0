package mediasoupclient

import (
	"strings"

	"github.com/jiyeyuran/mediasoup-client-go/h264"
)

const (
	rtpProbatorMid              = "probator"
	rtpProbatorSsrc             = 1234
	rtpProbatorCodecPayloadType = 127

	transportWideCcExtensionUri = "http://www.ietf.org/id/draft-holmer-rmcat-transport-wide-cc-extensions-01"
	absSendTimeExtensionUri     = "http://www.webrtc.org/experiments/rtp-hdrext/abs-send-time"
)

// ValidateRtpCapabilities validates RtpCapabilities. It may modify given data
// by adding missing fields with default values.
func ValidateRtpCapabilities(caps *RtpCapabilities) error {
	if caps == nil {
		return NewTypeError("caps is nil")
	}
	for _, codec := range caps.Codecs {
		if err := validateRtpCodecCapability(codec); err != nil {
			return err
		}
	}
	for _, ext := range caps.HeaderExtensions {
		if err := validateRtpHeaderExtension(ext); err != nil {
			return err
		}
	}
	return nil
}

func validateRtpCodecCapability(codec *RtpCodecCapability) error {
	if codec == nil {
		return NewTypeError("codec is nil")
	}
	mimeType := strings.ToLower(codec.MimeType)

	// mimeType is mandatory.
	if !strings.HasPrefix(mimeType, "audio/") && !strings.HasPrefix(mimeType, "video/") {
		return NewTypeError("invalid codec.mimeType %q", codec.MimeType)
	}

	codec.Kind = MediaKind(strings.Split(mimeType, "/")[0])

	// clockRate is mandatory.
	if codec.ClockRate == 0 {
		return NewTypeError("missing codec.clockRate")
	}

	// channels is optional. If unset, set it to 1 (just if audio).
	if codec.Kind == MediaKindAudio {
		if codec.Channels == 0 {
			codec.Channels = 1
		}
	} else {
		codec.Channels = 0
	}

	if err := codec.Parameters.Validate(mimeType); err != nil {
		return err
	}

	for _, fb := range codec.RtcpFeedback {
		if err := validateRtcpFeedback(fb); err != nil {
			return err
		}
	}

	return nil
}

func validateRtcpFeedback(fb *RtcpFeedback) error {
	if fb == nil || len(fb.Type) == 0 {
		return NewTypeError("missing fb.type")
	}
	return nil
}

func validateRtpHeaderExtension(ext *RtpHeaderExtension) error {
	if ext == nil {
		return NewTypeError("ext is nil")
	}
	if ext.Kind != MediaKindAudio && ext.Kind != MediaKindVideo {
		return NewTypeError("invalid ext.kind %q", ext.Kind)
	}

	// uri is mandatory.
	if len(ext.Uri) == 0 {
		return NewTypeError("missing ext.uri")
	}

	// preferredId is mandatory.
	if ext.PreferredId == 0 {
		return NewTypeError("missing ext.preferredId")
	}

	// direction is optional. If unset set it to sendrecv.
	if len(ext.Direction) == 0 {
		ext.Direction = MediaDirectionSendrecv
	}

	return nil
}

// ValidateRtpParameters validates RtpParameters. It may modify given data by
// adding missing fields with default values.
func ValidateRtpParameters(params *RtpParameters) error {
	if params == nil {
		return NewTypeError("params is nil")
	}
	for _, codec := range params.Codecs {
		if err := validateRtpCodecParameters(codec); err != nil {
			return err
		}
	}
	for _, ext := range params.HeaderExtensions {
		if err := validateRtpHeaderExtensionParameters(ext); err != nil {
			return err
		}
	}
	for _, encoding := range params.Encodings {
		if encoding == nil {
			return NewTypeError("encoding is nil")
		}
	}
	if params.Rtcp == nil {
		params.Rtcp = &RtcpParameters{}
	}
	// reducedSize is optional. If unset set it to true.
	if params.Rtcp.ReducedSize == nil {
		params.Rtcp.ReducedSize = ref(true)
	}

	return nil
}

func validateRtpCodecParameters(codec *RtpCodecParameters) error {
	if codec == nil {
		return NewTypeError("codec is nil")
	}
	mimeType := strings.ToLower(codec.MimeType)

	// mimeType is mandatory.
	if !strings.HasPrefix(mimeType, "audio/") && !strings.HasPrefix(mimeType, "video/") {
		return NewTypeError("invalid codec.mimeType %q", codec.MimeType)
	}

	// clockRate is mandatory.
	if codec.ClockRate == 0 {
		return NewTypeError("missing codec.clockRate")
	}

	kind := MediaKind(strings.Split(mimeType, "/")[0])

	// channels is optional. If unset, set it to 1 (just if audio).
	if kind == MediaKindAudio {
		if codec.Channels == 0 {
			codec.Channels = 1
		}
	} else {
		codec.Channels = 0
	}

	if err := codec.Parameters.Validate(mimeType); err != nil {
		return err
	}

	for _, fb := range codec.RtcpFeedback {
		if err := validateRtcpFeedback(fb); err != nil {
			return err
		}
	}

	return nil
}

func validateRtpHeaderExtensionParameters(ext *RtpHeaderExtensionParameters) error {
	if ext == nil {
		return NewTypeError("ext is nil")
	}
	// uri is mandatory.
	if len(ext.Uri) == 0 {
		return NewTypeError("missing ext.uri")
	}
	// id is mandatory.
	if ext.Id == 0 {
		return NewTypeError("missing ext.id")
	}
	return nil
}

// ValidateSctpCapabilities validates SctpCapabilities.
func ValidateSctpCapabilities(caps *SctpCapabilities) error {
	if caps == nil {
		return NewTypeError("caps is nil")
	}
	// OS is mandatory.
	if caps.NumStreams.OS == 0 {
		return NewTypeError("missing numStreams.OS")
	}
	// MIS is mandatory.
	if caps.NumStreams.MIS == 0 {
		return NewTypeError("missing numStreams.MIS")
	}
	return nil
}

// ValidateSctpStreamParameters validates SctpStreamParameters. It may modify
// given data by adding missing fields with default values.
func ValidateSctpStreamParameters(params *SctpStreamParameters) error {
	if params == nil {
		return NewTypeError("params is nil")
	}
	orderedGiven := params.Ordered != nil

	if !orderedGiven {
		params.Ordered = ref(true)
	}

	if params.MaxPacketLifeTime > 0 && params.MaxRetransmits > 0 {
		return NewTypeError("cannot provide both maxPacketLifeTime and maxRetransmits")
	}

	unreliable := params.MaxPacketLifeTime > 0 || params.MaxRetransmits > 0

	if orderedGiven && *params.Ordered && unreliable {
		return NewTypeError("cannot be ordered with maxPacketLifeTime or maxRetransmits")
	} else if !orderedGiven && unreliable {
		params.Ordered = ref(false)
	}

	return nil
}

// GetExtendedRtpCapabilities generates extended RTP capabilities for sending
// and receiving. The router (remote) codec order is kept.
func GetExtendedRtpCapabilities(localCaps, remoteCaps *RtpCapabilities) *ExtendedRtpCapabilities {
	extended := &ExtendedRtpCapabilities{
		Codecs:           []*ExtendedCodec{},
		HeaderExtensions: []*ExtendedHeaderExtension{},
	}

	// Match media codecs and keep the order preferred by remoteCaps.
	for _, remoteCodec := range remoteCaps.Codecs {
		if remoteCodec.isRtxCodec() {
			continue
		}

		var matchingLocalCodec *RtpCodecCapability

		for _, localCodec := range localCaps.Codecs {
			candidate := cloneCodecCapability(localCodec)

			if matchCodecs(viewOfCapability(candidate), viewOfCapability(remoteCodec), matchOptions{strict: true, modify: true}) {
				matchingLocalCodec = candidate
				break
			}
		}

		if matchingLocalCodec == nil {
			continue
		}

		extended.Codecs = append(extended.Codecs, &ExtendedCodec{
			Kind:              matchingLocalCodec.Kind,
			MimeType:          matchingLocalCodec.MimeType,
			ClockRate:         matchingLocalCodec.ClockRate,
			Channels:          matchingLocalCodec.Channels,
			LocalPayloadType:  matchingLocalCodec.PreferredPayloadType,
			RemotePayloadType: remoteCodec.PreferredPayloadType,
			LocalParameters:   matchingLocalCodec.Parameters,
			RemoteParameters:  remoteCodec.Parameters.Clone(),
			RtcpFeedback:      reduceRtcpFeedback(matchingLocalCodec.RtcpFeedback, remoteCodec.RtcpFeedback),
		})
	}

	// Match RTX codecs.
	for _, extendedCodec := range extended.Codecs {
		localRtx := findRtxCodec(localCaps.Codecs, extendedCodec.LocalPayloadType)
		remoteRtx := findRtxCodec(remoteCaps.Codecs, extendedCodec.RemotePayloadType)

		if localRtx != nil && remoteRtx != nil {
			extendedCodec.LocalRtxPayloadType = localRtx.PreferredPayloadType
			extendedCodec.RemoteRtxPayloadType = remoteRtx.PreferredPayloadType
		}
	}

	// Match header extensions.
	for _, remoteExt := range remoteCaps.HeaderExtensions {
		var matchingLocalExt *RtpHeaderExtension

		for _, localExt := range localCaps.HeaderExtensions {
			if localExt.Kind == remoteExt.Kind && localExt.Uri == remoteExt.Uri {
				matchingLocalExt = localExt
				break
			}
		}

		if matchingLocalExt == nil {
			continue
		}

		extended.HeaderExtensions = append(extended.HeaderExtensions, &ExtendedHeaderExtension{
			Kind:      remoteExt.Kind,
			Uri:       remoteExt.Uri,
			SendId:    matchingLocalExt.PreferredId,
			RecvId:    remoteExt.PreferredId,
			Encrypt:   matchingLocalExt.PreferredEncrypt,
			Direction: mirrorDirection(remoteExt.Direction),
		})
	}

	return extended
}

// mirrorDirection turns the direction of the router into the direction of
// the local endpoint.
func mirrorDirection(direction MediaDirection) MediaDirection {
	switch direction {
	case MediaDirectionRecvonly:
		return MediaDirectionSendonly
	case MediaDirectionSendonly:
		return MediaDirectionRecvonly
	case MediaDirectionInactive:
		return MediaDirectionInactive
	default:
		return MediaDirectionSendrecv
	}
}

func findRtxCodec(codecs []*RtpCodecCapability, apt uint8) *RtpCodecCapability {
	for _, codec := range codecs {
		if codec.isRtxCodec() && codec.Parameters.Apt == apt {
			return codec
		}
	}
	return nil
}

// GetRecvRtpCapabilities generates RTP capabilities for receiving media based
// on the given extended RTP capabilities.
func GetRecvRtpCapabilities(extended *ExtendedRtpCapabilities) *RtpCapabilities {
	caps := &RtpCapabilities{
		Codecs:           []*RtpCodecCapability{},
		HeaderExtensions: []*RtpHeaderExtension{},
	}

	for _, extendedCodec := range extended.Codecs {
		caps.Codecs = append(caps.Codecs, &RtpCodecCapability{
			Kind:                 extendedCodec.Kind,
			MimeType:             extendedCodec.MimeType,
			PreferredPayloadType: extendedCodec.RemotePayloadType,
			ClockRate:            extendedCodec.ClockRate,
			Channels:             extendedCodec.Channels,
			Parameters:           extendedCodec.LocalParameters.Clone(),
			RtcpFeedback:         cloneRtcpFeedback(extendedCodec.RtcpFeedback),
		})

		if extendedCodec.RemoteRtxPayloadType == 0 {
			continue
		}

		caps.Codecs = append(caps.Codecs, &RtpCodecCapability{
			Kind:                 extendedCodec.Kind,
			MimeType:             string(extendedCodec.Kind) + "/rtx",
			PreferredPayloadType: extendedCodec.RemoteRtxPayloadType,
			ClockRate:            extendedCodec.ClockRate,
			Parameters:           RtpCodecSpecificParameters{Apt: extendedCodec.RemotePayloadType},
			RtcpFeedback:         []*RtcpFeedback{},
		})
	}

	for _, extendedExt := range extended.HeaderExtensions {
		// Ignore RTP extensions not valid for receiving.
		if extendedExt.Direction != MediaDirectionSendrecv && extendedExt.Direction != MediaDirectionRecvonly {
			continue
		}

		caps.HeaderExtensions = append(caps.HeaderExtensions, &RtpHeaderExtension{
			Kind:             extendedExt.Kind,
			Uri:              extendedExt.Uri,
			PreferredId:      extendedExt.RecvId,
			PreferredEncrypt: extendedExt.Encrypt,
			Direction:        extendedExt.Direction,
		})
	}

	return caps
}

// GetSendingRtpParameters generates RTP parameters of the given kind for
// sending media. Mid, encodings and rtcp fields are left empty.
func GetSendingRtpParameters(kind MediaKind, extended *ExtendedRtpCapabilities) *RtpParameters {
	return getSendingRtpParameters(kind, extended, false)
}

// GetSendingRemoteRtpParameters generates RTP parameters of the given kind
// suitable for the remote SDP answer.
func GetSendingRemoteRtpParameters(kind MediaKind, extended *ExtendedRtpCapabilities) *RtpParameters {
	params := getSendingRtpParameters(kind, extended, true)

	// Reduce codecs' RTCP feedback. Use Transport-CC if available, REMB otherwise.
	var drop func(fb *RtcpFeedback) bool

	switch {
	case hasHeaderExtension(params.HeaderExtensions, transportWideCcExtensionUri):
		drop = func(fb *RtcpFeedback) bool { return fb.Type == "goog-remb" }
	case hasHeaderExtension(params.HeaderExtensions, absSendTimeExtensionUri):
		drop = func(fb *RtcpFeedback) bool { return fb.Type == "transport-cc" }
	default:
		drop = func(fb *RtcpFeedback) bool { return fb.Type == "transport-cc" || fb.Type == "goog-remb" }
	}

	for _, codec := range params.Codecs {
		codec.RtcpFeedback = filterRtcpFeedback(codec.RtcpFeedback, func(fb *RtcpFeedback) bool {
			return !drop(fb)
		})
	}

	return params
}

func getSendingRtpParameters(kind MediaKind, extended *ExtendedRtpCapabilities, remote bool) *RtpParameters {
	params := &RtpParameters{
		Codecs:           []*RtpCodecParameters{},
		HeaderExtensions: []*RtpHeaderExtensionParameters{},
		Encodings:        []*RtpEncodingParameters{},
		Rtcp:             &RtcpParameters{},
	}

	for _, extendedCodec := range extended.Codecs {
		if extendedCodec.Kind != kind {
			continue
		}

		parameters := extendedCodec.LocalParameters
		if remote {
			parameters = extendedCodec.RemoteParameters
		}

		params.Codecs = append(params.Codecs, &RtpCodecParameters{
			MimeType:     extendedCodec.MimeType,
			PayloadType:  extendedCodec.LocalPayloadType,
			ClockRate:    extendedCodec.ClockRate,
			Channels:     extendedCodec.Channels,
			Parameters:   parameters.Clone(),
			RtcpFeedback: cloneRtcpFeedback(extendedCodec.RtcpFeedback),
		})

		// Add RTX codec.
		if extendedCodec.LocalRtxPayloadType > 0 {
			params.Codecs = append(params.Codecs, &RtpCodecParameters{
				MimeType:     string(extendedCodec.Kind) + "/rtx",
				PayloadType:  extendedCodec.LocalRtxPayloadType,
				ClockRate:    extendedCodec.ClockRate,
				Parameters:   RtpCodecSpecificParameters{Apt: extendedCodec.LocalPayloadType},
				RtcpFeedback: []*RtcpFeedback{},
			})
		}
	}

	for _, extendedExt := range extended.HeaderExtensions {
		// Ignore RTP extensions of a different kind and those not valid for sending.
		if extendedExt.Kind != kind ||
			(extendedExt.Direction != MediaDirectionSendrecv && extendedExt.Direction != MediaDirectionSendonly) {
			continue
		}

		params.HeaderExtensions = append(params.HeaderExtensions, &RtpHeaderExtensionParameters{
			Uri:     extendedExt.Uri,
			Id:      extendedExt.SendId,
			Encrypt: extendedExt.Encrypt,
		})
	}

	return params
}

// ReduceCodecs reduces given codecs by returning the codecs "compatible" with
// the given capability codec. If no capability codec is given, take the first
// one. The result also includes the RTX codec that follows it, if any.
//
// Given codecs must be generated by GetSendingRtpParameters or
// GetSendingRemoteRtpParameters.
func ReduceCodecs(codecs []*RtpCodecParameters, capCodec *RtpCodecCapability) ([]*RtpCodecParameters, error) {
	var filtered []*RtpCodecParameters

	takeWithRtx := func(idx int) {
		filtered = append(filtered, codecs[idx])
		if idx+1 < len(codecs) && codecs[idx+1].isRtxCodec() {
			filtered = append(filtered, codecs[idx+1])
		}
	}

	if capCodec == nil {
		if len(codecs) > 0 {
			takeWithRtx(0)
		}
	} else {
		for idx, codec := range codecs {
			if codec.isRtxCodec() {
				continue
			}
			if matchCodecs(viewOfParameters(codec), viewOfCapability(capCodec), matchOptions{strict: true}) {
				takeWithRtx(idx)
				break
			}
		}
	}

	if len(filtered) == 0 {
		return nil, NewUnsupportedError("no matching codec found")
	}

	return filtered, nil
}

// GenerateProbatorRtpParameters creates RTP parameters for a Consumer for the
// RTP probator.
func GenerateProbatorRtpParameters(videoRtpParameters *RtpParameters) (*RtpParameters, error) {
	if videoRtpParameters == nil || len(videoRtpParameters.Codecs) == 0 {
		return nil, NewTypeError("missing video codecs")
	}
	video := clone(videoRtpParameters)

	codec := video.Codecs[0]
	codec.PayloadType = rtpProbatorCodecPayloadType

	return &RtpParameters{
		Mid:              rtpProbatorMid,
		Codecs:           []*RtpCodecParameters{codec},
		HeaderExtensions: video.HeaderExtensions,
		Encodings:        []*RtpEncodingParameters{{Ssrc: rtpProbatorSsrc}},
		Rtcp:             &RtcpParameters{Cname: "probator"},
	}, nil
}

// CanSend reports whether media of the given kind can be sent based on the
// given extended RTP capabilities.
func CanSend(kind MediaKind, extended *ExtendedRtpCapabilities) bool {
	for _, codec := range extended.Codecs {
		if codec.Kind == kind {
			return true
		}
	}
	return false
}

// CanReceive reports whether the given RTP parameters can be received with
// the given extended RTP capabilities: the first media codec must be known by
// its router payload type.
func CanReceive(params *RtpParameters, extended *ExtendedRtpCapabilities) bool {
	if params == nil || len(params.Codecs) == 0 {
		return false
	}
	firstMediaCodec := params.Codecs[0]

	for _, codec := range extended.Codecs {
		if codec.RemotePayloadType == firstMediaCodec.PayloadType {
			return true
		}
	}
	return false
}

// GetSendParameters computes the RTP parameters to send media of the given
// kind from the local (engine) and router capabilities. The result carries
// the preferred codec only, plus its RTX codec.
func GetSendParameters(localCaps, routerCaps *RtpCapabilities, kind MediaKind) (*RtpParameters, error) {
	local, router := clone(localCaps), clone(routerCaps)

	if err := ValidateRtpCapabilities(local); err != nil {
		return nil, err
	}
	if err := ValidateRtpCapabilities(router); err != nil {
		return nil, err
	}

	extended := GetExtendedRtpCapabilities(local, router)

	if !CanSend(kind, extended) {
		return nil, NewUnsupportedError("cannot send %s", kind)
	}

	params := GetSendingRtpParameters(kind, extended)

	codecs, err := ReduceCodecs(params.Codecs, nil)
	if err != nil {
		return nil, err
	}
	params.Codecs = codecs

	return params, nil
}

// GetReceiveParameters checks that every codec of the parameters of a router
// side consumer is declared (payload type, mime type, clock rate) in the
// device receive capabilities, and drops the header extensions the device
// does not declare.
func GetReceiveParameters(routerParams *RtpParameters, recvCaps *RtpCapabilities) (*RtpParameters, error) {
	if routerParams == nil || len(routerParams.Codecs) == 0 {
		return nil, NewUnsupportedError("no codecs in RTP parameters")
	}
	params := clone(routerParams)

	mediaCodecs := 0
	codecs := params.Codecs[:0]

	for _, codec := range params.Codecs {
		var declared bool

		for _, capCodec := range recvCaps.Codecs {
			if capCodec.PreferredPayloadType == codec.PayloadType &&
				strings.EqualFold(capCodec.MimeType, codec.MimeType) &&
				capCodec.ClockRate == codec.ClockRate {
				declared = true
				break
			}
		}

		switch {
		case declared:
			codecs = append(codecs, codec)
			if !codec.isRtxCodec() {
				mediaCodecs++
			}
		case !codec.isRtxCodec():
			return nil, NewUnsupportedError("codec %s with payload type %d not supported", codec.MimeType, codec.PayloadType)
		}
	}
	if mediaCodecs == 0 {
		return nil, NewUnsupportedError("no media codec in RTP parameters")
	}
	params.Codecs = codecs

	exts := params.HeaderExtensions[:0]
	for _, ext := range params.HeaderExtensions {
		for _, capExt := range recvCaps.HeaderExtensions {
			if capExt.Uri == ext.Uri && capExt.PreferredId == ext.Id {
				exts = append(exts, ext)
				break
			}
		}
	}
	params.HeaderExtensions = exts

	return params, nil
}

type matchOptions struct {
	strict bool
	modify bool
}

// codecView exposes the fields codec matching looks at, shared by
// RtpCodecCapability and RtpCodecParameters.
type codecView struct {
	mimeType   string
	clockRate  uint32
	channels   uint8
	parameters *RtpCodecSpecificParameters
}

func viewOfCapability(codec *RtpCodecCapability) codecView {
	return codecView{codec.MimeType, codec.ClockRate, codec.Channels, &codec.Parameters}
}

func viewOfParameters(codec *RtpCodecParameters) codecView {
	return codecView{codec.MimeType, codec.ClockRate, codec.Channels, &codec.Parameters}
}

func matchCodecs(aCodec, bCodec codecView, options matchOptions) bool {
	aMimeType := strings.ToLower(aCodec.mimeType)
	bMimeType := strings.ToLower(bCodec.mimeType)

	if aMimeType != bMimeType {
		return false
	}
	if aCodec.clockRate != bCodec.clockRate {
		return false
	}
	if aCodec.channels != bCodec.channels {
		return false
	}

	aParameters, bParameters := aCodec.parameters, bCodec.parameters

	switch aMimeType {
	case "video/h264":
		if aParameters.PacketizationMode != bParameters.PacketizationMode {
			return false
		}
		if !options.strict {
			break
		}
		if !h264.IsSameProfile(aParameters.ProfileLevelId, bParameters.ProfileLevelId) {
			return false
		}
		selectedProfileLevelId, err := h264.GenerateProfileLevelIdForAnswer(aParameters.h264(), bParameters.h264())
		if err != nil {
			return false
		}
		if options.modify {
			aParameters.ProfileLevelId = selectedProfileLevelId
		}

	case "video/vp9":
		if options.strict && aParameters.ProfileId != bParameters.ProfileId {
			return false
		}
	}

	return true
}

func reduceRtcpFeedback(aFeedback, bFeedback []*RtcpFeedback) []*RtcpFeedback {
	reduced := []*RtcpFeedback{}

	for _, aFb := range aFeedback {
		for _, bFb := range bFeedback {
			if aFb.Type == bFb.Type && aFb.Parameter == bFb.Parameter {
				reduced = append(reduced, &RtcpFeedback{Type: bFb.Type, Parameter: bFb.Parameter})
				break
			}
		}
	}

	return reduced
}

func hasHeaderExtension(exts []*RtpHeaderExtensionParameters, uri string) bool {
	for _, ext := range exts {
		if ext.Uri == uri {
			return true
		}
	}
	return false
}

func filterRtcpFeedback(arr []*RtcpFeedback, cond func(*RtcpFeedback) bool) []*RtcpFeedback {
	result := []*RtcpFeedback{}

	for _, x := range arr {
		if cond(x) {
			result = append(result, x)
		}
	}

	return result
}

func cloneRtcpFeedback(arr []*RtcpFeedback) []*RtcpFeedback {
	result := make([]*RtcpFeedback, 0, len(arr))

	for _, fb := range arr {
		result = append(result, &RtcpFeedback{Type: fb.Type, Parameter: fb.Parameter})
	}

	return result
}

func cloneCodecCapability(codec *RtpCodecCapability) *RtpCodecCapability {
	c := *codec
	c.Parameters = codec.Parameters.Clone()
	c.RtcpFeedback = cloneRtcpFeedback(codec.RtcpFeedback)
	return &c
}
