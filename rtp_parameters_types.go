package mediasoupclient

import (
	"strings"
)

// RtpCapabilities define what an endpoint (the router or the local media
// engine) can receive at media level.
type RtpCapabilities struct {
	// Codecs is the supported media and RTX codecs.
	Codecs []*RtpCodecCapability `json:"codecs,omitempty"`

	// HeaderExtensions is the supported RTP header extensions.
	HeaderExtensions []*RtpHeaderExtension `json:"headerExtensions,omitempty"`
}

// Media kind ("audio" or "video").
type MediaKind string

const (
	MediaKindAudio MediaKind = "audio"
	MediaKindVideo MediaKind = "video"
)

// RtpCodecCapability provides information on the capabilities of a codec
// within the RTP capabilities.
//
// Exactly one RtpCodecCapability will be present for each supported
// combination of parameters that requires a distinct value of
// preferredPayloadType. For example
//
//   - Multiple H264 codecs, each with their own distinct 'packetization-mode' and
//     'profile-level-id' values.
//   - Multiple VP9 codecs, each with their own distinct 'profile-id' value.
type RtpCodecCapability struct {
	// Kind is the media kind.
	Kind MediaKind `json:"kind"`

	// MimeType is the codec MIME media type/subtype (e.g. 'audio/opus', 'video/VP8').
	MimeType string `json:"mimeType"`

	// PreferredPayloadType is the preferred RTP payload type.
	PreferredPayloadType uint8 `json:"preferredPayloadType"`

	// ClockRate is the codec clock rate expressed in Hertz.
	ClockRate uint32 `json:"clockRate"`

	// Channels is the number of channels supported (e.g. 2 for stereo). Just
	// for audio. Default 1.
	Channels uint8 `json:"channels,omitempty"`

	// Parameters is the codec specific parameters. Some parameters (such as
	// 'packetization-mode' and 'profile-level-id' in H264 or 'profile-id' in
	// VP9) are critical for codec matching.
	Parameters RtpCodecSpecificParameters `json:"parameters"`

	// RtcpFeedback is the transport layer and codec-specific feedback messages for this codec.
	RtcpFeedback []*RtcpFeedback `json:"rtcpFeedback,omitempty"`
}

func (r RtpCodecCapability) isRtxCodec() bool {
	return isRtxMimeType(r.MimeType)
}

func isRtxMimeType(mimeType string) bool {
	return strings.HasSuffix(strings.ToLower(mimeType), "/rtx")
}

// MediaDirection is the direction of a RTP header extension or media section.
type MediaDirection string

const (
	MediaDirectionSendrecv MediaDirection = "sendrecv"
	MediaDirectionSendonly MediaDirection = "sendonly"
	MediaDirectionRecvonly MediaDirection = "recvonly"
	MediaDirectionInactive MediaDirection = "inactive"
)

// RtpHeaderExtension provides information relating to supported header
// extensions.
type RtpHeaderExtension struct {
	// Kind is media kind.
	Kind MediaKind `json:"kind"`

	// URI of the RTP header extension, as defined in RFC 5285.
	Uri string `json:"uri"`

	// PreferredId is the preferred numeric identifier that goes in the RTP packet.
	// Must be unique.
	PreferredId uint8 `json:"preferredId"`

	// PreferredEncrypt if true, it is preferred that the value in the header be
	// encrypted as per RFC 6904. Default false.
	PreferredEncrypt bool `json:"preferredEncrypt,omitempty"`

	// Direction if "sendrecv", the router supports sending and receiving this
	// RTP extension. "sendonly" means that it can send (but not receive) it.
	// "recvonly" means that it can receive (but not send) it.
	Direction MediaDirection `json:"direction,omitempty"`
}

// RtpParameters describe a media stream sent by a Producer or received by a
// Consumer.
//
// Producer parameters may include several encodings (simulcast), each with a
// ssrc or a rid. Consumer parameters always have a single encoding.
type RtpParameters struct {
	// MID RTP extension value as defined in the BUNDLE specification.
	Mid string `json:"mid,omitempty"`

	// Codecs defines media and RTX codecs in use.
	Codecs []*RtpCodecParameters `json:"codecs"`

	// HeaderExtensions is the RTP header extensions in use.
	HeaderExtensions []*RtpHeaderExtensionParameters `json:"headerExtensions,omitempty"`

	// Encodings is the transmitted RTP streams and their settings.
	Encodings []*RtpEncodingParameters `json:"encodings,omitempty"`

	// Rtcp is the parameters used for RTCP.
	Rtcp *RtcpParameters `json:"rtcp,omitempty"`
}

// RtpCodecParameters provides information on codec settings within the RTP parameters.
type RtpCodecParameters struct {
	// MimeType is the codec MIME media type/subtype (e.g. 'audio/opus', 'video/VP8').
	MimeType string `json:"mimeType"`

	// PayloadType is the value that goes in the RTP Payload Type Field. Must be unique.
	PayloadType uint8 `json:"payloadType"`

	// ClockRate is codec clock rate expressed in Hertz.
	ClockRate uint32 `json:"clockRate"`

	// Channels is the number of channels supported (e.g. 2 for stereo). Just
	// for audio. Default 1.
	Channels uint8 `json:"channels,omitempty"`

	// Parameters is Codec-specific parameters available for signaling.
	Parameters RtpCodecSpecificParameters `json:"parameters"`

	// RtcpFeedback is transport layer and codec-specific feedback messages for this codec.
	RtcpFeedback []*RtcpFeedback `json:"rtcpFeedback,omitempty"`
}

func (r RtpCodecParameters) isRtxCodec() bool {
	return isRtxMimeType(r.MimeType)
}

// RtcpFeedback provides information on RTCP feedback messages for a specific
// codec. Those messages can be transport layer feedback messages or
// codec-specific feedback messages.
type RtcpFeedback struct {
	// Type is RTCP feedback type.
	Type string `json:"type"`

	// Parameter is RTCP feedback parameter.
	Parameter string `json:"parameter,omitempty"`
}

// RtpEncodingParameters provides information relating to an encoding, which
// represents a media RTP stream and its associated RTX stream (if any).
type RtpEncodingParameters struct {
	// SSRC of media.
	Ssrc uint32 `json:"ssrc,omitempty"`

	// RID RTP extension value. Must be unique.
	Rid string `json:"rid,omitempty"`

	// CodecPayloadType is the codec payload type this encoding affects.
	// If unset, first media codec is chosen.
	CodecPayloadType *uint8 `json:"codecPayloadType,omitempty"`

	// RTX stream information. It must contain a numeric ssrc field indicating
	// the RTX SSRC.
	Rtx *RtpEncodingRtx `json:"rtx,omitempty"`

	// Dtx indicates whether discontinuous RTP transmission will be used.
	Dtx bool `json:"dtx,omitempty"`

	// ScalabilityMode defines spatial and temporal layers in the RTP stream (e.g. 'L1T3').
	// See webrtc-svc.
	ScalabilityMode string `json:"scalabilityMode,omitempty"`

	// Active tells whether the encoding is being sent. Default true.
	Active *bool `json:"active,omitempty"`

	// Others.
	ScaleResolutionDownBy float64 `json:"scaleResolutionDownBy,omitempty"`
	MaxBitrate            uint32  `json:"maxBitrate,omitempty"`
	MaxFramerate          float64 `json:"maxFramerate,omitempty"`
	AdaptivePtime         bool    `json:"adaptivePtime,omitempty"`
	Priority              string  `json:"priority,omitempty"`
	NetworkPriority       string  `json:"networkPriority,omitempty"`
}

// RtpEncodingRtx represents the associated RTX stream for RTP stream.
type RtpEncodingRtx struct {
	// SSRC of media.
	Ssrc uint32 `json:"ssrc"`
}

// RtpHeaderExtensionParameters defines a RTP header extension within the RTP
// parameters.
type RtpHeaderExtensionParameters struct {
	// URI of the RTP header extension, as defined in RFC 5285.
	Uri string `json:"uri"`

	// Id is the numeric identifier that goes in the RTP packet. Must be unique.
	Id uint8 `json:"id"`

	// Encrypt if true, the value in the header is encrypted as per RFC 6904. Default false.
	Encrypt bool `json:"encrypt,omitempty"`

	// Parameters is the configuration parameters for the header extension.
	Parameters H `json:"parameters,omitempty"`
}

// RtcpParameters provides information on RTCP settings within the RTP parameters.
type RtcpParameters struct {
	// Cname is the Canonical Name (CNAME) used by RTCP (e.g. in SDES messages).
	Cname string `json:"cname,omitempty"`

	// ReducedSize defines whether reduced size RTCP RFC 5506 is configured (if
	// true) or compound RTCP as specified in RFC 3550 (if false). Default true.
	ReducedSize *bool `json:"reducedSize,omitempty"`

	// Mux defines whether RTCP-mux is used. Default true.
	Mux *bool `json:"mux,omitempty"`
}

// ExtendedRtpCapabilities is the result of matching the local media engine
// capabilities with the router ones.
type ExtendedRtpCapabilities struct {
	Codecs           []*ExtendedCodec           `json:"codecs"`
	HeaderExtensions []*ExtendedHeaderExtension `json:"headerExtensions"`
}

// ExtendedCodec is a codec both sides support. Local values come from the
// media engine, remote values from the router.
type ExtendedCodec struct {
	Kind                 MediaKind                  `json:"kind"`
	MimeType             string                     `json:"mimeType"`
	ClockRate            uint32                     `json:"clockRate"`
	Channels             uint8                      `json:"channels,omitempty"`
	LocalPayloadType     uint8                      `json:"localPayloadType"`
	LocalRtxPayloadType  uint8                      `json:"localRtxPayloadType,omitempty"`
	RemotePayloadType    uint8                      `json:"remotePayloadType"`
	RemoteRtxPayloadType uint8                      `json:"remoteRtxPayloadType,omitempty"`
	LocalParameters      RtpCodecSpecificParameters `json:"localParameters"`
	RemoteParameters     RtpCodecSpecificParameters `json:"remoteParameters"`
	RtcpFeedback         []*RtcpFeedback            `json:"rtcpFeedback,omitempty"`
}

// ExtendedHeaderExtension is a header extension both sides support.
type ExtendedHeaderExtension struct {
	Kind      MediaKind      `json:"kind"`
	Uri       string         `json:"uri"`
	SendId    uint8          `json:"sendId"`
	RecvId    uint8          `json:"recvId"`
	Encrypt   bool           `json:"encrypt,omitempty"`
	Direction MediaDirection `json:"direction"`
}
