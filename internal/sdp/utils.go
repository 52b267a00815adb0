package sdp

import (
	"strconv"
	"strings"

	psdp "github.com/pion/sdp/v3"
	"github.com/pkg/errors"

	mediasoupclient "github.com/jiyeyuran/mediasoup-client-go"
)

const (
	attrMid             = "mid"
	attrRtpmap          = "rtpmap"
	attrFmtp            = "fmtp"
	attrRtcpFb          = "rtcp-fb"
	attrExtmap          = "extmap"
	attrSsrc            = "ssrc"
	attrSsrcGroup       = "ssrc-group"
	attrMsid            = "msid"
	attrSetup           = "setup"
	attrFingerprint     = "fingerprint"
	attrIceUfrag        = "ice-ufrag"
	attrIcePwd          = "ice-pwd"
	attrExtmapAllowMix  = "extmap-allow-mixed"
	attrSimulcast       = "simulcast"
	attrRid             = "rid"
	attrSctpPort        = "sctp-port"
	attrMaxMessageSize  = "max-message-size"
	encryptExtensionUri = "urn:ietf:params:rtp-hdrext:encrypt"
)

// Rtpmap is a parsed a=rtpmap line.
type Rtpmap struct {
	PayloadType uint8
	Codec       string
	ClockRate   uint32
	Channels    uint8
}

// SsrcLine is a parsed a=ssrc line.
type SsrcLine struct {
	Id        uint32
	Attribute string
	Value     string
}

// Mid returns the MID of the media description.
func Mid(media *psdp.MediaDescription) string {
	mid, _ := media.Attribute(attrMid)
	return mid
}

// ParseRtpmaps returns the a=rtpmap lines of the media description in order.
func ParseRtpmaps(media *psdp.MediaDescription) ([]Rtpmap, error) {
	var rtpmaps []Rtpmap

	for _, attr := range media.Attributes {
		if attr.Key != attrRtpmap {
			continue
		}
		pt, rest, ok := strings.Cut(attr.Value, " ")
		if !ok {
			return nil, errors.Errorf("invalid rtpmap %q", attr.Value)
		}
		payloadType, err := strconv.ParseUint(pt, 10, 8)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid rtpmap %q", attr.Value)
		}
		parts := strings.Split(rest, "/")
		if len(parts) < 2 {
			return nil, errors.Errorf("invalid rtpmap %q", attr.Value)
		}
		clockRate, err := strconv.ParseUint(parts[1], 10, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid rtpmap %q", attr.Value)
		}
		rtpmap := Rtpmap{
			PayloadType: uint8(payloadType),
			Codec:       parts[0],
			ClockRate:   uint32(clockRate),
		}
		if len(parts) > 2 {
			channels, err := strconv.ParseUint(parts[2], 10, 8)
			if err != nil {
				return nil, errors.Wrapf(err, "invalid rtpmap %q", attr.Value)
			}
			rtpmap.Channels = uint8(channels)
		}
		rtpmaps = append(rtpmaps, rtpmap)
	}

	return rtpmaps, nil
}

// ParseFmtps returns the a=fmtp configs of the media description keyed by
// payload type.
func ParseFmtps(media *psdp.MediaDescription) map[uint8]string {
	fmtps := map[uint8]string{}

	for _, attr := range media.Attributes {
		if attr.Key != attrFmtp {
			continue
		}
		pt, config, ok := strings.Cut(attr.Value, " ")
		if !ok {
			continue
		}
		payloadType, err := strconv.ParseUint(pt, 10, 8)
		if err != nil {
			continue
		}
		fmtps[uint8(payloadType)] = config
	}

	return fmtps
}

// ParseSsrcs returns the a=ssrc lines of the media description.
func ParseSsrcs(media *psdp.MediaDescription) []SsrcLine {
	var lines []SsrcLine

	for _, attr := range media.Attributes {
		if attr.Key != attrSsrc {
			continue
		}
		id, rest, _ := strings.Cut(attr.Value, " ")
		ssrc, err := strconv.ParseUint(id, 10, 32)
		if err != nil {
			continue
		}
		attribute, value, _ := strings.Cut(rest, ":")
		lines = append(lines, SsrcLine{Id: uint32(ssrc), Attribute: attribute, Value: value})
	}

	return lines
}

// ExtractRtpCapabilities extracts the RTP capabilities of the first audio
// and the first video media descriptions.
func ExtractRtpCapabilities(sd *psdp.SessionDescription) (*mediasoupclient.RtpCapabilities, error) {
	var (
		codecs           []*mediasoupclient.RtpCodecCapability
		headerExtensions []*mediasoupclient.RtpHeaderExtension
		gotAudio         bool
		gotVideo         bool
	)

	for _, media := range sd.MediaDescriptions {
		kind := mediasoupclient.MediaKind(media.MediaName.Media)

		switch kind {
		case mediasoupclient.MediaKindAudio:
			if gotAudio {
				continue
			}
			gotAudio = true
		case mediasoupclient.MediaKindVideo:
			if gotVideo {
				continue
			}
			gotVideo = true
		default:
			continue
		}

		rtpmaps, err := ParseRtpmaps(media)
		if err != nil {
			return nil, err
		}
		fmtps := ParseFmtps(media)
		codecsByPayload := map[uint8]*mediasoupclient.RtpCodecCapability{}

		for _, rtpmap := range rtpmaps {
			codec := &mediasoupclient.RtpCodecCapability{
				Kind:                 kind,
				MimeType:             string(kind) + "/" + rtpmap.Codec,
				PreferredPayloadType: rtpmap.PayloadType,
				ClockRate:            rtpmap.ClockRate,
				Channels:             rtpmap.Channels,
			}
			if config, ok := fmtps[rtpmap.PayloadType]; ok {
				if codec.Parameters, err = mediasoupclient.ParseFmtp(config); err != nil {
					return nil, errors.Wrapf(err, "invalid fmtp of payload type %d", rtpmap.PayloadType)
				}
			}
			codecsByPayload[rtpmap.PayloadType] = codec
			codecs = append(codecs, codec)
		}

		for _, attr := range media.Attributes {
			switch attr.Key {
			case attrRtcpFb:
				fields := strings.Fields(attr.Value)
				if len(fields) < 2 {
					continue
				}
				payloadType, err := strconv.ParseUint(fields[0], 10, 8)
				if err != nil {
					continue
				}
				codec := codecsByPayload[uint8(payloadType)]
				if codec == nil {
					continue
				}
				feedback := &mediasoupclient.RtcpFeedback{Type: fields[1]}
				if len(fields) > 2 {
					feedback.Parameter = strings.Join(fields[2:], " ")
				}
				codec.RtcpFeedback = append(codec.RtcpFeedback, feedback)

			case attrExtmap:
				id, uri, err := parseExtmap(attr.Value)
				if err != nil {
					return nil, err
				}
				if uri == encryptExtensionUri {
					continue
				}
				headerExtensions = append(headerExtensions, &mediasoupclient.RtpHeaderExtension{
					Kind:        kind,
					Uri:         uri,
					PreferredId: id,
				})
			}
		}
	}

	return &mediasoupclient.RtpCapabilities{
		Codecs:           codecs,
		HeaderExtensions: headerExtensions,
	}, nil
}

func parseExtmap(value string) (id uint8, uri string, err error) {
	fields := strings.Fields(value)
	if len(fields) < 2 {
		return 0, "", errors.Errorf("invalid extmap %q", value)
	}
	idStr, _, _ := strings.Cut(fields[0], "/")
	n, err := strconv.ParseUint(idStr, 10, 8)
	if err != nil {
		return 0, "", errors.Wrapf(err, "invalid extmap %q", value)
	}
	return uint8(n), fields[1], nil
}

// ExtractDtlsParameters extracts the DTLS parameters of the first active
// media description.
func ExtractDtlsParameters(sd *psdp.SessionDescription) (mediasoupclient.DtlsParameters, error) {
	_, sessionUfrag := sd.Attribute(attrIceUfrag)

	var active *psdp.MediaDescription

	for _, media := range sd.MediaDescriptions {
		if media.MediaName.Port.Value == 0 {
			continue
		}
		if _, ok := media.Attribute(attrIceUfrag); ok || sessionUfrag {
			active = media
			break
		}
	}
	if active == nil {
		return mediasoupclient.DtlsParameters{}, errors.New("no active media section found")
	}

	fingerprint, ok := active.Attribute(attrFingerprint)
	if !ok {
		if fingerprint, ok = sd.Attribute(attrFingerprint); !ok {
			return mediasoupclient.DtlsParameters{}, errors.New("no fingerprint found")
		}
	}
	algorithm, value, ok := strings.Cut(fingerprint, " ")
	if !ok {
		return mediasoupclient.DtlsParameters{}, errors.Errorf("invalid fingerprint %q", fingerprint)
	}

	role := mediasoupclient.DtlsRoleAuto

	if setup, _ := active.Attribute(attrSetup); setup == "active" {
		role = mediasoupclient.DtlsRoleClient
	} else if setup == "passive" {
		role = mediasoupclient.DtlsRoleServer
	}

	return mediasoupclient.DtlsParameters{
		Role: role,
		Fingerprints: []mediasoupclient.DtlsFingerprint{
			{Algorithm: algorithm, Value: value},
		},
	}, nil
}

// GetCname returns the cname of the first a=ssrc cname line.
func GetCname(media *psdp.MediaDescription) string {
	for _, line := range ParseSsrcs(media) {
		if line.Attribute == "cname" {
			return line.Value
		}
	}
	return ""
}

// GetRtpEncodings builds one encoding per media SSRC of the media
// description, pairing RTX SSRCs through FID groups.
func GetRtpEncodings(media *psdp.MediaDescription) ([]*mediasoupclient.RtpEncodingParameters, error) {
	var ssrcs []uint32
	seen := map[uint32]bool{}

	for _, line := range ParseSsrcs(media) {
		if !seen[line.Id] {
			seen[line.Id] = true
			ssrcs = append(ssrcs, line.Id)
		}
	}
	if len(ssrcs) == 0 {
		return nil, errors.New("no a=ssrc lines found")
	}

	rtxSsrcs := map[uint32]uint32{}
	isRtx := map[uint32]bool{}

	for _, attr := range media.Attributes {
		if attr.Key != attrSsrcGroup {
			continue
		}
		fields := strings.Fields(attr.Value)
		if len(fields) != 3 || fields[0] != "FID" {
			continue
		}
		ssrc, err1 := strconv.ParseUint(fields[1], 10, 32)
		rtxSsrc, err2 := strconv.ParseUint(fields[2], 10, 32)
		if err1 != nil || err2 != nil || !seen[uint32(ssrc)] {
			continue
		}
		rtxSsrcs[uint32(ssrc)] = uint32(rtxSsrc)
		isRtx[uint32(rtxSsrc)] = true
	}

	var encodings []*mediasoupclient.RtpEncodingParameters

	for _, ssrc := range ssrcs {
		if isRtx[ssrc] {
			continue
		}
		encoding := &mediasoupclient.RtpEncodingParameters{Ssrc: ssrc}
		if rtxSsrc, ok := rtxSsrcs[ssrc]; ok {
			encoding.Rtx = &mediasoupclient.RtpEncodingRtx{Ssrc: rtxSsrc}
		}
		encodings = append(encodings, encoding)
	}

	return encodings, nil
}

// ApplyCodecParameters sets the opus "stereo" parameter of the answer media
// description from the "sprop-stereo" parameter of the offered codec.
func ApplyCodecParameters(offerRtpParameters *mediasoupclient.RtpParameters, answerMedia *psdp.MediaDescription) error {
	rtpmaps, err := ParseRtpmaps(answerMedia)
	if err != nil {
		return err
	}
	fmtps := ParseFmtps(answerMedia)

	for _, codec := range offerRtpParameters.Codecs {
		if strings.ToLower(codec.MimeType) != "audio/opus" {
			continue
		}
		found := false
		for _, rtpmap := range rtpmaps {
			if rtpmap.PayloadType == codec.PayloadType {
				found = true
				break
			}
		}
		if !found {
			continue
		}

		parameters, err := mediasoupclient.ParseFmtp(fmtps[codec.PayloadType])
		if err != nil {
			return errors.Wrapf(err, "invalid fmtp of payload type %d", codec.PayloadType)
		}
		parameters.Stereo = codec.Parameters.SpropStereo

		if config := parameters.FmtpString(); len(config) > 0 {
			setFmtp(answerMedia, codec.PayloadType, config)
		}
	}

	return nil
}

func setFmtp(media *psdp.MediaDescription, payloadType uint8, config string) {
	prefix := strconv.Itoa(int(payloadType)) + " "
	value := prefix + config

	for i, attr := range media.Attributes {
		if attr.Key == attrFmtp && strings.HasPrefix(attr.Value, prefix) {
			media.Attributes[i].Value = value
			return
		}
	}
	media.Attributes = append(media.Attributes, psdp.NewAttribute(attrFmtp, value))
}
