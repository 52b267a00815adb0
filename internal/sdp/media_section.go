package sdp

import (
	"fmt"
	"strconv"
	"strings"

	psdp "github.com/pion/sdp/v3"
	"github.com/pkg/errors"

	mediasoupclient "github.com/jiyeyuran/mediasoup-client-go"
)

const (
	protoRtp  = "UDP/TLS/RTP/SAVPF"
	protoSctp = "UDP/DTLS/SCTP"
)

// mediaSection is a media description of the remote SDP. Answer sections
// mirror a local offer, offer sections are generated from consumer RTP
// parameters.
type mediaSection struct {
	media   *psdp.MediaDescription
	isOffer bool
}

func newMediaSection(isOffer bool) *mediaSection {
	section := &mediaSection{
		media:   &psdp.MediaDescription{},
		isOffer: isOffer,
	}

	section.media.ConnectionInformation = &psdp.ConnectionInformation{
		NetworkType: "IN",
		AddressType: "IP4",
		Address:     &psdp.Address{Address: "127.0.0.1"},
	}
	section.media.MediaName.Port = psdp.RangedPort{Value: 7}

	return section
}

// addTransport writes the ICE and DTLS attributes shared by all sections,
// after the media specific ones.
func (m *mediaSection) addTransport(params sessionParams) {
	if params.iceParameters != nil {
		m.setIceParameters(*params.iceParameters)
	}
	for _, candidate := range params.iceCandidates {
		m.media.Attributes = append(m.media.Attributes, psdp.NewAttribute("candidate", candidateValue(candidate)))
	}
	if len(params.iceCandidates) > 0 {
		m.media.Attributes = append(m.media.Attributes,
			psdp.NewPropertyAttribute("end-of-candidates"),
			psdp.NewAttribute("ice-options", "renomination"),
		)
	}
	if params.dtlsParameters != nil {
		m.setDtlsRole(params.dtlsParameters.Role)
	}
}

func candidateValue(candidate mediasoupclient.IceCandidate) string {
	value := fmt.Sprintf("%s 1 %s %d %s %d typ %s",
		candidate.Foundation,
		candidate.Protocol,
		candidate.Priority,
		candidate.CandidateAddress(),
		candidate.Port,
		candidate.Type,
	)
	if len(candidate.TcpType) > 0 {
		value += " tcptype " + candidate.TcpType
	}
	return value
}

func (m *mediaSection) mid() string {
	return Mid(m.media)
}

func (m *mediaSection) closed() bool {
	return m.media.MediaName.Port.Value == 0
}

func (m *mediaSection) setAttribute(key, value string) {
	for i, attr := range m.media.Attributes {
		if attr.Key == key {
			m.media.Attributes[i].Value = value
			return
		}
	}
	m.media.Attributes = append(m.media.Attributes, psdp.NewAttribute(key, value))
}

func (m *mediaSection) removeAttributes(keys ...string) {
	attributes := m.media.Attributes[:0]

	for _, attr := range m.media.Attributes {
		remove := false
		for _, key := range keys {
			if attr.Key == key {
				remove = true
				break
			}
		}
		if !remove {
			attributes = append(attributes, attr)
		}
	}
	m.media.Attributes = attributes
}

func (m *mediaSection) setIceParameters(iceParameters mediasoupclient.IceParameters) {
	m.setAttribute(attrIceUfrag, iceParameters.UsernameFragment)
	m.setAttribute(attrIcePwd, iceParameters.Password)
}

func (m *mediaSection) setDtlsRole(role mediasoupclient.DtlsRole) {
	// Offers always let the answerer choose.
	if m.isOffer {
		m.setAttribute(attrSetup, "actpass")
		return
	}

	switch role {
	case mediasoupclient.DtlsRoleClient:
		m.setAttribute(attrSetup, "active")
	case mediasoupclient.DtlsRoleServer:
		m.setAttribute(attrSetup, "passive")
	default:
		m.setAttribute(attrSetup, "actpass")
	}
}

func (m *mediaSection) setDirection(direction mediasoupclient.MediaDirection) {
	m.removeAttributes(
		string(mediasoupclient.MediaDirectionSendrecv),
		string(mediasoupclient.MediaDirectionSendonly),
		string(mediasoupclient.MediaDirectionRecvonly),
		string(mediasoupclient.MediaDirectionInactive),
	)
	m.media.Attributes = append(m.media.Attributes, psdp.NewPropertyAttribute(string(direction)))
}

// disable keeps the section in the BUNDLE but stops its media.
func (m *mediaSection) disable() {
	m.setDirection(mediasoupclient.MediaDirectionInactive)
	m.removeAttributes(attrExtmap, attrSsrc, attrSsrcGroup, attrSimulcast, attrRid)
}

// close rejects the section so it can be recycled.
func (m *mediaSection) close() {
	m.setDirection(mediasoupclient.MediaDirectionInactive)
	m.media.MediaName.Port = psdp.RangedPort{Value: 0}
	m.removeAttributes(attrExtmap, attrSsrc, attrSsrcGroup, attrSimulcast, attrRid, attrExtmapAllowMix)
}

func (m *mediaSection) clone() *mediaSection {
	media := *m.media
	media.MediaName.Protos = append([]string(nil), m.media.MediaName.Protos...)
	media.MediaName.Formats = append([]string(nil), m.media.MediaName.Formats...)
	media.Attributes = append([]psdp.Attribute(nil), m.media.Attributes...)
	if m.media.ConnectionInformation != nil {
		connection := *m.media.ConnectionInformation
		media.ConnectionInformation = &connection
	}

	return &mediaSection{media: &media, isOffer: m.isOffer}
}

func (m *mediaSection) addCodec(codec *mediasoupclient.RtpCodecParameters, parameters mediasoupclient.RtpCodecSpecificParameters) error {
	_, name, ok := strings.Cut(codec.MimeType, "/")
	if !ok || len(name) == 0 {
		return errors.Errorf("invalid codec mimeType %q", codec.MimeType)
	}
	pt := strconv.Itoa(int(codec.PayloadType))

	rtpmap := fmt.Sprintf("%s %s/%d", pt, name, codec.ClockRate)
	if codec.Channels > 1 {
		rtpmap += fmt.Sprintf("/%d", codec.Channels)
	}
	m.media.MediaName.Formats = append(m.media.MediaName.Formats, pt)
	m.media.Attributes = append(m.media.Attributes, psdp.NewAttribute(attrRtpmap, rtpmap))

	if config := parameters.FmtpString(); len(config) > 0 {
		m.media.Attributes = append(m.media.Attributes, psdp.NewAttribute(attrFmtp, pt+" "+config))
	}
	for _, fb := range codec.RtcpFeedback {
		value := pt + " " + fb.Type
		if len(fb.Parameter) > 0 {
			value += " " + fb.Parameter
		}
		m.media.Attributes = append(m.media.Attributes, psdp.NewAttribute(attrRtcpFb, value))
	}

	return nil
}

func (m *mediaSection) addExtmap(ext *mediasoupclient.RtpHeaderExtensionParameters) {
	m.media.Attributes = append(m.media.Attributes,
		psdp.NewAttribute(attrExtmap, fmt.Sprintf("%d %s", ext.Id, ext.Uri)))
}

type answerOptions struct {
	offerMedia          *psdp.MediaDescription
	offerRtpParameters  *mediasoupclient.RtpParameters
	answerRtpParameters *mediasoupclient.RtpParameters
	codecOptions        *mediasoupclient.ProducerCodecOptions
	extmapAllowMixed    bool
}

// newAnswerMediaSection answers a media description of the local offer.
func newAnswerMediaSection(params sessionParams, options answerOptions) (*mediaSection, error) {
	section := newMediaSection(false)
	offer := options.offerMedia

	section.media.MediaName.Media = offer.MediaName.Media
	section.media.MediaName.Protos = append([]string(nil), offer.MediaName.Protos...)
	section.media.Attributes = append(section.media.Attributes, psdp.NewAttribute(attrMid, Mid(offer)))

	switch offer.MediaName.Media {
	case string(mediasoupclient.MediaKindAudio), string(mediasoupclient.MediaKindVideo):
		section.setDirection(mediasoupclient.MediaDirectionRecvonly)

		if answer := options.answerRtpParameters; answer != nil {
			for _, codec := range answer.Codecs {
				parameters := codec.Parameters.Clone()
				applyCodecOptions(codec, &parameters, options.offerRtpParameters, options.codecOptions)

				if err := section.addCodec(codec, parameters); err != nil {
					return nil, err
				}
			}

			offered := map[string]bool{}
			for _, attr := range offer.Attributes {
				if attr.Key == attrExtmap {
					if _, uri, err := parseExtmap(attr.Value); err == nil {
						offered[uri] = true
					}
				}
			}
			for _, ext := range answer.HeaderExtensions {
				if offered[ext.Uri] {
					section.addExtmap(ext)
				}
			}
		}

		if _, ok := offer.Attribute(attrExtmapAllowMix); ok && options.extmapAllowMixed {
			section.media.Attributes = append(section.media.Attributes, psdp.NewPropertyAttribute(attrExtmapAllowMix))
		}

		if simulcast, ok := offer.Attribute(attrSimulcast); ok {
			if _, list, found := strings.Cut(simulcast, " "); found {
				section.setAttribute(attrSimulcast, "recv "+list)
			}
			for _, attr := range offer.Attributes {
				if attr.Key != attrRid {
					continue
				}
				fields := strings.Fields(attr.Value)
				if len(fields) >= 2 && fields[1] == "send" {
					section.media.Attributes = append(section.media.Attributes, psdp.NewAttribute(attrRid, fields[0]+" recv"))
				}
			}
		}

		section.media.Attributes = append(section.media.Attributes,
			psdp.NewPropertyAttribute("rtcp-mux"),
			psdp.NewPropertyAttribute("rtcp-rsize"),
		)

	case "application":
		if params.sctpParameters != nil {
			section.media.MediaName.Formats = []string{"webrtc-datachannel"}
			section.media.Attributes = append(section.media.Attributes,
				psdp.NewAttribute(attrSctpPort, strconv.Itoa(int(params.sctpParameters.Port))),
				psdp.NewAttribute(attrMaxMessageSize, strconv.FormatUint(uint64(params.sctpParameters.MaxMessageSize), 10)),
			)
		}

	default:
		return nil, errors.Errorf("unsupported media %q", offer.MediaName.Media)
	}

	section.addTransport(params)

	return section, nil
}

// applyCodecOptions applies the producer codec options to the answer codec
// parameters. Opus options are mirrored onto the offered codec.
func applyCodecOptions(
	codec *mediasoupclient.RtpCodecParameters,
	parameters *mediasoupclient.RtpCodecSpecificParameters,
	offerRtpParameters *mediasoupclient.RtpParameters,
	codecOptions *mediasoupclient.ProducerCodecOptions,
) {
	if codecOptions == nil || offerRtpParameters == nil {
		return
	}

	var offerCodec *mediasoupclient.RtpCodecParameters
	for _, c := range offerRtpParameters.Codecs {
		if c.PayloadType == codec.PayloadType {
			offerCodec = c
			break
		}
	}
	if offerCodec == nil {
		return
	}

	flag := func(b bool) uint8 {
		if b {
			return 1
		}
		return 0
	}

	switch strings.ToLower(codec.MimeType) {
	case "audio/opus":
		if codecOptions.OpusStereo != nil {
			offerCodec.Parameters.SpropStereo = flag(*codecOptions.OpusStereo)
			parameters.Stereo = flag(*codecOptions.OpusStereo)
		}
		if codecOptions.OpusFec != nil {
			offerCodec.Parameters.Useinbandfec = flag(*codecOptions.OpusFec)
			parameters.Useinbandfec = flag(*codecOptions.OpusFec)
		}
		if codecOptions.OpusDtx != nil {
			offerCodec.Parameters.Usedtx = flag(*codecOptions.OpusDtx)
			parameters.Usedtx = flag(*codecOptions.OpusDtx)
		}
		if codecOptions.OpusMaxPlaybackRate > 0 {
			parameters.Maxplaybackrate = codecOptions.OpusMaxPlaybackRate
		}
		if codecOptions.OpusMaxAverageBitrate > 0 {
			parameters.Maxaveragebitrate = codecOptions.OpusMaxAverageBitrate
		}
		if codecOptions.OpusPtime > 0 {
			offerCodec.Parameters.Ptime = codecOptions.OpusPtime
			parameters.Ptime = codecOptions.OpusPtime
		}

	case "video/vp8", "video/vp9", "video/h264", "video/h265", "video/av1":
		if codecOptions.VideoGoogleStartBitrate > 0 {
			parameters.XGoogleStartBitrate = codecOptions.VideoGoogleStartBitrate
		}
		if codecOptions.VideoGoogleMaxBitrate > 0 {
			parameters.XGoogleMaxBitrate = codecOptions.VideoGoogleMaxBitrate
		}
		if codecOptions.VideoGoogleMinBitrate > 0 {
			parameters.XGoogleMinBitrate = codecOptions.VideoGoogleMinBitrate
		}
	}
}

type offerOptions struct {
	mid                string
	kind               string
	offerRtpParameters *mediasoupclient.RtpParameters
	streamId           string
	trackId            string
}

// newOfferMediaSection offers a consumer to the local media engine.
func newOfferMediaSection(params sessionParams, options offerOptions) (*mediaSection, error) {
	section := newMediaSection(true)

	section.media.MediaName.Media = options.kind
	section.media.Attributes = append(section.media.Attributes, psdp.NewAttribute(attrMid, options.mid))

	switch options.kind {
	case string(mediasoupclient.MediaKindAudio), string(mediasoupclient.MediaKindVideo):
		section.media.MediaName.Protos = strings.Split(protoRtp, "/")
		section.setDirection(mediasoupclient.MediaDirectionSendonly)

		streamId := options.streamId
		if len(streamId) == 0 {
			streamId = "-"
		}
		section.media.Attributes = append(section.media.Attributes,
			psdp.NewAttribute(attrMsid, streamId+" "+options.trackId))

		offer := options.offerRtpParameters
		if offer == nil || len(offer.Encodings) == 0 {
			return nil, errors.New("missing offer RTP parameters")
		}

		for _, codec := range offer.Codecs {
			if err := section.addCodec(codec, codec.Parameters); err != nil {
				return nil, err
			}
		}
		for _, ext := range offer.HeaderExtensions {
			section.addExtmap(ext)
		}

		section.media.Attributes = append(section.media.Attributes,
			psdp.NewPropertyAttribute("rtcp-mux"),
			psdp.NewPropertyAttribute("rtcp-rsize"),
		)

		encoding := offer.Encodings[0]
		var cname string
		if offer.Rtcp != nil {
			cname = offer.Rtcp.Cname
		}
		if len(cname) > 0 {
			section.media.Attributes = append(section.media.Attributes,
				psdp.NewAttribute(attrSsrc, fmt.Sprintf("%d cname:%s", encoding.Ssrc, cname)))
		}
		if encoding.Rtx != nil && encoding.Rtx.Ssrc > 0 {
			if len(cname) > 0 {
				section.media.Attributes = append(section.media.Attributes,
					psdp.NewAttribute(attrSsrc, fmt.Sprintf("%d cname:%s", encoding.Rtx.Ssrc, cname)))
			}
			section.media.Attributes = append(section.media.Attributes,
				psdp.NewAttribute(attrSsrcGroup, fmt.Sprintf("FID %d %d", encoding.Ssrc, encoding.Rtx.Ssrc)))
		}

	case "application":
		section.media.MediaName.Protos = strings.Split(protoSctp, "/")
		if params.sctpParameters != nil {
			section.media.MediaName.Formats = []string{"webrtc-datachannel"}
			section.media.Attributes = append(section.media.Attributes,
				psdp.NewAttribute(attrSctpPort, strconv.Itoa(int(params.sctpParameters.Port))),
				psdp.NewAttribute(attrMaxMessageSize, strconv.FormatUint(uint64(params.sctpParameters.MaxMessageSize), 10)),
			)
		}

	default:
		return nil, errors.Errorf("unsupported media %q", options.kind)
	}

	section.addTransport(params)

	return section, nil
}
