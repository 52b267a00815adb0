// Package sdp builds the remote SDP a handler negotiates against and parses
// the local SDP of the media engine.
package sdp

import (
	"strings"

	"github.com/go-logr/logr"
	psdp "github.com/pion/sdp/v3"
	"github.com/pkg/errors"

	mediasoupclient "github.com/jiyeyuran/mediasoup-client-go"
)

type sessionParams struct {
	iceParameters  *mediasoupclient.IceParameters
	iceCandidates  []mediasoupclient.IceCandidate
	dtlsParameters *mediasoupclient.DtlsParameters
	sctpParameters *mediasoupclient.SctpParameters
}

// Options are the server side transport parameters the remote SDP is built
// from.
type Options struct {
	IceParameters  *mediasoupclient.IceParameters
	IceCandidates  []mediasoupclient.IceCandidate
	DtlsParameters *mediasoupclient.DtlsParameters
	SctpParameters *mediasoupclient.SctpParameters
}

// SendOptions answer a media description of the local offer.
type SendOptions struct {
	OfferMedia          *psdp.MediaDescription
	ReuseMid            string
	OfferRtpParameters  *mediasoupclient.RtpParameters
	AnswerRtpParameters *mediasoupclient.RtpParameters
	CodecOptions        *mediasoupclient.ProducerCodecOptions
	ExtmapAllowMixed    bool
}

// ReceiveOptions offer a consumer to the local media engine.
type ReceiveOptions struct {
	Mid                string
	Kind               mediasoupclient.MediaKind
	OfferRtpParameters *mediasoupclient.RtpParameters
	StreamId           string
	TrackId            string
}

// Checkpoint is a saved state of the media sections.
type Checkpoint struct {
	sections   []*mediaSection
	midToIndex map[string]int
	firstMid   string
}

// RemoteSdp is the SDP of the server side transport. It keeps one media
// section per m-line of the negotiation; closed sections are recycled by
// later ones.
type RemoteSdp struct {
	logger         logr.Logger
	params         sessionParams
	sections       []*mediaSection
	midToIndex     map[string]int
	firstMid       string
	sessionVersion uint64
}

// NewRemoteSdp creates an empty remote SDP.
func NewRemoteSdp(options Options) *RemoteSdp {
	params := sessionParams{
		iceCandidates:  options.IceCandidates,
		sctpParameters: options.SctpParameters,
	}
	if options.IceParameters != nil {
		iceParameters := *options.IceParameters
		params.iceParameters = &iceParameters
	}
	if options.DtlsParameters != nil {
		dtlsParameters := *options.DtlsParameters
		params.dtlsParameters = &dtlsParameters
	}

	return &RemoteSdp{
		logger:     mediasoupclient.NewLogger("RemoteSdp"),
		params:     params,
		midToIndex: map[string]int{},
	}
}

// UpdateIceParameters sets the ICE parameters of every section, after an ICE
// restart.
func (r *RemoteSdp) UpdateIceParameters(iceParameters mediasoupclient.IceParameters) {
	r.logger.V(1).Info("updateIceParameters()", "iceParameters", iceParameters)

	r.params.iceParameters = &iceParameters

	for _, section := range r.sections {
		section.setIceParameters(iceParameters)
	}
}

// UpdateDtlsRole sets the DTLS role of the remote endpoint.
func (r *RemoteSdp) UpdateDtlsRole(role mediasoupclient.DtlsRole) {
	r.logger.V(1).Info("updateDtlsRole()", "role", role)

	if r.params.dtlsParameters == nil {
		return
	}
	r.params.dtlsParameters.Role = role

	for _, section := range r.sections {
		section.setDtlsRole(role)
	}
}

// MediaSectionCount returns the number of m-lines.
func (r *RemoteSdp) MediaSectionCount() int {
	return len(r.sections)
}

// MidAt returns the MID of the section at idx.
func (r *RemoteSdp) MidAt(idx int) (mid string, ok bool) {
	if idx < 0 || idx >= len(r.sections) {
		return "", false
	}
	return r.sections[idx].mid(), true
}

// NextMediaSectionIdx returns the index of the first closed section and its
// MID, or the index of a new section.
func (r *RemoteSdp) NextMediaSectionIdx() (idx int, reuseMid string) {
	for i, section := range r.sections {
		if section.closed() {
			return i, section.mid()
		}
	}
	return len(r.sections), ""
}

// Send answers a media description of the local offer.
func (r *RemoteSdp) Send(options SendOptions) error {
	section, err := newAnswerMediaSection(r.params, answerOptions{
		offerMedia:          options.OfferMedia,
		offerRtpParameters:  options.OfferRtpParameters,
		answerRtpParameters: options.AnswerRtpParameters,
		codecOptions:        options.CodecOptions,
		extmapAllowMixed:    options.ExtmapAllowMixed,
	})
	if err != nil {
		return err
	}

	if len(options.ReuseMid) > 0 {
		return r.replaceMediaSection(section, options.ReuseMid)
	}
	if _, ok := r.midToIndex[section.mid()]; ok {
		return r.replaceMediaSection(section, "")
	}
	r.addMediaSection(section)

	return nil
}

// Receive offers a consumer. A closed section is recycled when there is one.
func (r *RemoteSdp) Receive(options ReceiveOptions) error {
	section, err := newOfferMediaSection(r.params, offerOptions{
		mid:                options.Mid,
		kind:               string(options.Kind),
		offerRtpParameters: options.OfferRtpParameters,
		streamId:           options.StreamId,
		trackId:            options.TrackId,
	})
	if err != nil {
		return err
	}

	if _, reuseMid := r.NextMediaSectionIdx(); len(reuseMid) > 0 {
		return r.replaceMediaSection(section, reuseMid)
	}
	r.addMediaSection(section)

	return nil
}

// DisableMediaSection sets the section inactive.
func (r *RemoteSdp) DisableMediaSection(mid string) error {
	idx, ok := r.midToIndex[mid]
	if !ok {
		return errors.Errorf("no media section found with mid %q", mid)
	}
	r.sections[idx].disable()

	return nil
}

// PauseMediaSection stops the media of an offered section.
func (r *RemoteSdp) PauseMediaSection(mid string) error {
	return r.setMediaSectionDirection(mid, mediasoupclient.MediaDirectionInactive)
}

// ResumeReceivingMediaSection resumes the media of an offered section.
func (r *RemoteSdp) ResumeReceivingMediaSection(mid string) error {
	return r.setMediaSectionDirection(mid, mediasoupclient.MediaDirectionSendonly)
}

func (r *RemoteSdp) setMediaSectionDirection(mid string, direction mediasoupclient.MediaDirection) error {
	idx, ok := r.midToIndex[mid]
	if !ok {
		return errors.Errorf("no media section found with mid %q", mid)
	}
	r.sections[idx].setDirection(direction)

	return nil
}

// CloseMediaSection closes the section so it can be recycled. The first
// section carries the BUNDLE transport and is only disabled.
func (r *RemoteSdp) CloseMediaSection(mid string) error {
	idx, ok := r.midToIndex[mid]
	if !ok {
		return errors.Errorf("no media section found with mid %q", mid)
	}

	if mid == r.firstMid {
		r.logger.V(1).Info("closeMediaSection() | cannot close first media section, disabling it instead", "mid", mid)
		r.sections[idx].disable()
		return nil
	}

	r.sections[idx].close()

	return nil
}

// SendSctpAssociation answers the m=application section of the local offer.
func (r *RemoteSdp) SendSctpAssociation(offerMedia *psdp.MediaDescription) error {
	section, err := newAnswerMediaSection(r.params, answerOptions{offerMedia: offerMedia})
	if err != nil {
		return err
	}
	r.addMediaSection(section)

	return nil
}

// ReceiveSctpAssociation offers the m=application section.
func (r *RemoteSdp) ReceiveSctpAssociation() error {
	section, err := newOfferMediaSection(r.params, offerOptions{mid: "datachannel", kind: "application"})
	if err != nil {
		return err
	}
	r.addMediaSection(section)

	return nil
}

// Checkpoint saves the media sections.
func (r *RemoteSdp) Checkpoint() Checkpoint {
	checkpoint := Checkpoint{
		sections:   make([]*mediaSection, 0, len(r.sections)),
		midToIndex: make(map[string]int, len(r.midToIndex)),
		firstMid:   r.firstMid,
	}
	for _, section := range r.sections {
		checkpoint.sections = append(checkpoint.sections, section.clone())
	}
	for mid, idx := range r.midToIndex {
		checkpoint.midToIndex[mid] = idx
	}

	return checkpoint
}

// Restore goes back to a saved state, after a failed negotiation.
func (r *RemoteSdp) Restore(checkpoint Checkpoint) {
	r.logger.V(1).Info("restore()", "sections", len(checkpoint.sections))

	r.sections = make([]*mediaSection, 0, len(checkpoint.sections))
	for _, section := range checkpoint.sections {
		r.sections = append(r.sections, section.clone())
	}
	r.midToIndex = make(map[string]int, len(checkpoint.midToIndex))
	for mid, idx := range checkpoint.midToIndex {
		r.midToIndex[mid] = idx
	}
	r.firstMid = checkpoint.firstMid
}

// SessionDescription returns the remote SDP. Each call bumps the session
// version.
func (r *RemoteSdp) SessionDescription() *psdp.SessionDescription {
	r.sessionVersion++

	sd := &psdp.SessionDescription{
		Version: 0,
		Origin: psdp.Origin{
			Username:       "mediasoup-client",
			SessionID:      10000,
			SessionVersion: r.sessionVersion,
			NetworkType:    "IN",
			AddressType:    "IP4",
			UnicastAddress: "0.0.0.0",
		},
		SessionName:      "-",
		TimeDescriptions: []psdp.TimeDescription{{}},
	}

	if r.params.iceParameters != nil && r.params.iceParameters.IceLite {
		sd.Attributes = append(sd.Attributes, psdp.NewPropertyAttribute("ice-lite"))
	}

	if dtlsParameters := r.params.dtlsParameters; dtlsParameters != nil {
		sd.Attributes = append(sd.Attributes, psdp.NewAttribute("msid-semantic", "WMS *"))

		if fingerprint, ok := selectFingerprint(dtlsParameters.Fingerprints); ok {
			sd.Attributes = append(sd.Attributes,
				psdp.NewAttribute(attrFingerprint, fingerprint.Algorithm+" "+fingerprint.Value))
		}

		var mids []string
		for _, section := range r.sections {
			if !section.closed() {
				mids = append(mids, section.mid())
			}
		}
		if len(mids) > 0 {
			sd.Attributes = append(sd.Attributes, psdp.NewAttribute("group", "BUNDLE "+strings.Join(mids, " ")))
		}
	}

	for _, section := range r.sections {
		sd.MediaDescriptions = append(sd.MediaDescriptions, section.media)
	}

	return sd
}

// Sdp returns the marshaled remote SDP.
func (r *RemoteSdp) Sdp() (string, error) {
	data, err := r.SessionDescription().Marshal()
	if err != nil {
		return "", errors.Wrap(err, "marshal remote sdp")
	}
	return string(data), nil
}

// selectFingerprint returns the sha-256 fingerprint, or the last one.
func selectFingerprint(fingerprints []mediasoupclient.DtlsFingerprint) (mediasoupclient.DtlsFingerprint, bool) {
	if len(fingerprints) == 0 {
		return mediasoupclient.DtlsFingerprint{}, false
	}
	for _, fingerprint := range fingerprints {
		if strings.EqualFold(fingerprint.Algorithm, "sha-256") {
			return fingerprint, true
		}
	}
	return fingerprints[len(fingerprints)-1], true
}

func (r *RemoteSdp) addMediaSection(section *mediaSection) {
	if len(r.firstMid) == 0 {
		r.firstMid = section.mid()
	}
	r.sections = append(r.sections, section)
	r.midToIndex[section.mid()] = len(r.sections) - 1
}

func (r *RemoteSdp) replaceMediaSection(section *mediaSection, reuseMid string) error {
	if len(reuseMid) > 0 {
		idx, ok := r.midToIndex[reuseMid]
		if !ok {
			return errors.Errorf("no media section found with mid %q", reuseMid)
		}
		delete(r.midToIndex, reuseMid)
		r.sections[idx] = section
		r.midToIndex[section.mid()] = idx

		return nil
	}

	idx, ok := r.midToIndex[section.mid()]
	if !ok {
		return errors.Errorf("no media section found with mid %q", section.mid())
	}
	r.sections[idx] = section

	return nil
}
