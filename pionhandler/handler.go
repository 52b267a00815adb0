// Package pionhandler implements mediasoupclient.Handler on top of a pion
// PeerConnection.
package pionhandler

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/go-logr/logr"
	"github.com/imdario/mergo"
	"github.com/pion/interceptor"
	psdp "github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v4"

	mediasoupclient "github.com/jiyeyuran/mediasoup-client-go"
	"github.com/jiyeyuran/mediasoup-client-go/internal/sdp"
)

const name = "Pion"

var sctpNumStreams = mediasoupclient.NumSctpStreams{OS: 1024, MIS: 1024}

// Options configure the pion API of a handler.
type Options struct {
	// RegisterCodecs registers the codecs of the media engine. Default
	// webrtc.MediaEngine.RegisterDefaultCodecs.
	RegisterCodecs func(m *webrtc.MediaEngine) error

	// SettingEngine is used by every PeerConnection of the handler. Its
	// LoggerFactory is replaced.
	SettingEngine webrtc.SettingEngine
}

type Option func(o *Options)

// WithCodecs sets the function registering the codecs of the media engine.
func WithCodecs(fn func(m *webrtc.MediaEngine) error) Option {
	return func(o *Options) {
		o.RegisterCodecs = fn
	}
}

// WithSettingEngine sets the setting engine of the PeerConnections.
func WithSettingEngine(s webrtc.SettingEngine) Option {
	return func(o *Options) {
		o.SettingEngine = s
	}
}

// NewFactory returns a factory to give to mediasoupclient.NewDevice.
func NewFactory(opts ...Option) mediasoupclient.HandlerFactory {
	return func() mediasoupclient.Handler {
		return New(opts...)
	}
}

type localEntry struct {
	transceiver *webrtc.RTPTransceiver
	track       webrtc.TrackLocal
	paused      bool
}

type remoteEntry struct {
	transceiver *webrtc.RTPTransceiver
	track       *RemoteTrack
	ssrc        uint32
}

// Handler is a mediasoupclient.Handler driving a pion PeerConnection.
type Handler struct {
	logger  logr.Logger
	options Options
	closed  uint32

	direction               mediasoupclient.TransportDirection
	remoteSdp               *sdp.RemoteSdp
	extendedRtpCapabilities *mediasoupclient.ExtendedRtpCapabilities
	iceTransportPolicy      mediasoupclient.IceTransportPolicy
	onConnect               func(ctx context.Context, dtlsParameters mediasoupclient.DtlsParameters) error
	pc                      *webrtc.PeerConnection

	// localId -> *localEntry or *remoteEntry
	mapMidTransceiver sync.Map

	hasDataChannelMediaSection bool
	nextSendSctpStreamId       uint16
	transportReady             bool
}

// New creates a handler.
func New(opts ...Option) *Handler {
	options := Options{
		RegisterCodecs: func(m *webrtc.MediaEngine) error {
			return m.RegisterDefaultCodecs()
		},
	}
	for _, o := range opts {
		o(&options)
	}

	return &Handler{
		logger:  mediasoupclient.NewLogger("Pion"),
		options: options,
	}
}

func (h *Handler) Name() string {
	return name
}

func (h *Handler) Close() error {
	if !atomic.CompareAndSwapUint32(&h.closed, 0, 1) {
		return nil
	}
	h.logger.V(1).Info("close()")

	h.mapMidTransceiver.Range(func(key, value interface{}) bool {
		if entry, ok := value.(*remoteEntry); ok {
			entry.track.end()
		}
		return true
	})

	if h.pc != nil {
		return h.pc.Close()
	}
	return nil
}

func (h *Handler) newAPI() (*webrtc.API, error) {
	m := &webrtc.MediaEngine{}

	if err := h.options.RegisterCodecs(m); err != nil {
		return nil, err
	}
	for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeAudio, webrtc.RTPCodecTypeVideo} {
		ext := webrtc.RTPHeaderExtensionCapability{URI: psdp.SDESMidURI}
		if err := m.RegisterHeaderExtension(ext, kind); err != nil {
			return nil, err
		}
	}

	registry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, registry); err != nil {
		return nil, err
	}

	settingEngine := h.options.SettingEngine
	settingEngine.LoggerFactory = newLoggerFactory()

	return webrtc.NewAPI(
		webrtc.WithMediaEngine(m),
		webrtc.WithSettingEngine(settingEngine),
		webrtc.WithInterceptorRegistry(registry),
	), nil
}

func (h *Handler) GetNativeRtpCapabilities(ctx context.Context) (*mediasoupclient.RtpCapabilities, error) {
	h.logger.V(1).Info("getNativeRtpCapabilities()")

	api, err := h.newAPI()
	if err != nil {
		return nil, engineError(err, "newAPI")
	}
	pc, err := api.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return nil, engineError(err, "newPeerConnection")
	}
	defer pc.Close()

	for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeAudio, webrtc.RTPCodecTypeVideo} {
		if _, err := pc.AddTransceiverFromKind(kind); err != nil {
			return nil, engineError(err, "addTransceiver")
		}
	}

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return nil, engineError(err, "createOffer")
	}
	localSdp, err := offer.Unmarshal()
	if err != nil {
		return nil, engineError(err, "parse offer")
	}
	caps, err := sdp.ExtractRtpCapabilities(localSdp)
	if err != nil {
		return nil, engineError(err, "extractRtpCapabilities")
	}

	return caps, nil
}

func (h *Handler) GetNativeSctpCapabilities(ctx context.Context) (*mediasoupclient.SctpCapabilities, error) {
	h.logger.V(1).Info("getNativeSctpCapabilities()")

	return &mediasoupclient.SctpCapabilities{NumStreams: sctpNumStreams}, nil
}

func (h *Handler) Run(options mediasoupclient.HandlerRunOptions) error {
	h.logger.V(1).Info("run()", "direction", options.Direction)

	h.direction = options.Direction
	h.extendedRtpCapabilities = options.ExtendedRtpCapabilities
	h.iceTransportPolicy = options.IceTransportPolicy
	h.onConnect = options.OnConnect
	h.remoteSdp = sdp.NewRemoteSdp(sdp.Options{
		IceParameters:  &options.IceParameters,
		IceCandidates:  options.IceCandidates,
		DtlsParameters: &options.DtlsParameters,
		SctpParameters: options.SctpParameters,
	})

	api, err := h.newAPI()
	if err != nil {
		return engineError(err, "newAPI")
	}
	pc, err := api.NewPeerConnection(configuration(options.IceServers, options.IceTransportPolicy))
	if err != nil {
		return engineError(err, "newPeerConnection")
	}

	pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		h.logger.V(1).Info("ICE connection state changed", "state", state.String())

		if mapped, ok := connectionState(state); ok && options.OnConnectionStateChange != nil {
			options.OnConnectionStateChange(mapped)
		}
	})
	h.pc = pc

	return nil
}

func configuration(iceServers []mediasoupclient.IceServer, policy mediasoupclient.IceTransportPolicy) webrtc.Configuration {
	config := webrtc.Configuration{
		ICETransportPolicy: webrtc.ICETransportPolicyAll,
		BundlePolicy:       webrtc.BundlePolicyMaxBundle,
		RTCPMuxPolicy:      webrtc.RTCPMuxPolicyRequire,
	}
	if policy == mediasoupclient.IceTransportPolicyRelay {
		config.ICETransportPolicy = webrtc.ICETransportPolicyRelay
	}
	for _, server := range iceServers {
		config.ICEServers = append(config.ICEServers, webrtc.ICEServer{
			URLs:       server.Urls,
			Username:   server.Username,
			Credential: server.Credential,
		})
	}
	return config
}

// connectionState maps the ICE connection state of pion. "new" is not
// reported.
func connectionState(state webrtc.ICEConnectionState) (mediasoupclient.ConnectionState, bool) {
	switch state {
	case webrtc.ICEConnectionStateChecking:
		return mediasoupclient.ConnectionStateConnecting, true
	case webrtc.ICEConnectionStateConnected, webrtc.ICEConnectionStateCompleted:
		return mediasoupclient.ConnectionStateConnected, true
	case webrtc.ICEConnectionStateFailed:
		return mediasoupclient.ConnectionStateFailed, true
	case webrtc.ICEConnectionStateDisconnected:
		return mediasoupclient.ConnectionStateDisconnected, true
	case webrtc.ICEConnectionStateClosed:
		return mediasoupclient.ConnectionStateClosed, true
	default:
		return "", false
	}
}

func (h *Handler) UpdateIceServers(ctx context.Context, iceServers []mediasoupclient.IceServer) error {
	h.logger.V(1).Info("updateIceServers()")

	config := h.pc.GetConfiguration()
	config.ICEServers = configuration(iceServers, h.iceTransportPolicy).ICEServers

	if err := h.pc.SetConfiguration(config); err != nil {
		return engineError(err, "setConfiguration")
	}
	return nil
}

func (h *Handler) RestartIce(ctx context.Context, iceParameters mediasoupclient.IceParameters) error {
	h.logger.V(1).Info("restartIce()")

	h.remoteSdp.UpdateIceParameters(iceParameters)

	if !h.transportReady {
		return nil
	}
	if h.direction == mediasoupclient.TransportDirectionSend {
		return h.renegotiateSend(&webrtc.OfferOptions{ICERestart: true})
	}
	return h.negotiateReceive(ctx, nil)
}

func (h *Handler) GetTransportStats(ctx context.Context) (mediasoupclient.StatsReport, error) {
	return statsReport(h.pc.GetStats(), func(webrtc.Stats) bool { return true }), nil
}

func (h *Handler) Send(ctx context.Context, options mediasoupclient.HandlerSendOptions) (*mediasoupclient.HandlerSendResult, error) {
	if err := h.assertDirection(mediasoupclient.TransportDirectionSend); err != nil {
		return nil, err
	}
	h.logger.V(1).Info("send()", "kind", options.Track.Kind(), "trackId", options.Track.Id())

	track, ok := options.Track.(interface{ TrackLocal() webrtc.TrackLocal })
	if !ok {
		return nil, mediasoupclient.NewTypeError("track is not a pion local track")
	}
	if len(options.Encodings) > 1 {
		return nil, mediasoupclient.NewUnsupportedError("%s handler sends a single encoding", name)
	}

	kind := options.Track.Kind()

	sendingRtpParameters := mediasoupclient.GetSendingRtpParameters(kind, h.extendedRtpCapabilities)
	codecs, err := mediasoupclient.ReduceCodecs(sendingRtpParameters.Codecs, options.Codec)
	if err != nil {
		return nil, err
	}
	sendingRtpParameters.Codecs = codecs

	sendingRemoteRtpParameters := mediasoupclient.GetSendingRemoteRtpParameters(kind, h.extendedRtpCapabilities)
	codecs, err = mediasoupclient.ReduceCodecs(sendingRemoteRtpParameters.Codecs, options.Codec)
	if err != nil {
		return nil, err
	}
	sendingRemoteRtpParameters.Codecs = codecs

	transceiver, err := h.pc.AddTransceiverFromTrack(track.TrackLocal(), webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionSendonly,
	})
	if err != nil {
		return nil, engineError(err, "addTransceiver")
	}

	checkpoint := h.remoteSdp.Checkpoint()

	localId, err := h.negotiateSend(ctx, transceiver, sendingRtpParameters, sendingRemoteRtpParameters, options)
	if err != nil {
		h.remoteSdp.Restore(checkpoint)
		if err := h.pc.RemoveTrack(transceiver.Sender()); err != nil {
			h.logger.Error(err, "send() | failed to remove track")
		}
		return nil, err
	}

	h.mapMidTransceiver.Store(localId, &localEntry{
		transceiver: transceiver,
		track:       track.TrackLocal(),
	})

	return &mediasoupclient.HandlerSendResult{
		LocalId:       localId,
		RtpParameters: sendingRtpParameters,
	}, nil
}

func (h *Handler) negotiateSend(
	ctx context.Context,
	transceiver *webrtc.RTPTransceiver,
	sendingRtpParameters, sendingRemoteRtpParameters *mediasoupclient.RtpParameters,
	options mediasoupclient.HandlerSendOptions,
) (string, error) {
	offer, err := h.pc.CreateOffer(nil)
	if err != nil {
		return "", engineError(err, "createOffer")
	}
	localSdp, err := offer.Unmarshal()
	if err != nil {
		return "", engineError(err, "parse offer")
	}

	if !h.transportReady {
		if err := h.setupTransport(ctx, mediasoupclient.DtlsRoleServer, localSdp); err != nil {
			return "", err
		}
	}

	h.logger.V(1).Info("send() | calling pc.SetLocalDescription()")

	if err := h.pc.SetLocalDescription(offer); err != nil {
		return "", engineError(err, "setLocalDescription")
	}

	localId := transceiver.Mid()

	idx, offerMedia := findMedia(localSdp, localId)
	if offerMedia == nil {
		return "", mediasoupclient.NewEngineError(nil, "no local media section found with mid %q", localId)
	}

	sendingRtpParameters.Mid = localId
	sendingRtpParameters.Rtcp.Cname = sdp.GetCname(offerMedia)

	encodings, err := sdp.GetRtpEncodings(offerMedia)
	if err != nil {
		return "", engineError(err, "getRtpEncodings")
	}
	if len(options.Encodings) == 1 && options.Encodings[0] != nil {
		if err := mergo.Merge(encodings[0], options.Encodings[0], mergo.WithOverride); err != nil {
			return "", engineError(err, "merge encodings")
		}
	}
	sendingRtpParameters.Encodings = encodings

	reuseMid := ""
	if mid, ok := h.remoteSdp.MidAt(idx); ok && mid != localId {
		reuseMid = mid
	}
	_, extmapAllowMixed := localSdp.Attribute("extmap-allow-mixed")

	err = h.remoteSdp.Send(sdp.SendOptions{
		OfferMedia:          offerMedia,
		ReuseMid:            reuseMid,
		OfferRtpParameters:  sendingRtpParameters,
		AnswerRtpParameters: sendingRemoteRtpParameters,
		CodecOptions:        options.CodecOptions,
		ExtmapAllowMixed:    extmapAllowMixed,
	})
	if err != nil {
		return "", engineError(err, "remoteSdp.Send")
	}

	if err := h.setRemoteDescription(webrtc.SDPTypeAnswer); err != nil {
		return "", err
	}

	return localId, nil
}

func (h *Handler) StopSending(ctx context.Context, localId string) error {
	if err := h.assertDirection(mediasoupclient.TransportDirectionSend); err != nil {
		return err
	}
	h.logger.V(1).Info("stopSending()", "localId", localId)

	entry, err := h.localEntry(localId)
	if err != nil {
		return err
	}
	if err := h.pc.RemoveTrack(entry.transceiver.Sender()); err != nil {
		return engineError(err, "removeTrack")
	}
	h.mapMidTransceiver.Delete(localId)

	checkpoint := h.remoteSdp.Checkpoint()

	if err := h.remoteSdp.CloseMediaSection(localId); err != nil {
		return engineError(err, "closeMediaSection")
	}
	if err := h.renegotiateSend(nil); err != nil {
		h.remoteSdp.Restore(checkpoint)
		return err
	}

	return nil
}

func (h *Handler) PauseSending(ctx context.Context, localId string) error {
	if err := h.assertDirection(mediasoupclient.TransportDirectionSend); err != nil {
		return err
	}
	h.logger.V(1).Info("pauseSending()", "localId", localId)

	entry, err := h.localEntry(localId)
	if err != nil {
		return err
	}
	if err := entry.transceiver.Sender().ReplaceTrack(nil); err != nil {
		return engineError(err, "replaceTrack")
	}
	entry.paused = true

	return nil
}

func (h *Handler) ResumeSending(ctx context.Context, localId string) error {
	if err := h.assertDirection(mediasoupclient.TransportDirectionSend); err != nil {
		return err
	}
	h.logger.V(1).Info("resumeSending()", "localId", localId)

	entry, err := h.localEntry(localId)
	if err != nil {
		return err
	}
	if err := entry.transceiver.Sender().ReplaceTrack(entry.track); err != nil {
		return engineError(err, "replaceTrack")
	}
	entry.paused = false

	return nil
}

func (h *Handler) ReplaceTrack(ctx context.Context, localId string, track mediasoupclient.MediaTrack) error {
	if err := h.assertDirection(mediasoupclient.TransportDirectionSend); err != nil {
		return err
	}
	h.logger.V(1).Info("replaceTrack()", "localId", localId)

	entry, err := h.localEntry(localId)
	if err != nil {
		return err
	}

	var trackLocal webrtc.TrackLocal

	if track != nil {
		native, ok := track.(interface{ TrackLocal() webrtc.TrackLocal })
		if !ok {
			return mediasoupclient.NewTypeError("track is not a pion local track")
		}
		trackLocal = native.TrackLocal()
	}

	// A paused sender gets the track on resume.
	if !entry.paused {
		if err := entry.transceiver.Sender().ReplaceTrack(trackLocal); err != nil {
			return engineError(err, "replaceTrack")
		}
	}
	entry.track = trackLocal

	return nil
}

// SetMaxSpatialLayer is a no-op: senders carry a single spatial layer.
func (h *Handler) SetMaxSpatialLayer(ctx context.Context, localId string, spatialLayer uint8) error {
	if err := h.assertDirection(mediasoupclient.TransportDirectionSend); err != nil {
		return err
	}
	h.logger.V(1).Info("setMaxSpatialLayer()", "localId", localId, "spatialLayer", spatialLayer)

	_, err := h.localEntry(localId)
	return err
}

// SetRtpEncodingParameters supports the "active" field only.
func (h *Handler) SetRtpEncodingParameters(ctx context.Context, localId string, params mediasoupclient.RtpEncodingParameters) error {
	if err := h.assertDirection(mediasoupclient.TransportDirectionSend); err != nil {
		return err
	}
	h.logger.V(1).Info("setRtpEncodingParameters()", "localId", localId)

	if _, err := h.localEntry(localId); err != nil {
		return err
	}

	active := params.Active
	params.Active = nil
	if params != (mediasoupclient.RtpEncodingParameters{}) {
		return mediasoupclient.NewUnsupportedError("%s handler only sets the active field of an encoding", name)
	}
	if active == nil {
		return nil
	}
	if *active {
		return h.ResumeSending(ctx, localId)
	}
	return h.PauseSending(ctx, localId)
}

func (h *Handler) GetSenderStats(ctx context.Context, localId string) (mediasoupclient.StatsReport, error) {
	if err := h.assertDirection(mediasoupclient.TransportDirectionSend); err != nil {
		return nil, err
	}
	entry, err := h.localEntry(localId)
	if err != nil {
		return nil, err
	}

	ssrcs := map[webrtc.SSRC]bool{}
	for _, encoding := range entry.transceiver.Sender().GetParameters().Encodings {
		ssrcs[encoding.SSRC] = true
	}

	return statsReport(h.pc.GetStats(), func(stats webrtc.Stats) bool {
		switch s := stats.(type) {
		case webrtc.OutboundRTPStreamStats:
			return ssrcs[s.SSRC]
		case webrtc.RemoteInboundRTPStreamStats:
			return ssrcs[s.SSRC]
		}
		return false
	}), nil
}

func (h *Handler) SendDataChannel(ctx context.Context, options mediasoupclient.HandlerSendDataChannelOptions) (*mediasoupclient.HandlerSendDataChannelResult, error) {
	if err := h.assertDirection(mediasoupclient.TransportDirectionSend); err != nil {
		return nil, err
	}
	h.logger.V(1).Info("sendDataChannel()", "label", options.Label)

	streamId := h.nextSendSctpStreamId

	dataChannel, err := h.pc.CreateDataChannel(options.Label, dataChannelInit(mediasoupclient.SctpStreamParameters{
		StreamId:          streamId,
		Ordered:           options.Ordered,
		MaxPacketLifeTime: options.MaxPacketLifeTime,
		MaxRetransmits:    options.MaxRetransmits,
		Protocol:          options.Protocol,
	}))
	if err != nil {
		return nil, engineError(err, "createDataChannel")
	}

	h.nextSendSctpStreamId = (h.nextSendSctpStreamId + 1) % sctpNumStreams.MIS

	// The first data channel adds the m=application section.
	if !h.hasDataChannelMediaSection {
		if err := h.negotiateSctpAssociation(ctx); err != nil {
			dataChannel.Close()
			return nil, err
		}
		h.hasDataChannelMediaSection = true
	}

	return &mediasoupclient.HandlerSendDataChannelResult{
		DataChannel: &DataChannel{DataChannel: dataChannel},
		SctpStreamParameters: mediasoupclient.SctpStreamParameters{
			StreamId:          streamId,
			Ordered:           options.Ordered,
			MaxPacketLifeTime: options.MaxPacketLifeTime,
			MaxRetransmits:    options.MaxRetransmits,
			Label:             options.Label,
			Protocol:          options.Protocol,
		},
	}, nil
}

func (h *Handler) negotiateSctpAssociation(ctx context.Context) error {
	offer, err := h.pc.CreateOffer(nil)
	if err != nil {
		return engineError(err, "createOffer")
	}
	localSdp, err := offer.Unmarshal()
	if err != nil {
		return engineError(err, "parse offer")
	}

	var offerMedia *psdp.MediaDescription
	for _, media := range localSdp.MediaDescriptions {
		if media.MediaName.Media == "application" {
			offerMedia = media
			break
		}
	}
	if offerMedia == nil {
		return mediasoupclient.NewEngineError(nil, "no m=application section in the local offer")
	}

	if !h.transportReady {
		if err := h.setupTransport(ctx, mediasoupclient.DtlsRoleServer, localSdp); err != nil {
			return err
		}
	}

	h.logger.V(1).Info("sendDataChannel() | calling pc.SetLocalDescription()")

	if err := h.pc.SetLocalDescription(offer); err != nil {
		return engineError(err, "setLocalDescription")
	}

	checkpoint := h.remoteSdp.Checkpoint()

	if err := h.remoteSdp.SendSctpAssociation(offerMedia); err != nil {
		return engineError(err, "sendSctpAssociation")
	}
	if err := h.setRemoteDescription(webrtc.SDPTypeAnswer); err != nil {
		h.remoteSdp.Restore(checkpoint)
		return err
	}

	return nil
}

func (h *Handler) Receive(ctx context.Context, optionsList []mediasoupclient.HandlerReceiveOptions) ([]mediasoupclient.HandlerReceiveResult, error) {
	if err := h.assertDirection(mediasoupclient.TransportDirectionRecv); err != nil {
		return nil, err
	}

	checkpoint := h.remoteSdp.Checkpoint()
	count := h.transceiverCount()
	localIds := make([]string, len(optionsList))

	for i, options := range optionsList {
		h.logger.V(1).Info("receive()", "trackId", options.TrackId, "kind", options.Kind)

		localId := options.RtpParameters.Mid
		if len(localId) == 0 {
			localId = strconv.Itoa(count + i)
		}
		streamId := options.StreamId
		if len(streamId) == 0 && options.RtpParameters.Rtcp != nil {
			streamId = options.RtpParameters.Rtcp.Cname
		}

		err := h.remoteSdp.Receive(sdp.ReceiveOptions{
			Mid:                localId,
			Kind:               options.Kind,
			OfferRtpParameters: options.RtpParameters,
			StreamId:           streamId,
			TrackId:            options.TrackId,
		})
		if err != nil {
			h.remoteSdp.Restore(checkpoint)
			return nil, engineError(err, "remoteSdp.Receive")
		}
		localIds[i] = localId
	}

	err := h.negotiateReceive(ctx, func(answer *psdp.SessionDescription) error {
		// Codec parameters of the answer may need to follow the offer.
		for i, options := range optionsList {
			if _, media := findMedia(answer, localIds[i]); media != nil {
				if err := sdp.ApplyCodecParameters(options.RtpParameters, media); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		h.remoteSdp.Restore(checkpoint)
		return nil, err
	}

	results := make([]mediasoupclient.HandlerReceiveResult, 0, len(optionsList))

	for i, options := range optionsList {
		transceiver := h.findTransceiver(localIds[i])
		if transceiver == nil {
			return nil, mediasoupclient.NewEngineError(nil, "new RTCRtpTransceiver not found for mid %q", localIds[i])
		}
		entry := &remoteEntry{
			transceiver: transceiver,
			track:       newRemoteTrack(options.TrackId, options.Kind, transceiver.Receiver()),
		}
		if encodings := options.RtpParameters.Encodings; len(encodings) > 0 {
			entry.ssrc = encodings[0].Ssrc
		}
		h.mapMidTransceiver.Store(localIds[i], entry)

		results = append(results, mediasoupclient.HandlerReceiveResult{
			LocalId: localIds[i],
			Track:   entry.track,
		})
	}

	return results, nil
}

func (h *Handler) StopReceiving(ctx context.Context, localIds []string) error {
	if err := h.assertDirection(mediasoupclient.TransportDirectionRecv); err != nil {
		return err
	}
	h.logger.V(1).Info("stopReceiving()", "localIds", localIds)

	checkpoint := h.remoteSdp.Checkpoint()
	entries := make([]*remoteEntry, 0, len(localIds))

	for _, localId := range localIds {
		entry, err := h.remoteEntry(localId)
		if err != nil {
			h.remoteSdp.Restore(checkpoint)
			return err
		}
		if err := h.remoteSdp.CloseMediaSection(entry.transceiver.Mid()); err != nil {
			h.remoteSdp.Restore(checkpoint)
			return engineError(err, "closeMediaSection")
		}
		entries = append(entries, entry)
	}

	if err := h.negotiateReceive(ctx, nil); err != nil {
		h.remoteSdp.Restore(checkpoint)
		return err
	}

	for i, entry := range entries {
		h.mapMidTransceiver.Delete(localIds[i])
		entry.track.end()
	}

	return nil
}

func (h *Handler) PauseReceiving(ctx context.Context, localIds []string) error {
	h.logger.V(1).Info("pauseReceiving()", "localIds", localIds)

	return h.setReceiving(ctx, localIds, h.remoteSdp.PauseMediaSection)
}

func (h *Handler) ResumeReceiving(ctx context.Context, localIds []string) error {
	h.logger.V(1).Info("resumeReceiving()", "localIds", localIds)

	return h.setReceiving(ctx, localIds, h.remoteSdp.ResumeReceivingMediaSection)
}

func (h *Handler) setReceiving(ctx context.Context, localIds []string, update func(mid string) error) error {
	if err := h.assertDirection(mediasoupclient.TransportDirectionRecv); err != nil {
		return err
	}

	checkpoint := h.remoteSdp.Checkpoint()

	for _, localId := range localIds {
		entry, err := h.remoteEntry(localId)
		if err != nil {
			h.remoteSdp.Restore(checkpoint)
			return err
		}
		if err := update(entry.transceiver.Mid()); err != nil {
			h.remoteSdp.Restore(checkpoint)
			return engineError(err, "update media section")
		}
	}

	if err := h.negotiateReceive(ctx, nil); err != nil {
		h.remoteSdp.Restore(checkpoint)
		return err
	}

	return nil
}

func (h *Handler) GetReceiverStats(ctx context.Context, localId string) (mediasoupclient.StatsReport, error) {
	if err := h.assertDirection(mediasoupclient.TransportDirectionRecv); err != nil {
		return nil, err
	}
	entry, err := h.remoteEntry(localId)
	if err != nil {
		return nil, err
	}
	ssrc := webrtc.SSRC(entry.ssrc)

	return statsReport(h.pc.GetStats(), func(stats webrtc.Stats) bool {
		switch s := stats.(type) {
		case webrtc.InboundRTPStreamStats:
			return s.SSRC == ssrc
		case webrtc.RemoteOutboundRTPStreamStats:
			return s.SSRC == ssrc
		}
		return false
	}), nil
}

func (h *Handler) ReceiveDataChannel(ctx context.Context, options mediasoupclient.HandlerReceiveDataChannelOptions) (*mediasoupclient.HandlerReceiveDataChannelResult, error) {
	if err := h.assertDirection(mediasoupclient.TransportDirectionRecv); err != nil {
		return nil, err
	}
	h.logger.V(1).Info("receiveDataChannel()", "streamId", options.SctpStreamParameters.StreamId)

	params := options.SctpStreamParameters
	params.Protocol = options.Protocol

	dataChannel, err := h.pc.CreateDataChannel(options.Label, dataChannelInit(params))
	if err != nil {
		return nil, engineError(err, "createDataChannel")
	}

	// The first data channel adds the m=application section.
	if !h.hasDataChannelMediaSection {
		checkpoint := h.remoteSdp.Checkpoint()

		if err := h.remoteSdp.ReceiveSctpAssociation(); err != nil {
			dataChannel.Close()
			return nil, engineError(err, "receiveSctpAssociation")
		}
		if err := h.negotiateReceive(ctx, nil); err != nil {
			h.remoteSdp.Restore(checkpoint)
			dataChannel.Close()
			return nil, err
		}
		h.hasDataChannelMediaSection = true
	}

	return &mediasoupclient.HandlerReceiveDataChannelResult{
		DataChannel: &DataChannel{DataChannel: dataChannel},
	}, nil
}

// setupTransport tells the server side transport about the local DTLS
// parameters, once.
func (h *Handler) setupTransport(ctx context.Context, localDtlsRole mediasoupclient.DtlsRole, localSdp *psdp.SessionDescription) error {
	dtlsParameters, err := sdp.ExtractDtlsParameters(localSdp)
	if err != nil {
		return engineError(err, "extractDtlsParameters")
	}
	dtlsParameters.Role = localDtlsRole

	if localDtlsRole == mediasoupclient.DtlsRoleClient {
		h.remoteSdp.UpdateDtlsRole(mediasoupclient.DtlsRoleServer)
	} else {
		h.remoteSdp.UpdateDtlsRole(mediasoupclient.DtlsRoleClient)
	}

	if h.onConnect != nil {
		if err := h.onConnect(ctx, dtlsParameters); err != nil {
			return err
		}
	}
	h.transportReady = true

	return nil
}

// renegotiateSend applies a new local offer and the current remote answer.
func (h *Handler) renegotiateSend(options *webrtc.OfferOptions) error {
	offer, err := h.pc.CreateOffer(options)
	if err != nil {
		return engineError(err, "createOffer")
	}
	if err := h.pc.SetLocalDescription(offer); err != nil {
		return engineError(err, "setLocalDescription")
	}
	return h.setRemoteDescription(webrtc.SDPTypeAnswer)
}

// negotiateReceive applies the current remote offer and a new local answer.
// patch may modify the answer before it is applied.
func (h *Handler) negotiateReceive(ctx context.Context, patch func(answer *psdp.SessionDescription) error) error {
	if err := h.setRemoteDescription(webrtc.SDPTypeOffer); err != nil {
		return err
	}

	answer, err := h.pc.CreateAnswer(nil)
	if err != nil {
		return engineError(err, "createAnswer")
	}
	localSdp, err := answer.Unmarshal()
	if err != nil {
		return engineError(err, "parse answer")
	}

	if patch != nil {
		if err := patch(localSdp); err != nil {
			return engineError(err, "patch answer")
		}
		data, err := localSdp.Marshal()
		if err != nil {
			return engineError(err, "marshal answer")
		}
		answer.SDP = string(data)
	}

	if !h.transportReady {
		if err := h.setupTransport(ctx, mediasoupclient.DtlsRoleClient, localSdp); err != nil {
			return err
		}
	}

	h.logger.V(1).Info("calling pc.SetLocalDescription()", "type", answer.Type.String())

	if err := h.pc.SetLocalDescription(answer); err != nil {
		return engineError(err, "setLocalDescription")
	}
	return nil
}

func (h *Handler) setRemoteDescription(sdpType webrtc.SDPType) error {
	remoteSdp, err := h.remoteSdp.Sdp()
	if err != nil {
		return engineError(err, "remoteSdp")
	}

	h.logger.V(1).Info("calling pc.SetRemoteDescription()", "type", sdpType.String())

	err = h.pc.SetRemoteDescription(webrtc.SessionDescription{Type: sdpType, SDP: remoteSdp})
	if err != nil {
		return engineError(err, "setRemoteDescription")
	}
	return nil
}

func (h *Handler) assertDirection(direction mediasoupclient.TransportDirection) error {
	if h.direction != direction {
		return mediasoupclient.NewInvalidStateError("method can just be called for handlers with %q direction", direction)
	}
	return nil
}

func (h *Handler) localEntry(localId string) (*localEntry, error) {
	if value, ok := h.mapMidTransceiver.Load(localId); ok {
		if entry, ok := value.(*localEntry); ok {
			return entry, nil
		}
	}
	return nil, mediasoupclient.NewInvalidStateError("associated RTCRtpTransceiver not found for localId %q", localId)
}

func (h *Handler) remoteEntry(localId string) (*remoteEntry, error) {
	if value, ok := h.mapMidTransceiver.Load(localId); ok {
		if entry, ok := value.(*remoteEntry); ok {
			return entry, nil
		}
	}
	return nil, mediasoupclient.NewInvalidStateError("associated RTCRtpTransceiver not found for localId %q", localId)
}

func (h *Handler) transceiverCount() (count int) {
	h.mapMidTransceiver.Range(func(key, value interface{}) bool {
		count++
		return true
	})
	return
}

func (h *Handler) findTransceiver(mid string) *webrtc.RTPTransceiver {
	for _, transceiver := range h.pc.GetTransceivers() {
		if transceiver.Mid() == mid {
			return transceiver
		}
	}
	return nil
}

func findMedia(sd *psdp.SessionDescription, mid string) (int, *psdp.MediaDescription) {
	for idx, media := range sd.MediaDescriptions {
		if sdp.Mid(media) == mid {
			return idx, media
		}
	}
	return -1, nil
}

func dataChannelInit(params mediasoupclient.SctpStreamParameters) *webrtc.DataChannelInit {
	negotiated := true
	streamId := params.StreamId
	protocol := params.Protocol

	init := &webrtc.DataChannelInit{
		Ordered:    params.Ordered,
		Protocol:   &protocol,
		Negotiated: &negotiated,
		ID:         &streamId,
	}
	if params.MaxPacketLifeTime > 0 {
		maxPacketLifeTime := params.MaxPacketLifeTime
		init.MaxPacketLifeTime = &maxPacketLifeTime
	}
	if params.MaxRetransmits > 0 {
		maxRetransmits := params.MaxRetransmits
		init.MaxRetransmits = &maxRetransmits
	}
	return init
}

func statsReport(report webrtc.StatsReport, filter func(stats webrtc.Stats) bool) mediasoupclient.StatsReport {
	result := mediasoupclient.StatsReport{}

	for id, stats := range report {
		if filter(stats) {
			result[id] = stats
		}
	}
	return result
}

func engineError(err error, op string) error {
	return mediasoupclient.NewEngineError(err, "%s failed", op)
}
