package mediasoupclient

import (
	"context"
	"encoding/json"
	"math/rand"
	"strconv"
	"sync"

	"github.com/google/uuid"
)

func generateRandomNumber() uint32 {
	return uint32(rand.Int63n(900000000)) + 100000000
}

type fakeTrack struct {
	id      string
	kind    MediaKind
	mu      sync.Mutex
	ended   bool
	onEnded []func()
}

func newFakeTrack(kind MediaKind) *fakeTrack {
	return &fakeTrack{id: uuid.NewString(), kind: kind}
}

func (t *fakeTrack) Id() string      { return t.id }
func (t *fakeTrack) Kind() MediaKind { return t.kind }

func (t *fakeTrack) Ended() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.ended
}

func (t *fakeTrack) OnEnded(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.onEnded = append(t.onEnded, fn)
}

func (t *fakeTrack) end() {
	t.mu.Lock()
	t.ended = true
	handlers := t.onEnded
	t.mu.Unlock()

	for _, fn := range handlers {
		fn()
	}
}

type fakeDataChannel struct {
	label     string
	protocol  string
	mu        sync.Mutex
	state     string
	sent      [][]byte
	onOpen    func()
	onClose   func()
	onError   func(error)
	onMessage func([]byte, bool)
	onLow     func()
}

func newFakeDataChannel(label, protocol string) *fakeDataChannel {
	return &fakeDataChannel{label: label, protocol: protocol, state: "connecting"}
}

func (c *fakeDataChannel) Label() string                           { return c.label }
func (c *fakeDataChannel) Protocol() string                        { return c.protocol }
func (c *fakeDataChannel) BufferedAmount() uint64                  { return 0 }
func (c *fakeDataChannel) SetBufferedAmountLowThreshold(th uint64) {}
func (c *fakeDataChannel) OnOpen(fn func())                        { c.onOpen = fn }
func (c *fakeDataChannel) OnClose(fn func())                       { c.onClose = fn }
func (c *fakeDataChannel) OnError(fn func(error))                  { c.onError = fn }
func (c *fakeDataChannel) OnMessage(fn func([]byte, bool))         { c.onMessage = fn }
func (c *fakeDataChannel) OnBufferedAmountLow(fn func())           { c.onLow = fn }

func (c *fakeDataChannel) ReadyState() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

func (c *fakeDataChannel) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sent = append(c.sent, data)
	return nil
}

func (c *fakeDataChannel) SendText(text string) error {
	return c.Send([]byte(text))
}

func (c *fakeDataChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = "closed"
	return nil
}

func (c *fakeDataChannel) open() {
	c.mu.Lock()
	c.state = "open"
	c.mu.Unlock()

	if c.onOpen != nil {
		c.onOpen()
	}
}

// fakeHandler is a Handler recording its calls. Setting gate makes Send and
// Receive wait until the gate is closed or their context ends.
type fakeHandler struct {
	mu            sync.Mutex
	nativeCaps    *RtpCapabilities
	options       HandlerRunOptions
	connected     bool
	closed        bool
	nextLocalId   int
	nextStreamId  uint16
	gate          chan struct{}
	sendErr       error
	receiveErr    error
	sendCalls     int
	stopSending   []string
	pauseSending  []string
	resumeSending []string
	replaced      map[string]MediaTrack
	receiveCalls  [][]HandlerReceiveOptions
	stopReceiving [][]string
	pauseRecv     [][]string
	resumeRecv    [][]string
	restartIce    []IceParameters
	restartIceErr error
	onRestartIce  func()
	iceServers    [][]IceServer
	dataChannels  []*fakeDataChannel
}

func newFakeHandler() *fakeHandler {
	return &fakeHandler{replaced: map[string]MediaTrack{}}
}

func (h *fakeHandler) Name() string { return "FakeHandler" }

func (h *fakeHandler) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	return nil
}

func (h *fakeHandler) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.closed
}

func (h *fakeHandler) GetNativeRtpCapabilities(ctx context.Context) (*RtpCapabilities, error) {
	if h.nativeCaps != nil {
		return clone(h.nativeCaps), nil
	}
	return generateNativeRtpCapabilities(), nil
}

func (h *fakeHandler) GetNativeSctpCapabilities(ctx context.Context) (*SctpCapabilities, error) {
	return &SctpCapabilities{NumStreams: NumSctpStreams{OS: 2048, MIS: 2048}}, nil
}

func (h *fakeHandler) Run(options HandlerRunOptions) error {
	h.options = options
	return nil
}

func (h *fakeHandler) UpdateIceServers(ctx context.Context, iceServers []IceServer) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.iceServers = append(h.iceServers, iceServers)
	return nil
}

func (h *fakeHandler) RestartIce(ctx context.Context, iceParameters IceParameters) error {
	h.mu.Lock()
	h.restartIce = append(h.restartIce, iceParameters)
	onRestartIce, err := h.onRestartIce, h.restartIceErr
	h.mu.Unlock()

	if onRestartIce != nil {
		onRestartIce()
	}
	return err
}

func (h *fakeHandler) GetTransportStats(ctx context.Context) (StatsReport, error) {
	return StatsReport{"transport": H{"type": "transport"}}, nil
}

func (h *fakeHandler) wait(ctx context.Context) error {
	h.mu.Lock()
	gate := h.gate
	h.mu.Unlock()

	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *fakeHandler) setupTransport(ctx context.Context, role DtlsRole) error {
	h.mu.Lock()
	if h.connected {
		h.mu.Unlock()
		return nil
	}
	h.connected = true
	h.mu.Unlock()

	return h.options.OnConnect(ctx, DtlsParameters{
		Role: role,
		Fingerprints: []DtlsFingerprint{
			{Algorithm: "sha-256", Value: "82:5A:68:3D:36:C3:0A:DE:AF:E7:32:43:D2:88:83:57:AC:2D:65:E5:80:C4:B6:FB:AF:1A:A0:21:9F:6D:0C:AD"},
		},
	})
}

func (h *fakeHandler) newLocalId() string {
	h.mu.Lock()
	defer h.mu.Unlock()

	localId := strconv.Itoa(h.nextLocalId)
	h.nextLocalId++

	return localId
}

func (h *fakeHandler) Send(ctx context.Context, options HandlerSendOptions) (*HandlerSendResult, error) {
	h.mu.Lock()
	h.sendCalls++
	sendErr := h.sendErr
	h.mu.Unlock()

	if err := h.wait(ctx); err != nil {
		return nil, err
	}
	if sendErr != nil {
		return nil, sendErr
	}
	if err := h.setupTransport(ctx, DtlsRoleServer); err != nil {
		return nil, err
	}

	rtpParameters := GetSendingRtpParameters(options.Track.Kind(), h.options.ExtendedRtpCapabilities)

	codecs, err := ReduceCodecs(rtpParameters.Codecs, options.Codec)
	if err != nil {
		return nil, err
	}
	localId := h.newLocalId()

	rtpParameters.Codecs = codecs
	rtpParameters.Mid = localId
	rtpParameters.Rtcp = &RtcpParameters{Cname: "CNAME", ReducedSize: ref(true)}

	if len(options.Encodings) > 0 {
		rtpParameters.Encodings = options.Encodings
	} else {
		rtpParameters.Encodings = []*RtpEncodingParameters{{Ssrc: generateRandomNumber()}}
	}

	return &HandlerSendResult{LocalId: localId, RtpParameters: rtpParameters}, nil
}

func (h *fakeHandler) StopSending(ctx context.Context, localId string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.stopSending = append(h.stopSending, localId)
	return nil
}

func (h *fakeHandler) PauseSending(ctx context.Context, localId string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.pauseSending = append(h.pauseSending, localId)
	return nil
}

func (h *fakeHandler) ResumeSending(ctx context.Context, localId string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.resumeSending = append(h.resumeSending, localId)
	return nil
}

func (h *fakeHandler) ReplaceTrack(ctx context.Context, localId string, track MediaTrack) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.replaced[localId] = track
	return nil
}

func (h *fakeHandler) SetMaxSpatialLayer(ctx context.Context, localId string, spatialLayer uint8) error {
	return nil
}

func (h *fakeHandler) SetRtpEncodingParameters(ctx context.Context, localId string, params RtpEncodingParameters) error {
	return nil
}

func (h *fakeHandler) GetSenderStats(ctx context.Context, localId string) (StatsReport, error) {
	return StatsReport{"outbound-rtp": H{"mid": localId}}, nil
}

func (h *fakeHandler) SendDataChannel(ctx context.Context, options HandlerSendDataChannelOptions) (*HandlerSendDataChannelResult, error) {
	if err := h.setupTransport(ctx, DtlsRoleServer); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	streamId := h.nextStreamId
	h.nextStreamId++

	dataChannel := newFakeDataChannel(options.Label, options.Protocol)
	h.dataChannels = append(h.dataChannels, dataChannel)

	return &HandlerSendDataChannelResult{
		DataChannel: dataChannel,
		SctpStreamParameters: SctpStreamParameters{
			StreamId:          streamId,
			Ordered:           options.Ordered,
			MaxPacketLifeTime: options.MaxPacketLifeTime,
			MaxRetransmits:    options.MaxRetransmits,
			Label:             options.Label,
			Protocol:          options.Protocol,
		},
	}, nil
}

func (h *fakeHandler) Receive(ctx context.Context, options []HandlerReceiveOptions) ([]HandlerReceiveResult, error) {
	h.mu.Lock()
	h.receiveCalls = append(h.receiveCalls, options)
	receiveErr := h.receiveErr
	h.mu.Unlock()

	if err := h.wait(ctx); err != nil {
		return nil, err
	}
	if receiveErr != nil {
		return nil, receiveErr
	}
	if err := h.setupTransport(ctx, DtlsRoleClient); err != nil {
		return nil, err
	}

	results := make([]HandlerReceiveResult, 0, len(options))

	for _, option := range options {
		results = append(results, HandlerReceiveResult{
			LocalId: h.newLocalId(),
			Track:   &fakeTrack{id: option.TrackId, kind: option.Kind},
		})
	}

	return results, nil
}

func (h *fakeHandler) StopReceiving(ctx context.Context, localIds []string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.stopReceiving = append(h.stopReceiving, localIds)
	return nil
}

func (h *fakeHandler) PauseReceiving(ctx context.Context, localIds []string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.pauseRecv = append(h.pauseRecv, localIds)
	return nil
}

func (h *fakeHandler) ResumeReceiving(ctx context.Context, localIds []string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.resumeRecv = append(h.resumeRecv, localIds)
	return nil
}

func (h *fakeHandler) GetReceiverStats(ctx context.Context, localId string) (StatsReport, error) {
	return StatsReport{"inbound-rtp": H{"mid": localId}}, nil
}

func (h *fakeHandler) ReceiveDataChannel(ctx context.Context, options HandlerReceiveDataChannelOptions) (*HandlerReceiveDataChannelResult, error) {
	if err := h.setupTransport(ctx, DtlsRoleClient); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	dataChannel := newFakeDataChannel(options.Label, options.Protocol)
	h.dataChannels = append(h.dataChannels, dataChannel)

	return &HandlerReceiveDataChannelResult{DataChannel: dataChannel}, nil
}

func (h *fakeHandler) receiveCallCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.receiveCalls)
}

func (h *fakeHandler) sendCallCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.sendCalls
}

// fakeSignaler answers requests with the registered responders. Unknown
// methods answer with an empty object, "produce" and "produceData" with a
// fresh id.
type fakeSignaler struct {
	mu         sync.Mutex
	requests   []fakeRequest
	responders map[string]func(data interface{}) (interface{}, error)
}

type fakeRequest struct {
	method       string
	data         interface{}
	notification bool
}

func newFakeSignaler() *fakeSignaler {
	return &fakeSignaler{responders: map[string]func(interface{}) (interface{}, error){}}
}

func (s *fakeSignaler) respond(method string, fn func(data interface{}) (interface{}, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.responders[method] = fn
}

func (s *fakeSignaler) Request(ctx context.Context, method string, data interface{}) (json.RawMessage, error) {
	s.mu.Lock()
	s.requests = append(s.requests, fakeRequest{method: method, data: data})
	responder := s.responders[method]
	s.mu.Unlock()

	var (
		response interface{} = H{}
		err      error
	)

	switch {
	case responder != nil:
		response, err = responder(data)
	case method == MethodProduce || method == MethodProduceData:
		response = H{"id": uuid.NewString()}
	}
	if err != nil {
		return nil, err
	}

	return json.Marshal(response)
}

// Notify records the notification. A responder registered for method
// decides its error.
func (s *fakeSignaler) Notify(ctx context.Context, method string, data interface{}) error {
	s.mu.Lock()
	s.requests = append(s.requests, fakeRequest{method: method, data: data, notification: true})
	responder := s.responders[method]
	s.mu.Unlock()

	if responder == nil {
		return nil
	}
	_, err := responder(data)

	return err
}

func (s *fakeSignaler) methods() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	methods := make([]string, 0, len(s.requests))
	for _, req := range s.requests {
		methods = append(methods, req.method)
	}
	return methods
}

func (s *fakeSignaler) lastRequest(method string) (fakeRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.requests) - 1; i >= 0; i-- {
		if s.requests[i].method == method {
			return s.requests[i], true
		}
	}
	return fakeRequest{}, false
}
