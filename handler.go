package mediasoupclient

import (
	"context"
)

// MediaTrack is a local or remote media track of the media engine.
type MediaTrack interface {
	Id() string
	Kind() MediaKind
}

// EndableTrack is implemented by tracks that can end on their own (a device
// being unplugged, a remote stream going away).
type EndableTrack interface {
	MediaTrack
	Ended() bool
	OnEnded(func())
}

func trackEnded(track MediaTrack) bool {
	t, ok := track.(EndableTrack)
	return ok && t.Ended()
}

// DataChannel is a data channel of the media engine.
type DataChannel interface {
	Label() string
	Protocol() string
	ReadyState() string
	BufferedAmount() uint64
	SetBufferedAmountLowThreshold(th uint64)
	Send(data []byte) error
	SendText(text string) error
	Close() error

	OnOpen(func())
	OnClose(func())
	OnError(func(err error))
	OnMessage(func(data []byte, isString bool))
	OnBufferedAmountLow(func())
}

// HandlerFactory creates the media engine handler of a transport. Handlers
// are never shared between transports.
type HandlerFactory func() Handler

// Handler is the adapter between a transport and the media engine. Every
// method that changes the engine state is called from the transport queue,
// one at a time.
type Handler interface {
	Name() string
	Close() error

	GetNativeRtpCapabilities(ctx context.Context) (*RtpCapabilities, error)
	GetNativeSctpCapabilities(ctx context.Context) (*SctpCapabilities, error)

	Run(options HandlerRunOptions) error
	UpdateIceServers(ctx context.Context, iceServers []IceServer) error
	RestartIce(ctx context.Context, iceParameters IceParameters) error
	GetTransportStats(ctx context.Context) (StatsReport, error)

	Send(ctx context.Context, options HandlerSendOptions) (*HandlerSendResult, error)
	StopSending(ctx context.Context, localId string) error
	PauseSending(ctx context.Context, localId string) error
	ResumeSending(ctx context.Context, localId string) error
	ReplaceTrack(ctx context.Context, localId string, track MediaTrack) error
	SetMaxSpatialLayer(ctx context.Context, localId string, spatialLayer uint8) error
	SetRtpEncodingParameters(ctx context.Context, localId string, params RtpEncodingParameters) error
	GetSenderStats(ctx context.Context, localId string) (StatsReport, error)
	SendDataChannel(ctx context.Context, options HandlerSendDataChannelOptions) (*HandlerSendDataChannelResult, error)

	Receive(ctx context.Context, options []HandlerReceiveOptions) ([]HandlerReceiveResult, error)
	StopReceiving(ctx context.Context, localIds []string) error
	PauseReceiving(ctx context.Context, localIds []string) error
	ResumeReceiving(ctx context.Context, localIds []string) error
	GetReceiverStats(ctx context.Context, localId string) (StatsReport, error)
	ReceiveDataChannel(ctx context.Context, options HandlerReceiveDataChannelOptions) (*HandlerReceiveDataChannelResult, error)
}

// HandlerRunOptions binds a handler to a transport.
type HandlerRunOptions struct {
	Direction               TransportDirection
	IceParameters           IceParameters
	IceCandidates           []IceCandidate
	DtlsParameters          DtlsParameters
	SctpParameters          *SctpParameters
	IceServers              []IceServer
	IceTransportPolicy      IceTransportPolicy
	ExtendedRtpCapabilities *ExtendedRtpCapabilities

	// OnConnect is called by the first negotiation round with the local DTLS
	// parameters. The round goes on after it returns.
	OnConnect func(ctx context.Context, dtlsParameters DtlsParameters) error

	// OnConnectionStateChange is called with the mapped state of the engine
	// transport.
	OnConnectionStateChange func(state ConnectionState)
}

type HandlerSendOptions struct {
	Track        MediaTrack
	Encodings    []*RtpEncodingParameters
	CodecOptions *ProducerCodecOptions
	Codec        *RtpCodecCapability
}

type HandlerSendResult struct {
	LocalId       string
	RtpParameters *RtpParameters
}

type HandlerReceiveOptions struct {
	TrackId       string
	Kind          MediaKind
	RtpParameters *RtpParameters
	StreamId      string
}

type HandlerReceiveResult struct {
	LocalId string
	Track   MediaTrack
}

type HandlerSendDataChannelOptions struct {
	Ordered           *bool
	MaxPacketLifeTime uint16
	MaxRetransmits    uint16
	Label             string
	Protocol          string
}

type HandlerSendDataChannelResult struct {
	DataChannel          DataChannel
	SctpStreamParameters SctpStreamParameters
}

type HandlerReceiveDataChannelOptions struct {
	SctpStreamParameters SctpStreamParameters
	Label                string
	Protocol             string
}

type HandlerReceiveDataChannelResult struct {
	DataChannel DataChannel
}
