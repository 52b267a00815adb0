package mediasoupclient

// SctpCapabilities are the SCTP capabilities of the local endpoint.
type SctpCapabilities struct {
	NumStreams NumSctpStreams `json:"numStreams"`
}

// NumSctpStreams are part of the SCTP INIT+ACK handshake. OS is the initial
// number of outgoing SCTP streams, MIS the maximum number of incoming ones.
//
// libwebrtc does not enable SCTP_ADD_STREAMS so both are 1024 for endpoints
// that want to open many DataChannels.
type NumSctpStreams struct {
	// OS is the initially requested number of outgoing SCTP streams.
	OS uint16 `json:"OS"`

	// MIS is the maximum number of incoming SCTP streams.
	MIS uint16 `json:"MIS"`
}

// SctpParameters are the SCTP parameters of the server side transport.
type SctpParameters struct {
	// Port must always equal 5000.
	Port uint16 `json:"port"`

	// OS is the initially requested number of outgoing SCTP streams.
	OS uint16 `json:"OS"`

	// MIS is the maximum number of incoming SCTP streams.
	MIS uint16 `json:"MIS"`

	// MaxMessageSize is the maximum allowed size for SCTP messages.
	MaxMessageSize uint32 `json:"maxMessageSize"`
}

// SctpStreamParameters describe the reliability of a certain SCTP stream.
// If ordered is true then maxPacketLifeTime and maxRetransmits must be
// unset. If ordered is false, only one of maxPacketLifeTime or maxRetransmits
// can be set.
type SctpStreamParameters struct {
	// StreamId is the SCTP stream id.
	StreamId uint16 `json:"streamId"`

	// Ordered tells whether data messages must be received in order. If true
	// the messages will be sent reliably. Default true.
	Ordered *bool `json:"ordered,omitempty"`

	// MaxPacketLifeTime, when ordered is false, indicates the time (in
	// milliseconds) after which a SCTP packet will stop being retransmitted.
	MaxPacketLifeTime uint16 `json:"maxPacketLifeTime,omitempty"`

	// MaxRetransmits, when ordered is false, indicates the maximum number of
	// times a packet will be retransmitted.
	MaxRetransmits uint16 `json:"maxRetransmits,omitempty"`

	// Label is the DataChannel label.
	Label string `json:"label,omitempty"`

	// Protocol is the DataChannel sub-protocol.
	Protocol string `json:"protocol,omitempty"`
}
