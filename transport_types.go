package mediasoupclient

// TransportOptions define options to create a send or receive transport.
// They are the parameters of the server side WebRtcTransport as returned by
// the application signaling.
type TransportOptions struct {
	// Id is the id of the server side transport.
	Id string `json:"id"`

	// IceParameters is the ICE parameters of the server side transport.
	IceParameters IceParameters `json:"iceParameters"`

	// IceCandidates is the ICE candidates of the server side transport.
	IceCandidates []IceCandidate `json:"iceCandidates"`

	// DtlsParameters is the DTLS parameters of the server side transport.
	DtlsParameters DtlsParameters `json:"dtlsParameters"`

	// SctpParameters is the SCTP parameters of the server side transport. Nil
	// means SCTP is not enabled.
	SctpParameters *SctpParameters `json:"sctpParameters,omitempty"`

	// IceServers is the list of TURN servers. It's appended to the list of
	// local ICE servers.
	IceServers []IceServer `json:"iceServers,omitempty"`

	// IceTransportPolicy is the ICE transport policy.
	IceTransportPolicy IceTransportPolicy `json:"iceTransportPolicy,omitempty"`

	// AppData is custom application data.
	AppData H `json:"appData,omitempty"`
}

// TransportDirection is the direction of a transport, from the point of view
// of the local endpoint.
type TransportDirection string

const (
	TransportDirectionSend TransportDirection = "send"
	TransportDirectionRecv TransportDirection = "recv"
)

// ConnectionState is the connection state of a transport.
type ConnectionState string

const (
	ConnectionStateNew          ConnectionState = "new"
	ConnectionStateConnecting   ConnectionState = "connecting"
	ConnectionStateConnected    ConnectionState = "connected"
	ConnectionStateFailed       ConnectionState = "failed"
	ConnectionStateDisconnected ConnectionState = "disconnected"
	ConnectionStateClosed       ConnectionState = "closed"
)

type IceParameters struct {
	UsernameFragment string `json:"usernameFragment"`
	Password         string `json:"password"`
	IceLite          bool   `json:"iceLite,omitempty"`
}

type IceCandidate struct {
	Foundation string            `json:"foundation"`
	Priority   uint32            `json:"priority"`
	Address    string            `json:"address"`
	Ip         string            `json:"ip,omitempty"`
	Protocol   TransportProtocol `json:"protocol"`
	Port       uint16            `json:"port"`
	// alway "host"
	Type string `json:"type,omitempty"`
	// "passive" | ""
	TcpType string `json:"tcpType,omitempty"`
}

// CandidateAddress returns the address of the candidate, falling back to the
// deprecated ip field.
func (c IceCandidate) CandidateAddress() string {
	if len(c.Address) > 0 {
		return c.Address
	}
	return c.Ip
}

// TransportProtocol is the protocol of an ICE candidate.
type TransportProtocol string

const (
	TransportProtocolUDP TransportProtocol = "udp"
	TransportProtocolTCP TransportProtocol = "tcp"
)

type DtlsParameters struct {
	Role         DtlsRole          `json:"role,omitempty"`
	Fingerprints []DtlsFingerprint `json:"fingerprints"`
}

// DtlsFingerprint defines the hash function algorithm (as defined in the
// "Hash function Textual Names" registry initially specified in RFC 4572 Section 8)
// and its corresponding certificate fingerprint value (in lowercase hex string as
// expressed utilizing the syntax of "fingerprint" in RFC 4572 Section 5).
type DtlsFingerprint struct {
	Algorithm string `json:"algorithm"`
	Value     string `json:"value"`
}

type DtlsRole string

const (
	DtlsRoleAuto   DtlsRole = "auto"
	DtlsRoleClient DtlsRole = "client"
	DtlsRoleServer DtlsRole = "server"
)

// IceServer is a STUN or TURN server.
type IceServer struct {
	Urls       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

type IceTransportPolicy string

const (
	IceTransportPolicyAll   IceTransportPolicy = "all"
	IceTransportPolicyRelay IceTransportPolicy = "relay"
)

// StatsReport is a stats report of the media engine keyed by stats id.
type StatsReport map[string]interface{}
