package mediasoupclient

// ProducerOptions define options to create a producer.
type ProducerOptions struct {
	// Track is the local track to send. Mandatory.
	Track MediaTrack

	// Encodings is the encodings to send, more than one means simulcast.
	// Default one encoding.
	Encodings []*RtpEncodingParameters

	// CodecOptions is the codec options of the sender.
	CodecOptions *ProducerCodecOptions

	// Codec is the codec to use, it must be one of the codecs of
	// Device.RtpCapabilities(). Default the first codec the router supports.
	Codec *RtpCodecCapability

	// AppData is custom application data.
	AppData H
}

// ProducerCodecOptions are applied to the remote answer of a send transport.
type ProducerCodecOptions struct {
	OpusStereo              *bool  `json:"opusStereo,omitempty"`
	OpusFec                 *bool  `json:"opusFec,omitempty"`
	OpusDtx                 *bool  `json:"opusDtx,omitempty"`
	OpusMaxPlaybackRate     uint32 `json:"opusMaxPlaybackRate,omitempty"`
	OpusMaxAverageBitrate   uint32 `json:"opusMaxAverageBitrate,omitempty"`
	OpusPtime               uint32 `json:"opusPtime,omitempty"`
	VideoGoogleStartBitrate uint32 `json:"videoGoogleStartBitrate,omitempty"`
	VideoGoogleMaxBitrate   uint32 `json:"videoGoogleMaxBitrate,omitempty"`
	VideoGoogleMinBitrate   uint32 `json:"videoGoogleMinBitrate,omitempty"`
}

// ProducerScore define "score" event data
type ProducerScore struct {
	// EncodingIdx is the index of the RTP stream in the rtpParameters.encodings
	// array of the producer.
	EncodingIdx uint32 `json:"encodingIdx"`

	// Ssrc of the RTP stream.
	Ssrc uint32 `json:"ssrc,omitempty"`

	// Rid of the RTP stream.
	Rid string `json:"rid,omitempty"`

	// Score of the RTP stream.
	Score uint8 `json:"score"`
}

// ConsumerOptions define options to create a consumer.
type ConsumerOptions struct {
	// Id is the id of the server side consumer. When empty the transport
	// requests "consume" to the signaler and takes id, kind and RTP parameters
	// from the response.
	Id string `json:"id,omitempty"`

	// ProducerId is the id of the server side producer. Mandatory.
	ProducerId string `json:"producerId"`

	// Kind is the media kind.
	Kind MediaKind `json:"kind,omitempty"`

	// RtpParameters is the receive RTP parameters of the server side consumer.
	RtpParameters *RtpParameters `json:"rtpParameters,omitempty"`

	// StreamId groups tracks for synchronization. Default the RTCP cname of
	// the RTP parameters.
	StreamId string `json:"streamId,omitempty"`

	// ProducerPaused tells whether the server side producer is paused.
	ProducerPaused bool `json:"producerPaused,omitempty"`

	// AppData is custom application data.
	AppData H `json:"appData,omitempty"`
}

// ConsumerScore define "score" event data
type ConsumerScore struct {
	// Score of the RTP stream of the consumer.
	Score uint8 `json:"score"`

	// ProducerScore is the score of the currently selected RTP stream of the
	// producer.
	ProducerScore uint8 `json:"producerScore"`

	// ProducerScores is the scores of all RTP streams in the producer ordered
	// by encoding (just useful when the producer uses simulcast).
	ProducerScores []uint8 `json:"producerScores,omitempty"`
}

// ConsumerLayers define "layerschange" event data.
type ConsumerLayers struct {
	// SpatialLayer is the spatial layer index (from 0 to N).
	SpatialLayer uint8 `json:"spatialLayer"`

	// TemporalLayer is the temporal layer index (from 0 to N).
	TemporalLayer uint8 `json:"temporalLayer"`
}

// DataProducerOptions define options to create a data producer.
type DataProducerOptions struct {
	// Ordered tells whether data messages must be sent in order. Default true,
	// false when MaxPacketLifeTime or MaxRetransmits is given.
	Ordered *bool `json:"ordered,omitempty"`

	// MaxPacketLifeTime is the time (in milliseconds) after which a message
	// stops being retransmitted.
	MaxPacketLifeTime uint16 `json:"maxPacketLifeTime,omitempty"`

	// MaxRetransmits is the maximum number of times a message will be
	// retransmitted.
	MaxRetransmits uint16 `json:"maxRetransmits,omitempty"`

	// Label is the DataChannel label.
	Label string `json:"label,omitempty"`

	// Protocol is the DataChannel sub-protocol.
	Protocol string `json:"protocol,omitempty"`

	// AppData is custom application data.
	AppData H `json:"appData,omitempty"`
}

// DataConsumerOptions define options to create a data consumer.
type DataConsumerOptions struct {
	// Id is the id of the server side data consumer. Mandatory.
	Id string `json:"id"`

	// DataProducerId is the id of the server side data producer. Mandatory.
	DataProducerId string `json:"dataProducerId"`

	// SctpStreamParameters is the SCTP parameters of the server side data
	// consumer.
	SctpStreamParameters SctpStreamParameters `json:"sctpStreamParameters"`

	// Label is the DataChannel label.
	Label string `json:"label,omitempty"`

	// Protocol is the DataChannel sub-protocol.
	Protocol string `json:"protocol,omitempty"`

	// AppData is custom application data.
	AppData H `json:"appData,omitempty"`
}
