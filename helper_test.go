package mediasoupclient

import (
	"encoding/json"

	"github.com/google/uuid"
)

func mustParse[T any](data string) T {
	var v T

	if err := json.Unmarshal([]byte(data), &v); err != nil {
		panic(err)
	}
	return v
}

func generateRouterRtpCapabilities() *RtpCapabilities {
	return mustParse[*RtpCapabilities](`{
		"codecs": [
			{
				"mimeType": "audio/opus",
				"kind": "audio",
				"preferredPayloadType": 100,
				"clockRate": 48000,
				"channels": 2,
				"rtcpFeedback": [{ "type": "transport-cc" }],
				"parameters": { "useinbandfec": 1, "foo": "bar" }
			},
			{
				"mimeType": "video/VP8",
				"kind": "video",
				"preferredPayloadType": 101,
				"clockRate": 90000,
				"rtcpFeedback": [
					{ "type": "nack" },
					{ "type": "nack", "parameter": "pli" },
					{ "type": "ccm", "parameter": "fir" },
					{ "type": "goog-remb" },
					{ "type": "transport-cc" }
				],
				"parameters": { "x-google-start-bitrate": 1500 }
			},
			{
				"mimeType": "video/rtx",
				"kind": "video",
				"preferredPayloadType": 102,
				"clockRate": 90000,
				"rtcpFeedback": [],
				"parameters": { "apt": 101 }
			},
			{
				"mimeType": "video/H264",
				"kind": "video",
				"preferredPayloadType": 103,
				"clockRate": 90000,
				"rtcpFeedback": [
					{ "type": "nack" },
					{ "type": "nack", "parameter": "pli" },
					{ "type": "ccm", "parameter": "fir" },
					{ "type": "goog-remb" },
					{ "type": "transport-cc" }
				],
				"parameters": {
					"level-asymmetry-allowed": 1,
					"packetization-mode": 1,
					"profile-level-id": "42e01f"
				}
			},
			{
				"mimeType": "video/rtx",
				"kind": "video",
				"preferredPayloadType": 104,
				"clockRate": 90000,
				"rtcpFeedback": [],
				"parameters": { "apt": 103 }
			}
		],
		"headerExtensions": [
			{ "kind": "audio", "uri": "urn:ietf:params:rtp-hdrext:sdes:mid", "preferredId": 1, "direction": "sendrecv" },
			{ "kind": "video", "uri": "urn:ietf:params:rtp-hdrext:sdes:mid", "preferredId": 1, "direction": "sendrecv" },
			{ "kind": "video", "uri": "urn:ietf:params:rtp-hdrext:sdes:rtp-stream-id", "preferredId": 2, "direction": "recvonly" },
			{ "kind": "video", "uri": "urn:ietf:params:rtp-hdrext:sdes:repaired-rtp-stream-id", "preferredId": 3, "direction": "recvonly" },
			{ "kind": "audio", "uri": "http://www.webrtc.org/experiments/rtp-hdrext/abs-send-time", "preferredId": 4, "direction": "sendrecv" },
			{ "kind": "video", "uri": "http://www.webrtc.org/experiments/rtp-hdrext/abs-send-time", "preferredId": 4, "direction": "sendrecv" },
			{ "kind": "audio", "uri": "http://www.ietf.org/id/draft-holmer-rmcat-transport-wide-cc-extensions-01", "preferredId": 5, "direction": "recvonly" },
			{ "kind": "video", "uri": "http://www.ietf.org/id/draft-holmer-rmcat-transport-wide-cc-extensions-01", "preferredId": 5, "direction": "sendrecv" },
			{ "kind": "video", "uri": "http://tools.ietf.org/html/draft-ietf-avtext-framemarking-07", "preferredId": 6, "direction": "sendrecv" },
			{ "kind": "video", "uri": "urn:ietf:params:rtp-hdrext:framemarking", "preferredId": 7, "direction": "sendrecv" },
			{ "kind": "audio", "uri": "urn:ietf:params:rtp-hdrext:ssrc-audio-level", "preferredId": 10, "direction": "sendrecv" },
			{ "kind": "video", "uri": "urn:3gpp:video-orientation", "preferredId": 11, "direction": "sendrecv" },
			{ "kind": "video", "uri": "urn:ietf:params:rtp-hdrext:toffset", "preferredId": 12, "direction": "sendrecv" }
		]
	}`)
}

func generateNativeRtpCapabilities() *RtpCapabilities {
	return mustParse[*RtpCapabilities](`{
		"codecs": [
			{
				"mimeType": "audio/opus",
				"kind": "audio",
				"preferredPayloadType": 111,
				"clockRate": 48000,
				"channels": 2,
				"rtcpFeedback": [{ "type": "transport-cc" }],
				"parameters": { "minptime": 10, "useinbandfec": 1 }
			},
			{
				"mimeType": "audio/ISAC",
				"kind": "audio",
				"preferredPayloadType": 103,
				"clockRate": 16000,
				"channels": 1,
				"rtcpFeedback": [{ "type": "transport-cc" }],
				"parameters": {}
			},
			{
				"mimeType": "audio/CN",
				"kind": "audio",
				"preferredPayloadType": 106,
				"clockRate": 32000,
				"channels": 1,
				"rtcpFeedback": [{ "type": "transport-cc" }],
				"parameters": {}
			},
			{
				"mimeType": "video/VP8",
				"kind": "video",
				"preferredPayloadType": 96,
				"clockRate": 90000,
				"rtcpFeedback": [
					{ "type": "goog-remb" },
					{ "type": "transport-cc" },
					{ "type": "ccm", "parameter": "fir" },
					{ "type": "nack" },
					{ "type": "nack", "parameter": "pli" }
				],
				"parameters": { "baz": "1234abcd" }
			},
			{
				"mimeType": "video/rtx",
				"kind": "video",
				"preferredPayloadType": 97,
				"clockRate": 90000,
				"rtcpFeedback": [],
				"parameters": { "apt": 96 }
			}
		],
		"headerExtensions": [
			{ "kind": "audio", "uri": "urn:ietf:params:rtp-hdrext:sdes:mid", "preferredId": 1 },
			{ "kind": "video", "uri": "urn:ietf:params:rtp-hdrext:sdes:mid", "preferredId": 1 },
			{ "kind": "video", "uri": "urn:ietf:params:rtp-hdrext:toffset", "preferredId": 2 },
			{ "kind": "video", "uri": "http://www.webrtc.org/experiments/rtp-hdrext/abs-send-time", "preferredId": 3 },
			{ "kind": "video", "uri": "urn:3gpp:video-orientation", "preferredId": 4 },
			{ "kind": "video", "uri": "http://www.ietf.org/id/draft-holmer-rmcat-transport-wide-cc-extensions-01", "preferredId": 5 },
			{ "kind": "video", "uri": "http://www.webrtc.org/experiments/rtp-hdrext/playout-delay", "preferredId": 6 },
			{ "kind": "video", "uri": "http://www.webrtc.org/experiments/rtp-hdrext/video-content-type", "preferredId": 7 },
			{ "kind": "video", "uri": "http://www.webrtc.org/experiments/rtp-hdrext/video-timing", "preferredId": 8 },
			{ "kind": "audio", "uri": "urn:ietf:params:rtp-hdrext:ssrc-audio-level", "preferredId": 10 }
		]
	}`)
}

func generateTransportRemoteParameters() TransportOptions {
	options := mustParse[TransportOptions](`{
		"iceParameters": {
			"iceLite": true,
			"password": "yku5ej8nvfaor28lvtrabcx0wkrpkztz",
			"usernameFragment": "h3hk1iz6qqlnqlne"
		},
		"iceCandidates": [
			{ "foundation": "udpcandidate", "ip": "9.9.9.9", "port": 40533, "priority": 1078862079, "protocol": "udp", "type": "host" },
			{ "foundation": "udpcandidate", "ip": "9.9.9.9", "port": 41333, "priority": 1078862089, "protocol": "udp", "type": "host" }
		],
		"dtlsParameters": {
			"fingerprints": [
				{ "algorithm": "sha-256", "value": "A9:F4:E0:D2:74:D3:0F:D9:CA:A5:2F:9F:7F:47:FA:F0:C4:72:DD:73:49:D0:3B:14:90:20:51:30:1B:90:8E:71" }
			],
			"role": "auto"
		},
		"sctpParameters": { "port": 5000, "OS": 1024, "MIS": 1024, "maxMessageSize": 2000000 }
	}`)
	options.Id = uuid.NewString()

	return options
}

func generateConsumerRemoteParameters(mimeType string) ConsumerOptions {
	var options ConsumerOptions

	switch mimeType {
	case "audio/opus":
		options = mustParse[ConsumerOptions](`{
			"kind": "audio",
			"rtpParameters": {
				"codecs": [
					{
						"mimeType": "audio/opus",
						"payloadType": 100,
						"clockRate": 48000,
						"channels": 2,
						"rtcpFeedback": [{ "type": "transport-cc" }],
						"parameters": { "useinbandfec": 1, "foo": "bar" }
					}
				],
				"encodings": [{ "ssrc": 46687003 }],
				"headerExtensions": [
					{ "uri": "urn:ietf:params:rtp-hdrext:sdes:mid", "id": 1 },
					{ "uri": "http://www.ietf.org/id/draft-holmer-rmcat-transport-wide-cc-extensions-01", "id": 5 },
					{ "uri": "urn:ietf:params:rtp-hdrext:ssrc-audio-level", "id": 10 }
				],
				"rtcp": { "cname": "wB4Ql4lrsxYLjzuN", "reducedSize": true, "mux": true }
			}
		}`)

	case "audio/ISAC":
		options = mustParse[ConsumerOptions](`{
			"kind": "audio",
			"rtpParameters": {
				"codecs": [
					{
						"mimeType": "audio/ISAC",
						"payloadType": 111,
						"clockRate": 16000,
						"channels": 1,
						"rtcpFeedback": [{ "type": "transport-cc" }],
						"parameters": {}
					}
				],
				"encodings": [{ "ssrc": 46687004 }],
				"headerExtensions": [
					{ "uri": "urn:ietf:params:rtp-hdrext:sdes:mid", "id": 1 }
				],
				"rtcp": { "cname": "wB4Ql4lrsxYLjzuN", "reducedSize": true, "mux": true }
			}
		}`)

	case "video/VP8":
		options = mustParse[ConsumerOptions](`{
			"kind": "video",
			"rtpParameters": {
				"codecs": [
					{
						"mimeType": "video/VP8",
						"payloadType": 101,
						"clockRate": 90000,
						"rtcpFeedback": [
							{ "type": "nack" },
							{ "type": "nack", "parameter": "pli" },
							{ "type": "ccm", "parameter": "fir" },
							{ "type": "goog-remb" },
							{ "type": "transport-cc" }
						],
						"parameters": { "x-google-start-bitrate": 1500 }
					},
					{
						"mimeType": "video/rtx",
						"payloadType": 102,
						"clockRate": 90000,
						"rtcpFeedback": [],
						"parameters": { "apt": 101 }
					}
				],
				"encodings": [{ "ssrc": 99991111, "rtx": { "ssrc": 99991112 } }],
				"headerExtensions": [
					{ "uri": "urn:ietf:params:rtp-hdrext:sdes:mid", "id": 1 },
					{ "uri": "http://www.webrtc.org/experiments/rtp-hdrext/abs-send-time", "id": 4 },
					{ "uri": "http://www.ietf.org/id/draft-holmer-rmcat-transport-wide-cc-extensions-01", "id": 5 },
					{ "uri": "urn:3gpp:video-orientation", "id": 11 },
					{ "uri": "urn:ietf:params:rtp-hdrext:toffset", "id": 12 }
				],
				"rtcp": { "cname": "wB4Ql4lrsxYLjzuN", "reducedSize": true, "mux": true }
			}
		}`)

	default:
		panic("unknown mimeType " + mimeType)
	}

	options.Id = uuid.NewString()
	options.ProducerId = uuid.NewString()

	return options
}

func generateDataConsumerRemoteParameters() DataConsumerOptions {
	return DataConsumerOptions{
		Id:             uuid.NewString(),
		DataProducerId: uuid.NewString(),
		SctpStreamParameters: SctpStreamParameters{
			StreamId:          666,
			MaxPacketLifeTime: 5000,
		},
	}
}
