package mediasoupclient

import (
	"context"
	"encoding/json"
)

// Signaler is the application signaling channel to the server side.
// Implementations own their timeouts; a timeout is returned as an error.
type Signaler interface {
	Request(ctx context.Context, method string, data interface{}) (json.RawMessage, error)
	Notify(ctx context.Context, method string, data interface{}) error
}

// Signaling methods, named after the mediasoup-demo protocol.
const (
	MethodGetRouterRtpCapabilities = "getRouterRtpCapabilities"
	MethodConnectWebRtcTransport   = "connectWebRtcTransport"
	MethodRestartIce               = "restartIce"
	MethodProduce                  = "produce"
	MethodProduceData              = "produceData"
	MethodConsume                  = "consume"
	MethodPauseProducer            = "pauseProducer"
	MethodResumeProducer           = "resumeProducer"
	MethodCloseProducer            = "closeProducer"
	MethodPauseConsumer            = "pauseConsumer"
	MethodResumeConsumer           = "resumeConsumer"
	MethodCloseConsumer            = "closeConsumer"
	MethodCloseDataProducer        = "closeDataProducer"
	MethodCloseDataConsumer        = "closeDataConsumer"
)

// Server notifications routed by Transport.HandleNotification.
const (
	NotificationProducerScore         = "producerScore"
	NotificationProducerPaused        = "producerPaused"
	NotificationProducerResumed       = "producerResumed"
	NotificationConsumerScore         = "consumerScore"
	NotificationConsumerPaused        = "consumerPaused"
	NotificationConsumerResumed       = "consumerResumed"
	NotificationConsumerClosed        = "consumerClosed"
	NotificationConsumerLayersChanged = "consumerLayersChanged"
	NotificationDataConsumerClosed    = "dataConsumerClosed"
)

type connectTransportRequest struct {
	TransportId    string         `json:"transportId"`
	DtlsParameters DtlsParameters `json:"dtlsParameters"`
}

type produceRequest struct {
	TransportId   string         `json:"transportId"`
	Kind          MediaKind      `json:"kind"`
	RtpParameters *RtpParameters `json:"rtpParameters"`
	AppData       H              `json:"appData,omitempty"`
}

type produceDataRequest struct {
	TransportId          string               `json:"transportId"`
	SctpStreamParameters SctpStreamParameters `json:"sctpStreamParameters"`
	Label                string               `json:"label"`
	Protocol             string               `json:"protocol"`
	AppData              H                    `json:"appData,omitempty"`
}

type consumeRequest struct {
	TransportId     string           `json:"transportId"`
	ProducerId      string           `json:"producerId"`
	RtpCapabilities *RtpCapabilities `json:"rtpCapabilities"`
	Paused          bool             `json:"paused,omitempty"`
}

type idResponse struct {
	Id string `json:"id"`
}

type consumeResponse struct {
	Id             string         `json:"id"`
	ProducerId     string         `json:"producerId"`
	Kind           MediaKind      `json:"kind"`
	RtpParameters  *RtpParameters `json:"rtpParameters"`
	ProducerPaused bool           `json:"producerPaused,omitempty"`
	AppData        H              `json:"appData,omitempty"`
}

// signal sends a request and decodes the response into result (may be nil).
// Context errors are reported as Cancelled and any other failure as
// SignalingError. The call returns once ctx is done even if the signaler
// ignores it.
func signal(ctx context.Context, signaler Signaler, method string, data, result interface{}) error {
	if signaler == nil {
		return NewInvalidStateError("no signaler configured for %s", method)
	}

	type response struct {
		data json.RawMessage
		err  error
	}
	ch := make(chan response, 1)

	go func() {
		data, err := signaler.Request(ctx, method, data)
		ch <- response{data: data, err: err}
	}()

	var resp response

	select {
	case resp = <-ch:
	case <-ctx.Done():
		return NewCancelledError(ctx.Err(), "%s aborted", method)
	}
	if resp.err != nil {
		if ctx.Err() != nil {
			return NewCancelledError(ctx.Err(), "%s aborted", method)
		}
		return NewSignalingError(method, resp.err)
	}
	if result != nil {
		if err := unmarshalData(resp.data, result); err != nil {
			return NewSignalingError(method, err)
		}
	}
	return nil
}

// notify sends a notification. No response is awaited.
func notify(ctx context.Context, signaler Signaler, method string, data interface{}) error {
	if signaler == nil {
		return NewInvalidStateError("no signaler configured for %s", method)
	}
	if err := signaler.Notify(ctx, method, data); err != nil {
		if ctx.Err() != nil {
			return NewCancelledError(ctx.Err(), "%s aborted", method)
		}
		return NewSignalingError(method, err)
	}
	return nil
}
