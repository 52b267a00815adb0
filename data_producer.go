package mediasoupclient

import (
	"context"
	"sync/atomic"

	"github.com/go-logr/logr"
)

// dataController is implemented by the transport owning data producers and
// data consumers.
type dataController interface {
	closeDataProducer(ctx context.Context, dataProducer *DataProducer) error
	closeDataConsumer(ctx context.Context, dataConsumer *DataConsumer) error
	dataConsumerClosed(dataConsumer *DataConsumer)
}

type dataProducerParams struct {
	id                   string
	dataChannel          DataChannel
	sctpStreamParameters SctpStreamParameters
	appData              H
	transport            dataController
}

// DataProducer represents a data channel sending messages to a mediasoup
// router through a send transport.
//
// - @emits transportclose
// - @emits open
// - @emits error - (err error)
// - @emits close
// - @emits bufferedamountlow - (bufferedAmount uint64)
// - @emits @close
type DataProducer struct {
	IEventEmitter
	logger               logr.Logger
	id                   string
	dataChannel          DataChannel
	sctpStreamParameters SctpStreamParameters
	appData              H
	closed               uint32
	transport            dataController
	observer             IEventEmitter
}

func newDataProducer(params dataProducerParams) *DataProducer {
	logger := NewLogger("DataProducer")

	logger.V(1).Info("constructor()")

	if params.appData == nil {
		params.appData = H{}
	}

	dataProducer := &DataProducer{
		IEventEmitter:        NewEventEmitter(),
		logger:               logger,
		id:                   params.id,
		dataChannel:          params.dataChannel,
		sctpStreamParameters: params.sctpStreamParameters,
		appData:              params.appData,
		transport:            params.transport,
		observer:             NewEventEmitter(),
	}

	dataProducer.handleDataChannel()

	return dataProducer
}

// Id returns data producer id.
func (p *DataProducer) Id() string {
	return p.id
}

// Closed returns whether the DataProducer is closed.
func (p *DataProducer) Closed() bool {
	return atomic.LoadUint32(&p.closed) > 0
}

// SctpStreamParameters returns SCTP stream parameters.
func (p *DataProducer) SctpStreamParameters() SctpStreamParameters {
	return p.sctpStreamParameters
}

// ReadyState returns the DataChannel ready state.
func (p *DataProducer) ReadyState() string {
	return p.dataChannel.ReadyState()
}

// Label returns DataChannel label.
func (p *DataProducer) Label() string {
	return p.dataChannel.Label()
}

// Protocol returns DataChannel protocol.
func (p *DataProducer) Protocol() string {
	return p.dataChannel.Protocol()
}

// BufferedAmount returns the number of bytes queued to be sent.
func (p *DataProducer) BufferedAmount() uint64 {
	return p.dataChannel.BufferedAmount()
}

// SetBufferedAmountLowThreshold sets the threshold of "bufferedamountlow".
func (p *DataProducer) SetBufferedAmountLowThreshold(threshold uint64) {
	p.dataChannel.SetBufferedAmountLowThreshold(threshold)
}

// AppData returns app custom data.
func (p *DataProducer) AppData() H {
	return p.appData
}

// Observer.
//
// - @emits close
func (p *DataProducer) Observer() IEventEmitter {
	return p.observer
}

// Close the data producer.
func (p *DataProducer) Close(ctx context.Context) (err error) {
	if atomic.CompareAndSwapUint32(&p.closed, 0, 1) {
		p.logger.V(1).Info("close()")

		if err = p.dataChannel.Close(); err != nil {
			p.logger.Error(err, "data channel close failed")
		}
		if err = p.transport.closeDataProducer(ctx, p); err != nil {
			p.logger.Error(err, "data producer close failed")
		}

		p.Emit("@close")
		p.RemoveAllListeners()

		// Emit observer event.
		p.observer.SafeEmit("close")
		p.observer.RemoveAllListeners()
	}
	return
}

// transportClosed is called when transport was closed.
func (p *DataProducer) transportClosed() {
	if atomic.CompareAndSwapUint32(&p.closed, 0, 1) {
		p.logger.V(1).Info("transportClosed()")

		_ = p.dataChannel.Close()

		p.SafeEmit("transportclose")
		p.RemoveAllListeners()

		// Emit observer event.
		p.observer.SafeEmit("close")
		p.observer.RemoveAllListeners()
	}
}

// Send binary data.
func (p *DataProducer) Send(data []byte) error {
	p.logger.V(1).Info("send()")

	if p.Closed() {
		return NewInvalidStateError("closed")
	}
	if err := p.dataChannel.Send(data); err != nil {
		return NewEngineError(err, "send failed")
	}
	return nil
}

// SendText sends text.
func (p *DataProducer) SendText(message string) error {
	p.logger.V(1).Info("sendText()")

	if p.Closed() {
		return NewInvalidStateError("closed")
	}
	if err := p.dataChannel.SendText(message); err != nil {
		return NewEngineError(err, "send failed")
	}
	return nil
}

func (p *DataProducer) handleDataChannel() {
	p.dataChannel.OnOpen(func() {
		if p.Closed() {
			return
		}
		p.SafeEmit("open")
	})

	p.dataChannel.OnError(func(err error) {
		if p.Closed() {
			return
		}
		p.logger.Error(err, "DataChannel error")

		p.SafeEmit("error", err)
	})

	p.dataChannel.OnClose(func() {
		if p.Closed() {
			return
		}
		p.logger.Info("DataChannel closed")

		p.SafeEmit("close")
	})

	p.dataChannel.OnBufferedAmountLow(func() {
		if p.Closed() {
			return
		}
		p.SafeEmit("bufferedamountlow", p.dataChannel.BufferedAmount())
	})
}
