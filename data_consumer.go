package mediasoupclient

import (
	"context"
	"sync/atomic"

	"github.com/go-logr/logr"
)

type dataConsumerParams struct {
	id                   string
	dataProducerId       string
	dataChannel          DataChannel
	sctpStreamParameters SctpStreamParameters
	appData              H
	transport            dataController
}

// DataConsumer represents a data channel receiving messages from a mediasoup
// router through a receive transport.
//
// - @emits transportclose
// - @emits dataproducerclose
// - @emits open
// - @emits error - (err error)
// - @emits close
// - @emits message - (data []byte, isString bool)
// - @emits @close
type DataConsumer struct {
	IEventEmitter
	logger               logr.Logger
	id                   string
	dataProducerId       string
	dataChannel          DataChannel
	sctpStreamParameters SctpStreamParameters
	appData              H
	closed               uint32
	transport            dataController
	observer             IEventEmitter
}

func newDataConsumer(params dataConsumerParams) *DataConsumer {
	logger := NewLogger("DataConsumer")

	logger.V(1).Info("constructor()")

	if params.appData == nil {
		params.appData = H{}
	}

	dataConsumer := &DataConsumer{
		IEventEmitter:        NewEventEmitter(),
		logger:               logger,
		id:                   params.id,
		dataProducerId:       params.dataProducerId,
		dataChannel:          params.dataChannel,
		sctpStreamParameters: params.sctpStreamParameters,
		appData:              params.appData,
		transport:            params.transport,
		observer:             NewEventEmitter(),
	}

	dataConsumer.handleDataChannel()

	return dataConsumer
}

// Id returns data consumer id.
func (c *DataConsumer) Id() string {
	return c.id
}

// DataProducerId returns the associated data producer id.
func (c *DataConsumer) DataProducerId() string {
	return c.dataProducerId
}

// Closed returns whether the DataConsumer is closed.
func (c *DataConsumer) Closed() bool {
	return atomic.LoadUint32(&c.closed) > 0
}

// SctpStreamParameters returns SCTP stream parameters.
func (c *DataConsumer) SctpStreamParameters() SctpStreamParameters {
	return c.sctpStreamParameters
}

// ReadyState returns the DataChannel ready state.
func (c *DataConsumer) ReadyState() string {
	return c.dataChannel.ReadyState()
}

// Label returns DataChannel label.
func (c *DataConsumer) Label() string {
	return c.dataChannel.Label()
}

// Protocol returns DataChannel protocol.
func (c *DataConsumer) Protocol() string {
	return c.dataChannel.Protocol()
}

// AppData returns app custom data.
func (c *DataConsumer) AppData() H {
	return c.appData
}

// Observer.
//
// - @emits close
func (c *DataConsumer) Observer() IEventEmitter {
	return c.observer
}

// Close the data consumer.
func (c *DataConsumer) Close(ctx context.Context) (err error) {
	if atomic.CompareAndSwapUint32(&c.closed, 0, 1) {
		c.logger.V(1).Info("close()")

		if err = c.dataChannel.Close(); err != nil {
			c.logger.Error(err, "data channel close failed")
		}
		if err = c.transport.closeDataConsumer(ctx, c); err != nil {
			c.logger.Error(err, "data consumer close failed")
		}

		c.Emit("@close")
		c.RemoveAllListeners()

		// Emit observer event.
		c.observer.SafeEmit("close")
		c.observer.RemoveAllListeners()
	}
	return
}

// transportClosed is called when transport was closed.
func (c *DataConsumer) transportClosed() {
	if atomic.CompareAndSwapUint32(&c.closed, 0, 1) {
		c.logger.V(1).Info("transportClosed()")

		_ = c.dataChannel.Close()

		c.SafeEmit("transportclose")
		c.RemoveAllListeners()

		// Emit observer event.
		c.observer.SafeEmit("close")
		c.observer.RemoveAllListeners()
	}
}

// dataProducerClosed is called when the server closed the data consumer.
func (c *DataConsumer) dataProducerClosed() {
	if atomic.CompareAndSwapUint32(&c.closed, 0, 1) {
		c.logger.V(1).Info("dataProducerClosed()")

		_ = c.dataChannel.Close()

		c.transport.dataConsumerClosed(c)

		c.SafeEmit("@close")
		c.SafeEmit("dataproducerclose")
		c.RemoveAllListeners()

		// Emit observer event.
		c.observer.SafeEmit("close")
		c.observer.RemoveAllListeners()
	}
}

func (c *DataConsumer) handleDataChannel() {
	c.dataChannel.OnOpen(func() {
		if c.Closed() {
			return
		}
		c.SafeEmit("open")
	})

	c.dataChannel.OnError(func(err error) {
		if c.Closed() {
			return
		}
		c.logger.Error(err, "DataChannel error")

		c.SafeEmit("error", err)
	})

	c.dataChannel.OnClose(func() {
		if c.Closed() {
			return
		}
		c.logger.Info("DataChannel closed")

		c.SafeEmit("close")
	})

	c.dataChannel.OnMessage(func(data []byte, isString bool) {
		if c.Closed() {
			return
		}
		c.SafeEmit("message", data, isString)
	})
}
