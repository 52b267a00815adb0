package mediasoupclient

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/go-logr/logr"
)

// consumerController is implemented by the transport owning a consumer.
type consumerController interface {
	pauseConsumer(ctx context.Context, consumer *Consumer) error
	resumeConsumer(ctx context.Context, consumer *Consumer) error
	closeConsumer(ctx context.Context, consumer *Consumer) error
	consumerClosed(consumer *Consumer)
	getConsumerStats(ctx context.Context, consumer *Consumer) (StatsReport, error)
}

type consumerParams struct {
	id             string
	localId        string
	producerId     string
	track          MediaTrack
	rtpParameters  *RtpParameters
	producerPaused bool
	appData        H
	transport      consumerController
}

// Consumer represents an audio or video remote source being received from a
// mediasoup router through a receive transport.
//
// - @emits transportclose
// - @emits producerclose
// - @emits producerpause
// - @emits producerresume
// - @emits score - (score *ConsumerScore)
// - @emits layerschange - (layers *ConsumerLayers)
// - @emits @close
type Consumer struct {
	IEventEmitter
	locker        sync.Mutex
	opLocker      sync.Mutex
	logger        logr.Logger
	id            string
	localId       string
	producerId    string
	kind          MediaKind
	track         MediaTrack
	rtpParameters *RtpParameters
	paused        bool
	remotePaused  bool
	score         *ConsumerScore
	layers        *ConsumerLayers
	appData       H
	closed        uint32
	transport     consumerController
	observer      IEventEmitter
}

func newConsumer(params consumerParams) *Consumer {
	logger := NewLogger("Consumer")

	logger.V(1).Info("constructor()")

	if params.appData == nil {
		params.appData = H{}
	}

	return &Consumer{
		IEventEmitter: NewEventEmitter(),
		logger:        logger,
		id:            params.id,
		localId:       params.localId,
		producerId:    params.producerId,
		kind:          params.track.Kind(),
		track:         params.track,
		rtpParameters: params.rtpParameters,
		remotePaused:  params.producerPaused,
		appData:       params.appData,
		transport:     params.transport,
		observer:      NewEventEmitter(),
	}
}

// Id returns consumer id.
func (consumer *Consumer) Id() string {
	return consumer.id
}

// LocalId returns the local id of the receiver in the media engine.
func (consumer *Consumer) LocalId() string {
	return consumer.localId
}

// ProducerId returns the id of the server side producer.
func (consumer *Consumer) ProducerId() string {
	return consumer.producerId
}

// Closed returns whether the Consumer is closed.
func (consumer *Consumer) Closed() bool {
	return atomic.LoadUint32(&consumer.closed) > 0
}

// Kind returns media kind.
func (consumer *Consumer) Kind() MediaKind {
	return consumer.kind
}

// Track returns the remote track.
func (consumer *Consumer) Track() MediaTrack {
	return consumer.track
}

// RtpParameters returns the RTP parameters the consumer receives with.
func (consumer *Consumer) RtpParameters() *RtpParameters {
	return clone(consumer.rtpParameters)
}

// Paused returns whether the Consumer is paused, locally or because the
// server side producer or consumer is paused.
func (consumer *Consumer) Paused() bool {
	consumer.locker.Lock()
	defer consumer.locker.Unlock()

	return consumer.paused || consumer.remotePaused
}

// LocalPaused returns whether the Consumer was paused with Pause.
func (consumer *Consumer) LocalPaused() bool {
	consumer.locker.Lock()
	defer consumer.locker.Unlock()

	return consumer.paused
}

// RemotePaused returns whether the server side paused the consumer.
func (consumer *Consumer) RemotePaused() bool {
	consumer.locker.Lock()
	defer consumer.locker.Unlock()

	return consumer.remotePaused
}

// Score returns the last consumer score, nil if none was received.
func (consumer *Consumer) Score() *ConsumerScore {
	consumer.locker.Lock()
	defer consumer.locker.Unlock()

	return consumer.score
}

// CurrentLayers returns the layers being received, nil if unknown.
func (consumer *Consumer) CurrentLayers() *ConsumerLayers {
	consumer.locker.Lock()
	defer consumer.locker.Unlock()

	return consumer.layers
}

// AppData returns app custom data.
func (consumer *Consumer) AppData() H {
	return consumer.appData
}

// Observer.
//
// - @emits close
// - @emits pause
// - @emits resume
// - @emits score - (score *ConsumerScore)
// - @emits layerschange - (layers *ConsumerLayers)
func (consumer *Consumer) Observer() IEventEmitter {
	return consumer.observer
}

// Close the consumer. The receiver is removed from the media engine and the
// server is notified with "closeConsumer".
func (consumer *Consumer) Close(ctx context.Context) (err error) {
	if atomic.CompareAndSwapUint32(&consumer.closed, 0, 1) {
		consumer.logger.V(1).Info("close()")

		if err = consumer.transport.closeConsumer(ctx, consumer); err != nil {
			consumer.logger.Error(err, "consumer close failed")
		}

		consumer.Emit("@close")
		consumer.RemoveAllListeners()

		// Emit observer event.
		consumer.observer.SafeEmit("close")
		consumer.observer.RemoveAllListeners()
	}

	return
}

// transportClosed is called when transport was closed.
func (consumer *Consumer) transportClosed() {
	if atomic.CompareAndSwapUint32(&consumer.closed, 0, 1) {
		consumer.logger.V(1).Info("transportClosed()")

		consumer.SafeEmit("transportclose")
		consumer.RemoveAllListeners()

		// Emit observer event.
		consumer.observer.SafeEmit("close")
		consumer.observer.RemoveAllListeners()
	}
}

// producerClosed is called when the server closed the consumer. The server is
// not notified back.
func (consumer *Consumer) producerClosed() {
	if atomic.CompareAndSwapUint32(&consumer.closed, 0, 1) {
		consumer.logger.V(1).Info("producerClosed()")

		consumer.transport.consumerClosed(consumer)

		consumer.SafeEmit("@close")
		consumer.SafeEmit("producerclose")
		consumer.RemoveAllListeners()

		// Emit observer event.
		consumer.observer.SafeEmit("close")
		consumer.observer.RemoveAllListeners()
	}
}

// GetStats returns the receiver stats of the media engine.
func (consumer *Consumer) GetStats(ctx context.Context) (StatsReport, error) {
	consumer.logger.V(1).Info("getStats()")

	if consumer.Closed() {
		return nil, NewInvalidStateError("closed")
	}

	return consumer.transport.getConsumerStats(ctx, consumer)
}

// Pause the consumer. The media engine stops receiving and the server is
// notified with "pauseConsumer"; a failed notification is only logged.
func (consumer *Consumer) Pause(ctx context.Context) (err error) {
	consumer.opLocker.Lock()
	defer consumer.opLocker.Unlock()

	consumer.logger.V(1).Info("pause()")

	if consumer.Closed() {
		return NewInvalidStateError("closed")
	}
	if consumer.LocalPaused() {
		return
	}
	if err = consumer.transport.pauseConsumer(ctx, consumer); err != nil {
		return
	}

	consumer.locker.Lock()
	wasPaused := consumer.paused || consumer.remotePaused
	consumer.paused = true
	consumer.locker.Unlock()

	// Emit observer event.
	if !wasPaused {
		consumer.observer.SafeEmit("pause")
	}

	return
}

// Resume the consumer.
func (consumer *Consumer) Resume(ctx context.Context) (err error) {
	consumer.opLocker.Lock()
	defer consumer.opLocker.Unlock()

	consumer.logger.V(1).Info("resume()")

	if consumer.Closed() {
		return NewInvalidStateError("closed")
	}
	if !consumer.LocalPaused() {
		return
	}
	if err = consumer.transport.resumeConsumer(ctx, consumer); err != nil {
		return
	}

	consumer.locker.Lock()
	consumer.paused = false
	nowPaused := consumer.remotePaused
	consumer.locker.Unlock()

	// Emit observer event.
	if !nowPaused {
		consumer.observer.SafeEmit("resume")
	}

	return
}

// setRemotePaused is called on "consumerPaused" and "consumerResumed"
// notifications.
func (consumer *Consumer) setRemotePaused(paused bool) {
	if consumer.Closed() {
		return
	}

	consumer.locker.Lock()
	wasRemotePaused := consumer.remotePaused
	wasPaused := consumer.paused || consumer.remotePaused
	consumer.remotePaused = paused
	nowPaused := consumer.paused || consumer.remotePaused
	consumer.locker.Unlock()

	if wasRemotePaused != paused {
		if paused {
			consumer.SafeEmit("producerpause")
		} else {
			consumer.SafeEmit("producerresume")
		}
	}

	if wasPaused == nowPaused {
		return
	}
	if nowPaused {
		consumer.observer.SafeEmit("pause")
	} else {
		consumer.observer.SafeEmit("resume")
	}
}

// updateScore is called on "consumerScore" notification.
func (consumer *Consumer) updateScore(data json.RawMessage) {
	score := &ConsumerScore{}

	if err := json.Unmarshal(data, score); err != nil {
		consumer.logger.Error(err, "failed to unmarshal score", "data", data)
		return
	}

	consumer.locker.Lock()
	consumer.score = score
	consumer.locker.Unlock()

	consumer.SafeEmit("score", score)

	// Emit observer event.
	consumer.observer.SafeEmit("score", score)
}

// updateLayers is called on "consumerLayersChanged" notification. Nil layers
// mean nothing is being received.
func (consumer *Consumer) updateLayers(layers *ConsumerLayers) {
	consumer.locker.Lock()
	consumer.layers = layers
	consumer.locker.Unlock()

	consumer.SafeEmit("layerschange", layers)

	// Emit observer event.
	consumer.observer.SafeEmit("layerschange", layers)
}
