package mediasoupclient

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/go-logr/logr"
)

// producerController is implemented by the transport owning a producer.
type producerController interface {
	pauseProducer(ctx context.Context, producer *Producer) error
	resumeProducer(ctx context.Context, producer *Producer) error
	closeProducer(ctx context.Context, producer *Producer) error
	replaceProducerTrack(ctx context.Context, producer *Producer, track MediaTrack) error
	setProducerMaxSpatialLayer(ctx context.Context, producer *Producer, spatialLayer uint8) error
	setProducerRtpEncodingParameters(ctx context.Context, producer *Producer, params RtpEncodingParameters) error
	getProducerStats(ctx context.Context, producer *Producer) (StatsReport, error)
}

type producerParams struct {
	id            string
	localId       string
	track         MediaTrack
	rtpParameters *RtpParameters
	appData       H
	transport     producerController
}

// Producer represents an audio or video source being sent to a mediasoup
// router through a send transport.
//
// - @emits transportclose
// - @emits trackended
// - @emits score - (scores []ProducerScore)
// - @emits @close
type Producer struct {
	IEventEmitter
	locker          sync.Mutex
	opLocker        sync.Mutex
	logger          logr.Logger
	id              string
	localId         string
	kind            MediaKind
	track           MediaTrack
	rtpParameters   *RtpParameters
	paused          bool
	remotePaused    bool
	maxSpatialLayer *uint8
	score           []ProducerScore
	appData         H
	closed          uint32
	transport       producerController
	observer        IEventEmitter
}

func newProducer(params producerParams) *Producer {
	logger := NewLogger("Producer")

	logger.V(1).Info("constructor()")

	if params.appData == nil {
		params.appData = H{}
	}

	producer := &Producer{
		IEventEmitter: NewEventEmitter(),
		logger:        logger,
		id:            params.id,
		localId:       params.localId,
		kind:          params.track.Kind(),
		track:         params.track,
		rtpParameters: params.rtpParameters,
		appData:       params.appData,
		transport:     params.transport,
		observer:      NewEventEmitter(),
	}

	producer.handleTrack(params.track)

	return producer
}

// Id returns producer id.
func (producer *Producer) Id() string {
	return producer.id
}

// LocalId returns the local id of the sender in the media engine.
func (producer *Producer) LocalId() string {
	return producer.localId
}

// Closed returns whether the Producer is closed.
func (producer *Producer) Closed() bool {
	return atomic.LoadUint32(&producer.closed) > 0
}

// Kind returns media kind.
func (producer *Producer) Kind() MediaKind {
	return producer.kind
}

// Track returns the track being sent, nil after ReplaceTrack(nil).
func (producer *Producer) Track() MediaTrack {
	producer.locker.Lock()
	defer producer.locker.Unlock()

	return producer.track
}

// RtpParameters returns the RTP parameters the producer sends with.
func (producer *Producer) RtpParameters() *RtpParameters {
	producer.locker.Lock()
	defer producer.locker.Unlock()

	return clone(producer.rtpParameters)
}

// Paused returns whether the Producer is paused, locally or by the server.
func (producer *Producer) Paused() bool {
	producer.locker.Lock()
	defer producer.locker.Unlock()

	return producer.paused || producer.remotePaused
}

// LocalPaused returns whether the Producer was paused with Pause.
func (producer *Producer) LocalPaused() bool {
	producer.locker.Lock()
	defer producer.locker.Unlock()

	return producer.paused
}

// RemotePaused returns whether the server side producer is paused.
func (producer *Producer) RemotePaused() bool {
	producer.locker.Lock()
	defer producer.locker.Unlock()

	return producer.remotePaused
}

// MaxSpatialLayer returns the max spatial layer set with SetMaxSpatialLayer,
// nil if never set.
func (producer *Producer) MaxSpatialLayer() *uint8 {
	producer.locker.Lock()
	defer producer.locker.Unlock()

	return producer.maxSpatialLayer
}

// Score returns producer score list.
func (producer *Producer) Score() []ProducerScore {
	producer.locker.Lock()
	defer producer.locker.Unlock()

	return producer.score
}

// AppData returns app custom data.
func (producer *Producer) AppData() H {
	return producer.appData
}

// Observer.
//
// - @emits close
// - @emits pause
// - @emits resume
// - @emits trackended
// - @emits score - (scores []ProducerScore)
func (producer *Producer) Observer() IEventEmitter {
	return producer.observer
}

// Close the producer. The sender is removed from the media engine and the
// server is notified with "closeProducer".
func (producer *Producer) Close(ctx context.Context) (err error) {
	if atomic.CompareAndSwapUint32(&producer.closed, 0, 1) {
		producer.logger.V(1).Info("close()")

		if err = producer.transport.closeProducer(ctx, producer); err != nil {
			producer.logger.Error(err, "producer close failed")
		}

		producer.Emit("@close")
		producer.RemoveAllListeners()

		// Emit observer event.
		producer.observer.SafeEmit("close")
		producer.observer.RemoveAllListeners()
	}

	return
}

// transportClosed is called when transport was closed.
func (producer *Producer) transportClosed() {
	if atomic.CompareAndSwapUint32(&producer.closed, 0, 1) {
		producer.logger.V(1).Info("transportClosed()")

		producer.SafeEmit("transportclose")
		producer.RemoveAllListeners()

		// Emit observer event.
		producer.observer.SafeEmit("close")
		producer.observer.RemoveAllListeners()
	}
}

// GetStats returns the sender stats of the media engine.
func (producer *Producer) GetStats(ctx context.Context) (StatsReport, error) {
	producer.logger.V(1).Info("getStats()")

	if producer.Closed() {
		return nil, NewInvalidStateError("closed")
	}

	return producer.transport.getProducerStats(ctx, producer)
}

// Pause the producer. The media engine stops sending and the server is
// notified with "pauseProducer"; a failed notification is only logged.
func (producer *Producer) Pause(ctx context.Context) (err error) {
	producer.opLocker.Lock()
	defer producer.opLocker.Unlock()

	producer.logger.V(1).Info("pause()")

	if producer.Closed() {
		return NewInvalidStateError("closed")
	}
	if producer.LocalPaused() {
		return
	}
	if err = producer.transport.pauseProducer(ctx, producer); err != nil {
		return
	}

	producer.locker.Lock()
	wasPaused := producer.paused || producer.remotePaused
	producer.paused = true
	producer.locker.Unlock()

	// Emit observer event.
	if !wasPaused {
		producer.observer.SafeEmit("pause")
	}

	return
}

// Resume the producer.
func (producer *Producer) Resume(ctx context.Context) (err error) {
	producer.opLocker.Lock()
	defer producer.opLocker.Unlock()

	producer.logger.V(1).Info("resume()")

	if producer.Closed() {
		return NewInvalidStateError("closed")
	}
	if !producer.LocalPaused() {
		return
	}
	if err = producer.transport.resumeProducer(ctx, producer); err != nil {
		return
	}

	producer.locker.Lock()
	producer.paused = false
	nowPaused := producer.remotePaused
	producer.locker.Unlock()

	// Emit observer event.
	if !nowPaused {
		producer.observer.SafeEmit("resume")
	}

	return
}

// ReplaceTrack replaces the track being sent. A nil track stops sending
// without closing the producer.
func (producer *Producer) ReplaceTrack(ctx context.Context, track MediaTrack) (err error) {
	producer.opLocker.Lock()
	defer producer.opLocker.Unlock()

	producer.logger.V(1).Info("replaceTrack()")

	if producer.Closed() {
		return NewInvalidStateError("closed")
	}
	if track != nil {
		if track.Kind() != producer.kind {
			return NewTypeError("cannot replace a %s track with a %s one", producer.kind, track.Kind())
		}
		if trackEnded(track) {
			return NewInvalidStateError("track ended")
		}
	}

	current := producer.Track()

	if current != nil && track != nil && current.Id() == track.Id() {
		producer.logger.V(1).Info("replaceTrack() | same track, ignored")
		return
	}
	if err = producer.transport.replaceProducerTrack(ctx, producer, track); err != nil {
		return
	}

	producer.locker.Lock()
	producer.track = track
	producer.locker.Unlock()

	producer.handleTrack(track)

	return
}

// SetMaxSpatialLayer limits the simulcast or SVC layers being sent.
func (producer *Producer) SetMaxSpatialLayer(ctx context.Context, spatialLayer uint8) (err error) {
	producer.opLocker.Lock()
	defer producer.opLocker.Unlock()

	producer.logger.V(1).Info("setMaxSpatialLayer()", "spatialLayer", spatialLayer)

	if producer.Closed() {
		return NewInvalidStateError("closed")
	}
	if producer.kind != MediaKindVideo {
		return NewUnsupportedError("not a video Producer")
	}
	if current := producer.MaxSpatialLayer(); current != nil && *current == spatialLayer {
		return
	}
	if err = producer.transport.setProducerMaxSpatialLayer(ctx, producer, spatialLayer); err != nil {
		return
	}

	producer.locker.Lock()
	producer.maxSpatialLayer = &spatialLayer
	producer.locker.Unlock()

	return
}

// SetRtpEncodingParameters merges params into every encoding being sent.
func (producer *Producer) SetRtpEncodingParameters(ctx context.Context, params RtpEncodingParameters) (err error) {
	producer.opLocker.Lock()
	defer producer.opLocker.Unlock()

	producer.logger.V(1).Info("setRtpEncodingParameters()")

	if producer.Closed() {
		return NewInvalidStateError("closed")
	}

	if err = producer.transport.setProducerRtpEncodingParameters(ctx, producer, params); err != nil {
		return
	}
	producer.mergeEncodings(params)

	return nil
}

// mergeEncodings merges the set fields of params into every encoding of the
// RTP parameters.
func (producer *Producer) mergeEncodings(params RtpEncodingParameters) {
	producer.locker.Lock()
	defer producer.locker.Unlock()

	for _, encoding := range producer.rtpParameters.Encodings {
		if err := override(encoding, &params); err != nil {
			producer.logger.Error(err, "merge encoding failed")
		}
	}
}

func (producer *Producer) handleTrack(track MediaTrack) {
	endable, ok := track.(EndableTrack)
	if !ok {
		return
	}
	endable.OnEnded(func() {
		if producer.Closed() || producer.Track() != track {
			return
		}
		producer.logger.V(1).Info("track ended event")

		producer.SafeEmit("trackended")

		// Emit observer event.
		producer.observer.SafeEmit("trackended")
	})
}

// setRemotePaused is called on "producerPaused" and "producerResumed"
// notifications.
func (producer *Producer) setRemotePaused(paused bool) {
	if producer.Closed() {
		return
	}

	producer.locker.Lock()
	wasPaused := producer.paused || producer.remotePaused
	producer.remotePaused = paused
	nowPaused := producer.paused || producer.remotePaused
	producer.locker.Unlock()

	if wasPaused == nowPaused {
		return
	}
	if nowPaused {
		producer.observer.SafeEmit("pause")
	} else {
		producer.observer.SafeEmit("resume")
	}
}

// updateScore is called on "producerScore" notification.
func (producer *Producer) updateScore(data json.RawMessage) {
	var score []ProducerScore

	if err := json.Unmarshal(data, &score); err != nil {
		producer.logger.Error(err, "failed to unmarshal score", "data", data)
		return
	}

	producer.locker.Lock()
	producer.score = score
	producer.locker.Unlock()

	producer.SafeEmit("score", score)

	// Emit observer event.
	producer.observer.SafeEmit("score", score)
}
