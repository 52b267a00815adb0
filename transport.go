package mediasoupclient

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
)

type transportParams struct {
	options                 TransportOptions
	direction               TransportDirection
	handler                 Handler
	extendedRtpCapabilities *ExtendedRtpCapabilities
	recvRtpCapabilities     *RtpCapabilities
	canProduceByKind        map[MediaKind]bool
	signaler                Signaler
	metrics                 *Metrics
}

// Transport is a send or receive transport bound to a server side
// WebRtcTransport. Producers are created on send transports and consumers on
// receive transports.
//
// - @emits connectionstatechange - (state ConnectionState)
// - @emits producerclose - (producer *Producer)
// - @emits consumerclose - (consumer *Consumer)
// - @emits dataproducerclose - (dataProducer *DataProducer)
// - @emits dataconsumerclose - (dataConsumer *DataConsumer)
// - @emits @close
type Transport struct {
	IEventEmitter
	baseNotifier
	logger                  logr.Logger
	id                      string
	direction               TransportDirection
	handler                 Handler
	extendedRtpCapabilities *ExtendedRtpCapabilities
	recvRtpCapabilities     *RtpCapabilities
	canProduceByKind        map[MediaKind]bool
	sctpParameters          *SctpParameters
	signaler                Signaler
	metrics                 *Metrics
	appData                 H
	queue                   *awaitQueue
	// locker guards the fields below and makes registration atomic with close.
	locker                 sync.Mutex
	closed                 uint32
	connectionState        ConnectionState
	iceRestarted           bool
	pendingConsumerTasks   []*consumerTask
	consumerRoundScheduled bool
	// probatorConsumerCreated is only touched by consumer rounds.
	probatorConsumerCreated bool
	producers               sync.Map
	consumers               sync.Map
	dataProducers           sync.Map
	dataConsumers           sync.Map
	observer                IEventEmitter
}

func newTransport(params transportParams) (*Transport, error) {
	logger := NewLogger("Transport")

	logger.V(1).Info("constructor()", "id", params.options.Id, "direction", params.direction)

	if params.options.AppData == nil {
		params.options.AppData = H{}
	}

	transport := &Transport{
		IEventEmitter:           NewEventEmitter(),
		logger:                  logger,
		id:                      params.options.Id,
		direction:               params.direction,
		handler:                 params.handler,
		extendedRtpCapabilities: params.extendedRtpCapabilities,
		recvRtpCapabilities:     params.recvRtpCapabilities,
		canProduceByKind:        params.canProduceByKind,
		sctpParameters:          params.options.SctpParameters,
		signaler:                params.signaler,
		metrics:                 params.metrics,
		appData:                 params.options.AppData,
		queue:                   newAwaitQueue(logger),
		connectionState:         ConnectionStateNew,
		observer:                NewEventEmitter(),
	}

	err := params.handler.Run(HandlerRunOptions{
		Direction:               params.direction,
		IceParameters:           params.options.IceParameters,
		IceCandidates:           params.options.IceCandidates,
		DtlsParameters:          params.options.DtlsParameters,
		SctpParameters:          params.options.SctpParameters,
		IceServers:              params.options.IceServers,
		IceTransportPolicy:      params.options.IceTransportPolicy,
		ExtendedRtpCapabilities: params.extendedRtpCapabilities,
		OnConnect:               transport.handleConnect,
		OnConnectionStateChange: transport.setConnectionState,
	})
	if err != nil {
		transport.queue.Close()
		return nil, asEngineError(err, "run")
	}

	return transport, nil
}

// Id returns transport id.
func (t *Transport) Id() string {
	return t.id
}

// Direction returns the transport direction.
func (t *Transport) Direction() TransportDirection {
	return t.direction
}

// Closed returns whether the Transport is closed.
func (t *Transport) Closed() bool {
	return atomic.LoadUint32(&t.closed) > 0
}

// ConnectionState returns the connection state.
func (t *Transport) ConnectionState() ConnectionState {
	t.locker.Lock()
	defer t.locker.Unlock()

	return t.connectionState
}

// HandlerName returns the name of the media engine handler.
func (t *Transport) HandlerName() string {
	return t.handler.Name()
}

// AppData returns app custom data.
func (t *Transport) AppData() H {
	return t.appData
}

// Producers returns the open producers.
func (t *Transport) Producers() []*Producer {
	return syncMapValues[*Producer](&t.producers)
}

// Consumers returns the open consumers.
func (t *Transport) Consumers() []*Consumer {
	return syncMapValues[*Consumer](&t.consumers)
}

// DataProducers returns the open data producers.
func (t *Transport) DataProducers() []*DataProducer {
	return syncMapValues[*DataProducer](&t.dataProducers)
}

// DataConsumers returns the open data consumers.
func (t *Transport) DataConsumers() []*DataConsumer {
	return syncMapValues[*DataConsumer](&t.dataConsumers)
}

// Observer.
//
// - @emits close
// - @emits connectionstatechange - (state ConnectionState)
// - @emits newproducer - (producer *Producer)
// - @emits newconsumer - (consumer *Consumer)
// - @emits newdataproducer - (dataProducer *DataProducer)
// - @emits newdataconsumer - (dataConsumer *DataConsumer)
func (t *Transport) Observer() IEventEmitter {
	return t.observer
}

// Close the Transport. Queued and running operations fail with ErrCancelled
// and every item of the transport is closed.
func (t *Transport) Close() {
	t.locker.Lock()
	if !atomic.CompareAndSwapUint32(&t.closed, 0, 1) {
		t.locker.Unlock()
		return
	}
	stateChanged := t.connectionState != ConnectionStateClosed
	t.connectionState = ConnectionStateClosed
	t.locker.Unlock()

	t.logger.V(1).Info("close()")

	t.queue.Close()

	if err := t.handler.Close(); err != nil {
		t.logger.Error(err, "handler close failed")
	}

	if stateChanged {
		t.SafeEmit("connectionstatechange", ConnectionStateClosed)
		t.observer.SafeEmit("connectionstatechange", ConnectionStateClosed)
	}

	t.producers.Range(func(key, value interface{}) bool {
		t.producers.Delete(key)
		t.metrics.producerAdded(-1)
		value.(*Producer).transportClosed()
		return true
	})
	t.consumers.Range(func(key, value interface{}) bool {
		t.consumers.Delete(key)
		t.metrics.consumerAdded(-1)
		value.(*Consumer).transportClosed()
		return true
	})
	t.dataProducers.Range(func(key, value interface{}) bool {
		t.dataProducers.Delete(key)
		value.(*DataProducer).transportClosed()
		return true
	})
	t.dataConsumers.Range(func(key, value interface{}) bool {
		t.dataConsumers.Delete(key)
		value.(*DataConsumer).transportClosed()
		return true
	})

	t.notifyClosed()

	t.Emit("@close")
	t.RemoveAllListeners()

	// Emit observer event.
	t.observer.SafeEmit("close")
	t.observer.RemoveAllListeners()
}

// GetStats returns the transport stats of the media engine.
func (t *Transport) GetStats(ctx context.Context) (StatsReport, error) {
	t.logger.V(1).Info("getStats()")

	if t.Closed() {
		return nil, NewInvalidStateError("closed")
	}
	stats, err := t.handler.GetTransportStats(ctx)

	return stats, asEngineError(err, "getTransportStats")
}

// RestartIce restarts ICE with the given remote parameters. With nil
// parameters fresh ones are requested with "restartIce".
func (t *Transport) RestartIce(ctx context.Context, iceParameters *IceParameters) error {
	t.logger.V(1).Info("restartIce()")

	if t.Closed() {
		return NewInvalidStateError("closed")
	}
	if iceParameters == nil {
		iceParameters = &IceParameters{}

		if err := t.request(ctx, MethodRestartIce, H{"transportId": t.id}, iceParameters); err != nil {
			return err
		}
	}

	return t.push(ctx, "restartIce", func(ctx context.Context) error {
		// States reported during the restart leave Failed.
		t.setIceRestarted(true)

		if err := t.handler.RestartIce(ctx, *iceParameters); err != nil {
			t.setIceRestarted(false)
			return asEngineError(err, "restartIce")
		}
		return nil
	})
}

func (t *Transport) setIceRestarted(restarted bool) {
	t.locker.Lock()
	t.iceRestarted = restarted
	t.locker.Unlock()
}

// UpdateIceServers replaces the ICE servers of the media engine transport.
func (t *Transport) UpdateIceServers(ctx context.Context, iceServers []IceServer) error {
	t.logger.V(1).Info("updateIceServers()")

	if t.Closed() {
		return NewInvalidStateError("closed")
	}

	return t.push(ctx, "updateIceServers", func(ctx context.Context) error {
		return asEngineError(t.handler.UpdateIceServers(ctx, iceServers), "updateIceServers")
	})
}

// Produce creates a Producer sending the given track.
func (t *Transport) Produce(ctx context.Context, options ProducerOptions) (producer *Producer, err error) {
	t.logger.V(1).Info("produce()")

	track := options.Track

	switch {
	case track == nil:
		return nil, NewTypeError("missing track")
	case t.direction != TransportDirectionSend:
		return nil, NewUnsupportedError("not a sending Transport")
	case !t.canProduceByKind[track.Kind()]:
		return nil, NewUnsupportedError("cannot produce %s", track.Kind())
	case trackEnded(track):
		return nil, NewInvalidStateError("track ended")
	}
	if err = t.checkUsable(); err != nil {
		return
	}

	var encodings []*RtpEncodingParameters
	if len(options.Encodings) > 0 {
		encodings = clone(options.Encodings)
	}

	err = t.push(ctx, "produce", func(ctx context.Context) error {
		result, err := t.handler.Send(ctx, HandlerSendOptions{
			Track:        track,
			Encodings:    encodings,
			CodecOptions: options.CodecOptions,
			Codec:        options.Codec,
		})
		if err != nil {
			return asEngineError(err, "send")
		}

		var resp idResponse

		err = t.request(ctx, MethodProduce, produceRequest{
			TransportId:   t.id,
			Kind:          track.Kind(),
			RtpParameters: result.RtpParameters,
			AppData:       options.AppData,
		}, &resp)
		if err != nil {
			t.undoSend(ctx, result.LocalId)
			return err
		}

		producer = newProducer(producerParams{
			id:            resp.Id,
			localId:       result.LocalId,
			track:         track,
			rtpParameters: result.RtpParameters,
			appData:       options.AppData,
			transport:     t,
		})

		if !t.register(&t.producers, producer.Id(), producer) {
			t.undoSend(ctx, result.LocalId)
			producer = nil
			return NewCancelledError(nil, "produce: transport closed")
		}
		t.metrics.producerAdded(1)

		return nil
	})
	if err != nil {
		return nil, err
	}

	// Emit observer event.
	t.observer.SafeEmit("newproducer", producer)

	return producer, nil
}

// Consume creates a Consumer receiving a server side consumer. With an empty
// options.Id, "consume" is requested to create the server side consumer
// first.
func (t *Transport) Consume(ctx context.Context, options ConsumerOptions) (*Consumer, error) {
	t.logger.V(1).Info("consume()")

	if err := t.checkUsable(); err != nil {
		return nil, err
	}
	if t.direction != TransportDirectionRecv {
		return nil, NewUnsupportedError("not a receiving Transport")
	}
	if len(options.ProducerId) == 0 {
		return nil, NewTypeError("missing producerId")
	}

	if len(options.Id) == 0 {
		var resp consumeResponse

		err := t.request(ctx, MethodConsume, consumeRequest{
			TransportId:     t.id,
			ProducerId:      options.ProducerId,
			RtpCapabilities: t.recvRtpCapabilities,
		}, &resp)
		if err != nil {
			return nil, err
		}

		options.Id = resp.Id
		options.Kind = resp.Kind
		options.RtpParameters = resp.RtpParameters
		options.ProducerPaused = resp.ProducerPaused

		if options.AppData == nil {
			options.AppData = resp.AppData
		}
	}

	if len(options.Id) == 0 {
		return nil, NewTypeError("missing id")
	}
	if options.Kind != MediaKindAudio && options.Kind != MediaKindVideo {
		return nil, NewTypeError("invalid kind %q", options.Kind)
	}
	if options.RtpParameters == nil {
		return nil, NewTypeError("missing rtpParameters")
	}

	rtpParameters := clone(options.RtpParameters)

	if err := ValidateRtpParameters(rtpParameters); err != nil {
		return nil, err
	}
	if !CanReceive(rtpParameters, t.extendedRtpCapabilities) {
		return nil, NewUnsupportedError("cannot consume this Producer")
	}

	rtpParameters, err := GetReceiveParameters(rtpParameters, t.recvRtpCapabilities)
	if err != nil {
		return nil, err
	}
	options.RtpParameters = rtpParameters

	if len(options.StreamId) == 0 {
		options.StreamId = "-"
		if rtpParameters.Rtcp != nil && len(rtpParameters.Rtcp.Cname) > 0 {
			options.StreamId = rtpParameters.Rtcp.Cname
		}
	}

	task := &consumerTask{
		kind:    consumerTaskCreate,
		ctx:     ctx,
		options: options,
		done:    make(chan error, 1),
	}

	if err = t.enqueueConsumerTask(task); err != nil {
		return nil, err
	}

	consumer := task.result

	// Emit observer event.
	t.observer.SafeEmit("newconsumer", consumer)

	return consumer, nil
}

// ProduceData creates a DataProducer. The remote transport must have SCTP
// enabled.
func (t *Transport) ProduceData(ctx context.Context, options DataProducerOptions) (dataProducer *DataProducer, err error) {
	t.logger.V(1).Info("produceData()")

	if t.direction != TransportDirectionSend {
		return nil, NewUnsupportedError("not a sending Transport")
	}
	if t.sctpParameters == nil || t.sctpParameters.MaxMessageSize == 0 {
		return nil, NewUnsupportedError("SCTP not enabled by remote Transport")
	}
	if err = t.checkUsable(); err != nil {
		return
	}
	if options.MaxPacketLifeTime > 0 || options.MaxRetransmits > 0 {
		options.Ordered = ref(false)
	}

	err = t.push(ctx, "produceData", func(ctx context.Context) error {
		result, err := t.handler.SendDataChannel(ctx, HandlerSendDataChannelOptions{
			Ordered:           options.Ordered,
			MaxPacketLifeTime: options.MaxPacketLifeTime,
			MaxRetransmits:    options.MaxRetransmits,
			Label:             options.Label,
			Protocol:          options.Protocol,
		})
		if err != nil {
			return asEngineError(err, "sendDataChannel")
		}

		var resp idResponse

		err = t.request(ctx, MethodProduceData, produceDataRequest{
			TransportId:          t.id,
			SctpStreamParameters: result.SctpStreamParameters,
			Label:                options.Label,
			Protocol:             options.Protocol,
			AppData:              options.AppData,
		}, &resp)
		if err != nil {
			_ = result.DataChannel.Close()
			return err
		}

		dataProducer = newDataProducer(dataProducerParams{
			id:                   resp.Id,
			dataChannel:          result.DataChannel,
			sctpStreamParameters: result.SctpStreamParameters,
			appData:              options.AppData,
			transport:            t,
		})

		if !t.register(&t.dataProducers, dataProducer.Id(), dataProducer) {
			_ = result.DataChannel.Close()
			dataProducer = nil
			return NewCancelledError(nil, "produceData: transport closed")
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	// Emit observer event.
	t.observer.SafeEmit("newdataproducer", dataProducer)

	return dataProducer, nil
}

// ConsumeData creates a DataConsumer for a server side data consumer.
func (t *Transport) ConsumeData(ctx context.Context, options DataConsumerOptions) (dataConsumer *DataConsumer, err error) {
	t.logger.V(1).Info("consumeData()")

	if err = t.checkUsable(); err != nil {
		return
	}
	if t.direction != TransportDirectionRecv {
		return nil, NewUnsupportedError("not a receiving Transport")
	}
	if t.sctpParameters == nil || t.sctpParameters.MaxMessageSize == 0 {
		return nil, NewUnsupportedError("SCTP not enabled by remote Transport")
	}
	switch {
	case len(options.Id) == 0:
		return nil, NewTypeError("missing id")
	case len(options.DataProducerId) == 0:
		return nil, NewTypeError("missing dataProducerId")
	}

	sctpStreamParameters := options.SctpStreamParameters

	if err = ValidateSctpStreamParameters(&sctpStreamParameters); err != nil {
		return
	}

	err = t.push(ctx, "consumeData", func(ctx context.Context) error {
		result, err := t.handler.ReceiveDataChannel(ctx, HandlerReceiveDataChannelOptions{
			SctpStreamParameters: sctpStreamParameters,
			Label:                options.Label,
			Protocol:             options.Protocol,
		})
		if err != nil {
			return asEngineError(err, "receiveDataChannel")
		}

		dataConsumer = newDataConsumer(dataConsumerParams{
			id:                   options.Id,
			dataProducerId:       options.DataProducerId,
			dataChannel:          result.DataChannel,
			sctpStreamParameters: sctpStreamParameters,
			appData:              options.AppData,
			transport:            t,
		})

		if !t.register(&t.dataConsumers, dataConsumer.Id(), dataConsumer) {
			_ = result.DataChannel.Close()
			dataConsumer = nil
			return NewCancelledError(nil, "consumeData: transport closed")
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	// Emit observer event.
	t.observer.SafeEmit("newdataconsumer", dataConsumer)

	return dataConsumer, nil
}

type notificationData struct {
	ProducerId     string          `json:"producerId,omitempty"`
	ConsumerId     string          `json:"consumerId,omitempty"`
	DataConsumerId string          `json:"dataConsumerId,omitempty"`
	Score          json.RawMessage `json:"score,omitempty"`
	SpatialLayer   *uint8          `json:"spatialLayer,omitempty"`
	TemporalLayer  *uint8          `json:"temporalLayer,omitempty"`
}

// HandleNotification routes a server notification to the item of this
// transport it targets. Notifications of other transports are ignored.
func (t *Transport) HandleNotification(method string, data json.RawMessage) {
	var notification notificationData

	if err := unmarshalData(data, &notification); err != nil {
		t.logger.Error(err, "failed to unmarshal notification", "method", method, "data", data)
		return
	}

	switch method {
	case NotificationProducerScore:
		if producer := t.producer(notification.ProducerId); producer != nil {
			producer.updateScore(notification.Score)
		}

	case NotificationProducerPaused, NotificationProducerResumed:
		if producer := t.producer(notification.ProducerId); producer != nil {
			producer.setRemotePaused(method == NotificationProducerPaused)
		}

	case NotificationConsumerScore:
		if consumer := t.consumer(notification.ConsumerId); consumer != nil {
			consumer.updateScore(notification.Score)
		}

	case NotificationConsumerPaused, NotificationConsumerResumed:
		if consumer := t.consumer(notification.ConsumerId); consumer != nil {
			consumer.setRemotePaused(method == NotificationConsumerPaused)
		}

	case NotificationConsumerClosed:
		if consumer := t.consumer(notification.ConsumerId); consumer != nil {
			consumer.producerClosed()
		}

	case NotificationConsumerLayersChanged:
		if consumer := t.consumer(notification.ConsumerId); consumer != nil {
			var layers *ConsumerLayers

			if notification.SpatialLayer != nil {
				layers = &ConsumerLayers{SpatialLayer: *notification.SpatialLayer}

				if notification.TemporalLayer != nil {
					layers.TemporalLayer = *notification.TemporalLayer
				}
			}
			consumer.updateLayers(layers)
		}

	case NotificationDataConsumerClosed:
		if dataConsumer := t.dataConsumer(notification.DataConsumerId); dataConsumer != nil {
			dataConsumer.dataProducerClosed()
		}

	default:
		t.logger.V(1).Info("ignoring unknown notification", "method", method)
	}
}

func (t *Transport) producer(id string) *Producer {
	if value, ok := t.producers.Load(id); ok {
		return value.(*Producer)
	}
	return nil
}

func (t *Transport) consumer(id string) *Consumer {
	if value, ok := t.consumers.Load(id); ok {
		return value.(*Consumer)
	}
	return nil
}

func (t *Transport) dataConsumer(id string) *DataConsumer {
	if value, ok := t.dataConsumers.Load(id); ok {
		return value.(*DataConsumer)
	}
	return nil
}

// handleConnect is called by the handler with the local DTLS parameters.
func (t *Transport) handleConnect(ctx context.Context, dtlsParameters DtlsParameters) error {
	if t.Closed() {
		return NewInvalidStateError("closed")
	}

	t.setConnectionState(ConnectionStateConnecting)

	err := t.request(ctx, MethodConnectWebRtcTransport, connectTransportRequest{
		TransportId:    t.id,
		DtlsParameters: dtlsParameters,
	}, nil)
	if err != nil {
		t.revertConnecting()
	}
	return err
}

// revertConnecting moves a transport left connecting by a failed connect
// request back to new.
func (t *Transport) revertConnecting() {
	t.locker.Lock()
	if t.Closed() || t.connectionState != ConnectionStateConnecting {
		t.locker.Unlock()
		return
	}
	t.connectionState = ConnectionStateNew
	t.locker.Unlock()

	t.logger.V(1).Info("connection state changed", "state", ConnectionStateNew)

	t.SafeEmit("connectionstatechange", ConnectionStateNew)

	// Emit observer event.
	t.observer.SafeEmit("connectionstatechange", ConnectionStateNew)
}

func (t *Transport) setConnectionState(state ConnectionState) {
	t.locker.Lock()
	if t.Closed() || state == t.connectionState {
		t.locker.Unlock()
		return
	}
	if t.connectionState == ConnectionStateFailed && !t.iceRestarted {
		t.locker.Unlock()
		t.logger.V(1).Info("connection failed, ignoring state", "state", state)
		return
	}
	if state == ConnectionStateFailed {
		t.iceRestarted = false
	}
	t.connectionState = state
	t.locker.Unlock()

	t.logger.V(1).Info("connection state changed", "state", state)

	t.SafeEmit("connectionstatechange", state)

	// Emit observer event.
	t.observer.SafeEmit("connectionstatechange", state)
}

func (t *Transport) checkUsable() error {
	if t.Closed() {
		return NewInvalidStateError("closed")
	}
	if t.ConnectionState() == ConnectionStateFailed {
		return NewInvalidStateError("connection failed")
	}
	return nil
}

// register stores item into m unless the transport is closed.
func (t *Transport) register(m *sync.Map, id string, item interface{}) bool {
	t.locker.Lock()
	defer t.locker.Unlock()

	if t.Closed() {
		return false
	}
	m.Store(id, item)

	return true
}

// push runs fn as a negotiation round on the transport queue.
func (t *Transport) push(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	start := time.Now()

	err := t.queue.Push(ctx, name, fn)

	t.metrics.observeRound(t.direction, name, start)

	return err
}

// request sends a signaling request bound to the lifetime of the transport:
// closing the transport fails it with ErrCancelled.
func (t *Transport) request(ctx context.Context, method string, data, result interface{}) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stop := context.AfterFunc(t.queue.ctx, cancel)
	defer stop()

	err := signal(ctx, t.signaler, method, data, result)
	if err != nil {
		if t.queue.ctx.Err() != nil {
			err = NewCancelledError(err, "%s: transport closed", method)
		}
		if _, ok := err.(SignalingError); ok {
			t.metrics.signalingFailed(method)
		}
		t.logger.Error(err, "request failed", "method", method)
	}
	return err
}

// notify sends a signaling notification. Failures are logged and counted but
// never returned since the local state already changed.
func (t *Transport) notify(ctx context.Context, method string, data interface{}) {
	if err := notify(ctx, t.signaler, method, data); err != nil {
		if _, ok := err.(SignalingError); ok {
			t.metrics.signalingFailed(method)
		}
		t.logger.Error(err, "notify failed", "method", method)
	}
}

// undoSend removes a sender whose producer could not be created.
func (t *Transport) undoSend(ctx context.Context, localId string) {
	if err := t.handler.StopSending(context.WithoutCancel(ctx), localId); err != nil {
		t.logger.Error(err, "stopSending failed", "localId", localId)
	}
}

func (t *Transport) pauseProducer(ctx context.Context, producer *Producer) error {
	err := t.push(ctx, "pauseSending", func(ctx context.Context) error {
		return asEngineError(t.handler.PauseSending(ctx, producer.LocalId()), "pauseSending")
	})
	if err != nil {
		return err
	}
	t.notify(ctx, MethodPauseProducer, H{"producerId": producer.Id()})

	return nil
}

func (t *Transport) resumeProducer(ctx context.Context, producer *Producer) error {
	err := t.push(ctx, "resumeSending", func(ctx context.Context) error {
		return asEngineError(t.handler.ResumeSending(ctx, producer.LocalId()), "resumeSending")
	})
	if err != nil {
		return err
	}
	t.notify(ctx, MethodResumeProducer, H{"producerId": producer.Id()})

	return nil
}

func (t *Transport) closeProducer(ctx context.Context, producer *Producer) error {
	if _, ok := t.producers.LoadAndDelete(producer.Id()); !ok {
		return nil
	}
	t.metrics.producerAdded(-1)

	t.SafeEmit("producerclose", producer)

	if t.Closed() {
		return nil
	}

	err := t.push(ctx, "stopSending", func(ctx context.Context) error {
		return asEngineError(t.handler.StopSending(ctx, producer.LocalId()), "stopSending")
	})
	if t.Closed() {
		return nil
	}
	t.notify(ctx, MethodCloseProducer, H{"producerId": producer.Id()})

	return err
}

func (t *Transport) replaceProducerTrack(ctx context.Context, producer *Producer, track MediaTrack) error {
	return t.push(ctx, "replaceTrack", func(ctx context.Context) error {
		return asEngineError(t.handler.ReplaceTrack(ctx, producer.LocalId(), track), "replaceTrack")
	})
}

func (t *Transport) setProducerMaxSpatialLayer(ctx context.Context, producer *Producer, spatialLayer uint8) error {
	return t.push(ctx, "setMaxSpatialLayer", func(ctx context.Context) error {
		return asEngineError(t.handler.SetMaxSpatialLayer(ctx, producer.LocalId(), spatialLayer), "setMaxSpatialLayer")
	})
}

func (t *Transport) setProducerRtpEncodingParameters(ctx context.Context, producer *Producer, params RtpEncodingParameters) error {
	return t.push(ctx, "setRtpEncodingParameters", func(ctx context.Context) error {
		return asEngineError(t.handler.SetRtpEncodingParameters(ctx, producer.LocalId(), params), "setRtpEncodingParameters")
	})
}

func (t *Transport) getProducerStats(ctx context.Context, producer *Producer) (StatsReport, error) {
	stats, err := t.handler.GetSenderStats(ctx, producer.LocalId())

	return stats, asEngineError(err, "getSenderStats")
}

func (t *Transport) pauseConsumer(ctx context.Context, consumer *Consumer) error {
	err := t.enqueueConsumerTask(&consumerTask{
		kind:     consumerTaskPause,
		ctx:      ctx,
		consumer: consumer,
		done:     make(chan error, 1),
	})
	if err != nil {
		return err
	}
	t.notify(ctx, MethodPauseConsumer, H{"consumerId": consumer.Id()})

	return nil
}

func (t *Transport) resumeConsumer(ctx context.Context, consumer *Consumer) error {
	err := t.enqueueConsumerTask(&consumerTask{
		kind:     consumerTaskResume,
		ctx:      ctx,
		consumer: consumer,
		done:     make(chan error, 1),
	})
	if err != nil {
		return err
	}
	t.notify(ctx, MethodResumeConsumer, H{"consumerId": consumer.Id()})

	return nil
}

func (t *Transport) closeConsumer(ctx context.Context, consumer *Consumer) error {
	if !t.removeConsumer(consumer) || t.Closed() {
		return nil
	}

	err := t.enqueueConsumerTask(&consumerTask{
		kind:     consumerTaskClose,
		ctx:      ctx,
		consumer: consumer,
		done:     make(chan error, 1),
	})
	if t.Closed() {
		return nil
	}
	t.notify(ctx, MethodCloseConsumer, H{"consumerId": consumer.Id()})

	return err
}

// consumerClosed removes a consumer closed by the server and stops its
// receiver in the background.
func (t *Transport) consumerClosed(consumer *Consumer) {
	if !t.removeConsumer(consumer) || t.Closed() {
		return
	}

	go func() {
		err := t.enqueueConsumerTask(&consumerTask{
			kind:     consumerTaskClose,
			ctx:      context.Background(),
			consumer: consumer,
			done:     make(chan error, 1),
		})
		if err != nil && !t.Closed() {
			t.logger.Error(err, "stopReceiving failed", "consumerId", consumer.Id())
		}
	}()
}

func (t *Transport) removeConsumer(consumer *Consumer) bool {
	if _, ok := t.consumers.LoadAndDelete(consumer.Id()); !ok {
		return false
	}
	t.metrics.consumerAdded(-1)

	t.SafeEmit("consumerclose", consumer)

	return true
}

func (t *Transport) getConsumerStats(ctx context.Context, consumer *Consumer) (StatsReport, error) {
	stats, err := t.handler.GetReceiverStats(ctx, consumer.LocalId())

	return stats, asEngineError(err, "getReceiverStats")
}

func (t *Transport) closeDataProducer(ctx context.Context, dataProducer *DataProducer) error {
	if _, ok := t.dataProducers.LoadAndDelete(dataProducer.Id()); !ok {
		return nil
	}

	t.SafeEmit("dataproducerclose", dataProducer)

	if t.Closed() {
		return nil
	}

	t.notify(ctx, MethodCloseDataProducer, H{"dataProducerId": dataProducer.Id()})

	return nil
}

func (t *Transport) closeDataConsumer(ctx context.Context, dataConsumer *DataConsumer) error {
	if _, ok := t.dataConsumers.LoadAndDelete(dataConsumer.Id()); !ok {
		return nil
	}

	t.SafeEmit("dataconsumerclose", dataConsumer)

	if t.Closed() {
		return nil
	}

	t.notify(ctx, MethodCloseDataConsumer, H{"dataConsumerId": dataConsumer.Id()})

	return nil
}

func (t *Transport) dataConsumerClosed(dataConsumer *DataConsumer) {
	if _, ok := t.dataConsumers.LoadAndDelete(dataConsumer.Id()); ok {
		t.SafeEmit("dataconsumerclose", dataConsumer)
	}
}
