package mediasoupclient

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"
)

// DeviceOptions define options to create a device.
type DeviceOptions struct {
	// HandlerFactory creates the media engine handlers. Mandatory.
	HandlerFactory HandlerFactory

	// Signaler is used for the requests the device and its transports send to
	// the server side. Optional, without it Load needs router capabilities and
	// every transport operation needing signaling fails.
	Signaler Signaler

	// Metrics records negotiation metrics. Optional.
	Metrics *Metrics
}

// DeviceLoadOptions define options to load a device.
type DeviceLoadOptions struct {
	// RouterRtpCapabilities is the RTP capabilities of the mediasoup router.
	// When nil they are requested with "getRouterRtpCapabilities".
	RouterRtpCapabilities *RtpCapabilities `json:"routerRtpCapabilities,omitempty"`

	// RouterSctpCapabilities clamps the SCTP stream counts of the device.
	// Optional.
	RouterSctpCapabilities *SctpCapabilities `json:"routerSctpCapabilities,omitempty"`
}

type deviceState int32

const (
	deviceStateUnloaded deviceState = iota
	deviceStateLoading
	deviceStateLoaded
)

// Device represents an endpoint that connects to a mediasoup router to send
// and/or receive media.
type Device struct {
	logger                  logr.Logger
	locker                  sync.Mutex
	handlerFactory          HandlerFactory
	signaler                Signaler
	metrics                 *Metrics
	state                   deviceState
	handlerName             string
	extendedRtpCapabilities *ExtendedRtpCapabilities
	recvRtpCapabilities     *RtpCapabilities
	canProduceByKind        map[MediaKind]bool
	sctpCapabilities        *SctpCapabilities
	transports              sync.Map
	closed                  uint32
	observer                IEventEmitter
}

// NewDevice creates a device.
func NewDevice(options DeviceOptions) (*Device, error) {
	logger := NewLogger("Device")

	logger.V(1).Info("constructor()")

	if options.HandlerFactory == nil {
		return nil, NewTypeError("missing handler factory")
	}

	return &Device{
		logger:         logger,
		handlerFactory: options.HandlerFactory,
		signaler:       options.Signaler,
		metrics:        options.Metrics,
		observer:       NewEventEmitter(),
		canProduceByKind: map[MediaKind]bool{
			MediaKindAudio: false,
			MediaKindVideo: false,
		},
	}, nil
}

// HandlerName returns the name of the media engine handler, empty before
// loading.
func (d *Device) HandlerName() string {
	d.locker.Lock()
	defer d.locker.Unlock()

	return d.handlerName
}

// Loaded returns whether the device is loaded.
func (d *Device) Loaded() bool {
	d.locker.Lock()
	defer d.locker.Unlock()

	return d.state == deviceStateLoaded
}

// RtpCapabilities returns the RTP capabilities of the device to receive
// media, to be given to the server side to consume.
func (d *Device) RtpCapabilities() (*RtpCapabilities, error) {
	d.locker.Lock()
	defer d.locker.Unlock()

	if d.state != deviceStateLoaded {
		return nil, NewInvalidStateError("not loaded")
	}
	return clone(d.recvRtpCapabilities), nil
}

// SctpCapabilities returns the SCTP capabilities of the device.
func (d *Device) SctpCapabilities() (*SctpCapabilities, error) {
	d.locker.Lock()
	defer d.locker.Unlock()

	if d.state != deviceStateLoaded {
		return nil, NewInvalidStateError("not loaded")
	}
	return clone(d.sctpCapabilities), nil
}

// Observer.
//
// - @emits newtransport - (transport *Transport)
func (d *Device) Observer() IEventEmitter {
	return d.observer
}

// Load the device with the RTP capabilities of the mediasoup router. A
// device can be loaded once.
func (d *Device) Load(ctx context.Context, options DeviceLoadOptions) (err error) {
	d.logger.V(1).Info("load()")

	d.locker.Lock()
	if d.state != deviceStateUnloaded {
		d.locker.Unlock()
		return newAlreadyLoadedError()
	}
	d.state = deviceStateLoading
	d.locker.Unlock()

	defer func() {
		if err != nil {
			d.locker.Lock()
			d.state = deviceStateUnloaded
			d.locker.Unlock()
		}
	}()

	routerRtpCapabilities := options.RouterRtpCapabilities

	if routerRtpCapabilities == nil {
		if d.signaler == nil {
			return NewTypeError("missing routerRtpCapabilities")
		}
		routerRtpCapabilities = &RtpCapabilities{}

		if err = signal(ctx, d.signaler, MethodGetRouterRtpCapabilities, H{}, routerRtpCapabilities); err != nil {
			return
		}
	} else {
		routerRtpCapabilities = clone(routerRtpCapabilities)
	}

	if err = ValidateRtpCapabilities(routerRtpCapabilities); err != nil {
		return
	}

	handler := d.handlerFactory()
	defer handler.Close()

	var (
		nativeRtpCapabilities  *RtpCapabilities
		nativeSctpCapabilities *SctpCapabilities
	)

	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() (err error) {
		nativeRtpCapabilities, err = handler.GetNativeRtpCapabilities(gctx)
		return asEngineError(err, "getNativeRtpCapabilities")
	})
	group.Go(func() (err error) {
		nativeSctpCapabilities, err = handler.GetNativeSctpCapabilities(gctx)
		return asEngineError(err, "getNativeSctpCapabilities")
	})

	if err = group.Wait(); err != nil {
		return
	}

	nativeRtpCapabilities = clone(nativeRtpCapabilities)

	if err = ValidateRtpCapabilities(nativeRtpCapabilities); err != nil {
		return
	}

	d.logger.V(1).Info("load() | got native RTP capabilities", "handler", handler.Name())

	extendedRtpCapabilities := GetExtendedRtpCapabilities(nativeRtpCapabilities, routerRtpCapabilities)

	if len(extendedRtpCapabilities.Codecs) == 0 {
		return NewUnsupportedError("no codec shared between the media engine and the router")
	}

	canProduceByKind := map[MediaKind]bool{
		MediaKindAudio: CanSend(MediaKindAudio, extendedRtpCapabilities),
		MediaKindVideo: CanSend(MediaKindVideo, extendedRtpCapabilities),
	}

	recvRtpCapabilities := GetRecvRtpCapabilities(extendedRtpCapabilities)

	if err = ValidateRtpCapabilities(recvRtpCapabilities); err != nil {
		return
	}

	sctpCapabilities := clone(nativeSctpCapabilities)

	if err = ValidateSctpCapabilities(sctpCapabilities); err != nil {
		return
	}
	if router := options.RouterSctpCapabilities; router != nil {
		if router.NumStreams.OS > 0 && router.NumStreams.OS < sctpCapabilities.NumStreams.OS {
			sctpCapabilities.NumStreams.OS = router.NumStreams.OS
		}
		if router.NumStreams.MIS > 0 && router.NumStreams.MIS < sctpCapabilities.NumStreams.MIS {
			sctpCapabilities.NumStreams.MIS = router.NumStreams.MIS
		}
	}

	d.locker.Lock()
	d.handlerName = handler.Name()
	d.extendedRtpCapabilities = extendedRtpCapabilities
	d.recvRtpCapabilities = recvRtpCapabilities
	d.canProduceByKind = canProduceByKind
	d.sctpCapabilities = sctpCapabilities
	d.state = deviceStateLoaded
	d.locker.Unlock()

	d.logger.V(1).Info("load() | succeeded")

	return nil
}

// CanProduce returns whether media of the given kind can be produced.
func (d *Device) CanProduce(kind MediaKind) (bool, error) {
	d.locker.Lock()
	defer d.locker.Unlock()

	if d.state != deviceStateLoaded {
		return false, NewInvalidStateError("not loaded")
	}
	if kind != MediaKindAudio && kind != MediaKindVideo {
		return false, NewTypeError("invalid kind %q", kind)
	}
	return d.canProduceByKind[kind], nil
}

// CreateSendTransport creates a transport to send media.
func (d *Device) CreateSendTransport(options TransportOptions) (*Transport, error) {
	d.logger.V(1).Info("createSendTransport()")

	return d.createTransport(TransportDirectionSend, options)
}

// CreateRecvTransport creates a transport to receive media.
func (d *Device) CreateRecvTransport(options TransportOptions) (*Transport, error) {
	d.logger.V(1).Info("createRecvTransport()")

	return d.createTransport(TransportDirectionRecv, options)
}

func (d *Device) createTransport(direction TransportDirection, options TransportOptions) (*Transport, error) {
	if atomic.LoadUint32(&d.closed) > 0 {
		return nil, NewInvalidStateError("closed")
	}

	d.locker.Lock()
	if d.state != deviceStateLoaded {
		d.locker.Unlock()
		return nil, NewInvalidStateError("not loaded")
	}
	params := transportParams{
		options:                 options,
		direction:               direction,
		extendedRtpCapabilities: d.extendedRtpCapabilities,
		recvRtpCapabilities:     d.recvRtpCapabilities,
		canProduceByKind:        d.canProduceByKind,
		signaler:                d.signaler,
		metrics:                 d.metrics,
	}
	d.locker.Unlock()

	switch {
	case len(options.Id) == 0:
		return nil, NewTypeError("missing id")
	case len(options.IceParameters.UsernameFragment) == 0:
		return nil, NewTypeError("missing iceParameters")
	case len(options.DtlsParameters.Fingerprints) == 0:
		return nil, NewTypeError("missing dtlsParameters")
	case options.SctpParameters != nil && options.SctpParameters.MaxMessageSize == 0:
		return nil, NewTypeError("invalid sctpParameters")
	}

	params.handler = d.handlerFactory()

	transport, err := newTransport(params)
	if err != nil {
		params.handler.Close()
		return nil, err
	}

	d.transports.Store(transport.Id(), transport)

	transport.OnClose(func() {
		d.transports.Delete(transport.Id())
	})

	// Close may have ranged over the transports before the store.
	if atomic.LoadUint32(&d.closed) > 0 {
		transport.Close()
		return nil, NewInvalidStateError("closed")
	}

	// Emit observer event.
	d.observer.SafeEmit("newtransport", transport)

	return transport, nil
}

// Transports returns the live transports.
func (d *Device) Transports() []*Transport {
	return syncMapValues[*Transport](&d.transports)
}

// HandleNotification fans a server notification out to the live transports.
func (d *Device) HandleNotification(method string, data json.RawMessage) {
	d.transports.Range(func(key, value interface{}) bool {
		value.(*Transport).HandleNotification(method, data)
		return true
	})
}

// Close the device and every live transport.
func (d *Device) Close() {
	if atomic.CompareAndSwapUint32(&d.closed, 0, 1) {
		d.logger.V(1).Info("close()")

		d.transports.Range(func(key, value interface{}) bool {
			value.(*Transport).Close()
			return true
		})
	}
}
