package mediasoupclient

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"
)

type DeviceTestingSuite struct {
	TestingSuite
	signaler   *fakeSignaler
	handlers   []*fakeHandler
	nativeCaps *RtpCapabilities
	onHandler  func()
	mu         sync.Mutex
	device     *Device
}

func (suite *DeviceTestingSuite) SetupTest() {
	suite.signaler = newFakeSignaler()
	suite.handlers = nil
	suite.nativeCaps = nil
	suite.onHandler = nil

	device, err := NewDevice(DeviceOptions{
		HandlerFactory: suite.newHandler,
		Signaler:       suite.signaler,
	})
	suite.NoError(err)
	suite.device = device
}

func (suite *DeviceTestingSuite) TearDownTest() {
	suite.device.Close()
}

func (suite *DeviceTestingSuite) newHandler() Handler {
	suite.mu.Lock()
	handler := newFakeHandler()
	handler.nativeCaps = suite.nativeCaps
	suite.handlers = append(suite.handlers, handler)
	onHandler := suite.onHandler
	suite.mu.Unlock()

	if onHandler != nil {
		onHandler()
	}
	return handler
}

func (suite *DeviceTestingSuite) load() {
	err := suite.device.Load(suite.Ctx(), DeviceLoadOptions{
		RouterRtpCapabilities: generateRouterRtpCapabilities(),
	})
	suite.Require().NoError(err)
}

func (suite *DeviceTestingSuite) TestNewDeviceWithoutFactory() {
	_, err := NewDevice(DeviceOptions{})
	suite.IsType(TypeError{}, err)
}

func (suite *DeviceTestingSuite) TestNotLoaded() {
	suite.False(suite.device.Loaded())
	suite.Empty(suite.device.HandlerName())

	_, err := suite.device.RtpCapabilities()
	suite.ErrorIs(err, ErrInvalidState)

	_, err = suite.device.SctpCapabilities()
	suite.ErrorIs(err, ErrInvalidState)

	_, err = suite.device.CanProduce(MediaKindAudio)
	suite.ErrorIs(err, ErrInvalidState)

	_, err = suite.device.CreateSendTransport(generateTransportRemoteParameters())
	suite.ErrorIs(err, ErrInvalidState)

	_, err = suite.device.CreateRecvTransport(generateTransportRemoteParameters())
	suite.ErrorIs(err, ErrInvalidState)
}

func (suite *DeviceTestingSuite) TestLoad() {
	routerRtpCapabilities := generateRouterRtpCapabilities()

	err := suite.device.Load(suite.Ctx(), DeviceLoadOptions{
		RouterRtpCapabilities: routerRtpCapabilities,
	})
	suite.NoError(err)

	suite.True(suite.device.Loaded())
	suite.Equal("FakeHandler", suite.device.HandlerName())

	// The handler queried for capabilities is closed after loading.
	suite.Len(suite.handlers, 1)
	suite.True(suite.handlers[0].isClosed())

	rtpCapabilities, err := suite.device.RtpCapabilities()
	suite.NoError(err)
	suite.Len(rtpCapabilities.Codecs, 3)

	sctpCapabilities, err := suite.device.SctpCapabilities()
	suite.NoError(err)
	suite.EqualValues(2048, sctpCapabilities.NumStreams.OS)
	suite.EqualValues(2048, sctpCapabilities.NumStreams.MIS)

	canProduce, err := suite.device.CanProduce(MediaKindAudio)
	suite.NoError(err)
	suite.True(canProduce)

	canProduce, err = suite.device.CanProduce(MediaKindVideo)
	suite.NoError(err)
	suite.True(canProduce)

	_, err = suite.device.CanProduce("chicken")
	suite.IsType(TypeError{}, err)

	// Returned capabilities are copies.
	rtpCapabilities.Codecs = nil
	rtpCapabilities, _ = suite.device.RtpCapabilities()
	suite.Len(rtpCapabilities.Codecs, 3)
}

func (suite *DeviceTestingSuite) TestLoadTwice() {
	suite.load()

	err := suite.device.Load(suite.Ctx(), DeviceLoadOptions{
		RouterRtpCapabilities: generateRouterRtpCapabilities(),
	})
	suite.ErrorIs(err, ErrAlreadyLoaded)

	var stateErr InvalidStateError
	suite.ErrorAs(err, &stateErr)
}

func (suite *DeviceTestingSuite) TestLoadRequestsRouterCapabilities() {
	suite.signaler.respond(MethodGetRouterRtpCapabilities, func(data interface{}) (interface{}, error) {
		return generateRouterRtpCapabilities(), nil
	})

	suite.NoError(suite.device.Load(suite.Ctx(), DeviceLoadOptions{}))
	suite.True(suite.device.Loaded())
	suite.Equal([]string{MethodGetRouterRtpCapabilities}, suite.signaler.methods())
}

func (suite *DeviceTestingSuite) TestLoadSignalingFailureCanBeRetried() {
	suite.signaler.respond(MethodGetRouterRtpCapabilities, func(data interface{}) (interface{}, error) {
		return nil, errors.New("request timeout")
	})

	err := suite.device.Load(suite.Ctx(), DeviceLoadOptions{})
	suite.ErrorIs(err, ErrSignaling)
	suite.False(suite.device.Loaded())

	suite.load()
	suite.True(suite.device.Loaded())
}

func (suite *DeviceTestingSuite) TestLoadInvalidRouterCapabilities() {
	routerRtpCapabilities := generateRouterRtpCapabilities()
	routerRtpCapabilities.Codecs[0].MimeType = "chicken"

	err := suite.device.Load(suite.Ctx(), DeviceLoadOptions{
		RouterRtpCapabilities: routerRtpCapabilities,
	})
	suite.IsType(TypeError{}, err)
	suite.False(suite.device.Loaded())
}

func (suite *DeviceTestingSuite) TestLoadWithoutSharedCodecs() {
	routerRtpCapabilities := generateRouterRtpCapabilities()
	routerRtpCapabilities.Codecs = routerRtpCapabilities.Codecs[3:]

	err := suite.device.Load(suite.Ctx(), DeviceLoadOptions{
		RouterRtpCapabilities: routerRtpCapabilities,
	})
	suite.ErrorIs(err, ErrUnsupportedMedia)
	suite.False(suite.device.Loaded())
}

func (suite *DeviceTestingSuite) TestLoadIntersectsCodecs() {
	opus := &RtpCodecCapability{MimeType: "audio/opus", PreferredPayloadType: 111, ClockRate: 48000, Channels: 2}
	isac := &RtpCodecCapability{MimeType: "audio/ISAC", PreferredPayloadType: 103, ClockRate: 16000}
	vp8 := &RtpCodecCapability{MimeType: "video/VP8", PreferredPayloadType: 96, ClockRate: 90000}
	routerVp8 := &RtpCodecCapability{MimeType: "video/VP8", PreferredPayloadType: 101, ClockRate: 90000}
	h264 := &RtpCodecCapability{
		MimeType:             "video/H264",
		PreferredPayloadType: 103,
		ClockRate:            90000,
		Parameters:           RtpCodecSpecificParameters{PacketizationMode: 1, ProfileLevelId: "42e01f"},
	}

	testCases := []struct {
		name      string
		local     []*RtpCodecCapability
		router    []*RtpCodecCapability
		err       error
		canAudio  bool
		canVideo  bool
		mimeTypes []string
	}{
		{
			name:      "video only shared",
			local:     []*RtpCodecCapability{vp8, opus},
			router:    []*RtpCodecCapability{routerVp8, h264},
			canVideo:  true,
			mimeTypes: []string{"video/VP8"},
		},
		{
			name:      "audio and video shared",
			local:     []*RtpCodecCapability{vp8, opus},
			router:    []*RtpCodecCapability{opus, routerVp8},
			canAudio:  true,
			canVideo:  true,
			mimeTypes: []string{"audio/opus", "video/VP8"},
		},
		{
			name:   "nothing shared",
			local:  []*RtpCodecCapability{isac},
			router: []*RtpCodecCapability{routerVp8, h264},
			err:    ErrUnsupportedMedia,
		},
		{
			name:   "empty local",
			router: []*RtpCodecCapability{opus},
			err:    ErrUnsupportedMedia,
		},
	}

	for _, tc := range testCases {
		suite.TearDownTest()
		suite.SetupTest()

		suite.nativeCaps = clone(&RtpCapabilities{Codecs: tc.local})

		router := clone(&RtpCapabilities{Codecs: tc.router})
		routerBefore := clone(router)

		err := suite.device.Load(suite.Ctx(), DeviceLoadOptions{RouterRtpCapabilities: router})
		suite.Equal(routerBefore, router, tc.name)

		if tc.err != nil {
			suite.ErrorIs(err, tc.err, tc.name)
			suite.False(suite.device.Loaded(), tc.name)
			continue
		}
		suite.Require().NoError(err, tc.name)

		canProduce, err := suite.device.CanProduce(MediaKindAudio)
		suite.NoError(err, tc.name)
		suite.Equal(tc.canAudio, canProduce, tc.name)

		canProduce, err = suite.device.CanProduce(MediaKindVideo)
		suite.NoError(err, tc.name)
		suite.Equal(tc.canVideo, canProduce, tc.name)

		rtpCapabilities, err := suite.device.RtpCapabilities()
		suite.NoError(err, tc.name)

		var mimeTypes []string
		for _, codec := range rtpCapabilities.Codecs {
			mimeTypes = append(mimeTypes, codec.MimeType)
		}
		suite.Equal(tc.mimeTypes, mimeTypes, tc.name)
	}
}

func (suite *DeviceTestingSuite) TestLoadClampsSctpCapabilities() {
	err := suite.device.Load(suite.Ctx(), DeviceLoadOptions{
		RouterRtpCapabilities: generateRouterRtpCapabilities(),
		RouterSctpCapabilities: &SctpCapabilities{
			NumStreams: NumSctpStreams{OS: 1024, MIS: 4096},
		},
	})
	suite.NoError(err)

	sctpCapabilities, err := suite.device.SctpCapabilities()
	suite.NoError(err)
	suite.EqualValues(1024, sctpCapabilities.NumStreams.OS)
	suite.EqualValues(2048, sctpCapabilities.NumStreams.MIS)
}

func (suite *DeviceTestingSuite) TestCreateTransport() {
	suite.load()

	onNewTransport := suite.Fn()
	suite.device.Observer().On("newtransport", onNewTransport.Fn())

	options := generateTransportRemoteParameters()
	options.AppData = H{"foo": "bar"}

	sendTransport, err := suite.device.CreateSendTransport(options)
	suite.NoError(err)
	suite.Equal(options.Id, sendTransport.Id())
	suite.Equal(TransportDirectionSend, sendTransport.Direction())
	suite.Equal(ConnectionStateNew, sendTransport.ConnectionState())
	suite.Equal(H{"foo": "bar"}, sendTransport.AppData())
	suite.False(sendTransport.Closed())

	recvTransport, err := suite.device.CreateRecvTransport(generateTransportRemoteParameters())
	suite.NoError(err)
	suite.Equal(TransportDirectionRecv, recvTransport.Direction())

	onNewTransport.ExpectCalledTimes(2)
	suite.Len(suite.device.Transports(), 2)

	// Every transport has its own handler.
	suite.Len(suite.handlers, 3)
	suite.Equal(TransportDirectionSend, suite.handlers[1].options.Direction)
	suite.Equal(TransportDirectionRecv, suite.handlers[2].options.Direction)

	sendTransport.Close()
	suite.True(suite.handlers[1].isClosed())
	suite.Len(suite.device.Transports(), 1)
}

func (suite *DeviceTestingSuite) TestCreateTransportInvalidOptions() {
	suite.load()

	options := generateTransportRemoteParameters()
	options.Id = ""
	_, err := suite.device.CreateSendTransport(options)
	suite.IsType(TypeError{}, err)

	options = generateTransportRemoteParameters()
	options.IceParameters = IceParameters{}
	_, err = suite.device.CreateSendTransport(options)
	suite.IsType(TypeError{}, err)

	options = generateTransportRemoteParameters()
	options.DtlsParameters.Fingerprints = nil
	_, err = suite.device.CreateRecvTransport(options)
	suite.IsType(TypeError{}, err)

	options = generateTransportRemoteParameters()
	options.SctpParameters.MaxMessageSize = 0
	_, err = suite.device.CreateRecvTransport(options)
	suite.IsType(TypeError{}, err)

	suite.Empty(suite.device.Transports())
}

func (suite *DeviceTestingSuite) TestClose() {
	suite.load()

	onClose := suite.Fn()

	transport, err := suite.device.CreateSendTransport(generateTransportRemoteParameters())
	suite.NoError(err)
	transport.Observer().On("close", onClose.Fn())

	suite.device.Close()

	onClose.ExpectCalledTimes(1)
	suite.True(transport.Closed())
	suite.Empty(suite.device.Transports())

	_, err = suite.device.CreateSendTransport(generateTransportRemoteParameters())
	suite.ErrorIs(err, ErrInvalidState)
}

func (suite *DeviceTestingSuite) TestCloseWhileCreatingTransport() {
	suite.load()

	// Close runs while the transport is being built.
	suite.onHandler = suite.device.Close

	_, err := suite.device.CreateSendTransport(generateTransportRemoteParameters())
	suite.ErrorIs(err, ErrInvalidState)

	suite.Empty(suite.device.Transports())
	suite.True(suite.handlers[len(suite.handlers)-1].isClosed())
}

func TestDeviceTestingSuite(t *testing.T) {
	suite.Run(t, new(DeviceTestingSuite))
}
