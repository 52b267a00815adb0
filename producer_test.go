package mediasoupclient

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func (suite *TransportTestingSuite) TestProducerPauseResume() {
	producer := suite.produce(MediaKindVideo)

	onObserverPause := suite.Fn()
	producer.Observer().On("pause", onObserverPause.Fn())

	suite.NoError(producer.Pause(suite.Ctx()))
	suite.True(producer.Paused())
	suite.True(producer.LocalPaused())
	onObserverPause.ExpectCalledTimes(1)

	suite.Equal([]string{producer.LocalId()}, suite.sendHandler.pauseSending)

	req, ok := suite.signaler.lastRequest(MethodPauseProducer)
	suite.Require().True(ok)
	suite.Equal(H{"producerId": producer.Id()}, req.data)

	// Pausing twice is a no-op.
	suite.NoError(producer.Pause(suite.Ctx()))
	suite.Len(suite.sendHandler.pauseSending, 1)
	suite.Equal(1, suite.countRequests(MethodPauseProducer))

	onObserverResume := suite.Fn()
	producer.Observer().On("resume", onObserverResume.Fn())

	suite.NoError(producer.Resume(suite.Ctx()))
	suite.False(producer.Paused())
	onObserverResume.ExpectCalledTimes(1)
	suite.Equal([]string{producer.LocalId()}, suite.sendHandler.resumeSending)
	suite.Equal(1, suite.countRequests(MethodResumeProducer))

	suite.NoError(producer.Resume(suite.Ctx()))
	suite.Equal(1, suite.countRequests(MethodResumeProducer))
}

func (suite *TransportTestingSuite) TestProducerPauseNotifyFailure() {
	producer := suite.produce(MediaKindAudio)

	fail := func(data interface{}) (interface{}, error) {
		return nil, errors.New("timeout")
	}
	suite.signaler.respond(MethodPauseProducer, fail)
	suite.signaler.respond(MethodResumeProducer, fail)

	// The engine paused, so the producer is paused whatever the server heard.
	suite.NoError(producer.Pause(suite.Ctx()))
	suite.True(producer.LocalPaused())
	suite.Equal([]string{producer.LocalId()}, suite.sendHandler.pauseSending)
	suite.Equal(1.0, testutil.ToFloat64(suite.metrics.signalingFailures.WithLabelValues(MethodPauseProducer)))

	req, ok := suite.signaler.lastRequest(MethodPauseProducer)
	suite.Require().True(ok)
	suite.True(req.notification)

	suite.NoError(producer.Resume(suite.Ctx()))
	suite.False(producer.LocalPaused())
	suite.Equal([]string{producer.LocalId()}, suite.sendHandler.resumeSending)
}

func (suite *TransportTestingSuite) TestProducerCloseNotifies() {
	producer := suite.produce(MediaKindAudio)

	suite.signaler.respond(MethodCloseProducer, func(data interface{}) (interface{}, error) {
		return nil, errors.New("timeout")
	})

	suite.NoError(producer.Close(suite.Ctx()))
	suite.True(producer.Closed())
	suite.Equal([]string{producer.LocalId()}, suite.sendHandler.stopSending)

	req, ok := suite.signaler.lastRequest(MethodCloseProducer)
	suite.Require().True(ok)
	suite.True(req.notification)
	suite.Equal(H{"producerId": producer.Id()}, req.data)
}

func (suite *TransportTestingSuite) TestProducerRemotePause() {
	producer := suite.produce(MediaKindAudio)

	onObserverPause := suite.Fn()
	producer.Observer().On("pause", onObserverPause.Fn())
	onObserverResume := suite.Fn()
	producer.Observer().On("resume", onObserverResume.Fn())

	suite.NoError(producer.Pause(suite.Ctx()))
	producer.setRemotePaused(true)

	// Still paused locally, a single pause event.
	producer.setRemotePaused(false)
	suite.True(producer.Paused())
	onObserverPause.ExpectCalledTimes(1)
	onObserverResume.ExpectNotCalled()
}

func (suite *TransportTestingSuite) TestProducerReplaceTrack() {
	producer := suite.produce(MediaKindVideo)
	oldTrack := producer.Track().(*fakeTrack)

	newTrack := newFakeTrack(MediaKindVideo)

	suite.NoError(producer.ReplaceTrack(suite.Ctx(), newTrack))
	suite.Equal(newTrack, producer.Track())
	suite.Equal(newTrack, suite.sendHandler.replaced[producer.LocalId()])

	// The replaced track no longer fires trackended.
	onTrackEnded := suite.Fn()
	producer.On("trackended", onTrackEnded.Fn())

	oldTrack.end()
	onTrackEnded.ExpectNotCalled()
	suite.False(producer.Closed())

	err := producer.ReplaceTrack(suite.Ctx(), newFakeTrack(MediaKindAudio))
	suite.IsType(TypeError{}, err)

	ended := newFakeTrack(MediaKindVideo)
	ended.end()
	suite.ErrorIs(producer.ReplaceTrack(suite.Ctx(), ended), ErrInvalidState)

	// A nil track stops sending without closing the producer.
	suite.NoError(producer.ReplaceTrack(suite.Ctx(), nil))
	suite.Nil(producer.Track())
	suite.False(producer.Closed())
}

func (suite *TransportTestingSuite) TestProducerTrackEnded() {
	producer := suite.produce(MediaKindAudio)
	track := producer.Track().(*fakeTrack)

	onTrackEnded := suite.Fn()
	producer.On("trackended", onTrackEnded.Fn())
	onObserverTrackEnded := suite.Fn()
	producer.Observer().On("trackended", onObserverTrackEnded.Fn())

	track.end()

	onTrackEnded.ExpectCalledTimes(1)
	onObserverTrackEnded.ExpectCalledTimes(1)
	suite.False(producer.Closed())
}

func (suite *TransportTestingSuite) TestProducerSetMaxSpatialLayer() {
	video := suite.produce(MediaKindVideo)

	suite.Nil(video.MaxSpatialLayer())
	suite.NoError(video.SetMaxSpatialLayer(suite.Ctx(), 1))
	suite.Require().NotNil(video.MaxSpatialLayer())
	suite.EqualValues(1, *video.MaxSpatialLayer())

	audio := suite.produce(MediaKindAudio)
	suite.ErrorIs(audio.SetMaxSpatialLayer(suite.Ctx(), 1), ErrUnsupportedMedia)

	suite.NoError(video.SetRtpEncodingParameters(suite.Ctx(), RtpEncodingParameters{MaxBitrate: 500000}))
}

func (suite *TransportTestingSuite) TestProducerSetRtpEncodingParameters() {
	producer := suite.produce(MediaKindVideo)
	ssrc := producer.RtpParameters().Encodings[0].Ssrc

	err := producer.SetRtpEncodingParameters(suite.Ctx(), RtpEncodingParameters{
		MaxBitrate: 500000,
		Active:     ref(false),
	})
	suite.NoError(err)

	encoding := producer.RtpParameters().Encodings[0]
	suite.Equal(ssrc, encoding.Ssrc)
	suite.EqualValues(500000, encoding.MaxBitrate)
	suite.Require().NotNil(encoding.Active)
	suite.False(*encoding.Active)

	// Unset fields keep their value.
	suite.NoError(producer.SetRtpEncodingParameters(suite.Ctx(), RtpEncodingParameters{Active: ref(true)}))

	encoding = producer.RtpParameters().Encodings[0]
	suite.EqualValues(500000, encoding.MaxBitrate)
	suite.True(*encoding.Active)
}

func (suite *TransportTestingSuite) TestProducerGetStats() {
	producer := suite.produce(MediaKindAudio)

	stats, err := producer.GetStats(suite.Ctx())
	suite.NoError(err)
	suite.Equal(StatsReport{"outbound-rtp": H{"mid": producer.LocalId()}}, stats)
}

func (suite *TransportTestingSuite) TestProducerRtpParametersAreCopies() {
	producer := suite.produce(MediaKindAudio)

	params := producer.RtpParameters()
	params.Codecs = nil

	suite.Len(producer.RtpParameters().Codecs, 1)
}

func (suite *TransportTestingSuite) TestProducerClose() {
	producer := suite.produce(MediaKindAudio)

	onProducerClose := suite.Fn()
	suite.sendTransport.On("producerclose", onProducerClose.Fn())
	onObserverClose := suite.Fn()
	producer.Observer().On("close", onObserverClose.Fn())

	suite.NoError(producer.Close(suite.Ctx()))
	suite.NoError(producer.Close(suite.Ctx()))

	onProducerClose.ExpectCalledWith(producer)
	onObserverClose.ExpectCalledTimes(1)

	suite.True(producer.Closed())
	suite.Empty(suite.sendTransport.Producers())
	suite.Equal([]string{producer.LocalId()}, suite.sendHandler.stopSending)
	suite.Equal(1, suite.countRequests(MethodCloseProducer))

	suite.ErrorIs(producer.Pause(suite.Ctx()), ErrInvalidState)
	suite.ErrorIs(producer.Resume(suite.Ctx()), ErrInvalidState)
	suite.ErrorIs(producer.ReplaceTrack(suite.Ctx(), nil), ErrInvalidState)
	suite.ErrorIs(producer.SetMaxSpatialLayer(suite.Ctx(), 0), ErrInvalidState)

	_, err := producer.GetStats(suite.Ctx())
	suite.ErrorIs(err, ErrInvalidState)

	// Notifications for a closed producer are ignored.
	producer.setRemotePaused(true)
	suite.False(producer.RemotePaused())
}
