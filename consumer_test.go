package mediasoupclient

import (
	"encoding/json"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"
)

func (suite *TransportTestingSuite) TestConsumerPauseResume() {
	consumer := suite.consume("audio/opus")

	onObserverPause := suite.Fn()
	consumer.Observer().On("pause", onObserverPause.Fn())
	onObserverResume := suite.Fn()
	consumer.Observer().On("resume", onObserverResume.Fn())

	suite.NoError(consumer.Pause(suite.Ctx()))
	suite.True(consumer.Paused())
	suite.True(consumer.LocalPaused())
	onObserverPause.ExpectCalledTimes(1)
	suite.Equal([][]string{{consumer.LocalId()}}, suite.recvHandler.pauseRecv)

	req, ok := suite.signaler.lastRequest(MethodPauseConsumer)
	suite.Require().True(ok)
	suite.Equal(H{"consumerId": consumer.Id()}, req.data)

	suite.NoError(consumer.Pause(suite.Ctx()))
	suite.Equal(1, suite.countRequests(MethodPauseConsumer))

	suite.NoError(consumer.Resume(suite.Ctx()))
	suite.False(consumer.Paused())
	onObserverResume.ExpectCalledTimes(1)
	suite.Equal([][]string{{consumer.LocalId()}}, suite.recvHandler.resumeRecv)
	suite.Equal(1, suite.countRequests(MethodResumeConsumer))

	suite.NoError(consumer.Resume(suite.Ctx()))
	suite.Equal(1, suite.countRequests(MethodResumeConsumer))
}

func (suite *TransportTestingSuite) TestConsumerPauseCoalescing() {
	first := suite.consume("audio/opus")
	second := suite.consume("audio/opus")

	// Keep a consumer round busy so both pause requests wait for the next one.
	gate := make(chan struct{})
	suite.recvHandler.mu.Lock()
	suite.recvHandler.gate = gate
	suite.recvHandler.mu.Unlock()

	receiveCalls := suite.recvHandler.receiveCallCount()

	group := new(errgroup.Group)
	group.Go(func() error {
		_, err := suite.recvTransport.Consume(suite.Ctx(), generateConsumerRemoteParameters("audio/opus"))
		return err
	})
	suite.Eventually(func() bool { return suite.recvHandler.receiveCallCount() == receiveCalls+1 }, time.Second, time.Millisecond)

	group.Go(func() error { return first.Pause(suite.Ctx()) })
	group.Go(func() error { return second.Pause(suite.Ctx()) })

	suite.Eventually(func() bool {
		suite.recvTransport.locker.Lock()
		defer suite.recvTransport.locker.Unlock()

		return len(suite.recvTransport.pendingConsumerTasks) == 2
	}, time.Second, time.Millisecond)

	close(gate)
	suite.NoError(group.Wait())

	suite.Require().Len(suite.recvHandler.pauseRecv, 1)
	suite.ElementsMatch([]string{first.LocalId(), second.LocalId()}, suite.recvHandler.pauseRecv[0])
	suite.Equal(2, suite.countRequests(MethodPauseConsumer))
}

func (suite *TransportTestingSuite) TestConsumerPauseNotifyFailure() {
	consumer := suite.consume("audio/opus")

	fail := func(data interface{}) (interface{}, error) {
		return nil, errors.New("timeout")
	}
	suite.signaler.respond(MethodPauseConsumer, fail)
	suite.signaler.respond(MethodResumeConsumer, fail)

	suite.NoError(consumer.Pause(suite.Ctx()))
	suite.True(consumer.LocalPaused())
	suite.Equal([][]string{{consumer.LocalId()}}, suite.recvHandler.pauseRecv)

	req, ok := suite.signaler.lastRequest(MethodPauseConsumer)
	suite.Require().True(ok)
	suite.True(req.notification)
	suite.Equal(H{"consumerId": consumer.Id()}, req.data)

	// Resume still reaches the engine.
	suite.NoError(consumer.Resume(suite.Ctx()))
	suite.False(consumer.LocalPaused())
	suite.Equal([][]string{{consumer.LocalId()}}, suite.recvHandler.resumeRecv)
}

func (suite *TransportTestingSuite) TestConsumerCloseNotifies() {
	consumer := suite.consume("audio/opus")

	suite.signaler.respond(MethodCloseConsumer, func(data interface{}) (interface{}, error) {
		return nil, errors.New("timeout")
	})

	suite.NoError(consumer.Close(suite.Ctx()))
	suite.True(consumer.Closed())
	suite.Equal([][]string{{consumer.LocalId()}}, suite.recvHandler.stopReceiving)

	req, ok := suite.signaler.lastRequest(MethodCloseConsumer)
	suite.Require().True(ok)
	suite.True(req.notification)
}

func (suite *TransportTestingSuite) TestConsumerRemotePause() {
	consumer := suite.consume("audio/opus")

	onProducerPause := suite.Fn()
	consumer.On("producerpause", onProducerPause.Fn())
	onProducerResume := suite.Fn()
	consumer.On("producerresume", onProducerResume.Fn())
	onObserverPause := suite.Fn()
	consumer.Observer().On("pause", onObserverPause.Fn())
	onObserverResume := suite.Fn()
	consumer.Observer().On("resume", onObserverResume.Fn())

	consumer.setRemotePaused(true)
	suite.True(consumer.Paused())
	suite.True(consumer.RemotePaused())
	suite.False(consumer.LocalPaused())
	onProducerPause.ExpectCalledTimes(1)
	onObserverPause.ExpectCalledTimes(1)

	// Repeated notifications do not emit again.
	consumer.setRemotePaused(true)
	onProducerPause.ExpectCalledTimes(1)

	// Paused locally while the producer is paused, no extra observer event.
	suite.NoError(consumer.Pause(suite.Ctx()))
	onObserverPause.ExpectCalledTimes(1)

	consumer.setRemotePaused(false)
	onProducerResume.ExpectCalledTimes(1)
	onObserverResume.ExpectNotCalled()
	suite.True(consumer.Paused())

	suite.NoError(consumer.Resume(suite.Ctx()))
	onObserverResume.ExpectCalledTimes(1)
	suite.False(consumer.Paused())
}

func (suite *TransportTestingSuite) TestConsumerScoreAndLayers() {
	consumer := suite.consume("video/VP8")

	suite.Nil(consumer.Score())
	suite.Nil(consumer.CurrentLayers())

	onScore := suite.Fn()
	consumer.On("score", onScore.Fn())
	onLayersChange := suite.Fn()
	consumer.On("layerschange", onLayersChange.Fn())

	data, err := json.Marshal(ConsumerScore{Score: 10, ProducerScore: 9, ProducerScores: []uint8{9}})
	suite.Require().NoError(err)
	consumer.updateScore(data)

	expectedScore := &ConsumerScore{Score: 10, ProducerScore: 9, ProducerScores: []uint8{9}}
	suite.Equal(expectedScore, consumer.Score())
	onScore.ExpectCalledWith(expectedScore)

	// Malformed scores are dropped.
	consumer.updateScore(json.RawMessage(`"bad"`))
	suite.Equal(expectedScore, consumer.Score())

	layers := &ConsumerLayers{SpatialLayer: 1}
	consumer.updateLayers(layers)
	suite.Equal(layers, consumer.CurrentLayers())
	onLayersChange.ExpectCalledWith(layers)

	consumer.updateLayers(nil)
	suite.Nil(consumer.CurrentLayers())
}

func (suite *TransportTestingSuite) TestConsumerGetStats() {
	consumer := suite.consume("audio/opus")

	stats, err := consumer.GetStats(suite.Ctx())
	suite.NoError(err)
	suite.Equal(StatsReport{"inbound-rtp": H{"mid": consumer.LocalId()}}, stats)
}

func (suite *TransportTestingSuite) TestConsumerClose() {
	consumer := suite.consume("audio/opus")

	onConsumerClose := suite.Fn()
	suite.recvTransport.On("consumerclose", onConsumerClose.Fn())
	onObserverClose := suite.Fn()
	consumer.Observer().On("close", onObserverClose.Fn())

	suite.NoError(consumer.Close(suite.Ctx()))
	suite.NoError(consumer.Close(suite.Ctx()))

	onConsumerClose.ExpectCalledWith(consumer)
	onObserverClose.ExpectCalledTimes(1)

	suite.True(consumer.Closed())
	suite.Empty(suite.recvTransport.Consumers())
	suite.Equal([][]string{{consumer.LocalId()}}, suite.recvHandler.stopReceiving)

	req, ok := suite.signaler.lastRequest(MethodCloseConsumer)
	suite.Require().True(ok)
	suite.Equal(H{"consumerId": consumer.Id()}, req.data)
	suite.Equal(1, suite.countRequests(MethodCloseConsumer))

	suite.ErrorIs(consumer.Pause(suite.Ctx()), ErrInvalidState)
	suite.ErrorIs(consumer.Resume(suite.Ctx()), ErrInvalidState)

	_, err := consumer.GetStats(suite.Ctx())
	suite.ErrorIs(err, ErrInvalidState)

	consumer.setRemotePaused(true)
	suite.False(consumer.RemotePaused())
}

func (suite *TransportTestingSuite) TestConsumerTransportClosed() {
	consumer := suite.consume("audio/opus")

	onTransportClose := suite.Fn()
	consumer.On("transportclose", onTransportClose.Fn())
	onObserverClose := suite.Fn()
	consumer.Observer().On("close", onObserverClose.Fn())

	suite.recvTransport.Close()

	onTransportClose.ExpectCalledTimes(1)
	onObserverClose.ExpectCalledTimes(1)
	suite.True(consumer.Closed())
	suite.Equal(0, suite.countRequests(MethodCloseConsumer))
}
