package mediasoupclient

import "errors"

func (suite *TransportTestingSuite) produceData() (*DataProducer, *fakeDataChannel) {
	dataProducer, err := suite.sendTransport.ProduceData(suite.Ctx(), DataProducerOptions{Label: "chat"})
	suite.Require().NoError(err)

	suite.sendHandler.mu.Lock()
	defer suite.sendHandler.mu.Unlock()

	return dataProducer, suite.sendHandler.dataChannels[len(suite.sendHandler.dataChannels)-1]
}

func (suite *TransportTestingSuite) consumeData() (*DataConsumer, *fakeDataChannel) {
	dataConsumer, err := suite.recvTransport.ConsumeData(suite.Ctx(), generateDataConsumerRemoteParameters())
	suite.Require().NoError(err)

	suite.recvHandler.mu.Lock()
	defer suite.recvHandler.mu.Unlock()

	return dataConsumer, suite.recvHandler.dataChannels[len(suite.recvHandler.dataChannels)-1]
}

func (suite *TransportTestingSuite) TestDataProducerSend() {
	dataProducer, dataChannel := suite.produceData()

	onOpen := suite.Fn()
	dataProducer.On("open", onOpen.Fn())

	suite.Equal("connecting", dataProducer.ReadyState())
	dataChannel.open()
	onOpen.ExpectCalledTimes(1)
	suite.Equal("open", dataProducer.ReadyState())

	suite.NoError(dataProducer.Send([]byte{1, 2, 3}))
	suite.NoError(dataProducer.SendText("hello"))
	suite.Equal([][]byte{{1, 2, 3}, []byte("hello")}, dataChannel.sent)
}

func (suite *TransportTestingSuite) TestDataProducerEvents() {
	dataProducer, dataChannel := suite.produceData()

	onError := suite.Fn()
	dataProducer.On("error", onError.Fn())
	onClose := suite.Fn()
	dataProducer.On("close", onClose.Fn())
	onBufferedAmountLow := suite.Fn()
	dataProducer.On("bufferedamountlow", onBufferedAmountLow.Fn())

	channelErr := errors.New("sctp failure")
	dataChannel.onError(channelErr)
	onError.ExpectCalledWith(channelErr)

	dataChannel.onLow()
	onBufferedAmountLow.ExpectCalledWith(uint64(0))

	// The channel closing underneath does not close the data producer.
	dataChannel.onClose()
	onClose.ExpectCalledTimes(1)
	suite.False(dataProducer.Closed())
}

func (suite *TransportTestingSuite) TestDataProducerClose() {
	dataProducer, dataChannel := suite.produceData()

	onDataProducerClose := suite.Fn()
	suite.sendTransport.On("dataproducerclose", onDataProducerClose.Fn())
	onObserverClose := suite.Fn()
	dataProducer.Observer().On("close", onObserverClose.Fn())

	suite.NoError(dataProducer.Close(suite.Ctx()))
	suite.NoError(dataProducer.Close(suite.Ctx()))

	onDataProducerClose.ExpectCalledWith(dataProducer)
	onObserverClose.ExpectCalledTimes(1)

	suite.True(dataProducer.Closed())
	suite.Equal("closed", dataChannel.ReadyState())
	suite.Empty(suite.sendTransport.DataProducers())

	req, ok := suite.signaler.lastRequest(MethodCloseDataProducer)
	suite.Require().True(ok)
	suite.Equal(H{"dataProducerId": dataProducer.Id()}, req.data)
	suite.True(req.notification)
	suite.Equal(1, suite.countRequests(MethodCloseDataProducer))

	suite.ErrorIs(dataProducer.Send([]byte{1}), ErrInvalidState)
	suite.ErrorIs(dataProducer.SendText("hello"), ErrInvalidState)
}

func (suite *TransportTestingSuite) TestDataProducerTransportClosed() {
	dataProducer, dataChannel := suite.produceData()

	onTransportClose := suite.Fn()
	dataProducer.On("transportclose", onTransportClose.Fn())

	suite.sendTransport.Close()

	onTransportClose.ExpectCalledTimes(1)
	suite.True(dataProducer.Closed())
	suite.Equal("closed", dataChannel.ReadyState())
	suite.Equal(0, suite.countRequests(MethodCloseDataProducer))
}

func (suite *TransportTestingSuite) TestDataConsumerMessages() {
	dataConsumer, dataChannel := suite.consumeData()

	onOpen := suite.Fn()
	dataConsumer.On("open", onOpen.Fn())
	onMessage := suite.Fn()
	dataConsumer.On("message", onMessage.Fn())

	dataChannel.open()
	onOpen.ExpectCalledTimes(1)

	dataChannel.onMessage([]byte("hello"), true)
	onMessage.ExpectCalledWith([]byte("hello"), true)
}

func (suite *TransportTestingSuite) TestDataConsumerClose() {
	dataConsumer, dataChannel := suite.consumeData()

	onDataConsumerClose := suite.Fn()
	suite.recvTransport.On("dataconsumerclose", onDataConsumerClose.Fn())
	onObserverClose := suite.Fn()
	dataConsumer.Observer().On("close", onObserverClose.Fn())

	suite.NoError(dataConsumer.Close(suite.Ctx()))
	suite.NoError(dataConsumer.Close(suite.Ctx()))

	onDataConsumerClose.ExpectCalledWith(dataConsumer)
	onObserverClose.ExpectCalledTimes(1)

	suite.True(dataConsumer.Closed())
	suite.Equal("closed", dataChannel.ReadyState())
	suite.Empty(suite.recvTransport.DataConsumers())

	req, ok := suite.signaler.lastRequest(MethodCloseDataConsumer)
	suite.Require().True(ok)
	suite.Equal(H{"dataConsumerId": dataConsumer.Id()}, req.data)
	suite.True(req.notification)

	// Messages after close are dropped.
	onMessage := suite.Fn()
	dataConsumer.On("message", onMessage.Fn())
	dataChannel.onMessage([]byte("late"), false)
	onMessage.ExpectNotCalled()
}

func (suite *TransportTestingSuite) TestDataConsumerDataProducerClosed() {
	dataConsumer, dataChannel := suite.consumeData()

	onDataProducerClose := suite.Fn()
	dataConsumer.On("dataproducerclose", onDataProducerClose.Fn())

	dataConsumer.dataProducerClosed()

	onDataProducerClose.ExpectCalledTimes(1)
	suite.True(dataConsumer.Closed())
	suite.Equal("closed", dataChannel.ReadyState())
	suite.Empty(suite.recvTransport.DataConsumers())
	suite.Equal(0, suite.countRequests(MethodCloseDataConsumer))
}
