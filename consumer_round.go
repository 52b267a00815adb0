package mediasoupclient

import (
	"context"
)

type consumerTaskKind int

const (
	consumerTaskCreate consumerTaskKind = iota
	consumerTaskPause
	consumerTaskResume
	consumerTaskClose
)

func (k consumerTaskKind) String() string {
	switch k {
	case consumerTaskCreate:
		return "receive"
	case consumerTaskPause:
		return "pauseReceiving"
	case consumerTaskResume:
		return "resumeReceiving"
	default:
		return "stopReceiving"
	}
}

// consumerTask is a consumer request waiting for the next consumer round.
type consumerTask struct {
	kind     consumerTaskKind
	ctx      context.Context
	options  ConsumerOptions
	consumer *Consumer
	result   *Consumer
	started  bool
	done     chan error
}

// enqueueConsumerTask adds task to the pending consumer requests and waits for
// the round that handles it. All requests pending when a round starts are
// handled by that round, one handler call per kind.
func (t *Transport) enqueueConsumerTask(task *consumerTask) error {
	t.locker.Lock()
	if t.Closed() {
		t.locker.Unlock()
		return NewCancelledError(nil, "%s: transport closed", task.kind)
	}
	t.pendingConsumerTasks = append(t.pendingConsumerTasks, task)
	schedule := !t.consumerRoundScheduled
	t.consumerRoundScheduled = true
	t.locker.Unlock()

	if schedule {
		go t.scheduleConsumerRound()
	}

	select {
	case err := <-task.done:
		return err

	case <-task.ctx.Done():
		t.locker.Lock()
		if !task.started && t.removeConsumerTask(task) {
			t.locker.Unlock()
			return NewCancelledError(task.ctx.Err(), "%s aborted", task.kind)
		}
		t.locker.Unlock()

		return <-task.done
	}
}

func (t *Transport) removeConsumerTask(task *consumerTask) bool {
	for i, pending := range t.pendingConsumerTasks {
		if pending == task {
			t.pendingConsumerTasks = append(t.pendingConsumerTasks[:i], t.pendingConsumerTasks[i+1:]...)
			return true
		}
	}
	return false
}

func (t *Transport) scheduleConsumerRound() {
	err := t.push(context.Background(), "consumers", t.runConsumerRound)
	if err == nil {
		return
	}

	// The queue refused the round, fail what is still pending.
	t.locker.Lock()
	tasks := t.pendingConsumerTasks
	t.pendingConsumerTasks = nil
	t.consumerRoundScheduled = false
	t.locker.Unlock()

	for _, task := range tasks {
		task.done <- err
	}
}

func (t *Transport) runConsumerRound(ctx context.Context) error {
	t.locker.Lock()
	tasks := t.pendingConsumerTasks
	t.pendingConsumerTasks = nil
	t.consumerRoundScheduled = false
	for _, task := range tasks {
		task.started = true
	}
	t.locker.Unlock()

	t.logger.V(1).Info("consumer round", "requests", len(tasks))

	byKind := map[consumerTaskKind][]*consumerTask{}

	for _, task := range tasks {
		byKind[task.kind] = append(byKind[task.kind], task)
	}

	if creates := byKind[consumerTaskCreate]; len(creates) > 0 {
		t.createConsumers(ctx, creates)
	}

	for _, kind := range []consumerTaskKind{consumerTaskClose, consumerTaskPause, consumerTaskResume} {
		tasks := byKind[kind]
		if len(tasks) == 0 {
			continue
		}

		localIds := make([]string, 0, len(tasks))
		for _, task := range tasks {
			localIds = append(localIds, task.consumer.LocalId())
		}

		var err error

		switch kind {
		case consumerTaskClose:
			err = t.handler.StopReceiving(ctx, localIds)
		case consumerTaskPause:
			err = t.handler.PauseReceiving(ctx, localIds)
		case consumerTaskResume:
			err = t.handler.ResumeReceiving(ctx, localIds)
		}

		err = t.roundError(ctx, err, kind.String())

		for _, task := range tasks {
			task.done <- err
		}
	}

	return nil
}

func (t *Transport) createConsumers(ctx context.Context, tasks []*consumerTask) {
	options := make([]HandlerReceiveOptions, 0, len(tasks)+1)

	for _, task := range tasks {
		options = append(options, HandlerReceiveOptions{
			TrackId:       task.options.Id,
			Kind:          task.options.Kind,
			RtpParameters: task.options.RtpParameters,
			StreamId:      task.options.StreamId,
		})
	}

	withProbator := false

	if !t.probatorConsumerCreated {
		for _, task := range tasks {
			if task.options.Kind != MediaKindVideo {
				continue
			}
			probatorParameters, err := GenerateProbatorRtpParameters(task.options.RtpParameters)
			if err != nil {
				t.logger.Error(err, "failed to create RTP probator parameters")
				break
			}
			options = append(options, HandlerReceiveOptions{
				TrackId:       rtpProbatorMid,
				Kind:          MediaKindVideo,
				RtpParameters: probatorParameters,
			})
			withProbator = true
			break
		}
	}

	results, err := t.handler.Receive(ctx, options)
	if err == nil && len(results) != len(options) {
		err = NewEngineError(nil, "receive returned %d results for %d tracks", len(results), len(options))
	}
	if err = t.roundError(ctx, err, "receive"); err != nil {
		for _, task := range tasks {
			task.done <- err
		}
		return
	}

	if withProbator {
		t.logger.V(1).Info("createConsumers() | Consumer for RTP probation created")
		t.probatorConsumerCreated = true
	}

	var aborted []string

	for i, task := range tasks {
		result := results[i]

		if task.ctx.Err() != nil {
			aborted = append(aborted, result.LocalId)
			task.done <- NewCancelledError(task.ctx.Err(), "consume aborted")
			continue
		}

		consumer := newConsumer(consumerParams{
			id:             task.options.Id,
			localId:        result.LocalId,
			producerId:     task.options.ProducerId,
			track:          result.Track,
			rtpParameters:  task.options.RtpParameters,
			producerPaused: task.options.ProducerPaused,
			appData:        task.options.AppData,
			transport:      t,
		})

		if !t.register(&t.consumers, consumer.Id(), consumer) {
			aborted = append(aborted, result.LocalId)
			task.done <- NewCancelledError(nil, "consume: transport closed")
			continue
		}
		t.metrics.consumerAdded(1)

		task.result = consumer
		task.done <- nil
	}

	if len(aborted) > 0 && !t.Closed() {
		if err := t.handler.StopReceiving(context.WithoutCancel(ctx), aborted); err != nil {
			t.logger.Error(err, "stopReceiving failed", "localIds", aborted)
		}
	}
}

// roundError classifies a handler error of a consumer round.
func (t *Transport) roundError(ctx context.Context, err error, op string) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return NewCancelledError(err, "%s: transport closed", op)
	}
	return asEngineError(err, op)
}
