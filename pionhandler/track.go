package pionhandler

import (
	"sync"

	"github.com/pion/webrtc/v4"

	mediasoupclient "github.com/jiyeyuran/mediasoup-client-go"
)

type endState struct {
	mu       sync.Mutex
	ended    bool
	handlers []func()
}

// Ended returns whether the track ended.
func (s *endState) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ended
}

// OnEnded registers fn to be called once the track ends.
func (s *endState) OnEnded(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.handlers = append(s.handlers, fn)
}

func (s *endState) end() {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	handlers := s.handlers
	s.handlers = nil
	s.mu.Unlock()

	for _, handler := range handlers {
		handler()
	}
}

// LocalTrack is a pion local track given to Transport.Produce.
type LocalTrack struct {
	endState
	track webrtc.TrackLocal
}

// NewLocalTrack wraps a pion local track, e.g. webrtc.TrackLocalStaticSample.
func NewLocalTrack(track webrtc.TrackLocal) *LocalTrack {
	return &LocalTrack{track: track}
}

func (t *LocalTrack) Id() string {
	return t.track.ID()
}

func (t *LocalTrack) Kind() mediasoupclient.MediaKind {
	return mediasoupclient.MediaKind(t.track.Kind().String())
}

// TrackLocal returns the wrapped pion track.
func (t *LocalTrack) TrackLocal() webrtc.TrackLocal {
	return t.track
}

// Stop ends the track. A producer of the track emits "trackended".
func (t *LocalTrack) Stop() {
	t.end()
}

// RemoteTrack is the track of a consumer. It ends when the consumer is
// closed or the handler is closed.
type RemoteTrack struct {
	endState
	id       string
	kind     mediasoupclient.MediaKind
	receiver *webrtc.RTPReceiver
}

func newRemoteTrack(id string, kind mediasoupclient.MediaKind, receiver *webrtc.RTPReceiver) *RemoteTrack {
	return &RemoteTrack{id: id, kind: kind, receiver: receiver}
}

func (t *RemoteTrack) Id() string {
	return t.id
}

func (t *RemoteTrack) Kind() mediasoupclient.MediaKind {
	return t.kind
}

// Receiver returns the pion receiver of the track.
func (t *RemoteTrack) Receiver() *webrtc.RTPReceiver {
	return t.receiver
}

// Track returns the pion remote track to read RTP packets from.
func (t *RemoteTrack) Track() *webrtc.TrackRemote {
	return t.receiver.Track()
}
