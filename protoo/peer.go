// Package protoo is a client of the protoo signaling protocol over websocket.
// A Peer satisfies mediasoupclient.Signaler.
package protoo

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/gorilla/websocket"

	mediasoupclient "github.com/jiyeyuran/mediasoup-client-go"
)

const (
	// Subprotocol is the websocket subprotocol of protoo.
	Subprotocol = "protoo"

	// DefaultRequestTimeout is the time a request waits for its response.
	DefaultRequestTimeout = 15 * time.Second

	maxRequestId = 4294967295
)

var (
	ErrPeerClosed     = errors.New("protoo: peer closed")
	ErrRequestTimeout = errors.New("protoo: request timed out")
)

// RequestHandler answers the requests of the server. A ResponseError sets the
// error code of the response; other errors are answered with code 500.
type RequestHandler func(ctx context.Context, method string, data json.RawMessage) (interface{}, error)

type peerOptions struct {
	timeout        time.Duration
	dialer         *websocket.Dialer
	header         http.Header
	requestHandler RequestHandler
}

// PeerOption configures a Peer.
type PeerOption func(o *peerOptions)

// WithRequestTimeout sets the request timeout. Default 15 seconds.
func WithRequestTimeout(timeout time.Duration) PeerOption {
	return func(o *peerOptions) {
		o.timeout = timeout
	}
}

// WithDialer sets the websocket dialer. Its subprotocols are replaced.
func WithDialer(dialer *websocket.Dialer) PeerOption {
	return func(o *peerOptions) {
		o.dialer = dialer
	}
}

// WithHeader sets the HTTP headers of the websocket handshake.
func WithHeader(header http.Header) PeerOption {
	return func(o *peerOptions) {
		o.header = header
	}
}

// WithRequestHandler sets the handler of the server requests.
func WithRequestHandler(handler RequestHandler) PeerOption {
	return func(o *peerOptions) {
		o.requestHandler = handler
	}
}

// Peer is a protoo peer connected to a server.
//
// - @emits notification - (method string, data json.RawMessage)
// - @emits disconnected - the server went away
// - @emits close
type Peer struct {
	mediasoupclient.IEventEmitter
	logger  logr.Logger
	options peerOptions
	conn    *websocket.Conn
	writeMu sync.Mutex

	mu          sync.Mutex
	nextId      uint32
	responsesCh map[uint32]chan Message
	closed      bool
	ctx         context.Context
	cancel      context.CancelFunc
}

// Dial connects to a protoo server.
func Dial(ctx context.Context, url string, opts ...PeerOption) (*Peer, error) {
	options := peerOptions{timeout: DefaultRequestTimeout}
	for _, o := range opts {
		o(&options)
	}

	dialer := *websocket.DefaultDialer
	if options.dialer != nil {
		dialer = *options.dialer
	}
	dialer.Subprotocols = []string{Subprotocol}

	conn, _, err := dialer.DialContext(ctx, url, options.header)
	if err != nil {
		return nil, err
	}

	return newPeer(conn, options), nil
}

func newPeer(conn *websocket.Conn, options peerOptions) *Peer {
	ctx, cancel := context.WithCancel(context.Background())

	peer := &Peer{
		IEventEmitter: mediasoupclient.NewEventEmitter(),
		logger:        mediasoupclient.NewLogger("protoo:Peer"),
		options:       options,
		conn:          conn,
		responsesCh:   make(map[uint32]chan Message),
		ctx:           ctx,
		cancel:        cancel,
	}

	go peer.readLoop()

	return peer
}

// Closed returns whether the peer is closed.
func (p *Peer) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.closed
}

// Close closes the connection and fails the pending requests.
func (p *Peer) Close() {
	if !p.doClose() {
		return
	}
	p.logger.V(1).Info("close()")

	p.writeMu.Lock()
	p.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	p.writeMu.Unlock()
	p.conn.Close()

	p.SafeEmit("close")
}

// doClose marks the peer closed and fails the pending requests. It returns
// false if the peer was already closed.
func (p *Peer) doClose() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return false
	}
	p.closed = true
	p.cancel()

	for id, ch := range p.responsesCh {
		close(ch)
		delete(p.responsesCh, id)
	}
	return true
}

// Request sends a request and waits for its response.
func (p *Peer) Request(ctx context.Context, method string, data interface{}) (json.RawMessage, error) {
	payload, err := marshalData(data)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()

	if p.closed {
		p.mu.Unlock()
		return nil, ErrPeerClosed
	}

	if p.nextId < maxRequestId {
		p.nextId++
	} else {
		p.nextId = 1
	}
	id := p.nextId

	ch := make(chan Message, 1)
	p.responsesCh[id] = ch
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		delete(p.responsesCh, id)
		p.mu.Unlock()
	}()

	p.logger.V(1).Info("request()", "method", method, "id", id)

	if err := p.write(createRequest(id, method, payload)); err != nil {
		return nil, err
	}

	timer := time.NewTimer(p.options.timeout)
	defer timer.Stop()

	select {
	case response, ok := <-ch:
		if !ok {
			return nil, ErrPeerClosed
		}
		if !response.Ok {
			return nil, ResponseError{Code: response.ErrorCode, Reason: response.ErrorReason}
		}
		return response.Data, nil

	case <-timer.C:
		p.logger.Error(ErrRequestTimeout, "request timeout", "method", method, "id", id)
		return nil, ErrRequestTimeout

	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Notify sends a notification.
func (p *Peer) Notify(ctx context.Context, method string, data interface{}) error {
	payload, err := marshalData(data)
	if err != nil {
		return err
	}
	if p.Closed() {
		return ErrPeerClosed
	}

	p.logger.V(1).Info("notify()", "method", method)

	return p.write(createNotification(method, payload))
}

func (p *Peer) write(message Message) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	return p.conn.WriteJSON(message)
}

func (p *Peer) readLoop() {
	defer func() {
		if p.doClose() {
			p.logger.V(1).Info("connection closed by the server")
			p.conn.Close()
			p.SafeEmit("disconnected")
			p.SafeEmit("close")
		}
	}()

	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			return
		}

		var message Message

		if err := json.Unmarshal(data, &message); err != nil {
			p.logger.Error(err, "invalid message", "data", string(data))
			continue
		}

		switch {
		case message.Response:
			p.handleResponse(message)
		case message.Request:
			go p.handleRequest(message)
		case message.Notification:
			p.handleNotification(message)
		default:
			p.logger.Error(nil, "unknown message type", "data", string(data))
		}
	}
}

func (p *Peer) handleResponse(response Message) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch, ok := p.responsesCh[response.Id]
	if !ok {
		p.logger.Error(nil, "received response does not match any sent request", "id", response.Id)
		return
	}
	select {
	case ch <- response:
	default:
	}
}

func (p *Peer) handleRequest(request Message) {
	p.logger.V(1).Info("handleRequest()", "method", request.Method, "id", request.Id)

	var response Message

	if handler := p.options.requestHandler; handler == nil {
		response = createErrorResponse(request, 500, "no request handler")
	} else if data, err := handler(p.ctx, request.Method, request.Data); err != nil {
		var responseErr ResponseError

		if errors.As(err, &responseErr) {
			response = createErrorResponse(request, responseErr.Code, responseErr.Reason)
		} else {
			response = createErrorResponse(request, 500, err.Error())
		}
	} else if payload, err := marshalData(data); err != nil {
		response = createErrorResponse(request, 500, err.Error())
	} else {
		response = createSuccessResponse(request, payload)
	}

	if err := p.write(response); err != nil {
		p.logger.Error(err, "failed to send response", "method", request.Method)
	}
}

func (p *Peer) handleNotification(notification Message) {
	p.SafeEmit("notification", notification.Method, notification.Data)
}
