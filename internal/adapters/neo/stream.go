package neo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alejandrodnm/liquidator/internal/domain"
	"github.com/alejandrodnm/liquidator/internal/ports"
	"github.com/gorilla/websocket"
)

const (
	streamNotification = "notification_from_execution"
	listenerBuffer     = 64
)

var errStreamClosed = errors.New("stream closed")

// StreamConfig configures the websocket connection.
type StreamConfig struct {
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	PingInterval      time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	RequestTimeout    time.Duration
}

// DefaultStreamConfig returns the default websocket timings.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      20 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		RequestTimeout:    15 * time.Second,
	}
}

// Stream implements ports.EventStream over the node's websocket subscription API.
// Notifications carry no subscription id, so they are routed by (contract, event).
type Stream struct {
	endpoint string
	config   StreamConfig

	conn   *websocket.Conn
	connMu sync.Mutex

	closed    atomic.Bool
	requestID atomic.Uint64
	localID   atomic.Uint64

	listeners   map[uint64]*subscription
	listenersMu sync.RWMutex

	pending   map[uint64]chan wsResponse
	pendingMu sync.Mutex

	reconnecting atomic.Bool
	done         chan struct{}
	wg           sync.WaitGroup
}

// DialStream connects to the websocket endpoint and starts the reader.
func DialStream(ctx context.Context, endpoint string, config *StreamConfig) (*Stream, error) {
	cfg := DefaultStreamConfig()
	if config != nil {
		cfg = *config
	}
	s := &Stream{
		endpoint:  endpoint,
		config:    cfg,
		listeners: make(map[uint64]*subscription),
		pending:   make(map[uint64]chan wsResponse),
		done:      make(chan struct{}),
	}
	if err := s.connect(ctx); err != nil {
		return nil, fmt.Errorf("neo.DialStream: %w", err)
	}

	s.wg.Add(2)
	go s.readLoop()
	go s.pingLoop()
	return s, nil
}

func (s *Stream) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial %s: %w", s.endpoint, err)
	}
	s.connMu.Lock()
	defer s.connMu.Unlock()
	// Close pudo ejecutarse durante el dial: esta conexión ya no tiene dueño.
	if s.closed.Load() {
		_ = conn.Close()
		return errStreamClosed
	}
	s.conn = conn
	return nil
}

// Subscribe registers a listener for one (contract, event) pair.
func (s *Stream) Subscribe(ctx context.Context, contract domain.ScriptHash, event string) (ports.Subscription, error) {
	if s.closed.Load() {
		return nil, fmt.Errorf("neo.Stream.Subscribe: stream closed")
	}
	remoteID, err := s.subscribeRemote(ctx, contract, event)
	if err != nil {
		return nil, fmt.Errorf("neo.Stream.Subscribe: %s/%s: %w", contract, event, err)
	}

	sub := &subscription{
		stream:   s,
		id:       s.localID.Add(1),
		contract: contract,
		event:    event,
		remoteID: remoteID,
		ch:       make(chan domain.ChainEvent, listenerBuffer),
	}
	s.listenersMu.Lock()
	s.listeners[sub.id] = sub
	s.listenersMu.Unlock()

	slog.Debug("stream subscribed", "contract", contract.String(), "event", event, "id", remoteID)
	return sub, nil
}

func (s *Stream) subscribeRemote(ctx context.Context, contract domain.ScriptHash, event string) (string, error) {
	filter := map[string]string{"contract": contract.String(), "name": event}
	resp, err := s.request(ctx, "subscribe", streamNotification, filter)
	if err != nil {
		return "", err
	}
	var id string
	if err := json.Unmarshal(resp.Result, &id); err != nil {
		return "", fmt.Errorf("subscribe result: %w", err)
	}
	return id, nil
}

// request sends a JSON-RPC request on the socket and waits for its response.
func (s *Stream) request(ctx context.Context, method string, params ...any) (wsResponse, error) {
	reqID := s.requestID.Add(1)
	respCh := make(chan wsResponse, 1)
	s.pendingMu.Lock()
	s.pending[reqID] = respCh
	s.pendingMu.Unlock()
	defer func() {
		s.pendingMu.Lock()
		delete(s.pending, reqID)
		s.pendingMu.Unlock()
	}()

	if err := s.write(wsRequest{JSONRPC: "2.0", ID: reqID, Method: method, Params: params}); err != nil {
		return wsResponse{}, err
	}

	timer := time.NewTimer(s.config.RequestTimeout)
	defer timer.Stop()
	select {
	case resp, ok := <-respCh:
		if !ok {
			return wsResponse{}, errStreamClosed
		}
		if resp.Error != nil {
			return wsResponse{}, fmt.Errorf("%s: rpc error %d: %s", method, resp.Error.Code, resp.Error.Message)
		}
		return resp, nil
	case <-timer.C:
		return wsResponse{}, fmt.Errorf("%s: no response after %s", method, s.config.RequestTimeout)
	case <-s.done:
		return wsResponse{}, errStreamClosed
	case <-ctx.Done():
		return wsResponse{}, ctx.Err()
	}
}

func (s *Stream) write(v any) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn == nil {
		return fmt.Errorf("not connected")
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	if err := s.conn.WriteJSON(v); err != nil {
		return fmt.Errorf("websocket write: %w", err)
	}
	return nil
}

// unsubscribe removes the listener and tells the node, best effort.
func (s *Stream) unsubscribe(sub *subscription) {
	s.listenersMu.Lock()
	if _, ok := s.listeners[sub.id]; ok {
		delete(s.listeners, sub.id)
		close(sub.ch)
	}
	remoteID := sub.remoteID
	s.listenersMu.Unlock()

	if s.closed.Load() || remoteID == "" {
		return
	}
	reqID := s.requestID.Add(1)
	if err := s.write(wsRequest{JSONRPC: "2.0", ID: reqID, Method: "unsubscribe", Params: []any{remoteID}}); err != nil {
		slog.Debug("stream unsubscribe failed", "id", remoteID, "err", err)
	}
}

// Close shuts the connection down and closes every listener channel.
func (s *Stream) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	close(s.done)

	s.connMu.Lock()
	if s.conn != nil {
		_ = s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = s.conn.Close()
	}
	s.connMu.Unlock()

	s.listenersMu.Lock()
	for id, sub := range s.listeners {
		close(sub.ch)
		delete(s.listeners, id)
	}
	s.listenersMu.Unlock()

	s.wg.Wait()
	return nil
}

func (s *Stream) readLoop() {
	defer s.wg.Done()
	delay := s.config.ReconnectDelay

	for !s.closed.Load() {
		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()
		if conn == nil {
			if !s.pause(100 * time.Millisecond) {
				return
			}
			continue
		}

		_ = conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		// Texto o binario: en ambos casos el payload es JSON UTF-8.
		_, message, err := conn.ReadMessage()
		if err != nil {
			if s.closed.Load() {
				return
			}
			s.connMu.Lock()
			stale := s.conn != conn
			s.connMu.Unlock()
			if stale {
				// reconnect ya cerró esta conexión y la está sustituyendo
				continue
			}
			slog.Warn("stream read failed, reconnecting", "err", err, "delay", delay)
			if !s.reconnecting.Swap(true) {
				s.wg.Add(1)
				go s.reconnect(delay)
			}
			delay = min(delay*2, s.config.MaxReconnectDelay)
			if !s.pause(100 * time.Millisecond) {
				return
			}
			continue
		}
		delay = s.config.ReconnectDelay
		s.handleMessage(message)
	}
}

func (s *Stream) pause(d time.Duration) bool {
	select {
	case <-s.done:
		return false
	case <-time.After(d):
		return true
	}
}

// reconnect drops the broken connection and dials again with capped backoff
// until it succeeds or the stream is closed.
func (s *Stream) reconnect(delay time.Duration) {
	defer s.wg.Done()
	defer s.reconnecting.Store(false)

	s.connMu.Lock()
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	s.connMu.Unlock()

	for attempt := 1; ; attempt++ {
		if !s.pause(delay) {
			return
		}
		ctx, cancel := s.reconnectContext()
		err := s.connect(ctx)
		if err == nil {
			s.resubscribeAll(ctx)
			cancel()
			slog.Info("stream reconnected", "attempts", attempt)
			return
		}
		cancel()
		if errors.Is(err, errStreamClosed) {
			return
		}
		delay = min(delay*2, s.config.MaxReconnectDelay)
		slog.Warn("stream reconnect failed", "err", err, "attempt", attempt, "next_delay", delay)
	}
}

// reconnectContext expires after 30s or as soon as the stream is closed.
func (s *Stream) reconnectContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	go func() {
		select {
		case <-s.done:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// resubscribeAll re-registers every live listener on a new connection.
func (s *Stream) resubscribeAll(ctx context.Context) {
	s.listenersMu.RLock()
	subs := make([]*subscription, 0, len(s.listeners))
	for _, sub := range s.listeners {
		subs = append(subs, sub)
	}
	s.listenersMu.RUnlock()

	for _, sub := range subs {
		remoteID, err := s.subscribeRemote(ctx, sub.contract, sub.event)
		if err != nil {
			slog.Warn("stream resubscribe failed", "contract", sub.contract.String(), "event", sub.event, "err", err)
			continue
		}
		s.listenersMu.Lock()
		sub.remoteID = remoteID
		s.listenersMu.Unlock()
	}
}

func (s *Stream) pingLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.connMu.Lock()
			if s.conn != nil {
				_ = s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
				_ = s.conn.WriteMessage(websocket.PingMessage, nil)
			}
			s.connMu.Unlock()
		}
	}
}

func (s *Stream) handleMessage(message []byte) {
	var msg wsMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		slog.Debug("stream: unparseable message", "err", err)
		return
	}

	if msg.Method == "" && msg.ID != nil {
		s.pendingMu.Lock()
		ch, ok := s.pending[*msg.ID]
		s.pendingMu.Unlock()
		if ok {
			select {
			case ch <- wsResponse{Result: msg.Result, Error: msg.Error}:
			default:
			}
		}
		return
	}

	if msg.Method != streamNotification {
		return
	}
	for _, raw := range msg.Params {
		ev, err := ParseNotification(raw)
		if err != nil {
			slog.Debug("stream: bad notification", "err", err)
			continue
		}
		s.dispatch(ev)
	}
}

func (s *Stream) dispatch(ev domain.ChainEvent) {
	s.listenersMu.RLock()
	defer s.listenersMu.RUnlock()
	for _, sub := range s.listeners {
		if sub.contract != ev.Contract || sub.event != ev.Name {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			slog.Warn("stream listener full, event dropped", "contract", ev.Contract.String(), "event", ev.Name, "tx", ev.TxID)
		}
	}
}

// ParseNotification decodes one notification_from_execution payload.
func ParseNotification(raw json.RawMessage) (domain.ChainEvent, error) {
	var n wsNotification
	if err := json.Unmarshal(raw, &n); err != nil {
		return domain.ChainEvent{}, fmt.Errorf("neo.ParseNotification: %w", err)
	}
	contract, err := domain.ParseScriptHash(n.Contract)
	if err != nil {
		return domain.ChainEvent{}, fmt.Errorf("neo.ParseNotification: contract: %w", err)
	}
	name := n.EventName
	if name == "" {
		name = n.Name
	}
	values, ok := n.State.Array()
	if !ok {
		return domain.ChainEvent{}, fmt.Errorf("neo.ParseNotification: state is %q, not an array", n.State.Type)
	}
	return domain.ChainEvent{TxID: n.Container, Contract: contract, Name: name, Values: values}, nil
}

// subscription implements ports.Subscription.
type subscription struct {
	stream   *Stream
	id       uint64
	contract domain.ScriptHash
	event    string
	remoteID string
	ch       chan domain.ChainEvent
	once     sync.Once
}

func (s *subscription) Events() <-chan domain.ChainEvent {
	return s.ch
}

func (s *subscription) Close() error {
	s.once.Do(func() { s.stream.unsubscribe(s) })
	return nil
}

// Websocket message types

type wsRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type wsError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type wsMessage struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      *uint64           `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	Result  json.RawMessage   `json:"result"`
	Error   *wsError          `json:"error"`
}

type wsResponse struct {
	Result json.RawMessage
	Error  *wsError
}

type wsNotification struct {
	Container string            `json:"container"`
	Contract  string            `json:"contract"`
	EventName string            `json:"eventname"`
	Name      string            `json:"name"`
	State     domain.StackValue `json:"state"`
}
