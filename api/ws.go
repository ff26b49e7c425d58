package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tarancss/addrprof/lib/log"
	"github.com/tarancss/addrprof/lib/metrics"
	"github.com/tarancss/addrprof/lib/msg"
	"github.com/tarancss/addrprof/lib/util"
	"github.com/tarancss/addrprof/profiler"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 4096
	sendQueue      = 256
	storeTimeout   = 5 * time.Second
	publishQueue   = 1024
)

// Websocket events.
const (
	EventSubscribe   = "subscribe"
	EventUnsubscribe = "unsubscribe"
	EventInit        = "init"
	EventChange      = "change"
	EventError       = "error"
)

// TraceHeader is the header every websocket client must send.
const TraceHeader = "x-trace-id"

// ErrClientBufferFull is returned when a message is dropped because the client does not read fast enough.
var ErrClientBufferFull = errors.New("client buffer is full")

var errClientClosed = errors.New("client is closed")

// pushed are the profiler channels sent to the clients.
var pushed = []string{ //nolint:gochecknoglobals // read only
	profiler.ChannelBalances, profiler.ChannelNativeBalance, profiler.ChannelTransactions, profiler.ChannelPrices,
}

// Message is the frame exchanged with websocket clients.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// SubscribeData is the data of subscribe and unsubscribe messages. ChainID defaults to 31 and BlockNumber to 0.
type SubscribeData struct {
	Address     string `json:"address"`
	ChainID     string `json:"chainId"`
	BlockNumber string `json:"blockNumber"`
}

// Hub keeps the websocket clients and their subscription sessions.
type Hub struct {
	api      *API
	interval time.Duration
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[string]*Client

	events chan msg.Event // changes waiting to be published
	done   chan struct{}
	once   sync.Once
}

// NewHub returns the hub of a. Sessions poll every interval. When a has a message broker, the changes are
// published from a worker so a slow broker does not delay the pollers.
func NewHub(a *API, interval time.Duration) *Hub {
	h := &Hub{
		api:      a,
		interval: interval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[string]*Client),
		events:  make(chan msg.Event, publishQueue),
		done:    make(chan struct{}),
	}

	if a.mb != nil {
		go h.publisher()
	}

	return h
}

// Serve upgrades the request to a websocket connection and starts the pumps of the new client. Connections without
// a trace id receive an error event and are closed.
func (h *Hub) Serve(rw http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		log.Debug("websocket upgrade failed", zap.Error(err))

		return
	}

	c := newClient(h, conn, r.Header.Get(TraceHeader))

	go c.writePump()

	if c.trace == "" {
		_ = c.Send(EventError, ErrNoTraceID.Error())
		c.finish()

		return
	}

	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()

	log.Debug("new websocket client", zap.String("client", c.id), zap.String("trace", c.trace))

	go c.readPump()
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.clients)
}

// Close disconnects every client and stops the publisher.
func (h *Hub) Close() {
	h.mu.Lock()
	cs := make([]*Client, 0, len(h.clients))

	for _, c := range h.clients {
		cs = append(cs, c)
	}
	h.mu.Unlock()

	for _, c := range cs {
		c.close()
	}

	h.once.Do(func() { close(h.done) })
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	delete(h.clients, c.id)
	h.mu.Unlock()

	c.unsubscribeAll()
}

// publish queues ch for the message broker, when there is one. Changes are dropped while the queue is full.
func (h *Hub) publish(chainID, addr string, ch profiler.Change) {
	if h.api.mb == nil {
		return
	}

	e := msg.Event{ChainID: chainID, Address: addr, Type: ch.Type, Payload: ch.Payload, Time: time.Now().Unix()}

	select {
	case h.events <- e:
	default:
		log.Warn("publish queue full, dropping change", zap.String("address", addr), zap.String("type", ch.Type))
	}
}

// publisher sends the queued changes to the message broker until the hub is closed.
func (h *Hub) publisher() {
	for {
		select {
		case e := <-h.events:
			if err := h.api.mb.SendEvent(e); err != nil {
				log.Warn("cannot publish change", zap.String("address", e.Address), zap.Error(err))
			}
		case <-h.done:
			return
		}
	}
}

// track records a subscription to addr, when there is a store.
func (h *Hub) track(chainID, addr string) {
	if h.api.db == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if _, err := h.api.db.TrackAddress(ctx, chainID, addr); err != nil {
		log.Warn("cannot track address", zap.String("address", addr), zap.Error(err))
	}
}

// untrack records the end of a subscription to addr, when there is a store. The client context may be gone already.
func (h *Hub) untrack(chainID, addr string) {
	if h.api.db == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if err := h.api.db.UntrackAddress(ctx, chainID, addr); err != nil {
		log.Warn("cannot untrack address", zap.String("address", addr), zap.Error(err))
	}
}

// session is the profiler of one address of a client. p is nil while the subscription is being set up.
type session struct {
	p *profiler.Profiler
}

// Client is a websocket connection and its sessions, one per address.
type Client struct {
	id    string
	trace string
	hub   *Hub
	conn  *websocket.Conn
	send  chan []byte

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*session

	closeMu sync.Mutex
	closed  bool
	once    sync.Once
}

func newClient(h *Hub, conn *websocket.Conn, trace string) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		id:       uuid.NewString(),
		trace:    trace,
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, sendQueue),
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*session),
	}
}

// Send queues a message for the client without blocking.
func (c *Client) Send(event string, data interface{}) error {
	b, err := json.Marshal(struct {
		Event string      `json:"event"`
		Data  interface{} `json:"data"`
	}{event, data})
	if err != nil {
		return err
	}

	c.closeMu.Lock()
	defer c.closeMu.Unlock()

	if c.closed {
		return errClientClosed
	}

	select {
	case c.send <- b:
		return nil
	default:
		log.Warn("client buffer full, dropping message", zap.String("client", c.id))

		return ErrClientBufferFull
	}
}

// fail sends an error event and closes the connection once it is written.
func (c *Client) fail(err error) {
	_ = c.Send(EventError, err.Error())
	c.finish()
}

// finish closes the send queue, the write pump writes what is queued and then closes the connection.
func (c *Client) finish() {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()

	if c.closed {
		return
	}

	c.closed = true
	close(c.send)
}

// close disconnects the client and stops its sessions. It can be called any number of times.
func (c *Client) close() {
	c.finish()
	c.cancel()
	_ = c.conn.Close()

	c.once.Do(func() { c.hub.remove(c) })
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))

			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))

				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Debug("websocket write failed", zap.String("client", c.id), zap.Error(err))

				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))

			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure,
				websocket.CloseNoStatusReceived) {
				log.Debug("websocket closed", zap.String("client", c.id), zap.Error(err))
			}

			return
		}

		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.handle(raw)
	}
}

// handle dispatches a client message. Subscriptions are set up in their own goroutine so the read pump keeps
// answering pings.
func (c *Client) handle(raw []byte) {
	var (
		m Message
		d SubscribeData
	)

	if err := json.Unmarshal(raw, &m); err != nil {
		_ = c.Send(EventError, ErrBadMessage.Error())

		return
	}

	if len(m.Data) > 0 {
		if err := json.Unmarshal(m.Data, &d); err != nil {
			_ = c.Send(EventError, ErrBadMessage.Error())

			return
		}
	}

	switch m.Event {
	case EventSubscribe:
		go c.subscribe(d)
	case EventUnsubscribe:
		c.unsubscribe(d.Address)
	default:
		_ = c.Send(EventError, ErrBadMessage.Error())
	}
}

// subscribe starts the session of d.Address: an init event with the current state of the address, then a change
// event for every change detected. A request the service cannot serve closes the connection.
func (c *Client) subscribe(d SubscribeData) {
	a := c.hub.api

	chainID, err := a.chainID(d.ChainID)
	if err != nil {
		c.fail(err)

		return
	}

	addr, err := checkAddress(d.Address)
	if err != nil {
		c.fail(err)

		return
	}

	bn := strings.TrimSpace(d.BlockNumber)
	if bn == "" {
		bn = "0"
	}

	blockNumber, err := strconv.ParseUint(bn, 10, 64)
	if err != nil {
		c.fail(ErrBadNumber)

		return
	}

	key := util.Lower(addr)
	s := &session{}

	c.mu.Lock()
	if _, ok := c.sessions[key]; ok {
		c.mu.Unlock()

		return
	}

	c.sessions[key] = s
	c.mu.Unlock()

	p, err := profiler.ForAddress(a.svc, chainID, addr, blockNumber, c.hub.interval)
	if err != nil {
		c.drop(key, s)
		c.fail(err)

		return
	}

	_ = c.Send(EventInit, p.Snapshot(c.ctx))

	for _, ch := range pushed {
		p.On(ch, func(v interface{}) {
			change, ok := v.(profiler.Change)
			if !ok {
				return
			}

			_ = c.Send(EventChange, change)
			c.hub.publish(chainID, key, change)
		})
	}

	if err = p.Subscribe(c.ctx); err != nil {
		p.Unsubscribe()
		c.drop(key, s)
		c.fail(err)

		return
	}

	c.hub.track(chainID, key)

	c.mu.Lock()
	if c.sessions[key] != s {
		// unsubscribed or disconnected meanwhile
		c.mu.Unlock()
		p.Unsubscribe()
		c.hub.untrack(chainID, key)

		return
	}

	s.p = p
	c.mu.Unlock()

	metrics.Sessions.Inc()
	log.Debug("subscribed", zap.String("client", c.id), zap.String("chain", chainID), zap.String("address", key))
}

// drop removes s from the sessions if it is still the session of key.
func (c *Client) drop(key string, s *session) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sessions[key] == s {
		delete(c.sessions, key)
	}
}

// unsubscribe stops the session of addr, if any.
func (c *Client) unsubscribe(addr string) {
	key := util.Lower(strings.TrimSpace(addr))

	c.mu.Lock()
	s, ok := c.sessions[key]
	delete(c.sessions, key)
	c.mu.Unlock()

	if ok && s.p != nil {
		c.stop(s)
	}
}

// stop ends the profiler of s.
func (c *Client) stop(s *session) {
	s.p.Unsubscribe()
	metrics.Sessions.Dec()
	c.hub.untrack(s.p.ChainID(), s.p.Address())
}

func (c *Client) unsubscribeAll() {
	c.mu.Lock()
	ss := c.sessions
	c.sessions = make(map[string]*session)
	c.mu.Unlock()

	for _, s := range ss {
		if s.p != nil {
			c.stop(s)
		}
	}
}

// Sessions returns the number of addresses the client is subscribed to.
func (c *Client) Sessions() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.sessions)
}
