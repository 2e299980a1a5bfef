// Copyright © 2025 Meroxa, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package remote connects actor systems running in different processes. Each
// system gets a Node which serves and dials websocket connections and routes
// envelopes for actors on other nodes over them.
package remote

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/conduitio/creditflow/pkg/actor"
	"github.com/conduitio/creditflow/pkg/foundation/cerrors"
	"github.com/conduitio/creditflow/pkg/foundation/log"
	"github.com/conduitio/creditflow/pkg/foundation/metrics"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"
	"github.com/sourcegraph/conc"
)

const (
	frameHello   = "hello"
	frameMessage = "msg"
	frameMonitor = "monitor"
	frameDown    = "down"

	defaultWriteWait = 10 * time.Second
	helloWait        = 5 * time.Second
)

var (
	errClosed        = cerrors.New("node closed")
	errDuplicateNode = cerrors.New("node already connected")

	framesSent = metrics.NewLabeledCounter("creditflow_remote_frames_sent_total",
		"Number of frames sent to other nodes by kind.",
		[]string{"kind"})
	framesReceived = metrics.NewLabeledCounter("creditflow_remote_frames_received_total",
		"Number of frames received from other nodes by kind.",
		[]string{"kind"})
	connectedNodes = metrics.NewGauge("creditflow_remote_connected_nodes",
		"Number of nodes currently connected.")
)

type frame struct {
	Kind   string          `json:"kind"`
	Node   string          `json:"node,omitempty"`
	From   actor.Address   `json:"from"`
	To     actor.Address   `json:"to"`
	Name   string          `json:"name,omitempty"`
	Msg    json.RawMessage `json:"msg,omitempty"`
	Reason string          `json:"reason,omitempty"`
}

// Node routes envelopes between its actor system and the systems of
// connected nodes. It implements actor.Router and http.Handler.
type Node struct {
	sys      *actor.System
	codec    *Codec
	logger   log.CtxLogger
	upgrader websocket.Upgrader
	dialer   *websocket.Dialer

	m      sync.Mutex
	conns  map[string]*conn
	closed bool
	wg     conc.WaitGroup
}

var (
	_ actor.Router = (*Node)(nil)
	_ http.Handler = (*Node)(nil)
)

// NewNode creates a node for the system and installs it as its router.
func NewNode(sys *actor.System, codec *Codec, logger log.CtxLogger) *Node {
	n := &Node{
		sys:    sys,
		codec:  codec,
		logger: logger.WithComponent("remote.Node"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		dialer: websocket.DefaultDialer,
		conns:  make(map[string]*conn),
	}
	sys.SetRouter(n)
	return n
}

// Peers returns the names of the connected nodes.
func (n *Node) Peers() []string {
	n.m.Lock()
	defer n.m.Unlock()
	out := make([]string, 0, len(n.conns))
	for name := range n.conns {
		out = append(out, name)
	}
	return out
}

// ServeHTTP accepts a connection from another node.
func (n *Node) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ws, err := n.upgrader.Upgrade(w, r, nil)
	if err != nil {
		n.logger.Err(ctx, err).Msg("error upgrading websocket")
		return
	}

	hello, err := readHello(ws)
	if err != nil {
		n.logger.Warn(ctx).Err(err).Msg("invalid hello from node")
		_ = ws.Close()
		return
	}
	if err := writeFrame(ws, frame{Kind: frameHello, Node: n.sys.Node()}); err != nil {
		n.logger.Warn(ctx).Err(err).Str(log.NodeField, hello.Node).Msg("could not answer hello")
		_ = ws.Close()
		return
	}
	if err := n.accept(hello.Node, ws); err != nil {
		n.logger.Warn(ctx).Err(err).Str(log.NodeField, hello.Node).Msg("rejecting node")
		_ = ws.Close()
	}
}

// Dial connects to the node serving url, retrying with exponential backoff
// until ctx is done.
func (n *Node) Dial(ctx context.Context, url string) error {
	b := &backoff.Backoff{
		Factor: 2,
		Min:    time.Millisecond * 100,
		Max:    time.Second * 5,
	}
	for {
		err := n.dial(ctx, url)
		if err == nil || cerrors.Is(err, errClosed) {
			return err
		}
		d := b.Duration()
		n.logger.Warn(ctx).
			Err(err).
			Str(log.ServerAddressField, url).
			Float64(log.AttemptField, b.Attempt()).
			Dur(log.DurationField, d).
			Msg("could not connect to node, retrying")

		t := time.NewTimer(d)
		select {
		case <-ctx.Done():
			t.Stop()
			return cerrors.Errorf("connecting to %s: %w", url, ctx.Err())
		case <-t.C:
		}
	}
}

func (n *Node) dial(ctx context.Context, url string) error {
	ws, _, err := n.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return err
	}
	if err := writeFrame(ws, frame{Kind: frameHello, Node: n.sys.Node()}); err != nil {
		_ = ws.Close()
		return err
	}
	hello, err := readHello(ws)
	if err != nil {
		_ = ws.Close()
		return err
	}
	if err := n.accept(hello.Node, ws); err != nil {
		_ = ws.Close()
		return err
	}
	n.logger.Info(ctx).
		Str(log.NodeField, hello.Node).
		Str(log.ServerAddressField, url).
		Msg("connected to node")
	return nil
}

func readHello(ws *websocket.Conn) (frame, error) {
	if err := ws.SetReadDeadline(time.Now().Add(helloWait)); err != nil {
		return frame{}, err
	}
	var f frame
	if err := ws.ReadJSON(&f); err != nil {
		return frame{}, cerrors.Errorf("reading hello: %w", err)
	}
	if f.Kind != frameHello || f.Node == "" {
		return frame{}, cerrors.Errorf("expected hello frame, got %q", f.Kind)
	}
	return f, ws.SetReadDeadline(time.Time{})
}

func writeFrame(ws *websocket.Conn, f frame) error {
	b, err := json.Marshal(f)
	if err != nil {
		return err
	}
	if err := ws.SetWriteDeadline(time.Now().Add(defaultWriteWait)); err != nil {
		return err
	}
	return ws.WriteMessage(websocket.TextMessage, b)
}

// accept registers the connection and starts reading from it.
func (n *Node) accept(node string, ws *websocket.Conn) error {
	if node == n.sys.Node() {
		return cerrors.Errorf("%w: %q is this node", errDuplicateNode, node)
	}
	c := &conn{
		node:     node,
		ws:       ws,
		monitors: make(map[actor.Address]map[actor.Address]struct{}),
		served:   make(map[[2]actor.Address]struct{}),
	}

	n.m.Lock()
	defer n.m.Unlock()
	if n.closed {
		return errClosed
	}
	if _, ok := n.conns[node]; ok {
		return cerrors.Errorf("%w: %q", errDuplicateNode, node)
	}
	n.conns[node] = c
	connectedNodes.Inc()
	n.wg.Go(func() { n.serve(c) })
	return nil
}

func (n *Node) conn(node string) (*conn, bool) {
	n.m.Lock()
	defer n.m.Unlock()
	c, ok := n.conns[node]
	return c, ok
}

// Route sends an envelope to the node of its recipient.
func (n *Node) Route(env actor.Envelope) error {
	c, ok := n.conn(env.To.Node)
	if !ok {
		return cerrors.Errorf("%w: no connection to node %q", actor.ErrUnreachable, env.To.Node)
	}
	name, raw, err := n.codec.Encode(env.Msg)
	if err != nil {
		return err
	}
	return c.send(frame{Kind: frameMessage, From: env.From, To: env.To, Name: name, Msg: raw})
}

// Monitor asks the node of target to report when it stops. If the connection
// to that node is lost, watcher receives Down with actor.ErrUnreachable.
func (n *Node) Monitor(watcher, target actor.Address) error {
	c, ok := n.conn(target.Node)
	if !ok {
		return cerrors.Errorf("%w: no connection to node %q", actor.ErrUnreachable, target.Node)
	}
	if !c.addMonitor(watcher, target) {
		return nil
	}
	return c.send(frame{Kind: frameMonitor, From: watcher, To: target})
}

// Close closes all connections and waits for their readers to stop.
func (n *Node) Close() error {
	n.m.Lock()
	n.closed = true
	conns := make([]*conn, 0, len(n.conns))
	for _, c := range n.conns {
		conns = append(conns, c)
	}
	n.m.Unlock()

	for _, c := range conns {
		_ = c.ws.Close()
	}
	n.wg.Wait()
	return nil
}

// serve reads frames until the connection fails, then reports every remote
// actor watched through it as unreachable.
func (n *Node) serve(c *conn) {
	ctx := context.Background()
	logger := n.logger
	for {
		_, b, err := c.ws.ReadMessage()
		if err != nil {
			logger.Debug(ctx).Err(err).Str(log.NodeField, c.node).Msg("connection closed")
			break
		}
		var f frame
		if err := json.Unmarshal(b, &f); err != nil {
			logger.Warn(ctx).Err(err).Str(log.NodeField, c.node).Msg("dropping malformed frame")
			continue
		}
		framesReceived.WithValues(f.Kind).Inc()
		n.handle(ctx, c, f)
	}

	n.m.Lock()
	if n.conns[c.node] == c {
		delete(n.conns, c.node)
		connectedNodes.Dec()
	}
	n.m.Unlock()
	_ = c.ws.Close()

	for target, watchers := range c.takeMonitors() {
		for w := range watchers {
			_ = n.sys.Send(target, w, actor.Down{Addr: target, Reason: actor.ErrUnreachable})
		}
	}
}

func (n *Node) handle(ctx context.Context, c *conn, f frame) {
	switch f.Kind {
	case frameMessage:
		msg, err := n.codec.Decode(f.Name, f.Msg)
		if err != nil {
			n.logger.Warn(ctx).Err(err).Str(log.NodeField, c.node).Msg("dropping message")
			return
		}
		if err := n.sys.Deliver(actor.Envelope{From: f.From, To: f.To, Msg: msg}); err != nil {
			n.logger.Debug(ctx).
				Err(err).
				Str(log.MessageTypeField, f.Name).
				Str(log.PeerField, f.To.String()).
				Msg("could not deliver message from node")
		}
	case frameMonitor:
		watcher, target := f.From, f.To
		if !c.serveMonitor(watcher, target) {
			return
		}
		down := func(d actor.Down) {
			c.unserveMonitor(watcher, target)
			reason := ""
			if d.Reason != nil {
				reason = d.Reason.Error()
			}
			_ = c.send(frame{Kind: frameDown, From: target, To: watcher, Reason: reason})
		}
		if !n.sys.MonitorFunc(target, down) {
			down(actor.Down{Addr: target, Reason: actor.ErrUnreachable})
		}
	case frameDown:
		if !c.removeMonitor(f.To, f.From) {
			return
		}
		reason := actor.ErrUnreachable
		if f.Reason != "" {
			reason = cerrors.Errorf("%w: %s", actor.ErrUnreachable, f.Reason)
		}
		_ = n.sys.Send(f.From, f.To, actor.Down{Addr: f.From, Reason: reason})
	default:
		n.logger.Warn(ctx).Str("kind", f.Kind).Str(log.NodeField, c.node).Msg("dropping unknown frame")
	}
}

// conn is one websocket connection to another node.
type conn struct {
	node string
	ws   *websocket.Conn

	writeM sync.Mutex

	m sync.Mutex
	// monitors maps remote targets to the local actors watching them.
	monitors map[actor.Address]map[actor.Address]struct{}
	// served holds the watcher and target of monitors the other node
	// established on local actors.
	served map[[2]actor.Address]struct{}
}

func (c *conn) send(f frame) error {
	b, err := json.Marshal(f)
	if err != nil {
		return err
	}
	c.writeM.Lock()
	defer c.writeM.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(defaultWriteWait)); err != nil {
		return cerrors.Errorf("%w: %v", actor.ErrUnreachable, err)
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, b); err != nil {
		return cerrors.Errorf("%w: %v", actor.ErrUnreachable, err)
	}
	framesSent.WithValues(f.Kind).Inc()
	return nil
}

// addMonitor records the monitor and returns false if it existed already.
func (c *conn) addMonitor(watcher, target actor.Address) bool {
	c.m.Lock()
	defer c.m.Unlock()
	ws, ok := c.monitors[target]
	if !ok {
		ws = make(map[actor.Address]struct{})
		c.monitors[target] = ws
	}
	if _, ok := ws[watcher]; ok {
		return false
	}
	ws[watcher] = struct{}{}
	return true
}

func (c *conn) serveMonitor(watcher, target actor.Address) bool {
	c.m.Lock()
	defer c.m.Unlock()
	key := [2]actor.Address{watcher, target}
	if _, ok := c.served[key]; ok {
		return false
	}
	c.served[key] = struct{}{}
	return true
}

func (c *conn) unserveMonitor(watcher, target actor.Address) {
	c.m.Lock()
	defer c.m.Unlock()
	delete(c.served, [2]actor.Address{watcher, target})
}

// removeMonitor forgets the monitor and reports whether it existed.
func (c *conn) removeMonitor(watcher, target actor.Address) bool {
	c.m.Lock()
	defer c.m.Unlock()
	ws, ok := c.monitors[target]
	if !ok {
		return false
	}
	if _, ok := ws[watcher]; !ok {
		return false
	}
	delete(ws, watcher)
	if len(ws) == 0 {
		delete(c.monitors, target)
	}
	return true
}

func (c *conn) takeMonitors() map[actor.Address]map[actor.Address]struct{} {
	c.m.Lock()
	defer c.m.Unlock()
	out := c.monitors
	c.monitors = make(map[actor.Address]map[actor.Address]struct{})
	return out
}
