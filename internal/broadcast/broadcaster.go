package broadcast

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hansxu66/btcpredict-kalshi/internal/adapter/metrics"
	"github.com/hansxu66/btcpredict-kalshi/internal/domain"
	"github.com/jonboulle/clockwork"
)

const (
	commandTimeout        = 5 * time.Second
	stopTimeout           = 10 * time.Second
	commandChannelSize    = 256
	commandChannelWarning = 200
	// DefaultSendBuffer is the per-client outbound queue size.
	DefaultSendBuffer = 64
)

// Client is a registered connection. It is removed from the registry at most once and
// never re-registered; a reconnecting peer gets a new Client with a new ID.
type Client struct {
	id     uuid.UUID
	writer *clientWriter
}

// ID returns the connection ID.
func (c *Client) ID() uuid.UUID { return c.id }

// Reply sends msg to this client ahead of any queued broadcasts.
func (c *Client) Reply(msg domain.Message) error {
	data, err := msg.Encode()
	if err != nil {
		return err
	}
	return c.writer.reply(frame{kind: msg.Type, data: data})
}

// broadcasterCmd is the command interface for the Broadcaster actor.
type broadcasterCmd interface{ isBroadcasterCmd() }

type baseBroadcasterCmd struct{}

func (baseBroadcasterCmd) isBroadcasterCmd() {}

type registerCmd struct {
	baseBroadcasterCmd
	connection   Conn
	replyChannel chan *Client
}

type unregisterCmd struct {
	baseBroadcasterCmd
	client *Client
}

type broadcastCmd struct {
	baseBroadcasterCmd
	frame frame
}

type stopCmd struct {
	baseBroadcasterCmd
}

// Broadcaster is the connection registry. It owns the live client set and fans
// out messages to it.
type Broadcaster struct {
	cmdCh       chan broadcasterCmd
	clock       clockwork.Clock
	clients     map[uuid.UUID]*Client
	snapshots   domain.SnapshotSource
	metrics     *metrics.WebSocketMetrics
	sendBuffer  int
	clientCount atomic.Int64
	done        chan struct{}
	stopOnce    sync.Once
	stopTimeout time.Duration
}

// NewBroadcaster creates a broadcaster and starts its actor goroutine.
// snapshots is read once per Register to build the join snapshot.
// sendBuffer bounds each client's outbound queue; a full queue evicts the client.
func NewBroadcaster(snapshots domain.SnapshotSource, m *metrics.WebSocketMetrics, clock clockwork.Clock, sendBuffer int) *Broadcaster {
	if sendBuffer <= 0 {
		sendBuffer = DefaultSendBuffer
	}
	b := &Broadcaster{
		cmdCh:       make(chan broadcasterCmd, commandChannelSize),
		clock:       clock,
		clients:     make(map[uuid.UUID]*Client),
		snapshots:   snapshots,
		metrics:     m,
		sendBuffer:  sendBuffer,
		done:        make(chan struct{}),
		stopTimeout: stopTimeout,
	}
	go b.run()
	return b
}

// Register adds conn to the live set and queues the state snapshot as its first frame.
func (b *Broadcaster) Register(conn Conn) (*Client, error) {
	replyCh := make(chan *Client, 1)
	if !b.send(registerCmd{connection: conn, replyChannel: replyCh}) {
		return nil, domain.ErrRegistryStopped
	}

	// Use timeout to prevent blocking forever if broadcaster is stuck
	timer := b.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case client := <-replyCh:
		return client, nil
	case <-b.done:
		return nil, domain.ErrRegistryStopped
	case <-timer.Chan():
		return nil, fmt.Errorf("register command timed out after %v", commandTimeout)
	}
}

// Unregister removes client from the live set and closes its transport.
// Unknown or already removed clients are ignored.
func (b *Broadcaster) Unregister(client *Client) {
	if client == nil {
		return
	}
	b.send(unregisterCmd{client: client})
}

// Broadcast queues msg for every registered client. It never returns delivery errors;
// failing or slow clients are unregistered instead.
func (b *Broadcaster) Broadcast(msg domain.Message) {
	data, err := msg.Encode()
	if err != nil {
		slog.Error("Failed to encode broadcast message", "type", msg.Type, "error", err)
		return
	}
	b.send(broadcastCmd{frame: frame{kind: msg.Type, data: data}})
}

// ClientCount returns the number of registered clients.
func (b *Broadcaster) ClientCount() int {
	return int(b.clientCount.Load())
}

// Stop shuts down the broadcaster, sending a close frame to every client.
// Blocks until the actor has exited or the stop timeout is reached.
func (b *Broadcaster) Stop() {
	b.stopOnce.Do(func() {
		b.send(stopCmd{})

		timeout := b.clock.NewTimer(b.stopTimeout)
		defer timeout.Stop()

		select {
		case <-b.done:
			slog.Info("Broadcaster stopped gracefully")
		case <-timeout.Chan():
			slog.Warn("Broadcaster stop timeout exceeded", "timeout", b.stopTimeout)
		}
	})
}

func (b *Broadcaster) send(cmd broadcasterCmd) bool {
	select {
	case <-b.done:
		return false
	default:
	}

	select {
	case b.cmdCh <- cmd:
		return true
	case <-b.done:
		return false
	}
}

func (b *Broadcaster) run() {
	defer close(b.done)
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Broadcaster panic recovered", "panic", r)
			b.closeAllClients("internal error")
		}
	}()

	depthTicker := b.clock.NewTicker(time.Second)
	defer depthTicker.Stop()

	for {
		select {
		case <-depthTicker.Chan():
			if depth := len(b.cmdCh); depth > commandChannelWarning {
				slog.Warn("Command channel near capacity", "depth", depth, "capacity", cap(b.cmdCh))
			}
		case cmd := <-b.cmdCh:
			switch c := cmd.(type) {
			case registerCmd:
				b.handleRegister(c)
			case unregisterCmd:
				b.handleUnregister(c.client)
			case broadcastCmd:
				b.handleBroadcast(c)
			case stopCmd:
				b.handleStop()
				return
			default:
				slog.Warn("Broadcaster received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
			}
		}
	}
}

func (b *Broadcaster) handleRegister(c registerCmd) {
	client := &Client{id: uuid.New()}
	client.writer = newClientWriter(c.connection, b.clock, b.sendBuffer, b.metrics, func() {
		// Called from the writer goroutine; the actor may be waiting on it.
		go b.Unregister(client)
	})
	b.clients[client.id] = client
	b.updateClientCount()

	msg := domain.SnapshotMessage(b.snapshots.Snapshot(), b.clock.Now())
	data, err := msg.Encode()
	if err != nil {
		slog.Error("Failed to encode snapshot", "client_id", client.id.String(), "error", err)
	} else {
		client.writer.enqueue(frame{kind: msg.Type, data: data})
	}

	slog.Debug("Client registered", "client_id", client.id.String(), "total_clients", len(b.clients))
	c.replyChannel <- client
}

func (b *Broadcaster) handleUnregister(client *Client) {
	if _, exists := b.clients[client.id]; !exists {
		return
	}

	delete(b.clients, client.id)
	b.updateClientCount()
	client.writer.stop()

	slog.Debug("Client unregistered", "client_id", client.id.String(), "remaining_clients", len(b.clients))
}

func (b *Broadcaster) handleBroadcast(c broadcastCmd) {
	start := b.clock.Now()

	var slow []*Client
	for _, client := range b.clients {
		if !client.writer.enqueue(c.frame) {
			slow = append(slow, client)
		}
	}

	for _, client := range slow {
		slog.Warn("Disconnecting slow client", "client_id", client.id.String())
		b.metrics.SlowClientEvictions.Inc()
		b.metrics.FramesDropped.WithLabelValues(string(c.frame.kind)).Inc()
		b.handleUnregister(client)
	}

	b.metrics.BroadcastDuration.Observe(b.clock.Since(start).Seconds())
}

func (b *Broadcaster) handleStop() {
	total := len(b.clients)
	slog.Info("Broadcaster shutting down", "total_clients", total)

	b.closeAllClients(closeFrameReason)

	slog.Info("Broadcaster shutdown complete", "disconnected_clients", total)
}

// closeAllClients closes all client connections with the given reason.
// Used during panic recovery and graceful shutdown.
func (b *Broadcaster) closeAllClients(reason string) {
	for id, client := range b.clients {
		client.writer.stopGraceful(reason)
		delete(b.clients, id)
	}
	b.updateClientCount()
}

func (b *Broadcaster) updateClientCount() {
	b.clientCount.Store(int64(len(b.clients)))
	b.metrics.ActiveConnections.Set(float64(len(b.clients)))
}
