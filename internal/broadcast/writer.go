package broadcast

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hansxu66/btcpredict-kalshi/internal/adapter/metrics"
	"github.com/hansxu66/btcpredict-kalshi/internal/domain"
	"github.com/jonboulle/clockwork"
)

const (
	writeDeadline    = 5 * time.Second
	pingInterval     = 30 * time.Second
	replyBufferSize  = 4
	closeFrameReason = "server shutting down"
)

// Conn is the write side of a client transport. *websocket.Conn satisfies it.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type frame struct {
	kind domain.MessageType
	data []byte
}

// clientWriter is the only goroutine allowed to write to its connection.
type clientWriter struct {
	connection     Conn
	clock          clockwork.Clock
	metrics        *metrics.WebSocketMetrics
	sendChannel    chan frame
	replyChannel   chan frame
	doneChannel    chan struct{}
	exitedChannel  chan struct{}
	stopOnce       sync.Once
	wg             sync.WaitGroup
	onWriteFailure func()
}

func newClientWriter(connection Conn, clock clockwork.Clock, bufferSize int, m *metrics.WebSocketMetrics, onWriteFailure func()) *clientWriter {
	cw := &clientWriter{
		connection:     connection,
		clock:          clock,
		metrics:        m,
		sendChannel:    make(chan frame, bufferSize),
		replyChannel:   make(chan frame, replyBufferSize),
		doneChannel:    make(chan struct{}),
		exitedChannel:  make(chan struct{}),
		onWriteFailure: onWriteFailure,
	}
	cw.wg.Add(1)
	go cw.run()
	return cw
}

func (cw *clientWriter) run() {
	defer cw.wg.Done()
	defer close(cw.exitedChannel)

	ticker := cw.clock.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		// Replies jump the queue so a ping is never answered behind a backlog of updates.
		select {
		case f := <-cw.replyChannel:
			if !cw.write(f) {
				return
			}
			continue
		default:
		}

		select {
		case f := <-cw.replyChannel:
			if !cw.write(f) {
				return
			}
		case f := <-cw.sendChannel:
			if !cw.write(f) {
				return
			}
		case <-ticker.Chan():
			cw.updateWriteDeadline()
			if err := cw.connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				cw.reportFailure()
				return
			}
		case <-cw.doneChannel:
			return
		}
	}
}

func (cw *clientWriter) write(f frame) bool {
	cw.updateWriteDeadline()
	if err := cw.connection.WriteMessage(websocket.TextMessage, f.data); err != nil {
		cw.metrics.FramesDropped.WithLabelValues(string(f.kind)).Inc()
		cw.reportFailure()
		return false
	}
	cw.metrics.FramesSent.WithLabelValues(string(f.kind)).Inc()
	return true
}

// reportFailure is skipped when the write failed because stop closed the connection.
func (cw *clientWriter) reportFailure() {
	select {
	case <-cw.doneChannel:
		return
	default:
	}
	cw.metrics.WriteFailures.Inc()
	if cw.onWriteFailure != nil {
		cw.onWriteFailure()
	}
}

// enqueue never blocks. False means the queue is full and the client is too slow.
func (cw *clientWriter) enqueue(f frame) bool {
	select {
	case cw.sendChannel <- f:
		return true
	default:
		return false
	}
}

func (cw *clientWriter) reply(f frame) error {
	select {
	case cw.replyChannel <- f:
		return nil
	case <-cw.exitedChannel:
		return domain.ErrClientClosed
	}
}

func (cw *clientWriter) stop() {
	cw.stopOnce.Do(func() {
		close(cw.doneChannel)
		_ = cw.connection.Close()
	})
	cw.wg.Wait()
}

// stopGraceful sends a WebSocket close frame with reason before closing.
func (cw *clientWriter) stopGraceful(reason string) {
	cw.stopOnce.Do(func() {
		close(cw.doneChannel)

		// The run goroutine must be gone before the close frame is written.
		cw.wg.Wait()

		closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
		cw.updateWriteDeadline()
		_ = cw.connection.WriteMessage(websocket.CloseMessage, closeMsg)
		_ = cw.connection.Close()
	})
	cw.wg.Wait()
}

func (cw *clientWriter) updateWriteDeadline() {
	_ = cw.connection.SetWriteDeadline(cw.clock.Now().Add(writeDeadline))
}
