package ais

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	aislib "github.com/BertoldVdb/go-ais"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"planesail/internal/feed"
	"planesail/internal/metrics"
)

// Receiver defaults
const (
	DefaultPort        = 10110
	DefaultQueueSize   = 1024
	DefaultThrottle    = 10 * time.Millisecond
	DefaultReadTimeout = 1 * time.Second
	// DefaultTimeout is how long the feed may stay silent before it is
	// reported as waiting rather than online
	DefaultTimeout = 60 * time.Second
)

const maxDatagram = 2048

// LineWriter receives a copy of every forwarded sentence
type LineWriter interface {
	WriteLine(line string) error
}

// ReceiverConfig configures a Receiver
type ReceiverConfig struct {
	Port        int
	QueueSize   int
	Throttle    time.Duration
	ReadTimeout time.Duration
	Timeout     time.Duration
}

// Receiver listens for AIS sentences on a UDP port. The socket loop and the
// decode loop run on separate goroutines joined by a bounded queue, so a slow
// decode never stalls the socket; datagrams arriving while the queue is full
// are dropped and counted.
type Receiver struct {
	config  ReceiverConfig
	handler *Handler
	decoder *Decoder
	logger  *logrus.Logger
	metrics *metrics.Collector
	monitor *feed.Monitor
	archive LineWriter

	running   atomic.Bool
	conn      net.PacketConn
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	dropWarn  rate.Sometimes
	errorWarn rate.Sometimes
}

// NewReceiver creates a receiver feeding handler. collector may be nil.
func NewReceiver(config ReceiverConfig, handler *Handler, logger *logrus.Logger, collector *metrics.Collector) *Receiver {
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultQueueSize
	}
	if config.Throttle <= 0 {
		config.Throttle = DefaultThrottle
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = DefaultReadTimeout
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}

	return &Receiver{
		config:    config,
		handler:   handler,
		decoder:   NewDecoder(logger, collector),
		logger:    logger,
		metrics:   collector,
		monitor:   feed.NewMonitor("AIS data", config.Timeout),
		dropWarn:  rate.Sometimes{First: 1, Interval: 30 * time.Second},
		errorWarn: rate.Sometimes{First: 5, Interval: 10 * time.Second},
	}
}

// SetArchive records every forwarded sentence to w. Call before Start.
func (r *Receiver) SetArchive(w LineWriter) {
	r.archive = w
}

// Monitor returns the liveness monitor for this feed
func (r *Receiver) Monitor() *feed.Monitor {
	return r.monitor
}

// Addr returns the bound local address, or nil before Start
func (r *Receiver) Addr() net.Addr {
	if r.conn == nil {
		return nil
	}
	return r.conn.LocalAddr()
}

// Start binds the UDP port and starts the socket and decode goroutines. A
// bind failure is returned and nothing is started.
func (r *Receiver) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", r.config.Port)
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind AIS UDP port %d: %w", r.config.Port, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	r.conn = conn
	r.cancel = cancel
	r.running.Store(true)
	r.monitor.SetConnected(true)

	r.logger.WithFields(logrus.Fields{
		"source": Source,
		"port":   r.config.Port,
	}).Info("AIS receiver listening")

	queue := make(chan []byte, r.config.QueueSize)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.receive(ctx, queue)
	}()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.decoder.Run(ctx, queue, r.handle)
	}()

	return nil
}

// Stop clears the run flag, cancels the decoder and waits for both loops
func (r *Receiver) Stop() {
	if !r.running.Swap(false) {
		return
	}
	r.cancel()
	r.wg.Wait()

	if err := r.conn.Close(); err != nil {
		r.logger.WithError(err).Warn("Failed to close AIS socket")
	}
	r.monitor.SetConnected(false)
	r.logger.WithField("source", Source).Info("AIS receiver stopped")
}

// receive reads datagrams and forwards them to the decode queue
func (r *Receiver) receive(ctx context.Context, queue chan<- []byte) {
	limiter := rate.NewLimiter(rate.Every(r.config.Throttle), 1)
	buf := make([]byte, maxDatagram)

	for r.running.Load() {
		if err := limiter.Wait(ctx); err != nil {
			return
		}

		if err := r.conn.SetReadDeadline(time.Now().Add(r.config.ReadTimeout)); err != nil {
			r.logger.WithError(err).Error("Failed to set AIS read deadline")
			return
		}

		n, _, err := r.conn.ReadFrom(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) || !r.running.Load() {
				return
			}
			// Only one listener per process, so the feed stops here
			r.logger.WithError(err).WithField("source", Source).Error("AIS socket read failed, receiver stopping")
			r.monitor.SetConnected(false)
			return
		}

		sentence := strings.TrimSpace(asciiString(buf[:n]))
		if sentence == "" {
			continue
		}

		r.monitor.Touch()
		r.metrics.MessageReceived(Source)
		if r.archive != nil {
			if err := r.archive.WriteLine(sentence); err != nil {
				r.errorWarn.Do(func() {
					r.logger.WithError(err).Warn("Failed to archive AIS sentence")
				})
			}
		}

		select {
		case queue <- []byte(sentence + "\r\n"):
		default:
			r.metrics.DatagramDropped()
			r.dropWarn.Do(func() {
				r.logger.WithField("queue", cap(queue)).Warn("AIS decode queue full, dropping datagrams")
			})
		}
	}
}

// handle applies one report, keeping a bad report from killing the loop
func (r *Receiver) handle(p aislib.Packet) {
	defer func() {
		if rec := recover(); rec != nil {
			r.metrics.DecodeError(Source)
			r.logger.WithField("source", Source).Errorf("AIS handler panic: %v", rec)
		}
	}()

	if err := r.handler.HandlePacket(p); err != nil {
		r.logger.WithError(err).WithField("source", Source).Debug("AIS report not applied")
	}
}

// asciiString decodes US-ASCII, replacing bytes outside it with '?'
func asciiString(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, c := range b {
		if c > 0x7f {
			c = '?'
		}
		sb.WriteByte(c)
	}
	return sb.String()
}
