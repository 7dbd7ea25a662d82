package feed

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sirupsen/logrus"

	"planesail/internal/metrics"
)

// Default reconnect backoff bounds
const (
	DefaultMinBackoff = 1 * time.Second
	DefaultMaxBackoff = 60 * time.Second
)

// LineHandler consumes one line of input. It runs on the client goroutine.
type LineHandler func(line string)

// TCPConfig parameterizes a TCPClient
type TCPConfig struct {
	// Source is the short metric and log label, e.g. "sbs"
	Source string
	// Name is the human readable description used in log messages
	Name    string
	Host    string
	Port    int
	Timeout time.Duration
	Handler LineHandler

	MinBackoff time.Duration
	MaxBackoff time.Duration
}

// TCPClient is a reconnecting line-oriented TCP client. A connection that
// stays silent for longer than Timeout is dropped and redialled.
type TCPClient struct {
	config  TCPConfig
	logger  *logrus.Logger
	metrics *metrics.Collector
	monitor *Monitor
	backoff *backoff.ExponentialBackOff
}

// NewTCPClient creates a client. collector may be nil.
func NewTCPClient(config TCPConfig, logger *logrus.Logger, collector *metrics.Collector) *TCPClient {
	if config.MinBackoff <= 0 {
		config.MinBackoff = DefaultMinBackoff
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = DefaultMaxBackoff
	}
	if config.Source == "" {
		config.Source = config.Name
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = config.MinBackoff
	b.MaxInterval = config.MaxBackoff
	b.Multiplier = 2
	b.Reset()

	return &TCPClient{
		config:  config,
		logger:  logger,
		metrics: collector,
		monitor: NewMonitor(config.Name, config.Timeout),
		backoff: b,
	}
}

// Monitor returns the liveness monitor for this client
func (c *TCPClient) Monitor() *Monitor {
	return c.monitor
}

// Addr returns the remote address
func (c *TCPClient) Addr() string {
	return net.JoinHostPort(c.config.Host, strconv.Itoa(c.config.Port))
}

// Run connects and reads lines until ctx is cancelled, reconnecting with
// exponential backoff after any connection failure. It returns nil on
// cooperative stop.
func (c *TCPClient) Run(ctx context.Context) error {
	log := c.logger.WithFields(logrus.Fields{
		"source": c.config.Source,
		"addr":   c.Addr(),
	})
	log.Infof("Starting %s client", c.config.Name)

	for {
		err := c.session(ctx)
		c.monitor.SetConnected(false)

		if ctx.Err() != nil {
			log.Infof("%s client stopped", c.config.Name)
			return nil
		}

		wait := c.backoff.NextBackOff()
		log.WithError(err).WithField("retry_in", wait.Round(time.Millisecond)).
			Warnf("%s connection lost", c.config.Name)
		c.metrics.Reconnect(c.config.Source)

		select {
		case <-ctx.Done():
			log.Infof("%s client stopped", c.config.Name)
			return nil
		case <-time.After(wait):
		}
	}
}

// session runs one connection until it fails
func (c *TCPClient) session(ctx context.Context) error {
	dialer := net.Dialer{Timeout: c.config.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.Addr())
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer conn.Close()

	c.monitor.SetConnected(true)
	c.logger.WithFields(logrus.Fields{
		"source": c.config.Source,
		"addr":   c.Addr(),
	}).Infof("Connected to %s", c.config.Name)

	// Unblock the read when the caller stops us
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	reader := bufio.NewReader(conn)
	for {
		if c.config.Timeout > 0 {
			if err := conn.SetReadDeadline(time.Now().Add(c.config.Timeout)); err != nil {
				return fmt.Errorf("failed to set read deadline: %w", err)
			}
		}

		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return errors.New("connection closed by remote")
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return fmt.Errorf("no data for %s: %w", c.config.Timeout, err)
			}
			return fmt.Errorf("read failed: %w", err)
		}

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}

		c.backoff.Reset()
		c.monitor.Touch()
		c.metrics.MessageReceived(c.config.Source)
		c.handle(line)
	}
}

// handle invokes the line handler, containing any panic to this line
func (c *TCPClient) handle(line string) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.WithFields(logrus.Fields{
				"source": c.config.Source,
				"line":   line,
			}).Errorf("Line handler panic: %v", r)
			c.metrics.DecodeError(c.config.Source)
		}
	}()

	if c.config.Handler != nil {
		c.config.Handler(line)
	}
}
