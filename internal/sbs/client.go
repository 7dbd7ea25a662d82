package sbs

import (
	"time"

	"github.com/sirupsen/logrus"

	"planesail/internal/feed"
	"planesail/internal/metrics"
)

// Feed defaults
const (
	DefaultPort     = 30003
	DefaultMLATPort = 30105

	// DirectTimeout bounds silence on a local receiver feed
	DirectTimeout = 60 * time.Second
	// MLATTimeout bounds silence on a remote MLAT feed, which can be quiet
	// for long stretches
	MLATTimeout = 600 * time.Second

	SourceDirect = "sbs"
	SourceMLAT   = "mlat"
)

// Source returns the feed label for a direct or MLAT connection
func Source(mlat bool) string {
	if mlat {
		return SourceMLAT
	}
	return SourceDirect
}

// NewClient builds a reconnecting TCP client delivering lines to handler
func NewClient(host string, port int, mlat bool, handler *Handler, logger *logrus.Logger, collector *metrics.Collector) *feed.TCPClient {
	config := feed.TCPConfig{
		Source:  handler.Source(),
		Name:    "SBS format (ADS-B) data",
		Host:    host,
		Port:    port,
		Timeout: DirectTimeout,
		Handler: handler.Handle,
	}
	if mlat {
		config.Name = "SBS format (MLAT) data"
		config.Timeout = MLATTimeout
	}

	return feed.NewTCPClient(config, logger, collector)
}
