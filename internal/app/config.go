package app

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"planesail/internal/ais"
	"planesail/internal/sbs"
	"planesail/internal/track"
)

// Default configuration constants
const (
	DefaultAISPort             = ais.DefaultPort
	DefaultSBSHost             = "localhost"
	DefaultSBSPort             = sbs.DefaultPort
	DefaultMLATPort            = sbs.DefaultMLATPort
	DefaultSnapshotInterval    = 10 * time.Second
	DefaultMaintenanceInterval = 10 * time.Second
	DefaultArchiveMaxDays      = 30
)

// Airport is a configured airport shown as a fixed track
type Airport struct {
	Name     string  `yaml:"name"`
	ICAOCode string  `yaml:"icao_code"`
	Lat      float64 `yaml:"lat"`
	Lon      float64 `yaml:"lon"`
}

// BaseStation is a configured receiver site shown as a fixed track
type BaseStation struct {
	Name string  `yaml:"name"`
	Lat  float64 `yaml:"lat"`
	Lon  float64 `yaml:"lon"`
}

// Config holds application configuration
type Config struct {
	AISPort int

	// SBSHost empty disables the direct SBS feed
	SBSHost string
	SBSPort int
	// MLATHost empty disables the MLAT feed
	MLATHost string
	MLATPort int

	Dump1090URL string

	ConfigFile  string
	MetricsAddr string

	SnapshotFile     string
	SnapshotInterval time.Duration

	ArchiveDir     string
	ArchiveMaxDays int
	LogRotateUTC   bool

	MaintenanceInterval time.Duration
	Expiry              track.ExpiryPolicy

	Airports     []Airport
	BaseStations []BaseStation

	Verbose     bool
	ShowVersion bool
}

// DefaultConfig returns the configuration used when nothing is overridden
func DefaultConfig() Config {
	return Config{
		AISPort:             DefaultAISPort,
		SBSHost:             DefaultSBSHost,
		SBSPort:             DefaultSBSPort,
		MLATPort:            DefaultMLATPort,
		SnapshotInterval:    DefaultSnapshotInterval,
		ArchiveMaxDays:      DefaultArchiveMaxDays,
		LogRotateUTC:        true,
		MaintenanceInterval: DefaultMaintenanceInterval,
		Expiry:              track.DefaultExpiryPolicy(),
	}
}

// Validate reports the first problem with the configuration
func (c *Config) Validate() error {
	if err := validPort("ais-port", c.AISPort); err != nil {
		return err
	}
	if c.SBSHost != "" {
		if err := validPort("sbs-port", c.SBSPort); err != nil {
			return err
		}
	}
	if c.MLATHost != "" {
		if err := validPort("mlat-port", c.MLATPort); err != nil {
			return err
		}
	}

	if c.Dump1090URL != "" {
		u, err := url.Parse(c.Dump1090URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("dump1090-url %q is not an http(s) URL", c.Dump1090URL)
		}
	}

	if c.SnapshotFile != "" && c.SnapshotInterval <= 0 {
		return errors.New("snapshot-interval must be positive")
	}
	if c.MaintenanceInterval <= 0 {
		return errors.New("maintenance interval must be positive")
	}
	if c.ArchiveDir != "" && c.ArchiveMaxDays < 0 {
		return errors.New("archive max days must not be negative")
	}

	durations := []struct {
		name string
		d    time.Duration
	}{
		{"expiry.aircraft", c.Expiry.Aircraft},
		{"expiry.ship", c.Expiry.Ship},
		{"expiry.aprs", c.Expiry.APRS},
		{"expiry.fixed_ais", c.Expiry.FixedAIS},
	}
	for _, d := range durations {
		if d.d <= 0 {
			return fmt.Errorf("%s must be positive", d.name)
		}
	}

	for i, a := range c.Airports {
		if a.Name == "" {
			return fmt.Errorf("airport %d has no name", i)
		}
		if !track.ValidCoordinates(a.Lat, a.Lon) {
			return fmt.Errorf("airport %q has invalid coordinates %f,%f", a.Name, a.Lat, a.Lon)
		}
	}
	for i, b := range c.BaseStations {
		if b.Name == "" {
			return fmt.Errorf("base station %d has no name", i)
		}
		if !track.ValidCoordinates(b.Lat, b.Lon) {
			return fmt.Errorf("base station %q has invalid coordinates %f,%f", b.Name, b.Lat, b.Lon)
		}
	}

	return nil
}

func validPort(name string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s %d out of range", name, port)
	}
	return nil
}
