package app

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// File is the YAML configuration file. Every field is optional; pointers
// distinguish "absent" from a zero value.
type File struct {
	AISPort *int `yaml:"ais_port"`

	SBS  *Endpoint `yaml:"sbs"`
	MLAT *Endpoint `yaml:"mlat"`

	Dump1090URL *string `yaml:"dump1090_url"`
	MetricsAddr *string `yaml:"metrics_addr"`

	Snapshot *struct {
		File     *string        `yaml:"file"`
		Interval *time.Duration `yaml:"interval"`
	} `yaml:"snapshot"`

	Archive *struct {
		Dir     *string `yaml:"dir"`
		MaxDays *int    `yaml:"max_days"`
		UTC     *bool   `yaml:"utc"`
	} `yaml:"archive"`

	Expiry *struct {
		Aircraft *time.Duration `yaml:"aircraft"`
		Ship     *time.Duration `yaml:"ship"`
		APRS     *time.Duration `yaml:"aprs"`
		FixedAIS *time.Duration `yaml:"fixed_ais"`
	} `yaml:"expiry"`

	Airports     []Airport     `yaml:"airports"`
	BaseStations []BaseStation `yaml:"base_stations"`
}

// Endpoint is a host and port pair
type Endpoint struct {
	Host *string `yaml:"host"`
	Port *int    `yaml:"port"`
}

// LoadFile reads and decodes a configuration file. Unknown keys are errors.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return &f, nil
}

// Apply copies file values into c. changed reports whether a command line
// flag was set explicitly, in which case the flag wins.
func (f *File) Apply(c *Config, changed func(flag string) bool) {
	if changed == nil {
		changed = func(string) bool { return false }
	}

	setInt := func(flag string, dst *int, v *int) {
		if v != nil && !changed(flag) {
			*dst = *v
		}
	}
	setString := func(flag string, dst *string, v *string) {
		if v != nil && !changed(flag) {
			*dst = *v
		}
	}
	setDuration := func(flag string, dst *time.Duration, v *time.Duration) {
		if v != nil && !changed(flag) {
			*dst = *v
		}
	}

	setInt("ais-port", &c.AISPort, f.AISPort)
	if f.SBS != nil {
		setString("sbs-host", &c.SBSHost, f.SBS.Host)
		setInt("sbs-port", &c.SBSPort, f.SBS.Port)
	}
	if f.MLAT != nil {
		setString("mlat-host", &c.MLATHost, f.MLAT.Host)
		setInt("mlat-port", &c.MLATPort, f.MLAT.Port)
	}
	setString("dump1090-url", &c.Dump1090URL, f.Dump1090URL)
	setString("metrics-addr", &c.MetricsAddr, f.MetricsAddr)

	if f.Snapshot != nil {
		setString("snapshot-file", &c.SnapshotFile, f.Snapshot.File)
		setDuration("snapshot-interval", &c.SnapshotInterval, f.Snapshot.Interval)
	}
	if f.Archive != nil {
		setString("archive-dir", &c.ArchiveDir, f.Archive.Dir)
		setInt("archive-max-days", &c.ArchiveMaxDays, f.Archive.MaxDays)
		if f.Archive.UTC != nil && !changed("log-rotate-utc") {
			c.LogRotateUTC = *f.Archive.UTC
		}
	}
	if f.Expiry != nil {
		expiry := []struct {
			dst *time.Duration
			v   *time.Duration
		}{
			{&c.Expiry.Aircraft, f.Expiry.Aircraft},
			{&c.Expiry.Ship, f.Expiry.Ship},
			{&c.Expiry.APRS, f.Expiry.APRS},
			{&c.Expiry.FixedAIS, f.Expiry.FixedAIS},
		}
		for _, e := range expiry {
			if e.v != nil {
				*e.dst = *e.v
			}
		}
	}

	c.Airports = append(c.Airports, f.Airports...)
	c.BaseStations = append(c.BaseStations, f.BaseStations...)
}
