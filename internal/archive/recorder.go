// Package archive records raw feed input to daily files, compressing each
// day's file once the date rolls over.
package archive

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const dateLayout = "2006-01-02"

// ErrClosed is returned by writes after Close
var ErrClosed = errors.New("archive closed")

// Recorder appends lines to <prefix>_YYYY-MM-DD.log in dir
type Recorder struct {
	dir    string
	prefix string
	useUTC bool
	logger *logrus.Logger
	now    func() time.Time

	mutex       sync.RWMutex
	currentFile *os.File
	currentDate string
	compressing sync.WaitGroup
}

// NewRecorder creates the directory and opens today's file
func NewRecorder(dir, prefix string, useUTC bool, logger *logrus.Logger) (*Recorder, error) {
	return newRecorder(dir, prefix, useUTC, logger, time.Now)
}

func newRecorder(dir, prefix string, useUTC bool, logger *logrus.Logger, now func() time.Time) (*Recorder, error) {
	if prefix == "" {
		return nil, errors.New("archive prefix must not be empty")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	r := &Recorder{
		dir:    dir,
		prefix: prefix,
		useUTC: useUTC,
		logger: logger,
		now:    now,
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()
	if err := r.rotate(r.date()); err != nil {
		return nil, fmt.Errorf("failed to initialize archive file: %w", err)
	}
	return r, nil
}

// Start checks for a date change every minute until ctx is cancelled
func (r *Recorder) Start(ctx context.Context) {
	r.logger.WithField("prefix", r.prefix).Info("Starting archive rotation")

	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.checkRotation()
		}
	}
}

func (r *Recorder) date() string {
	now := r.now()
	if r.useUTC {
		now = now.UTC()
	}
	return now.Format(dateLayout)
}

func (r *Recorder) fileName(date string) string {
	return filepath.Join(r.dir, fmt.Sprintf("%s_%s.log", r.prefix, date))
}

// checkRotation switches files when the date has changed
func (r *Recorder) checkRotation() {
	date := r.date()

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.currentFile == nil || r.currentDate == date {
		return
	}

	r.logger.WithFields(logrus.Fields{
		"old_date": r.currentDate,
		"new_date": date,
	}).Info("Rotating archive file")

	if err := r.rotate(date); err != nil {
		r.logger.WithError(err).Error("Failed to rotate archive file")
	}
}

// rotate closes the current file, compresses it in the background and
// opens the file for date. Callers hold the write lock.
func (r *Recorder) rotate(date string) error {
	if r.currentFile != nil {
		if err := r.currentFile.Close(); err != nil {
			r.logger.WithError(err).Error("Failed to close archive file")
		}
		r.currentFile = nil

		if r.currentDate != date {
			old := r.currentDate
			r.compressing.Add(1)
			go func() {
				defer r.compressing.Done()
				r.compress(old)
			}()
		}
	}

	path := r.fileName(date)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create archive file %s: %w", path, err)
	}

	r.currentFile = file
	r.currentDate = date
	r.logger.WithField("file", path).Info("Opened archive file")
	return nil
}

// compress gzips the file for date and removes the original
func (r *Recorder) compress(date string) {
	src := r.fileName(date)
	dst := src + ".gz"
	log := r.logger.WithField("file", src)

	if _, err := os.Stat(src); os.IsNotExist(err) {
		log.Debug("Archive file doesn't exist, skipping compression")
		return
	}

	if err := gzipFile(src, dst); err != nil {
		log.WithError(err).Error("Failed to compress archive file")
		os.Remove(dst)
		return
	}

	if err := os.Remove(src); err != nil {
		log.WithError(err).Error("Failed to remove original archive file")
		return
	}
	r.logger.WithField("file", dst).Info("Archive file compressed")
}

func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	gz.Name = filepath.Base(src)
	gz.ModTime = time.Now()

	if _, err := io.Copy(gz, in); err != nil {
		return err
	}
	if err := gz.Close(); err != nil {
		return err
	}
	return out.Close()
}

// Write appends p to the current file
func (r *Recorder) Write(p []byte) (int, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.currentFile == nil {
		return 0, ErrClosed
	}
	return r.currentFile.Write(p)
}

// WriteLine appends line followed by a newline
func (r *Recorder) WriteLine(line string) error {
	_, err := r.Write([]byte(line + "\n"))
	return err
}

// Close closes the current file and waits for pending compression
func (r *Recorder) Close() error {
	r.mutex.Lock()
	var err error
	if r.currentFile != nil {
		err = r.currentFile.Close()
		r.currentFile = nil
	}
	r.mutex.Unlock()

	r.compressing.Wait()
	return err
}

// CurrentFile returns the path being written, or "" after Close
func (r *Recorder) CurrentFile() string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if r.currentFile == nil {
		return ""
	}
	return r.fileName(r.currentDate)
}

// Files lists every archive file for this prefix, compressed or not
func (r *Recorder) Files() ([]string, error) {
	files, err := filepath.Glob(filepath.Join(r.dir, r.prefix+"_*.log*"))
	if err != nil {
		return nil, fmt.Errorf("failed to list archive files: %w", err)
	}
	return files, nil
}

// CleanupOldFiles removes archive files last modified more than maxDays ago
func (r *Recorder) CleanupOldFiles(maxDays int) (int, error) {
	if maxDays <= 0 {
		return 0, errors.New("maxDays must be positive")
	}

	files, err := r.Files()
	if err != nil {
		return 0, err
	}

	cutoff := r.now().AddDate(0, 0, -maxDays)
	current := r.CurrentFile()

	removed := 0
	for _, file := range files {
		if file == current {
			continue
		}

		info, err := os.Stat(file)
		if err != nil {
			r.logger.WithError(err).WithField("file", file).Warn("Failed to stat archive file")
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		if err := os.Remove(file); err != nil {
			r.logger.WithError(err).WithField("file", file).Error("Failed to remove old archive file")
			continue
		}
		removed++
	}

	r.logger.WithFields(logrus.Fields{
		"prefix": r.prefix,
		"count":  removed,
	}).Info("Cleaned up old archive files")
	return removed, nil
}
