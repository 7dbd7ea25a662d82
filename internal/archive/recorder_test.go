package archive

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// fakeClock is a settable time source
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// TestRecorder_NewRecorder tests directory and file creation
func TestRecorder_NewRecorder(t *testing.T) {
	tests := []struct {
		name    string
		dir     string
		prefix  string
		useUTC  bool
		wantErr bool
	}{
		{name: "Valid directory creation", dir: "archive", prefix: "ais"},
		{name: "UTC timezone", dir: "archive_utc", prefix: "sbs", useUTC: true},
		{name: "Nested directory creation", dir: "nested/raw/feeds", prefix: "mlat"},
		{name: "Empty prefix", dir: "archive", prefix: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), tt.dir)

			r, err := NewRecorder(dir, tt.prefix, tt.useUTC, newTestLogger())
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, r)
				return
			}

			require.NoError(t, err)
			defer r.Close()

			assert.DirExists(t, dir)
			current := r.CurrentFile()
			assert.FileExists(t, current)
			assert.Contains(t, filepath.Base(current), tt.prefix+"_")
		})
	}
}

// TestRecorder_WriteLine tests appending lines
func TestRecorder_WriteLine(t *testing.T) {
	r, err := NewRecorder(t.TempDir(), "ais", false, newTestLogger())
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.WriteLine("!AIVDM,1,1,,A,13aDo8001sOe>m0Lbep3Jjht0000,0*69"))
	require.NoError(t, r.WriteLine("MSG,3,1,1,ABCDEF,1"))

	content, err := os.ReadFile(r.CurrentFile())
	require.NoError(t, err)
	assert.Equal(t, "!AIVDM,1,1,,A,13aDo8001sOe>m0Lbep3Jjht0000,0*69\nMSG,3,1,1,ABCDEF,1\n", string(content))
}

// TestRecorder_Files tests listing by prefix
func TestRecorder_Files(t *testing.T) {
	dir := t.TempDir()
	r, err := NewRecorder(dir, "sbs", false, newTestLogger())
	require.NoError(t, err)
	defer r.Close()

	for _, name := range []string{"sbs_2023-01-01.log", "sbs_2023-01-02.log.gz", "ais_2023-01-01.log"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}

	files, err := r.Files()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range files {
		names[filepath.Base(f)] = true
	}
	assert.True(t, names["sbs_2023-01-01.log"])
	assert.True(t, names["sbs_2023-01-02.log.gz"])
	assert.True(t, names[filepath.Base(r.CurrentFile())])
	assert.False(t, names["ais_2023-01-01.log"])
}

// TestRecorder_CleanupOldFiles tests age based removal
func TestRecorder_CleanupOldFiles(t *testing.T) {
	dir := t.TempDir()
	r, err := NewRecorder(dir, "ais", false, newTestLogger())
	require.NoError(t, err)
	defer r.Close()

	oldFile := filepath.Join(dir, "ais_2023-01-01.log.gz")
	require.NoError(t, os.WriteFile(oldFile, []byte("old"), 0644))
	oldTime := time.Now().AddDate(0, 0, -10)
	require.NoError(t, os.Chtimes(oldFile, oldTime, oldTime))

	recentFile := filepath.Join(dir, "ais_2023-12-31.log")
	require.NoError(t, os.WriteFile(recentFile, []byte("recent"), 0644))

	removed, err := r.CleanupOldFiles(5)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	assert.NoFileExists(t, oldFile)
	assert.FileExists(t, recentFile)
	assert.FileExists(t, r.CurrentFile())

	_, err = r.CleanupOldFiles(0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maxDays must be positive")
	_, err = r.CleanupOldFiles(-1)
	assert.Error(t, err)
}

// TestRecorder_Close tests writes after close
func TestRecorder_Close(t *testing.T) {
	r, err := NewRecorder(t.TempDir(), "ais", false, newTestLogger())
	require.NoError(t, err)

	require.NoError(t, r.WriteLine("before"))
	require.NoError(t, r.Close())

	assert.ErrorIs(t, r.WriteLine("after"), ErrClosed)
	assert.Empty(t, r.CurrentFile())
	assert.NoError(t, r.Close())
}

// TestRecorder_DateRotation tests switching files at midnight
func TestRecorder_DateRotation(t *testing.T) {
	dir := t.TempDir()
	clock := &fakeClock{now: time.Date(2024, 3, 1, 23, 59, 0, 0, time.UTC)}

	r, err := newRecorder(dir, "sbs", true, newTestLogger(), clock.Now)
	require.NoError(t, err)

	require.NoError(t, r.WriteLine("day one"))
	first := r.CurrentFile()
	assert.Equal(t, filepath.Join(dir, "sbs_2024-03-01.log"), first)

	// Same date, nothing happens
	r.checkRotation()
	assert.Equal(t, first, r.CurrentFile())

	clock.Set(time.Date(2024, 3, 2, 0, 1, 0, 0, time.UTC))
	r.checkRotation()
	require.NoError(t, r.WriteLine("day two"))
	assert.Equal(t, filepath.Join(dir, "sbs_2024-03-02.log"), r.CurrentFile())

	require.NoError(t, r.Close())

	assert.NoFileExists(t, first)
	gzFile, err := os.Open(first + ".gz")
	require.NoError(t, err)
	defer gzFile.Close()

	gz, err := gzip.NewReader(gzFile)
	require.NoError(t, err)
	defer gz.Close()

	content, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Equal(t, "day one\n", string(content))
	assert.Equal(t, "sbs_2024-03-01.log", gz.Name)

	second, err := os.ReadFile(filepath.Join(dir, "sbs_2024-03-02.log"))
	require.NoError(t, err)
	assert.Equal(t, "day two\n", string(second))
}

// TestRecorder_CompressMissingFile tests compression of a file that is gone
func TestRecorder_CompressMissingFile(t *testing.T) {
	dir := t.TempDir()
	r, err := NewRecorder(dir, "ais", false, newTestLogger())
	require.NoError(t, err)
	defer r.Close()

	r.compress("1999-01-01")
	assert.NoFileExists(t, filepath.Join(dir, "ais_1999-01-01.log.gz"))
}

// TestRecorder_StartStops tests the rotation loop exits with its context
func TestRecorder_StartStops(t *testing.T) {
	r, err := NewRecorder(t.TempDir(), "ais", false, newTestLogger())
	require.NoError(t, err)
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return")
	}
}

// TestRecorder_ConcurrentAccess tests concurrent writers
func TestRecorder_ConcurrentAccess(t *testing.T) {
	r, err := NewRecorder(t.TempDir(), "sbs", false, newTestLogger())
	require.NoError(t, err)
	defer r.Close()

	numGoroutines := 10
	numOps := 100

	var wg sync.WaitGroup
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < numOps; j++ {
				if err := r.WriteLine(fmt.Sprintf("goroutine-%d-op-%d", id, j)); err != nil {
					t.Errorf("WriteLine failed: %v", err)
					return
				}
			}
		}(i)
	}
	wg.Wait()

	content, err := os.ReadFile(r.CurrentFile())
	require.NoError(t, err)
	assert.Contains(t, string(content), "goroutine-0-op-0\n")
	assert.Contains(t, string(content), fmt.Sprintf("goroutine-%d-op-%d\n", numGoroutines-1, numOps-1))
}

// BenchmarkRecorder_WriteLine benchmarks line appends
func BenchmarkRecorder_WriteLine(b *testing.B) {
	r, err := NewRecorder(b.TempDir(), "ais", false, newTestLogger())
	if err != nil {
		b.Fatal(err)
	}
	defer r.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.WriteLine("!AIVDM,1,1,,A,13aDo8001sOe>m0Lbep3Jjht0000,0*69")
	}
}
