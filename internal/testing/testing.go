// package testing contains shared testing utilities
package testing

import (
	"errors"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/spf13/afero"

	"github.com/desertthunder/podsync/internal/device"
	"github.com/desertthunder/podsync/internal/models"
	"github.com/desertthunder/podsync/internal/shared"
)

// ErrSimulated is returned by every injected failure.
var ErrSimulated = errors.New("simulated failure")

// MemoryLibrary is a test double for the played-state store.
type MemoryLibrary struct {
	mu     sync.Mutex
	played map[string]bool
	Calls  []string
	Err    error
}

func NewMemoryLibrary(played ...string) *MemoryLibrary {
	l := &MemoryLibrary{played: map[string]bool{}}
	for _, url := range played {
		l.played[url] = true
	}
	return l
}

func (l *MemoryLibrary) MarkPlayed(url string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Calls = append(l.Calls, url)
	if l.Err != nil {
		return l.Err
	}
	l.played[url] = true
	return nil
}

func (l *MemoryLibrary) IsPlayed(url string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.played[url]
}

// Collector buffers values sent on a channel so tests can inspect them after the fact.
type Collector[T any] struct {
	C chan T
}

// NewCollector returns a collector whose channel holds up to size values.
func NewCollector[T any](size int) *Collector[T] {
	return &Collector[T]{C: make(chan T, size)}
}

// Drain returns everything buffered so far without blocking.
func (c *Collector[T]) Drain() []T {
	var out []T
	for {
		select {
		case v := <-c.C:
			out = append(out, v)
		default:
			return out
		}
	}
}

// FaultyFs wraps an [afero.Fs] and injects failures into files opened for writing.
type FaultyFs struct {
	afero.Fs
	FailWriteAt int       // 1-based write call that fails; 0 never fails
	FailRemove  bool      // Remove and RemoveAll fail
	OnWrite     func(int) // called after each successful write with its 1-based index

	mu     sync.Mutex
	writes int
}

func (f *FaultyFs) Writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

func (f *FaultyFs) Create(name string) (afero.File, error) {
	file, err := f.Fs.Create(name)
	if err != nil {
		return nil, err
	}
	return &faultyFile{File: file, fs: f}, nil
}

func (f *FaultyFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	file, err := f.Fs.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	if flag&(os.O_WRONLY|os.O_RDWR) == 0 {
		return file, nil
	}
	return &faultyFile{File: file, fs: f}, nil
}

func (f *FaultyFs) Remove(name string) error {
	if f.FailRemove {
		return &os.PathError{Op: "remove", Path: name, Err: ErrSimulated}
	}
	return f.Fs.Remove(name)
}

func (f *FaultyFs) RemoveAll(path string) error {
	if f.FailRemove {
		return &os.PathError{Op: "removeall", Path: path, Err: ErrSimulated}
	}
	return f.Fs.RemoveAll(path)
}

type faultyFile struct {
	afero.File
	fs *FaultyFs
}

func (f *faultyFile) Write(p []byte) (int, error) {
	f.fs.mu.Lock()
	f.fs.writes++
	n := f.fs.writes
	f.fs.mu.Unlock()

	if f.fs.FailWriteAt > 0 && n == f.fs.FailWriteAt {
		return 0, &os.PathError{Op: "write", Path: f.Name(), Err: ErrSimulated}
	}
	written, err := f.File.Write(p)
	if err == nil && f.fs.OnWrite != nil {
		f.fs.OnWrite(n)
	}
	return written, err
}

// FaultyDatabase wraps a [device.MemoryDatabase] with injectable failures.
type FaultyDatabase struct {
	*device.MemoryDatabase
	CopyErr      error
	WriteBackErr error
	WriteBacks   int
	Closed       bool
}

func NewFaultyDatabase(mount string, features device.Features) *FaultyDatabase {
	return &FaultyDatabase{MemoryDatabase: device.NewMemoryDatabase(mount, features)}
}

func (d *FaultyDatabase) CopyFileToDevice(t *device.Track, localPath string) error {
	if d.CopyErr != nil {
		return d.CopyErr
	}
	return d.MemoryDatabase.CopyFileToDevice(t, localPath)
}

func (d *FaultyDatabase) WriteBack() error {
	d.WriteBacks++
	return d.WriteBackErr
}

func (d *FaultyDatabase) Close() error {
	d.Closed = true
	return nil
}

// Binding returns a binding that always yields d.
func (d *FaultyDatabase) Binding() device.Binding {
	return device.BindingFunc(func(string) (device.Database, error) { return d, nil })
}

// NewChannel builds a sync-enabled channel with one downloaded episode per path.
func NewChannel(title string, paths ...string) *models.Channel {
	ch := &models.Channel{
		ID:            shared.GenerateID(),
		Title:         title,
		URL:           "https://example.com/" + title + ".xml",
		SyncToDevices: true,
	}
	for i, p := range paths {
		ch.Episodes = append(ch.Episodes, &models.Episode{
			ID:        shared.GenerateID(),
			ChannelID: ch.ID,
			Title:     title + " episode " + string(rune('A'+i)),
			URL:       "https://example.com/" + title + "/" + string(rune('a'+i)) + ".mp3",
			LocalPath: p,
			PubDate:   "Mon, 02 Jan 2006 15:04:05 -0700",
		})
	}
	return ch
}

// WriteFile writes size bytes to path on fs, creating parent directories.
func WriteFile(t *testing.T, fs afero.Fs, path string, size int) {
	t.Helper()
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i)
	}
	if err := afero.WriteFile(fs, path, data, 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
