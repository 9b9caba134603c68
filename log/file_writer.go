// Package log holds the CLI's log sink and rate-limited logging helpers on
// top of go-ethereum's logger.
package log

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

// AsyncFileWriter buffers log lines on a channel and writes them to a file
// from a single goroutine. When rotateHours is non-zero the file is
// switched every rotateHours hours; the configured path is kept as a
// symlink to the current file. Lines written while the buffer is full are
// dropped and counted.
type AsyncFileWriter struct {
	path        string
	rotateHours uint

	fd      *os.File
	bucket  int64
	started atomic.Bool
	dropped atomic.Uint64

	buf  chan []byte
	stop chan struct{}
	wg   sync.WaitGroup
	now  func() time.Time
}

func NewAsyncFileWriter(path string, bufferedLines int, rotateHours uint) (*AsyncFileWriter, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("log file path %q: %w", path, err)
	}
	return &AsyncFileWriter{
		path:        abs,
		rotateHours: rotateHours,
		buf:         make(chan []byte, bufferedLines),
		stop:        make(chan struct{}),
		now:         time.Now,
	}, nil
}

func (w *AsyncFileWriter) Start() error {
	if !w.started.CompareAndSwap(false, true) {
		return errors.New("log writer already started")
	}
	if err := w.open(w.now()); err != nil {
		w.started.Store(false)
		return err
	}
	w.wg.Add(1)
	go w.loop()
	return nil
}

func (w *AsyncFileWriter) loop() {
	defer w.wg.Done()
	for {
		select {
		case msg := <-w.buf:
			w.write(msg)
		case <-w.stop:
			for {
				select {
				case msg := <-w.buf:
					w.write(msg)
				default:
					w.close()
					return
				}
			}
		}
	}
}

// Write queues a copy of msg. It never blocks.
func (w *AsyncFileWriter) Write(msg []byte) (int, error) {
	line := append([]byte(nil), msg...)
	select {
	case w.buf <- line:
	default:
		w.dropped.Add(1)
	}
	return len(msg), nil
}

// Close drains the buffer and closes the file.
func (w *AsyncFileWriter) Close() error {
	if !w.started.CompareAndSwap(true, false) {
		return nil
	}
	close(w.stop)
	w.wg.Wait()
	return nil
}

// Dropped returns how many lines were discarded on a full buffer.
func (w *AsyncFileWriter) Dropped() uint64 { return w.dropped.Load() }

// Path returns the symlink path given to NewAsyncFileWriter, made absolute.
func (w *AsyncFileWriter) Path() string { return w.path }

func (w *AsyncFileWriter) write(msg []byte) {
	now := w.now()
	if w.rotateHours > 0 && w.bucketOf(now) != w.bucket {
		w.close()
		if err := w.open(now); err != nil {
			fmt.Fprintf(os.Stderr, "rotate log file: %v\n", err)
		}
	}
	if w.fd != nil {
		w.fd.Write(msg)
	}
}

func (w *AsyncFileWriter) bucketOf(t time.Time) int64 {
	if w.rotateHours == 0 {
		return 0
	}
	return t.Unix() / int64(time.Duration(w.rotateHours)*time.Hour/time.Second)
}

func (w *AsyncFileWriter) open(now time.Time) error {
	name := w.path
	if w.rotateHours > 0 {
		name = w.path + "." + now.Format("2006-01-02_15")
	}
	fd, err := os.OpenFile(name, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	w.fd, w.bucket = fd, w.bucketOf(now)
	if name == w.path {
		return nil
	}
	if fi, err := os.Lstat(w.path); err == nil {
		if fi.Mode()&os.ModeSymlink == 0 {
			// A log file from a run without rotation; leave it alone.
			return nil
		}
		if err := os.Remove(w.path); err != nil {
			return err
		}
	}
	return os.Symlink(name, w.path)
}

func (w *AsyncFileWriter) close() {
	if w.fd == nil {
		return
	}
	w.fd.Sync()
	w.fd.Close()
	w.fd = nil
}
