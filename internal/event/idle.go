package event

import (
	"errors"
	"io"
	"sync"
	"time"
)

// ErrIdleTimeout is returned when the upstream sends no bytes for the
// configured window. Callers treat it like any other mid-stream disconnect.
var ErrIdleTimeout = errors.New("upstream idle read timeout")

type readResult struct {
	data []byte
	err  error
}

// idleReader wraps a stream body with a per-read watchdog. Reads are pumped
// through a goroutine so a stalled upstream cannot block the pipeline past
// the timeout.
type idleReader struct {
	rc      io.ReadCloser
	timeout time.Duration

	once     sync.Once
	results  chan readResult
	leftover []byte
	err      error
}

// NewIdleTimeoutReader returns body unchanged when timeout is zero.
func NewIdleTimeoutReader(body io.ReadCloser, timeout time.Duration) io.ReadCloser {
	if timeout <= 0 {
		return body
	}
	return &idleReader{rc: body, timeout: timeout, results: make(chan readResult, 1)}
}

func (r *idleReader) pump() {
	go func() {
		for {
			buf := make([]byte, 32*1024)
			n, err := r.rc.Read(buf)
			r.results <- readResult{data: buf[:n], err: err}
			if err != nil {
				return
			}
		}
	}()
}

func (r *idleReader) Read(p []byte) (int, error) {
	r.once.Do(r.pump)

	if len(r.leftover) > 0 {
		n := copy(p, r.leftover)
		r.leftover = r.leftover[n:]
		return n, nil
	}
	if r.err != nil {
		return 0, r.err
	}

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case res := <-r.results:
		if res.err != nil {
			r.err = res.err
		}
		if len(res.data) > 0 {
			n := copy(p, res.data)
			r.leftover = res.data[n:]
			return n, nil
		}
		if res.err != nil {
			return 0, res.err
		}
		return 0, nil
	case <-timer.C:
		r.err = ErrIdleTimeout
		r.rc.Close()
		return 0, ErrIdleTimeout
	}
}

func (r *idleReader) Close() error {
	return r.rc.Close()
}
