package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimitSkipsCanceledRequests(t *testing.T) {
	t.Parallel()

	l := NewLimiter(1, 1)

	entered := make(chan struct{})
	release := make(chan struct{})
	var served atomic.Int32

	handler := l.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		served.Add(1)
		close(entered)
		<-release
	}))

	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/sessions", nil))
	}()
	<-entered

	// queue a request whose client has already given up; it must never
	// reach the handler, and the 504 must come from Limit itself
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	canceled := httptest.NewRequest(http.MethodPost, "/sessions", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	secondDone := make(chan struct{})
	go func() {
		defer close(secondDone)
		handler.ServeHTTP(rec, canceled)
	}()

	close(release)
	<-firstDone
	<-secondDone

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Equal(t, int32(1), served.Load())
}

func TestLimitQueueFull(t *testing.T) {
	t.Parallel()

	l := NewLimiter(1, 1)

	// occupy the inflight slot and fill the queue: the dispatcher pulls the
	// first job and parks on the slot, the second stays buffered
	l.inflight <- struct{}{}
	noop := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	for i := 0; i < 2; i++ {
		l.queue <- &job{
			w:    httptest.NewRecorder(),
			r:    httptest.NewRequest(http.MethodPost, "/sessions", nil),
			next: noop,
			done: make(chan struct{}),
		}
	}

	rec := httptest.NewRecorder()
	l.Limit(noop).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sessions", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	// release the slot so the parked jobs drain
	<-l.inflight
}
