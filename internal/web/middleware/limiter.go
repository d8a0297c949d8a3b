package middleware

import (
	"net/http"
)

type job struct {
	w    http.ResponseWriter
	r    *http.Request
	next http.Handler
	done chan struct{}

	// set by the dispatcher before ServeHTTP; the close of done orders it
	// for the waiting Limit call
	served bool
}

// Limiter bounds how many launch requests are queued and in flight at once.
// With maxInflight of one it degrades gracefully into a single-writer queue.
type Limiter struct {
	queue    chan *job
	inflight chan struct{}
}

func NewLimiter(queueSize, maxInflight int) *Limiter {
	l := &Limiter{
		queue:    make(chan *job, queueSize),
		inflight: make(chan struct{}, maxInflight),
	}

	go l.dispatch()

	return l
}

func (l *Limiter) dispatch() {
	for j := range l.queue {
		// acquire inflight slot (blocks if full)
		l.inflight <- struct{}{}

		go func(j *job) {
			defer func() {
				<-l.inflight // release slot
				close(j.done)
			}()

			// the client may have given up while the job sat in the queue
			if j.r.Context().Err() != nil {
				return
			}

			j.served = true
			j.next.ServeHTTP(j.w, j.r)
		}(j)
	}
}

func (l *Limiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		j := &job{
			w:    w,
			r:    r,
			next: next,
			done: make(chan struct{}),
		}

		select {
		case l.queue <- j:
			// only the dispatcher goroutine touches the ResponseWriter
			// until done closes, so there is never a concurrent write
			<-j.done
			if !j.served {
				http.Error(w, "request canceled or timed out", http.StatusGatewayTimeout)
			}
		default:
			// queue full
			http.Error(w, "server busy", http.StatusServiceUnavailable)
			return
		}
	})
}
