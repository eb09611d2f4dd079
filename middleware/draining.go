package middleware

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/sentineldev/sentinel-gateway/errs"
)

// Drainer tracks in-flight requests and a shutdown flag so the gateway can
// reject new work after a shutdown signal while letting existing requests
// finish up to a drain timeout (§5).
type Drainer struct {
	wg       sync.WaitGroup
	draining atomic.Bool
}

// NewDrainer builds an idle drainer.
func NewDrainer() *Drainer {
	return &Drainer{}
}

// BeginDrain marks the gateway as draining; subsequent requests are
// rejected by Middleware.
func (d *Drainer) BeginDrain() {
	d.draining.Store(true)
}

// Wait blocks until every in-flight request tracked by Middleware
// completes.
func (d *Drainer) Wait() {
	d.wg.Wait()
}

// Middleware rejects incoming requests once draining has begun, and
// otherwise tracks the request as in-flight for the duration of Wait.
func (d *Drainer) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if d.draining.Load() {
			errs.WriteHTTP(w, errs.New(errs.DrainInProgress, "gateway is shutting down"))
			return
		}
		d.wg.Add(1)
		defer d.wg.Done()
		next.ServeHTTP(w, r)
	})
}
