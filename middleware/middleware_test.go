package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCORSMiddlewareSetsHeadersForAllowedOrigin(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	handler := CORSMiddleware([]string{"https://example.com"})(next)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Origin", "https://example.com")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	require.Equal(t, "https://example.com", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSMiddlewareHandlesPreflight(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { t.Fatal("should not reach handler") })
	handler := CORSMiddleware([]string{"*"})(next)

	r := httptest.NewRequest(http.MethodOptions, "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	require.Equal(t, http.StatusNoContent, w.Code)
}

func TestTimeoutMiddlewareCancelsContextAfterDeadline(t *testing.T) {
	var ctxErr error
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
		ctxErr = r.Context().Err()
	})
	handler := TimeoutMiddleware(10 * time.Millisecond)(next)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	require.ErrorIs(t, ctxErr, context.DeadlineExceeded)
}

func TestDrainerRejectsAfterBeginDrain(t *testing.T) {
	d := NewDrainer()
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	handler := d.Middleware(next)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)

	d.BeginDrain()
	w2 := httptest.NewRecorder()
	handler.ServeHTTP(w2, r)
	require.Equal(t, http.StatusServiceUnavailable, w2.Code)
}

func TestDrainerWaitBlocksUntilInFlightRequestsFinish(t *testing.T) {
	d := NewDrainer()
	started := make(chan struct{})
	release := make(chan struct{})
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
	})
	handler := d.Middleware(next)

	go func() {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
	}()

	<-started
	done := make(chan struct{})
	go func() {
		d.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Wait returned before in-flight request finished")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	<-done
}
