package generator

import (
	"net"
	"net/http"
	"sync"
	"time"
)

// transportPool hands out one shared, reused http.Client per connector name
// rather than letting each connector build its own transport. Kept as a
// small pool manager (not a single package-level client) so tests can give
// individual connectors distinct, short-lived pools without interference.
type transportPool struct {
	mu      sync.Mutex
	clients map[string]*http.Client
}

func newTransportPool() *transportPool {
	return &transportPool{clients: make(map[string]*http.Client)}
}

// clientFor returns the shared client for a connector name, creating it on
// first use with production-reasonable pool sizing. The attempt timeout is
// enforced by the per-call context deadline, not the client's own Timeout,
// so it's left at zero here.
func (p *transportPool) clientFor(name string) *http.Client {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients[name]; ok {
		return c
	}

	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	client := &http.Client{Transport: transport}
	p.clients[name] = client
	return client
}

// closeAll releases idle connections across every pooled client, called on
// gateway shutdown.
func (p *transportPool) closeAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.clients {
		if t, ok := c.Transport.(*http.Transport); ok {
			t.CloseIdleConnections()
		}
	}
}
