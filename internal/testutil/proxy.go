package testutil

import (
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"
)

// StallingProxy forwards TCP traffic to a target. While stalled it swallows
// everything the client sends, so the server never answers and calls run
// into their deadlines on a live connection.
type StallingProxy struct {
	ln      net.Listener
	target  string
	stalled atomic.Bool

	mu    sync.Mutex
	conns []net.Conn
}

// NewStallingProxy starts a proxy in front of target that is shut down when
// the test ends.
func NewStallingProxy(t *testing.T, target string) *StallingProxy {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("proxy listen: %v", err)
	}

	p := &StallingProxy{ln: ln, target: target}
	go p.serve()
	t.Cleanup(p.close)
	return p
}

// URL returns a redis:// URL pointing at the proxy.
func (p *StallingProxy) URL() string {
	return "redis://" + p.ln.Addr().String()
}

// Stall starts dropping client bytes.
func (p *StallingProxy) Stall() { p.stalled.Store(true) }

// Resume forwards traffic again.
func (p *StallingProxy) Resume() { p.stalled.Store(false) }

func (p *StallingProxy) serve() {
	for {
		client, err := p.ln.Accept()
		if err != nil {
			return
		}
		go p.handle(client)
	}
}

func (p *StallingProxy) handle(client net.Conn) {
	server, err := net.Dial("tcp", p.target)
	if err != nil {
		client.Close()
		return
	}
	p.track(client, server)
	defer client.Close()
	defer server.Close()

	go func() {
		_, _ = io.Copy(client, server)
		client.Close()
	}()

	buf := make([]byte, 32*1024)
	for {
		n, err := client.Read(buf)
		if n > 0 && !p.stalled.Load() {
			if _, werr := server.Write(buf[:n]); werr != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}

func (p *StallingProxy) track(conns ...net.Conn) {
	p.mu.Lock()
	p.conns = append(p.conns, conns...)
	p.mu.Unlock()
}

func (p *StallingProxy) close() {
	p.ln.Close()

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.conns {
		c.Close()
	}
}
