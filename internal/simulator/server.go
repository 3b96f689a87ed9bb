package simulator

import (
	"errors"
	"net"
	"sync"
)

// Server accepts console connections and serves each with a new Simulator.
type Server struct {
	ln   net.Listener
	opts []Option

	mu       sync.Mutex
	sessions []*Simulator
	wg       sync.WaitGroup
}

// Listen starts a Server on addr, e.g. "127.0.0.1:0".
func Listen(addr string, opts ...Option) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	srv := &Server{ln: ln, opts: opts}

	srv.wg.Add(1)
	go srv.acceptLoop()

	return srv, nil
}

// Addr returns the listening address.
func (srv *Server) Addr() string {
	return srv.ln.Addr().String()
}

// Sessions returns every session accepted so far, oldest first.
func (srv *Server) Sessions() []*Simulator {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	out := make([]*Simulator, len(srv.sessions))
	copy(out, srv.sessions)

	return out
}

// Last returns the most recent session, or nil.
func (srv *Server) Last() *Simulator {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	if len(srv.sessions) == 0 {
		return nil
	}

	return srv.sessions[len(srv.sessions)-1]
}

// Close stops accepting and waits for the accept loop to exit. Sessions
// end when their peers disconnect.
func (srv *Server) Close() error {
	err := srv.ln.Close()
	srv.wg.Wait()

	return err
}

func (srv *Server) acceptLoop() {
	defer srv.wg.Done()

	for {
		conn, err := srv.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}

		sim := New(conn, srv.opts...)

		srv.mu.Lock()
		srv.sessions = append(srv.sessions, sim)
		srv.mu.Unlock()

		go func() {
			if err := sim.Serve(); err != nil {
				sim.logger.Debug("simulator: session ended", "error", err)
			}
		}()
	}
}
