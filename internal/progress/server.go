package progress

import (
	"bufio"
	"context"
	"errors"
	"net"

	"github.com/rs/zerolog"

	"novelhub/internal/logging"
)

// Server streams hub events to TCP clients, one JSON object per line.
type Server struct {
	Addr string
	Hub  *Hub
	Log  zerolog.Logger
}

func NewServer(addr string, hub *Hub, log zerolog.Logger) *Server {
	return &Server{Addr: addr, Hub: hub, Log: logging.Component(log, "tcp-progress")}
}

// Run listens on Addr and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts clients on ln until ctx is cancelled, then closes ln.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.Log.Info().Str("addr", ln.Addr().String()).Msg("listening")

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.Log.Warn().Err(err).Msg("accept failed")
			continue
		}
		go s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	remote := conn.RemoteAddr().String()
	c := &tcpClient{conn: conn}
	if err := s.Hub.join(c); err != nil {
		s.Log.Debug().Err(err).Str("remote", remote).Msg("greeting failed")
		_ = conn.Close()
		return
	}
	s.Log.Debug().Str("remote", remote).Msg("client connected")
	defer func() {
		s.Hub.leave(c)
		s.Log.Debug().Str("remote", remote).Msg("client disconnected")
	}()

	// the stream is one way; reading only detects the client going away
	sc := bufio.NewScanner(conn)
	for sc.Scan() {
	}
}
