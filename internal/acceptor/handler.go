package acceptor

import (
	"io"
	"net"
	"time"

	"github.com/rs/zerolog"
)

// Handler serves one accepted connection. The connection is not closed by
// the Server; wrap the handler with CloseHandler for that.
type Handler interface {
	ServeConn(conn net.Conn)
}

type HandlerFunc func(conn net.Conn)

func (hf HandlerFunc) ServeConn(conn net.Conn) {
	hf(conn)
}

// Discard reads and drops everything the peer sends, then closes the
// connection.
var Discard Handler = HandlerFunc(func(conn net.Conn) {
	defer conn.Close()
	io.Copy(io.Discard, conn)
})

func CloseHandler(handler Handler, logger zerolog.Logger) Handler {
	return HandlerFunc(func(conn net.Conn) {
		defer func() {
			if err := conn.Close(); err != nil {
				logger.Debug().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("failed to close connection")
			}
		}()
		handler.ServeConn(conn)
	})
}

func RecoverHandler(handler Handler, logger zerolog.Logger) Handler {
	return HandlerFunc(func(conn net.Conn) {
		defer func() {
			if cause := recover(); cause != nil {
				logger.Error().Interface("panic", cause).Str("remote", conn.RemoteAddr().String()).Msg("connection handler panicked")
			}
		}()
		handler.ServeConn(conn)
	})
}

func LoggingHandler(handler Handler, logger zerolog.Logger) Handler {
	return HandlerFunc(func(conn net.Conn) {
		remote := conn.RemoteAddr().String()
		start := time.Now()
		logger.Debug().Str("remote", remote).Msg("start serving connection")
		defer func() {
			logger.Debug().Str("remote", remote).Dur("elapsed", time.Since(start)).Msg("end serving connection")
		}()
		handler.ServeConn(conn)
	})
}
