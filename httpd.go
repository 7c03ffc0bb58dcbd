/*
	httpd is a small HTTP/1.x static file server.

	It serves GET and HEAD requests for files below a document root, and
	answers 400/403/404/405/500 for everything it will not serve.

	HTTP/1.1 protocol specification: https://www.rfc-editor.org/rfc/rfc7230
*/

package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var logger = zerolog.Nop()

func main() {
	config, err := loadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	level := zerolog.InfoLevel
	if config.verbose {
		level = zerolog.DebugLevel
	}
	logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().Timestamp().Logger()

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", config.port))
	if err != nil {
		logger.Fatal().Err(err).Int("port", config.port).Msg("failed to bind")
	}

	logger.Info().
		Int("port", config.port).
		Str("root", config.documentRoot).
		Msgf("server is up! go to http://localhost:%d", config.port)

	serve(ln, config)
}

// serve accepts connections until the listener is closed. Every accepted
// connection gets its own goroutine so a slow client never blocks the
// accept loop or the other clients.
func serve(ln net.Listener, config Config) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			logger.Warn().Err(err).Msg("accept failed")
			continue
		}
		go handleConnection(conn, config)
	}
}

func handleConnection(conn net.Conn, config Config) {
	// Close the connection when the function finishes
	defer conn.Close()

	// A fault in one handler must not take down the process; convert it to
	// a 500 on this connection and keep serving the others.
	defer func() {
		if r := recover(); r != nil {
			logger.Error().
				Interface("panic", r).
				Str("remote", conn.RemoteAddr().String()).
				Msg("connection handler panicked")
			serveErrorDocument(conn, config, 500)
		}
	}()

	reader := bufio.NewReader(conn)

	// Loop requests over the connection for keep-alive
	for requestCounter := 0; requestCounter < config.maxRequestsPerConnection; requestCounter++ {
		conn.SetReadDeadline(time.Now().Add(time.Duration(config.timeout) * time.Second))

		request, err := parseRequest(reader)
		if err != nil {
			if errors.Is(err, io.EOF) || os.IsTimeout(err) {
				// Idle timeouts and clients hanging up are routine.
				return
			}
			status := classifyStatus(err)
			if status == 500 {
				// Socket-level read failure, nobody left to answer.
				logger.Debug().Err(err).Msg("read failed")
				return
			}
			logger.Debug().Err(err).Msg("rejecting request")
			serveErrorDocument(conn, config, status)
			return
		}

		keepAlive := wantsKeepAlive(request) && requestCounter+1 < config.maxRequestsPerConnection

		status, err := handleRequest(conn, config, request, keepAlive)

		// Access log
		logger.Info().
			Int("status", status).
			Str("method", request.Method).
			Str("path", request.Target).
			Str("remote", conn.RemoteAddr().String()).
			Str("user_agent", request.Headers.Get("User-Agent")).
			Msg("request")

		if err != nil {
			logger.Debug().Err(err).Msg("write failed")
			return
		}
		// Error responses always carry Connection: close.
		if status >= 400 || !keepAlive {
			return
		}
	}
}

func handleRequest(conn net.Conn, config Config, request Request, keepAlive bool) (int, error) {
	if !methodAllowed(request.Method) {
		return 405, serveErrorDocument(conn, config, 405)
	}

	resource, err := resolveTarget(request.Target, config, defaultContentType)
	if err != nil {
		status := classifyStatus(err)
		if status == 500 {
			logger.Error().Err(err).Str("path", request.Target).Msg("resolving target failed")
		}
		return status, serveErrorDocument(conn, config, status)
	}

	return serveResource(conn, config, request, resource, keepAlive)
}

// wantsKeepAlive negotiates connection reuse: HTTP/1.1 defaults to
// keep-alive unless the client asks to close, HTTP/1.0 defaults to close
// unless the client asks to keep the connection open.
func wantsKeepAlive(request Request) bool {
	connection := strings.ToLower(strings.TrimSpace(request.Headers.Get("Connection")))
	if request.Proto == "HTTP/1.0" {
		return connection == "keep-alive"
	}
	return connection != "close"
}
