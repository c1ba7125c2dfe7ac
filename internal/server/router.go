// Package server serves the training records over a line-oriented TCP protocol.
package server

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/celerix-dev/labcheck/pkg/schema"
	"github.com/celerix-dev/labcheck/pkg/sdk"
	"github.com/rs/zerolog/log"
)

const (
	maxConnections = 100
	connLifetime   = 5 * time.Minute
	commandTimeout = 30 * time.Second
)

type Router struct {
	svc  sdk.TrainingService
	cert *tls.Certificate

	mu       sync.Mutex
	listener net.Listener
}

func NewRouter(svc sdk.TrainingService) *Router {
	return &Router{svc: svc}
}

// SetCertificate sets the TLS certificate for the router
func (r *Router) SetCertificate(cert tls.Certificate) {
	r.cert = &cert
}

// Addr returns the bound address once Listen has started, nil before.
func (r *Router) Addr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listener == nil {
		return nil
	}
	return r.listener.Addr()
}

// Listen starts the TCP server on addr and serves until Stop is called.
func (r *Router) Listen(addr string) error {
	var listener net.Listener
	var err error

	if r.cert != nil {
		config := &tls.Config{Certificates: []tls.Certificate{*r.cert}, MinVersion: tls.VersionTLS12}
		listener, err = tls.Listen("tcp", addr, config)
	} else {
		listener, err = net.Listen("tcp", addr)
	}
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.listener = listener
	r.mu.Unlock()
	defer listener.Close()

	log.Info().Str("address", listener.Addr().String()).Bool("tls", r.cert != nil).Msg("TCP server listening")

	semaphore := make(chan struct{}, maxConnections)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Warn().Err(err).Msg("failed to accept connection")
			continue
		}

		// Bound the connection lifetime so idle clients cannot hold a slot forever
		conn.SetDeadline(time.Now().Add(connLifetime))

		go func(c net.Conn) {
			semaphore <- struct{}{}
			defer func() {
				<-semaphore
				c.Close()
			}()
			r.handleConnection(c)
		}(conn)
	}
}

// Stop closes the listener. Open connections finish their current command.
func (r *Router) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listener == nil {
		return nil
	}
	return r.listener.Close()
}

func reply(w io.Writer, val any) {
	res, err := json.Marshal(val)
	if err != nil {
		fmt.Fprintln(w, "ERR internal error")
		return
	}
	fmt.Fprintln(w, "OK", string(res))
}

func replyErr(w io.Writer, err error) {
	// one line per reply
	fmt.Fprintln(w, "ERR", strings.ReplaceAll(err.Error(), "\n", "; "))
}

func (r *Router) handleConnection(conn net.Conn) {
	reader := bufio.NewReader(conn)

	for {
		// Set a deadline for the next command
		conn.SetReadDeadline(time.Now().Add(commandTimeout))

		line, err := reader.ReadString('\n')
		if err != nil {
			return // Connection closed or timeout
		}

		line = strings.TrimSpace(line)
		parts := strings.Fields(line)
		if len(parts) < 1 {
			continue
		}

		command := strings.ToUpper(parts[0])
		// Subjects may contain spaces, so arguments are the rest of the line
		arg := strings.TrimSpace(line[len(parts[0]):])

		switch command {
		case "PING":
			fmt.Fprintln(conn, "PONG")

		case "LIST":
			records, err := r.svc.Records()
			if err != nil {
				replyErr(conn, err)
				continue
			}
			reply(conn, records)

		case "GET":
			if arg == "" {
				fmt.Fprintln(conn, "ERR usage: GET <subject>")
				continue
			}
			rec, err := r.svc.Record(arg)
			if err != nil {
				replyErr(conn, err)
				continue
			}
			reply(conn, rec)

		case "WARNINGS":
			records, err := r.svc.Warnings()
			if err != nil {
				replyErr(conn, err)
				continue
			}
			reply(conn, records)

		case "SUBMIT":
			var sub schema.Submission
			if err := json.Unmarshal([]byte(arg), &sub); err != nil {
				fmt.Fprintln(conn, "ERR invalid json value")
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
			out, err := r.svc.Submit(ctx, sub)
			cancel()
			if err != nil {
				replyErr(conn, err)
				continue
			}
			reply(conn, out)

		case "QUIT":
			return

		default:
			fmt.Fprintln(conn, "ERR unknown command", command)
		}
	}
}
