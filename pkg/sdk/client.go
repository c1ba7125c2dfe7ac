// Package sdk provides the client-side library for the labcheck daemon.
// It supports both remote connections via TCP/TLS and a local embedded mode.
package sdk

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/celerix-dev/labcheck/pkg/schema"
	"github.com/rs/zerolog/log"
)

const maxAttempts = 3

// Client is a remote client for the labcheck daemon.
// It implements the TrainingService interface.
type Client struct {
	addr    string
	tlsConf *tls.Config
	conn    net.Conn
	reader  *bufio.Reader
	mu      sync.Mutex // Protects concurrent access to the connection
}

// Connect establishes a connection to a remote daemon. A nil tlsConf dials plain TCP.
func Connect(addr string, tlsConf *tls.Config) (*Client, error) {
	c := &Client{addr: addr, tlsConf: tlsConf}
	if err := c.reconnect(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) reconnect() error {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	var conn net.Conn
	var err error

	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 60 * time.Second,
	}
	if c.tlsConf == nil {
		conn, err = dialer.Dial("tcp", c.addr)
	} else {
		conn, err = tls.DialWithDialer(dialer, "tcp", c.addr, c.tlsConf)
	}
	if err != nil {
		return err
	}

	c.conn = conn
	c.reader = bufio.NewReader(conn)
	return nil
}

func remoteError(msg string) error {
	if strings.HasPrefix(msg, ErrRecordNotFound.Error()) {
		return ErrRecordNotFound
	}
	return errors.New(msg)
}

// sendAndReceive writes one command line and reads one reply line. Commands that are not
// safe to repeat are sent once.
func (c *Client) sendAndReceive(cmd string, retry bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	var resp string

	attempts := 1
	if retry {
		attempts = maxAttempts
	}
	for i := 0; i < attempts; i++ {
		// Ensure we have a connection
		if c.conn == nil {
			if reconnectErr := c.reconnect(); reconnectErr != nil {
				err = fmt.Errorf("reconnect failed: %w", reconnectErr)
				time.Sleep(time.Duration(i*100) * time.Millisecond)
				continue
			}
		}

		c.conn.SetDeadline(time.Now().Add(30 * time.Second))

		_, err = fmt.Fprint(c.conn, cmd+"\n")
		if err == nil {
			resp, err = c.reader.ReadString('\n')
			if err == nil {
				resp = strings.TrimSpace(resp)
				if strings.HasPrefix(resp, "ERR") {
					return "", remoteError(strings.TrimSpace(strings.TrimPrefix(resp, "ERR")))
				}
				return resp, nil
			}
		}

		log.Warn().Err(err).Int("attempt", i+1).Str("addr", c.addr).Msg("daemon request failed, reconnecting")

		// Force a reconnect on the next iteration
		if closeErr := c.reconnect(); closeErr != nil {
			log.Warn().Err(closeErr).Str("addr", c.addr).Msg("reconnect attempt failed")
		}
		if i+1 < attempts {
			time.Sleep(time.Duration((i+1)*200) * time.Millisecond)
		}
	}

	return "", fmt.Errorf("failed after %d attempts. last error: %w", attempts, err)
}

func decode[T any](resp string) (T, error) {
	var out T
	err := json.Unmarshal([]byte(strings.TrimPrefix(resp, "OK ")), &out)
	return out, err
}

// Ping checks that the daemon answers.
func (c *Client) Ping() error {
	resp, err := c.sendAndReceive("PING", true)
	if err != nil {
		return err
	}
	if resp != "PONG" {
		return fmt.Errorf("unexpected ping reply %q", resp)
	}
	return nil
}

func (c *Client) Records() ([]schema.TrainingRecord, error) {
	resp, err := c.sendAndReceive("LIST", true)
	if err != nil {
		return nil, err
	}
	return decode[[]schema.TrainingRecord](resp)
}

func (c *Client) Record(subject string) (schema.TrainingRecord, error) {
	resp, err := c.sendAndReceive("GET "+subject, true)
	if err != nil {
		return schema.TrainingRecord{}, err
	}
	return decode[schema.TrainingRecord](resp)
}

func (c *Client) Warnings() ([]schema.TrainingRecord, error) {
	resp, err := c.sendAndReceive("WARNINGS", true)
	if err != nil {
		return nil, err
	}
	return decode[[]schema.TrainingRecord](resp)
}

// Submit sends one exam submission. It is never retried, so a lost reply cannot apply
// the same exam twice. The context is honoured before sending only.
func (c *Client) Submit(ctx context.Context, sub schema.Submission) (schema.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return schema.Outcome{}, err
	}
	data, err := json.Marshal(sub)
	if err != nil {
		return schema.Outcome{}, err
	}
	resp, err := c.sendAndReceive("SUBMIT "+string(data), false)
	if err != nil {
		return schema.Outcome{}, err
	}
	return decode[schema.Outcome](resp)
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	fmt.Fprintln(c.conn, "QUIT")
	err := c.conn.Close()
	c.conn = nil
	return err
}
