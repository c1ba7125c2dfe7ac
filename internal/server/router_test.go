package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/celerix-dev/labcheck/internal/engine"
	"github.com/celerix-dev/labcheck/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	records []schema.TrainingRecord

	mu   sync.Mutex
	subs []schema.Submission
}

func (f *fakeService) Records() ([]schema.TrainingRecord, error) { return f.records, nil }

func (f *fakeService) Record(subject string) (schema.TrainingRecord, error) {
	return engine.Find(f.records, subject)
}

func (f *fakeService) Warnings() ([]schema.TrainingRecord, error) {
	return nil, fmt.Errorf("%w: disk gone", engine.ErrStoreUnavailable)
}

func (f *fakeService) Submit(_ context.Context, sub schema.Submission) (schema.Outcome, error) {
	if sub.Subject == "" {
		return schema.Outcome{}, errors.New("invalid submission")
	}
	f.mu.Lock()
	f.subs = append(f.subs, sub)
	f.mu.Unlock()
	return schema.Outcome{Score: 1, Total: 1, Verdict: schema.VerdictPass}, nil
}

func startRouter(t *testing.T, svc *fakeService) (net.Conn, *bufio.Reader) {
	t.Helper()
	router := NewRouter(svc)
	go router.Listen("127.0.0.1:0")
	t.Cleanup(func() { router.Stop() })

	require.Eventually(t, func() bool { return router.Addr() != nil }, 2*time.Second, 20*time.Millisecond)

	conn, err := net.Dial("tcp", router.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn, bufio.NewReader(conn)
}

func roundTrip(t *testing.T, conn net.Conn, reader *bufio.Reader, cmd string) string {
	t.Helper()
	fmt.Fprintf(conn, "%s\n", cmd)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	return strings.TrimSuffix(line, "\n")
}

func TestRouter_TCP_Commands(t *testing.T) {
	svc := &fakeService{records: []schema.TrainingRecord{
		{Subject: "Li Yichang", Department: "Lab", RemainingDays: 200, Status: schema.StatusNormal},
	}}
	conn, reader := startRouter(t, svc)

	assert.Equal(t, "PONG", roundTrip(t, conn, reader, "PING"))

	line := roundTrip(t, conn, reader, "LIST")
	assert.True(t, strings.HasPrefix(line, "OK ["), line)
	assert.Contains(t, line, `"name":"Li Yichang"`)

	line = roundTrip(t, conn, reader, "get Li Yichang")
	assert.True(t, strings.HasPrefix(line, "OK {"), line)
	assert.Contains(t, line, `"valid_days":200`)

	assert.Equal(t, "ERR record not found", roundTrip(t, conn, reader, "GET Nobody"))
	assert.Contains(t, roundTrip(t, conn, reader, "WARNINGS"), "ERR record store unavailable")

	line = roundTrip(t, conn, reader, `SUBMIT {"subject":"Li Yichang","answers":{"call":"6767-6119"}}`)
	assert.True(t, strings.HasPrefix(line, "OK {"), line)
	assert.Contains(t, line, `"verdict":"PASS"`)
	svc.mu.Lock()
	defer svc.mu.Unlock()
	require.Len(t, svc.subs, 1)
	assert.Equal(t, "6767-6119", svc.subs[0].Answers["call"])
}

func TestRouter_MalformedCommands(t *testing.T) {
	conn, reader := startRouter(t, &fakeService{})

	assert.Equal(t, "ERR invalid json value", roundTrip(t, conn, reader, "SUBMIT {invalid}"))
	assert.Equal(t, "ERR usage: GET <subject>", roundTrip(t, conn, reader, "GET"))
	assert.Equal(t, "ERR unknown command SET", roundTrip(t, conn, reader, "SET a b c"))

	// blank lines get no reply
	fmt.Fprintf(conn, "\n")
	assert.Equal(t, "PONG", roundTrip(t, conn, reader, "PING"))
}

func TestRouter_Quit(t *testing.T) {
	conn, reader := startRouter(t, &fakeService{})
	fmt.Fprintf(conn, "QUIT\n")
	_, err := reader.ReadString('\n')
	assert.Error(t, err)
}

func TestRouter_ConcurrentConnections(t *testing.T) {
	router := NewRouter(&fakeService{})
	go router.Listen("127.0.0.1:0")
	defer router.Stop()
	require.Eventually(t, func() bool { return router.Addr() != nil }, 2*time.Second, 20*time.Millisecond)

	conns := make([]net.Conn, 0)
	for i := 0; i < 110; i++ {
		conn, err := net.DialTimeout("tcp", router.Addr().String(), 100*time.Millisecond)
		if err == nil {
			conns = append(conns, conn)
		}
	}
	for _, c := range conns {
		c.Close()
	}

	// the listener is still serving
	conn, err := net.Dial("tcp", router.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))
	fmt.Fprintf(conn, "PING\n")
	line, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "PONG\n", line)
}

func TestRouter_StopEndsListen(t *testing.T) {
	router := NewRouter(&fakeService{})
	done := make(chan error, 1)
	go func() { done <- router.Listen("127.0.0.1:0") }()
	require.Eventually(t, func() bool { return router.Addr() != nil }, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, router.Stop())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Listen did not return after Stop")
	}
}
