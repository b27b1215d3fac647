package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rbright/voxhook/internal/journal"
)

func serveSocket(t *testing.T, handler Handler) string {
	t.Helper()

	socketPath := filepath.Join(t.TempDir(), SocketName)
	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, listener, handler) }()

	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
	return socketPath
}

func TestSendRoundTrip(t *testing.T) {
	var got Request
	socketPath := serveSocket(t, HandlerFunc(func(_ context.Context, req Request) Response {
		got = req
		return Response{
			OK:      true,
			State:   "idle",
			Message: "invoked INSERT_TEXT",
			Outcome: &journal.Record{UtteranceID: "u1", Kind: "invoked", HookID: "INSERT_TEXT", Args: map[string]any{"inserted_text": "hello world"}},
		}
	}))

	resp, err := Send(context.Background(), socketPath, Request{Command: CommandSay, Text: "write hello world please"}, time.Second)
	require.NoError(t, err)
	require.Equal(t, Request{Command: CommandSay, Text: "write hello world please"}, got)
	require.True(t, resp.OK)
	require.NoError(t, resp.Err())
	require.Equal(t, "INSERT_TEXT", resp.Outcome.HookID)
	require.Equal(t, map[string]any{"inserted_text": "hello world"}, resp.Outcome.Args)
}

func TestSendHistoryRoundTrip(t *testing.T) {
	socketPath := serveSocket(t, HandlerFunc(func(_ context.Context, req Request) Response {
		history := make([]journal.Record, req.Limit)
		for i := range history {
			history[i] = journal.Record{Seq: uint64(req.Limit - i)}
		}
		return Response{OK: true, History: history}
	}))

	resp, err := Send(context.Background(), socketPath, Request{Command: CommandHistory, Limit: 2}, time.Second)
	require.NoError(t, err)
	require.Len(t, resp.History, 2)
	require.Equal(t, uint64(2), resp.History[0].Seq)
}

func TestResponseErr(t *testing.T) {
	require.NoError(t, Response{OK: true}.Err())
	require.EqualError(t, Response{Error: "busy"}.Err(), "busy")
	require.EqualError(t, Response{}.Err(), "request failed")
}

func TestSendDecodeResponseError(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), SocketName)
	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		conn, acceptErr := listener.Accept()
		if acceptErr != nil {
			return
		}
		defer conn.Close()
		_, _ = bufio.NewReader(conn).ReadBytes('\n')
		_, _ = conn.Write([]byte("not-json\n"))
	}()

	_, err = Send(context.Background(), socketPath, Request{Command: CommandStatus}, 200*time.Millisecond)
	require.ErrorContains(t, err, "decode response")
}

func TestSendReadResponseError(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), SocketName)
	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		conn, acceptErr := listener.Accept()
		if acceptErr != nil {
			return
		}
		_ = conn.Close()
	}()

	_, err = Send(context.Background(), socketPath, Request{Command: CommandStatus}, 200*time.Millisecond)
	require.ErrorContains(t, err, "read response")
}

func TestServeDecodeRequestErrorResponse(t *testing.T) {
	socketPath := serveSocket(t, HandlerFunc(func(context.Context, Request) Response {
		return Response{OK: true}
	}))

	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("not-json\n"))
	require.NoError(t, err)

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal(line, &resp))
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "decode request")
}

func TestProbe(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), SocketName)
	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, listener, HandlerFunc(func(_ context.Context, req Request) Response {
			return Response{OK: req.Command == CommandStatus, State: "idle"}
		}))
	}()

	alive, err := Probe(context.Background(), socketPath, 200*time.Millisecond)
	require.NoError(t, err)
	require.True(t, alive)

	cancel()
	require.NoError(t, <-done)

	alive, err = Probe(context.Background(), socketPath, 100*time.Millisecond)
	require.NoError(t, err)
	require.False(t, alive)

	alive, err = Probe(context.Background(), filepath.Join(t.TempDir(), "absent.sock"), 100*time.Millisecond)
	require.NoError(t, err)
	require.False(t, alive)
}
