package control

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveOnce(t *testing.T, reply any) (string, <-chan Request) {
	t.Helper()
	sock := filepath.Join(t.TempDir(), "s.sock")
	ln, err := net.Listen("unix", sock)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	got := make(chan Request, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		sc := bufio.NewScanner(conn)
		if !sc.Scan() {
			return
		}
		var req Request
		_ = json.Unmarshal(sc.Bytes(), &req)
		got <- req
		_ = json.NewEncoder(conn).Encode(reply)
	}()
	return sock, got
}

func TestCallRoundTrip(t *testing.T) {
	sock, got := serveOnce(t, SimpleResponse{OK: true, Message: "recording requested"})
	var resp SimpleResponse
	require.NoError(t, Call(sock, Request{Op: OpDown}, &resp))
	assert.Equal(t, OpDown, (<-got).Op)
	assert.True(t, resp.OK)
	assert.Equal(t, "recording requested", resp.Message)
}

func TestCallNoSession(t *testing.T) {
	var resp SimpleResponse
	err := Call(filepath.Join(t.TempDir(), "missing.sock"), Request{Op: OpHealth}, &resp)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot connect")
}

func TestSimpleCallSurfacesRefusal(t *testing.T) {
	sock, _ := serveOnce(t, SimpleResponse{OK: false, Message: "no microphone stream"})
	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)
	err := simpleCall(cmd, sock, OpDown)
	require.Error(t, err)
	assert.Equal(t, "down: no microphone stream", err.Error())
}

func TestLastLines(t *testing.T) {
	data := "a\n\nb\nc\n  \nd\n"
	assert.Equal(t, []string{"c", "d"}, lastLines(data, 2))
	assert.Equal(t, []string{"a", "b", "c", "d"}, lastLines(data, 0))
}

func TestPTTCommandHasGestures(t *testing.T) {
	cfgPath := ""
	cmd := NewPTTCmd(&cfgPath)
	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{OpDown, OpUp, OpLeave}, names)
}
