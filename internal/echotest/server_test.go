package echotest

import (
	"io"
	"net"
	"testing"
	"time"
)

// dialServer starts a server with the given behavior and opens a raw
// connection to it.
func dialServer(t *testing.T, conf Config) net.Conn {
	t.Helper()
	server := New(conf)
	addr, err := server.Start("127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to start server: %v", err)
	}
	t.Cleanup(server.Close)

	conn, err := net.Dial("tcp", addr.String())
	if err != nil {
		t.Fatalf("failed to dial server: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetDeadline(time.Now().Add(5 * time.Second))
	return conn
}

// --- Test Cases ---

func TestServer_EchoMode_ReturnsVerbatim(t *testing.T) {
	conn := dialServer(t, Config{Mode: ModeEcho})

	if _, err := conn.Write([]byte("hello")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	buf := make([]byte, 5)
	if _, err := io.ReadFull(conn, buf); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(buf) != "hello" {
		t.Errorf("expected %q echoed back, got %q", "hello", string(buf))
	}
}

func TestServer_TruncateMode_RepliesBudgetThenCloses(t *testing.T) {
	conn := dialServer(t, Config{Mode: ModeTruncate, TruncateBytes: 3})

	if _, err := conn.Write([]byte("hello")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	reply, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(reply) != "hel" {
		t.Errorf("expected truncated reply %q, got %q", "hel", string(reply))
	}
}

func TestServer_DoubleMode_RepliesTwice(t *testing.T) {
	conn := dialServer(t, Config{Mode: ModeDouble})

	if _, err := conn.Write([]byte("ab")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	buf := make([]byte, 4)
	if _, err := io.ReadFull(conn, buf); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(buf) != "abab" {
		t.Errorf("expected doubled reply %q, got %q", "abab", string(buf))
	}
}

func TestServer_PartialMode_RepliesBudgetThenStaysOpen(t *testing.T) {
	conn := dialServer(t, Config{Mode: ModePartial, TruncateBytes: 2})

	if _, err := conn.Write([]byte("hello")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	buf := make([]byte, 2)
	if _, err := io.ReadFull(conn, buf); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(buf) != "he" {
		t.Errorf("expected partial reply %q, got %q", "he", string(buf))
	}

	// No close and no further bytes follow the partial reply.
	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, err := conn.Read(make([]byte, 1))
	netErr, ok := err.(net.Error)
	if !ok || !netErr.Timeout() {
		t.Fatalf("expected the connection to stay open and silent, got: %v", err)
	}
}

func TestServer_SilentMode_NeverReplies(t *testing.T) {
	conn := dialServer(t, Config{Mode: ModeSilent})

	if _, err := conn.Write([]byte("hello")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	buf := make([]byte, 1)
	_, err := conn.Read(buf)
	netErr, ok := err.(net.Error)
	if !ok || !netErr.Timeout() {
		t.Fatalf("expected a read timeout against a silent server, got: %v", err)
	}
}

func TestServer_PortZero_PicksFreePort(t *testing.T) {
	server := New(Config{})
	addr, err := server.InitializeListener("127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	defer server.Close()

	tcpAddr, ok := addr.(*net.TCPAddr)
	if !ok {
		t.Fatalf("expected a *net.TCPAddr, got %T", addr)
	}
	if tcpAddr.Port == 0 {
		t.Error("expected a concrete port, got 0")
	}
	if server.Addr().String() != addr.String() {
		t.Errorf("Addr() = %v, want %v", server.Addr(), addr)
	}
}

func TestServer_DefaultMode_IsEcho(t *testing.T) {
	server := New(Config{})
	if server.conf.Mode != ModeEcho {
		t.Errorf("expected empty mode to default to %q, got %q", ModeEcho, server.conf.Mode)
	}
}

func TestServer_CloseRightAfterStart_StopsAccepting(t *testing.T) {
	// Close must wait for the accept loop even when it races a fresh Start.
	server := New(Config{Mode: ModeEcho})
	addr, err := server.Start("127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to start server: %v", err)
	}
	server.Close()

	if conn, err := net.Dial("tcp", addr.String()); err == nil {
		conn.Close()
		t.Error("expected dialing a closed server to fail")
	}
}

func TestServer_Close_IsIdempotent(t *testing.T) {
	server := New(Config{})
	if _, err := server.Start("127.0.0.1:0"); err != nil {
		t.Fatalf("failed to start server: %v", err)
	}
	server.Close()
	server.Close()
}

func TestServer_SequentialConnections_AreAllServed(t *testing.T) {
	server := New(Config{Mode: ModeEcho})
	addr, err := server.Start("127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to start server: %v", err)
	}
	defer server.Close()

	for i := 0; i < 3; i++ {
		conn, err := net.Dial("tcp", addr.String())
		if err != nil {
			t.Fatalf("dial %d failed: %v", i, err)
		}
		conn.SetDeadline(time.Now().Add(5 * time.Second))
		if _, err := conn.Write([]byte("ping")); err != nil {
			t.Fatalf("write %d failed: %v", i, err)
		}
		buf := make([]byte, 4)
		if _, err := io.ReadFull(conn, buf); err != nil {
			t.Fatalf("read %d failed: %v", i, err)
		}
		if string(buf) != "ping" {
			t.Errorf("connection %d: expected %q, got %q", i, "ping", string(buf))
		}
		conn.Close()
	}
}
