// Package test holds helpers shared by the package tests.
package test

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// WriteAssets creates a temporary asset root holding the given files.
func WriteAssets(t testing.TB, files map[string]string) string {
	t.Helper()

	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	return root
}

// RoundTrip dials addr, sends raw and returns everything the server writes
// before it closes the connection. An empty raw closes the write side
// without sending anything.
func RoundTrip(t testing.TB, addr, raw string) string {
	t.Helper()

	response, err := Exchange(addr, raw)
	if err != nil {
		t.Fatal(err)
	}
	return response
}

// Exchange is RoundTrip for goroutines other than the test's own: it
// reports failures instead of stopping the test. Each part after the first
// is written PartDelay after the previous one.
func Exchange(addr string, parts ...string) (string, error) {
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return "", fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(15 * time.Second)); err != nil {
		return "", err
	}

	if strings.Join(parts, "") == "" {
		if tcpConn, ok := conn.(*net.TCPConn); ok {
			if err := tcpConn.CloseWrite(); err != nil {
				return "", err
			}
		}
	}

	for i, part := range parts {
		if part == "" {
			continue
		}
		if i > 0 {
			time.Sleep(PartDelay)
		}
		if _, err := io.WriteString(conn, part); err != nil {
			// The server answers after its first read; later parts may
			// find the connection already half-closed.
			if i > 0 {
				break
			}
			return "", fmt.Errorf("write request: %w", err)
		}
	}

	response, err := io.ReadAll(conn)
	if err != nil {
		return string(response), fmt.Errorf("read response: %w", err)
	}

	return string(response), nil
}

// PartDelay separates the writes of a request sent in several parts.
const PartDelay = 100 * time.Millisecond

// ReadResponse parses a raw HTTP/1.1 response and returns it with its body.
func ReadResponse(t testing.TB, raw string) (*http.Response, string) {
	t.Helper()

	res, err := http.ReadResponse(bufio.NewReader(strings.NewReader(raw)), nil)
	if err != nil {
		t.Fatalf("parse response %q: %v", raw, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}

	return res, string(body)
}
