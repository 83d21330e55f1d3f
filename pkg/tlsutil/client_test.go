package tlsutil

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func leafFingerprint(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	sum := sha256.Sum256(srv.Certificate().Raw)
	return hex.EncodeToString(sum[:])
}

func TestCreateHTTPClientFingerprintPinning(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	fp := leafFingerprint(t, srv)

	// Colon-separated upper-case form must be accepted.
	var pairs []string
	for i := 0; i < len(fp); i += 2 {
		pairs = append(pairs, strings.ToUpper(fp[i:i+2]))
	}
	client := CreateHTTPClient(ClientOptions{Fingerprint: strings.Join(pairs, ":"), Timeout: 5 * time.Second})

	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("pinned request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	bad := CreateHTTPClient(ClientOptions{Fingerprint: strings.Repeat("00", 32)})
	if _, err := bad.Get(srv.URL); err == nil || !strings.Contains(err.Error(), "fingerprint mismatch") {
		t.Fatalf("expected fingerprint mismatch, got %v", err)
	}
}

func TestCreateHTTPClientVerification(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	if _, err := CreateHTTPClient(ClientOptions{}).Get(srv.URL); err == nil {
		t.Fatal("expected self-signed certificate to be rejected")
	}

	resp, err := CreateHTTPClient(ClientOptions{InsecureSkipVerify: true}).Get(srv.URL)
	if err != nil {
		t.Fatalf("insecure request failed: %v", err)
	}
	resp.Body.Close()
}

func TestCreateHTTPClientDefaultTimeout(t *testing.T) {
	if got := CreateHTTPClient(ClientOptions{}).Timeout; got != defaultTimeout {
		t.Fatalf("Timeout = %s, want %s", got, defaultTimeout)
	}
}

func TestDialContextWithCacheIPLiteral(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			conn.Close()
		}
	}()

	conn, err := DialContextWithCache(context.Background(), "tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	conn.Close()
}

func TestDialContextWithCacheBadAddress(t *testing.T) {
	if _, err := DialContextWithCache(context.Background(), "tcp", "no-port"); err == nil {
		t.Fatal("expected error for address without port")
	}
}

func TestSetDNSRefreshInterval(t *testing.T) {
	t.Cleanup(func() { SetDNSRefreshInterval(0) })

	SetDNSRefreshInterval(time.Minute)
	if refreshInterval != time.Minute {
		t.Fatalf("refreshInterval = %s", refreshInterval)
	}
	SetDNSRefreshInterval(-1)
	if refreshInterval != defaultRefreshInterval {
		t.Fatalf("refreshInterval = %s, want default", refreshInterval)
	}

	ctx, cancel := context.WithCancel(context.Background())
	StartDNSRefresher(ctx)
	cancel()
}
