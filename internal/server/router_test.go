package server

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/celerix-dev/negmarket/internal/market"
	"github.com/celerix-dev/negmarket/internal/notify"
	"github.com/celerix-dev/negmarket/pkg/engine"
	"github.com/celerix-dev/negmarket/pkg/schema"
	"github.com/celerix-dev/negmarket/pkg/sdk"
)

func newTestMarket() *sdk.Embedded {
	catalog := []schema.Listing{
		{ID: "exp_001", Title: "Mpro Inhibitor Screen", Category: schema.CategoryAntiviral, Price: 15000, Downloads: 12, Featured: true, Tags: []string{"protease_inhibitor"}},
		{ID: "exp_002", Title: "Cathode Fade", Category: schema.CategoryBattery, Price: 40000},
	}
	store := engine.NewMemStore(catalog, schema.Account{ID: engine.DefaultAccount, Credits: 25000})
	coord := market.New(store, notify.NewEmitter(0), market.WithUploadDelay(0))
	return sdk.NewEmbedded(coord)
}

func startRouter(t *testing.T) (*Router, string) {
	t.Helper()
	m := newTestMarket()
	router := NewRouter(m)

	go router.Listen("0")

	// Wait a bit for listener to be set
	var port string
	for i := 0; i < 10; i++ {
		time.Sleep(50 * time.Millisecond)
		router.mu.Lock()
		if router.listener != nil {
			port = fmt.Sprintf("%d", router.listener.Addr().(*net.TCPAddr).Port)
			router.mu.Unlock()
			break
		}
		router.mu.Unlock()
	}
	if port == "" {
		t.Fatalf("Server did not start in time")
	}

	t.Cleanup(func() {
		router.Stop()
		m.Close()
	})
	return router, port
}

func dial(t *testing.T, port string) (net.Conn, *bufio.Reader) {
	t.Helper()
	conn, err := net.Dial("tcp", "127.0.0.1:"+port)
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn, bufio.NewReader(conn)
}

func send(t *testing.T, conn net.Conn, r *bufio.Reader, cmd string) string {
	t.Helper()
	fmt.Fprintf(conn, "%s\n", cmd)
	line, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("Read error after %q: %v", cmd, err)
	}
	return strings.TrimSuffix(line, "\n")
}

func TestRouter_TCP_Commands(t *testing.T) {
	_, port := startRouter(t)
	conn, reader := dial(t, port)

	if line := send(t, conn, reader, "PING"); line != "PONG" {
		t.Errorf("Expected PONG, got %q", line)
	}

	line := send(t, conn, reader, `SEARCH {"q":"PROTEASE"}`)
	if !strings.HasPrefix(line, `OK [{"id":"exp_001"`) {
		t.Errorf("Expected exp_001 hit, got %q", line)
	}

	if line := send(t, conn, reader, "SEARCH"); !strings.Contains(line, "exp_002") || !strings.Contains(line, "exp_001") {
		t.Errorf("Expected full catalog under default ceiling, got %q", line)
	}

	if line := send(t, conn, reader, "FEATURED"); !strings.Contains(line, "exp_001") || strings.Contains(line, "exp_002") {
		t.Errorf("Expected only featured listing, got %q", line)
	}

	if line := send(t, conn, reader, "GET exp_002"); !strings.HasPrefix(line, `OK {"id":"exp_002"`) {
		t.Errorf("Expected exp_002, got %q", line)
	}

	if line := send(t, conn, reader, "GET exp_404"); !strings.HasPrefix(line, "ERR listing_not_found") {
		t.Errorf("Expected listing_not_found, got %q", line)
	}

	if line := send(t, conn, reader, "NOTIFY"); line != "OK null" {
		t.Errorf("Expected idle notification, got %q", line)
	}
}

func TestRouter_Purchase(t *testing.T) {
	_, port := startRouter(t)
	conn, reader := dial(t, port)

	line := send(t, conn, reader, "BUY "+engine.DefaultAccount+" exp_001")
	if !strings.HasPrefix(line, "OK ") || !strings.Contains(line, `"credits":10000`) {
		t.Errorf("Expected debit to 10000, got %q", line)
	}

	line = send(t, conn, reader, "NOTIFY")
	if !strings.Contains(line, schema.KeyPurchaseSuccess) || !strings.Contains(line, "Mpro Inhibitor Screen") {
		t.Errorf("Expected purchase notification, got %q", line)
	}

	line = send(t, conn, reader, "BUY "+engine.DefaultAccount+" exp_002")
	want := `ERR insufficient_credits {"listing_id":"exp_002","balance":10000,"price":40000}`
	if line != want {
		t.Errorf("Expected %q, got %q", want, line)
	}

	line = send(t, conn, reader, "SUMMARY "+engine.DefaultAccount)
	if !strings.Contains(line, `"balance":10000`) || !strings.Contains(line, `"purchases":1`) {
		t.Errorf("Unexpected summary %q", line)
	}

	if line := send(t, conn, reader, "BUY nobody exp_001"); !strings.HasPrefix(line, "ERR account_not_found") {
		t.Errorf("Expected account_not_found, got %q", line)
	}
}

func TestRouter_Upload(t *testing.T) {
	_, port := startRouter(t)
	conn, reader := dial(t, port)

	line := send(t, conn, reader, "UPLOAD "+engine.DefaultAccount+` {"title":"Dead-end ligand","anonymize":true}`)
	if !strings.HasPrefix(line, "OK ") || !strings.Contains(line, `"id":"pending_`) || !strings.Contains(line, `"next_view":"dashboard"`) {
		t.Errorf("Unexpected upload reply %q", line)
	}

	line = send(t, conn, reader, "ACCOUNT "+engine.DefaultAccount)
	if !strings.Contains(line, "Dead-end ligand") {
		t.Errorf("Upload missing from account: %q", line)
	}
}

func TestRouter_ConcurrentConnections(t *testing.T) {
	_, port := startRouter(t)

	// Try to open more connections than the semaphore admits
	conns := make([]net.Conn, 0)
	for i := 0; i < 110; i++ {
		conn, err := net.DialTimeout("tcp", "127.0.0.1:"+port, 100*time.Millisecond)
		if err == nil {
			conns = append(conns, conn)
		}
	}

	for _, c := range conns {
		c.Close()
	}
}

func TestRouter_MalformedCommands(t *testing.T) {
	_, port := startRouter(t)
	conn, reader := dial(t, port)

	cases := []string{
		"BUY " + engine.DefaultAccount,
		"UPLOAD " + engine.DefaultAccount + " {invalid}",
		"SEARCH {invalid}",
		"FROBNICATE",
	}
	for _, cmd := range cases {
		if line := send(t, conn, reader, cmd); !strings.HasPrefix(line, "ERR bad_request") {
			t.Errorf("%q: expected bad_request, got %q", cmd, line)
		}
	}

	// The connection survives malformed input
	if line := send(t, conn, reader, "PING"); line != "PONG" {
		t.Errorf("Expected PONG, got %q", line)
	}
}

func TestRouter_QuitAndStop(t *testing.T) {
	router, port := startRouter(t)
	conn, reader := dial(t, port)

	fmt.Fprintf(conn, "QUIT\n")
	if _, err := reader.ReadString('\n'); err == nil {
		t.Error("Expected connection to close after QUIT")
	}

	idle, _ := dial(t, port)
	router.Stop()

	idle.SetReadDeadline(time.Now().Add(time.Second))
	if _, err := bufio.NewReader(idle).ReadString('\n'); err == nil {
		t.Error("Expected Stop to close idle connections")
	}
	if _, err := net.DialTimeout("tcp", "127.0.0.1:"+port, 100*time.Millisecond); err == nil {
		t.Error("Expected listener to be closed")
	}
}
