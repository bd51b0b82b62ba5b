package server

import (
	"bufio"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lawnchairsociety/combatroller/internal/command"
	"github.com/lawnchairsociety/combatroller/internal/config"
	"github.com/lawnchairsociety/combatroller/internal/testclient"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s := NewServer(nil, nil)
	s.SetSeed(42)
	ts := httptest.NewServer(s.Router())
	t.Cleanup(func() {
		ts.Close()
		s.Shutdown()
	})
	return s, ts
}

func dialWS(t *testing.T, ts *httptest.Server, header http.Header) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env Envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	return env
}

// TestServer_Shutdown_CalledTwice tests that calling Shutdown() twice doesn't panic
func TestServer_Shutdown_CalledTwice(t *testing.T) {
	s := NewServer(nil, nil)

	s.Shutdown()

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("Second Shutdown() call panicked: %v", r)
		}
	}()

	s.Shutdown()
}

// TestServer_Shutdown_Concurrent tests that concurrent Shutdown() calls are safe
func TestServer_Shutdown_Concurrent(t *testing.T) {
	s := NewServer(nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Shutdown()
		}()
	}
	wg.Wait()
}

// startTelnet runs Start on a free port and waits for the listener.
func startTelnet(t *testing.T, s *Server) (string, chan error) {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- s.Start("127.0.0.1:0") }()

	deadline := time.Now().Add(2 * time.Second)
	for s.Addr() == nil {
		if time.Now().After(deadline) {
			t.Fatal("telnet listener did not start")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return s.Addr().String(), done
}

func TestServer_StartStopsOnShutdown(t *testing.T) {
	s := NewServer(nil, nil)
	_, done := startTelnet(t, s)

	s.Shutdown()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start returned %v after Shutdown", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Shutdown")
	}
}

func TestServer_TelnetOverTCP(t *testing.T) {
	s := NewServer(nil, nil)
	addr, _ := startTelnet(t, s)
	defer s.Shutdown()

	client, err := testclient.Dial(addr)
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	if _, ok := client.WaitForMessage("Welcome", 2*time.Second); !ok {
		t.Fatalf("no welcome, got %v", client.GetMessages())
	}

	if _, err := client.Roundtrip("attack -2", "Attack modifier set to -2.", 2*time.Second); err != nil {
		t.Error(err)
	}
	if _, err := client.Roundtrip("dmg 1d6+1d6", "Damage set to 2d6.", 2*time.Second); err != nil {
		t.Error(err)
	}
	msg, err := client.Roundtrip("hit adv", "To hit: ", 2*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(msg, ",") != 1 {
		t.Errorf("advantage reply %q should list two d20s", msg)
	}
	if _, err := client.Roundtrip("frobnicate", "Unknown command: frobnicate.", 2*time.Second); err != nil {
		t.Error(err)
	}
}

func TestServer_TelnetConnectionLimit(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Connections.MaxTotal = 1
	s := NewServer(cfg, nil)
	addr, _ := startTelnet(t, s)
	defer s.Shutdown()

	first, err := testclient.Dial(addr)
	if err != nil {
		t.Fatal(err)
	}
	defer first.Close()
	if _, ok := first.WaitForMessage("Welcome", 2*time.Second); !ok {
		t.Fatal("first client not welcomed")
	}

	second, err := testclient.Dial(addr)
	if err != nil {
		t.Fatal(err)
	}
	defer second.Close()
	if _, ok := second.WaitForMessage("Too many connections", 2*time.Second); !ok {
		t.Errorf("second client got %v, want rejection", second.GetMessages())
	}
}

func TestServer_WebSocketSession(t *testing.T) {
	_, ts := newTestServer(t)
	conn := dialWS(t, ts, nil)

	if env := readEnvelope(t, conn); env.Kind != command.KindInfo || env.Text != welcomeMessage {
		t.Fatalf("welcome = %+v", env)
	}

	conn.WriteMessage(websocket.TextMessage, []byte("attack +5"))
	if env := readEnvelope(t, conn); env.Text != "Attack modifier set to +5." {
		t.Errorf("attack reply = %+v", env)
	}

	conn.WriteMessage(websocket.TextMessage, []byte("attack ++5"))
	if env := readEnvelope(t, conn); env.Kind != command.KindError {
		t.Errorf("bad attack reply = %+v", env)
	}

	conn.WriteMessage(websocket.TextMessage, []byte("hit"))
	env := readEnvelope(t, conn)
	if env.Kind != command.KindAttack {
		t.Fatalf("hit reply = %+v", env)
	}
	if len(env.Icons) != 1 {
		t.Fatalf("icons = %+v, want one d20", env.Icons)
	}
	face := env.Icons[0].Value
	if face < 1 || face > 20 {
		t.Errorf("d20 face %d out of range", face)
	}
	if !strings.HasPrefix(env.Text, "To hit: ") || env.SVG == "" {
		t.Errorf("hit envelope = %+v", env)
	}

	conn.WriteMessage(websocket.TextMessage, []byte("quit"))
	if env := readEnvelope(t, conn); env.Kind != command.KindQuit {
		t.Errorf("quit reply = %+v", env)
	}
}

func TestServer_WebSocketSessionsAreIndependent(t *testing.T) {
	_, ts := newTestServer(t)
	first := dialWS(t, ts, nil)
	second := dialWS(t, ts, nil)
	readEnvelope(t, first)
	readEnvelope(t, second)

	first.WriteMessage(websocket.TextMessage, []byte("damage 2d6+3"))
	readEnvelope(t, first)

	second.WriteMessage(websocket.TextMessage, []byte("show"))
	if env := readEnvelope(t, second); env.Text != "Attack: +0\nDamage: 0" {
		t.Errorf("second session saw %q", env.Text)
	}
}

func TestServer_WebSocketOriginRejected(t *testing.T) {
	_, ts := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err == nil {
		t.Fatal("expected handshake to fail for foreign origin")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("response = %v, want 403", resp)
	}
}

func TestServer_WebSocketConnectionLimit(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Connections.MaxPerIP = 1
	s := NewServer(cfg, nil)
	ts := httptest.NewServer(s.Router())
	defer ts.Close()
	defer s.Shutdown()

	conn := dialWS(t, ts, nil)
	readEnvelope(t, conn)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("second connection from the same IP should be rejected")
	}
	if resp == nil || resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("response = %v, want 429", resp)
	}
}

func TestServer_TelnetSession(t *testing.T) {
	s := NewServer(nil, nil)
	s.SetSeed(7)

	serverConn, clientConn := net.Pipe()
	defer clientConn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer serverConn.Close()
		s.handleClient(NewTelnetClient(serverConn, 0))
	}()

	reader := bufio.NewReader(clientConn)
	readLine := func() string {
		t.Helper()
		clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		if !strings.HasSuffix(line, "\r\n") {
			t.Errorf("line %q not terminated by CRLF", line)
		}
		return strings.TrimSuffix(line, "\r\n")
	}
	writeLine := func(line string) {
		t.Helper()
		clientConn.SetWriteDeadline(time.Now().Add(2 * time.Second))
		if _, err := clientConn.Write([]byte(line + "\r\n")); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}

	if got := readLine(); got != welcomeMessage {
		t.Fatalf("welcome = %q", got)
	}

	writeLine("damage 1d4+2")
	if got := readLine(); got != "Damage set to 1d4+2." {
		t.Errorf("damage reply = %q", got)
	}

	writeLine("show")
	if got := readLine(); got != "Attack: +0" {
		t.Errorf("show line 1 = %q", got)
	}
	if got := readLine(); got != "Damage: 1d4+2" {
		t.Errorf("show line 2 = %q", got)
	}

	writeLine("smite")
	if got := readLine(); !strings.HasPrefix(got, "Damage: ") {
		t.Errorf("smite reply = %q", got)
	}

	writeLine("exit")
	if got := readLine(); got != "Goodbye!" {
		t.Errorf("exit reply = %q", got)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handleClient did not return after exit")
	}
}

func TestServer_IndexPage(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	body := string(data)
	if !strings.Contains(body, "<title>Combat Roller</title>") {
		t.Error("index page missing title")
	}
	if !strings.Contains(body, `"/ws"`) {
		t.Error("index page missing WebSocket endpoint")
	}
}

func postJSON(t *testing.T, ts *httptest.Server, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(ts.URL+path, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode %s response: %v", path, err)
	}
	return resp, decoded
}

func TestAPI_Attack(t *testing.T) {
	_, ts := newTestServer(t)

	resp, body := postJSON(t, ts, "/api/attack", `{"expression":"+3","advantage":true}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d body = %v", resp.StatusCode, body)
	}

	rolls, ok := body["rolls"].([]any)
	if !ok || len(rolls) != 2 {
		t.Fatalf("rolls = %v, want two d20s", body["rolls"])
	}
	best := max(rolls[0].(float64), rolls[1].(float64))
	if got := body["result"].(float64); got != best+3 {
		t.Errorf("result = %v, want %v", got, best+3)
	}
}

func TestAPI_Damage(t *testing.T) {
	_, ts := newTestServer(t)

	resp, body := postJSON(t, ts, "/api/damage", `{"expression":"2d6+3","critical":true}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d body = %v", resp.StatusCode, body)
	}

	rolls := body["rolls"].([]any)
	if len(rolls) != 5 {
		t.Fatalf("rolls = %v, want 4 dice and a bonus", rolls)
	}
	sum := 0.0
	for _, r := range rolls {
		sum += r.(float64)
	}
	if body["damage"].(float64) != sum {
		t.Errorf("damage = %v, want %v", body["damage"], sum)
	}
	if rolls[4].(float64) != 3 {
		t.Errorf("flat bonus = %v, want 3 last", rolls[4])
	}
}

func TestAPI_Errors(t *testing.T) {
	_, ts := newTestServer(t)

	tests := []struct {
		name string
		path string
		body string
		want string
	}{
		{"bad attack", "/api/attack", `{"expression":"abc"}`, "could not parse"},
		{"bad damage", "/api/damage", `{"expression":"2x6"}`, `"2x6"`},
		{"malformed json", "/api/damage", `{"expression":`, "invalid request body"},
		{"unknown field", "/api/attack", `{"modifier":5}`, "invalid request body"},
		{"empty body", "/api/attack", ``, "request body is empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := postJSON(t, ts, tt.path, tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
			msg, _ := body["error"].(string)
			if !strings.Contains(msg, tt.want) {
				t.Errorf("error = %q, want it to contain %q", msg, tt.want)
			}
		})
	}
}

func TestAPI_Throttled(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Throttle.MaxRolls = 1
	cfg.Throttle.WindowSeconds = 60
	s := NewServer(cfg, nil)
	ts := httptest.NewServer(s.Router())
	defer ts.Close()
	defer s.Shutdown()

	if resp, _ := postJSON(t, ts, "/api/damage", `{"expression":"1d6"}`); resp.StatusCode != http.StatusOK {
		t.Fatalf("first roll status = %d", resp.StatusCode)
	}

	resp, body := postJSON(t, ts, "/api/damage", `{"expression":"1d6"}`)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
	if !strings.Contains(body["error"].(string), "too quickly") {
		t.Errorf("error = %v", body["error"])
	}
}

func TestAPI_ThrottleKeysOnProxyHeadersOnlyWhenTrusted(t *testing.T) {
	tests := []struct {
		name       string
		trust      bool
		wantSecond int
	}{
		{"spoofed header ignored", false, http.StatusTooManyRequests},
		{"trusted proxy header", true, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.Throttle.MaxRolls = 1
			cfg.Throttle.WindowSeconds = 60
			cfg.Connections.TrustProxyHeaders = tt.trust
			s := NewServer(cfg, nil)
			ts := httptest.NewServer(s.Router())
			defer ts.Close()
			defer s.Shutdown()

			roll := func(forwardedFor string) int {
				t.Helper()
				req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/damage", strings.NewReader(`{"expression":"1d6"}`))
				req.Header.Set("Content-Type", "application/json")
				req.Header.Set("X-Forwarded-For", forwardedFor)
				resp, err := http.DefaultClient.Do(req)
				if err != nil {
					t.Fatal(err)
				}
				resp.Body.Close()
				return resp.StatusCode
			}

			if got := roll("203.0.113.1"); got != http.StatusOK {
				t.Fatalf("first roll status = %d", got)
			}
			if got := roll("203.0.113.2"); got != tt.wantSecond {
				t.Errorf("second roll status = %d, want %d", got, tt.wantSecond)
			}
		})
	}
}

func TestServer_TelnetLineTooLong(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Connections.MaxLineLength = 32
	s := NewServer(cfg, nil)
	addr, _ := startTelnet(t, s)
	defer s.Shutdown()

	client, err := testclient.Dial(addr)
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()
	if _, ok := client.WaitForMessage("Welcome", 2*time.Second); !ok {
		t.Fatal("client not welcomed")
	}

	if _, err := client.Roundtrip("damage 2d6+3", "Damage set to", 2*time.Second); err != nil {
		t.Fatal(err)
	}

	if err := client.SendCommand("damage " + strings.Repeat("100d6+", 20) + "1"); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for s.ClientCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if n := s.ClientCount(); n != 0 {
		t.Errorf("ClientCount = %d after an over-long line, want 0", n)
	}
}

func TestAPI_CORSPreflight(t *testing.T) {
	_, ts := newTestServer(t)

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/api/attack", nil)
	req.Header.Set("Origin", "http://table.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
}
