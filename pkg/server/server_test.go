package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/adforge/adforge/pkg/adchat"
	"github.com/adforge/adforge/pkg/catalog"
	"github.com/adforge/adforge/pkg/genx"
	"github.com/adforge/adforge/pkg/kv"
	"github.com/adforge/adforge/pkg/session"
)

type stubGenerator struct{}

func (stubGenerator) GenerateText(ctx context.Context, req *genx.Request) (string, error) {
	return "Tell me about your product.", nil
}

func (stubGenerator) GenerateStructured(ctx context.Context, req *genx.Request, out *genx.OutputSchema) (string, error) {
	if out.Name == "image_descriptions" {
		return `{"descriptions":["one","two","three"]}`, nil
	}
	return `{"caption":"Buy now","tags":["#deal"]}`, nil
}

func (stubGenerator) GenerateImage(ctx context.Context, req *genx.Request) ([]byte, error) {
	return []byte{0x89, 'P', 'N', 'G'}, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *adchat.Hub) {
	t.Helper()

	verifier := session.VerifierFunc(func(ctx context.Context, token string) (session.Record, error) {
		if token != "tok-1" {
			return session.Record{}, session.ErrUnauthorized
		}
		return session.Record{Name: "Grace", Email: "grace@example.com", Identity: "u-grace"}, nil
	})
	sessions := session.NewManager(kv.NewMemory(), verifier, time.Hour)

	cat := catalog.NewKV(kv.NewMemory())
	if err := cat.Put(context.Background(), catalog.Template{ID: "tpl-1", Title: "Flash Sale"}); err != nil {
		t.Fatalf("seed catalog: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := adchat.NewHub(sessions, stubGenerator{}, cat, nil, adchat.Config{}, logger)
	srv := httptest.NewServer(New(hub, logger).Handler())
	t.Cleanup(func() {
		srv.Close()
		hub.Close()
	})
	return srv, hub
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestLogin(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/v1/auth/login", map[string]string{"token": "tok-1"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var got loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Message != "success" || got.User.Name != "Grace" || got.User.Identity != "u-grace" {
		t.Fatalf("response = %+v", got)
	}

	// Login is idempotent: a second call with the same token returns
	// the existing session.
	resp2 := postJSON(t, srv.URL+"/api/v1/auth/login", map[string]string{"token": "tok-1"})
	if resp2.StatusCode != http.StatusOK {
		t.Fatalf("second login status = %d, want 200", resp2.StatusCode)
	}
}

func TestLoginRejectsBadToken(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/v1/auth/login", map[string]string{"token": "forged"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestLoginRequiresToken(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/v1/auth/login", map[string]string{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestLogoutIdempotent(t *testing.T) {
	srv, _ := newTestServer(t)

	postJSON(t, srv.URL+"/api/v1/auth/login", map[string]string{"token": "tok-1"})
	for range 2 {
		resp := postJSON(t, srv.URL+"/api/v1/auth/logout", map[string]string{"token": "tok-1"})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("logout status = %d, want 200", resp.StatusCode)
		}
	}
}

func wsURL(srv *httptest.Server, identity string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + identity
}

func TestChannelRequiresSession(t *testing.T) {
	srv, _ := newTestServer(t)

	ws, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "nobody"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()

	// The server accepts the upgrade, then closes without any frame.
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := ws.ReadMessage(); err == nil {
		t.Fatal("expected close, got a frame")
	}
}

func TestChannelChatFlow(t *testing.T) {
	srv, _ := newTestServer(t)
	postJSON(t, srv.URL+"/api/v1/auth/login", map[string]string{"token": "tok-1"})

	ws, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "u-grace"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()
	ws.SetReadDeadline(time.Now().Add(5 * time.Second))

	readEvent := func() map[string]json.RawMessage {
		t.Helper()
		_, data, err := ws.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var m map[string]json.RawMessage
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatalf("decode %q: %v", data, err)
		}
		return m
	}
	category := func(m map[string]json.RawMessage) string {
		var c string
		json.Unmarshal(m["category"], &c)
		return c
	}

	welcome := readEvent()
	if category(welcome) != "text" {
		t.Fatalf("first frame category = %q, want text", category(welcome))
	}
	var msg string
	json.Unmarshal(welcome["message"], &msg)
	if !strings.Contains(msg, "Welcome Grace") {
		t.Fatalf("welcome = %q", msg)
	}

	if err := ws.WriteJSON(map[string]string{"template_id": "tpl-1"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	// Progress notices precede the final aggregate.
	for i := 0; i < 10; i++ {
		ev := readEvent()
		if category(ev) != "final_templates" {
			continue
		}
		var templates []json.RawMessage
		json.Unmarshal(ev["templates"], &templates)
		if len(templates) != 3 {
			t.Fatalf("got %d final templates, want 3", len(templates))
		}
		return
	}
	t.Fatal("never received final_templates")
}

func TestChannelReconnectClosesOldSocket(t *testing.T) {
	srv, _ := newTestServer(t)
	postJSON(t, srv.URL+"/api/v1/auth/login", map[string]string{"token": "tok-1"})

	first, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "u-grace"), nil)
	if err != nil {
		t.Fatalf("dial first: %v", err)
	}
	defer first.Close()
	first.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := first.ReadMessage(); err != nil {
		t.Fatalf("first welcome: %v", err)
	}

	second, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "u-grace"), nil)
	if err != nil {
		t.Fatalf("dial second: %v", err)
	}
	defer second.Close()
	second.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := second.ReadMessage(); err != nil {
		t.Fatalf("second welcome: %v", err)
	}

	// The first socket is torn down once the second registers.
	first.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		if _, _, err := first.ReadMessage(); err != nil {
			break
		}
	}

	// The surviving socket still works.
	if err := second.WriteJSON(map[string]string{"message": "still alive?"}); err != nil {
		t.Fatalf("write on second: %v", err)
	}
	if _, _, err := second.ReadMessage(); err != nil {
		t.Fatalf("read on second: %v", err)
	}
}

func TestChannelMalformedFrame(t *testing.T) {
	srv, _ := newTestServer(t)
	postJSON(t, srv.URL+"/api/v1/auth/login", map[string]string{"token": "tok-1"})

	ws, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "u-grace"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()
	ws.SetReadDeadline(time.Now().Add(5 * time.Second))

	if _, _, err := ws.ReadMessage(); err != nil {
		t.Fatalf("welcome: %v", err)
	}

	if err := ws.WriteMessage(websocket.TextMessage, []byte("{}")); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), fmt.Sprintf("%q", "error")) {
		t.Fatalf("frame = %s, want error category", data)
	}

	// Channel survives the bad frame.
	if err := ws.WriteJSON(map[string]string{"message": "hello"}); err != nil {
		t.Fatalf("write after error: %v", err)
	}
	if _, _, err := ws.ReadMessage(); err != nil {
		t.Fatalf("read after error: %v", err)
	}
}
