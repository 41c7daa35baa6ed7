package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/barscout/barscout-server/internal/auth"
	"github.com/barscout/barscout-server/internal/config"
	"github.com/barscout/barscout-server/internal/core"
	"github.com/barscout/barscout-server/internal/proto"
	"github.com/barscout/barscout-server/internal/store"
	"github.com/barscout/barscout-server/internal/store/sqlite"
)

const testJWTSecret = "test-secret"

// createTestStore creates an in-memory SQLite store with schema applied.
func createTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.NewWithSetup(":memory:", sqlite.ApplySchema)
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// createTestAuthService creates an auth service for testing.
func createTestAuthService(st store.Store) *auth.Service {
	return auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte(testJWTSecret),
		Issuer:   "test",
		Audience: "test",
		TTL:      24 * time.Hour,
	})
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.ReadHeaderTimeout = time.Second
	cfg.ShutdownTimeout = time.Second
	cfg.JWTSecret = testJWTSecret
	return cfg
}

type testEnv struct {
	ts    *httptest.Server
	hub   *core.Hub
	auth  *auth.Service
	store store.Store
}

func startTestServer(t *testing.T, cfg config.Config, hubOpts ...core.Option) *testEnv {
	t.Helper()

	st := createTestStore(t)
	authService := createTestAuthService(st)

	hub := core.NewHub(core.NewRegistry(), hubOpts...)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	disabledLogger := zerolog.New(nil)
	server := NewServer(hub, authService, st, &cfg, &disabledLogger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, hub: hub, auth: authService, store: st}
}

func (e *testEnv) dial(t *testing.T, ctx context.Context) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(e.ts.URL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func send(t *testing.T, ctx context.Context, conn *websocket.Conn, typ string, data any) {
	t.Helper()

	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal %s: %v", typ, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
		t.Fatalf("send %s: %v", typ, err)
	}
}

func sendLocation(t *testing.T, ctx context.Context, conn *websocket.Conn, user string, venue *string) {
	t.Helper()
	send(t, ctx, conn, proto.InboundTypeLocationUpdate, proto.LocationUpdateData{
		UserID:   user,
		Position: proto.NewPosition(testOrigin),
		VenueID:  venue,
	})
}

type wireOutbound struct {
	Type  string                   `json:"type"`
	Event string                   `json:"event"`
	Data  proto.PopularitySnapshot `json:"data"`
	Error *proto.Error             `json:"error"`
}

// readOutbound reads the next frame from conn.
func readOutbound(t *testing.T, ctx context.Context, conn *websocket.Conn) wireOutbound {
	t.Helper()

	var out wireOutbound
	if err := wsjson.Read(ctx, conn, &out); err != nil {
		t.Fatalf("read outbound: %v", err)
	}
	return out
}

// mustSnapshot reads frames until a popularity snapshot arrives.
func mustSnapshot(t *testing.T, ctx context.Context, conn *websocket.Conn) proto.PopularitySnapshot {
	t.Helper()

	for {
		out := readOutbound(t, ctx, conn)
		if out.Type == proto.OutboundTypeEvent && out.Event == proto.EventPopularitySnapshot {
			return out.Data
		}
	}
}

// mustError reads the next frame and expects an error with the given code.
func mustError(t *testing.T, ctx context.Context, conn *websocket.Conn, code string) {
	t.Helper()

	out := readOutbound(t, ctx, conn)
	if out.Type != proto.OutboundTypeError || out.Error == nil || out.Error.Code != code {
		t.Fatalf("expected %s error, got %+v", code, out)
	}
}

func strPtr(s string) *string { return &s }
