package http

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/barscout/barscout-server/internal/core"
	"github.com/barscout/barscout-server/internal/proto"
)

func TestWebSocketJWTSuccess(t *testing.T) {
	cfg := testConfig()
	cfg.JWTRequired = true
	env := startTestServer(t, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := env.auth.Register(ctx, "alice", "password123")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	userID := strconv.FormatInt(res.User.ID, 10)

	conn := env.dial(t, ctx)
	send(t, ctx, conn, proto.InboundTypeHello, proto.HelloData{Token: res.Token, Protocol: proto.ProtocolVersion})

	// userId is taken from the token when the event omits it.
	sendLocation(t, ctx, conn, "", strPtr("A"))
	snap := mustSnapshot(t, ctx, conn)
	if snap["A"].Count != 1 || snap["A"].PresentUserIDs[0] != userID {
		t.Fatalf("expected %s at A, got %+v", userID, snap)
	}

	// Claiming another identity on the same connection is rejected.
	sendLocation(t, ctx, conn, "someone-else", strPtr("B"))
	mustError(t, ctx, conn, core.ErrCodeUnauthorized)
}

func TestWebSocketJWTInvalid(t *testing.T) {
	cfg := testConfig()
	cfg.JWTRequired = true
	env := startTestServer(t, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := env.dial(t, ctx)
	send(t, ctx, conn, proto.InboundTypeHello, proto.HelloData{Token: "invalid"})
	mustError(t, ctx, conn, core.ErrCodeUnauthorized)
}

func TestWebSocketJWTRequiredRejectsAnonymous(t *testing.T) {
	cfg := testConfig()
	cfg.JWTRequired = true
	env := startTestServer(t, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := env.dial(t, ctx)
	sendLocation(t, ctx, conn, "alice", strPtr("A"))
	mustError(t, ctx, conn, core.ErrCodeUnauthorized)

	if _, present := env.hub.VenueOf("alice"); present {
		t.Fatalf("anonymous update must not reach the registry")
	}
}

func TestWebSocketHelloUserMustMatchToken(t *testing.T) {
	env := startTestServer(t, testConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := env.auth.Register(ctx, "alice", "password123")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	conn := env.dial(t, ctx)
	send(t, ctx, conn, proto.InboundTypeHello, proto.HelloData{User: "bob", Token: res.Token})
	mustError(t, ctx, conn, core.ErrCodeUnauthorized)
}
