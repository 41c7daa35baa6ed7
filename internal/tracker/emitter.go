package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/barscout/barscout-server/internal/proto"
)

// DialOptions configures the realtime connection.
type DialOptions struct {
	// User is sent in hello when no token is used.
	User string
	// Token is a JWT issued by the server's auth endpoints.
	Token  string
	Logger *zerolog.Logger
}

// WSEmitter sends location updates over the realtime channel and exposes the
// popularity snapshots the server pushes back.
type WSEmitter struct {
	conn *websocket.Conn
	log  *zerolog.Logger

	snapshots chan proto.PopularitySnapshot
	errs      chan *proto.Error
	cancel    context.CancelFunc
	readDone  chan struct{}
	closeOnce sync.Once
}

// Dial connects to the server's /ws endpoint and performs the hello handshake.
// url may be the server base (http://host:port) or the full ws URL.
func Dial(ctx context.Context, url string, opts DialOptions) (*WSEmitter, error) {
	wsURL := strings.Replace(strings.TrimRight(url, "/"), "http", "ws", 1)
	if !strings.HasSuffix(wsURL, "/ws") {
		wsURL += "/ws"
	}

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", wsURL, err)
	}

	logger := opts.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	readCtx, cancel := context.WithCancel(context.Background())
	e := &WSEmitter{
		conn:      conn,
		log:       logger,
		snapshots: make(chan proto.PopularitySnapshot, 16),
		errs:      make(chan *proto.Error, 16),
		cancel:    cancel,
		readDone:  make(chan struct{}),
	}

	if err := e.send(ctx, proto.InboundTypeHello, proto.HelloData{
		User:     opts.User,
		Token:    opts.Token,
		Protocol: proto.ProtocolVersion,
	}); err != nil {
		cancel()
		conn.Close(websocket.StatusInternalError, "hello failed")
		return nil, err
	}

	go e.readLoop(readCtx)
	return e, nil
}

// EmitLocation sends one location-update.
func (e *WSEmitter) EmitLocation(ctx context.Context, u Update) error {
	data := proto.LocationUpdateData{
		UserID:   u.UserID,
		Position: proto.NewPosition(u.Position),
	}
	if u.VenueID != "" {
		venueID := u.VenueID
		data.VenueID = &venueID
	}
	return e.send(ctx, proto.InboundTypeLocationUpdate, data)
}

// RequestSnapshot asks for the current popularity; the reply arrives on Snapshots.
func (e *WSEmitter) RequestSnapshot(ctx context.Context, venueID string) error {
	return e.send(ctx, proto.InboundTypeRequestSnapshot, proto.RequestSnapshotData{VenueID: venueID})
}

// Snapshots delivers popularity snapshots. Snapshots are dropped if nobody reads them.
// The channel is closed when the connection ends.
func (e *WSEmitter) Snapshots() <-chan proto.PopularitySnapshot {
	return e.snapshots
}

// Errors delivers error frames sent by the server.
func (e *WSEmitter) Errors() <-chan *proto.Error {
	return e.errs
}

// Close closes the connection.
func (e *WSEmitter) Close() error {
	var err error
	e.closeOnce.Do(func() {
		err = e.conn.Close(websocket.StatusNormalClosure, "tracker stopped")
		e.cancel()
		<-e.readDone
	})
	return err
}

func (e *WSEmitter) send(ctx context.Context, typ string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", typ, err)
	}
	if err := wsjson.Write(ctx, e.conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
		return fmt.Errorf("send %s: %w", typ, err)
	}
	return nil
}

type inboundFrame struct {
	Type  string                   `json:"type"`
	Event string                   `json:"event"`
	Data  proto.PopularitySnapshot `json:"data"`
	Error *proto.Error             `json:"error"`
}

func (e *WSEmitter) readLoop(ctx context.Context) {
	defer close(e.readDone)
	defer close(e.snapshots)
	defer close(e.errs)

	for {
		var frame inboundFrame
		if err := wsjson.Read(ctx, e.conn, &frame); err != nil {
			e.log.Debug().Err(err).Msg("realtime connection closed")
			return
		}

		switch {
		case frame.Type == proto.OutboundTypeError && frame.Error != nil:
			e.log.Warn().Str("code", frame.Error.Code).Str("msg", frame.Error.Msg).Msg("server rejected event")
			select {
			case e.errs <- frame.Error:
			default:
			}
		case frame.Type == proto.OutboundTypeEvent && frame.Event == proto.EventPopularitySnapshot:
			select {
			case e.snapshots <- frame.Data:
			default:
				e.log.Debug().Msg("snapshot dropped, reader too slow")
			}
		}
	}
}
