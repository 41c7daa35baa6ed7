package http

import (
	"fmt"

	"github.com/barscout/barscout-server/internal/auth"
	"github.com/barscout/barscout-server/internal/core"
	"github.com/barscout/barscout-server/internal/proto"
)

// connState is the per-connection handshake state kept by the transport.
type connState struct {
	userID        string
	authenticated bool
}

// inboundToCommand maps an inbound envelope to a hub command.
// A non-nil protoErr is reported back to the client; a non-nil err means the
// event is malformed and is dropped without a reply.
func (h *WSHandler) inboundToCommand(state *connState, inbound proto.Inbound) (*core.Command, *proto.Error, error) {
	switch inbound.Type {
	case proto.InboundTypeHello:
		var hello proto.HelloData
		if err := proto.Decode(inbound.Data, &hello); err != nil {
			return nil, nil, err
		}
		return h.handshake(state, hello)

	case proto.InboundTypeLocationUpdate:
		if protoErr := h.requireAuth(state); protoErr != nil {
			return nil, protoErr, nil
		}
		var update proto.LocationUpdateData
		if err := proto.Decode(inbound.Data, &update); err != nil {
			return nil, nil, err
		}
		position := update.Position.Point()
		cmd := &core.Command{
			Kind:     core.CommandLocationUpdate,
			UserID:   state.resolveUser(update.UserID),
			Position: &position,
		}
		if update.VenueID != nil {
			cmd.VenueID = *update.VenueID
		}
		return cmd, nil, nil

	case proto.InboundTypeLeave:
		if protoErr := h.requireAuth(state); protoErr != nil {
			return nil, protoErr, nil
		}
		var leave proto.LeaveData
		if err := proto.Decode(inbound.Data, &leave); err != nil {
			return nil, nil, err
		}
		return &core.Command{
			Kind:    core.CommandLeave,
			UserID:  state.resolveUser(leave.UserID),
			VenueID: leave.VenueID,
		}, nil, nil

	case proto.InboundTypeRequestSnapshot:
		var req proto.RequestSnapshotData
		if err := proto.Decode(inbound.Data, &req); err != nil {
			return nil, nil, err
		}
		return &core.Command{
			Kind:    core.CommandRequestSnapshot,
			VenueID: req.VenueID,
		}, nil, nil

	default:
		return nil, &proto.Error{Code: core.ErrCodeInvalidMessage, Msg: "unknown message type"}, nil
	}
}

func (h *WSHandler) handshake(state *connState, hello proto.HelloData) (*core.Command, *proto.Error, error) {
	if hello.Protocol != 0 && hello.Protocol != proto.ProtocolVersion {
		return nil, &proto.Error{
			Code: core.ErrCodeUnsupportedVersion,
			Msg:  fmt.Sprintf("unsupported protocol version %d, server speaks %d", hello.Protocol, proto.ProtocolVersion),
		}, nil
	}

	userID := hello.User
	if hello.Token != "" {
		claims, err := h.validateToken(hello.Token)
		if err != nil {
			h.log.Debug().Err(err).Msg("hello with invalid token")
			return nil, &proto.Error{Code: core.ErrCodeUnauthorized, Msg: "invalid token"}, nil
		}
		if userID != "" && userID != claims.Subject {
			return nil, &proto.Error{Code: core.ErrCodeUnauthorized, Msg: "user does not match token"}, nil
		}
		userID = claims.Subject
		state.authenticated = true
	} else if h.jwtRequired {
		return nil, &proto.Error{Code: core.ErrCodeUnauthorized, Msg: "token required"}, nil
	}

	if userID == "" {
		return nil, nil, nil
	}
	state.userID = userID
	return &core.Command{Kind: core.CommandIdentify, UserID: userID}, nil, nil
}

func (h *WSHandler) validateToken(token string) (*auth.Claims, error) {
	if h.auth == nil {
		return nil, fmt.Errorf("token authentication is not configured")
	}
	return h.auth.ValidateToken(token)
}

func (h *WSHandler) requireAuth(state *connState) *proto.Error {
	if h.jwtRequired && !state.authenticated {
		return &proto.Error{Code: core.ErrCodeUnauthorized, Msg: "hello with a valid token required"}
	}
	return nil
}

// resolveUser falls back to the handshake identity when an event omits its userId.
func (s *connState) resolveUser(userID string) string {
	if userID == "" {
		return s.userID
	}
	return userID
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventSnapshot:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventPopularitySnapshot,
			Data:  snapshotToProto(event.Snapshot),
		}
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}

func snapshotToProto(snap core.Snapshot) proto.PopularitySnapshot {
	out := make(proto.PopularitySnapshot, len(snap))
	for venueID, occ := range snap {
		users := occ.PresentUserIDs
		if users == nil {
			users = []string{}
		}
		out[venueID] = proto.VenuePopularity{Count: occ.Count, PresentUserIDs: users}
	}
	return out
}
