package websocket

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"agrolink/internal/infrastructure/ratelimit"
	"agrolink/internal/usecase"
	"agrolink/pkg/errors"
	"agrolink/pkg/logger"
	"agrolink/pkg/metrics"
	"agrolink/pkg/response"
	"agrolink/pkg/tracing"
)

type route struct {
	// fallback is shown to the caller when the failure is internal.
	fallback string
	handle   func(ctx context.Context, caller usecase.Caller, data json.RawMessage) error
}

// Dispatcher decodes inbound frames into typed events, validates them and
// hands them to the matching use case.
type Dispatcher struct {
	manager       *Manager
	presence      *usecase.PresenceUseCase
	productChats  *usecase.ProductChatUseCase
	support       *usecase.SupportChatUseCase
	notifications *usecase.NotificationUseCase
	limiter       *ratelimit.RateLimiter
	validate      *validator.Validate
	tracer        trace.Tracer
	routes        map[string]route
}

func NewDispatcher(
	manager *Manager,
	presence *usecase.PresenceUseCase,
	productChats *usecase.ProductChatUseCase,
	support *usecase.SupportChatUseCase,
	notifications *usecase.NotificationUseCase,
	limiter *ratelimit.RateLimiter,
) *Dispatcher {
	d := &Dispatcher{
		manager:       manager,
		presence:      presence,
		productChats:  productChats,
		support:       support,
		notifications: notifications,
		limiter:       limiter,
		validate:      validator.New(),
		tracer:        tracing.Tracer(),
	}
	d.routes = map[string]route{
		EventJoinChat:              {"Failed to join chat", d.handleJoinChat},
		EventLeaveChat:             {"Failed to leave chat", d.handleLeaveChat},
		EventTypingStarted:         {"Failed to send typing indicator", d.handleTypingStarted},
		EventTypingStopped:         {"Failed to send typing indicator", d.handleTypingStopped},
		EventNewMessage:            {"Failed to deliver message", d.handleNewMessage},
		EventJoinSupportChat:       {"Failed to join support chat", d.handleJoinSupportChat},
		EventLeaveSupportChat:      {"Failed to leave support chat", d.handleLeaveSupportChat},
		EventSupportMessage:        {"Failed to process message", d.handleSupportMessage},
		EventAcceptSupportChat:     {"Failed to accept support chat", d.handleAcceptSupportChat},
		EventCloseSupportChat:      {"Failed to close support chat", d.handleCloseSupportChat},
		EventSendNotification:      {"Failed to send notification", d.handleSendNotification},
		EventBroadcastNotification: {"Failed to broadcast notification", d.handleBroadcastNotification},
	}
	return d
}

func callerOf(client *Client) usecase.Caller {
	return usecase.Caller{ConnID: client.ID, Identity: client.Identity}
}

func (d *Dispatcher) HandleConnect(ctx context.Context, client *Client) error {
	logger.Info("WebSocket: %s %s connected as %s", client.Identity.Role, client.Identity.UserID, client.ID)
	return d.presence.Connect(ctx, callerOf(client))
}

func (d *Dispatcher) HandleDisconnect(ctx context.Context, client *Client) {
	logger.Info("WebSocket: %s %s disconnected (%s)", client.Identity.Role, client.Identity.UserID, client.ID)
	if err := d.presence.Disconnect(ctx, callerOf(client)); err != nil {
		logger.Error("WebSocket: disconnect cleanup for %s failed: %v", client.Identity.UserID, err)
	}
	if d.limiter != nil {
		d.limiter.Forget(client.ID)
	}
}

// HandleHeartbeat keeps the caller's presence alive while the socket answers
// transport pings, even when no application frame arrives.
func (d *Dispatcher) HandleHeartbeat(ctx context.Context, client *Client) {
	d.presence.Touch(ctx, callerOf(client))
}

// HandleClientMessage processes one inbound frame. Failures never escape: they
// become an error event addressed to the sending connection only.
func (d *Dispatcher) HandleClientMessage(ctx context.Context, client *Client, frame []byte) {
	var msg WSMessage
	if err := json.Unmarshal(frame, &msg); err != nil {
		logger.Warn("WebSocket: malformed frame from %s: %v", client.Identity.UserID, err)
		d.sendError(client, "Invalid message format")
		return
	}

	if msg.Event == EventPing {
		d.presence.Touch(ctx, callerOf(client))
		d.manager.Emit(client.ID, EventPong, map[string]string{"status": "alive"})
		return
	}

	r, ok := d.routes[msg.Event]
	if !ok {
		logger.Warn("WebSocket: unknown event '%s' from %s", msg.Event, client.Identity.UserID)
		d.sendError(client, "Unknown event type")
		return
	}

	if d.limiter != nil {
		if allowed, _ := d.limiter.Allow(client.ID, ratelimit.ActionEvent); !allowed {
			metrics.RecordEvent(msg.Event, "throttled", 0)
			d.sendError(client, "Too many requests. Please slow down")
			return
		}
	}

	ctx, span := d.tracer.Start(ctx, "ws."+msg.Event,
		trace.WithAttributes(
			attribute.String("ws.event", msg.Event),
			attribute.String("ws.conn_id", client.ID),
			attribute.String("enduser.id", client.Identity.UserID),
			attribute.String("enduser.role", string(client.Identity.Role)),
		))
	defer span.End()

	start := time.Now()
	err := r.handle(ctx, callerOf(client), msg.Data)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, "INTERNAL_ERROR") {
			logger.Error("WebSocket: %s from %s failed: %v", msg.Event, client.Identity.UserID, err)
		}
		d.sendError(client, errors.ClientMessage(err, r.fallback))
	}
	metrics.RecordEvent(msg.Event, outcome, time.Since(start).Seconds())
}

func (d *Dispatcher) sendError(client *Client, message string) {
	d.manager.Emit(client.ID, usecase.EventError, usecase.ErrorPayload{Message: message})
}

// decode unmarshals and validates one event payload.
func (d *Dispatcher) decode(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return errors.BadRequest("Missing event data", nil)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.BadRequest("Invalid event data", err)
	}
	if err := d.validate.Struct(v); err != nil {
		if validationErrs, ok := err.(validator.ValidationErrors); ok {
			return errors.BadRequest(response.ValidationMessage(validationErrs), err)
		}
		return errors.BadRequest("Invalid event data", err)
	}
	return nil
}

func (d *Dispatcher) chatRef(data json.RawMessage) (string, error) {
	var ref ChatRef
	if err := d.decode(data, &ref); err != nil {
		return "", err
	}
	return ref.ChatID, nil
}

func (d *Dispatcher) handleJoinChat(ctx context.Context, caller usecase.Caller, data json.RawMessage) error {
	chatID, err := d.chatRef(data)
	if err != nil {
		return err
	}
	return d.productChats.JoinChat(ctx, caller, chatID)
}

func (d *Dispatcher) handleLeaveChat(ctx context.Context, caller usecase.Caller, data json.RawMessage) error {
	chatID, err := d.chatRef(data)
	if err != nil {
		return err
	}
	return d.productChats.LeaveChat(ctx, caller, chatID)
}

func (d *Dispatcher) handleTypingStarted(ctx context.Context, caller usecase.Caller, data json.RawMessage) error {
	chatID, err := d.chatRef(data)
	if err != nil {
		return err
	}
	return d.productChats.TypingStarted(ctx, caller, chatID)
}

func (d *Dispatcher) handleTypingStopped(ctx context.Context, caller usecase.Caller, data json.RawMessage) error {
	chatID, err := d.chatRef(data)
	if err != nil {
		return err
	}
	return d.productChats.TypingStopped(ctx, caller, chatID)
}

func (d *Dispatcher) handleNewMessage(ctx context.Context, caller usecase.Caller, data json.RawMessage) error {
	var in NewMessageData
	if err := d.decode(data, &in); err != nil {
		return err
	}
	return d.productChats.NewMessage(ctx, caller, usecase.NewMessageInput{
		ChatID:      in.ChatID,
		Message:     in.Message,
		RecipientID: in.RecipientID,
	})
}

func (d *Dispatcher) handleJoinSupportChat(ctx context.Context, caller usecase.Caller, data json.RawMessage) error {
	chatID, err := d.chatRef(data)
	if err != nil {
		return err
	}
	return d.support.JoinSupportChat(ctx, caller, chatID)
}

func (d *Dispatcher) handleLeaveSupportChat(ctx context.Context, caller usecase.Caller, data json.RawMessage) error {
	chatID, err := d.chatRef(data)
	if err != nil {
		return err
	}
	return d.support.LeaveSupportChat(ctx, caller, chatID)
}

func (d *Dispatcher) handleSupportMessage(ctx context.Context, caller usecase.Caller, data json.RawMessage) error {
	var in SupportMessageData
	if err := d.decode(data, &in); err != nil {
		return err
	}
	return d.support.SubmitMessage(ctx, caller, usecase.SupportMessageInput{
		ChatID:      in.ChatID,
		Content:     in.Text(),
		Category:    in.Category,
		Priority:    in.Priority,
		RecipientID: in.RecipientID,
	})
}

func (d *Dispatcher) handleAcceptSupportChat(ctx context.Context, caller usecase.Caller, data json.RawMessage) error {
	chatID, err := d.chatRef(data)
	if err != nil {
		return err
	}
	return d.support.AcceptChat(ctx, caller, chatID)
}

func (d *Dispatcher) handleCloseSupportChat(ctx context.Context, caller usecase.Caller, data json.RawMessage) error {
	var in CloseSupportChatData
	if err := d.decode(data, &in); err != nil {
		return err
	}
	return d.support.CloseChat(ctx, caller, in.ChatID, in.Reason)
}

func (d *Dispatcher) handleSendNotification(ctx context.Context, caller usecase.Caller, data json.RawMessage) error {
	var in SendNotificationData
	if err := d.decode(data, &in); err != nil {
		return err
	}
	_, err := d.notifications.SendNotification(ctx, caller, usecase.SendNotificationInput{
		UserID:  in.UserID,
		Type:    in.Type,
		Message: in.Message,
		Time:    in.Time,
	})
	return err
}

func (d *Dispatcher) handleBroadcastNotification(ctx context.Context, caller usecase.Caller, data json.RawMessage) error {
	var in BroadcastNotificationData
	if err := d.decode(data, &in); err != nil {
		return err
	}
	_, err := d.notifications.Broadcast(ctx, caller, usecase.BroadcastNotificationInput{
		UserIDs: in.UserIDs,
		Type:    in.Type,
		Message: in.Message,
	})
	return err
}
