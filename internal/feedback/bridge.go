package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"

	"github.com/specialistvlad/dataflowgo/internal/ctxlog"
	"github.com/specialistvlad/dataflowgo/internal/moduleid"
	"github.com/specialistvlad/dataflowgo/internal/notify"
	"github.com/specialistvlad/dataflowgo/internal/session"
)

// Socket event names.
const (
	FeedbackEvent = "feedback"
	StatusEvent   = "event"
	ErrorEvent    = "feedback_error"
)

// ErrInvalidMessage is returned for feedback messages that cannot be decoded.
var ErrInvalidMessage = errors.New("invalid feedback message")

// Message is a feedback event sent by the render host.
type Message struct {
	Module  moduleid.ID     `json:"module"`
	Payload json.RawMessage `json:"payload"`
}

// Envelope wraps an outgoing engine notification.
type Envelope struct {
	Type  notify.Type  `json:"type"`
	Event notify.Event `json:"event"`
}

// Bridge forwards feedback into a session and notifications out to the
// render host. It implements notify.Sink.
type Bridge struct {
	client  Client
	session session.Session
}

// NewBridge wires client to sess. Call Start to begin handling feedback.
func NewBridge(client Client, sess session.Session) *Bridge {
	return &Bridge{client: client, session: sess}
}

// Start registers the feedback handler. Handling stops when ctx ends or
// the bridge is closed.
func (b *Bridge) Start(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)
	b.client.On(FeedbackEvent, func(args ...any) {
		if ctx.Err() != nil {
			return
		}
		if len(args) == 0 {
			logger.Warn("Ignoring empty feedback event.")
			return
		}
		if err := b.Handle(ctx, args[0]); err != nil {
			logger.Warn("Feedback rejected.", "error", err)
			b.client.Emit(ErrorEvent, map[string]string{"error": err.Error()})
		}
	})
	logger.Info("Feedback bridge started.")
}

// Handle decodes one feedback message and hands it to the session. raw is
// whatever the socket delivered: a JSON string, bytes or a decoded object.
func (b *Bridge) Handle(ctx context.Context, raw any) error {
	msg, payload, err := Decode(raw)
	if err != nil {
		return err
	}
	run, err := b.session.Feedback(ctx, msg.Module, payload)
	if err != nil {
		return fmt.Errorf("feedback for %s: %w", msg.Module, err)
	}
	ctxlog.FromContext(ctx).Debug("Feedback queued.", "module", msg.Module, "execution_id", run.Context().ID)
	return nil
}

// Notify implements notify.Sink by emitting the event to the render host.
func (b *Bridge) Notify(_ context.Context, e notify.Event) {
	b.client.Emit(StatusEvent, Envelope{Type: e.EventType(), Event: e})
}

// Close disconnects from the render host.
func (b *Bridge) Close() {
	b.client.Close()
}

// Decode parses a feedback message and converts its payload to a cty value.
func Decode(raw any) (Message, cty.Value, error) {
	var data []byte
	switch v := raw.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return Message{}, cty.NilVal, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
		}
		data = b
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, cty.NilVal, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if _, err := moduleid.Parse(string(msg.Module)); err != nil {
		return Message{}, cty.NilVal, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if len(msg.Payload) == 0 || string(msg.Payload) == "null" {
		return msg, cty.NullVal(cty.DynamicPseudoType), nil
	}

	ty, err := ctyjson.ImpliedType(msg.Payload)
	if err != nil {
		return Message{}, cty.NilVal, fmt.Errorf("%w: payload: %v", ErrInvalidMessage, err)
	}
	payload, err := ctyjson.Unmarshal(msg.Payload, ty)
	if err != nil {
		return Message{}, cty.NilVal, fmt.Errorf("%w: payload: %v", ErrInvalidMessage, err)
	}
	return msg, payload, nil
}
