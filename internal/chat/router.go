package chat

import (
	"context"
	"log/slog"
	"sync"

	"github.com/croftja/parley/internal/model"
	"github.com/croftja/parley/internal/storage"
)

// Router implements broadcast and whisper delivery over the registry.
// It is also the entry point for out-of-band producers such as the
// weather announcer.
type Router struct {
	registry *Registry
	storage  storage.Storage
	logger   *slog.Logger

	// Serializes broadcast dispatch so two in-flight broadcasts are
	// observed in the same relative order by every recipient.
	mu sync.Mutex
}

// NewRouter creates a Router over the given registry and store
func NewRouter(registry *Registry, store storage.Storage, logger *slog.Logger) *Router {
	return &Router{
		registry: registry,
		storage:  store,
		logger:   logger.With(slog.String("component", "router")),
	}
}

// Broadcast persists the message, then delivers it to every authenticated
// session. Fan-out is best effort: a failed delivery is logged and does
// not abort delivery to the remaining recipients.
func (r *Router) Broadcast(ctx context.Context, msg *model.Message) {
	if err := r.storage.SaveMessage(ctx, msg); err != nil {
		r.logger.Error("failed to persist broadcast",
			slog.String("originator", msg.Originator),
			slog.Any("error", err))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.registry.ForEachAuthenticated(func(session *Session) {
		if err := session.Deliver(msg); err != nil {
			r.logger.Warn("could not deliver broadcast",
				slog.String("recipient", session.Identity()),
				slog.Any("error", err))
		}
	})
}

// Whisper delivers the message to its named target with a "whispers"
// annotation. The message is persisted whenever the target is a known
// account, online or not. Returns whether the target actually received it
// so the caller can annotate the sender's echo.
func (r *Router) Whisper(ctx context.Context, msg *model.Message) bool {
	known, err := r.storage.AccountExists(ctx, msg.Target)
	if err != nil {
		r.logger.Error("account lookup failed",
			slog.String("target", msg.Target),
			slog.Any("error", err))
	}
	if known {
		if err := r.storage.SaveMessage(ctx, msg); err != nil {
			r.logger.Error("failed to persist whisper",
				slog.String("originator", msg.Originator),
				slog.Any("error", err))
		}
	}

	session, ok := r.registry.Lookup(msg.Target)
	if !ok || !session.Authenticated() {
		return false
	}

	delivery := *msg
	delivery.AddFix("whispers")
	if err := session.Deliver(&delivery); err != nil {
		r.logger.Warn("could not deliver whisper",
			slog.String("recipient", msg.Target),
			slog.Any("error", err))
		return false
	}
	return true
}
