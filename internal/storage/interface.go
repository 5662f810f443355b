package storage

import (
	"context"
	"time"

	"github.com/croftja/parley/internal/model"
)

// Storage defines the interface for data persistence
type Storage interface {
	// Account operations
	CreateAccount(ctx context.Context, account *model.Account) error
	GetAccount(ctx context.Context, name string) (*model.Account, error)
	AccountExists(ctx context.Context, name string) (bool, error)

	// Message operations
	SaveMessage(ctx context.Context, msg *model.Message) error

	// HistoryForRecipient returns the messages addressed to name or
	// broadcast to all on the calendar day of day, ordered by time.
	HistoryForRecipient(ctx context.Context, name string, day time.Time) ([]*model.Message, error)
}
