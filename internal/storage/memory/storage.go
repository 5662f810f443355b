package memory

import (
	"context"
	"sync"
	"time"

	"github.com/croftja/parley/internal/model"
	"github.com/croftja/parley/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu sync.RWMutex

	accounts map[string]*model.Account
	messages []*model.Message
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		accounts: make(map[string]*model.Account),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Account operations

func (s *Storage) CreateAccount(ctx context.Context, account *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[account.Name]; ok {
		return model.ErrAccountExists
	}
	s.accounts[account.Name] = account
	return nil
}

func (s *Storage) GetAccount(ctx context.Context, name string) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[name]
	if !ok {
		return nil, model.ErrAccountNotFound
	}
	return account, nil
}

func (s *Storage) AccountExists(ctx context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.accounts[name]
	return ok, nil
}

// Message operations

func (s *Storage) SaveMessage(ctx context.Context, msg *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	return nil
}

func (s *Storage) HistoryForRecipient(ctx context.Context, name string, day time.Time) ([]*model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	y, m, d := day.Date()
	var result []*model.Message
	for _, msg := range s.messages {
		if msg.Target != name && msg.Target != model.TargetAll {
			continue
		}
		my, mm, md := msg.Time.Date()
		if my != y || mm != m || md != d {
			continue
		}
		result = append(result, msg)
	}
	return result, nil
}
