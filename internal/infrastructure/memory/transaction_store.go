package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/LavaJover/shvark-payment-service/internal/domain"
	"github.com/shopspring/decimal"
)

type TransactionStore struct {
	mu  sync.Mutex
	txs map[string]*domain.Transaction
	now func() time.Time
}

func NewTransactionStore() *TransactionStore {
	return &TransactionStore{txs: make(map[string]*domain.Transaction), now: time.Now}
}

func (s *TransactionStore) Append(ctx context.Context, tx *domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.txs[tx.TransactionID]; exists {
		return domain.ErrDuplicateTransaction
	}
	s.txs[tx.TransactionID] = cloneTransaction(tx)
	return nil
}

func (s *TransactionStore) GetByTransactionID(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.txs[transactionID]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	return cloneTransaction(tx), nil
}

func (s *TransactionStore) ListByIntent(ctx context.Context, intentID string) ([]*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.Transaction
	for _, tx := range s.txs {
		if tx.IntentID == intentID {
			out = append(out, cloneTransaction(tx))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *TransactionStore) SettleStatus(ctx context.Context, transactionID string, to domain.TransactionStatus, errorMessage *string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.txs[transactionID]
	if !ok {
		return false, domain.ErrTransactionNotFound
	}
	if tx.Status != domain.TransactionProcessing {
		return false, nil
	}
	tx.Status = to
	if errorMessage != nil {
		msg := *errorMessage
		tx.ErrorMessage = &msg
	}
	tx.UpdatedAt = s.now()
	return true, nil
}

// Len is used by tests asserting how many ledger rows were written.
func (s *TransactionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.txs)
}

func cloneTransaction(in *domain.Transaction) *domain.Transaction {
	out := *in
	if in.Amounts != nil {
		out.Amounts = make(map[string]decimal.Decimal, len(in.Amounts))
		for k, v := range in.Amounts {
			out.Amounts[k] = v
		}
	}
	if in.ErrorMessage != nil {
		msg := *in.ErrorMessage
		out.ErrorMessage = &msg
	}
	return &out
}
