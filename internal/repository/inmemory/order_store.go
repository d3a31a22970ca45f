// Package inmemory provides a map-backed OrderStore with the same guard
// semantics as the Postgres repository, for tests and local development.
package inmemory

import (
	"context"
	"sync"

	"github.com/lumapay/bnpl-gateway/internal/interfaces"
	"github.com/lumapay/bnpl-gateway/internal/models"
)

var ErrOrderNotFound = interfaces.ErrOrderNotFound

type OrderStore struct {
	mu           sync.Mutex
	orders       map[int64]*models.OrderSnapshot
	notes        map[int64]map[string]models.OrderNote // orderID -> reference/note_key -> note
	stockReduced map[int64]int
	cartsEmptied map[string]int
	paymentDone  map[int64]bool
	transactions map[int64]string
}

func NewOrderStore() *OrderStore {
	return &OrderStore{
		orders:       make(map[int64]*models.OrderSnapshot),
		notes:        make(map[int64]map[string]models.OrderNote),
		stockReduced: make(map[int64]int),
		cartsEmptied: make(map[string]int),
		paymentDone:  make(map[int64]bool),
		transactions: make(map[int64]string),
	}
}

func (s *OrderStore) Put(o models.OrderSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := o
	s.orders[o.ID] = &copied
}

func (s *OrderStore) Get(_ context.Context, orderID int64) (*models.OrderSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	copied := *o
	return &copied, nil
}

func (s *OrderStore) SetTransactionRef(_ context.Context, orderID int64, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	o.TransactionRef = ref
	return nil
}

func settled(status models.OrderStatus) bool {
	switch status {
	case models.OrderProcessing, models.OrderCompleted, models.OrderOnHold:
		return true
	}
	return false
}

func (s *OrderStore) ApplyDecision(_ context.Context, orderID int64, ref string, d models.OrderDecision) (models.ApplyResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d.NewStatus == "" {
		return models.ApplyResult{}, nil
	}

	o, ok := s.orders[orderID]
	if !ok {
		return models.ApplyResult{}, ErrOrderNotFound
	}

	prev := o.Status
	if settled(prev) {
		return models.ApplyResult{Applied: false, PreviousStatus: prev, NewStatus: prev}, nil
	}

	o.Status = d.NewStatus

	if s.notes[orderID] == nil {
		s.notes[orderID] = make(map[string]models.OrderNote)
	}
	for _, n := range d.Notes {
		key := ref + "/" + n.Key
		if _, exists := s.notes[orderID][key]; !exists {
			s.notes[orderID][key] = n
		}
	}

	if d.ReduceStock {
		s.stockReduced[orderID]++
	}
	if d.SetTransactionRef || d.MarkPaymentComplete {
		s.transactions[orderID] = ref
	}
	if d.MarkPaymentComplete {
		s.paymentDone[orderID] = true
	}
	if d.EmptyCart && o.CustomerID != "" {
		s.cartsEmptied[o.CustomerID]++
	}

	return models.ApplyResult{Applied: true, PreviousStatus: prev, NewStatus: d.NewStatus}, nil
}

func (s *OrderStore) NoteCount(orderID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.notes[orderID])
}

func (s *OrderStore) StockReductions(orderID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stockReduced[orderID]
}

func (s *OrderStore) CartEmptyCalls(customerID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cartsEmptied[customerID]
}

func (s *OrderStore) PaymentCompleted(orderID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paymentDone[orderID]
}

func (s *OrderStore) TransactionID(orderID int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transactions[orderID]
}
