// Package memory is an in-process entity store used for local runs and tests.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jhonier182/lista-mercado/internal/core"
	"github.com/jhonier182/lista-mercado/internal/entities"
)

// Store is an in-memory entities.Repository.
type Store struct {
	mu         sync.Mutex
	products   map[string]core.Product
	categories map[string]core.Category
	stores     map[string]core.Store
	history    []core.PriceHistoryEntry
	users      map[string]entities.UserRecord
	emails     map[string]string
	revoked    map[string]time.Time
	closed     bool
}

var _ entities.Repository = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		products:   make(map[string]core.Product),
		categories: make(map[string]core.Category),
		stores:     make(map[string]core.Store),
		users:      make(map[string]entities.UserRecord),
		emails:     make(map[string]string),
		revoked:    make(map[string]time.Time),
	}
}

// Ping fails once the store is closed.
func (s *Store) Ping(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return &core.BackendError{Op: "ping", Err: fmt.Errorf("memory store closed")}
	}
	return nil
}

// Close marks the store closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) InsertProduct(_ context.Context, p core.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertProductLocked(p)
}

func (s *Store) UpdateProduct(_ context.Context, p core.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateProductLocked(p)
}

// InsertProductWithPrice stores p and its first price entry under one lock.
func (s *Store) InsertProductWithPrice(_ context.Context, p core.Product, e core.PriceHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.insertProductLocked(p); err != nil {
		return err
	}
	s.history = append(s.history, e)
	return nil
}

// UpdateProductWithPrice stores p and the entry for its new price under one
// lock.
func (s *Store) UpdateProductWithPrice(_ context.Context, p core.Product, e core.PriceHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.updateProductLocked(p); err != nil {
		return err
	}
	s.history = append(s.history, e)
	return nil
}

func (s *Store) insertProductLocked(p core.Product) error {
	if _, ok := s.products[p.ID]; ok {
		return &core.BackendError{Op: "insert product", Err: entities.ErrDuplicate}
	}
	s.products[p.ID] = p
	return nil
}

func (s *Store) updateProductLocked(p core.Product) error {
	cur, ok := s.products[p.ID]
	if !ok || cur.OwnerID != p.OwnerID {
		return core.ErrNotFound
	}
	s.products[p.ID] = p
	return nil
}

func (s *Store) GetProduct(_ context.Context, ownerID, id string) (core.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok || p.OwnerID != ownerID {
		return core.Product{}, core.ErrNotFound
	}
	return p, nil
}

func (s *Store) QueryProducts(_ context.Context, ownerID string, f entities.ProductFilter) ([]core.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Product, 0)
	for _, p := range s.products {
		if p.OwnerID != ownerID || !entities.MatchActive(f.Active, p.IsActive) {
			continue
		}
		if f.CategoryID != "" && p.CategoryID != f.CategoryID {
			continue
		}
		if f.StoreID != "" && p.StoreID != f.StoreID {
			continue
		}
		if f.Brand != "" && p.Brand != f.Brand {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *Store) InsertCategory(_ context.Context, c core.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[c.ID]; ok {
		return &core.BackendError{Op: "insert category", Err: entities.ErrDuplicate}
	}
	s.categories[c.ID] = c
	return nil
}

func (s *Store) UpdateCategory(_ context.Context, c core.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.categories[c.ID]
	if !ok || cur.OwnerID != c.OwnerID {
		return core.ErrNotFound
	}
	s.categories[c.ID] = c
	return nil
}

func (s *Store) GetCategory(_ context.Context, ownerID, id string) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok || c.OwnerID != ownerID {
		return core.Category{}, core.ErrNotFound
	}
	return c, nil
}

func (s *Store) QueryCategories(_ context.Context, ownerID string, f entities.Filter) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Category, 0)
	for _, c := range s.categories {
		if c.OwnerID == ownerID && entities.MatchActive(f.Active, c.IsActive) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) InsertStore(_ context.Context, st core.Store) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.stores[st.ID]; ok {
		return &core.BackendError{Op: "insert store", Err: entities.ErrDuplicate}
	}
	s.stores[st.ID] = st
	return nil
}

func (s *Store) UpdateStore(_ context.Context, st core.Store) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.stores[st.ID]
	if !ok || cur.OwnerID != st.OwnerID {
		return core.ErrNotFound
	}
	s.stores[st.ID] = st
	return nil
}

func (s *Store) GetStore(_ context.Context, ownerID, id string) (core.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stores[id]
	if !ok || st.OwnerID != ownerID {
		return core.Store{}, core.ErrNotFound
	}
	return st, nil
}

func (s *Store) QueryStores(_ context.Context, ownerID string, f entities.Filter) ([]core.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Store, 0)
	for _, st := range s.stores {
		if st.OwnerID == ownerID && entities.MatchActive(f.Active, st.IsActive) {
			out = append(out, st)
		}
	}
	return out, nil
}

func (s *Store) AppendPriceEntry(_ context.Context, e core.PriceHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, e)
	return nil
}

func (s *Store) QueryPriceHistory(_ context.Context, ownerID string, f entities.HistoryFilter) ([]core.PriceHistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.PriceHistoryEntry, 0)
	for _, e := range s.history {
		if e.OwnerID != ownerID {
			continue
		}
		if f.ProductID != "" && e.ProductID != f.ProductID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *Store) InsertUser(_ context.Context, u entities.UserRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := normalizeEmail(u.User.Email)
	if _, ok := s.emails[email]; ok {
		return entities.ErrDuplicate
	}
	if _, ok := s.users[u.User.ID]; ok {
		return entities.ErrDuplicate
	}
	u.PasswordHash = append([]byte(nil), u.PasswordHash...)
	s.users[u.User.ID] = u
	s.emails[email] = u.User.ID
	return nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (entities.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.emails[normalizeEmail(email)]
	if !ok {
		return entities.UserRecord{}, core.ErrNotFound
	}
	return s.users[id], nil
}

func (s *Store) GetUser(_ context.Context, id string) (entities.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return entities.UserRecord{}, core.ErrNotFound
	}
	return u, nil
}

func (s *Store) RevokeToken(_ context.Context, tokenID string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[tokenID] = expiresAt
	now := time.Now()
	for id, exp := range s.revoked {
		if exp.Before(now) {
			delete(s.revoked, id)
		}
	}
	return nil
}

func (s *Store) IsTokenRevoked(_ context.Context, tokenID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.revoked[tokenID]
	return ok, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
