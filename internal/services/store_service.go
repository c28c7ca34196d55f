package services

import (
	"context"
	"log/slog"
	"strings"

	"github.com/jhonier182/lista-mercado/internal/core"
	"github.com/jhonier182/lista-mercado/internal/entities"
)

// StoreInput is a new store.
type StoreInput struct {
	Name string
}

// StorePatch carries the fields to change; nil fields are left untouched.
type StorePatch struct {
	Name *string
}

// StoreService manages the owner's stores.
type StoreService struct {
	repo entities.StoreRepository
	settings
}

// NewStoreService builds a store service over repo.
func NewStoreService(repo entities.StoreRepository, opts ...Option) *StoreService {
	return &StoreService{repo: repo, settings: newSettings(opts)}
}

// Add validates and stores a new active store and returns its id.
func (s *StoreService) Add(ctx context.Context, sess *core.Session, in StoreInput) (string, error) {
	owner, err := sess.OwnerID()
	if err != nil {
		return "", err
	}
	st := core.Store{
		ID:        s.ids(),
		OwnerID:   owner,
		Name:      strings.TrimSpace(in.Name),
		CreatedAt: s.clock(),
		IsActive:  true,
	}
	if err := st.Validate(); err != nil {
		return "", err
	}
	if err := s.repo.InsertStore(ctx, st); err != nil {
		return "", core.WrapBackend("insert store", err)
	}
	slog.InfoContext(ctx, "Store created", "id", st.ID, "owner_id", owner)
	return st.ID, nil
}

// Get returns an active store of the session owner.
func (s *StoreService) Get(ctx context.Context, sess *core.Session, id string) (core.Store, error) {
	owner, err := sess.OwnerID()
	if err != nil {
		return core.Store{}, err
	}
	if err := requireID(id); err != nil {
		return core.Store{}, err
	}
	st, err := s.repo.GetStore(ctx, owner, id)
	if err != nil {
		return core.Store{}, core.WrapBackend("get store", err)
	}
	if !st.IsActive {
		return core.Store{}, core.ErrNotFound
	}
	return st, nil
}

// Update renames an active store of the session owner.
func (s *StoreService) Update(ctx context.Context, sess *core.Session, id string, patch StorePatch) (core.Store, error) {
	st, err := s.Get(ctx, sess, id)
	if err != nil {
		return core.Store{}, err
	}
	if patch.Name != nil {
		st.Name = strings.TrimSpace(*patch.Name)
	}
	if err := st.Validate(); err != nil {
		return core.Store{}, err
	}
	now := s.clock()
	st.UpdatedAt = &now
	if err := s.repo.UpdateStore(ctx, st); err != nil {
		return core.Store{}, core.WrapBackend("update store", err)
	}
	return st, nil
}

// Delete soft-deletes the store. Products keep their StoreName.
func (s *StoreService) Delete(ctx context.Context, sess *core.Session, id string) error {
	st, err := s.Get(ctx, sess, id)
	if err != nil {
		return err
	}
	now := s.clock()
	st.IsActive = false
	st.UpdatedAt = &now
	if err := s.repo.UpdateStore(ctx, st); err != nil {
		return core.WrapBackend("delete store", err)
	}
	slog.InfoContext(ctx, "Store deleted", "id", st.ID, "owner_id", st.OwnerID)
	return nil
}

// List returns the owner's active stores sorted by name.
func (s *StoreService) List(ctx context.Context, sess *core.Session) ([]core.Store, error) {
	owner, err := sess.OwnerID()
	if err != nil {
		return nil, err
	}
	out, err := s.repo.QueryStores(ctx, owner, entities.Filter{Active: entities.ActiveOnly()})
	if err != nil {
		return nil, core.WrapBackend("list stores", err)
	}
	sortNamed(out, func(st core.Store) string { return st.Name })
	return out, nil
}
