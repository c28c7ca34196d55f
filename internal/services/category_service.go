package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jhonier182/lista-mercado/internal/core"
	"github.com/jhonier182/lista-mercado/internal/entities"
)

// CategoryInput is a new category.
type CategoryInput struct {
	Name string
}

// CategoryPatch carries the fields to change; nil fields are left untouched.
type CategoryPatch struct {
	Name *string
}

// CategoryService manages the owner's categories.
type CategoryService struct {
	repo entities.CategoryRepository
	settings
}

// NewCategoryService builds a category service over repo.
func NewCategoryService(repo entities.CategoryRepository, opts ...Option) *CategoryService {
	return &CategoryService{repo: repo, settings: newSettings(opts)}
}

// Add validates and stores a new active category and returns its id.
func (s *CategoryService) Add(ctx context.Context, sess *core.Session, in CategoryInput) (string, error) {
	owner, err := sess.OwnerID()
	if err != nil {
		return "", err
	}
	c := core.Category{
		ID:        s.ids(),
		OwnerID:   owner,
		Name:      strings.TrimSpace(in.Name),
		CreatedAt: s.clock(),
		IsActive:  true,
	}
	if err := c.Validate(); err != nil {
		return "", err
	}
	if err := s.repo.InsertCategory(ctx, c); err != nil {
		return "", fmt.Errorf("add category: %w", core.WrapBackend("insert category", err))
	}
	slog.InfoContext(ctx, "Category created", "id", c.ID, "owner_id", owner)
	return c.ID, nil
}

// Get returns an active category of the session owner.
func (s *CategoryService) Get(ctx context.Context, sess *core.Session, id string) (core.Category, error) {
	owner, err := sess.OwnerID()
	if err != nil {
		return core.Category{}, err
	}
	if err := requireID(id); err != nil {
		return core.Category{}, err
	}
	c, err := s.repo.GetCategory(ctx, owner, id)
	if err != nil {
		return core.Category{}, core.WrapBackend("get category", err)
	}
	if !c.IsActive {
		return core.Category{}, core.ErrNotFound
	}
	return c, nil
}

// Update renames an active category of the session owner.
func (s *CategoryService) Update(ctx context.Context, sess *core.Session, id string, patch CategoryPatch) (core.Category, error) {
	c, err := s.Get(ctx, sess, id)
	if err != nil {
		return core.Category{}, err
	}
	if patch.Name != nil {
		c.Name = strings.TrimSpace(*patch.Name)
	}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	now := s.clock()
	c.UpdatedAt = &now
	if err := s.repo.UpdateCategory(ctx, c); err != nil {
		return core.Category{}, core.WrapBackend("update category", err)
	}
	return c, nil
}

// Delete soft-deletes the category. Products keep their denormalized name.
func (s *CategoryService) Delete(ctx context.Context, sess *core.Session, id string) error {
	c, err := s.Get(ctx, sess, id)
	if err != nil {
		return err
	}
	now := s.clock()
	c.IsActive = false
	c.UpdatedAt = &now
	if err := s.repo.UpdateCategory(ctx, c); err != nil {
		return core.WrapBackend("delete category", err)
	}
	slog.InfoContext(ctx, "Category deleted", "id", c.ID, "owner_id", c.OwnerID)
	return nil
}

// List returns the owner's active categories sorted by name.
func (s *CategoryService) List(ctx context.Context, sess *core.Session) ([]core.Category, error) {
	owner, err := sess.OwnerID()
	if err != nil {
		return nil, err
	}
	out, err := s.repo.QueryCategories(ctx, owner, entities.Filter{Active: entities.ActiveOnly()})
	if err != nil {
		return nil, core.WrapBackend("list categories", err)
	}
	sortNamed(out, func(c core.Category) string { return c.Name })
	return out, nil
}
