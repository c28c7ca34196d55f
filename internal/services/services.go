// Package services holds the record services and aggregation services the
// HTTP layer consumes. Every call takes the caller's session explicitly; a
// nil or anonymous session yields core.ErrAuthRequired before any I/O.
package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jhonier182/lista-mercado/internal/core"
)

// PriceEventPublisher announces appended price entries. Implementations must
// not block the write path for long; publish failures are logged only.
type PriceEventPublisher interface {
	PublishPriceRecorded(ctx context.Context, entry core.PriceHistoryEntry, productName string) error
}

type settings struct {
	now func() time.Time
	loc *time.Location
	ids func() string
}

// Option customizes a service.
type Option func(*settings)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

// WithLocation sets the time zone used to cut calendar months.
func WithLocation(loc *time.Location) Option {
	return func(s *settings) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithIDGenerator replaces the UUID generator.
func WithIDGenerator(ids func() string) Option {
	return func(s *settings) { s.ids = ids }
}

func newSettings(opts []Option) settings {
	s := settings{now: time.Now, loc: time.UTC, ids: uuid.NewString}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

func (s settings) clock() time.Time {
	return s.now().In(s.loc)
}

func requireID(id string) error {
	if strings.TrimSpace(id) == "" {
		return core.NewValidationError("id", "is required")
	}
	return nil
}

func sortNamed[T any](items []T, name func(T) string) {
	sort.SliceStable(items, func(i, j int) bool {
		return strings.ToLower(name(items[i])) < strings.ToLower(name(items[j]))
	})
}

var errReportsDisabled = errors.New("report export not configured")
