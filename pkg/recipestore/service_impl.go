package recipestore

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// service implements the Service interface
type service struct {
	store     Store
	bucket    Bucket
	languages map[string]struct{}
	ordered   []string
	logger    *slog.Logger
	hooks     *Hooks
	now       func() time.Time
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithStore sets the document store
func WithStore(store Store) Option {
	return func(s *service) {
		s.store = store
	}
}

// WithBucket sets the binary object bucket
func WithBucket(bucket Bucket) Option {
	return func(s *service) {
		s.bucket = bucket
	}
}

// WithLanguages sets the recipe variants. Codes are lower-cased.
func WithLanguages(languages ...string) Option {
	return func(s *service) {
		for _, lang := range languages {
			code := strings.ToLower(strings.TrimSpace(lang))
			if code == "" {
				continue
			}
			if _, ok := s.languages[code]; ok {
				continue
			}
			s.languages[code] = struct{}{}
			s.ordered = append(s.ordered, code)
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithHooks sets lifecycle hooks
func WithHooks(hooks *Hooks) Option {
	return func(s *service) {
		s.hooks = hooks
	}
}

// WithClock overrides the time source used for metadata timestamps
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		languages: make(map[string]struct{}),
		logger:    slog.Default(),
		now:       time.Now,
	}

	for _, option := range options {
		option(s)
	}

	if s.store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if s.bucket == nil {
		return nil, fmt.Errorf("bucket is required")
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s, nil
}

func (s *service) Languages() []string {
	out := make([]string, len(s.ordered))
	copy(out, s.ordered)
	return out
}
