package mocks

import (
	"context"
	"iter"
	"time"

	"github.com/stretchr/testify/mock"

	"shortlink-analytics/internal/model"
	"shortlink-analytics/internal/store"
)

// LinkStore is a mock implementation of store.LinkStore
type LinkStore struct {
	mock.Mock
}

func (m *LinkStore) ResolveBySlug(ctx context.Context, slug string) (*model.ShortLink, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ShortLink), args.Error(1)
}

func (m *LinkStore) FindByID(ctx context.Context, id uint) (*model.ShortLink, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ShortLink), args.Error(1)
}

func (m *LinkStore) IncrementClickCount(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *LinkStore) SlugTaken(ctx context.Context, candidate string) (bool, error) {
	args := m.Called(ctx, candidate)
	return args.Bool(0), args.Error(1)
}

func (m *LinkStore) Create(ctx context.Context, link *model.ShortLink) error {
	args := m.Called(ctx, link)
	return args.Error(0)
}

func (m *LinkStore) Update(ctx context.Context, link *model.ShortLink) error {
	args := m.Called(ctx, link)
	return args.Error(0)
}

func (m *LinkStore) Delete(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *LinkStore) ListByOwner(ctx context.Context, filter store.LinkFilter) ([]model.ShortLink, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]model.ShortLink), args.Get(1).(int64), args.Error(2)
}

func (m *LinkStore) ListActiveByOwner(ctx context.Context, ownerID uint, now time.Time) ([]model.ShortLink, error) {
	args := m.Called(ctx, ownerID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ShortLink), args.Error(1)
}

func (m *LinkStore) CountByOwner(ctx context.Context, ownerID uint) (int64, error) {
	args := m.Called(ctx, ownerID)
	return args.Get(0).(int64), args.Error(1)
}

// ClickStore is a mock implementation of store.ClickStore
type ClickStore struct {
	mock.Mock
}

func (m *ClickStore) Append(ctx context.Context, click *model.ClickLog) (uint, error) {
	args := m.Called(ctx, click)
	return args.Get(0).(uint), args.Error(1)
}

func (m *ClickStore) Query(ctx context.Context, filter store.ClickFilter) iter.Seq2[model.ClickLog, error] {
	args := m.Called(ctx, filter)
	return args.Get(0).(iter.Seq2[model.ClickLog, error])
}

func (m *ClickStore) AggregateBy(ctx context.Context, linkID uint, dim store.Dimension, limit int, from *time.Time) ([]store.FacetCount, error) {
	args := m.Called(ctx, linkID, dim, limit, from)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]store.FacetCount), args.Error(1)
}

func (m *ClickStore) Count(ctx context.Context, filter store.ClickFilter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *ClickStore) CountDistinctIPs(ctx context.Context, linkID uint) (int64, error) {
	args := m.Called(ctx, linkID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *ClickStore) Recent(ctx context.Context, linkID uint, limit int) ([]model.ClickLog, error) {
	args := m.Called(ctx, linkID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ClickLog), args.Error(1)
}

var _ store.LinkStore = (*LinkStore)(nil)
var _ store.ClickStore = (*ClickStore)(nil)
