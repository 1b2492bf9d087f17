package ingest

import (
	"context"
	"io"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/jchook/retrace/internal/entity"
	"github.com/jchook/retrace/internal/fetch"
	"github.com/jchook/retrace/internal/repository"
	"github.com/jchook/retrace/internal/storage"
)

type mockMarkRepo struct {
	mock.Mock
}

func (m *mockMarkRepo) Create(ctx context.Context, mark *entity.Mark) error {
	return m.Called(ctx, mark).Error(0)
}

func (m *mockMarkRepo) Get(ctx context.Context, id string) (*entity.Mark, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Mark), args.Error(1)
}

func (m *mockMarkRepo) SetStatus(ctx context.Context, id string, status entity.MarkStatus) error {
	return m.Called(ctx, id, status).Error(0)
}

func (m *mockMarkRepo) SetStatusError(ctx context.Context, id string, status entity.MarkStatus, errText string) error {
	return m.Called(ctx, id, status, errText).Error(0)
}

func (m *mockMarkRepo) SetError(ctx context.Context, id string, errText string) error {
	return m.Called(ctx, id, errText).Error(0)
}

func (m *mockMarkRepo) TouchCaptureTimes(ctx context.Context, id string, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

type mockAccessRepo struct {
	mock.Mock
}

func (m *mockAccessRepo) Create(ctx context.Context, markID string) (*entity.Access, error) {
	args := m.Called(ctx, markID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Access), args.Error(1)
}

func (m *mockAccessRepo) Get(ctx context.Context, id string) (*entity.Access, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Access), args.Error(1)
}

func (m *mockAccessRepo) FinalizeSuccess(ctx context.Context, id string, meta repository.AccessMeta) error {
	return m.Called(ctx, id, meta).Error(0)
}

func (m *mockAccessRepo) FinalizeFailure(ctx context.Context, id string, errText string) error {
	return m.Called(ctx, id, errText).Error(0)
}

func (m *mockAccessRepo) SetError(ctx context.Context, id string, errText string) error {
	return m.Called(ctx, id, errText).Error(0)
}

type mockCaptureRepo struct {
	mock.Mock
}

func (m *mockCaptureRepo) Create(ctx context.Context, capture *entity.Capture) error {
	return m.Called(ctx, capture).Error(0)
}

func (m *mockCaptureRepo) ListByAccess(ctx context.Context, accessID string) ([]*entity.Capture, error) {
	args := m.Called(ctx, accessID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entity.Capture), args.Error(1)
}

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) Fetch(ctx context.Context, url string) (*fetch.Result, error) {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fetch.Result), args.Error(1)
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) EnsureDir(ctx context.Context, dir string) error {
	return m.Called(ctx, dir).Error(0)
}

func (m *mockStore) Write(ctx context.Context, key string, r io.Reader) (storage.WriteResult, error) {
	args := m.Called(ctx, key, r)
	return args.Get(0).(storage.WriteResult), args.Error(1)
}

func (m *mockStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

func (m *mockStore) Exists(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}
