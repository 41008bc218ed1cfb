// Package testutil holds mocks shared by service tests.
package testutil

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"farmlink/platform/platform-backend/internal/notifications"
)

// MockS3Client is a mock implementation of storage.S3Client
type MockS3Client struct {
	mock.Mock
}

func (m *MockS3Client) Upload(ctx context.Context, bucket, key, contentType string, body io.Reader) error {
	return m.Called(ctx, bucket, key, contentType, body).Error(0)
}

func (m *MockS3Client) Download(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	args := m.Called(ctx, bucket, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

func (m *MockS3Client) Delete(ctx context.Context, bucket, key string) error {
	return m.Called(ctx, bucket, key).Error(0)
}

func (m *MockS3Client) GetPresignedURL(ctx context.Context, bucket, key string, expiration time.Duration) (string, error) {
	args := m.Called(ctx, bucket, key, expiration)
	return args.String(0), args.Error(1)
}

// MockIPFSClient is a mock implementation of storage.IPFSClient
type MockIPFSClient struct {
	mock.Mock
}

func (m *MockIPFSClient) PinFile(ctx context.Context, name string, body io.Reader) (string, error) {
	args := m.Called(ctx, name, body)
	return args.String(0), args.Error(1)
}

func (m *MockIPFSClient) UnpinFile(ctx context.Context, cid string) error {
	return m.Called(ctx, cid).Error(0)
}

// Publisher records published notifications and project broadcasts
type Publisher struct {
	mu         sync.Mutex
	Messages   []notifications.Message
	Broadcasts []Broadcast
	Err        error
}

type Broadcast struct {
	ProjectID uuid.UUID
	Event     string
	Data      map[string]interface{}
}

func (p *Publisher) Publish(_ context.Context, msg notifications.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Messages = append(p.Messages, msg)
	return p.Err
}

func (p *Publisher) BroadcastProject(projectID uuid.UUID, event string, data map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Broadcasts = append(p.Broadcasts, Broadcast{ProjectID: projectID, Event: event, Data: data})
}

// Kinds lists the kinds of published messages in order
func (p *Publisher) Kinds() []notifications.Kind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]notifications.Kind, len(p.Messages))
	for i, m := range p.Messages {
		out[i] = m.Kind
	}
	return out
}

// Invalidator records the users whose cached read models were dropped
type Invalidator struct {
	mu  sync.Mutex
	ids []uuid.UUID
}

func (i *Invalidator) Invalidate(ids ...uuid.UUID) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.ids = append(i.ids, ids...)
}

// IDs returns every invalidated user in call order
func (i *Invalidator) IDs() []uuid.UUID {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]uuid.UUID(nil), i.ids...)
}

// Reset forgets recorded invalidations
func (i *Invalidator) Reset() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.ids = nil
}
