// Package testutil provides provider doubles and fixtures for tests.
package testutil

import (
	"context"
	"sync"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"termchat/model"
)

// MockProvider implements model.Provider with overridable behaviour. Every
// request is recorded in Requests.
type MockProvider struct {
	ChatFunc          func(ctx context.Context, messages []model.Message, opts model.ChatOptions, callback model.StreamCallback) error
	ChatWithToolsFunc func(ctx context.Context, messages []model.Message, tools []mcptypes.Tool, opts model.ChatOptions, callback model.StreamCallback) error
	ListModelsFunc    func(ctx context.Context) ([]model.ModelInfo, error)
	PingFunc          func(ctx context.Context) error

	mu           sync.Mutex
	requests     []Request
	currentModel string
}

// Request is one recorded Chat or ChatWithTools call.
type Request struct {
	Messages []model.Message
	Tools    []mcptypes.Tool
	Options  model.ChatOptions
}

// NewMockProvider creates a mock provider with default implementations
func NewMockProvider(modelName string) *MockProvider {
	mock := &MockProvider{currentModel: modelName}
	mock.ChatFunc = mock.defaultChat
	mock.ChatWithToolsFunc = mock.defaultChatWithTools
	mock.ListModelsFunc = mock.defaultListModels
	mock.PingFunc = mock.defaultPing
	return mock
}

// StreamingProvider returns a mock whose Chat streams chunks in order.
func StreamingProvider(chunks ...string) *MockProvider {
	mock := NewMockProvider("mock-model")
	mock.ChatFunc = func(ctx context.Context, _ []model.Message, _ model.ChatOptions, callback model.StreamCallback) error {
		for _, c := range chunks {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := callback(c, nil); err != nil {
				return err
			}
		}
		return nil
	}
	return mock
}

func (m *MockProvider) defaultChat(ctx context.Context, messages []model.Message, opts model.ChatOptions, callback model.StreamCallback) error {
	if len(messages) > 0 {
		return callback("Mock response", nil)
	}
	return nil
}

func (m *MockProvider) defaultChatWithTools(ctx context.Context, messages []model.Message, tools []mcptypes.Tool, opts model.ChatOptions, callback model.StreamCallback) error {
	return callback("Mock response with tools", nil)
}

func (m *MockProvider) defaultListModels(ctx context.Context) ([]model.ModelInfo, error) {
	return []model.ModelInfo{
		{Name: "mock-model-1", Size: 1000, Provider: "mock"},
		{Name: "mock-model-2", Size: 2000, Provider: "mock"},
	}, nil
}

func (m *MockProvider) defaultPing(ctx context.Context) error {
	return nil
}

func (m *MockProvider) record(messages []model.Message, tools []mcptypes.Tool, opts model.ChatOptions) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := make([]model.Message, len(messages))
	copy(msgs, messages)
	m.requests = append(m.requests, Request{Messages: msgs, Tools: tools, Options: opts})
}

// Requests returns the recorded requests in call order.
func (m *MockProvider) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

func (m *MockProvider) Chat(ctx context.Context, messages []model.Message, opts model.ChatOptions, callback model.StreamCallback) error {
	m.record(messages, nil, opts)
	return m.ChatFunc(ctx, messages, opts, callback)
}

func (m *MockProvider) ChatWithTools(ctx context.Context, messages []model.Message, tools []mcptypes.Tool, opts model.ChatOptions, callback model.StreamCallback) error {
	m.record(messages, tools, opts)
	return m.ChatWithToolsFunc(ctx, messages, tools, opts, callback)
}

func (m *MockProvider) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	return m.ListModelsFunc(ctx)
}

func (m *MockProvider) GetModel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentModel
}

func (m *MockProvider) SetModel(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentModel = name
}

func (m *MockProvider) Ping(ctx context.Context) error {
	return m.PingFunc(ctx)
}
