package datastore

import (
	"context"
	"strings"
	"sync"
)

// Memory is a mutex-guarded map of path to node, used in tests and for
// quick local runs without any backing service.
type Memory struct {
	mu    sync.RWMutex
	nodes map[string]map[string]any
}

func NewMemory() *Memory {
	return &Memory{
		nodes: make(map[string]map[string]any),
	}
}

func (m *Memory) Write(ctx context.Context, path string, value map[string]any) error {
	cp := make(map[string]any, len(value))

	for k, v := range value {
		cp[k] = v
	}

	m.mu.Lock()
	m.nodes[path] = cp
	m.mu.Unlock()

	return nil
}

func (m *Memory) Read(ctx context.Context, path string) (map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	node, ok := m.nodes[path]

	if ok {
		return copyNode(node), nil
	}

	// collection path: collect direct children
	out := make(map[string]any)
	prefix := path + "/"

	for p, child := range m.nodes {
		if strings.HasPrefix(p, prefix) && !strings.Contains(p[len(prefix):], "/") {
			out[p[len(prefix):]] = copyNode(child)
		}
	}

	if len(out) == 0 {
		return nil, ErrNotFound
	}

	return out, nil
}

func (m *Memory) Update(ctx context.Context, path string, partial map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	node, ok := m.nodes[path]

	if !ok {
		node = make(map[string]any, len(partial))
		m.nodes[path] = node
	}

	for k, v := range partial {
		node[k] = v
	}

	return nil
}

func (m *Memory) Delete(ctx context.Context, path string) error {
	m.mu.Lock()
	delete(m.nodes, path)
	m.mu.Unlock()

	return nil
}

func (m *Memory) QueryEqual(ctx context.Context, collection, field, value string) (map[string]map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]map[string]any)
	prefix := collection + "/"

	for p, child := range m.nodes {
		if !strings.HasPrefix(p, prefix) || strings.Contains(p[len(prefix):], "/") {
			continue
		}

		s, ok := child[field].(string)

		if ok && s == value {
			out[p[len(prefix):]] = copyNode(child)
		}
	}

	return out, nil
}

func copyNode(node map[string]any) map[string]any {
	cp := make(map[string]any, len(node))

	for k, v := range node {
		cp[k] = v
	}

	return cp
}
