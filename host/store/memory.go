package store

import (
	"context"
	"fmt"
	"sync"

	"kioskctl/core"
)

// Memory is an in-process catalog and sales log
type Memory struct {
	mu    sync.RWMutex
	items []core.CatalogItem
	index map[string]int
	sales []core.SaleEvent
}

// NewMemory creates a catalog holding items in order
func NewMemory(items ...core.CatalogItem) (*Memory, error) {
	m := &Memory{}
	if err := m.Replace(context.Background(), items); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Memory) Get(_ context.Context, barcode string) (core.CatalogItem, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.index[barcode]
	if !ok {
		return core.CatalogItem{}, false, nil
	}
	return m.items[i], true, nil
}

func (m *Memory) List(context.Context) ([]core.CatalogItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.CatalogItem, len(m.items))
	copy(out, m.items)
	return out, nil
}

func (m *Memory) Put(_ context.Context, item core.CatalogItem) error {
	if err := core.ValidateItems([]core.CatalogItem{item}); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if i, ok := m.index[item.ID]; ok {
		m.items[i] = item
		return nil
	}
	m.index[item.ID] = len(m.items)
	m.items = append(m.items, item)
	return nil
}

func (m *Memory) Delete(_ context.Context, barcode string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.index[barcode]
	if !ok {
		return fmt.Errorf("product %s: %w", barcode, ErrNotFound)
	}
	m.items = append(m.items[:i], m.items[i+1:]...)
	m.reindex()
	return nil
}

func (m *Memory) Replace(_ context.Context, items []core.CatalogItem) error {
	if err := core.ValidateItems(items); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append([]core.CatalogItem(nil), items...)
	m.reindex()
	return nil
}

func (m *Memory) Record(_ context.Context, sale core.SaleEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sales = append(m.sales, sale)
	return nil
}

// Sales returns the recorded sales, oldest first
func (m *Memory) Sales() []core.SaleEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]core.SaleEvent(nil), m.sales...)
}

func (m *Memory) reindex() {
	m.index = make(map[string]int, len(m.items))
	for i, item := range m.items {
		m.index[item.ID] = i
	}
}
