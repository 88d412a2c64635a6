package storage

import (
	"slices"

	"github.com/wippyai/ejb-bridge/errors"
)

// ListIndex is a proxy to a named list inside a view.
// It holds no resources of its own; closing its view invalidates it.
type ListIndex struct {
	view View
	name string
}

// NewListIndex binds a list proxy to a view.
func NewListIndex(v View, name string) *ListIndex {
	return &ListIndex{view: v, name: name}
}

// Name returns the list name.
func (l *ListIndex) Name() string { return l.name }

// Size returns the number of items.
func (l *ListIndex) Size() (int, error) {
	items, err := l.view.load(l.name)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// Get returns a copy of the item at index i.
func (l *ListIndex) Get(i int) ([]byte, error) {
	items, err := l.view.load(l.name)
	if err != nil {
		return nil, err
	}
	if i < 0 || i >= len(items) {
		return nil, errors.OutOfBounds(errors.PhaseEntry, i, len(items))
	}
	return slices.Clone(items[i]), nil
}

// Add appends a copy of value.
func (l *ListIndex) Add(value []byte) error {
	v := slices.Clone(value)
	return l.view.update(l.name, func(items [][]byte) [][]byte {
		return append(slices.Clip(items), v)
	})
}

// Clear removes every item.
func (l *ListIndex) Clear() error {
	return l.view.update(l.name, func([][]byte) [][]byte {
		return nil
	})
}
