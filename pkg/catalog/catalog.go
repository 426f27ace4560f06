// Package catalog stores advertisement template descriptors and serves
// bounded listings and point lookups to the conversation pipeline.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/adforge/adforge/pkg/kv"
)

// ErrNotFound is returned when a template id has no descriptor.
var ErrNotFound = errors.New("catalog: template not found")

// Template describes one advertisement template. Immutable once fetched.
type Template struct {
	ID          string `msgpack:"id" json:"id"`
	Title       string `msgpack:"title" json:"title"`
	Description string `msgpack:"description" json:"description"`
	ImageURL    string `msgpack:"image_url" json:"image_url"`

	// Instructions optionally steer image generation for this template.
	Instructions string `msgpack:"instructions,omitempty" json:"instructions,omitempty"`
}

// Store is the catalog contract the conversation core consumes.
type Store interface {
	// List returns up to limit templates in stable (id) order. A
	// non-positive limit returns everything.
	List(ctx context.Context, limit int) ([]Template, error)

	// Get returns the template with the given id, or ErrNotFound.
	Get(ctx context.Context, id string) (Template, error)
}

// KV is a Store backed by a kv.Store, with msgpack-encoded descriptors
// under the "catalog" prefix.
type KV struct {
	store kv.Store
}

// NewKV creates a catalog over the given kv.Store.
func NewKV(store kv.Store) *KV {
	return &KV{store: store}
}

func templateKey(id string) kv.Key { return kv.Key{"catalog", id} }

func (c *KV) List(ctx context.Context, limit int) ([]Template, error) {
	var out []Template
	for e, err := range c.store.List(ctx, kv.Key{"catalog"}) {
		if err != nil {
			return nil, fmt.Errorf("catalog: list: %w", err)
		}
		var t Template
		if err := msgpack.Unmarshal(e.Value, &t); err != nil {
			return nil, fmt.Errorf("catalog: decode %s: %w", e.Key, err)
		}
		out = append(out, t)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (c *KV) Get(ctx context.Context, id string) (Template, error) {
	data, err := c.store.Get(ctx, templateKey(id))
	if errors.Is(err, kv.ErrNotFound) {
		return Template{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Template{}, fmt.Errorf("catalog: get %s: %w", id, err)
	}
	var t Template
	if err := msgpack.Unmarshal(data, &t); err != nil {
		return Template{}, fmt.Errorf("catalog: decode %s: %w", id, err)
	}
	return t, nil
}

// Put stores one template descriptor, overwriting any previous version.
func (c *KV) Put(ctx context.Context, t Template) error {
	if t.ID == "" {
		return errors.New("catalog: template id is required")
	}
	data, err := msgpack.Marshal(t)
	if err != nil {
		return fmt.Errorf("catalog: encode %s: %w", t.ID, err)
	}
	return c.store.Set(ctx, templateKey(t.ID), data)
}

// Seed atomically stores a batch of template descriptors.
func (c *KV) Seed(ctx context.Context, templates []Template) error {
	entries := make([]kv.Entry, 0, len(templates))
	for _, t := range templates {
		if t.ID == "" {
			return errors.New("catalog: template id is required")
		}
		data, err := msgpack.Marshal(t)
		if err != nil {
			return fmt.Errorf("catalog: encode %s: %w", t.ID, err)
		}
		entries = append(entries, kv.Entry{Key: templateKey(t.ID), Value: data})
	}
	return c.store.BatchSet(ctx, entries)
}
