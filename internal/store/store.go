// Package store holds the session's document collection in memory.
package store

import (
	"sync"

	"github.com/dgallion1/pdfsearch/internal/document"
)

// Collection is an ordered, in-memory set of processed documents. Documents
// are appended in insertion order and are never partially constructed.
type Collection struct {
	mu   sync.RWMutex
	docs []document.Document
}

func New() *Collection {
	return &Collection{}
}

// Add appends all docs in one step.
func (c *Collection) Add(docs ...document.Document) {
	if len(docs) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs = append(c.docs, docs...)
}

// Remove deletes the document with id and reports whether it existed.
func (c *Collection) Remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, d := range c.docs {
		if d.ID == id {
			c.docs = append(c.docs[:i:i], c.docs[i+1:]...)
			return true
		}
	}
	return false
}

// Clear removes every document and returns how many were dropped.
func (c *Collection) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.docs)
	c.docs = nil
	return n
}

// Get returns the document with id.
func (c *Collection) Get(id string) (document.Document, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, d := range c.docs {
		if d.ID == id {
			return d, true
		}
	}
	return document.Document{}, false
}

// Snapshot returns the documents in insertion order. Documents are immutable
// once added, so the returned slice shares their page data.
func (c *Collection) Snapshot() []document.Document {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]document.Document, len(c.docs))
	copy(out, c.docs)
	return out
}

// Len returns the number of documents.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.docs)
}
