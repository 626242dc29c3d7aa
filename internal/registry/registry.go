// Package registry keeps track of the listening sockets a process has open.
package registry

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nmezhenskyi/listend/internal/bind"
)

// Entry is a registered listening socket.
type Entry struct {
	ID      string
	Name    string
	Socket  *bind.ListeningSocket
	Created time.Time
}

type Registry struct {
	sync.RWMutex
	items map[string]Entry
}

func New() *Registry {
	return &Registry{items: make(map[string]Entry)}
}

// Add registers ls under name and returns the generated entry id.
// Names need not be unique.
func (r *Registry) Add(name string, ls *bind.ListeningSocket) string {
	id := uuid.NewString()
	r.Lock()
	r.items[id] = Entry{ID: id, Name: name, Socket: ls, Created: time.Now()}
	r.Unlock()
	return id
}

func (r *Registry) Get(id string) (entry Entry, ok bool) {
	r.RLock()
	entry, ok = r.items[id]
	r.RUnlock()
	return entry, ok
}

// Delete forgets the entry without closing its socket.
func (r *Registry) Delete(id string) {
	r.Lock()
	delete(r.items, id)
	r.Unlock()
}

func (r *Registry) Purge() {
	r.Lock()
	r.items = make(map[string]Entry)
	r.Unlock()
}

func (r *Registry) Length() int {
	r.RLock()
	length := len(r.items)
	r.RUnlock()
	return length
}

// List returns a snapshot of all entries ordered by name, then id.
func (r *Registry) List() []Entry {
	r.RLock()
	entries := make([]Entry, 0, len(r.items))
	for _, e := range r.items {
		entries = append(entries, e)
	}
	r.RUnlock()
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Name != entries[j].Name {
			return entries[i].Name < entries[j].Name
		}
		return entries[i].ID < entries[j].ID
	})
	return entries
}

// CloseAll closes every registered socket and returns the joined close
// errors. Entries stay registered and report Closed afterwards.
func (r *Registry) CloseAll() error {
	var errs []error
	for _, e := range r.List() {
		if err := e.Socket.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
