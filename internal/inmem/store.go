// Package inmem provides in-memory store and engine implementations
// of the runner's collaborator contracts, for tests and the dev
// server.
package inmem

import (
	"context"
	"fmt"
	"sync"

	language "github.com/hanpama/chainql/internal/language"
	load "github.com/hanpama/chainql/internal/load"
	store "github.com/hanpama/chainql/internal/store"
)

// Row is one entity version, visible from Block onward.
type Row struct {
	Block uint64
	Value map[string]any
}

// Deployment is a fixture subgraph: a schema, per-root-field entity
// tables, and a mutable indexing state.
type Deployment struct {
	Name      string
	Network   string
	SchemaSDL string
	State     store.DeploymentState
	// Tables maps root field names to their rows, in insertion order.
	Tables map[string][]Row

	schema *language.Schema
}

// Store is an in-memory store.Manager plus subscription manager. Its
// deployment states can be mutated between (or during) calls to
// simulate indexing progress and reorgs.
type Store struct {
	mu          sync.Mutex
	deployments map[string]*Deployment
	waitStats   *load.MovingStats
	subscribers map[string][]chan store.Event
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		deployments: make(map[string]*Deployment),
		waitStats:   load.NewMovingStats(),
		subscribers: make(map[string][]chan store.Event),
	}
}

// Add registers a deployment fixture.
func (s *Store) Add(d *Deployment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d.State.Deployment = d.Name
	s.deployments[d.Name] = d
}

// SetState replaces a deployment's indexing state, e.g. to simulate a
// reorg between a query's start and end.
func (s *Store) SetState(name string, state store.DeploymentState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.deployments[name]; ok {
		state.Deployment = name
		d.State = state
	}
}

// Notify delivers a store event to all subscribers of a deployment.
func (s *Store) Notify(name string, block uint64) {
	s.mu.Lock()
	subs := append([]chan store.Event(nil), s.subscribers[name]...)
	s.mu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- store.Event{Deployment: name, Block: block}:
		default:
		}
	}
}

// Subscribe implements engine.SubscriptionManager.
func (s *Store) Subscribe(ctx context.Context, deployment string) (<-chan store.Event, func()) {
	ch := make(chan store.Event, 16)
	s.mu.Lock()
	s.subscribers[deployment] = append(s.subscribers[deployment], ch)
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			subs := s.subscribers[deployment]
			for i, c := range subs {
				if c == ch {
					s.subscribers[deployment] = append(subs[:i:i], subs[i+1:]...)
					break
				}
			}
			s.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// QueryStore implements store.Manager.
func (s *Store) QueryStore(ctx context.Context, target store.Target, forSubscription bool) (store.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deployments[target.Deployment]
	if !ok {
		return nil, fmt.Errorf("deployment %q not found", target.Deployment)
	}
	if d.schema == nil {
		sch, err := language.LoadSchema(d.Name, d.SchemaSDL)
		if err != nil {
			return nil, err
		}
		d.schema = sch
	}
	return &handle{store: s, deployment: d}, nil
}

type handle struct {
	store      *Store
	deployment *Deployment
	released   bool
}

func (h *handle) DeploymentState(ctx context.Context) (store.DeploymentState, error) {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	return h.deployment.State, nil
}

func (h *handle) BlockPtr(ctx context.Context, c store.BlockConstraint) (store.BlockPtr, error) {
	h.store.mu.Lock()
	latest := h.deployment.State.LatestBlock
	h.store.mu.Unlock()

	switch c.Kind {
	case store.Latest:
		return blockPtr(latest), nil
	case store.Number:
		if c.Number > latest {
			return store.BlockPtr{}, fmt.Errorf("deployment %s has only indexed up to block %d and data for block %d is not yet available", h.deployment.Name, latest, c.Number)
		}
		return blockPtr(c.Number), nil
	case store.Hash:
		for n := uint64(0); n <= latest; n++ {
			if blockHash(n) == c.Hash {
				return blockPtr(n), nil
			}
		}
		return store.BlockPtr{}, fmt.Errorf("deployment %s has no indexed block with hash %s", h.deployment.Name, c.Hash)
	case store.NumberGTE:
		if c.Number > latest {
			return store.BlockPtr{}, fmt.Errorf("deployment %s has only indexed up to block %d, below the required minimum block %d", h.deployment.Name, latest, c.Number)
		}
		return blockPtr(latest), nil
	default:
		return store.BlockPtr{}, fmt.Errorf("unknown block constraint kind %d", c.Kind)
	}
}

func (h *handle) NetworkName() string { return h.deployment.Network }

func (h *handle) APISchema() (*language.Schema, error) { return h.deployment.schema, nil }

func (h *handle) WaitStats() *load.MovingStats { return h.store.waitStats }

func (h *handle) Release() { h.released = true }

// rows returns the versions of a root field's table visible at block.
func (h *handle) rows(field string, block uint64) []Row {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	var out []Row
	for _, row := range h.deployment.Tables[field] {
		if row.Block <= block {
			out = append(out, row)
		}
	}
	return out
}

func blockPtr(n uint64) store.BlockPtr {
	return store.BlockPtr{Number: n, Hash: blockHash(n)}
}

func blockHash(n uint64) string {
	return fmt.Sprintf("0x%064x", n)
}
