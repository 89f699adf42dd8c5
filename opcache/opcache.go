// Package opcache implements the operation cache (spec section 4.8):
// parse→bind→solve→plan results, keyed by (document-hash, operation-
// name, schema-version), with LRU-by-count eviction, optional TTL, and
// an at-most-one-build invariant for concurrent misses on the same key.
package opcache

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/fieldgraph/gateway/bind"
	"github.com/fieldgraph/gateway/plan"
	"github.com/fieldgraph/gateway/schema"
	"github.com/fieldgraph/gateway/solve"
)

// CompiledOperation is the cached product of one document's compile
// pipeline: everything the executor needs to run a request against it,
// independent of the request's own variables or auth context.
type CompiledOperation struct {
	Document      string
	OperationName string
	Operation     *bind.BoundOperation
	Result        *plan.Result
}

// CompileFunc runs the full compile pipeline for one document against
// a schema view. Tests substitute a fake to exercise coalescing without
// a real schema.
type CompileFunc func(view *schema.View, document, operationName string) (*CompiledOperation, error)

// Default wires the real pipeline: gqlparser parse → bind.Bind →
// solve.Solve → plan.Build.
func Default(view *schema.View, document, operationName string) (*CompiledOperation, error) {
	doc, err := parser.ParseQuery(&ast.Source{Input: document})
	if err != nil {
		return nil, &bind.ParseError{Detail: err.Error()}
	}
	op, err := bind.Bind(view, doc, operationName)
	if err != nil {
		return nil, err
	}
	sol, err := solve.Solve(view, op)
	if err != nil {
		return nil, err
	}
	res, err := plan.Build(sol)
	if err != nil {
		return nil, err
	}
	return &CompiledOperation{Document: document, OperationName: operationName, Operation: op, Result: res}, nil
}

// Key computes the operation cache key described in spec section 4.8.
func Key(document, operationName, schemaVersion string) string {
	sum := sha256.Sum256([]byte(document))
	return hex.EncodeToString(sum[:]) + "\x00" + operationName + "\x00" + schemaVersion
}

type entry struct {
	key     string
	value   *CompiledOperation
	expires time.Time
	elem    *list.Element
}

// Cache is an LRU-by-count cache of CompiledOperations with optional
// TTL and an optional PersistentStore for warm-on-reload. Safe for
// concurrent use; a miss for a given key coalesces concurrent callers
// onto one compilation via singleflight, matching the "standard
// concurrent map semantics with coalesced single-flight" spec section 5
// requires of this component.
type Cache struct {
	mu      sync.Mutex
	limit   int
	ttl     time.Duration
	ll      *list.List
	items   map[string]*entry
	group   singleflight.Group
	compile CompileFunc
	persist PersistentStore
}

// New creates a Cache holding at most limit entries (0 = unbounded),
// each valid for ttl after it's built (0 = no expiry).
func New(limit int, ttl time.Duration, compile CompileFunc, persist PersistentStore) *Cache {
	if compile == nil {
		compile = Default
	}
	return &Cache{
		limit:   limit,
		ttl:     ttl,
		ll:      list.New(),
		items:   make(map[string]*entry),
		compile: compile,
		persist: persist,
	}
}

// Get returns the CompiledOperation for (document, operationName) under
// the given view, compiling on a miss. schemaVersion should be
// view.Version; it's passed separately so callers computing the key
// themselves (e.g. to pre-warm) stay consistent with Get.
func (c *Cache) Get(ctx context.Context, view *schema.View, schemaVersion, document, operationName string) (*CompiledOperation, error) {
	key := Key(document, operationName, schemaVersion)

	if v, ok := c.lookup(key); ok {
		return v, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		// Re-check: another caller may have finished compiling this
		// exact key while we were waiting to enter the singleflight
		// group (the group itself already dedupes concurrent callers,
		// this only matters for a caller arriving just after the group
		// call that built it returned).
		if v, ok := c.lookup(key); ok {
			return v, nil
		}
		compiled, err := c.compile(view, document, operationName)
		if err != nil {
			return nil, err
		}
		c.store(key, compiled)
		if c.persist != nil {
			_ = c.persist.Save(ctx, key, document, operationName, schemaVersion)
		}
		return compiled, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*CompiledOperation), nil
}

func (c *Cache) lookup(key string) (*CompiledOperation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		return nil, false
	}
	if c.ttl > 0 && time.Now().After(e.expires) {
		c.removeLocked(e)
		return nil, false
	}
	c.ll.MoveToFront(e.elem)
	return e.value, true
}

func (c *Cache) store(key string, compiled *CompiledOperation) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[key]; ok {
		e.value = compiled
		if c.ttl > 0 {
			e.expires = time.Now().Add(c.ttl)
		}
		c.ll.MoveToFront(e.elem)
		return
	}

	e := &entry{key: key, value: compiled}
	if c.ttl > 0 {
		e.expires = time.Now().Add(c.ttl)
	}
	e.elem = c.ll.PushFront(e)
	c.items[key] = e

	for c.limit > 0 && c.ll.Len() > c.limit {
		oldest := c.ll.Back()
		c.removeLocked(oldest.Value.(*entry))
	}
}

func (c *Cache) removeLocked(e *entry) {
	c.ll.Remove(e.elem)
	delete(c.items, e.key)
}

// Len reports the number of entries currently cached.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// WarmOnReload recompiles every persisted document against a freshly
// loaded view and repopulates the in-memory cache under the new
// view's schema version, so the first requests after a hot-reload (or
// after a process restart with operation_caching.warm_on_reload set)
// don't pay a cold-compile on the cache's busiest keys.
func (c *Cache) WarmOnReload(ctx context.Context, view *schema.View) error {
	if c.persist == nil {
		return nil
	}
	docs, err := c.persist.Load(ctx)
	if err != nil {
		return err
	}
	for _, d := range docs {
		compiled, err := c.compile(view, d.Document, d.OperationName)
		if err != nil {
			continue
		}
		c.store(Key(d.Document, d.OperationName, view.Version), compiled)
	}
	return nil
}
