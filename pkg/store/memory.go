package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Memory implements Store entirely in memory. It honors the same filter and
// update subset as the MongoDB implementation and is used by tests and
// single-node development setups.
type Memory struct {
	mu   sync.RWMutex
	dbs  map[string]*memDatabase
	fail error
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{dbs: make(map[string]*memDatabase)}
}

// SetError makes every subsequent operation return err until cleared with
// SetError(nil). Tests use this to exercise store-outage behavior.
func (m *Memory) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = err
}

func (m *Memory) database(name string) *memDatabase {
	m.mu.Lock()
	defer m.mu.Unlock()
	db, ok := m.dbs[name]
	if !ok {
		db = &memDatabase{store: m, colls: make(map[string]*memCollection)}
		m.dbs[name] = db
	}
	return db
}

// Platform returns the platform partition.
func (m *Memory) Platform() Database { return m.database("platform") }

// Tenant resolves a tenant key to its partition.
func (m *Memory) Tenant(tenantID string) (Database, error) {
	key := strings.TrimSpace(tenantID)
	if key == "" || !validTenantKey(key) {
		return nil, ErrInvalidTenant
	}
	return m.database("tenant:" + key), nil
}

// Legacy returns the legacy partition.
func (m *Memory) Legacy() Database { return m.database("legacy") }

// Ping reports the injected error, if any.
func (m *Memory) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fail
}

// Close is a no-op.
func (m *Memory) Close(ctx context.Context) error { return nil }

type memDatabase struct {
	store *Memory
	mu    sync.Mutex
	colls map[string]*memCollection
}

func (d *memDatabase) Collection(name string) Collection {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.colls[name]
	if !ok {
		c = &memCollection{store: d.store}
		d.colls[name] = c
	}
	return c
}

type memCollection struct {
	store *Memory
	mu    sync.Mutex
	docs  []map[string]interface{}
}

func (c *memCollection) failure() error {
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()
	return c.store.fail
}

func (c *memCollection) FindOne(ctx context.Context, filter M, out interface{}) error {
	if err := c.failure(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, doc := range c.docs {
		if matches(doc, filter) {
			return decode(doc, out)
		}
	}
	return ErrNotFound
}

func (c *memCollection) Find(ctx context.Context, filter M, opts *FindOptions, out interface{}) error {
	if err := c.failure(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var matched []map[string]interface{}
	for _, doc := range c.docs {
		if matches(doc, filter) {
			matched = append(matched, doc)
		}
	}
	if opts != nil {
		for field, dir := range opts.Sort {
			desc := toFloat(dir) < 0
			f := field
			sort.SliceStable(matched, func(i, j int) bool {
				cmp := compareValues(matched[i][f], matched[j][f])
				if desc {
					return cmp > 0
				}
				return cmp < 0
			})
		}
		if opts.Limit > 0 && int64(len(matched)) > opts.Limit {
			matched = matched[:opts.Limit]
		}
	}
	if matched == nil {
		matched = []map[string]interface{}{}
	}
	return decode(matched, out)
}

func (c *memCollection) InsertOne(ctx context.Context, doc interface{}) error {
	if err := c.failure(); err != nil {
		return err
	}
	stored, err := encode(doc)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs = append(c.docs, stored)
	return nil
}

func (c *memCollection) UpdateOne(ctx context.Context, filter M, update M) (int64, error) {
	return c.update(filter, update, true)
}

func (c *memCollection) UpdateMany(ctx context.Context, filter M, update M) (int64, error) {
	return c.update(filter, update, false)
}

func (c *memCollection) update(filter M, update M, single bool) (int64, error) {
	if err := c.failure(); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var matched int64
	for _, doc := range c.docs {
		if !matches(doc, filter) {
			continue
		}
		if err := applyUpdate(doc, update); err != nil {
			return matched, err
		}
		matched++
		if single {
			break
		}
	}
	return matched, nil
}

func (c *memCollection) DeleteOne(ctx context.Context, filter M) (int64, error) {
	return c.delete(filter, true)
}

func (c *memCollection) DeleteMany(ctx context.Context, filter M) (int64, error) {
	return c.delete(filter, false)
}

func (c *memCollection) delete(filter M, single bool) (int64, error) {
	if err := c.failure(); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var kept []map[string]interface{}
	var deleted int64
	for _, doc := range c.docs {
		if matches(doc, filter) && (!single || deleted == 0) {
			deleted++
			continue
		}
		kept = append(kept, doc)
	}
	c.docs = kept
	return deleted, nil
}

func (c *memCollection) CountDocuments(ctx context.Context, filter M) (int64, error) {
	if err := c.failure(); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	for _, doc := range c.docs {
		if matches(doc, filter) {
			n++
		}
	}
	return n, nil
}

// encode/decode round-trip documents through JSON so stored values are plain
// maps, slices, strings, bools and float64s regardless of the caller's types.
func encode(doc interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("store: encode document: %w", err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("store: encode document: %w", err)
	}
	return out, nil
}

func decode(doc interface{}, out interface{}) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("store: decode document: %w", err)
	}
	return json.Unmarshal(raw, out)
}

func normalize(v interface{}) interface{} {
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}

func matches(doc map[string]interface{}, filter M) bool {
	for key, cond := range filter {
		val := doc[key]
		if ops, ok := cond.(M); ok && hasOperator(ops) {
			if !matchOps(val, ops) {
				return false
			}
			continue
		}
		if ops, ok := cond.(map[string]interface{}); ok && hasOperator(ops) {
			if !matchOps(val, ops) {
				return false
			}
			continue
		}
		if compareValues(val, normalize(cond)) != 0 {
			return false
		}
	}
	return true
}

func hasOperator(m map[string]interface{}) bool {
	for k := range m {
		if strings.HasPrefix(k, "$") {
			return true
		}
	}
	return false
}

func matchOps(val interface{}, ops map[string]interface{}) bool {
	for op, arg := range ops {
		switch op {
		case "$ne":
			if compareValues(val, normalize(arg)) == 0 {
				return false
			}
		case "$in":
			in := false
			for _, item := range toSlice(arg) {
				if compareValues(val, normalize(item)) == 0 {
					in = true
					break
				}
			}
			if !in {
				return false
			}
		case "$lt":
			if !(compareValues(val, normalize(arg)) < 0) {
				return false
			}
		case "$lte":
			if compareValues(val, normalize(arg)) > 0 {
				return false
			}
		case "$gt":
			if !(compareValues(val, normalize(arg)) > 0) {
				return false
			}
		case "$gte":
			if compareValues(val, normalize(arg)) < 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func toSlice(v interface{}) []interface{} {
	switch s := v.(type) {
	case []interface{}:
		return s
	case []string:
		out := make([]interface{}, len(s))
		for i, item := range s {
			out[i] = item
		}
		return out
	default:
		return []interface{}{v}
	}
}

func applyUpdate(doc map[string]interface{}, update M) error {
	for op, arg := range update {
		fields, ok := arg.(M)
		if !ok {
			if alt, ok2 := arg.(map[string]interface{}); ok2 {
				fields = alt
			} else {
				return fmt.Errorf("store: malformed %s update", op)
			}
		}
		switch op {
		case "$set":
			for k, v := range fields {
				doc[k] = normalize(v)
			}
		case "$unset":
			for k := range fields {
				delete(doc, k)
			}
		case "$inc":
			for k, v := range fields {
				doc[k] = toFloat(doc[k]) + toFloat(v)
			}
		default:
			return fmt.Errorf("store: unsupported update operator %q", op)
		}
	}
	return nil
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}

// compareValues orders two stored values: nil first, then numbers, times,
// strings and bools. Timestamps are stored as RFC3339 strings by the JSON
// round-trip, so string pairs that parse as times compare chronologically.
func compareValues(a, b interface{}) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}
	af, aNum := numeric(a)
	bf, bNum := numeric(b)
	if aNum && bNum {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		at, aerr := time.Parse(time.RFC3339Nano, as)
		bt, berr := time.Parse(time.RFC3339Nano, bs)
		if aerr == nil && berr == nil {
			switch {
			case at.Before(bt):
				return -1
			case at.After(bt):
				return 1
			default:
				return 0
			}
		}
		return strings.Compare(as, bs)
	}
	ab, aokb := a.(bool)
	bb, bokb := b.(bool)
	if aokb && bokb {
		switch {
		case ab == bb:
			return 0
		case !ab:
			return -1
		default:
			return 1
		}
	}
	return strings.Compare(fmt.Sprintf("%v", a), fmt.Sprintf("%v", b))
}

func numeric(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
