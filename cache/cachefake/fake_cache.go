package cachefake

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/jrsteele09/go-token-broker/cache"
	errs "github.com/jrsteele09/go-token-broker/internal/errors"
)

// FakeCache is an in-memory stand-in for cache.Client. Setting Err makes
// every operation fail with a cache.StoreError wrapping it, and Calls counts
// the operations that reached the backing map.
type FakeCache struct {
	lock    sync.RWMutex
	values  map[string][]byte
	hashes  map[string]map[string]string
	expires map[string]time.Time

	Err   error
	Calls int
	Now   func() time.Time
	// DefaultTTL plays the part of the store TTL set with cache.WithTTL.
	DefaultTTL time.Duration
}

func NewFakeCache() *FakeCache {
	return &FakeCache{
		values:  make(map[string][]byte),
		hashes:  make(map[string]map[string]string),
		expires: make(map[string]time.Time),
		Now:     time.Now,
	}
}

// Put stores raw bytes directly, bypassing encoding. Useful for seeding
// corrupt entries.
func (fc *FakeCache) Put(key string, raw []byte) {
	fc.lock.Lock()
	defer fc.lock.Unlock()
	fc.values[key] = raw
}

// Len returns the number of live string and hash entries.
func (fc *FakeCache) Len() int {
	fc.lock.Lock()
	defer fc.lock.Unlock()
	fc.sweep()
	return len(fc.values) + len(fc.hashes)
}

// TTL returns the remaining time to live for key, or zero when none is set.
func (fc *FakeCache) TTL(key string) time.Duration {
	fc.lock.RLock()
	defer fc.lock.RUnlock()
	at, ok := fc.expires[key]
	if !ok {
		return 0
	}
	return at.Sub(fc.Now())
}

func (fc *FakeCache) begin(op string) error {
	fc.Calls++
	if fc.Err != nil {
		return &cache.StoreError{Op: op, Cause: fc.Err}
	}
	fc.sweep()
	return nil
}

func (fc *FakeCache) sweep() {
	now := fc.Now()
	for k, at := range fc.expires {
		if !now.Before(at) {
			delete(fc.values, k)
			delete(fc.hashes, k)
			delete(fc.expires, k)
		}
	}
}

func encode(v any) ([]byte, error) {
	switch v := v.(type) {
	case nil:
		return nil, errs.ErrInvalidParameter
	case string:
		return []byte(v), nil
	case []byte:
		return append([]byte(nil), v...), nil
	case fmt.Stringer:
		return []byte(v.String()), nil
	default:
		return json.Marshal(v)
	}
}

func (fc *FakeCache) SetVal(_ context.Context, key string, value any) error {
	b, err := encode(value)
	if err != nil {
		return err
	}
	fc.lock.Lock()
	defer fc.lock.Unlock()
	if err := fc.begin("set"); err != nil {
		return err
	}
	fc.values[key] = b
	delete(fc.expires, key)
	return nil
}

func (fc *FakeCache) SetValIfAbsent(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	b, err := encode(value)
	if err != nil {
		return false, err
	}
	fc.lock.Lock()
	defer fc.lock.Unlock()
	if err := fc.begin("setnx"); err != nil {
		return false, err
	}
	if _, ok := fc.values[key]; ok {
		return false, nil
	}
	fc.values[key] = b
	if ttl == 0 {
		ttl = fc.DefaultTTL
	}
	if ttl > 0 {
		fc.expires[key] = fc.Now().Add(ttl)
	}
	return true, nil
}

func (fc *FakeCache) GetVal(_ context.Context, key string) ([]byte, bool, error) {
	fc.lock.Lock()
	defer fc.lock.Unlock()
	if err := fc.begin("get"); err != nil {
		return nil, false, err
	}
	v, ok := fc.values[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (fc *FakeCache) HasKey(_ context.Context, key string) (bool, error) {
	fc.lock.Lock()
	defer fc.lock.Unlock()
	if err := fc.begin("exists"); err != nil {
		return false, err
	}
	_, isVal := fc.values[key]
	_, isHash := fc.hashes[key]
	return isVal || isHash, nil
}

func (fc *FakeCache) SearchKeys(_ context.Context, pattern string) ([]string, error) {
	fc.lock.Lock()
	defer fc.lock.Unlock()
	if err := fc.begin("scan"); err != nil {
		return nil, err
	}
	var keys []string
	for k := range fc.keySet() {
		if ok, _ := path.Match(pattern, k); ok {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (fc *FakeCache) keySet() map[string]struct{} {
	set := make(map[string]struct{}, len(fc.values)+len(fc.hashes))
	for k := range fc.values {
		set[k] = struct{}{}
	}
	for k := range fc.hashes {
		set[k] = struct{}{}
	}
	return set
}

func (fc *FakeCache) ClearKeys(_ context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	fc.lock.Lock()
	defer fc.lock.Unlock()
	if err := fc.begin("del"); err != nil {
		return 0, err
	}
	var n int64
	for _, k := range keys {
		_, isVal := fc.values[k]
		_, isHash := fc.hashes[k]
		if isVal || isHash {
			n++
		}
		delete(fc.values, k)
		delete(fc.hashes, k)
		delete(fc.expires, k)
	}
	return n, nil
}

func (fc *FakeCache) Expire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	fc.lock.Lock()
	defer fc.lock.Unlock()
	if err := fc.begin("expire"); err != nil {
		return false, err
	}
	_, isVal := fc.values[key]
	_, isHash := fc.hashes[key]
	if !isVal && !isHash {
		return false, nil
	}
	fc.expires[key] = fc.Now().Add(ttl)
	return true, nil
}

func (fc *FakeCache) HMSetVal(_ context.Context, key string, kvp ...any) (int64, error) {
	return fc.hmSet(key, fc.DefaultTTL, kvp)
}

func (fc *FakeCache) HMSetValTTL(_ context.Context, key string, ttl time.Duration, kvp ...any) (int64, error) {
	if ttl == 0 {
		ttl = fc.DefaultTTL
	}
	return fc.hmSet(key, ttl, kvp)
}

func (fc *FakeCache) hmSet(key string, ttl time.Duration, kvp []any) (int64, error) {
	if len(kvp) == 0 || len(kvp)%2 == 1 {
		return 0, errs.ErrInvalidParameter
	}
	fc.lock.Lock()
	defer fc.lock.Unlock()
	if err := fc.begin("hset"); err != nil {
		return 0, err
	}
	h, ok := fc.hashes[key]
	if !ok {
		h = make(map[string]string)
		fc.hashes[key] = h
	}
	var added int64
	for i := 0; i < len(kvp); i += 2 {
		field, ok := kvp[i].(string)
		if !ok {
			return added, errs.ErrInvalidParameter
		}
		b, err := encode(kvp[i+1])
		if err != nil {
			return added, err
		}
		if _, exists := h[field]; !exists {
			added++
		}
		h[field] = string(b)
	}
	if ttl > 0 {
		fc.expires[key] = fc.Now().Add(ttl)
	}
	return added, nil
}

func (fc *FakeCache) HMGetVal(_ context.Context, key string, fields ...string) (map[string]string, error) {
	if len(fields) == 0 {
		return nil, errs.ErrInvalidParameter
	}
	fc.lock.Lock()
	defer fc.lock.Unlock()
	if err := fc.begin("hmget"); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		if v, ok := fc.hashes[key][f]; ok {
			out[f] = v
		}
	}
	return out, nil
}

func (fc *FakeCache) HMTakeVal(_ context.Context, key string, fields ...string) (map[string]string, error) {
	if len(fields) == 0 {
		return nil, errs.ErrInvalidParameter
	}
	fc.lock.Lock()
	defer fc.lock.Unlock()
	if err := fc.begin("hmtake"); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		if v, ok := fc.hashes[key][f]; ok {
			out[f] = v
		}
	}
	delete(fc.values, key)
	delete(fc.hashes, key)
	delete(fc.expires, key)
	return out, nil
}

func (fc *FakeCache) HMRemoveVal(_ context.Context, key string, fields ...string) (int64, error) {
	if len(fields) == 0 {
		return 0, errs.ErrInvalidParameter
	}
	fc.lock.Lock()
	defer fc.lock.Unlock()
	if err := fc.begin("hdel"); err != nil {
		return 0, err
	}
	var n int64
	for _, f := range fields {
		if _, ok := fc.hashes[key][f]; ok {
			delete(fc.hashes[key], f)
			n++
		}
	}
	if len(fc.hashes[key]) == 0 {
		delete(fc.hashes, key)
	}
	return n, nil
}

func (fc *FakeCache) HSetFieldExists(_ context.Context, key, field string) (bool, error) {
	fc.lock.Lock()
	defer fc.lock.Unlock()
	if err := fc.begin("hexists"); err != nil {
		return false, err
	}
	_, ok := fc.hashes[key][field]
	return ok, nil
}
