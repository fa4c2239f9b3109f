package kv

import (
	"iter"

	"github.com/indigo-web/utils/strcomp"
)

type Pair struct {
	Key, Value string
}

// Storage is an ordered associative structure for (string, string) pairs with
// case-insensitive keys. It uses linear search instead of hashing, which proves to be
// more efficient on relatively low amount of entries, as is the case for HTTP headers.
//
// Keys and values are stored as-is, so they may be views over a connection buffer. Such
// storage must be cleared together with the buffer.
type Storage struct {
	pairs      []Pair
	valuesBuff []string
}

func New() *Storage {
	return new(Storage)
}

// NewPrealloc returns an instance of Storage with pre-allocated underlying storage.
func NewPrealloc(n int) *Storage {
	return &Storage{
		pairs: make([]Pair, 0, n),
	}
}

// NewFromMap returns a new instance with already inserted values from given map.
// Note: as maps are unordered, resulting underlying structure will also contain unordered
// pairs.
func NewFromMap(m map[string][]string) *Storage {
	kv := NewPrealloc(len(m))

	for key, values := range m {
		for _, value := range values {
			kv.Add(key, value)
		}
	}

	return kv
}

// Add adds a new pair of key and value.
func (s *Storage) Add(key, value string) *Storage {
	s.pairs = append(s.pairs, Pair{
		Key:   key,
		Value: value,
	})
	return s
}

// Set replaces all the values of the key by a single one.
func (s *Storage) Set(key, value string) *Storage {
	return s.Delete(key).Add(key, value)
}

// Delete removes all the pairs with the key, preserving the order of the rest.
func (s *Storage) Delete(key string) *Storage {
	n := 0
	for _, pair := range s.pairs {
		if !strcomp.EqualFold(pair.Key, key) {
			s.pairs[n] = pair
			n++
		}
	}

	clear(s.pairs[n:])
	s.pairs = s.pairs[:n]
	return s
}

// Value returns the first value, corresponding to the key. Otherwise, empty string is returned
func (s *Storage) Value(key string) string {
	return s.ValueOr(key, "")
}

// ValueOr returns either the first value corresponding to the key or custom value, defined
// via the second parameter.
func (s *Storage) ValueOr(key, or string) string {
	value, found := s.Get(key)
	if !found {
		return or
	}

	return value
}

// Get returns a value and a bool, indicating whether the value was found. If it wasn't, it'll
// be an empty string.
func (s *Storage) Get(key string) (value string, found bool) {
	for _, pair := range s.pairs {
		if strcomp.EqualFold(key, pair.Key) {
			return pair.Value, true
		}
	}

	return "", false
}

// Values returns all values by the key. Returns nil if key doesn't exist.
//
// WARNING: calling it twice will override values, returned by the first call. Consider
// copying the returned slice for safe use.
func (s *Storage) Values(key string) (values []string) {
	s.valuesBuff = s.valuesBuff[:0]

	for _, pair := range s.pairs {
		if strcomp.EqualFold(pair.Key, key) {
			s.valuesBuff = append(s.valuesBuff, pair.Value)
		}
	}

	if len(s.valuesBuff) == 0 {
		return nil
	}

	return s.valuesBuff
}

// Count returns how many pairs carry the key.
func (s *Storage) Count(key string) (n int) {
	for _, pair := range s.pairs {
		if strcomp.EqualFold(pair.Key, key) {
			n++
		}
	}

	return n
}

// Iter returns an iterator over the pairs.
func (s *Storage) Iter() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, pair := range s.pairs {
			if !yield(pair.Key, pair.Value) {
				break
			}
		}
	}
}

// Has indicates, whether there's an entry of the key.
func (s *Storage) Has(key string) bool {
	_, found := s.Get(key)
	return found
}

// Len returns a number of stored pairs.
func (s *Storage) Len() int {
	return len(s.pairs)
}

func (s *Storage) Empty() bool {
	return s.Len() == 0
}

// Expose exposes the underlying pairs slice.
func (s *Storage) Expose() []Pair {
	return s.pairs
}

// Clear all the entries. However, all the allocated space won't be freed.
func (s *Storage) Clear() *Storage {
	clear(s.pairs)
	s.pairs = s.pairs[:0]
	return s
}
