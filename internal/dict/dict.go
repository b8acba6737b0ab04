// Package dict implements the ordered key/value container used for headers,
// query strings, sessions and handler configuration.
//
// Every entry records on its own whether the dictionary owns the key and the
// value. Owned payloads are released when the entry is replaced, removed or
// the dictionary is destroyed; borrowed payloads are never touched. Values
// are either strings or nested dictionaries.
//
// A Dict is not safe for concurrent mutation. Per-request dictionaries are
// owned by one request; shared ones must be fully built before they are read
// from several goroutines.
package dict

import (
	"iter"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"

	"burrow/internal/errors"
)

// Flags control how Add stores an entry. The bit layout follows the classic
// onion_dict flags so Dup* implies the matching Free*.
type Flags int

const (
	// FreeKey marks the key as owned by the dictionary.
	FreeKey Flags = 0x02
	// FreeValue marks the value as owned by the dictionary.
	FreeValue Flags = 0x04
	// FreeAll owns both key and value.
	FreeAll Flags = FreeKey | FreeValue
	// DupKey copies the key and owns the copy.
	DupKey Flags = 0x12
	// DupValue copies the value (a hard copy for dictionaries) and owns it.
	DupValue Flags = 0x24
	// DupAll copies and owns both.
	DupAll Flags = DupKey | DupValue
	// Replace overwrites an existing entry instead of failing.
	Replace Flags = 0x40
	// Nested tags the value as a *Dict. Use AddDict.
	Nested Flags = 0x100
)

// ReleaseFunc observes every release of an entry that owned its key or value.
type ReleaseFunc func(Entry)

// Option configures a Dict at construction.
type Option func(*Dict)

// CaseInsensitive makes key comparison ignore case. Keys keep the spelling
// they were inserted with.
func CaseInsensitive() Option {
	return func(d *Dict) { d.icase = true }
}

// WithReleaseHook installs fn to observe owned releases.
func WithReleaseHook(fn ReleaseFunc) Option {
	return func(d *Dict) { d.onRelease = fn }
}

// Dict is an insertion-ordered dictionary with per-entry ownership.
type Dict struct {
	entries   []Entry
	index     map[string]int
	icase     bool
	onRelease ReleaseFunc
}

// New creates an empty dictionary.
func New(opts ...Option) *Dict {
	d := &Dict{index: make(map[string]int)}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// NewCaseInsensitive is New(CaseInsensitive()).
func NewCaseInsensitive(opts ...Option) *Dict {
	return New(append([]Option{CaseInsensitive()}, opts...)...)
}

// IsCaseInsensitive reports the comparison mode fixed at construction.
func (d *Dict) IsCaseInsensitive() bool { return d.icase }

func (d *Dict) norm(key string) string {
	if !d.icase {
		return key
	}
	if isASCII(key) {
		return strings.ToLower(key)
	}
	// Casers carry state; a fresh one keeps lookups goroutine-local.
	return cases.Fold().String(key)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// Add stores a string value. It fails with DUPLICATE_KEY when the key exists
// and Replace is not set. Nested in flags is rejected; use AddDict.
func (d *Dict) Add(key, value string, flags Flags) error {
	if flags&Nested != 0 {
		return errors.Newf(errors.InternalError, "key %q: Nested flag requires AddDict", key)
	}
	if flags&DupValue == DupValue {
		value = strings.Clone(value)
	}
	return d.put(key, StringValue(value), flags)
}

// AddDict stores a nested dictionary under key. With DupValue the stored
// value is a hard copy; with FreeValue the dictionary takes ownership of sub
// and destroys it together with the entry.
func (d *Dict) AddDict(key string, sub *Dict, flags Flags) error {
	if sub == nil {
		sub = New()
	}
	if flags&DupValue == DupValue {
		sub = sub.HardDup()
	}
	return d.put(key, DictValue(sub), flags|Nested)
}

// Insert is the flag-free form of Add/AddDict. Conflicts always fail.
func (d *Dict) Insert(key string, value Value, ownsKey, ownsValue bool) error {
	var flags Flags
	if ownsKey {
		flags |= FreeKey
	}
	if ownsValue {
		flags |= FreeValue
	}
	if value.IsNested() {
		flags |= Nested
	}
	return d.put(key, value, flags)
}

// Set adds or replaces a string value the dictionary owns.
func (d *Dict) Set(key, value string) {
	// DupAll|Replace cannot fail
	_ = d.Add(key, value, DupAll|Replace)
}

func (d *Dict) put(key string, value Value, flags Flags) error {
	if flags&DupKey == DupKey {
		key = strings.Clone(key)
	}
	e := Entry{
		Key:       key,
		Value:     value,
		OwnsKey:   flags&FreeKey != 0,
		OwnsValue: flags&FreeValue != 0,
	}

	nk := d.norm(key)
	if i, ok := d.index[nk]; ok {
		if flags&Replace == 0 {
			return errors.Newf(errors.DuplicateKey, "key %q already present", key)
		}
		old := d.entries[i]
		d.entries[i] = e
		if sameDict(old.Value, value) {
			// the nested dictionary stays live under the new entry
			old.OwnsValue = false
		}
		d.release(old)
		return nil
	}

	d.index[nk] = len(d.entries)
	d.entries = append(d.entries, e)
	return nil
}

// Lookup returns the tagged value stored under key.
func (d *Dict) Lookup(key string) (Value, error) {
	i, ok := d.index[d.norm(key)]
	if !ok {
		return Value{}, errors.Newf(errors.NotFound, "key %q not found", key)
	}
	return d.entries[i].Value, nil
}

// Get returns the string stored under key. A nested value is reported as
// NOT_FOUND, the same as a missing key.
func (d *Dict) Get(key string) (string, error) {
	v, err := d.Lookup(key)
	if err != nil {
		return "", err
	}
	s, ok := v.Str()
	if !ok {
		return "", errors.Newf(errors.NotFound, "key %q holds a dictionary, not a string", key)
	}
	return s, nil
}

// GetOr returns the string under key, or def when absent or nested.
func (d *Dict) GetOr(key, def string) string {
	if s, err := d.Get(key); err == nil {
		return s
	}
	return def
}

// GetDict returns the nested dictionary stored under key.
func (d *Dict) GetDict(key string) (*Dict, error) {
	v, err := d.Lookup(key)
	if err != nil {
		return nil, err
	}
	sub, ok := v.Dict()
	if !ok {
		return nil, errors.Newf(errors.NotFound, "key %q holds a string, not a dictionary", key)
	}
	return sub, nil
}

// Has reports whether key is present.
func (d *Dict) Has(key string) bool {
	_, ok := d.index[d.norm(key)]
	return ok
}

// Remove deletes key, releasing whatever the entry owned.
func (d *Dict) Remove(key string) error {
	nk := d.norm(key)
	i, ok := d.index[nk]
	if !ok {
		return errors.Newf(errors.NotFound, "key %q not found", key)
	}
	old := d.entries[i]
	d.entries = append(d.entries[:i], d.entries[i+1:]...)
	delete(d.index, nk)
	for j := i; j < len(d.entries); j++ {
		d.index[d.norm(d.entries[j].Key)] = j
	}
	d.release(old)
	return nil
}

// Count returns the number of live entries.
func (d *Dict) Count() int {
	if d == nil {
		return 0
	}
	return len(d.entries)
}

// Keys returns the keys in insertion order.
func (d *Dict) Keys() []string {
	keys := make([]string, 0, d.Count())
	for k := range d.All() {
		keys = append(keys, k)
	}
	return keys
}

// All yields every entry's key and value in insertion order. The sequence
// walks a snapshot taken when iteration starts, so mutations made while
// iterating are not observed.
func (d *Dict) All() iter.Seq2[string, Value] {
	return func(yield func(string, Value) bool) {
		for _, e := range d.snapshot() {
			if !yield(e.Key, e.Value) {
				return
			}
		}
	}
}

// Entries is All with the ownership tags included.
func (d *Dict) Entries() iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		for _, e := range d.snapshot() {
			if !yield(e) {
				return
			}
		}
	}
}

// Walk calls fn with key, value and the nested tag for every entry in
// insertion order until fn returns false.
func (d *Dict) Walk(fn func(key string, value Value, nested bool) bool) {
	for k, v := range d.All() {
		if !fn(k, v, v.IsNested()) {
			return
		}
	}
}

func (d *Dict) snapshot() []Entry {
	if d == nil || len(d.entries) == 0 {
		return nil
	}
	out := make([]Entry, len(d.entries))
	copy(out, d.entries)
	return out
}

// Dup returns a soft copy: same keys and values, none of them owned. The
// copy must not outlive d's owned payloads.
func (d *Dict) Dup() *Dict {
	out := &Dict{
		entries:   make([]Entry, 0, d.Count()),
		index:     make(map[string]int, d.Count()),
		icase:     d.icase,
		onRelease: d.onRelease,
	}
	for e := range d.Entries() {
		e.OwnsKey, e.OwnsValue = false, false
		out.index[out.norm(e.Key)] = len(out.entries)
		out.entries = append(out.entries, e)
	}
	return out
}

// HardDup returns a deep copy that owns every key and value, recursing into
// nested dictionaries.
func (d *Dict) HardDup() *Dict {
	out := &Dict{
		entries:   make([]Entry, 0, d.Count()),
		index:     make(map[string]int, d.Count()),
		icase:     d.icase,
		onRelease: d.onRelease,
	}
	for e := range d.Entries() {
		e.Key = strings.Clone(e.Key)
		if sub, ok := e.Value.Dict(); ok {
			e.Value = DictValue(sub.HardDup())
		} else {
			e.Value = StringValue(strings.Clone(e.Value.str))
		}
		e.OwnsKey, e.OwnsValue = true, true
		out.index[out.norm(e.Key)] = len(out.entries)
		out.entries = append(out.entries, e)
	}
	return out
}

// Destroy releases every owned payload, recursing into owned nested
// dictionaries, and leaves d empty. Borrowed payloads are left alone.
// Calling Destroy again is a no-op.
func (d *Dict) Destroy() {
	if d == nil {
		return
	}
	entries := d.entries
	d.entries = nil
	d.index = make(map[string]int)
	for _, e := range entries {
		d.release(e)
	}
}

func sameDict(a, b Value) bool {
	da, ok := a.Dict()
	if !ok {
		return false
	}
	db, ok := b.Dict()
	return ok && da == db
}

func (d *Dict) release(e Entry) {
	if !e.OwnsKey && !e.OwnsValue {
		return
	}
	if e.OwnsValue {
		if sub, ok := e.Value.Dict(); ok {
			sub.Destroy()
		}
	}
	if d.onRelease != nil {
		d.onRelease(e)
	}
}
