// Package propmap implements the typed, ordered key->array container used
// at every plugin ABI boundary: function arguments, function return values,
// and frame metadata payloads.
package propmap

import (
	"fmt"
	"regexp"
)

// Kind identifies the element type stored under a key. An array is
// homogeneous: every element in it shares one Kind.
type Kind int

const (
	KindUnset Kind = iota
	KindInt
	KindFloat
	KindData
	KindVideoNode
	KindAudioNode
	KindVideoFrame
	KindAudioFrame
	KindFunc
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindData:
		return "data"
	case KindVideoNode:
		return "vnode"
	case KindAudioNode:
		return "anode"
	case KindVideoFrame:
		return "vframe"
	case KindAudioFrame:
		return "aframe"
	case KindFunc:
		return "func"
	default:
		return "unset"
	}
}

// DataHint tags a byte-string element with how it should be interpreted.
type DataHint int

const (
	DataUnknown DataHint = iota
	DataBinary
	DataUTF8
)

// AppendMode controls how a setter combines a new value with any existing
// array stored under the same key.
type AppendMode int

const (
	// Replace discards any existing array under the key and stores a new
	// single-element array of the requested type.
	Replace AppendMode = iota
	// Append adds to an existing array of the same type, or creates one.
	// It is an error to Append onto an array of a different Kind.
	Append
)

// ErrorCode is returned by typed getters alongside a zero value when a read
// cannot be satisfied.
type ErrorCode int

const (
	ErrNone ErrorCode = iota
	ErrUnset
	ErrType
	ErrIndex
	ErrMapError
)

func (e ErrorCode) Error() string {
	switch e {
	case ErrUnset:
		return "propmap: key unset"
	case ErrType:
		return "propmap: wrong type"
	case ErrIndex:
		return "propmap: index out of range"
	case ErrMapError:
		return "propmap: map has error set"
	default:
		return "propmap: no error"
	}
}

// Data is a single byte-string element tagged with a data-kind hint.
type Data struct {
	Bytes []byte
	Hint  DataHint
}

// VideoNodeRef, AudioNodeRef, VideoFrameRef, and AudioFrameRef are the
// reference-counted handles a Map can carry without propmap needing to
// import the node or frame packages. Concrete types in those packages
// satisfy these interfaces structurally.
type VideoNodeRef interface {
	Retain() VideoNodeRef
	Release()
}

type AudioNodeRef interface {
	Retain() AudioNodeRef
	Release()
}

type VideoFrameRef interface {
	Retain() VideoFrameRef
	Release()
}

type AudioFrameRef interface {
	Retain() AudioFrameRef
	Release()
}

// FuncRef is a callable plugin-side function value, e.g. produced by a
// script binding and passed through a Map as a "func" element.
type FuncRef interface {
	Call(in *Map) *Map
}

var keyPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidKey reports whether s is a legal Map key.
func ValidKey(s string) bool {
	return keyPattern.MatchString(s)
}

// Map is an ordered mapping from string key to a typed, copy-on-write
// array. Once an error is set with SetError, the Map is error-bearing and
// every read returns ErrMapError instead of the requested value.
type Map struct {
	keys   []string
	values map[string]*array
	errMsg string
	hasErr bool
}

// New returns an empty Map.
func New() *Map {
	return &Map{values: make(map[string]*array)}
}

// Clone returns a Map that shares its arrays with m via copy-on-write:
// mutating the clone never mutates m, and vice versa, but no element data
// is copied until one side actually writes.
func (m *Map) Clone() *Map {
	c := &Map{
		keys:   append([]string(nil), m.keys...),
		values: make(map[string]*array, len(m.values)),
		errMsg: m.errMsg,
		hasErr: m.hasErr,
	}
	for k, v := range m.values {
		c.values[k] = v.retain()
	}
	return c
}

// Clear removes all keys and clears any error.
func (m *Map) Clear() {
	m.keys = nil
	m.values = make(map[string]*array)
	m.errMsg = ""
	m.hasErr = false
}

// SetError marks the Map as error-bearing. It does not clear existing keys.
func (m *Map) SetError(msg string) {
	if msg == "" {
		msg = "Error: no error specified"
	}
	m.errMsg = msg
	m.hasErr = true
}

// Error returns the error message and whether one is set.
func (m *Map) Error() (string, bool) {
	return m.errMsg, m.hasErr
}

// HasError reports whether the Map is error-bearing.
func (m *Map) HasError() bool {
	return m.hasErr
}

// Len returns the number of keys in the Map.
func (m *Map) Len() int {
	return len(m.keys)
}

// KeyAt returns the key at the given index in insertion order.
func (m *Map) KeyAt(index int) (string, error) {
	if index < 0 || index >= len(m.keys) {
		return "", fmt.Errorf("propmap: KeyAt index %d out of range [0,%d)", index, len(m.keys))
	}
	return m.keys[index], nil
}

// NumElements returns the number of elements stored under key, or -1 if
// the key is absent.
func (m *Map) NumElements(key string) int {
	arr, ok := m.values[key]
	if !ok {
		return -1
	}
	return arr.len()
}

// KindOf returns the Kind stored under key, or KindUnset if absent.
func (m *Map) KindOf(key string) Kind {
	arr, ok := m.values[key]
	if !ok {
		return KindUnset
	}
	return arr.kind
}

// DeleteKey removes key from the Map. It reports whether the key existed.
func (m *Map) DeleteKey(key string) bool {
	if _, ok := m.values[key]; !ok {
		return false
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
	return true
}

func (m *Map) insert(key string, a *array) {
	if _, exists := m.values[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.values[key] = a
}

// detach returns a uniquely-owned array for key, copying it first if it is
// shared by a clone, and creating a fresh array of kind k if absent.
func (m *Map) detach(key string, k Kind) *array {
	arr, ok := m.values[key]
	if !ok {
		arr = newArray(k)
		m.insert(key, arr)
		return arr
	}
	if arr.shared() {
		arr = arr.clone()
		m.insert(key, arr)
	}
	return arr
}

func (m *Map) find(key string, index int, k Kind) (*array, ErrorCode) {
	if m.hasErr {
		return nil, ErrMapError
	}
	arr, ok := m.values[key]
	if !ok {
		return nil, ErrUnset
	}
	if index < 0 || index >= arr.len() {
		return nil, ErrIndex
	}
	if arr.kind != k {
		return nil, ErrType
	}
	return arr, ErrNone
}
