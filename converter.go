package httpserver

import (
	"net/url"
	"reflect"
	"strconv"
	"sync"
)

// ConvertFunc parses one path-segment capture into a reflect.Value of the
// converter's registered type.
type ConvertFunc func(capture string) (reflect.Value, error)

// Converter pairs a regex fragment (used to build the rule's compiled
// pattern) with the parse function applied to whatever it captures
// (spec.md §4.4, "converter table").
type Converter struct {
	Fragment string
	Convert  ConvertFunc
}

// ConverterTable maps a handler parameter's reflect.Type to its Converter.
// The zero value is not ready to use; call newConverterTable.
type ConverterTable struct {
	mu     sync.RWMutex
	byType map[reflect.Type]Converter
}

func newConverterTable() *ConverterTable {
	t := &ConverterTable{byType: make(map[reflect.Type]Converter)}
	t.registerDefaults()
	return t
}

func intConverter(bitSize int) ConvertFunc {
	return func(capture string) (reflect.Value, error) {
		n, err := strconv.ParseInt(capture, 10, bitSize)
		return reflect.ValueOf(int(n)), err
	}
}

func (t *ConverterTable) registerDefaults() {
	t.byType[reflect.TypeOf(int(0))] = Converter{Fragment: `(-?\d+)`, Convert: intConverter(0)}
	t.byType[reflect.TypeOf(int64(0))] = Converter{
		Fragment: `(-?\d+)`,
		Convert: func(capture string) (reflect.Value, error) {
			n, err := strconv.ParseInt(capture, 10, 64)
			return reflect.ValueOf(n), err
		},
	}
	t.byType[reflect.TypeOf(uint64(0))] = Converter{
		Fragment: `(\d+)`,
		Convert: func(capture string) (reflect.Value, error) {
			n, err := strconv.ParseUint(capture, 10, 64)
			return reflect.ValueOf(n), err
		},
	}
	t.byType[reflect.TypeOf(float64(0))] = Converter{
		Fragment: `(-?\d+(?:\.\d+)?)`,
		Convert: func(capture string) (reflect.Value, error) {
			f, err := strconv.ParseFloat(capture, 64)
			return reflect.ValueOf(f), err
		},
	}
	t.byType[reflect.TypeOf(false)] = Converter{
		Fragment: `(true|false)`,
		Convert: func(capture string) (reflect.Value, error) {
			b, err := strconv.ParseBool(capture)
			return reflect.ValueOf(b), err
		},
	}
	t.byType[reflect.TypeOf("")] = Converter{
		Fragment: `([^/]+)`,
		Convert: func(capture string) (reflect.Value, error) {
			return reflect.ValueOf(capture), nil
		},
	}
	t.byType[reflect.TypeOf([]byte(nil))] = Converter{
		Fragment: `([^/]+)`,
		Convert: func(capture string) (reflect.Value, error) {
			return reflect.ValueOf([]byte(capture)), nil
		},
	}
	t.byType[reflect.TypeOf(&url.URL{})] = Converter{
		Fragment: `(.+)`,
		Convert: func(capture string) (reflect.Value, error) {
			u, err := url.Parse(capture)
			return reflect.ValueOf(u), err
		},
	}
}

// RegisterConverter installs (or overrides) the converter for typ, returning
// the fragment it displaced ("" if none) — mirrors QHttpServerRouter's
// addConverter, which hands back the previous registration
// (SPEC_FULL.md §4).
func (t *ConverterTable) RegisterConverter(typ reflect.Type, fragment string, conv ConvertFunc) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	prev := ""
	if old, ok := t.byType[typ]; ok {
		prev = old.Fragment
	}
	t.byType[typ] = Converter{Fragment: fragment, Convert: conv}
	return prev
}

func (t *ConverterTable) lookup(typ reflect.Type) (Converter, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c, ok := t.byType[typ]
	return c, ok
}
