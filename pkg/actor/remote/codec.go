// Copyright © 2025 Meroxa, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package remote

import (
	"reflect"
	"sync"

	"github.com/conduitio/creditflow/pkg/foundation/cerrors"
	"github.com/goccy/go-json"
)

var errUnknownMessage = cerrors.New("unknown message type")

// Codec encodes actor messages for the wire. Every message type crossing
// node boundaries has to be registered under a name that is the same on all
// nodes.
type Codec struct {
	m      sync.RWMutex
	byName map[string]func() any
	byType map[reflect.Type]string
}

func NewCodec() *Codec {
	return &Codec{
		byName: make(map[string]func() any),
		byType: make(map[reflect.Type]string),
	}
}

// Register adds a message type. newFn returns a pointer to a new zero value
// of the type, decoded messages are delivered as values.
func (c *Codec) Register(name string, newFn func() any) {
	t := reflect.TypeOf(newFn())
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	c.m.Lock()
	defer c.m.Unlock()
	c.byName[name] = newFn
	c.byType[t] = name
}

// Encode returns the registered name of msg and its JSON encoding.
func (c *Codec) Encode(msg any) (string, json.RawMessage, error) {
	t := reflect.TypeOf(msg)
	if t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	c.m.RLock()
	name, ok := c.byType[t]
	c.m.RUnlock()
	if !ok {
		return "", nil, cerrors.Errorf("%w: %T", errUnknownMessage, msg)
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return "", nil, cerrors.Errorf("encoding %s: %w", name, err)
	}
	return name, raw, nil
}

// Decode builds the message registered under name from its JSON encoding.
func (c *Codec) Decode(name string, raw json.RawMessage) (any, error) {
	c.m.RLock()
	newFn, ok := c.byName[name]
	c.m.RUnlock()
	if !ok {
		return nil, cerrors.Errorf("%w: %q", errUnknownMessage, name)
	}
	v := newFn()
	if err := json.Unmarshal(raw, v); err != nil {
		return nil, cerrors.Errorf("decoding %s: %w", name, err)
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		return rv.Elem().Interface(), nil
	}
	return v, nil
}
