// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"encoding"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/z5labs/spool/config/key"

	"github.com/go-viper/mapstructure/v2"
)

// Store represents a general key value structure.
type Store interface {
	Set(key.Keyer, any) error
}

// Source defines valid config sources as those who can
// serialize themselves into a key value like structure.
type Source interface {
	Apply(Store) error
}

// Manager holds the merged result of all sources.
type Manager struct {
	store Map
}

// Read applies every source, in order, to a fresh store.
// Subsequent sources override previous sources.
func Read(srcs ...Source) (*Manager, error) {
	store := make(Map)
	for _, src := range srcs {
		err := src.Apply(store)
		if err != nil {
			return nil, err
		}
	}
	return &Manager{store: store}, nil
}

// Unmarshal decodes the merged config into v, which must be a pointer.
func (m *Manager) Unmarshal(v any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "config",
		Result:           v,
		WeaklyTypedInput: true,
		DecodeHook: composeDecodeHooks(
			timeDurationHookFunc(),
			textUnmarshalerHookFunc(),
		),
	})
	if err != nil {
		return err
	}
	return dec.Decode(map[string]any(m.store))
}

var errInvalidDecodeCondition = errors.New("invalid decode condition")

// TypeCoercionError occurs when attempting to unmarshal a config
// value to a struct field whose type does not match the config
// value type, up to, coercion.
type TypeCoercionError struct {
	From  reflect.Type
	To    reflect.Type
	Cause error
}

// Error implements the error interface.
func (e TypeCoercionError) Error() string {
	return fmt.Sprintf("failed to coerce value from %s to %s: %s", e.From, e.To, e.Cause)
}

// Unwrap implements the implicit interface for usage with errors.Is and errors.As.
func (e TypeCoercionError) Unwrap() error {
	return e.Cause
}

func composeDecodeHooks(hs ...mapstructure.DecodeHookFunc) mapstructure.DecodeHookFuncValue {
	return func(f, t reflect.Value) (any, error) {
		for _, h := range hs {
			v, err := mapstructure.DecodeHookExec(h, f, t)
			if err == nil {
				return v, nil
			}
			if errors.Is(err, errInvalidDecodeCondition) {
				continue
			}
			return nil, TypeCoercionError{
				From:  f.Type(),
				To:    t.Type(),
				Cause: err,
			}
		}
		return f.Interface(), nil
	}
}

func textUnmarshalerHookFunc() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if f.Kind() != reflect.String {
			return nil, errInvalidDecodeCondition
		}
		result := reflect.New(t).Interface()
		u, ok := result.(encoding.TextUnmarshaler)
		if !ok {
			return nil, errInvalidDecodeCondition
		}
		err := u.UnmarshalText([]byte(data.(string)))
		if err != nil {
			return nil, err
		}
		return reflect.ValueOf(result).Elem().Interface(), nil
	}
}

func timeDurationHookFunc() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if t != reflect.TypeOf(time.Duration(0)) {
			return nil, errInvalidDecodeCondition
		}

		switch f.Kind() {
		case reflect.String:
			return time.ParseDuration(data.(string))
		case reflect.Int:
			return time.Duration(int64(data.(int))), nil
		case reflect.Int64:
			return time.Duration(data.(int64)), nil
		default:
			return nil, errInvalidDecodeCondition
		}
	}
}
