package mediasoupclient

import (
	"encoding/json"
	"reflect"
	"sync"

	"github.com/imdario/mergo"
)

// H is a shortcut of map[string]interface{}, used for free form payloads
// such as appData.
type H map[string]interface{}

type ptrTransformers struct{}

// overwrites pointer type
func (ptrTransformers) Transformer(tp reflect.Type) func(dst, src reflect.Value) error {
	if tp.Kind() == reflect.Ptr {
		return func(dst, src reflect.Value) error {
			if !src.IsNil() && dst.CanSet() {
				dst.Set(src)
			}
			return nil
		}
	}
	return nil
}

// clone deep copies v through its JSON representation.
func clone[T any](v T) T {
	var result T

	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	if err = json.Unmarshal(data, &result); err != nil {
		panic(err)
	}
	return result
}

// override merges the non zero fields of src into dst.
func override(dst, src interface{}) error {
	return mergo.Merge(dst, src,
		mergo.WithOverride,
		mergo.WithTypeCheck,
		mergo.WithTransformers(ptrTransformers{}),
	)
}

func ref[T any](v T) *T {
	return &v
}

// syncMapValues returns the values of m with type T.
func syncMapValues[T any](m *sync.Map) (values []T) {
	m.Range(func(key, val interface{}) bool {
		values = append(values, val.(T))
		return true
	})
	return
}

func unmarshalData(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}
