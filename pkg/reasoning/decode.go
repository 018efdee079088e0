package reasoning

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/aretw0/hybridqa/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// ErrNoObject is returned when a response holds no JSON object.
var ErrNoObject = errors.New("response does not contain a JSON object")

// decodeObject extracts the first JSON object from model output. Code fences
// and prose around the object are tolerated.
func decodeObject(text string) (map[string]any, error) {
	s := domain.StripCodeFence(text)
	var out map[string]any
	if err := json.Unmarshal([]byte(s), &out); err == nil && out != nil {
		return out, nil
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return nil, ErrNoObject
	}
	if err := json.Unmarshal([]byte(s[start:end+1]), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoObject, err)
	}
	if out == nil {
		return nil, ErrNoObject
	}
	return out, nil
}

// decodeInto maps a decoded object onto target. Lists and numbers are
// rendered as text when the target field is a string.
func decodeInto(obj map[string]any, target any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
		DecodeHook:       stringifyHook,
	})
	if err != nil {
		return err
	}
	return dec.Decode(obj)
}

func stringifyHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to.Kind() != reflect.String || data == nil {
		return data, nil
	}
	switch from.Kind() {
	case reflect.Slice, reflect.Array:
		v := reflect.ValueOf(data)
		parts := make([]string, 0, v.Len())
		for i := 0; i < v.Len(); i++ {
			parts = append(parts, textOf(v.Index(i).Interface()))
		}
		return strings.Join(parts, ", "), nil
	case reflect.Map:
		b, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	}
	return data, nil
}

func textOf(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
