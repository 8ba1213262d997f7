package utils

import (
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
)

// AttributeMap is a free-form set of attributes, typically decoded from JSON config.
type AttributeMap map[string]interface{}

// Has reports whether the key is set.
func (am AttributeMap) Has(key string) bool {
	_, ok := am[key]
	return ok
}

// Decode decodes the attributes into the struct pointed to by out, matching keys against
// `json` struct tags. Unknown keys are an error so typos in config surface early.
func (am AttributeMap) Decode(out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           out,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return errors.Wrap(err, "failed to create attribute decoder")
	}
	if err := decoder.Decode(map[string]interface{}(am)); err != nil {
		return errors.Wrap(err, "failed to decode attributes")
	}
	return nil
}
