package utils

import (
	"fmt"

	"github.com/bytedance/sonic"
)

var jsonAPI = sonic.ConfigStd

func Marshal(data interface{}) ([]byte, error) {
	return jsonAPI.Marshal(data)
}

func Unmarshal[T any](data []byte, target *T) error {
	return jsonAPI.Unmarshal(data, target)
}

// UnmarshalConfig converts a loosely typed config section (usually the
// map produced by the YAML decoder) into target.
func UnmarshalConfig[T any](config interface{}, target *T) error {
	if config == nil {
		return fmt.Errorf("config is nil")
	}

	if typed, ok := config.(*T); ok {
		*target = *typed
		return nil
	}

	if typed, ok := config.(T); ok {
		*target = typed
		return nil
	}

	configBytes, err := jsonAPI.Marshal(config)
	if err != nil {
		return err
	}

	return jsonAPI.Unmarshal(configBytes, target)
}
