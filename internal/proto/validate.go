package proto

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Decode unmarshals an inbound payload into dst and validates it.
// A missing payload decodes as an empty object. Any error means the event is malformed and must be dropped.
func Decode(data json.RawMessage, dst any) error {
	if len(data) == 0 || string(data) == "null" {
		data = json.RawMessage("{}")
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	if err := validatorInstance().Struct(dst); err != nil {
		return fmt.Errorf("validate payload: %w", err)
	}
	return nil
}
