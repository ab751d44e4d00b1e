package automation

import (
	"fmt"
	"sync"

	"github.com/SimbaBuilds/NL-To-Automation/engine/template"
	"github.com/go-playground/validator/v10"
)

// Validator wraps go-playground/validator with the automation domain's
// custom rules, registering them lazily on first use.
type Validator struct {
	v    *validator.Validate
	once sync.Once
}

func NewValidator() *Validator {
	return &Validator{v: validator.New()}
}

func (rv *Validator) init() {
	rv.once.Do(func() {
		_ = rv.v.RegisterValidation("not_reserved_key", validateNotReservedKey)
	})
}

// validateNotReservedKey backs the `not_reserved_key` tag on Action.OutputAs
// — invariant 4: output_as must never collide with `user`/`trigger_data`.
func validateNotReservedKey(fl validator.FieldLevel) bool {
	name := fl.Field().String()
	if name == "" {
		return true
	}
	return !template.IsReservedKey(name)
}

// Validate checks r's struct tags (required fields, trigger_type oneof,
// unique action IDs, reserved-key collisions) per §3.
func (rv *Validator) Validate(r *Record) error {
	rv.init()
	if err := rv.v.Struct(r); err != nil {
		return fmt.Errorf("automation %s: %w", r.ID, err)
	}
	return nil
}
