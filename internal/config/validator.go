package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks the configuration against its struct tags plus the
// cross-field rules the tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			return fmt.Errorf("config validation: %w", err)
		}
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("config validation: field %s failed rule %q", fe.Namespace(), fe.Tag())
		}
		return err
	}

	if c.Audit.Enabled && c.Audit.Path == "" {
		return errors.New("config validation: audit.path is required when audit is enabled")
	}
	if c.Server.SessionTimeout > 0 && c.Server.EvictInterval <= 0 {
		return errors.New("config validation: server.evict_interval must be positive when session_timeout is set")
	}
	return nil
}
