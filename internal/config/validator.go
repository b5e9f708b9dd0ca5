package config

import (
	"encoding/hex"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Validator validates a loaded Config, failing fast with a clear message.
type Validator struct {
	cfg *Config
}

// NewValidator builds a Validator for cfg.
func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg}
}

var structValidator = validator.New()

// ValidateAll performs comprehensive validation, stopping at the first error.
func (v *Validator) ValidateAll() error {
	if err := structValidator.Struct(v.cfg); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := structValidator.Struct(v.cfg.Pipeline); err != nil {
		return fmt.Errorf("pipeline config: %w", err)
	}
	if err := v.validateMasterKey(); err != nil {
		return err
	}
	return nil
}

// validateMasterKey ensures YOURMOMENT_MASTER_KEY decodes to exactly 32
// bytes, the size internal/crypto.NewEnvelope requires for AES-256.
func (v *Validator) validateMasterKey() error {
	raw, err := hex.DecodeString(v.cfg.MasterKeyHex)
	if err != nil {
		return fmt.Errorf("YOURMOMENT_MASTER_KEY is not valid hex: %w", err)
	}
	if len(raw) != 32 {
		return fmt.Errorf("YOURMOMENT_MASTER_KEY must decode to 32 bytes, got %d", len(raw))
	}
	return nil
}
