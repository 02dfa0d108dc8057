package resolve

import "fmt"

// ConfigError reports an unusable configuration value.  It indicates operator misconfiguration
// and is never worth retrying.
type ConfigError struct {
	Field string
	Value string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// StoreError reports a failed lookup in the override store.
type StoreError struct {
	Key string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store lookup %q failed: %v", e.Key, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Temporary marks store failures as worth retrying later.
func (e *StoreError) Temporary() bool {
	return true
}
