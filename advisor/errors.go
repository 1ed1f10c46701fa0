package advisor

import "fmt"

// ConfigError reports an advisor definition that cannot be compiled.
type ConfigError struct {
	Advisor string
	Field   string
	Reason  string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("advisor %q: %s", e.Advisor, e.Reason)
	}
	return fmt.Sprintf("advisor %q: %s: %s", e.Advisor, e.Field, e.Reason)
}

func configErrorf(advisor, field, format string, args ...any) *ConfigError {
	return &ConfigError{
		Advisor: advisor,
		Field:   field,
		Reason:  fmt.Sprintf(format, args...),
	}
}
