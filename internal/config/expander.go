package config

import (
	"os"
)

// EnvironmentExpander expands environment variable placeholders within an
// input byte slice before it is parsed as YAML.
type EnvironmentExpander interface {
	// Expand takes a byte slice as input, expands any environment variable
	// placeholders (e.g., ${VAR} or $VAR) within it, and returns the expanded
	// byte slice.
	Expand(input []byte) ([]byte, error)
}

// OsEnvironmentExpander implements EnvironmentExpander using Go's standard
// library os.ExpandEnv.
type OsEnvironmentExpander struct{}

// NewOsEnvironmentExpander creates and returns a new instance of OsEnvironmentExpander.
func NewOsEnvironmentExpander() *OsEnvironmentExpander {
	return &OsEnvironmentExpander{}
}

// Expand replaces ${VAR} or $VAR in the input with the value of the
// environment variable VAR. Unset variables are replaced by an empty string.
// os.ExpandEnv itself does not fail, so the returned error is always nil.
func (e *OsEnvironmentExpander) Expand(input []byte) ([]byte, error) {
	expanded := os.ExpandEnv(string(input))
	return []byte(expanded), nil
}
