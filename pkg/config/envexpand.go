package config

import "os"

// ExpandEnv expands environment variables in YAML content. Supports both
// ${VAR} and $VAR syntax (standard shell-style).
//
// Missing variables expand to empty string. Validation catches required
// fields that end up empty.
func ExpandEnv(data []byte) []byte {
	return []byte(os.ExpandEnv(string(data)))
}
