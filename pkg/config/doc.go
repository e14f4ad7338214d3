// Package config loads the engine's YAML configuration file and applies
// environment variable overrides, grounded on the teacher's
// gopkg.in/yaml.v3 usage in cmd/warren for manifest decoding.
package config
