// Package config loads and validates Shelfwise Core configuration.
//
// Configuration comes from three layers, each overriding the last:
// hardcoded defaults, a YAML file, and SHELFWISE_* environment
// variables. Validation runs after all layers are applied, so a bad
// value fails startup rather than surfacing mid-operation.
package config
