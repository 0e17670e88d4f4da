// Package config resolves commitflow settings from layered YAML files:
// built-in defaults, then ~/.config/commitflow/config.yaml, then
// .commitflow.yaml at the repository root. Later layers override scalars,
// merge area mappings, and append keyword rules after the built-ins so
// built-in tie-break precedence is stable.
package config
