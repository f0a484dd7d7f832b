// Package config loads and validates the tabwatch YAML configuration.
//
// Load(path) applies defaults, parses the file and validates it in one
// step. Watch(ctx, path, onChange) hot-reloads the file via fsnotify,
// reports which sections changed and keeps the previous config when a
// reload fails or changes nothing. Secrets (the database
// password) are never stored in the file — the file names an environment
// variable (source.password_env) and SourceConfig.Password() resolves it.
//
// The gateway URL is validated at load time: an unparsable or relative
// URL is the one misconfiguration that is fatal at startup.
package config
