// Package configs holds the configuration templates written by
// `amanlex config init`. They are embedded at build time so every
// distribution carries them.
package configs

import _ "embed"

// UserConfigTemplate is written to ~/.config/amanlex/config.yaml by
// `amanlex config init --user`.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string

// ProjectConfigTemplate is written to .amanlex.yaml by `amanlex config init`.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string
