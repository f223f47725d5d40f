// Package bannergen embeds the annotated default configuration.
//
// banner.default.toml is generated by cmd/genconfig from the config
// package's defaults and field docs; `bannergen init` writes it out.
package bannergen

import _ "embed"

// DefaultConfigTOML holds the raw bytes of banner.default.toml.
//
//go:embed banner.default.toml
var DefaultConfigTOML []byte
