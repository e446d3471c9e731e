// Package configs provides the embedded configuration template for
// memmcp.
//
// The template is embedded at build time with //go:embed so it ships
// inside the binary regardless of how memmcp is installed. 'memmcp
// init --write-config' copies it to memmcp.yaml in the working
// directory; internal/config then layers that file between the
// built-in defaults and the environment.
package configs

import _ "embed"

// ConfigTemplate is the annotated memmcp.yaml starting point.
//
//go:embed memmcp.example.yaml
var ConfigTemplate string
