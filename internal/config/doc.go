// Package config loads pipeline configuration from CUE files.
//
// A configuration file is unified with the embedded #Config schema, so
// unknown fields and out-of-range values are rejected with their source
// positions. A minimal file:
//
//	typing_mode: "permissive"
//	impls: [{kind: "scan", impl: "sqlite"}]
//
// Every field is optional; Default returns the configuration an empty file
// produces.
package config
