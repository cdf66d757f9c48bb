// Package schema implements the schemas place: JSON, YAML and TOML
// documents decoded into plain maps and published to hosted code through
// application.schemas.
package schema
