// Package schemas embeds the JSON Schemas for twoprocess configuration files.
package schemas

import _ "embed"

// ExperimentSchemaJSON is the JSON Schema for experiment.yaml.
//
//go:embed experiment.schema.json
var ExperimentSchemaJSON string
