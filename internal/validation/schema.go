package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/phueb/twoprocess/internal/config"
	"github.com/phueb/twoprocess/internal/embeddings"
	"github.com/phueb/twoprocess/schemas"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

// defaultPrinter is used to format schema validation error messages.
var defaultPrinter = message.NewPrinter(language.English)

// experimentSchema is the compiled JSON Schema for experiment.yaml files.
var experimentSchema *jsonschema.Schema

func init() {
	experimentSchema = mustCompileSchema(schemas.ExperimentSchemaJSON, "experiment.schema.json")
}

func mustCompileSchema(raw string, name string) *jsonschema.Schema {
	var schemaDoc any
	if err := json.Unmarshal([]byte(raw), &schemaDoc); err != nil {
		panic(fmt.Sprintf("failed to parse embedded %s: %v", name, err))
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, schemaDoc); err != nil {
		panic(fmt.Sprintf("failed to add %s resource: %v", name, err))
	}

	sch, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("failed to compile %s: %v", name, err))
	}
	return sch
}

// Report collects everything wrong with an experiment file.
type Report struct {
	SchemaErrors []string
	ConfigErrors []string
	// MissingFiles lists prerequisites the run would fail on.
	MissingFiles []string
}

// OK reports whether the experiment can be run.
func (r *Report) OK() bool {
	return len(r.SchemaErrors) == 0 && len(r.ConfigErrors) == 0 && len(r.MissingFiles) == 0
}

// ValidateExperimentFile checks the file at path against the schema, then
// the merged configuration, then the files it refers to. Later stages are
// skipped when an earlier one fails.
func ValidateExperimentFile(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading experiment file: %w", err)
	}

	report := &Report{SchemaErrors: ValidateExperimentBytes(data)}
	if len(report.SchemaErrors) > 0 {
		return report, nil
	}

	cfg, err := config.Parse(data)
	if err != nil {
		report.ConfigErrors = []string{err.Error()}
		return report, nil
	}
	if err := cfg.Validate(); err != nil {
		report.ConfigErrors = splitJoined(err)
		return report, nil
	}

	required := []string{cfg.TaskPath(), cfg.VocabPath()}
	if cfg.Embedder.Kind == embeddings.KindText {
		required = append(required, cfg.Embedder.Path)
	}
	for _, p := range required {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			report.MissingFiles = append(report.MissingFiles, p)
		}
	}
	return report, nil
}

// ValidateExperimentBytes validates raw YAML bytes against the experiment
// schema.
func ValidateExperimentBytes(data []byte) []string {
	var yamlDoc any
	if err := yaml.Unmarshal(data, &yamlDoc); err != nil {
		return []string{fmt.Sprintf("YAML parse error: %v", err)}
	}
	if yamlDoc == nil {
		yamlDoc = map[string]any{}
	}
	return validateAgainstSchema(experimentSchema, convertToJSONCompatible(yamlDoc))
}

func validateAgainstSchema(schema *jsonschema.Schema, instance any) []string {
	err := schema.Validate(instance)
	if err == nil {
		return nil
	}
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []string{fmt.Sprintf("schema: %v", err)}
	}
	var errs []string
	collectSchemaErrors(ve, &errs)
	return errs
}

func collectSchemaErrors(ve *jsonschema.ValidationError, errs *[]string) {
	if len(ve.Causes) == 0 {
		loc := "/"
		if len(ve.InstanceLocation) > 0 {
			loc = "/" + strings.Join(ve.InstanceLocation, "/")
		}
		*errs = append(*errs, fmt.Sprintf("%s: %s", loc, ve.ErrorKind.LocalizedString(defaultPrinter)))
		return
	}
	for _, c := range ve.Causes {
		collectSchemaErrors(c, errs)
	}
}

// convertToJSONCompatible normalises YAML-decoded values. yaml.v3 already
// yields map[string]any; only nested values need walking.
func convertToJSONCompatible(v any) any {
	switch val := v.(type) {
	case map[string]any:
		result := make(map[string]any, len(val))
		for k, v2 := range val {
			result[k] = convertToJSONCompatible(v2)
		}
		return result
	case []any:
		result := make([]any, len(val))
		for i, v2 := range val {
			result[i] = convertToJSONCompatible(v2)
		}
		return result
	default:
		return val
	}
}

func splitJoined(err error) []string {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}
