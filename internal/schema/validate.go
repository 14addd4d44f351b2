// Package schema provides JSON schema validation for the documents deflake
// reads: runner summaries, checkpoint records and its own configuration.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	schemafs "github.com/AndreyAkinshin/deflake/schema"
)

// Embedded schema file names.
const (
	Summary = "summary.schema.json"
	Record  = "record.schema.json"
	Config  = "config.schema.json"
)

var (
	compiled    map[string]*jsonschema.Schema
	compileOnce sync.Once
	compileErr  error
)

// compileSchemas compiles all embedded schemas once.
func compileSchemas() error {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		names := []string{Summary, Record, Config}

		for _, name := range names {
			data, err := schemafs.FS.ReadFile(name)
			if err != nil {
				compileErr = fmt.Errorf("read %s: %w", name, err)
				return
			}
			doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
			if err != nil {
				compileErr = fmt.Errorf("unmarshal %s: %w", name, err)
				return
			}
			if err := compiler.AddResource(name, doc); err != nil {
				compileErr = fmt.Errorf("add %s resource: %w", name, err)
				return
			}
		}

		result := make(map[string]*jsonschema.Schema, len(names))
		for _, name := range names {
			sch, err := compiler.Compile(name)
			if err != nil {
				compileErr = fmt.Errorf("compile %s: %w", name, err)
				return
			}
			result[name] = sch
		}
		compiled = result
	})

	return compileErr
}

// Validate validates JSON data against the named embedded schema.
func Validate(name string, data []byte) error {
	if err := compileSchemas(); err != nil {
		return err
	}
	sch, ok := compiled[name]
	if !ok {
		return fmt.Errorf("unknown schema %q", name)
	}

	v, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	if err := sch.Validate(v); err != nil {
		return fmt.Errorf("%s validation failed: %w", name, err)
	}

	return nil
}

// ValidateSummary validates a runner summary document.
func ValidateSummary(data []byte) error {
	return Validate(Summary, data)
}

// ValidateRecord validates a checkpoint record document.
func ValidateRecord(data []byte) error {
	return Validate(Record, data)
}

// ValidateConfig validates a configuration value decoded from YAML.
// The value is re-encoded as JSON so YAML-specific scalar types are normalized.
func ValidateConfig(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("config is not representable as JSON: %w", err)
	}
	return Validate(Config, data)
}
