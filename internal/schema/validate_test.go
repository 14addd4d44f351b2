package schema

import (
	"strings"
	"testing"
)

func TestValidateSummary(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"failed run", `{"runSpecNames":["A","B"],"failed":true}`, false},
		{"passed run without tests", `{"runSpecNames":[],"failed":false}`, false},
		{"extra fields allowed", `{"runSpecNames":["A"],"failed":false,"duration":3}`, false},
		{"missing failed", `{"runSpecNames":["A"]}`, true},
		{"missing names", `{"failed":true}`, true},
		{"names not strings", `{"runSpecNames":[1,2],"failed":true}`, true},
		{"failed not boolean", `{"runSpecNames":["A"],"failed":"yes"}`, true},
		{"malformed JSON", `{"runSpecNames":[`, true},
		{"empty input", ``, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSummary([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSummary() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateRecord(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{
			name:  "full record",
			input: `{"id":"x","runSpecNames":["A"],"failed":true,"command":["r","--seed=1"],"extraEnv":{"K":"V"},"seed":1}`,
		},
		{
			name:  "null env",
			input: `{"runSpecNames":["A"],"failed":true,"command":["r"],"extraEnv":null}`,
		},
		{
			name:    "not failed",
			input:   `{"runSpecNames":["A"],"failed":false,"command":["r"]}`,
			wantErr: true,
		},
		{
			name:    "no tests",
			input:   `{"runSpecNames":[],"failed":true,"command":["r"]}`,
			wantErr: true,
		},
		{
			name:    "no command",
			input:   `{"runSpecNames":["A"],"failed":true,"command":[]}`,
			wantErr: true,
		},
		{
			name:    "env value not string",
			input:   `{"runSpecNames":["A"],"failed":true,"command":["r"],"extraEnv":{"K":1}}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRecord([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateRecord() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		input   any
		wantErr bool
	}{
		{
			name:  "empty",
			input: map[string]any{},
		},
		{
			name: "full",
			input: map[string]any{
				"command":     []any{"npx", "jasmine"},
				"config_path": "jasmine.json",
				"summary_env": "DEFLAKE_SUMMARY_OUTPUT",
				"env":         map[string]any{"NODE_OPTIONS": "-r x"},
				"build":       []any{},
				"dir":         ".",
			},
		},
		{
			name:    "empty command",
			input:   map[string]any{"command": []any{}},
			wantErr: true,
		},
		{
			name:    "bad env var name",
			input:   map[string]any{"summary_env": "1BAD-NAME"},
			wantErr: true,
		},
		{
			name:    "command not a list",
			input:   map[string]any{"command": "npx jasmine"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConfig(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_UnknownSchema(t *testing.T) {
	err := Validate("missing.schema.json", []byte(`{}`))
	if err == nil || !strings.Contains(err.Error(), "unknown schema") {
		t.Errorf("Validate() error = %v, want unknown schema error", err)
	}
}
