package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/datascienceChris/datahub/internal/endpoint"
)

// Recipe describes one run: a source, a sink and their configurations.
//
//	run_id: nightly-kafka        # optional, a uuid is generated when empty
//	source:
//	  type: kafka
//	  config:
//	    connection:
//	      bootstrap: ${KAFKA_BOOTSTRAP}
//	sink:
//	  type: file
//	  config:
//	    filename: ./out/kafka.json
type Recipe struct {
	RunID  string    `yaml:"run_id"`
	Source Component `yaml:"source"`
	Sink   Component `yaml:"sink"`
}

// Component is a connector type and its configuration.
type Component struct {
	Type   string         `yaml:"type"`
	Config map[string]any `yaml:"config"`
}

var varPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// LoadRecipe reads and parses a recipe file.
func LoadRecipe(path string) (*Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read recipe: %w", err)
	}
	return ParseRecipe(data)
}

// ParseRecipe expands ${VAR} and ${VAR:-default} references from the
// environment and decodes the YAML. A reference to an unset variable without
// a default is an error.
func ParseRecipe(data []byte) (*Recipe, error) {
	expanded, err := expandEnv(data, os.LookupEnv)
	if err != nil {
		return nil, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(expanded))
	dec.KnownFields(true)

	var r Recipe
	if err := dec.Decode(&r); err != nil {
		return nil, &endpoint.ConfigurationError{Component: "recipe", Reason: "malformed YAML", Err: err}
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// Validate checks that both components name a type.
func (r *Recipe) Validate() error {
	if strings.TrimSpace(r.Source.Type) == "" {
		return endpoint.ConfigErrorf("recipe", "source.type is required")
	}
	if strings.TrimSpace(r.Sink.Type) == "" {
		return endpoint.ConfigErrorf("recipe", "sink.type is required")
	}
	return nil
}

func expandEnv(data []byte, lookup func(string) (string, bool)) ([]byte, error) {
	var missing []string
	out := varPattern.ReplaceAllFunc(data, func(ref []byte) []byte {
		m := varPattern.FindSubmatch(ref)
		if val, ok := lookup(string(m[1])); ok {
			return []byte(val)
		}
		if m[2] != nil {
			return m[3]
		}
		missing = append(missing, string(m[1]))
		return ref
	})
	if len(missing) > 0 {
		return nil, &endpoint.ConfigurationError{
			Component: "recipe",
			Reason:    fmt.Sprintf("unset environment variables %v", missing),
			Err:       errors.New("variable expansion failed"),
		}
	}
	return out, nil
}
