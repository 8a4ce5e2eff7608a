// internal/catalog/loader.go
package catalog

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/openbenefits/medscreen/internal/types"
)

// File is the YAML authoring surface for one state's definition set.
type File struct {
	StateCode string                  `yaml:"state"`
	Questions []types.Question        `yaml:"questions"`
	Rules     []types.ConditionalRule `yaml:"rules"`
	Steps     []types.StepDefinition  `yaml:"steps"`
}

// Load reads and decodes a catalog file. Decoding is strict: unknown YAML
// fields are authoring mistakes, not extension points.
func Load(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	return Decode(raw)
}

// Decode parses catalog YAML bytes.
func Decode(raw []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decoding catalog: %w", err)
	}
	if f.StateCode == "" {
		return nil, fmt.Errorf("decoding catalog: state is required")
	}
	return &f, nil
}

// Validate runs the full two-pass validation over the file's contents.
func (f *File) Validate() error {
	return Validate(f.Questions, f.Rules, f.Steps)
}
