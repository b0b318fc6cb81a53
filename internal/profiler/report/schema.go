package report

import (
	_ "embed"
	"sync"

	"github.com/wesleyorama2/perfcore/pkg/jsonschema"
)

// Schema is the JSON Schema every report document satisfies.
//
//go:embed report.schema.json
var Schema []byte

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
)

// Validate checks a report document against Schema.
func Validate(doc []byte) error {
	compileOnce.Do(func() {
		compiled = jsonschema.MustCompile(Schema)
	})
	return compiled.Validate(doc)
}
