// Package schema validates outcome_table override files against a compiled
// JSON Schema, the same compile-once-validate-many shape this codebase's
// agent tool registry uses for tool-call argument schemas. It holds no schema
// for any other document, such as a JobSpec persisted by add-job.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const outcomeTableSchemaText = `{
  "type": "object",
  "additionalProperties": {
    "type": "string",
    "enum": ["success", "fail", "fail_ignored"]
  }
}`

var outcomeTableSchema = mustCompile("outcome_table.json", outcomeTableSchemaText)

func mustCompile(name, text string) *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, bytes.NewReader([]byte(text))); err != nil {
		panic(fmt.Sprintf("schema: invalid embedded schema %s: %v", name, err))
	}
	s, err := c.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("schema: invalid embedded schema %s: %v", name, err))
	}
	return s
}

// ValidateOutcomeTable checks raw outcome_table JSON (return-code-string to
// Outcome) against the closed outcome set before the executor ever trusts it
// (spec ch. 4.6, "outcome_table"). A malformed table should fail run-build's
// config check rather than surface as a confusing classification at job end.
func ValidateOutcomeTable(raw []byte) error {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("schema: outcome_table is not valid JSON: %w", err)
	}
	if err := outcomeTableSchema.Validate(doc); err != nil {
		return fmt.Errorf("schema: outcome_table: %w", err)
	}
	return nil
}
