// Package validate checks kernel artifacts against their embedded JSON
// Schemas before they are trusted. Contract validation failing here is a
// startup failure: the enforcer fails closed rather than running against a
// malformed rule set.
package validate

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/kaptinlin/jsonschema"
)

//go:embed schemas/contract.schema.json
var contractSchemaRaw []byte

//go:embed schemas/evidence_package.schema.json
var evidencePackageSchemaRaw []byte

var (
	compileOnce           sync.Once
	compileErr            error
	contractSchema        *jsonschema.Schema
	evidencePackageSchema *jsonschema.Schema
)

func compiledSchemas() error {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.AssertFormat = true
		contractSchema, compileErr = compiler.Compile(contractSchemaRaw)
		if compileErr != nil {
			compileErr = fmt.Errorf("compile contract schema: %w", compileErr)
			return
		}
		evidencePackageSchema, compileErr = compiler.Compile(evidencePackageSchemaRaw)
		if compileErr != nil {
			compileErr = fmt.Errorf("compile evidence package schema: %w", compileErr)
		}
	})
	return compileErr
}

// ContractJSON validates a contract rule document in JSON form.
func ContractJSON(data []byte) error {
	if err := compiledSchemas(); err != nil {
		return err
	}
	return validateJSON(contractSchema, data)
}

// EvidencePackageJSON validates one serialized evidence package.
func EvidencePackageJSON(data []byte) error {
	if err := compiledSchemas(); err != nil {
		return err
	}
	return validateJSON(evidencePackageSchema, data)
}

func validateJSON(schema *jsonschema.Schema, data []byte) error {
	result := schema.ValidateJSON(data)
	if result.IsValid() {
		return nil
	}
	return fmt.Errorf("schema validation failed: %v", result.Errors)
}
