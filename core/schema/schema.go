// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package schema

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/goccy/go-json"

	"github.com/xeipuuv/gojsonschema"
)

// Validator is a utility to validate JSON object against a given schema
type Validator struct {
	schemaValidators map[string]*gojsonschema.Schema
	required         map[string][]string
}

// Violation is a property that is present but does not match its schema
type Violation struct {
	Property    string
	Description string
}

// Result is the outcome of Check.
//
// Missing lists required properties that are absent, null or empty strings, in the order
// of the schema's required list. Invalid lists all other violations, sorted by property.
type Result struct {
	Missing []string
	Invalid []Violation
}

// Valid returns true if the checked object had neither missing nor invalid properties
func (r *Result) Valid() bool {
	return len(r.Missing) == 0 && len(r.Invalid) == 0
}

// Message returns a human readable description of the first problem. Missing properties
// take precedence over invalid ones.
func (r *Result) Message() string {
	switch {
	case len(r.Missing) > 0:
		return "Missing " + r.Missing[0]
	case len(r.Invalid) > 0:
		return "Invalid " + r.Invalid[0].Property + ": " + r.Invalid[0].Description
	}
	return ""
}

// NewValidatorFromFS creates a new Validator using schemas from schemaFS. Json files
// from / will be used as toplevel schemas, while json files in /refs/ will be used
// as references
func NewValidatorFromFS(schemaFS fs.FS) (*Validator, error) {

	readDir := func(dir string) ([]string, error) {
		var strs []string
		files, err := fs.ReadDir(schemaFS, dir)
		if err != nil {
			if dir != "." && errors.Is(err, fs.ErrNotExist) {
				return nil, nil
			}
			return nil, fmt.Errorf("cannot read dir %w", err)
		}
		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
				continue
			}
			str, err := fs.ReadFile(schemaFS, path.Join(dir, f.Name()))
			if err != nil {
				return nil, fmt.Errorf("cannot read file '%s' %w", f.Name(), err)
			}
			strs = append(strs, string(str))
		}
		return strs, nil
	}

	schemasString, err := readDir(".")
	if err != nil {
		return nil, err
	}

	refsString, err := readDir("refs")
	if err != nil {
		return nil, err
	}

	return NewValidator(schemasString, refsString)
}

// NewValidator creates a new Validator using schemas for the top level JSON schemas and refs
// for refs that may be referenced in the top level schemas. Top level schemas cannot reference each
// others. If a reference is mentioned, it can only be in the list of refs
func NewValidator(schemas []string, refs []string) (*Validator, error) {
	type schema struct {
		ID       string   `json:"$id"`
		Required []string `json:"required"`
	}
	validator := Validator{
		schemaValidators: make(map[string]*gojsonschema.Schema),
		required:         make(map[string][]string),
	}
	for _, str := range schemas {
		s := schema{}
		err := json.Unmarshal([]byte(str), &s)
		if err != nil {
			return nil, fmt.Errorf("parse error '%v' in schema: '%s'", err, str)
		}
		if s.ID == "" {
			return nil, fmt.Errorf("schema does not contain $id: '%s'", str)
		}
		sl := gojsonschema.NewSchemaLoader()

		for _, ref := range refs {
			loader := gojsonschema.NewStringLoader(ref)
			err := sl.AddSchemas(loader)
			if err != nil {
				return nil, fmt.Errorf("cannot add ref %s %s", ref, err)
			}
		}
		compiled, err := sl.Compile(gojsonschema.NewStringLoader(str))
		if err != nil {
			return nil, fmt.Errorf("cannot compile schema %s %s", s.ID, err)
		}
		validator.schemaValidators[s.ID] = compiled
		validator.required[s.ID] = s.Required
	}

	return &validator, nil
}

// HasSchema returns true if schemaID is known
func (v *Validator) HasSchema(schemaID string) bool {
	_, ok := v.schemaValidators[schemaID]
	return ok
}

// Check validates a decoded JSON object against schemaID and sorts the findings into
// missing and invalid properties. An error is only returned if the validation itself
// could not be carried out.
func (v *Validator) Check(object map[string]interface{}, schemaID string) (*Result, error) {
	compiled, ok := v.schemaValidators[schemaID]
	if !ok {
		return nil, fmt.Errorf("there is no schema %s ", schemaID)
	}

	result := &Result{}
	missing := map[string]bool{}
	for _, property := range v.required[schemaID] {
		value, present := object[property]
		if !present || value == nil || value == "" {
			result.Missing = append(result.Missing, property)
			missing[property] = true
		}
	}

	validation, err := compiled.Validate(gojsonschema.NewGoLoader(object))
	if err != nil {
		return nil, fmt.Errorf("cannot validate with schema %s %s", schemaID, err)
	}
	for _, e := range validation.Errors() {
		if e.Type() == "required" {
			// required lists pulled in through allOf or $ref
			if property, ok := e.Details()["property"].(string); ok && !missing[property] && e.Field() == "(root)" {
				result.Missing = append(result.Missing, property)
				missing[property] = true
			}
			continue
		}
		property := e.Field()
		if missing[property] {
			continue
		}
		result.Invalid = append(result.Invalid, Violation{Property: property, Description: e.Description()})
	}
	sort.SliceStable(result.Invalid, func(i, j int) bool {
		return result.Invalid[i].Property < result.Invalid[j].Property
	})
	return result, nil
}
