// Package config loads composition definitions: the fragments and column
// mappings for one experiment dataset, written as YAML or CUE.
//
// Example (YAML):
//
//	assignments:
//	  query_file: assignments.sql
//	  mapping:
//	    randomisation_unit_id: customer_id
//	    variant_column: variant
//	    date_column: date_ass
//	entry_point:
//	  query: |
//	    with ep as (select customer_id, date_ep from entrypoint_sql)
//	    select * from ep
//	  mapping:
//	    randomisation_unit_id: customer_id
//	    date_column: date_ep
//	facts:
//	  - query_file: orders.sql
//	    mapping:
//	      randomisation_unit_id: customer_id
//	      date_column: obs_date
//	      fact_columns: orders_created, orders_cancelled
//
// query_file paths are relative to the definition file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/ludovico-lanni/sql-4-exp-analysis/internal/compose"
)

// Definition is a parsed composition definition.
type Definition struct {
	Assignments AssignmentsSource `yaml:"assignments" json:"assignments"`
	EntryPoint  EntryPointSource  `yaml:"entry_point" json:"entry_point"`
	Facts       []FactSource      `yaml:"facts" json:"facts"`
}

// AssignmentsSource is the assignments fragment and its mapping.
type AssignmentsSource struct {
	Query     string                     `yaml:"query,omitempty" json:"query,omitempty"`
	QueryFile string                     `yaml:"query_file,omitempty" json:"query_file,omitempty"`
	Mapping   compose.AssignmentsMapping `yaml:"mapping" json:"mapping"`
}

// EntryPointSource is the entry point fragment and its mapping.
type EntryPointSource struct {
	Query     string                    `yaml:"query,omitempty" json:"query,omitempty"`
	QueryFile string                    `yaml:"query_file,omitempty" json:"query_file,omitempty"`
	Mapping   compose.EntryPointMapping `yaml:"mapping" json:"mapping"`
}

// FactSource is one fact fragment and its mapping.
type FactSource struct {
	Query     string      `yaml:"query,omitempty" json:"query,omitempty"`
	QueryFile string      `yaml:"query_file,omitempty" json:"query_file,omitempty"`
	Mapping   FactMapping `yaml:"mapping" json:"mapping"`
}

// FactMapping is compose.FactMapping with fact_columns accepted either as a
// list or as one comma-separated string.
type FactMapping struct {
	RandomisationUnitID string     `yaml:"randomisation_unit_id" json:"randomisation_unit_id"`
	DateColumn          string     `yaml:"date_column" json:"date_column"`
	FactColumns         ColumnList `yaml:"fact_columns" json:"fact_columns"`
}

// ColumnList decodes from a sequence of names or from "a, b, c".
type ColumnList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *ColumnList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		*c = splitColumns(value.Value)
		return nil
	}
	var cols []string
	if err := value.Decode(&cols); err != nil {
		return err
	}
	*c = cols
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *ColumnList) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = splitColumns(s)
		return nil
	}
	var cols []string
	if err := json.Unmarshal(data, &cols); err != nil {
		return fmt.Errorf("fact_columns must be a list or a comma-separated string: %w", err)
	}
	*c = cols
	return nil
}

// splitColumns splits "a, b" into ["a", "b"]. Empty input yields an empty
// list; empty items are kept so the composer can report their position.
func splitColumns(s string) []string {
	if strings.TrimSpace(s) == "" {
		return []string{}
	}
	return strings.Split(s, ",")
}

// Input resolves query files against baseDir and returns the composer
// input. Every query text and identifier is trimmed and NFC-normalized so
// visually identical names compare equal.
func (d *Definition) Input(baseDir string) (compose.Input, error) {
	assignments, err := resolveQuery("assignments", d.Assignments.Query, d.Assignments.QueryFile, baseDir)
	if err != nil {
		return compose.Input{}, err
	}
	entryPoint, err := resolveQuery("entry_point", d.EntryPoint.Query, d.EntryPoint.QueryFile, baseDir)
	if err != nil {
		return compose.Input{}, err
	}

	in := compose.Input{
		Assignments: assignments,
		AssignmentsMapping: compose.AssignmentsMapping{
			RandomisationUnitID: ident(d.Assignments.Mapping.RandomisationUnitID),
			VariantColumn:       ident(d.Assignments.Mapping.VariantColumn),
			DateColumn:          ident(d.Assignments.Mapping.DateColumn),
		},
		EntryPoint: entryPoint,
		EntryPointMapping: compose.EntryPointMapping{
			RandomisationUnitID: ident(d.EntryPoint.Mapping.RandomisationUnitID),
			DateColumn:          ident(d.EntryPoint.Mapping.DateColumn),
		},
		Facts: make([]compose.FactEntry, 0, len(d.Facts)),
	}

	for i, f := range d.Facts {
		query, err := resolveQuery(fmt.Sprintf("facts[%d]", i), f.Query, f.QueryFile, baseDir)
		if err != nil {
			return compose.Input{}, err
		}
		cols := make([]string, len(f.Mapping.FactColumns))
		for j, c := range f.Mapping.FactColumns {
			cols[j] = ident(c)
		}
		in.Facts = append(in.Facts, compose.FactEntry{
			Fragment: query,
			Mapping: compose.FactMapping{
				RandomisationUnitID: ident(f.Mapping.RandomisationUnitID),
				DateColumn:          ident(f.Mapping.DateColumn),
				FactColumns:         cols,
			},
		})
	}

	return in, nil
}

func ident(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// resolveQuery returns the inline query or the contents of the query file.
// Exactly one of the two must be set.
func resolveQuery(source, query, queryFile, baseDir string) (string, error) {
	switch {
	case query != "" && queryFile != "":
		return "", &LoadError{Kind: ErrInvalid, Message: fmt.Sprintf("%s: query and query_file are mutually exclusive", source)}
	case query != "":
		return norm.NFC.String(query), nil
	case queryFile != "":
		path := queryFile
		if !filepath.IsAbs(path) && baseDir != "" {
			path = filepath.Join(baseDir, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return "", &LoadError{Path: path, Kind: readErrorKind(err), Message: fmt.Sprintf("%s: reading query file: %v", source, err)}
		}
		return norm.NFC.String(string(data)), nil
	default:
		return "", &LoadError{Kind: ErrInvalid, Message: fmt.Sprintf("%s: one of query or query_file is required", source)}
	}
}
