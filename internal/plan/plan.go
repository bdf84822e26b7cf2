// Package plan describes the Insights resources a provisioning run
// gets or creates, and loads that description from YAML or JSON.
package plan

import (
	"fmt"

	"github.com/iTwin/insights-api-sample-console-app/internal/insights"
)

// Name and type fallbacks for entries that leave them out.
const (
	DefaultGroupPropertyName      = "SampleGroupProperty"
	DefaultCalculatedPropertyName = "SampleCalculatedProperty"
	DefaultCustomCalculationName  = "SampleCustomCalculation"
	Undefined                     = "Undefined"
)

// Plan is one report, one mapping linked to it, and the groups of that mapping.
type Plan struct {
	Report  Report  `json:"report" yaml:"report"`
	Mapping Mapping `json:"mapping" yaml:"mapping"`
	Groups  []Group `json:"groups" yaml:"groups"`
}

// Report is matched by name among the non-deleted reports of the project.
type Report struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Mapping is matched by name among the mappings of the iModel.
type Mapping struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Group is matched by name within the mapping.
type Group struct {
	Name                 string               `json:"name" yaml:"name"`
	Description          string               `json:"description,omitempty" yaml:"description,omitempty"`
	Query                string               `json:"query" yaml:"query"`
	Properties           []GroupProperty      `json:"properties,omitempty" yaml:"properties,omitempty"`
	CalculatedProperties []CalculatedProperty `json:"calculatedProperties,omitempty" yaml:"calculatedProperties,omitempty"`
	CustomCalculations   []CustomCalculation  `json:"customCalculations,omitempty" yaml:"customCalculations,omitempty"`
}

// GroupProperty reads one or more EC properties.
type GroupProperty struct {
	Name         string       `json:"name" yaml:"name"`
	DataType     string       `json:"dataType,omitempty" yaml:"dataType,omitempty"`
	QuantityType string       `json:"quantityType,omitempty" yaml:"quantityType,omitempty"`
	ECProperties []ECProperty `json:"ecProperties" yaml:"ecProperties"`
}

// ECProperty names a schema/class/property triple.
type ECProperty struct {
	Schema string `json:"schema" yaml:"schema"`
	Class  string `json:"class" yaml:"class"`
	Name   string `json:"name" yaml:"name"`
	Type   string `json:"type,omitempty" yaml:"type,omitempty"`
}

// CalculatedProperty is a geometric value such as Length or Area.
type CalculatedProperty struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
}

// CustomCalculation is a formula over other properties of the group.
type CustomCalculation struct {
	Name         string `json:"name" yaml:"name"`
	Formula      string `json:"formula" yaml:"formula"`
	QuantityType string `json:"quantityType,omitempty" yaml:"quantityType,omitempty"`
}

// Normalize fills omitted names and types with their fallbacks.
func (p *Plan) Normalize() {
	for gi := range p.Groups {
		g := &p.Groups[gi]
		for i := range g.Properties {
			gp := &g.Properties[i]
			gp.Name = orDefault(gp.Name, DefaultGroupPropertyName)
			gp.DataType = orDefault(gp.DataType, Undefined)
			gp.QuantityType = orDefault(gp.QuantityType, Undefined)
			for j := range gp.ECProperties {
				gp.ECProperties[j].Type = orDefault(gp.ECProperties[j].Type, Undefined)
			}
		}
		for i := range g.CalculatedProperties {
			cp := &g.CalculatedProperties[i]
			cp.Name = orDefault(cp.Name, DefaultCalculatedPropertyName)
			cp.Type = orDefault(cp.Type, Undefined)
		}
		for i := range g.CustomCalculations {
			cc := &g.CustomCalculations[i]
			cc.Name = orDefault(cc.Name, DefaultCustomCalculationName)
			cc.QuantityType = orDefault(cc.QuantityType, Undefined)
		}
	}
}

// Validate reports the first structural problem: missing names or queries,
// or two entries that would match the same remote entity.
func (p *Plan) Validate() error {
	if p.Report.Name == "" {
		return fmt.Errorf("report.name is required")
	}
	if p.Mapping.Name == "" {
		return fmt.Errorf("mapping.name is required")
	}
	groups := make(map[string]bool, len(p.Groups))
	for i, g := range p.Groups {
		if g.Name == "" {
			return fmt.Errorf("groups[%d].name is required", i)
		}
		if g.Query == "" {
			return fmt.Errorf("group %q: query is required", g.Name)
		}
		if groups[g.Name] {
			return fmt.Errorf("group %q is declared twice", g.Name)
		}
		groups[g.Name] = true

		if err := unique(g.Name, "property", len(g.Properties), func(i int) string { return g.Properties[i].Name }); err != nil {
			return err
		}
		if err := unique(g.Name, "calculated property", len(g.CalculatedProperties), func(i int) string { return g.CalculatedProperties[i].Name }); err != nil {
			return err
		}
		if err := unique(g.Name, "custom calculation", len(g.CustomCalculations), func(i int) string { return g.CustomCalculations[i].Name }); err != nil {
			return err
		}
		for _, cc := range g.CustomCalculations {
			if cc.Formula == "" {
				return fmt.Errorf("group %q: custom calculation %q has no formula", g.Name, cc.Name)
			}
		}
	}
	return nil
}

func unique(group, kind string, n int, name func(int) string) error {
	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		if seen[name(i)] {
			return fmt.Errorf("group %q: %s %q is declared twice", group, kind, name(i))
		}
		seen[name(i)] = true
	}
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// Params converts the entry to the API request body.
func (gp GroupProperty) Params() insights.GroupPropertyParams {
	ec := make([]insights.ECProperty, len(gp.ECProperties))
	for i, p := range gp.ECProperties {
		ec[i] = insights.ECProperty{
			ECSchemaName:   p.Schema,
			ECClassName:    p.Class,
			ECPropertyName: p.Name,
			ECPropertyType: p.Type,
		}
	}
	return insights.GroupPropertyParams{
		PropertyName: gp.Name,
		DataType:     gp.DataType,
		QuantityType: gp.QuantityType,
		ECProperties: ec,
	}
}

// Params converts the entry to the API request body.
func (cp CalculatedProperty) Params() insights.CalculatedPropertyParams {
	return insights.CalculatedPropertyParams{PropertyName: cp.Name, Type: cp.Type}
}

// Params converts the entry to the API request body.
func (cc CustomCalculation) Params() insights.CustomCalculationParams {
	return insights.CustomCalculationParams{PropertyName: cc.Name, Formula: cc.Formula, QuantityType: cc.QuantityType}
}
