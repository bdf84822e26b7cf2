// Package provision gets or creates the Insights resources described by a
// plan: report, mapping, report-mapping link, groups and their properties.
package provision

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iTwin/insights-api-sample-console-app/internal/insights"
	"github.com/iTwin/insights-api-sample-console-app/internal/plan"
)

// GetOrCreate returns the first listed entity accepted by match, or the
// result of create when none is. created reports which path was taken.
func GetOrCreate[E any](ctx context.Context, list func(context.Context) ([]E, error), match func(E) bool, create func(context.Context) (E, error)) (entity E, created bool, err error) {
	existing, err := list(ctx)
	if err != nil {
		return entity, false, err
	}
	for _, e := range existing {
		if match(e) {
			return e, false, nil
		}
	}
	entity, err = create(ctx)
	if err != nil {
		return entity, false, err
	}
	return entity, true, nil
}

// Entity is one provisioned resource, for reporting.
type Entity struct {
	Kind    string
	Name    string
	ID      string
	Created bool
}

// GroupResult holds a group and the properties provisioned under it.
type GroupResult struct {
	Group                insights.Group
	Properties           []insights.GroupProperty
	CalculatedProperties []insights.CalculatedProperty
	CustomCalculations   []insights.CustomCalculation
}

// Result is everything a Run resolved, in plan order.
type Result struct {
	Report        insights.Report
	Mapping       insights.Mapping
	ReportMapping insights.ReportMapping
	Groups        []GroupResult

	// Entities lists every resource in provisioning order.
	Entities []Entity
}

// Created counts the entities that did not exist before the run.
func (r *Result) Created() int {
	n := 0
	for _, e := range r.Entities {
		if e.Created {
			n++
		}
	}
	return n
}

// Provisioner runs plans against one Insights client.
type Provisioner struct {
	client      *insights.Client
	logger      *zap.Logger
	concurrency int
}

// Option configures a Provisioner.
type Option func(*Provisioner)

// WithLogger configures structured logging.
func WithLogger(l *zap.Logger) Option {
	return func(p *Provisioner) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithConcurrency bounds how many property kinds of a group are provisioned
// at once. 1 makes the run fully sequential.
func WithConcurrency(n int) Option {
	return func(p *Provisioner) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// New returns a Provisioner.
func New(client *insights.Client, opts ...Option) *Provisioner {
	p := &Provisioner{client: client, logger: zap.NewNop(), concurrency: 3}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run gets or creates every resource of pl under projectID and iModelID.
// Report, mapping, link and groups are resolved in order; the three property
// kinds of one group are resolved concurrently. The first error stops the run.
func (p *Provisioner) Run(ctx context.Context, projectID, iModelID string, pl *plan.Plan) (*Result, error) {
	res := &Result{}

	reports := p.client.Reports()
	report, created, err := GetOrCreate(ctx,
		func(ctx context.Context) ([]insights.Report, error) { return reports.List(ctx, projectID) },
		func(r insights.Report) bool { return r.DisplayName == pl.Report.Name && !r.Deleted },
		func(ctx context.Context) (insights.Report, error) {
			return reports.Create(ctx, insights.ReportCreate{
				DisplayName: pl.Report.Name,
				ProjectID:   projectID,
				Description: pl.Report.Description,
			})
		})
	if err != nil {
		return nil, fmt.Errorf("report %q: %w", pl.Report.Name, err)
	}
	res.Report = report
	p.record(res, "report", report.DisplayName, report.ID, created)

	mappings := p.client.Mappings(iModelID)
	mapping, created, err := GetOrCreate(ctx,
		mappings.List,
		func(m insights.Mapping) bool { return m.MappingName == pl.Mapping.Name },
		func(ctx context.Context) (insights.Mapping, error) {
			return mappings.Create(ctx, insights.MappingCreate{
				MappingName: pl.Mapping.Name,
				Description: pl.Mapping.Description,
			})
		})
	if err != nil {
		return nil, fmt.Errorf("mapping %q: %w", pl.Mapping.Name, err)
	}
	res.Mapping = mapping
	p.record(res, "mapping", mapping.MappingName, mapping.ID, created)

	links := p.client.ReportMappings(report.ID)
	link, created, err := GetOrCreate(ctx,
		links.List,
		func(rm insights.ReportMapping) bool { return rm.MappingID == mapping.ID },
		func(ctx context.Context) (insights.ReportMapping, error) {
			return links.Create(ctx, insights.ReportMappingCreate{MappingID: mapping.ID, IModelID: iModelID})
		})
	if err != nil {
		return nil, fmt.Errorf("report mapping %s/%s: %w", report.ID, mapping.ID, err)
	}
	if link.MappingID != mapping.ID || (link.ReportID != "" && link.ReportID != report.ID) {
		return nil, fmt.Errorf("report mapping links report %q to mapping %q, want %q to %q",
			link.ReportID, link.MappingID, report.ID, mapping.ID)
	}
	res.ReportMapping = link
	p.record(res, "report mapping", report.DisplayName+" -> "+mapping.MappingName, link.MappingID, created)

	for _, g := range pl.Groups {
		gr, entities, err := p.group(ctx, iModelID, mapping.ID, g)
		if err != nil {
			return nil, fmt.Errorf("group %q: %w", g.Name, err)
		}
		res.Groups = append(res.Groups, gr)
		res.Entities = append(res.Entities, entities...)
	}

	p.logger.Info("provisioning complete",
		zap.String("report_id", report.ID),
		zap.String("mapping_id", mapping.ID),
		zap.Int("groups", len(res.Groups)),
		zap.Int("created", res.Created()))
	return res, nil
}

func (p *Provisioner) group(ctx context.Context, iModelID, mappingID string, g plan.Group) (GroupResult, []Entity, error) {
	groups := p.client.Groups(iModelID, mappingID)
	group, created, err := GetOrCreate(ctx,
		groups.List,
		func(e insights.Group) bool { return e.GroupName == g.Name },
		func(ctx context.Context) (insights.Group, error) {
			return groups.Create(ctx, insights.GroupCreate{GroupName: g.Name, Query: g.Query, Description: g.Description})
		})
	if err != nil {
		return GroupResult{}, nil, err
	}
	p.log("group", group.GroupName, group.ID, created)

	gr := GroupResult{Group: group}
	scope := insights.PropertyScope{IModelID: iModelID, MappingID: mappingID, GroupID: group.ID}

	// Each kind writes only its own slice.
	var propEntities, calcEntities, customEntities []Entity

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(p.concurrency)
	eg.Go(func() error {
		client := p.client.GroupProperties(scope)
		for _, gp := range g.Properties {
			prop, created, err := GetOrCreate(egCtx,
				client.List,
				func(e insights.GroupProperty) bool { return e.PropertyName == gp.Name },
				func(ctx context.Context) (insights.GroupProperty, error) { return client.Create(ctx, gp.Params()) })
			if err != nil {
				return fmt.Errorf("group property %q: %w", gp.Name, err)
			}
			p.log("group property", prop.PropertyName, prop.ID, created)
			gr.Properties = append(gr.Properties, prop)
			propEntities = append(propEntities, Entity{"group property", prop.PropertyName, prop.ID, created})
		}
		return nil
	})
	eg.Go(func() error {
		client := p.client.CalculatedProperties(scope)
		for _, cp := range g.CalculatedProperties {
			prop, created, err := GetOrCreate(egCtx,
				client.List,
				func(e insights.CalculatedProperty) bool { return e.PropertyName == cp.Name },
				func(ctx context.Context) (insights.CalculatedProperty, error) { return client.Create(ctx, cp.Params()) })
			if err != nil {
				return fmt.Errorf("calculated property %q: %w", cp.Name, err)
			}
			p.log("calculated property", prop.PropertyName, prop.ID, created)
			gr.CalculatedProperties = append(gr.CalculatedProperties, prop)
			calcEntities = append(calcEntities, Entity{"calculated property", prop.PropertyName, prop.ID, created})
		}
		return nil
	})
	eg.Go(func() error {
		client := p.client.CustomCalculations(scope)
		for _, cc := range g.CustomCalculations {
			calc, created, err := GetOrCreate(egCtx,
				client.List,
				func(e insights.CustomCalculation) bool { return e.PropertyName == cc.Name },
				func(ctx context.Context) (insights.CustomCalculation, error) { return client.Create(ctx, cc.Params()) })
			if err != nil {
				return fmt.Errorf("custom calculation %q: %w", cc.Name, err)
			}
			p.log("custom calculation", calc.PropertyName, calc.ID, created)
			gr.CustomCalculations = append(gr.CustomCalculations, calc)
			customEntities = append(customEntities, Entity{"custom calculation", calc.PropertyName, calc.ID, created})
		}
		return nil
	})
	if err := eg.Wait(); err != nil {
		return GroupResult{}, nil, err
	}

	entities := []Entity{{"group", group.GroupName, group.ID, created}}
	entities = append(entities, propEntities...)
	entities = append(entities, calcEntities...)
	entities = append(entities, customEntities...)
	return gr, entities, nil
}

func (p *Provisioner) record(res *Result, kind, name, id string, created bool) {
	p.log(kind, name, id, created)
	res.Entities = append(res.Entities, Entity{Kind: kind, Name: name, ID: id, Created: created})
}

func (p *Provisioner) log(kind, name, id string, created bool) {
	p.logger.Info("get or created "+kind,
		zap.String("name", name),
		zap.String("id", id),
		zap.Bool("created", created))
}
