package insights

import (
	"context"
	"net/url"
)

// ReportsClient provides operations on reports.
type ReportsClient struct {
	res *Resource[Report, ReportCreate, ReportUpdate]
}

// Reports returns the reports client.
func (c *Client) Reports() *ReportsClient {
	return &ReportsClient{res: NewResource[Report, ReportCreate, ReportUpdate](c, "report", "reports")}
}

// List returns every report of the project, following pagination.
func (r *ReportsClient) List(ctx context.Context, projectID string) ([]Report, error) {
	query := url.Values{"projectId": {projectID}}
	return r.res.GetAll(ctx, func() string { return r.res.URL() + "?" + query.Encode() }, "reports")
}

// Get returns a single report.
func (r *ReportsClient) Get(ctx context.Context, reportID string) (Report, error) {
	return r.res.GetSingle(ctx, r.res.At(reportID))
}

// Create creates a report.
func (r *ReportsClient) Create(ctx context.Context, params ReportCreate) (Report, error) {
	return r.res.Create(ctx, r.res.At(), params)
}

// Update patches a report.
func (r *ReportsClient) Update(ctx context.Context, reportID string, params ReportUpdate) (Report, error) {
	return r.res.Patch(ctx, r.res.At(reportID), params)
}

// Delete deletes a report.
func (r *ReportsClient) Delete(ctx context.Context, reportID string) error {
	return r.res.Delete(ctx, r.res.At(reportID))
}

// ReportMappingsClient provides operations on the mappings linked to one report.
type ReportMappingsClient struct {
	res *Resource[ReportMapping, ReportMappingCreate, struct{}]
}

// ReportMappings returns the report-mappings client bound to reportID.
func (c *Client) ReportMappings(reportID string) *ReportMappingsClient {
	return &ReportMappingsClient{
		res: NewResource[ReportMapping, ReportMappingCreate, struct{}](c, "report mapping",
			"reports", reportID, "datasources", "iModelMappings"),
	}
}

// List returns every mapping linked to the report.
func (r *ReportMappingsClient) List(ctx context.Context) ([]ReportMapping, error) {
	return r.res.GetAll(ctx, r.res.At(), "mappings")
}

// Create links a mapping to the report.
func (r *ReportMappingsClient) Create(ctx context.Context, params ReportMappingCreate) (ReportMapping, error) {
	return r.res.Create(ctx, r.res.At(), params)
}

// Delete unlinks a mapping from the report.
func (r *ReportMappingsClient) Delete(ctx context.Context, mappingID string) error {
	return r.res.Delete(ctx, r.res.At(mappingID))
}
