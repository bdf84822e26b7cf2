package insights

import "context"

// PropertyScope addresses the property collections of one group.
type PropertyScope struct {
	IModelID  string
	MappingID string
	GroupID   string
}

func (s PropertyScope) segments(collection string) []string {
	return []string{"datasources", "iModels", s.IModelID, "mappings", s.MappingID, "groups", s.GroupID, collection}
}

// GroupPropertiesClient provides operations on the group properties of one group.
type GroupPropertiesClient struct {
	res *Resource[GroupProperty, GroupPropertyParams, GroupPropertyParams]
}

// GroupProperties returns the group-properties client bound to scope.
func (c *Client) GroupProperties(scope PropertyScope) *GroupPropertiesClient {
	return &GroupPropertiesClient{
		res: NewResource[GroupProperty, GroupPropertyParams, GroupPropertyParams](c, "group property",
			scope.segments("properties")...),
	}
}

// List returns every group property of the group.
func (p *GroupPropertiesClient) List(ctx context.Context) ([]GroupProperty, error) {
	return p.res.GetAll(ctx, p.res.At(), "properties")
}

// Get returns a single group property.
func (p *GroupPropertiesClient) Get(ctx context.Context, propertyID string) (GroupProperty, error) {
	return p.res.GetSingle(ctx, p.res.At(propertyID))
}

// Create creates a group property.
func (p *GroupPropertiesClient) Create(ctx context.Context, params GroupPropertyParams) (GroupProperty, error) {
	return p.res.Create(ctx, p.res.At(), params)
}

// Update replaces a group property.
func (p *GroupPropertiesClient) Update(ctx context.Context, propertyID string, params GroupPropertyParams) (GroupProperty, error) {
	return p.res.Put(ctx, p.res.At(propertyID), params)
}

// Delete deletes a group property.
func (p *GroupPropertiesClient) Delete(ctx context.Context, propertyID string) error {
	return p.res.Delete(ctx, p.res.At(propertyID))
}

// CalculatedPropertiesClient provides operations on the calculated properties of one group.
type CalculatedPropertiesClient struct {
	res *Resource[CalculatedProperty, CalculatedPropertyParams, CalculatedPropertyParams]
}

// CalculatedProperties returns the calculated-properties client bound to scope.
func (c *Client) CalculatedProperties(scope PropertyScope) *CalculatedPropertiesClient {
	return &CalculatedPropertiesClient{
		res: NewResource[CalculatedProperty, CalculatedPropertyParams, CalculatedPropertyParams](c, "calculated property",
			scope.segments("calculatedProperties")...),
	}
}

// List returns every calculated property of the group.
func (p *CalculatedPropertiesClient) List(ctx context.Context) ([]CalculatedProperty, error) {
	return p.res.GetAll(ctx, p.res.At(), "properties")
}

// Get returns a single calculated property.
func (p *CalculatedPropertiesClient) Get(ctx context.Context, propertyID string) (CalculatedProperty, error) {
	return p.res.GetSingle(ctx, p.res.At(propertyID))
}

// Create creates a calculated property.
func (p *CalculatedPropertiesClient) Create(ctx context.Context, params CalculatedPropertyParams) (CalculatedProperty, error) {
	return p.res.Create(ctx, p.res.At(), params)
}

// Update replaces a calculated property.
func (p *CalculatedPropertiesClient) Update(ctx context.Context, propertyID string, params CalculatedPropertyParams) (CalculatedProperty, error) {
	return p.res.Put(ctx, p.res.At(propertyID), params)
}

// Delete deletes a calculated property.
func (p *CalculatedPropertiesClient) Delete(ctx context.Context, propertyID string) error {
	return p.res.Delete(ctx, p.res.At(propertyID))
}

// CustomCalculationsClient provides operations on the custom calculations of one group.
type CustomCalculationsClient struct {
	res *Resource[CustomCalculation, CustomCalculationParams, CustomCalculationParams]
}

// CustomCalculations returns the custom-calculations client bound to scope.
func (c *Client) CustomCalculations(scope PropertyScope) *CustomCalculationsClient {
	return &CustomCalculationsClient{
		res: NewResource[CustomCalculation, CustomCalculationParams, CustomCalculationParams](c, "custom calculation",
			scope.segments("customCalculations")...),
	}
}

// List returns every custom calculation of the group.
func (p *CustomCalculationsClient) List(ctx context.Context) ([]CustomCalculation, error) {
	return p.res.GetAll(ctx, p.res.At(), "customCalculations")
}

// Get returns a single custom calculation.
func (p *CustomCalculationsClient) Get(ctx context.Context, calculationID string) (CustomCalculation, error) {
	return p.res.GetSingle(ctx, p.res.At(calculationID))
}

// Create creates a custom calculation.
func (p *CustomCalculationsClient) Create(ctx context.Context, params CustomCalculationParams) (CustomCalculation, error) {
	return p.res.Create(ctx, p.res.At(), params)
}

// Update replaces a custom calculation.
func (p *CustomCalculationsClient) Update(ctx context.Context, calculationID string, params CustomCalculationParams) (CustomCalculation, error) {
	return p.res.Put(ctx, p.res.At(calculationID), params)
}

// Delete deletes a custom calculation.
func (p *CustomCalculationsClient) Delete(ctx context.Context, calculationID string) error {
	return p.res.Delete(ctx, p.res.At(calculationID))
}
