package insights

import "context"

// MappingsClient provides operations on the mappings of one iModel.
type MappingsClient struct {
	res *Resource[Mapping, MappingCreate, MappingUpdate]
}

// Mappings returns the mappings client bound to iModelID.
func (c *Client) Mappings(iModelID string) *MappingsClient {
	return &MappingsClient{
		res: NewResource[Mapping, MappingCreate, MappingUpdate](c, "mapping",
			"datasources", "iModels", iModelID, "mappings"),
	}
}

// List returns every mapping of the iModel.
func (m *MappingsClient) List(ctx context.Context) ([]Mapping, error) {
	return m.res.GetAll(ctx, m.res.At(), "mappings")
}

// Get returns a single mapping.
func (m *MappingsClient) Get(ctx context.Context, mappingID string) (Mapping, error) {
	return m.res.GetSingle(ctx, m.res.At(mappingID))
}

// Create creates a mapping.
func (m *MappingsClient) Create(ctx context.Context, params MappingCreate) (Mapping, error) {
	return m.res.Create(ctx, m.res.At(), params)
}

// Update patches a mapping.
func (m *MappingsClient) Update(ctx context.Context, mappingID string, params MappingUpdate) (Mapping, error) {
	return m.res.Patch(ctx, m.res.At(mappingID), params)
}

// Delete deletes a mapping.
func (m *MappingsClient) Delete(ctx context.Context, mappingID string) error {
	return m.res.Delete(ctx, m.res.At(mappingID))
}

// GroupsClient provides operations on the groups of one mapping.
type GroupsClient struct {
	res *Resource[Group, GroupCreate, GroupUpdate]
}

// Groups returns the groups client bound to (iModelID, mappingID).
func (c *Client) Groups(iModelID, mappingID string) *GroupsClient {
	return &GroupsClient{
		res: NewResource[Group, GroupCreate, GroupUpdate](c, "group",
			"datasources", "iModels", iModelID, "mappings", mappingID, "groups"),
	}
}

// List returns every group of the mapping.
func (g *GroupsClient) List(ctx context.Context) ([]Group, error) {
	return g.res.GetAll(ctx, g.res.At(), "groups")
}

// Get returns a single group.
func (g *GroupsClient) Get(ctx context.Context, groupID string) (Group, error) {
	return g.res.GetSingle(ctx, g.res.At(groupID))
}

// Create creates a group.
func (g *GroupsClient) Create(ctx context.Context, params GroupCreate) (Group, error) {
	return g.res.Create(ctx, g.res.At(), params)
}

// Update patches a group.
func (g *GroupsClient) Update(ctx context.Context, groupID string, params GroupUpdate) (Group, error) {
	return g.res.Patch(ctx, g.res.At(groupID), params)
}

// Delete deletes a group.
func (g *GroupsClient) Delete(ctx context.Context, groupID string) error {
	return g.res.Delete(ctx, g.res.At(groupID))
}
