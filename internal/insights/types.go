package insights

// --- Insights Response Types (hand-written, aligned with the Insights v1 API) ---

// Report is a named collection of mappings, owned by a project.
type Report struct {
	ID          string      `json:"id"`
	DisplayName string      `json:"displayName"`
	Description string      `json:"description,omitempty"`
	Deleted     bool        `json:"deleted"`
	Links       ReportLinks `json:"_links,omitempty"`
}

// ReportLinks points at the owning project.
type ReportLinks struct {
	Project *Link `json:"project,omitempty"`
}

// ReportCreate is the body of a report creation.
type ReportCreate struct {
	DisplayName string `json:"displayName"`
	ProjectID   string `json:"projectId"`
	Description string `json:"description,omitempty"`
}

// ReportUpdate is a partial report update; nil fields are left unchanged.
type ReportUpdate struct {
	DisplayName *string `json:"displayName,omitempty"`
	Description *string `json:"description,omitempty"`
	Deleted     *bool   `json:"deleted,omitempty"`
}

// ReportMapping links a mapping of an iModel to a report.
type ReportMapping struct {
	ReportID  string             `json:"reportId"`
	MappingID string             `json:"mappingId"`
	IModelID  string             `json:"imodelId,omitempty"`
	Links     ReportMappingLinks `json:"_links,omitempty"`
}

// ReportMappingLinks points at the report, mapping and iModel.
type ReportMappingLinks struct {
	Report  *Link `json:"report,omitempty"`
	Mapping *Link `json:"mapping,omitempty"`
	IModel  *Link `json:"imodel,omitempty"`
}

// ReportMappingCreate is the body of a report-mapping creation.
type ReportMappingCreate struct {
	MappingID string `json:"mappingId"`
	IModelID  string `json:"imodelId"`
}

// Mapping describes which iModel data an extraction produces.
type Mapping struct {
	ID                string       `json:"id"`
	MappingName       string       `json:"mappingName"`
	Description       string       `json:"description,omitempty"`
	ExtractionEnabled bool         `json:"extractionEnabled"`
	Links             MappingLinks `json:"_links,omitempty"`
}

// MappingLinks points at the iModel.
type MappingLinks struct {
	IModel *Link `json:"imodel,omitempty"`
}

// MappingCreate is the body of a mapping creation.
type MappingCreate struct {
	MappingName       string `json:"mappingName"`
	Description       string `json:"description,omitempty"`
	ExtractionEnabled *bool  `json:"extractionEnabled,omitempty"`
}

// MappingUpdate is a partial mapping update.
type MappingUpdate struct {
	MappingName       *string `json:"mappingName,omitempty"`
	Description       *string `json:"description,omitempty"`
	ExtractionEnabled *bool   `json:"extractionEnabled,omitempty"`
}

// Group selects iModel elements with an ECSQL query.
type Group struct {
	ID          string `json:"id"`
	GroupName   string `json:"groupName"`
	Description string `json:"description,omitempty"`
	Query       string `json:"query"`
}

// GroupCreate is the body of a group creation.
type GroupCreate struct {
	GroupName   string `json:"groupName"`
	Query       string `json:"query"`
	Description string `json:"description,omitempty"`
}

// GroupUpdate is a partial group update.
type GroupUpdate struct {
	GroupName   *string `json:"groupName,omitempty"`
	Query       *string `json:"query,omitempty"`
	Description *string `json:"description,omitempty"`
}

// ECProperty identifies one EC property a group property reads.
type ECProperty struct {
	ECSchemaName   string `json:"ecSchemaName"`
	ECClassName    string `json:"ecClassName"`
	ECPropertyName string `json:"ecPropertyName"`
	ECPropertyType string `json:"ecPropertyType"`
}

// GroupProperty is a column of the extracted group table.
type GroupProperty struct {
	ID           string       `json:"id"`
	PropertyName string       `json:"propertyName"`
	DataType     string       `json:"dataType"`
	QuantityType string       `json:"quantityType"`
	ECProperties []ECProperty `json:"ecProperties"`
}

// GroupPropertyParams is both the create and the full-replacement body.
type GroupPropertyParams struct {
	PropertyName string       `json:"propertyName"`
	DataType     string       `json:"dataType"`
	QuantityType string       `json:"quantityType"`
	ECProperties []ECProperty `json:"ecProperties"`
}

// CalculatedProperty is a geometric value computed per element (Length, Area...).
type CalculatedProperty struct {
	ID           string `json:"id"`
	PropertyName string `json:"propertyName"`
	Type         string `json:"type"`
}

// CalculatedPropertyParams is both the create and the full-replacement body.
type CalculatedPropertyParams struct {
	PropertyName string `json:"propertyName"`
	Type         string `json:"type"`
}

// CustomCalculation is a formula over other properties of the group.
type CustomCalculation struct {
	ID           string `json:"id"`
	PropertyName string `json:"propertyName"`
	Formula      string `json:"formula"`
	QuantityType string `json:"quantityType"`
}

// CustomCalculationParams is both the create and the full-replacement body.
type CustomCalculationParams struct {
	PropertyName string `json:"propertyName"`
	Formula      string `json:"formula"`
	QuantityType string `json:"quantityType"`
}

// Run identifies a launched extraction job.
type Run struct {
	ID string `json:"id"`
}

// ExtractionState is the lifecycle state of an extraction job.
type ExtractionState string

const (
	StateQueued    ExtractionState = "Queued"
	StatePending   ExtractionState = "Pending"
	StateRunning   ExtractionState = "Running"
	StateSucceeded ExtractionState = "Succeeded"
	StateFailed    ExtractionState = "Failed"
)

// Terminal reports whether no further transition can happen.
func (s ExtractionState) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// InProgress reports whether the job has not finished yet.
func (s ExtractionState) InProgress() bool {
	return s == StateQueued || s == StatePending || s == StateRunning
}

// Known reports whether s is one of the documented states.
func (s ExtractionState) Known() bool {
	return s.Terminal() || s.InProgress()
}

// ExtractionStatus is the observed state of an extraction job.
type ExtractionStatus struct {
	State          ExtractionState       `json:"state"`
	Reason         string                `json:"reason"`
	ContainsIssues bool                  `json:"containsIssues,omitempty"`
	Links          ExtractionStatusLinks `json:"_links,omitempty"`
}

// ExtractionStatusLinks points at the extraction logs.
type ExtractionStatusLinks struct {
	Logs *Link `json:"logs,omitempty"`
}
