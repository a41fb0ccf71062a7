package domain

import "context"

// LiveSchema is the property schema of one external data collection as
// reported by the structured-data service.
type LiveSchema struct {
	Description string
	Properties  []LiveProperty
}

// LiveProperty is one property definition from the live schema.
type LiveProperty struct {
	ID      string
	Name    string
	Type    string // service type name: number, title, rich_text, select, status, date, ...
	Options []ChoiceOption
}

// ChoiceOption is one allowed value of a select- or status-typed property.
type ChoiceOption struct {
	ID   string
	Name string
}

// RecordPayload is a service-ready create request: property values keyed by
// display name, already coerced to the service's wire shapes.
type RecordPayload struct {
	EndpointID string
	Properties map[string]any
}

// CreateResult reports the outcome of a record creation. A non-OK result is
// an expected service-level failure, not a transport error.
type CreateResult struct {
	OK           bool
	DisplayValue string // primary display value of the created record
	ErrorMessage string
}

// RecordService is the external structured-data service: one schema fetch at
// startup per endpoint, record creation at runtime.
type RecordService interface {
	FetchSchema(ctx context.Context, id string) (*LiveSchema, error)
	CreateRecord(ctx context.Context, payload RecordPayload) (*CreateResult, error)
}
