package schema

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"mailbot/internal/config"
	"mailbot/internal/domain"
)

type fakeService struct {
	schemas map[string]*domain.LiveSchema
	err     error
}

func (f *fakeService) FetchSchema(_ context.Context, id string) (*domain.LiveSchema, error) {
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.schemas[id]
	if !ok {
		return nil, errors.New("no such collection")
	}
	return s, nil
}

func (f *fakeService) CreateRecord(context.Context, domain.RecordPayload) (*domain.CreateResult, error) {
	return &domain.CreateResult{OK: true}, nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCatalog() *config.Catalog {
	return &config.Catalog{
		Endpoints: map[string]config.CatalogEndpoint{
			"notion": {
				Type: "datasource",
				ID:   "ds-1",
				Commands: map[string]config.CatalogCommand{
					"add": {
						Required: []string{"Name"},
						Optional: map[string]string{
							"d": "Date",
							"p": "Priority",
							"n": "Amount",
							"c": "Notes",
						},
						Defaults: map[string]string{"Date": "!today"},
					},
				},
			},
			"journal": {
				Type:        "block",
				Description: "append-only notes page",
				Commands: map[string]config.CatalogCommand{
					"add": {Required: []string{"Text"}},
				},
			},
		},
	}
}

func testLiveSchema() *domain.LiveSchema {
	return &domain.LiveSchema{
		Description: "task tracker",
		Properties: []domain.LiveProperty{
			{ID: "p1", Name: "Name", Type: "title"},
			{ID: "p2", Name: "Date", Type: "date"},
			{ID: "p3", Name: "Priority", Type: "select", Options: []domain.ChoiceOption{
				{ID: "o1", Name: "High"},
				{ID: "o2", Name: "Low"},
			}},
			{ID: "p4", Name: "Amount", Type: "number"},
			{ID: "p5", Name: "Notes", Type: "rich_text"},
			{ID: "p6", Name: "Cover", Type: "files"}, // unconfigured, must be ignored
		},
	}
}

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	svc := &fakeService{schemas: map[string]*domain.LiveSchema{"ds-1": testLiveSchema()}}
	reg, err := Load(context.Background(), testCatalog(), svc, discard())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return reg
}

func TestLoad_IntersectsConfiguredProperties(t *testing.T) {
	reg := testRegistry(t)

	ep, ok := reg.Endpoint("notion")
	if !ok {
		t.Fatal("notion endpoint missing")
	}
	if _, ok := ep.Properties["cover"]; ok {
		t.Fatal("unconfigured live property must not enter the registry")
	}
	prop, ok := ep.Properties["priority"]
	if !ok {
		t.Fatal("configured property Priority missing")
	}
	if prop.Options["high"] != "High" || prop.Options["low"] != "Low" {
		t.Fatalf("options not indexed case-insensitively: %+v", prop.Options)
	}
	if ep.Description != "task tracker" {
		t.Fatalf("live description not adopted: %q", ep.Description)
	}
}

func TestLoad_CaseInsensitiveEndpointLookup(t *testing.T) {
	reg := testRegistry(t)
	if _, ok := reg.Endpoint("NoTiOn"); !ok {
		t.Fatal("endpoint lookup must be case-insensitive")
	}
}

func TestLoad_BlockEndpointSkipsSchemaFetch(t *testing.T) {
	// No live schema exists for the block endpoint; Load must not ask for one.
	reg := testRegistry(t)
	ep, ok := reg.Endpoint("journal")
	if !ok {
		t.Fatal("journal endpoint missing")
	}
	if len(ep.Properties) != 0 {
		t.Fatalf("block endpoint must carry no live properties, got %+v", ep.Properties)
	}
}

func TestLoad_MissingConfiguredPropertyFails(t *testing.T) {
	cat := testCatalog()
	ep := cat.Endpoints["notion"]
	ep.Commands["add"] = config.CatalogCommand{Required: []string{"Nonexistent"}}
	cat.Endpoints["notion"] = ep

	svc := &fakeService{schemas: map[string]*domain.LiveSchema{"ds-1": testLiveSchema()}}
	_, err := Load(context.Background(), cat, svc, discard())
	if err == nil || !strings.Contains(err.Error(), "Nonexistent") {
		t.Fatalf("expected missing-property error, got %v", err)
	}
}

func TestLoad_UnsupportedPropertyTypeFails(t *testing.T) {
	cat := testCatalog()
	ep := cat.Endpoints["notion"]
	ep.Commands["add"] = config.CatalogCommand{Required: []string{"Cover"}}
	cat.Endpoints["notion"] = ep

	svc := &fakeService{schemas: map[string]*domain.LiveSchema{"ds-1": testLiveSchema()}}
	_, err := Load(context.Background(), cat, svc, discard())
	if err == nil || !strings.Contains(err.Error(), "unsupported type") {
		t.Fatalf("expected unsupported-type error, got %v", err)
	}
}

func TestLoad_SchemaFetchErrorFails(t *testing.T) {
	svc := &fakeService{err: errors.New("service down")}
	_, err := Load(context.Background(), testCatalog(), svc, discard())
	if err == nil {
		t.Fatal("expected fetch error to fail the load")
	}
}
