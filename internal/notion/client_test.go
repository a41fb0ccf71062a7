package notion

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mailbot/internal/domain"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(ClientConfig{
		APIBase: srv.URL,
		APIKey:  "secret-key",
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestFetchSchema(t *testing.T) {
	var gotAuth, gotVersion, gotPath string
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotVersion = r.Header.Get("Notion-Version")
		gotPath = r.URL.Path
		w.Write([]byte(`{
			"description": [{"plain_text": "task "}, {"plain_text": "tracker"}],
			"properties": {
				"Name": {"id": "p1", "type": "title"},
				"Priority": {"id": "p2", "type": "select", "select": {"options": [
					{"id": "o1", "name": "High"},
					{"id": "o2", "name": "Low"}
				]}},
				"Stage": {"id": "p3", "type": "status", "status": {"options": [
					{"id": "o3", "name": "Done"}
				]}}
			}
		}`))
	})

	schema, err := client.FetchSchema(context.Background(), "ds-1")
	if err != nil {
		t.Fatalf("FetchSchema: %v", err)
	}

	if gotPath != "/databases/ds-1" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotAuth != "Bearer secret-key" {
		t.Fatalf("auth = %q", gotAuth)
	}
	if gotVersion != defaultVersion {
		t.Fatalf("version = %q", gotVersion)
	}

	if schema.Description != "task tracker" {
		t.Fatalf("description = %q", schema.Description)
	}
	if len(schema.Properties) != 3 {
		t.Fatalf("properties = %+v", schema.Properties)
	}

	byName := make(map[string]domain.LiveProperty)
	for _, p := range schema.Properties {
		byName[p.Name] = p
	}
	if byName["Name"].Type != "title" || byName["Name"].ID != "p1" {
		t.Fatalf("Name = %+v", byName["Name"])
	}
	if len(byName["Priority"].Options) != 2 || byName["Priority"].Options[0].Name != "High" {
		t.Fatalf("Priority options = %+v", byName["Priority"].Options)
	}
	if len(byName["Stage"].Options) != 1 || byName["Stage"].Options[0].Name != "Done" {
		t.Fatalf("Stage options = %+v", byName["Stage"].Options)
	}
}

func TestFetchSchema_HTTPError(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"object":"error","message":"Could not find database"}`))
	})

	_, err := client.FetchSchema(context.Background(), "missing")
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("expected 404 error, got %v", err)
	}
}

func TestCreateRecord_Success(t *testing.T) {
	var gotBody map[string]any
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pages" || r.Method != "POST" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(`{
			"object": "page",
			"properties": {
				"Name": {"type": "title", "title": [{"plain_text": "Groceries"}]},
				"Date": {"type": "date"}
			}
		}`))
	})

	res, err := client.CreateRecord(context.Background(), domain.RecordPayload{
		EndpointID: "ds-1",
		Properties: map[string]any{
			"Name": map[string]any{"title": []any{map[string]any{"text": map[string]any{"content": "Groceries"}}}},
		},
	})
	if err != nil {
		t.Fatalf("CreateRecord: %v", err)
	}
	if !res.OK {
		t.Fatalf("result = %+v", res)
	}
	if res.DisplayValue != "Groceries" {
		t.Fatalf("display value = %q", res.DisplayValue)
	}

	parent := gotBody["parent"].(map[string]any)
	if parent["database_id"] != "ds-1" {
		t.Fatalf("parent = %v", parent)
	}
	if _, ok := gotBody["properties"].(map[string]any)["Name"]; !ok {
		t.Fatalf("properties = %v", gotBody["properties"])
	}
}

func TestCreateRecord_ServiceRejection(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"object":"error","message":"Priority is expected to be select"}`))
	})

	res, err := client.CreateRecord(context.Background(), domain.RecordPayload{EndpointID: "ds-1"})
	if err != nil {
		t.Fatalf("service rejection must not be a transport error: %v", err)
	}
	if res.OK {
		t.Fatal("expected non-OK result")
	}
	if res.ErrorMessage != "Priority is expected to be select" {
		t.Fatalf("message = %q", res.ErrorMessage)
	}
}

func TestCreateRecord_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse all connections

	client := NewClient(ClientConfig{
		APIBase: srv.URL,
		APIKey:  "k",
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if _, err := client.CreateRecord(context.Background(), domain.RecordPayload{EndpointID: "ds-1"}); err == nil {
		t.Fatal("expected transport error")
	}
}
