// Package notion implements domain.RecordService against the Notion REST API.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"mailbot/internal/domain"
)

const (
	defaultAPIBase = "https://api.notion.com/v1"
	defaultVersion = "2022-06-28"
)

// Client talks to the Notion API. Schema fetches happen once at registry
// load; record creation happens per accepted command.
type Client struct {
	apiBase string
	apiKey  string
	version string
	client  *http.Client
	logger  *slog.Logger
}

type ClientConfig struct {
	APIBase string
	APIKey  string
	Version string
	Logger  *slog.Logger
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.APIBase == "" {
		cfg.APIBase = defaultAPIBase
	}
	if cfg.Version == "" {
		cfg.Version = defaultVersion
	}
	return &Client{
		apiBase: cfg.APIBase,
		apiKey:  cfg.APIKey,
		version: cfg.Version,
		client:  sharedHTTPClient(0),
		logger:  cfg.Logger,
	}
}

type databaseResponse struct {
	Title       []richTextObj          `json:"title"`
	Description []richTextObj          `json:"description"`
	Properties  map[string]propertyDef `json:"properties"`
}

type richTextObj struct {
	PlainText string `json:"plain_text"`
}

type propertyDef struct {
	ID     string      `json:"id"`
	Type   string      `json:"type"`
	Select *optionList `json:"select,omitempty"`
	Status *optionList `json:"status,omitempty"`
}

type optionList struct {
	Options []optionDef `json:"options"`
}

type optionDef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// FetchSchema retrieves one database's live property definitions.
func (c *Client) FetchSchema(ctx context.Context, id string) (*domain.LiveSchema, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.apiBase+"/databases/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("notion request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("notion %d: %s", resp.StatusCode, string(respBody))
	}

	var db databaseResponse
	if err := json.NewDecoder(resp.Body).Decode(&db); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	out := &domain.LiveSchema{Description: plainText(db.Description)}
	for name, def := range db.Properties {
		prop := domain.LiveProperty{ID: def.ID, Name: name, Type: def.Type}
		var opts *optionList
		switch def.Type {
		case "select":
			opts = def.Select
		case "status":
			opts = def.Status
		}
		if opts != nil {
			for _, o := range opts.Options {
				prop.Options = append(prop.Options, domain.ChoiceOption{ID: o.ID, Name: o.Name})
			}
		}
		out.Properties = append(out.Properties, prop)
	}

	c.logger.Info("fetched live schema", "database", id, "properties", len(out.Properties))
	return out, nil
}

type createRequest struct {
	Parent     parentRef      `json:"parent"`
	Properties map[string]any `json:"properties"`
}

type parentRef struct {
	DatabaseID string `json:"database_id"`
}

type createResponse struct {
	Object     string              `json:"object"`
	Message    string              `json:"message"`
	Properties map[string]pageProp `json:"properties"`
}

type pageProp struct {
	Type  string        `json:"type"`
	Title []richTextObj `json:"title"`
}

// CreateRecord creates one page in the target database. Service-level
// rejections come back as a non-OK result, not an error; errors are reserved
// for transport and decoding failures.
func (c *Client) CreateRecord(ctx context.Context, payload domain.RecordPayload) (*domain.CreateResult, error) {
	body, err := json.Marshal(createRequest{
		Parent:     parentRef{DatabaseID: payload.EndpointID},
		Properties: payload.Properties,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.apiBase+"/pages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("notion request: %w", err)
	}
	defer resp.Body.Close()

	var page createResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	if resp.StatusCode != http.StatusOK || page.Object == "error" {
		msg := page.Message
		if msg == "" {
			msg = fmt.Sprintf("notion returned %d", resp.StatusCode)
		}
		return &domain.CreateResult{OK: false, ErrorMessage: msg}, nil
	}

	return &domain.CreateResult{OK: true, DisplayValue: displayValue(page)}, nil
}

// displayValue extracts the created page's primary display value, the title
// property's plain text.
func displayValue(page createResponse) string {
	for _, prop := range page.Properties {
		if prop.Type == "title" {
			return plainText(prop.Title)
		}
	}
	return ""
}

func plainText(rt []richTextObj) string {
	out := ""
	for _, t := range rt {
		out += t.PlainText
	}
	return out
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Notion-Version", c.version)
}
