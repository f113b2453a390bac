package schema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed news_record.schema.json
var newsRecordSchemaJSON string

// Record is one normalized item handed over by a source adapter.
type Record struct {
	Title       string   `json:"title"`
	URL         string   `json:"url"`
	Source      string   `json:"source"`
	PublishedAt *string  `json:"published_at,omitempty"`
	Content     string   `json:"content,omitempty"`
	Summary     string   `json:"summary,omitempty"`
	Author      *string  `json:"author,omitempty"`
	ImageURL    *string  `json:"image_url,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
}

// Published parses the record's timestamp, if present.
func (r *Record) Published() (*time.Time, error) {
	if r == nil || r.PublishedAt == nil {
		return nil, nil
	}
	ts, err := time.Parse(time.RFC3339, strings.TrimSpace(*r.PublishedAt))
	if err != nil {
		return nil, fmt.Errorf("published_at must be RFC3339: %w", err)
	}
	utc := ts.UTC()
	return &utc, nil
}

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

// ValidateRecord checks one raw adapter payload against the record schema and
// decodes it. Validation failures are data-quality errors for that one item.
func ValidateRecord(payload json.RawMessage) (*Record, error) {
	value, err := decodeStrictJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("decode record JSON: %w", err)
	}

	s, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}

	if err := s.Validate(value); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	normalized, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("normalize record JSON: %w", err)
	}

	var record Record
	if err := json.Unmarshal(normalized, &record); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}

	if err := validateSemantics(&record); err != nil {
		return nil, err
	}

	return &record, nil
}

// ValidateRecords decodes a JSON array of adapter records, rejecting the whole
// batch only when the envelope itself is malformed.
func ValidateRecords(payload json.RawMessage) ([]Record, []error, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, nil, fmt.Errorf("records payload is empty")
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, nil, fmt.Errorf("decode records array: %w", err)
	}

	records := make([]Record, 0, len(raw))
	var itemErrors []error
	for i, item := range raw {
		record, err := ValidateRecord(item)
		if err != nil {
			itemErrors = append(itemErrors, fmt.Errorf("record[%d]: %w", i, err))
			continue
		}
		records = append(records, *record)
	}
	return records, itemErrors, nil
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		compiler.AssertFormat = true

		if err := compiler.AddResource("news_record.schema.json", strings.NewReader(newsRecordSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}

		s, err := compiler.Compile("news_record.schema.json")
		if err != nil {
			compiledSchemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}

		compiledSchema = s
	})

	if compiledSchemaErr != nil {
		return nil, compiledSchemaErr
	}
	if compiledSchema == nil {
		return nil, fmt.Errorf("schema not initialized")
	}
	return compiledSchema, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("payload contains trailing content")
	}

	return value, nil
}

func validateSemantics(record *Record) error {
	if record == nil {
		return fmt.Errorf("record is nil")
	}

	if strings.TrimSpace(record.Source) == "" {
		return fmt.Errorf("source must not be empty")
	}
	if err := validateURI("url", record.URL); err != nil {
		return err
	}
	if record.ImageURL != nil && strings.TrimSpace(*record.ImageURL) != "" {
		if err := validateURI("image_url", *record.ImageURL); err != nil {
			return err
		}
	}
	if _, err := record.Published(); err != nil {
		return err
	}

	return nil
}

func validateURI(fieldName, value string) error {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fmt.Errorf("%s must not be empty", fieldName)
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return fmt.Errorf("%s is not a valid URI: %w", fieldName, err)
	}
	return nil
}
