package backend

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"
	"github.com/goliatone/go-datainsight/components/insight"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const uploadSchemaURL = "upload-response.json"

// uploadSchema describes the upload envelope: a data array of objects and an
// optional list of column names.
const uploadSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["data"],
  "properties": {
    "message": {"type": "string"},
    "data": {"type": "array", "items": {"type": "object"}},
    "columns": {"type": "array", "items": {"type": "string"}}
  }
}`

func compileUploadSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(uploadSchemaURL, strings.NewReader(uploadSchema)); err != nil {
		return nil, fmt.Errorf("backend: load upload schema: %w", err)
	}
	schema, err := compiler.Compile(uploadSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("backend: compile upload schema: %w", err)
	}
	return schema, nil
}

type uploadEnvelope struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Columns []string        `json:"columns"`
}

// decodeUpload validates the envelope and decodes the dataset. Columns come
// from the envelope when present, otherwise from the first row's key order.
func decodeUpload(schema *jsonschema.Schema, data []byte) (UploadResult, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return UploadResult{}, fmt.Errorf("backend: decode upload response: %w", err)
	}
	if schema != nil {
		if err := schema.Validate(doc); err != nil {
			return UploadResult{}, fmt.Errorf("backend: upload response failed validation: %w", err)
		}
	}
	var env uploadEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return UploadResult{}, fmt.Errorf("backend: decode upload envelope: %w", err)
	}
	rows, order, err := decodeRows(env.Data)
	if err != nil {
		return UploadResult{}, err
	}
	columns := env.Columns
	if len(columns) == 0 {
		columns = order
	}
	return UploadResult{Message: env.Message, Dataset: insight.NewDataset(columns, rows)}, nil
}

// decodeDataset decodes a bare row array, keeping the first row's key order.
func decodeDataset(data []byte) (insight.Dataset, error) {
	rows, order, err := decodeRows(data)
	if err != nil {
		return insight.Dataset{}, err
	}
	return insight.NewDataset(order, rows), nil
}

// decodeRows walks an array of objects token by token so the key order of the
// first object survives decoding. null or empty input yields no rows.
func decodeRows(data []byte) ([]insight.Row, []string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := expectDelim(dec, '['); err != nil {
		return nil, nil, err
	}
	var (
		rows  []insight.Row
		order []string
	)
	for dec.More() {
		if err := expectDelim(dec, '{'); err != nil {
			return nil, nil, err
		}
		row := insight.Row{}
		for dec.More() {
			tok, err := dec.Token()
			if err != nil {
				return nil, nil, fmt.Errorf("backend: decode row key: %w", err)
			}
			key, ok := tok.(string)
			if !ok {
				return nil, nil, fmt.Errorf("backend: decode row: unexpected key %v", tok)
			}
			value, err := readValue(dec)
			if err != nil {
				return nil, nil, err
			}
			if _, seen := row[key]; !seen && len(rows) == 0 {
				order = append(order, key)
			}
			row[key] = value
		}
		if err := expectDelim(dec, '}'); err != nil {
			return nil, nil, err
		}
		rows = append(rows, row)
	}
	if err := expectDelim(dec, ']'); err != nil {
		return nil, nil, err
	}
	return rows, order, nil
}

func readValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("backend: decode value: %w", err)
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}
	switch delim {
	case '{':
		obj := map[string]any{}
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, fmt.Errorf("backend: decode object key: %w", err)
			}
			key, _ := keyTok.(string)
			v, err := readValue(dec)
			if err != nil {
				return nil, err
			}
			obj[key] = v
		}
		return obj, expectDelim(dec, '}')
	case '[':
		var arr []any
		for dec.More() {
			v, err := readValue(dec)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		return arr, expectDelim(dec, ']')
	default:
		return nil, fmt.Errorf("backend: decode value: unexpected %q", delim)
	}
}

var errMalformed = errors.New("backend: malformed row data")

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: unexpected end of input", errMalformed)
		}
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	if got, ok := tok.(json.Delim); !ok || got != want {
		return fmt.Errorf("%w: expected %q, got %v", errMalformed, want, tok)
	}
	return nil
}
