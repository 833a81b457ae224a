package backend

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/goliatone/go-datainsight/components/insight"
)

// APIError is a non-2xx backend response.
type APIError struct {
	Operation string
	Status    int
	Detail    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend: %s: remote error %d: %s", e.Operation, e.Status, e.Detail)
}

// UserMessage returns the backend detail for display.
func (e *APIError) UserMessage() string {
	return e.Detail
}

// Kind classifies gateway failures as network problems: a sleeping backend
// answers through its proxy with 502-504 until it is up.
func (e *APIError) Kind() insight.ErrorKind {
	switch e.Status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return insight.KindNetwork
	default:
		return insight.KindBusiness
	}
}

type errorBody struct {
	Detail  any    `json:"detail"`
	Message string `json:"message"`
}

// decodeAPIError reads {detail}, then {message}, then falls back to the status text.
func decodeAPIError(op string, resp *http.Response) *APIError {
	apiErr := &APIError{Operation: op, Status: resp.StatusCode}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body errorBody
	if err := json.Unmarshal(data, &body); err == nil {
		switch detail := body.Detail.(type) {
		case string:
			apiErr.Detail = strings.TrimSpace(detail)
		case nil:
		default:
			if b, err := json.Marshal(detail); err == nil {
				apiErr.Detail = string(b)
			}
		}
		if apiErr.Detail == "" {
			apiErr.Detail = strings.TrimSpace(body.Message)
		}
	}
	if apiErr.Detail == "" {
		apiErr.Detail = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
