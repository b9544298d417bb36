package customHttpClient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

type apiErrorBody struct {
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// ResponseError turns a non-2xx watsonx response into an error carrying the
// status and the first reported message.
func ResponseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var parsed apiErrorBody
	if err := json.Unmarshal(body, &parsed); err == nil && len(parsed.Errors) > 0 {
		e := parsed.Errors[0]
		return fmt.Errorf("status %d: %s: %s", resp.StatusCode, e.Code, e.Message)
	}
	return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
