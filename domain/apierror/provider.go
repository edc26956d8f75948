package apierror

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"strings"

	"brokerage-gateway/domain/dto"
)

// ParseProviderError extracts code and message from the brokerage's JSON or XML
// error payload. ok is false when the body is not a recognisable error payload.
func ParseProviderError(body []byte) (code, message string, ok bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return "", "", false
	}
	switch trimmed[0] {
	case '{':
		var env dto.ProviderErrorEnvelope
		if err := json.Unmarshal(trimmed, &env); err != nil || env.Error == nil {
			return "", "", false
		}
		code = strings.Trim(string(env.Error.Code), `"`)
		if code == "" && env.Error.Message == "" {
			return "", "", false
		}
		return code, env.Error.Message, true
	case '<':
		var payload dto.ProviderErrorXML
		if err := xml.Unmarshal(trimmed, &payload); err != nil {
			return "", "", false
		}
		if payload.Code == "" && payload.Message == "" {
			return "", "", false
		}
		return strings.TrimSpace(payload.Code), strings.TrimSpace(payload.Message), true
	}
	return "", "", false
}
