package dto

import (
	"encoding/json"
	"encoding/xml"
)

// ProviderErrorEnvelope is the brokerage's JSON error payload: {"Error":{"code":...,"message":"..."}}
type ProviderErrorEnvelope struct {
	Error *ProviderError `json:"Error"`
}

// ProviderError carries the code as raw JSON since the brokerage sends it as number or string
type ProviderError struct {
	Code    json.RawMessage `json:"code"`
	Message string          `json:"message"`
}

// ProviderErrorXML is the same payload for endpoints answering in XML
type ProviderErrorXML struct {
	XMLName xml.Name `xml:"Error"`
	Code    string   `xml:"code"`
	Message string   `xml:"message"`
}
