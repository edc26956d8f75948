package model

import (
	"net/url"
	"sort"
	"strings"
	"time"
)

const (
	MaxAuditRequestChars  = 1000
	MaxAuditResponseChars = 5000
)

// AuditRecord is the append-only summary of one outermost outbound call,
// covering all of its retry attempts.
type AuditRecord struct {
	ID             int64     `json:"id"              bson:"-"              gorm:"primaryKey;autoIncrement"`
	AccountID      *string   `json:"account_id"      bson:"accountId"      gorm:"size:128;index"`
	Action         string    `json:"action"          bson:"action"         gorm:"size:128;not null"`
	RequestSummary string    `json:"request_summary" bson:"requestSummary" gorm:"type:text"`
	ResponseBody   string    `json:"response_body"   bson:"responseBody"   gorm:"type:text"`
	StatusCode     int       `json:"status_code"     bson:"statusCode"`
	ErrorMessage   string    `json:"error_message"   bson:"errorMessage"   gorm:"type:text"`
	Attempts       int       `json:"attempts"        bson:"attempts"`
	DurationMs     int64     `json:"duration_ms"     bson:"durationMs"`
	CreatedAt      time.Time `json:"created_at"      bson:"createdAt"      gorm:"index"`
}

// TableName pins the gorm table name.
func (AuditRecord) TableName() string { return "brokerage_audit_records" }

// Truncated returns a copy with request and response bodies capped.
func (r AuditRecord) Truncated() AuditRecord {
	r.RequestSummary = Truncate(r.RequestSummary, MaxAuditRequestChars)
	r.ResponseBody = Truncate(r.ResponseBody, MaxAuditResponseChars)
	return r
}

// Truncate caps s at max characters (runes, not bytes).
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}

// SummarizeRequest renders a call for the audit trail. Headers are never
// included, so the Authorization header cannot leak into the record.
func SummarizeRequest(method, rawURL string, query url.Values, body []byte) string {
	var b strings.Builder
	b.WriteString(strings.ToUpper(method))
	b.WriteByte(' ')
	base := rawURL
	if i := strings.IndexAny(base, "?#"); i >= 0 {
		base = base[:i]
	}
	b.WriteString(base)
	if len(query) > 0 {
		keys := make([]string, 0, len(query))
		for k := range query {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			for _, v := range query[k] {
				parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(v))
			}
		}
		if len(parts) > 0 {
			b.WriteByte('?')
			b.WriteString(strings.Join(parts, "&"))
		}
	}
	if len(body) > 0 {
		b.WriteByte(' ')
		b.Write(body)
	}
	return b.String()
}

const redacted = "[REDACTED]"

// RedactOAuthBody masks oauth_token_secret in a form-encoded token response.
func RedactOAuthBody(body string) string {
	parts := strings.Split(body, "&")
	for i, p := range parts {
		k, _, found := strings.Cut(p, "=")
		if found && k == "oauth_token_secret" {
			parts[i] = k + "=" + redacted
		}
	}
	return strings.Join(parts, "&")
}
