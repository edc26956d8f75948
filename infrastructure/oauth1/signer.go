// Package oauth1 implements OAuth 1.0a request signing (HMAC-SHA1) as the
// brokerage verifies it: RFC 3986 percent-encoding, byte-order parameter
// normalisation and the METHOD&URL&PARAMS signature base string.
package oauth1

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"brokerage-gateway/domain/model"
	"brokerage-gateway/infrastructure/utils"

	"github.com/google/uuid"
)

const (
	SignatureMethod = "HMAC-SHA1"
	Version         = "1.0"

	ParamConsumerKey     = "oauth_consumer_key"
	ParamNonce           = "oauth_nonce"
	ParamSignatureMethod = "oauth_signature_method"
	ParamTimestamp       = "oauth_timestamp"
	ParamVersion         = "oauth_version"
	ParamToken           = "oauth_token"
	ParamSignature       = "oauth_signature"
	ParamVerifier        = "oauth_verifier"
	ParamCallback        = "oauth_callback"
	ParamTokenSecret     = "oauth_token_secret"
)

// headerOrder is the order of the Authorization header fields. Extra oauth_*
// parameters follow in key order, oauth_signature is always last.
var headerOrder = []string{ParamConsumerKey, ParamToken, ParamSignatureMethod, ParamTimestamp, ParamNonce, ParamVersion}

// NonceFunc produces a per-request nonce.
type NonceFunc func() string

// UUIDNonce is a random UUID without hyphens.
func UUIDNonce() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Signer computes Authorization headers for one consumer credential.
type Signer struct {
	consumer model.ConsumerCredential
	clock    utils.Clock
	nonce    NonceFunc
}

type Option func(*Signer)

func WithClock(clock utils.Clock) Option {
	return func(s *Signer) { s.clock = clock }
}

func WithNonce(nonce NonceFunc) Option {
	return func(s *Signer) { s.nonce = nonce }
}

func NewSigner(consumer model.ConsumerCredential, opts ...Option) *Signer {
	s := &Signer{consumer: consumer, clock: utils.SystemClock(), nonce: UUIDNonce}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sign returns the Authorization header for a call. token is nil for the
// request token step, in which case oauth_token is omitted and the token
// secret in the signing key is empty.
func (s *Signer) Sign(method, rawURL string, query url.Values, token *model.TokenPair, extra map[string]string) (string, error) {
	signed, err := s.SignRequest(method, rawURL, query, token, extra)
	if err != nil {
		return "", err
	}
	return signed.AuthorizationHeader, nil
}

// SignRequest signs with a fresh nonce and timestamp and returns the request
// value for a single network attempt.
func (s *Signer) SignRequest(method, rawURL string, query url.Values, token *model.TokenPair, extra map[string]string) (*model.SignedRequest, error) {
	return s.signWith(method, rawURL, query, token, extra, s.nonce(), s.clock.Now().Unix())
}

func (s *Signer) signWith(method, rawURL string, query url.Values, token *model.TokenPair, extra map[string]string, nonce string, timestamp int64) (*model.SignedRequest, error) {
	baseURL, merged, err := splitURL(rawURL, query)
	if err != nil {
		return nil, err
	}

	oauthParams := map[string]string{
		ParamConsumerKey:     s.consumer.ConsumerKey,
		ParamNonce:           nonce,
		ParamSignatureMethod: SignatureMethod,
		ParamTimestamp:       strconv.FormatInt(timestamp, 10),
		ParamVersion:         Version,
	}
	tokenSecret := ""
	if token != nil && token.Token != "" {
		oauthParams[ParamToken] = token.Token
		tokenSecret = token.TokenSecret
	}
	for k, v := range extra {
		if !strings.HasPrefix(k, "oauth_") {
			return nil, fmt.Errorf("oauth1: extra parameter %q is not an oauth_ parameter", k)
		}
		oauthParams[k] = v
	}

	all := make(url.Values, len(merged)+len(oauthParams))
	for k, vs := range merged {
		all[k] = append([]string(nil), vs...)
	}
	for k, v := range oauthParams {
		all.Add(k, v)
	}

	base := BaseString(method, baseURL, all)
	oauthParams[ParamSignature] = Signature(base, SigningKey(s.consumer.ConsumerSecret, tokenSecret))

	signedURL := baseURL
	if encoded := EncodeQuery(merged); encoded != "" {
		signedURL += "?" + encoded
	}
	return &model.SignedRequest{
		Method:              strings.ToUpper(method),
		URL:                 signedURL,
		Query:               merged,
		AuthorizationHeader: AuthorizationHeader(oauthParams),
	}, nil
}

// splitURL separates the signature base URL from any query embedded in rawURL
// and merges that query with the explicit parameters.
func splitURL(rawURL string, query url.Values) (string, url.Values, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", nil, fmt.Errorf("oauth1: parse url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", nil, fmt.Errorf("oauth1: url %q must be absolute", rawURL)
	}
	merged := url.Values{}
	for k, vs := range u.Query() {
		merged[k] = append(merged[k], vs...)
	}
	for k, vs := range query {
		merged[k] = append(merged[k], vs...)
	}
	return NormalizeBaseURL(u), merged, nil
}

// NormalizeBaseURL renders scheme://host[:port]/path without query or
// fragment. Scheme and host are lowercased and default ports dropped.
// IPv6 literals keep their brackets.
func NormalizeBaseURL(u *url.URL) string {
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port := u.Port(); port != "" && !(scheme == "http" && port == "80") && !(scheme == "https" && port == "443") {
		host += ":" + port
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return scheme + "://" + host + path
}

// BaseString builds METHOD&encode(baseURL)&encode(normalised params).
func BaseString(method, baseURL string, params url.Values) string {
	return strings.ToUpper(method) + "&" + PercentEncode(baseURL) + "&" + PercentEncode(NormalizeParameters(params))
}

// NormalizeParameters encodes every key and value, sorts by encoded key then
// encoded value and joins them as k=v&k=v. A key with no values is absent and
// contributes nothing; a key with an empty string value is present.
func NormalizeParameters(params url.Values) string {
	type pair struct{ k, v string }
	pairs := make([]pair, 0, len(params))
	for k, vs := range params {
		ek := PercentEncode(k)
		for _, v := range vs {
			pairs = append(pairs, pair{ek, PercentEncode(v)})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].k != pairs[j].k {
			return pairs[i].k < pairs[j].k
		}
		return pairs[i].v < pairs[j].v
	})
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = p.k + "=" + p.v
	}
	return strings.Join(parts, "&")
}

// SigningKey is encode(consumerSecret)&encode(tokenSecret); tokenSecret is ""
// when no token is held.
func SigningKey(consumerSecret, tokenSecret string) string {
	return PercentEncode(consumerSecret) + "&" + PercentEncode(tokenSecret)
}

// Signature is base64(HMAC-SHA1(key, base)).
func Signature(base, key string) string {
	mac := hmac.New(sha1.New, []byte(key))
	mac.Write([]byte(base))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// AuthorizationHeader renders `OAuth k="v", ...` in a stable order.
func AuthorizationHeader(oauthParams map[string]string) string {
	seen := make(map[string]bool, len(oauthParams))
	fields := make([]string, 0, len(oauthParams))
	add := func(k string) {
		if v, ok := oauthParams[k]; ok && !seen[k] {
			seen[k] = true
			fields = append(fields, k+`="`+PercentEncode(v)+`"`)
		}
	}
	for _, k := range headerOrder {
		add(k)
	}
	extra := make([]string, 0)
	for k := range oauthParams {
		if !seen[k] && k != ParamSignature {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		add(k)
	}
	add(ParamSignature)
	return "OAuth " + strings.Join(fields, ", ")
}
