package providers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

const signatureMethod = "HMAC-SHA256"

// Signer produces OAuth 1.0 style request signatures keyed by the consumer secret.
type Signer struct {
	consumerKey    string
	consumerSecret string
}

// NewSigner creates a Signer for the given consumer credentials.
func NewSigner(consumerKey, consumerSecret string) *Signer {
	return &Signer{consumerKey: consumerKey, consumerSecret: consumerSecret}
}

// OAuthParams returns the protocol parameters that take part in the signature.
func (s *Signer) OAuthParams(nonce string, timestamp int64) map[string]string {
	return map[string]string{
		"oauth_consumer_key":     s.consumerKey,
		"oauth_nonce":            nonce,
		"oauth_signature_method": signatureMethod,
		"oauth_timestamp":        strconv.FormatInt(timestamp, 10),
		"oauth_version":          "1.0",
	}
}

// Sign returns the base64 HMAC-SHA256 of the canonical request. The result
// depends only on its inputs.
func (s *Signer) Sign(method, rawURL string, params map[string]string) (string, error) {
	base, err := BaseString(method, rawURL, params)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, []byte(encode(s.consumerSecret)+"&"))
	mac.Write([]byte(base))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// AuthorizationHeader signs a request and renders the Authorization header value.
func (s *Signer) AuthorizationHeader(method, rawURL, nonce string, timestamp int64) (string, error) {
	params := s.OAuthParams(nonce, timestamp)
	sig, err := s.Sign(method, rawURL, params)
	if err != nil {
		return "", err
	}
	params["oauth_signature"] = sig

	keys := sortedKeys(params)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf(`%s="%s"`, k, encode(params[k])))
	}
	return "OAuth " + strings.Join(parts, ", "), nil
}

// BaseString builds METHOD&url&params, each part percent-encoded. Query
// parameters of rawURL are folded into params and pairs are sorted.
func BaseString(method, rawURL string, params map[string]string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	all := make(map[string][]string)
	for k, vs := range u.Query() {
		all[k] = append(all[k], vs...)
	}
	for k, v := range params {
		all[k] = append(all[k], v)
	}

	pairs := make([]string, 0, len(all))
	for k, vs := range all {
		for _, v := range vs {
			pairs = append(pairs, encode(k)+"="+encode(v))
		}
	}
	sort.Strings(pairs)

	return strings.ToUpper(method) + "&" +
		encode(normalizeURL(u)) + "&" +
		encode(strings.Join(pairs, "&")), nil
}

func normalizeURL(u *url.URL) string {
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Host)
	if (scheme == "http" && strings.HasSuffix(host, ":80")) || (scheme == "https" && strings.HasSuffix(host, ":443")) {
		host = host[:strings.LastIndex(host, ":")]
	}
	return scheme + "://" + host + u.EscapedPath()
}

// encode is RFC 3986 percent-encoding.
func encode(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
