package provider

import (
	"encoding/json"
	"fmt"
	"net/url"
)

// RelayBuilder rewrites a direct request URL into a relay/proxy URL. Relays are
// tried in order to work around direct-fetch restrictions.
type RelayBuilder func(target string) string

// DirectRelay performs no rewriting.
func DirectRelay(target string) string { return target }

// WrapperRelay routes the request through a JSON-wrapping proxy that returns
// the upstream body as a stringified "contents" field.
func WrapperRelay(proxyBase string) RelayBuilder {
	return func(target string) string {
		return fmt.Sprintf("%s?url=%s", proxyBase, url.QueryEscape(target))
	}
}

// PassthroughRelay prefixes the target with a transparent CORS proxy.
func PassthroughRelay(proxyBase string) RelayBuilder {
	return func(target string) string {
		return proxyBase + target
	}
}

// wrappedBody is the proxy envelope shape.
type wrappedBody struct {
	Contents string `json:"contents"`
}

// unwrapBody tolerates either a direct JSON body or a proxy-wrapped one and
// returns the effective payload bytes.
func unwrapBody(body []byte) []byte {
	var w wrappedBody
	if err := json.Unmarshal(body, &w); err == nil && w.Contents != "" {
		return []byte(w.Contents)
	}
	return body
}

// BuildRelays constructs the relay list from configured proxy bases; a direct
// attempt always comes first.
func BuildRelays(wrapperBases, passthroughBases []string) []RelayBuilder {
	relays := []RelayBuilder{DirectRelay}
	for _, b := range wrapperBases {
		relays = append(relays, WrapperRelay(b))
	}
	for _, b := range passthroughBases {
		relays = append(relays, PassthroughRelay(b))
	}
	return relays
}
