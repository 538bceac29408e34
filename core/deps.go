package core

import (
	"sort"
	"strings"
)

// DepKey names an injected dependency value (API key, file path, endpoint).
type DepKey string

// Well-known dependency keys of the built-in agents.
const (
	// DepSearchAPIKey is the web search provider API key. Treated as secret.
	DepSearchAPIKey DepKey = "search_api_key"
	// DepMailCredentialsPath points at the OAuth2 client credentials file.
	DepMailCredentialsPath DepKey = "mail_credentials_path"
	// DepMailTokenPath points at the stored OAuth2 token file.
	DepMailTokenPath DepKey = "mail_token_path"
)

// secretDeps marks keys whose values must never leak into events or logs.
// File paths are not secret; the material behind them never enters a Deps map.
var secretDeps = map[DepKey]bool{
	DepSearchAPIKey: true,
}

// Deps is the per-agent dependency set. It is populated at run construction,
// scoped down on delegation so a nested agent only sees the keys it declares,
// and read-only from the perspective of tools.
type Deps map[DepKey]string

// Get returns the value for k, or empty if absent.
func (d Deps) Get(k DepKey) string { return d[k] }

// Has reports whether k carries a non-empty value.
func (d Deps) Has(k DepKey) bool { return d[k] != "" }

// Scoped returns a copy restricted to the given keys. Keys absent from d are
// simply absent from the result; Require decides whether that is an error.
func (d Deps) Scoped(keys ...DepKey) Deps {
	scoped := make(Deps, len(keys))
	for _, k := range keys {
		if v, ok := d[k]; ok {
			scoped[k] = v
		}
	}
	return scoped
}

// Require verifies that every given key has a non-empty value, returning a
// KindDependencyMissing error naming the missing keys otherwise.
func (d Deps) Require(keys ...DepKey) error {
	var missing []string
	for _, k := range keys {
		if !d.Has(k) {
			missing = append(missing, string(k))
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return NewError(KindDependencyMissing, "missing required dependencies: %s", strings.Join(missing, ", "))
}

// Secrets returns the values of all secret-classified keys present, for use
// with Redact before failure messages leave the runtime.
func (d Deps) Secrets() []string {
	var out []string
	for k, v := range d {
		if secretDeps[k] && v != "" {
			out = append(out, v)
		}
	}
	return out
}
