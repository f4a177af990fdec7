// Package cors decides, per request, whether a calling origin may use the
// API and which headers go on the response. Decide is a pure function of the
// policy and the origin so every handler shares one rule.
package cors

import (
	"strconv"
	"strings"
)

const (
	extensionScheme = "chrome-extension://"

	AllowMethods = "GET,POST,PUT,DELETE,OPTIONS"
	AllowHeaders = "Authorization,Content-Type"
	MaxAge       = 600
)

type Policy struct {
	Origins    map[string]struct{}
	Production bool
}

// NewPolicy builds a policy from a CSV of extension ids and an optional full
// legacy origin. CSV entries that already carry a scheme are kept verbatim.
func NewPolicy(extensionIdsCSV, legacyOrigin string, production bool) Policy {
	origins := make(map[string]struct{})
	for _, id := range strings.Split(extensionIdsCSV, ",") {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if strings.Contains(id, "://") {
			origins[strings.TrimRight(id, "/")] = struct{}{}
		} else {
			origins[extensionScheme+id] = struct{}{}
		}
	}
	if legacy := strings.TrimRight(strings.TrimSpace(legacyOrigin), "/"); legacy != "" {
		origins[legacy] = struct{}{}
	}

	return Policy{Origins: origins, Production: production}
}

// Unconfigured reports a production policy with no allow-list at all. Such a
// service must refuse every request rather than fall open.
func (p Policy) Unconfigured() bool {
	return p.Production && len(p.Origins) == 0
}

func (p Policy) allows(origin string) bool {
	_, ok := p.Origins[origin]
	return ok
}

type Decision struct {
	Allow   bool
	Headers map[string]string
}

// Decide evaluates origin against p. A request without an Origin header is
// not a cross-origin browser request and is allowed without an
// Access-Control-Allow-Origin header. Outside production any origin is
// reflected.
func Decide(p Policy, origin string) Decision {
	headers := map[string]string{
		"Access-Control-Allow-Methods": AllowMethods,
		"Access-Control-Allow-Headers": AllowHeaders,
		"Access-Control-Max-Age":       strconv.Itoa(MaxAge),
		"Vary":                         "Origin",
	}

	if origin == "" {
		return Decision{Allow: true, Headers: headers}
	}
	if p.Unconfigured() {
		return Decision{Allow: false, Headers: headers}
	}
	if !p.allows(origin) && p.Production {
		return Decision{Allow: false, Headers: headers}
	}

	headers["Access-Control-Allow-Origin"] = origin
	return Decision{Allow: true, Headers: headers}
}
