package proxy

import (
	"fmt"
	"net/url"
	"strings"

	"securemeet/relaygate/pkg/capture"
	"securemeet/relaygate/pkg/config"
)

// Route is the classification of one request.
type Route struct {
	// Service is the matched service name, or capture.ServiceOther.
	Service string

	// Target is the upstream base URL. Nil when the request cannot be
	// forwarded.
	Target *url.URL

	// Prefix is the matched path prefix.
	Prefix string

	// StripPrefix removes Prefix from the forwarded path.
	StripPrefix bool
}

// Forwardable reports whether the route has an upstream.
func (r Route) Forwardable() bool {
	return r.Target != nil
}

// UpstreamPath returns the path to request from the upstream, relative to
// the target's base path.
func (r Route) UpstreamPath(path string) string {
	if !r.StripPrefix || r.Prefix == "" {
		return path
	}
	rest := strings.TrimPrefix(path, strings.TrimSuffix(r.Prefix, "/"))
	if !strings.HasPrefix(rest, "/") {
		rest = "/" + rest
	}
	return rest
}

type serviceRule struct {
	name        string
	target      *url.URL
	prefixes    []string
	stripPrefix bool
}

// Classifier maps request paths to services. It is immutable after
// construction and safe for concurrent use.
type Classifier struct {
	rules         []serviceRule
	defaultTarget *url.URL
}

// NewClassifier builds a classifier from the ordered service table.
func NewClassifier(services []config.ServiceConfig, defaultTarget string) (*Classifier, error) {
	c := &Classifier{rules: make([]serviceRule, 0, len(services))}

	for _, svc := range services {
		target, err := parseTarget(svc.Target)
		if err != nil {
			return nil, fmt.Errorf("service %q: %w", svc.Name, err)
		}
		c.rules = append(c.rules, serviceRule{
			name:        svc.Name,
			target:      target,
			prefixes:    svc.Prefixes,
			stripPrefix: svc.StripPrefix,
		})
	}

	if defaultTarget != "" {
		target, err := parseTarget(defaultTarget)
		if err != nil {
			return nil, fmt.Errorf("default target: %w", err)
		}
		c.defaultTarget = target
	}
	return c, nil
}

func parseTarget(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid target %q: %w", raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid target %q: must be an absolute http(s) URL", raw)
	}
	return u, nil
}

// Classify returns the route for path. The first service with a matching
// prefix wins. Unmatched paths classify as "other" and carry the default
// target, if any.
func (c *Classifier) Classify(path string) Route {
	for _, rule := range c.rules {
		for _, prefix := range rule.prefixes {
			if matchPrefix(path, prefix) {
				return Route{
					Service:     rule.name,
					Target:      rule.target,
					Prefix:      prefix,
					StripPrefix: rule.stripPrefix,
				}
			}
		}
	}
	return Route{Service: capture.ServiceOther, Target: c.defaultTarget}
}

// matchPrefix matches whole path segments: "/chat" matches "/chat" and
// "/chat/x" but not "/chatroom".
func matchPrefix(path, prefix string) bool {
	if prefix == "" || !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || strings.HasSuffix(prefix, "/") || path[len(prefix)] == '/'
}

// Services returns the configured service names in table order.
func (c *Classifier) Services() []string {
	names := make([]string, len(c.rules))
	for i, rule := range c.rules {
		names[i] = rule.name
	}
	return names
}
