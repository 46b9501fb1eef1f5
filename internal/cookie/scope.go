// ABOUTME: Maps the deployment environment to a cookie domain policy
// ABOUTME: Scopes session cookies to the base domain shared by tenant subdomains

package cookie

import (
	"fmt"
	"net"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Environment identifies the deployment the client talks to.
type Environment string

const (
	// EnvDevelopment is a developer deployment, usually on a shared dev domain
	EnvDevelopment Environment = "development"
	// EnvStaging is a pre-production deployment
	EnvStaging Environment = "staging"
	// EnvProduction is the default
	EnvProduction Environment = "production"
	// EnvTest is an isolated test environment; cookies are never domain-scoped
	EnvTest Environment = "test"
)

// ValidateEnvironment parses an environment name.
// Empty string defaults to EnvProduction.
func ValidateEnvironment(env string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "", "production", "prod":
		return EnvProduction, nil
	case "staging":
		return EnvStaging, nil
	case "development", "dev":
		return EnvDevelopment, nil
	case "test":
		return EnvTest, nil
	default:
		return "", fmt.Errorf("invalid environment: %q (must be development, staging, production, or test)", env)
	}
}

// Scope decides the Domain attribute for cookies written from a host.
type Scope struct {
	env        Environment
	baseDomain string
}

// ScopeFor returns the domain policy for env. baseDomain, when set,
// overrides the registrable domain derived from the host.
func ScopeFor(env Environment, baseDomain string) Scope {
	return Scope{
		env:        env,
		baseDomain: strings.TrimPrefix(strings.ToLower(strings.TrimSpace(baseDomain)), "."),
	}
}

// Environment returns the environment the scope was built for.
func (s Scope) Environment() Environment {
	return s.env
}

// Domain returns the Domain attribute for a cookie set from host, or ""
// for a host-only cookie. Test environments, IP addresses, and hosts
// without a registrable domain (e.g. localhost) are always host-only.
func (s Scope) Domain(host string) string {
	if s.env == EnvTest {
		return ""
	}

	host = strings.ToLower(stripPort(host))
	if host == "" || net.ParseIP(host) != nil {
		return ""
	}

	if s.baseDomain != "" {
		if host == s.baseDomain || strings.HasSuffix(host, "."+s.baseDomain) {
			return s.baseDomain
		}
		return ""
	}

	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return ""
	}
	return domain
}

func stripPort(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return strings.Trim(host, "[]")
}
