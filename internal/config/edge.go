package config

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// EdgeConfig configures the experiment edge proxy.
type EdgeConfig struct {
	Port              string        `envconfig:"PORT" default:"8000"`
	Host              string        `envconfig:"HOST" default:"0.0.0.0"`
	ReadTimeout       time.Duration `envconfig:"READ_TIMEOUT" default:"10s"`
	WriteTimeout      time.Duration `envconfig:"WRITE_TIMEOUT" default:"30s"`
	ReadHeaderTimeout time.Duration `envconfig:"READ_HEADER_TIMEOUT" default:"5s"`
	IdleTimeout       time.Duration `envconfig:"IDLE_TIMEOUT" default:"60s"`

	// OriginURL is where rewritten requests are forwarded (scheme://host[/base]).
	OriginURL     string        `envconfig:"ORIGIN_URL" default:"http://localhost:8081"`
	OriginTimeout time.Duration `envconfig:"ORIGIN_TIMEOUT" default:"10s" validate:"gt=0"`

	// Paths lists the request paths that take part in the experiment.
	// Anything else is proxied without bucketing.
	Paths []string `envconfig:"PATHS" default:"/"`

	// Visitor identity cookie.
	CookieName     string        `envconfig:"COOKIE_NAME" default:"X-Experiment"`
	CookieMaxAge   time.Duration `envconfig:"COOKIE_MAX_AGE" default:"720h" validate:"min=0"`
	CookieSecure   bool          `envconfig:"COOKIE_SECURE" default:"false"`
	CookieHTTPOnly bool          `envconfig:"COOKIE_HTTP_ONLY" default:"true"`

	// CarrierHeader holds the decision between the request and response phases.
	// It is stripped before the request reaches the origin.
	CarrierHeader string `envconfig:"CARRIER_HEADER" default:"X-Experiment-Decision"`

	// HashHeader optionally names a request header carrying a stable client id.
	// When set, new visitors presenting it are bucketed by hash instead of at random.
	HashHeader string `envconfig:"HASH_HEADER"`
}

// Validate performs validation on the EdgeConfig.
func (c *EdgeConfig) Validate() error {
	if err := validatePort(c.Port, "edge"); err != nil {
		return err
	}

	if err := validateHost(c.Host, "edge"); err != nil {
		return err
	}

	if _, err := parseAndValidateURL(c.OriginURL, []string{"http", "https"}); err != nil {
		return fmt.Errorf("invalid edge origin URL: %w", err)
	}

	if len(c.Paths) == 0 {
		return fmt.Errorf("at least one experiment path is required")
	}
	for _, p := range c.Paths {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("experiment path %q must start with '/'", p)
		}
	}

	if err := validateNoWhitespace(c.CookieName, "cookie name"); err != nil {
		return err
	}
	// http.Cookie.Valid checks the name against the RFC 6265 token grammar.
	if err := (&http.Cookie{Name: c.CookieName, Value: "0"}).Valid(); err != nil {
		return fmt.Errorf("invalid cookie name: %w", err)
	}

	if err := validateNoWhitespace(c.CarrierHeader, "carrier header"); err != nil {
		return err
	}

	return nil
}
