package scraper

import (
	"log/slog"
	"net/url"
	"strings"
)

// DefaultAllowedDomains are the retailer's country storefronts and its
// short-link domain.
var DefaultAllowedDomains = []string{
	"amazon.com",
	"amazon.ca",
	"amazon.co.uk",
	"amazon.de",
	"amazon.fr",
	"amazon.in",
	"amazon.it",
	"amazon.co.jp",
	"amazon.cn",
	"amazon.com.mx",
	"amazon.com.au",
	"amazon.nl",
	"amazon.pl",
	"amazon.sg",
	"amazon.sa",
	"amazon.es",
	"amazon.se",
	"amazon.ae",
	"amazon.br",
	"amazon.com.br",
	"amazon.com.tr",
	"amzn.to",
}

type URLValidator struct {
	domains []string
	logger  *slog.Logger
}

func NewURLValidator(domains []string, logger *slog.Logger) *URLValidator {
	if len(domains) == 0 {
		domains = DefaultAllowedDomains
	}

	normalized := make([]string, 0, len(domains))
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			normalized = append(normalized, d)
		}
	}

	return &URLValidator{
		domains: normalized,
		logger:  logger.With("component", "url_validator"),
	}
}

// IsValid reports whether rawURL has a scheme and a host ending in one of the
// allowed domain suffixes. The port is ignored.
func (v *URLValidator) IsValid(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		v.logger.Warn("error validating URL", "url", rawURL, "error", err)
		return false
	}

	if parsed.Scheme == "" || parsed.Host == "" {
		return false
	}

	host := strings.ToLower(parsed.Hostname())
	for _, domain := range v.domains {
		if strings.HasSuffix(host, domain) {
			return true
		}
	}

	return false
}
