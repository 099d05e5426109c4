package tenant

import (
	"net"
	"regexp"
	"strings"
)

const maxSchemaNameLen = 63

var schemaNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

var schemaNameStrip = strings.NewReplacer(" ", "", "-", "", ".", "")

// SchemaNameFor derives a schema name from a company name: lower-cased,
// with spaces, dashes and dots removed, truncated to 63 bytes. The result
// still has to pass ValidateSchemaName.
func SchemaNameFor(companyName string) string {
	s := schemaNameStrip.Replace(strings.ToLower(strings.TrimSpace(companyName)))
	if len(s) > maxSchemaNameLen {
		s = s[:maxSchemaNameLen]
	}
	return s
}

// ValidateSchemaName rejects names that are not plain lower-case
// identifiers or that collide with schemas owned by PostgreSQL itself.
func ValidateSchemaName(name string) error {
	if !schemaNamePattern.MatchString(name) {
		return ErrInvalidSchemaName
	}
	if strings.HasPrefix(name, "pg_") || name == "information_schema" {
		return ErrInvalidSchemaName
	}
	return nil
}

// NormalizeHost strips any port and trailing dot and lower-cases the host.
func NormalizeHost(host string) string {
	host = strings.TrimSpace(host)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(host, ".")
	return strings.ToLower(host)
}
