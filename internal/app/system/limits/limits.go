// internal/app/system/limits/limits.go
package limits

// Request body size limits for various features.
// These limits help prevent memory exhaustion from oversized requests.
const (
	// MaxJSONBodySize is the default cap for JSON request bodies.
	MaxJSONBodySize = 1 << 20 // 1 MB

	// MaxCertificateCreateSize caps certificate issuance payloads, which
	// carry the full snapshot including risk-declaration answers.
	MaxCertificateCreateSize = 1 << 20 // 1 MB

	// MaxLoginBodySize caps login payloads; credentials are tiny.
	MaxLoginBodySize = 16 << 10 // 16 KB
)
