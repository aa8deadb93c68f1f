package webhook

import (
	"crypto/subtle"
	"strings"

	"go.uber.org/zap"
)

// Verifier authenticates callback requests against the shared secret.
// The external workflow presents the secret either as a bearer token or
// in the X-API-Key header, depending on how the scenario is configured.
type Verifier struct {
	secret string
	logger *zap.Logger
}

// NewVerifier creates a new webhook verifier
func NewVerifier(secret string, logger *zap.Logger) *Verifier {
	return &Verifier{
		secret: secret,
		logger: logger,
	}
}

// Verify checks the presented credential in constant time.
// An empty configured secret rejects everything.
func (v *Verifier) Verify(authorization, apiKey string) bool {
	if v.secret == "" {
		v.logger.Warn("Webhook secret not configured, rejecting callback")
		return false
	}

	var presented string
	switch {
	case strings.HasPrefix(authorization, "Bearer "):
		presented = strings.TrimPrefix(authorization, "Bearer ")
	case apiKey != "":
		presented = apiKey
	default:
		return false
	}

	return subtle.ConstantTimeCompare([]byte(presented), []byte(v.secret)) == 1
}
