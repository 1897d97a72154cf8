package telelink

import "strings"

// Marker phrases the remote service is known to use when an account has a
// second factor enabled. Adapters translate matching upstream errors into
// StatusSecondFactor exactly once, at this boundary; wording changes upstream
// degrade to StatusAuthFailure rather than breaking callers.
var secondFactorMarkers = []string{
	"SESSION_PASSWORD_NEEDED",
	"PASSWORD_HASH_INVALID",
	"2FA",
	"Two-steps verification is enabled",
}

// ClassifySignInError maps an upstream sign-in error message to a typed
// status. Intended for protocol adapter implementations.
func ClassifySignInError(msg string) SignInStatus {
	for _, marker := range secondFactorMarkers {
		if strings.Contains(msg, marker) {
			return StatusSecondFactor
		}
	}
	return StatusAuthFailure
}
