package workflow

import "github.com/holst/aegis/internal/agent/provider"

// Fallback messages shown to the user when the turn cannot complete. They
// name the failure category without leaking internals.
const (
	fallbackRateLimited = "The advisory service is handling a high volume of requests right now. Please wait a moment and ask again."
	fallbackTimeout     = "The analysis took longer than expected and was cut short. Please try again; simpler or more specific questions usually complete faster."
	fallbackConnection  = "I couldn't reach the analysis service. Please check your connection and try again shortly."
	fallbackOverloaded  = "The analysis service is temporarily overloaded. Please try again in a few minutes."
	fallbackGeneric     = "Something went wrong while preparing your security analysis. Please try again, and contact your administrator if the problem persists."
)

// FallbackMessage maps an internal failure to a user-safe message.
func FallbackMessage(err error) string {
	switch provider.CategoryOf(err) {
	case provider.ErrCategoryRateLimited:
		return fallbackRateLimited
	case provider.ErrCategoryTimeout:
		return fallbackTimeout
	case provider.ErrCategoryConnection:
		return fallbackConnection
	case provider.ErrCategoryOverloaded:
		return fallbackOverloaded
	default:
		return fallbackGeneric
	}
}
