package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Sign-in
	RouteSignIn   = "/"
	RouteCallback = "/auth/google/callback"
	RouteLogout   = "/auth/logout"

	// Provider data, requires a session
	RouteInfo     = "/info"
	RouteContacts = "/contacts"

	// Operations
	RouteHealth  = "/healthz"
	RouteMetrics = "/metrics"
)
