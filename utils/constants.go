package utils

import (
	"time"
)

// RecoveryCodeTTL is how long a password recovery code stays valid
const RecoveryCodeTTL = 15 * time.Minute

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

// AppVersion is reported by the health endpoint
const AppVersion = "1.0.0"

// Request-scoped context keys
type ContextKey string

const (
	RequestIDKey ContextKey = "request_id"
	UserAgentKey ContextKey = "user_agent"
	IPAddressKey ContextKey = "ip_address"
	EndpointKey  ContextKey = "endpoint"
	UserEmailKey ContextKey = "user_email"
	DegradedKey  ContextKey = "auth_degraded"
)
