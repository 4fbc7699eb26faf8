package resilience

import (
	"time"
)

// Breaker names for the two external collaborators the design wraps in a
// circuit breaker (C7): the sandbox executor and the complexity-verifying
// LLM.
const (
	BreakerSandbox    = "sandbox"
	BreakerComplexity = "complexity_llm"
)

// DefaultCircuitBreakerConfigs holds the per-dependency defaults called out
// in the design: 5 consecutive failures trips the breaker, a 60s cooldown
// before a half-open probe, and 2 consecutive successes closes it again.
var DefaultCircuitBreakerConfigs = map[string]CircuitBreakerConfig{
	BreakerSandbox: {
		FailureThreshold:        5,
		FailureRatio:            1.0,
		ResetTimeout:            60 * time.Second,
		SuccessThreshold:        2,
		TimeoutThreshold:        30 * time.Second,
		MaxRequestsHalfOpen:     1,
		MinimumRequestCount:     5,
		FailureCountResetWindow: 30 * time.Second,
	},
	BreakerComplexity: {
		FailureThreshold:        5,
		FailureRatio:            1.0,
		ResetTimeout:            60 * time.Second,
		SuccessThreshold:        2,
		TimeoutThreshold:        15 * time.Second,
		MaxRequestsHalfOpen:     1,
		MinimumRequestCount:     5,
		FailureCountResetWindow: 30 * time.Second,
	},
}
