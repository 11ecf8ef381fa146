// Package handler exposes readiness checks over grpc.health.v1 and as GET /health.
package handler

import (
	"context"
	"time"
)

// Pinger is used for readiness (e.g. *sql.DB).
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker is used for readiness of the login policy engine (e.g. the OPA evaluator).
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Check is an additional named readiness check, e.g. a Redis ping.
type Check func(ctx context.Context) error

// DefaultTimeout bounds one full readiness run.
const DefaultTimeout = 3 * time.Second

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Report is the result of one readiness run.
type Report struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Healthy reports whether every check passed.
func (r Report) Healthy() bool { return r.Status == StatusOK }

type namedCheck struct {
	name string
	fn   Check
}

// Server runs readiness checks for both transports. A nil Pinger or PolicyChecker is skipped.
type Server struct {
	checks  []namedCheck
	timeout time.Duration
	now     func() time.Time
}

// NewServer returns a Server checking db and policy.
func NewServer(db Pinger, policy PolicyChecker) *Server {
	s := &Server{timeout: DefaultTimeout, now: time.Now}
	if db != nil {
		s.AddCheck("database", db.PingContext)
	}
	if policy != nil {
		s.AddCheck("policy", policy.HealthCheck)
	}
	return s
}

// AddCheck registers an extra check. Checks run in registration order.
func (s *Server) AddCheck(name string, fn Check) {
	if fn == nil {
		return
	}
	s.checks = append(s.checks, namedCheck{name: name, fn: fn})
}

// Run executes every check under one timeout.
func (s *Server) Run(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	r := Report{Status: StatusOK, Timestamp: s.now().UTC()}
	if len(s.checks) == 0 {
		return r
	}
	r.Checks = make(map[string]string, len(s.checks))
	for _, c := range s.checks {
		if err := c.fn(ctx); err != nil {
			r.Checks[c.name] = err.Error()
			r.Status = StatusError
			continue
		}
		r.Checks[c.name] = StatusOK
	}
	return r
}
