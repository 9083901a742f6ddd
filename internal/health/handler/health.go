package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"authguard/internal/authn"
)

// CheckTimeout bounds each readiness probe.
const CheckTimeout = 2 * time.Second

// Pinger checks database connectivity (e.g. *sql.DB).
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker checks that the policy engine can evaluate (e.g. OPA).
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Report is the readiness result. Checks holds "ok" or the failure per dependency.
type Report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Serving reports whether every check passed.
func (r Report) Serving() bool { return r.Status == "ok" }

// Checker runs the readiness checks. Nil dependencies are skipped.
type Checker struct {
	pinger Pinger
	policy PolicyChecker
}

// NewChecker returns a Checker over the given dependencies.
func NewChecker(pinger Pinger, policy PolicyChecker) *Checker {
	return &Checker{pinger: pinger, policy: policy}
}

// Check pings the database and evaluates the policy engine.
func (c *Checker) Check(ctx context.Context) Report {
	r := Report{Status: "ok", Checks: map[string]string{}}
	run := func(name string, fn func(context.Context) error) {
		cctx, cancel := context.WithTimeout(ctx, CheckTimeout)
		defer cancel()
		if err := fn(cctx); err != nil {
			log.Warn().Err(err).Str("check", name).Msg("health: check failed")
			r.Status = "unavailable"
			r.Checks[name] = err.Error()
			return
		}
		r.Checks[name] = "ok"
	}
	if c.pinger != nil {
		run("database", c.pinger.PingContext)
	}
	if c.policy != nil {
		run("policy", c.policy.HealthCheck)
	}
	return r
}

// ServeHTTP answers GET /healthz with 200 when serving and 503 otherwise.
func (c *Checker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rep := c.Check(r.Context())
	status := http.StatusOK
	if !rep.Serving() {
		status = http.StatusServiceUnavailable
	}
	authn.WriteJSON(w, status, rep)
}

// Sync sets the overall status of the gRPC health server from one Check.
func (c *Checker) Sync(ctx context.Context, hs *health.Server) {
	st := healthpb.HealthCheckResponse_SERVING
	if !c.Check(ctx).Serving() {
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	hs.SetServingStatus("", st)
}

// Watch runs Sync every interval until ctx is done.
func (c *Checker) Watch(ctx context.Context, hs *health.Server, interval time.Duration) {
	c.Sync(ctx, hs)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.Sync(ctx, hs)
		}
	}
}
