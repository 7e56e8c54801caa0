package health

import (
	"encoding/json"
	"net/http"

	"github.com/dd0wney/cluso-leader/pkg/logging"
)

// HTTPHandler serves the full health report. Degraded still answers 200 so
// load balancers keep routing while operators investigate.
func (hc *HealthChecker) HTTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := hc.Check()
		code := http.StatusOK
		if resp.Status == StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		hc.writeResponse(w, code, resp)
	}
}

// ReadinessHandler serves the readiness gate. Readiness is binary: a
// degraded registry or election still means not ready.
func (hc *HealthChecker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := hc.CheckReadiness()
		hc.writeResponse(w, binaryCode(resp.Status), resp)
	}
}

// LivenessHandler serves the liveness gate, also binary
func (hc *HealthChecker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := hc.CheckLiveness()
		hc.writeResponse(w, binaryCode(resp.Status), resp)
	}
}

func binaryCode(s Status) int {
	if s == StatusHealthy {
		return http.StatusOK
	}
	return http.StatusServiceUnavailable
}

func (hc *HealthChecker) writeResponse(w http.ResponseWriter, code int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		hc.logger.Error("Failed to encode health response", logging.Error(err))
	}
}
