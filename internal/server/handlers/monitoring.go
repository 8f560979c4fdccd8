package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"

	"git.home.luguber.info/inful/timetracker/internal/foundation/errors"
	"git.home.luguber.info/inful/timetracker/internal/server/responses"
	"git.home.luguber.info/inful/timetracker/internal/version"
)

// MonitoringHandlers serves liveness information.
type MonitoringHandlers struct {
	clock        clockwork.Clock
	startTime    time.Time
	errorAdapter *errors.HTTPErrorAdapter
}

// NewMonitoringHandlers creates monitoring handlers; uptime is measured from now.
func NewMonitoringHandlers(clock clockwork.Clock) *MonitoringHandlers {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MonitoringHandlers{
		clock:        clock,
		startTime:    clock.Now(),
		errorAdapter: errors.NewHTTPErrorAdapter(slog.Default()),
	}
}

// HandleHealthCheck handles GET /healthz.
func (h *MonitoringHandlers) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	health := &responses.HealthResponse{
		Status:    "healthy",
		Timestamp: h.clock.Now().UTC(),
		Version:   version.Version,
		Uptime:    h.clock.Since(h.startTime).Seconds(),
	}
	respond(h.errorAdapter, w, r, http.StatusOK, health)
}
