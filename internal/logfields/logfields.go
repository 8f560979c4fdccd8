package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyDurationMS      = "duration_ms"
	KeyDurationSeconds = "duration_seconds"
	KeyEndpoint        = "endpoint"
	KeyStorageKey      = "storage_key"
	KeyOutcome         = "outcome"
	KeySessionID       = "session_id"
	KeyLifecycleState  = "lifecycle_state"
	KeySource          = "source"
	KeyJobName         = "job_name"
	KeyMethod          = "method"
	KeyPath            = "path"
	KeyStatus          = "status"
	KeyUserAgent       = "user_agent"
	KeyRemoteAddr      = "remote_addr"
	KeyError           = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func DurationMS(ms int64) slog.Attr      { return slog.Int64(KeyDurationMS, ms) }
func Duration(d time.Duration) slog.Attr { return slog.Int64(KeyDurationMS, d.Milliseconds()) }
func DurationSeconds(s int64) slog.Attr  { return slog.Int64(KeyDurationSeconds, s) }
func Endpoint(e string) slog.Attr        { return slog.String(KeyEndpoint, e) }
func StorageKey(k string) slog.Attr      { return slog.String(KeyStorageKey, k) }
func Outcome(o string) slog.Attr         { return slog.String(KeyOutcome, o) }
func SessionID(id string) slog.Attr      { return slog.String(KeySessionID, id) }
func LifecycleState(s string) slog.Attr  { return slog.String(KeyLifecycleState, s) }
func Source(name string) slog.Attr       { return slog.String(KeySource, name) }
func JobName(n string) slog.Attr         { return slog.String(KeyJobName, n) }
func Method(m string) slog.Attr          { return slog.String(KeyMethod, m) }
func Path(p string) slog.Attr            { return slog.String(KeyPath, p) }
func Status(code int) slog.Attr          { return slog.Int(KeyStatus, code) }
func UserAgent(ua string) slog.Attr      { return slog.String(KeyUserAgent, ua) }
func RemoteAddr(addr string) slog.Attr   { return slog.String(KeyRemoteAddr, addr) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
