package log

import (
	"fmt"

	"github.com/go-kratos/kratos/v2/log"
)

// LogHelper extends Kratos log.Helper with typed entries. Each method tags the
// line with a "type" field so operators can filter one concern at a time.
type LogHelper struct {
	*log.Helper
}

// NewLogHelper creates a LogHelper.
func NewLogHelper(logger log.Logger) *LogHelper {
	return &LogHelper{
		Helper: log.NewHelper(logger),
	}
}

func typed(kind, msg string, kvs []interface{}) []interface{} {
	allKvs := make([]interface{}, 0, len(kvs)+4)
	allKvs = append(allKvs, "msg", msg)
	allKvs = append(allKvs, kvs...)
	return append(allKvs, "type", kind)
}

// Upstream logs a call to the fixtures provider.
func (h *LogHelper) Upstream(msg string, kvs ...interface{}) {
	h.Infow(typed("upstream", msg, kvs)...)
}

// Quota logs budget decisions. Denials are warnings.
func (h *LogHelper) Quota(msg string, kvs ...interface{}) {
	h.Warnw(typed("quota", msg, kvs)...)
}

// Cache logs cache reads and writes.
func (h *LogHelper) Cache(msg string, kvs ...interface{}) {
	h.Debugw(typed("cache", msg, kvs)...)
}

// Redis logs Redis operations.
func (h *LogHelper) Redis(msg string, kvs ...interface{}) {
	h.Debugw(typed("redis", msg, kvs)...)
}

// Database logs persisted tier operations.
func (h *LogHelper) Database(msg string, kvs ...interface{}) {
	h.Debugw(typed("database", msg, kvs)...)
}

// Degraded logs a dependency failure that was absorbed.
func (h *LogHelper) Degraded(component string, err error, kvs ...interface{}) {
	msg := fmt.Sprintf("%s unavailable, continuing degraded", component)
	allKvs := append([]interface{}{"component", component, "error", err}, kvs...)
	h.Warnw(typed("degraded", msg, allKvs)...)
}

// Fallback logs that a stale or static payload was served.
func (h *LogHelper) Fallback(msg string, kvs ...interface{}) {
	h.Warnw(typed("fallback", msg, kvs)...)
}

// Served logs which tier answered a request.
func (h *LogHelper) Served(category, source string, durationMs int64, kvs ...interface{}) {
	msg := fmt.Sprintf("%s served from %s (%dms)", category, source, durationMs)
	allKvs := append([]interface{}{"category", category, "source", source, "duration_ms", durationMs}, kvs...)
	h.Infow(typed("served", msg, allKvs)...)
}

// Scheduler logs background job activity.
func (h *LogHelper) Scheduler(msg string, kvs ...interface{}) {
	h.Infow(typed("scheduler", msg, kvs)...)
}

// Startup logs process lifecycle events.
func (h *LogHelper) Startup(msg string, kvs ...interface{}) {
	h.Infow(typed("startup", msg, kvs)...)
}

// SlowRequestThreshold marks requests logged at warn by Request.
const SlowRequestThreshold = 5000

// Request logs one served HTTP request. Server errors and slow requests are warnings.
func (h *LogHelper) Request(method, path string, status int, durationMs int64, kvs ...interface{}) {
	msg := fmt.Sprintf("%s %s - %d (%dms)", method, path, status, durationMs)
	allKvs := append([]interface{}{"method", method, "path", path, "status", status, "duration_ms", durationMs}, kvs...)
	if status >= 500 || durationMs >= SlowRequestThreshold {
		h.Warnw(typed("request", msg, allKvs)...)
		return
	}
	h.Infow(typed("request", msg, allKvs)...)
}
