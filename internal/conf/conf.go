package conf

import "time"

// Bootstrap is the root configuration.
type Bootstrap struct {
	Server    *Server
	Data      *Data
	Upstream  *Upstream
	Quota     *Quota
	Fixtures  *Fixtures
	Retention *Retention
	Log       *Log
}

// Server holds transport settings.
type Server struct {
	HTTP *HTTPServer
}

// HTTPServer configures the Kratos HTTP server.
type HTTPServer struct {
	Network string
	Addr    string
	Timeout time.Duration
}

// Data holds storage settings.
type Data struct {
	Database *Database
	Redis    *Redis
}

// Database configures the persisted tier. Driver is "mysql" or "sqlite".
type Database struct {
	Driver      string
	Source      string
	AutoMigrate bool
}

// Redis configures the durable cache and quota counters.
type Redis struct {
	Network      string
	Addr         string
	Password     string
	DB           int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Upstream configures the fixtures provider client.
type Upstream struct {
	BaseURL          string
	APIKey           string
	Tier             string
	Timeout          time.Duration
	ProxyURL         string
	MaxAttempts      int
	FailureThreshold int
	ResetTimeout     time.Duration
}

// Quota configures the conservative daily budget kept below the provider cap.
type Quota struct {
	DailySafetyCap int
	LogSize        int
}

// Fixtures scopes which competition the service follows.
type Fixtures struct {
	League   int64
	Season   int
	Timezone string
}

// Retention configures the prune job.
type Retention struct {
	Enabled  bool
	Schedule string
}

// Log configures zap.
type Log struct {
	Level      string
	Format     string
	Env        string
	OutputFile string
}
