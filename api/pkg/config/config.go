package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type ServerConfig struct {
	Store         Store
	WebServer     WebServer
	PubSub        PubSub
	Jenkins       Jenkins
	Notifications Notifications
	Janitor       Janitor
}

func LoadServerConfig() (ServerConfig, error) {
	var cfg ServerConfig
	err := envconfig.Process("", &cfg)
	if err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}

type Store struct {
	Host     string `envconfig:"POSTGRES_HOST" description:"The host to connect to the postgres server."`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432" description:"The port to connect to the postgres server."`
	Database string `envconfig:"POSTGRES_DATABASE" default:"capomastro" description:"The database to connect to the postgres server."`
	Username string `envconfig:"POSTGRES_USER" description:"The username to connect to the postgres server."`
	Password string `envconfig:"POSTGRES_PASSWORD" description:"The password to connect to the postgres server."`
	SSL      bool   `envconfig:"POSTGRES_SSL" default:"false"`

	AutoMigrate     bool          `envconfig:"DATABASE_AUTO_MIGRATE" default:"true" description:"Should we automatically run the migrations?"`
	MaxConns        int           `envconfig:"DATABASE_MAX_CONNS" default:"50"`
	IdleConns       int           `envconfig:"DATABASE_IDLE_CONNS" default:"25"`
	MaxConnLifetime time.Duration `envconfig:"DATABASE_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `envconfig:"DATABASE_MAX_CONN_IDLE_TIME" default:"1m"`
}

type WebServer struct {
	URL  string `envconfig:"SERVER_URL" description:"The URL the api server is listening on."`
	Host string `envconfig:"SERVER_HOST" default:"0.0.0.0" description:"The host to bind the api server to."`
	Port int    `envconfig:"SERVER_PORT" default:"8080"`
}

type PubSub struct {
	Provider string `envconfig:"PUBSUB_PROVIDER" default:"nats" description:"The pubsub provider to use (nats or inline)."`
	StoreDir string `envconfig:"NATS_STORE_DIR" default:"/var/lib/capomastro/nats" description:"The directory to store nats data."`
}

type Jenkins struct {
	RequestTimeout time.Duration `envconfig:"JENKINS_REQUEST_TIMEOUT" default:"30s"`
	RetryAttempts  uint          `envconfig:"JENKINS_RETRY_ATTEMPTS" default:"3"`
}

type Notifications struct {
	// AppURL is used to build links back to project builds in emails.
	AppURL string `envconfig:"APP_URL" default:"http://localhost:8080"`
	Email  EmailConfig
}

type EmailConfig struct {
	SenderAddress string `envconfig:"EMAIL_SENDER_ADDRESS" default:"no-reply@capomastro.local"`

	SMTP struct {
		Host     string `envconfig:"EMAIL_SMTP_HOST"`
		Port     string `envconfig:"EMAIL_SMTP_PORT"`
		Identity string `envconfig:"EMAIL_SMTP_IDENTITY"`
		Username string `envconfig:"EMAIL_SMTP_USERNAME"`
		Password string `envconfig:"EMAIL_SMTP_PASSWORD"`
	}
}

type Janitor struct {
	// SweepInterval controls how often unarchived items are re-enqueued.
	SweepInterval time.Duration `envconfig:"JANITOR_SWEEP_INTERVAL" default:"10m"`
	// SweepGracePeriod is how long an item may stay unfetched before the
	// sweep picks it up again.
	SweepGracePeriod time.Duration `envconfig:"JANITOR_SWEEP_GRACE_PERIOD" default:"30m"`
	Enabled          bool          `envconfig:"JANITOR_ENABLED" default:"true"`
}
