package config

import (
	"github.com/kelseyhightower/envconfig"
)

type App struct {
	// DB
	PGReconDSN string `envconfig:"PG_RECON_DSN" required:"true"`
	// JWT (monitoring API)
	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`
	// Network
	HTTPAddr string `envconfig:"RECON_HTTP_ADDR" default:":8080"`

	// RabbitMQ
	RabbitURL     string `envconfig:"RABBIT_URL" required:"true"`
	ReconExchange string `envconfig:"RECON_EXCHANGE" default:"recon.exchange"`
	AdminExchange string `envconfig:"ADMIN_EXCHANGE" default:"admin.exchange"`
	AdminQueue    string `envconfig:"RECON_ADMIN_QUEUE" default:"recon.admin.q"`

	// Payment gateway (Omise). Optional: without keys the engine still
	// ingests webhooks but cannot verify events or issue charge links.
	OmisePublicKey  string `envconfig:"OMISE_PUBLIC_KEY" default:""`
	OmiseSecretKey  string `envconfig:"OMISE_SECRET_KEY" default:""`
	VerifyWebhooks  bool   `envconfig:"VERIFY_WEBHOOKS" default:"false"`
	ChargeLinkTTLHr int    `envconfig:"CHARGE_LINK_TTL_HR" default:"24"`

	// Webhook ingestion
	IngestRetries int `envconfig:"INGEST_RETRIES" default:"3"`
}

func Load() (App, error) {
	var c App
	err := envconfig.Process("", &c)
	return c, err
}
