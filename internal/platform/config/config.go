package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Topics holds the asynchronous channel names the engine produces to and
// consumes from.
type Topics struct {
	TransferRequest    string
	CommitRequest      string
	CommitReply        string
	CancelRequest      string
	CancelReply        string
	TransactionRequest string
	TransactionReply   string
	DeadLetter         string
}

// Retry holds the bounded retry policy applied by the REST client around
// transient connectivity failures.
type Retry struct {
	Attempts       int
	BackoffDelay   time.Duration
	BackoffMax     time.Duration
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
}

// Config holds application configuration.
type Config struct {
	DatabaseURL    string
	Port           string
	IsProduction   bool
	UseMemoryStore bool
	AITID          string
	RateLimit      string
	QueueBuffer    int
	QueueWorkers   int
	Topics         Topics
	Retry          Retry
}

// LoadConfig loads configuration from environment variables and a .env file if
// one is present.
func LoadConfig() (*Config, error) {
	// Attempt to load .env file, ignore error if it doesn't exist
	_ = godotenv.Load()

	viper.SetDefault("PGSQL_URL", "")
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("IS_PRODUCTION", false)
	viper.SetDefault("USE_MEMORY_STORE", false)
	viper.SetDefault("AIT_ID", "27834")
	viper.SetDefault("RATE_LIMIT", "300-M")
	viper.SetDefault("QUEUE_BUFFER", 1024)
	viper.SetDefault("QUEUE_WORKERS", 4)

	viper.SetDefault("TRANSFER_REQUEST_TOPIC", "transfer.fulfillment.request.queue")
	viper.SetDefault("COMMIT_REQUEST_TOPIC", "commit.fulfillment.request.queue")
	viper.SetDefault("COMMIT_REPLY_TOPIC", "commit.fulfillment.reply.queue")
	viper.SetDefault("CANCEL_REQUEST_TOPIC", "cancel.fulfillment.request.queue")
	viper.SetDefault("CANCEL_REPLY_TOPIC", "cancel.fulfillment.reply.queue")
	viper.SetDefault("TRANSACTION_REQUEST_TOPIC", "transaction.fulfillment.request.queue")
	viper.SetDefault("TRANSACTION_REPLY_TOPIC", "transaction.fulfillment.reply.queue")
	viper.SetDefault("DEAD_LETTER_TOPIC", "transfer.fulfillment.deadletter.queue")

	viper.SetDefault("REST_ATTEMPTS", 3)
	viper.SetDefault("REST_BACKOFF_DELAY", "250ms")
	viper.SetDefault("REST_BACKOFF_DELAY_MAX", "2s")
	viper.SetDefault("REST_CONNECT_TIMEOUT", "2s")
	viper.SetDefault("REST_TIMEOUT", "10s")

	viper.AutomaticEnv()

	cfg := &Config{
		DatabaseURL:    viper.GetString("PGSQL_URL"),
		Port:           viper.GetString("PORT"),
		IsProduction:   viper.GetBool("IS_PRODUCTION"),
		UseMemoryStore: viper.GetBool("USE_MEMORY_STORE"),
		AITID:          viper.GetString("AIT_ID"),
		RateLimit:      viper.GetString("RATE_LIMIT"),
		QueueBuffer:    viper.GetInt("QUEUE_BUFFER"),
		QueueWorkers:   viper.GetInt("QUEUE_WORKERS"),
		Topics: Topics{
			TransferRequest:    viper.GetString("TRANSFER_REQUEST_TOPIC"),
			CommitRequest:      viper.GetString("COMMIT_REQUEST_TOPIC"),
			CommitReply:        viper.GetString("COMMIT_REPLY_TOPIC"),
			CancelRequest:      viper.GetString("CANCEL_REQUEST_TOPIC"),
			CancelReply:        viper.GetString("CANCEL_REPLY_TOPIC"),
			TransactionRequest: viper.GetString("TRANSACTION_REQUEST_TOPIC"),
			TransactionReply:   viper.GetString("TRANSACTION_REPLY_TOPIC"),
			DeadLetter:         viper.GetString("DEAD_LETTER_TOPIC"),
		},
		Retry: Retry{
			Attempts:       viper.GetInt("REST_ATTEMPTS"),
			BackoffDelay:   parseDuration("REST_BACKOFF_DELAY", 250*time.Millisecond),
			BackoffMax:     parseDuration("REST_BACKOFF_DELAY_MAX", 2*time.Second),
			ConnectTimeout: parseDuration("REST_CONNECT_TIMEOUT", 2*time.Second),
			RequestTimeout: parseDuration("REST_TIMEOUT", 10*time.Second),
		},
	}

	if cfg.DatabaseURL == "" && !cfg.UseMemoryStore {
		log.Println("Warning: PGSQL_URL environment variable not set.")
	}

	return cfg, nil
}

func parseDuration(key string, fallback time.Duration) time.Duration {
	raw := viper.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil {
		if raw != "" {
			log.Printf("Warning: Invalid value for %s ('%s'). Defaulting to %s.\n", key, raw, fallback)
		}
		return fallback
	}
	return d
}
