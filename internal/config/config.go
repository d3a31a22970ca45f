package config

import (
	"os"
	"strings"
)

type Config struct {
	DatabaseURL     string
	RedisURL        string
	KafkaBrokers    string
	ProviderBaseURL string
	JaegerEndpoint  string
	Port            string

	// Key pairs as issued by the provider dashboard. TestMode selects which
	// pair is active; the resolved pair is what the rest of the service sees.
	SecretKey     string
	PublicKey     string
	TestSecretKey string
	TestPublicKey string
	TestMode      bool

	ActiveSecretKey string
	ActivePublicKey string

	AutocompleteOrders  bool
	ReturnURLBase       string
	CartURL             string
	CallbackURL         string
	SupportedCurrencies []string
}

func Load() *Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8084"
	}

	providerBaseURL := os.Getenv("PROVIDER_BASE_URL")
	if providerBaseURL == "" {
		providerBaseURL = "https://api.useklump.com/v1"
	}

	currencies := strings.Split(os.Getenv("SUPPORTED_CURRENCIES"), ",")
	if len(currencies) == 1 && currencies[0] == "" {
		currencies = []string{"NGN"}
	}

	cfg := &Config{
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		KafkaBrokers:    os.Getenv("KAFKA_BROKERS"),
		ProviderBaseURL: providerBaseURL,
		JaegerEndpoint:  os.Getenv("JAEGER_ENDPOINT"),
		Port:            port,

		SecretKey:     os.Getenv("SECRET_KEY"),
		PublicKey:     os.Getenv("PUBLIC_KEY"),
		TestSecretKey: os.Getenv("TEST_SECRET_KEY"),
		TestPublicKey: os.Getenv("TEST_PUBLIC_KEY"),
		TestMode:      os.Getenv("TEST_MODE") == "true",

		AutocompleteOrders:  os.Getenv("AUTOCOMPLETE_ORDERS") != "false",
		ReturnURLBase:       os.Getenv("RETURN_URL_BASE"),
		CartURL:             os.Getenv("CART_URL"),
		CallbackURL:         os.Getenv("CALLBACK_URL"),
		SupportedCurrencies: currencies,
	}

	cfg.ActiveSecretKey = cfg.SecretKey
	cfg.ActivePublicKey = cfg.PublicKey
	if cfg.TestMode {
		cfg.ActiveSecretKey = cfg.TestSecretKey
		cfg.ActivePublicKey = cfg.TestPublicKey
	}

	return cfg
}
