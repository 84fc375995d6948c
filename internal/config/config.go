// Package config loads the process-wide configuration once at startup. The
// resulting value is immutable and passed explicitly into the normalizer and
// ingestion processor.
package config

import (
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"cypher-activity/internal/chainhook"
)

// Config holds configuration values loaded from flags and environment.
type Config struct {
	MongoURI    string
	DBName      string
	PostgresURI string // when set, the activity store runs on Postgres
	UseMemory   bool   // in-memory store, for local runs
	Port        int
	Secret      string // shared chainhook webhook secret
	Network     string // target Stacks network identifier
	Contracts   chainhook.Contracts
	LogLevel    string
}

// env bindings kept compatible with earlier deployments.
var envBindings = map[string]string{
	"mongodb-uri":           "MONGODB_URI",
	"db-name":               "MONGODB_DB_NAME",
	"postgres-uri":          "POSTGRES_URI",
	"port":                  "PORT",
	"chainhook-secret":      "CHAINHOOK_SECRET",
	"network":               "STACKS_NETWORK",
	"profiles-contract":     "PROFILES_CONTRACT_ID",
	"cbtc-contract":         "CYPHER_BTC_TOKEN_CONTRACT_ID",
	"collectibles-contract": "CYPHER_COLLECTIBLES_CONTRACT_ID",
	"log-level":             "LOG_LEVEL",
}

// Load merges environment variables and flags into Config.
func Load(flags *pflag.FlagSet) (Config, error) {
	v := viper.New()

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	v.SetDefault("mongodb-uri", "mongodb://localhost:27017")
	v.SetDefault("db-name", "cypherbtc")
	v.SetDefault("port", 3000)
	v.SetDefault("network", "testnet")
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	cfg := Config{
		MongoURI:    v.GetString("mongodb-uri"),
		DBName:      v.GetString("db-name"),
		PostgresURI: v.GetString("postgres-uri"),
		UseMemory:   v.GetBool("use-memory"),
		Port:        v.GetInt("port"),
		Secret:      v.GetString("chainhook-secret"),
		Network:     v.GetString("network"),
		Contracts: chainhook.Contracts{
			Profiles:     v.GetString("profiles-contract"),
			CbtcToken:    v.GetString("cbtc-contract"),
			Collectibles: v.GetString("collectibles-contract"),
		},
		LogLevel: v.GetString("log-level"),
	}

	return cfg, nil
}
