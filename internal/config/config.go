package config

import (
	"encoding/base64"
	"fmt"
	"time"
)

const (
	defaultStoreTimeout = 5 * time.Second
	defaultHistoryLimit = 50
)

type Config struct {
	ServerAddr     string
	DatabaseDSN    string
	SigningKey     []byte
	AllowedOrigins []string
	// StoreTimeout bounds every persistence call made by the chat core.
	StoreTimeout time.Duration
	// HistoryLimit is the number of recent messages returned on join.
	HistoryLimit int
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(base64Secret)
}

func NewConfig(serverAddr, databaseDSN, base64Secret string, allowedOrigins []string) (*Config, error) {
	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if databaseDSN == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}
	if base64Secret == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}

	signingKey, err := decodeSigningSecret(base64Secret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}

	return &Config{
		ServerAddr:     serverAddr,
		DatabaseDSN:    databaseDSN,
		SigningKey:     signingKey,
		AllowedOrigins: allowedOrigins,
		StoreTimeout:   defaultStoreTimeout,
		HistoryLimit:   defaultHistoryLimit,
	}, nil
}
