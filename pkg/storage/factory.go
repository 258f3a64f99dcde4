package storage

import (
	"fmt"

	"github.com/pyrex41/reelflow/pkg/config"
)

// ProviderType represents the type of storage provider
type ProviderType string

const (
	// MemoryProviderType is an in-memory storage provider
	MemoryProviderType ProviderType = "memory"

	// PostgreSQLProviderType is a PostgreSQL storage provider
	PostgreSQLProviderType ProviderType = "postgres"

	// DynamoDBProviderType is a DynamoDB storage provider
	DynamoDBProviderType ProviderType = "dynamodb"
)

// NewProvider creates a storage provider from the application configuration
func NewProvider(cfg config.StorageConfig) (StorageProvider, error) {
	switch ProviderType(cfg.Type) {
	case MemoryProviderType:
		return NewMemoryProvider(), nil

	case PostgreSQLProviderType:
		return NewPostgreSQLProvider(PostgreSQLProviderConfig{
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			Database: cfg.Postgres.Database,
			SSLMode:  cfg.Postgres.SSLMode,
		})

	case DynamoDBProviderType:
		return NewDynamoDBProvider(DynamoDBProviderConfig{
			Region:      cfg.DynamoDB.Region,
			Endpoint:    cfg.DynamoDB.Endpoint,
			TablePrefix: cfg.DynamoDB.TablePrefix,
		})

	default:
		return nil, fmt.Errorf("unknown storage provider type: %s", cfg.Type)
	}
}
