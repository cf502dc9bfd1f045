package storage

import "os"

// DynamoMode represents the DynamoDB connection mode
type DynamoMode string

const (
	DynamoModeLocal  DynamoMode = "local"
	DynamoModeAWS    DynamoMode = "aws"
	DynamoModeMemory DynamoMode = "memory"
)

// DynamoConfig holds DynamoDB configuration
type DynamoConfig struct {
	Mode        DynamoMode
	Endpoint    string // for local mode
	Region      string
	CallsTable  string
	QueueTable  string
	AgentsTable string
}

// LoadDynamoConfig loads DynamoDB config from environment
func LoadDynamoConfig() DynamoConfig {
	mode := DynamoMode(getEnv("DYNAMO_MODE", "memory"))
	if mode != DynamoModeLocal && mode != DynamoModeAWS {
		mode = DynamoModeMemory
	}

	return DynamoConfig{
		Mode:        mode,
		Endpoint:    getEnv("DYNAMO_ENDPOINT", "http://localhost:8000"),
		Region:      getEnv("DYNAMO_REGION", "eu-central-1"),
		CallsTable:  getEnv("DYNAMO_CALLS_TABLE", "ivr-call-records"),
		QueueTable:  getEnv("DYNAMO_QUEUE_TABLE", "ivr-call-queue"),
		AgentsTable: getEnv("DYNAMO_AGENTS_TABLE", "ivr-agents"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
