package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() Config {
	return Config{
		Nodes: []NodeEndpoint{{URL: "https://node.example.com"}},
		Scan:  Scan{BatchSize: 100, MaxBatchSize: 1000, Confirmations: 19},
	}
}

func TestConfig_Validate_RequiresAtLeastOneNode(t *testing.T) {
	cfg := validConfig()
	cfg.Nodes = nil

	assert.Error(t, cfg.validate())
}

func TestConfig_Validate_RejectsBatchSizeOutOfRange(t *testing.T) {
	cfg := validConfig()
	cfg.Scan.BatchSize = 0
	assert.Error(t, cfg.validate())

	cfg = validConfig()
	cfg.Scan.BatchSize = cfg.Scan.MaxBatchSize + 1
	assert.Error(t, cfg.validate())
}

func TestConfig_Validate_RejectsNegativeConfirmations(t *testing.T) {
	cfg := validConfig()
	cfg.Scan.Confirmations = -1
	assert.Error(t, cfg.validate())
}

func TestConfig_Validate_AcceptsWellFormedConfig(t *testing.T) {
	assert.NoError(t, validConfig().validate())
}
