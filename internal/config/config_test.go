package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadIndexPageThresholdDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, 0.3, cfg.Retrieval.NumberLineRatio)
	assert.Equal(t, 3, cfg.Retrieval.HTTPOccurrences)
}

func TestLoadIndexPageThresholdsFromEnv(t *testing.T) {
	t.Setenv("INDEX_PAGE_NUMBER_LINE_RATIO", "0.5")
	t.Setenv("INDEX_PAGE_HTTP_OCCURRENCES", "7")

	cfg := Load()

	assert.Equal(t, 0.5, cfg.Retrieval.NumberLineRatio)
	assert.Equal(t, 7, cfg.Retrieval.HTTPOccurrences)
}

func TestGetEnvAsFloatFallsBackOnGarbage(t *testing.T) {
	t.Setenv("INDEX_PAGE_NUMBER_LINE_RATIO", "not-a-number")

	assert.Equal(t, 0.3, getEnvAsFloat("INDEX_PAGE_NUMBER_LINE_RATIO", 0.3))
}
