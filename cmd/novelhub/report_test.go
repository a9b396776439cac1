package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"novelhub/internal/migrate"
)

func sampleReport() migrate.Report {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return migrate.Report{
		StartedAt:  start,
		FinishedAt: start.Add(90 * time.Second),
		DryRun:     true,
		Stages: []migrate.MigrationResult{
			{Stage: migrate.StageContent, Total: 3, Migrated: 2, Failed: 1, Errors: []string{"novel 9: boom"}},
		},
		Synced: map[string]int{"novels": 2},
	}
}

func TestWriteReportSummary(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, "", sampleReport()))

	out := buf.String()
	assert.Contains(t, out, "dry_run: true")
	assert.Contains(t, out, "stage: content")
	assert.Contains(t, out, "novel 9: boom")
}

func TestWriteReportFiles(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "reports", "run.json")
	require.NoError(t, writeReport(nil, jsonPath, sampleReport()))
	b, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	var fromJSON migrate.Report
	require.NoError(t, json.Unmarshal(b, &fromJSON))
	require.Len(t, fromJSON.Stages, 1)
	assert.Equal(t, 1, fromJSON.Failed())
	assert.Equal(t, 2, fromJSON.Synced["novels"])

	yamlPath := filepath.Join(dir, "run.yml")
	require.NoError(t, writeReport(nil, yamlPath, sampleReport()))
	b, err = os.ReadFile(yamlPath)
	require.NoError(t, err)
	var fromYAML map[string]any
	require.NoError(t, yaml.Unmarshal(b, &fromYAML))
	assert.Equal(t, true, fromYAML["dry_run"])
	assert.Len(t, fromYAML["stages"], 1)
}
