package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	jsonFolder := t.TempDir()
	jsonFile := "config.json"
	body := `{
		"data_dir": "data",
		"sources": {"train": "train.csv", "test": "/abs/test.xlsx"},
		"target": "Survived",
		"index": "PassengerId",
		"schema": [
			{"name": "PassengerId", "type": "int"},
			{"name": "Survived", "type": "int"},
			{"name": "Sex", "type": "category", "categories": ["male", "female"]}
		],
		"report": {"debounce": "5s", "alpha": 0.1}
	}`
	require.NoError(t, os.WriteFile(filepath.Join(jsonFolder, jsonFile), []byte(body), 0644))

	cfg, err := LoadConfig(jsonFolder, jsonFile)
	require.NoError(t, err)

	assert.Equal(t, []string{"PassengerId", "Survived", "Sex"}, cfg.Schema.Names())
	assert.Equal(t, Duration(5*time.Second), cfg.Report.Debounce)
	assert.InDelta(t, 0.1, cfg.Report.Alpha, 1e-12)
	// 未写入文件的字段保留默认值
	assert.Equal(t, 10, cfg.Impute.MaxIter)

	p, ok := cfg.SourcePath(" Train ")
	require.True(t, ok)
	assert.Equal(t, filepath.Join("data", "train.csv"), p)

	p, ok = cfg.SourcePath("test")
	require.True(t, ok)
	assert.Equal(t, "/abs/test.xlsx", p)

	_, ok = cfg.SourcePath("validation")
	assert.False(t, ok)
}

func TestLoadConfigMissingFileUsesDefault(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir(), "config.json")
	require.NoError(t, err)
	assert.Equal(t, Default().Schema, cfg.Schema)
	assert.Equal(t, "Survived", cfg.Target)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("TITANIC_DATA_DIR", "/srv/titanic")
	t.Setenv("TITANIC_IMPUTE_MAX_ITER", "3")

	cfg, err := LoadConfig(t.TempDir(), "config.json")
	require.NoError(t, err)
	assert.Equal(t, "/srv/titanic", cfg.DataDir)
	assert.Equal(t, 3, cfg.Impute.MaxIter)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.Schema = append(cfg.Schema, Column{Name: "Deck", Type: TypeCategory})
	cfg.Index = "Ticketless"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Deck")
	assert.Contains(t, err.Error(), "Ticketless")
}

func TestDefaultIsNotShared(t *testing.T) {
	a := Default()
	a.Schema[0].Name = "changed"
	a.Sources["train"] = "other.csv"

	b := Default()
	assert.Equal(t, "PassengerId", b.Schema[0].Name)
	assert.Equal(t, "train.csv", b.Sources["train"])
}

func TestValidateFieldRules(t *testing.T) {
	cfg := Default()
	cfg.Report.Alpha = 1.5
	cfg.Report.Method = "cosine"
	cfg.Impute.NSplits = 1
	cfg.Target = ""

	err := cfg.Validate()
	require.Error(t, err)
	for _, field := range []string{"Report.Alpha", "Report.Method", "Impute.NSplits", "Config.Target"} {
		assert.Contains(t, err.Error(), field)
	}
}
