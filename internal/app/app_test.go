package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theduckverse/refundhunter-backend/internal/common"
)

func testConfig() *common.Config {
	cfg := common.LoadConfig()
	cfg.Database.DSN = ""
	cfg.Database.InMemory = true
	cfg.Audit.UseClassifier = false
	cfg.Audit.RulesFile = ""
	cfg.Cache.RedisURL = ""
	return cfg
}

func TestBuild_InMemoryStore(t *testing.T) {
	ctx := context.Background()
	a, err := Build(ctx, testConfig(), Options{Persist: true, MaxRows: 400}, nil)
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.Runs)
	assert.Equal(t, 400, a.Auditor.Policy().MaxRows)
	require.NoError(t, a.HealthCheck(ctx))

	rep, err := a.Auditor.AuditText(ctx, "inline", "sku,quantity,reason\nA,-2,lost\n")
	require.NoError(t, err)
	runs, err := a.Runs.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, rep.RunID, runs[0].ID)

	b, err := a.Exporter.RunXLSX(ctx, rep.RunID)
	require.NoError(t, err)
	assert.NotEmpty(t, b)
}

func TestBuild_RulesFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(p, []byte("version: custom-1\nkeywords: [shrinkage]\n"), 0o600))

	cfg := testConfig()
	cfg.Audit.RulesFile = p
	a, err := Build(context.Background(), cfg, Options{}, nil)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, "custom-1", a.Rules.Version)
	assert.Nil(t, a.Runs)
	assert.NoError(t, a.HealthCheck(context.Background()))
}

func TestBuild_Rejects(t *testing.T) {
	cfg := testConfig()
	cfg.Audit.UseClassifier = true
	cfg.LLM.APIKey = ""
	_, err := Build(context.Background(), cfg, Options{}, nil)
	require.ErrorIs(t, err, common.ErrInvalidInput)

	cfg = testConfig()
	cfg.Audit.RulesFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = Build(context.Background(), cfg, Options{}, nil)
	require.Error(t, err)

	cfg = testConfig()
	cfg.Audit.UnitValue = "zero"
	_, err = Build(context.Background(), cfg, Options{}, nil)
	require.ErrorIs(t, err, common.ErrInvalidInput)
}
