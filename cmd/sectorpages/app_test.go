package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingrea/sectorpages/internal/config"
	"github.com/kingrea/sectorpages/internal/pipeline"
	"github.com/kingrea/sectorpages/internal/taxonomy"
)

func resetFlags(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		projectDir, hostFlag, userFlag, portFlag, verbose = "", "", "", 0, false
		levelFlag, syncJSON, maxParallel, showProgress = "", false, 0, false
		overwriteInit, logLines = false, 40
	})
}

func TestInitWritesProjectFiles(t *testing.T) {
	resetFlags(t)
	dir := t.TempDir()
	projectDir = dir

	var out bytes.Buffer
	initCmd.SetOut(&out)
	require.NoError(t, runInit(initCmd, nil))

	assert.FileExists(t, filepath.Join(dir, config.ProjectDirName, "config.yaml"))
	assert.FileExists(t, filepath.Join(dir, config.ProjectDirName, "services.yaml"))
	defs, err := filepath.Glob(filepath.Join(dir, config.ProjectDirName, "pages", "*.yaml"))
	require.NoError(t, err)
	assert.NotEmpty(t, defs)
	assert.Contains(t, out.String(), "project ready")
}

func TestRunOptionsMergesFlags(t *testing.T) {
	resetFlags(t)
	t.Setenv(config.EnvHost, "")
	dir := t.TempDir()
	projectDir = dir
	hostFlag = "example.org"
	levelFlag = "L2,L3"
	maxParallel = 4
	syncJSON = true

	a, err := newApp(rootCmd)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, "example.org", a.cfg.Project.Remote.Host)
	assert.Equal(t, "https://example.org", a.cfg.SiteURL())

	opts, err := a.runOptions()
	require.NoError(t, err)
	assert.Equal(t, []taxonomy.Level{taxonomy.L2, taxonomy.L3}, opts.Levels)
	assert.Equal(t, 4, opts.MaxParallel)
	assert.Equal(t, pipeline.ModeSyncOnly, opts.Mode)
	assert.Equal(t, "industries", opts.ParentSlug)
}

func TestNewAppRejectsBadPort(t *testing.T) {
	resetFlags(t)
	projectDir = t.TempDir()
	portFlag = 70000

	_, err := newApp(rootCmd)
	require.Error(t, err)
}

func TestLogWithEmptyJournal(t *testing.T) {
	resetFlags(t)
	dir := t.TempDir()
	projectDir = dir
	require.NoError(t, os.MkdirAll(filepath.Join(dir, config.ProjectDirName, "logs"), 0o755))

	var out bytes.Buffer
	logCmd.SetOut(&out)
	require.NoError(t, runLog(logCmd, nil))
	assert.Contains(t, out.String(), "journal is empty")
}

func TestExpertNamesCollectsAttributes(t *testing.T) {
	entities := []taxonomy.Entity{
		{Attributes: taxonomy.NewAttributeSet("Ada Lovelace", "Alan Turing")},
		{Attributes: taxonomy.NewAttributeSet("Grace Hopper")},
	}
	assert.ElementsMatch(t, []string{"Ada Lovelace", "Alan Turing", "Grace Hopper"}, expertNames(entities))
}

func TestStatusReportsSnapshots(t *testing.T) {
	resetFlags(t)
	dir := t.TempDir()
	projectDir = dir
	csv := "sector,level,subsector,category,url,experts\n" +
		"Fintech,L1,,,https://example.org/industries/fintech/,\n" +
		"Fintech,L2,BFSI,,https://example.org/industries/bfsi/,\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sector-pages.csv"), []byte(csv), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sector-data", "Fintech"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sector-data", "Fintech", "elementor_data.json"), []byte(`[{"id":"a"}]`), 0o644))

	var out bytes.Buffer
	statusCmd.SetOut(&out)
	require.NoError(t, runStatus(statusCmd, nil))
	assert.Contains(t, out.String(), "L1:Fintech")
	assert.Contains(t, out.String(), "1 ready, 1 missing, 0 invalid")
}
