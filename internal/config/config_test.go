package config_test

import (
	"testing"

	"github.com/dasimmet/bog/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadValidDocument(t *testing.T) {
	opts, err := config.Load([]byte(`{"import_files": true, "repl": false, "max_import_size": 2048}`))
	require.NoError(t, err)
	assert.True(t, opts.ImportFiles)
	assert.False(t, opts.Repl)
	assert.Equal(t, uint32(2048), opts.MaxImportSize)
}

func TestLoadRejectsUnknownField(t *testing.T) {
	_, err := config.Load([]byte(`{"import_files": true, "yolo": 1}`))
	require.Error(t, err)
}

func TestLoadRejectsNegativeSize(t *testing.T) {
	_, err := config.Load([]byte(`{"max_import_size": -1}`))
	require.Error(t, err)
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	_, err := config.Load([]byte(`{not json`))
	require.Error(t, err)
}

func TestLoadDefaultsZeroValue(t *testing.T) {
	opts, err := config.Load([]byte(`{}`))
	require.NoError(t, err)
	assert.False(t, opts.ImportFiles)
	assert.Equal(t, uint32(0), opts.MaxImportSize)
}
