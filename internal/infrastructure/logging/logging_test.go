package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "defaults", cfg: Config{}},
		{name: "json debug", cfg: Config{Level: "debug", Format: "json"}},
		{name: "upper case level", cfg: Config{Level: "WARN"}},
		{name: "bad level", cfg: Config{Level: "loud"}, wantErr: true},
		{name: "bad format", cfg: Config{Format: "xml"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, logger)
		})
	}
}

func TestNew_WritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trustbim.log")
	logger, err := New(Config{Level: "info", Format: "json", OutputPath: path})
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("batch validated", zap.Int("entities", 3))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `"msg":"batch validated"`)
	assert.Contains(t, out, `"entities":3`)
	assert.False(t, strings.Contains(out, "hidden"))
}

func TestMust_FallsBackToNop(t *testing.T) {
	assert.NotNil(t, Must(Config{Format: "xml"}))
}
