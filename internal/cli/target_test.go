package cli

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/rgpipe/internal/logging"
	"github.com/vvka-141/rgpipe/pkg/rgpipe"
)

func newTargetCmd(f *targetFlags) *cobra.Command {
	cmd := &cobra.Command{Use: "target"}
	cmd.Flags().String("config", "", "")
	addTargetFlags(cmd, f)
	return cmd
}

func TestResolveSettings_Defaults(t *testing.T) {
	isolate(t)
	var f targetFlags
	cmd := newTargetCmd(&f)

	s, err := resolveSettings(cmd, &f, logging.NewNullLogger())
	require.NoError(t, err)
	assert.Equal(t, rgpipe.VariantGrouped, s.Variant)
	assert.Equal(t, rgpipe.DefaultTimeout, s.Timeout)
	assert.Contains(t, s.Describe, "schema alice_retinal")
	assert.Contains(t, s.Describe, "localhost")
	assert.NotNil(t, s.Open)
}

func TestResolveSettings_ConfigFile(t *testing.T) {
	dir := isolate(t)
	writeFile(t, dir, "rgpipe.yaml", `connection:
  host: labdb
  username: bob
variant: flat
timeout: 90s
`)
	var f targetFlags
	cmd := newTargetCmd(&f)

	s, err := resolveSettings(cmd, &f, logging.NewNullLogger())
	require.NoError(t, err)
	assert.Equal(t, rgpipe.VariantFlat, s.Variant)
	assert.Equal(t, 90*time.Second, s.Timeout)
	assert.Contains(t, s.Describe, "labdb")
	assert.Contains(t, s.Describe, "schema bob_retinal")
}

func TestResolveSettings_FlagsOverrideConfig(t *testing.T) {
	dir := isolate(t)
	writeFile(t, dir, "rgpipe.yaml", "variant: flat\ntimeout: 90s\nschema: from_file\n")
	var f targetFlags
	cmd := newTargetCmd(&f)
	require.NoError(t, cmd.Flags().Set("variant", "grouped"))
	require.NoError(t, cmd.Flags().Set("timeout", "2m"))
	require.NoError(t, cmd.Flags().Set("schema", "from_flag"))

	s, err := resolveSettings(cmd, &f, logging.NewNullLogger())
	require.NoError(t, err)
	assert.Equal(t, rgpipe.VariantGrouped, s.Variant)
	assert.Equal(t, 2*time.Minute, s.Timeout)
	assert.Contains(t, s.Describe, "schema from_flag")
}

func TestResolveSettings_SQLiteFromConfig(t *testing.T) {
	dir := isolate(t)
	writeFile(t, dir, "rgpipe.yaml", "sqlite: ./retinal.db\n")
	var f targetFlags
	cmd := newTargetCmd(&f)

	s, err := resolveSettings(cmd, &f, logging.NewNullLogger())
	require.NoError(t, err)
	assert.Equal(t, "sqlite ./retinal.db", s.Describe)
}

func TestResolveSettings_Errors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, cmd *cobra.Command, dir string)
	}{
		{
			name: "unknown variant",
			setup: func(t *testing.T, cmd *cobra.Command, dir string) {
				require.NoError(t, cmd.Flags().Set("variant", "tree"))
			},
		},
		{
			name: "sqlite with connection",
			setup: func(t *testing.T, cmd *cobra.Command, dir string) {
				require.NoError(t, cmd.Flags().Set("sqlite", "x.db"))
				require.NoError(t, cmd.Flags().Set("connection", "postgresql://localhost/lab"))
			},
		},
		{
			name: "connection with host",
			setup: func(t *testing.T, cmd *cobra.Command, dir string) {
				require.NoError(t, cmd.Flags().Set("host", "labdb"))
				require.NoError(t, cmd.Flags().Set("connection", "postgresql://localhost/lab"))
			},
		},
		{
			name: "invalid yaml",
			setup: func(t *testing.T, cmd *cobra.Command, dir string) {
				writeFile(t, dir, "rgpipe.yaml", "connection: [unclosed")
			},
		},
		{
			name: "invalid timeout in config",
			setup: func(t *testing.T, cmd *cobra.Command, dir string) {
				writeFile(t, dir, "rgpipe.yaml", "timeout: soon\n")
			},
		},
		{
			name: "unknown auth method",
			setup: func(t *testing.T, cmd *cobra.Command, dir string) {
				require.NoError(t, cmd.Flags().Set("auth-method", "kerberos"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := isolate(t)
			var f targetFlags
			cmd := newTargetCmd(&f)
			tt.setup(t, cmd, dir)

			_, err := resolveSettings(cmd, &f, logging.NewNullLogger())
			require.Error(t, err)
			assert.Equal(t, rgpipe.ExitConfigError, rgpipe.ExitCodeForError(err), "got %v", err)
		})
	}
}

func TestLoadProjectConfig_ExplicitMissing(t *testing.T) {
	isolate(t)

	cfg, err := loadProjectConfig("")
	require.NoError(t, err)
	assert.Nil(t, cfg)

	_, err = loadProjectConfig("elsewhere.yaml")
	assert.Error(t, err)
}

func TestCommandContext_Timeout(t *testing.T) {
	ctx, cancel := commandContext(time.Minute, "load")
	defer cancel()

	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)
	assert.NoError(t, ctx.Err())
}

func TestCommandContext_ZeroTimeoutIsUnbounded(t *testing.T) {
	ctx, cancel := commandContext(0, "load")

	_, ok := ctx.Deadline()
	assert.False(t, ok)
	assert.NoError(t, ctx.Err())

	cancel()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestResolveSettings_ZeroTimeoutFlag(t *testing.T) {
	isolate(t)
	var f targetFlags
	cmd := newTargetCmd(&f)
	require.NoError(t, cmd.Flags().Set("timeout", "0"))

	s, err := resolveSettings(cmd, &f, logging.NewNullLogger())
	require.NoError(t, err)
	assert.Zero(t, s.Timeout)

	cfg := rgpipe.LoadConfig{ManifestPath: "m.json", Variant: s.Variant, Timeout: s.Timeout}
	assert.NoError(t, cfg.Validate())
}
