package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/eyes"
	"github.com/vango-dev/eyes/internal/config"
	"github.com/vango-dev/eyes/internal/errors"
)

// run executes the root command with a quiet config and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cfg := config.New()
	cfg.Log.Level = "error"
	cfgPath := filepath.Join(t.TempDir(), config.ConfigFileName)
	require.NoError(t, cfg.SaveTo(cfgPath))

	var out, errOut bytes.Buffer
	cmd := newRootCmd(&rootOptions{})
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestGolden(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"delta_shuffle", []string{"delta", "testdata/scenarios/shuffle.yaml"}},
		{"delta_shuffle_json", []string{"delta", "--json", "testdata/scenarios/shuffle.yaml"}},
		{"delta_prices", []string{"delta", "testdata/scenarios/prices.yaml"}},
		{"delta_noop", []string{"delta", "testdata/scenarios/noop.yaml"}},
		{"version_short", []string{"version", "--short"}},
		{"errors_list", []string{"errors"}},
		{"errors_e006", []string{"errors", "E006"}},
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, tt.args...)
			require.NoError(t, err)
			g.Assert(t, tt.name, []byte(out))
		})
	}
}

func TestDeltaRejectsBadScenarios(t *testing.T) {
	tests := []struct {
		name string
		file string
	}{
		{"seq and record", "testdata/scenarios/mixed.yaml"},
		{"op not allowed on a record", "testdata/scenarios/badop.yaml"},
		{"missing file", "testdata/scenarios/absent.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, "delta", tt.file)
			var e *errors.Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, errors.CodeScenarioInvalid, e.Code)
		})
	}
}

func TestDeltaNeedsOneArgument(t *testing.T) {
	_, err := run(t, "delta")
	assert.Error(t, err)
}

func TestConfigNotFound(t *testing.T) {
	cmd := newRootCmd(&rootOptions{})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "nope.json"), "delta", "testdata/scenarios/shuffle.yaml"})
	err := cmd.Execute()
	var e *errors.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errors.CodeConfigNotFound, e.Code)
}

func TestVersionLong(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Version:    "+version)
	assert.Contains(t, out, "OS/Arch:")
}

func TestBenchIncrementalReadsAreSmall(t *testing.T) {
	logger := config.New().Log.Logger(&bytes.Buffer{})

	for _, r := range []benchResult{
		arrayBench(2000, 10, 7, logger),
		lookupBench(2000, 10, 7, logger),
	} {
		t.Run(r.Kind, func(t *testing.T) {
			assert.True(t, r.Consistent)
			assert.Positive(t, r.Initial)
			assert.Less(t, r.Ratio(), 0.1)
		})
	}
}

func TestBenchCommand(t *testing.T) {
	out, err := run(t, "bench", "--size", "500", "--ops", "5", "--seed", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "array")
	assert.Contains(t, out, "lookup")
	assert.Contains(t, out, "incremental")
}

func TestDemoTotalTracksCart(t *testing.T) {
	rt := eyes.New(eyes.WithLogger(config.New().Log.Logger(&bytes.Buffer{})))
	defer rt.Close()
	d := newDemo(rt)

	for i := 0; i < 50; i++ {
		d.step()
		want := 0
		for _, v := range d.cart.Raw().(map[string]any) {
			want += v.(int)
		}
		require.Equal(t, want, d.total, "step %d", i)
		require.LessOrEqual(t, len(*d.recent.Raw().(*[]any)), 5)
	}
	assert.Equal(t, 3, rt.Graph().Alive())
}

func TestErrorsUnknownCode(t *testing.T) {
	_, err := run(t, "errors", "E999")
	var e *errors.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errors.CodeUsage, e.Code)
}

func TestErrorFormats(t *testing.T) {
	t.Cleanup(errors.EnableColors)

	tests := []struct {
		name string
		args []string
		want []string
		not  []string
	}{
		{
			name: "json",
			args: []string{"--error-format", "json", "delta", "testdata/scenarios/mixed.yaml"},
			want: []string{`"code":"E120"`, `"category":"cli"`},
		},
		{
			name: "compact",
			args: []string{"--error-format", "compact", "--bogus"},
			want: []string{"E121: Invalid command usage (", "bogus"},
		},
		{
			name: "text without color",
			args: []string{"--no-color", "delta", "testdata/scenarios/badop.yaml"},
			want: []string{"ERROR E120: Invalid scenario file"},
			not:  []string{"\033["},
		},
		{
			name: "unknown format",
			args: []string{"--error-format", "yaml", "version"},
			want: []string{"E121", "unknown error format"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out, errOut bytes.Buffer
			code := execute(tt.args, &out, &errOut)
			assert.Equal(t, 1, code)
			for _, w := range tt.want {
				assert.Contains(t, errOut.String(), w)
			}
			for _, n := range tt.not {
				assert.NotContains(t, errOut.String(), n)
			}
		})
	}
}

func TestExecuteSuccess(t *testing.T) {
	var out, errOut bytes.Buffer
	assert.Equal(t, 0, execute([]string{"version", "--short"}, &out, &errOut))
	assert.Equal(t, version+"\n", out.String())
	assert.Empty(t, errOut.String())
}
