package main

import (
	"bytes"
	"encoding/json"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tpncalc/virtualblot/internal/config"
)

const sampleCSV = "kDa,T1,T2,P1\n100,2,1,3\n50,2,1,5\n"

type workspace struct {
	configDir string
	outDir    string
	logsDir   string
	dataFile  string
}

func newWorkspace(t *testing.T) workspace {
	t.Helper()
	t.Cleanup(viper.Reset)

	root := t.TempDir()
	ws := workspace{
		configDir: root,
		outDir:    filepath.Join(root, "out"),
		logsDir:   filepath.Join(root, "logs"),
		dataFile:  filepath.Join(root, "blot.csv"),
	}

	cfg, err := json.Marshal(map[string]any{
		"logsDir": ws.logsDir,
		"storage": map[string]any{"outputDir": ws.outDir},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(root, config.FileName), cfg, 0644))
	require.NoError(t, os.WriteFile(ws.dataFile, []byte(sampleCSV), 0644))
	return ws
}

func TestRun_Version(t *testing.T) {
	var stdout, stderr bytes.Buffer
	require.NoError(t, run([]string{"version"}, &stdout, &stderr))
	assert.Equal(t, "vblot 0.0.1 (built unknown)\n", stdout.String())
}

func TestRun_Usage(t *testing.T) {
	var stdout, stderr bytes.Buffer

	err := run(nil, &stdout, &stderr)
	assert.ErrorIs(t, err, errUsage)
	assert.Contains(t, stderr.String(), "Usage: vblot")

	err = run([]string{"paint"}, &stdout, &stderr)
	assert.ErrorIs(t, err, errUsage)
}

func TestRun_Help(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run([]string{"render", "--help"}, &stdout, &stderr)
	assert.ErrorIs(t, err, pflag.ErrHelp)
	assert.Contains(t, stderr.String(), "--signal-limit")
}

func TestRender(t *testing.T) {
	ws := newWorkspace(t)
	var stdout, stderr bytes.Buffer

	err := run([]string{
		"render",
		"--config-dir", ws.configDir,
		"--frame",
		"--label-mode", "sample_name",
		"--lanes", "P1=probe,T1",
		ws.dataFile,
	}, &stdout, &stderr)
	require.NoError(t, err, stderr.String())
	assert.Equal(t, "Saved blot to "+ws.outDir+"\n", stdout.String())

	f, err := os.Open(filepath.Join(ws.outDir, "image_blot.png"))
	require.NoError(t, err)
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 150, cfg.Width)
	assert.Equal(t, 82, cfg.Height)

	logText, err := os.ReadFile(filepath.Join(ws.outDir, "log_blot.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(logText), "DataFile: blot.csv\n")
	assert.Contains(t, string(logText), "1\tP1\tprobe\n2\tT1\t\n")

	logs, err := os.ReadDir(ws.logsDir)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestRender_FrameDefault(t *testing.T) {
	tests := []struct {
		name  string
		flags []string
		want  uint8
	}{
		{"framed by default", nil, 0},
		{"frame disabled", []string{"--frame=false"}, 255},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ws := newWorkspace(t)
			var stdout, stderr bytes.Buffer

			args := append([]string{"render", "--config-dir", ws.configDir}, tt.flags...)
			require.NoError(t, run(append(args, ws.dataFile), &stdout, &stderr), stderr.String())

			f, err := os.Open(filepath.Join(ws.outDir, "image_blot.png"))
			require.NoError(t, err)
			defer f.Close()
			img, err := png.Decode(f)
			require.NoError(t, err)

			// Top-left corner of the band field at the default 40px offsets.
			corner := color.GrayModel.Convert(img.At(40, 40)).(color.Gray)
			assert.Equal(t, tt.want, corner.Y)
		})
	}
}

func TestRender_FlagOverridesConfig(t *testing.T) {
	ws := newWorkspace(t)
	var stdout, stderr bytes.Buffer

	err := run([]string{
		"render",
		"--config-dir", ws.configDir,
		"--band-width", "30",
		"--storage", "zip",
		ws.dataFile,
	}, &stdout, &stderr)
	require.NoError(t, err, stderr.String())
	assert.Equal(t, "Saved blot to "+filepath.Join(ws.outDir, "blot.zip")+"\n", stdout.String())
}

func TestRender_Normalized(t *testing.T) {
	ws := newWorkspace(t)
	var stdout, stderr bytes.Buffer

	err := run([]string{
		"render",
		"--config-dir", ws.configDir,
		"--normalize", "--totals", "1-2",
		ws.dataFile,
	}, &stdout, &stderr)
	require.NoError(t, err, stderr.String())

	assert.FileExists(t, filepath.Join(ws.outDir, "normalized_blot.csv"))
	assert.FileExists(t, filepath.Join(ws.outDir, "summary_blot.json"))
}

func TestRender_Errors(t *testing.T) {
	ws := newWorkspace(t)
	var stdout, stderr bytes.Buffer

	err := run([]string{"render", "--config-dir", ws.configDir}, &stdout, &stderr)
	assert.ErrorIs(t, err, errUsage)

	err = run([]string{"render", "--config-dir", ws.configDir, "--lanes", "nope", ws.dataFile}, &stdout, &stderr)
	assert.ErrorContains(t, err, `series "nope" not in table`)

	err = run([]string{"render", "--config-dir", ws.configDir, filepath.Join(ws.configDir, "missing.csv")}, &stdout, &stderr)
	assert.ErrorContains(t, err, "failed to open")
}

func TestNormalize(t *testing.T) {
	ws := newWorkspace(t)
	var stdout, stderr bytes.Buffer
	output := filepath.Join(ws.configDir, "norm.csv")
	summary := filepath.Join(ws.configDir, "summary.tsv")

	err := run([]string{
		"normalize",
		"--config-dir", ws.configDir,
		"--totals", "1-2",
		"--output", output,
		"--summary", summary,
		ws.dataFile,
	}, &stdout, &stderr)
	require.NoError(t, err, stderr.String())

	table, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, "kDa,T1,T2,P1\n100,2,2,3\n50,2,2,5\n", string(table))

	sum, err := os.ReadFile(summary)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(sum)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "T1\t4\t1\tReference", lines[1])
	assert.Equal(t, "T2\t2\t2\t", lines[2])
	assert.Equal(t, "P1\t8\t1\tNot Normalized", lines[3])
}

func TestNormalize_Stdout(t *testing.T) {
	ws := newWorkspace(t)
	var stdout, stderr bytes.Buffer

	err := run([]string{"normalize", "--config-dir", ws.configDir, "--totals", "1,2", "--targets", "2,3", ws.dataFile}, &stdout, &stderr)
	require.NoError(t, err, stderr.String())
	assert.True(t, strings.HasPrefix(stdout.String(), "kDa,T1,T2,P1\n"))
	assert.Contains(t, stderr.String(), "Warning: 2 is selected as both Total and Target series.\n")
	assert.Contains(t, stderr.String(), "Sample Name\tRaw Total Signal\tFactor\tNote\n")
}

func TestProfile(t *testing.T) {
	ws := newWorkspace(t)
	var stdout, stderr bytes.Buffer
	output := filepath.Join(ws.configDir, "profile.png")

	err := run([]string{
		"profile",
		"--config-dir", ws.configDir,
		"--output", output,
		"--width", "300",
		"--height", "200",
		ws.dataFile,
	}, &stdout, &stderr)
	require.NoError(t, err, stderr.String())

	f, err := os.Open(output)
	require.NoError(t, err)
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 300, cfg.Width)
	assert.Equal(t, 200, cfg.Height)
}
