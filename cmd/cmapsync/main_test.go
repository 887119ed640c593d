package main

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/erinpentecost/cmapsync/internal/dds"
	"github.com/erinpentecost/cmapsync/internal/engine"
	"github.com/erinpentecost/cmapsync/internal/registry"
	"github.com/erinpentecost/cmapsync/internal/store"
)

// parse registers cmd's flags on a fresh set and parses args.
func parse(t *testing.T, cmd interface{ RegisterFlags(*pflag.FlagSet) }, args ...string) {
	t.Helper()
	fl := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cmd.RegisterFlags(fl)
	require.NoError(t, fl.Parse(args))
}

func TestReadNumbers(t *testing.T) {
	got, err := readNumbers(strings.NewReader("0 0.5\n1e0\t-2\n"))
	require.NoError(t, err)
	require.Equal(t, []float64{0, 0.5, 1, -2}, got)

	_, err = readNumbers(strings.NewReader("1 two"))
	require.ErrorContains(t, err, "value 1")
}

func TestParsePolicy(t *testing.T) {
	p, err := parsePolicy("last-write-wins")
	require.NoError(t, err)
	require.Equal(t, registry.LastWriteWins, p)
	_, err = parsePolicy("overwrite")
	require.Error(t, err)
}

func TestNormalizePersistsSelection(t *testing.T) {
	state := filepath.Join(t.TempDir(), "state.bin")

	first := &normalizeCmd{}
	parse(t, first, "--state", state, "--cmap", "gray")
	var out bytes.Buffer
	require.NoError(t, first.run(context.Background(), strings.NewReader("0 0.5 1"), &out))
	require.Equal(t, "0\n127.5\n255\n", out.String())

	values, err := store.LoadSnapshot(state)
	require.NoError(t, err)
	require.Equal(t, "gray", values["name"])
	require.Equal(t, false, values["is_log"])

	second := &normalizeCmd{}
	parse(t, second, "--state", state, "--log", "--engine", "js")
	out.Reset()
	require.NoError(t, second.run(context.Background(), strings.NewReader("1 10 100"), &out))
	require.Equal(t, "0\n127.5\n255\n", out.String())

	values, err = store.LoadSnapshot(state)
	require.NoError(t, err)
	require.Equal(t, true, values["is_log"])
}

func TestNormalizeUnknownColormap(t *testing.T) {
	cmd := &normalizeCmd{}
	parse(t, cmd, "--cmap", "jet")
	err := cmd.run(context.Background(), strings.NewReader("1 2"), &bytes.Buffer{})
	require.ErrorIs(t, err, engine.ErrUnknownColormap)
}

func TestDuplicatePolicyFlag(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "maps.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte(`colormaps:
  - name: ramp
    colors: ["#000000", "#ffffff"]
  - name: ramp
    colors: ["#ffffff", "#000000"]
`), 0666))

	rejecting := &normalizeCmd{}
	parse(t, rejecting, "--config", cfg)
	err := rejecting.run(context.Background(), strings.NewReader("1 2"), &bytes.Buffer{})
	require.ErrorIs(t, err, engine.ErrDuplicateColormapName)

	lenient := &normalizeCmd{}
	parse(t, lenient, "--config", cfg, "--duplicates", "last-write-wins")
	var out bytes.Buffer
	require.NoError(t, lenient.run(context.Background(), strings.NewReader("1 2"), &out))
	require.Equal(t, "0\n255\n", out.String())
}

func TestRender(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.png")
	cmd := &renderCmd{}
	parse(t, cmd, "--cmap", "viridis", "--out", path, "--width", "2", "--scale", "3")
	require.NoError(t, cmd.run(context.Background(), strings.NewReader("0 1 2 3")))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	require.Equal(t, 6, img.Bounds().Dx())
	require.Equal(t, 6, img.Bounds().Dy())
}

func TestRenderFailureLeavesNoFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.gif")
	cmd := &renderCmd{}
	parse(t, cmd, "--out", path)
	require.ErrorContains(t, cmd.run(context.Background(), strings.NewReader("0 1 2 3")), "unsupported image format")
	_, err := os.Stat(path)
	require.ErrorIs(t, err, os.ErrNotExist)

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	path = filepath.Join(t.TempDir(), "out.dds")
	require.NoError(t, writeImage(path, img, dds.Lossless))
	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestRenderRejectsBadFlags(t *testing.T) {
	cmd := &renderCmd{}
	parse(t, cmd, "--codec", "bc7")
	require.Error(t, cmd.run(context.Background(), strings.NewReader("1")))

	cmd = &renderCmd{}
	parse(t, cmd, "--scale", "0")
	require.Error(t, cmd.run(context.Background(), strings.NewReader("1")))
}

func TestList(t *testing.T) {
	cmd := &listCmd{}
	parse(t, cmd)
	var out bytes.Buffer
	require.NoError(t, cmd.run(&out))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 5)
	require.True(t, strings.HasPrefix(lines[0], "gray"))
	require.Contains(t, lines[0], "sequential")
}

func TestColorbar(t *testing.T) {
	cmd := &colorbarCmd{}
	parse(t, cmd, "--cmap", "magma", "--log")
	var out bytes.Buffer
	require.NoError(t, cmd.run(context.Background(), &out, 10))
	require.True(t, strings.HasPrefix(out.String(), "magma (log)\n"))
	require.Equal(t, 10, strings.Count(out.String(), "\x1b[48;2;"))
}

func TestUnknownEngine(t *testing.T) {
	cmd := &normalizeCmd{}
	parse(t, cmd, "--engine", "wasm")
	require.ErrorContains(t, cmd.run(context.Background(), strings.NewReader("1"), &bytes.Buffer{}), "unknown engine")
}
