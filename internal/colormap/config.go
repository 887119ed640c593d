package colormap

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"

	colorful "github.com/lucasb-eyer/go-colorful"
	"gopkg.in/yaml.v3"

	"github.com/erinpentecost/cmapsync/internal/logger"
)

// fileConfig is the YAML layout of a colormap collection:
//
//	colormaps:
//	  - name: gray
//	    colors: ["#000000", "#ffffff"]
//	  - name: heat
//	    blend: lab
//	    stops:
//	      - {pos: 0, color: "#000000"}
//	      - {pos: 0.7, color: "#ff0000"}
//	      - {pos: 1, color: "#ffff00"}
//	  - name: terrain
//	    ramp: ramps/terrain.bmp
type fileConfig struct {
	Colormaps []tableConfig `yaml:"colormaps"`
}

type tableConfig struct {
	Name   string       `yaml:"name"`
	Blend  string       `yaml:"blend"`
	Colors []string     `yaml:"colors"`
	Stops  []stopConfig `yaml:"stops"`
	Ramp   string       `yaml:"ramp"`
}

type stopConfig struct {
	Pos   float64 `yaml:"pos"`
	Color string  `yaml:"color"`
}

// LoadFile reads a YAML collection. Ramp paths are resolved relative to the
// file's directory.
func LoadFile(path string) (*Collection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open colormap config %q: %w", path, err)
	}
	defer f.Close()
	coll, err := LoadYAML(f, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("load colormap config %q: %w", path, err)
	}
	return coll, nil
}

// LoadYAML decodes a collection from r. baseDir anchors relative ramp paths.
func LoadYAML(r io.Reader, baseDir string) (*Collection, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var cfg fileConfig
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}

	tables := make([]*Table, 0, len(cfg.Colormaps))
	for i, tc := range cfg.Colormaps {
		t, err := tc.build(baseDir)
		if err != nil {
			return nil, fmt.Errorf("colormap %d (%q): %w", i, tc.Name, err)
		}
		if !t.IsSequential() {
			logger.Logger().Debug("colormap lightness is not monotonic", "name", t.Name())
		}
		tables = append(tables, t)
	}
	return NewCollection(tables...), nil
}

func (tc tableConfig) build(baseDir string) (*Table, error) {
	blend, err := ParseBlend(tc.Blend)
	if err != nil {
		return nil, err
	}

	sources := 0
	for _, set := range []bool{len(tc.Colors) > 0, len(tc.Stops) > 0, len(tc.Ramp) > 0} {
		if set {
			sources++
		}
	}
	if sources != 1 {
		return nil, errors.New("exactly one of colors, stops or ramp must be set")
	}

	switch {
	case len(tc.Ramp) > 0:
		path := tc.Ramp
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		return LoadRamp(tc.Name, path, blend)
	case len(tc.Colors) > 0:
		colors := make([]color.RGBA, len(tc.Colors))
		for i, hex := range tc.Colors {
			if colors[i], err = parseHex(hex); err != nil {
				return nil, err
			}
		}
		return EvenTable(tc.Name, colors, blend)
	default:
		stops := make([]Stop, len(tc.Stops))
		for i, sc := range tc.Stops {
			c, err := parseHex(sc.Color)
			if err != nil {
				return nil, err
			}
			stops[i] = Stop{Pos: sc.Pos, Color: c}
		}
		return NewTable(tc.Name, stops, blend)
	}
}

func parseHex(s string) (color.RGBA, error) {
	c, err := colorful.Hex(s)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("parse color %q: %w", s, err)
	}
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 0xFF}, nil
}
