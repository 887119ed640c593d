package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"go.coder.com/cli"
	"golang.org/x/term"

	"github.com/erinpentecost/cmapsync/internal/dds"
	"github.com/erinpentecost/cmapsync/internal/engine/native"
	"github.com/erinpentecost/cmapsync/internal/render"
)

// readNumbers parses whitespace separated floats.
func readNumbers(r io.Reader) ([]float64, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	sc.Split(bufio.ScanWords)
	out := []float64{}
	for sc.Scan() {
		v, err := strconv.ParseFloat(sc.Text(), 64)
		if err != nil {
			return nil, fmt.Errorf("value %d: %w", len(out), err)
		}
		out = append(out, v)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read numbers: %w", err)
	}
	return out, nil
}

func openInput(args []string) (io.ReadCloser, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(args[0])
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", args[0], err)
	}
	return f, nil
}

// normalizeInput runs the shared part of normalize and render.
func normalizeInput(ctx context.Context, e *env, sel *selectionFlags, in io.Reader) (string, []float64, error) {
	if err := e.applySelection(sel); err != nil {
		return "", nil, err
	}
	name, isLog, err := e.current()
	if err != nil {
		return "", nil, err
	}
	buf, err := readNumbers(in)
	if err != nil {
		return "", nil, err
	}
	out, err := e.ctrl.Normalize(ctx, name, buf, isLog)
	if err != nil {
		return "", nil, err
	}
	return name, out, nil
}

type listCmd struct {
	g globalFlags
}

func (c *listCmd) Spec() cli.CommandSpec {
	return cli.CommandSpec{
		Name: "list",
		Desc: "List the loaded colormaps.",
	}
}

func (c *listCmd) RegisterFlags(fl *pflag.FlagSet) {
	c.g.register(fl)
}

func (c *listCmd) Run(fl *pflag.FlagSet) {
	if err := c.run(os.Stdout); err != nil {
		fail(err)
	}
}

func (c *listCmd) run(w io.Writer) error {
	coll, err := loadCollection(c.g.config)
	if err != nil {
		return err
	}
	for _, name := range coll.Names() {
		t, _ := coll.Lookup(name)
		kind := "diverging"
		if t.IsSequential() {
			kind = "sequential"
		}
		fmt.Fprintf(w, "%-16s %3d stops  %-3s  %s\n", name, len(t.Stops()), t.Blend(), kind)
	}
	if dups := coll.Duplicates(); len(dups) > 0 {
		fmt.Fprintf(w, "duplicate names: %s\n", strings.Join(dups, ", "))
	}
	return nil
}

type normalizeCmd struct {
	g   globalFlags
	sel selectionFlags
}

func (c *normalizeCmd) Spec() cli.CommandSpec {
	return cli.CommandSpec{
		Name:  "normalize",
		Usage: "[flags] [file|-]",
		Desc:  "Print the colormap index of every number read from file or stdin.",
	}
}

func (c *normalizeCmd) RegisterFlags(fl *pflag.FlagSet) {
	c.g.register(fl)
	c.sel.register(fl)
}

func (c *normalizeCmd) Run(fl *pflag.FlagSet) {
	in, err := openInput(fl.Args())
	if err != nil {
		fail(err)
	}
	defer in.Close()
	if err := c.run(context.Background(), in, os.Stdout); err != nil {
		fail(err)
	}
}

func (c *normalizeCmd) run(ctx context.Context, in io.Reader, w io.Writer) (err error) {
	e, err := openEnv(ctx, &c.g)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, e.close())
	}()

	_, out, err := normalizeInput(ctx, e, &c.sel, in)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	for _, v := range out {
		bw.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

type renderCmd struct {
	g     globalFlags
	sel   selectionFlags
	out   string
	width int
	scale int
	codec string
}

func (c *renderCmd) Spec() cli.CommandSpec {
	return cli.CommandSpec{
		Name:  "render",
		Usage: "[flags] [file|-]",
		Desc:  "Normalize numbers and write them as a colored image (.png or .dds).",
	}
}

func (c *renderCmd) RegisterFlags(fl *pflag.FlagSet) {
	c.g.register(fl)
	c.sel.register(fl)
	fl.StringVarP(&c.out, "out", "o", "out.png", "output image, format taken from the extension")
	fl.IntVar(&c.width, "width", 256, "values per image row")
	fl.IntVar(&c.scale, "scale", 1, "pixel magnification")
	fl.StringVar(&c.codec, "codec", dds.Lossless.String(), "dds codec: lossless or dxt1")
}

func (c *renderCmd) Run(fl *pflag.FlagSet) {
	in, err := openInput(fl.Args())
	if err != nil {
		fail(err)
	}
	defer in.Close()
	if err := c.run(context.Background(), in); err != nil {
		fail(err)
	}
}

func (c *renderCmd) run(ctx context.Context, in io.Reader) (err error) {
	codec, err := dds.ParseCodec(c.codec)
	if err != nil {
		return err
	}
	if c.scale < 1 {
		return fmt.Errorf("invalid scale %d", c.scale)
	}
	e, err := openEnv(ctx, &c.g)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, e.close())
	}()

	name, indices, err := normalizeInput(ctx, e, &c.sel, in)
	if err != nil {
		return err
	}
	table, _ := e.coll.Lookup(name)
	img, err := render.Colorize(indices, table.Sample(native.LUTSize), c.width)
	if err != nil {
		return err
	}
	if c.scale > 1 {
		img = render.Resize(img, img.Rect.Dx()*c.scale, img.Rect.Dy()*c.scale)
	}

	if err := writeImage(c.out, img, codec); err != nil {
		return err
	}
	fmt.Printf("Wrote %dx%d %q with colormap %q.\n", img.Rect.Dx(), img.Rect.Dy(), c.out, name)
	return nil
}

// writeImage encodes img into path by its extension. A failed write leaves
// no file behind.
func writeImage(path string, img image.Image, codec dds.Codec) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %q: %w", path, err)
	}
	defer func() {
		err = errors.Join(err, f.Close())
		if err != nil {
			os.Remove(path)
		}
	}()
	format := strings.TrimPrefix(filepath.Ext(path), ".")
	if err := render.Encode(f, img, format, codec); err != nil {
		return fmt.Errorf("encode %q: %w", path, err)
	}
	return nil
}

type colorbarCmd struct {
	g   globalFlags
	sel selectionFlags
}

func (c *colorbarCmd) Spec() cli.CommandSpec {
	return cli.CommandSpec{
		Name: "colorbar",
		Desc: "Print the selected colormap as a terminal colorbar.",
	}
}

func (c *colorbarCmd) RegisterFlags(fl *pflag.FlagSet) {
	c.g.register(fl)
	c.sel.register(fl)
}

func (c *colorbarCmd) Run(fl *pflag.FlagSet) {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		fail(errors.New("stdout is not a terminal"))
	}
	width, _, err := term.GetSize(fd)
	if err != nil {
		width = 80
	}
	if err := c.run(context.Background(), os.Stdout, width); err != nil {
		fail(err)
	}
}

func (c *colorbarCmd) run(ctx context.Context, w io.Writer, width int) (err error) {
	e, err := openEnv(ctx, &c.g)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, e.close())
	}()
	if err := e.applySelection(&c.sel); err != nil {
		return err
	}
	name, isLog, err := e.current()
	if err != nil {
		return err
	}
	table, ok := e.coll.Lookup(name)
	if !ok {
		return fmt.Errorf("colormap %q is not loaded", name)
	}
	scale := "linear"
	if isLog {
		scale = "log"
	}
	fmt.Fprintf(w, "%s (%s)\n", name, scale)
	return render.Colorbar(w, table.Sample(native.LUTSize), width)
}
