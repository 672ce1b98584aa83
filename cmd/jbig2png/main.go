package main

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	jbig2 "github.com/jdeng/jbig2go/pkg/jbig2"
)

type options struct {
	output      string
	globals     string
	embedded    bool
	page        int
	all         bool
	scale       float64
	filter      string
	region      string
	info        bool
	verbose     bool
	concurrency int
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var o options
	cmd := &cobra.Command{
		Use:          "jbig2png [flags] input.jb2",
		Short:        "Convert JBIG2 pages to PNG",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), o, args[0])
		},
	}
	addFlags(cmd.Flags(), &o)
	return cmd
}

func addFlags(fs *pflag.FlagSet, o *options) {
	fs.StringVarP(&o.output, "output", "o", "", "output PNG file (defaults to the input name with .png)")
	fs.StringVarP(&o.globals, "globals", "g", "", "JBIG2 globals stream extracted from a PDF")
	fs.BoolVar(&o.embedded, "embedded", false, "input is an embedded stream without file header")
	fs.IntVarP(&o.page, "page", "p", 1, "page number to convert")
	fs.BoolVar(&o.all, "all", false, "convert every page, numbering the output files")
	fs.Float64Var(&o.scale, "scale", 1, "scale factor applied to the rendered page")
	fs.StringVar(&o.filter, "filter", "gaussian", "resampling filter: gaussian, box, bilinear, catmullrom, mitchell, lanczos, bessel")
	fs.StringVar(&o.region, "region", "", "render only x,y,w,h of the page")
	fs.BoolVar(&o.info, "info", false, "list the segments instead of converting")
	fs.BoolVarP(&o.verbose, "verbose", "v", false, "log decoding details")
	fs.IntVar(&o.concurrency, "concurrency", 4, "pages decoded in parallel with --all")
}

func run(ctx context.Context, o options, input string) error {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	data, err := os.ReadFile(input)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	var globals []byte
	if o.globals != "" {
		if globals, err = os.ReadFile(o.globals); err != nil {
			return fmt.Errorf("read globals: %w", err)
		}
	}

	dec, err := jbig2.New(jbig2.Options{
		GlobalData:  globals,
		SrcData:     data,
		Embedded:    o.embedded,
		Logger:      logger,
		Concurrency: o.concurrency,
	})
	if err != nil {
		return err
	}
	if o.info {
		printSegments(dec)
		return nil
	}

	param, err := readParam(o)
	if err != nil {
		return err
	}
	filter, err := jbig2.ParseFilter(o.filter)
	if err != nil {
		return err
	}
	r := renderer{param: param, scale: o.scale, filter: filter, logger: logger}

	output := o.output
	if output == "" {
		output = strings.TrimSuffix(input, filepath.Ext(input)) + ".png"
	}

	if !o.all {
		img, err := dec.Page(o.page)
		if err != nil {
			return err
		}
		return r.writePNG(output, img)
	}

	images, err := dec.DecodeAll(ctx)
	if err != nil {
		return err
	}
	base := strings.TrimSuffix(output, filepath.Ext(output))
	for i, n := range dec.PageNumbers() {
		name := fmt.Sprintf("%s-%d.png", base, n)
		if err := r.writePNG(name, images[i]); err != nil {
			return err
		}
	}
	return nil
}

// readParam turns the scale and region flags into raster parameters.
func readParam(o options) (jbig2.ReadParam, error) {
	var p jbig2.ReadParam
	if o.scale <= 0 {
		return p, fmt.Errorf("invalid scale %v", o.scale)
	}
	if o.region != "" {
		parts := strings.Split(o.region, ",")
		if len(parts) != 4 {
			return p, fmt.Errorf("region %q: want x,y,w,h", o.region)
		}
		var v [4]int
		for i, s := range parts {
			n, err := strconv.Atoi(strings.TrimSpace(s))
			if err != nil {
				return p, fmt.Errorf("region %q: %w", o.region, err)
			}
			v[i] = n
		}
		p.SourceRegion = image.Rect(v[0], v[1], v[0]+v[2], v[1]+v[3])
	}
	return p, nil
}

type renderer struct {
	param  jbig2.ReadParam
	scale  float64
	filter jbig2.Filter
	logger *slog.Logger
}

func (r renderer) writePNG(name string, img *jbig2.Image) error {
	p := r.param
	if r.scale != 1 {
		p.RenderSize = image.Pt(int(math.Round(float64(img.Width())*r.scale)), int(math.Round(float64(img.Height())*r.scale)))
	}
	out := img.Raster(p, r.filter)

	file, err := os.Create(name)
	if err != nil {
		return err
	}
	if err := encodePNG(file, out); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	r.logger.Info("page written", "file", name, "width", out.Bounds().Dx(), "height", out.Bounds().Dy())
	fmt.Printf("%s: %dx%d\n", name, out.Bounds().Dx(), out.Bounds().Dy())
	return nil
}

// encodePNG writes img to w and closes it. A failed close is reported
// unless encoding already failed.
func encodePNG(w io.WriteCloser, img image.Image) (err error) {
	defer func() {
		if cerr := w.Close(); err == nil {
			err = cerr
		}
	}()
	return png.Encode(w, img)
}

func printSegments(dec *jbig2.Decoder) {
	fmt.Printf("%s stream, %d page(s)\n", dec.Organisation(), dec.NumPages())
	for _, seg := range dec.Segments() {
		fmt.Printf("  segment %d: %s (type %d), page %d, %d bytes, result %s, refers to %v\n",
			seg.Number(), seg.TypeName(), seg.Type(), seg.PageAssociation(),
			seg.DataLength(), seg.ResultType(), seg.Referred())
	}
}
