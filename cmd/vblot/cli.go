package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/tpncalc/virtualblot/internal/api"
	"github.com/tpncalc/virtualblot/internal/config"
	"github.com/tpncalc/virtualblot/internal/handlers"
	"github.com/tpncalc/virtualblot/internal/parser"
	"github.com/tpncalc/virtualblot/internal/report"
	"github.com/tpncalc/virtualblot/internal/util"
	"github.com/tpncalc/virtualblot/pkg/core"
)

var errUsage = errors.New("invalid usage")

var commonKeys = map[string]string{
	"log-level": "logLevel",
	"logs-dir":  "logsDir",
}

var layoutKeys = map[string]string{
	"offset-top":       "layout.offsetTop",
	"offset-bottom":    "layout.offsetBottom",
	"offset-left":      "layout.offsetLeft",
	"offset-right":     "layout.offsetRight",
	"band-width":       "layout.bandWidth",
	"band-spacing":     "layout.bandSpacing",
	"label-font-size":  "layout.labelFontSize",
	"marker-font-size": "layout.markerFontSize",
}

var storageKeys = map[string]string{
	"storage":          "storage.type",
	"out":              "storage.outputDir",
	"compress-summary": "storage.compressSummary",
}

var serverKeys = map[string]string{
	"addr":             "server.addr",
	"request-timeout":  "server.requestTimeout",
	"max-upload-bytes": "server.maxUploadBytes",
}

func keys(groups ...map[string]string) map[string]string {
	out := make(map[string]string)
	for _, g := range groups {
		maps.Copy(out, g)
	}
	return out
}

func newFlagSet(name string, stderr io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.String("config-dir", ".", "directory containing "+config.FileName)
	fs.String("log-level", "info", "log level: debug, info, warn, error")
	fs.String("logs-dir", "./vblotlogs", "directory for log files")
	return fs
}

func addLayoutFlags(fs *pflag.FlagSet) {
	fs.Int("offset-top", 40, "top margin in px")
	fs.Int("offset-bottom", 40, "bottom margin in px")
	fs.Int("offset-left", 40, "left margin in px")
	fs.Int("offset-right", 40, "right margin in px")
	fs.Int("band-width", 20, "band width in px")
	fs.Int("band-spacing", 10, "space between bands in px")
	fs.Int("label-font-size", 16, "lane label size in pt (0 hides labels)")
	fs.Int("marker-font-size", 16, "molecular weight label size in pt (0 hides labels)")
}

func addStorageFlags(fs *pflag.FlagSet) {
	fs.String("storage", "dir", "bundle storage: dir or zip")
	fs.String("out", "./output", "output directory")
	fs.Bool("compress-summary", false, "gzip the normalization summary")
}

func addRangeFlags(fs *pflag.FlagSet, what string) {
	fs.Float64("range-min", 0, "lowest molecular weight to "+what)
	fs.Float64("range-max", 0, "highest molecular weight to "+what)
}

// rangeFromFlags sets only the sides that were given on the command line.
func rangeFromFlags(fs *pflag.FlagSet) core.MWRange {
	var r core.MWRange
	if fs.Changed("range-min") {
		v, _ := fs.GetFloat64("range-min")
		r.Min = &v
	}
	if fs.Changed("range-max") {
		v, _ := fs.GetFloat64("range-max")
		r.Max = &v
	}
	return r
}

func addNormalizeFlags(fs *pflag.FlagSet) {
	fs.String("totals", "", `1-based indices of the total protein series, e.g. "1-3,5"`)
	fs.String("targets", "", "indices of the target series, paired with --totals in order")
	fs.String("reference", "", "total series every other total is scaled to (default: the first)")
	fs.Bool("positive-region", false, "sum only down to the first negative value")
	fs.Float64("norm-min", 0, "lowest molecular weight to integrate")
	fs.Float64("norm-max", 0, "highest molecular weight to integrate")
}

func normalizeFromFlags(fs *pflag.FlagSet) handlers.NormalizeOptions {
	var opts handlers.NormalizeOptions
	opts.TotalSpec, _ = fs.GetString("totals")
	opts.TargetSpec, _ = fs.GetString("targets")
	opts.Reference, _ = fs.GetString("reference")
	opts.PositiveRegion, _ = fs.GetBool("positive-region")
	if fs.Changed("norm-min") {
		v, _ := fs.GetFloat64("norm-min")
		opts.Range.Min = &v
	}
	if fs.Changed("norm-max") {
		v, _ := fs.GetFloat64("norm-max")
		opts.Range.Max = &v
	}
	return opts
}

// parseArgs parses flags and requires exactly one data file argument.
func parseArgs(fs *pflag.FlagSet, args []string) (string, error) {
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return "", fmt.Errorf("%w: %s needs exactly one data file", errUsage, fs.Name())
	}
	return fs.Arg(0), nil
}

// ingestFile reads a data file through the dispatcher and prints the blank
// cell notice, if any.
func (a *app) ingestFile(ctx context.Context, path string) (*handlers.IngestResponse, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	out, err := a.dispatch(ctx, handlers.CmdIngest, handlers.IngestRequest{FileName: filepath.Base(path), Body: f})
	if err != nil {
		return nil, err
	}
	res := out.(*handlers.IngestResponse)
	if res.Note != "" {
		fmt.Fprintln(a.stderr, res.Note)
	}
	return res, nil
}

func runRender(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("render", stderr)
	addLayoutFlags(fs)
	addStorageFlags(fs)
	addRangeFlags(fs, "draw")
	addNormalizeFlags(fs)
	lanesFlag := fs.String("lanes", "", `lane order with optional labels, e.g. "A=ctrl,B" (default: every series)`)
	limit := fs.Float64("signal-limit", 0, "signal drawn as black (0: the data maximum)")
	markers := fs.String("markers", "", `marker weights, e.g. "230, 116[B-gal], 66"`)
	markerTicks := fs.Bool("marker-ticks", false, "draw a tick at each marker weight")
	markerLabels := fs.Bool("marker-labels", false, "write each marker's label")
	frame := fs.Bool("frame", true, "draw a frame around the bands (--frame=false to omit)")
	labelMode := fs.String("label-mode", "none", "lane labels: none, lane_number, sample_name, user_defined")
	rotate := fs.Bool("rotate-labels", false, "rotate lane labels 90 degrees")
	normalizeFlag := fs.Bool("normalize", false, "draw the normalized table (see --totals)")
	server := fs.String("server", "", "render on a remote vblot server instead of locally")

	dataFile, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	lanes, err := parser.ParseLanes(*lanesFlag)
	if err != nil {
		return fmt.Errorf("--lanes: %w", err)
	}

	a, err := setup(fs, setupOptions{
		flagKeys: keys(commonKeys, layoutKeys, storageKeys),
		storage:  true,
	}, stdout, stderr)
	if err != nil {
		return err
	}
	defer a.close()

	layout := config.GetLayoutDefaults()
	req := handlers.RenderRequest{
		DataFile:     filepath.Base(dataFile),
		Lanes:        lanes,
		Layout:       &layout,
		SignalLimit:  *limit,
		Range:        rangeFromFlags(fs),
		Markers:      *markers,
		MarkerTicks:  *markerTicks,
		MarkerLabels: *markerLabels,
		Frame:        *frame,
		LabelMode:    *labelMode,
		RotateLabels: *rotate,
	}
	if *normalizeFlag {
		opts := normalizeFromFlags(fs)
		req.Normalize = &opts
	}

	ctx := context.Background()
	var bundle *core.Bundle
	if *server != "" {
		bundle, err = a.renderRemote(ctx, *server, dataFile, req)
	} else {
		bundle, err = a.renderLocal(ctx, dataFile, req)
	}
	if err != nil {
		return err
	}

	out, err := a.dispatch(ctx, handlers.CmdStore, bundle)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Saved %s to %s\n", bundle.Stem, out)
	return nil
}

func (a *app) renderLocal(ctx context.Context, dataFile string, req handlers.RenderRequest) (*core.Bundle, error) {
	table, err := a.ingestFile(ctx, dataFile)
	if err != nil {
		return nil, err
	}
	req.Table = table.Table

	out, err := a.dispatch(ctx, handlers.CmdRender, req)
	if err != nil {
		return nil, err
	}
	return out.(*handlers.RenderResponse).Bundle, nil
}

// renderRemote uploads the file to a vblot server and renders there. The
// returned bundle carries the image and log only.
func (a *app) renderRemote(ctx context.Context, serverURL, dataFile string, req handlers.RenderRequest) (*core.Bundle, error) {
	client := api.NewClient(serverURL)
	if err := client.Healthcheck(ctx); err != nil {
		return nil, err
	}
	table, err := client.UploadTable(ctx, dataFile)
	if err != nil {
		return nil, err
	}
	if table.Note != "" {
		fmt.Fprintln(a.stderr, table.Note)
	}
	req.Table = table.Table

	res, err := client.Render(ctx, req)
	if err != nil {
		return nil, err
	}
	a.logger.InfoContext(ctx, "rendered remotely", "server", serverURL, "bytes", len(res.Image))
	return &core.Bundle{
		Stem:      util.SafeStem(req.DataFile),
		CreatedAt: time.Now(),
		Image:     res.Image,
		Log:       res.Log,
	}, nil
}

func runNormalize(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("normalize", stderr)
	addNormalizeFlags(fs)
	output := fs.String("output", "", "file for the normalized table (default: stdout)")
	summary := fs.String("summary", "", "file for the summary table (default: stderr)")

	dataFile, err := parseArgs(fs, args)
	if err != nil {
		return err
	}

	a, err := setup(fs, setupOptions{flagKeys: commonKeys}, stdout, stderr)
	if err != nil {
		return err
	}
	defer a.close()

	ctx := context.Background()
	table, err := a.ingestFile(ctx, dataFile)
	if err != nil {
		return err
	}
	out, err := a.dispatch(ctx, handlers.CmdNormalize, handlers.NormalizeRequest{
		Table:            table.Table,
		NormalizeOptions: normalizeFromFlags(fs),
	})
	if err != nil {
		return err
	}
	res := out.(*handlers.NormalizeResponse)
	for _, w := range res.Warnings {
		fmt.Fprintln(stderr, "Warning:", w)
	}

	if err := writeTo(*output, stdout, func(w io.Writer) error { return report.WriteTable(w, res.Table, ',') }); err != nil {
		return err
	}
	return writeTo(*summary, stderr, func(w io.Writer) error { return report.WriteSummary(w, res.Summary) })
}

func runProfile(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("profile", stderr)
	output := fs.String("output", "", "PNG file to write (default: profile_<stem>.png)")
	title := fs.String("title", "", "chart title (default: the data file name)")
	width := fs.Int("width", 0, "chart width in px (0: 1024)")
	height := fs.Int("height", 0, "chart height in px (0: 400)")

	dataFile, err := parseArgs(fs, args)
	if err != nil {
		return err
	}

	a, err := setup(fs, setupOptions{flagKeys: commonKeys}, stdout, stderr)
	if err != nil {
		return err
	}
	defer a.close()

	ctx := context.Background()
	table, err := a.ingestFile(ctx, dataFile)
	if err != nil {
		return err
	}
	if *title == "" {
		*title = filepath.Base(dataFile)
	}
	out, err := a.dispatch(ctx, handlers.CmdProfile, handlers.ProfileRequest{
		Table:  table.Table,
		Title:  *title,
		Width:  *width,
		Height: *height,
	})
	if err != nil {
		return err
	}

	path := *output
	if path == "" {
		path = fmt.Sprintf("profile_%s.png", util.SafeStem(dataFile))
	}
	if err := os.WriteFile(path, out.([]byte), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Fprintf(stdout, "Saved profile to %s\n", path)
	return nil
}

func runServe(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("serve", stderr)
	addStorageFlags(fs)
	fs.String("addr", ":8050", "listen address")
	fs.Duration("request-timeout", 30*time.Second, "per-request timeout")
	fs.Int64("max-upload-bytes", 32<<20, "largest accepted request body")
	storeBuffer := fs.Int("store-buffer", 64, "queued bundle saves before ?save=true requests are refused")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 0 {
		return fmt.Errorf("%w: serve takes no arguments", errUsage)
	}

	a, err := setup(fs, setupOptions{
		flagKeys:    keys(commonKeys, storageKeys, serverKeys),
		console:     true,
		storage:     true,
		storeBuffer: *storeBuffer,
	}, stdout, stderr)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := api.NewServer(a.svc, a.disp, a.logger, config.GetServerConfig())
	return srv.ListenAndServe(ctx)
}

// writeTo runs write against the named file, or fallback when name is empty.
func writeTo(name string, fallback io.Writer, write func(io.Writer) error) error {
	if name == "" {
		return write(fallback)
	}
	f, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
