package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/tpncalc/virtualblot/internal/blot"
	"github.com/tpncalc/virtualblot/internal/ingest"
	"github.com/tpncalc/virtualblot/internal/logging"
	"github.com/tpncalc/virtualblot/internal/normalize"
	"github.com/tpncalc/virtualblot/internal/parser"
	"github.com/tpncalc/virtualblot/internal/profile"
	"github.com/tpncalc/virtualblot/internal/report"
	"github.com/tpncalc/virtualblot/internal/storage"
	"github.com/tpncalc/virtualblot/internal/storage/archive"
	"github.com/tpncalc/virtualblot/internal/util"
	"github.com/tpncalc/virtualblot/pkg/core"
)

// ErrNoBackend is returned by Store when no storage backend is configured.
var ErrNoBackend = errors.New("no storage backend configured")

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	LogManager *logging.SlogManager
	// Defaults is the layout used when a request carries none, and the
	// baseline the render log compares settings against.
	Defaults        core.Layout
	CompressSummary bool
	// Now is the clock stamped into logs and bundles. Nil means time.Now.
	Now func() time.Time
}

// Service chains ingestion, normalization and rendering for the CLI and the
// HTTP API. It holds no per-request state.
type Service struct {
	deps    Dependencies
	backend storage.Backend
}

// NewService creates a new handler service
func NewService(deps Dependencies) *Service {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Service{deps: deps}
}

// SetBackend sets the storage backend used by Store.
func (s *Service) SetBackend(b storage.Backend) {
	s.backend = b
}

// Defaults returns the default layout.
func (s *Service) Defaults() core.Layout {
	return s.deps.Defaults
}

func (s *Service) logger() *slog.Logger {
	if s.deps.LogManager == nil {
		return slog.Default()
	}
	return s.deps.LogManager.Logger()
}

// IngestRequest is an uploaded data file.
type IngestRequest struct {
	FileName string
	Body     io.Reader
}

// IngestResponse is the parsed table and any blank-cell notice.
type IngestResponse struct {
	DataFile    string           `json:"dataFile"`
	Table       core.SignalTable `json:"table"`
	BlankSeries []string         `json:"blankSeries,omitempty"`
	Note        string           `json:"note,omitempty"`
}

// Ingest parses an uploaded file.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (*IngestResponse, error) {
	res, err := ingest.Read(req.FileName, req.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", req.FileName, err)
	}
	out := &IngestResponse{
		DataFile:    req.FileName,
		Table:       res.Table,
		BlankSeries: res.BlankSeries,
		Note:        res.BlankNote(),
	}
	s.logger().InfoContext(ctx, "table ingested",
		"file", req.FileName,
		"rows", len(res.Table.Rows),
		"series", len(res.Table.Series))
	if out.Note != "" {
		s.logger().WarnContext(ctx, out.Note, "file", req.FileName)
	}
	return out, nil
}

// NormalizeOptions select the totals, their targets and the reference.
// Relationships may be given directly or derived from 1-based index
// specifiers; when both are present the specifiers are applied on top.
type NormalizeOptions struct {
	Relationships []core.Relationship `json:"relationships,omitempty"`
	TotalSpec     string              `json:"totalSpec,omitempty"`
	TargetSpec    string              `json:"targetSpec,omitempty"`
	// Reference defaults to the first Total series.
	Reference      string       `json:"reference,omitempty"`
	PositiveRegion bool         `json:"positiveRegion,omitempty"`
	Range          core.MWRange `json:"range"`
}

// NormalizeRequest is a table plus the normalization options for it.
type NormalizeRequest struct {
	Table core.SignalTable `json:"table"`
	NormalizeOptions
}

// NormalizeResponse is the scaled table and its explanation.
type NormalizeResponse struct {
	Table         core.SignalTable     `json:"table"`
	Summary       []core.SummaryRecord `json:"summary"`
	Relationships []core.Relationship  `json:"relationships"`
	Reference     string               `json:"reference"`
	Warnings      []string             `json:"warnings,omitempty"`
}

// Normalize resolves the relationships and runs the normalization engine.
func (s *Service) Normalize(ctx context.Context, req NormalizeRequest) (*NormalizeResponse, error) {
	rels := req.Relationships
	if len(rels) == 0 {
		rels = normalize.DefaultRelationships(req.Table)
	}

	var warnings []string
	if req.TotalSpec != "" {
		var err error
		rels, warnings, err = normalize.AssignBySpecifier(rels, req.TotalSpec, req.TargetSpec)
		if err != nil {
			return nil, err
		}
	}

	reference := req.Reference
	if reference == "" {
		totals := normalize.TotalSeries(rels)
		if len(totals) == 0 {
			return nil, fmt.Errorf("no Total series selected: %w", core.ErrReference)
		}
		reference = totals[0]
	}

	mode := normalize.Full
	if req.PositiveRegion {
		mode = normalize.PositiveRegion
	}

	res, err := normalize.Run(normalize.Request{
		Table:         req.Table,
		Relationships: rels,
		Reference:     reference,
		Mode:          mode,
		Range:         req.Range,
	})
	if err != nil {
		return nil, err
	}

	for _, w := range warnings {
		s.logger().WarnContext(ctx, w)
	}
	s.logger().InfoContext(ctx, "table normalized",
		"reference", reference,
		"mode", mode.String(),
		"rows", len(res.Table.Rows))

	return &NormalizeResponse{
		Table:         res.Table,
		Summary:       res.Summary,
		Relationships: rels,
		Reference:     reference,
		Warnings:      warnings,
	}, nil
}

// RenderRequest is one band image request.
type RenderRequest struct {
	DataFile string           `json:"dataFile"`
	Table    core.SignalTable `json:"table"`
	// Lanes defaults to every series in table order.
	Lanes  []core.Lane  `json:"lanes,omitempty"`
	Layout *core.Layout `json:"layout,omitempty"`
	// SignalLimit is the signal drawn as black. Zero picks the data maximum.
	SignalLimit float64      `json:"signalLimit,omitempty"`
	Range       core.MWRange `json:"range"`
	// Markers uses the marker grammar, e.g. "230, 116[B-gal]".
	Markers      string `json:"markers,omitempty"`
	MarkerTicks  bool   `json:"markerTicks,omitempty"`
	MarkerLabels bool   `json:"markerLabels,omitempty"`
	Frame        bool   `json:"frame,omitempty"`
	LabelMode    string `json:"labelMode,omitempty"`
	RotateLabels bool   `json:"rotateLabels,omitempty"`
	// Normalize, when set, draws the normalized table instead of Table.
	Normalize *NormalizeOptions `json:"normalize,omitempty"`
}

// RenderResponse is the image, its log and the bundle to download or store.
type RenderResponse struct {
	Image   []byte               `json:"image"`
	Log     string               `json:"log"`
	Width   int                  `json:"width"`
	Height  int                  `json:"height"`
	Ceiling float64              `json:"ceiling"`
	Summary []core.SummaryRecord `json:"summary,omitempty"`
	Bundle  *core.Bundle         `json:"-"`
}

// Render draws the band image for req and builds its log.
func (s *Service) Render(ctx context.Context, req RenderRequest) (*RenderResponse, error) {
	table := req.Table
	var norm *NormalizeResponse
	if req.Normalize != nil {
		var err error
		norm, err = s.Normalize(ctx, NormalizeRequest{Table: req.Table, NormalizeOptions: *req.Normalize})
		if err != nil {
			return nil, err
		}
		table = norm.Table
	}

	lanes := req.Lanes
	if len(lanes) == 0 {
		lanes = make([]core.Lane, len(table.Series))
		for i, name := range table.Series {
			lanes[i] = core.Lane{Series: name}
		}
	}

	layout := s.deps.Defaults
	if req.Layout != nil {
		layout = *req.Layout
	}

	mode := blot.LabelNone
	if req.LabelMode != "" {
		var err error
		if mode, err = blot.ParseLabelMode(req.LabelMode); err != nil {
			return nil, err
		}
	}

	var markers []core.Marker
	if req.MarkerTicks || req.MarkerLabels {
		var err error
		if markers, err = parser.ParseLabeledNumbers(req.Markers); err != nil {
			return nil, fmt.Errorf("molecular weights are invalid: %w", err)
		}
	}

	var ceiling *float64
	if req.SignalLimit != 0 {
		v := req.SignalLimit
		ceiling = &v
	}

	r, err := blot.New(table, lanes, layout)
	if err != nil {
		return nil, err
	}
	res, err := r.Render(blot.Options{
		Ceiling:      ceiling,
		Range:        req.Range,
		Markers:      markers,
		Frame:        req.Frame,
		LabelMode:    mode,
		RotateLabels: req.RotateLabels,
		MarkerTicks:  req.MarkerTicks,
		MarkerLabels: req.MarkerLabels,
	})
	if err != nil {
		return nil, err
	}
	png, err := blot.EncodePNG(res.Image)
	if err != nil {
		return nil, err
	}

	now := s.deps.Now()
	logText := report.RenderLog{
		Time:        now,
		DataFile:    req.DataFile,
		Normalized:  norm != nil,
		Lanes:       lanes,
		SignalLimit: ceiling,
		Range:       req.Range,
		Layout:      layout,
		Defaults:    s.deps.Defaults,
	}.String()

	bundle := &core.Bundle{
		Stem:      util.SafeStem(req.DataFile),
		CreatedAt: now,
		Image:     png,
		Log:       logText,
	}
	out := &RenderResponse{
		Image:   png,
		Log:     logText,
		Width:   res.Geometry.Width,
		Height:  res.Geometry.Height,
		Ceiling: res.Ceiling,
		Bundle:  bundle,
	}
	if norm != nil {
		bundle.Normalized = &norm.Table
		bundle.Summary = norm.Summary
		out.Summary = norm.Summary
	}

	s.logger().InfoContext(ctx, "render finished",
		"file", req.DataFile,
		"lanes", len(lanes),
		"rows", len(res.Weights),
		"ceiling", res.Ceiling,
		"bytes", len(png))
	return out, nil
}

// ProfileRequest asks for the line chart of every series of a table.
type ProfileRequest struct {
	Table  core.SignalTable `json:"table"`
	Title  string           `json:"title,omitempty"`
	Width  int              `json:"width,omitempty"`
	Height int              `json:"height,omitempty"`
}

// Profile renders the profile chart as PNG.
func (s *Service) Profile(ctx context.Context, req ProfileRequest) ([]byte, error) {
	png, err := profile.RenderPNG(req.Table, profile.Options{Title: req.Title, Width: req.Width, Height: req.Height})
	if err != nil {
		return nil, err
	}
	s.logger().DebugContext(ctx, "profile rendered", "series", len(req.Table.Series), "bytes", len(png))
	return png, nil
}

// Store saves a bundle with the configured backend and returns where it went.
func (s *Service) Store(ctx context.Context, b *core.Bundle) (string, error) {
	if s.backend == nil {
		return "", ErrNoBackend
	}
	path, err := s.backend.Save(b)
	if err != nil {
		return "", fmt.Errorf("failed to store %s: %w", b.Stem, err)
	}
	s.logger().InfoContext(ctx, "bundle stored", "stem", b.Stem, "path", path)
	return path, nil
}

// Archive returns the bundle as an in-memory zip for download.
func (s *Service) Archive(b *core.Bundle) ([]byte, error) {
	return archive.Build(b, s.deps.CompressSummary)
}
