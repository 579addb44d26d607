package coordinator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/isdmx/vibebox/listing"
	"github.com/isdmx/vibebox/sandbox"
)

// Defaults for requests that leave a value unset
const (
	DefaultTimeoutMs  = 10000
	DefaultContentTTL = 60 * time.Second
	PreviewLineLimit  = 500
)

// ListingStore looks up listings with their file metadata
type ListingStore interface {
	FindListingWithFiles(ctx context.Context, id string) (*listing.Listing, error)
}

// BlobStore reads file contents through a short-lived signed read
type BlobStore interface {
	GetReadableText(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// Executor runs code and reports the result
type Executor interface {
	Execute(ctx context.Context, req sandbox.ExecutionRequest) (sandbox.ExecutionResult, error)
	SupportedLanguages() []string
}

// Service is the boundary contract served by the transport bindings
type Service interface {
	SupportedLanguages() []string
	Preview(ctx context.Context, callerID, listingID string) (SandboxPreview, error)
	CodePreview(ctx context.Context, callerID, listingID, fileID string) (CodePreview, error)
	Execute(ctx context.Context, callerID string, req ExecuteRequest) (sandbox.ExecutionResult, error)
}

var _ Service = (*Coordinator)(nil)

// ExecuteRequest is a listing-scoped execution request.
// An empty FileID selects the main file, or the first file when none is main.
type ExecuteRequest struct {
	ListingID string
	FileID    string
	Input     string
	TimeoutMs int
}

// PreviewFile is the file metadata shown in a preview
type PreviewFile struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Language string `json:"language"`
	IsMain   bool   `json:"isMain"`
}

// SandboxPreview describes whether a listing can be run
type SandboxPreview struct {
	ListingID         string        `json:"listingId"`
	Files             []PreviewFile `json:"files"`
	CanExecute        bool          `json:"canExecute"`
	SupportedLanguage bool          `json:"supportedLanguage"`
}

// CodePreview is a read-only view of a file's first lines
type CodePreview struct {
	Filename string `json:"filename"`
	Language string `json:"language"`
	Content  string `json:"content"`
}

// Coordinator bridges listing requests to the Executor
type Coordinator struct {
	logger     *zap.Logger
	listings   ListingStore
	blobs      BlobStore
	executor   Executor
	contentTTL time.Duration
	timeoutMs  int

	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	tracer         trace.Tracer
	metrics        instruments
}

// Option defines a functional option for Coordinator
type Option func(*Coordinator)

// WithContentTTL sets the validity of signed content reads
func WithContentTTL(ttl time.Duration) Option {
	return func(c *Coordinator) {
		if ttl > 0 {
			c.contentTTL = ttl
		}
	}
}

// WithDefaultTimeout sets the timeout applied when a request gives none
func WithDefaultTimeout(timeout time.Duration) Option {
	return func(c *Coordinator) {
		if ms := int(timeout.Milliseconds()); ms > 0 {
			c.timeoutMs = ms
		}
	}
}

// WithTracerProvider sets the tracer provider; the global one is used otherwise
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Coordinator) {
		c.tracerProvider = tp
	}
}

// WithMeterProvider sets the meter provider; the global one is used otherwise
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *Coordinator) {
		c.meterProvider = mp
	}
}

// New creates a Coordinator
func New(logger *zap.Logger, listings ListingStore, blobs BlobStore, executor Executor, opts ...Option) *Coordinator {
	c := &Coordinator{
		logger:     logger,
		listings:   listings,
		blobs:      blobs,
		executor:   executor,
		contentTTL: DefaultContentTTL,
		timeoutMs:  DefaultTimeoutMs,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.tracerProvider == nil {
		c.tracerProvider = otel.GetTracerProvider()
	}
	if c.meterProvider == nil {
		c.meterProvider = otel.GetMeterProvider()
	}
	c.tracer = c.tracerProvider.Tracer(instrumentationName)
	c.metrics = newInstruments(c.meterProvider.Meter(instrumentationName), logger)
	return c
}

// SupportedLanguages returns the languages the Executor can run
func (c *Coordinator) SupportedLanguages() []string {
	return c.executor.SupportedLanguages()
}

// Execute runs a listing's file. Execution problems of the code itself are
// reported in the result; the error covers lookup, authorization and
// content retrieval failures.
func (c *Coordinator) Execute(ctx context.Context, callerID string, req ExecuteRequest) (result sandbox.ExecutionResult, err error) {
	ctx, span := c.tracer.Start(ctx, "coordinator.execute",
		trace.WithAttributes(
			attribute.String("listing.id", req.ListingID),
			attribute.String("file.id", req.FileID),
		),
	)
	defer func() { endSpan(span, err) }()

	l, err := c.authorizedListing(ctx, callerID, req.ListingID)
	if err != nil {
		return sandbox.ExecutionResult{}, err
	}

	file, ok := resolveFile(l.Files, req.FileID)
	if !ok {
		return sandbox.ExecutionResult{}, notFound("No code file found")
	}
	span.SetAttributes(
		attribute.String("file.id", file.ID),
		attribute.String("file.language", file.Language),
	)

	supported := c.executor.SupportedLanguages()
	if !isSupported(supported, file.Language) {
		c.metrics.record(ctx, file.Language, outcomeUnsupported, nil)
		return sandbox.ExecutionResult{
			Success: false,
			Output:  "",
			Error: fmt.Sprintf("Language '%s' is not supported for execution. Supported: %s",
				file.Language, strings.Join(supported, ", ")),
			ExitCode: sandbox.ExitCodeFailure,
		}, nil
	}

	code, err := c.content(ctx, file)
	if err != nil {
		return sandbox.ExecutionResult{}, err
	}

	timeoutMs := req.TimeoutMs
	if timeoutMs <= 0 {
		timeoutMs = c.timeoutMs
	}

	c.logger.Info("executing listing file",
		zap.String("listing", l.ID),
		zap.String("file", file.ID),
		zap.String("filename", file.Filename),
		zap.String("language", file.Language))

	start := time.Now()
	result, err = c.executor.Execute(ctx, sandbox.ExecutionRequest{
		Code:      code,
		Language:  file.Language,
		Input:     req.Input,
		TimeoutMs: timeoutMs,
	})
	if err != nil {
		return sandbox.ExecutionResult{}, fmt.Errorf("executing %s: %w", file.Filename, err)
	}

	outcome := outcomeFailure
	if result.Success {
		outcome = outcomeSuccess
	}
	c.metrics.record(ctx, file.Language, outcome, &result)
	span.SetAttributes(
		attribute.Bool("execution.success", result.Success),
		attribute.Int("execution.exit_code", result.ExitCode),
	)

	c.logger.Info("listing execution finished",
		zap.String("listing", l.ID),
		zap.String("file", file.ID),
		zap.Bool("success", result.Success),
		zap.Int("exit_code", result.ExitCode),
		zap.Duration("duration", time.Since(start)))

	return result, nil
}

// Preview lists a listing's files without their content
func (c *Coordinator) Preview(ctx context.Context, callerID, listingID string) (_ SandboxPreview, err error) {
	ctx, span := c.tracer.Start(ctx, "coordinator.preview",
		trace.WithAttributes(attribute.String("listing.id", listingID)))
	defer func() { endSpan(span, err) }()

	l, err := c.authorizedListing(ctx, callerID, listingID)
	if err != nil {
		return SandboxPreview{}, err
	}

	supported := c.executor.SupportedLanguages()
	preview := SandboxPreview{
		ListingID:  listingID,
		Files:      make([]PreviewFile, 0, len(l.Files)),
		CanExecute: len(l.Files) > 0,
	}
	for _, f := range l.Files {
		preview.Files = append(preview.Files, PreviewFile{
			ID:       f.ID,
			Filename: f.Filename,
			Language: f.Language,
			IsMain:   f.IsMain,
		})
		if isSupported(supported, f.Language) {
			preview.SupportedLanguage = true
		}
	}
	return preview, nil
}

// CodePreview returns the first PreviewLineLimit lines of a file
func (c *Coordinator) CodePreview(ctx context.Context, callerID, listingID, fileID string) (_ CodePreview, err error) {
	ctx, span := c.tracer.Start(ctx, "coordinator.code_preview",
		trace.WithAttributes(
			attribute.String("listing.id", listingID),
			attribute.String("file.id", fileID),
		),
	)
	defer func() { endSpan(span, err) }()

	l, err := c.authorizedListing(ctx, callerID, listingID)
	if err != nil {
		return CodePreview{}, err
	}

	idx := slices.IndexFunc(l.Files, func(f listing.File) bool { return f.ID == fileID })
	if fileID == "" || idx < 0 {
		return CodePreview{}, notFound("File not found")
	}
	file := l.Files[idx]

	content, err := c.content(ctx, file)
	if err != nil {
		return CodePreview{}, err
	}

	return CodePreview{
		Filename: file.Filename,
		Language: file.Language,
		Content:  firstLines(content, PreviewLineLimit),
	}, nil
}

func (c *Coordinator) authorizedListing(ctx context.Context, callerID, listingID string) (*listing.Listing, error) {
	l, err := c.listings.FindListingWithFiles(ctx, listingID)
	if errors.Is(err, listing.ErrNotFound) || (err == nil && l == nil) {
		return nil, notFound("Listing not found")
	}
	if err != nil {
		return nil, fmt.Errorf("loading listing %s: %w", listingID, err)
	}

	if l.Status != listing.StatusPublished && l.CreatorID != callerID {
		return nil, forbidden("Listing not available for preview")
	}
	return l, nil
}

func (c *Coordinator) content(ctx context.Context, file listing.File) (string, error) {
	ctx, span := c.tracer.Start(ctx, "blob.read",
		trace.WithAttributes(attribute.String("blob.key", file.StorageKey)))
	defer span.End()

	text, err := c.blobs.GetReadableText(ctx, file.StorageKey, c.contentTTL)
	if err != nil {
		span.SetStatus(codes.Error, "failed to read content")
		c.logger.Warn("failed to read file content",
			zap.String("file", file.ID),
			zap.String("key", file.StorageKey),
			zap.Error(err))
		return "", contentUnavailable("Could not read "+file.Filename, err)
	}
	return text, nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// resolveFile picks the explicit file, else the main file, else the first one.
// An explicit id that matches nothing resolves to no file.
func resolveFile(files []listing.File, fileID string) (listing.File, bool) {
	if fileID != "" {
		for _, f := range files {
			if f.ID == fileID {
				return f, true
			}
		}
		return listing.File{}, false
	}
	for _, f := range files {
		if f.IsMain {
			return f, true
		}
	}
	if len(files) > 0 {
		return files[0], true
	}
	return listing.File{}, false
}

func isSupported(supported []string, language string) bool {
	return slices.Contains(supported, strings.ToLower(strings.TrimSpace(language)))
}

func firstLines(content string, n int) string {
	lines := strings.SplitN(content, "\n", n+1)
	if len(lines) <= n {
		return content
	}
	return strings.Join(lines[:n], "\n")
}
