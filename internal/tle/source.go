package tle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/anldrms/satellite-tracker-pro/internal/metrics"
)

// DefaultMaxBodyBytes caps a single group feed. The full active catalog is
// well under 5 MB; anything past 50 MB is not an element-set feed.
const DefaultMaxBodyBytes = 50 << 20

// SourceConfig holds fetch configuration loaded from environment variables.
type SourceConfig struct {
	Timeout      time.Duration // HTTP client timeout (default: 30s)
	MaxBodyBytes int64         // Per-group body cap (default: 50 MiB)
	S3           S3Config      // Used for s3:// endpoints
}

// Source retrieves one group's element sets from its endpoint and parses
// them. Supported endpoints: http(s)://, file:// and s3://bucket/key.
type Source struct {
	httpClient *http.Client
	parser     ElementParser
	config     SourceConfig
	logger     *slog.Logger

	s3Once   sync.Once
	s3Reader *S3Reader
	s3Err    error
}

// NewSource creates a Source that builds models with parser.
func NewSource(parser ElementParser, config SourceConfig, logger *slog.Logger) *Source {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return &Source{
		httpClient: &http.Client{Timeout: config.Timeout},
		parser:     parser,
		config:     config,
		logger:     logger,
	}
}

// Fetch reads and parses one group. It never returns an error directly: a
// failed group yields a Result with no records and Err wrapping ErrFetch, so
// the caller can carry on with the remaining groups.
func (s *Source) Fetch(ctx context.Context, spec GroupSpec) Result {
	ctx, span := otel.Tracer("satview/tle").Start(ctx, "tle.fetch_group")
	defer span.End()
	span.SetAttributes(
		attribute.String("group.name", spec.Name),
		attribute.String("group.endpoint", spec.Endpoint),
		attribute.Int("group.limit", spec.Limit),
	)

	start := time.Now()
	res := Result{Group: spec}

	body, err := s.read(ctx, spec.Endpoint)
	if err == nil {
		res.Records, res.Stats, err = ParseGroup(bytes.NewReader(body), spec, s.parser, s.logger)
	}
	res.Duration = time.Since(start)

	if err != nil {
		res.Records = nil
		res.Err = fmt.Errorf("%w: group %q: %w", ErrFetch, spec.Name, err)
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, "fetch failed")
		metrics.RecordGroupFetch("error", res.Duration)
		s.logger.Error("failed to load group", "group", spec.Name, "endpoint", spec.Endpoint, "error", err)
		return res
	}

	span.SetAttributes(attribute.Int("group.records", len(res.Records)))
	metrics.RecordGroupFetch("ok", res.Duration)
	s.logger.Info("loaded group",
		"group", spec.Name,
		"count", len(res.Records),
		"skipped", res.Stats.Blank+res.Stats.Rejected,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res
}

func (s *Source) read(ctx context.Context, endpoint string) ([]byte, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parsing endpoint: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return s.readHTTP(ctx, endpoint)
	case "file":
		return s.readFile(u)
	case "s3":
		return s.readS3(ctx, u)
	default:
		return nil, fmt.Errorf("unsupported endpoint scheme %q", u.Scheme)
	}
}

func (s *Source) readHTTP(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching element sets: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, endpoint)
	}
	if err := checkContentType(resp.Header.Get("Content-Type")); err != nil {
		return nil, err
	}
	return s.readBody(resp.Body)
}

func (s *Source) readFile(u *url.URL) ([]byte, error) {
	path := u.Path
	if path == "" {
		path = u.Opaque
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening element file: %w", err)
	}
	defer f.Close()
	return s.readBody(f)
}

func (s *Source) readS3(ctx context.Context, u *url.URL) ([]byte, error) {
	s.s3Once.Do(func() {
		s.s3Reader, s.s3Err = NewS3Reader(ctx, s.config.S3)
	})
	if s.s3Err != nil {
		return nil, fmt.Errorf("creating s3 client: %w", s.s3Err)
	}

	body, contentType, err := s.s3Reader.Get(ctx, u.Host, strings.TrimPrefix(u.Path, "/"))
	if err != nil {
		return nil, err
	}
	defer body.Close()

	if err := checkContentType(contentType); err != nil {
		return nil, err
	}
	return s.readBody(body)
}

// readBody reads at most MaxBodyBytes and requires valid UTF-8.
func (s *Source) readBody(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, s.config.MaxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if int64(len(body)) > s.config.MaxBodyBytes {
		return nil, fmt.Errorf("response exceeds %d byte limit", s.config.MaxBodyBytes)
	}
	if !utf8.Valid(body) {
		return nil, errors.New("response is not UTF-8 text")
	}
	return body, nil
}

// checkContentType accepts text/*, application/octet-stream and an absent
// header; anything else (JSON error envelopes, images) is a failed group.
func checkContentType(v string) error {
	if v == "" {
		return nil
	}
	mediaType, _, err := mime.ParseMediaType(v)
	if err != nil {
		return fmt.Errorf("invalid content type %q: %w", v, err)
	}
	if strings.HasPrefix(mediaType, "text/") || mediaType == "application/octet-stream" {
		return nil
	}
	return fmt.Errorf("non-text content type %q", mediaType)
}
