package sourcemap

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/ottr/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/ottr/internal/logging"
)

// ErrNoSourceMap is returned when a bundle's source map cannot be located,
// loaded or parsed.
var ErrNoSourceMap = errors.New("no source map")

// sourceMappingURL matches both comment styles; the bundle's last match wins.
var sourceMappingURL = regexp.MustCompile(
	`(?:/\*(?:\s*\r?\n(?://)?)?[#@] sourceMappingURL=([^\s'"]*)\s*\*/|//[#@] sourceMappingURL=([^\s'"]*))`,
)

// ResolverConfig configures source-map resolution.
type ResolverConfig struct {
	// Fetch enables loading http(s) source maps from the origin that served
	// the bundle. Inline data: maps and file:// maps are always resolved.
	Fetch     bool
	Timeout   time.Duration
	Retries   int
	UserAgent string
}

// DefaultResolverConfig returns a configuration that only resolves inline
// and on-disk maps.
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		Fetch:     false,
		Timeout:   10 * time.Second,
		Retries:   2,
		UserAgent: "ottr-coverage/1.0",
	}
}

// Resolver locates and parses the source map referenced by a bundle.
type Resolver struct {
	cfg      ResolverConfig
	client   *resty.Client
	breakers *resilience.Group
	logger   *logging.Logger
}

// NewResolver creates a resolver. Remote fetches share one HTTP client and use
// a circuit breaker per host.
func NewResolver(cfg ResolverConfig, logger *logging.Logger) *Resolver {
	logger = logging.OrNop(logger).Named("sourcemap")

	retryClient := retryablehttp.NewClient()
	retryClient.Logger = nil

	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(250*time.Millisecond).
		SetRetryMaxWaitTime(2*time.Second).
		SetHeader("Accept", "application/json").
		SetTransport(retryClient.HTTPClient.Transport)
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}

	breakers := resilience.NewGroup(resilience.Settings{
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(host string, from, to resilience.State) {
			logger.Info("source map fetch breaker changed state",
				zap.String("host", host),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		},
	})

	return &Resolver{cfg: cfg, client: client, breakers: breakers, logger: logger}
}

// Resolve finds the sourceMappingURL comment in text, loads the map it points
// to (relative references resolve against bundleURL) and decodes it. Every
// failure wraps ErrNoSourceMap.
func (r *Resolver) Resolve(ctx context.Context, text, bundleURL string) (*Payload, error) {
	ref := FindSourceMappingURL(text)
	if ref == "" {
		return nil, fmt.Errorf("%w: %s has no sourceMappingURL comment", ErrNoSourceMap, bundleURL)
	}

	mapURL, data, err := r.load(ctx, ref, bundleURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoSourceMap, err)
	}

	payload, err := Decode(mapURL, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoSourceMap, err)
	}
	r.logger.Debug("resolved source map",
		zap.String("bundle", bundleURL),
		zap.Int("sources", len(payload.Sources())),
		zap.Int("mappings", len(payload.Mappings())),
	)
	return payload, nil
}

func (r *Resolver) load(ctx context.Context, ref, bundleURL string) (string, []byte, error) {
	if strings.HasPrefix(ref, "data:") {
		data, err := DecodeDataURL(ref)
		return bundleURL, data, err
	}

	target, err := url.Parse(ref)
	if err != nil {
		return "", nil, fmt.Errorf("parse sourceMappingURL %q: %w", ref, err)
	}
	if base, err := url.Parse(bundleURL); err == nil {
		target = base.ResolveReference(target)
	}

	switch target.Scheme {
	case "file":
		data, err := os.ReadFile(target.Path)
		if err != nil {
			return "", nil, fmt.Errorf("read %s: %w", target.Path, err)
		}
		return target.String(), data, nil
	case "http", "https":
		if !r.cfg.Fetch {
			return "", nil, fmt.Errorf("fetching %s is disabled", target)
		}
		data, err := r.fetch(ctx, target)
		return target.String(), data, err
	default:
		return "", nil, fmt.Errorf("unsupported source map location %q", target)
	}
}

func (r *Resolver) fetch(ctx context.Context, target *url.URL) ([]byte, error) {
	return resilience.Do(r.breakers.Get(target.Host), func() ([]byte, error) {
		resp, err := r.client.R().SetContext(ctx).Get(target.String())
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", target, err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("fetch %s: %s", target, resp.Status())
		}
		return resp.Body(), nil
	})
}

// FindSourceMappingURL returns the reference of the last sourceMappingURL
// comment in text, or "".
func FindSourceMappingURL(text string) string {
	matches := sourceMappingURL.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return ""
	}
	last := matches[len(matches)-1]
	if last[1] != "" {
		return last[1]
	}
	return last[2]
}

// DecodeDataURL returns the payload of a data: URL. Both base64 and
// percent-encoded payloads are accepted; the media type is not checked.
func DecodeDataURL(ref string) ([]byte, error) {
	rest, ok := strings.CutPrefix(ref, "data:")
	if !ok {
		return nil, fmt.Errorf("not a data URL")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, fmt.Errorf("data URL has no payload")
	}

	isBase64 := false
	for _, param := range strings.Split(meta, ";")[1:] {
		if strings.EqualFold(param, "base64") {
			isBase64 = true
		}
	}
	if !isBase64 {
		decoded, err := url.PathUnescape(payload)
		if err != nil {
			return nil, fmt.Errorf("decode data URL: %w", err)
		}
		return []byte(decoded), nil
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
	}
	if err != nil {
		return nil, fmt.Errorf("decode data URL: %w", err)
	}
	return data, nil
}
