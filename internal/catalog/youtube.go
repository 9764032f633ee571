// Package catalog looks up YouTube channels through the Data API.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/shinshin4n4n/tube-review-sub001/internal/domain"
	"github.com/shinshin4n4n/tube-review-sub001/pkg/httpclient"
)

const upstream = "youtube"

// Config selects the API key, endpoint and timeout for catalog calls.
type Config struct {
	APIKey   string
	Endpoint string
	Timeout  time.Duration
}

// YouTube resolves channel ids against the YouTube Data API v3.
type YouTube struct {
	svc    *youtube.Service
	logger *slog.Logger
}

// NewYouTube builds a catalog client on top of the shared resilient HTTP
// client (retry and circuit breaker).
func NewYouTube(ctx context.Context, cfg Config, logger *slog.Logger) (*YouTube, error) {
	hcfg := httpclient.DefaultConfig()
	if cfg.Timeout > 0 {
		hcfg.Timeout = cfg.Timeout
	}
	hc := httpclient.New(hcfg, httpclient.DefaultCircuitBreakerConfig(upstream), logger)
	return newYouTube(ctx, hc, cfg, logger)
}

func newYouTube(ctx context.Context, hc *http.Client, cfg Config, logger *slog.Logger) (*YouTube, error) {
	// option.WithHTTPClient disables option.WithAPIKey, so the key rides on
	// the transport instead.
	hc.Transport = &apiKeyTransport{key: cfg.APIKey, base: hc.Transport}

	opts := []option.ClientOption{option.WithHTTPClient(hc)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	svc, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}
	return &YouTube{svc: svc, logger: logger}, nil
}

// Lookup returns the channel's title and thumbnail. A channel the API does
// not know yields a NOT_FOUND error; any other failure is 503.
func (y *YouTube) Lookup(ctx context.Context, channelID string) (*domain.Channel, error) {
	resp, err := y.svc.Channels.List([]string{"snippet"}).
		Id(channelID).
		MaxResults(1).
		Context(ctx).
		Do()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) {
			y.logger.WarnContext(ctx, "youtube channel lookup rejected",
				slog.String("channel_id", channelID),
				slog.Int("status", gerr.Code),
				slog.String("message", gerr.Message),
			)
			return nil, httpclient.MapStatus(upstream, gerr.Code, gerr.Message, "channel", channelID)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, httpclient.MapTransportError(upstream, err)
	}

	for _, item := range resp.Items {
		if item == nil || item.Id != channelID || item.Snippet == nil {
			continue
		}
		ch := &domain.Channel{ID: item.Id, Title: strings.TrimSpace(item.Snippet.Title)}
		if url := thumbnailURL(item.Snippet.Thumbnails); url != "" {
			ch.ThumbnailURL = &url
		}
		return ch, nil
	}
	return nil, domain.ChannelNotFound(channelID)
}

func thumbnailURL(t *youtube.ThumbnailDetails) string {
	if t == nil {
		return ""
	}
	for _, th := range []*youtube.Thumbnail{t.Medium, t.High, t.Default} {
		if th != nil && th.Url != "" {
			return th.Url
		}
	}
	return ""
}

// apiKeyTransport appends the API key query parameter to every request.
type apiKeyTransport struct {
	key  string
	base http.RoundTripper
}

func (t *apiKeyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	if t.key == "" {
		return base.RoundTrip(req)
	}
	req = req.Clone(req.Context())
	q := req.URL.Query()
	q.Set("key", t.key)
	req.URL.RawQuery = q.Encode()
	return base.RoundTrip(req)
}
