// Package ingest turns a shared URL into a stored asset.
package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stashlink/backend/internal/enrichment"
	"github.com/stashlink/backend/internal/events"
	"github.com/stashlink/backend/internal/logging"
	"github.com/stashlink/backend/internal/metadata"
	"github.com/stashlink/backend/internal/models"
)

// UntitledLink is the title of a link whose URL has no host.
const UntitledLink = "Untitled Link"

// ErrInvalidURL is returned for input without a scheme and host.
var ErrInvalidURL = errors.New("invalid url")

// Share is what the user handed to the share sheet.
type Share struct {
	URL   string `json:"url"`
	Image []byte `json:"image,omitempty"`
}

type ImageStore interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
}

type Enricher interface {
	Enrich(ctx context.Context, title, rawURL string) enrichment.Result
}

type Store interface {
	Create(ctx context.Context, asset models.SavedAsset) error
}

type Publisher interface {
	Publish(ctx context.Context, action string, asset models.SavedAsset) error
}

// Pipeline runs every ingestion step for one share. Only the final write can fail it.
type Pipeline struct {
	fetcher   metadata.Fetcher
	images    ImageStore
	enricher  Enricher
	store     Store
	publisher Publisher
	logger    *slog.Logger

	now   func() time.Time
	newID func() string
	pick  func(n int) int
}

func NewPipeline(fetcher metadata.Fetcher, images ImageStore, enricher Enricher, store Store, publisher Publisher, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Pipeline{
		fetcher:   fetcher,
		images:    images,
		enricher:  enricher,
		store:     store,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
		pick:      rand.IntN,
	}
}

func (p *Pipeline) Ingest(ctx context.Context, share Share) (models.SavedAsset, error) {
	target, err := parseURL(share.URL)
	if err != nil {
		return models.SavedAsset{}, err
	}
	rawURL := target.String()
	host := strings.ToLower(target.Hostname())

	ctx, span := logging.StartSpan(logging.EnsureLogger(ctx, p.logger), "ingest.share")
	logger := span.Logger().With("url", rawURL)

	meta := metadata.Extract(p.fetchMarkup(ctx, logger, rawURL), fallbackTitle(host))

	// An attached image replaces the page cover even when it cannot be stored.
	imageRef := meta.ImageURL
	if len(share.Image) > 0 {
		imageRef = p.saveImage(ctx, logger, share.Image)
	}

	result := p.enricher.Enrich(ctx, meta.Title, rawURL)

	asset := models.SavedAsset{
		ID:               p.newID(),
		URL:              rawURL,
		Title:            meta.Title,
		ImageRef:         imageRef,
		SourceApp:        SourceApp(host),
		CreatedAt:        p.now().UTC(),
		Summary:          result.Summary,
		Tags:             result.Tags,
		CoverEmoji:       coverEmojis[p.pick(len(coverEmojis))],
		CoverColor:       coverColors[p.pick(len(coverColors))],
		EnrichmentSource: string(result.Source),
	}
	if imageRef != "" {
		asset.Snapshot.Status = models.SnapshotSucceeded
	}

	if err := p.store.Create(ctx, asset); err != nil {
		span.End("error", err.Error())
		return models.SavedAsset{}, fmt.Errorf("store asset: %w", err)
	}

	if err := p.publisher.Publish(ctx, events.ActionCreated, asset); err != nil {
		logger.Warn("publish asset event", "asset_id", asset.ID, "error", err)
	}

	span.End("asset_id", asset.ID, "source_app", asset.SourceApp, "enrichment", asset.EnrichmentSource)
	return asset, nil
}

func (p *Pipeline) saveImage(ctx context.Context, logger *slog.Logger, image []byte) string {
	if p.images == nil {
		return ""
	}
	ref, err := p.images.Save(ctx, p.newID()+".jpg", bytes.NewReader(image))
	if err != nil {
		logger.Warn("store shared image", "error", err)
		return ""
	}
	return ref
}

func (p *Pipeline) fetchMarkup(ctx context.Context, logger *slog.Logger, rawURL string) string {
	if p.fetcher == nil {
		return ""
	}
	page, err := p.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		logger.Debug("fetch markup", "error", err)
		return ""
	}
	return page.Body
}

func parseURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q needs a scheme and host", ErrInvalidURL, raw)
	}
	return u, nil
}

func fallbackTitle(host string) string {
	if host == "" {
		return UntitledLink
	}
	return host
}
