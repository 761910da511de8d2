package notion

import (
	"context"
	"fmt"
	"time"

	"github.com/jomei/notionapi"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/atlas/internal/core/domain"
	"github.com/custodia-labs/atlas/internal/core/ports/driven"
)

const (
	// requestsPerSecond throttles below Notion's average rate limit of
	// three requests per second per integration.
	requestsPerSecond = 2.5

	// pageSize is the children page size per request, the API maximum.
	pageSize = 100

	// maxAttempts bounds retries of a single API call on transient
	// failures.
	maxAttempts = 3

	// retryBackoff is the base delay between retry attempts.
	retryBackoff = 2 * time.Second
)

// Ensure interfaces are implemented.
var (
	_ driven.BlockSource   = (*Source)(nil)
	_ driven.SourceFactory = (*Factory)(nil)
)

// blockAPI is the slice of the Notion client the source uses. Tests
// substitute a fake.
type blockAPI interface {
	GetChildren(ctx context.Context, id notionapi.BlockID, pagination *notionapi.Pagination) (*notionapi.GetChildrenResponse, error)
}

type pageAPI interface {
	Get(ctx context.Context, id notionapi.PageID) (*notionapi.Page, error)
}

// Source fetches block trees from the Notion API. All requests go
// through a shared token-bucket throttle; transient failures are retried
// a bounded number of times.
type Source struct {
	pages   pageAPI
	blocks  blockAPI
	limiter *rate.Limiter
	backoff time.Duration
}

// NewSource creates a block source authenticated with the given
// integration token.
func NewSource(token string) *Source {
	client := notionapi.NewClient(notionapi.Token(token))
	return &Source{
		pages:   client.Page,
		blocks:  client.Block,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		backoff: retryBackoff,
	}
}

// GetRoot resolves a page reference to its URL and title.
func (s *Source) GetRoot(ctx context.Context, referenceID string) (*domain.SourceRoot, error) {
	var page *notionapi.Page
	err := s.do(ctx, func() error {
		var err error
		page, err = s.pages.Get(ctx, notionapi.PageID(referenceID))
		return mapError(err)
	})
	if err != nil {
		return nil, fmt.Errorf("getting page %s: %w", referenceID, err)
	}
	return &domain.SourceRoot{
		URL:   page.URL,
		Title: pageTitle(page),
	}, nil
}

// GetChildren returns the ordered direct children of a block, following
// cursor pagination until exhausted.
func (s *Source) GetChildren(ctx context.Context, blockID string) ([]domain.SourceBlock, error) {
	var out []domain.SourceBlock
	cursor := notionapi.Cursor("")
	for {
		var resp *notionapi.GetChildrenResponse
		err := s.do(ctx, func() error {
			pagination := &notionapi.Pagination{StartCursor: cursor, PageSize: pageSize}
			var err error
			resp, err = s.blocks.GetChildren(ctx, notionapi.BlockID(blockID), pagination)
			return mapError(err)
		})
		if err != nil {
			return nil, fmt.Errorf("getting children of %s: %w", blockID, err)
		}
		for _, block := range resp.Results {
			out = append(out, flattenBlock(block))
		}
		if !resp.HasMore {
			return out, nil
		}
		cursor = notionapi.Cursor(resp.NextCursor)
	}
}

// do runs one API call under the throttle, retrying transient failures.
func (s *Source) do(ctx context.Context, call func() error) error {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if waitErr := s.limiter.Wait(ctx); waitErr != nil {
			return waitErr
		}
		err = call()
		if err == nil || !transient(err) {
			return err
		}
		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.backoff * time.Duration(attempt)):
		}
	}
	return err
}

// flattenBlock converts one API block into the neutral source shape.
func flattenBlock(block notionapi.Block) domain.SourceBlock {
	plain, formatted := blockText(block)
	return domain.SourceBlock{
		ID:            string(block.GetID()),
		Type:          string(block.GetType()),
		HasChildren:   block.GetHasChildren(),
		PlainText:     plain,
		FormattedText: formatted,
	}
}

// pageTitle extracts the title from a page's properties.
func pageTitle(page *notionapi.Page) string {
	for _, prop := range page.Properties {
		title, ok := prop.(*notionapi.TitleProperty)
		if !ok {
			continue
		}
		return plainText(title.Title)
	}
	return ""
}

// Factory creates Notion sources bound to a credential. An empty
// per-request token falls back to the configured default.
type Factory struct {
	defaultToken string
}

// NewFactory creates a source factory with the given default token.
func NewFactory(defaultToken string) *Factory {
	return &Factory{defaultToken: defaultToken}
}

// Create returns a block source for the given token.
func (f *Factory) Create(_ context.Context, token string) (driven.BlockSource, error) {
	if token == "" {
		token = f.defaultToken
	}
	if token == "" {
		return nil, fmt.Errorf("%w: no integration token configured", domain.ErrSourceAuth)
	}
	return NewSource(token), nil
}
