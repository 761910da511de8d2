package notion

import (
	"context"
	"testing"
	"time"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/atlas/internal/core/domain"
)

type fakePageAPI struct {
	page *notionapi.Page
	err  error
}

func (f *fakePageAPI) Get(_ context.Context, _ notionapi.PageID) (*notionapi.Page, error) {
	return f.page, f.err
}

// fakeBlockAPI serves paginated children pages and records the cursors
// it was asked for.
type fakeBlockAPI struct {
	pages   []*notionapi.GetChildrenResponse
	cursors []notionapi.Cursor
	err     error
	calls   int
}

func (f *fakeBlockAPI) GetChildren(_ context.Context, _ notionapi.BlockID, pagination *notionapi.Pagination) (*notionapi.GetChildrenResponse, error) {
	f.cursors = append(f.cursors, pagination.StartCursor)
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	page := f.pages[0]
	f.pages = f.pages[1:]
	return page, nil
}

func testSource(pages pageAPI, blocks blockAPI) *Source {
	return &Source{
		pages:   pages,
		blocks:  blocks,
		limiter: rate.NewLimiter(rate.Inf, 1),
		backoff: time.Millisecond,
	}
}

func paragraph(id, text string) notionapi.Block {
	return &notionapi.ParagraphBlock{
		BasicBlock: notionapi.BasicBlock{ID: notionapi.BlockID(id), Type: notionapi.BlockTypeParagraph},
		Paragraph: notionapi.Paragraph{
			RichText: []notionapi.RichText{{PlainText: text}},
		},
	}
}

func TestSource_GetRoot(t *testing.T) {
	pages := &fakePageAPI{
		page: &notionapi.Page{
			URL: "https://notion.so/page-1",
			Properties: notionapi.Properties{
				"title": &notionapi.TitleProperty{
					Title: []notionapi.RichText{{PlainText: "My "}, {PlainText: "Page"}},
				},
			},
		},
	}
	source := testSource(pages, &fakeBlockAPI{})

	root, err := source.GetRoot(context.Background(), "page-1")

	require.NoError(t, err)
	assert.Equal(t, "https://notion.so/page-1", root.URL)
	assert.Equal(t, "My Page", root.Title)
}

func TestSource_GetRoot_NotFound(t *testing.T) {
	pages := &fakePageAPI{err: &notionapi.Error{Status: 404, Code: "object_not_found", Message: "page missing"}}
	source := testSource(pages, &fakeBlockAPI{})

	_, err := source.GetRoot(context.Background(), "page-1")

	assert.ErrorIs(t, err, domain.ErrSourceNotFound)
}

func TestSource_GetChildren_FollowsPagination(t *testing.T) {
	blocks := &fakeBlockAPI{
		pages: []*notionapi.GetChildrenResponse{
			{
				Results:    []notionapi.Block{paragraph("b1", "one"), paragraph("b2", "two")},
				HasMore:    true,
				NextCursor: "cursor-2",
			},
			{
				Results: []notionapi.Block{paragraph("b3", "three")},
			},
		},
	}
	source := testSource(&fakePageAPI{}, blocks)

	children, err := source.GetChildren(context.Background(), "parent")

	require.NoError(t, err)
	require.Len(t, children, 3)
	assert.Equal(t, "b1", children[0].ID)
	assert.Equal(t, "one", children[0].PlainText)
	assert.Equal(t, "b3", children[2].ID)
	assert.Equal(t, []notionapi.Cursor{"", "cursor-2"}, blocks.cursors)
}

func TestSource_GetChildren_RetriesTransientFailures(t *testing.T) {
	blocks := &fakeBlockAPI{err: &notionapi.Error{Status: 429, Code: "rate_limited", Message: "slow down"}}
	source := testSource(&fakePageAPI{}, blocks)

	_, err := source.GetChildren(context.Background(), "parent")

	assert.ErrorIs(t, err, domain.ErrSourceRateLimited)
	assert.Equal(t, 3, blocks.calls)
}

func TestSource_GetChildren_FatalErrorsAreNotRetried(t *testing.T) {
	blocks := &fakeBlockAPI{err: &notionapi.Error{Status: 401, Code: "unauthorized", Message: "bad token"}}
	source := testSource(&fakePageAPI{}, blocks)

	_, err := source.GetChildren(context.Background(), "parent")

	assert.ErrorIs(t, err, domain.ErrSourceAuth)
	assert.Equal(t, 1, blocks.calls)
}

func TestMapError(t *testing.T) {
	assert.NoError(t, mapError(nil))
	assert.ErrorIs(t,
		mapError(&notionapi.Error{Code: "rate_limited"}), domain.ErrSourceRateLimited)
	assert.ErrorIs(t,
		mapError(&notionapi.Error{Code: "object_not_found"}), domain.ErrSourceNotFound)
	assert.ErrorIs(t,
		mapError(&notionapi.Error{Code: "unauthorized"}), domain.ErrSourceAuth)
	assert.ErrorIs(t,
		mapError(&notionapi.Error{Code: "restricted_resource"}), domain.ErrSourceAuth)
	assert.ErrorIs(t,
		mapError(&notionapi.Error{Status: 503, Code: "service_unavailable"}), domain.ErrSourceUnavailable)
	// Network-level failures count as unavailable too.
	assert.ErrorIs(t, mapError(context.DeadlineExceeded), domain.ErrSourceUnavailable)
}

func TestFactory_Create(t *testing.T) {
	factory := NewFactory("default-token")

	source, err := factory.Create(context.Background(), "")
	require.NoError(t, err)
	assert.NotNil(t, source)

	source, err = factory.Create(context.Background(), "request-token")
	require.NoError(t, err)
	assert.NotNil(t, source)
}

func TestFactory_Create_NoToken(t *testing.T) {
	factory := NewFactory("")

	_, err := factory.Create(context.Background(), "")

	assert.ErrorIs(t, err, domain.ErrSourceAuth)
}
