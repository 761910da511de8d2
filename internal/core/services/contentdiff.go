package services

import (
	"fmt"
	"time"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/custodia-labs/atlas/internal/core/domain"
)

// diffContextLines is the number of unchanged lines shown around each hunk.
const diffContextLines = 3

// UnifiedContentDiff renders a line-level unified diff between two content
// versions of the same element, old as source. The headers carry the
// element ID and each version's timestamp.
func UnifiedContentDiff(elementID string, oldContent, newContent domain.ElementContent) (string, error) {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(oldContent.ContentRaw),
		B:        difflib.SplitLines(newContent.ContentRaw),
		FromFile: contentDiffHeader(elementID, oldContent.Version),
		ToFile:   contentDiffHeader(elementID, newContent.Version),
		Context:  diffContextLines,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return "", fmt.Errorf("render diff for element %s: %w", elementID, err)
	}
	return text, nil
}

func contentDiffHeader(elementID string, version time.Time) string {
	return fmt.Sprintf("element_%s@%s", elementID, version.UTC().Format(time.RFC3339Nano))
}
