package services

import (
	"context"

	"github.com/custodia-labs/atlas/internal/core/domain"
	"github.com/custodia-labs/atlas/internal/core/ports/driven"
)

// fakeSource serves a canned block tree. Children are keyed by block ID;
// the document reference serves as the root key.
type fakeSource struct {
	root     domain.SourceRoot
	children map[string][]domain.SourceBlock
	rootErr  error
	childErr error
}

func (f *fakeSource) GetRoot(_ context.Context, _ string) (*domain.SourceRoot, error) {
	if f.rootErr != nil {
		return nil, f.rootErr
	}
	root := f.root
	return &root, nil
}

func (f *fakeSource) GetChildren(_ context.Context, blockID string) ([]domain.SourceBlock, error) {
	if f.childErr != nil {
		return nil, f.childErr
	}
	return f.children[blockID], nil
}

// fakeFactory hands out a fixed source regardless of token.
type fakeFactory struct {
	source driven.BlockSource
	err    error
}

func (f *fakeFactory) Create(_ context.Context, _ string) (driven.BlockSource, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.source, nil
}

func textBlock(id, text string, hasChildren bool) domain.SourceBlock {
	return domain.SourceBlock{
		ID:            id,
		Type:          "paragraph",
		HasChildren:   hasChildren,
		PlainText:     text,
		FormattedText: text,
	}
}
