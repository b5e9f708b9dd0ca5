package upstream

import (
	"context"
	"sync"

	"github.com/yourmoment/core/internal/models"
)

// FakeAdapter is a deterministic, in-memory Adapter for tests. Articles are
// seeded per credential id and content per article id; fetch and
// PostComment failures are scripted per article id so scenario tests can
// exercise retry and failure paths.
type FakeAdapter struct {
	mu sync.Mutex

	Articles map[string][]ArticleMeta           // credentialID -> articles
	Content  map[string]ArticleContent          // upstreamArticleID -> content
	PostErr  map[string]error                   // upstreamArticleID -> forced PostComment error
	Posted   []PostedComment                    // recorded successful posts, in call order
	ListErr  map[string]error                   // credentialID -> forced ListArticles error
	FetchErr map[string]error                   // upstreamArticleID -> forced FetchArticleContent error
}

// PostedComment records one successful PostComment invocation.
type PostedComment struct {
	CredentialID      string
	UpstreamArticleID string
	Text              string
}

// NewFakeAdapter returns an empty FakeAdapter ready for seeding.
func NewFakeAdapter() *FakeAdapter {
	return &FakeAdapter{
		Articles: make(map[string][]ArticleMeta),
		Content:  make(map[string]ArticleContent),
		PostErr:  make(map[string]error),
		ListErr:  make(map[string]error),
		FetchErr: make(map[string]error),
	}
}

// ListArticles implements Adapter.
func (f *FakeAdapter) ListArticles(_ context.Context, credentialID string, _ models.ProcessFilters) ([]ArticleMeta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.ListErr[credentialID]; err != nil {
		return nil, err
	}
	return append([]ArticleMeta(nil), f.Articles[credentialID]...), nil
}

// FetchArticleContent implements Adapter.
func (f *FakeAdapter) FetchArticleContent(_ context.Context, _, upstreamArticleID string) (ArticleContent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.FetchErr[upstreamArticleID]; err != nil {
		return ArticleContent{}, err
	}
	return f.Content[upstreamArticleID], nil
}

// PostComment implements Adapter.
func (f *FakeAdapter) PostComment(_ context.Context, credentialID, upstreamArticleID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.PostErr[upstreamArticleID]; err != nil {
		return err
	}
	f.Posted = append(f.Posted, PostedComment{CredentialID: credentialID, UpstreamArticleID: upstreamArticleID, Text: text})
	return nil
}
