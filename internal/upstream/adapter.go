// Package upstream defines the scraping/posting collaborator the pipeline
// consumes: list articles, fetch full content, and post a comment. The wire
// protocol against the actual writing platform is an external concern — this
// package only fixes the contract and a deterministic fake for tests.
package upstream

import (
	"context"
	"errors"
	"time"

	"github.com/yourmoment/core/internal/models"
)

// ArticleMeta is the metadata returned by enumeration, before content fetch.
type ArticleMeta struct {
	UpstreamArticleID string
	Title             string
	Author            string
	Category          string
	URL               string
	EditedAt          *time.Time
}

// ArticleContent is the full article body returned by a content fetch.
type ArticleContent struct {
	Content     string
	RawHTML     string
	PublishedAt *time.Time
}

// TransientError indicates a retryable failure (network timeout, rate
// limit, upstream 5xx). Callers decide what to do with it: the posting
// worker bumps the record's retry counter and tries again on a future stage
// run, while the preparation worker marks the record failed.
type TransientError struct {
	Cause error
}

func (e *TransientError) Error() string { return "upstream: transient error: " + e.Cause.Error() }
func (e *TransientError) Unwrap() error { return e.Cause }

// PermanentError indicates a non-retryable failure (authorization rejected,
// malformed payload, content policy violation). The caller marks the record
// failed immediately.
type PermanentError struct {
	Cause error
}

func (e *PermanentError) Error() string { return "upstream: permanent error: " + e.Cause.Error() }
func (e *PermanentError) Unwrap() error { return e.Cause }

// IsTransient reports whether err (or anything it wraps) is a TransientError.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

// IsPermanent reports whether err (or anything it wraps) is a PermanentError.
func IsPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}

// Adapter is the scraping/posting contract. Implementations must establish
// and tear down any upstream HTTP session within a single call or worker
// invocation — never retain one across a DB session boundary.
type Adapter interface {
	// ListArticles enumerates articles matching filters for the identity
	// behind credentialID, preserving upstream enumeration order.
	ListArticles(ctx context.Context, credentialID string, filters models.ProcessFilters) ([]ArticleMeta, error)

	// FetchArticleContent retrieves the full body of one article.
	FetchArticleContent(ctx context.Context, credentialID, upstreamArticleID string) (ArticleContent, error)

	// PostComment submits a comment under the article. Returns nil on
	// success; a *TransientError or *PermanentError otherwise.
	PostComment(ctx context.Context, credentialID, upstreamArticleID, text string) error
}
