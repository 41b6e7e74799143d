package corpus

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/coursebot/course-rag/internal/forum"
	"github.com/coursebot/course-rag/internal/processor"
	"github.com/coursebot/course-rag/pkg/models"
)

// ForumSource is the slice of the forum client the builder needs.
type ForumSource interface {
	VerifyAuth(ctx context.Context) (string, error)
	Topics(ctx context.Context) ([]forum.Topic, error)
	Owns(pageURL string) bool
	FetchPage(ctx context.Context, pageURL string) (string, error)
}

// Config holds corpus builder configuration.
type Config struct {
	MarkdownSources []string // markdown documents to extract links from
	MarkdownBaseURL string   // base for resolving relative .md links
	NotesDomains    []string // domain substrings of the course-notes family
	AcceptedAfter   string   // exclusive lower bound on forum publication dates
	AcceptedBefore  string   // exclusive upper bound on forum publication dates
	Timeout         time.Duration
}

// Result holds the outcome of a corpus build.
type Result struct {
	Documents []models.Document
	Skipped   []string // one reason per source item that yielded no document
	Duration  time.Duration
}

// link is a titled URL collected during link extraction.
type link struct {
	Title string
	URL   string
}

// Builder assembles the deduplicated document corpus from the markdown
// sources and the forum. Building is a sequential, single-pass batch:
// one fetch at a time, each failure local to its document.
type Builder struct {
	config     Config
	forum      ForumSource
	processor  *processor.Processor
	httpClient *http.Client
	baseURL    *url.URL
}

// NewBuilder creates a corpus builder.
func NewBuilder(config Config, forumClient ForumSource) (*Builder, error) {
	base, err := url.Parse(config.MarkdownBaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid markdown base URL: %w", err)
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}

	return &Builder{
		config:     config,
		forum:      forumClient,
		processor:  processor.New(),
		httpClient: &http.Client{Timeout: config.Timeout},
		baseURL:    base,
	}, nil
}

// linkPattern matches markdown links: [text](href).
var linkPattern = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)

// Build runs the full ingestion batch: collect links from both source
// families, merge with course-notes priority, fetch each article body,
// and assign strictly increasing ids to documents with content.
// Only forum authentication failure aborts the batch.
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	start := time.Now()
	result := &Result{}

	var notesLinks, forumLinks []link
	for _, source := range b.config.MarkdownSources {
		slog.Info("extracting links", "source", source)
		notes, forumFam, err := b.linksFromMarkdown(ctx, source)
		if err != nil {
			slog.Warn("failed to read markdown source", "source", source, "error", err)
			result.Skipped = append(result.Skipped, fmt.Sprintf("%s: %v", source, err))
			continue
		}
		notesLinks = append(notesLinks, notes...)
		forumLinks = append(forumLinks, forumFam...)
	}

	if _, err := b.forum.VerifyAuth(ctx); err != nil {
		return nil, fmt.Errorf("forum authentication failed: %w", err)
	}

	topics, err := b.forum.Topics(ctx)
	if err != nil {
		slog.Warn("failed to crawl forum category", "error", err)
		result.Skipped = append(result.Skipped, fmt.Sprintf("forum category: %v", err))
	}
	for _, topic := range topics {
		forumLinks = append(forumLinks, link{Title: topic.Title, URL: topic.URL})
	}

	merged := mergeLinks(notesLinks, forumLinks)
	slog.Info("collected links", "notes", len(notesLinks), "forum", len(forumLinks), "merged", len(merged))

	id := 0
	for _, l := range merged {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		content, pageTitle, skip, err := b.fetchContent(ctx, l.URL)
		if err != nil {
			slog.Warn("unable to fetch article", "url", l.URL, "error", err)
			result.Skipped = append(result.Skipped, fmt.Sprintf("%s: %v", l.URL, err))
			continue
		}
		if skip != "" {
			slog.Debug("skipping article", "url", l.URL, "reason", skip)
			result.Skipped = append(result.Skipped, fmt.Sprintf("%s: %s", l.URL, skip))
			continue
		}
		if content == "" {
			result.Skipped = append(result.Skipped, fmt.Sprintf("%s: empty content", l.URL))
			continue
		}

		title := l.Title
		if title == "" {
			title = pageTitle
		}

		id++
		result.Documents = append(result.Documents, models.Document{
			ID:      id,
			Title:   title,
			URL:     l.URL,
			Content: content,
		})
		slog.Debug("ingested article", "id", id, "url", l.URL)
	}

	result.Duration = time.Since(start)
	slog.Info("corpus build complete",
		"documents", len(result.Documents),
		"skipped", len(result.Skipped),
		"duration", result.Duration)
	return result, nil
}

// linksFromMarkdown fetches one markdown source and splits its links
// into the course-notes and forum families.
func (b *Builder) linksFromMarkdown(ctx context.Context, source string) (notes, forumFam []link, err error) {
	md, err := b.fetchRaw(ctx, source)
	if err != nil {
		return nil, nil, err
	}

	for _, m := range linkPattern.FindAllStringSubmatch(md, -1) {
		title, href := strings.TrimSpace(m[1]), m[2]
		full := b.resolveLink(href)

		switch {
		case strings.HasPrefix(full, "http") && containsAny(full, b.config.NotesDomains):
			notes = append(notes, link{Title: title, URL: full})
		case b.forum.Owns(full):
			forumFam = append(forumFam, link{Title: title, URL: full})
		}
	}
	return notes, forumFam, nil
}

// resolveLink resolves relative markdown paths against the configured
// base URL; anything else passes through unchanged.
func (b *Builder) resolveLink(href string) string {
	if strings.HasSuffix(href, ".md") && strings.HasPrefix(href, "../") {
		ref, err := url.Parse(href)
		if err != nil {
			return href
		}
		return b.baseURL.ResolveReference(ref).String()
	}
	return href
}

// mergeLinks deduplicates by URL with course-notes priority: notes
// links first in extraction order, then forum links only for URLs not
// already present.
func mergeLinks(notes, forumLinks []link) []link {
	seen := make(map[string]bool, len(notes)+len(forumLinks))
	merged := make([]link, 0, len(notes)+len(forumLinks))

	for _, group := range [][]link{notes, forumLinks} {
		for _, l := range group {
			if seen[l.URL] {
				continue
			}
			seen[l.URL] = true
			merged = append(merged, l)
		}
	}
	return merged
}

// fetchContent retrieves the article body for one URL. The skip return
// names why a fetched page yields no document; err reports transport
// failures. URLs outside both families always skip. Forum pages also
// yield the page <title> as a fallback for untitled links.
func (b *Builder) fetchContent(ctx context.Context, articleURL string) (content, pageTitle, skip string, err error) {
	switch {
	case strings.HasSuffix(articleURL, ".md"):
		raw, err := b.fetchRaw(ctx, articleURL)
		if err != nil {
			return "", "", "", err
		}
		return strings.TrimSpace(raw), "", "", nil

	case b.forum.Owns(articleURL):
		page, err := b.forum.FetchPage(ctx, articleURL)
		if err != nil {
			return "", "", "", err
		}

		// Pages carrying publication metadata are accepted only inside
		// the date window; pages without it are accepted as-is.
		if published, found := b.processor.PublishedDate(page); found {
			if !(published > b.config.AcceptedAfter && published < b.config.AcceptedBefore) {
				return "", "", fmt.Sprintf("published %q outside window", published), nil
			}
		}

		text, err := b.processor.ExtractText(page)
		if err != nil {
			return "", "", "", err
		}
		return text, b.processor.ExtractTitle(page), "", nil

	default:
		return "", "", "unsupported URL shape", nil
	}
}

// fetchRaw performs a plain GET and returns the body as text.
func (b *Builder) fetchRaw(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("fetch %s failed with status %d", rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	return string(body), nil
}

func containsAny(s string, substrings []string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
