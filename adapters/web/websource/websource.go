package websource

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/Abraxas-365/coursekb/datasource"
	"github.com/PuerkitoBio/goquery"
)

// WebSource loads web pages as plain-text documents
type WebSource struct {
	urls     []string
	client   *http.Client
	selector string
}

var _ datasource.DataSource = (*WebSource)(nil)

type Option func(*WebSource)

// WithSelector restricts extraction to the elements matching a CSS selector
func WithSelector(selector string) Option {
	return func(w *WebSource) {
		w.selector = selector
	}
}

// WithHTTPClient replaces the default client
func WithHTTPClient(client *http.Client) Option {
	return func(w *WebSource) {
		w.client = client
	}
}

func NewWebSource(urls []string, timeout time.Duration, opts ...Option) *WebSource {
	w := &WebSource{
		urls:     urls,
		selector: "body",
		client: &http.Client{
			Timeout: timeout,
		},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *WebSource) Load(ctx context.Context, opts ...datasource.Option) ([]datasource.Document, error) {
	options := datasource.NewLoadOptions(opts...)

	var documents []datasource.Document

	for _, url := range w.urls {
		if options.Full(len(documents)) {
			break
		}

		metadata := map[string]interface{}{
			"url": url,
		}

		if !options.Accept(metadata) {
			continue
		}

		page, err := w.fetchURL(ctx, url)
		if err != nil {
			return nil, err
		}

		text := extractText(page.Find(w.selector))
		if text == "" {
			continue
		}
		if title := strings.TrimSpace(page.Find("title").First().Text()); title != "" {
			metadata["title"] = title
		}

		documents = append(documents, datasource.Document{
			Content:  text,
			Metadata: metadata,
			Source:   url,
		})
	}

	return documents, nil
}

func (w *WebSource) fetchURL(ctx context.Context, url string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, datasource.NewDataSourceError("web", "fetchURL", err, datasource.ErrCodeInvalidSource, "invalid URL")
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, datasource.NewDataSourceError("web", "fetchURL", err, datasource.ErrCodeInternal, "failed to fetch URL")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, datasource.NewDataSourceError("web", "fetchURL", nil, datasource.ErrCodeRateLimitExceeded, "failed to fetch URL: "+resp.Status)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, datasource.NewDataSourceError("web", "fetchURL", nil, datasource.ErrCodeAccessDenied, "failed to fetch URL: "+resp.Status)
	case resp.StatusCode != http.StatusOK:
		return nil, datasource.NewDataSourceError("web", "fetchURL", nil, datasource.ErrCodeNotFound, "failed to fetch URL: "+resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, datasource.NewDataSourceError("web", "fetchURL", err, datasource.ErrCodeInvalidFormat, "failed to parse HTML")
	}

	return doc, nil
}

// extractText drops non-content elements and joins the remaining text one line per block
func extractText(sel *goquery.Selection) string {
	sel.Find("script, style, noscript, nav, header, footer").Remove()

	var lines []string
	sel.Find("h1, h2, h3, h4, h5, h6, p, li, pre, td").Each(func(_ int, s *goquery.Selection) {
		if line := strings.Join(strings.Fields(s.Text()), " "); line != "" {
			lines = append(lines, line)
		}
	})
	if len(lines) == 0 {
		return strings.Join(strings.Fields(sel.Text()), " ")
	}
	return strings.Join(lines, "\n")
}
