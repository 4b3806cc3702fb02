// Package scrape fetches activity pages and reduces them to the text
// and link set the extraction agents work on.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"trailscout/internal/config"
	"trailscout/internal/logging"
)

const (
	bodyReadLimit = 1 << 20 // 1MB
	maxLinks      = 10
	linkTextLimit = 80
)

// ErrSkippedDomain marks URLs on the skip list (social platforms and
// other pages that never yield extractable activity data).
var ErrSkippedDomain = errors.New("skipped domain")

// Link is one outgoing link with its anchor text.
type Link struct {
	URL  string
	Text string
}

// Page is the reduced form of one fetched document.
type Page struct {
	URL       string
	Title     string
	Content   string
	Links     []Link
	Truncated bool
	Rendered  bool // true when the browser fallback produced the content
}

// Renderer is the optional headless-browser fallback for pages that
// return too little content over plain HTTP.
type Renderer interface {
	Render(ctx context.Context, pageURL string) (*Page, error)
}

// Fetcher retrieves pages over plain HTTP with bounded retries.
type Fetcher struct {
	httpClient       *http.Client
	userAgent        string
	maxRetries       int
	maxContentChars  int
	minContentChars  int
	retryBackoffBase time.Duration
	skipDomain       func(string) bool
	fallback         Renderer
}

// NewFetcher builds a fetcher from the application config.
func NewFetcher(cfg *config.Config) *Fetcher {
	maxRetries := cfg.Scrape.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	minChars := cfg.Scrape.MinContentChars
	if minChars <= 0 {
		minChars = 100
	}
	maxChars := cfg.Scrape.MaxContentChars
	if maxChars <= 0 {
		maxChars = 8000
	}
	return &Fetcher{
		httpClient: &http.Client{
			Timeout: cfg.GetScrapeTimeout(),
		},
		userAgent:        cfg.Scrape.UserAgent,
		maxRetries:       maxRetries,
		maxContentChars:  maxChars,
		minContentChars:  minChars,
		retryBackoffBase: 500 * time.Millisecond,
		skipDomain:       cfg.ShouldSkipDomain,
	}
}

// SetFallback installs the browser renderer used when plain fetching
// yields too little content.
func (f *Fetcher) SetFallback(r Renderer) {
	f.fallback = r
}

// Page fetches and reduces one URL. Attempt count is 1 + MaxRetries;
// too-short content counts as a failed attempt. When every attempt
// falls short and a browser fallback is installed, one rendered fetch
// is tried before giving up.
func (f *Fetcher) Page(ctx context.Context, pageURL string) (*Page, error) {
	if f.skipDomain != nil && f.skipDomain(pageURL) {
		logging.Scrape("skipping %s: %v", pageURL, ErrSkippedDomain)
		return nil, fmt.Errorf("%s: %w", pageURL, ErrSkippedDomain)
	}

	timer := logging.StartTimer(logging.CategoryScrape, "fetch "+pageURL)
	defer timer.Stop()

	var lastErr error

	for i := 0; i <= f.maxRetries; i++ {
		if i > 0 {
			time.Sleep(time.Duration(1<<uint(i-1)) * f.retryBackoffBase)
			logging.ScrapeDebug("retrying %s (attempt %d/%d)", pageURL, i+1, f.maxRetries+1)
		}

		page, err := f.fetchOnce(ctx, pageURL)
		if err != nil {
			lastErr = err
			if !retryableFetchErr(err) {
				break
			}
			continue
		}

		if len(page.Content) < f.minContentChars {
			lastErr = fmt.Errorf("content too short (%d chars)", len(page.Content))
			continue
		}

		f.finalize(page)
		return page, nil
	}

	if f.fallback != nil {
		logging.Scrape("plain fetch of %s failed (%v), trying browser fallback", pageURL, lastErr)
		page, err := f.fallback.Render(ctx, pageURL)
		if err == nil && len(page.Content) >= f.minContentChars {
			page.Rendered = true
			f.finalize(page)
			return page, nil
		}
		if err != nil {
			lastErr = fmt.Errorf("%v (browser fallback: %v)", lastErr, err)
		}
	}

	logging.Scrape("giving up on %s: %v", pageURL, lastErr)
	return nil, fmt.Errorf("fetch %s: %w", pageURL, lastErr)
}

func (f *Fetcher) fetchOnce(ctx context.Context, pageURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", pageURL, nil)
	if err != nil {
		return nil, &fatalFetchErr{err}
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("HTTP %d", resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, &fatalFetchErr{err}
		}
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, bodyReadLimit))
	if err != nil {
		return nil, err
	}

	page, err := ReduceHTML(pageURL, string(body))
	if err != nil {
		return nil, &fatalFetchErr{err}
	}
	return page, nil
}

// ReduceHTML parses a document and reduces it to title, text, and
// links. The browser fallback feeds rendered HTML through the same
// reduction so both fetch paths produce identical pages.
func ReduceHTML(pageURL, rawHTML string) (*Page, error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, err
	}
	return &Page{
		URL:     pageURL,
		Title:   extractTitle(doc),
		Content: extractText(doc),
		Links:   harvestLinks(doc, pageURL),
	}, nil
}

// finalize applies the content cap with the truncation marker.
func (f *Fetcher) finalize(page *Page) {
	runes := []rune(page.Content)
	if len(runes) > f.maxContentChars {
		page.Content = string(runes[:f.maxContentChars]) + "...[truncated]"
		page.Truncated = true
	}
}

// fatalFetchErr wraps failures that more attempts cannot fix.
type fatalFetchErr struct {
	err error
}

func (e *fatalFetchErr) Error() string { return e.err.Error() }
func (e *fatalFetchErr) Unwrap() error { return e.err }

func retryableFetchErr(err error) bool {
	var fatal *fatalFetchErr
	return !errors.As(err, &fatal)
}

func extractTitle(doc *html.Node) string {
	var title string
	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if title != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "title" && n.FirstChild != nil {
			title = strings.TrimSpace(n.FirstChild.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(doc)
	return title
}

// extractText collects headings, paragraphs, and list items under the
// main content root (article or main when present, the whole document
// otherwise). Script, style, and chrome elements are dropped.
func extractText(doc *html.Node) string {
	root := contentRoot(doc)

	var blocks []string
	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "nav", "header", "footer", "aside":
				return
			case "h1", "h2", "h3", "h4", "p", "li", "td", "dd", "dt":
				if text := nodeText(n); text != "" {
					blocks = append(blocks, text)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(root)

	return strings.Join(blocks, "\n")
}

func contentRoot(doc *html.Node) *html.Node {
	var root *html.Node
	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if root != nil {
			return
		}
		if n.Type == html.ElementNode && (n.Data == "article" || n.Data == "main") {
			root = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(doc)
	if root == nil {
		return doc
	}
	return root
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var traverse func(*html.Node)
	traverse = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
			sb.WriteString(" ")
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

// harvestLinks collects up to 10 outgoing links with anchor text,
// resolved against the page URL. Same-host links come first since
// detail sub-pages for a list page live on the same site.
func harvestLinks(doc *html.Node, pageURL string) []Link {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	seen := map[string]bool{}
	var sameHost, external []Link

	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			if link, ok := resolveLink(n, base); ok && !seen[link.URL] {
				seen[link.URL] = true
				if sameHostURL(link.URL, base.Host) {
					sameHost = append(sameHost, link)
				} else {
					external = append(external, link)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(doc)

	links := sameHost
	for _, l := range external {
		if len(links) >= maxLinks {
			break
		}
		links = append(links, l)
	}
	if len(links) > maxLinks {
		links = links[:maxLinks]
	}
	return links
}

func resolveLink(n *html.Node, base *url.URL) (Link, bool) {
	var href string
	for _, attr := range n.Attr {
		if attr.Key == "href" {
			href = strings.TrimSpace(attr.Val)
			break
		}
	}
	if href == "" || strings.HasPrefix(href, "#") ||
		strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
		return Link{}, false
	}

	resolved, err := base.Parse(href)
	if err != nil || (resolved.Scheme != "http" && resolved.Scheme != "https") {
		return Link{}, false
	}
	resolved.Fragment = ""

	text := nodeText(n)
	if runes := []rune(text); len(runes) > linkTextLimit {
		text = string(runes[:linkTextLimit])
	}
	return Link{URL: resolved.String(), Text: text}, true
}

func sameHostURL(raw, host string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Host == host
}
