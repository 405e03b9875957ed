// Package webreader fetches a remote page and reduces it to plain text,
// either raw or framed for use as LLM input.
package webreader

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
)

// maxBodyBytes caps how much of a remote page is read.
const maxBodyBytes = 2 << 20 // 2 MiB

// fetchTimeout bounds one remote fetch.
const fetchTimeout = 30 * time.Second

var (
	// ErrBadURL is returned for unparsable or non-HTTP(S) URLs.
	ErrBadURL = errors.New("invalid url")

	// ErrFetchFailed is returned when the remote site cannot be read.
	ErrFetchFailed = errors.New("fetch failed")
)

// Reader fetches and cleans remote pages.
type Reader struct {
	httpClient *http.Client
}

// NewReader creates a web reader.
func NewReader() *Reader {
	return &Reader{httpClient: &http.Client{Timeout: fetchTimeout}}
}

// Fetch downloads the page at rawURL and returns its visible text with
// collapsed whitespace.
func (r *Reader) Fetch(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", ErrBadURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", ErrBadURL
	}
	req.Header.Set("User-Agent", "chaingate-web-reader/1.0")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrFetchFailed, resp.StatusCode)
	}

	return extractText(io.LimitReader(resp.Body, maxBodyBytes))
}

// FetchForLLM downloads the page and frames the text so it can be pasted
// directly into a prompt.
func (r *Reader) FetchForLLM(ctx context.Context, rawURL string) (string, error) {
	text, err := r.Fetch(ctx, rawURL)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Web page content from %s:\n\n%s", rawURL, text), nil
}

// extractText walks the parsed document collecting text nodes, skipping
// the markup that carries no prose.
func extractText(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "head", "iframe", "svg":
				return
			}
		}
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				parts = append(parts, text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return strings.Join(strings.Fields(strings.Join(parts, " ")), " "), nil
}
