// Package reddit posts queued comments through Reddit's shreddit comment
// endpoint using session cookies captured by the submitting client.
package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/neocomx/CommentQueueService/task"
)

const (
	// DefaultBaseURL is the production Reddit origin.
	DefaultBaseURL = "https://www.reddit.com"

	// failureBodyLimit bounds how much of an error response is kept in the
	// diagnostic.
	failureBodyLimit = 300
)

// Client implements task.Executor against Reddit.
type Client struct {
	http    *http.Client
	baseURL string
}

var _ task.Executor = (*Client)(nil)

func NewClient(timeout time.Duration) *Client {
	return NewClientWithBaseURL(timeout, DefaultBaseURL)
}

// NewClientWithBaseURL targets a non-default origin. Used by tests.
func NewClientWithBaseURL(timeout time.Duration, baseURL string) *Client {
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Post submits one comment as a richtext form POST. A nil return means
// Reddit answered 200; anything else is reported as an error with a short
// excerpt of the response body.
func (c *Client) Post(ctx context.Context, comment task.Comment, sess task.Session) error {
	if comment.URL == "" || comment.Text == "" {
		return fmt.Errorf("comment %s is missing url or text", comment.ID)
	}

	postID, err := ExtractPostID(comment.URL)
	if err != nil {
		return err
	}

	log.Info().Str("post_id", postID).Str("subreddit", comment.Subreddit).Msg("posting comment")

	content, err := json.Marshal(richTextDocument(comment.Text))
	if err != nil {
		return fmt.Errorf("encoding comment %s: %w", comment.ID, err)
	}

	form := url.Values{}
	form.Set("content", string(content))
	form.Set("mode", "richText")
	form.Set("richTextMedia", "[]")
	form.Set("csrf_token", sess.CSRFToken)

	endpoint := fmt.Sprintf("%s/svc/shreddit/t3_%s/create-comment", c.baseURL, postID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("building request for comment %s: %w", comment.ID, err)
	}

	req.Header.Set("accept", "text/vnd.reddit.partial+html, application/json")
	req.Header.Set("accept-language", "en-GB,en-US;q=0.9,en;q=0.8")
	req.Header.Set("content-type", "application/x-www-form-urlencoded")
	req.Header.Set("sec-ch-ua", `"Chromium";v="130", "Google Chrome";v="130", "Not?A_Brand";v="99"`)
	req.Header.Set("sec-ch-ua-mobile", "?0")
	req.Header.Set("sec-ch-ua-platform", `"Windows"`)
	req.Header.Set("sec-fetch-dest", "empty")
	req.Header.Set("sec-fetch-mode", "cors")
	req.Header.Set("sec-fetch-site", "same-origin")
	req.Header.Set("Referer", comment.URL)
	req.Header.Set("Referrer-Policy", "strict-origin-when-cross-origin")

	for name, value := range sess.Cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("posting comment %s: %w", comment.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return nil
	}

	excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, failureBodyLimit))
	return fmt.Errorf("reddit responded %d: %s", resp.StatusCode, strings.TrimSpace(string(excerpt)))
}

// ExtractPostID pulls the base-36 post id out of a permalink, the segment
// after "comments" (https://www.reddit.com/r/<sub>/comments/<id>/<slug>/).
// Falls back to the third-from-last path segment for older URL shapes.
func ExtractPostID(postURL string) (string, error) {
	parts := strings.Split(strings.TrimRight(postURL, "/"), "/")
	for i, part := range parts {
		if part == "comments" && i+1 < len(parts) {
			return parts[i+1], nil
		}
	}
	if len(parts) >= 3 && parts[len(parts)-3] != "" {
		return parts[len(parts)-3], nil
	}
	return "", fmt.Errorf("cannot extract post id from %q", postURL)
}

// richTextDocument wraps plain text in the single-paragraph richtext
// document shape the endpoint expects. The format run covers the whole text
// in characters, not bytes.
func richTextDocument(text string) map[string]any {
	return map[string]any{
		"document": []any{
			map[string]any{
				"e": "par",
				"c": []any{
					map[string]any{
						"e": "text",
						"t": text,
						"f": [][]int{{0, 0, utf8.RuneCountInString(text)}},
					},
				},
			},
		},
	}
}
