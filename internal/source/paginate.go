package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
)

// ErrFirstPage marks a pagination walk that could not even fetch page 1.
// Callers treat it as fatal for the whole extraction.
var ErrFirstPage = errors.New("first page fetch failed")

// Page is the envelope every paginated endpoint returns.
type Page struct {
	Items      []json.RawMessage `json:"items"`
	Page       int               `json:"page"`
	PageSize   int               `json:"page_size"`
	HasNext    bool              `json:"has_next"`
	NextPage   *int              `json:"next_page"`
	PrevPage   *int              `json:"prev_page"`
	Total      int               `json:"total"`
	TotalPages int               `json:"total_pages"`
}

// Paginator drives an endpoint through its full pagination using the shared
// client pool. Page 1 is fetched first to learn total_pages; the remaining
// pages are fetched concurrently, bounded by the client's in-flight limit.
type Paginator struct {
	client   *Client
	pageSize int
	log      zerolog.Logger
}

func NewPaginator(client *Client, pageSize int, log zerolog.Logger) *Paginator {
	return &Paginator{client: client, pageSize: pageSize, log: log}
}

// Walk yields every page's items to fn. Calls to fn are serialized, but page
// order beyond page 1 is not preserved. When lenient is true a failed
// non-first page is logged and skipped instead of failing the walk; this is
// how the per-chat message sweep stays non-fatal.
func (p *Paginator) Walk(ctx context.Context, endpoint string, lenient bool, fn func(page int, items []json.RawMessage) error) error {
	query := url.Values{
		"page":          {"1"},
		"page_size":     {strconv.Itoa(p.pageSize)},
		"include_total": {"true"},
	}

	var first Page
	if err := p.client.GetJSON(ctx, endpoint, query, &first); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrFirstPage, endpoint, err)
	}
	if err := fn(1, first.Items); err != nil {
		return err
	}
	if first.TotalPages <= 1 {
		return nil
	}

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		walkErr  error
		fnFailed bool
	)
	for page := 2; page <= first.TotalPages; page++ {
		wg.Add(1)
		go func(page int) {
			defer wg.Done()

			q := url.Values{
				"page":      {strconv.Itoa(page)},
				"page_size": {strconv.Itoa(p.pageSize)},
			}
			var pg Page
			err := p.client.GetJSON(ctx, endpoint, q, &pg)

			mu.Lock()
			defer mu.Unlock()
			if fnFailed || (walkErr != nil && !lenient) {
				return
			}
			if err != nil {
				if lenient {
					p.log.Warn().Err(err).Str("endpoint", endpoint).Int("page", page).
						Msg("skipping failed page")
					return
				}
				walkErr = fmt.Errorf("%s page %d: %w", endpoint, page, err)
				return
			}
			if err := fn(page, pg.Items); err != nil {
				walkErr = err
				fnFailed = true
			}
		}(page)
	}
	wg.Wait()
	return walkErr
}
