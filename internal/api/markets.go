package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rickgao/polymarket-data/internal/model"
)

// cursorExhaustedMsg is the venue's end-of-pagination signal: instead of an
// empty final page, the last cursor draws an HTTP 400 with this text.
const cursorExhaustedMsg = "next item should be greater than or equal to 0"

// isCursorExhausted reports whether err is the venue's end-of-pagination
// signal.
func isCursorExhausted(err error) bool {
	if err == nil {
		return false
	}
	if strings.Contains(err.Error(), cursorExhaustedMsg) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && strings.Contains(string(apiErr.Body), cursorExhaustedMsg)
}

// GetMarkets fetches a single page of markets. An empty cursor requests the
// first page.
func (c *Client) GetMarkets(ctx context.Context, cursor string) (*MarketsResponse, error) {
	query := url.Values{}
	if cursor != "" {
		query.Set("next_cursor", cursor)
	}

	var resp MarketsResponse
	if err := c.get(ctx, "/markets", query, &resp); err != nil {
		return nil, fmt.Errorf("get markets: %w", err)
	}

	return &resp, nil
}

// FetchAllMarkets walks the whole catalog, first page without a cursor and
// each later page with the previous response's next_cursor. It stops on an
// empty page, an empty next_cursor, or the venue's cursor-exhaustion error
// (which counts as success); any other failure surfaces as-is and the
// partial result is discarded. No retries are performed. Uses
// DefaultPaginationTimeout if the context has no deadline.
func (c *Client) FetchAllMarkets(ctx context.Context) ([]model.Market, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultPaginationTimeout)
		defer cancel()
	}

	var all []model.Market
	fetchedAt := time.Now()
	cursor := ""
	pages := 0

	for {
		page, err := c.fetchMarketsPage(ctx, cursor)
		if err != nil {
			if isCursorExhausted(err) {
				c.logger.Debug("catalog pagination ended by cursor-exhaustion signal",
					"pages", pages,
					"markets", len(all),
				)
				return all, nil
			}
			return nil, err
		}

		if page == nil || len(page.Data) == 0 {
			break
		}
		pages++

		for i := range page.Data {
			all = append(all, page.Data[i].ToModel(fetchedAt))
		}

		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	c.logger.Info("fetched market catalog", "pages", pages, "markets", len(all))
	return all, nil
}

// fetchMarketsPage fetches one catalog page. A body that is valid JSON but
// not the expected markets object (some deployments answer the final cursor
// with a bare value) returns (nil, nil) so the caller treats it as the end
// of pagination.
func (c *Client) fetchMarketsPage(ctx context.Context, cursor string) (*MarketsResponse, error) {
	query := url.Values{}
	if cursor != "" {
		query.Set("next_cursor", cursor)
	}

	body, err := c.doRequest(ctx, http.MethodGet, "/markets", query)
	if err != nil {
		return nil, fmt.Errorf("fetch markets page: %w", err)
	}

	var resp MarketsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		if json.Valid(body) {
			c.logger.Debug("markets page is not an object, treating as end of pagination",
				"body", bodyFragment(body),
			)
			return nil, nil
		}
		return nil, &DecodeError{Path: "/markets", Fragment: bodyFragment(body), Err: err}
	}

	return &resp, nil
}

// GetMarket fetches a single market by condition id.
func (c *Client) GetMarket(ctx context.Context, conditionID string) (*model.Market, error) {
	var resp APIMarket
	if err := c.get(ctx, "/markets/"+conditionID, nil, &resp); err != nil {
		return nil, fmt.Errorf("get market %s: %w", conditionID, err)
	}
	m := resp.ToModel(time.Now())
	return &m, nil
}

// GetOrderBook fetches the current order book for one token.
func (c *Client) GetOrderBook(ctx context.Context, tokenID string) (*model.BookSnapshot, error) {
	query := url.Values{}
	query.Set("token_id", tokenID)

	var resp BookResponse
	if err := c.get(ctx, "/book", query, &resp); err != nil {
		return nil, fmt.Errorf("get book %s: %w", tokenID, err)
	}

	snap := resp.ToSnapshot()
	return &snap, nil
}
