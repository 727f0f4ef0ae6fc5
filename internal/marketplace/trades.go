// Package marketplace reads trade history from the marketplace backend.
package marketplace

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/unique-nft/marketgate/internal/model"
	"github.com/unique-nft/marketgate/internal/pkg/httpx"
)

type Client struct {
	baseURL    string
	tradesPath string
	httpClient *http.Client
}

func NewClient(baseURL, tradesPath string, httpClient *http.Client) *Client {
	if tradesPath == "" {
		tradesPath = "/api/trades"
	}
	return &Client{baseURL: baseURL, tradesPath: tradesPath, httpClient: httpClient}
}

type tradesResponse struct {
	Items      []model.TradeRecord `json:"items"`
	ItemsCount int                 `json:"itemsCount"`
	Page       int                 `json:"page"`
	PageSize   int                 `json:"pageSize"`
}

// Trades fetches one page of trades, all of them or those of q.Account.
func (c *Client) Trades(ctx context.Context, q model.TradeQuery) ([]model.TradeRecord, int, error) {
	path := c.tradesPath
	if q.Account != "" {
		path += "/" + url.PathEscape(q.Account)
	}

	v := url.Values{}
	v.Set("page", strconv.Itoa(q.Page))
	v.Set("pageSize", strconv.Itoa(q.PerPage))
	if s := q.Sort.String(); s != "" {
		v.Set("sort", s)
	}

	var resp tradesResponse
	err := httpx.DoJSON(ctx, c.httpClient, httpx.Request{
		Method: http.MethodGet,
		URL:    httpx.JoinURL(c.baseURL, path) + "?" + v.Encode(),
	}, &resp)
	if err != nil {
		return nil, 0, err
	}
	return resp.Items, resp.ItemsCount, nil
}
