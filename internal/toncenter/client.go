/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package toncenter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Friday56/Goblin-miner/internal/models"
	"github.com/Friday56/Goblin-miner/internal/store"

	"go.uber.org/zap"
	"golang.org/x/net/http2"
)

const (
	DefaultBaseURL   = "https://toncenter.com/api/v2"
	DefaultPageLimit = 50
)

// Config contains configuration for Client
type Config struct {
	BaseURL   string
	APIKey    string
	PageLimit int
	Timeout   time.Duration
}

// Client reads incoming transfers for an address from the toncenter v2 API.
type Client struct {
	baseURL    string
	apiKey     string
	pageLimit  int
	httpClient http.Client
}

func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid toncenter base url %q: %w", baseURL, err)
	}

	pageLimit := cfg.PageLimit
	if pageLimit <= 0 {
		pageLimit = DefaultPageLimit
	}

	httpClient, err := createCustomHttpClient(cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("unable to create custom http client: %w", err)
	}

	return &Client{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		pageLimit:  pageLimit,
		httpClient: httpClient,
	}, nil
}

func createCustomHttpClient(timeout time.Duration) (http.Client, error) {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	tr := &http.Transport{
		ResponseHeaderTimeout: 30 * time.Second,
		Proxy:                 http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			KeepAlive: 30 * time.Second,
			Timeout:   15 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConnsPerHost:   5,
		ExpectContinueTimeout: 5 * time.Second,
	}

	if err := http2.ConfigureTransport(tr); err != nil {
		return http.Client{}, err
	}

	return http.Client{
		Transport: tr,
		Timeout:   timeout,
	}, nil
}

type transactionsResponse struct {
	Ok     bool            `json:"ok"`
	Result []rawTransaction `json:"result"`
	Error  string          `json:"error"`
	Code   int             `json:"code"`
}

type rawTransaction struct {
	Utime         int64 `json:"utime"`
	TransactionId struct {
		Lt   string `json:"lt"`
		Hash string `json:"hash"`
	} `json:"transaction_id"`
	InMsg *rawMessage `json:"in_msg"`
}

type rawMessage struct {
	Source  string          `json:"source"`
	Value   string          `json:"value"`
	Message json.RawMessage `json:"message"`
	MsgData *struct {
		Type string `json:"@type"`
		Text string `json:"text"`
	} `json:"msg_data"`
}

// GetTransactions fetches one page of transactions for address, newest first.
// When lt and hash are set the page starts at that transaction.
func (c *Client) GetTransactions(ctx context.Context, address string, limit int, lt, hash string) ([]models.ChainTransaction, error) {
	if limit <= 0 {
		limit = c.pageLimit
	}

	query := url.Values{}
	query.Set("address", address)
	query.Set("limit", strconv.Itoa(limit))
	if lt != "" && hash != "" {
		query.Set("lt", lt)
		query.Set("hash", hash)
	}
	if c.apiKey != "" {
		query.Set("api_key", c.apiKey)
	}

	endpoint := c.baseURL + "/getTransactions?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: getTransactions: %w", store.ErrUpstreamUnavailable, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			zap.L().Debug("Failed to close response body", zap.Error(cerr))
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: reading getTransactions response: %w", store.ErrUpstreamUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: getTransactions returned status %d", store.ErrUpstreamUnavailable, resp.StatusCode)
	}

	var parsed transactionsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decoding getTransactions response: %w", store.ErrUpstreamUnavailable, err)
	}
	if !parsed.Ok {
		return nil, fmt.Errorf("%w: getTransactions error %d: %s", store.ErrUpstreamUnavailable, parsed.Code, parsed.Error)
	}

	transactions := make([]models.ChainTransaction, 0, len(parsed.Result))
	for _, raw := range parsed.Result {
		transactions = append(transactions, convertTransaction(raw))
	}
	return transactions, nil
}

// FetchRecent walks up to maxPages pages back from the newest transaction.
// Transactions are returned newest first without duplicates.
func (c *Client) FetchRecent(ctx context.Context, address string, maxPages int) ([]models.ChainTransaction, error) {
	if maxPages <= 0 {
		maxPages = 1
	}

	var (
		all  []models.ChainTransaction
		seen = make(map[string]bool)
		lt   string
		hash string
	)

	for page := 0; page < maxPages; page++ {
		batch, err := c.GetTransactions(ctx, address, c.pageLimit, lt, hash)
		if err != nil {
			if page > 0 {
				zap.L().Warn("Stopping pagination after page error",
					zap.Int("page", page),
					zap.Error(err))
				return all, nil
			}
			return nil, err
		}

		added := 0
		for _, tx := range batch {
			if tx.Hash == "" || seen[tx.Hash] {
				continue
			}
			seen[tx.Hash] = true
			all = append(all, tx)
			added++
		}

		if len(batch) < c.pageLimit || added == 0 {
			break
		}

		last := batch[len(batch)-1]
		lt, hash = last.Lt, last.Hash
	}

	return all, nil
}

func convertTransaction(raw rawTransaction) models.ChainTransaction {
	tx := models.ChainTransaction{
		Hash: raw.TransactionId.Hash,
		Lt:   raw.TransactionId.Lt,
		Time: time.Unix(raw.Utime, 0).UTC(),
	}
	if raw.InMsg == nil {
		return tx
	}

	tx.Source = raw.InMsg.Source
	if value, err := strconv.ParseInt(strings.TrimSpace(raw.InMsg.Value), 10, 64); err == nil {
		tx.AmountNanos = value
	}
	tx.Memo = extractMemo(raw.InMsg)
	return tx
}

// extractMemo prefers the plain message, falling back to base64 text in msg_data.
func extractMemo(msg *rawMessage) string {
	var memo string

	if len(msg.Message) > 0 {
		var text string
		if err := json.Unmarshal(msg.Message, &text); err == nil {
			memo = text
		}
	}

	if memo == "" && msg.MsgData != nil && msg.MsgData.Text != "" {
		if decoded, err := base64.StdEncoding.DecodeString(msg.MsgData.Text); err == nil {
			memo = string(decoded)
		}
	}

	return NormalizeMemo(memo)
}

// NormalizeMemo trims the memo and undoes percent-encoding when it is valid.
func NormalizeMemo(memo string) string {
	memo = strings.TrimSpace(memo)
	if decoded, err := url.PathUnescape(memo); err == nil && decoded != "" {
		memo = strings.TrimSpace(decoded)
	}
	return memo
}
