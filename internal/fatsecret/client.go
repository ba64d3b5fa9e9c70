package fatsecret

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"proviant/internal/models"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	tokenURL = "https://oauth.fatsecret.com/connect/token"
	apiURL   = "https://platform.fatsecret.com/rest/server.api"

	defaultLimit = 5
	maxLimit     = 50
)

// Client ходит в FatSecret Platform API за подсказками названий продуктов.
// Токен client_credentials живёт внутри oauth2-транспорта и обновляется сам.
type Client struct {
	httpClient *http.Client
	apiURL     string
	logger     *zerolog.Logger
}

func NewClient(clientID, clientSecret string, logger *zerolog.Logger) *Client {
	cfg := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		Scopes:       []string{"basic"},
	}

	httpClient := cfg.Client(context.Background())
	httpClient.Timeout = 30 * time.Second

	return &Client{
		httpClient: httpClient,
		apiURL:     apiURL,
		logger:     logger,
	}
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type searchResponse struct {
	Foods struct {
		// При одном совпадении API кладёт сюда объект вместо массива.
		Food json.RawMessage `json:"food"`
	} `json:"foods"`
	Error *apiError `json:"error"`
}

type foodEntry struct {
	FoodID          string `json:"food_id"`
	FoodName        string `json:"food_name"`
	BrandName       string `json:"brand_name"`
	FoodDescription string `json:"food_description"`
}

// SearchFoods выполняет foods.search и возвращает до limit совпадений.
func (c *Client) SearchFoods(ctx context.Context, query string, limit int) ([]models.FoodSuggestion, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	form := url.Values{
		"method":            {"foods.search"},
		"format":            {"json"},
		"search_expression": {query},
		"max_results":       {strconv.Itoa(limit)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("foods.search request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("foods.search returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("fatsecret error %d: %s", parsed.Error.Code, parsed.Error.Message)
	}

	entries, err := decodeFoodEntries(parsed.Foods.Food)
	if err != nil {
		return nil, err
	}

	suggestions := make([]models.FoodSuggestion, 0, len(entries))
	for _, entry := range entries {
		if entry.FoodName == "" {
			continue
		}
		suggestions = append(suggestions, models.FoodSuggestion{
			ID:          entry.FoodID,
			Name:        entry.FoodName,
			Brand:       entry.BrandName,
			Description: entry.FoodDescription,
		})
		if len(suggestions) == limit {
			break
		}
	}

	c.logger.Debug().Str("query", query).Int("found", len(suggestions)).Msg("FatSecret search finished")
	return suggestions, nil
}

func decodeFoodEntries(raw json.RawMessage) ([]foodEntry, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var entries []foodEntry
	if err := json.Unmarshal(raw, &entries); err == nil {
		return entries, nil
	}

	var single foodEntry
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, fmt.Errorf("decode foods payload: %w", err)
	}
	return []foodEntry{single}, nil
}
