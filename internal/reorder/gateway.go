package reorder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"core-playlist-service/internal/coreplaylist"
)

// HTTPGateway drives the service's reorder endpoints. Which sibling level it
// targets is fixed at construction: sections of a playlist, or media of a
// section.
type HTTPGateway struct {
	baseURL string
	token   string
	client  *http.Client

	path       func(parentID string) string
	itemsField string
	verField   string
}

// NewSectionsGateway reorders the sections of a playlist.
func NewSectionsGateway(baseURL, token string, client *http.Client) *HTTPGateway {
	return newHTTPGateway(baseURL, token, client,
		func(id string) string { return "/playlists/" + id + "/sections/order" },
		"sectionOrders", "sectionsVersion")
}

// NewSectionMediaGateway reorders the media of a section.
func NewSectionMediaGateway(baseURL, token string, client *http.Client) *HTTPGateway {
	return newHTTPGateway(baseURL, token, client,
		func(id string) string { return "/sections/" + id + "/medias/order" },
		"reorderedItems", "mediasVersion")
}

func newHTTPGateway(baseURL, token string, client *http.Client, path func(string) string, itemsField, verField string) *HTTPGateway {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPGateway{
		baseURL:    baseURL,
		token:      token,
		client:     client,
		path:       path,
		itemsField: itemsField,
		verField:   verField,
	}
}

func (g *HTTPGateway) Reorder(ctx context.Context, parentID string, items []coreplaylist.OrderPair, baseVersion int64) (int64, error) {
	payload := map[string]any{
		g.itemsField:  items,
		"baseVersion": baseVersion,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, g.baseURL+g.path(parentID), bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Code != "" {
			return 0, fmt.Errorf("reorder rejected: %s (%s)", e.Error, e.Code)
		}
		return 0, fmt.Errorf("reorder rejected: status %d", resp.StatusCode)
	}

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, err
	}
	if v, ok := out[g.verField].(float64); ok {
		return int64(v), nil
	}
	return 0, nil
}
