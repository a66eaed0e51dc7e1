// Package subscribers loads newsletter recipients from Firebase Realtime
// Database.
package subscribers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

var scopes = []string{
	"https://www.googleapis.com/auth/firebase.database",
	"https://www.googleapis.com/auth/userinfo.email",
}

type Client struct {
	DatabaseURL string
	HTTPClient  *http.Client
	Path        string // node holding the subscribers, default "subscribers"
}

// NewClient authenticates with a service-account JSON document.
func NewClient(ctx context.Context, credentialsJSON []byte, databaseURL string) (*Client, error) {
	if len(credentialsJSON) == 0 {
		return nil, errors.New("FIREBASE_CREDENTIALS is required")
	}
	if databaseURL == "" {
		return nil, errors.New("FIREBASE_DATABASE_URL is required")
	}
	creds, err := google.CredentialsFromJSON(ctx, credentialsJSON, scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse firebase credentials: %w", err)
	}
	hc := oauth2.NewClient(ctx, creds.TokenSource)
	hc.Timeout = 20 * time.Second
	return &Client{DatabaseURL: databaseURL, HTTPClient: hc}, nil
}

type subscriber struct {
	Email string `json:"email"`
}

// Emails returns subscriber addresses ordered by their database key.
// Blank and repeated addresses are skipped.
func (c *Client) Emails(ctx context.Context) ([]string, error) {
	path := c.Path
	if path == "" {
		path = "subscribers"
	}
	endpoint := strings.TrimRight(c.DatabaseURL, "/") + "/" + path + ".json"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	hc := c.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch subscribers: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read subscribers: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch subscribers: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	records, err := decodeSubscribers(body)
	if err != nil {
		return nil, fmt.Errorf("decode subscribers: %w", err)
	}

	seen := make(map[string]struct{}, len(records))
	emails := make([]string, 0, len(records))
	for _, rec := range records {
		email := strings.TrimSpace(rec.Email)
		if email == "" {
			continue
		}
		norm := strings.ToLower(email)
		if _, dup := seen[norm]; dup {
			continue
		}
		seen[norm] = struct{}{}
		emails = append(emails, email)
	}
	return emails, nil
}

// decodeSubscribers accepts both RTDB shapes: an object keyed by push id,
// returned in key order, and the array RTDB emits for sequential integer
// keys, returned in index order with null slots dropped.
func decodeSubscribers(body []byte) ([]subscriber, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []*subscriber
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, err
		}
		out := make([]subscriber, 0, len(list))
		for _, rec := range list {
			if rec != nil {
				out = append(out, *rec)
			}
		}
		return out, nil
	}

	var byKey map[string]subscriber
	if err := json.Unmarshal(trimmed, &byKey); err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]subscriber, 0, len(keys))
	for _, k := range keys {
		out = append(out, byKey[k])
	}
	return out, nil
}
