// Package directory reads user profiles from the identity provider's Backend API.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"secretvault/internal/apperr"
)

// pageSize is the largest page the Backend API serves.
const pageSize = 500

// ErrNotFound means the provider has no user with the requested ID.
var ErrNotFound = errors.New("profile not found")

// Profile holds the provider-side attributes of a user.
// Nil fields mean the provider has no value.
type Profile struct {
	ID        string  `json:"id"`
	Email     *string `json:"email"`
	Username  *string `json:"username"`
	ImageURL  *string `json:"image_url"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
}

// Client talks to the Backend API with the instance secret key.
type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

// NewClient creates a new directory client.
func NewClient(baseURL, secretKey string) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("base URL is required")
	}
	if secretKey == "" {
		return nil, errors.New("secret key is required")
	}
	return &Client{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		secretKey: secretKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}, nil
}

type emailAddress struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
}

type apiUser struct {
	ID                    string         `json:"id"`
	Username              *string        `json:"username"`
	FirstName             *string        `json:"first_name"`
	LastName              *string        `json:"last_name"`
	ImageURL              *string        `json:"image_url"`
	PrimaryEmailAddressID *string        `json:"primary_email_address_id"`
	EmailAddresses        []emailAddress `json:"email_addresses"`
}

func (u apiUser) profile() Profile {
	return Profile{
		ID:        u.ID,
		Email:     u.email(),
		Username:  u.Username,
		ImageURL:  u.ImageURL,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

// email prefers the primary address and falls back to the first one.
func (u apiUser) email() *string {
	if len(u.EmailAddresses) == 0 {
		return nil
	}
	if u.PrimaryEmailAddressID != nil {
		for _, e := range u.EmailAddresses {
			if e.ID == *u.PrimaryEmailAddressID {
				addr := e.EmailAddress
				return &addr
			}
		}
	}
	addr := u.EmailAddresses[0].EmailAddress
	return &addr
}

// ListUsers returns every profile known to the provider, newest first.
func (c *Client) ListUsers(ctx context.Context) ([]Profile, error) {
	var profiles []Profile
	for offset := 0; ; offset += pageSize {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(pageSize))
		q.Set("offset", strconv.Itoa(offset))
		q.Set("order_by", "-created_at")

		var page []apiUser
		if err := c.get(ctx, "/users?"+q.Encode(), &page); err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, apperr.Upstream(errors.New("directory user listing not found"))
			}
			return nil, err
		}
		for _, u := range page {
			profiles = append(profiles, u.profile())
		}
		if len(page) < pageSize {
			return profiles, nil
		}
	}
}

// GetUser returns the profile for a single user.
func (c *Client) GetUser(ctx context.Context, id string) (*Profile, error) {
	if id == "" {
		return nil, ErrNotFound
	}

	var u apiUser
	if err := c.get(ctx, "/users/"+url.PathEscape(id), &u); err != nil {
		return nil, err
	}
	p := u.profile()
	return &p, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build directory request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperr.Upstream(fmt.Errorf("directory request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return apperr.Upstream(fmt.Errorf("directory returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperr.Upstream(fmt.Errorf("failed to decode directory response: %w", err))
	}
	return nil
}
