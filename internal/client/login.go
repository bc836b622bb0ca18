package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Login exchanges email and password for Credentials over the REST API.
// A rejected login comes back as a ServerError with the API's error code.
func Login(ctx context.Context, hc *http.Client, baseURL, email, password string) (Credentials, error) {
	if hc == nil {
		hc = http.DefaultClient
	}

	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return Credentials{}, err
	}
	endpoint := strings.TrimRight(baseURL, "/") + "/api/v1/auth/login"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Credentials{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return Credentials{}, fmt.Errorf("logging in: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var failure struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&failure); err != nil || failure.Error.Code == "" {
			return Credentials{}, fmt.Errorf("logging in: unexpected status %d", resp.StatusCode)
		}
		return Credentials{}, ServerError{Code: failure.Error.Code, Message: failure.Error.Message}
	}

	var ok struct {
		User struct {
			ID uuid.UUID `json:"id"`
		} `json:"user"`
		AccessToken string    `json:"access_token"`
		ExpiresAt   time.Time `json:"expires_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ok); err != nil {
		return Credentials{}, fmt.Errorf("decoding login: %w", err)
	}
	return Credentials{Token: ok.AccessToken, UserID: ok.User.ID, ExpiresAt: ok.ExpiresAt}, nil
}
