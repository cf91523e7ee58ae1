package switchbot

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	apperrors "github.com/naotama2002/switchbot-key/internal/errors"
	"github.com/naotama2002/switchbot-key/internal/httpclient"
)

const (
	keyPath       = "/developStage/keys/v1/communicate"
	statusSuccess = 100
)

var macPattern = regexp.MustCompile(`^[0-9A-F]{12}$`)

// EncryptionKey is a lock's communication key.
type EncryptionKey struct {
	KeyID string
	Key   string
}

// KeyClient retrieves encryption keys from the SwitchBot key API.
type KeyClient struct {
	baseURL string
	http    *httpclient.Client
}

func NewKeyClient(baseURL string, client *httpclient.Client) *KeyClient {
	if client == nil {
		client = httpclient.New(nil)
	}
	return &KeyClient{baseURL: strings.TrimRight(baseURL, "/"), http: client}
}

// NormalizeMAC strips ':' and '-' separators and upper-cases mac.
func NormalizeMAC(mac string) (string, error) {
	norm := strings.ToUpper(strings.NewReplacer(":", "", "-", "").Replace(strings.TrimSpace(mac)))
	if !macPattern.MatchString(norm) {
		return "", apperrors.NewValidationError("invalid device MAC address").WithDetails(mac)
	}
	return norm, nil
}

type keyRequest struct {
	DeviceMAC string `json:"device_mac"`
	KeyType   string `json:"keyType"`
}

type keyResponse struct {
	StatusCode int `json:"statusCode"`
	Body       struct {
		CommunicationKey struct {
			KeyID string `json:"keyId"`
			Key   string `json:"key"`
		} `json:"communicationKey"`
	} `json:"body"`
}

// RetrieveEncryptionKey fetches the user key of the lock at mac.
func (c *KeyClient) RetrieveEncryptionKey(ctx context.Context, mac, accessToken string) (*EncryptionKey, error) {
	deviceMAC, err := NormalizeMAC(mac)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.PostJSON(ctx, c.baseURL+keyPath, "",
		keyRequest{DeviceMAC: deviceMAC, KeyType: "user"},
		map[string]string{"authorization": accessToken})
	if resp != nil && resp.StatusCode > 299 {
		return nil, apperrors.NewAuthenticationError(
			fmt.Sprintf("unexpected status code returned by SwitchBot Account API: %d", resp.StatusCode)).
			WithStatusCode(resp.StatusCode)
	}
	if err != nil {
		return nil, apperrors.NewNetworkError("failed to retrieve encryption key from SwitchBot Account").WithCause(err)
	}

	var out keyResponse
	if err := resp.JSON(&out); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ServerError, "malformed key API response")
	}
	if out.StatusCode != statusSuccess {
		return nil, apperrors.NewAuthenticationError(
			fmt.Sprintf("unexpected status code returned by SwitchBot API: %d", out.StatusCode))
	}

	key := out.Body.CommunicationKey
	if key.KeyID == "" || key.Key == "" {
		return nil, apperrors.NewServerError("key API response has no communication key")
	}
	return &EncryptionKey{KeyID: key.KeyID, Key: key.Key}, nil
}
