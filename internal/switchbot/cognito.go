package switchbot

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	apperrors "github.com/naotama2002/switchbot-key/internal/errors"
	"github.com/naotama2002/switchbot-key/internal/httpclient"
)

const (
	amzJSON            = "application/x-amz-json-1.1"
	initiateAuthTarget = "AWSCognitoIdentityProviderService.InitiateAuth"
)

// CognitoConfig describes the user pool client used for password login.
type CognitoConfig struct {
	Region       string
	ClientID     string
	ClientSecret string
	// Endpoint overrides https://cognito-idp.<region>.amazonaws.com/.
	Endpoint string
	HTTP     *httpclient.Client
}

// CognitoClient signs users in with a username and password.
type CognitoClient struct {
	endpoint     string
	clientID     string
	clientSecret string
	http         *httpclient.Client
}

func NewCognitoClient(cfg CognitoConfig) (*CognitoClient, error) {
	if cfg.ClientID == "" {
		return nil, apperrors.NewConfigurationError("client id is required for password login")
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		if cfg.Region == "" {
			return nil, apperrors.NewConfigurationError("region is required for password login")
		}
		endpoint = fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/", cfg.Region)
	}
	client := cfg.HTTP
	if client == nil {
		client = httpclient.New(nil)
	}
	return &CognitoClient{
		endpoint:     endpoint,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		http:         client,
	}, nil
}

// SecretHash is base64(HMAC-SHA256(secret, username+clientID)).
func SecretHash(secret, username, clientID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(username + clientID))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

type initiateAuthRequest struct {
	AuthFlow       string            `json:"AuthFlow"`
	ClientID       string            `json:"ClientId"`
	AuthParameters map[string]string `json:"AuthParameters"`
}

type initiateAuthResponse struct {
	AuthenticationResult *struct {
		AccessToken string `json:"AccessToken"`
		IDToken     string `json:"IdToken"`
		ExpiresIn   int    `json:"ExpiresIn"`
	} `json:"AuthenticationResult"`
	ChallengeName string `json:"ChallengeName"`
}

type cognitoError struct {
	Type    string `json:"__type"`
	Message string `json:"message"`
}

// PasswordLogin runs USER_PASSWORD_AUTH and returns the access token.
func (c *CognitoClient) PasswordLogin(ctx context.Context, username, password string) (string, error) {
	params := map[string]string{
		"USERNAME": username,
		"PASSWORD": password,
	}
	if c.clientSecret != "" {
		params["SECRET_HASH"] = SecretHash(c.clientSecret, username, c.clientID)
	}

	resp, err := c.http.PostJSON(ctx, c.endpoint, amzJSON, initiateAuthRequest{
		AuthFlow:       "USER_PASSWORD_AUTH",
		ClientID:       c.clientID,
		AuthParameters: params,
	}, map[string]string{"X-Amz-Target": initiateAuthTarget})
	if err != nil {
		if resp != nil {
			var ce cognitoError
			if jsonErr := resp.JSON(&ce); jsonErr == nil && ce.Type != "" {
				return "", apperrors.Wrap(err, apperrors.AuthenticationError, "failed to authenticate: "+ce.Message).WithDetails(ce.Type)
			}
		}
		return "", apperrors.Wrap(err, apperrors.AuthenticationError, "unexpected error during authentication")
	}

	var out initiateAuthResponse
	if err := resp.JSON(&out); err != nil {
		return "", apperrors.Wrap(err, apperrors.AuthenticationError, "unexpected authentication response")
	}
	if out.ChallengeName != "" {
		return "", apperrors.NewAuthenticationError("login requires an unsupported challenge").WithDetails(out.ChallengeName)
	}
	if out.AuthenticationResult == nil || out.AuthenticationResult.AccessToken == "" {
		return "", apperrors.NewAuthenticationError("unexpected authentication response")
	}
	return out.AuthenticationResult.AccessToken, nil
}
