// Package switchbot talks to the SwitchBot account services: the Cognito
// hosted login that issues access tokens, and the key API that hands out a
// lock's encryption key.
package switchbot

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	apperrors "github.com/naotama2002/switchbot-key/internal/errors"
	"github.com/naotama2002/switchbot-key/internal/httpclient"
)

const (
	ResponseTypeToken = "token"
	ResponseTypeCode  = "code"

	identityProvider = "COGNITO"
	callbackHost     = "callback"
)

// ProviderConfig describes the hosted login client.
type ProviderConfig struct {
	// Domain is the hosted UI base URL.
	Domain       string
	ClientID     string
	ClientSecret string
	// Scheme receives the redirect as <scheme>://callback.
	Scheme       string
	ResponseType string
	HTTP         *httpclient.Client
}

// Provider builds authorize URLs and turns redirects into access tokens.
type Provider struct {
	oauth        oauth2.Config
	scheme       string
	responseType string
	http         *httpclient.Client
}

// Session holds the secrets of one authorization attempt.
type Session struct {
	State    string
	Verifier string
}

// Callback is the parsed redirect.
type Callback struct {
	AccessToken string
	IDToken     string
	TokenType   string
	ExpiresIn   int
	Code        string
	State       string
}

// NewProvider validates cfg and returns a Provider.
func NewProvider(cfg ProviderConfig) (*Provider, error) {
	if cfg.Domain == "" || cfg.ClientID == "" {
		return nil, apperrors.NewConfigurationError("hosted login domain and client id are required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.Domain, "/"))
	if err != nil || (base.Scheme != "https" && base.Scheme != "http") || base.Host == "" {
		return nil, apperrors.NewConfigurationError("invalid hosted login domain").WithDetails(cfg.Domain)
	}

	responseType := cfg.ResponseType
	if responseType == "" {
		responseType = ResponseTypeToken
	}
	if responseType != ResponseTypeToken && responseType != ResponseTypeCode {
		return nil, apperrors.NewConfigurationError("unsupported response type").WithDetails(responseType)
	}

	client := cfg.HTTP
	if client == nil {
		client = httpclient.New(nil)
	}

	return &Provider{
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:  base.String() + "/oauth2/authorize",
				TokenURL: base.String() + "/oauth2/token",
			},
			RedirectURL: cfg.Scheme + "://" + callbackHost,
		},
		scheme:       cfg.Scheme,
		responseType: responseType,
		http:         client,
	}, nil
}

// RedirectURI is where the hosted login sends the browser back to.
func (p *Provider) RedirectURI() string {
	return p.oauth.RedirectURL
}

// NewSession creates the state and, for the code flow, the PKCE verifier.
func (p *Provider) NewSession() (*Session, error) {
	s := &Session{State: uuid.NewString()}
	if p.responseType == ResponseTypeCode {
		v, err := GenerateCodeVerifier()
		if err != nil {
			return nil, err
		}
		s.Verifier = v
	}
	return s, nil
}

// AuthorizeURL returns the hosted login page for s.
func (p *Provider) AuthorizeURL(s *Session) string {
	opts := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("response_type", p.responseType),
		oauth2.SetAuthURLParam("identity_provider", identityProvider),
	}
	if s.Verifier != "" {
		opts = append(opts,
			oauth2.SetAuthURLParam("code_challenge", ComputeCodeChallenge(s.Verifier)),
			oauth2.SetAuthURLParam("code_challenge_method", "S256"))
	}
	return p.oauth.AuthCodeURL(s.State, opts...)
}

// ParseCallback reads the redirect URL. The implicit flow returns its
// parameters in the fragment, the code flow in the query.
func (p *Provider) ParseCallback(raw string, s *Session) (*Callback, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, apperrors.NewValidationError("malformed callback URL").WithDetails(err.Error())
	}
	if !strings.EqualFold(u.Scheme, p.scheme) {
		return nil, apperrors.NewValidationError("callback has unexpected scheme").WithDetails(u.Scheme)
	}

	params := u.Query()
	if u.Fragment != "" {
		fragment, err := url.ParseQuery(u.EscapedFragment())
		if err != nil {
			return nil, apperrors.NewValidationError("malformed callback fragment").WithDetails(err.Error())
		}
		for k, v := range fragment {
			params[k] = v
		}
	}

	if e := params.Get("error"); e != "" {
		msg := "authorization failed: " + e
		if d := params.Get("error_description"); d != "" {
			msg += ": " + d
		}
		return nil, apperrors.NewAuthenticationError(msg)
	}

	cb := &Callback{
		AccessToken: params.Get("access_token"),
		IDToken:     params.Get("id_token"),
		TokenType:   params.Get("token_type"),
		Code:        params.Get("code"),
		State:       params.Get("state"),
	}
	if v := params.Get("expires_in"); v != "" {
		cb.ExpiresIn, _ = strconv.Atoi(v)
	}

	if s != nil && s.State != "" && cb.State != s.State {
		return nil, apperrors.NewValidationError("callback state does not match the request")
	}
	if cb.AccessToken == "" && cb.Code == "" {
		return nil, apperrors.NewValidationError("callback carries neither an access token nor a code")
	}
	return cb, nil
}

// Token returns the access token carried by cb, exchanging the
// authorization code first when needed.
func (p *Provider) Token(ctx context.Context, cb *Callback, s *Session) (string, error) {
	if cb.AccessToken != "" {
		return cb.AccessToken, nil
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.http.HTTPClient())
	var opts []oauth2.AuthCodeOption
	if s != nil && s.Verifier != "" {
		opts = append(opts, oauth2.VerifierOption(s.Verifier))
	}

	tok, err := p.oauth.Exchange(ctx, cb.Code, opts...)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.AuthenticationError, "failed to exchange authorization code")
	}
	return tok.AccessToken, nil
}
