package cloud

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/openmotics-go/openmotics/pkg/client"
)

// Credentials obtains tokens with the OAuth2 client-credentials grant.
// Each call to Token performs a fresh exchange; the client caches the
// result until it expires or is rejected.
type Credentials struct {
	ClientID     string
	ClientSecret string

	// TokenURL defaults to the base URL given to New plus TokenPath.
	TokenURL string
	Scopes   []string

	HTTPClient *http.Client
}

// ClientCredentials returns a token source for an OAuth2 client.
func ClientCredentials(clientID, clientSecret string) *Credentials {
	return &Credentials{ClientID: clientID, ClientSecret: clientSecret}
}

// Token performs the client-credentials exchange.
func (c *Credentials) Token(ctx context.Context) (*client.Token, error) {
	if c.ClientID == "" || c.ClientSecret == "" {
		return nil, client.NewValidationError("client id and secret are required")
	}
	tokenURL := c.TokenURL
	if tokenURL == "" {
		tokenURL = DefaultBaseURL + TokenPath
	}
	cfg := &clientcredentials.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		TokenURL:     tokenURL,
		Scopes:       c.Scopes,
	}
	if c.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.HTTPClient)
	}
	tok, err := cfg.Token(ctx)
	if err != nil {
		return nil, tokenError(err, tokenURL)
	}
	return &client.Token{Value: tok.AccessToken, ExpiresAt: tok.Expiry}, nil
}

// OAuth2 adapts any oauth2.TokenSource, such as one built from a refresh
// token or a password grant.
func OAuth2(ts oauth2.TokenSource) client.TokenSource {
	return client.TokenFunc(func(context.Context) (*client.Token, error) {
		tok, err := ts.Token()
		if err != nil {
			return nil, tokenError(err, "")
		}
		return &client.Token{Value: tok.AccessToken, ExpiresAt: tok.Expiry}, nil
	})
}

func tokenError(err error, tokenURL string) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		status := http.StatusUnauthorized
		if re.Response != nil {
			status = re.Response.StatusCode
		}
		e := client.NewAuthError(status, "client credentials rejected")
		e.VendorMessage = re.ErrorDescription
		if e.VendorMessage == "" {
			e.VendorMessage = client.VendorMessage(re.Body)
		}
		e.Err = err
		return e
	}
	host := ""
	if u, perr := url.Parse(tokenURL); perr == nil {
		host = u.Host
	}
	return client.ClassifyNetworkError(err, host)
}
