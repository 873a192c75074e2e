package executor

import (
	"fmt"
	"net/http"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/mcigo/mci/pkg/schema"
	"github.com/mcigo/mci/pkg/template"
)

// applyAuth resolves the auth block's templated secrets and applies them to
// the request. Resolution happens here, immediately before the request is
// sent, so OAuth2 token fetches and short-lived secrets are never cached in
// the resolved descriptor.
func (d *Dispatcher) applyAuth(req *http.Request, a *schema.Auth, tctx *template.Context) error {
	switch a.Type {
	case schema.AuthAPIKey:
		name, err := d.render(a.Name, tctx)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrAuth, err)
		}
		value, err := d.render(a.Value, tctx)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrAuth, err)
		}
		if a.In == "query" {
			q := req.URL.Query()
			q.Set(name, value)
			req.URL.RawQuery = q.Encode()
		} else {
			req.Header.Set(name, value)
		}

	case schema.AuthBearer:
		token, err := d.render(a.Token, tctx)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrAuth, err)
		}
		req.Header.Set("Authorization", "Bearer "+token)

	case schema.AuthBasic:
		username, err := d.render(a.Username, tctx)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrAuth, err)
		}
		password, err := d.render(a.Password, tctx)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrAuth, err)
		}
		req.SetBasicAuth(username, password)

	case schema.AuthOAuth2:
		return d.applyOAuth2(req, a, tctx)

	default:
		return fmt.Errorf("%w: unknown auth type %q", ErrAuth, a.Type)
	}

	return nil
}

// applyOAuth2 performs a client-credentials token request and applies the
// access token as a bearer header. A token fetch failure fails the whole
// call.
func (d *Dispatcher) applyOAuth2(req *http.Request, a *schema.Auth, tctx *template.Context) error {
	tokenURL, err := d.render(a.TokenURL, tctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuth, err)
	}
	clientID, err := d.render(a.ClientID, tctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuth, err)
	}
	clientSecret, err := d.render(a.ClientSecret, tctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuth, err)
	}

	scopes := make([]string, 0, len(a.Scopes))
	for _, s := range a.Scopes {
		scope, err := d.render(s, tctx)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrAuth, err)
		}
		scopes = append(scopes, scope)
	}

	cfg := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		Scopes:       scopes,
	}

	token, err := cfg.Token(req.Context())
	if err != nil {
		return fmt.Errorf("%w: token fetch failed: %v", ErrAuth, err)
	}

	token.SetAuthHeader(req)
	return nil
}
