// Package credential obtains bearer tokens used as the database password
// when the service authenticates with a cloud identity instead of a SQL login.
package credential

import (
	"context"
	"errors"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"golang.org/x/oauth2"
)

// ErrNoToken indicates that no access token could be acquired.
var ErrNoToken = errors.New("no access token available")

// Provider returns an access token for the database.
type Provider interface {
	Token(ctx context.Context) (*oauth2.Token, error)
}

// Func adapts an ordinary function to the Provider interface.
type Func func(ctx context.Context) (*oauth2.Token, error)

// Token implements Provider.
func (f Func) Token(ctx context.Context) (*oauth2.Token, error) {
	return f(ctx)
}

// Azure requests tokens for a single scope from an Azure credential.
type Azure struct {
	cred  azcore.TokenCredential
	scope string
}

// NewAzure wraps an Azure credential.
func NewAzure(cred azcore.TokenCredential, scope string) *Azure {
	return &Azure{cred: cred, scope: scope}
}

// Token implements Provider.
func (a *Azure) Token(ctx context.Context) (*oauth2.Token, error) {
	at, err := a.cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{a.scope}})
	if err != nil {
		return nil, fmt.Errorf("%w: azure credential for %s: %w", ErrNoToken, a.scope, err)
	}
	if at.Token == "" {
		return nil, fmt.Errorf("%w: azure credential returned an empty token", ErrNoToken)
	}
	return &oauth2.Token{
		AccessToken: at.Token,
		TokenType:   "Bearer",
		Expiry:      at.ExpiresOn,
	}, nil
}

// NewDefault builds the production chain: managed identity first, then the
// default Azure credential (environment, workload identity, Azure CLI) so the
// same binary works on a developer machine. clientID selects a user-assigned
// managed identity; leave it empty for the system-assigned one.
func NewDefault(clientID, scope string) (*Azure, error) {
	var miOpts *azidentity.ManagedIdentityCredentialOptions
	if clientID != "" {
		miOpts = &azidentity.ManagedIdentityCredentialOptions{ID: azidentity.ClientID(clientID)}
	}
	mi, err := azidentity.NewManagedIdentityCredential(miOpts)
	if err != nil {
		return nil, fmt.Errorf("managed identity credential: %w", err)
	}
	def, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("default azure credential: %w", err)
	}
	chain, err := azidentity.NewChainedTokenCredential([]azcore.TokenCredential{mi, def}, nil)
	if err != nil {
		return nil, fmt.Errorf("chained credential: %w", err)
	}
	return NewAzure(chain, scope), nil
}

// FromTokenSource adapts an oauth2.TokenSource, e.g. oauth2.StaticTokenSource
// for a pre-issued token.
func FromTokenSource(src oauth2.TokenSource) Provider {
	return Func(func(context.Context) (*oauth2.Token, error) {
		tok, err := src.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrNoToken, err)
		}
		return tok, nil
	})
}

// Static always returns the same token.
func Static(token string) Provider {
	return FromTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}))
}
