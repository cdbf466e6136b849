package credential

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type fakeAzureCredential struct {
	token  string
	expiry time.Time
	err    error
	scopes []string
}

func (f *fakeAzureCredential) GetToken(_ context.Context, opts policy.TokenRequestOptions) (azcore.AccessToken, error) {
	f.scopes = opts.Scopes
	if f.err != nil {
		return azcore.AccessToken{}, f.err
	}
	return azcore.AccessToken{Token: f.token, ExpiresOn: f.expiry}, nil
}

func TestAzure_Token(t *testing.T) {
	exp := time.Now().Add(time.Hour)
	fake := &fakeAzureCredential{token: "aad-token", expiry: exp}
	p := NewAzure(fake, "https://ossrdbms-aad.database.windows.net/.default")

	tok, err := p.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "aad-token", tok.AccessToken)
	assert.Equal(t, "Bearer", tok.TokenType)
	assert.True(t, tok.Expiry.Equal(exp))
	assert.Equal(t, []string{"https://ossrdbms-aad.database.windows.net/.default"}, fake.scopes)
}

func TestAzure_TokenError(t *testing.T) {
	p := NewAzure(&fakeAzureCredential{err: errors.New("imds unreachable")}, "scope")

	_, err := p.Token(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestAzure_EmptyToken(t *testing.T) {
	p := NewAzure(&fakeAzureCredential{}, "scope")

	_, err := p.Token(context.Background())
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestStatic(t *testing.T) {
	tok, err := Static("fixed").Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fixed", tok.AccessToken)
	assert.True(t, tok.Valid())
}

type failingSource struct{}

func (failingSource) Token() (*oauth2.Token, error) { return nil, errors.New("boom") }

func TestFromTokenSource_Error(t *testing.T) {
	_, err := FromTokenSource(failingSource{}).Token(context.Background())
	assert.ErrorIs(t, err, ErrNoToken)
}
