package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/br-g/fastf1-livetiming/errors"
	"github.com/br-g/fastf1-livetiming/testutil"
)

func TestNegotiateSuccess(t *testing.T) {
	server := testutil.NewFeedServer(testutil.Script{})
	defer server.Close()

	n := NewNegotiator(server.URL(), "Streaming", NoAuth(), nil, nil)
	neg, err := n.Negotiate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "tok-1", neg.ConnectionToken)
	assert.Equal(t, "1.5", neg.ProtocolVersion)
	assert.Equal(t, 20*time.Second, neg.KeepAliveTimeout)

	var names []string
	for _, c := range neg.Cookies {
		names = append(names, c.Name)
	}
	assert.Contains(t, names, "GCLB")
}

func TestNegotiateEachCallYieldsFreshToken(t *testing.T) {
	server := testutil.NewFeedServer(testutil.Script{})
	defer server.Close()

	n := NewNegotiator(server.URL(), "Streaming", NoAuth(), nil, nil)
	first, err := n.Negotiate(context.Background())
	require.NoError(t, err)
	second, err := n.Negotiate(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, first.ConnectionToken, second.ConnectionToken)
	assert.Equal(t, 2, server.Negotiations())
}

func TestNegotiateUnauthorized(t *testing.T) {
	server := testutil.NewFeedServer(testutil.Script{})
	defer server.Close()
	server.RejectAuth()

	n := NewNegotiator(server.URL(), "Streaming", BearerAuth("expired"), nil, nil)
	_, err := n.Negotiate(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnauthorized)
	assert.True(t, errors.IsFatal(err))
}

func TestNegotiateUnreachable(t *testing.T) {
	server := testutil.NewFeedServer(testutil.Script{})
	base := server.URL()
	server.Close()

	n := NewNegotiator(base, "Streaming", NoAuth(), nil, nil)
	_, err := n.Negotiate(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnreachable)
	assert.True(t, errors.IsTransient(err))
}

func TestNegotiateServerError(t *testing.T) {
	server := testutil.NewFeedServer(testutil.Script{})
	defer server.Close()
	server.FailNegotiations(1)

	n := NewNegotiator(server.URL(), "Streaming", NoAuth(), nil, nil)
	_, err := n.Negotiate(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnreachable)
	assert.True(t, errors.IsTransient(err))
}

func TestNegotiateSendsCredentials(t *testing.T) {
	var gotAuth, gotCookie string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotCookie = r.Header.Get("Cookie")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ConnectionToken":"tok","ProtocolVersion":"1.5","KeepAliveTimeout":20.0}`))
	}))
	defer srv.Close()

	n := NewNegotiator(srv.URL, "Streaming", BearerAuth("secret"), nil, nil)
	_, err := n.Negotiate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", gotAuth)

	n = NewNegotiator(srv.URL, "Streaming", SessionAuth("cred"), nil, nil)
	_, err = n.Negotiate(context.Background())
	require.NoError(t, err)
	assert.Contains(t, gotCookie, "account-session=cred")
}
