package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const goodToken = "123456789:AAHfakeTokenForTestsOnly_abcdefghijk"

func fakeAPI(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !strings.HasSuffix(r.URL.Path, "/getMe") {
			fmt.Fprint(w, `{"ok":true,"result":true}`)
			return
		}
		if strings.Contains(r.URL.Path, goodToken) {
			fmt.Fprint(w, `{"ok":true,"result":{"id":123456789,"is_bot":true,"first_name":"Shop","username":"shop_bot"}}`)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"ok":false,"error_code":401,"description":"Unauthorized"}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestValidateAcceptsKnownToken(t *testing.T) {
	srv := fakeAPI(t)
	v := &Validator{Client: srv.Client(), APIURL: srv.URL}

	id, err := v.Validate(context.Background(), goodToken)
	require.NoError(t, err)
	require.Equal(t, Identity{ID: 123456789, Username: "shop_bot", FirstName: "Shop"}, id)
}

func TestValidateRejectsUnknownToken(t *testing.T) {
	srv := fakeAPI(t)
	v := &Validator{Client: srv.Client(), APIURL: srv.URL}

	_, err := v.Validate(context.Background(), "987654321:AAHotherTokenThatTelegramRejects_xyz")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsMalformedToken(t *testing.T) {
	v := &Validator{}
	for _, token := range []string{"", "abc", "123:short", "notdigits:AAHfakeTokenForTestsOnly_abcdefghijk"} {
		_, err := v.Validate(context.Background(), token)
		require.ErrorIs(t, err, ErrInvalidToken, token)
	}
}

func TestStatusCode(t *testing.T) {
	require.Equal(t, 401, statusCode(errors.New("telegram: Unauthorized (401)")))
	require.Equal(t, 0, statusCode(errors.New("dial tcp: refused")))
	require.True(t, rejected(errors.New("telegram: Not Found (404)")))
	require.False(t, rejected(errors.New("telegram: Internal Server Error (500)")))
}
