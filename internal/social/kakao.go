// Package social signs members in with an external identity provider.
package social

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
)

const kakaoProfileURL = "https://kapi.kakao.com/v2/user/me"

var kakaoEndpoint = oauth2.Endpoint{
	AuthURL:   "https://kauth.kakao.com/oauth/authorize",
	TokenURL:  "https://kauth.kakao.com/oauth/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

// ErrNoEmail is returned when the member did not consent to share an email.
var ErrNoEmail = errors.New("kakao account has no email")

// Profile is what the rest of the server needs from the provider.
type Profile struct {
	Subject string
	Email   string
}

type KakaoClient struct {
	oauth      *oauth2.Config
	profileURL string
}

func NewKakaoClient(restAPIKey, clientSecret, redirectURL string) *KakaoClient {
	return &KakaoClient{
		oauth: &oauth2.Config{
			ClientID:     restAPIKey,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     kakaoEndpoint,
		},
		profileURL: kakaoProfileURL,
	}
}

// WithEndpoints points the client at other URLs. Tests use it to talk to
// an httptest server.
func (k *KakaoClient) WithEndpoints(authURL, tokenURL, profileURL string) *KakaoClient {
	cfg := *k.oauth
	cfg.Endpoint = oauth2.Endpoint{AuthURL: authURL, TokenURL: tokenURL, AuthStyle: oauth2.AuthStyleInParams}
	return &KakaoClient{oauth: &cfg, profileURL: profileURL}
}

// AuthCodeURL is where the browser is sent to consent.
func (k *KakaoClient) AuthCodeURL(state string) string {
	return k.oauth.AuthCodeURL(state)
}

type kakaoProfile struct {
	ID           int64 `json:"id"`
	KakaoAccount struct {
		Email string `json:"email"`
	} `json:"kakao_account"`
}

// Exchange trades the authorization code for a token and fetches the
// member's profile with it.
func (k *KakaoClient) Exchange(ctx context.Context, code string) (*Profile, error) {
	token, err := k.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.profileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build profile request: %w", err)
	}
	resp, err := k.oauth.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch profile: status %d", resp.StatusCode)
	}

	var p kakaoProfile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	if p.KakaoAccount.Email == "" {
		return nil, ErrNoEmail
	}

	return &Profile{
		Subject: strconv.FormatInt(p.ID, 10),
		Email:   p.KakaoAccount.Email,
	}, nil
}
