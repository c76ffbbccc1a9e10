package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lalith-99/echogram/internal/auth"
	"github.com/lalith-99/echogram/internal/models"
	"github.com/lalith-99/echogram/internal/social"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func callback(t *testing.T, env *testEnv, query, state string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/v1/members/social/kakao/callback?"+query, nil)
	if state != "" {
		req.AddCookie(&http.Cookie{Name: stateCookie, Value: state})
	}
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func TestKakaoLoginRedirects(t *testing.T) {
	env := newTestEnv(t)
	env.kakao.On("AuthCodeURL", mock.AnythingOfType("string")).Return("https://kauth.kakao.com/oauth/authorize?x=1")

	w := env.do(t, http.MethodGet, "/v1/members/social/kakao/login", 0, nil)

	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
	assert.Equal(t, "https://kauth.kakao.com/oauth/authorize?x=1", w.Header().Get("Location"))

	state := env.kakao.Calls[0].Arguments.String(0)
	var found bool
	for _, c := range w.Result().Cookies() {
		if c.Name == stateCookie {
			found = true
			assert.Equal(t, state, c.Value)
			assert.True(t, c.HttpOnly)
		}
	}
	assert.True(t, found, "state cookie not set")
}

func TestKakaoCallbackExistingMember(t *testing.T) {
	env := newTestEnv(t)
	env.kakao.On("Exchange", mock.Anything, "abc").Return(&social.Profile{Subject: "99", Email: "kim@kakao.com"}, nil)
	env.members.On("GetBySocialEmail", mock.Anything, models.SocialProviderKakao, "kim@kakao.com").
		Return(&models.Member{ID: 11}, nil)

	w := callback(t, env, "code=abc&state=s1", "s1")

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	claims, err := auth.ParseToken(decode[tokenResponse](t, w).AccessToken, testSecret)
	require.NoError(t, err)
	assert.Equal(t, int64(11), claims.UserID)
	env.members.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestKakaoCallbackCreatesMember(t *testing.T) {
	env := newTestEnv(t)
	env.kakao.On("Exchange", mock.Anything, "abc").Return(&social.Profile{Subject: "99", Email: "new@kakao.com"}, nil)
	env.members.On("GetBySocialEmail", mock.Anything, models.SocialProviderKakao, "new@kakao.com").Return(nil, nil)
	env.members.On("Create", mock.Anything, mock.MatchedBy(func(m *models.Member) bool {
		return len(m.Username) <= 16 &&
			m.Email != nil && *m.Email == "new@kakao.com" &&
			m.SocialProvider != nil && *m.SocialProvider == models.SocialProviderKakao &&
			m.SocialSubject != nil && *m.SocialSubject == "99" &&
			len(m.PasswordHash) == 60
	})).Return(&models.Member{ID: 12}, nil).Once()

	w := callback(t, env, "code=abc&state=s1", "s1")

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	env.members.AssertExpectations(t)
}

func TestKakaoCallbackFailures(t *testing.T) {
	t.Run("state mismatch", func(t *testing.T) {
		env := newTestEnv(t)
		w := callback(t, env, "code=abc&state=forged", "s1")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		env.kakao.AssertNotCalled(t, "Exchange", mock.Anything, mock.Anything)
	})

	t.Run("missing code", func(t *testing.T) {
		env := newTestEnv(t)
		w := callback(t, env, "state=s1", "s1")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("provider error", func(t *testing.T) {
		env := newTestEnv(t)
		env.kakao.On("Exchange", mock.Anything, "abc").Return(nil, errors.New("invalid_grant"))
		w := callback(t, env, "code=abc&state=s1", "s1")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "invalid", errorKind(t, w))
	})

	t.Run("no email shared", func(t *testing.T) {
		env := newTestEnv(t)
		env.kakao.On("Exchange", mock.Anything, "abc").Return(nil, social.ErrNoEmail)
		w := callback(t, env, "code=abc&state=s1", "s1")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "kakao account must share an email", decode[map[string]string](t, w)["detail"])
	})
}
