package handlers

import (
	"net/http"
	"strings"
	"testing"

	"noisewatch/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func TestUserHandler_UpdateProfilePhoto(t *testing.T) {
	env := newTestEnv(t)
	isProfileName := mock.MatchedBy(func(name string) bool {
		return strings.HasPrefix(name, "profile-"+testCitizen.ID+"-") && strings.HasSuffix(name, ".png")
	})
	env.media.On("Save", mock.Anything, isProfileName, "image/png").Return("/media/profile.png", nil).Once()

	updated := *testCitizen
	updated.ProfilePhoto = "/media/profile.png"
	env.users.On("UpdateProfilePhoto", mock.Anything, testCitizen.ID, "/media/profile.png").Return(&updated, nil).Once()

	body, ct := multipartBody(t, "photo", "me.png", pngHeader, nil)
	w := env.do(request{method: http.MethodPut, path: "/users/me/profile-photo", body: body, contentType: ct, token: citizenToken})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var user models.User
	decodeJSON(t, w, &user)
	assert.Equal(t, "/media/profile.png", user.ProfilePhoto)

	env.media.AssertExpectations(t)
	env.users.AssertExpectations(t)
}

func TestUserHandler_UpdateProfilePhoto_Rejections(t *testing.T) {
	env := newTestEnv(t)

	notImage, ct := multipartBody(t, "photo", "notes.txt", []byte("just some text, not a picture"), nil)
	w := env.do(request{method: http.MethodPut, path: "/users/me/profile-photo", body: notImage, contentType: ct, token: citizenToken})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, errorBody(t, w)["error"], "photo must be an image")

	noFile, ct := multipartBody(t, "", "", nil, map[string]string{"caption": "hi"})
	w = env.do(request{method: http.MethodPut, path: "/users/me/profile-photo", body: noFile, contentType: ct, token: citizenToken})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	anon, ct := multipartBody(t, "photo", "me.png", pngHeader, nil)
	w = env.do(request{method: http.MethodPut, path: "/users/me/profile-photo", body: anon, contentType: ct})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	env.media.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
}
