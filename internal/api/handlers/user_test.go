package handlers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/cloo-solutions/ragdesk/internal/domain"
	"github.com/cloo-solutions/ragdesk/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestUserHandler_Login_JSON(t *testing.T) {
	mockSvc := new(MockAuthService)
	handler := NewUserHandler(mockSvc)
	token := &service.AccessToken{Token: "jwt", TokenType: "bearer", ExpiresAt: time.Now().Add(time.Hour)}
	mockSvc.On("Login", mock.Anything, "alice@example.com", "secret-pass").Return(token, nil)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"alice@example.com","password":"secret-pass"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	handler.Login(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp service.AccessToken
	decodeData(t, w, &resp)
	assert.Equal(t, "jwt", resp.Token)
	assert.Equal(t, "bearer", resp.TokenType)
}

func TestUserHandler_Login_Form(t *testing.T) {
	mockSvc := new(MockAuthService)
	handler := NewUserHandler(mockSvc)
	mockSvc.On("Login", mock.Anything, "alice@example.com", "secret-pass").Return(&service.AccessToken{Token: "jwt", TokenType: "bearer"}, nil)

	form := url.Values{"username": {"alice@example.com"}, "password": {"secret-pass"}}
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()

	handler.Login(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestUserHandler_Login_BadCredentials(t *testing.T) {
	mockSvc := new(MockAuthService)
	handler := NewUserHandler(mockSvc)
	mockSvc.On("Login", mock.Anything, "alice@example.com", "wrong").Return(nil, domain.ErrInvalidCredentials)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"alice@example.com","password":"wrong"}`))
	w := httptest.NewRecorder()

	handler.Login(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
	assert.Contains(t, w.Body.String(), "incorrect email or password")
}

func TestUserHandler_Login_InvalidEmail(t *testing.T) {
	mockSvc := new(MockAuthService)
	handler := NewUserHandler(mockSvc)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"nope","password":"x"}`))
	w := httptest.NewRecorder()

	handler.Login(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockSvc.AssertNotCalled(t, "Login", mock.Anything, mock.Anything, mock.Anything)
}

func TestUserHandler_Me(t *testing.T) {
	handler := NewUserHandler(new(MockAuthService))

	w := httptest.NewRecorder()
	handler.Me(w, withUser(httptest.NewRequest(http.MethodGet, "/users/me", nil), testUser))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp UserResponse
	decodeData(t, w, &resp)
	assert.Equal(t, "user-1", resp.ID)
	assert.Equal(t, "alice", resp.Username)
	assert.NotContains(t, w.Body.String(), "password")
}

func TestUserHandler_Create(t *testing.T) {
	mockSvc := new(MockAuthService)
	handler := NewUserHandler(mockSvc)
	created := &domain.User{ID: "user-2", Email: "bob@example.com", Username: "bob", IsActive: true, CreatedAt: time.Now()}
	mockSvc.On("CreateUser", mock.Anything, service.CreateUserInput{Email: "bob@example.com", Username: "bob", Password: "longenough"}).Return(created, nil)

	body := `{"email":"bob@example.com","username":"bob","password":"longenough"}`
	w := httptest.NewRecorder()
	handler.Create(w, httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(body)))

	assert.Equal(t, http.StatusCreated, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestUserHandler_Create_Conflict(t *testing.T) {
	mockSvc := new(MockAuthService)
	handler := NewUserHandler(mockSvc)
	mockSvc.On("CreateUser", mock.Anything, mock.Anything).Return(nil, domain.ErrEmailAlreadyExists)

	body := `{"email":"bob@example.com","username":"bob","password":"longenough"}`
	w := httptest.NewRecorder()
	handler.Create(w, httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(body)))

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestUserHandler_Create_ShortPassword(t *testing.T) {
	mockSvc := new(MockAuthService)
	handler := NewUserHandler(mockSvc)

	body := `{"email":"bob@example.com","username":"bob","password":"short"}`
	w := httptest.NewRecorder()
	handler.Create(w, httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(body)))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockSvc.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
}

func TestUserHandler_List(t *testing.T) {
	mockSvc := new(MockAuthService)
	handler := NewUserHandler(mockSvc)
	mockSvc.On("ListUsers", mock.Anything).Return([]*domain.User{testUser}, nil)

	w := httptest.NewRecorder()
	handler.List(w, httptest.NewRequest(http.MethodGet, "/users", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp []UserResponse
	decodeData(t, w, &resp)
	require.Len(t, resp, 1)
	assert.Equal(t, "alice@example.com", resp[0].Email)
}
