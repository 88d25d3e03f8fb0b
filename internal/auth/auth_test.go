package auth

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/xtrntr/auction/internal/auctionerrors"
	"github.com/xtrntr/auction/internal/db"
	"github.com/xtrntr/auction/internal/db/dbtest"
	"github.com/xtrntr/auction/internal/models"
)

const testSecret = "test-secret"

var testDB *db.DB

func TestMain(m *testing.M) {
	var err error
	testDB, err = dbtest.Open(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to open test database: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()
	if testDB != nil {
		testDB.Close(context.Background())
	}
	os.Exit(code)
}

func signed(t *testing.T, claims jwt.MapClaims, key string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return s
}

func TestAuthService_GetUserFromToken(t *testing.T) {
	s := NewAuthService(nil, testSecret)
	token, err := s.IssueToken(&models.User{ID: 7, Username: "alice"})
	require.NoError(t, err)

	expired := signed(t, jwt.MapClaims{"user_id": 7, "username": "alice", "exp": time.Now().Add(-time.Hour).Unix()}, testSecret)
	wrongKey := signed(t, jwt.MapClaims{"user_id": 7, "exp": time.Now().Add(time.Hour).Unix()}, "wrong-key")
	noUser := signed(t, jwt.MapClaims{"username": "alice", "exp": time.Now().Add(time.Hour).Unix()}, testSecret)
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"user_id": 7}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name         string
		token        string
		expectUserID int64
		expectError  bool
	}{
		{name: "Success", token: token, expectUserID: 7},
		{name: "ExpiredToken", token: expired, expectError: true},
		{name: "InvalidSignature", token: wrongKey, expectError: true},
		{name: "MissingUserID", token: noUser, expectError: true},
		{name: "UnsignedToken", token: none, expectError: true},
		{name: "EmptyToken", token: "", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			userID, err := s.GetUserFromToken(tt.token)
			if tt.expectError {
				assert.ErrorIs(t, err, ErrInvalidToken)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectUserID, userID)
		})
	}
}

func TestAuthService_RegisterValidation(t *testing.T) {
	s := NewAuthService(nil, testSecret)

	tests := []struct {
		name     string
		username string
		password string
	}{
		{name: "EmptyUsername", username: "", password: "password123"},
		{name: "EmptyPassword", username: "bob", password: ""},
		{name: "LongUsername", username: strings.Repeat("a", 51), password: "password123"},
		{name: "LongPassword", username: "bob", password: strings.Repeat("p", 73)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Register(context.Background(), tt.username, tt.password)
			assert.ErrorIs(t, err, auctionerrors.ErrValidation)
		})
	}
}

func TestAuthService_Register(t *testing.T) {
	dbtest.Require(t, testDB)
	ctx := context.Background()
	s := NewAuthService(testDB, testSecret)

	user, err := s.Register(ctx, "alice", "password123")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, int64(1), user.ID)

	var storedHash string
	err = testDB.Router.Primary().QueryRow(ctx, "SELECT password_hash FROM users WHERE username=$1", "alice").Scan(&storedHash)
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(storedHash), []byte("password123")))

	_, err = s.Register(ctx, "alice", "newpass")
	assert.ErrorIs(t, err, auctionerrors.ErrUsernameTaken)
}

func TestAuthService_Login(t *testing.T) {
	dbtest.Require(t, testDB)
	ctx := context.Background()
	s := NewAuthService(testDB, testSecret)
	alice, err := s.Register(ctx, "alice", "password123")
	require.NoError(t, err)

	tests := []struct {
		name        string
		username    string
		password    string
		expectError bool
	}{
		{name: "Success", username: "alice", password: "password123"},
		{name: "WrongPassword", username: "alice", password: "wrongpass", expectError: true},
		{name: "NonExistentUser", username: "bob", password: "password123", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := s.Login(ctx, tt.username, tt.password)
			if tt.expectError {
				assert.ErrorIs(t, err, ErrInvalidCredentials)
				return
			}
			require.NoError(t, err)

			userID, err := s.GetUserFromToken(token)
			require.NoError(t, err)
			assert.Equal(t, alice.ID, userID)
		})
	}
}
