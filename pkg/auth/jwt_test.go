package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWT_GenerateAndValidate(t *testing.T) {
	// Arrange
	generator, err := NewJWTGenerator(JWTGeneratorConfig{
		SecretKey: "test-secret",
		Issuer:    "nffg-orchestrator",
		TTL:       time.Hour,
	})
	require.NoError(t, err)
	validator, err := NewJWTValidator(JWTConfig{
		SecretKey: "test-secret",
		Issuer:    "nffg-orchestrator",
	})
	require.NoError(t, err)

	// Act
	token, expiresAt, err := generator.GenerateToken("tenant-a", "alice", []string{"user"})
	require.NoError(t, err)

	claims, err := validator.ValidateToken(token)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "tenant-a", claims.TenantID)
	assert.Equal(t, "alice", claims.Username)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)
}

func TestJWTValidator_RejectsWrongSignature(t *testing.T) {
	generator, err := NewJWTGenerator(JWTGeneratorConfig{SecretKey: "one-secret"})
	require.NoError(t, err)
	validator, err := NewJWTValidator(JWTConfig{SecretKey: "another-secret"})
	require.NoError(t, err)

	token, _, err := generator.GenerateToken("tenant-a", "alice", nil)
	require.NoError(t, err)

	_, err = validator.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestJWTValidator_RejectsExpiredToken(t *testing.T) {
	validator, err := NewJWTValidator(JWTConfig{SecretKey: "test-secret"})
	require.NoError(t, err)

	claims := &Claims{
		TenantID: "tenant-a",
		Username: "alice",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = validator.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestStaticResolver_Authenticate(t *testing.T) {
	resolver := NewStaticResolver([]User{
		{Username: "alice", Password: "wonderland", TenantID: "tenant-a", Resources: []string{"ep-1"}},
	})

	user, err := resolver.Authenticate(context.Background(), "alice", "wonderland")
	require.NoError(t, err)
	assert.Equal(t, "tenant-a", user.TenantID)

	_, err = resolver.Authenticate(context.Background(), "alice", "oz")
	assert.Error(t, err)
	_, err = resolver.Authenticate(context.Background(), "bob", "wonderland")
	assert.Error(t, err)
}

func TestStaticResolver_ResolveUsesCurrentGrants(t *testing.T) {
	resolver := NewStaticResolver([]User{
		{Username: "alice", Password: "wonderland", TenantID: "tenant-a", Resources: []string{"ep-1"}},
	})

	tenant, err := resolver.Resolve(context.Background(), &Claims{TenantID: "tenant-a", Username: "alice"})
	require.NoError(t, err)
	assert.True(t, tenant.OwnsResource("ep-1"))
	assert.False(t, tenant.OwnsResource("ep-2"))

	// A principal removed from the configuration loses access even with
	// a still-valid token
	_, err = resolver.Resolve(context.Background(), &Claims{TenantID: "tenant-a", Username: "mallory"})
	assert.Error(t, err)
}
