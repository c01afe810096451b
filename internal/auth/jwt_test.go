package auth

import (
	"context"
	"testing"
	"time"

	"github.com/aarondl/null/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/zahtevki/internal/db"
	"github.com/erazemk/zahtevki/internal/model"
	"github.com/erazemk/zahtevki/internal/store"
)

func TestGenerateAndValidateToken(t *testing.T) {
	token, err := GenerateToken("test-secret", time.Hour, 1, "admin", model.RoleAdmin)
	require.NoError(t, err)

	claims, err := ValidateToken("test-secret", token)
	require.NoError(t, err)

	assert.Equal(t, int64(1), claims.UserID)
	assert.Equal(t, "admin", claims.Username)
	assert.Equal(t, model.RoleAdmin, claims.Role)
	assert.Len(t, claims.ID, 36)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, 5*time.Second)
}

func TestGenerateTokenUniqueIDs(t *testing.T) {
	a, _ := GenerateToken("s", 0, 1, "u", model.RoleUser)
	b, _ := GenerateToken("s", 0, 1, "u", model.RoleUser)

	ca, err := ValidateToken("s", a)
	require.NoError(t, err)
	cb, err := ValidateToken("s", b)
	require.NoError(t, err)

	assert.NotEqual(t, ca.ID, cb.ID)
	assert.WithinDuration(t, time.Now().Add(DefaultTokenTTL), ca.ExpiresAt.Time, 5*time.Second)
}

func TestValidateTokenRejects(t *testing.T) {
	token, _ := GenerateToken("secret1", time.Hour, 1, "admin", model.RoleAdmin)

	_, err := ValidateToken("secret2", token)
	assert.Error(t, err)

	_, err = ValidateToken("secret", "not-a-token")
	assert.Error(t, err)
}

func TestPasswords(t *testing.T) {
	_, err := HashPassword("short")
	assert.Error(t, err)

	hash, err := HashPassword("long enough")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "long enough"))
	assert.False(t, CheckPassword(hash, "wrong password"))

	pw, err := RandomPassword()
	require.NoError(t, err)
	assert.Len(t, pw, 24)
}

func TestActorFor(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	stock, err := store.CreateUser(ctx, database, "stock", "hash", model.RoleStock)
	require.NoError(t, err)

	a, err := ActorFor(ctx, database, stock)
	require.NoError(t, err)
	assert.Zero(t, a.EmployeeID)
	assert.True(t, a.HasRole(model.RoleStock))
	assert.True(t, a.HasRole(model.RoleUser))
	assert.False(t, a.HasRole(model.RoleAdmin))
	assert.False(t, a.IsAdmin())

	emp, err := store.CreateEmployee(ctx, database, "Stock Keeper", null.Int64From(stock.ID), null.Int64{})
	require.NoError(t, err)

	a, err = ActorFor(ctx, database, stock)
	require.NoError(t, err)
	assert.Equal(t, emp.ID, a.EmployeeID)
}
