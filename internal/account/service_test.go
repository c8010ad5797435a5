package account

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkincode/storefront/internal/domain"
	"github.com/talkincode/storefront/internal/storetest"
)

func TestRegisterAndAuthenticate(t *testing.T) {
	db := storetest.NewDB(t)
	svc := NewService(db)
	ctx := context.Background()

	u, err := svc.Register(ctx, Registration{
		Username:        "alice",
		Email:           "alice@example.com",
		Password:        "wonderland",
		PasswordConfirm: "wonderland",
	})
	require.NoError(t, err)
	assert.NotZero(t, u.ID)
	assert.True(t, u.IsActive)
	assert.False(t, u.IsStaff)
	assert.NotEqual(t, "wonderland", u.Password)

	got, err := svc.Authenticate(ctx, "alice", "wonderland")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	require.NotNil(t, got.LastLogin)

	_, err = svc.Authenticate(ctx, "alice", "nope-nope")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Authenticate(ctx, "bob", "wonderland")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	byID, err := svc.ByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Username)
}

func TestRegisterValidation(t *testing.T) {
	db := storetest.NewDB(t)
	svc := NewService(db)
	ctx := context.Background()

	_, err := svc.Register(ctx, Registration{Username: "bad name!", Email: "nope", Password: "short", PasswordConfirm: "short"})
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "username")
	assert.Contains(t, verr.Fields, "email")
	assert.Contains(t, verr.Fields, "password")

	_, err = svc.Register(ctx, Registration{Username: "carol", Password: "longenough", PasswordConfirm: "different1"})
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "password_confirm")

	_, err = svc.Register(ctx, Registration{Username: "carol", Password: "longenough", PasswordConfirm: "longenough"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, Registration{Username: "Carol", Password: "longenough", PasswordConfirm: "longenough"})
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "username")
}

func TestRegisterValidationMessages(t *testing.T) {
	svc := NewService(storetest.NewDB(t))
	ctx := context.Background()
	fields := func(r Registration) map[string]string {
		t.Helper()
		_, err := svc.Register(ctx, r)
		var verr *domain.ValidationError
		require.True(t, errors.As(err, &verr), "%v", err)
		return verr.Fields
	}

	got := fields(Registration{Username: "bad name!", Email: "nope", Password: "longenough", PasswordConfirm: "longenougH"})
	assert.Equal(t, map[string]string{
		"username":         "enter a valid username: letters, digits and @/./+/-/_ only",
		"email":            "enter a valid email address",
		"password_confirm": "the two password fields didn't match",
	}, got)

	// a short password reports only the length rule
	got = fields(Registration{Username: "erin", Password: "short", PasswordConfirm: "other"})
	assert.Equal(t, map[string]string{"password": "password must contain at least 8 characters"}, got)

	got = fields(Registration{Username: "   ", Password: "longenough", PasswordConfirm: "longenough"})
	assert.Equal(t, "enter a valid username: letters, digits and @/./+/-/_ only", got["username"])

	got = fields(Registration{Username: strings.Repeat("a", 151), Password: "longenough", PasswordConfirm: "longenough"})
	assert.Equal(t, "username must be at most 150 characters", got["username"])

	u, err := svc.Register(ctx, Registration{Username: " frank.o+shop@home ", Email: " frank@example.com ", Password: "longenough", PasswordConfirm: "longenough"})
	require.NoError(t, err)
	assert.Equal(t, "frank.o+shop@home", u.Username)
	assert.Equal(t, "frank@example.com", u.Email)
}

func TestInactiveUserCannotAuthenticate(t *testing.T) {
	db := storetest.NewDB(t)
	svc := NewService(db)
	ctx := context.Background()
	u, err := svc.Register(ctx, Registration{Username: "dave", Password: "password1", PasswordConfirm: "password1"})
	require.NoError(t, err)
	require.NoError(t, db.Model(u).Update("is_active", false).Error)

	_, err = svc.Authenticate(ctx, "dave", "password1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.ByID(ctx, u.ID)
	assert.True(t, domain.IsNotFound(err))
}
