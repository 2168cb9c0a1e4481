package credentials

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"stocktracker_backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutoRegisterAddsSharedKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "new@example.com", r.FormValue("email"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"api_key": "FRESHKEY99"}`))
	}))
	defer server.Close()

	db := setupTestDB(t)
	pool := NewPool(db, PoolOptions{
		Secret:              "test-secret",
		AutoRegisterEnabled: true,
		SignupURL:           server.URL,
	})

	require.NoError(t, pool.AutoRegister(context.Background(), "new@example.com"))

	lease, err := pool.AcquireKey(context.Background(), models.ProviderAlphaVantage, nil)
	require.NoError(t, err)
	assert.Equal(t, "FRESHKEY99", lease.Key)
}

func TestAutoRegisterDisabled(t *testing.T) {
	db := setupTestDB(t)
	pool := NewPool(db, PoolOptions{Secret: "test-secret"})

	err := pool.AutoRegister(context.Background(), "new@example.com")
	assert.Error(t, err)
}

func TestAutoRegisterDenyList(t *testing.T) {
	db := setupTestDB(t)
	pool := NewPool(db, PoolOptions{
		Secret:              "test-secret",
		AutoRegisterEnabled: true,
		DenyList:            []string{"blocked@example.com", "@spam.example"},
	})

	assert.Error(t, pool.AutoRegister(context.Background(), "blocked@example.com"))
	assert.Error(t, pool.AutoRegister(context.Background(), "anyone@spam.example"))
}

func TestAutoRegisterEmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message": "try again later"}`))
	}))
	defer server.Close()

	db := setupTestDB(t)
	pool := NewPool(db, PoolOptions{
		Secret:              "test-secret",
		AutoRegisterEnabled: true,
		SignupURL:           server.URL,
	})

	err := pool.AutoRegister(context.Background(), "new@example.com")
	assert.Error(t, err)
}

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "t***@example.com", maskEmail("trader@example.com"))
	assert.Equal(t, "***", maskEmail("a@b"))
	assert.Equal(t, "***", maskEmail("bogus"))
}
