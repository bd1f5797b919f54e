package container

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"neurodyn/domain/run"
	"neurodyn/internal"
	"neurodyn/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Server:   config.ServerConfig{Port: "0", GinMode: "test"},
		Distance: run.DefaultParams(),
		Cohort:   config.CohortConfig{Workers: 2},
	}
}

func TestNew_RequiresConfig(t *testing.T) {
	_, err := New(nil, nil)
	assert.Error(t, err)
}

func TestInitInMemory(t *testing.T) {
	c, err := New(testConfig(), internal.NewNopLogger())
	require.NoError(t, err)
	c.InitInMemory()
	defer c.Shutdown(context.Background())

	require.NotNil(t, c.Service)
	require.NotNil(t, c.Server)
	assert.Nil(t, c.DB)

	w := httptest.NewRecorder()
	c.Server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestInitWithDatabase_Nil(t *testing.T) {
	c, err := New(testConfig(), internal.NewNopLogger())
	require.NoError(t, err)
	assert.Error(t, c.InitWithDatabase(context.Background(), nil))
}
