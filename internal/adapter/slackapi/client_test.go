package slackapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slackline/internal/domain"
	"slackline/internal/infra/logger"
)

func TestForProfileMemoizesClient(t *testing.T) {
	p, err := domain.NewProfile("ops", domain.ProfileParams{Token: "xoxb-test"})
	require.NoError(t, err)

	first, err := ForProfile(p, logger.Discard())
	require.NoError(t, err)
	second, err := ForProfile(p, logger.Discard())
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestForProfileTokenError(t *testing.T) {
	p, err := domain.NewProfile("ops", domain.ProfileParams{
		TokenProvider: func() (string, error) {
			return "", domain.NewDomainError("test", domain.ErrConfiguration, "vault down")
		},
	})
	require.NoError(t, err)

	_, err = ForProfile(p, logger.Discard())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestForProfileForeignHandle(t *testing.T) {
	p, err := domain.NewProfile("ops", domain.ProfileParams{Token: "xoxb-test"})
	require.NoError(t, err)
	p.ClientHandle(func() any { return "not a client" })

	_, err = ForProfile(p, logger.Discard())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}
