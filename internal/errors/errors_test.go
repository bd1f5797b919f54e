package errors

import (
	stderrors "errors"
	"net/http"
	"testing"

	"neurodyn/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetCode_DerivesFromDomainErrors(t *testing.T) {
	cases := []struct {
		err    error
		code   string
		status int
	}{
		{core.ErrRunNotFound, CodeNotFound, http.StatusNotFound},
		{core.NewConfigurationError("bins", "must be positive"), CodeConfigInvalid, http.StatusBadRequest},
		{core.NewBoundsError("NRini=%d", 0), CodeBounds, http.StatusBadRequest},
		{core.NewShapeError("SC", 3, 3, 2, 3), CodeInvalidInput, http.StatusBadRequest},
		{core.NewFitError("no points", nil), CodeFitFailed, http.StatusUnprocessableEntity},
		{stderrors.New("boom"), CodeInternalError, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.code, GetCode(tc.err), "%v", tc.err)
		assert.Equal(t, tc.status, HTTPStatus(tc.err), "%v", tc.err)
	}
}

func TestWrap_KeepsChainAndCode(t *testing.T) {
	err := Wrapf(core.NewFitError("no points", nil), "subject %s", "s1")
	var appErr *AppError
	require.True(t, stderrors.As(err, &appErr))
	assert.Equal(t, CodeFitFailed, appErr.Code)
	assert.Equal(t, CodeFitFailed, GetCode(err))
	assert.ErrorIs(t, err, core.ErrFit)
	assert.Contains(t, err.Error(), "subject s1")

	outer := Wrap(ConfigInvalid("PORT is empty"), "failed to load server configuration")
	assert.Equal(t, CodeConfigInvalid, GetCode(outer))

	assert.Nil(t, Wrap(nil, "ignored"))
	assert.Equal(t, CodeDatabaseError, GetCode(WithCode(CodeDatabaseError, stderrors.New("conn refused"))))
}
