package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"phenoprofile/domain/core"
)

func TestFromDomain(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{core.NewConfigError(core.ErrTooFewGroups, "groups", 1), CodeConfigInvalid},
		{core.ErrNoParameters, CodeConfigInvalid},
		{core.NewMissingColumnsError("header"), CodeInvalidInput},
		{fmt.Errorf("%w: x", core.ErrUnknownParameter), CodeInvalidInput},
		{core.ErrNoOptimum, CodeNoOptimum},
		{core.ErrRunNotFound, CodeNotFound},
		{stderrors.New("disk on fire"), CodeInternalError},
	}
	for _, tt := range tests {
		if got := FromDomain(tt.err); got != tt.want {
			t.Errorf("FromDomain(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
	assert.Equal(t, "", FromDomain(nil))
}

func TestWrap_KeepsChain(t *testing.T) {
	err := Wrap(core.ErrTooFewGroups, "resolve selection")
	assert.Equal(t, CodeConfigInvalid, GetCode(err))
	assert.True(t, stderrors.Is(err, core.ErrTooFewGroups))
	assert.Equal(t, "resolve selection: at least 2 groups must be selected", err.Error())

	outer := Wrapf(err, "run %d", 3)
	assert.Equal(t, CodeConfigInvalid, GetCode(outer))
	assert.Nil(t, Wrap(nil, "x"))
}

func TestWithCode(t *testing.T) {
	err := WithCode(CodeDatabaseError, stderrors.New("connection refused"))
	assert.Equal(t, CodeDatabaseError, GetCode(err))
	assert.True(t, IsAppError(err))

	recoded := WithCode(CodeInternalError, NoOptimum(core.ErrNoOptimum))
	assert.Equal(t, CodeInternalError, GetCode(recoded))
	assert.True(t, stderrors.Is(recoded, core.ErrNoOptimum))
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(CodeConfigInvalid))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(CodeInvalidInput))
	assert.Equal(t, http.StatusUnprocessableEntity, HTTPStatus(CodeNoOptimum))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(CodeNotFound))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus("UNKNOWN"))
}
