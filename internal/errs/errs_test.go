package errs_test

import (
	"net/http"
	"testing"

	"github.com/lavente-care/iam-gateway/internal/errs"
	"github.com/stretchr/testify/assert"
)

func TestError_StatusFallsBackToKindMapping(t *testing.T) {
	e := errs.New(errs.KindConflictEmail, "taken")
	assert.Equal(t, http.StatusConflict, e.Status())
}

func TestError_WithStatusOverridesKindMapping(t *testing.T) {
	e := errs.New(errs.KindCodeInvalidOrExpired, "bad code").WithStatus(http.StatusBadRequest)
	assert.Equal(t, http.StatusBadRequest, e.Status())
}

func TestError_UnknownKindDefaultsToInternalServerError(t *testing.T) {
	e := errs.New(errs.Kind("not_a_real_kind"), "mystery")
	assert.Equal(t, http.StatusInternalServerError, e.Status())
}

func TestIs(t *testing.T) {
	err := errs.New(errs.KindAccountLocked, "locked")
	assert.True(t, errs.Is(err, errs.KindAccountLocked))
	assert.False(t, errs.Is(err, errs.KindAccountNotActive))
	assert.False(t, errs.Is(assert.AnError, errs.KindAccountLocked))
}

func TestWrap_PreservesCauseForUnwrap(t *testing.T) {
	cause := assert.AnError
	e := errs.Wrap(errs.KindServiceUnavailable, "downstream failed", cause)
	assert.ErrorIs(t, e, cause)
	assert.Equal(t, "downstream failed", e.Error())
}

func TestError_ErrorMessageFallsBackToKindWhenEmpty(t *testing.T) {
	e := errs.New(errs.KindInvalidToken, "")
	assert.Equal(t, string(errs.KindInvalidToken), e.Error())
}
