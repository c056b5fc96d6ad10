package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"reviewguard/domain/core"

	"github.com/stretchr/testify/assert"
)

func TestGetCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"app error", ConfigInvalid("bad port"), CodeConfigInvalid},
		{"wrapped app error", fmt.Errorf("loading: %w", DatabaseError("open", stderrors.New("locked"))), CodeDatabaseError},
		{"not found sentinel", core.NewNotFoundError("run", "x"), CodeNotFound},
		{"input sentinel", fmt.Errorf("%w: got 2", core.ErrInvalidThreshold), CodeInvalidInput},
		{"classifier sentinel", core.NewClassifierError("fit", stderrors.New("nan")), CodeClassifierFailure},
		{"plain error", stderrors.New("boom"), CodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetCode(tt.err))
		})
	}
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, "ignored"))

	err := Wrap(core.ErrEmptyDataset, "training naive_bayes")
	assert.Equal(t, CodeInvalidInput, GetCode(err))
	assert.ErrorIs(t, err, core.ErrEmptyDataset)
	assert.Equal(t, "training naive_bayes: dataset has no samples", err.Error())

	inner := IOError("write report", stderrors.New("disk full"))
	outer := Wrapf(inner, "run %d", 3)
	assert.Equal(t, CodeIOError, GetCode(outer))
	assert.True(t, IsAppError(outer))
}

func TestWithCode(t *testing.T) {
	err := WithCode(CodeValidationError, InvalidInput("threshold"))
	assert.Equal(t, CodeValidationError, GetCode(err))
	assert.Equal(t, "threshold", err.Error())

	plain := WithCode(CodeDatabaseError, stderrors.New("conn reset"))
	assert.Equal(t, CodeDatabaseError, GetCode(plain))
	assert.Nil(t, WithCode(CodeDatabaseError, nil))
}
