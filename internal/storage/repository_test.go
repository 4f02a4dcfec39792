package storage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errKeyUsed = errors.New("access key already used")

func TestRollbackErrorKeepsCause(t *testing.T) {
	err := RollbackError(errKeyUsed, errors.New("conn reset"))

	assert.ErrorIs(t, err, errKeyUsed)
	assert.Contains(t, err.Error(), "rollback: conn reset")
}

func TestRollbackErrorWithoutRollbackFailure(t *testing.T) {
	assert.Same(t, ErrConflict, RollbackError(ErrConflict, nil))
}
