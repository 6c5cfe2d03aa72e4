package errors_test

import (
	"errors"
	"testing"

	pkgerrors "github.com/neuromorphicsystems/undrdg/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := pkgerrors.New("test error")
	assert.NotNil(t, err)
	assert.Equal(t, "test error", err.Error())
}

func TestNotFoundError(t *testing.T) {
	t.Run("basic error", func(t *testing.T) {
		err := &pkgerrors.NotFoundError{Resource: "file", ID: "a.dvs"}
		assert.Equal(t, "file a.dvs not found", err.Error())
		assert.True(t, errors.Is(err, pkgerrors.ErrNotFound))
	})

	t.Run("wrapped error", func(t *testing.T) {
		base := pkgerrors.NewNotFoundError("directory", "train")
		wrapped := errors.Join(errors.New("failed"), base)
		assert.True(t, pkgerrors.IsNotFound(wrapped))
	})
}

func TestAlreadyExistsAndDuplicate(t *testing.T) {
	exists := pkgerrors.NewAlreadyExistsError("test", "-index.json")
	assert.True(t, pkgerrors.IsAlreadyExists(exists))
	assert.False(t, pkgerrors.IsCorrupted(exists))

	dup := pkgerrors.NewDuplicateError("test", "-index.json")
	assert.Equal(t, `duplicate file or directory "test" in -index.json`, dup.Error())
	assert.True(t, pkgerrors.IsCorrupted(dup))
	assert.False(t, pkgerrors.IsAlreadyExists(dup))
}

func TestValidationError(t *testing.T) {
	t.Run("with field", func(t *testing.T) {
		err := pkgerrors.NewValidationError("workers", -1, "must be positive")
		assert.Equal(t, "validation failed for field workers: must be positive", err.Error())
		assert.True(t, pkgerrors.IsValidationError(err))
	})

	t.Run("without field", func(t *testing.T) {
		err := &pkgerrors.ValidationError{Message: "empty recipe"}
		assert.Equal(t, "validation failed: empty recipe", err.Error())
	})
}

func TestParseError(t *testing.T) {
	base := errors.New("short read")

	t.Run("with offset", func(t *testing.T) {
		err := &pkgerrors.ParseError{Format: "aerdat1", File: "a.dat", Offset: 12, Message: "bad record", Err: base}
		assert.Equal(t, "parse error in aerdat1 file a.dat at byte 12: bad record", err.Error())
		assert.ErrorIs(t, err, base)
	})

	t.Run("without file", func(t *testing.T) {
		err := pkgerrors.NewParseError("json", "", "unexpected end", nil)
		assert.Equal(t, "json parse error: unexpected end", err.Error())
	})
}

func TestWrapHelpers(t *testing.T) {
	base := errors.New("boom")

	assert.NoError(t, pkgerrors.WrapIO("write", "x", nil))
	assert.NoError(t, pkgerrors.WrapResource("load", "index", "", nil))
	assert.NoError(t, pkgerrors.WrapParse("yaml", "r.yaml", nil))
	assert.NoError(t, pkgerrors.WrapValidation("field", nil))
	assert.NoError(t, pkgerrors.WrapConversion("a", "b", nil))

	ioErr := pkgerrors.WrapIO("write", "out/-index.json", base)
	var target *pkgerrors.IOError
	require.ErrorAs(t, ioErr, &target)
	assert.Equal(t, "write", target.Operation)
	assert.ErrorIs(t, ioErr, base)

	res := pkgerrors.WrapResource("save", "index", "out", base)
	assert.Equal(t, "failed to save index out: boom", res.Error())

	conv := pkgerrors.WrapConversion("in.dat", "", base)
	assert.Equal(t, "conversion of in.dat failed: boom", conv.Error())
	assert.ErrorIs(t, conv, base)

	val := pkgerrors.WrapValidation("date", base)
	assert.True(t, pkgerrors.IsValidationError(val))
}
