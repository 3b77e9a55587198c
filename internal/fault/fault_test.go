package fault

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesKind(t *testing.T) {
	err := New(KindInvalidBanding, "mapping.Align", "lower bound %d exceeds upper bound %d", 5, 3)

	assert.True(t, errors.Is(err, ErrInvalidBanding))
	assert.False(t, errors.Is(err, ErrDecodeFailure))
	assert.Equal(t, "[invalid_banding] mapping.Align: lower bound 5 exceeds upper bound 3", err.Error())
}

func TestWrapf_KeepsCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrapf(KindScoringFailure, "scoring.Score", cause, "remote scorer")

	assert.True(t, errors.Is(err, ErrScoringFailure))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestWithRead(t *testing.T) {
	t.Run("typed error keeps kind", func(t *testing.T) {
		err := WithRead(New(KindEncodingFailure, "squiggle.Encode", "bad base"), "read_7")
		assert.True(t, errors.Is(err, ErrEncodingFailure))
		assert.Equal(t, "read_7", ReadOf(err))
		assert.Equal(t, KindEncodingFailure, KindOf(err))
	})

	t.Run("untyped error becomes decode failure", func(t *testing.T) {
		err := WithRead(errors.New("boom"), "read_8")
		assert.True(t, errors.Is(err, ErrDecodeFailure))
		assert.Equal(t, "read_8", ReadOf(err))
	})

	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, WithRead(nil, "read_9"))
	})
}

func TestReadOf_NoRead(t *testing.T) {
	assert.Equal(t, "", ReadOf(errors.New("plain")))
	assert.Equal(t, "", ReadOf(New(KindDecodeFailure, "op", "x")))
}
