package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	t.Run("typed error carries its kind", func(t *testing.T) {
		err := Newf(KindIncompleteArchive, "%s: missing volume 2", "show.rar")
		assert.Equal(t, KindIncompleteArchive, KindOf(err))
		assert.True(t, IsKind(err, KindIncompleteArchive))
		assert.Equal(t, "incomplete_archive", KindOf(err).String())
	})

	t.Run("kind survives wrapping", func(t *testing.T) {
		inner := New(KindExtractionFailure, "archiver exited", stderrors.New("exit status 2"))
		outer := fmt.Errorf("processing release: %w", inner)
		assert.Equal(t, KindExtractionFailure, KindOf(outer))
	})

	t.Run("plain errors are unknown", func(t *testing.T) {
		assert.Equal(t, KindUnknown, KindOf(stderrors.New("plain")))
		assert.Equal(t, "unknown", KindUnknown.String())
	})

	t.Run("wrap of nil stays nil", func(t *testing.T) {
		require.NoError(t, Wrap(KindRelocationFailure, "move", nil))
	})
}

func TestProcessErrorUnwrap(t *testing.T) {
	cause := stderrors.New("read-only file system")
	err := Wrap(KindReadOnlyFilesystem, "removing source", cause)
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "removing source")
}
