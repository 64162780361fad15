package sandbox

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateCommand_Empty(t *testing.T) {
	err := ValidateCommand(nil)
	assert.ErrorIs(t, err, ErrInvalidCommand)

	err = ValidateCommand([]string{})
	assert.ErrorIs(t, err, ErrInvalidCommand)
}

func TestValidateCommand_DangerousCharacters(t *testing.T) {
	for _, c := range []string{";", "|", "&", ">", "<", "$", "`", "\n", "\r"} {
		t.Run("char "+c, func(t *testing.T) {
			err := ValidateCommand([]string{"/bin/bash" + c, "-c", "true"})
			assert.ErrorIs(t, err, ErrDangerousCharacter)

			err = ValidateCommand([]string{"/bin/bash", "-c" + c, "true"})
			assert.ErrorIs(t, err, ErrDangerousCharacter)
		})
	}
}

func TestValidateCommand_ScriptPositionExempt(t *testing.T) {
	// The third position holds an opaque script string and may carry shell
	// operators without risk of outer-boundary injection.
	err := ValidateCommand([]string{"/bin/bash", "-c", "echo a; cat /etc/passwd | wc -l > /tmp/x"})
	assert.NoError(t, err)

	err = ValidateCommand([]string{"/bin/sh", "-c", "stat -c %u /var/www/html && echo $HOME"})
	assert.NoError(t, err)
}

func TestValidateCommand_ReportsPosition(t *testing.T) {
	err := ValidateCommand([]string{"ok", "bad;"})

	var dce *DangerousCharacterError
	assert.True(t, errors.As(err, &dce))
	assert.Equal(t, 1, dce.Index)
	assert.Equal(t, ';', dce.Char)
}
