package api

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAsErrorPassesThroughErrors(t *testing.T) {
	original := errors.New("already an error")
	assert.Same(t, original, AsError(original))
}

func TestAsErrorNormalizesPayloads(t *testing.T) {
	cases := map[string]struct {
		input any
		want  string
	}{
		"string":  {"remote failure", "remote failure"},
		"bytes":   {[]byte("raw payload"), "raw payload"},
		"nil":     {nil, "unknown remote error"},
		"numeric": {418, "418"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			err := AsError(tc.input)
			var remoteErr *RemoteError
			assert.ErrorAs(t, err, &remoteErr)
			assert.EqualError(t, err, tc.want)
		})
	}
}
