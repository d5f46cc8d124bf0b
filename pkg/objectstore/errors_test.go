package objectstore

import (
	"errors"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
)

type fakeAPIError struct {
	code string
}

func (e fakeAPIError) Error() string                 { return "api error: " + e.code }
func (e fakeAPIError) ErrorCode() string             { return e.code }
func (e fakeAPIError) ErrorMessage() string          { return e.code }
func (e fakeAPIError) ErrorFault() smithy.ErrorFault { return smithy.FaultUnknown }

func TestIsPermanent(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{fakeAPIError{code: "AccessDenied"}, true},
		{fakeAPIError{code: "NoSuchBucket"}, true},
		{fakeAPIError{code: "SlowDown"}, false},
		{fakeAPIError{code: "InternalError"}, false},
		{errors.New("generic network timeout"), false},
	}

	for _, c := range cases {
		assert.Equal(t, c.want, IsPermanent(c.err), c.err.Error())
	}
}
