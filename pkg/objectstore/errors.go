package objectstore

import (
	"errors"

	"github.com/aws/smithy-go"
)

// permanentErrorCodes are S3 error codes spec.md §7 classifies as
// "permanent store error": authorization and bucket-missing. These abort
// the whole run rather than being retried.
var permanentErrorCodes = map[string]bool{
	"AccessDenied":                 true,
	"AllAccessDisabled":            true,
	"AuthorizationHeaderMalformed": true,
	"InvalidAccessKeyId":           true,
	"SignatureDoesNotMatch":        true,
	"NoSuchBucket":                 true,
}

// IsPermanent reports whether err is an S3 API error whose code marks it
// fatal-to-the-run per spec.md §7, as opposed to transient (timeouts,
// throttling) which the caller should retry with backoff. Exported so
// callers above this package (pkg/pipeline's Restorer) can classify a
// failed Store call the same way the retry loop here does, instead of
// treating every store failure as equally retryable.
func IsPermanent(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return permanentErrorCodes[apiErr.ErrorCode()]
	}
	return false
}
