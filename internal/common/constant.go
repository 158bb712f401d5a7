package common

// AuthorizationHeaderName is the HTTP header and gRPC metadata key carrying
// the custodian bearer credential.
const AuthorizationHeaderName = "authorization"

// BearerPrefix precedes the token in AuthorizationHeaderName.
const BearerPrefix = "Bearer "

// Salt purposes. Used for statistics and audit only, never for access control.
const (
	PurposeAnswers          = "answers"
	PurposeSubscriberEmails = "subscriber_emails"
)
