// Package custodian is the primary side of the split key: clients for the
// salt custodian over REST or gRPC, and a retrying decorator.
//
// Every transport maps failures onto the common taxonomy:
//
//	401 / Unauthenticated                 -> common.ErrorUnauthorized
//	404 / NotFound                        -> common.ErrorNotFound
//	400 / InvalidArgument                 -> common.ErrorValidation
//	5xx, 429, network errors, timeouts    -> common.ErrorUnavailable
//
// Only ErrorUnavailable is retried, and Store only when the request never
// reached the custodian (dial failures, 429, ResourceExhausted). See Retrying.
package custodian
