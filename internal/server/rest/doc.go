// Package rest exposes the custodian over HTTP/JSON:
//
//	POST   /salts          store a salt
//	GET    /salts/{id}     fetch (and count the access)
//	DELETE /salts/{id}     crypto-shred
//	POST   /salts/cleanup  remove expired salts
//	GET    /salts/stats    live salts per purpose
//	GET    /health         storage liveness, unauthenticated
//
// Every route except /health requires a bearer token. Bad or missing
// tokens get the same 401 body.
package rest
