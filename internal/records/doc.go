// Package records models the envelope persisted in the primary store and
// decides, from its explicit format tag, which decryption path applies.
//
// A stored row is turned into a Record with Negotiate. Record is a closed
// set of two variants, Legacy and Current, so every caller has to handle
// both with a type switch.
package records
