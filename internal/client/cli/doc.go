// Package cli implements sealctl, the operator tool on the primary host.
//
// It wires configuration, the response store, the custodian client and the
// sealer, then runs commands either one-shot from the command line or from an
// interactive REPL:
//
//	sealctl open answers s1 q7
//	sealctl migrate
//	sealctl            # REPL
//
// Commands:
//   - seal <namespace> <primary> <secondary> [text]
//   - open <namespace> <primary> <secondary>
//   - purge <namespace> <primary> <secondary>
//   - migrate, verify
//   - health, watch, stats, cleanup
//   - rotate (read a new local key)
//
// Read failures print the same message whatever the cause; the cause goes to
// the log.
package cli
