// Package cli implements the interactive terminal front end of the vault.
//
// The App wires configuration and logging into a service.Service and runs a
// read-eval-print loop over it. Command handlers only translate between
// text and service calls; every security decision is made by the service.
package cli
