// Package provider groups the remote model clients used as judges and as
// generative search sources. Each subpackage exposes a Client whose Complete
// method satisfies adjudicator.Completer.
package provider
