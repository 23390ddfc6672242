// Package adjudicator wraps the remote judge consulted for events the local
// checks cannot settle on their own.
//
// The judge is any Completer. Its free-form answer is parsed defensively,
// validated for the required fields and then checked against its own stated
// reason: an approval whose reason describes a date mismatch is turned into a
// rejection. When the judge cannot be reached or answers garbage, the
// configured Strictness decides the outcome.
package adjudicator
