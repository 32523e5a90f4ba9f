// Package validation decides whether a sanitized value satisfies the rules
// declared for its field. Rules are immutable and built either in code
// (NewRule with RuleOption values) or from configuration (RuleConfig.Compile).
//
// Failures are returned as data: Result.Errors holds localized messages in
// the order they were found and Result.Issues keeps the stable message codes
// (validation.required, validation.email, ...) alongside a Kind that separates
// required-field errors from format errors. Nothing in this package panics or
// returns a Go error for invalid input.
package validation
