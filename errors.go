package xccdfpolicy

import (
	"errors"
	"fmt"

	"github.com/samber/oops"
)

// Error codes for the kinds enumerated in §7. Callers that need to
// distinguish a kind programmatically should use errors.As against
// *oops.OopsError and inspect Code(), rather than parsing Error().
const (
	codeValueMissing         = "value_missing"
	codeValueInstanceMissing = "value_instance_missing"
	codeUnknownEngine        = "unknown_engine"
	codeContentUnloadable    = "content_unloadable"
	codeUnknownScoring       = "unknown_scoring_system"
	codeHookAbort            = "hook_abort"
	codeInternal             = "internal"
)

// valueResolutionError marks the two §7 error kinds that the Rule Runner
// must convert into a RuleResult(Unknown, message) and continue past,
// rather than letting propagate as a fatal Policy.Evaluate error
// ("ValueMissing and ValueInstanceMissing surface as RuleResult Unknown
// with a human-readable message; the rule runner continues with the next
// rule").
type valueResolutionError struct {
	msg string
}

func (v *valueResolutionError) Error() string { return v.msg }

func errValueMissing(id string) error {
	msg := fmt.Sprintf("export references value %q which is absent from the benchmark", id)
	return oops.Code(codeValueMissing).
		With("value_id", id).
		Wrap(&valueResolutionError{msg: msg})
}

func errValueInstanceMissing(valueID, selector string) error {
	msg := fmt.Sprintf("value %q has no instance matching selector %q", valueID, selector)
	return oops.Code(codeValueInstanceMissing).
		With("value_id", valueID).
		With("selector", selector).
		Wrap(&valueResolutionError{msg: msg})
}

// unknownEngineError marks §7's UnknownEngine kind: reachable only from a
// complex-check leaf, since the Check Chooser's step-4 guard already keeps
// a bare simple-check Rule from ever choosing an unregistered system. It
// resolves to NotChecked for that leaf alone rather than aborting the
// whole Policy evaluation.
type unknownEngineError struct {
	systemURI string
}

func (u *unknownEngineError) Error() string {
	return fmt.Sprintf("no checking engine registered for system %q", u.systemURI)
}

func errUnknownEngine(systemURI string) error {
	return oops.Code(codeUnknownEngine).
		With("system", systemURI).
		Wrap(&unknownEngineError{systemURI: systemURI})
}

func isUnknownEngineError(err error) bool {
	var uerr *unknownEngineError
	return errors.As(err, &uerr)
}

func errContentUnloadable(href string, cause error) error {
	b := oops.Code(codeContentUnloadable).With("href", href)
	if cause != nil {
		b = b.Wrapf(cause, "content %q could not be loaded", href)
	} else {
		b = b.Errorf("content %q could not be loaded", href)
	}
	return b
}

func errUnknownScoringSystem(uri string) error {
	return oops.Code(codeUnknownScoring).
		With("system", uri).
		Errorf("unknown scoring system %q", uri)
}

// HookAbort is returned by Policy.Evaluate when a start or output hook
// returns a non-zero code. Code -1 is fatal per §5: the caller's
// TestResult is discarded.
type HookAbort struct {
	Code int
}

func (h *HookAbort) Error() string {
	return fmt.Sprintf("hook aborted evaluation with code %d", h.Code)
}

func (h *HookAbort) Fatal() bool { return h.Code == -1 }

func errHookAbort(code int) error {
	return oops.Code(codeHookAbort).
		With("hook_code", code).
		Wrap(&HookAbort{Code: code})
}

func errInternal(msg string) error {
	return oops.Code(codeInternal).Errorf("internal invariant violated: %s", msg)
}
