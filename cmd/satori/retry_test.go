package main

import (
	"testing"

	"github.com/kraklabs/satori/internal/stdio"
)

func TestRetryEligibleTrueForCallTimeoutOnNonManageIndexTool(t *testing.T) {
	err := &stdio.ProtocolError{Token: stdio.TokenCallTimeout, ExitCode: stdio.ExitProtocolFailure, Err: errString("boom")}
	if !retryEligible("search_codebase", err) {
		t.Fatal("expected a call timeout on a non-manage_index tool to be retry-eligible")
	}
}

func TestRetryEligibleFalseForManageIndexCallTimeout(t *testing.T) {
	err := &stdio.ProtocolError{Token: stdio.TokenCallTimeout, ExitCode: stdio.ExitProtocolFailure, Err: errString("boom")}
	if retryEligible("manage_index", err) {
		t.Fatal("expected a call timeout on manage_index to be retry-blocked")
	}
}

func TestRetryEligibleTrueForManageIndexStartupTimeout(t *testing.T) {
	err := &stdio.ProtocolError{Token: stdio.TokenStartupTimeout, ExitCode: stdio.ExitProtocolFailure, Err: errString("boom")}
	if !retryEligible("manage_index", err) {
		t.Fatal("expected a startup timeout on manage_index to remain retry-eligible")
	}
}

func TestRetryEligibleFalseForNonProtocolError(t *testing.T) {
	if retryEligible("search_codebase", errString("not a protocol error")) {
		t.Fatal("expected a non-ProtocolError to never be retry-eligible")
	}
}

type errString string

func (e errString) Error() string { return string(e) }
