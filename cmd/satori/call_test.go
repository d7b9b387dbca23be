package main

import "testing"

func TestParseToolArgsBareFlagBecomesBoolTrue(t *testing.T) {
	args, err := parseToolArgs([]string{"--debug"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, ok := args["debug"].(bool); !ok || !v {
		t.Fatalf("expected debug=true, got %#v", args["debug"])
	}
}

func TestParseToolArgsStringValue(t *testing.T) {
	args, err := parseToolArgs([]string{"--path", "/tmp/repo"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if args["path"] != "/tmp/repo" {
		t.Fatalf("expected path=/tmp/repo, got %#v", args["path"])
	}
}

func TestParseToolArgsNumericValueCoerced(t *testing.T) {
	args, err := parseToolArgs([]string{"--limit", "10"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, ok := args["limit"].(float64); !ok || v != 10 {
		t.Fatalf("expected limit=10 (float64), got %#v", args["limit"])
	}
}

func TestParseToolArgsBooleanValueCoerced(t *testing.T) {
	args, err := parseToolArgs([]string{"--strict", "false"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, ok := args["strict"].(bool); !ok || v {
		t.Fatalf("expected strict=false, got %#v", args["strict"])
	}
}

func TestParseToolArgsTrailingBareFlagBeforeNextFlag(t *testing.T) {
	args, err := parseToolArgs([]string{"--action", "create", "--force", "--path", "/repo"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if args["action"] != "create" {
		t.Fatalf("expected action=create, got %#v", args["action"])
	}
	if v, ok := args["force"].(bool); !ok || !v {
		t.Fatalf("expected force=true, got %#v", args["force"])
	}
	if args["path"] != "/repo" {
		t.Fatalf("expected path=/repo, got %#v", args["path"])
	}
}

func TestParseToolArgsRejectsArgumentNotStartingWithDashes(t *testing.T) {
	if _, err := parseToolArgs([]string{"bogus"}); err == nil {
		t.Fatal("expected an error for a non-flag argument")
	}
}

func TestCoerceArgValuePrefersBoolOverNumericLookingText(t *testing.T) {
	if v := coerceArgValue("true"); v != true {
		t.Fatalf("expected coerceArgValue(\"true\") = true, got %#v", v)
	}
}

func TestCoerceArgValueFallsBackToString(t *testing.T) {
	if v := coerceArgValue("hello"); v != "hello" {
		t.Fatalf("expected coerceArgValue(\"hello\") = \"hello\", got %#v", v)
	}
}
