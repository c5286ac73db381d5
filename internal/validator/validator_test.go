package validator

import "testing"

func TestValidateEmptyScriptRejected(t *testing.T) {
	a := Validate("", 50000)
	if a.Valid {
		t.Fatalf("expected empty script to be invalid")
	}
}

func TestValidateHappyPath(t *testing.T) {
	script := `[{"op":"goto","args":{"url":"https://example.com"}},{"op":"return","args":{"value":{"x":1}}}]`
	a := Validate(script, 50000)
	if !a.Valid {
		t.Fatalf("expected valid, got errors: %v", a.Errors)
	}
	if a.OperationCount != 2 {
		t.Fatalf("expected 2 ops, got %d", a.OperationCount)
	}
}

func TestValidateDeniedOpRejected(t *testing.T) {
	script := `[{"op":"shell","args":{"cmd":"rm -rf /"}},{"op":"return","args":{}}]`
	a := Validate(script, 50000)
	if a.Valid {
		t.Fatalf("expected shell op to be rejected")
	}
}

func TestValidateMissingReturnRejected(t *testing.T) {
	script := `[{"op":"goto","args":{"url":"https://example.com"}}]`
	a := Validate(script, 50000)
	if a.Valid {
		t.Fatalf("expected missing return to be rejected")
	}
}

func TestValidateMaxSize(t *testing.T) {
	script := `[{"op":"return","args":{}}]`
	if a := Validate(script, len(script)); !a.Valid {
		t.Fatalf("expected script at exactly max size to be accepted, errors=%v", a.Errors)
	}
	if a := Validate(script, len(script)-1); a.Valid {
		t.Fatalf("expected script over max size to be rejected")
	}
}
