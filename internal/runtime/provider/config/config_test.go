package config

import "testing"

func TestResolveSecretRefWithLookup(t *testing.T) {
	t.Parallel()

	lookup := func(name string) (string, bool) {
		switch name {
		case "HUME_API_KEY":
			return "secret-key", true
		case "GEMINI_API_KEY":
			return "gem-key", true
		default:
			return "", false
		}
	}

	tests := []struct {
		name    string
		ref     string
		want    string
		wantErr bool
	}{
		{name: "env prefix", ref: "env://HUME_API_KEY", want: "secret-key"},
		{name: "bare env key", ref: "GEMINI_API_KEY", want: "gem-key"},
		{name: "missing", ref: "env://UNKNOWN", wantErr: true},
		{name: "unsupported scheme", ref: "vault://provider/api-key", wantErr: true},
		{name: "path separator", ref: "env://a/b", wantErr: true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := ResolveSecretRefWithLookup(tc.ref, lookup)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tc.ref)
				}
				return
			}
			if err != nil {
				t.Fatalf("resolve secret ref %q: %v", tc.ref, err)
			}
			if got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestCredentialPrefersRef(t *testing.T) {
	t.Setenv("MEDIATE_TEST_ROTATABLE", "rotated-v1")

	cred := Credential{Literal: "literal-key", Ref: "env://MEDIATE_TEST_ROTATABLE"}
	value, err := cred.Resolve()
	if err != nil {
		t.Fatalf("resolve credential: %v", err)
	}
	if value != "rotated-v1" {
		t.Fatalf("expected secret-ref value, got %q", value)
	}

	t.Setenv("MEDIATE_TEST_ROTATABLE", "rotated-v2")
	if got := cred.Value(); got != "rotated-v2" {
		t.Fatalf("expected rotated-v2 after env update, got %q", got)
	}
}

func TestCredentialFallsBackToLiteral(t *testing.T) {
	t.Parallel()

	cred := Credential{Literal: " fallback-key ", Ref: "env://MEDIATE_TEST_MISSING_KEY"}
	if got := cred.Value(); got != "fallback-key" {
		t.Fatalf("expected literal fallback, got %q", got)
	}
	if !cred.Present() {
		t.Fatalf("expected literal credential to be present")
	}
	if (Credential{}).Present() {
		t.Fatalf("expected empty credential to be absent")
	}
}

func TestEnvOrDefault(t *testing.T) {
	t.Setenv("MEDIATE_TEST_SET", "  value  ")

	if got := EnvOrDefault("MEDIATE_TEST_SET", "fallback"); got != "value" {
		t.Fatalf("expected trimmed env value, got %q", got)
	}
	if got := EnvOrDefault("MEDIATE_TEST_UNSET", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
}

func TestRedactSecret(t *testing.T) {
	t.Parallel()

	if got := RedactSecret(""); got != "" {
		t.Fatalf("expected empty redaction for empty secret, got %q", got)
	}
	if got := RedactSecret("sensitive"); got != "***redacted***" {
		t.Fatalf("expected redacted marker, got %q", got)
	}
}
