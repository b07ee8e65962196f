package config

import (
	"fmt"
	"os"
	"strings"
)

const envSecretRefPrefix = "env://"

// Credential is a provider secret supplied either literally or as a reference.
// A non-empty Ref wins over Literal.
type Credential struct {
	Literal string
	Ref     string
}

// Resolve returns the secret value, resolving Ref from the process environment.
func (c Credential) Resolve() (string, error) {
	return c.ResolveWithLookup(os.LookupEnv)
}

// ResolveWithLookup resolves the credential using the supplied lookup function.
func (c Credential) ResolveWithLookup(lookup func(string) (string, bool)) (string, error) {
	ref := strings.TrimSpace(c.Ref)
	if ref == "" {
		return strings.TrimSpace(c.Literal), nil
	}
	return ResolveSecretRefWithLookup(ref, lookup)
}

// Value resolves the credential and falls back to the literal when the ref is unusable.
func (c Credential) Value() string {
	value, err := c.Resolve()
	if err != nil {
		return strings.TrimSpace(c.Literal)
	}
	return value
}

// Present reports whether the credential resolves to a non-empty value.
func (c Credential) Present() bool {
	return c.Value() != ""
}

// ResolveSecretRef resolves a secret reference using process environment lookup.
// Supported reference forms are "env://VARIABLE_NAME" and "VARIABLE_NAME".
func ResolveSecretRef(ref string) (string, error) {
	return ResolveSecretRefWithLookup(ref, os.LookupEnv)
}

// ResolveSecretRefWithLookup resolves a secret reference using the supplied lookup function.
func ResolveSecretRefWithLookup(ref string, lookup func(string) (string, bool)) (string, error) {
	name, err := parseSecretRefName(ref)
	if err != nil {
		return "", err
	}
	if lookup == nil {
		return "", fmt.Errorf("secret lookup function is required")
	}
	value, ok := lookup(name)
	if !ok || strings.TrimSpace(value) == "" {
		return "", fmt.Errorf("secret_ref %q resolved empty value", name)
	}
	return value, nil
}

// EnvOrDefault returns the trimmed env value or fallback when unset.
func EnvOrDefault(envVar string, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(envVar)); v != "" {
		return v
	}
	return fallback
}

// RedactSecret returns a deterministic redacted marker for non-empty secret material.
func RedactSecret(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	return "***redacted***"
}

func parseSecretRefName(ref string) (string, error) {
	trimmed := strings.TrimSpace(ref)
	if trimmed == "" {
		return "", fmt.Errorf("secret_ref is required")
	}
	if strings.HasPrefix(trimmed, envSecretRefPrefix) {
		name := strings.TrimSpace(strings.TrimPrefix(trimmed, envSecretRefPrefix))
		if name == "" {
			return "", fmt.Errorf("secret_ref %q is missing env var name", ref)
		}
		if strings.Contains(name, "/") {
			return "", fmt.Errorf("secret_ref %q contains unsupported path separator", ref)
		}
		return name, nil
	}
	if strings.Contains(trimmed, "://") {
		return "", fmt.Errorf("secret_ref %q uses unsupported scheme", ref)
	}
	if strings.Contains(trimmed, "/") {
		return "", fmt.Errorf("secret_ref %q contains unsupported path separator", ref)
	}
	return trimmed, nil
}
