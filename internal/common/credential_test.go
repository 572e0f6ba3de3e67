package common

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

const secret = "sk-live-1234567890"

func TestCredentialNeverPrints(t *testing.T) {
	cred := NewCredential("  " + secret + "\n")
	if cred.Reveal() != secret {
		t.Fatalf("Reveal = %q", cred.Reveal())
	}

	outputs := []string{
		fmt.Sprintf("%v", cred),
		fmt.Sprintf("%+v", cred),
		fmt.Sprintf("%#v", cred),
		fmt.Sprintf("%s", cred),
		fmt.Sprint(struct{ Key *Credential }{cred}),
	}
	b, err := json.Marshal(map[string]any{"key": cred})
	if err != nil {
		t.Fatal(err)
	}
	outputs = append(outputs, string(b))

	var logs bytes.Buffer
	slog.New(slog.NewJSONHandler(&logs, nil)).Info("session.key.set", "credential", cred)
	slog.New(slog.NewTextHandler(&logs, nil)).Info("session.key.set", "credential", cred)
	outputs = append(outputs, logs.String())

	for _, out := range outputs {
		if strings.Contains(out, secret) {
			t.Fatalf("secret leaked: %s", out)
		}
	}
	if !strings.Contains(logs.String(), redacted) {
		t.Fatalf("expected redaction marker in logs: %s", logs.String())
	}
}

func TestCredentialRelease(t *testing.T) {
	cred := NewCredential(secret)
	if cred.Empty() {
		t.Fatal("new credential must not be empty")
	}
	cred.Release()
	if !cred.Empty() || cred.Reveal() != "" {
		t.Fatal("released credential must be empty")
	}

	var none *Credential
	none.Release()
	if !none.Empty() || none.Reveal() != "" {
		t.Fatal("nil credential must behave as empty")
	}
	if !NewCredential("   ").Empty() {
		t.Fatal("whitespace key must be empty")
	}
}
