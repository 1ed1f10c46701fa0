package cli

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
)

func resetPolicyFlags() {
	policyFile = filepath.Join("testdata", "bucket.json")
	policyFormat = "text"
	policyAction = "s3:GetObject"
	policyResource = "arn:aws:s3:::bucket/report.csv"
	policyContext = nil
	policyTrace = false
	logger = nil
}

func TestRunPolicyEvaluateDeny(t *testing.T) {
	resetPolicyFlags()
	policyContext = []string{"aws:SecureTransport=false"}
	cmd, buf := capture()

	if err := runPolicyEvaluate(cmd, nil); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "DENY: Explicit deny (statement 1, DenyInsecureTransport)") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestRunPolicyEvaluateAllowWithTrace(t *testing.T) {
	resetPolicyFlags()
	policyContext = []string{"aws:SecureTransport=true"}
	policyTrace = true
	cmd, buf := capture()

	if err := runPolicyEvaluate(cmd, nil); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "ALLOW: Explicit allow (statement 0, AllowRead)") {
		t.Fatalf("unexpected output:\n%s", out)
	}
	if !strings.Contains(out, "#1 DenyInsecureTransport [Deny]") || !strings.Contains(out, "conditions not satisfied") {
		t.Fatalf("expected trace lines:\n%s", out)
	}
}

func TestRunPolicyEvaluateJSON(t *testing.T) {
	resetPolicyFlags()
	policyFormat = "json"
	policyAction = "ec2:RunInstances"
	cmd, buf := capture()

	if err := runPolicyEvaluate(cmd, nil); err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	var result map[string]any
	if err := json.Unmarshal(buf.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result["allowed"] != false || result["reason"] != "Implicit deny (no matching allow)" {
		t.Fatalf("unexpected result: %v", result)
	}
	if _, ok := result["matched_statement_index"]; ok {
		t.Fatalf("implicit deny should omit the statement index: %v", result)
	}
}

func TestRunPolicyEvaluateErrors(t *testing.T) {
	resetPolicyFlags()
	policyContext = []string{"aws:SecureTransport"}
	cmd, _ := capture()
	if err := runPolicyEvaluate(cmd, nil); err == nil {
		t.Fatalf("expected error for malformed --context")
	}

	resetPolicyFlags()
	policyFile = filepath.Join("testdata", "missing.json")
	if err := runPolicyEvaluate(cmd, nil); err == nil {
		t.Fatalf("expected error for missing policy file")
	}
}

func TestRunPolicyAnalyze(t *testing.T) {
	resetPolicyFlags()
	cmd, buf := capture()

	if err := runPolicyAnalyze(cmd, nil); err != nil {
		t.Fatalf("analyze: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Statements: 2 (1 allow, 1 deny)") {
		t.Fatalf("unexpected output:\n%s", out)
	}
	if !strings.Contains(out, "statement 1: full service access (s3:*)") {
		t.Fatalf("expected issue listing:\n%s", out)
	}
}
