package captcha

import (
	"context"
	"testing"
)

func TestNewGeminiSolverRequiresAPIKey(t *testing.T) {
	if _, err := NewGeminiSolver(context.Background(), "", "gemini-2.0-flash"); err == nil {
		t.Error("NewGeminiSolver() with no API key returned nil error")
	}
}

func TestNewGeminiSolver(t *testing.T) {
	solver, err := NewGeminiSolver(context.Background(), "test-key", "gemini-2.0-flash")
	if err != nil {
		t.Fatalf("NewGeminiSolver() error = %v", err)
	}
	if solver.model != "gemini-2.0-flash" {
		t.Errorf("model = %q, want %q", solver.model, "gemini-2.0-flash")
	}

	// The solver must satisfy the Solver port the live resolver consumes.
	var _ Solver = solver
}
