package workflow

import "testing"

func TestCompileGuard(t *testing.T) {
	if err := CompileGuard(""); err != nil {
		t.Errorf("CompileGuard(\"\") error = %v, want nil", err)
	}
	if err := CompileGuard(`allow := metadata.priority != "low"`); err != nil {
		t.Errorf("CompileGuard() on a valid script error = %v", err)
	}
	if err := CompileGuard(`allow := := broken`); err == nil {
		t.Error("CompileGuard() accepted a script that does not compile")
	}
}

func TestEvaluateGuard(t *testing.T) {
	def := &WorkflowDefinition{
		WorkflowType: "survey_response",
		SubmitGuard: `
allow := true
reason := ""
if metadata.priority == "low" {
	allow = false
	reason = "low-priority items skip approval"
}`,
	}

	if err := EvaluateGuard(def, map[string]interface{}{"priority": "high"}); err != nil {
		t.Errorf("EvaluateGuard() with passing metadata error = %v", err)
	}

	err := EvaluateGuard(def, map[string]interface{}{"priority": "low"})
	if err == nil {
		t.Fatal("EvaluateGuard() allowed metadata the guard rejects")
	}

	// No guard means everything passes.
	if err := EvaluateGuard(&WorkflowDefinition{}, nil); err != nil {
		t.Errorf("EvaluateGuard() without a guard error = %v", err)
	}
}
