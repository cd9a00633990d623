package workflow

import (
	"fmt"

	"github.com/d5/tengo/v2"
)

// CompileGuard checks a submit-guard script at definition-creation time so
// a broken script never reaches the submit path.
func CompileGuard(source string) error {
	if source == "" {
		return nil
	}
	script := tengo.NewScript([]byte(source))
	script.Add("metadata", map[string]interface{}{})
	script.Add("workflow_type", "")
	if _, err := script.Compile(); err != nil {
		return fmt.Errorf("%w: submit guard does not compile: %v", ErrMalformedChain, err)
	}
	return nil
}

// EvaluateGuard runs the definition's submit guard against the request
// metadata. The script must set `allow` to a truthy value for the submit to
// proceed; it may set `reason` to explain a denial.
func EvaluateGuard(def *WorkflowDefinition, metadata map[string]interface{}) error {
	if def.SubmitGuard == "" {
		return nil
	}
	if metadata == nil {
		metadata = map[string]interface{}{}
	}

	script := tengo.NewScript([]byte(def.SubmitGuard))
	script.Add("metadata", metadata)
	script.Add("workflow_type", def.WorkflowType)

	compiled, err := script.Compile()
	if err != nil {
		return fmt.Errorf("submit guard does not compile: %w", err)
	}
	if err := compiled.Run(); err != nil {
		return fmt.Errorf("submit guard failed: %w", err)
	}

	if allow := compiled.Get("allow"); !allow.Bool() {
		reason := compiled.Get("reason").String()
		if reason == "" || reason == "<undefined>" {
			reason = "submission blocked by workflow guard"
		}
		return fmt.Errorf("submit guard rejected request: %s", reason)
	}
	return nil
}
