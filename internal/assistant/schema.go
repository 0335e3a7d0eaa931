package assistant

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// bugReportReply is the object the bug report prompt asks the model for.
type bugReportReply struct {
	Title            string   `json:"title" jsonschema:"required,description=One-line summary starting with the [AI Draft] prefix"`
	Description      string   `json:"description" jsonschema:"required,description=What went wrong and where"`
	StepsToReproduce []string `json:"stepsToReproduce" jsonschema:"required,description=Ordered manual steps a tester can follow"`
	ExpectedResult   string   `json:"expectedResult" jsonschema:"required"`
	ActualResult     string   `json:"actualResult" jsonschema:"required"`
	Severity         string   `json:"severity" jsonschema:"required,enum=Low,enum=Medium,enum=High,enum=Critical"`
}

// fixReply is the object the fix prompt asks the model for.
type fixReply struct {
	Description      string `json:"description" jsonschema:"required,description=Brief explanation of the issue"`
	SuggestedChanges string `json:"suggestedChanges" jsonschema:"required,description=Code snippet or unified diff that fixes the test"`
	Confidence       string `json:"confidence" jsonschema:"required,enum=Low,enum=Medium,enum=High"`
}

// testCasesReply is the object the test case prompt asks the model for.
type testCasesReply struct {
	TestCases []string `json:"testCases" jsonschema:"required,description=One manual test case per entry starting with Verify"`
}

var (
	bugReportSchema = generateSchema[bugReportReply]()
	fixSchema       = generateSchema[fixReply]()
	testCasesSchema = generateSchema[testCasesReply]()
)

// generateSchema reflects T into an inline JSON Schema for embedding in prompts.
func generateSchema[T any]() string {
	reflector := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}

	var zero T
	schema := reflector.Reflect(zero)

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		panic(fmt.Sprintf("failed to generate schema for type %T: %v", zero, err))
	}
	return string(data)
}
