package assistant

import (
	"context"
	"errors"
	"testing"

	"qatriage/internal/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var loginFeature = FeatureRequest{
	Description:  "As a standard user, I want to log in so that I can see the list of products.",
	PageURL:      "https://www.saucedemo.com/",
	PageElements: []string{"#user-name", "#password", "#login-button"},
}

func TestGenerateTestCases_JSONReply(t *testing.T) {
	client := &fakeClient{reply: "Here you go:\n" + `{"testCases":["Verify login with valid credentials","Verify error for a locked user"]}`}
	cases, err := NewTestGenerator(client).GenerateTestCases(context.Background(), loginFeature)
	require.NoError(t, err)

	assert.Equal(t, []string{"Verify login with valid credentials", "Verify error for a locked user"}, cases)
	assert.Contains(t, client.user, "Page URL: https://www.saucedemo.com/")
	assert.Contains(t, client.user, "- #login-button\n")
	assert.Contains(t, client.system, "testCases")
}

func TestGenerateTestCases_PlainListReply(t *testing.T) {
	client := &fakeClient{reply: "1. Verify login works\n\n- Verify logout works\n"}
	cases, err := NewTestGenerator(client).GenerateTestCases(context.Background(), FeatureRequest{Description: "auth"})
	require.NoError(t, err)

	assert.Equal(t, []string{"Verify login works", "Verify logout works"}, cases)
	assert.Contains(t, client.user, "Page URL: unknown")
	assert.NotContains(t, client.user, "Page elements")
}

func TestGenerateTestCases_EmptyList(t *testing.T) {
	client := &fakeClient{reply: `{"testCases":[]}`}
	_, err := NewTestGenerator(client).GenerateTestCases(context.Background(), loginFeature)

	var pe *ParseError
	require.ErrorAs(t, err, &pe)
}

func TestGenerateTestCases_ModelErrorIsReturned(t *testing.T) {
	cause := &llm.CredentialError{Provider: llm.ProviderOpenAI, EnvVar: "OPENAI_API_KEY", Msg: "no key"}
	client := &fakeClient{err: cause}
	_, err := NewTestGenerator(client).GenerateTestCases(context.Background(), loginFeature)

	require.Error(t, err)
	assert.True(t, llm.IsCredentialError(err))
}

func TestGenerateTestFile_FencedReply(t *testing.T) {
	reply := "Sure:\n```go\npackage e2e\n\nimport \"testing\"\n\nfunc TestLogin(t *testing.T) {\nt.Log(\"ok\")\n}\n```\nGood luck."
	client := &fakeClient{reply: reply}
	src, err := NewTestGenerator(client).GenerateTestFile(context.Background(), loginFeature, "e2e")
	require.NoError(t, err)

	want := generatedHeader + "package e2e\n\nimport \"testing\"\n\nfunc TestLogin(t *testing.T) {\n\tt.Log(\"ok\")\n}\n"
	assert.Equal(t, want, string(src))
	assert.Contains(t, client.system, "package e2e")
	assert.Contains(t, client.system, "go-rod")
}

func TestGenerateTestFile_AddsMissingPackageClause(t *testing.T) {
	client := &fakeClient{reply: "func TestCart(t *testing.T) {}"}
	src, err := NewTestGenerator(client).GenerateTestFile(context.Background(), loginFeature, "checkout")
	require.NoError(t, err)

	assert.Contains(t, string(src), "package checkout\n")
	assert.Contains(t, string(src), "func TestCart(t *testing.T) {}")
}

func TestGenerateTestFile_InvalidGo(t *testing.T) {
	client := &fakeClient{reply: "I cannot write that test, sorry."}
	src, err := NewTestGenerator(client).GenerateTestFile(context.Background(), loginFeature, "e2e")

	assert.Nil(t, src)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "I cannot write that test, sorry.", pe.Raw)
}

func TestGenerateTestFile_ProviderError(t *testing.T) {
	client := &fakeClient{err: errors.New("connection reset")}
	_, err := NewTestGenerator(client).GenerateTestFile(context.Background(), loginFeature, "e2e")
	require.ErrorContains(t, err, "connection reset")
}
