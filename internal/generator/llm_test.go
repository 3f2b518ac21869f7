package generator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jonathan/mapping-testgen/internal/llm"
	"github.com/jonathan/mapping-testgen/internal/types"
)

type fakeClient struct {
	mu        sync.Mutex
	responses []string
	err       error
	pingErr   error
	prompts   []string
	tiers     []llm.ModelTier
}

func (f *fakeClient) GenerateJSON(_ context.Context, prompt string, tier llm.ModelTier) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	f.tiers = append(f.tiers, tier)
	if f.err != nil {
		return "", f.err
	}
	if len(f.responses) == 0 {
		return `{"TestCases": []}`, nil
	}
	resp := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return resp, nil
}

func (f *fakeClient) Ping(context.Context) error { return f.pingErr }
func (f *fakeClient) Close() error               { return nil }

const nameRowCSV = "Source_Field,Target_FHIR_Resource,FHIR_Attribute,Transformation_Rule,Data_Type,Required\nname,Patient,name,Direct,string,Yes"

const fullResponse = "```json\n" + `{
  "TestCases": [
    {"TestCaseID": "B_001_TC_001_functional_positive", "TestDescription": "Valid name maps", "TestSteps": ["Load", "Map"], "ExpectedOutput": "Patient.name set", "TestCaseType": "FUNCTIONAL", "Subtype": "POSITIVE", "TargetAttribute": "name"},
    {"TestCaseID": "B_001_TC_002_functional_negative", "TestDescription": "Numeric name rejected", "TestSteps": ["Load", "Map"], "ExpectedOutput": "Rejected", "TestCaseType": "FUNCTIONAL", "Subtype": "NEGATIVE", "TargetAttribute": "name"},
    {"TestCaseID": "B_001_TC_003_edge_negative", "TestDescription": "Missing name", "TestSteps": "Load without name", "PassFailCriteria": "Error raised", "TestCaseType": "EDGE", "Subtype": "NEGATIVE", "TargetAttribute": "Patient.name"},
    {"TestCaseID": "B_001_TC_004_regression_positive", "TestDescription": "Patient still maps", "TestCaseType": "REGRESSION", "Subtype": "POSITIVE"}
  ]
}` + "\n```"

func TestLLM_ValidResponse(t *testing.T) {
	client := &fakeClient{responses: []string{fullResponse}}
	g := NewLLM(client, zap.NewNop())

	cases, err := g.Generate(context.Background(), parseRequest(t, nameRowCSV, "001"))
	require.NoError(t, err)
	require.Len(t, cases, 4)

	assert.Equal(t, "B_001_TC_001_functional_positive", cases[0].ID)
	assert.Equal(t, "Load\nMap", cases[0].Steps)
	assert.Equal(t, "Load without name", cases[2].Steps)
	assert.Equal(t, "Error raised", cases[2].ExpectedResult)
	assert.Equal(t, defaultSteps, cases[3].Steps)

	require.Len(t, client.prompts, 1)
	assert.Contains(t, client.prompts[0], nameRowCSV)
	assert.Contains(t, client.prompts[0], "B_001_TC_001_functional_positive")
}

func TestLLM_FillsCoverageGaps(t *testing.T) {
	resp := `{"TestCases": [{"TestCaseID": "X1", "TestDescription": "Valid name maps to Patient", "TestCaseType": "FUNCTIONAL", "Subtype": "POSITIVE"}]}`
	g := NewLLM(&fakeClient{responses: []string{resp}}, zap.NewNop())

	cases, err := g.Generate(context.Background(), parseRequest(t, nameRowCSV, "001"))
	require.NoError(t, err)

	var kinds []string
	for _, c := range cases {
		kinds = append(kinds, string(c.Type)+"/"+string(c.Subtype))
	}
	assert.Equal(t, []string{
		"FUNCTIONAL/POSITIVE",
		"FUNCTIONAL/NEGATIVE",
		"EDGE/NEGATIVE",
		"REGRESSION/POSITIVE",
	}, kinds)
	assert.Equal(t, "Valid name maps to Patient", cases[0].Description)
	assert.Equal(t, "B_001_TC_004_regression_positive", cases[3].ID)
}

func TestLLM_FillsEdgeCaseWithWrongSubtype(t *testing.T) {
	resp := `{"TestCases": [
  {"TestCaseID": "X1", "TestDescription": "Valid name", "TestCaseType": "FUNCTIONAL", "Subtype": "POSITIVE", "TargetAttribute": "name"},
  {"TestCaseID": "X2", "TestDescription": "Bad name", "TestCaseType": "FUNCTIONAL", "Subtype": "NEGATIVE", "TargetAttribute": "name"},
  {"TestCaseID": "X3", "TestDescription": "Very long name", "TestCaseType": "EDGE", "Subtype": "POSITIVE", "TargetAttribute": "name"}
]}`
	g := NewLLM(&fakeClient{responses: []string{resp}}, zap.NewNop())

	cases, err := g.Generate(context.Background(), parseRequest(t, nameRowCSV, "001"))
	require.NoError(t, err)

	var kinds []string
	for _, c := range cases {
		kinds = append(kinds, string(c.Type)+"/"+string(c.Subtype))
	}
	assert.Equal(t, []string{
		"FUNCTIONAL/POSITIVE",
		"FUNCTIONAL/NEGATIVE",
		"EDGE/POSITIVE",
		"EDGE/NEGATIVE",
		"REGRESSION/POSITIVE",
	}, kinds, "required row gets its negative edge case from the template")
	assert.Equal(t, "B_001_TC_004_edge_negative", cases[3].ID)
}

func TestLLM_OptionalRowAcceptsPositiveEdge(t *testing.T) {
	optional := "Source_Field,Target_FHIR_Resource,FHIR_Attribute,Transformation_Rule,Data_Type,Required\nnickname,Patient,alias,Direct,string,No"
	resp := `{"TestCases": [
  {"TestCaseID": "X1", "TestDescription": "Valid alias", "TestCaseType": "FUNCTIONAL", "Subtype": "POSITIVE", "TargetAttribute": "alias"},
  {"TestCaseID": "X2", "TestDescription": "Bad alias", "TestCaseType": "FUNCTIONAL", "Subtype": "NEGATIVE", "TargetAttribute": "alias"},
  {"TestCaseID": "X3", "TestDescription": "Empty alias", "TestCaseType": "EDGE", "Subtype": "POSITIVE", "TargetAttribute": "alias"}
]}`
	g := NewLLM(&fakeClient{responses: []string{resp}}, zap.NewNop())

	cases, err := g.Generate(context.Background(), parseRequest(t, optional, "002"))
	require.NoError(t, err)
	require.Len(t, cases, 4)
	assert.Equal(t, "Empty alias", cases[2].Description)
	assert.Equal(t, types.TypeRegression, cases[3].Type)
}

func TestLLM_LenientExtraction(t *testing.T) {
	malformed := `Here you go:
{"TestCases": [
  {"TestCaseID": "B_001_TC_001_functional_positive", "TestDescription": "Valid name", "TestSteps": ["a", "b",], "ExpectedOutput": "ok", "TestCaseType": "FUNCTIONAL", "Subtype": "POSITIVE", "TargetAttribute": "name",},
  {"TestCaseID": "B_001_TC_002_functional_negative", "TestDescription": "Bad name", "TestSteps": ["c"], "TestCaseType": "functional", "Subtype": "negative", "TargetAttribute": "name"},
  {"TestCaseID": "B_001_TC_003_edge_negative", "TestDescription": "Missing name", "TestSteps": ["d", "e"], "TestCaseType": "EDGE", "Subtype": "NEGATIVE", "TargetAttribute": "name", "ExpectedOutput": "trunc`

	g := NewLLM(&fakeClient{responses: []string{malformed}}, zap.NewNop())
	cases, err := g.Generate(context.Background(), parseRequest(t, nameRowCSV, "001"))
	require.NoError(t, err)
	require.Len(t, cases, 4)

	assert.Equal(t, "a\nb", cases[0].Steps)
	assert.Equal(t, types.TypeFunctional, cases[1].Type)
	assert.Equal(t, types.SubtypeNegative, cases[1].Subtype)
	assert.Equal(t, "Missing name", cases[2].Description)
	assert.Equal(t, "d\ne", cases[2].Steps)
	assert.Equal(t, types.TypeRegression, cases[3].Type)
}

func TestLLM_Unavailable(t *testing.T) {
	g := NewLLM(&fakeClient{err: errors.New("connection refused")}, zap.NewNop())

	_, err := g.Generate(context.Background(), parseRequest(t, nameRowCSV, "001"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestLLM_UnusableResponse(t *testing.T) {
	g := NewLLM(&fakeClient{responses: []string{"I cannot help with that."}}, zap.NewNop())

	_, err := g.Generate(context.Background(), parseRequest(t, nameRowCSV, "001"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errNoTestCases)
	assert.NotErrorIs(t, err, ErrUnavailable)
}

func TestLLM_ChunksByBatchSize(t *testing.T) {
	client := &fakeClient{responses: []string{`{"TestCases": []}`}}
	g := NewLLM(client, zap.NewNop())

	req := parseRequest(t, sampleCSV, "001")
	req.BatchSize = 2

	_, err := g.Generate(context.Background(), req)
	require.Error(t, err, "empty responses are not accepted")

	client = &fakeClient{responses: []string{
		`{"TestCases": [{"TestCaseID": "a", "TestDescription": "name ok", "TestCaseType": "FUNCTIONAL", "Subtype": "POSITIVE", "TargetAttribute": "name"}]}`,
		`{"TestCases": [{"TestCaseID": "b", "TestDescription": "code ok", "TestCaseType": "FUNCTIONAL", "Subtype": "POSITIVE", "TargetAttribute": "code"}]}`,
	}}
	g = NewLLM(client, zap.NewNop())

	cases, err := g.Generate(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, client.prompts, 2)

	assert.Contains(t, client.prompts[0], "Source_Field,Target_FHIR_Resource,FHIR_Attribute")
	assert.Contains(t, client.prompts[0], "birthDate")
	assert.NotContains(t, client.prompts[0], "Observation")
	assert.Contains(t, client.prompts[1], "Observation")
	assert.Contains(t, client.prompts[1], "starting at 7")

	// 3 target rows x 3 + 2 regressions
	require.Len(t, cases, 11)
	seen := make(map[string]bool)
	for i, c := range cases {
		assert.Equal(t, FormatID("001", i+1, c.Type, c.Subtype), c.ID)
		assert.False(t, seen[c.ID])
		seen[c.ID] = true
	}
}

func TestLLM_WithTier(t *testing.T) {
	client := &fakeClient{responses: []string{fullResponse}}
	base := NewLLM(client, zap.NewNop())
	advanced := base.WithTier(llm.TierAdvanced)

	_, err := advanced.Generate(context.Background(), parseRequest(t, nameRowCSV, "001"))
	require.NoError(t, err)
	_, err = base.Generate(context.Background(), parseRequest(t, nameRowCSV, "001"))
	require.NoError(t, err)

	assert.Equal(t, []llm.ModelTier{llm.TierAdvanced, llm.TierStandard}, client.tiers)
}

func TestLLM_Ping(t *testing.T) {
	assert.NoError(t, NewLLM(&fakeClient{}, nil).Ping(context.Background()))

	err := NewLLM(&fakeClient{pingErr: errors.New("403")}, nil).Ping(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestChunkRows(t *testing.T) {
	req := parseRequest(t, sampleCSV, "1")
	assert.Len(t, chunkRows(req.Rows, 0), 1)
	assert.Len(t, chunkRows(req.Rows, 10), 1)

	chunks := chunkRows(req.Rows, 3)
	require.Len(t, chunks, 2)
	assert.Len(t, chunks[0], 3)
	assert.Len(t, chunks[1], 1)
}

func TestDecodeSteps(t *testing.T) {
	assert.Equal(t, "a\nb", decodeSteps([]byte(`["a", " ", "b"]`)))
	assert.Equal(t, "one step", decodeSteps([]byte(`" one step "`)))
	assert.Equal(t, defaultSteps, decodeSteps(nil))
	assert.Equal(t, defaultSteps, decodeSteps([]byte(`[]`)))
	assert.Equal(t, defaultSteps, decodeSteps([]byte(`42`)))
}

func TestExtractLenient_FieldFallback(t *testing.T) {
	text := `"TestCaseID": "T1", "TestDescription": "first" "broken": ,
"TestCaseID": "T2", "TestCaseType": "EDGE"`

	drafts := extractLenient(text)
	require.Len(t, drafts, 2)

	assert.Equal(t, "T1", drafts[0].ID)
	assert.Equal(t, "first", drafts[0].Description)
	assert.Equal(t, types.TypeFunctional, drafts[0].Type)
	assert.Equal(t, types.SubtypePositive, drafts[0].Subtype)
	assert.Equal(t, defaultExpected, drafts[0].ExpectedResult)
	assert.Equal(t, defaultSteps, drafts[0].Steps)

	assert.Equal(t, "Test case T2", drafts[1].Description)
	assert.Equal(t, types.TypeEdge, drafts[1].Type)
}

func TestExtractLenient_StopsAtSummary(t *testing.T) {
	text := `{"TestCases": [{"TestCaseID": "T1", "TestCaseType": "EDGE", "Subtype": "NEGATIVE"` +
		`], "StatisticalSummary": {"TotalTestCases": 1, "TestDescription": "from summary"}`

	drafts := extractLenient(text)
	require.Len(t, drafts, 1)
	assert.Equal(t, "T1", drafts[0].ID)
	assert.Equal(t, "Test case T1", drafts[0].Description)
	assert.False(t, strings.Contains(drafts[0].Description, "summary"))
}
