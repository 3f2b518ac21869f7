package generator

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/jonathan/mapping-testgen/internal/llm"
	"github.com/jonathan/mapping-testgen/internal/schemas"
	"github.com/jonathan/mapping-testgen/internal/types"
)

var errNoTestCases = errors.New("no test cases found in LLM response")

// rawCase is one test case as the LLM writes it.
type rawCase struct {
	TestCaseID       string          `json:"TestCaseID"`
	TestDescription  string          `json:"TestDescription"`
	TestSteps        json.RawMessage `json:"TestSteps"`
	ExpectedOutput   string          `json:"ExpectedOutput"`
	PassFailCriteria string          `json:"PassFailCriteria"`
	TestCaseType     string          `json:"TestCaseType"`
	Subtype          string          `json:"Subtype"`
	TargetAttribute  string          `json:"TargetAttribute"`
}

type rawResponse struct {
	TestCases []rawCase `json:"TestCases"`
}

// draft is a generated case before renumbering, with the attribute it targets.
type draft struct {
	types.TestCase
	Target string
}

const (
	defaultSteps    = "Execute test case\nVerify results"
	defaultExpected = "Expected output"
)

var (
	caseIDPattern        = regexp.MustCompile(`"TestCaseID"\s*:\s*"([^"]+)"`)
	trailingCommaPattern = regexp.MustCompile(`,(\s*[}\]])`)
	stepsPattern         = regexp.MustCompile(`(?s)"TestSteps"\s*:\s*\[(.*?)\]`)
	quotedPattern        = regexp.MustCompile(`"([^"]*)"`)
)

func fieldPattern(name string) *regexp.Regexp {
	return regexp.MustCompile(`"` + name + `"\s*:\s*"([^"]*)"`)
}

var (
	descPattern     = fieldPattern("TestDescription")
	outputPattern   = fieldPattern("ExpectedOutput")
	criteriaPattern = fieldPattern("PassFailCriteria")
	typePattern     = fieldPattern("TestCaseType")
	subtypePattern  = fieldPattern("Subtype")
	targetPattern   = fieldPattern("TargetAttribute")
)

// parseResponse decodes an LLM response. Schema-valid documents are decoded
// directly; anything else goes through lenient extraction. The second return
// value reports whether the lenient path was used.
func parseResponse(text string) ([]draft, bool, error) {
	cleaned := llm.CleanJSONBlock(text)

	if err := schemas.ValidateGenerationResponse(cleaned); err == nil {
		var resp rawResponse
		if err := json.Unmarshal([]byte(cleaned), &resp); err == nil && len(resp.TestCases) > 0 {
			drafts := make([]draft, 0, len(resp.TestCases))
			for _, rc := range resp.TestCases {
				drafts = append(drafts, rc.toDraft())
			}
			return drafts, false, nil
		}
	}

	drafts := extractLenient(cleaned)
	if len(drafts) == 0 {
		return nil, true, errNoTestCases
	}
	return drafts, true, nil
}

// extractLenient recovers test cases from malformed JSON by splitting on
// TestCaseID keys. Each block is decoded as JSON when it can be repaired and
// otherwise read field by field, with defaults for anything missing.
func extractLenient(text string) []draft {
	matches := caseIDPattern.FindAllStringSubmatchIndex(text, -1)
	drafts := make([]draft, 0, len(matches))

	for i, m := range matches {
		start := m[0]
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		} else if idx := strings.Index(text[start:], `"StatisticalSummary"`); idx > 0 {
			end = start + idx
		}
		block := text[start:end]
		id := text[m[2]:m[3]]

		if d, ok := decodeBlock(block); ok {
			drafts = append(drafts, d)
			continue
		}
		drafts = append(drafts, scanBlock(id, block))
	}
	return drafts
}

func decodeBlock(block string) (draft, bool) {
	candidate := llm.LeadingJSON("{" + block)
	if candidate == "" {
		return draft{}, false
	}
	candidate = trailingCommaPattern.ReplaceAllString(candidate, "$1")

	var rc rawCase
	if err := json.Unmarshal([]byte(candidate), &rc); err != nil {
		return draft{}, false
	}
	if rc.TestCaseID == "" || rc.TestDescription == "" {
		return draft{}, false
	}
	return rc.toDraft(), true
}

func scanBlock(id, block string) draft {
	rc := rawCase{
		TestCaseID:       id,
		TestDescription:  firstGroup(descPattern, block),
		ExpectedOutput:   firstGroup(outputPattern, block),
		PassFailCriteria: firstGroup(criteriaPattern, block),
		TestCaseType:     firstGroup(typePattern, block),
		Subtype:          firstGroup(subtypePattern, block),
		TargetAttribute:  firstGroup(targetPattern, block),
	}
	if rc.TestDescription == "" {
		rc.TestDescription = "Test case " + id
	}

	d := rc.toDraft()
	if m := stepsPattern.FindStringSubmatch(block); m != nil {
		var found []string
		for _, q := range quotedPattern.FindAllStringSubmatch(m[1], -1) {
			found = append(found, q[1])
		}
		if len(found) > 0 {
			d.Steps = strings.Join(found, "\n")
		}
	}
	return d
}

func firstGroup(re *regexp.Regexp, s string) string {
	if m := re.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func (rc rawCase) toDraft() draft {
	t, _ := types.ParseTestCaseType(rc.TestCaseType)
	st, _ := types.ParseSubtype(rc.Subtype)

	expected := strings.TrimSpace(rc.ExpectedOutput)
	if expected == "" {
		expected = strings.TrimSpace(rc.PassFailCriteria)
	}
	if expected == "" {
		expected = defaultExpected
	}

	return draft{
		TestCase: types.TestCase{
			ID:             rc.TestCaseID,
			Description:    strings.TrimSpace(rc.TestDescription),
			Steps:          decodeSteps(rc.TestSteps),
			ExpectedResult: expected,
			Type:           t,
			Subtype:        st,
		},
		Target: strings.TrimSpace(rc.TargetAttribute),
	}
}

// decodeSteps accepts an array of strings or a single string.
func decodeSteps(raw json.RawMessage) string {
	if len(raw) == 0 {
		return defaultSteps
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		var kept []string
		for _, s := range list {
			if s = strings.TrimSpace(s); s != "" {
				kept = append(kept, s)
			}
		}
		if len(kept) > 0 {
			return strings.Join(kept, "\n")
		}
		return defaultSteps
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil && strings.TrimSpace(single) != "" {
		return strings.TrimSpace(single)
	}
	return defaultSteps
}
