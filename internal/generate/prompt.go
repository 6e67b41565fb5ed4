package generate

import (
	"strings"

	"github.com/ppiankov/ttpmap/internal/model"
)

// NoFeedback fills the feedback section on the first attempt
const NoFeedback = "None - First Attempt"

// SuggestionsMarker prefixes corpus suggestions inside feedback text
const SuggestionsMarker = "[CORPUS SUGGESTIONS]"

const systemPrompt = `You are a specialized Cybersecurity Research Agent.
Your goal: map raw, informal or slang descriptions of attacker activity to strict professional frameworks.

Task:
1. Analyze the user's input.
2. Identify the exact MITRE ATT&CK technique IDs (Txxxx or Txxxx.xxx).
3. Identify the NICE Framework Knowledge, Skill, Ability and Task elements that apply.
4. Refine the text into a professional log entry.

Constraint: you must output valid JSON only.`

const outputFormat = `{
    "refined_text": "Professional summary",
    "mitre_attack": [
        {"id": "TXXXX", "name": "Technique Name"}
    ],
    "knowledge": [
        {"id": "K0001", "description": "Knowledge description"}
    ],
    "skills": [
        {"id": "S0010", "description": "Skill description"}
    ],
    "abilities": [
        {"id": "A0004", "description": "Ability description"}
    ],
    "tasks": [
        {"id": "T0021", "description": "Task description"}
    ],
    "justification": "Why these codes and KSAs match"
}`

var focusInstructions = map[model.Focus]string{
	model.FocusMITRE: "Prioritize MITRE ATT&CK descriptions and ensure the right Txxxx codes are highlighted. KSA entries may be supplemental but only when they arise from the technique analysis.",
	model.FocusKSA:   "Prioritize Knowledge/Skill/Ability/Task mappings that align with the input. Mention MITRE techniques only if they directly support the required KSAs.",
	model.FocusBoth:  "Balance MITRE ATT&CK techniques with Knowledge/Skill/Ability/Task mappings, explaining why each framework element is relevant.",
}

var focusGuidance = map[model.Focus]string{
	model.FocusMITRE: "Only return MITRE references in 'mitre_attack' and keep KSA sections limited to what directly supports the technique. Avoid full KSA lists if not essential.",
	model.FocusKSA:   "Only return KSA entries in 'knowledge', 'skills', 'abilities' and 'tasks'. Leave 'mitre_attack' empty or explain why no MITRE mapping applies.",
	model.FocusBoth:  "Return both MITRE techniques and KSA entries. Each category should justify its outputs against the user's input.",
}

// SystemPrompt returns the fixed system instruction sent with every attempt
func SystemPrompt() string {
	return systemPrompt
}

// BuildPrompt assembles the user prompt for one attempt
func BuildPrompt(req Request) string {
	focus := req.Focus
	if _, ok := focusInstructions[focus]; !ok {
		focus = model.FocusBoth
	}

	feedback := strings.TrimSpace(req.Feedback)
	if feedback == "" {
		feedback = NoFeedback
	}

	var b strings.Builder
	section := func(title, body string) {
		b.WriteString("[" + title + "]\n")
		b.WriteString(body)
		b.WriteString("\n\n")
	}

	section("FOCUS", focusInstructions[focus])
	section("FOCUS GUIDANCE", focusGuidance[focus])
	section("USER INPUT", `"`+strings.ReplaceAll(strings.TrimSpace(req.Input), `"`, "'")+`"`)
	section("PREVIOUS FEEDBACK", feedback)
	section("REQUIRED JSON OUTPUT FORMAT", outputFormat)
	section("CRITICAL INSTRUCTION",
		"Every code listed in [PREVIOUS FEEDBACK] as non-existent or conflicting must be removed or corrected. "+
			"If the feedback contains "+SuggestionsMarker+", you MUST use the IDs given as \"instead of X use Y\" in your new draft. They come from the reference corpus and are correct.\n"+
			"Lines starting with \"related:\" are corpus records that match the activity; add them where they fit the description.")
	section("WARNING: LEGACY IDS",
		"Do NOT use legacy NICE Framework IDs like K0001, K0002, S0001 unless they are explicitly defined in the context.\n"+
			"The reference corpus may use a newer version of the framework.\n"+
			"If you are unsure, describe the concept and let the verifier suggest the correct ID.")

	return strings.TrimRight(b.String(), "\n")
}
