// Package prompts assembles the system and user prompts sent to the
// model. Assembly is pure string work over the section catalog; it
// never fails, it only reports unknown section names back to the
// caller for logging.
package prompts

import (
	"fmt"
	"strings"

	"github.com/dossier-ai/dossier-agent/internal/catalog"
)

const systemPrompt = `You are an intelligent assistant designed to help foreign service officers compile accurate CVs for diplomatic professionals.
Your task is to use web search (Tavily tool) to gather updated and precise information based on the profile name, his country, and his designation (optional),
focusing on a set of specific CV fields at a time.

PROCESS:
1. When a user provides profile name, country, designation, and specific set of CV fields, carefully analyze this information.
2. Return as many search results as possible. Searching Linkedin is a must.
For non-English profile, please also search foreign language websites.
3. Organize the information into the exact JSON structure requested by the user.`

// SystemPrompt returns the fixed system message content that seeds
// every thread.
func SystemPrompt() string {
	return systemPrompt
}

// Profile identifies the person a CV is being compiled for.
type Profile struct {
	Name        string
	Country     string
	Designation string // optional
}

// BuildHumanPrompt renders the user message for a profile and a list
// of requested sections. Unknown section names are skipped and
// returned for the caller to log; the prompt is built from whatever
// valid names remain, in the requested order.
func BuildHumanPrompt(p Profile, sections []catalog.Name) (string, []string) {
	var instructions strings.Builder
	for _, n := range sections {
		if !n.Valid() {
			continue
		}
		instructions.WriteString(catalog.Instruction(n))
		instructions.WriteString("\n")
	}

	outputFormat, unknownNames, err := catalog.TemplatesJSON(sections)
	if err != nil {
		// Marshaling static templates cannot fail in practice.
		outputFormat = "[]"
	}

	unknown := make([]string, 0, len(unknownNames))
	for _, n := range unknownNames {
		unknown = append(unknown, string(n))
	}

	designation := ""
	if p.Designation != "" {
		designation = " with designation " + p.Designation
	}

	prompt := fmt.Sprintf(`For Profile %s from country %s%s, generate the CV content below:

%s
Generate the output in following sample format:
%s

Your output should contain only the requested JSON structure with accurate information gathered through web search without any additional commentary.
Language of output is strictly English, so please translate into accurate English if output is of another language.`,
		p.Name, p.Country, designation, instructions.String(), outputFormat)

	return prompt, unknown
}
