// Package catalog defines the CV section vocabulary: the set of known
// section names, the skeleton template for each section that shows the
// model the exact output shape, and the per-section research
// instructions. Everything downstream (prompt assembly, packaging)
// works against this catalog.
package catalog

import (
	"encoding/json"
	"fmt"
)

// FieldType identifies how a field value should be rendered.
type FieldType string

const (
	// FieldText is a plain single-line text value.
	FieldText FieldType = "TXT"
	// FieldDate is a date value.
	FieldDate FieldType = "DTT"
	// FieldLongText is a multi-line free text value.
	FieldLongText FieldType = "LTX"
)

// SectionTab is the only section rendering type in use.
const SectionTab = "TAB"

// Field is a single labeled value within a section.
type Field struct {
	Name  string    `json:"name"`
	Value string    `json:"value"`
	Type  FieldType `json:"type"`
}

// Section is a titled group of fields in a CV.
type Section struct {
	Label  string  `json:"label"`
	Type   string  `json:"type"`
	Fields []Field `json:"fields"`
}

// Name is a known CV section identifier.
type Name string

const (
	MainParticulars Name = "main_particulars"
	Education       Name = "education"
	Career          Name = "career"
	Appointments    Name = "appointments"
	Languages       Name = "languages"
	Remarks         Name = "remarks"
	Reference       Name = "reference"
)

// All returns every known section name in catalog order.
func All() []Name {
	return []Name{
		MainParticulars,
		Education,
		Career,
		Appointments,
		Languages,
		Remarks,
		Reference,
	}
}

// DefaultSet is the section list used when a request does not specify
// one. Remarks and languages are opt-in.
func DefaultSet() []Name {
	return []Name{MainParticulars, Education, Career, Appointments, Reference}
}

// Valid reports whether n names a known section.
func (n Name) Valid() bool {
	_, ok := templates[n]
	return ok
}

// templates maps each section name to its skeleton. The bracketed
// placeholder values show the model what to fill in.
var templates = map[Name]Section{
	MainParticulars: {
		Label: "Main Particulars",
		Type:  SectionTab,
		Fields: []Field{
			{Name: "Name", Value: "[Profile Official Name]", Type: FieldText},
			{Name: "Designation", Value: "[Profile Official Designation]", Type: FieldText},
			{Name: "Country", Value: "[Profile Country of Birth]", Type: FieldText},
			{Name: "Birth Date", Value: "[Profile Birthdate in DD MM YYYY]", Type: FieldDate},
			{Name: "Marital Status", Value: "[Profile marital status, with details on the number of children if any]", Type: FieldText},
		},
	},
	Education: {
		Label: "Education",
		Type:  SectionTab,
		Fields: []Field{
			{
				Name:  "[Qualification Name]",
				Value: "[Institution Name], [Country of Institution] ([Start Month Year - End Month Year of studies])",
				Type:  FieldText,
			},
		},
	},
	Career: {
		Label: "Career",
		Type:  SectionTab,
		Fields: []Field{
			{
				Name:  "[Name of Position]",
				Value: "[Company or Organization Name], [Country of Company/Organization] ([Start Month Year - End Month Year of employment])",
				Type:  FieldText,
			},
		},
	},
	Appointments: {
		Label: "Appointments",
		Type:  SectionTab,
		Fields: []Field{
			{
				Name:  "[Name of Position or Title]",
				Value: "[Company or Organization Name], [Country of Company/Organization] ([Start Month Year - End Month Year of tenure])",
				Type:  FieldText,
			},
		},
	},
	Languages: {
		Label: "Languages",
		Type:  SectionTab,
		Fields: []Field{
			{
				Name:  "[Language Name]",
				Value: "[Proficiency Level (e.g., Fluent, Conversational, Basic)]",
				Type:  FieldText,
			},
		},
	},
	Remarks: {
		Label: "Remarks",
		Type:  SectionTab,
		Fields: []Field{
			{
				Name:  "Remarks",
				Value: "[Any additional noteworthy information or personal achievements, including familial connections to other notable figures if relevant.]",
				Type:  FieldLongText,
			},
		},
	},
	Reference: {
		Label: "Reference",
		Type:  SectionTab,
		Fields: []Field{
			{
				Name:  "[Link Title]",
				Value: "[URL link]",
				Type:  FieldText,
			},
		},
	},
}

// Template returns the skeleton section for n. The second return is
// false for unknown names. Callers get a copy; mutating the result
// does not affect the catalog.
func Template(n Name) (Section, bool) {
	s, ok := templates[n]
	if !ok {
		return Section{}, false
	}
	s.Fields = append([]Field(nil), s.Fields...)
	return s, true
}

// Templates resolves a list of names to their skeletons. Unknown names
// are skipped, never an error; they come back in the second return so
// the caller can log them. Order of the input list is preserved.
func Templates(names []Name) (sections []Section, unknown []Name) {
	for _, n := range names {
		s, ok := Template(n)
		if !ok {
			unknown = append(unknown, n)
			continue
		}
		sections = append(sections, s)
	}
	return sections, unknown
}

// TemplatesJSON renders the skeletons for names as indented JSON, the
// sample output format embedded in the user prompt.
func TemplatesJSON(names []Name) (string, []Name, error) {
	sections, unknown := Templates(names)
	data, err := json.MarshalIndent(sections, "", "  ")
	if err != nil {
		return "", unknown, fmt.Errorf("marshal section templates: %w", err)
	}
	return string(data), unknown, nil
}

// Entry pairs a section's skeleton with its research brief.
type Entry struct {
	Template    Section
	Instruction string
}

// Lookup returns the catalog entry for n. The second return is false
// for unknown names.
func Lookup(n Name) (Entry, bool) {
	tmpl, ok := Template(n)
	if !ok {
		return Entry{}, false
	}
	return Entry{Template: tmpl, Instruction: Instruction(n)}, true
}

// instructions holds the research brief for each section, inserted
// into the user prompt verbatim.
var instructions = map[Name]string{
	MainParticulars: `For main particulars, provide comprehensive personal details including:
- Full legal name (including middle names if available)
- Current professional designation/title
- Country of residence or primary nationality
- Birth date in DD MMM YYYY format (e.g., "14 Jun 1946")
- Marital status with family details (number of marriages, children count and gender breakdown)
`,
	Education: `For the education section, provide detailed academic background including:
- Educational institutions attended (universities, colleges, schools, academies)
- Degree types and fields of study (Bachelor's, Master's, PhD, certificates, diplomas)
- Locations of institutions (city, state/province, country)
- Duration of studies (start and end dates or years attended)
Education entries can include professional certifications, specialized training programs, military academy and specialized institutional training.

Ensure each entry includes:
1. Institution name as the field "name"
2. Complete details (degree/program, institution, location, duration) as the "value"
3. "type" set to "TXT"

Return 10 and more entries.
`,
	Career: `For the career section, provide professional career positions including:
- Governmental positions (President, Governor, Senator, etc.)
- Corporate positions

Ensure each entry includes:
1. Position/Role/Source name as the field "name"
2. Complete details (organization, location, duration)
3. "type" set to "TXT" for all fields

Return 10 and more entries.
`,
	Appointments: `Provide business appointments, entrepreneurial ventures, and other professional roles including all professional appointments outside of the primary career track.

Ensure each entry includes:
1. Position/Role/Source name as the field "name"
2. Complete details (organization, location, duration)
3. "type" set to "TXT" for all fields

Return 5 and more entries.
`,
	Languages: `For the languages section, provide details of languages spoken including:
- Language names
- Proficiency levels (Fluent, Conversational, Basic, etc.)

Ensure each entry includes:
1. Language name as the field "name"
2. Proficiency level as the field "value"
3. "type" set to "TXT" for all fields
`,
	Remarks: `For the remarks section, provide any additional noteworthy information or personal achievements, including familial connections to other notable figures if relevant.

Ensure the entry includes:
1. "Remarks" as the field "name"
2. The noteworthy information as the field "value"
3. "type" set to "LTX"
`,
	Reference: `Include the hyperlink source for all the retrieved information in the reference section.

Ensure each entry includes:
1. Website page name as the field "name"
2. Hyperlink within the field "value"
3. "type" set to "TXT" for all fields
`,
}

// Instruction returns the research brief for n, or "none" for unknown
// names so prompt assembly never fails on a bad name.
func Instruction(n Name) string {
	if s, ok := instructions[n]; ok {
		return s
	}
	return "none"
}

// ParseNames converts raw strings into section names without
// validating them; use Templates to learn which are unknown.
func ParseNames(raw []string) []Name {
	names := make([]Name, 0, len(raw))
	for _, r := range raw {
		names = append(names, Name(r))
	}
	return names
}
