package task

import (
	"fmt"
	"sort"
	"strings"

	"ai-research-be/pkg/store"
)

// Name identifies one analysis task. The set is closed: new tasks are added
// here at compile time, never at runtime.
type Name string

const (
	Overview       Name = "overview"
	ProductFit     Name = "product_fit"
	Goals          Name = "goals"
	DeptMapping    Name = "dept_mapping"
	Synergy        Name = "synergy"
	Pricing        Name = "pricing"
	ROI            Name = "roi"
	AdditionalData Name = "additional_data"
)

// Context is the immutable snapshot handed to every task in a round. The
// dispatcher shares one value across all workers; nothing here is mutated
// after the round starts.
type Context struct {
	Company             string
	AssociatedCompanies []string
	References          []string
	Focus               string
	Documents           []store.Document
	PriorSections       map[string]string
}

// Definition ties a task to its display title and prompt builder.
type Definition struct {
	Title       string
	BuildPrompt func(tc Context) string
}

var registry = map[Name]Definition{
	Overview: {
		Title: "Company Overview & Value Proposition",
		BuildPrompt: func(tc Context) string {
			return analysisPrompt(tc,
				"Summarize what the company does, its core value proposition, target market and positioning.",
				"Cover the main product lines, who buys them and why, and how the company presents itself.")
		},
	},
	ProductFit: {
		Title: "Product & Solution Fit",
		BuildPrompt: func(tc Context) string {
			return analysisPrompt(tc,
				"Analyze the company's products and services and assess where our solutions would fit.",
				"Identify concrete integration points, technology overlaps and unmet needs visible in the material.")
		},
	},
	Goals: {
		Title: "Strategic Goals & Initiatives",
		BuildPrompt: func(tc Context) string {
			return analysisPrompt(tc,
				"Extract the company's stated strategic goals, initiatives and growth plans.",
				"Prefer explicit statements from the material over inference; flag goals that are only implied.")
		},
	},
	DeptMapping: {
		Title: "Department & Stakeholder Mapping",
		BuildPrompt: func(tc Context) string {
			return analysisPrompt(tc,
				"Map the departments, teams and likely decision makers relevant to an engagement.",
				"Note reporting lines and named executives where the material mentions them.")
		},
	},
	Synergy: {
		Title: "Synergy & Partnership Opportunities",
		BuildPrompt: func(tc Context) string {
			return analysisPrompt(tc,
				"Identify synergy and partnership opportunities between the company and its ecosystem.",
				"Include the associated companies listed below where their relationship is relevant.")
		},
	},
	Pricing: {
		Title: "Pricing & Commercial Model",
		BuildPrompt: func(tc Context) string {
			return analysisPrompt(tc,
				"Describe the company's pricing and commercial model as far as the material reveals it.",
				"Distinguish confirmed pricing facts from estimates, and say when nothing is known.")
		},
	},
	ROI: {
		Title: "ROI & Business Case",
		BuildPrompt: func(tc Context) string {
			return analysisPrompt(tc,
				"Build the outline of a business case: costs, benefits and a realistic ROI narrative.",
				"Anchor every claim in the material; mark assumptions explicitly.")
		},
	},
	AdditionalData: {
		Title: "Additional Requested Data",
		BuildPrompt: func(tc Context) string {
			return analysisPrompt(tc,
				fmt.Sprintf("Answer the specific request: %s", tc.Focus),
				"Use only the material below plus the prior report sections; say clearly when the data is missing.")
		},
	},
}

// fullRound is the submission order for a complete research round.
var fullRound = []Name{Overview, ProductFit, Goals, DeptMapping, Synergy, Pricing, ROI}

// All returns every task name in canonical order.
func All() []Name {
	out := append([]Name(nil), fullRound...)
	return append(out, AdditionalData)
}

// ForFullRound returns the tasks of a complete round. The additional-data
// task joins only when the user asked for something specific; a generic
// round without a concrete request excludes it.
func ForFullRound(hasSpecificRequest bool) []Name {
	out := append([]Name(nil), fullRound...)
	if hasSpecificRequest {
		out = append(out, AdditionalData)
	}
	return out
}

// Get looks up a task definition.
func Get(name Name) (Definition, bool) {
	def, ok := registry[name]
	return def, ok
}

// Parse validates a user-supplied task name.
func Parse(s string) (Name, error) {
	n := Name(strings.TrimSpace(strings.ToLower(s)))
	if _, ok := registry[n]; !ok {
		return "", fmt.Errorf("unknown task %q (valid: %s)", s, strings.Join(validNames(), ", "))
	}
	return n, nil
}

func validNames() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, string(n))
	}
	sort.Strings(names)
	return names
}

// analysisPrompt renders the shared prompt frame: role, instructions, company
// context, source material and prior sections.
func analysisPrompt(tc Context, objective, guidance string) string {
	var b strings.Builder
	b.WriteString("You are a B2B research analyst producing one section of a company research report.\n\n")
	fmt.Fprintf(&b, "Company: %s\n", tc.Company)
	if len(tc.AssociatedCompanies) > 0 {
		fmt.Fprintf(&b, "Associated companies: %s\n", strings.Join(tc.AssociatedCompanies, ", "))
	}
	if tc.Focus != "" {
		fmt.Fprintf(&b, "User focus: %s\n", tc.Focus)
	}
	b.WriteString("\nObjective: " + objective + "\n")
	b.WriteString(guidance + "\n")

	if len(tc.References) > 0 {
		b.WriteString("\nUser-provided references:\n")
		for _, r := range tc.References {
			b.WriteString("- " + r + "\n")
		}
	}

	if len(tc.Documents) > 0 {
		b.WriteString("\nSource material:\n")
		for i, d := range tc.Documents {
			title := d.Title
			if title == "" {
				title = "untitled"
			}
			fmt.Fprintf(&b, "[%d] %s\n%s\n\n", i+1, title, d.Content)
		}
	}

	if len(tc.PriorSections) > 0 {
		b.WriteString("Previously generated sections (for consistency, do not repeat verbatim):\n")
		keys := make([]string, 0, len(tc.PriorSections))
		for k := range tc.PriorSections {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "## %s\n%s\n\n", k, tc.PriorSections[k])
		}
	}

	b.WriteString("Write the section in concise markdown. No preamble.")
	return b.String()
}
