package store

import "time"

// Report is the merged research output for one company. Sections are keyed by
// task name; a failed regeneration keeps the previous section text and records
// the failure in SectionErrors under the same key.
type Report struct {
	CompanyName   string            `json:"company_name"`
	Sections      map[string]string `json:"sections"`
	SectionErrors map[string]string `json:"section_errors,omitempty"`
	SelectedTasks []string          `json:"selected_tasks"`
	SourcesUsed   int               `json:"sources_used"`
	DegradedNote  string            `json:"degraded_note,omitempty"`
	GeneratedAt   time.Time         `json:"generated_at"`
}

// Clone returns a deep copy. Merging always works on a copy so callers holding
// the previous report never observe partial writes.
func (r *Report) Clone() *Report {
	if r == nil {
		return nil
	}
	out := &Report{
		CompanyName:  r.CompanyName,
		SourcesUsed:  r.SourcesUsed,
		DegradedNote: r.DegradedNote,
		GeneratedAt:  r.GeneratedAt,
	}
	if r.Sections != nil {
		out.Sections = make(map[string]string, len(r.Sections))
		for k, v := range r.Sections {
			out.Sections[k] = v
		}
	}
	if r.SectionErrors != nil {
		out.SectionErrors = make(map[string]string, len(r.SectionErrors))
		for k, v := range r.SectionErrors {
			out.SectionErrors[k] = v
		}
	}
	if r.SelectedTasks != nil {
		out.SelectedTasks = append([]string(nil), r.SelectedTasks...)
	}
	return out
}
