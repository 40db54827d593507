package report

import (
	"time"

	"ai-research-be/pkg/research/dispatch"
	"ai-research-be/pkg/research/task"
	"ai-research-be/pkg/store"
)

// Merge overlays one round of task results onto the previous report. The
// overlay is left-biased: a successful result overwrites its section, a
// failed result keeps the previous section text verbatim and records the
// failure, and sections whose task was not selected are never touched.
//
// prev may be nil (first round). The input report is never mutated.
func Merge(prev *store.Report, company string, round map[task.Name]dispatch.Result, selected []task.Name) *store.Report {
	out := prev.Clone()
	if out == nil {
		out = &store.Report{CompanyName: company}
	}
	if out.Sections == nil {
		out.Sections = make(map[string]string)
	}

	// Re-run of a section clears its previous error either way: a success
	// replaces it, a failure replaces it with the fresh reason.
	for _, name := range selected {
		res, ok := round[name]
		if !ok {
			continue
		}
		key := string(name)
		delete(out.SectionErrors, key)

		if res.Err != nil {
			if out.SectionErrors == nil {
				out.SectionErrors = make(map[string]string)
			}
			out.SectionErrors[key] = res.Err.Error()
			continue
		}
		out.Sections[key] = res.Output
	}

	// An empty round is the identity: it must not disturb SelectedTasks or
	// the timestamp either.
	if len(round) > 0 {
		out.SelectedTasks = make([]string, 0, len(selected))
		for _, n := range selected {
			out.SelectedTasks = append(out.SelectedTasks, string(n))
		}
		out.GeneratedAt = time.Now()
	}
	return out
}
