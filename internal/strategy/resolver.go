package strategy

// Resolve merges a caller plan with server-computed suggestions into the
// effective spec per column.
//
// Rules:
//   - a caller entry wins outright over a suggestion for the same column,
//     except when the caller supplied only the bare strategy name and the
//     suggestion carries the same name: then the suggestion's tuned
//     parameters are inherited;
//   - columns present only in suggestions fall back to the suggestion;
//   - no-op caller entries drop the column from the effective plan even
//     when a suggestion exists (an explicit "none" is an opt-out).
//
// Pure function of its inputs; neither map is mutated.
func Resolve(plan map[string]string, suggestions map[string]Spec) map[string]Spec {
	effective := make(map[string]Spec, len(plan)+len(suggestions))

	for column, suggested := range suggestions {
		if suggested.IsNoop() {
			continue
		}
		effective[column] = suggested
	}

	for column, raw := range plan {
		spec := Parse(raw)
		if spec.IsNoop() {
			delete(effective, column)
			continue
		}

		if len(spec.Params) == 0 {
			if suggested, ok := suggestions[column]; ok && suggested.Name == spec.Name {
				effective[column] = suggested
				continue
			}
		}
		effective[column] = spec
	}

	return effective
}
