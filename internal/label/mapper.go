// Package label maps categories to visual labels, detects already-triaged entries
// and writes labels back to host views.
package label

import "inboxtriage/internal/model"

type row struct {
	category model.Category
	title    string
	color    model.Color
}

// table is evaluated in order; first match wins.
var table = []row{
	{model.CategoryJob, "Job/Recruiter", model.ColorPurple},
	{model.CategoryImportant, "IMPORTANT", model.ColorRed},
	{model.CategoryRead, "READ", model.ColorBlue},
	{model.CategoryDelete, "DELETE", model.ColorBlack},
}

// MapCategory returns the label for c. Empty and UNKNOWN categories yield no label;
// unrecognized codes get a gray label titled with the code itself.
func MapCategory(c model.Category) (model.LabelSpec, bool) {
	if !c.IsLabelable() {
		return model.LabelSpec{}, false
	}
	for _, r := range table {
		if r.category == c {
			return spec(r.title, r.color), true
		}
	}
	return spec(string(c), model.ColorGray), true
}

func spec(title string, bg model.Color) model.LabelSpec {
	return model.LabelSpec{
		Title:           title,
		BackgroundColor: bg,
		ForegroundColor: model.ColorWhite,
	}
}
