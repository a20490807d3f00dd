package label

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"inboxtriage/internal/host"
	"inboxtriage/internal/host/hosttest"
	"inboxtriage/internal/model"
)

func TestMapCategory(t *testing.T) {
	tests := []struct {
		category model.Category
		title    string
		bg       model.Color
	}{
		{model.CategoryJob, "Job/Recruiter", model.ColorPurple},
		{model.CategoryImportant, "IMPORTANT", model.ColorRed},
		{model.CategoryRead, "READ", model.ColorBlue},
		{model.CategoryDelete, "DELETE", model.ColorBlack},
		{model.Category("NEWSLETTER"), "NEWSLETTER", model.ColorGray},
	}
	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			got, ok := MapCategory(tt.category)
			assert.True(t, ok)
			assert.Equal(t, model.LabelSpec{
				Title:           tt.title,
				BackgroundColor: tt.bg,
				ForegroundColor: model.ColorWhite,
			}, got)

			again, _ := MapCategory(tt.category)
			assert.Equal(t, got, again)
		})
	}
}

func TestMapCategoryNoLabel(t *testing.T) {
	for _, c := range []model.Category{"", model.CategoryUnknown} {
		_, ok := MapCategory(c)
		assert.False(t, ok, "category %q", c)
	}
}

func TestVocabularyMatchesTable(t *testing.T) {
	assert.Equal(t, []string{"Job/Recruiter", "IMPORTANT", "READ", "DELETE"}, Vocabulary())
}

func TestAlreadyTriaged(t *testing.T) {
	vocab := Vocabulary()
	assert.True(t, AlreadyTriaged([]string{"Inbox", "Job/Recruiter"}, vocab))
	assert.False(t, AlreadyTriaged([]string{"Inbox", "Travel"}, vocab))
	assert.False(t, AlreadyTriaged(nil, vocab))
	assert.False(t, AlreadyTriaged([]string{"READ"}, nil))
	// 默认行（灰色）的标题不在词表中
	assert.False(t, AlreadyTriaged([]string{"NEWSLETTER"}, vocab))
}

func TestGuardExtraTitles(t *testing.T) {
	g := NewGuard("Job", "")
	assert.True(t, g.AlreadyTriaged([]string{"Job"}))
	assert.True(t, g.AlreadyTriaged([]string{"DELETE"}))
	assert.Len(t, g.Titles(), 5)
}

func TestApplicatorSuccess(t *testing.T) {
	row := hosttest.NewRow("s", "", nil)
	spec, _ := MapCategory(model.CategoryRead)

	ok := NewApplicator(zap.NewNop()).Apply(context.Background(), row, spec)
	assert.True(t, ok)
	assert.Equal(t, []model.LabelSpec{spec}, row.Applied())
}

func TestApplicatorSwallowsHostError(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	row := hosttest.NewRow("s", "", nil)
	row.RejectLabels()
	spec, _ := MapCategory(model.CategoryDelete)

	ok := NewApplicator(zap.New(core)).Apply(context.Background(), row, spec)
	assert.False(t, ok)
	assert.Equal(t, 1, logs.FilterMessage("Label application failed").Len())
}

type panickyView struct{ host.View }

func (panickyView) AddLabel(context.Context, model.LabelSpec) error { panic("renderer gone") }

func TestApplicatorRecoversPanic(t *testing.T) {
	spec, _ := MapCategory(model.CategoryJob)
	ok := NewApplicator(zap.NewNop()).Apply(context.Background(), panickyView{}, spec)
	assert.False(t, ok)
}
