package feedback

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/marker/internal/model"
)

func TestRender_SummaryAndBullets(t *testing.T) {
	out := Render(Input{
		Summary: "Good work overall.",
		Bullets: []string{"Cite page numbers.", "Check your rounding."},
	})

	assert.Equal(t, "Good work overall.\n- Cite page numbers.\n- Check your rounding.", out)
}

func TestRender_CappedCaveatLeads(t *testing.T) {
	out := Render(Input{
		Summary: "Summary.",
		Bullets: []string{"First point."},
		Capped:  true,
	})

	lines := strings.Split(out, "\n")
	assert.Equal(t, "- "+cappedBullet, lines[1])
	assert.Equal(t, "- First point.", lines[2])
}

func TestRender_CoverOnlyCaveatAppended(t *testing.T) {
	out := Render(Input{
		Summary:   "Summary.",
		Bullets:   []string{"First point."},
		CoverOnly: true,
	})

	assert.True(t, strings.HasSuffix(out, "- "+coverOnlyBullet))
}

func TestRender_BulletCapKeepsCaveat(t *testing.T) {
	out := Render(Input{
		Summary:    "Summary.",
		Bullets:    []string{"one", "two", "three", "four"},
		Capped:     true,
		MaxBullets: 3,
	})

	lines := strings.Split(out, "\n")
	assert.Len(t, lines, 4) // summary + 3 bullets
	assert.Equal(t, "- "+cappedBullet, lines[1])
	assert.NotContains(t, out, "three")
}

func TestRender_BulletCapKeepsCoverOnlyCaveat(t *testing.T) {
	out := Render(Input{
		Summary:    "Summary.",
		Bullets:    []string{"one", "two", "three", "four"},
		CoverOnly:  true,
		MaxBullets: 4,
	})

	assert.True(t, strings.HasSuffix(out, "- "+coverOnlyBullet))
	assert.Contains(t, out, "- three")
	assert.NotContains(t, out, "four")
}

func TestRender_BulletCapReservesBothCaveats(t *testing.T) {
	out := Render(Input{
		Summary:    "Summary.",
		Bullets:    []string{"one", "two", "three"},
		Capped:     true,
		CoverOnly:  true,
		MaxBullets: 3,
	})

	lines := strings.Split(out, "\n")
	assert.Len(t, lines, 4) // summary + 3 bullets
	assert.Equal(t, "- "+cappedBullet, lines[1])
	assert.Equal(t, "- one", lines[2])
	assert.Equal(t, "- "+coverOnlyBullet, lines[3])
}

func TestRender_TemplatePlaceholders(t *testing.T) {
	out := Render(Input{
		StudentName: "Alex Morgan",
		Grade:       model.GradeMerit,
		Summary:     "Well structured.",
		Template:    "Dear {{studentName}},\nGrade: {{grade}}\n\n{{feedback}}",
	})

	assert.Contains(t, out, "Dear Alex,")
	assert.Contains(t, out, "Grade: MERIT")
	assert.Contains(t, out, "Well structured.")
}

func TestRender_TemplateWithoutFeedbackSlotAppendsBody(t *testing.T) {
	out := Render(Input{
		StudentName: "Sam",
		Grade:       model.GradePass,
		Summary:     "Summary text.",
		Template:    "Result for {{studentName}}: {{grade}}",
	})

	assert.True(t, strings.HasPrefix(out, "Result for Sam: PASS"))
	assert.Contains(t, out, "Summary text.")
}

func TestFirstName(t *testing.T) {
	assert.Equal(t, "Alex", FirstName("Alex Morgan"))
	assert.Equal(t, "Alex", FirstName("  Alex  "))
	assert.Equal(t, "Student", FirstName(""))
	assert.Equal(t, "Student", FirstName("   "))
}
