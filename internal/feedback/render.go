// Package feedback turns a validated model verdict into the feedback text
// returned to students.
package feedback

import (
	"strings"
	"time"

	"github.com/sells-group/marker/internal/model"
)

const cappedBullet = "Some required evidence (tables, charts, equations or images) could not be confirmed in the submission, so this result should be double-checked by an assessor."

const coverOnlyBullet = "Only a sample of pages was readable for this submission; feedback is based on that sample."

// Input is everything the renderer needs for one submission.
type Input struct {
	StudentName string
	Grade       model.GradeWord
	Summary     string
	Bullets     []string
	Capped      bool
	CoverOnly   bool
	Template    string
	MaxBullets  int
}

// Render produces the final feedback text. Caveat bullets for capped
// confidence and cover-only sampling are never dropped: the bullet cap is
// applied to the model bullets only, with slots reserved for the caveats.
// The capped-confidence caveat leads the list, the cover-only caveat ends it.
func Render(in Input) string {
	caveats := 0
	if in.Capped {
		caveats++
	}
	if in.CoverOnly {
		caveats++
	}

	modelBullets := in.Bullets
	if in.MaxBullets > 0 {
		room := in.MaxBullets - caveats
		if room < 0 {
			room = 0
		}
		if len(modelBullets) > room {
			modelBullets = modelBullets[:room]
		}
	}

	bullets := make([]string, 0, len(modelBullets)+caveats)
	if in.Capped {
		bullets = append(bullets, cappedBullet)
	}
	bullets = append(bullets, modelBullets...)
	if in.CoverOnly {
		bullets = append(bullets, coverOnlyBullet)
	}

	var b strings.Builder
	b.WriteString(strings.TrimSpace(in.Summary))
	for _, bullet := range bullets {
		b.WriteString("\n- ")
		b.WriteString(strings.TrimSpace(bullet))
	}

	body := b.String()
	if in.Template == "" {
		return body
	}
	return applyTemplate(in.Template, in, body)
}

func applyTemplate(tmpl string, in Input, body string) string {
	r := strings.NewReplacer(
		"{{studentName}}", FirstName(in.StudentName),
		"{{grade}}", string(in.Grade),
		"{{date}}", time.Now().Format("2 January 2006"),
		"{{feedback}}", body,
	)
	out := r.Replace(tmpl)
	if !strings.Contains(tmpl, "{{feedback}}") {
		out = strings.TrimRight(out, "\n") + "\n\n" + body
	}
	return out
}

// FirstName extracts the given name used to address the student. Falls back
// to "Student" when the name is empty.
func FirstName(full string) string {
	fields := strings.Fields(strings.TrimSpace(full))
	if len(fields) == 0 {
		return "Student"
	}
	return fields[0]
}
