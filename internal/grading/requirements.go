package grading

import (
	"regexp"
	"strings"

	"github.com/sells-group/marker/internal/model"
)

// SectionRequirement describes which modalities one (task, section) pair's
// brief text demands from the submission. A requirement is only emitted when
// at least one modality was detected; silent sections impose no constraint.
type SectionRequirement struct {
	Task       int      `json:"task"`
	Section    string   `json:"section"`
	Charts     []string `json:"charts,omitempty"`
	Table      bool     `json:"table,omitempty"`
	Percentage bool     `json:"percentage,omitempty"`
	Equation   bool     `json:"equation,omitempty"`
	Image      bool     `json:"image,omitempty"`
}

// Any reports whether at least one modality was detected for the section.
func (r SectionRequirement) Any() bool {
	return len(r.Charts) > 0 || r.Table || r.Percentage || r.Equation || r.Image
}

var (
	reChartType  = regexp.MustCompile(`(?i)\b(bar|pie|line|scatter)\s*(chart|graph)s?\b`)
	reHistogram  = regexp.MustCompile(`(?i)\bhistograms?\b`)
	reScatter    = regexp.MustCompile(`(?i)\bscatter\b`)
	reTableWord  = regexp.MustCompile(`(?i)\btables?\b`)
	rePercentReq = regexp.MustCompile(`(?i)\bpercentages?\b|%`)
	reEqMarker   = regexp.MustCompile(`\[\[eq:[^\]]*\]\]`)
	reEqKeyword  = regexp.MustCompile(`(?i)\b(equations?|formulae?|formulas?|express(ed|ion)|solve for|derive)\b`)
	reImgMarker  = regexp.MustCompile(`\[\[img:[^\]]*\]\]`)
	reImgKeyword = regexp.MustCompile(`(?i)\b(images?|diagrams?|figures?|circuits?|screenshots?|graph below|shown below)\b`)

	reWhitespace = regexp.MustCompile(`\s+`)
)

// romanKeys are the part keys treated as sub-parts of the current letter
// section rather than sections of their own.
var romanKeys = map[string]bool{
	"i": true, "ii": true, "iii": true, "iv": true, "v": true,
	"vi": true, "vii": true, "viii": true, "ix": true, "x": true,
}

func isRomanKey(key string) bool {
	return romanKeys[strings.ToLower(strings.TrimSpace(key))]
}

// ExtractRequirements walks the brief's task tree and derives modality
// requirements per section. Parts are grouped by the most recent
// letter-keyed part; roman-numeral parts inherit the current letter section
// and unkeyed text falls into a synthetic "task" bucket.
func ExtractRequirements(tasks []model.BriefTask) []SectionRequirement {
	var out []SectionRequirement

	for _, task := range tasks {
		sections := groupSections(task.Parts)
		for _, sec := range sections {
			req := detectRequirement(task.Number, sec.name, sec.text)
			if req.Any() {
				out = append(out, req)
			}
		}
	}

	return out
}

type section struct {
	name string
	text string
}

// groupSections concatenates part text into ordered sections keyed by
// section letter, preserving first-seen order.
func groupSections(parts []model.TaskPart) []section {
	var ordered []string
	texts := make(map[string][]string)

	current := "task"
	for _, part := range parts {
		key := strings.ToLower(strings.TrimSpace(part.Key))
		switch {
		case key == "":
			// Free text belongs to the task bucket, not the current letter.
			appendSection(&ordered, texts, "task", part.Text)
			continue
		case isRomanKey(key):
			// Sub-part inherits the current section.
		default:
			current = key
		}
		appendSection(&ordered, texts, current, part.Text)
	}

	out := make([]section, 0, len(ordered))
	for _, name := range ordered {
		joined := reWhitespace.ReplaceAllString(strings.Join(texts[name], " "), " ")
		out = append(out, section{name: name, text: strings.TrimSpace(joined)})
	}
	return out
}

func appendSection(ordered *[]string, texts map[string][]string, name, text string) {
	if _, seen := texts[name]; !seen {
		*ordered = append(*ordered, name)
	}
	texts[name] = append(texts[name], text)
}

func detectRequirement(task int, sectionName, text string) SectionRequirement {
	req := SectionRequirement{Task: task, Section: sectionName}

	seen := make(map[string]bool)
	addChart := func(c string) {
		if !seen[c] {
			seen[c] = true
			req.Charts = append(req.Charts, c)
		}
	}

	for _, m := range reChartType.FindAllStringSubmatch(text, -1) {
		addChart(strings.ToLower(m[1]))
	}
	if reHistogram.MatchString(text) {
		addChart("histogram")
	}
	if reScatter.MatchString(text) {
		addChart("scatter")
	}

	req.Table = reTableWord.MatchString(text)
	req.Percentage = rePercentReq.MatchString(text)
	req.Equation = reEqMarker.MatchString(text) || reEqKeyword.MatchString(text)
	req.Image = reImgMarker.MatchString(text) || reImgKeyword.MatchString(text)

	return req
}
