package citation

import "strings"

// ScoredSource is one source as returned by the generator with its
// credibility score.
type ScoredSource struct {
	Title            string  `json:"title"`
	URL              string  `json:"url"`
	Type             string  `json:"type"`
	CredibilityScore float64 `json:"credibilityScore"`
}

// Result is a successful generation response.
type Result struct {
	FormattedText string         `json:"formattedText"`
	References    string         `json:"references"`
	OverallScore  float64        `json:"overallScore"`
	Sources       []ScoredSource `json:"sources"`
}

type GroupName string

const (
	GroupAcademic GroupName = "academic"
	GroupWeb      GroupName = "web"
	GroupOther    GroupName = "other"
)

const (
	StatusVerified   = "verified"
	StatusUnverified = "unverified"
)

// Group aggregates the sources of one category.
type Group struct {
	Name               GroupName      `json:"name"`
	Count              int            `json:"count"`
	AverageCredibility float64        `json:"averageCredibility"`
	Status             string         `json:"status"`
	Sources            []ScoredSource `json:"sources"`
}

// Summary groups sources as academic, web and other, always in that order.
type Summary struct {
	OverallScore float64 `json:"overallScore"`
	Groups       []Group `json:"groups"`
}

var academicTypes = map[string]bool{
	"article": true, "journal": true, "journal-article": true, "academic": true,
	"book": true, "conference": true, "thesis": true, "paper": true,
}

var webTypes = map[string]bool{
	"website": true, "web": true, "webpage": true, "blog": true, "news": true,
}

// Classify maps a source type onto its summary group.
func Classify(sourceType string) GroupName {
	t := strings.ToLower(strings.TrimSpace(sourceType))
	switch {
	case academicTypes[t]:
		return GroupAcademic
	case webTypes[t]:
		return GroupWeb
	default:
		return GroupOther
	}
}

func Summarize(overall float64, sources []ScoredSource) Summary {
	order := []GroupName{GroupAcademic, GroupWeb, GroupOther}
	byName := make(map[GroupName]*Group, len(order))
	groups := make([]Group, len(order))
	for i, name := range order {
		groups[i] = Group{Name: name, Status: StatusUnverified, Sources: []ScoredSource{}}
		byName[name] = &groups[i]
	}

	for _, s := range sources {
		g := byName[Classify(s.Type)]
		g.Sources = append(g.Sources, s)
		g.Count++
		g.AverageCredibility += s.CredibilityScore
	}
	for i := range groups {
		if groups[i].Count > 0 {
			groups[i].AverageCredibility /= float64(groups[i].Count)
			groups[i].Status = StatusVerified
		}
	}
	return Summary{OverallScore: overall, Groups: groups}
}
