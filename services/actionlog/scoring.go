package actionlog

import "strings"

const (
	BasePoints = 5
	PhotoBonus = 2
)

type Attachment struct {
	Type    string `json:"type"`
	Mime    string `json:"mime"`
	URL     string `json:"url"`
	FileURL string `json:"fileUrl"`
}

func (a Attachment) IsImage() bool {
	return strings.Contains(strings.ToLower(a.Type), "image") ||
		strings.HasPrefix(strings.ToLower(a.Mime), "image")
}

// DetectPhoto returns the proof URL of the first image attachment. An image
// without any URL counts as no photo.
func DetectPhoto(attachments []Attachment) string {
	for _, a := range attachments {
		if !a.IsImage() {
			continue
		}
		if a.URL != "" {
			return a.URL
		}
		return a.FileURL
	}
	return ""
}

// ComputeAward is the fixed completion score: BasePoints, plus PhotoBonus with a
// photo proof. Template points are not consulted.
func ComputeAward(hasPhoto bool) int {
	if hasPhoto {
		return BasePoints + PhotoBonus
	}
	return BasePoints
}
