package audio

import (
	"strings"

	"clinical-case-service/internal/domain"
)

// URLResolver maps a case stage to {base}/{caseID}/{stage}{ext}.
type URLResolver struct {
	BaseURL string
	Ext     string
}

func NewURLResolver(baseURL, ext string) *URLResolver {
	if ext == "" {
		ext = ".mp3"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return &URLResolver{BaseURL: strings.TrimRight(baseURL, "/"), Ext: ext}
}

// URL reports false when narration is disabled or the stage has no clip.
func (r *URLResolver) URL(caseID string, stage domain.Stage) (string, bool) {
	if r == nil || r.BaseURL == "" || caseID == "" || stage.StepNumber() == 0 {
		return "", false
	}
	return r.BaseURL + "/" + caseID + "/" + stage.Key() + r.Ext, true
}
