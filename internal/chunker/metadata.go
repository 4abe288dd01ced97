package chunker

import (
	"strings"

	"github.com/liliang-cn/fixdoc/internal/domain"
)

// Section types detected from the opening lines of a manual
const (
	SectionTroubleshooting = "troubleshooting"
	SectionInstallation    = "installation"
	SectionUserGuide       = "user_guide"
)

const (
	metadataScanLines = 50
	maxModelLineLen   = 100
)

// Metadata is what can be guessed about a manual from its text
type Metadata struct {
	DetectedModel string
	SectionType   string
}

// DetectMetadata scans the first lines of cleaned text for a model line and
// a section type. Later matches win.
func DetectMetadata(text string) Metadata {
	var md Metadata

	lines := strings.SplitN(text, "\n", metadataScanLines+1)
	if len(lines) > metadataScanLines {
		lines = lines[:metadataScanLines]
	}

	for _, line := range lines {
		lower := strings.ToLower(line)

		if strings.Contains(lower, "model") && len(line) < maxModelLineLen {
			md.DetectedModel = strings.TrimSpace(line)
		}

		switch {
		case strings.Contains(lower, "troubleshooting"):
			md.SectionType = SectionTroubleshooting
		case strings.Contains(lower, "installation"):
			md.SectionType = SectionInstallation
		case strings.Contains(lower, "user guide"), strings.Contains(lower, "user manual"):
			md.SectionType = SectionUserGuide
		}
	}
	return md
}

// Fields returns the detected values as chunk metadata, omitting empty ones
func (m Metadata) Fields() map[string]any {
	fields := map[string]any{}
	if m.DetectedModel != "" {
		fields[domain.MetadataKeyDetectedModel] = m.DetectedModel
	}
	if m.SectionType != "" {
		fields[domain.MetadataKeySectionType] = m.SectionType
	}
	return fields
}
