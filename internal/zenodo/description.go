package zenodo

import (
	"fmt"
	"path"
	"strings"

	"github.com/mousetube/mousetube-go/internal/datastore"
)

// buildSessionDescription assembles the plain-text record description:
// session facts, the protocol, the recorded subjects and per-file audio
// parameters, one fact per line.
func buildSessionDescription(session *datastore.RecordingSession, subjects []datastore.Subject, recordings []datastore.Recording) string {
	lines := []string{
		fmt.Sprintf("Recording session: %s", session.Name),
		fmt.Sprintf("Date: %s", session.Date.Format("2006-01-02")),
		fmt.Sprintf("Duration: %d seconds", session.Duration),
	}
	if session.Description != "" {
		lines = append(lines, fmt.Sprintf("Session description: %s", session.Description))
	}

	if session.Protocol != nil {
		lines = append(lines, fmt.Sprintf("Protocol: %s", session.Protocol.Name))
		if session.Protocol.Description != "" {
			lines = append(lines, fmt.Sprintf("Protocol description: %s", session.Protocol.Description))
		}
	}

	for i := range subjects {
		lines = append(lines, subjectLine(&subjects[i]))
	}

	for i := range recordings {
		rec := &recordings[i]
		name := rec.Name
		if name == "" {
			name = path.Base(rec.ClipPath)
		}
		lines = append(lines,
			fmt.Sprintf("\nFile: %s", name),
			fmt.Sprintf("Format: %s", rec.Format),
			fmt.Sprintf("Duration: %d s", rec.Duration),
			fmt.Sprintf("Sampling rate: %d Hz", rec.SamplingRate),
			fmt.Sprintf("Bit depth: %d", rec.BitDepth),
		)
	}

	return strings.Join(lines, "\n")
}

func subjectLine(subject *datastore.Subject) string {
	strain := ""
	species := ""
	if subject.Strain != nil {
		strain = subject.Strain.Name
		if subject.Strain.Species != nil {
			species = subject.Strain.Species.Name
		}
	}
	return fmt.Sprintf("Animal: %s, Strain: %s, Species: %s, Sex: %s, Genotype: %s, Treatment: %s",
		subject.Name, strain, species, subject.Sex, subject.Genotype, subject.Treatment)
}
