package rarstream

import (
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
)

// VolumeSource abstracts a single physical RAR volume. Callers supply one
// VolumeSource per file on disk (or per remote object); this package never
// opens files itself, matching the external-collaborator boundary in
// spec.md §6 (the engine is transport-agnostic — a VolumeSource can equally
// be backed by a local file, an HTTP range request, or a usenet article
// set, which is exactly how altmount's FUSE layer feeds this engine).
type VolumeSource interface {
	// Name returns a stable, human-readable identifier for error messages
	// (typically the volume's file name).
	Name() string
	// Length returns the total byte length of the volume.
	Length() int64
	// ReadRange returns a reader over [start, endInclusive] of the volume.
	// The returned ReadCloser must be closed by the caller.
	ReadRange(start, endInclusive int64) (io.ReadCloser, error)
}

// numericVolRe matches the legacy .rNN / .NNN numbering scheme, e.g.
// archive.rar, archive.r00, archive.r01, ... and archive.001, archive.002.
// Group 2 is "r00"-style digits (volume follows .rar), group 3 is a bare
// ".NNN" scheme's digits.
var numericVolRe = regexp.MustCompile(`(?i)^(.*)\.(?:rar|r(\d+)|(\d+))$`)

// partVolRe matches the modern .partNNN.rar scheme.
var partVolRe = regexp.MustCompile(`(?i)^(.*)\.part(\d+)\.rar$`)

// VolumeSet is a VolumeSource slice placed into the archive's correct read
// order, grounded on the teacher's nextNewVolName/nextOldVolName naming
// logic (volume.go in the pack), generalized here to classify and order an
// already-discovered, unordered set of sources rather than only generate
// the next name from a known current one.
type VolumeSet struct {
	sources []VolumeSource
}

// newVolumeSet orders vols by their volume-naming scheme. A single-volume
// archive (exactly one source, or a source whose name matches neither
// scheme) is returned as-is.
func newVolumeSet(vols []VolumeSource) (*VolumeSet, error) {
	if len(vols) == 0 {
		return nil, fmt.Errorf("rarstream: no volumes supplied: %w", ErrVolumeMissing)
	}
	if len(vols) == 1 {
		return &VolumeSet{sources: vols}, nil
	}

	type ordered struct {
		src VolumeSource
		seq int
	}
	var partScheme, numericScheme, unmatched []ordered
	for _, v := range vols {
		name := v.Name()
		if m := partVolRe.FindStringSubmatch(name); m != nil {
			n, _ := strconv.Atoi(m[2])
			partScheme = append(partScheme, ordered{v, n})
			continue
		}
		if m := numericVolRe.FindStringSubmatch(name); m != nil {
			seq := 0
			switch {
			case m[2] != "":
				n, _ := strconv.Atoi(m[2])
				seq = n + 1 // .rar is implicitly volume 0; .r00 is volume 1
			case m[3] != "":
				n, _ := strconv.Atoi(m[3])
				seq = n // bare .NNN scheme numbers volumes directly
			}
			numericScheme = append(numericScheme, ordered{v, seq})
			continue
		}
		// Matches neither scheme; kept only as a fallback if nothing else
		// in the set matches a scheme either (a lone, oddly-named volume).
		unmatched = append(unmatched, ordered{v, 0})
	}

	// spec: if any volume matches the part pattern, the part scheme wins
	// outright; otherwise prefer the numeric scheme; non-matching names are
	// discarded once a scheme is chosen.
	var chosen []ordered
	switch {
	case len(partScheme) > 0:
		chosen = partScheme
	case len(numericScheme) > 0:
		chosen = numericScheme
	default:
		chosen = unmatched
	}
	sort.Slice(chosen, func(i, j int) bool { return chosen[i].seq < chosen[j].seq })

	out := make([]VolumeSource, len(chosen))
	for i, o := range chosen {
		out[i] = o.src
	}
	return &VolumeSet{sources: out}, nil
}

func (vs *VolumeSet) len() int { return len(vs.sources) }

func (vs *VolumeSet) at(i int) VolumeSource { return vs.sources[i] }

// GetVolumePath returns the Name() of the volume at the given index,
// matching the teacher's volumeManager.GetVolumePath used by
// ListArchiveInfo to report where a fragment's bytes physically live.
func (vs *VolumeSet) GetVolumePath(i int) string {
	if i < 0 || i >= len(vs.sources) {
		return ""
	}
	return vs.sources[i].Name()
}
