package review

import (
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
)

// Kind classifies a single upper-layer entry.
type Kind int

const (
	// Added is a file absent from the target.
	Added Kind = iota
	// Edited is a file that exists in the target.
	Edited
	// Deleted is a whiteout hiding a target entry.
	Deleted
	// AddedDir is a directory with no children.
	AddedDir
)

// Change is one reviewed entry, with Path relative to the target.
type Change struct {
	Path string
	Kind Kind
}

// maxChanges caps the collected summary. The walk stops at the
// ceiling; apply still copies the full tree.
const maxChanges = 1000

var errCapped = errors.New("change cap reached")

// Scan walks the subtree of upper that shadows target and classifies
// every entry. The boolean reports whether the cap was hit.
func Scan(upper, target string) ([]Change, bool, error) {
	shadow := shadowPath(upper, target)
	if _, err := os.Lstat(shadow); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var changes []Change
	err := walkShadow(shadow, target, "", &changes)
	truncated := errors.Is(err, errCapped)
	if err != nil && !truncated {
		return nil, false, err
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	return changes, truncated, nil
}

func walkShadow(dir, target, rel string, changes *[]Change) error {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, ent := range ents {
		if len(*changes) >= maxChanges {
			return errCapped
		}
		entRel := path.Join(rel, ent.Name())
		full := filepath.Join(dir, ent.Name())
		switch {
		case ent.IsDir():
			children, err := os.ReadDir(full)
			if err != nil {
				return err
			}
			if len(children) == 0 {
				*changes = append(*changes, Change{Path: entRel + "/", Kind: AddedDir})
				continue
			}
			if err := walkShadow(full, target, entRel, changes); err != nil {
				return err
			}
		case isWhiteout(ent.Type()):
			*changes = append(*changes, Change{Path: entRel, Kind: Deleted})
		default:
			kind := Added
			if _, err := os.Lstat(filepath.Join(target, entRel)); err == nil {
				kind = Edited
			}
			*changes = append(*changes, Change{Path: entRel, Kind: kind})
		}
	}
	return nil
}

// isWhiteout recognizes the overlay deletion marker, a character
// device in the upper layer.
func isWhiteout(m fs.FileMode) bool {
	return m&fs.ModeCharDevice != 0
}
