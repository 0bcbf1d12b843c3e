package player

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// validExtensions lists the media file types the library picks up.
var validExtensions = map[string]bool{
	".flac": true,
	".mp3":  true,
}

// Song is one playable entry in the library. IDs are stable for the lifetime
// of a Library: they are assigned by sorted path order at scan time.
type Song struct {
	// ID is the library-wide numeric identifier used by the play command.
	ID int

	// Path is the song's path relative to the library root.
	Path string
}

// Name returns the file name without its directory.
func (s Song) Name() string {
	return filepath.Base(s.Path)
}

// Library is an immutable snapshot of a music directory. Rescan by building
// a new Library. Safe for concurrent use.
type Library struct {
	root  string
	songs []Song
}

// ScanLibrary walks root at most one directory deep and collects all valid
// media files, sorted by path. An empty root yields an empty library. A
// missing directory is not an error: playback commands report an empty
// library to the user instead.
func ScanLibrary(root string) (*Library, error) {
	lib := &Library{root: root}
	if root == "" {
		return lib, nil
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return lib, nil
		}
		return nil, fmt.Errorf("player: scan %q: %w", root, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			sub, err := os.ReadDir(filepath.Join(root, e.Name()))
			if err != nil {
				return nil, fmt.Errorf("player: scan %q: %w", filepath.Join(root, e.Name()), err)
			}
			for _, f := range sub {
				if !f.IsDir() && isMediaFile(f.Name()) {
					paths = append(paths, filepath.Join(e.Name(), f.Name()))
				}
			}
			continue
		}
		if isMediaFile(e.Name()) {
			paths = append(paths, e.Name())
		}
	}

	sort.Strings(paths)
	lib.songs = make([]Song, len(paths))
	for i, p := range paths {
		lib.songs[i] = Song{ID: i, Path: p}
	}
	return lib, nil
}

// isMediaFile reports whether name has a recognised media extension.
func isMediaFile(name string) bool {
	return validExtensions[strings.ToLower(filepath.Ext(name))]
}

// Songs returns all entries in id order.
func (l *Library) Songs() []Song {
	return l.songs
}

// Len returns the number of songs in the library.
func (l *Library) Len() int {
	return len(l.songs)
}

// Song returns the entry with the given id.
func (l *Library) Song(id int) (Song, bool) {
	if id < 0 || id >= len(l.songs) {
		return Song{}, false
	}
	return l.songs[id], true
}

// FullPath returns the absolute path of the song with the given id.
func (l *Library) FullPath(id int) (string, bool) {
	s, ok := l.Song(id)
	if !ok {
		return "", false
	}
	return filepath.Join(l.root, s.Path), true
}
