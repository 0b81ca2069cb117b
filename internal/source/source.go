// Package source defines the boundary to the scrape collaborator. The
// fetching and extraction layers live outside this module; inputs arrive
// here already structured, and no raw markup crosses this boundary.
package source

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/sells-group/forest-watch/internal/model"
)

// Scraper delivers one point-in-time pull of the upstream feeds.
type Scraper interface {
	// FetchAreas returns the fire-ban areas with their raw forest names.
	FetchAreas(ctx context.Context) ([]model.ForestArea, error)
	// FetchDirectory returns the facilities directory.
	FetchDirectory(ctx context.Context) ([]model.DirectoryForestEntry, error)
	// FetchClosures returns the current closure notices.
	FetchClosures(ctx context.Context) ([]model.ClosureNotice, error)
}

// FireDangerLookup resolves a fire-danger rating for coordinates. A nil
// coordinate or unmatched point yields status UNKNOWN with diagnostics,
// never an error.
type FireDangerLookup func(coords *model.Coordinates) model.FireDanger

// Static is a fixed-data Scraper for tests and offline runs.
type Static struct {
	Areas     []model.ForestArea
	Directory []model.DirectoryForestEntry
	Closures  []model.ClosureNotice
	Err       error
}

// FetchAreas implements Scraper.
func (s *Static) FetchAreas(context.Context) ([]model.ForestArea, error) {
	return s.Areas, s.Err
}

// FetchDirectory implements Scraper.
func (s *Static) FetchDirectory(context.Context) ([]model.DirectoryForestEntry, error) {
	return s.Directory, s.Err
}

// FetchClosures implements Scraper.
func (s *Static) FetchClosures(context.Context) ([]model.ClosureNotice, error) {
	return s.Closures, s.Err
}

// FileScraper reads structured feed exports from a directory: areas.json,
// directory.json, and closures.json, each a JSON array of the model type.
type FileScraper struct {
	dir string
}

// NewFileScraper creates a scraper over a feed-export directory.
func NewFileScraper(dir string) *FileScraper {
	return &FileScraper{dir: dir}
}

// FetchAreas implements Scraper.
func (s *FileScraper) FetchAreas(context.Context) ([]model.ForestArea, error) {
	var areas []model.ForestArea
	if err := s.readJSON("areas.json", &areas); err != nil {
		return nil, err
	}
	return areas, nil
}

// FetchDirectory implements Scraper.
func (s *FileScraper) FetchDirectory(context.Context) ([]model.DirectoryForestEntry, error) {
	var entries []model.DirectoryForestEntry
	if err := s.readJSON("directory.json", &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// FetchClosures implements Scraper. A missing closures file is an empty feed,
// not an error: the closures export is optional.
func (s *FileScraper) FetchClosures(context.Context) ([]model.ClosureNotice, error) {
	var notices []model.ClosureNotice
	if err := s.readJSON("closures.json", &notices); err != nil {
		if eris.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return notices, nil
}

func (s *FileScraper) readJSON(name string, v any) error {
	path := filepath.Join(s.dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrapf(err, "source: read %s", path)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return eris.Wrapf(err, "source: parse %s", path)
	}
	return nil
}
