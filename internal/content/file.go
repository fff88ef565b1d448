// Package content reads quiz levels and questions from the YAML catalog file
// that operators maintain.
package content

import (
	"fmt"
	"os"
	"strconv"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
	"quiz-progression/internal/domain"
)

// namespace keeps generated ids stable across seeds of the same file.
var namespace = uuid.MustParse("6f1c2f0e-5d1b-4c55-9b7e-3a7d8f3e2a10")

type fileLevel struct {
	domain.Level `yaml:",inline"`
	Questions    []domain.Question `yaml:"questions"`
}

type file struct {
	Levels []fileLevel `yaml:"levels"`
}

// LoadFile reads and parses the catalog at path.
func LoadFile(path string) (domain.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Catalog{}, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes a catalog document. Levels without an id get one derived from
// their rank and questions one derived from their level and position, so
// re-seeding an edited file updates rows instead of duplicating them. Renaming
// a level keeps its id; moving a level to another rank needs an explicit id to
// keep progress pointing at it.
func Parse(data []byte) (domain.Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return domain.Catalog{}, fmt.Errorf("parse catalog: %w", err)
	}

	var cat domain.Catalog
	for _, fl := range f.Levels {
		level := fl.Level
		if level.ID == uuid.Nil {
			level.ID = uuid.NewSHA1(namespace, []byte("level:"+strconv.Itoa(level.Rank)))
		}
		cat.Levels = append(cat.Levels, level)
		for i, q := range fl.Questions {
			q.LevelID = level.ID
			if q.ID == uuid.Nil {
				q.ID = uuid.NewSHA1(level.ID, []byte("question:"+strconv.Itoa(i)))
			}
			cat.Questions = append(cat.Questions, q)
		}
	}
	if len(cat.Levels) == 0 {
		return domain.Catalog{}, domain.ErrNoLevels
	}
	return cat, nil
}
