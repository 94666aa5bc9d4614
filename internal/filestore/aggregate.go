package filestore

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/leads/postback/internal/domain"
)

// AddToAggregate adds amount to the sub5 entry of day's block in the given
// aggregate file and returns the new total. Missing or unreadable files start
// from an empty list.
func (s *Store) AddToAggregate(file string, day time.Time, sub5 string, amount float64) (float64, error) {
	path := s.path(file)
	unlock, err := s.locks.lock(path)
	if err != nil {
		return 0, err
	}
	defer unlock()

	var blocks []domain.DayBlock
	corrupt, err := readJSON(path, &blocks)
	if err != nil {
		return 0, err
	}
	if corrupt {
		s.log.Warn().Str("file", file).Msg("Aggregate file is not valid JSON, recreating")
		blocks = nil
	}

	date := day.Format(domain.DayLayout)
	idx := -1
	for i := range blocks {
		if blocks[i].Date == date {
			idx = i
			break
		}
	}
	if idx < 0 {
		blocks = append(blocks, domain.DayBlock{Date: date})
		idx = len(blocks) - 1
	}
	if blocks[idx].Sums == nil {
		blocks[idx].Sums = make(map[string]any)
	}

	total := roundCents(toAmount(blocks[idx].Sums[sub5]) + amount)
	blocks[idx].Sums[sub5] = total

	if err := writeJSON(path, blocks); err != nil {
		return 0, err
	}
	return total, nil
}

// ReadAggregate returns the day-blocks of an aggregate file. Missing or
// unreadable files yield an empty list.
func (s *Store) ReadAggregate(file string) ([]domain.DayBlock, error) {
	path := s.path(file)
	unlock, err := s.locks.lock(path)
	if err != nil {
		return nil, err
	}
	defer unlock()

	blocks := []domain.DayBlock{}
	corrupt, err := readJSON(path, &blocks)
	if err != nil {
		return nil, err
	}
	if corrupt {
		s.log.Warn().Str("file", file).Msg("Aggregate file is not valid JSON")
		return []domain.DayBlock{}, nil
	}
	return blocks, nil
}

// toAmount reads a stored value; anything that is not a number counts as zero.
func toAmount(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0
		}
		return f
	default:
		return 0
	}
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
