package filestore

import "github.com/leads/postback/internal/domain"

// IncomeFile is the name of the income statement log.
const IncomeFile = "stat_lt_income.json"

// AppendIncome adds rec to the income statement log.
func (s *Store) AppendIncome(rec domain.IncomeRecord) error {
	path := s.path(IncomeFile)
	unlock, err := s.locks.lock(path)
	if err != nil {
		return err
	}
	defer unlock()

	var records []domain.IncomeRecord
	corrupt, err := readJSON(path, &records)
	if err != nil {
		return err
	}
	if corrupt {
		s.log.Warn().Str("file", IncomeFile).Msg("Income log is not valid JSON, recreating")
		records = nil
	}

	records = append(records, rec)
	return writeJSON(path, records)
}

// ReadIncome returns every record of the income statement log.
func (s *Store) ReadIncome() ([]domain.IncomeRecord, error) {
	path := s.path(IncomeFile)
	unlock, err := s.locks.lock(path)
	if err != nil {
		return nil, err
	}
	defer unlock()

	records := []domain.IncomeRecord{}
	corrupt, err := readJSON(path, &records)
	if err != nil {
		return nil, err
	}
	if corrupt {
		s.log.Warn().Str("file", IncomeFile).Msg("Income log is not valid JSON")
		return []domain.IncomeRecord{}, nil
	}
	return records, nil
}
