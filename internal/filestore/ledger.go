package filestore

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/leads/postback/internal/domain"
)

const (
	ledgerPrefix = "leads_sub6_"
	ledgerSuffix = ".txt"
)

// LedgerFile is a ledger found in the data directory.
type LedgerFile struct {
	Name string
	Path string
	Day  time.Time
}

// LedgerName returns the file name of the ledger for day.
func LedgerName(day time.Time) string {
	return ledgerPrefix + day.Format(domain.DayLayout) + ledgerSuffix
}

// ParseLedgerName extracts the day from a ledger file name, in loc.
func ParseLedgerName(name string, loc *time.Location) (time.Time, bool) {
	if !strings.HasPrefix(name, ledgerPrefix) || !strings.HasSuffix(name, ledgerSuffix) {
		return time.Time{}, false
	}
	raw := strings.TrimSuffix(strings.TrimPrefix(name, ledgerPrefix), ledgerSuffix)
	day, err := time.ParseInLocation(domain.DayLayout, raw, loc)
	if err != nil {
		return time.Time{}, false
	}
	return day, true
}

// LedgerPath returns the absolute path of the ledger for day.
func (s *Store) LedgerPath(day time.Time) string {
	return s.path(LedgerName(day))
}

// AppendLead adds sub6 as a new line to the ledger of day.
func (s *Store) AppendLead(day time.Time, sub6 string) error {
	path := s.LedgerPath(day)
	unlock, err := s.locks.lock(path)
	if err != nil {
		return err
	}
	defer unlock()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	if _, err := f.WriteString(sub6 + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("append ledger: %w", err)
	}
	return f.Close()
}

// TouchLedger creates an empty ledger for day unless one already exists.
func (s *Store) TouchLedger(day time.Time) (string, error) {
	path := s.LedgerPath(day)
	unlock, err := s.locks.lock(path)
	if err != nil {
		return "", err
	}
	defer unlock()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return "", fmt.Errorf("create ledger: %w", err)
	}
	return path, f.Close()
}

// ReadLeads returns the lines of the ledger for day. A missing ledger yields
// no leads.
func (s *Store) ReadLeads(day time.Time) ([]string, error) {
	path := s.LedgerPath(day)
	unlock, err := s.locks.lock(path)
	if err != nil {
		return nil, err
	}
	defer unlock()

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	leads := []string{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			leads = append(leads, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan ledger: %w", err)
	}
	return leads, nil
}

// ListLedgers returns the ledgers in the data directory ordered by day.
// Files with an unparseable date are ignored.
func (s *Store) ListLedgers(loc *time.Location) ([]LedgerFile, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read data dir: %w", err)
	}

	var files []LedgerFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		day, ok := ParseLedgerName(e.Name(), loc)
		if !ok {
			continue
		}
		files = append(files, LedgerFile{Name: e.Name(), Path: s.path(e.Name()), Day: day})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Day.Before(files[j].Day) })
	return files, nil
}

// RemoveLedger deletes the ledger for day. Removing a missing ledger is not
// an error.
func (s *Store) RemoveLedger(day time.Time) error {
	path := s.LedgerPath(day)
	unlock, err := s.locks.lock(path)
	if err != nil {
		return err
	}
	defer unlock()

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove ledger: %w", err)
	}
	return nil
}
