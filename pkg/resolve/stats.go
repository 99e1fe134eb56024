package resolve

import (
	"fmt"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/dustin/go-humanize"

	"github.com/blacktop/addrdb/internal/colors"
)

// Source identifies which strategy produced an entry.
type Source int

const (
	SourceUnresolved Source = iota
	SourceManual
	SourceSymbol
	SourcePattern
)

func (s Source) String() string {
	switch s {
	case SourceManual:
		return "manual"
	case SourceSymbol:
		return "symbol"
	case SourcePattern:
		return "pattern"
	default:
		return "unresolved"
	}
}

// Stats aggregates per-source resolution counters. All mutation goes through
// one lock; Finalize freezes the elapsed time.
type Stats struct {
	mu sync.Mutex

	Total      int
	Manual     int
	Symbol     int
	Pattern    int
	Unresolved int
	Errors     int
	Elapsed    time.Duration

	start time.Time
}

func NewStats(total int) *Stats {
	return &Stats{
		Total: total,
		start: time.Now(),
	}
}

// Record counts one finished name by its resolution source.
func (s *Stats) Record(src Source) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch src {
	case SourceManual:
		s.Manual++
	case SourceSymbol:
		s.Symbol++
	case SourcePattern:
		s.Pattern++
	default:
		s.Unresolved++
	}
}

// RecordError counts a resolution task failure or timeout.
func (s *Stats) RecordError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Errors++
}

// Finalize stamps the elapsed wall time.
func (s *Stats) Finalize() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Elapsed = time.Since(s.start)
}

// ResolvedTotal is the count of names resolved by any strategy.
func (s *Stats) ResolvedTotal() int {
	return s.Manual + s.Symbol + s.Pattern
}

// SuccessRate is the resolved fraction in percent.
func (s *Stats) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.ResolvedTotal()) / float64(s.Total) * 100
}

// Report prints the final statistics banner.
func (s *Stats) Report() {
	rate := fmt.Sprintf("%.1f%%", s.SuccessRate())
	switch {
	case s.SuccessRate() >= 90:
		rate = colors.BoldHiGreen().Sprint(rate)
	case s.SuccessRate() >= 50:
		rate = colors.BoldHiYellow().Sprint(rate)
	default:
		rate = colors.BoldHiRed().Sprint(rate)
	}

	log.Info(colors.Bold().Sprint("Generation Complete"))
	log.Infof("    Total addresses:    %s", humanize.Comma(int64(s.Total)))
	log.Infof("    Resolved (manual):  %s", humanize.Comma(int64(s.Manual)))
	log.Infof("    Resolved (symbol):  %s", humanize.Comma(int64(s.Symbol)))
	log.Infof("    Resolved (pattern): %s", humanize.Comma(int64(s.Pattern)))
	log.Infof("    Unresolved:         %s", humanize.Comma(int64(s.Unresolved)))
	log.Infof("    Errors:             %s", humanize.Comma(int64(s.Errors)))
	log.Infof("    Success rate:       %s", rate)
	log.Infof("    Elapsed time:       %s", s.Elapsed.Round(time.Millisecond))

	if s.Unresolved > 0 {
		log.Warnf("%d addresses need pattern scanning or manual input", s.Unresolved)
	}
}
