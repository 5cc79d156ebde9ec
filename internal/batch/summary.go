package batch

import "fmt"

// Summary accumulates row outcomes across a batch.
type Summary struct {
	Total      int
	OK         int
	Failed     int
	Duplicates int

	// seen holds every sample id in input order, repeats included.
	seen []string
	// succeeded holds the ids of rows whose invocation was silent and zero.
	succeeded []string
}

func (s *Summary) recordRow(id string) {
	s.Total++
	if id != "" {
		s.seen = append(s.seen, id)
	}
}

func (s *Summary) recordOK(id string) {
	s.OK++
	s.succeeded = append(s.succeeded, id)
}

func (s *Summary) recordFailure() {
	s.Failed++
}

// SampleIDs returns every id seen, in order, including repeats.
func (s *Summary) SampleIDs() []string {
	out := make([]string, len(s.seen))
	copy(out, s.seen)
	return out
}

// Reconcile folds duplicate sample ids into the failure count. After it
// runs, OK is the number of distinct ids among successful rows and every
// other row counts as failed.
func (s *Summary) Reconcile() {
	s.Duplicates = len(s.seen) - distinct(s.seen)
	if ok := distinct(s.succeeded); ok < s.OK {
		s.OK = ok
	}
	s.Failed = s.Total - s.OK
}

// Success reports whether every row produced a distinct, successful invocation.
func (s *Summary) Success() bool {
	return s.Total == s.OK
}

// ExitCode is 0 on success and 1 otherwise.
func (s *Summary) ExitCode() int {
	if s.Success() {
		return 0
	}
	return 1
}

// String is the human-readable summary line.
func (s *Summary) String() string {
	return fmt.Sprintf("%d rows: %d OK, %d failed (%d duplicate sample ids)",
		s.Total, s.OK, s.Failed, s.Duplicates)
}

func distinct(ids []string) int {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return len(set)
}
