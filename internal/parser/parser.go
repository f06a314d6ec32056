// Package parser reads and writes the iCalendar form of a resource (§6.1):
// VEVENTs with a category-suffixed UID plus a VALARM per sub-alarm, using
// gocal for component extraction on read and golang-ical for serialisation
// on write, with iso8601duration for VALARM TRIGGER values.
//
// Grounded on the teacher's internal/parser.GocalParser (ParseFile/
// ParseDirectory/ParseReader/ValidateICS shape, and the hand-rolled
// parseVALARMs/extractVALARMsFromEventBlock walk for pulling VALARM blocks
// out of a VEVENT), generalised from its flat storage.Event/storage.Alert
// model to internal/event.Record's sub-alarm map and wired to satisfy
// internal/resource.Backend so a Resource can load and save through it
// directly instead of through a test double.
package parser

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/apognu/gocal"

	"kalarmd/internal/event"
)

// versionProperty is the custom X-property carrying the format version a
// resource calendar was last written with (§6.1 "format-version string per
// calendar"). Absent entirely, a file is treated as version 1.
const versionProperty = "X-KALARMD-VERSION"

// ICalBackend implements resource.Backend by reading and writing iCalendar
// files or directories of them (one file per event for directory resources,
// matching the teacher's ParseDirectory).
type ICalBackend struct {
	// MaxEvents bounds how many VEVENTs a single Load will parse, guarding
	// against unbounded memory use on a hostile or corrupt file. Zero means
	// the teacher's original default of 10000.
	MaxEvents int
}

func (b *ICalBackend) maxEvents() int {
	if b.MaxEvents > 0 {
		return b.MaxEvents
	}
	return 10000
}

// Load implements resource.Backend. location is a single .ics file or a
// directory of them; a missing path is not an error (an empty, new resource).
func (b *ICalBackend) Load(location string) ([]event.Record, int, error) {
	info, err := os.Stat(location)
	if os.IsNotExist(err) {
		return nil, CurrentFormatVersion, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("parser: stat %s: %w", location, err)
	}

	if info.IsDir() {
		return b.loadDirectory(location)
	}
	return b.loadFile(location)
}

func (b *ICalBackend) loadFile(path string) ([]event.Record, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("parser: open %s: %w", path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, 0, fmt.Errorf("parser: read %s: %w", path, err)
	}
	return b.parse(data)
}

func (b *ICalBackend) loadDirectory(dir string) ([]event.Record, int, error) {
	var records []event.Record
	version := CurrentFormatVersion
	haveOld := false

	err := filepath.Walk(dir, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil || info.IsDir() {
			return nil
		}
		if !strings.EqualFold(filepath.Ext(info.Name()), ".ics") {
			return nil
		}
		recs, v, err := b.loadFile(path)
		if err != nil {
			return fmt.Errorf("parser: %s: %w", path, err)
		}
		records = append(records, recs...)
		if v < CurrentFormatVersion {
			haveOld = true
			if v < version || version == CurrentFormatVersion {
				version = v
			}
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	if !haveOld {
		version = CurrentFormatVersion
	}
	return records, version, nil
}

// parse extracts every VEVENT in data into a Record, migrating each one in
// place if the file predates CurrentFormatVersion (§4.10's "run once per
// resource on load").
func (b *ICalBackend) parse(data []byte) ([]event.Record, int, error) {
	if err := ValidateICS(data); err != nil {
		return nil, 0, err
	}
	version := readVersionProperty(string(data))

	start := time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC)
	cal := gocal.NewParser(strings.NewReader(string(data)))
	cal.Start, cal.End = &start, &end
	if err := cal.Parse(); err != nil {
		return nil, 0, fmt.Errorf("parser: parse ics: %w", err)
	}

	var records []event.Record
	for i, ge := range cal.Events {
		if i >= b.maxEvents() {
			break
		}
		rec, err := eventToRecord(ge, string(data))
		if err != nil {
			continue
		}
		if version < CurrentFormatVersion {
			MigrateFormat(version, &rec)
		}
		records = append(records, rec)
	}
	return records, version, nil
}

// Save implements resource.Backend, delegating to WriteResource.
func (b *ICalBackend) Save(location string, records []event.Record) error {
	return WriteResource(location, records)
}

// readVersionProperty scans raw ICS text for the calendar-level version
// marker, defaulting to 1 (pre-dates the marker entirely) when absent.
func readVersionProperty(data string) int {
	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimSpace(line)
		if v, ok := strings.CutPrefix(line, versionProperty+":"); ok {
			var n int
			if _, err := fmt.Sscanf(strings.TrimSpace(v), "%d", &n); err == nil {
				return n
			}
		}
	}
	return 1
}

// ValidateICS performs a structural sanity check (balanced BEGIN/END pairs,
// present VCALENDAR wrapper) ahead of the real parse, the same shape as the
// teacher's ValidateICS.
func ValidateICS(data []byte) error {
	content := string(data)
	if !strings.Contains(content, "BEGIN:VCALENDAR") {
		return fmt.Errorf("parser: missing BEGIN:VCALENDAR")
	}
	if !strings.Contains(content, "END:VCALENDAR") {
		return fmt.Errorf("parser: missing END:VCALENDAR")
	}

	var stack []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "BEGIN:"):
			stack = append(stack, strings.TrimPrefix(line, "BEGIN:"))
		case strings.HasPrefix(line, "END:"):
			component := strings.TrimPrefix(line, "END:")
			if len(stack) == 0 {
				return fmt.Errorf("parser: unexpected END:%s without matching BEGIN", component)
			}
			if stack[len(stack)-1] != component {
				return fmt.Errorf("parser: mismatched BEGIN/END: expected %s, got %s", stack[len(stack)-1], component)
			}
			stack = stack[:len(stack)-1]
		}
	}
	if len(stack) > 0 {
		return fmt.Errorf("parser: unclosed BEGIN statements: %v", stack)
	}
	return nil
}

// sortedUIDs is a small helper used by write.go for
// deterministic iteration over a map of records keyed by UID.
func sortedUIDs(byUID map[string]event.Record) []string {
	uids := make([]string, 0, len(byUID))
	for uid := range byUID {
		uids = append(uids, uid)
	}
	sort.Strings(uids)
	return uids
}
