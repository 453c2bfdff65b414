package internal

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// LedgerHeader is the fixed first line of a fresh ledger. Field order is
// part of the on-disk contract.
const LedgerHeader = "channel,version,dart_sdk_version,release_date,hash,engine,snapshot_hash"

const ledgerFieldCount = 7

var ErrMalformedRecord = errors.New("malformed ledger record")

// Record is one ledger row. ReleaseDate is carried verbatim from the
// release feed so rewrites stay byte-stable.
type Record struct {
	Channel        string `json:"channel"`
	Version        string `json:"version"`
	DartSDKVersion string `json:"dart_sdk_version"`
	ReleaseDate    string `json:"release_date"`
	Hash           string `json:"hash"`
	Engine         string `json:"engine"`
	SnapshotHash   string `json:"snapshot_hash"`
}

// Line renders the record as an unquoted comma-joined row. The format has
// no escaping; a field containing a comma would shift every field after it.
func (r Record) Line() string {
	return strings.Join([]string{
		r.Channel,
		r.Version,
		r.DartSDKVersion,
		r.ReleaseDate,
		r.Hash,
		r.Engine,
		r.SnapshotHash,
	}, ",")
}

func ParseRecord(line string) (Record, error) {
	fields := strings.Split(line, ",")
	if len(fields) != ledgerFieldCount {
		return Record{}, fmt.Errorf("%w: %d fields", ErrMalformedRecord, len(fields))
	}
	return Record{
		Channel:        fields[0],
		Version:        fields[1],
		DartSDKVersion: fields[2],
		ReleaseDate:    fields[3],
		Hash:           fields[4],
		Engine:         fields[5],
		SnapshotHash:   fields[6],
	}, nil
}

// Ledger holds the header plus the existing record lines, newest first.
// Existing lines are never rewritten: they pass through to disk exactly
// as they were read.
type Ledger struct {
	Header string
	Lines  []string
}

// ReadLedger loads the ledger at path. A missing file is an empty ledger,
// not an error.
func ReadLedger(path string) (*Ledger, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return &Ledger{Header: LedgerHeader}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	led := &Ledger{Header: LedgerHeader}
	sc := bufio.NewScanner(f)
	first := true
	for sc.Scan() {
		line := sc.Text()
		if first {
			led.Header = line
			first = false
			continue
		}
		if line == "" {
			continue
		}
		led.Lines = append(led.Lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}

	return led, nil
}

// NewestHash returns the release commit hash of the newest record, or ""
// when the ledger is empty.
func (l *Ledger) NewestHash() string {
	if len(l.Lines) == 0 {
		return ""
	}
	fields := strings.Split(l.Lines[0], ",")
	if len(fields) != ledgerFieldCount {
		return ""
	}
	return fields[4]
}

// Records parses every line into a Record, newest first.
func (l *Ledger) Records() ([]Record, error) {
	records := make([]Record, 0, len(l.Lines))
	for i, line := range l.Lines {
		rec, err := ParseRecord(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+2, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Render assembles the full on-disk content: header, the new records in
// the order given, then every pre-existing line unchanged. Every line ends
// with a newline, the last included.
func (l *Ledger) Render(newRecords []Record) string {
	var b strings.Builder
	b.WriteString(l.Header)
	b.WriteByte('\n')
	for _, rec := range newRecords {
		b.WriteString(rec.Line())
		b.WriteByte('\n')
	}
	for _, line := range l.Lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// WriteLedger replaces the file at path with content via a temp file and
// rename, so a failed run can never leave a truncated ledger behind.
func WriteLedger(path, content string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0644); err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename ledger: %w", err)
	}

	return nil
}

// LedgerDiff renders a compact line diff between two ledger contents.
// Added lines are prefixed with "+", removed lines with "-"; unchanged
// regions are omitted.
func LedgerDiff(before, after string) string {
	dmp := diffmatchpatch.New()
	src, dst, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(src, dst, false), lines)

	var b strings.Builder
	for _, d := range diffs {
		var prefix string
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		default:
			continue
		}
		text := strings.TrimSuffix(d.Text, "\n")
		for _, line := range strings.Split(text, "\n") {
			b.WriteString(prefix)
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	return b.String()
}
