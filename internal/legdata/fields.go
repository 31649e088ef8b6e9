package legdata

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Field parsing errors.
var (
	ErrShortRow  = errors.New("row has too few fields")
	ErrNullField = errors.New("required field is NULL")
	ErrBadNumber = errors.New("field is not an integer")
)

// nullMarker is how the export spells a missing value.
const nullMarker = "NULL"

// Field is one parsed column value.
type Field struct {
	Value string
	Valid bool
}

// String returns the value, or "" for NULL.
func (f Field) String() string {
	return f.Value
}

// Ptr returns a pointer to the value, or nil for NULL.
func (f Field) Ptr() *string {
	if !f.Valid {
		return nil
	}
	v := f.Value
	return &v
}

// ParseField trims whitespace and backtick quoting from a raw column value.
func ParseField(raw string) Field {
	v := strings.Trim(strings.TrimSpace(raw), "`")
	if v == nullMarker {
		return Field{}
	}
	return Field{Value: v, Valid: true}
}

// ParseFields splits a tab separated line into fields.
func ParseFields(line string) []Field {
	parts := strings.Split(line, "\t")
	fields := make([]Field, len(parts))
	for i, p := range parts {
		fields[i] = ParseField(p)
	}
	return fields
}

// row gives checked access to the fields of one line. The first failed
// access is kept in err and later accesses return zero values.
type row struct {
	file   DataFile
	line   int
	fields []Field
	err    error
}

func (r *row) field(i int) Field {
	if r.err != nil {
		return Field{}
	}
	if i >= len(r.fields) {
		r.err = fmt.Errorf("%s line %d: %w: want column %d, have %d", r.file, r.line, ErrShortRow, i, len(r.fields))
		return Field{}
	}
	return r.fields[i]
}

// str returns a required column.
func (r *row) str(i int) string {
	f := r.field(i)
	if r.err == nil && !f.Valid {
		r.err = fmt.Errorf("%s line %d: %w: column %d", r.file, r.line, ErrNullField, i)
	}
	return f.Value
}

// integer returns a required integer column.
func (r *row) integer(i int) int {
	s := r.str(i)
	if r.err != nil {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		r.err = fmt.Errorf("%s line %d: %w: column %d = %q", r.file, r.line, ErrBadNumber, i, s)
	}
	return n
}

// readRows calls fn for every line of the data file at path.
func readRows(path string, file DataFile, fn func(r *row) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", file, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	// Bill text columns can be long.
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		r := &row{file: file, line: line, fields: ParseFields(scanner.Text())}
		if err := fn(r); err != nil {
			return err
		}
		if r.err != nil {
			return r.err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read %s: %w", file, err)
	}
	return nil
}
