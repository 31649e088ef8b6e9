package legdata

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestParseField(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		want  string
		valid bool
	}{
		{name: "quoted", raw: "`AB`", want: "AB", valid: true},
		{name: "padded", raw: "  `AB` \r", want: "AB", valid: true},
		{name: "bare", raw: "42", want: "42", valid: true},
		{name: "null", raw: "NULL", want: "", valid: false},
		{name: "padded null", raw: " NULL ", want: "", valid: false},
		{name: "quoted null text", raw: "`NULL`", want: "", valid: false},
		{name: "empty", raw: "", want: "", valid: true},
		{name: "inner backtick kept", raw: "`a`b`", want: "a`b", valid: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseField(tt.raw)
			if got.Value != tt.want || got.Valid != tt.valid {
				t.Errorf("ParseField(%q) = %+v, want {Value:%q Valid:%v}", tt.raw, got, tt.want, tt.valid)
			}
		})
	}
}

func TestField_Ptr(t *testing.T) {
	if p := ParseField("NULL").Ptr(); p != nil {
		t.Errorf("Ptr() for NULL = %q, want nil", *p)
	}
	p := ParseField("`Budget`").Ptr()
	if p == nil || *p != "Budget" {
		t.Errorf("Ptr() = %v, want Budget", p)
	}
}

func TestParseFields(t *testing.T) {
	fields := ParseFields("`a`\tNULL\t `c` ")
	if len(fields) != 3 {
		t.Fatalf("len = %d, want 3", len(fields))
	}
	if fields[0].Value != "a" || fields[1].Valid || fields[2].Value != "c" {
		t.Errorf("ParseFields = %+v", fields)
	}
}

func TestReadRows_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		read    func(r *row)
		wantErr error
	}{
		{
			name:    "short row",
			content: "`a`\t`b`\n",
			read:    func(r *row) { r.str(5) },
			wantErr: ErrShortRow,
		},
		{
			name:    "null required",
			content: "`a`\tNULL\n",
			read:    func(r *row) { r.str(1) },
			wantErr: ErrNullField,
		},
		{
			name:    "bad number",
			content: "`a`\t`b`\n",
			read:    func(r *row) { r.integer(1) },
			wantErr: ErrBadNumber,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "t.dat")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			err := readRows(path, FileBills, func(r *row) error {
				tt.read(r)
				return nil
			})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("readRows() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestReadRows_FirstErrorSticks(t *testing.T) {
	r := &row{file: FileBills, line: 1, fields: ParseFields("NULL\t`x`")}
	r.str(0)
	r.integer(1)
	if !errors.Is(r.err, ErrNullField) {
		t.Errorf("err = %v, want %v", r.err, ErrNullField)
	}
}

func TestReadRows_MissingFile(t *testing.T) {
	err := readRows(filepath.Join(t.TempDir(), "nope.dat"), FileBills, func(*row) error { return nil })
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error = %v, want os.ErrNotExist", err)
	}
}
