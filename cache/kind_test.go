package cache

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"
)

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name      string
		kind      Kind
		opts      Options
		wantField string
	}{
		{name: "default prepared", kind: KindPrepared},
		{name: "default callable", kind: KindCallable},
		{name: "scrollable updatable", kind: KindPrepared, opts: Options{ResultSetType: ScrollSensitive, Concurrency: Updatable}},
		{name: "scrollable callable", kind: KindCallable, opts: Options{ResultSetType: ScrollInsensitive}},
		{name: "generated keys", kind: KindPrepared, opts: Options{GeneratedKeys: ReturnGeneratedKeys}},
		{name: "generated keys on callable", kind: KindCallable, opts: Options{GeneratedKeys: ReturnGeneratedKeys}, wantField: "GeneratedKeys"},
		{
			name:      "generated keys with concurrency",
			kind:      KindPrepared,
			opts:      Options{Concurrency: Updatable, GeneratedKeys: ReturnGeneratedKeys},
			wantField: "GeneratedKeys",
		},
		{name: "unknown result set type", kind: KindPrepared, opts: Options{ResultSetType: 7}, wantField: "ResultSetType"},
		{name: "unknown concurrency", kind: KindPrepared, opts: Options{Concurrency: 7}, wantField: "Concurrency"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate(tt.kind)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("expected valid options, got %v", err)
				}
				return
			}
			var optErr *OptionsError
			if !errors.As(err, &optErr) {
				t.Fatalf("expected *OptionsError, got %T (%v)", err, err)
			}
			if optErr.Field != tt.wantField {
				t.Errorf("expected field %q, got %q", tt.wantField, optErr.Field)
			}
			if !errors.Is(err, ErrInvalidOptions) {
				t.Error("expected error to match ErrInvalidOptions")
			}
		})
	}
}

func TestOptions_YAML(t *testing.T) {
	var got Definition
	err := yaml.Unmarshal([]byte(`
key: report.cursor
kind: Prepared
sql: SELECT * FROM reports
options:
  result_set_type: scroll-insensitive
  concurrency: updatable
`), &got)
	if err != nil {
		t.Fatalf("yaml.Unmarshal: %v", err)
	}

	want := Definition{
		Key:     "report.cursor",
		Kind:    KindPrepared,
		SQL:     "SELECT * FROM reports",
		Options: Options{ResultSetType: ScrollInsensitive, Concurrency: Updatable},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("definition mismatch (-want +got):\n%s", diff)
	}

	out, err := yaml.Marshal(want)
	if err != nil {
		t.Fatalf("yaml.Marshal: %v", err)
	}
	var back Definition
	if err := yaml.Unmarshal(out, &back); err != nil {
		t.Fatalf("yaml.Unmarshal: %v", err)
	}
	if diff := cmp.Diff(want, back); diff != "" {
		t.Errorf("marshalled definition mismatch (-want +got):\n%s", diff)
	}
}

func TestKind_UnmarshalTextRejectsUnknown(t *testing.T) {
	var k Kind
	if err := k.UnmarshalText([]byte("function")); err == nil {
		t.Error("expected error for unknown kind")
	}
	if _, err := Kind(0).MarshalText(); err == nil {
		t.Error("expected error marshalling the zero kind")
	}
	if got := Kind(5).String(); got != "Kind(5)" {
		t.Errorf("unexpected string %q", got)
	}
}
