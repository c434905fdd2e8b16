package errs

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
)

type kindedError struct{}

func (kindedError) Error() string { return "bad input" }
func (kindedError) Kind() string  { return "validation" }

func TestWrapPreservesChain(t *testing.T) {
	root := errors.New("disk full")

	if Wrap(nil, "ignored") != nil {
		t.Fatalf("Wrap(nil) != nil")
	}
	if Wrapf(nil, "ignored %d", 1) != nil {
		t.Fatalf("Wrapf(nil) != nil")
	}

	err := Wrapf(Wrap(root, "write slot"), "persist key %q", "mappings")
	if !errors.Is(err, root) {
		t.Fatalf("errors.Is(wrapped, root) = false")
	}
	if err.Error() != `persist key "mappings": write slot: disk full` {
		t.Fatalf("Error() = %q", err.Error())
	}

	chain := ErrorChainStrings(err)
	if len(chain) != 3 || chain[2] != "disk full" {
		t.Fatalf("ErrorChainStrings() = %v", chain)
	}
}

func TestWithStackCapturesOnce(t *testing.T) {
	if WithStack(nil) != nil {
		t.Fatalf("WithStack(nil) != nil")
	}

	first := WithStack(errors.New("boom"))
	wrapped := Wrap(first, "outer")
	if again := WithStack(wrapped); again != wrapped {
		t.Fatalf("WithStack() re-captured an error that already has a stack")
	}

	var se *StackError
	if !errors.As(wrapped, &se) || len(se.Stack()) == 0 {
		t.Fatalf("stack not reachable through wrap")
	}
}

func TestKindOf(t *testing.T) {
	if got := KindOf(Wrap(kindedError{}, "add mapping")); got != "validation" {
		t.Fatalf("KindOf() = %q, want validation", got)
	}
	if got := KindOf(errors.New("plain")); got != "internal" {
		t.Fatalf("KindOf() = %q, want internal", got)
	}
}

func TestLoggableEncodesGroup(t *testing.T) {
	var out bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&out, nil))
	logger.Error("failed", slog.Any("err", Loggable(Wrap(kindedError{}, "add mapping"))))

	var record struct {
		Err struct {
			Message string   `json:"message"`
			Kind    string   `json:"kind"`
			Chain   []string `json:"chain"`
		} `json:"err"`
	}
	if err := json.Unmarshal(out.Bytes(), &record); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if record.Err.Message != "add mapping: bad input" || record.Err.Kind != "validation" || len(record.Err.Chain) != 2 {
		t.Fatalf("logged err = %+v", record.Err)
	}
}
