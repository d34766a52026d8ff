package transcript

import (
	"context"
	"errors"
	"testing"
)

func TestFinalFragmentsAppendWithSeparator(t *testing.T) {
	a := New()
	for _, s := range []string{"Thank ", "you ", "chair."} {
		a.Add(Fragment{Text: s, IsFinal: true})
	}
	got, err := a.Finish()
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if want := "Thank you chair. "; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestTrimmedFragments(t *testing.T) {
	a := New()
	for _, s := range []string{"Thank", "you", "chair."} {
		a.Add(Fragment{Text: s, IsFinal: true})
	}
	if got, _ := a.Finish(); got != "Thank you chair. " {
		t.Fatalf("got %q", got)
	}
}

func TestWhitespaceOnlyFragmentIsSkipped(t *testing.T) {
	a := New()
	if a.Add(Fragment{Text: "  \n", IsFinal: true}) {
		t.Fatalf("blank fragment grew the buffer")
	}
	a.Add(Fragment{Text: "Order.\n", IsFinal: true})
	if got := a.Text(); got != "Order. " {
		t.Fatalf("got %q", got)
	}
}

func TestInterimFragmentsAreNotAppended(t *testing.T) {
	a := New()
	if a.Add(Fragment{Text: "Hel", IsFinal: false}) {
		t.Fatalf("interim should not grow the buffer")
	}
	if a.Interim() != "Hel" {
		t.Fatalf("interim = %q", a.Interim())
	}
	a.Add(Fragment{Text: "Hello.", IsFinal: true})
	if a.Text() != "Hello. " || a.Interim() != "" {
		t.Fatalf("text = %q interim = %q", a.Text(), a.Interim())
	}
	if a.Finals() != 1 {
		t.Fatalf("finals = %d", a.Finals())
	}
}

func TestEmptyCaptureFallsBack(t *testing.T) {
	a := New()
	a.Add(Fragment{Text: "", IsFinal: true})
	a.Add(Fragment{Text: "ignored", IsFinal: false})
	got, err := a.Finish()
	if !errors.Is(err, ErrEmptyCapture) {
		t.Fatalf("expected ErrEmptyCapture, got %v", err)
	}
	if got != Fallback || got == "" {
		t.Fatalf("expected fallback text, got %q", got)
	}
}

func TestPumpStopsOnClose(t *testing.T) {
	in := make(chan Fragment, 3)
	in <- Fragment{Text: "a", IsFinal: true}
	in <- Fragment{Text: "b", IsFinal: true}
	close(in)
	a := New()
	err := Pump(context.Background(), in, func(f Fragment) error {
		a.Add(f)
		return nil
	})
	if err != nil {
		t.Fatalf("pump: %v", err)
	}
	if a.Text() != "a b " {
		t.Fatalf("text = %q", a.Text())
	}
}

func TestPumpStopsOnSinkError(t *testing.T) {
	in := make(chan Fragment, 2)
	in <- Fragment{Text: "a", IsFinal: true}
	in <- Fragment{Text: "b", IsFinal: true}
	stop := errors.New("stop")
	n := 0
	err := Pump(context.Background(), in, func(Fragment) error {
		n++
		return stop
	})
	if !errors.Is(err, stop) || n != 1 {
		t.Fatalf("err = %v calls = %d", err, n)
	}
}

func TestPumpHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Pump(ctx, make(chan Fragment), func(Fragment) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
