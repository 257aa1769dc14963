package extraction

import (
	"errors"
	"fmt"
	"testing"
)

func TestParseResultPlainJSON(t *testing.T) {
	res, err := parseResult(`{"title":"Q3 Report","summary":"Revenue grew.","metadata":{"topics":["finance"]}}`)
	if err != nil {
		t.Fatalf("parseResult: %v", err)
	}
	if res.Title != "Q3 Report" || res.Summary != "Revenue grew." {
		t.Errorf("unexpected result: %+v", res)
	}
	if res.Metadata == nil {
		t.Error("metadata must never be nil")
	}
}

func TestParseResultFencedJSON(t *testing.T) {
	text := "Here is the extraction:\n```json\n{\"title\":\"Notes\",\"summary\":\"A meeting.\"}\n```\nDone."
	res, err := parseResult(text)
	if err != nil {
		t.Fatalf("parseResult: %v", err)
	}
	if res.Title != "Notes" {
		t.Errorf("title = %q", res.Title)
	}
	if res.Metadata == nil {
		t.Error("missing metadata must default to empty map")
	}
}

func TestParseResultRejects(t *testing.T) {
	cases := []string{
		"no json here at all",
		`{"title":"only a title"}`,
		`{"summary":"only a summary"}`,
		`{not valid json}`,
	}
	for _, text := range cases {
		if _, err := parseResult(text); err == nil {
			t.Errorf("parseResult(%q) unexpectedly succeeded", text)
		}
	}
}

func TestIsPermanent(t *testing.T) {
	perm := permanentErr("content rejected")
	if !IsPermanent(perm) {
		t.Error("permanentErr must be permanent")
	}

	wrapped := fmt.Errorf("extraction: %w", perm)
	if !IsPermanent(wrapped) {
		t.Error("permanence must survive wrapping")
	}

	transient := &Error{Permanent: false, Err: errors.New("timeout")}
	if IsPermanent(transient) {
		t.Error("transient Error must not be permanent")
	}
	if IsPermanent(errors.New("plain")) {
		t.Error("plain error must not be permanent")
	}
}
