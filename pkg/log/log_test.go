package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestPackageLevelLogging(t *testing.T) {
	var buf bytes.Buffer
	InitLogger(&buf, zerolog.InfoLevel, false)

	Info("plain message")
	Warn("warned")
	Debug("filtered out")
	Error("errored")

	out := buf.String()
	for _, want := range []string{"plain message", "warned", "errored"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %s", want, out)
		}
	}
	if strings.Contains(out, "filtered out") {
		t.Errorf("debug message should be filtered at info level: %s", out)
	}
}

func TestEntryFieldsAndError(t *testing.T) {
	var buf bytes.Buffer
	InitLogger(&buf, zerolog.DebugLevel, false)

	WithField("job", "espn-transactions").
		WithFields(map[string]interface{}{"season": 2023, "records": 42}).
		Info("pull completed")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decoding log line: %v", err)
	}
	if line["job"] != "espn-transactions" {
		t.Errorf("job = %v, want espn-transactions", line["job"])
	}
	if line["season"] != float64(2023) {
		t.Errorf("season = %v, want 2023", line["season"])
	}
	if line["message"] != "pull completed" {
		t.Errorf("message = %v", line["message"])
	}

	buf.Reset()
	WithError(errStub("boom")).WithField("stage", "publish").Error("stage failed")

	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decoding log line: %v", err)
	}
	if line["error"] != "boom" {
		t.Errorf("error = %v, want boom", line["error"])
	}
	if line["stage"] != "publish" {
		t.Errorf("stage = %v, want publish", line["stage"])
	}
}

func TestLevelThreshold(t *testing.T) {
	var buf bytes.Buffer
	InitLogger(&buf, zerolog.DebugLevel, false)

	WithField("k", "v").Debug("debug visible")
	if !strings.Contains(buf.String(), "debug visible") {
		t.Errorf("debug message missing at debug level: %s", buf.String())
	}
}

type errStub string

func (e errStub) Error() string { return string(e) }
