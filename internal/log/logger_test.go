package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestInitWriter_ProdIsJSON(t *testing.T) {
	var buf bytes.Buffer
	InitWriter("prod", &buf)
	defer zerolog.SetGlobalLevel(zerolog.DebugLevel)

	log.Info().Uint("post_id", 7).Msg("hello")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("prod log line is not JSON: %v (%q)", err, buf.String())
	}
	if entry["message"] != "hello" {
		t.Errorf("message = %v, want hello", entry["message"])
	}
	if entry["service"] != "commentroom" {
		t.Errorf("service = %v, want commentroom", entry["service"])
	}
}

func TestInitWriter_ProdDropsDebug(t *testing.T) {
	var buf bytes.Buffer
	InitWriter("prod", &buf)
	defer zerolog.SetGlobalLevel(zerolog.DebugLevel)

	log.Debug().Msg("noisy")
	if buf.Len() != 0 {
		t.Errorf("debug output in prod: %q", buf.String())
	}
}
