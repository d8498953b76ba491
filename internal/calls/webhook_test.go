package calls

import (
	"encoding/xml"
	"strings"
	"testing"
)

func TestAnswerResponseStreamXML(t *testing.T) {
	resp := answerResponse{Stream: &streamElement{
		KeepCallAlive: "true",
		ContentType:   "audio/x-l16;rate=16000",
		Bidirectional: "true",
		JoinURL:       "wss://voice.example.com/join/abc",
	}}

	data, err := xml.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got := string(data)

	for _, want := range []string{
		"<Response>",
		`keepCallAlive="true"`,
		`contentType="audio/x-l16;rate=16000"`,
		`bidirectional="true"`,
		">wss://voice.example.com/join/abc</Stream>",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("answer XML missing %q:\n%s", want, got)
		}
	}
}

func TestAnswerResponseHangupXML(t *testing.T) {
	data, err := xml.Marshal(answerResponse{Hangup: &struct{}{}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got := string(data)
	if !strings.Contains(got, "<Hangup>") {
		t.Errorf("hangup XML missing Hangup element:\n%s", got)
	}
	if strings.Contains(got, "<Stream") {
		t.Errorf("hangup XML must not carry stream instructions:\n%s", got)
	}
}
