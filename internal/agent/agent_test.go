package agent

import (
	"strings"
	"testing"

	"github.com/Csuarezgurruchaga/argenfuego-chatbot/internal/handoff"
)

func TestParse_AliasTable(t *testing.T) {
	tests := []struct {
		input string
		cmd   Command
	}{
		{"/listo", CommandFinish},
		{"/f", CommandFinish},
		{"/done", CommandFinish},
		{"/RESOLVED", CommandFinish},
		{"/next", CommandAdvance},
		{"/siguiente", CommandAdvance},
		{"/skip", CommandAdvance},
		{"/cola", CommandStatus},
		{"/q", CommandStatus},
		{"/list", CommandStatus},
		{"/actual", CommandActive},
		{"/a", CommandActive},
		{"/ayuda", CommandHelp},
		{"/?", CommandHelp},
		{"  /listo  ", CommandFinish},
		{"/listo gracias", CommandFinish},
	}
	for _, tt := range tests {
		cmd, isCommand := Parse(tt.input)
		if !isCommand {
			t.Errorf("Parse(%q): expected a command", tt.input)
			continue
		}
		if cmd != tt.cmd {
			t.Errorf("Parse(%q): expected %v, got %v", tt.input, tt.cmd, cmd)
		}
	}
}

func TestParse_UnknownPrefixedTokenIsStillACommand(t *testing.T) {
	cmd, isCommand := Parse("/fruta")
	if !isCommand {
		t.Fatal("expected prefixed input to count as a command")
	}
	if cmd != CommandNone {
		t.Errorf("expected CommandNone, got %v", cmd)
	}
}

func TestParse_FreeTextIsNotACommand(t *testing.T) {
	for _, input := range []string{"hola, ya te ayudo", "listo", "en 5 minutos te confirmo"} {
		if _, isCommand := Parse(input); isCommand {
			t.Errorf("Parse(%q): expected free text", input)
		}
	}
}

func TestAnnouncements(t *testing.T) {
	e := handoff.Entry{ID: "+5491100000001", SenderName: "Carla"}

	if msg := ActiveAnnouncement(e); !strings.Contains(msg, "Carla") {
		t.Errorf("expected sender name in announcement, got %q", msg)
	}

	anonymous := handoff.Entry{ID: "+5491100000002"}
	if msg := ActiveAnnouncement(anonymous); !strings.Contains(msg, "+5491100000002") {
		t.Errorf("expected id fallback, got %q", msg)
	}

	if msg := EnqueueAnnouncement(e, 1, 1); !strings.Contains(msg, "en atención") {
		t.Errorf("expected immediate attention note, got %q", msg)
	}
	if msg := EnqueueAnnouncement(e, 3, 4); !strings.Contains(msg, "Posición 3 de 4") {
		t.Errorf("expected queue position, got %q", msg)
	}

	withContext := handoff.Entry{ID: "+5491100000001", SenderName: "Carla", Context: "tengo un problema con la recarga"}
	if msg := EnqueueAnnouncement(withContext, 1, 1); !strings.Contains(msg, "tengo un problema con la recarga") {
		t.Errorf("expected triggering message quoted, got %q", msg)
	}
	if msg := EnqueueAnnouncement(e, 1, 1); strings.Contains(msg, "💬") {
		t.Errorf("expected no quote block without context, got %q", msg)
	}

	next := handoff.Entry{ID: "+5491100000003", SenderName: "Diego"}
	if msg := ClosedAnnouncement(e, &next); !strings.Contains(msg, "Diego") {
		t.Errorf("expected next active named, got %q", msg)
	}
	if msg := ClosedAnnouncement(e, nil); !strings.Contains(msg, "vacía") {
		t.Errorf("expected empty queue note, got %q", msg)
	}
}
