package pipeline

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hostalia/concierge/internal/approvals"
	"github.com/hostalia/concierge/internal/escalation"
	"github.com/hostalia/concierge/internal/memory"
)

const (
	testManagerChat = "777"
	guestChat       = "34600111222"
	guestConv       = "whatsapp:" + guestChat
)

type scriptedAgent struct {
	mu    sync.Mutex
	reply string
	err   error
	calls []Request
}

func (a *scriptedAgent) Run(_ context.Context, req Request) (Reply, error) {
	a.mu.Lock()
	a.calls = append(a.calls, req)
	reply := a.reply
	a.mu.Unlock()
	return Reply{Text: reply}, a.err
}

type recordingSender struct {
	mu   sync.Mutex
	sent []sentMessage
}

type sentMessage struct {
	channel, chatID, text string
}

func (s *recordingSender) Send(_ context.Context, channel, chatID, text string) error {
	s.mu.Lock()
	s.sent = append(s.sent, sentMessage{channel, chatID, text})
	s.mu.Unlock()
	return nil
}

func (s *recordingSender) to(chatID string) []sentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sentMessage
	for _, m := range s.sent {
		if m.chatID == chatID {
			out = append(out, m)
		}
	}
	return out
}

type staleFence struct{ current bool }

func (f staleFence) IsCurrent(string, uint64) bool { return f.current }

func newTestProcessor(t *testing.T, agent *scriptedAgent) (*Processor, *recordingSender, *escalation.ConsentManager, *approvals.Tracker, *memory.Manager) {
	t.Helper()
	sender := &recordingSender{}
	consent := escalation.NewConsentManager(time.Minute)
	tracker := approvals.NewTracker("")
	mem := memory.NewManager(nil, nil)
	p := NewProcessor(Options{
		Agent:          agent,
		Consent:        consent,
		Tracker:        tracker,
		Memory:         mem,
		Sender:         sender,
		GuestChannel:   "whatsapp",
		ManagerChannel: "telegram",
		ManagerChatID:  testManagerChat,
	})
	return p, sender, consent, tracker, mem
}

func TestProcessSendsAgentReply(t *testing.T) {
	agent := &scriptedAgent{reply: "El desayuno se sirve de 7 a 10."}
	p, sender, _, _, mem := newTestProcessor(t, agent)

	if err := p.Process(context.Background(), guestConv, "a qué hora es el desayuno", 1); err != nil {
		t.Fatal(err)
	}
	got := sender.to(guestChat)
	if len(got) != 1 || got[0].text != agent.reply {
		t.Fatalf("guest sends = %v", got)
	}
	if got[0].channel != "whatsapp" {
		t.Errorf("sent on channel %q", got[0].channel)
	}
	hist := mem.Recent(context.Background(), guestConv, 10)
	if len(hist) != 2 || hist[0].Role != "guest" || hist[1].Role != "assistant" {
		t.Errorf("history = %+v", hist)
	}
}

func TestProcessMalformedConversationID(t *testing.T) {
	p, _, _, _, _ := newTestProcessor(t, &scriptedAgent{})
	if err := p.Process(context.Background(), "sin-canal", "hola", 1); err == nil {
		t.Error("expected error for malformed conversation id")
	}
}

func TestEscalationMarkerAsksConsent(t *testing.T) {
	agent := &scriptedAgent{reply: "[ESCALATE]|availability|sin disponibilidad el día 12"}
	p, sender, consent, _, _ := newTestProcessor(t, agent)

	if err := p.Process(context.Background(), guestConv, "tenéis habitación el 12?", 1); err != nil {
		t.Fatal(err)
	}
	req := consent.GetPending(guestChat)
	if req == nil {
		t.Fatal("no consent request created")
	}
	if req.Type != "availability" || req.GuestMessage != "tenéis habitación el 12?" {
		t.Errorf("request = %+v", req)
	}
	// No visible text in the reply, so the default question goes out.
	got := sender.to(guestChat)
	if len(got) != 1 || !strings.Contains(got[0].text, "encargado") {
		t.Fatalf("guest sends = %v", got)
	}
}

func TestConsentYesEscalatesToManager(t *testing.T) {
	agent := &scriptedAgent{reply: "no debería llegar al agente"}
	p, sender, consent, tracker, _ := newTestProcessor(t, agent)
	consent.Request(guestChat, "tenéis habitación el 12?", "availability", "sin disponibilidad", "")

	if err := p.Process(context.Background(), guestConv, "Sí, adelante", 2); err != nil {
		t.Fatal(err)
	}
	if len(agent.calls) != 0 {
		t.Error("consent yes must not invoke the agent")
	}
	if consent.GetPending(guestChat) != nil {
		t.Error("consent still pending after yes")
	}
	mgr := sender.to(testManagerChat)
	if len(mgr) != 1 || !strings.Contains(mgr[0].text, "tenéis habitación el 12?") {
		t.Fatalf("manager notifications = %v", mgr)
	}
	if d, ok := tracker.ReplyDraft(testManagerChat); !ok || d.GuestChatID != guestChat {
		t.Errorf("reply draft = %+v, %v", d, ok)
	}
	// Guest gets the handoff acknowledgement.
	if got := sender.to(guestChat); len(got) != 1 {
		t.Fatalf("guest sends = %v", got)
	}
}

func TestConsentNoAcknowledges(t *testing.T) {
	agent := &scriptedAgent{}
	p, sender, consent, _, _ := newTestProcessor(t, agent)
	consent.Request(guestChat, "pregunta", "availability", "r", "")

	if err := p.Process(context.Background(), guestConv, "mejor no, gracias", 2); err != nil {
		t.Fatal(err)
	}
	if len(agent.calls) != 0 {
		t.Error("consent no must not invoke the agent")
	}
	if consent.GetPending(guestChat) != nil {
		t.Error("consent still pending after no")
	}
	if got := sender.to(guestChat); len(got) != 1 {
		t.Fatalf("guest sends = %v", got)
	}
}

func TestConsentUnknownFallsThroughToAgent(t *testing.T) {
	agent := &scriptedAgent{reply: "El spa abre a las 10."}
	p, _, consent, _, _ := newTestProcessor(t, agent)
	consent.Request(guestChat, "pregunta", "availability", "r", "")

	if err := p.Process(context.Background(), guestConv, "y el spa a qué hora abre?", 2); err != nil {
		t.Fatal(err)
	}
	if len(agent.calls) != 1 {
		t.Fatalf("agent calls = %d, want 1", len(agent.calls))
	}
	if consent.GetPending(guestChat) == nil {
		t.Error("consent request lost on unrelated message")
	}
}

func TestWhatsAppDraftMarkerStoresDraftAndHistoryMarker(t *testing.T) {
	agent := &scriptedAgent{reply: "[WA_DRAFT]|" + guestChat + "|Hola, confirmamos su reserva."}
	p, sender, _, tracker, mem := newTestProcessor(t, agent)

	// Drafts originate from manager instructions, not guest messages.
	resolver := approvals.NewResolver(tracker, sender, p, nil, mem, "whatsapp", "telegram")
	if err := p.HandleManager(context.Background(), resolver, "mándale la confirmación al 34600111222"); err != nil {
		t.Fatal(err)
	}

	d, ok := tracker.WhatsAppSend(testManagerChat)
	if !ok || d.GuestID != guestChat || d.Message != "Hola, confirmamos su reserva." {
		t.Fatalf("draft = %+v, %v", d, ok)
	}
	mgr := sender.to(testManagerChat)
	if len(mgr) != 1 || !strings.Contains(mgr[0].text, "Borrador para "+guestChat) {
		t.Fatalf("manager prompt = %v", mgr)
	}
	if marker := mem.LastDraftMarker("telegram:" + testManagerChat); !strings.HasPrefix(marker, approvals.WhatsAppDraftMarker) {
		t.Errorf("history marker = %q", marker)
	}
	if got := sender.to(guestChat); len(got) != 0 {
		t.Errorf("guest contacted before confirmation: %v", got)
	}
}

func TestKBAddMarkerStoresDraft(t *testing.T) {
	agent := &scriptedAgent{reply: "[KB_ADD]|horario spa|servicios|El spa abre de 10 a 20."}
	p, sender, _, tracker, mem := newTestProcessor(t, agent)

	resolver := approvals.NewResolver(tracker, sender, p, nil, mem, "whatsapp", "telegram")
	if err := p.HandleManager(context.Background(), resolver, "apunta que el spa abre de 10 a 20"); err != nil {
		t.Fatal(err)
	}
	d, ok := tracker.KBAddition(testManagerChat)
	if !ok || d.Topic != "horario spa" {
		t.Fatalf("kb draft = %+v, %v", d, ok)
	}
	mgr := sender.to(testManagerChat)
	if len(mgr) != 1 || !strings.Contains(mgr[0].text, "horario spa") {
		t.Fatalf("manager prompt = %v", mgr)
	}
}

func TestHandleManagerPendingDraftBypassesAgent(t *testing.T) {
	agent := &scriptedAgent{reply: "no debería llegar al agente"}
	p, sender, _, tracker, mem := newTestProcessor(t, agent)
	tracker.SetWhatsAppSend(testManagerChat, approvals.WhatsAppSendDraft{GuestID: guestChat, Message: "Hola"})

	resolver := approvals.NewResolver(tracker, sender, p, nil, mem, "whatsapp", "telegram")
	if err := p.HandleManager(context.Background(), resolver, "sí"); err != nil {
		t.Fatal(err)
	}
	if len(agent.calls) != 0 {
		t.Error("pending draft reply reached the agent")
	}
	if got := sender.to(guestChat); len(got) != 1 || got[0].text != "Hola" {
		t.Fatalf("guest sends = %v", got)
	}
}

func TestSilentReplySuppressed(t *testing.T) {
	agent := &scriptedAgent{reply: "NO_REPLY"}
	p, sender, _, _, _ := newTestProcessor(t, agent)

	if err := p.Process(context.Background(), guestConv, "👍", 1); err != nil {
		t.Fatal(err)
	}
	if len(sender.sent) != 0 {
		t.Errorf("silent reply produced sends: %v", sender.sent)
	}
}

func TestStaleVersionDropped(t *testing.T) {
	agent := &scriptedAgent{reply: "respuesta tardía"}
	sender := &recordingSender{}
	p := NewProcessor(Options{
		Agent:          agent,
		Consent:        escalation.NewConsentManager(time.Minute),
		Tracker:        approvals.NewTracker(""),
		Memory:         memory.NewManager(nil, nil),
		Sender:         sender,
		Fence:          staleFence{current: false},
		GuestChannel:   "whatsapp",
		ManagerChannel: "telegram",
		ManagerChatID:  testManagerChat,
	})

	if err := p.Process(context.Background(), guestConv, "hola", 1); err != nil {
		t.Fatal(err)
	}
	if len(sender.sent) != 0 {
		t.Errorf("stale reply delivered: %v", sender.sent)
	}
}

func TestComposeReplySendMarkerConfirms(t *testing.T) {
	agent := &scriptedAgent{reply: "[SEND]|Buenas tardes, hay disponibilidad para el día 12."}
	p, _, _, _, _ := newTestProcessor(t, agent)

	text, confirmed, err := p.ComposeReply(context.Background(), "esc-1", "dile que sí hay sitio")
	if err != nil {
		t.Fatal(err)
	}
	if !confirmed || text != "Buenas tardes, hay disponibilidad para el día 12." {
		t.Errorf("ComposeReply = %q, %v", text, confirmed)
	}

	agent.reply = "Borrador: buenas tardes…"
	if _, confirmed, _ := p.ComposeReply(context.Background(), "esc-1", "más formal"); confirmed {
		t.Error("unmarked reply reported as confirmed")
	}
}
