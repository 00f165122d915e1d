package orch_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Pairup/internal/adapters/store/memory"
	"github.com/dkeye/Pairup/internal/app"
	"github.com/dkeye/Pairup/internal/app/match"
	"github.com/dkeye/Pairup/internal/app/orch"
	"github.com/dkeye/Pairup/internal/core"
	"github.com/dkeye/Pairup/internal/domain"
)

// --- fakes ---

type fakeConn struct {
	mu     sync.Mutex
	frames []map[string]any
	full   bool
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.full {
		return errors.New("buffer full")
	}
	var m map[string]any
	if err := json.Unmarshal(f, &m); err != nil {
		return err
	}
	c.frames = append(c.frames, m)
	return nil
}

func (c *fakeConn) Close() {}

func (c *fakeConn) events(typ string) []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []map[string]any
	for _, f := range c.frames {
		if f["type"] == typ {
			out = append(out, f)
		}
	}
	return out
}

func (c *fakeConn) last(t *testing.T, typ string) map[string]any {
	t.Helper()
	evs := c.events(typ)
	if len(evs) == 0 {
		t.Fatalf("no %q event received", typ)
	}
	return evs[len(evs)-1]
}

type recordingTracker struct {
	mu    sync.Mutex
	conns []core.ConnectionEvent
}

func (r *recordingTracker) TrackConnection(ev core.ConnectionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns = append(r.conns, ev)
}

func (r *recordingTracker) TrackVisit(core.VisitEvent) {}

func (r *recordingTracker) connections() []core.ConnectionEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.ConnectionEvent(nil), r.conns...)
}

// --- setup ---

type harness struct {
	o       *orch.Orchestrator
	tracker *recordingTracker
	conns   map[domain.ConnID]*fakeConn
	cancels map[domain.ConnID]*bool
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithTTL(t, time.Minute)
}

func newHarnessWithTTL(t *testing.T, ttl time.Duration) *harness {
	t.Helper()
	waiting := memory.NewWaitingStore(ttl)
	t.Cleanup(waiting.Close)

	var (
		clockMu sync.Mutex
		clock   = time.Unix(1_700_000_000, 0)
	)
	tracker := &recordingTracker{}
	o := &orch.Orchestrator{
		Registry: app.NewRegistry(),
		Sessions: app.NewSessions(),
		Games:    app.NewGames(),
		Matcher:  match.New(memory.NewQueueStore(), waiting),
		Catalog: domain.NewCatalog(
			[]domain.Channel{{ID: "general"}, {ID: "gaming"}},
			[]domain.Topic{{ID: "casual"}, {ID: "music"}, {ID: "tech"}},
			"general", "casual",
		),
		Tracker: tracker,
		Policy:  app.SimplePolicy{},
		Now: func() time.Time {
			clockMu.Lock()
			defer clockMu.Unlock()
			clock = clock.Add(time.Millisecond)
			return clock
		},
		Starter: func(players []domain.ConnID) domain.ConnID { return players[0] },
	}
	return &harness{
		o:       o,
		tracker: tracker,
		conns:   make(map[domain.ConnID]*fakeConn),
		cancels: make(map[domain.ConnID]*bool),
	}
}

func (h *harness) connect(id domain.ConnID) *fakeConn {
	c := &fakeConn{}
	canceled := false
	h.conns[id] = c
	h.cancels[id] = &canceled
	h.o.Connect(id, c, func() { canceled = true })
	return c
}

func (h *harness) admit(id domain.ConnID, mode string, topics ...string) {
	h.o.Admit(context.Background(), id, orch.AdmitRequest{Channel: "general", Mode: mode, Topics: topics})
}

func (h *harness) pair(t *testing.T, a, b domain.ConnID, mode string) {
	t.Helper()
	h.connect(a)
	h.connect(b)
	h.admit(a, mode, "casual")
	h.admit(b, mode, "casual")
	if !h.o.Sessions.IsPair(a, b) {
		t.Fatalf("%s and %s should be paired", a, b)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

// --- lifecycle ---

func TestConnectSendsWelcome(t *testing.T) {
	h := newHarness(t)
	c := h.connect("a")
	if got := c.last(t, orch.TypeWelcome)["id"]; got != "a" {
		t.Errorf("welcome id = %v, want a", got)
	}
}

func TestAdmitAloneWaits(t *testing.T) {
	h := newHarness(t)
	c := h.connect("a")
	h.admit("a", "video", "music", "bogus")

	w := c.last(t, orch.TypeWaiting)
	if w["channel"] != "general" || w["mode"] != "video" {
		t.Errorf("waiting = %v", w)
	}
	if len(c.events(orch.TypeMatched)) != 0 {
		t.Error("alone user must not be matched")
	}
	if st, _ := h.o.Registry.State("a"); st != domain.StateWaiting {
		t.Errorf("state = %s, want waiting", st)
	}
	_, n, _ := h.o.QueueSize(context.Background(), "general", "video", "music")
	if n != 1 {
		t.Errorf("music queue = %d, want 1", n)
	}
}

func TestAdmitMatchesWithRoles(t *testing.T) {
	h := newHarness(t)
	a := h.connect("a")
	b := h.connect("b")
	h.admit("a", "audio", "casual")
	h.admit("b", "audio", "casual")

	ma := a.last(t, orch.TypeMatched)
	mb := b.last(t, orch.TypeMatched)
	if ma["partnerId"] != "b" || mb["partnerId"] != "a" {
		t.Errorf("partners = %v / %v", ma["partnerId"], mb["partnerId"])
	}
	if ma["initiator"] != true || mb["initiator"] != false {
		t.Errorf("initiator flags = %v / %v, want exactly a", ma["initiator"], mb["initiator"])
	}
	if ma["mode"] != "audio" {
		t.Errorf("mode = %v", ma["mode"])
	}
	for _, id := range []domain.ConnID{"a", "b"} {
		if st, _ := h.o.Registry.State(id); st != domain.StatePaired {
			t.Errorf("state(%s) = %s, want paired", id, st)
		}
	}
	evs := h.tracker.connections()
	if len(evs) != 1 || evs[0].Mode != domain.ModeAudio {
		t.Errorf("tracked = %+v", evs)
	}
}

func TestAdmitDifferentModesDoNotMatch(t *testing.T) {
	h := newHarness(t)
	a := h.connect("a")
	h.connect("b")
	h.admit("a", "text", "casual")
	h.admit("b", "video", "casual")
	if len(a.events(orch.TypeMatched)) != 0 {
		t.Error("text and video users must not be matched")
	}
}

func TestReadmitKeepsPlaceInSameQueues(t *testing.T) {
	h := newHarness(t)
	h.connect("a")
	h.connect("b")
	h.admit("a", "video", "music")
	h.admit("a", "video", "music")

	h.admit("b", "video", "tech")
	h.admit("b", "video", "music", "tech")

	// a re-admitted twice but still the oldest, so a initiates
	if r, ok := h.o.Sessions.Role("a"); !ok || !r.Initiator() {
		t.Errorf("a role = %v, %v; want initiator", r, ok)
	}
	_, n, _ := h.o.QueueSize(context.Background(), "general", "video", "tech")
	if n != 0 {
		t.Errorf("tech queue = %d, want 0", n)
	}
}

func TestDisconnectNotifiesPartnerOnce(t *testing.T) {
	h := newHarness(t)
	h.pair(t, "a", "b", "video")

	var wg sync.WaitGroup
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.o.Disconnect(context.Background(), "a")
		}()
	}
	wg.Wait()

	if n := len(h.conns["b"].events(orch.TypePartnerDisconnected)); n != 1 {
		t.Errorf("partner_disconnected sent %d times, want 1", n)
	}
	if h.o.Registry.IsLive("a") {
		t.Error("a still live")
	}
	if st, _ := h.o.Registry.State("b"); st != domain.StateIdle {
		t.Errorf("b state = %s, want idle", st)
	}
	if h.o.Sessions.Count() != 0 {
		t.Errorf("sessions = %d, want 0", h.o.Sessions.Count())
	}
}

func TestDisconnectWhileWaitingCleansQueues(t *testing.T) {
	h := newHarness(t)
	h.connect("a")
	h.admit("a", "video", "music", "tech")
	h.o.Disconnect(context.Background(), "a")

	for _, topic := range []string{"music", "tech"} {
		_, n, _ := h.o.QueueSize(context.Background(), "general", "video", topic)
		if n != 0 {
			t.Errorf("%s queue = %d after disconnect", topic, n)
		}
	}
	if _, found, _ := h.o.Matcher.Waiting.Load(context.Background(), "a"); found {
		t.Error("metadata left behind")
	}
}

func TestDeadWaiterIsNeverMatched(t *testing.T) {
	h := newHarness(t)
	h.connect("ghost")
	h.admit("ghost", "video", "casual")
	// unbind without the cleanup a real disconnect runs
	h.o.Registry.Unbind("ghost")

	b := h.connect("b")
	h.admit("b", "video", "casual")
	if len(b.events(orch.TypeMatched)) != 0 {
		t.Fatal("matched with a dead connection")
	}
	c := h.connect("c")
	h.admit("c", "video", "casual")
	if got := c.last(t, orch.TypeMatched)["partnerId"]; got != "b" {
		t.Errorf("c partner = %v, want b", got)
	}
}

func TestLongWaiterOutlivesMetadataTTL(t *testing.T) {
	h := newHarnessWithTTL(t, 50*time.Millisecond)
	ctx := context.Background()
	a := h.connect("a")
	h.admit("a", "video", "casual")
	waitFor(t, func() bool {
		_, found, _ := h.o.Matcher.Waiting.Load(ctx, "a")
		return !found
	})

	h.connect("b")
	h.admit("b", "video", "casual")

	if !h.o.Sessions.IsPair("a", "b") {
		t.Fatal("a is still searching and must be matched after its metadata expired")
	}
	if got := a.last(t, orch.TypeMatched); got["partnerId"] != "b" || got["initiator"] != true {
		t.Errorf("a matched = %v, want b with a as initiator", got)
	}
}

func TestTouchKeepsWaitingMetadataAlive(t *testing.T) {
	h := newHarnessWithTTL(t, 60*time.Millisecond)
	ctx := context.Background()
	h.connect("a")
	h.admit("a", "video", "casual")

	for range 10 {
		time.Sleep(15 * time.Millisecond)
		h.o.Touch(ctx, "a")
	}
	w, found, _ := h.o.Matcher.Waiting.Load(ctx, "a")
	if !found || w.Mode != domain.ModeVideo {
		t.Fatalf("metadata = %+v found=%v, want kept alive", w, found)
	}

	h.o.Leave(ctx, "a")
	h.o.Touch(ctx, "a")
	if _, found, _ := h.o.Matcher.Waiting.Load(ctx, "a"); found {
		t.Error("touch must not resurrect metadata of a connection that left")
	}
}

func TestTeardownFromIdleLogsNoWarning(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(zerolog.SyncWriter(&buf))
	t.Cleanup(func() { log.Logger = prev })

	h := newHarness(t)
	ctx := context.Background()
	h.connect("a")
	h.o.Leave(ctx, "a")
	h.pair(t, "b", "c", "text")
	h.o.Disconnect(ctx, "b")

	if out := buf.String(); strings.Contains(out, `"level":"warn"`) {
		t.Errorf("unexpected warning:\n%s", out)
	}
}

func TestPairDisconnectingTogetherIsCleanedOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for i := range 20 {
		a, b := domain.ConnID(fmt.Sprintf("a%d", i)), domain.ConnID(fmt.Sprintf("b%d", i))
		h.pair(t, a, b, "video")

		var wg sync.WaitGroup
		for _, id := range []domain.ConnID{a, b, a, b} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				h.o.Disconnect(ctx, id)
			}()
		}
		wg.Wait()

		n := len(h.conns[a].events(orch.TypePartnerDisconnected)) + len(h.conns[b].events(orch.TypePartnerDisconnected))
		if n > 1 {
			t.Fatalf("round %d: partner_disconnected delivered %d times", i, n)
		}
		if h.o.Registry.IsLive(a) || h.o.Registry.IsLive(b) {
			t.Fatalf("round %d: connection still live", i)
		}
	}
	if h.o.Sessions.Count() != 0 {
		t.Errorf("sessions = %d, want 0", h.o.Sessions.Count())
	}
}

func TestSurvivorHearsOnceWhenDisconnectRaces(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for i := range 20 {
		a, b := domain.ConnID(fmt.Sprintf("a%d", i)), domain.ConnID(fmt.Sprintf("b%d", i))
		h.pair(t, a, b, "video")

		var wg sync.WaitGroup
		for range 2 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				h.o.Disconnect(ctx, a)
			}()
		}
		wg.Wait()

		if n := len(h.conns[b].events(orch.TypePartnerDisconnected)); n != 1 {
			t.Fatalf("round %d: survivor notified %d times, want 1", i, n)
		}
		h.o.Leave(ctx, b)
	}
}

func TestNextRequeuesAndNotifiesPartner(t *testing.T) {
	h := newHarness(t)
	h.pair(t, "a", "b", "video")
	h.connect("c")
	h.admit("c", "video", "casual")

	h.o.Next(context.Background(), "a")

	if n := len(h.conns["b"].events(orch.TypePartnerDisconnected)); n != 1 {
		t.Errorf("b notified %d times", n)
	}
	if !h.o.Sessions.IsPair("a", "c") {
		t.Error("a should be matched with c after next")
	}
	if st, _ := h.o.Registry.State("b"); st != domain.StateIdle {
		t.Errorf("b state = %s, want idle", st)
	}
}

func TestAdmitWhilePairedBehavesAsNext(t *testing.T) {
	h := newHarness(t)
	h.pair(t, "a", "b", "video")
	h.admit("a", "text", "tech")

	if _, ok := h.o.Sessions.PartnerOf("a"); ok {
		t.Error("a should have left the session")
	}
	if len(h.conns["b"].events(orch.TypePartnerDisconnected)) != 1 {
		t.Error("b not notified")
	}
	if st, _ := h.o.Registry.State("a"); st != domain.StateWaiting {
		t.Errorf("a state = %s, want waiting", st)
	}
}

func TestLeaveStopsSearching(t *testing.T) {
	h := newHarness(t)
	h.connect("a")
	h.admit("a", "video", "casual")
	h.o.Leave(context.Background(), "a")

	if st, _ := h.o.Registry.State("a"); st != domain.StateIdle {
		t.Errorf("state = %s, want idle", st)
	}
	b := h.connect("b")
	h.admit("b", "video", "casual")
	if len(b.events(orch.TypeMatched)) != 0 {
		t.Error("matched with a user who left")
	}
}

func TestSlowConsumerIsKicked(t *testing.T) {
	h := newHarness(t)
	h.pair(t, "a", "b", "video")
	h.conns["b"].mu.Lock()
	h.conns["b"].full = true
	h.conns["b"].mu.Unlock()

	h.o.RelayChat("a", "b", json.RawMessage(`"hi"`))
	if !*h.cancels["b"] {
		t.Error("backpressured connection should be canceled")
	}
}

// --- relay ---

func TestRelayOnlyToPartner(t *testing.T) {
	h := newHarness(t)
	h.pair(t, "a", "b", "video")
	stranger := h.connect("s")

	h.o.RelaySignal("a", "b", json.RawMessage(`{"type":"offer","sdp":"v=0"}`))
	h.o.RelaySignal("a", "s", json.RawMessage(`{"type":"offer"}`))
	h.o.RelayChat("s", "b", json.RawMessage(`"spam"`))
	h.o.RelayChat("b", "a", json.RawMessage(`{"text":"hello"}`))

	sig := h.conns["b"].last(t, orch.TypeSignal)
	if sig["sender"] != "a" {
		t.Errorf("signal sender = %v", sig["sender"])
	}
	if inner, _ := sig["signal"].(map[string]any); inner["sdp"] != "v=0" {
		t.Errorf("signal payload altered: %v", sig["signal"])
	}
	if len(stranger.events(orch.TypeSignal)) != 0 {
		t.Error("stranger received a signal")
	}
	if n := len(h.conns["b"].events(orch.TypeChatMessage)); n != 0 {
		t.Errorf("b received %d chats from a stranger", n)
	}
	chat := h.conns["a"].last(t, orch.TypeChatMessage)
	if msg, _ := chat["message"].(map[string]any); msg["text"] != "hello" || chat["sender"] != "b" {
		t.Errorf("chat = %v", chat)
	}
}

// --- upgrade ---

func TestUpgradeAccepted(t *testing.T) {
	h := newHarness(t)
	h.pair(t, "a", "b", "text")

	if err := h.o.RequestUpgrade("a", "b", "audio"); err != nil {
		t.Fatalf("RequestUpgrade: %v", err)
	}
	req := h.conns["b"].last(t, orch.TypeUpgradeRequest)
	if req["from"] != "a" || req["targetMode"] != "audio" {
		t.Errorf("upgrade_request = %v", req)
	}
	if err := h.o.RespondUpgrade("b", "a", "audio", true); err != nil {
		t.Fatalf("RespondUpgrade: %v", err)
	}
	resp := h.conns["a"].last(t, orch.TypeUpgradeResponse)
	if resp["accepted"] != true || resp["from"] != "b" {
		t.Errorf("upgrade_response = %v", resp)
	}
	if m, _ := h.o.Sessions.Mode("b"); m != domain.ModeAudio {
		t.Errorf("mode = %s, want audio", m)
	}
	evs := h.tracker.connections()
	if len(evs) != 2 || evs[1].Mode != domain.ModeAudio {
		t.Errorf("tracked = %+v, want a second audio record", evs)
	}
}

func TestUpgradedPairRequeuesUnderNewMode(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.pair(t, "a", "b", "text")
	_ = h.o.RequestUpgrade("a", "b", "video")
	if err := h.o.RespondUpgrade("b", "a", "video", true); err != nil {
		t.Fatalf("RespondUpgrade: %v", err)
	}
	for _, id := range []domain.ConnID{"a", "b"} {
		if p, _ := h.o.Registry.Preferences(id); p.Mode != domain.ModeVideo {
			t.Errorf("%s preferences mode = %s, want video", id, p.Mode)
		}
	}

	h.o.Next(ctx, "a")
	if got := h.conns["a"].last(t, orch.TypeWaiting)["mode"]; got != "video" {
		t.Fatalf("a requeued in mode %v, want video", got)
	}
	h.connect("c")
	h.admit("c", "video", "casual")
	if !h.o.Sessions.IsPair("a", "c") {
		t.Fatal("a should match video user c after next")
	}

	h.o.Disconnect(ctx, "c")
	if n := len(h.conns["a"].events(orch.TypePartnerDisconnected)); n != 1 {
		t.Errorf("a notified %d times, want 1", n)
	}
}

func TestUpgradeRejectedKeepsMode(t *testing.T) {
	h := newHarness(t)
	h.pair(t, "a", "b", "text")
	_ = h.o.RequestUpgrade("a", "b", "video")
	if err := h.o.RespondUpgrade("b", "a", "video", false); err != nil {
		t.Fatalf("RespondUpgrade: %v", err)
	}
	if h.conns["a"].last(t, orch.TypeUpgradeResponse)["accepted"] != false {
		t.Error("expected rejection")
	}
	if m, _ := h.o.Sessions.Mode("a"); m != domain.ModeText {
		t.Errorf("mode = %s, want text", m)
	}
	if len(h.tracker.connections()) != 1 {
		t.Error("reject must not be tracked")
	}
}

func TestUpgradeRules(t *testing.T) {
	h := newHarness(t)
	h.pair(t, "a", "b", "audio")
	h.connect("s")

	if err := h.o.RequestUpgrade("a", "b", "text"); !errors.Is(err, orch.ErrNotRicher) {
		t.Errorf("downgrade err = %v", err)
	}
	if err := h.o.RequestUpgrade("a", "b", "hologram"); !errors.Is(err, domain.ErrUnknownMode) {
		t.Errorf("unknown mode err = %v", err)
	}
	if err := h.o.RequestUpgrade("s", "a", "video"); !errors.Is(err, domain.ErrNotPaired) {
		t.Errorf("stranger err = %v", err)
	}
	_ = h.o.RequestUpgrade("a", "b", "video")
	if err := h.o.RespondUpgrade("s", "a", "video", true); err == nil {
		t.Error("only the partner may respond")
	}
}

func TestUpgradeTimesOut(t *testing.T) {
	h := newHarness(t)
	h.o.NegotiationTimeout = 20 * time.Millisecond
	h.pair(t, "a", "b", "text")

	_ = h.o.RequestUpgrade("a", "b", "audio")
	waitFor(t, func() bool { return len(h.conns["a"].events(orch.TypeUpgradeResponse)) > 0 })

	resp := h.conns["a"].last(t, orch.TypeUpgradeResponse)
	if resp["accepted"] != false || resp["reason"] != domain.ReasonTimeout {
		t.Errorf("timeout response = %v", resp)
	}
	if err := h.o.RespondUpgrade("b", "a", "audio", true); !errors.Is(err, domain.ErrNoNegotiation) {
		t.Errorf("late answer err = %v", err)
	}
}

// --- games ---

func TestGameFlow(t *testing.T) {
	h := newHarness(t)
	h.pair(t, "a", "b", "video")

	if err := h.o.RequestGame("a", "b", "tictactoe"); err != nil {
		t.Fatalf("RequestGame: %v", err)
	}
	prop := h.conns["b"].last(t, orch.TypeGameProposal)
	if prop["from"] != "a" || prop["gameId"] != "tictactoe" {
		t.Errorf("proposal = %v", prop)
	}
	if err := h.o.RespondGame("b", "a", "tictactoe", true); err != nil {
		t.Fatalf("RespondGame: %v", err)
	}
	if h.conns["a"].last(t, orch.TypeGameResponse)["accepted"] != true {
		t.Error("a should see the acceptance")
	}
	for _, id := range []domain.ConnID{"a", "b"} {
		start := h.conns[id].last(t, orch.TypeGameStart)
		if start["starterPlayer"] != "a" {
			t.Errorf("%s starter = %v", id, start["starterPlayer"])
		}
		if players, _ := start["players"].([]any); len(players) != 2 {
			t.Errorf("%s players = %v", id, start["players"])
		}
	}

	if err := h.o.GameAction("b", "a", "tictactoe", json.RawMessage(`{"cell":4}`)); err != nil {
		t.Fatalf("GameAction: %v", err)
	}
	act := h.conns["a"].last(t, orch.TypeGameAction)
	if p, _ := act["payload"].(map[string]any); p["cell"] != float64(4) {
		t.Errorf("action = %v", act)
	}
	if err := h.o.GameAction("b", "a", "chess", nil); !errors.Is(err, domain.ErrNoGame) {
		t.Errorf("wrong game err = %v", err)
	}

	if err := h.o.EndGame("a", "b", "tictactoe", "win"); err != nil {
		t.Fatalf("EndGame: %v", err)
	}
	end := h.conns["b"].last(t, orch.TypeGameEnd)
	if end["reason"] != "win" || end["from"] != "a" {
		t.Errorf("game:end = %v", end)
	}
	if _, ok := h.o.Games.Active("b"); ok {
		t.Error("game still active")
	}
}

func TestGameRequiresPartner(t *testing.T) {
	h := newHarness(t)
	h.pair(t, "a", "b", "video")
	h.connect("s")
	if err := h.o.RequestGame("s", "a", "chess"); !errors.Is(err, domain.ErrNotPartner) {
		t.Errorf("stranger request err = %v", err)
	}
	if err := h.o.RequestGame("a", "b", ""); !errors.Is(err, orch.ErrBadGameID) {
		t.Errorf("empty game err = %v", err)
	}
	if err := h.o.RespondGame("b", "a", "chess", true); !errors.Is(err, domain.ErrNoProposal) {
		t.Errorf("accept without proposal err = %v", err)
	}
}

func TestGameEndsOnDisconnect(t *testing.T) {
	h := newHarness(t)
	h.pair(t, "a", "b", "video")
	_ = h.o.RequestGame("a", "b", "chess")
	_ = h.o.RespondGame("b", "a", "chess", true)

	h.o.Disconnect(context.Background(), "a")

	end := h.conns["b"].last(t, orch.TypeGameEnd)
	if end["reason"] != domain.EndReasonDisconnect || end["gameId"] != "chess" || end["from"] != "a" {
		t.Errorf("game:end = %v", end)
	}
	if _, ok := h.o.Games.Active("b"); ok {
		t.Error("b still has a game handle")
	}
}

func TestGameProposalTimesOut(t *testing.T) {
	h := newHarness(t)
	h.o.NegotiationTimeout = 20 * time.Millisecond
	h.pair(t, "a", "b", "video")

	_ = h.o.RequestGame("a", "b", "chess")
	waitFor(t, func() bool { return len(h.conns["a"].events(orch.TypeGameResponse)) > 0 })

	resp := h.conns["a"].last(t, orch.TypeGameResponse)
	if resp["accepted"] != false || resp["reason"] != domain.ReasonTimeout || resp["from"] != "b" {
		t.Errorf("timeout response = %v", resp)
	}
}

func TestGameNeverOutlivesItsSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for i := range 30 {
		a, b := domain.ConnID(fmt.Sprintf("a%d", i)), domain.ConnID(fmt.Sprintf("b%d", i))
		h.pair(t, a, b, "video")
		if err := h.o.RequestGame(a, b, "chess"); err != nil {
			t.Fatalf("RequestGame: %v", err)
		}

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = h.o.RespondGame(b, a, "chess", true)
		}()
		go func() {
			defer wg.Done()
			h.o.Leave(ctx, a)
		}()
		wg.Wait()

		for _, id := range []domain.ConnID{a, b} {
			if g, ok := h.o.Games.Active(id); ok {
				t.Fatalf("round %d: %s kept game %+v after its session ended", i, id, g)
			}
		}
	}

	h.pair(t, "x", "y", "video")
	_ = h.o.RequestGame("x", "y", "chess")
	h.o.Leave(ctx, "x")
	if err := h.o.RespondGame("y", "x", "chess", true); !errors.Is(err, domain.ErrNotPartner) {
		t.Errorf("accept after leave err = %v, want ErrNotPartner", err)
	}
}
