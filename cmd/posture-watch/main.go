package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/kinetic-data/posture.report/internal/overlay"
	"github.com/kinetic-data/posture.report/internal/pose"
	"github.com/kinetic-data/posture.report/internal/session"
	"github.com/kinetic-data/posture.report/internal/version"
)

var addr = flag.String("addr", "http://localhost:8080", "Base URL of the posture daemon")

// Styles pull from the overlay palette so a region code looks the same
// here as it does on the browser canvas.
var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#9cdcfe"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color(overlay.ColorNeutral.Hex()))
	angleStyle = lipgloss.NewStyle().Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color(overlay.ColorCorrect.Hex()))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color(overlay.ColorIncorrect.Hex()))
)

// eventMsg carries one classification event off the live stream.
type eventMsg struct {
	ev session.Event
}

// statusMsg reports stream connects and disconnects.
type statusMsg struct {
	connected bool
	err       error
}

type model struct {
	addr      string
	latest    *session.Event
	frames    int
	connected bool
	lastErr   string
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		ev := msg.ev
		m.latest = &ev
		m.frames++
		m.connected = true
		return m, nil

	case statusMsg:
		m.connected = msg.connected
		if msg.err != nil {
			m.lastErr = msg.err.Error()
		} else {
			m.lastErr = ""
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
	}
	return m, nil
}

// regionBlock renders one region as a colored block with its feedback
// label. Codes without a color (invalid) render neutral.
func regionBlock(name string, code pose.RegionCode) string {
	col, ok := overlay.ColorFor(code)
	if !ok {
		col = overlay.ColorNeutral
	}
	return lipgloss.NewStyle().
		Bold(true).
		Padding(0, 2).
		Background(lipgloss.Color(col.Hex())).
		Foreground(lipgloss.Color("#1e1e1e")).
		Render(fmt.Sprintf("%s: %s", name, overlay.Label(code)))
}

func (m model) View() tea.View {
	v := tea.NewView("")
	v.AltScreen = true

	var b strings.Builder
	b.WriteString(titleStyle.Render("posture watch"))
	b.WriteString("  ")
	b.WriteString(dimStyle.Render(m.addr))
	b.WriteString("\n\n")

	switch {
	case m.connected:
		b.WriteString(okStyle.Render("live"))
	case m.lastErr != "":
		b.WriteString(errStyle.Render("disconnected: " + m.lastErr))
	default:
		b.WriteString(dimStyle.Render("connecting ..."))
	}
	b.WriteString("\n\n")

	if m.latest == nil {
		b.WriteString(dimStyle.Render("waiting for frames ..."))
	} else {
		ev := m.latest
		b.WriteString(regionBlock("arms", ev.Arms))
		b.WriteString("  ")
		b.WriteString(regionBlock("leg", ev.Leg))
		b.WriteString("\n\n")
		b.WriteString(angleStyle.Render(fmt.Sprintf("leg angle %5.1f°", ev.LegAngleDegrees)))
		b.WriteString(dimStyle.Render(fmt.Sprintf("   seq %d   %d frames", ev.Seq, m.frames)))
	}
	b.WriteString("\n\n")
	b.WriteString(dimStyle.Render("q quit"))

	v.SetContent(b.String())
	return v
}

// sseClient tails the daemon's live stream and forwards each event to the
// program, reconnecting with a fixed backoff when the stream drops.
type sseClient struct {
	url  string
	send func(tea.Msg)
}

func (c *sseClient) run(ctx context.Context) {
	for {
		err := c.stream(ctx)
		if ctx.Err() != nil {
			return
		}
		c.send(statusMsg{err: err})
		select {
		case <-ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}
	}
}

func (c *sseClient) stream(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stream returned %s", resp.Status)
	}

	c.send(statusMsg{connected: true})

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		data, ok := strings.CutPrefix(scanner.Text(), "data: ")
		if !ok {
			continue // comment pings and event separators
		}
		var ev session.Event
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			return fmt.Errorf("bad event payload: %w", err)
		}
		c.send(eventMsg{ev: ev})
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return fmt.Errorf("stream closed")
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("posture-watch %s (%s) built %s\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}
	flag.Parse()

	base := strings.TrimRight(*addr, "/")
	p := tea.NewProgram(model{addr: base})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := &sseClient{url: base + "/api/live", send: p.Send}
	go client.run(ctx)

	if _, err := p.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error running program:", err)
		os.Exit(1)
	}
}
