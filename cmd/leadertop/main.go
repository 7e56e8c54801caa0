package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00FFFF")).
			MarginLeft(2).
			MarginTop(1)

	leaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00FF00"))

	followerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFF00"))

	unknownStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	contentStyle = lipgloss.NewStyle().
			MarginLeft(2).
			MarginTop(1)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			MarginTop(1).
			MarginLeft(2)
)

type view int

const (
	servicesView view = iota
	nodesView
)

type keyMap struct {
	Tab     key.Binding
	Refresh key.Binding
	Up      key.Binding
	Down    key.Binding
	Quit    key.Binding
}

var keys = keyMap{
	Tab: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "switch view"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh"),
	),
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("up/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("down/j", "down"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Tab, k.Refresh, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Tab, k.Refresh},
		{k.Up, k.Down, k.Quit},
	}
}

// Mirrors of leaderd's /status payload

type serviceStatus struct {
	Service string `json:"service"`
	State   string `json:"state"`
	Leader  string `json:"leader,omitempty"`
}

type clusterNode struct {
	ID       string    `json:"ID"`
	Addr     string    `json:"Addr"`
	Role     int       `json:"Role"`
	LastSeen time.Time `json:"LastSeen"`
}

type nodeStatus struct {
	NodeID   string          `json:"node_id"`
	NodeAddr string          `json:"node_addr"`
	Uptime   string          `json:"uptime"`
	Services []serviceStatus `json:"services"`
	Nodes    []clusterNode   `json:"nodes"`
}

type statusResult struct {
	endpoint string
	status   nodeStatus
	err      error
}

type statusMsg []statusResult

type tickMsg time.Time

type model struct {
	endpoints     []string
	results       []statusResult
	currentView   view
	servicesTable table.Model
	nodesTable    table.Model
	help          help.Model
	keys          keyMap
	width         int
	lastError     string
	lastRefreshed time.Time
	interval      time.Duration
}

func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchCmd(endpoints []string) tea.Cmd {
	return func() tea.Msg {
		client := &http.Client{Timeout: 3 * time.Second}
		results := make([]statusResult, 0, len(endpoints))
		for _, ep := range endpoints {
			result := statusResult{endpoint: ep}
			resp, err := client.Get("http://" + ep + "/status")
			if err != nil {
				result.err = err
				results = append(results, result)
				continue
			}
			err = json.NewDecoder(resp.Body).Decode(&result.status)
			resp.Body.Close()
			if err != nil {
				result.err = err
			}
			results = append(results, result)
		}
		return statusMsg(results)
	}
}

func newTable(columns []table.Column) table.Model {
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(12),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("#00FFFF")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(lipgloss.Color("#005577")).
		Bold(false)
	t.SetStyles(s)
	return t
}

func initialModel(endpoints []string, interval time.Duration) model {
	servicesTable := newTable([]table.Column{
		{Title: "Node", Width: 14},
		{Title: "Service", Width: 20},
		{Title: "State", Width: 10},
		{Title: "Leader", Width: 36},
	})
	nodesTable := newTable([]table.Column{
		{Title: "Node", Width: 14},
		{Title: "Addr", Width: 22},
		{Title: "Role", Width: 10},
		{Title: "Last Seen", Width: 14},
	})

	return model{
		endpoints:     endpoints,
		currentView:   servicesView,
		servicesTable: servicesTable,
		nodesTable:    nodesTable,
		help:          help.New(),
		keys:          keys,
		interval:      interval,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(fetchCmd(m.endpoints), tickCmd(m.interval))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width

	case tickMsg:
		return m, tea.Batch(fetchCmd(m.endpoints), tickCmd(m.interval))

	case statusMsg:
		m.results = msg
		m.lastRefreshed = time.Now()
		m.lastError = ""
		for _, r := range msg {
			if r.err != nil {
				m.lastError = fmt.Sprintf("%s: %v", r.endpoint, r.err)
			}
		}
		m.rebuildTables()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Tab):
			m.currentView = (m.currentView + 1) % 2
		case key.Matches(msg, m.keys.Refresh):
			return m, fetchCmd(m.endpoints)
		}
	}

	switch m.currentView {
	case servicesView:
		m.servicesTable, cmd = m.servicesTable.Update(msg)
	case nodesView:
		m.nodesTable, cmd = m.nodesTable.Update(msg)
	}
	return m, cmd
}

func (m *model) rebuildTables() {
	serviceRows := make([]table.Row, 0)
	for _, r := range m.results {
		if r.err != nil {
			continue
		}
		for _, svc := range r.status.Services {
			serviceRows = append(serviceRows, table.Row{
				r.status.NodeID,
				svc.Service,
				svc.State,
				svc.Leader,
			})
		}
	}
	sort.Slice(serviceRows, func(i, j int) bool {
		if serviceRows[i][1] != serviceRows[j][1] {
			return serviceRows[i][1] < serviceRows[j][1]
		}
		return serviceRows[i][0] < serviceRows[j][0]
	})
	m.servicesTable.SetRows(serviceRows)

	// Merge node views; last writer wins per node ID
	merged := make(map[string]clusterNode)
	for _, r := range m.results {
		if r.err != nil {
			continue
		}
		for _, n := range r.status.Nodes {
			merged[n.ID] = n
		}
	}
	nodeRows := make([]table.Row, 0, len(merged))
	for _, n := range merged {
		role := "follower"
		if n.Role == 1 {
			role = "leader"
		}
		nodeRows = append(nodeRows, table.Row{
			n.ID,
			n.Addr,
			role,
			time.Since(n.LastSeen).Round(time.Second).String() + " ago",
		})
	}
	sort.Slice(nodeRows, func(i, j int) bool { return nodeRows[i][0] < nodeRows[j][0] })
	m.nodesTable.SetRows(nodeRows)
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("leadertop - cluster leadership monitor"))
	b.WriteString("\n")

	summary := m.renderSummary()
	b.WriteString(contentStyle.Render(summary))
	b.WriteString("\n")

	switch m.currentView {
	case servicesView:
		b.WriteString(contentStyle.Render(m.servicesTable.View()))
	case nodesView:
		b.WriteString(contentStyle.Render(m.nodesTable.View()))
	}
	b.WriteString("\n")

	if m.lastError != "" {
		b.WriteString(contentStyle.Render(errorStyle.Render("error: " + m.lastError)))
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render(m.help.View(m.keys)))
	b.WriteString("\n")
	return b.String()
}

func (m model) renderSummary() string {
	leaders := 0
	followers := 0
	unknown := 0
	for _, r := range m.results {
		if r.err != nil {
			continue
		}
		for _, svc := range r.status.Services {
			switch svc.State {
			case "leader":
				leaders++
			case "follower":
				followers++
			default:
				unknown++
			}
		}
	}

	refreshed := "never"
	if !m.lastRefreshed.IsZero() {
		refreshed = m.lastRefreshed.Format("15:04:05")
	}

	return fmt.Sprintf("%s  %s  %s   refreshed %s",
		leaderStyle.Render(fmt.Sprintf("leaders: %d", leaders)),
		followerStyle.Render(fmt.Sprintf("followers: %d", followers)),
		unknownStyle.Render(fmt.Sprintf("unknown: %d", unknown)),
		refreshed)
}

func main() {
	nodes := flag.String("nodes", "localhost:8080", "Comma-separated leaderd admin addresses")
	interval := flag.Duration("interval", 2*time.Second, "Refresh interval")
	flag.Parse()

	endpoints := strings.Split(*nodes, ",")
	for i := range endpoints {
		endpoints[i] = strings.TrimSpace(endpoints[i])
	}

	p := tea.NewProgram(initialModel(endpoints, *interval), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "leadertop failed: %v\n", err)
		os.Exit(1)
	}
}
