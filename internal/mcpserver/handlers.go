package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mbd888/compliance-dashboard/internal/alerts"
	"github.com/mbd888/compliance-dashboard/internal/audit"
	"github.com/mbd888/compliance-dashboard/internal/graph"
	"github.com/mbd888/compliance-dashboard/internal/records"
	"github.com/mbd888/compliance-dashboard/internal/risk"
)

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	client *DashboardClient
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(client *DashboardClient) *Handlers {
	return &Handlers{client: client}
}

// HandleGetDashboard summarises a fresh dashboard snapshot.
func (h *Handlers) HandleGetDashboard(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.GetDashboard(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to load dashboard: %v", err)), nil
	}

	text, err := formatDashboard(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse dashboard: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleClassifyRisk classifies a single score.
func (h *Handlers) HandleClassifyRisk(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if _, ok := req.GetArguments()["score"]; !ok {
		return mcp.NewToolResultError("score is required"), nil
	}
	score := req.GetFloat("score", 0)

	raw, err := h.client.Classify(ctx, score)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to classify score: %v", err)), nil
	}

	var a risk.Assessment
	if err := json.Unmarshal(raw, &a); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse assessment: %v", err)), nil
	}

	return mcp.NewToolResultText(formatAssessment(a)), nil
}

// HandleListAlerts lists high-risk transaction alerts.
func (h *Handlers) HandleListAlerts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var threshold *float64
	if _, ok := req.GetArguments()["threshold"]; ok {
		v := req.GetFloat("threshold", alerts.DefaultThreshold)
		threshold = &v
	}

	raw, err := h.client.ListAlerts(ctx, threshold)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list alerts: %v", err)), nil
	}

	text, err := formatAlerts(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse alerts: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleGetWalletGraph describes the wallet relationship graph.
func (h *Handlers) HandleGetWalletGraph(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.GetGraph(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to load wallet graph: %v", err)), nil
	}

	text, err := formatGraph(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse wallet graph: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleRunLocalAnalysis triggers a local analysis cycle.
func (h *Handlers) HandleRunLocalAnalysis(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.RunLocalAnalysis(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Analysis failed: %v", err)), nil
	}

	var a risk.Assessment
	if err := json.Unmarshal(raw, &a); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse assessment: %v", err)), nil
	}

	return mcp.NewToolResultText("Local analysis complete.\n\n" + formatAssessment(a)), nil
}

// HandleGetAnalysisStatus reports the runner state.
func (h *Handlers) HandleGetAnalysisStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.AnalysisStatus(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get analysis status: %v", err)), nil
	}

	text, err := formatStatus(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse analysis status: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleAuditContract audits a contract, generating one first when no code
// is supplied.
func (h *Handlers) HandleAuditContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	form := audit.FormFields{
		TransactionType: req.GetString("transaction_type", ""),
		AssetType:       req.GetString("asset_type", ""),
		Value:           req.GetString("value", ""),
		SettlementDate:  req.GetString("settlement_date", ""),
		CounterpartyID:  req.GetString("counterparty_id", ""),
		Jurisdiction:    req.GetString("jurisdiction", ""),
	}
	code := req.GetString("contract_code", "")

	var sb strings.Builder
	if strings.TrimSpace(code) == "" {
		raw, err := h.client.GenerateTemplate(ctx, form)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Template generation failed: %v", err)), nil
		}
		var tmpl struct {
			ContractCode string `json:"contractCode"`
		}
		if err := json.Unmarshal(raw, &tmpl); err != nil || tmpl.ContractCode == "" {
			return mcp.NewToolResultError("Template generation returned no contract code"), nil
		}
		code = tmpl.ContractCode
		fmt.Fprintf(&sb, "Generated contract template (%d lines).\n\n", strings.Count(code, "\n")+1)
	}

	raw, err := h.client.AuditContract(ctx, form, code)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Audit failed: %v", err)), nil
	}

	var a risk.Assessment
	if err := json.Unmarshal(raw, &a); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse assessment: %v", err)), nil
	}

	sb.WriteString(formatAssessment(a))
	return mcp.NewToolResultText(sb.String()), nil
}

// ============================================================
// Formatting
// ============================================================

type dashboardView struct {
	Chart struct {
		Labels []string  `json:"labels"`
		Values []float64 `json:"values"`
	} `json:"chart"`
	Alerts         []alerts.Alert              `json:"alerts"`
	Verifications  []records.VerificationEntry `json:"verifications"`
	VerifiedCount  int                         `json:"verifiedCount"`
	Regulations    []records.RegulationEntry   `json:"regulations"`
	Assessment     *risk.Assessment            `json:"assessment"`
	ContractHealth *records.ContractHealth     `json:"contractHealth"`
}

func formatDashboard(raw json.RawMessage) (string, error) {
	var d dashboardView
	if err := json.Unmarshal(raw, &d); err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("Compliance Dashboard\n\n")

	highRisk := 0
	for _, v := range d.Chart.Values {
		if v > risk.HighRiskThreshold {
			highRisk++
		}
	}
	fmt.Fprintf(&sb, "Wallets: %d (%d high risk)\n", len(d.Chart.Labels), highRisk)
	for i, label := range d.Chart.Labels {
		if i < len(d.Chart.Values) {
			fmt.Fprintf(&sb, "  %s: %.0f (%s)\n", label, d.Chart.Values[i], risk.TierOf(d.Chart.Values[i]))
		}
	}

	fmt.Fprintf(&sb, "\nAlerts: %d\n", len(d.Alerts))
	for _, a := range d.Alerts {
		fmt.Fprintf(&sb, "  %s\n", a.Message)
	}

	fmt.Fprintf(&sb, "\nKYC verified: %d of %d wallets\n", d.VerifiedCount, len(d.Verifications))

	if len(d.Regulations) > 0 {
		sb.WriteString("\nRegulatory deadlines:\n")
		for _, r := range d.Regulations {
			fmt.Fprintf(&sb, "  %s  %s  [%s]\n", r.EffectiveDate, r.Name, r.Status)
		}
	}

	if h := d.ContractHealth; h != nil {
		fmt.Fprintf(&sb, "\nContract health: security %.0f, gas %d, complexity %d\n", h.SecurityScore, h.GasUsage, h.Complexity)
	}

	if d.Assessment != nil {
		sb.WriteString("\n")
		sb.WriteString(formatAssessment(*d.Assessment))
	} else {
		sb.WriteString("\nNo risk assessment has been run yet.\n")
	}

	return sb.String(), nil
}

func formatAssessment(a risk.Assessment) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Risk Assessment:\n  Score: %.1f\n  Status: %s\n", a.RiskScore, a.Status.Label())
	if a.StatusLabel != "" && a.StatusLabel != a.Status.Label() {
		fmt.Fprintf(&sb, "  Service risk level: %s\n", a.StatusLabel)
	}
	if len(a.RuleOutcomes) > 0 {
		fmt.Fprintf(&sb, "  Rules failed: %d of %d\n", len(a.Failed()), len(a.RuleOutcomes))
	}
	for _, o := range a.RuleOutcomes {
		verdict := "passed"
		if !o.Passed {
			verdict = "FAILED"
		}
		fmt.Fprintf(&sb, "  %s: %s (%s)\n", o.Rule, verdict, o.Severity)
	}
	return sb.String()
}

func formatAlerts(raw json.RawMessage) (string, error) {
	var resp struct {
		Threshold float64        `json:"threshold"`
		Alerts    []alerts.Alert `json:"alerts"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}

	if len(resp.Alerts) == 0 {
		return fmt.Sprintf("No transactions above risk score %g.", resp.Threshold), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d alert(s) above risk score %g:\n\n", len(resp.Alerts), resp.Threshold)
	for i, a := range resp.Alerts {
		fmt.Fprintf(&sb, "%d. %s (score %.0f)\n", i+1, a.Message, a.RiskScore)
	}
	return sb.String(), nil
}

func formatGraph(raw json.RawMessage) (string, error) {
	var resp struct {
		Nodes    []graph.Node `json:"nodes"`
		Dangling []graph.Edge `json:"dangling"`
		Links    []graph.Edge `json:"renderable"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}

	highRisk := 0
	for _, n := range resp.Nodes {
		if n.HighRisk() {
			highRisk++
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Wallet graph: %d wallet(s), %d high risk, %d link(s)\n\n", len(resp.Nodes), highRisk, len(resp.Links))
	for _, n := range resp.Nodes {
		fmt.Fprintf(&sb, "  %s  risk %.0f (%s)\n", n.ID, n.Risk, n.Tier)
	}
	if len(resp.Links) > 0 {
		sb.WriteString("\nLinks:\n")
		for _, l := range resp.Links {
			fmt.Fprintf(&sb, "  %s -> %s\n", l.Source, l.Target)
		}
	}
	if len(resp.Dangling) > 0 {
		sb.WriteString("\nLinks to unknown wallets:\n")
		for _, l := range resp.Dangling {
			fmt.Fprintf(&sb, "  %s -> %s\n", l.Source, l.Target)
		}
	}
	return sb.String(), nil
}

func formatStatus(raw json.RawMessage) (string, error) {
	var st struct {
		State string           `json:"state"`
		Path  string           `json:"path"`
		Error string           `json:"error"`
		Last  *risk.Assessment `json:"last"`
	}
	if err := json.Unmarshal(raw, &st); err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Analysis state: %s\n", st.State)
	if st.Path != "" {
		fmt.Fprintf(&sb, "Last trigger: %s\n", st.Path)
	}
	if st.Error != "" {
		fmt.Fprintf(&sb, "Error: %s\n", st.Error)
	}
	if st.Last != nil {
		sb.WriteString("\n")
		sb.WriteString(formatAssessment(*st.Last))
	}
	return sb.String(), nil
}
