package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions for the compliance dashboard MCP server.
// Descriptions are what the LLM reads to decide which tool to use.

var ToolGetDashboard = mcp.NewTool("get_dashboard",
	mcp.WithDescription(
		"Get a summary of the compliance dashboard: wallet risk scores, high-risk transaction alerts, "+
			"KYC verification counts, upcoming regulatory deadlines and the latest risk assessment."),
)

var ToolClassifyRisk = mcp.NewTool("classify_risk",
	mcp.WithDescription(
		"Classify a risk score from 0 to 100 against the compliance rules. "+
			"Scores above 70 are High Risk and fail KYC verification; scores above 50 trip the FATF Travel Rule."),
	mcp.WithNumber("score",
		mcp.Required(),
		mcp.Description("Risk score to classify. Values outside 0-100 are clamped.")),
)

var ToolListAlerts = mcp.NewTool("list_alerts",
	mcp.WithDescription(
		"List high-risk transaction alerts. A transaction alerts when its risk score is strictly above the threshold."),
	mcp.WithNumber("threshold",
		mcp.Description("Alert threshold between 0 and 100 (default: the server's configured threshold, normally 70)")),
)

var ToolGetWalletGraph = mcp.NewTool("get_wallet_graph",
	mcp.WithDescription(
		"Get the wallet relationship graph: each wallet with its risk tier, and the links between wallets. "+
			"Links that reference unknown wallets are reported separately."),
)

var ToolRunLocalAnalysis = mcp.NewTool("run_local_analysis",
	mcp.WithDescription(
		"Run a local risk analysis cycle and return the resulting assessment. "+
			"Fails if another analysis is already in progress."),
)

var ToolGetAnalysisStatus = mcp.NewTool("get_analysis_status",
	mcp.WithDescription(
		"Get the state of the analysis runner (idle, loading, succeeded, failed) and the last assessment."),
)

var ToolAuditContract = mcp.NewTool("audit_contract",
	mcp.WithDescription(
		"Audit a smart contract with the external audit service and return the risk assessment. "+
			"If contract_code is omitted, a contract template is generated from the configuration first."),
	mcp.WithString("transaction_type",
		mcp.Required(),
		mcp.Description("Transaction type (e.g. 'Securities Trade', 'Global Custody Services')")),
	mcp.WithString("asset_type",
		mcp.Required(),
		mcp.Description("Asset type (e.g. 'Equity', 'Bond')")),
	mcp.WithString("value",
		mcp.Required(),
		mcp.Description("Transaction value as a non-negative number (e.g. '250000')")),
	mcp.WithString("settlement_date",
		mcp.Required(),
		mcp.Description("Settlement date as YYYY-MM-DD")),
	mcp.WithString("counterparty_id",
		mcp.Required(),
		mcp.Description("Counterparty identifier")),
	mcp.WithString("jurisdiction",
		mcp.Required(),
		mcp.Description("Jurisdiction, optionally with its regulator (e.g. 'EU(MiFID II)', 'USA(SEC/FINRA)')")),
	mcp.WithString("contract_code",
		mcp.Description("Contract source to audit. Omit to generate one from the configuration.")),
)
