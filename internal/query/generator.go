package query

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// Generator produces SQL from a natural-language prompt. Its output is
// untrusted and must pass table validation before execution.
type Generator interface {
	Generate(ctx context.Context, prompt string, allowedTables []string) (string, error)
}

// tableDocs describes each warehouse table for the generation prompt.
var tableDocs = map[string]string{
	"district": "**district** (district_id, A2, A3, A4, A11, A15, A16)\n- Demographic data: name, region, inhabitants, avg salary, crimes",
	"account":  "**account** (account_id, district_id, frequency, date)\n- Bank accounts",
	"client":   "**client** (client_id, birth_number, district_id)\n- Bank clients",
	"disp":     "**disp** (disp_id, client_id, account_id, type)\n- Account-client relationships (type: OWNER/USER)",
	"trans":    "**trans** (trans_id, account_id, date, type, operation, amount, balance, k_symbol, bank, account_to)\n- Transactions (type: PRIJEM=Credit, VYDAJ=Debit)",
	"loan":     "**loan** (loan_id, account_id, date, amount, duration, payments, status)\n- Loans (status: A/B/C/D)",
	"card":     "**card** (card_id, disp_id, type, issued)\n- Cards (type: classic/junior/gold)",
	"order":    "**order** (order_id, account_id, bank_to, account_to, amount, k_symbol)\n- Permanent payment orders",
}

// BuildPrompt composes the system prompt, restricted to the caller's
// allowed tables. The restriction is an instruction to the model, not
// a guarantee; the gate re-validates the output.
func BuildPrompt(allowedTables []string) string {
	var b strings.Builder
	b.WriteString("You are a SQL assistant for a banking database. Generate ONLY executable SQL SELECT queries.\n\n")
	b.WriteString("## Database Schema (the ONLY tables you may reference):\n\n")
	for _, table := range allowedTables {
		if doc, ok := tableDocs[table]; ok {
			b.WriteString(doc)
			b.WriteString("\n\n")
		}
	}
	b.WriteString("## Rules:\n")
	b.WriteString("- Generate ONLY SELECT queries\n")
	b.WriteString(fmt.Sprintf("- Reference ONLY these tables: %s\n", strings.Join(allowedTables, ", ")))
	b.WriteString("- Use table aliases (e.g. SELECT a.* FROM account a)\n")
	b.WriteString("- Limit to 100 rows unless specified\n")
	b.WriteString("- Use proper JOINs for related tables\n")
	b.WriteString("- Return ONLY the SQL query, no explanations\n")
	return b.String()
}

var (
	fenceOpen  = regexp.MustCompile("(?i)^```(?:sql)?\\s*")
	fenceClose = regexp.MustCompile("\\s*```\\s*$")
)

// CleanSQL strips markdown code fences the model tends to wrap its
// output in.
func CleanSQL(raw string) string {
	cleaned := strings.TrimSpace(raw)
	cleaned = fenceOpen.ReplaceAllString(cleaned, "")
	cleaned = fenceClose.ReplaceAllString(cleaned, "")
	return strings.TrimSpace(cleaned)
}

// LLMGenerator calls an OpenAI-compatible chat completions endpoint.
type LLMGenerator struct {
	baseURL    string
	model      string
	apiKey     string
	httpClient *http.Client
}

// NewLLMGenerator constructs an LLMGenerator.
func NewLLMGenerator(baseURL, model, apiKey string) *LLMGenerator {
	return &LLMGenerator{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	Stream      bool          `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Generate asks the model for SQL covering the prompt, constrained to
// the allowed tables.
func (g *LLMGenerator) Generate(ctx context.Context, prompt string, allowedTables []string) (string, error) {
	reqBody, err := json.Marshal(chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: BuildPrompt(allowedTables)},
			{Role: "user", Content: prompt},
		},
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("query: marshal generation request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("query: build generation request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("query: call generation API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("query: generation API status %d: %s", resp.StatusCode, string(body))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("query: decode generation response: %w", err)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("query: empty generation response")
	}
	return CleanSQL(parsed.Choices[0].Message.Content), nil
}

var _ Generator = (*LLMGenerator)(nil)
