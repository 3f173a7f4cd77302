package workflow

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

const intentRouterTemplate = `You are an intent classifier for a music store database (Chinook).

Your task: Determine if the user's question is relevant to the music store database.

The database contains information about:
- Artists, Albums, Tracks, Genres
- Customers, Employees
- Invoices and Sales
- Playlists
- Media types

Respond with ONLY "RELEVANT" or "NOT_RELEVANT".

Examples:
User: "Show me top selling tracks"
Response: RELEVANT

User: "What is the capital of France?"
Response: NOT_RELEVANT

User: "Which employees have the most sales?"
Response: RELEVANT

User: "How do I make a cake?"
Response: NOT_RELEVANT

Now classify this question:
User: %s
Response:`

const sqlGeneratorTemplate = `You are an expert SQL generator for a DuckDB database (Chinook music store).

CRITICAL RULES:
1. Use ONLY tables and columns from the provided schema
2. ALWAYS use Chain-of-Thought reasoning before writing SQL
3. Generate ONLY valid, executable read-only SQL queries
4. Use proper JOINs when accessing multiple tables
5. Use appropriate aggregations (COUNT, SUM, AVG, etc.)
6. Add ORDER BY and LIMIT when appropriate

DATABASE SCHEMA:
%s

SAMPLE DATA (for reference):
%s

FEW-SHOT EXAMPLES:

Example 1:
Question: "Show me the top 5 best-selling tracks"
Reasoning: First, I need to identify which tables contain sales data. The InvoiceLine table tracks individual track purchases. I'll join it with the Track table to get track names, then aggregate by track to count sales, and finally order by sales count descending with a limit of 5.
SQL:
` + "```sql" + `
SELECT t.Name, COUNT(il.InvoiceLineId) as TimesSold
FROM Track t
JOIN InvoiceLine il ON t.TrackId = il.TrackId
GROUP BY t.TrackId, t.Name
ORDER BY TimesSold DESC
LIMIT 5;
` + "```" + `

Example 2:
Question: "Which customers are from Brazil?"
Reasoning: This is a simple filter query on the Customer table. I need to select customer information and filter by the Country column.
SQL:
` + "```sql" + `
SELECT FirstName, LastName, Email, City
FROM Customer
WHERE Country = 'Brazil';
` + "```" + `

Example 3:
Question: "What's the total revenue by country?"
Reasoning: Revenue data is in the Invoice table (Total column). I need to group by BillingCountry and sum the Total column to get revenue per country.
SQL:
` + "```sql" + `
SELECT BillingCountry, SUM(Total) as TotalRevenue
FROM Invoice
GROUP BY BillingCountry
ORDER BY TotalRevenue DESC;
` + "```" + `

Example 4:
Question: "Show me all albums by Led Zeppelin"
Reasoning: I need to join the Album and Artist tables to filter albums by artist name. The Artist table contains the artist name, and Album table links to it via ArtistId.
SQL:
` + "```sql" + `
SELECT al.Title, ar.Name as ArtistName
FROM Album al
JOIN Artist ar ON al.ArtistId = ar.ArtistId
WHERE ar.Name LIKE '%%Led Zeppelin%%';
` + "```" + `

Example 5:
Question: "Which genre has the most tracks?"
Reasoning: I need to count tracks per genre. This requires joining the Track and Genre tables, then grouping by genre and counting tracks.
SQL:
` + "```sql" + `
SELECT g.Name as Genre, COUNT(t.TrackId) as TrackCount
FROM Genre g
JOIN Track t ON g.GenreId = t.GenreId
GROUP BY g.GenreId, g.Name
ORDER BY TrackCount DESC
LIMIT 1;
` + "```" + `

Now generate SQL for this question:
Question: %s

IMPORTANT:
1. First provide your reasoning (explain which tables you'll use and why)
2. Then provide the SQL query in a ` + "```sql" + ` code block
3. Ensure the query is syntactically correct for DuckDB

Reasoning:`

const errorReflectionTemplate = `You are an expert SQL debugger for DuckDB databases.

The following SQL query failed with an error. Your task is to fix it.

ORIGINAL QUESTION: %s

FAILED SQL QUERY:
` + "```sql" + `
%s
` + "```" + `

ERROR MESSAGE:
%s

PRIOR REASONING:
%s

DATABASE SCHEMA:
%s

COMMON ISSUES:
- Check for correct table and column names
- Ensure proper JOIN syntax
- Use single quotes for strings
- Only read-only SELECT statements are allowed

Provide the CORRECTED SQL query in a ` + "```sql" + ` code block.
Explain what was wrong and how you fixed it.

Explanation:`

const visualizationTemplate = `You are a data visualization expert.

Given a SQL query result, recommend the best visualization type.

QUERY: %s
RESULT COLUMNS: %s
ROW COUNT: %d

Available chart types:
- bar: For comparing categories (best for < 20 categories)
- line: For trends over time or ordered sequences
- pie: For proportions (best for < 7 categories)
- none: For detailed data, many columns, or when no chart adds value

Respond with ONLY ONE of: bar, line, pie, none

If bar, line, or pie, also specify:
- x_column: Column name for x-axis
- y_column: Column name for y-axis
- title: Chart title

Respond in this exact JSON format:
{
  "chart_type": "bar",
  "x_column": "column_name",
  "y_column": "column_name",
  "title": "Chart Title"
}

For none, respond:
{
  "chart_type": "none"
}

Response:`

func intentRouterPrompt(question string) string {
	return fmt.Sprintf(intentRouterTemplate, question)
}

func sqlGeneratorPrompt(question, schemaText, sampleData string) string {
	return fmt.Sprintf(sqlGeneratorTemplate, schemaText, sampleData, question)
}

func errorReflectionPrompt(question, sqlText, errorText, reasoning, schemaText string) string {
	if strings.TrimSpace(reasoning) == "" {
		reasoning = "(none)"
	}
	return fmt.Sprintf(errorReflectionTemplate, question, sqlText, errorText, reasoning, schemaText)
}

func visualizationPrompt(question string, columns []string, rowCount int) string {
	return fmt.Sprintf(visualizationTemplate, question, strings.Join(columns, ", "), rowCount)
}

var (
	reasoningPattern   = regexp.MustCompile(`(?s)Reasoning:(.*?)` + "```sql")
	explanationPattern = regexp.MustCompile(`(?s)Explanation:(.*?)` + "```sql")
	sqlBlockPattern    = regexp.MustCompile("(?s)```sql\\s*(.*?)\\s*```")
	jsonObjectPattern  = regexp.MustCompile(`(?s)\{.*\}`)
)

// extractReasoning pulls the chain-of-thought text that precedes the
// SQL code block. Models sometimes repeat the "Reasoning:" marker and
// sometimes omit it entirely; in the latter case everything before the
// code block counts.
func extractReasoning(completion string) string {
	if match := reasoningPattern.FindStringSubmatch(completion); match != nil {
		return trimReasoning(match[1])
	}
	if idx := strings.Index(completion, "```sql"); idx > 0 {
		return trimReasoning(completion[:idx])
	}
	return ""
}

// trimReasoning drops the "SQL:" lead-in that models emit between the
// reasoning text and the code block.
func trimReasoning(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, "SQL:")
	return strings.TrimSpace(text)
}

func extractExplanation(completion string) string {
	if match := explanationPattern.FindStringSubmatch(completion); match != nil {
		return strings.TrimSpace(match[1])
	}
	if idx := strings.Index(completion, "```sql"); idx > 0 {
		return strings.TrimSpace(completion[:idx])
	}
	return ""
}

// extractSQL returns the contents of the first sql code block, or the
// whole completion when no block is present.
func extractSQL(completion string) string {
	if match := sqlBlockPattern.FindStringSubmatch(completion); match != nil {
		return strings.TrimSpace(match[1])
	}
	return strings.TrimSpace(completion)
}

// parseVisualization decodes the visualizer's JSON recommendation.
// Anything outside the closed chart set, malformed JSON included,
// yields no chart.
func parseVisualization(completion string, columns []string) *Visualization {
	raw := jsonObjectPattern.FindString(completion)
	if raw == "" {
		return nil
	}
	var viz Visualization
	if err := json.Unmarshal([]byte(raw), &viz); err != nil {
		return nil
	}
	switch viz.ChartType {
	case ChartBar, ChartLine, ChartPie:
	default:
		return nil
	}
	if !columnExists(columns, viz.XColumn) || !columnExists(columns, viz.YColumn) {
		return nil
	}
	return &viz
}

func columnExists(columns []string, name string) bool {
	for _, column := range columns {
		if strings.EqualFold(column, name) {
			return true
		}
	}
	return false
}
