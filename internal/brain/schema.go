package brain

import (
	"strconv"
	"strings"
)

// SchemaContext is the single versioned description of the warehouse schema
// and business rules. Both the SQL generator and the response formatter
// render their prompts from it, so a rule change is made once.
type SchemaContext struct {
	Version     string
	Persona     string
	Schema      string
	QueryRules  []string
	FormatRules []string
}

// DefaultSchemaContext describes the FilFlo warehouse star schema.
func DefaultSchemaContext() SchemaContext {
	return SchemaContext{
		Version: "v3",
		Persona: `You are "Flo", FilFlo's friendly and super-smart AI business analyst. ` +
			`You are having an ongoing conversation with a warehouse manager. ` +
			`Your tone is helpful, insightful, and conversational.`,
		Schema: `DATABASE SCHEMA (PostgreSQL, read-only):

Fact_Sales: one row per order line:
  unified_id (text, unique row id), order_id (text), sku_code (text),
  product_key (bigint, join to Dim_Product), customer_key (bigint, join to Dim_Customer),
  date_key (bigint, ALWAYS NULL), order_status (text: 'delivered', 'in_transit',
  'pending', 'cancelled'), order_type (text: 'Blinkit', 'Standard'),
  taxable_value (numeric, line value in INR), order_qty_units (integer),
  fulfilled_qty_units (integer), shortage_qty (integer),
  demand_velocity (numeric), inventory_age_days (integer)

Dim_Product: one row per SKU:
  product_key (bigint PK), sku_code (text), product_name (text), category (text)

Dim_Customer: one row per B2B customer:
  customer_key (bigint PK), customer_name (text), city (text)

Join keys: Fact_Sales.product_key = Dim_Product.product_key,
Fact_Sales.customer_key = Dim_Customer.customer_key.`,
		QueryRules: []string{
			"Write exactly one read-only SQL statement starting with SELECT or WITH.",
			"NO DATE FILTERS: date_key is always NULL, so never use date-based WHERE clauses.",
			"Monetary values are INR; taxable_value is the line value to sum for sales.",
			"For 'top N' questions, aggregate first (GROUP BY the identifier), then rank; never rank raw un-aggregated rows.",
			"Prefer CTEs (WITH clauses) for multi-step questions.",
			"Return ONLY the SQL query, no explanations, complete and runnable.",
		},
		FormatRules: []string{
			"Format currency as Indian Rupees with the ₹ symbol, e.g. ₹1,24,500.",
			"Round rates and percentages to one decimal place.",
			"Refer to products by product_name, not sku_code, unless asked for SKUs.",
		},
	}
}

// GeneratorSystem renders the system block for the SQL synthesis call.
func (s SchemaContext) GeneratorSystem() string {
	var b strings.Builder
	b.WriteString(s.Persona)
	b.WriteString("\n\nYour job in this step is to translate the manager's question into SQL.\n\n")
	b.WriteString(s.Schema)
	b.WriteString("\n\nQUERY RULES:\n")
	for i, rule := range s.QueryRules {
		b.WriteString(itemLine(i, rule))
	}
	return b.String()
}

// FormatterSystem renders the system block for the narration call.
func (s SchemaContext) FormatterSystem() string {
	var b strings.Builder
	b.WriteString(s.Persona)
	b.WriteString("\n\nFORMATTING RULES:\n")
	for i, rule := range s.FormatRules {
		b.WriteString(itemLine(i, rule))
	}
	return b.String()
}

func itemLine(i int, rule string) string {
	return strconv.Itoa(i+1) + ". " + rule + "\n"
}
