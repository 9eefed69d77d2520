package brain

// Suggestions returns the example questions offered to users. The list is
// static; the chat widget renders it as tappable prompts.
func Suggestions() []string {
	return []string{
		"What are the top 5 products by sales value?",
		"Which orders are still pending fulfillment?",
		"What is our current fill rate?",
		"Which SKUs are understocked right now?",
		"Who are our top 10 customers by order value?",
		"Which products have the highest demand velocity?",
		"How many orders came from Blinkit versus standard channels?",
		"Which products have been sitting in inventory the longest?",
	}
}
