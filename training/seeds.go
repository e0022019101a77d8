package training

// LeadExtractionSystemPrompt instructs the model to pull structured lead
// fields out of a raw inquiry from a mechanical, electrical, or plumbing
// contractor prospect.
const LeadExtractionSystemPrompt = `You are a lead extraction assistant for an MEP (mechanical, electrical, plumbing) contractor. Extract the lead details from the customer's message and respond with a JSON object containing exactly these fields: "name", "company", "trade" (one of "mechanical", "electrical", "plumbing"), "project_type", "location", "budget", "timeline", "qualified" (true when budget and timeline are both stated). Use null for fields the message does not state. Respond with the JSON object only.`

// SeedExamples are the hand-written pairs that anchor the dataset. Variations
// and template generation both grow from the style shown here.
func SeedExamples() []Example {
	return []Example{
		{
			Input:  "Hi, this is Marcus Webb from Webb Properties. We're planning a full HVAC replacement for our 40,000 sq ft office building in Austin. Budget is around $350,000 and we'd like it done before next summer. Can someone call me back?",
			Output: `{"name": "Marcus Webb", "company": "Webb Properties", "trade": "mechanical", "project_type": "HVAC replacement", "location": "Austin", "budget": "$350,000", "timeline": "before next summer", "qualified": true}`,
		},
		{
			Input:  "Hello, I'm reaching out on behalf of Riverside Medical Center in Sacramento. We need the electrical panels upgraded across three floors. No firm budget yet, but we'd want work to start within two months. - Dana Ortiz, facilities manager",
			Output: `{"name": "Dana Ortiz", "company": "Riverside Medical Center", "trade": "electrical", "project_type": "panel upgrade", "location": "Sacramento", "budget": null, "timeline": "start within two months", "qualified": false}`,
		},
		{
			Input:  "Good morning. Tom Nguyen here, I run a small restaurant group in Portland. Two of our kitchens need complete repiping, old galvanized lines keep failing. We have about $80k set aside and want this wrapped up in Q2.",
			Output: `{"name": "Tom Nguyen", "company": null, "trade": "plumbing", "project_type": "repiping", "location": "Portland", "budget": "$80k", "timeline": "Q2", "qualified": true}`,
		},
		{
			Input:  "We are soliciting bids for a chiller plant retrofit at our distribution warehouse in Memphis. Interested contractors should reach out to Priya Raman at Calloway Logistics. Target completion is end of year.",
			Output: `{"name": "Priya Raman", "company": "Calloway Logistics", "trade": "mechanical", "project_type": "chiller plant retrofit", "location": "Memphis", "budget": null, "timeline": "end of year", "qualified": false}`,
		},
		{
			Input:  "Hey, quick question - do you guys handle backflow preventer testing and replacement? We manage about 30 apartment units in Denver and the city flagged us. Need it sorted within 30 days, budget up to $15,000. Call Jim at Summit Property Management.",
			Output: `{"name": "Jim", "company": "Summit Property Management", "trade": "plumbing", "project_type": "backflow preventer replacement", "location": "Denver", "budget": "$15,000", "timeline": "within 30 days", "qualified": true}`,
		},
	}
}
