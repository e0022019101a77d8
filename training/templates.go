package training

import (
	"fmt"
	"math/rand"
)

// Domain tables for template generation. Each scenario crosses a trade with
// a project type so the dataset covers the full MEP spread.
var (
	templateNames = []string{
		"Sarah Mitchell", "Carlos Reyes", "Amanda Fletcher", "David Park",
		"Renee Thibodeaux", "Omar Haddad", "Lisa Chen", "Greg Sandoval",
		"Monica Alvarez", "Pete Dawson",
	}
	templateCompanies = []string{
		"Lakeside Development", "Harbor Point REIT", "Bluegrass Manufacturing",
		"Stonebridge Schools", "Vista Hospitality Group", "Ironworks Brewing",
		"Caldwell Senior Living", "Northgate Retail Partners",
	}
	templateCities = []string{
		"Houston", "Phoenix", "Nashville", "Charlotte", "Columbus",
		"San Diego", "Tampa", "Minneapolis", "Salt Lake City", "Raleigh",
	}
	templateBudgets = []string{
		"$25,000", "$60,000", "$120,000", "$250,000", "$500,000", "$1.2M",
	}
	templateTimelines = []string{
		"within 60 days", "by end of quarter", "before the fall semester",
		"in the next six months", "ASAP", "by next spring",
	}
)

// templateScenario ties a trade to a project type with a message template.
// Templates take name, company, project, city, and either budget+timeline or
// a trailing clause.
type templateScenario struct {
	trade   string
	project string
}

var templateScenarios = []templateScenario{
	{"mechanical", "rooftop unit replacement"},
	{"mechanical", "VAV system retrofit"},
	{"mechanical", "boiler replacement"},
	{"mechanical", "ductwork redesign"},
	{"electrical", "service entrance upgrade"},
	{"electrical", "LED lighting retrofit"},
	{"electrical", "generator installation"},
	{"electrical", "EV charger installation"},
	{"plumbing", "water heater replacement"},
	{"plumbing", "sewer line repair"},
	{"plumbing", "fixture upgrade"},
	{"plumbing", "grease trap installation"},
}

var templateMessages = []string{
	"Hi, my name is %s with %s. We're looking for a contractor to handle a %s at our facility in %s. Our budget is %s and we need it done %s. Please get back to me.",
	"Hello - %s here, facilities lead at %s. We have a %s project coming up in %s. We've allocated %s and the timeline is %s. Are you available to bid?",
	"Good afternoon. I'm %s and I manage properties for %s. We need a quote on a %s in %s. Funding of %s is approved; work must finish %s.",
}

// Templates without budget produce unqualified leads.
var templateMessagesNoBudget = []string{
	"Hi, this is %s from %s. Can you tell me if you take on %s work? The property is in %s. No budget figured out yet but we'd want it %s.",
	"Hello, %s with %s. Exploring options for a %s at our %s location. Still working on funding. Ideally done %s.",
}

// GenerateFromTemplates produces count examples by crossing the domain
// tables. Roughly one in three leads omits the budget so the model learns
// the qualification rule.
func GenerateFromTemplates(count int, rng *rand.Rand) []Example {
	examples := make([]Example, 0, count)
	for i := 0; i < count; i++ {
		scenario := templateScenarios[rng.Intn(len(templateScenarios))]
		name := templateNames[rng.Intn(len(templateNames))]
		company := templateCompanies[rng.Intn(len(templateCompanies))]
		city := templateCities[rng.Intn(len(templateCities))]
		timeline := templateTimelines[rng.Intn(len(templateTimelines))]

		if rng.Intn(3) == 0 {
			msg := templateMessagesNoBudget[rng.Intn(len(templateMessagesNoBudget))]
			examples = append(examples, Example{
				Input: fmt.Sprintf(msg, name, company, scenario.project, city, timeline),
				Output: fmt.Sprintf(
					`{"name": %q, "company": %q, "trade": %q, "project_type": %q, "location": %q, "budget": null, "timeline": %q, "qualified": false}`,
					name, company, scenario.trade, scenario.project, city, timeline),
			})
			continue
		}

		budget := templateBudgets[rng.Intn(len(templateBudgets))]
		msg := templateMessages[rng.Intn(len(templateMessages))]
		examples = append(examples, Example{
			Input: fmt.Sprintf(msg, name, company, scenario.project, city, budget, timeline),
			Output: fmt.Sprintf(
				`{"name": %q, "company": %q, "trade": %q, "project_type": %q, "location": %q, "budget": %q, "timeline": %q, "qualified": true}`,
				name, company, scenario.trade, scenario.project, city, budget, timeline),
		})
	}
	return examples
}
