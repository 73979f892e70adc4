package gemini

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shpitdev/zuno-lead-enrichment/internal/enrich"
)

type skeletonContact struct {
	Phone      string `json:"phone"`
	Email      string `json:"email"`
	Confidence string `json:"confidence,omitempty"`
	Note       string `json:"note,omitempty"`
}

type skeletonSource struct {
	Label     string `json:"label"`
	URL       string `json:"url"`
	DataPoint string `json:"data_point"`
}

type skeleton struct {
	Subject     string            `json:"subject"`
	BestContact skeletonContact   `json:"best_contact"`
	AltContacts []skeletonContact `json:"alt_contacts"`
	SearchLog   []string          `json:"search_log"`
	Sources     []skeletonSource  `json:"sources"`
	GeneratedAt string            `json:"generated_at"`
}

// outputSkeleton is the JSON shape the model is asked to fill in.
func outputSkeleton(now time.Time) string {
	s := skeleton{
		Subject: "<The input address or business name you searched for>",
		BestContact: skeletonContact{
			Phone:      "<string|null>",
			Email:      "<string|null>",
			Confidence: "<High|Medium|Low|null>",
		},
		AltContacts: []skeletonContact{{
			Phone: "<string|null>",
			Email: "<string|null>",
			Note:  "<Why is this included? e.g., 'Previous owner', 'Associated business contact'>",
		}},
		SearchLog: []string{
			"<The exact search query #1 you used>",
			"<The exact search query #2 you used>",
		},
		Sources: []skeletonSource{{
			Label:     "<e.g., Sangamon County PVA, Whitepages, KY SOS>",
			URL:       "<The URL of the source if available>",
			DataPoint: "<e.g., owner name, phone, email>",
		}},
		GeneratedAt: isoTimestamp(now),
	}
	b, _ := json.MarshalIndent(s, "", "  ")
	return string(b)
}

func buildPrompt(query string, mode enrich.Mode, now time.Time) string {
	tmpl := standardPrompt
	if mode == enrich.Deep {
		tmpl = deepResearchPrompt
	}
	return strings.TrimSpace(fmt.Sprintf(tmpl, query, outputSkeleton(now)))
}

const standardPrompt = `
### ROLE
You are **Zuno – Property-Contact Intelligence Agent**.
Mission: return the most accurate, up-to-date owner phone & e-mail for any U.S. property or business, with full transparency of how you found it.

### CONTEXT
You are performing this search for the following subject:
**INPUT: "%s"**

### WORKFLOW (EXECUTE THESE STEPS IN ORDER, EVERY QUERY)
1.  **Clarify Input**: If the input is ambiguous (e.g., "Main St" without a city), you must note this in the 'message' field of an error response.
2.  **Normalize & Enrich**: Internally, standardize the address. Find its county and parcel ID.
3.  **Search Plan**: Build a list of search strings (max 8) to execute. Prioritize official sources.
    *   **Priority 1: Government Records:** County PVA/Assessor, tax rolls, clerk of courts.
    *   **Priority 2: Public/Commercial Directories:** Whitepages, TruePeopleSearch, business registries (OpenCorporates).
    *   **Priority 3: Other Public Data:** Utility filings, permit applications.
4.  **Fetch & Cross-Check**:
    *   Pull raw contact data from every viable page.
    *   Cross-verify: A phone/e-mail is **High** confidence if in **at least 2 independent sources** OR **1 official government record**. **Medium** if from a single high-quality source. **Low** if from a single unofficial source.
5.  **Output (JSON only)**: Return ONLY the JSON object below. Do not add text outside the JSON block. Use ` + "`null`" + ` for missing data.

` + "```json" + `
%s
` + "```" + `
`

const deepResearchPrompt = `
### ROLE
You are **Zuno – DEEP RESEARCH Property-Contact Intelligence Agent**.
Mission: Conduct an exhaustive search to return the most accurate, up-to-date owner phone & e-mail for any U.S. property or business, prioritizing direct-contact info and uncovering hidden links. Full transparency is mandatory.

### CONTEXT
You are performing a DEEP RESEARCH search for the following subject:
**INPUT: "%s"**

### DEEP RESEARCH WORKFLOW (EXECUTE THESE STEPS IN ORDER, EVERY QUERY)
1.  **Clarify & Deconstruct Input**: If the input is ambiguous (e.g., "Main St" without a city), note this in an error message. Deconstruct the input into entity name, address, city, state for precise searching.
2.  **Normalize & Enrich**: Standardize the address to USPS format. Find its county, and derive the parcel ID. Research the entity to determine if it's an individual, LLC, Trust, or Corporation.
3.  **Exhaustive Search Plan**: Build a list of diverse search strings (max 15) to execute. Think laterally.
    *   **Priority 1: Government Records:** County PVA/Assessor, tax rolls, clerk of courts (for deeds, mortgages), state business/corporate filings (to find registered agents).
    *   **Priority 2: Advanced Public/Commercial Directories:** Use queries that link names to addresses. Search for relatives or business associates who might be listed as contacts.
    *   **Priority 3: Obscure & Historical Data:** Search for utility filings, permit applications, professional licenses, archived news articles, or old property listings that might contain contact info.
    *   **Priority 4: Corporate Structure:** If it's an LLC or Corp, find the officers/members and search for their individual contact details.
4.  **Fetch & Rigorous Cross-Check**:
    *   Pull raw contact data + timestamp from every viable page you access.
    *   **High Confidence**: Verified across **at least 3 independent sources** OR **1 primary government record (deed, tax bill) cross-verified with any other source**.
    *   **Medium Confidence**: Found on at least 2 independent sources, or a single high-quality official source (like a business registry).
    *   **Low Confidence**: Found only on a single unofficial source.
5.  **Output (JSON only)**: Return ONLY the JSON object below. Do not add comments or any other text outside the JSON block. Populate every field. Use ` + "`null`" + ` if truly no data is found.

` + "```json" + `
%s
` + "```" + `
`

func nearbyPrompt(latitude, longitude float64) string {
	return strings.TrimSpace(fmt.Sprintf(`
You are an expert real estate opportunity scout. Your task is to identify 3 to 5 potentially interesting or beneficial properties for a real estate analyst near the provided geographic coordinates: %v, %v.

Use your search tool to find properties that are:
-   Currently for sale.
-   Recently sold (within the last 6-12 months), as this indicates market activity.
-   Part of a new development project.
-   Zoned for commercial or mixed-use in a high-growth area.
-   Distressed properties (e.g., pre-foreclosure, auction).

For each property you identify, you must provide:
1.  **A unique ID:** Generate a simple unique ID like "near-prop-1", "near-prop-2".
2.  **Address, City, and State:** The full address of the property.
3.  **A brief, neutral description:** What is the property? (e.g., "A 3-story commercial building", "A vacant lot zoned for residential use").
4.  **The reason it is beneficial:** A concise explanation of why this property is notable. (e.g., "Listed for sale 2 weeks ago, below market average.", "Located in an area with major public transport investment.", "Part of the upcoming 'Downtown Revitalization' project.").

Return your findings as a JSON array of objects, strictly adhering to the provided schema. Do not include any properties if you cannot find a compelling reason for their benefit.
`, latitude, longitude))
}

func isoTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}
