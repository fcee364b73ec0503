package openai

import (
	"sort"
	"strings"

	"github.com/electroquote/cpq-backend/internal/core/domain"
)

const systemPrompt = `You are a product data analyst for electrical test and measurement equipment.
Extract structured product information from the document text the user provides.
The documents are vendor datasheets and manuals, often in Chinese.

Respond with a single JSON object and nothing else, using exactly this shape:
{
  "basic_info": {"name": "", "code": "", "category": "", "base_price": 0, "description": ""},
  "specifications": {"<spec name>": {"value": "", "unit": "", "description": ""}},
  "features": [{"title": "", "description": ""}],
  "application_scenarios": [{"name": "", "sort_order": 0}],
  "accessories": [{"name": "", "type": "standard", "description": ""}],
  "certificates": [{"name": "", "type": "", "certificate_number": "", "description": ""}],
  "support_info": {
    "warranty": {"period": "", "coverage": "", "terms": []},
    "contact_info": {"phone": "", "email": "", "website": "", "address": ""},
    "service_promises": []
  },
  "confidence": {"basic_info": 0.0, "specifications": 0.0, "features": 0.0, "overall": 0.0}
}

Rules:
- Keep original units and numeric values exactly as written in the document.
- accessory "type" is "standard" or "optional".
- base_price is a number; use 0 if the document states no price.
- Leave a field empty rather than inventing a value.
- confidence values are your own estimates in [0,1].`

const repairPrompt = `Your previous reply was not valid JSON matching the required schema.
Return the corrected payload as a single bare JSON object. No prose, no markdown fences.`

func buildExtractionMessages(documentName, text string, hints domain.HintSet) []chatMessage {
	// Hints ride in the system message so they steer extraction as
	// instructions rather than reading as document content.
	system := systemPrompt
	if section := renderHints(hints); section != "" {
		system += "\n\n" + section
	}

	var user strings.Builder
	user.WriteString("Document: ")
	user.WriteString(documentName)
	user.WriteString("\n\n")
	user.WriteString(text)

	return []chatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: user.String()},
	}
}

func buildRepairMessages(invalid string) []chatMessage {
	return []chatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: repairPrompt + "\n\nPrevious reply:\n" + invalid},
	}
}

// renderHints folds accepted user corrections for similar documents into the
// prompt so recurring extraction mistakes stop recurring.
func renderHints(hints domain.HintSet) string {
	if len(hints) == 0 {
		return ""
	}
	fields := make([]string, 0, len(hints))
	for field := range hints {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var out strings.Builder
	out.WriteString("Observed corrections for similar documents:\n")
	for _, field := range fields {
		out.WriteString("- ")
		out.WriteString(field)
		out.WriteString(": prefer values like ")
		out.WriteString(strings.Join(hints[field], " | "))
		out.WriteString("\n")
	}
	return out.String()
}

const truncationMarker = "\n\n[... document truncated ...]\n\n"

// truncateForBudget keeps the head and tail of oversized documents, cutting
// at paragraph boundaries where possible. Datasheets put identity up front
// and warranty/contact details at the end, so both ends matter.
func truncateForBudget(text string, budget int) string {
	runes := []rune(text)
	if len(runes) <= budget {
		return text
	}

	headBudget := budget * 2 / 3
	tailBudget := budget - headBudget

	head := string(runes[:headBudget])
	if cut := strings.LastIndex(head, "\n"); cut > headBudget/2 {
		head = head[:cut]
	}
	tail := string(runes[len(runes)-tailBudget:])
	if cut := strings.Index(tail, "\n"); cut >= 0 && cut < tailBudget/2 {
		tail = tail[cut+1:]
	}
	return head + truncationMarker + tail
}
