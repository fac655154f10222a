package advisor

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
)

const (
	defaultSummary        = "Charlie is still thinking this one over. Ask again, and be more specific about what is actually bothering you."
	defaultSynthesis      = "The compounding effect of these factors is still being weighed."
	defaultContrarianNote = "Invert, always invert."
	defaultLabel          = "Unnamed model"
	defaultShortCode      = "Mj"
	defaultCategory       = "General"
	defaultAttribution    = "Charlie Munger"
)

// Normalize converts a raw upstream response of any shape into a fully
// populated AdviceResult. It never fails: unparsable input degrades to the
// raw text as Summary with defaulted companion fields.
//
// Parse order: direct JSON, then the outermost {...} substring (the model
// likes to wrap its JSON in fences or commentary), then prose fallback.
func Normalize(raw string) AdviceResult {
	text := stripCodeFences(strings.TrimSpace(raw))

	parsed := parseObject(text)
	if parsed == nil {
		if start, end := strings.Index(text, "{"), strings.LastIndex(text, "}"); start >= 0 && end > start {
			parsed = parseObject(text[start : end+1])
			if parsed != nil {
				log.Printf("advisor response was not direct JSON; recovered embedded payload (%d bytes)", end+1-start)
			}
		}
	}
	if parsed == nil {
		if text != "" {
			log.Printf("advisor response had no structured payload; using prose fallback (%d bytes)", len(text))
			return AdviceResult{
				Summary:        text,
				Models:         []ModelReference{},
				Synthesis:      defaultSynthesis,
				ContrarianNote: defaultContrarianNote,
			}
		}
		log.Printf("advisor response was empty; using placeholder result")
		return AdviceResult{
			Summary:        defaultSummary,
			Models:         []ModelReference{},
			Synthesis:      defaultSynthesis,
			ContrarianNote: defaultContrarianNote,
		}
	}

	result := AdviceResult{
		Summary:        firstString(parsed, defaultSummary, "summary", "advice"),
		Models:         normalizeModels(parsed["models"]),
		Synthesis:      firstString(parsed, defaultSynthesis, "synthesis", "lollapalooza"),
		ContrarianNote: firstString(parsed, defaultContrarianNote, "contrarian_note", "contrarianNote", "inversion"),
	}
	return result
}

func normalizeModels(raw any) []ModelReference {
	items, ok := raw.([]any)
	if !ok {
		return []ModelReference{}
	}

	result := make([]ModelReference, 0, len(items))
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}

		label := firstString(entry, defaultLabel, "label", "name")

		shortCode := firstString(entry, "", "short_code", "shortCode", "symbol")
		if shortCode == "" {
			shortCode = deriveShortCode(label)
		}

		category := firstString(entry, defaultCategory, "category")
		attribution := firstString(entry, defaultAttribution, "attribution", "founder")

		// The note is the field the model most often drops, and an empty one
		// renders as a blank card. The fallback sentence must mention the
		// model by name so it still reads as analysis.
		note := firstString(entry, "", "note", "brief", "description", "explanation")
		if note == "" {
			log.Printf("advisor model entry %q had no note; deriving one", label)
			note = fmt.Sprintf("Charlie is still working out how %s applies to your question.", label)
		}

		result = append(result, ModelReference{
			Label:       label,
			ShortCode:   shortCode,
			Category:    category,
			Attribution: attribution,
			Note:        note,
		})
	}
	return result
}

func deriveShortCode(label string) string {
	runes := []rune(strings.TrimSpace(label))
	if len(runes) == 0 {
		return defaultShortCode
	}
	if len(runes) == 1 {
		return strings.ToUpper(string(runes[0]))
	}
	return strings.ToUpper(string(runes[:2]))
}

func parseObject(text string) map[string]any {
	if text == "" || !strings.HasPrefix(text, "{") {
		return nil
	}
	var parsed map[string]any
	if err := json.Unmarshal([]byte(text), &parsed); err != nil || parsed == nil {
		return nil
	}
	return parsed
}

func stripCodeFences(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	trimmed := strings.TrimPrefix(text, "```")
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		trimmed = trimmed[idx+1:]
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

// firstString walks the synonym chain for a field and returns the first
// non-empty string value, or the fallback.
func firstString(data map[string]any, fallback string, keys ...string) string {
	for _, key := range keys {
		raw, ok := data[key]
		if !ok {
			continue
		}
		if value, ok := raw.(string); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed
			}
		}
	}
	return fallback
}
