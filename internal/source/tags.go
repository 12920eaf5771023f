package source

import (
	"strings"

	"github.com/modelscout/modelscout/internal/domain/catalog"
)

// Scan vocabulary for enrichment tags. Matching is additive metadata only and
// never rejects an item.
var (
	contentTypeTerms = []string{
		"checkpoint", "lora", "locon", "lycoris", "embedding", "textual inversion",
		"controlnet", "vae", "workflow", "motion module", "hypernetwork",
	}

	styleTerms = []string{
		"anime", "realistic", "photorealistic", "cartoon", "illustration",
		"fantasy", "sci-fi", "portrait", "landscape", "pixel art",
	}

	baseModelTerms = []string{
		"sdxl", "sd 1.5", "sd3", "stable diffusion", "flux", "pony", "illustrious",
		"llama", "qwen", "mistral", "gemma", "deepseek", "phi", "whisper", "wan",
	}
)

// popularDownloadThreshold marks a record as popular once its download or
// seed count reaches it.
const popularDownloadThreshold = 100

// EnrichTags scans a record's name and description against the fixed
// vocabulary and attaches matching tags.
func EnrichTags(r *catalog.ModelRecord) {
	haystack := strings.ToLower(r.Name + " " + r.Description)

	for _, term := range contentTypeTerms {
		if strings.Contains(haystack, term) {
			r.AddTag("type:" + strings.ReplaceAll(term, " ", "-"))
		}
	}
	for _, term := range styleTerms {
		if strings.Contains(haystack, term) {
			r.AddTag("style:" + strings.ReplaceAll(term, " ", "-"))
		}
	}
	for _, term := range baseModelTerms {
		if strings.Contains(haystack, term) {
			r.AddTag("base:" + strings.ReplaceAll(term, " ", "-"))
		}
	}
	if r.Downloads != nil && *r.Downloads >= popularDownloadThreshold {
		r.AddTag("popular")
	}
}

// inferDomain guesses a record's domain from free text when the source does
// not state one explicitly.
func inferDomain(text string) catalog.Domain {
	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, "lora", "locon", "lycoris"):
		return catalog.DomainLoRA
	case containsAny(lower, "upscale", "upscaler", "esrgan"):
		return catalog.DomainUpscaler
	case containsAny(lower, "text-to-video", "video model", "motion module"):
		return catalog.DomainVideoGen
	case containsAny(lower, "tts", "text-to-speech", "voice clone"):
		return catalog.DomainTTS
	case containsAny(lower, "whisper", "speech recognition", "asr"):
		return catalog.DomainASR
	case containsAny(lower, "llm", "language model", "instruct", "chat model"):
		return catalog.DomainLLM
	case containsAny(lower, "stable diffusion", "sdxl", "flux", "text-to-image", "image model"):
		return catalog.DomainImageGen
	default:
		return catalog.DomainOther
	}
}

func containsAny(haystack string, terms ...string) bool {
	for _, t := range terms {
		if strings.Contains(haystack, t) {
			return true
		}
	}
	return false
}
