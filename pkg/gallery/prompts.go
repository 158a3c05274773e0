package gallery

// BuildPromptIndex maps UTC calendar dates to prompt text. When two
// prompts land on the same date the later one in slice order wins;
// only one prompt per day is kept for association. Records with
// unparseable timestamps are skipped.
func BuildPromptIndex(prompts []PromptRecord) map[string]string {
	index := make(map[string]string, len(prompts))
	for _, p := range prompts {
		date, err := TimestampDate(p.Timestamp)
		if err != nil {
			continue
		}
		index[date] = p.Text
	}
	return index
}

// AssociatePrompts matches each image to the prompt posted on the same
// UTC calendar date. Images with no same-day prompt get a nil Prompt.
// Returns a new slice; the input is not mutated.
func AssociatePrompts(images []ImageRef, prompts []PromptRecord) []ImageRef {
	index := BuildPromptIndex(prompts)
	out := make([]ImageRef, 0, len(images))
	for _, img := range images {
		date, err := TimestampDate(img.MessageTS)
		if err == nil {
			if text, ok := index[date]; ok {
				img.Prompt = &text
			}
		}
		out = append(out, img)
	}
	return out
}
