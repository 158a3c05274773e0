package gallery

import "strings"

// ExtractImages collects image attachments from messages. Only files
// whose declared mimetype starts with "image/" are kept; everything
// else is dropped. Output order follows message order, then attachment
// order within a message.
func ExtractImages(messages []Message) []ImageRef {
	var images []ImageRef
	for _, msg := range messages {
		for _, f := range msg.Files {
			if !strings.HasPrefix(f.Mimetype, "image/") {
				continue
			}
			images = append(images, ImageRef{
				FileID:    f.ID,
				Name:      f.Name,
				Mimetype:  f.Mimetype,
				URL:       f.URL,
				Width:     f.Width,
				Height:    f.Height,
				MessageTS: msg.Timestamp,
				Author:    msg.User,
			})
		}
	}
	return images
}
