package record

// Merge computes the stored state resulting from applying a fresh scrape
// observation on top of an existing row. It is a pure function over the two
// records so the conflict rules can be tested without a database.
//
// Rules:
//   - MediaURL improves monotonically: the incoming value replaces the
//     existing one only if the existing is empty, or the existing fails
//     media-domain validation while the incoming passes it.
//   - SourceURL is fill-once: set only when the existing value is empty.
//   - Text is last-write-wins among non-empty observations: the newest scrape
//     of the post body is authoritative, but an observation that failed to
//     read the body never blanks stored text.
//   - Author fields are fill-missing: author identity is assumed stable, so a
//     populated field is never overwritten.
//   - Metrics are last-write-wins: the newest observation is authoritative.
//
// validMedia reports whether a URL belongs to the platform's dedicated
// media-hosting domain.
func Merge(existing, incoming PostRecord, validMedia func(string) bool) PostRecord {
	merged := existing

	if incoming.MediaURL != "" {
		if existing.MediaURL == "" || (!validMedia(existing.MediaURL) && validMedia(incoming.MediaURL)) {
			merged.MediaURL = incoming.MediaURL
		}
	}

	if existing.SourceURL == "" {
		merged.SourceURL = incoming.SourceURL
	}

	if incoming.Text != "" {
		merged.Text = incoming.Text
	}

	merged.Author = fillMissing(existing.Author, incoming.Author)
	merged.Metrics = incoming.Metrics

	return merged
}

func fillMissing(existing, incoming Author) Author {
	if existing.ID == "" {
		existing.ID = incoming.ID
	}
	if existing.DisplayName == "" {
		existing.DisplayName = incoming.DisplayName
	}
	if existing.Handle == "" {
		existing.Handle = incoming.Handle
	}
	if existing.AvatarURL == "" {
		existing.AvatarURL = incoming.AvatarURL
	}
	return existing
}
